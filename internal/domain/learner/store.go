package learner

import (
	"context"
	"fmt"
	"strings"

	"github.com/alem-hub/learner-progression/internal/domain/shared"
)

// Store persists one JSON document per key. Implementations must be safe
// for concurrent use across keys. Writes are last-write-wins.
type Store interface {
	// Get decodes the value at key into dest. It returns false with a nil
	// error when the key does not exist.
	Get(ctx context.Context, key string, dest any) (bool, error)

	// Put encodes value and stores it at key.
	Put(ctx context.Context, key string, value any) error
}

// Lister enumerates stored keys. Background jobs need it to visit every
// learner; the engine itself never lists.
type Lister interface {
	// Keys returns the keys starting with prefix, sorted.
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// LearnerIDs returns every learner with a progression document.
func LearnerIDs(ctx context.Context, l Lister) ([]shared.LearnerID, error) {
	prefix := string(CategoryProgression) + ":"
	keys, err := l.Keys(ctx, prefix)
	if err != nil {
		return nil, PersistenceError("Keys", prefix, err)
	}
	ids := make([]shared.LearnerID, 0, len(keys))
	for _, k := range keys {
		if id := shared.LearnerID(strings.TrimPrefix(k, prefix)); id.IsValid() {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Category names one persisted slice of a learner's state.
type Category string

const (
	CategoryProgression Category = "progression"
	CategoryQuests      Category = "quests"
	CategoryStreak      Category = "streak"
	CategoryBadges      Category = "badges"
	CategoryInventory   Category = "inventory"
)

// Categories lists every category in write order.
var Categories = []Category{
	CategoryProgression,
	CategoryQuests,
	CategoryStreak,
	CategoryBadges,
	CategoryInventory,
}

// Key returns the store key of a category for a learner, e.g.
// "progression:alice".
func Key(c Category, id shared.LearnerID) string {
	return fmt.Sprintf("%s:%s", c, id)
}

// KeyProgression returns "progression:{id}".
func KeyProgression(id shared.LearnerID) string { return Key(CategoryProgression, id) }

// KeyQuests returns "quests:{id}".
func KeyQuests(id shared.LearnerID) string { return Key(CategoryQuests, id) }

// KeyStreak returns "streak:{id}".
func KeyStreak(id shared.LearnerID) string { return Key(CategoryStreak, id) }

// KeyBadges returns "badges:{id}".
func KeyBadges(id shared.LearnerID) string { return Key(CategoryBadges, id) }

// KeyInventory returns "inventory:{id}".
func KeyInventory(id shared.LearnerID) string { return Key(CategoryInventory, id) }

// PersistenceError wraps a store failure for key.
func PersistenceError(op, key string, err error) error {
	return shared.WrapError("store", op, shared.ErrPersistence, "key "+key, err)
}
