// Package reward defines the grants handed out by quests and streak
// milestones, and the wallet that records which grants were applied.
package reward

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/alem-hub/learner-progression/internal/domain/shared"
)

// Kind tags the variant of a Reward.
type Kind string

const (
	KindXP    Kind = "xp"
	KindCoins Kind = "coins"
	KindItem  Kind = "item"
	KindTitle Kind = "title"
	KindBadge Kind = "badge"
)

// Reward is a tagged variant. XP and coins use Amount, item uses ItemID
// and Amount, title and badge use ItemID.
type Reward struct {
	// Key - grant key, unique per reward instance. Set by Stamp.
	Key string `json:"key,omitempty"`

	// Kind - which variant this is.
	Kind Kind `json:"kind"`

	// Amount - XP, coins, or item count.
	Amount int `json:"amount,omitempty"`

	// ItemID - power-up id, title text or badge id.
	ItemID string `json:"item_id,omitempty"`

	// Display - presentation text.
	Display string `json:"display,omitempty"`

	// Rarity - presentation tag.
	Rarity shared.Rarity `json:"rarity,omitempty"`
}

// XP builds an experience reward.
func XP(amount int) Reward {
	return Reward{Kind: KindXP, Amount: amount, Display: fmt.Sprintf("+%d XP", amount), Rarity: shared.RarityCommon}
}

// Coins builds a currency reward.
func Coins(amount int) Reward {
	return Reward{Kind: KindCoins, Amount: amount, Display: fmt.Sprintf("+%d coins", amount), Rarity: shared.RarityCommon}
}

// Item builds an inventory reward of count power-ups.
func Item(powerUpID string, count int) Reward {
	return Reward{Kind: KindItem, ItemID: powerUpID, Amount: count, Display: fmt.Sprintf("%dx %s", count, powerUpID), Rarity: shared.RarityRare}
}

// Title builds a title reward.
func Title(title string, rarity shared.Rarity) Reward {
	return Reward{Kind: KindTitle, ItemID: title, Display: title, Rarity: rarity}
}

// Badge builds a badge reward.
func Badge(badgeID string, rarity shared.Rarity) Reward {
	return Reward{Kind: KindBadge, ItemID: badgeID, Display: badgeID, Rarity: rarity}
}

// Validate checks the variant's required fields.
func (r Reward) Validate() error {
	switch r.Kind {
	case KindXP, KindCoins:
		if r.Amount < 0 {
			return shared.NewDomainError("reward", "Validate", shared.ErrNegativeValue, "amount cannot be negative")
		}
	case KindItem:
		if r.ItemID == "" {
			return shared.NewDomainError("reward", "Validate", shared.ErrEmptyValue, "item reward needs an item id")
		}
		if r.Amount < 0 {
			return shared.NewDomainError("reward", "Validate", shared.ErrNegativeValue, "amount cannot be negative")
		}
	case KindTitle, KindBadge:
		if r.ItemID == "" {
			return shared.NewDomainError("reward", "Validate", shared.ErrEmptyValue, "reward needs an id")
		}
	default:
		return shared.NewDomainError("reward", "Validate", shared.ErrInvalidInput, "unknown reward kind "+string(r.Kind))
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// GRANT KEYS
// ══════════════════════════════════════════════════════════════════════════════

// grantNamespace scopes grant keys generated by this engine.
var grantNamespace = uuid.MustParse("6f1c7c1e-3a5d-4b8e-9a53-4c2f1d7e0b21")

// GrantKey derives a deterministic key for the index-th reward of source,
// e.g. source "quest:daily:2026-10-16:time". The same inputs always give
// the same key, so a replayed grant is recognized.
func GrantKey(learnerID, source string, index int) string {
	name := fmt.Sprintf("%s|%s|%d", learnerID, source, index)
	return uuid.NewSHA1(grantNamespace, []byte(name)).String()
}

// Stamp returns rewards with their grant keys filled in.
func Stamp(learnerID, source string, rewards []Reward) []Reward {
	out := make([]Reward, len(rewards))
	for i, r := range rewards {
		r.Key = GrantKey(learnerID, source, i)
		out[i] = r
	}
	return out
}

// ══════════════════════════════════════════════════════════════════════════════
// WALLET
// ══════════════════════════════════════════════════════════════════════════════

// Wallet holds currency, titles and the ledger of applied grant keys.
type Wallet struct {
	// Coins - currency balance.
	Coins int64 `json:"coins"`

	// Titles - unlocked titles, used as a set.
	Titles map[string]time.Time `json:"titles,omitempty"`

	// Granted - grant keys already applied, with the time of application.
	Granted map[string]time.Time `json:"granted,omitempty"`
}

// Claim records key as applied. It returns false when the key was already
// claimed; the caller must then skip the reward.
func (w *Wallet) Claim(key string, at time.Time) bool {
	if key == "" {
		return true
	}
	if w.Granted == nil {
		w.Granted = make(map[string]time.Time)
	}
	if _, ok := w.Granted[key]; ok {
		return false
	}
	w.Granted[key] = at
	return true
}

// AddCoins increases the balance, saturating at MaxInt64. Negative
// amounts are ignored.
func (w *Wallet) AddCoins(amount int) {
	switch {
	case amount <= 0:
	case w.Coins > math.MaxInt64-int64(amount):
		w.Coins = math.MaxInt64
	default:
		w.Coins += int64(amount)
	}
}

// AddTitle unlocks title. It returns false when already unlocked.
func (w *Wallet) AddTitle(title string, at time.Time) bool {
	if w.Titles == nil {
		w.Titles = make(map[string]time.Time)
	}
	if _, ok := w.Titles[title]; ok {
		return false
	}
	w.Titles[title] = at
	return true
}

// HasTitle reports whether title is unlocked.
func (w Wallet) HasTitle(title string) bool {
	_, ok := w.Titles[title]
	return ok
}
