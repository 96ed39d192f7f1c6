package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/alem-hub/learner-progression/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// DOCUMENT STORE
// ══════════════════════════════════════════════════════════════════════════════

// Store keeps learner state as JSONB documents in progress_documents.
type Store struct {
	db Querier
}

// NewStore returns a Store on conn. Run the Migrator first.
func NewStore(conn *Connection) *Store {
	return &Store{db: conn}
}

// Get decodes the document at key into dest.
func (s *Store) Get(ctx context.Context, key string, dest any) (bool, error) {
	var raw []byte
	err := s.db.QueryRow(ctx, `SELECT value FROM progress_documents WHERE key = $1`, key).Scan(&raw)
	if IsNoRows(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("postgres: get %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("postgres: decode %s: %w", key, err)
	}
	return true, nil
}

// Put upserts the document at key.
func (s *Store) Put(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("postgres: encode %s: %w", key, err)
	}
	category, learnerID := splitKey(key)

	_, err = s.db.Exec(ctx, `
		INSERT INTO progress_documents (key, category, learner_id, value, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (key) DO UPDATE SET
			value = EXCLUDED.value,
			updated_at = NOW()
	`, key, category, learnerID, raw)
	if err != nil {
		return fmt.Errorf("postgres: put %s: %w", key, err)
	}
	return nil
}

// Keys returns the keys starting with prefix, sorted.
func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.db.Query(ctx,
		`SELECT key FROM progress_documents WHERE starts_with(key, $1) ORDER BY key`, prefix)
	if err != nil {
		return nil, fmt.Errorf("postgres: list keys: %w", err)
	}
	keys, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("postgres: scan keys: %w", err)
	}
	return keys, nil
}

// Delete removes every document of a learner and returns how many were
// removed.
func (s *Store) Delete(ctx context.Context, learnerID string) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM progress_documents WHERE learner_id = $1`, learnerID)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete learner %s: %w", learnerID, err)
	}
	return tag.RowsAffected(), nil
}

// splitKey splits "category:learner" at the first colon. Keys without a
// colon are filed under an empty category.
func splitKey(key string) (category, learnerID string) {
	category, learnerID, ok := strings.Cut(key, ":")
	if !ok {
		return "", key
	}
	return category, learnerID
}

// ══════════════════════════════════════════════════════════════════════════════
// EVENT JOURNAL
// ══════════════════════════════════════════════════════════════════════════════

// Journal appends published events to progress_events. It implements
// shared.EventPublisher and is meant to be subscribed to the event bus.
type Journal struct {
	conn *Connection
}

// NewJournal returns a Journal on conn.
func NewJournal(conn *Connection) *Journal {
	return &Journal{conn: conn}
}

// Publish writes events in one transaction.
func (j *Journal) Publish(ctx context.Context, events ...shared.Event) error {
	if len(events) == 0 {
		return nil
	}
	return j.conn.WithTx(ctx, func(tx pgx.Tx) error {
		for _, ev := range events {
			payload, err := json.Marshal(ev.Payload())
			if err != nil {
				return fmt.Errorf("postgres: encode %s: %w", ev.EventType(), err)
			}
			_, err = tx.Exec(ctx, `
				INSERT INTO progress_events (event_type, learner_id, payload, occurred_at)
				VALUES ($1, $2, $3, $4)
			`, string(ev.EventType()), ev.AggregateID(), payload, ev.OccurredAt())
			if err != nil {
				return fmt.Errorf("postgres: journal %s: %w", ev.EventType(), err)
			}
		}
		return nil
	})
}

// Handle adapts Publish to shared.EventHandler.
func (j *Journal) Handle(ctx context.Context, ev shared.Event) error {
	return j.Publish(ctx, ev)
}
