// Package events keeps track of inbound gateway events that were already
// handled, so a redelivered webhook is answered once.
package events

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const defaultProcessedTTL = 24 * time.Hour

// Pruner is implemented by stores whose expired entries are not dropped by
// the backend itself.
type Pruner interface {
	Prune(ctx context.Context) (int64, error)
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresProcessedStore records handled event ids in processed_events. An
// id counts as seen for ttl after it was marked; older rows are reclaimed by
// the next mark of the same id or by Prune.
type PostgresProcessedStore struct {
	db  execer
	ttl time.Duration
	now func() time.Time
}

// NewPostgresProcessedStore creates a store; a non-positive ttl uses 24h.
func NewPostgresProcessedStore(pool *pgxpool.Pool, ttl time.Duration) *PostgresProcessedStore {
	if pool == nil {
		panic("events: pgx pool required")
	}
	return newPostgresProcessedStore(pool, ttl)
}

func newPostgresProcessedStore(db execer, ttl time.Duration) *PostgresProcessedStore {
	if db == nil {
		panic("events: exec required")
	}
	if ttl <= 0 {
		ttl = defaultProcessedTTL
	}
	return &PostgresProcessedStore{db: db, ttl: ttl, now: time.Now}
}

const markProcessedSQL = `
	INSERT INTO processed_events (provider, event_id, processed_at)
	VALUES ($1, $2, $3)
	ON CONFLICT (provider, event_id) DO UPDATE
		SET processed_at = EXCLUDED.processed_at
		WHERE processed_events.processed_at < $4
`

// MarkProcessed returns true the first time an id is seen within the TTL.
// A row older than the TTL is taken over as if it were new.
func (s *PostgresProcessedStore) MarkProcessed(ctx context.Context, provider, eventID string) (bool, error) {
	now := s.now().UTC()
	ct, err := s.db.Exec(ctx, markProcessedSQL, provider, eventID, now, now.Add(-s.ttl))
	if err != nil {
		return false, fmt.Errorf("events: mark processed: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}

// Prune deletes rows older than the TTL and reports how many went.
func (s *PostgresProcessedStore) Prune(ctx context.Context) (int64, error) {
	cutoff := s.now().UTC().Add(-s.ttl)
	ct, err := s.db.Exec(ctx, `DELETE FROM processed_events WHERE processed_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("events: prune processed: %w", err)
	}
	return ct.RowsAffected(), nil
}
