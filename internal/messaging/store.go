package messaging

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PgxPool is the subset of pgxpool.Pool the transcript store uses.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const defaultTranscriptLimit = 100

// Store persists the message transcript in Postgres.
type Store struct {
	pool PgxPool
}

func NewStore(pool PgxPool) *Store {
	if pool == nil {
		return nil
	}
	return &Store{pool: pool}
}

// Append inserts one transcript entry and returns its id.
func (s *Store) Append(ctx context.Context, entry TranscriptEntry) (int64, error) {
	if strings.TrimSpace(entry.Identity) == "" {
		return 0, fmt.Errorf("messaging: transcript identity required")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO conversation_messages (
			identity, direction, kind, body, media_ref, status, event_id, created_at
		) VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, NULLIF($7, ''), $8)
		RETURNING id
	`
	var id int64
	err := s.pool.QueryRow(ctx, query,
		entry.Identity,
		entry.Direction,
		entry.Kind,
		entry.Body,
		entry.MediaRef,
		entry.Status,
		entry.EventID,
		entry.CreatedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("messaging: insert transcript: %w", err)
	}
	return id, nil
}

// UpdateStatus records the delivery outcome of an outbound entry.
func (s *Store) UpdateStatus(ctx context.Context, id int64, status string) error {
	query := `
		UPDATE conversation_messages
		SET status = $2, updated_at = now()
		WHERE id = $1
	`
	if _, err := s.pool.Exec(ctx, query, id, status); err != nil {
		return fmt.Errorf("messaging: update transcript status: %w", err)
	}
	return nil
}

// ListTranscript returns the newest entries for identity, oldest first.
func (s *Store) ListTranscript(ctx context.Context, identity string, limit int) ([]TranscriptEntry, error) {
	if limit <= 0 || limit > 1000 {
		limit = defaultTranscriptLimit
	}
	query := `
		SELECT id, identity, direction, kind, body, COALESCE(media_ref, ''), status, COALESCE(event_id, ''), created_at
		FROM conversation_messages
		WHERE identity = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`
	rows, err := s.pool.Query(ctx, query, identity, limit)
	if err != nil {
		return nil, fmt.Errorf("messaging: list transcript: %w", err)
	}
	defer rows.Close()

	var entries []TranscriptEntry
	for rows.Next() {
		var e TranscriptEntry
		if err := rows.Scan(&e.ID, &e.Identity, &e.Direction, &e.Kind, &e.Body, &e.MediaRef, &e.Status, &e.EventID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("messaging: scan transcript: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("messaging: list transcript: %w", err)
	}
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

// RecordInbound stores an inbound event. Operator messages are logged as
// outbound since the shop wrote them.
func (s *Store) RecordInbound(ctx context.Context, evt InboundEvent) error {
	entry := TranscriptEntry{
		Identity:  evt.Identity,
		Direction: DirectionInbound,
		Kind:      string(evt.Kind),
		Body:      evt.Text,
		Status:    "received",
		EventID:   evt.ID,
		CreatedAt: evt.Timestamp,
	}
	if evt.FromOperator {
		entry.Direction = DirectionOutbound
		entry.Status = "operator"
	}
	switch {
	case evt.Image != nil:
		entry.MediaRef = evt.Image.Ref()
		if entry.Body == "" {
			entry.Body = evt.Image.Caption
		}
	case evt.Catalog != nil:
		entry.Body = strings.Join(FlattenCatalogOrder(*evt.Catalog), "\n")
	}
	_, err := s.Append(ctx, entry)
	return err
}
