package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cassiomorais/paycore/internal/domain/outbox"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type OutboxRepository struct {
	pool *pgxpool.Pool
}

func NewOutboxRepository(pool *pgxpool.Pool) *OutboxRepository {
	return &OutboxRepository{pool: pool}
}

func (r *OutboxRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

func (r *OutboxRepository) Insert(ctx context.Context, entry *outbox.Entry) error {
	payload, err := json.Marshal(entry.Payload)
	if err != nil {
		return fmt.Errorf("marshal outbox payload: %w", err)
	}
	_, err = r.db(ctx).Exec(ctx,
		`INSERT INTO outbox (id, kind, correlation_id, payload, status, attempts, next_attempt_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		entry.ID, entry.Kind, entry.CorrelationID, payload,
		string(entry.Status), entry.Attempts, entry.NextAttemptAt, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

// GetDue returns pending entries whose next attempt time has passed, oldest
// first so per-correlation order is preserved across polls.
func (r *OutboxRepository) GetDue(ctx context.Context, limit int) ([]*outbox.Entry, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.db(ctx).Query(ctx,
		`SELECT id, kind, correlation_id, payload, status, attempts, next_attempt_at, created_at, dispatched_at
		 FROM outbox
		 WHERE status = 'pending' AND next_attempt_at <= NOW()
		 ORDER BY created_at ASC
		 LIMIT $1
		 FOR UPDATE SKIP LOCKED`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("get due outbox entries: %w", err)
	}
	defer rows.Close()

	var entries []*outbox.Entry
	for rows.Next() {
		e := &outbox.Entry{}
		var payload []byte
		var status string
		if err := rows.Scan(&e.ID, &e.Kind, &e.CorrelationID, &payload, &status, &e.Attempts, &e.NextAttemptAt, &e.CreatedAt, &e.DispatchedAt); err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		e.Status = outbox.DispatchStatus(status)
		if len(payload) > 0 {
			e.Payload = make(map[string]any)
			if err := json.Unmarshal(payload, &e.Payload); err != nil {
				return nil, fmt.Errorf("unmarshal outbox payload: %w", err)
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *OutboxRepository) MarkDispatched(ctx context.Context, id uuid.UUID) error {
	now := time.Now()
	_, err := r.db(ctx).Exec(ctx,
		`UPDATE outbox SET status = 'dispatched', dispatched_at = $1 WHERE id = $2`, now, id,
	)
	if err != nil {
		return fmt.Errorf("mark outbox dispatched: %w", err)
	}
	return nil
}

// RecordAttempt bumps the attempt counter and reschedules. The entry stays
// pending: dispatch failures delay an event, they never discard it.
func (r *OutboxRepository) RecordAttempt(ctx context.Context, id uuid.UUID, nextAttemptAt time.Time) error {
	_, err := r.db(ctx).Exec(ctx,
		`UPDATE outbox SET attempts = attempts + 1, next_attempt_at = $1 WHERE id = $2`,
		nextAttemptAt, id,
	)
	if err != nil {
		return fmt.Errorf("record outbox attempt: %w", err)
	}
	return nil
}

// CountPendingByCorrelation counts undispatched entries for the correlation
// created before the given time. A publisher uses it to hold an event back
// until its predecessors have gone out.
func (r *OutboxRepository) CountPendingByCorrelation(ctx context.Context, correlationID uuid.UUID, before time.Time) (int, error) {
	var count int
	err := r.db(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM outbox
		 WHERE correlation_id = $1 AND status = 'pending' AND created_at < $2`,
		correlationID, before,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count pending by correlation: %w", err)
	}
	return count, nil
}
