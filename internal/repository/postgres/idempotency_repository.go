package postgres

import (
	"context"
	"fmt"

	"github.com/cassiomorais/paycore/internal/domain/idempotency"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type IdempotencyRepository struct {
	pool *pgxpool.Pool
}

func NewIdempotencyRepository(pool *pgxpool.Pool) *IdempotencyRepository {
	return &IdempotencyRepository{pool: pool}
}

func (r *IdempotencyRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

func (r *IdempotencyRepository) Get(ctx context.Context, kind, key string) (*idempotency.Record, error) {
	rec := &idempotency.Record{}
	err := r.db(ctx).QueryRow(ctx,
		`SELECT kind, key, response_body, response_status, created_at, expires_at
		 FROM idempotency_keys WHERE kind = $1 AND key = $2 AND expires_at > NOW()`, kind, key,
	).Scan(&rec.Kind, &rec.Key, &rec.ResponseBody, &rec.ResponseStatus, &rec.CreatedAt, &rec.ExpiresAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil // not found
		}
		return nil, fmt.Errorf("get idempotency record: %w", err)
	}
	return rec, nil
}

func (r *IdempotencyRepository) Set(ctx context.Context, rec *idempotency.Record) error {
	_, err := r.db(ctx).Exec(ctx,
		`INSERT INTO idempotency_keys (kind, key, response_body, response_status, created_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (kind, key) DO UPDATE SET response_body = EXCLUDED.response_body, response_status = EXCLUDED.response_status`,
		rec.Kind, rec.Key, rec.ResponseBody, rec.ResponseStatus, rec.CreatedAt, rec.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("set idempotency record: %w", err)
	}
	return nil
}

func (r *IdempotencyRepository) Cleanup(ctx context.Context) (int64, error) {
	tag, err := r.db(ctx).Exec(ctx, `DELETE FROM idempotency_keys WHERE expires_at < NOW()`)
	if err != nil {
		return 0, fmt.Errorf("cleanup idempotency records: %w", err)
	}
	return tag.RowsAffected(), nil
}
