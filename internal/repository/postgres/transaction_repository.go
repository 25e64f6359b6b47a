package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	domainErrors "github.com/cassiomorais/paycore/internal/domain/errors"
	"github.com/cassiomorais/paycore/internal/domain/transaction"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const transactionColumns = `id, owner_id, amount_minor, currency, status, payment_method_id,
	charge_key, external_ref, error_reason, version, created_at, updated_at`

// TransactionRepository implements transaction.Repository using PostgreSQL.
type TransactionRepository struct {
	pool *pgxpool.Pool
}

// NewTransactionRepository creates a new TransactionRepository.
func NewTransactionRepository(pool *pgxpool.Pool) *TransactionRepository {
	return &TransactionRepository{pool: pool}
}

func (r *TransactionRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

// scanner is satisfied by both pgx.Row and pgx.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// Create inserts a new transaction.
func (r *TransactionRepository) Create(ctx context.Context, t *transaction.Transaction) error {
	_, err := r.db(ctx).Exec(ctx,
		`INSERT INTO transactions
		 (id, owner_id, amount_minor, currency, status, payment_method_id,
		  charge_key, external_ref, error_reason, version, created_at, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		t.ID, t.OwnerID, t.Amount.MinorUnits, t.Amount.Currency, string(t.Status), t.PaymentMethodID,
		t.ChargeKey, t.ExternalRef, t.ErrorReason, t.Version, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domainErrors.ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// GetByID retrieves a transaction by its ID.
func (r *TransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error) {
	return r.scanTransaction(r.db(ctx).QueryRow(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id))
}

// GetByExternalRef retrieves a transaction by its gateway reference.
func (r *TransactionRepository) GetByExternalRef(ctx context.Context, ref string) (*transaction.Transaction, error) {
	return r.scanTransaction(r.db(ctx).QueryRow(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE external_ref = $1`, ref))
}

// GetByChargeKey retrieves a transaction by its charge idempotency key.
func (r *TransactionRepository) GetByChargeKey(ctx context.Context, key string) (*transaction.Transaction, error) {
	return r.scanTransaction(r.db(ctx).QueryRow(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE charge_key = $1`, key))
}

// Update persists the transaction guarded by its version. The WHERE clause
// matches the version the caller loaded; zero affected rows means a
// concurrent writer got there first.
func (r *TransactionRepository) Update(ctx context.Context, t *transaction.Transaction) error {
	tag, err := r.db(ctx).Exec(ctx,
		`UPDATE transactions SET
		  status=$1, external_ref=$2, error_reason=$3, version=version+1, updated_at=$4
		 WHERE id=$5 AND version=$6`,
		string(t.Status), t.ExternalRef, t.ErrorReason, t.UpdatedAt, t.ID, t.Version,
	)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrVersionConflict
	}
	t.Version++
	return nil
}

// ListByOwner lists the owner's transactions, newest first.
func (r *TransactionRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]*transaction.Transaction, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db(ctx).Query(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		 WHERE owner_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`, ownerID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txns []*transaction.Transaction
	for rows.Next() {
		t, err := r.scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txns = append(txns, t)
	}
	return txns, rows.Err()
}

// ListStaleNonTerminal lists non-terminal transactions whose last update is
// older than the given cutoff, oldest first. The sweep worker uses it to
// pick up transactions stranded by a crash or a lost reconcile enqueue.
func (r *TransactionRepository) ListStaleNonTerminal(ctx context.Context, olderThan time.Time, limit int) ([]*transaction.Transaction, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db(ctx).Query(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		 WHERE status IN ('pending', 'processing') AND updated_at < $1
		 ORDER BY updated_at
		 LIMIT $2`, olderThan, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list stale transactions: %w", err)
	}
	defer rows.Close()

	var txns []*transaction.Transaction
	for rows.Next() {
		t, err := r.scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txns = append(txns, t)
	}
	return txns, rows.Err()
}

// CountOpenByMethod counts non-terminal transactions referencing a method.
func (r *TransactionRepository) CountOpenByMethod(ctx context.Context, methodID uuid.UUID) (int, error) {
	var count int
	err := r.db(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM transactions
		 WHERE payment_method_id = $1 AND status IN ('pending', 'processing')`, methodID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count open transactions: %w", err)
	}
	return count, nil
}

// scanTransaction scans a transaction from any source implementing the scanner interface.
func (r *TransactionRepository) scanTransaction(s scanner) (*transaction.Transaction, error) {
	t := &transaction.Transaction{}
	var status string
	err := s.Scan(
		&t.ID, &t.OwnerID, &t.Amount.MinorUnits, &t.Amount.Currency, &status, &t.PaymentMethodID,
		&t.ChargeKey, &t.ExternalRef, &t.ErrorReason, &t.Version, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domainErrors.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("scan transaction: %w", err)
	}
	t.Status = transaction.Status(status)
	return t, nil
}
