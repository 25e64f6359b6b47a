package postgres

import (
	"context"
	"fmt"

	domainErrors "github.com/cassiomorais/paycore/internal/domain/errors"
	"github.com/cassiomorais/paycore/internal/domain/method"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const methodColumns = `id, owner_id, method_type, brand, last_four, token, is_default,
	version, created_at, updated_at`

// MethodRepository implements method.Repository using PostgreSQL.
type MethodRepository struct {
	pool *pgxpool.Pool
}

// NewMethodRepository creates a new MethodRepository.
func NewMethodRepository(pool *pgxpool.Pool) *MethodRepository {
	return &MethodRepository{pool: pool}
}

func (r *MethodRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

// Create inserts a new payment method.
func (r *MethodRepository) Create(ctx context.Context, m *method.PaymentMethod) error {
	_, err := r.db(ctx).Exec(ctx,
		`INSERT INTO payment_methods
		 (id, owner_id, method_type, brand, last_four, token, is_default, version, created_at, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		m.ID, m.OwnerID, string(m.Type), m.Brand, m.LastFour, m.Token, m.IsDefault,
		m.Version, m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert payment method: %w", err)
	}
	return nil
}

// GetByID retrieves a payment method by its ID.
func (r *MethodRepository) GetByID(ctx context.Context, id uuid.UUID) (*method.PaymentMethod, error) {
	return r.scanMethod(r.db(ctx).QueryRow(ctx,
		`SELECT `+methodColumns+` FROM payment_methods WHERE id = $1`, id))
}

// GetDefaultByOwner retrieves the owner's default payment method.
func (r *MethodRepository) GetDefaultByOwner(ctx context.Context, ownerID uuid.UUID) (*method.PaymentMethod, error) {
	return r.scanMethod(r.db(ctx).QueryRow(ctx,
		`SELECT `+methodColumns+` FROM payment_methods WHERE owner_id = $1 AND is_default`, ownerID))
}

// ListByOwner lists the owner's payment methods, default first.
func (r *MethodRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*method.PaymentMethod, error) {
	rows, err := r.db(ctx).Query(ctx,
		`SELECT `+methodColumns+` FROM payment_methods
		 WHERE owner_id = $1
		 ORDER BY is_default DESC, created_at DESC`, ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list payment methods: %w", err)
	}
	defer rows.Close()

	var methods []*method.PaymentMethod
	for rows.Next() {
		m, err := r.scanMethod(rows)
		if err != nil {
			return nil, err
		}
		methods = append(methods, m)
	}
	return methods, rows.Err()
}

// Update persists the method guarded by its version.
func (r *MethodRepository) Update(ctx context.Context, m *method.PaymentMethod) error {
	tag, err := r.db(ctx).Exec(ctx,
		`UPDATE payment_methods SET
		  brand=$1, last_four=$2, is_default=$3, version=version+1, updated_at=$4
		 WHERE id=$5 AND version=$6`,
		m.Brand, m.LastFour, m.IsDefault, m.UpdatedAt, m.ID, m.Version,
	)
	if err != nil {
		return fmt.Errorf("update payment method: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrVersionConflict
	}
	m.Version++
	return nil
}

// SwapDefault unsets the owner's current default and sets the given method
// in one database transaction, so a partial unique index on
// (owner_id) WHERE is_default never sees two defaults.
func (r *MethodRepository) SwapDefault(ctx context.Context, ownerID, id uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx,
		`UPDATE payment_methods SET is_default = FALSE, version = version + 1, updated_at = NOW()
		 WHERE owner_id = $1 AND is_default`, ownerID,
	); err != nil {
		return fmt.Errorf("unset default: %w", err)
	}

	tag, err := tx.Exec(ctx,
		`UPDATE payment_methods SET is_default = TRUE, version = version + 1, updated_at = NOW()
		 WHERE id = $1 AND owner_id = $2`, id, ownerID,
	)
	if err != nil {
		return fmt.Errorf("set default: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrMethodNotFound
	}

	return tx.Commit(ctx)
}

// Delete removes a payment method.
func (r *MethodRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db(ctx).Exec(ctx, `DELETE FROM payment_methods WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete payment method: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrMethodNotFound
	}
	return nil
}

func (r *MethodRepository) scanMethod(s scanner) (*method.PaymentMethod, error) {
	m := &method.PaymentMethod{}
	var methodType string
	err := s.Scan(
		&m.ID, &m.OwnerID, &methodType, &m.Brand, &m.LastFour, &m.Token, &m.IsDefault,
		&m.Version, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domainErrors.ErrMethodNotFound
		}
		return nil, fmt.Errorf("scan payment method: %w", err)
	}
	m.Type = method.Type(methodType)
	return m, nil
}
