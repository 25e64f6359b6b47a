package transaction

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for transaction persistence.
// Update is version-gated: the write succeeds only when the stored version
// matches the version the caller read, and bumps it by one. A mismatch is
// reported as errors.ErrVersionConflict, never silently overwritten.
type Repository interface {
	// Create creates a new transaction
	Create(ctx context.Context, t *Transaction) error

	// GetByID retrieves a transaction by ID
	GetByID(ctx context.Context, id uuid.UUID) (*Transaction, error)

	// GetByExternalRef retrieves a transaction by its gateway reference
	GetByExternalRef(ctx context.Context, ref string) (*Transaction, error)

	// GetByChargeKey retrieves a transaction by its derived charge key
	GetByChargeKey(ctx context.Context, key string) (*Transaction, error)

	// Update applies a version-gated update
	Update(ctx context.Context, t *Transaction) error

	// ListByOwner lists an owner's transactions, newest first
	ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]*Transaction, error)

	// ListStaleNonTerminal lists non-terminal transactions untouched since
	// olderThan, oldest first
	ListStaleNonTerminal(ctx context.Context, olderThan time.Time, limit int) ([]*Transaction, error)

	// CountOpenByMethod counts non-terminal transactions referencing a payment method
	CountOpenByMethod(ctx context.Context, methodID uuid.UUID) (int, error)
}
