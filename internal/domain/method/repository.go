package method

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the interface for payment method persistence.
// SwapDefault is the only way a default flag moves between methods: it
// atomically unsets the owner's current default and sets the new one inside
// a single store transaction, so no interleaving leaves an owner with zero
// or two defaults.
type Repository interface {
	// Create creates a new payment method
	Create(ctx context.Context, m *PaymentMethod) error

	// GetByID retrieves a payment method by ID
	GetByID(ctx context.Context, id uuid.UUID) (*PaymentMethod, error)

	// GetDefaultByOwner retrieves the owner's default method, if any
	GetDefaultByOwner(ctx context.Context, ownerID uuid.UUID) (*PaymentMethod, error)

	// ListByOwner lists an owner's payment methods
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*PaymentMethod, error)

	// Update applies a version-gated update
	Update(ctx context.Context, m *PaymentMethod) error

	// SwapDefault atomically makes id the owner's sole default
	SwapDefault(ctx context.Context, ownerID, id uuid.UUID) error

	// Delete removes a payment method
	Delete(ctx context.Context, id uuid.UUID) error
}
