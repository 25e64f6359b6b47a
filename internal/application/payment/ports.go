package payment

import (
	"context"

	"github.com/google/uuid"
)

// TransactionManager defines the interface for database transaction
// management. This is an application-layer port, not a domain concern.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// ReconcileQueue accepts transactions whose gateway outcome is unknown so a
// worker can drive them to resolution later.
type ReconcileQueue interface {
	Enqueue(ctx context.Context, transactionID uuid.UUID, attempt int) error
}
