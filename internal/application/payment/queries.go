package payment

import (
	"context"

	domainErrors "github.com/cassiomorais/paycore/internal/domain/errors"
	"github.com/cassiomorais/paycore/internal/domain/method"
	"github.com/cassiomorais/paycore/internal/domain/transaction"
	"github.com/google/uuid"
)

// Queries exposes the read side of the payment API. Lookups are scoped to
// the requesting owner.
type Queries struct {
	txRepo     transaction.Repository
	methodRepo method.Repository
}

// NewQueries creates a new Queries.
func NewQueries(txRepo transaction.Repository, methodRepo method.Repository) *Queries {
	return &Queries{txRepo: txRepo, methodRepo: methodRepo}
}

// GetTransaction returns a single transaction owned by ownerID.
func (q *Queries) GetTransaction(ctx context.Context, ownerID, transactionID uuid.UUID) (*transaction.Transaction, error) {
	t, err := q.txRepo.GetByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if t.OwnerID != ownerID {
		// Existence of other owners' transactions is not disclosed.
		return nil, domainErrors.ErrTransactionNotFound
	}
	return t, nil
}

// ListTransactions returns a page of the owner's transactions, newest first.
func (q *Queries) ListTransactions(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]*transaction.Transaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return q.txRepo.ListByOwner(ctx, ownerID, limit, offset)
}

// ListPaymentMethods returns every stored method for the owner.
func (q *Queries) ListPaymentMethods(ctx context.Context, ownerID uuid.UUID) ([]*method.PaymentMethod, error) {
	return q.methodRepo.ListByOwner(ctx, ownerID)
}
