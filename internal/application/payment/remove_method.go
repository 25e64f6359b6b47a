package payment

import (
	"context"

	domainErrors "github.com/cassiomorais/paycore/internal/domain/errors"
	"github.com/cassiomorais/paycore/internal/domain/method"
	"github.com/cassiomorais/paycore/internal/domain/transaction"
	"github.com/google/uuid"
)

// RemoveMethodUseCase deletes a vaulted payment method.
type RemoveMethodUseCase struct {
	methodRepo method.Repository
	txRepo     transaction.Repository
}

// NewRemoveMethodUseCase creates a new RemoveMethodUseCase.
func NewRemoveMethodUseCase(methodRepo method.Repository, txRepo transaction.Repository) *RemoveMethodUseCase {
	return &RemoveMethodUseCase{methodRepo: methodRepo, txRepo: txRepo}
}

// Execute removes the method. A method referenced by a transaction that is
// still pending or processing cannot be removed; the open transaction must
// settle first. Removing the default leaves the owner with no default until
// one is chosen explicitly.
func (uc *RemoveMethodUseCase) Execute(ctx context.Context, ownerID, methodID uuid.UUID) error {
	m, err := uc.methodRepo.GetByID(ctx, methodID)
	if err != nil {
		return err
	}
	if !m.BelongsTo(ownerID) {
		return domainErrors.ErrMethodNotFound
	}

	open, err := uc.txRepo.CountOpenByMethod(ctx, methodID)
	if err != nil {
		return err
	}
	if open > 0 {
		return domainErrors.ErrMethodInUse
	}

	return uc.methodRepo.Delete(ctx, methodID)
}
