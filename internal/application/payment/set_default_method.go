package payment

import (
	"context"

	domainErrors "github.com/cassiomorais/paycore/internal/domain/errors"
	"github.com/cassiomorais/paycore/internal/domain/method"
	"github.com/google/uuid"
)

// SetDefaultMethodUseCase marks one of the owner's methods as the default.
type SetDefaultMethodUseCase struct {
	methodRepo method.Repository
}

// NewSetDefaultMethodUseCase creates a new SetDefaultMethodUseCase.
func NewSetDefaultMethodUseCase(methodRepo method.Repository) *SetDefaultMethodUseCase {
	return &SetDefaultMethodUseCase{methodRepo: methodRepo}
}

// Execute makes methodID the owner's default. The previous default is
// unset in the same database transaction so at most one default exists at
// any point.
func (uc *SetDefaultMethodUseCase) Execute(ctx context.Context, ownerID, methodID uuid.UUID) (*method.PaymentMethod, error) {
	m, err := uc.methodRepo.GetByID(ctx, methodID)
	if err != nil {
		return nil, err
	}
	if !m.BelongsTo(ownerID) {
		return nil, domainErrors.ErrMethodNotFound
	}

	if m.IsDefault {
		return m, nil
	}

	if err := uc.methodRepo.SwapDefault(ctx, ownerID, methodID); err != nil {
		return nil, err
	}
	m.SetDefault()
	return m, nil
}
