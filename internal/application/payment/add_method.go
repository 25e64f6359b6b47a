package payment

import (
	"context"
	"errors"
	"fmt"

	domainErrors "github.com/cassiomorais/paycore/internal/domain/errors"
	"github.com/cassiomorais/paycore/internal/domain/method"
	"github.com/cassiomorais/paycore/internal/gateway"
	"github.com/google/uuid"
)

// AddMethodInput carries the fields for vaulting a new payment method.
type AddMethodInput struct {
	OwnerID         uuid.UUID
	Type            method.Type
	InstrumentProof string
	MakeDefault     bool
	GatewayName     string
}

// AddMethodUseCase tokenizes an instrument with the gateway and stores the
// resulting method. Raw instrument data never touches the database; only the
// gateway token and display fields are persisted.
type AddMethodUseCase struct {
	methodRepo     method.Repository
	gatewayFactory *gateway.Factory
}

// NewAddMethodUseCase creates a new AddMethodUseCase.
func NewAddMethodUseCase(methodRepo method.Repository, gatewayFactory *gateway.Factory) *AddMethodUseCase {
	return &AddMethodUseCase{methodRepo: methodRepo, gatewayFactory: gatewayFactory}
}

// Execute tokenizes and stores the method. The owner's first method becomes
// the default regardless of MakeDefault.
func (uc *AddMethodUseCase) Execute(ctx context.Context, in AddMethodInput) (*method.PaymentMethod, error) {
	gw, _, err := uc.gatewayFactory.Get(in.GatewayName)
	if err != nil {
		return nil, err
	}

	tok, err := gw.Tokenize(ctx, gateway.TokenizeRequest{
		OwnerID:         in.OwnerID,
		Type:            in.Type,
		InstrumentProof: in.InstrumentProof,
	})
	if err != nil {
		return nil, fmt.Errorf("tokenize instrument: %w", err)
	}

	m, err := method.New(in.OwnerID, in.Type, tok.Token, tok.Brand, tok.LastFour)
	if err != nil {
		return nil, err
	}

	makeDefault := in.MakeDefault
	if !makeDefault {
		if _, err := uc.methodRepo.GetDefaultByOwner(ctx, in.OwnerID); err != nil {
			if !errors.Is(err, domainErrors.ErrMethodNotFound) {
				return nil, err
			}
			makeDefault = true
		}
	}

	if err := uc.methodRepo.Create(ctx, m); err != nil {
		return nil, err
	}

	if makeDefault {
		if err := uc.methodRepo.SwapDefault(ctx, in.OwnerID, m.ID); err != nil {
			return nil, err
		}
		m.SetDefault()
	}

	return m, nil
}
