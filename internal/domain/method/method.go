package method

import (
	"time"

	"github.com/cassiomorais/paycore/internal/domain/errors"
	"github.com/google/uuid"
)

// Type represents the kind of payment instrument behind a method.
type Type string

const (
	TypeCard   Type = "card"
	TypeBank   Type = "bank"
	TypeWallet Type = "wallet"
)

// PaymentMethod is a tokenized payment instrument held in the vault.
// The raw instrument never enters this system; only the gateway-side token
// and masked display data are stored.
type PaymentMethod struct {
	ID        uuid.UUID
	OwnerID   uuid.UUID
	Type      Type
	Brand     string
	LastFour  string
	Token     string // opaque gateway-side token
	IsDefault bool
	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// New creates a payment method from a gateway tokenization result.
func New(ownerID uuid.UUID, methodType Type, token, brand, lastFour string) (*PaymentMethod, error) {
	if ownerID == uuid.Nil {
		return nil, errors.NewValidationError("owner_id", "cannot be empty")
	}
	if token == "" {
		return nil, errors.NewValidationError("token", "cannot be empty")
	}
	switch methodType {
	case TypeCard, TypeBank, TypeWallet:
	default:
		return nil, errors.NewValidationError("type", "must be card, bank or wallet")
	}

	now := time.Now()
	return &PaymentMethod{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		Type:      methodType,
		Brand:     brand,
		LastFour:  lastFour,
		Token:     token,
		IsDefault: false,
		Version:   0,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// SetDefault flags the method as the owner's default.
func (m *PaymentMethod) SetDefault() {
	m.IsDefault = true
	m.UpdatedAt = time.Now()
}

// UnsetDefault clears the default flag.
func (m *PaymentMethod) UnsetDefault() {
	m.IsDefault = false
	m.UpdatedAt = time.Now()
}

// BelongsTo reports whether the method is owned by the given owner.
func (m *PaymentMethod) BelongsTo(ownerID uuid.UUID) bool {
	return m.OwnerID == ownerID
}
