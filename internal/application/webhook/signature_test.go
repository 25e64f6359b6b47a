package webhook_test

import (
	"errors"
	"testing"

	"github.com/cassiomorais/paycore/internal/application/webhook"
	domainErrors "github.com/cassiomorais/paycore/internal/domain/errors"
)

func TestSignVerify(t *testing.T) {
	signer := webhook.NewSigner("shared-secret")
	body := []byte(`{"callback_id":"cb_1"}`)

	sig := signer.Sign(body)
	if err := signer.Verify(body, sig); err != nil {
		t.Fatalf("valid signature rejected: %v", err)
	}
}

func TestVerify_Rejections(t *testing.T) {
	signer := webhook.NewSigner("shared-secret")
	body := []byte(`{"callback_id":"cb_1"}`)
	sig := signer.Sign(body)

	tests := []struct {
		name string
		body []byte
		sig  string
	}{
		{"tampered body", []byte(`{"callback_id":"cb_2"}`), sig},
		{"wrong secret", body, webhook.NewSigner("other-secret").Sign(body)},
		{"not hex", body, "zzzz"},
		{"empty signature", body, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := signer.Verify(tt.body, tt.sig); !errors.Is(err, domainErrors.ErrInvalidSignature) {
				t.Errorf("expected ErrInvalidSignature, got %v", err)
			}
		})
	}
}
