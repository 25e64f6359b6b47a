package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	domainErrors "github.com/cassiomorais/paycore/internal/domain/errors"
)

// Signer verifies gateway callback signatures. The gateway signs the raw
// request body with HMAC-SHA256 over a shared secret and sends the digest
// hex-encoded.
type Signer struct {
	secret []byte
}

// NewSigner creates a Signer for the given shared secret.
func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

// Sign returns the hex-encoded HMAC-SHA256 digest of body.
func (s *Signer) Sign(body []byte) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks signature against the expected digest for body in constant
// time. An unverifiable delivery is rejected before any payload field is
// looked at.
func (s *Signer) Verify(body []byte, signature string) error {
	got, err := hex.DecodeString(signature)
	if err != nil {
		return domainErrors.ErrInvalidSignature
	}
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(body)
	if !hmac.Equal(got, mac.Sum(nil)) {
		return domainErrors.ErrInvalidSignature
	}
	return nil
}
