package idempotency

import (
	"context"
	"time"
)

// Operation kinds guarded by idempotency records.
const (
	KindWebhook = "webhook"
	KindHTTP    = "http"
)

// Record stores the outcome of a completed guarded operation, keyed by
// (kind, key). A retried request or redelivered webhook finds the record and
// returns the original result instead of re-executing side effects.
type Record struct {
	Kind           string
	Key            string
	ResponseBody   string
	ResponseStatus int
	CreatedAt      time.Time
	ExpiresAt      time.Time
}

// Repository defines the interface for idempotency record persistence.
type Repository interface {
	// Get returns the record for (kind, key), or nil when absent or expired
	Get(ctx context.Context, kind, key string) (*Record, error)

	// Set stores a record for (kind, key)
	Set(ctx context.Context, rec *Record) error

	// Cleanup removes expired records and returns how many were deleted
	Cleanup(ctx context.Context) (int64, error)
}
