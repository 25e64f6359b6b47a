package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	// Insert stages a new entry (always inside the caller's transaction)
	Insert(ctx context.Context, entry *Entry) error

	// GetDue returns pending entries whose next attempt time has passed,
	// oldest first, locked against concurrent pollers
	GetDue(ctx context.Context, limit int) ([]*Entry, error)

	// MarkDispatched marks an entry as delivered
	MarkDispatched(ctx context.Context, id uuid.UUID) error

	// RecordAttempt increments the attempt counter and schedules the next try
	RecordAttempt(ctx context.Context, id uuid.UUID, nextAttemptAt time.Time) error

	// CountPendingByCorrelation counts pending entries staged before the given
	// entry for the same correlation id (used to preserve per-correlation order)
	CountPendingByCorrelation(ctx context.Context, correlationID uuid.UUID, before time.Time) (int, error)
}
