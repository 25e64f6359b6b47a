package payment

import (
	"context"
	"time"

	"github.com/cassiomorais/paycore/internal/domain/transaction"
	"github.com/rs/zerolog"
)

// StaleSweeper re-enqueues transactions that stopped moving. A crash between
// the create commit and the charge, or a failed reconcile enqueue, leaves a
// pending or processing row that no webhook or stream message will ever
// touch again; the sweep is the recovery path that puts those rows back on
// the reconcile queue.
type StaleSweeper struct {
	txRepo     transaction.Repository
	queue      ReconcileQueue
	staleAfter time.Duration
	interval   time.Duration
	batchSize  int
	logger     zerolog.Logger
}

// NewStaleSweeper creates a new StaleSweeper. staleAfter should comfortably
// exceed the charge timeout so in-flight transactions are never swept.
func NewStaleSweeper(
	txRepo transaction.Repository,
	queue ReconcileQueue,
	staleAfter time.Duration,
	interval time.Duration,
	batchSize int,
	logger zerolog.Logger,
) *StaleSweeper {
	if staleAfter <= 0 {
		staleAfter = 5 * time.Minute
	}
	if interval <= 0 {
		interval = time.Minute
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &StaleSweeper{
		txRepo:     txRepo,
		queue:      queue,
		staleAfter: staleAfter,
		interval:   interval,
		batchSize:  batchSize,
		logger:     logger,
	}
}

// Run sweeps on the configured interval until the context is cancelled.
func (s *StaleSweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx); err != nil {
				s.logger.Error().Err(err).Msg("stale transaction sweep failed")
			}
		}
	}
}

// SweepOnce enqueues one batch of stale transactions for reconciliation and
// returns how many were enqueued. Enqueue failures are logged and skipped;
// the next sweep sees the same rows again.
func (s *StaleSweeper) SweepOnce(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-s.staleAfter)
	stale, err := s.txRepo.ListStaleNonTerminal(ctx, cutoff, s.batchSize)
	if err != nil {
		return 0, err
	}

	enqueued := 0
	for _, t := range stale {
		if err := s.queue.Enqueue(ctx, t.ID, 0); err != nil {
			s.logger.Error().
				Err(err).
				Str("transaction_id", t.ID.String()).
				Msg("failed to enqueue stale transaction")
			continue
		}
		enqueued++
		s.logger.Warn().
			Str("transaction_id", t.ID.String()).
			Str("status", string(t.Status)).
			Time("updated_at", t.UpdatedAt).
			Msg("stale transaction queued for reconciliation")
	}
	return enqueued, nil
}
