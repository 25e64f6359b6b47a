package publisher

import (
	"context"
	"math/rand"
	"time"

	"github.com/cassiomorais/paycore/internal/domain/outbox"
	"github.com/cassiomorais/paycore/internal/infrastructure/observability"
	"github.com/cassiomorais/paycore/pkg/retry"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// EventSink is where drained envelopes go, normally a Redis stream.
type EventSink interface {
	Publish(ctx context.Context, env outbox.Envelope) error
}

// TxManager scopes a drain batch to one database transaction, which keeps
// the row locks from FOR UPDATE SKIP LOCKED held while the batch publishes.
type TxManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Options tunes the drain loop.
type Options struct {
	BatchSize     int
	PollInterval  time.Duration
	Backoff       retry.Config
	AlertAttempts int
}

func (o *Options) withDefaults() {
	if o.BatchSize <= 0 {
		o.BatchSize = 50
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 2 * time.Second
	}
	if o.Backoff.InitialDelay <= 0 {
		o.Backoff = retry.DefaultConfig()
	}
	if o.AlertAttempts <= 0 {
		o.AlertAttempts = 10
	}
}

// Publisher drains the outbox to an event sink. Delivery is at least once:
// an entry is marked dispatched only after the sink accepted it, and a
// failed publish reschedules the entry rather than dropping it. Entries
// sharing a correlation id go out in creation order.
type Publisher struct {
	repo      outbox.Repository
	sink      EventSink
	txManager TxManager
	opts      Options
	metrics   *observability.Metrics
	logger    zerolog.Logger
}

// New creates a Publisher.
func New(repo outbox.Repository, sink EventSink, txManager TxManager, opts Options, metrics *observability.Metrics, logger zerolog.Logger) *Publisher {
	opts.withDefaults()
	return &Publisher{
		repo:      repo,
		sink:      sink,
		txManager: txManager,
		opts:      opts,
		metrics:   metrics,
		logger:    logger,
	}
}

// Run polls until the context is canceled.
func (p *Publisher) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.opts.PollInterval)
	defer ticker.Stop()

	p.logger.Info().Dur("poll_interval", p.opts.PollInterval).Msg("outbox publisher started")

	for {
		select {
		case <-ctx.Done():
			p.logger.Info().Msg("outbox publisher stopping")
			return ctx.Err()
		case <-ticker.C:
			if err := p.DrainOnce(ctx); err != nil && ctx.Err() == nil {
				p.logger.Error().Err(err).Msg("outbox drain failed")
			}
		}
	}
}

// DrainOnce publishes one batch of due entries. The batch runs inside a
// database transaction so the SKIP LOCKED rows stay claimed by this instance
// until their status updates commit.
func (p *Publisher) DrainOnce(ctx context.Context) error {
	return p.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		entries, err := p.repo.GetDue(txCtx, p.opts.BatchSize)
		if err != nil {
			return err
		}
		p.metrics.PendingEvents.Set(float64(len(entries)))
		if len(entries) == 0 {
			return nil
		}

		// Correlations that hit a failure in this batch: their later
		// entries are skipped so ordering within the correlation holds.
		blocked := make(map[uuid.UUID]bool)

		for _, e := range entries {
			if blocked[e.CorrelationID] {
				continue
			}

			// An older sibling may still be pending from an earlier batch,
			// waiting out its backoff. Publishing this entry now would
			// reorder the correlation.
			older, err := p.repo.CountPendingByCorrelation(txCtx, e.CorrelationID, e.CreatedAt)
			if err != nil {
				return err
			}
			if older > 0 {
				blocked[e.CorrelationID] = true
				continue
			}

			if err := p.publish(txCtx, e); err != nil {
				blocked[e.CorrelationID] = true
			}
		}
		return nil
	})
}

func (p *Publisher) publish(ctx context.Context, e *outbox.Entry) error {
	if err := p.sink.Publish(ctx, e.Envelope()); err != nil {
		p.metrics.PublishRetries.WithLabelValues(e.Kind).Inc()
		attempts := e.Attempts + 1
		if attempts >= p.opts.AlertAttempts {
			p.metrics.StuckEvents.Inc()
			p.logger.Error().
				Str("entry_id", e.ID.String()).
				Str("kind", e.Kind).
				Int("attempts", attempts).
				Msg("outbox entry stuck, needs operator attention")
		} else {
			p.logger.Warn().
				Err(err).
				Str("entry_id", e.ID.String()).
				Int("attempts", attempts).
				Msg("publish failed, rescheduling")
		}

		next := time.Now().Add(retry.Backoff(p.opts.Backoff, attempts, jitter))
		if rErr := p.repo.RecordAttempt(ctx, e.ID, next); rErr != nil {
			p.logger.Error().Err(rErr).Str("entry_id", e.ID.String()).Msg("failed to record publish attempt")
		}
		return err
	}

	if err := p.repo.MarkDispatched(ctx, e.ID); err != nil {
		// The event went out but the mark failed; the next drain republishes
		// it. Consumers must dedupe on event_id, which at-least-once
		// delivery requires of them anyway.
		p.logger.Error().Err(err).Str("entry_id", e.ID.String()).Msg("failed to mark entry dispatched")
		return err
	}

	p.metrics.EventsPublished.WithLabelValues(e.Kind).Inc()
	return nil
}

// jitter spreads retries from concurrent publisher instances.
func jitter(base time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(base)))
}
