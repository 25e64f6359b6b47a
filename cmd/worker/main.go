package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	appPayment "github.com/cassiomorais/paycore/internal/application/payment"
	"github.com/cassiomorais/paycore/internal/bootstrap"
	"github.com/cassiomorais/paycore/internal/gateway"
	infraRedis "github.com/cassiomorais/paycore/internal/infrastructure/redis"
	"github.com/cassiomorais/paycore/internal/publisher"
	"github.com/cassiomorais/paycore/internal/repository/postgres"
	"github.com/cassiomorais/paycore/pkg/retry"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := bootstrap.New(ctx, "paycore-worker", "paycore_worker")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	// --- Repositories ---
	txRepo := postgres.NewTransactionRepository(app.Pool)
	methodRepo := postgres.NewMethodRepository(app.Pool)
	outboxRepo := postgres.NewOutboxRepository(app.Pool)
	txManager := postgres.NewTxManager(app.Pool)

	// --- Use cases ---
	gatewayFactory := gateway.NewFactory()
	applier := appPayment.NewOutcomeApplier(txRepo, outboxRepo, txManager, app.Metrics, app.Logger)
	reconcileUC := appPayment.NewReconcileChargeUseCase(txRepo, methodRepo, gatewayFactory, applier, app.Logger)
	reconcileQueue := infraRedis.NewReconcileProducer(app.Redis)
	sweeper := appPayment.NewStaleSweeper(
		txRepo,
		reconcileQueue,
		app.Config.Worker.StaleAfter,
		app.Config.Worker.SweepInterval,
		int(app.Config.Worker.BatchSize),
		app.Logger,
	)

	// --- Outbox publisher ---
	pubCfg := app.Config.Publisher
	sink := infraRedis.NewEventProducer(app.Redis, pubCfg.Stream)
	pub := publisher.New(outboxRepo, sink, txManager, publisher.Options{
		BatchSize:    pubCfg.BatchSize,
		PollInterval: pubCfg.PollInterval,
		Backoff: retry.Config{
			InitialDelay: pubCfg.InitialDelay,
			MaxDelay:     pubCfg.MaxDelay,
		},
		AlertAttempts: pubCfg.AlertAttempts,
	}, app.Metrics, app.Logger)

	// --- Reconcile stream consumer ---
	workerCfg := app.Config.Worker
	consumer := infraRedis.NewStreamConsumer(
		app.Redis,
		infraRedis.ReconcileStream,
		workerCfg.ConsumerGroup,
		app.Config.InstanceID,
		workerCfg.BatchSize,
		workerCfg.BlockDuration,
	)
	if err := consumer.CreateGroup(ctx); err != nil {
		app.Logger.Error().Err(err).Msg("Failed to create consumer group (may already exist)")
	}

	app.Logger.Info().
		Str("stream", infraRedis.ReconcileStream).
		Str("group", workerCfg.ConsumerGroup).
		Str("consumer", app.Config.InstanceID).
		Msg("Worker started, listening for messages...")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	g, gCtx := errgroup.WithContext(ctx)

	// 1. Outbox publisher (polls outbox table and publishes to Redis Streams).
	g.Go(func() error {
		return pub.Run(gCtx)
	})

	// 2. Reconcile worker (reads transaction ids from Redis Streams).
	g.Go(func() error {
		return runReconciler(gCtx, app, consumer, reconcileUC, reconcileQueue)
	})

	// 3. Stale sweep (requeues transactions stranded by a crash or a lost
	// enqueue).
	g.Go(func() error {
		return sweeper.Run(gCtx)
	})

	// 4. Wait for shutdown signal.
	g.Go(func() error {
		select {
		case <-gCtx.Done():
			return gCtx.Err()
		case <-quit:
			app.Logger.Info().Msg("Shutting down worker...")
			cancel()
			return nil
		}
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		app.Logger.Error().Err(err).Msg("Worker error")
	}
	app.Logger.Info().Msg("Worker exited")
}

func runReconciler(
	ctx context.Context,
	app *bootstrap.App,
	consumer *infraRedis.StreamConsumer,
	reconcileUC *appPayment.ReconcileChargeUseCase,
	reconcileQueue *infraRedis.ReconcileProducer,
) error {
	logger := app.Logger
	gatewayName := app.Config.Gateway.Default
	backoff := retry.Config{
		InitialDelay: app.Config.Worker.ReconcileDelay,
		MaxDelay:     5 * time.Minute,
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		streams, err := consumer.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Error().Err(err).Msg("Failed to read from stream")
			time.Sleep(1 * time.Second)
			continue
		}

		for _, stream := range streams {
			for _, msg := range stream.Messages {
				idStr, _ := msg.Values["transaction_id"].(string)
				transactionID, err := uuid.Parse(idStr)
				if err != nil {
					logger.Error().Str("raw", idStr).Msg("Invalid transaction ID in stream message")
					consumer.Ack(ctx, msg.ID)
					continue
				}
				attempt := parseAttempt(msg.Values["attempt"])

				resolved, err := reconcileUC.Execute(ctx, transactionID, gatewayName)
				switch {
				case resolved:
					app.Metrics.ReconcileAttempts.WithLabelValues("resolved").Inc()
				case err != nil:
					app.Metrics.ReconcileAttempts.WithLabelValues("retry").Inc()
					requeueLater(ctx, logger, reconcileQueue, transactionID, attempt+1, backoff, app.Config.Worker.MaxAttempts)
				}
				consumer.Ack(ctx, msg.ID)
			}
		}
	}
}

// requeueLater schedules another reconcile attempt after a jittered backoff.
// The wait happens in a goroutine so one stubborn transaction does not stall
// the whole consumer. Attempts past the cap alert operators but keep
// retrying at the max delay: an ambiguous charge is never abandoned.
func requeueLater(
	ctx context.Context,
	logger zerolog.Logger,
	queue *infraRedis.ReconcileProducer,
	transactionID uuid.UUID,
	attempt int,
	backoff retry.Config,
	maxAttempts int,
) {
	if attempt >= maxAttempts {
		logger.Error().
			Str("transaction_id", transactionID.String()).
			Int("attempt", attempt).
			Msg("reconcile attempts exceeded threshold, needs operator attention")
	}

	delay := retry.Backoff(backoff, attempt, nil)
	go func() {
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		enqCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := queue.Enqueue(enqCtx, transactionID, attempt); err != nil {
			logger.Error().Err(err).Str("transaction_id", transactionID.String()).Msg("failed to requeue reconcile")
		}
	}()
}

func parseAttempt(v any) int {
	switch t := v.(type) {
	case string:
		n, _ := strconv.Atoi(t)
		return n
	case int64:
		return int(t)
	default:
		return 0
	}
}
