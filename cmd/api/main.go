package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	appPayment "github.com/cassiomorais/paycore/internal/application/payment"
	"github.com/cassiomorais/paycore/internal/application/webhook"
	"github.com/cassiomorais/paycore/internal/bootstrap"
	"github.com/cassiomorais/paycore/internal/controller"
	"github.com/cassiomorais/paycore/internal/gateway"
	infraRedis "github.com/cassiomorais/paycore/internal/infrastructure/redis"
	"github.com/cassiomorais/paycore/internal/repository/postgres"
)

func main() {
	ctx := context.Background()

	app, err := bootstrap.New(ctx, "paycore-api", "paycore")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	// --- Repositories ---
	txRepo := postgres.NewTransactionRepository(app.Pool)
	methodRepo := postgres.NewMethodRepository(app.Pool)
	outboxRepo := postgres.NewOutboxRepository(app.Pool)
	idempotencyRepo := postgres.NewIdempotencyRepository(app.Pool)
	txManager := postgres.NewTxManager(app.Pool)

	// --- Application services ---
	gatewayFactory := gateway.NewFactory()
	reconcileQueue := infraRedis.NewReconcileProducer(app.Redis)
	applier := appPayment.NewOutcomeApplier(txRepo, outboxRepo, txManager, app.Metrics, app.Logger)
	initiateUC := appPayment.NewInitiateUseCase(
		txRepo, methodRepo, outboxRepo, txManager,
		gatewayFactory, applier, reconcileQueue,
		app.Config.Gateway.ChargeTimeout, app.Logger,
	)
	queries := appPayment.NewQueries(txRepo, methodRepo)
	addMethodUC := appPayment.NewAddMethodUseCase(methodRepo, gatewayFactory)
	removeMethodUC := appPayment.NewRemoveMethodUseCase(methodRepo, txRepo)
	setDefaultUC := appPayment.NewSetDefaultMethodUseCase(methodRepo)

	signer := webhook.NewSigner(app.Config.Gateway.WebhookSecret)
	reconciler := webhook.NewReconciler(txRepo, idempotencyRepo, applier, app.Metrics, app.Logger)

	// --- Build router ---
	router := controller.NewRouter(controller.RouterDeps{
		Pool:              app.Pool,
		RedisClient:       app.Redis,
		Initiate:          initiateUC,
		Queries:           queries,
		AddMethod:         addMethodUC,
		RemoveMethod:      removeMethodUC,
		SetDefaultMethod:  setDefaultUC,
		WebhookSigner:     signer,
		WebhookReconciler: reconciler,
		IdempotencyRepo:   idempotencyRepo,
		Metrics:           app.Metrics,
		CORSConfig:        app.Config.Server.CORS,
		JWTSecret:         app.Config.Auth.JWTSecret,
		Logger:            app.Logger,
	})

	// --- HTTP server ---
	addr := fmt.Sprintf(":%d", app.Config.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  app.Config.Server.ReadTimeout,
		WriteTimeout: app.Config.Server.WriteTimeout,
		IdleTimeout:  app.Config.Server.IdleTimeout,
	}

	go func() {
		app.Logger.Info().Str("addr", addr).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			app.Logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	app.Logger.Info().Msg("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), app.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		app.Logger.Error().Err(err).Msg("Server forced to shutdown")
	}
	app.Logger.Info().Msg("Server exited")
}
