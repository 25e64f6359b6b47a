package controller

import (
	"time"

	appPayment "github.com/cassiomorais/paycore/internal/application/payment"
	"github.com/cassiomorais/paycore/internal/application/webhook"
	"github.com/cassiomorais/paycore/internal/domain/idempotency"
	"github.com/cassiomorais/paycore/internal/infrastructure/config"
	"github.com/cassiomorais/paycore/internal/infrastructure/observability"
	customMW "github.com/cassiomorais/paycore/internal/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type RouterDeps struct {
	Pool              *pgxpool.Pool
	RedisClient       *redis.Client
	Initiate          *appPayment.InitiateUseCase
	Queries           *appPayment.Queries
	AddMethod         *appPayment.AddMethodUseCase
	RemoveMethod      *appPayment.RemoveMethodUseCase
	SetDefaultMethod  *appPayment.SetDefaultMethodUseCase
	WebhookSigner     *webhook.Signer
	WebhookReconciler *webhook.Reconciler
	IdempotencyRepo   idempotency.Repository
	Metrics           *observability.Metrics
	CORSConfig        config.CORSConfig
	JWTSecret         string
	Logger            zerolog.Logger
}

func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(customMW.Tracing())
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))
	r.Use(customMW.SecurityHeaders())
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.CORSConfig.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: deps.CORSConfig.AllowCredentials,
		MaxAge:           300,
	}))
	r.Use(customMW.Metrics(deps.Metrics))

	healthH := NewHealthController(deps.Pool, deps.RedisClient)
	paymentH := NewPaymentController(deps.Initiate, deps.Queries)
	methodH := NewMethodController(deps.AddMethod, deps.RemoveMethod, deps.SetDefaultMethod, deps.Queries)
	webhookH := NewWebhookController(deps.WebhookSigner, deps.WebhookReconciler, deps.Logger)

	r.Get("/health", healthH.Health)
	r.Get("/health/live", healthH.Liveness)
	r.Get("/health/ready", healthH.Readiness)

	r.Handle("/metrics", promhttp.Handler())

	// Gateway callbacks authenticate by signature, not bearer token.
	r.With(customMW.RateLimit(customMW.WebhookRequestsPerMinute)).Post("/webhooks/gateway", webhookH.HandleGatewayCallback)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(customMW.RequireAuth(deps.JWTSecret))
		r.Use(customMW.RateLimit(customMW.APIRequestsPerMinute))

		idempotencyMW := customMW.Idempotency(deps.IdempotencyRepo)

		// Payments
		r.With(idempotencyMW).Post("/payments", paymentH.InitiatePayment)
		r.Get("/payments/{id}", paymentH.GetPayment)
		r.Get("/payments", paymentH.ListPayments)

		// Payment methods
		r.With(idempotencyMW).Post("/payment-methods", methodH.AddMethod)
		r.Get("/payment-methods", methodH.ListMethods)
		r.Delete("/payment-methods/{id}", methodH.RemoveMethod)
		r.Put("/payment-methods/{id}/default", methodH.SetDefaultMethod)
	})

	return r
}
