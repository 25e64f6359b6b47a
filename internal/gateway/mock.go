package gateway

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	domainErrors "github.com/cassiomorais/paycore/internal/domain/errors"
	"github.com/google/uuid"
)

// MockGateway simulates an external processor. Charges are memoized by
// idempotency key: a repeated key returns the recorded result instead of
// creating a second charge, matching real gateway idempotency semantics.
type MockGateway struct {
	name        string
	latency     time.Duration
	declineRate float64 // 0.0 to 1.0
	timeoutRate float64 // 0.0 to 1.0

	declineAll    bool
	declineReason string

	// number of upcoming charges that are recorded as succeeded but
	// reported as a timeout (charge happened, ack was lost)
	unackedSuccesses int

	mu      sync.Mutex
	charges map[string]*ChargeResult
	calls   int
}

type MockGatewayOption func(*MockGateway)

func WithLatency(d time.Duration) MockGatewayOption {
	return func(g *MockGateway) { g.latency = d }
}

func WithDeclineRate(rate float64) MockGatewayOption {
	return func(g *MockGateway) { g.declineRate = rate }
}

func WithTimeoutRate(rate float64) MockGatewayOption {
	return func(g *MockGateway) { g.timeoutRate = rate }
}

// WithDeclineAll makes every charge a business decline with the given reason.
func WithDeclineAll(reason string) MockGatewayOption {
	return func(g *MockGateway) {
		g.declineAll = true
		g.declineReason = reason
	}
}

// WithUnackedSuccesses makes the next n charges succeed remotely while the
// caller sees a timeout. A retry with the same idempotency key observes the
// recorded success.
func WithUnackedSuccesses(n int) MockGatewayOption {
	return func(g *MockGateway) { g.unackedSuccesses = n }
}

func NewMockGateway(name string, opts ...MockGatewayOption) *MockGateway {
	g := &MockGateway{
		name:    name,
		latency: 0,
		charges: make(map[string]*ChargeResult),
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

func (g *MockGateway) Name() string { return g.name }

func (g *MockGateway) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	if g.latency > 0 {
		select {
		case <-time.After(g.latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if req.IdempotencyKey == "" {
		return nil, domainErrors.NewValidationError("idempotency_key", "cannot be empty")
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++

	// Idempotent replay: an already-recorded key returns the original result.
	if res, ok := g.charges[req.IdempotencyKey]; ok {
		cp := *res
		return &cp, nil
	}

	if g.unackedSuccesses > 0 {
		g.unackedSuccesses--
		g.charges[req.IdempotencyKey] = &ChargeResult{
			Status:    ChargeSucceeded,
			Reference: g.newReference(),
		}
		return nil, domainErrors.ErrGatewayTimeout
	}

	if g.timeoutRate > 0 && rand.Float64() < g.timeoutRate {
		// Nothing recorded: the charge never reached the processor.
		return nil, domainErrors.ErrGatewayTimeout
	}

	if g.declineAll || (g.declineRate > 0 && rand.Float64() < g.declineRate) {
		reason := g.declineReason
		if reason == "" {
			reason = "card declined"
		}
		res := &ChargeResult{Status: ChargeDeclined, DeclineReason: reason}
		g.charges[req.IdempotencyKey] = res
		cp := *res
		return &cp, nil
	}

	res := &ChargeResult{Status: ChargeSucceeded, Reference: g.newReference()}
	g.charges[req.IdempotencyKey] = res
	cp := *res
	return &cp, nil
}

func (g *MockGateway) Tokenize(ctx context.Context, req TokenizeRequest) (*TokenizeResult, error) {
	if g.latency > 0 {
		select {
		case <-time.After(g.latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if req.InstrumentProof == "" || strings.HasPrefix(req.InstrumentProof, "invalid") {
		return nil, domainErrors.ErrInvalidInstrument
	}

	return &TokenizeResult{
		Token:    fmt.Sprintf("%s_tok_%s", g.name, uuid.New().String()[:8]),
		Brand:    "visa",
		LastFour: "4242",
	}, nil
}

// RecordedCharge returns the memoized result for an idempotency key, if any.
// Test helper.
func (g *MockGateway) RecordedCharge(key string) (*ChargeResult, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	res, ok := g.charges[key]
	if !ok {
		return nil, false
	}
	cp := *res
	return &cp, true
}

// ChargeCalls returns how many Charge calls reached the gateway. Test helper.
func (g *MockGateway) ChargeCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func (g *MockGateway) newReference() string {
	return fmt.Sprintf("%s_ch_%s", g.name, uuid.New().String()[:8])
}
