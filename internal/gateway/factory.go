package gateway

import (
	"fmt"
	"time"

	domainErrors "github.com/cassiomorais/paycore/internal/domain/errors"
	"github.com/sony/gobreaker/v2"
)

// Factory creates and caches gateway instances with circuit breakers.
type Factory struct {
	gateways        map[string]Gateway
	circuitBreakers map[string]*gobreaker.CircuitBreaker[*ChargeResult]
	defaultName     string
}

// NewFactory creates a new gateway factory with the given gateways.
// If none are given, a default mock gateway is registered. The first
// registered gateway serves requests that name no gateway.
func NewFactory(gateways ...Gateway) *Factory {
	f := &Factory{
		gateways:        make(map[string]Gateway),
		circuitBreakers: make(map[string]*gobreaker.CircuitBreaker[*ChargeResult]),
	}

	if len(gateways) == 0 {
		f.Register(NewMockGateway("stripe",
			WithLatency(200*time.Millisecond),
		))
	} else {
		for _, g := range gateways {
			f.Register(g)
		}
	}

	return f
}

// Register registers a gateway and creates a circuit breaker for it.
func (f *Factory) Register(g Gateway) {
	if f.defaultName == "" {
		f.defaultName = g.Name()
	}
	f.gateways[g.Name()] = g
	f.circuitBreakers[g.Name()] = gobreaker.NewCircuitBreaker[*ChargeResult](gobreaker.Settings{
		Name:        g.Name(),
		MaxRequests: 10,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 10 && failureRatio >= 0.6
		},
	})
}

// Get returns the gateway and its circuit breaker for the given name.
// An empty name selects the default gateway.
func (f *Factory) Get(name string) (Gateway, *gobreaker.CircuitBreaker[*ChargeResult], error) {
	if name == "" {
		name = f.defaultName
	}
	g, ok := f.gateways[name]
	if !ok {
		return nil, nil, fmt.Errorf("gateway %q: %w", name, domainErrors.ErrGatewayNotFound)
	}
	return g, f.circuitBreakers[name], nil
}
