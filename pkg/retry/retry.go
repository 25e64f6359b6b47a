package retry

import (
	"context"
	"time"

	"github.com/avast/retry-go/v4"
)

// Config holds retry configuration
type Config struct {
	MaxAttempts  uint
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// DefaultConfig returns default retry configuration
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  5,
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
	}
}

// Do executes a function with jittered exponential backoff retry. The jitter
// spreads concurrent retriers so they do not hammer a recovering dependency
// in lockstep.
func Do(ctx context.Context, cfg Config, fn func() error) error {
	return retry.Do(
		fn,
		retry.Context(ctx),
		retry.Attempts(cfg.MaxAttempts),
		retry.Delay(cfg.InitialDelay),
		retry.MaxDelay(cfg.MaxDelay),
		retry.MaxJitter(cfg.InitialDelay/2),
		retry.DelayType(retry.CombineDelay(retry.BackOffDelay, retry.RandomDelay)),
		retry.LastErrorOnly(true),
	)
}

// DoWithResult executes a function with jittered exponential backoff retry
// and returns a result.
func DoWithResult[T any](ctx context.Context, cfg Config, fn func() (T, error)) (T, error) {
	var result T
	err := Do(ctx, cfg, func() error {
		var err error
		result, err = fn()
		return err
	})
	return result, err
}

// Backoff returns the jittered delay before attempt n (0-based), capped at
// MaxDelay. Used by pollers that schedule their own next attempt instead of
// blocking in Do.
func Backoff(cfg Config, attempt int, jitter func(time.Duration) time.Duration) time.Duration {
	d := cfg.InitialDelay
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= cfg.MaxDelay {
			d = cfg.MaxDelay
			break
		}
	}
	if jitter != nil {
		d += jitter(cfg.InitialDelay)
	}
	if d > cfg.MaxDelay {
		d = cfg.MaxDelay
	}
	return d
}
