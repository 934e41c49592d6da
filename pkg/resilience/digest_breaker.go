// Package resilience wraps external collaborator calls with a circuit
// breaker and bounded retry. Every network adapter (LLM, weather,
// geolocation) goes through a Breaker so a dead collaborator degrades the
// digest instead of stalling it.
package resilience

import (
	"context"
	"time"

	"github.com/sony/gobreaker"

	"github.com/jkoufopoulos/shopq-prototype-sub001/pkg/logger"
)

// BreakerConfig holds circuit breaker settings for one collaborator.
type BreakerConfig struct {
	Name             string
	FailureThreshold uint32        // consecutive failures before opening (default 5)
	OpenTimeout      time.Duration // time in open before half-open probe (default 30s)
	MaxHalfOpen      uint32        // concurrent probes in half-open (default 1)
}

// DefaultBreakerConfig returns sensible defaults for a named collaborator.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:             name,
		FailureThreshold: 5,
		OpenTimeout:      30 * time.Second,
		MaxHalfOpen:      1,
	}
}

// Breaker protects calls to one external collaborator.
type Breaker struct {
	cb *gobreaker.CircuitBreaker
}

// NewBreaker creates a circuit breaker from the given config.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.OpenTimeout == 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	if cfg.MaxHalfOpen == 0 {
		cfg.MaxHalfOpen = 1
	}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxHalfOpen,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state change")
		},
	}

	return &Breaker{cb: gobreaker.NewCircuitBreaker(settings)}
}

// Execute runs fn through the breaker.
func (b *Breaker) Execute(fn func() error) error {
	_, err := b.cb.Execute(func() (any, error) {
		return nil, fn()
	})
	return err
}

// State returns the breaker state as a string (for health reporting).
func (b *Breaker) State() string {
	return b.cb.State().String()
}

// Retry runs fn up to maxAttempts times, backing off between attempts and
// stopping early when retryable returns false or the context is done.
func Retry(ctx context.Context, maxAttempts int, backoff time.Duration, retryable func(error) bool, fn func() error) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt == maxAttempts || !retryable(err) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff * time.Duration(attempt)):
		}
	}
	return err
}
