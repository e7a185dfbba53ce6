package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/Adithya-Monish-Kumar-K/term-proximity-network/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/term-proximity-network/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/term-proximity-network/pkg/resilience"
)

// Guarded decorates a Retriever with a token-bucket rate limit, a circuit
// breaker, exponential retry and a per-call timeout. Empty results are
// neither retried nor counted as breaker failures.
type Guarded struct {
	name    string
	next    Retriever
	limiter *rate.Limiter
	breaker *resilience.CircuitBreaker
	retry   resilience.RetryConfig
	timeout time.Duration
	logger  *slog.Logger
}

// GuardOption customises a Guarded retriever.
type GuardOption func(*resilience.CircuitBreakerConfig)

// WithStateChange registers a breaker transition hook, typically a metrics
// gauge update.
func WithStateChange(fn func(name string, from, to resilience.State)) GuardOption {
	return func(c *resilience.CircuitBreakerConfig) { c.OnStateChange = fn }
}

// NewGuarded wraps next. A zero RatePerSecond disables rate limiting.
func NewGuarded(name string, next Retriever, cfg config.RetrievalConfig, opts ...GuardOption) *Guarded {
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	cbCfg := resilience.CircuitBreakerConfig{
		FailureThreshold: cfg.FailureThreshold,
		ResetTimeout:     cfg.ResetTimeout,
		IsFailure:        countsAsFailure,
	}
	for _, opt := range opts {
		opt(&cbCfg)
	}
	return &Guarded{
		name:    name,
		next:    next,
		limiter: rate.NewLimiter(limit, burst),
		breaker: resilience.NewCircuitBreaker("retrieval-"+name, cbCfg),
		retry: resilience.RetryConfig{
			MaxAttempts:  cfg.MaxAttempts,
			InitialDelay: cfg.InitialBackoff,
			Retryable:    retryable,
		},
		timeout: cfg.Timeout,
		logger:  slog.Default().With("component", "retrieval", "source", name),
	}
}

// Retrieve implements Retriever. Every failure is returned as *Error.
func (g *Guarded) Retrieve(ctx context.Context, query string, max int) ([]Document, error) {
	var docs []Document
	err := resilience.Retry(ctx, "retrieve-"+g.name, g.retry, func() error {
		if err := g.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%w: %w", apperrors.ErrRateLimited, err)
		}
		return g.breaker.Execute(func() error {
			var got []Document
			err := resilience.WithTimeout(ctx, g.timeout, "retrieve", func(ctx context.Context) error {
				var err error
				got, err = g.next.Retrieve(ctx, query, max)
				return err
			})
			if err != nil {
				return err
			}
			if len(got) == 0 {
				return ErrNoResults
			}
			docs = got
			return nil
		})
	})
	if err != nil {
		var rerr *Error
		if errors.As(err, &rerr) {
			return nil, err
		}
		g.logger.Warn("retrieval failed", "query", query, "error", err)
		return nil, &Error{Source: g.name, Query: query, Err: err}
	}
	if len(docs) > max && max > 0 {
		docs = docs[:max]
	}
	return docs, nil
}

// BreakerState returns the current circuit breaker state.
func (g *Guarded) BreakerState() resilience.State {
	return g.breaker.GetState()
}

func countsAsFailure(err error) bool {
	return !errors.Is(err, ErrNoResults) &&
		!errors.Is(err, apperrors.ErrInvalidInput) &&
		!errors.Is(err, context.Canceled)
}

func retryable(err error) bool {
	switch {
	case errors.Is(err, ErrNoResults),
		errors.Is(err, resilience.ErrCircuitOpen),
		errors.Is(err, apperrors.ErrRateLimited),
		errors.Is(err, apperrors.ErrInvalidInput),
		errors.Is(err, context.Canceled):
		return false
	}
	return true
}
