package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sony/gobreaker"
)

const (
	failureThreshold = 3
	resetTimeout     = 2 * time.Minute
)

// ErrAllProvidersOpen is returned when every provider's circuit is open.
var ErrAllProvidersOpen = errors.New("all AI provider circuits are open")

type guardedOracle struct {
	oracle     Oracle
	breaker    *gobreaker.CircuitBreaker
	authFailed atomic.Bool
}

// Chain tries each oracle in order, skipping those whose circuit is open.
type Chain struct {
	guards   []*guardedOracle
	mu       sync.RWMutex
	current  string
	fallback bool
}

// ChainOption configures a Chain.
type ChainOption func(*gobreaker.Settings)

// WithResetTimeout sets how long an open circuit waits before a probe call.
func WithResetTimeout(d time.Duration) ChainOption {
	return func(s *gobreaker.Settings) { s.Timeout = d }
}

func NewChain(oracles []Oracle, opts ...ChainOption) *Chain {
	c := &Chain{}
	for _, o := range oracles {
		g := &guardedOracle{oracle: o}
		st := gobreaker.Settings{
			Name:        o.Name(),
			MaxRequests: 1,
			Timeout:     resetTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return g.authFailed.Load() || counts.ConsecutiveFailures >= failureThreshold
			},
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, context.Canceled) || !isRetriableError(err) && !isAuthError(err)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				slog.Debug("ai: circuit breaker state change", "provider", name, "from", from.String(), "to", to.String())
			},
		}
		for _, opt := range opts {
			opt(&st)
		}
		g.breaker = gobreaker.NewCircuitBreaker(st)
		c.guards = append(c.guards, g)
	}
	if len(oracles) > 0 {
		c.current = oracles[0].Name()
	}
	return c
}

func (c *Chain) Name() string { return "chain" }

func (c *Chain) Available(ctx context.Context) bool {
	for _, g := range c.guards {
		if g.breaker.State() != gobreaker.StateOpen && g.oracle.Available(ctx) {
			return true
		}
	}
	return false
}

func (c *Chain) Generate(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	var usedFallback bool

	for _, g := range c.guards {
		name := g.oracle.Name()
		out, err := g.breaker.Execute(func() (interface{}, error) {
			text, err := g.oracle.Generate(ctx, prompt)
			g.authFailed.Store(isAuthError(err))
			return text, err
		})
		if err == nil {
			c.mu.Lock()
			c.current = name
			c.fallback = usedFallback
			c.mu.Unlock()
			if usedFallback {
				slog.Info("ai: provider succeeded after failover", "provider", name)
			}
			return out.(string), nil
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			slog.Debug("ai: circuit open, skipping provider", "provider", name)
			continue
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if isAuthError(err) {
			slog.Warn("ai: auth error, opening circuit", "provider", name, "error", err)
		} else {
			slog.Warn("ai: provider failed, trying next", "provider", name, "error", err)
		}
		lastErr = err
		usedFallback = true
	}

	if lastErr == nil {
		return "", ErrAllProvidersOpen
	}
	return "", fmt.Errorf("all AI providers failed; last error: %w", lastErr)
}

// CurrentProvider reports the provider that answered last and whether it
// was reached through failover.
func (c *Chain) CurrentProvider() (provider string, fallback bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current, c.fallback
}

// ProviderState is one provider's circuit state.
type ProviderState struct {
	Provider string `json:"provider"`
	State    string `json:"state"`
}

// States lists the circuit state of every provider in order.
func (c *Chain) States() []ProviderState {
	out := make([]ProviderState, 0, len(c.guards))
	for _, g := range c.guards {
		out = append(out, ProviderState{Provider: g.oracle.Name(), State: g.breaker.State().String()})
	}
	return out
}

func isRetriableError(err error) bool {
	if err == nil {
		return false
	}

	errStr := err.Error()
	switch {
	case strings.Contains(errStr, "status 429"), strings.Contains(errStr, "429"):
		return true
	case strings.Contains(errStr, "status 5"):
		return true
	case strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded") ||
		strings.Contains(errStr, "connection refused"):
		return true
	case strings.Contains(errStr, "status 4"):
		return false
	default:
		return true
	}
}

func isAuthError(err error) bool {
	if err == nil {
		return false
	}

	errStr := err.Error()
	return strings.Contains(errStr, "status 401") || strings.Contains(errStr, "status 403") ||
		strings.Contains(errStr, "401 Unauthorized") || strings.Contains(errStr, "403 Forbidden")
}
