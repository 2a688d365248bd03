package resilience

import (
	"errors"
	"fmt"
	"log/slog"
)

// ErrAllBackendsFailed is returned when every backend in a [Failover] fails
// or sits behind an open breaker.
var ErrAllBackendsFailed = errors.New("resilience: all backends failed")

// FailoverConfig configures the per-backend breaker created for each entry in
// a [Failover].
type FailoverConfig struct {
	Breaker BreakerConfig
}

// backend pairs one provider value with its dedicated breaker.
type backend[T any] struct {
	name    string
	value   T
	breaker *Breaker
}

// Failover tries a primary and zero or more fallbacks of the same provider
// type in registration order. Backends with an open breaker are skipped.
//
// Failover is safe for concurrent use once construction (Add calls) is done.
type Failover[T any] struct {
	backends []backend[T]
	cfg      FailoverConfig
	logger   *slog.Logger
}

// NewFailover creates a [Failover] with primary as the first backend.
func NewFailover[T any](primary T, name string, cfg FailoverConfig) *Failover[T] {
	logger := cfg.Breaker.Logger
	if logger == nil {
		logger = slog.Default()
	}
	f := &Failover[T]{cfg: cfg, logger: logger}
	f.Add(name, primary)
	return f
}

// Add appends a fallback backend. Backends are tried in insertion order.
func (f *Failover[T]) Add(name string, value T) {
	cfg := f.cfg.Breaker
	cfg.Name = name
	f.backends = append(f.backends, backend[T]{
		name:    name,
		value:   value,
		breaker: NewBreaker(cfg),
	})
}

// Try runs fn against each backend in order until one succeeds. A
// package-level function because Go has no method-level type parameters.
func Try[T, R any](f *Failover[T], fn func(T) (R, error)) (R, error) {
	var (
		lastErr error
		zero    R
	)
	for i := range f.backends {
		b := &f.backends[i]
		var result R
		err := b.breaker.Do(func() error {
			var callErr error
			result, callErr = fn(b.value)
			return callErr
		})
		if err == nil {
			return result, nil
		}
		lastErr = err
		if errors.Is(err, ErrBreakerOpen) {
			f.logger.Debug("skipping backend, breaker open", "backend", b.name)
		} else {
			f.logger.Warn("backend failed, trying next", "backend", b.name, "error", err)
		}
	}
	return zero, fmt.Errorf("%w: %v", ErrAllBackendsFailed, lastErr)
}
