package scanning

import (
	"context"
	"fmt"
	"time"
)

// DefaultProviderTimeout bounds every external provider call.
const DefaultProviderTimeout = 30 * time.Second

// attempt is the outcome of one provider call: a value or an error, never both
type attempt[T any] struct {
	source  Source
	value   T
	err     error
	elapsed time.Duration
}

// firstSuccess runs attempts 0..n-1 in order and stops at the first one accept approves.
// It returns that attempt and its index, or the last attempt and -1 when none is accepted.
func firstSuccess[T any](n int, run func(i int) attempt[T], accept func(attempt[T]) bool) (attempt[T], int) {
	var last attempt[T]
	for i := 0; i < n; i++ {
		last = run(i)
		if accept(last) {
			return last, i
		}
	}
	return last, -1
}

// callWithTimeout runs fn bounded by timeout. A provider that ignores its context
// is abandoned when the deadline passes; a panicking provider counts as a failure.
func callWithTimeout[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("provider panic: %v", r)}
			}
		}()
		v, err := fn(ctx)
		done <- result{value: v, err: err}
	}()

	select {
	case r := <-done:
		return r.value, r.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// ChainOption configures an OCRChain or AnalysisChain
type ChainOption func(*chainConfig)

type chainConfig struct {
	timeout time.Duration
	metrics *Metrics
	now     func() time.Time
}

func newChainConfig(opts []ChainOption) chainConfig {
	cfg := chainConfig{timeout: DefaultProviderTimeout, now: time.Now}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithTimeout overrides the per-provider timeout
func WithTimeout(d time.Duration) ChainOption {
	return func(c *chainConfig) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithMetrics records attempts and outcomes on m
func WithMetrics(m *Metrics) ChainOption {
	return func(c *chainConfig) {
		c.metrics = m
	}
}

// WithClock sets the clock used for the terminal fallback date
func WithClock(now func() time.Time) ChainOption {
	return func(c *chainConfig) {
		if now != nil {
			c.now = now
		}
	}
}
