package dispatch

import (
	"runtime"

	"golang.org/x/time/rate"
)

// Option is a functional option for configuring one dispatch call.
type Option func(*dispatchConfig)

type dispatchConfig struct {
	maxWorkers int
	verbose    bool
	limiter    *rate.Limiter
}

func newDispatchConfig(opts ...Option) *dispatchConfig {
	cfg := &dispatchConfig{
		maxWorkers: runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// workersFor caps the pool size at the task count: a fixed batch of n
// tasks never benefits from more than n workers.
func (c *dispatchConfig) workersFor(n int) int {
	if n < c.maxWorkers {
		return n
	}
	return c.maxWorkers
}

// WithMaxWorkers bounds the pool size for one dispatch call.
// If not specified, defaults to runtime.GOMAXPROCS(0).
func WithMaxWorkers(count int) Option {
	return func(cfg *dispatchConfig) {
		if count > 0 {
			cfg.maxWorkers = count
		}
	}
}

// WithVerbose forwards the verbosity flag to every adapter invocation
// of the call. Verbosity is always an explicit per-call value; there is
// no process-wide switch.
func WithVerbose(verbose bool) Option {
	return func(cfg *dispatchConfig) {
		cfg.verbose = verbose
	}
}

// WithRateLimit throttles adapter invocations for the call.
// tasksPerSecond specifies the maximum invocation rate and burst the
// maximum number of invocations allowed at once. Useful when the
// workload hits an external service. If not specified, no rate
// limiting is applied.
//
// Example:
//
//	WithRateLimit(10, 5) // Allow 10 tasks/sec with burst of 5
func WithRateLimit(tasksPerSecond float64, burst int) Option {
	return func(cfg *dispatchConfig) {
		if tasksPerSecond > 0 && burst > 0 {
			cfg.limiter = rate.NewLimiter(rate.Limit(tasksPerSecond), burst)
		}
	}
}
