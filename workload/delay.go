package workload

import (
	"context"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/poolbench/poolbench/dispatch"
)

// NameDelayedReturn is the registry name of the delay workload.
const NameDelayedReturn = "delayed_return"

const (
	defaultSecondsMean  = 1.0
	defaultSecondsSigma = 0.25
)

// DelayedReturn is the I/O-bound synthetic workload: it sleeps and then
// returns the task index it was given.
//
// The sleep lasts Seconds when set, otherwise a duration drawn from a
// normal distribution with mean SecondsMean and standard deviation
// SecondsSigma. Draws at or below zero skip the sleep entirely.
type DelayedReturn struct {
	Seconds      *float64 `cbor:"seconds,omitempty"`
	SecondsMean  float64  `cbor:"seconds_mean"`
	SecondsSigma float64  `cbor:"seconds_sigma"`
}

// NewDelayedReturn returns a DelayedReturn drawing its sleep from
// N(1s, 0.25s).
func NewDelayedReturn() *DelayedReturn {
	return &DelayedReturn{
		SecondsMean:  defaultSecondsMean,
		SecondsSigma: defaultSecondsSigma,
	}
}

// NewFixedDelay returns a DelayedReturn sleeping exactly the given
// number of seconds; zero makes the workload deterministic and instant.
func NewFixedDelay(seconds float64) *DelayedReturn {
	d := NewDelayedReturn()
	d.Seconds = &seconds
	return d
}

func (d *DelayedReturn) Name() string { return NameDelayedReturn }

// Invoke sleeps, then returns the index. The sleep honors ctx
// cancellation; an interrupted sleep fails the invocation.
func (d *DelayedReturn) Invoke(ctx context.Context, index int, verbose bool) (int, time.Duration, error) {
	run := dispatch.Timed(func() (int, error) {
		return d.run(ctx, index, verbose)
	})
	return run()
}

func (d *DelayedReturn) run(ctx context.Context, index int, verbose bool) (int, error) {
	if verbose {
		zap.L().Info("starting delayed return", zap.Int("value", index))
	}

	seconds := d.SecondsMean + rand.NormFloat64()*d.SecondsSigma
	if d.Seconds != nil {
		seconds = *d.Seconds
	}
	if seconds > 0 {
		if err := sleep(ctx, time.Duration(seconds*float64(time.Second))); err != nil {
			return 0, err
		}
	}

	if verbose {
		zap.L().Info("returning delayed value", zap.Int("value", index))
	}
	return index, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
