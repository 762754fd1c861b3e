package workload

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/poolbench/poolbench/dispatch"
)

// NameLongFactorize is the registry name of the factorization workload.
const NameLongFactorize = "long_factorize"

const defaultFactorizeBase = 100000001

// Factorization is the value produced by LongFactorize: the integer
// that was factorized and its greatest non-trivial factor pair, with
// F1*F2 == Value. A prime Value yields (1, Value).
type Factorization struct {
	Value int64 `cbor:"value"`
	F1    int64 `cbor:"f1"`
	F2    int64 `cbor:"f2"`
}

// LongFactorize is the CPU-bound synthetic workload: it finds the
// greatest non-trivial factor pair of Base+index by decrementing trial
// division, deliberately the slowest way to do it.
type LongFactorize struct {
	Base int64 `cbor:"base"`
}

// NewLongFactorize returns a LongFactorize over the default base of
// 100000001, which keeps a single task in the hundreds-of-milliseconds
// range on current hardware.
func NewLongFactorize() *LongFactorize {
	return &LongFactorize{Base: defaultFactorizeBase}
}

func (f *LongFactorize) Name() string { return NameLongFactorize }

// Invoke factorizes Base+index. The search runs to completion once
// started; ctx is accepted for interface symmetry only.
func (f *LongFactorize) Invoke(_ context.Context, index int, verbose bool) (Factorization, time.Duration, error) {
	run := dispatch.Timed(func() (Factorization, error) {
		return f.run(index, verbose), nil
	})
	return run()
}

func (f *LongFactorize) run(index int, verbose bool) Factorization {
	value := f.Base + int64(index)
	if verbose {
		zap.L().Info("finding factors",
			zap.Int64("base", f.Base),
			zap.Int("offset", index),
			zap.Int64("value", value))
	}

	guess := value / 2
	for guess > 1 && value%guess != 0 {
		guess--
	}
	if guess < 1 {
		guess = 1
	}

	result := Factorization{Value: value, F1: guess, F2: value / guess}
	if verbose {
		zap.L().Info("found factors",
			zap.Int64("value", result.Value),
			zap.Int64("f1", result.F1),
			zap.Int64("f2", result.F2))
	}
	return result
}

func init() {
	dispatch.RegisterWorkload(NameDelayedReturn, func() dispatch.Adapter[int] {
		return NewDelayedReturn()
	})
	dispatch.RegisterWorkload(NameLongFactorize, func() dispatch.Adapter[Factorization] {
		return NewLongFactorize()
	})
}
