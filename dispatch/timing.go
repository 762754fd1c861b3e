package dispatch

import "time"

// Timed wraps fn so that invoking the wrapper also reports how long fn
// took, measured with the monotonic clock strictly around the call.
//
// The wrapper never swallows fn's error: on failure the error is
// returned unmodified alongside the elapsed time as measured. It has no
// side effects beyond the measurement itself.
//
// Type parameters:
//   - R: The result type produced by fn
func Timed[R any](fn func() (R, error)) func() (R, time.Duration, error) {
	return func() (R, time.Duration, error) {
		start := time.Now()
		result, err := fn()
		return result, time.Since(start), err
	}
}
