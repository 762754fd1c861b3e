// Package report drives the dispatcher for a configuration and renders
// human-readable summaries: a per-run breakdown of results and task
// times, and a ranked table comparing configurations against each
// other.
package report

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/poolbench/poolbench/dispatch"
)

// Style selects the dispatch operation used for a run.
type Style int

const (
	// StyleSubmit uses per-task submission (SubmitCollect).
	StyleSubmit Style = iota

	// StyleMap uses bulk ordered mapping (MapCollect).
	StyleMap
)

func (s Style) String() string {
	switch s {
	case StyleSubmit:
		return "submit"
	case StyleMap:
		return "map"
	default:
		return fmt.Sprintf("style(%d)", int(s))
	}
}

// ParseStyle converts a configuration string into a Style.
func ParseStyle(s string) (Style, error) {
	switch s {
	case "submit":
		return StyleSubmit, nil
	case "map":
		return StyleMap, nil
	default:
		return 0, fmt.Errorf("%w: unknown dispatch style %q", dispatch.ErrInvalidConfiguration, s)
	}
}

// Reporter renders run summaries to a writer. Colors degrade to plain
// text automatically when the writer is not a terminal.
type Reporter struct {
	out   io.Writer
	label *color.Color
}

// NewReporter returns a Reporter writing to w.
func NewReporter(w io.Writer) *Reporter {
	return &Reporter{
		out:   w,
		label: color.New(color.Bold),
	}
}

// Display runs one dispatch configuration and prints its summary: the
// workload name, the result batch, the per-task times joined with
// their sum, and the total wall-clock time measured around the whole
// dispatch call.
//
// An unrecognized style fails with ErrInvalidConfiguration before any
// pool is created or adapter invoked. Dispatch failures are returned
// as-is; the façade adds no error handling of its own.
func Display[R any](r *Reporter, ctx context.Context, adapter dispatch.Adapter[R], n int, kind dispatch.PoolKind, style Style, mode dispatch.Collection, opts ...dispatch.Option) error {
	if style != StyleSubmit && style != StyleMap {
		return fmt.Errorf("%w: unknown dispatch style %d", dispatch.ErrInvalidConfiguration, int(style))
	}

	r.printf("Running: %s\n", adapter.Name())

	var batch *dispatch.Batch[R]
	var err error
	switch style {
	case StyleSubmit:
		batch, err = dispatch.SubmitCollect(ctx, adapter, n, kind, mode, opts...)
	case StyleMap:
		batch, err = dispatch.MapCollect(ctx, adapter, n, kind, opts...)
	}
	if err != nil {
		return err
	}

	r.printf("Results: %v\n", batch.Values)
	r.printf("Task times: %s = %s\n", joinSeconds(batch.Times), formatSeconds(batch.Sum()))
	r.printf("Actual time: %v\n", batch.Total)
	return nil
}

func (r *Reporter) printf(format string, args ...any) {
	label, rest, found := strings.Cut(format, ":")
	if !found {
		fmt.Fprintf(r.out, format, args...)
		return
	}
	_, _ = r.label.Fprintf(r.out, "%s:", label)
	fmt.Fprintf(r.out, rest, args...)
}

// joinSeconds renders each duration in seconds joined by " + ",
// mirroring the arithmetic the sum completes.
func joinSeconds(times []time.Duration) string {
	parts := make([]string, len(times))
	for i, t := range times {
		parts[i] = formatSeconds(t)
	}
	return strings.Join(parts, " + ")
}

func formatSeconds(d time.Duration) string {
	return fmt.Sprintf("%.3g", d.Seconds())
}
