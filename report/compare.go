package report

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/poolbench/poolbench/dispatch"
)

// Comparison is one pool×discipline configuration to benchmark.
type Comparison struct {
	Kind  dispatch.PoolKind
	Style Style
	Mode  dispatch.Collection
}

// Label names the configuration for table output.
func (c Comparison) Label() string {
	if c.Style == StyleMap {
		return fmt.Sprintf("%s/map", c.Kind)
	}
	return fmt.Sprintf("%s/submit/%s", c.Kind, c.Mode)
}

// AllComparisons enumerates the full matrix the harness exists to
// compare: both submit disciplines plus map, over both pool kinds.
func AllComparisons() []Comparison {
	var all []Comparison
	for _, kind := range []dispatch.PoolKind{dispatch.ThreadPool, dispatch.ProcessPool} {
		all = append(all,
			Comparison{Kind: kind, Style: StyleSubmit, Mode: dispatch.Ordered},
			Comparison{Kind: kind, Style: StyleSubmit, Mode: dispatch.AsCompleted},
			Comparison{Kind: kind, Style: StyleMap},
		)
	}
	return all
}

// ComparisonResult is the measured outcome of one configuration.
type ComparisonResult struct {
	Label       string
	TaskTimeSum time.Duration
	WallTime    time.Duration
	Err         error
	Rank        int
}

// RunComparison executes one configuration and measures it.
func RunComparison[R any](ctx context.Context, adapter dispatch.Adapter[R], n int, c Comparison, opts ...dispatch.Option) ComparisonResult {
	res := ComparisonResult{Label: c.Label()}

	var batch *dispatch.Batch[R]
	var err error
	switch c.Style {
	case StyleMap:
		batch, err = dispatch.MapCollect(ctx, adapter, n, c.Kind, opts...)
	default:
		batch, err = dispatch.SubmitCollect(ctx, adapter, n, c.Kind, c.Mode, opts...)
	}
	if err != nil {
		res.Err = err
		return res
	}

	res.TaskTimeSum = batch.Sum()
	res.WallTime = batch.Total
	return res
}

// RenderComparison ranks successful results by wall time and renders
// the comparison table, listing failed configurations underneath.
func (r *Reporter) RenderComparison(results []ComparisonResult) {
	ranked := make([]ComparisonResult, 0, len(results))
	failed := make([]ComparisonResult, 0)
	for _, res := range results {
		if res.Err != nil {
			failed = append(failed, res)
			continue
		}
		ranked = append(ranked, res)
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].WallTime < ranked[j].WallTime })
	for i := range ranked {
		ranked[i].Rank = i + 1
	}

	table := tablewriter.NewWriter(r.out)
	table.Header("Rank", "Configuration", "Task Time Sum", "Wall Time", "vs Fastest")

	for _, res := range ranked {
		_ = table.Append(
			fmt.Sprintf("%d", res.Rank),
			res.Label,
			res.TaskTimeSum.Round(time.Millisecond).String(),
			res.WallTime.Round(time.Millisecond).String(),
			vsFastest(res, ranked[0]),
		)
	}
	if err := table.Render(); err != nil {
		r.printf("Error: rendering comparison table: %v\n", err)
	}

	for _, res := range failed {
		r.printf("Failed: %s: %v\n", res.Label, res.Err)
	}
}

func vsFastest(res, fastest ComparisonResult) string {
	if res.Rank == 1 {
		return "baseline"
	}
	return fmt.Sprintf("%.2fx", float64(res.WallTime)/float64(fastest.WallTime))
}
