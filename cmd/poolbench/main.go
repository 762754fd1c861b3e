// Command poolbench dispatches synthetic workloads onto thread or
// process worker pools and reports per-task and aggregate timing, for
// a single configuration or the full pool×discipline comparison
// matrix.
//
// When started with POOLBENCH_WORKER=1 the binary runs the worker-side
// frame-serving loop instead of the CLI; the process pool re-executes
// it that way.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"github.com/poolbench/poolbench/config"
	"github.com/poolbench/poolbench/dispatch"
	"github.com/poolbench/poolbench/internal/observability"
	"github.com/poolbench/poolbench/internal/term"
	"github.com/poolbench/poolbench/report"
	"github.com/poolbench/poolbench/workload"
)

func main() {
	// Worker mode runs before flags, logging, anything: its stdout is
	// the result pipe and must carry frames only.
	if os.Getenv(dispatch.WorkerEnv) == "1" {
		if err := dispatch.RunWorker(os.Stdin, os.Stdout); err != nil {
			fmt.Fprintln(os.Stderr, "poolbench worker:", err)
			os.Exit(1)
		}
		return
	}

	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "poolbench:", err)
		os.Exit(1)
	}
}

func run() error {
	defaults := config.Default()

	workloadName := flag.String("workload", defaults.Workload, "Workload: delay or factorize")
	n := flag.Int("n", defaults.Tasks, "Number of tasks to dispatch")
	poolName := flag.String("pool", defaults.Pool, "Pool kind: thread or process")
	styleName := flag.String("style", defaults.Style, "Dispatch style: submit or map")
	asCompleted := flag.Bool("as-completed", defaults.AsCompleted, "Collect submit results in completion order")
	maxWorkers := flag.Int("workers", defaults.MaxWorkers, "Max workers (0 = GOMAXPROCS)")
	verbose := flag.Bool("verbose", defaults.Verbose, "Verbose adapter output")
	seconds := flag.Float64("seconds", defaults.Delay.Seconds, "Fixed delay seconds (negative = draw from distribution)")
	secondsMean := flag.Float64("seconds-mean", defaults.Delay.SecondsMean, "Mean of the delay distribution")
	secondsSigma := flag.Float64("seconds-sigma", defaults.Delay.SecondsSigma, "Sigma of the delay distribution")
	base := flag.Int64("base", defaults.Factorize.Base, "Factorization base value")
	ratePerSec := flag.Float64("rate", defaults.Rate.PerSecond, "Task rate limit per second (0 = unlimited)")
	rateBurst := flag.Int("burst", defaults.Rate.Burst, "Rate limiter burst")
	configPath := flag.String("config", "", "Path to YAML config file")
	compare := flag.Bool("compare", false, "Run the full pool×discipline comparison matrix")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	// Explicitly set flags win over the config file; everything else
	// inherits the file (or default) value.
	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	applyUnset(set, map[string]func(){
		"workload":      func() { *workloadName = cfg.Workload },
		"n":             func() { *n = cfg.Tasks },
		"pool":          func() { *poolName = cfg.Pool },
		"style":         func() { *styleName = cfg.Style },
		"as-completed":  func() { *asCompleted = cfg.AsCompleted },
		"workers":       func() { *maxWorkers = cfg.MaxWorkers },
		"verbose":       func() { *verbose = cfg.Verbose },
		"seconds":       func() { *seconds = cfg.Delay.Seconds },
		"seconds-mean":  func() { *secondsMean = cfg.Delay.SecondsMean },
		"seconds-sigma": func() { *secondsSigma = cfg.Delay.SecondsSigma },
		"base":          func() { *base = cfg.Factorize.Base },
		"rate":          func() { *ratePerSec = cfg.Rate.PerSecond },
		"burst":         func() { *rateBurst = cfg.Rate.Burst },
	})

	term.EnableANSI()
	logger, err := observability.SetupLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	var opts []dispatch.Option
	if *maxWorkers > 0 {
		opts = append(opts, dispatch.WithMaxWorkers(*maxWorkers))
	}
	if *verbose {
		opts = append(opts, dispatch.WithVerbose(true))
	}
	if *ratePerSec > 0 && *rateBurst > 0 {
		opts = append(opts, dispatch.WithRateLimit(*ratePerSec, *rateBurst))
	}

	settings := runSettings{
		n:           *n,
		pool:        *poolName,
		style:       *styleName,
		asCompleted: *asCompleted,
		compare:     *compare,
		opts:        opts,
	}

	switch *workloadName {
	case "delay":
		adapter := workload.NewDelayedReturn()
		adapter.SecondsMean = *secondsMean
		adapter.SecondsSigma = *secondsSigma
		if *seconds >= 0 {
			adapter.Seconds = seconds
		}
		return runWorkload[int](settings, adapter)
	case "factorize":
		adapter := workload.NewLongFactorize()
		adapter.Base = *base
		return runWorkload[workload.Factorization](settings, adapter)
	default:
		return fmt.Errorf("%w: unknown workload %q", dispatch.ErrInvalidConfiguration, *workloadName)
	}
}

type runSettings struct {
	n           int
	pool        string
	style       string
	asCompleted bool
	compare     bool
	opts        []dispatch.Option
}

func applyUnset(set map[string]bool, bindings map[string]func()) {
	for name, bind := range bindings {
		if !set[name] {
			bind()
		}
	}
}

func runWorkload[R any](s runSettings, adapter dispatch.Adapter[R]) error {
	ctx := context.Background()
	reporter := report.NewReporter(os.Stdout)

	if s.compare {
		return runComparison(ctx, reporter, adapter, s)
	}

	kind, err := dispatch.ParsePoolKind(s.pool)
	if err != nil {
		return err
	}
	style, err := report.ParseStyle(s.style)
	if err != nil {
		return err
	}
	mode := dispatch.Ordered
	if s.asCompleted {
		mode = dispatch.AsCompleted
	}

	return report.Display(reporter, ctx, adapter, s.n, kind, style, mode, s.opts...)
}

func runComparison[R any](ctx context.Context, reporter *report.Reporter, adapter dispatch.Adapter[R], s runSettings) error {
	comparisons := report.AllComparisons()

	bar := progressbar.NewOptions(len(comparisons),
		progressbar.OptionSetDescription("Comparing configurations"),
		progressbar.OptionSetWidth(50),
		progressbar.OptionShowCount(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "│",
			BarEnd:        "│",
		}),
		progressbar.OptionEnableColorCodes(true),
	)

	zap.L().Info("running comparison matrix",
		zap.String("workload", adapter.Name()),
		zap.Int("tasks", s.n),
		zap.Int("configurations", len(comparisons)))

	results := make([]report.ComparisonResult, 0, len(comparisons))
	for _, c := range comparisons {
		bar.Describe(fmt.Sprintf("Testing: %s", c.Label()))
		results = append(results, report.RunComparison(ctx, adapter, s.n, c, s.opts...))
		_ = bar.Add(1)
	}
	_ = bar.Finish()
	fmt.Println()

	reporter.RenderComparison(results)
	return nil
}
