package dispatch

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// threadTask is one queued unit of work for the goroutine backend. A
// nil done channel marks a bulk-enqueued task whose outcome travels
// only on the shared completion stream.
type threadTask[R any] struct {
	index int
	done  chan outcome[R]
}

// threadPool runs tasks on a fixed set of goroutines pulling from a
// buffered task channel. The channel is sized to hold the whole batch
// so submission never blocks, and the completion stream is sized the
// same so workers never block on an unread collector.
type threadPool[R any] struct {
	ctx       context.Context
	adapter   Adapter[R]
	cfg       *dispatchConfig
	tasks     chan threadTask[R]
	completed chan outcome[R]
	g         *errgroup.Group
}

func openThreadPool[R any](ctx context.Context, adapter Adapter[R], n int, cfg *dispatchConfig) *threadPool[R] {
	p := &threadPool[R]{
		ctx:       ctx,
		adapter:   adapter,
		cfg:       cfg,
		tasks:     make(chan threadTask[R], n),
		completed: make(chan outcome[R], n),
		g:         &errgroup.Group{},
	}

	// A plain errgroup, not errgroup.WithContext: one failing task must
	// not cancel its in-flight siblings. Failures travel as outcomes.
	for i := 0; i < cfg.workersFor(n); i++ {
		p.g.Go(func() error {
			for t := range p.tasks {
				out := p.run(t.index)
				if t.done != nil {
					t.done <- out
				}
				p.completed <- out
			}
			return nil
		})
	}
	return p
}

// run invokes the adapter for one index, applying the rate limiter
// first when one is configured.
func (p *threadPool[R]) run(index int) outcome[R] {
	out := outcome[R]{index: index}

	if p.cfg.limiter != nil {
		if err := p.cfg.limiter.Wait(p.ctx); err != nil {
			out.err = fmt.Errorf("task %d: %w", index, err)
			return out
		}
	}

	value, elapsed, err := p.adapter.Invoke(p.ctx, index, p.cfg.verbose)
	out.value = value
	out.elapsed = elapsed
	if err != nil {
		out.err = fmt.Errorf("task %d: %w", index, err)
	}
	return out
}

func (p *threadPool[R]) submit(index int) *handle[R] {
	h := &handle[R]{done: make(chan outcome[R], 1)}
	p.tasks <- threadTask[R]{index: index, done: h.done}
	return h
}

func (p *threadPool[R]) enqueue(index int) {
	p.tasks <- threadTask[R]{index: index}
}

func (p *threadPool[R]) completions() <-chan outcome[R] { return p.completed }

func (p *threadPool[R]) close() error {
	close(p.tasks)
	return p.g.Wait()
}
