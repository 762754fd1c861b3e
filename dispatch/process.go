package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/poolbench/poolbench/internal/wire"
)

// workerProc is one spawned worker subprocess with its pipe endpoints.
type workerProc struct {
	cmd *exec.Cmd
	enc *wire.Encoder
	dec *wire.Decoder
	in  io.WriteCloser
}

// processPool runs tasks on worker subprocesses. Each child is the
// current binary re-executed with WorkerEnv=1 and serves one task at a
// time in lockstep: the parent-side feeder goroutine writes a task
// frame, blocks on the matching result frame, and only then pulls the
// next task. Results therefore come back by value; no memory is shared
// with a child.
type processPool[R any] struct {
	ctx       context.Context
	adapter   Adapter[R]
	cfg       *dispatchConfig
	children  []*workerProc
	tasks     chan threadTask[R]
	completed chan outcome[R]
	g         *errgroup.Group
}

func openProcessPool[R any](ctx context.Context, adapter Adapter[R], n int, cfg *dispatchConfig) (*processPool[R], error) {
	if _, ok := lookupWorkload(adapter.Name()); !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnregisteredWorkload, adapter.Name())
	}

	conf, err := wire.Marshal(adapter)
	if err != nil {
		return nil, fmt.Errorf("%w: encode workload config: %v", ErrPoolExhaustion, err)
	}

	p := &processPool[R]{
		ctx:       ctx,
		adapter:   adapter,
		cfg:       cfg,
		tasks:     make(chan threadTask[R], n),
		completed: make(chan outcome[R], n),
		g:         &errgroup.Group{},
	}

	hs := wire.Handshake{Workload: adapter.Name(), Config: conf, Verbose: cfg.verbose}
	for i := 0; i < cfg.workersFor(n); i++ {
		child, err := spawnWorker(hs)
		if err != nil {
			p.killAll()
			return nil, fmt.Errorf("%w: %v", ErrPoolExhaustion, err)
		}
		p.children = append(p.children, child)
	}

	for _, child := range p.children {
		child := child
		p.g.Go(func() error { return p.serve(child) })
	}
	return p, nil
}

// spawnWorker starts one subprocess and completes the handshake.
func spawnWorker(hs wire.Handshake) (*workerProc, error) {
	self, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("locate executable: %w", err)
	}

	cmd := exec.Command(self)
	cmd.Env = append(os.Environ(), WorkerEnv+"=1")
	cmd.Stderr = os.Stderr

	in, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("worker stdin: %w", err)
	}
	out, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("worker stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start worker: %w", err)
	}

	child := &workerProc{
		cmd: cmd,
		enc: wire.NewEncoder(in),
		dec: wire.NewDecoder(out),
		in:  in,
	}

	if err := child.enc.Encode(hs); err != nil {
		child.kill()
		return nil, fmt.Errorf("worker handshake: %w", err)
	}
	var ready wire.Ready
	if err := child.dec.Decode(&ready); err != nil {
		child.kill()
		return nil, fmt.Errorf("worker ready: %w", err)
	}
	if ready.Err != "" {
		child.kill()
		return nil, fmt.Errorf("worker init: %s", ready.Err)
	}
	return child, nil
}

// serve is the per-child feeder loop. Once the pipe breaks every
// remaining task drawn by this child fails fast with the same error so
// the collectors still receive one outcome per task.
func (p *processPool[R]) serve(child *workerProc) error {
	var pipeErr error
	for t := range p.tasks {
		out := outcome[R]{index: t.index}
		if pipeErr != nil {
			out.err = fmt.Errorf("task %d: %w", t.index, pipeErr)
		} else {
			out = p.roundTrip(child, t.index)
			if out.err != nil {
				// An in-band adapter failure leaves the pipe healthy;
				// anything else means this child is gone.
				var wErr *WorkloadError
				if !errors.As(out.err, &wErr) {
					pipeErr = out.err
				}
			}
		}

		if t.done != nil {
			t.done <- out
		}
		p.completed <- out
	}

	_ = child.in.Close()
	return child.cmd.Wait()
}

// roundTrip sends one task frame and waits for its result frame.
func (p *processPool[R]) roundTrip(child *workerProc, index int) outcome[R] {
	out := outcome[R]{index: index}

	if p.cfg.limiter != nil {
		if err := p.cfg.limiter.Wait(p.ctx); err != nil {
			out.err = &WorkloadError{Workload: p.adapter.Name(), Index: index, Message: err.Error()}
			return out
		}
	}

	if err := child.enc.Encode(wire.Task{Index: index}); err != nil {
		out.err = fmt.Errorf("worker pipe: %w", err)
		return out
	}
	var res wire.TaskResult
	if err := child.dec.Decode(&res); err != nil {
		out.err = fmt.Errorf("worker pipe: %w", err)
		return out
	}

	out.elapsed = time.Duration(res.Elapsed)
	if res.Err != "" {
		out.err = &WorkloadError{Workload: p.adapter.Name(), Index: res.Index, Message: res.Err}
		return out
	}
	if err := wire.Unmarshal(res.Value, &out.value); err != nil {
		out.err = fmt.Errorf("task %d: decode value: %w", index, err)
	}
	return out
}

func (p *processPool[R]) submit(index int) *handle[R] {
	h := &handle[R]{done: make(chan outcome[R], 1)}
	p.tasks <- threadTask[R]{index: index, done: h.done}
	return h
}

func (p *processPool[R]) enqueue(index int) {
	p.tasks <- threadTask[R]{index: index}
}

func (p *processPool[R]) completions() <-chan outcome[R] { return p.completed }

func (p *processPool[R]) close() error {
	close(p.tasks)
	return p.g.Wait()
}

func (p *processPool[R]) killAll() {
	for _, child := range p.children {
		child.kill()
	}
}

func (w *workerProc) kill() {
	_ = w.in.Close()
	_ = w.cmd.Process.Kill()
	_ = w.cmd.Wait()
}
