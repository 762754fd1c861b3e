package dispatch

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/poolbench/poolbench/internal/wire"
)

// WorkerEnv is the environment variable that marks a process as a
// worker subprocess. The process pool re-executes the current binary
// with WorkerEnv=1; a program embedding this package must route such
// an invocation into RunWorker before doing anything else.
const WorkerEnv = "POOLBENCH_WORKER"

// remoteInvoker is the type-erased form an adapter takes inside a
// worker subprocess: values leave as CBOR bytes because the parent's R
// type parameter does not exist on this side of the pipe.
type remoteInvoker func(ctx context.Context, index int, verbose bool) ([]byte, time.Duration, error)

var registry = struct {
	sync.RWMutex
	builders map[string]func(conf []byte) (remoteInvoker, error)
}{builders: make(map[string]func(conf []byte) (remoteInvoker, error))}

// RegisterWorkload makes an adapter constructible inside worker
// subprocesses under its workload name. build must return a fresh
// adapter (typically a pointer to a zero-value struct); the parent's
// CBOR-encoded adapter configuration is decoded into it before use.
//
// Workloads register themselves in an init function so that parent and
// child, being the same binary, always agree on the registry contents.
// Registering the same name twice panics, since it indicates two
// workloads colliding rather than a runtime condition.
func RegisterWorkload[R any](name string, build func() Adapter[R]) {
	registry.Lock()
	defer registry.Unlock()

	if _, exists := registry.builders[name]; exists {
		panic(fmt.Sprintf("dispatch: workload %q registered twice", name))
	}

	registry.builders[name] = func(conf []byte) (remoteInvoker, error) {
		adapter := build()
		if len(conf) > 0 {
			if err := wire.Unmarshal(conf, adapter); err != nil {
				return nil, fmt.Errorf("decode workload %q config: %w", name, err)
			}
		}
		return func(ctx context.Context, index int, verbose bool) ([]byte, time.Duration, error) {
			value, elapsed, err := adapter.Invoke(ctx, index, verbose)
			if err != nil {
				return nil, elapsed, err
			}
			raw, err := wire.Marshal(value)
			if err != nil {
				return nil, elapsed, fmt.Errorf("encode workload %q value: %w", name, err)
			}
			return raw, elapsed, nil
		}, nil
	}
}

func lookupWorkload(name string) (func(conf []byte) (remoteInvoker, error), bool) {
	registry.RLock()
	defer registry.RUnlock()
	build, ok := registry.builders[name]
	return build, ok
}

// RunWorker serves the worker side of the pipe protocol: it reads the
// handshake, rebuilds the requested adapter from the registry,
// acknowledges, and then answers Task frames with TaskResult frames
// until stdin closes.
//
// Adapter failures are reported in-band as result frames and never
// terminate the loop; only a broken pipe or an unbuildable workload
// does. The function returns nil on a clean stdin close.
func RunWorker(stdin io.Reader, stdout io.Writer) error {
	dec := wire.NewDecoder(stdin)
	enc := wire.NewEncoder(stdout)

	var hs wire.Handshake
	if err := dec.Decode(&hs); err != nil {
		return fmt.Errorf("worker handshake: %w", err)
	}

	build, ok := lookupWorkload(hs.Workload)
	if !ok {
		_ = enc.Encode(wire.Ready{Err: fmt.Sprintf("workload %q not registered", hs.Workload)})
		return fmt.Errorf("%w: %q", ErrUnregisteredWorkload, hs.Workload)
	}

	invoke, err := build(hs.Config)
	if err != nil {
		_ = enc.Encode(wire.Ready{Err: err.Error()})
		return err
	}
	if err := enc.Encode(wire.Ready{}); err != nil {
		return fmt.Errorf("worker ready: %w", err)
	}

	ctx := context.Background()
	for {
		var task wire.Task
		if err := dec.Decode(&task); err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("worker read task: %w", err)
		}

		value, elapsed, err := invoke(ctx, task.Index, hs.Verbose)
		res := wire.TaskResult{
			Index:   task.Index,
			Value:   value,
			Elapsed: int64(elapsed),
		}
		if err != nil {
			res.Value = nil
			res.Err = err.Error()
		}
		if err := enc.Encode(res); err != nil {
			return fmt.Errorf("worker write result: %w", err)
		}
	}
}
