package dispatch

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfiguration reports an unrecognized pool kind,
	// collection mode, dispatch style, or a negative task count.
	// It is returned before any pool is created or adapter invoked.
	ErrInvalidConfiguration = errors.New("invalid dispatch configuration")

	// ErrPoolExhaustion reports that the worker pool could not be
	// created (e.g. a worker subprocess failed to spawn). No tasks
	// have been submitted when it is returned.
	ErrPoolExhaustion = errors.New("worker pool could not be created")

	// ErrUnregisteredWorkload reports that a process-kind dispatch was
	// requested for an adapter that has no registered builder, so a
	// worker subprocess would be unable to reconstruct it.
	ErrUnregisteredWorkload = errors.New("workload not registered for process execution")
)

// WorkloadError carries an adapter failure back across a process
// boundary. Go error values cannot survive the hop, so only the
// workload name, the failing task index, and the remote message do.
type WorkloadError struct {
	Workload string
	Index    int
	Message  string
}

func (e *WorkloadError) Error() string {
	return fmt.Sprintf("workload %s: task %d: %s", e.Workload, e.Index, e.Message)
}
