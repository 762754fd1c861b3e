// Package dispatch implements the pool-dispatch core: it submits a fixed
// number of indexed tasks onto a scoped pool of workers, collects each
// task's (value, elapsed) outcome under an ordering policy, and returns
// the aggregated batch together with the total wall-clock time.
//
// Two worker backends are available behind one interface: goroutine
// workers sharing process memory (ThreadPool) and worker subprocesses
// exchanging CBOR frames over pipes (ProcessPool). Two collection
// disciplines are exposed on purpose: per-task submission with ordered
// or completion-order collection (SubmitCollect), and bulk ordered
// mapping (MapCollect). They trade early-result visibility against
// per-task overhead and are meant to be benchmarked side by side.
//
// Pools are scoped to a single dispatch call: created fresh, torn down
// on every exit path. There is no task cancellation, no retry, and no
// pool reuse across calls.
package dispatch
