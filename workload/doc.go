// Package workload provides the synthetic workload adapters the
// harness benchmarks against: an I/O-bound delay generator and a
// CPU-bound brute-force factorizer. Both self-time their execution and
// register themselves for process-kind dispatch.
package workload
