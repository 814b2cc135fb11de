package pyferris

import (
	"runtime"
	"sync/atomic"
)

// Process-wide configuration, per the Configuration surface: initialized
// to defaults on first access, never reset except by explicit setters.
var (
	workerCount atomic.Int64
	chunkSize   atomic.Int64
)

// SetWorkerCount overrides the default worker-pool size used by
// schedulers and combinators created without an explicit WithWorkers
// option. n must be positive; non-positive values are ignored.
func SetWorkerCount(n int) {
	if n <= 0 {
		return
	}
	workerCount.Store(int64(n))
}

// GetWorkerCount returns the current default worker count, defaulting
// to runtime.NumCPU() on first access.
func GetWorkerCount() int {
	if n := workerCount.Load(); n > 0 {
		return int(n)
	}
	n := runtime.NumCPU()
	if n < 1 {
		n = 1
	}
	workerCount.CompareAndSwap(0, int64(n))
	return int(workerCount.Load())
}

// SetChunkSize overrides the default chunk size used by the combinator
// kernel when a caller does not specify one explicitly. n must be
// positive; non-positive values are ignored.
func SetChunkSize(n int) {
	if n <= 0 {
		return
	}
	chunkSize.Store(int64(n))
}

// GetChunkSize returns the configured default chunk size, or 0 if unset
// (in which case the combinator kernel derives one per call from input
// length and worker count).
func GetChunkSize() int {
	return int(chunkSize.Load())
}
