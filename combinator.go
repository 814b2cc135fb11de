package pyferris

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// ErrorStrategy governs how the combinator kernel handles a per-item
// failure during Map/StarMap/Filter. Reduce does not consult it: any
// error aborts the reduction.
type ErrorStrategy int

const (
	// Raise aborts the whole operation at the first error (default).
	Raise ErrorStrategy = iota
	// Ignore drops the failing item and continues.
	Ignore
	// Collect records the failing item's error to a side channel and
	// continues.
	Collect
)

// CollectedError records one item's failure when ErrorStrategy is
// Collect.
type CollectedError struct {
	Index int
	Err   error
}

// combinatorConfig holds the options shared by Map/StarMap/Filter/Reduce.
type combinatorConfig struct {
	chunkSize int
	workers   int
	strategy  ErrorStrategy
}

// CombinatorOption configures Map/StarMap/Filter/Reduce.
type CombinatorOption func(*combinatorConfig)

// WithErrorStrategy sets the per-item failure policy. Default Raise.
func WithErrorStrategy(s ErrorStrategy) CombinatorOption {
	return func(c *combinatorConfig) { c.strategy = s }
}

// WithCombinatorChunkSize overrides the derived chunk size for a single
// call.
func WithCombinatorChunkSize(n int) CombinatorOption {
	return func(c *combinatorConfig) {
		if n > 0 {
			c.chunkSize = n
		}
	}
}

// WithCombinatorWorkers overrides the worker-count ceiling for a single
// call.
func WithCombinatorWorkers(n int) CombinatorOption {
	return func(c *combinatorConfig) {
		if n > 0 {
			c.workers = n
		}
	}
}

func newCombinatorConfig(opts []CombinatorOption) *combinatorConfig {
	c := &combinatorConfig{
		chunkSize: GetChunkSize(),
		workers:   GetWorkerCount(),
		strategy:  Raise,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// deriveChunkSize implements the chunking policy: if the caller did not
// pass a chunk size, derive it once from the materialized length and
// worker count. If len < 1000, chunk = max(1, len/numWorkers); else
// chunk = 1000.
func deriveChunkSize(explicit, length, numWorkers int) int {
	if explicit > 0 {
		return explicit
	}
	if numWorkers < 1 {
		numWorkers = 1
	}
	if length < 1000 {
		c := length / numWorkers
		if c < 1 {
			c = 1
		}
		return c
	}
	return 1000
}

// chunkBounds returns the [start,end) index pairs partitioning
// [0,length) into contiguous chunks of at most size elements each.
func chunkBounds(length, size int) [][2]int {
	if length == 0 {
		return nil
	}
	if size < 1 {
		size = 1
	}
	bounds := make([][2]int, 0, (length+size-1)/size)
	for start := 0; start < length; start += size {
		end := start + size
		if end > length {
			end = length
		}
		bounds = append(bounds, [2]int{start, end})
	}
	return bounds
}

// runChunks executes one goroutine per chunk bound, limited to
// cfg.workers concurrently via errgroup.Group.SetLimit, and calls body
// with the chunk's index and bounds. Chunk dispatch treats each chunk
// as an independent unit of work, matching the combinator kernel's
// "partition, submit, join" data flow.
func runChunks(ctx context.Context, cfg *combinatorConfig, bounds [][2]int, body func(ctx context.Context, chunkIdx, start, end int) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.workers)
	for idx, b := range bounds {
		idx, b := idx, b
		g.Go(func() error {
			return body(gctx, idx, b[0], b[1])
		})
	}
	return g.Wait()
}

// collector accumulates CollectedError entries from concurrent chunk
// goroutines under a single mutex.
type collector struct {
	mu   sync.Mutex
	errs []CollectedError
}

func (c *collector) add(index int, err error) {
	c.mu.Lock()
	c.errs = append(c.errs, CollectedError{Index: index, Err: err})
	c.mu.Unlock()
}

func (c *collector) drain() []CollectedError {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errs
}
