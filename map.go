package pyferris

import "context"

// Map applies fn to every element of input, preserving order exactly.
// Input is partitioned into contiguous chunks per the derived chunking
// policy; each chunk runs as an independent unit of work bounded by the
// configured worker count.
//
// With the default Raise strategy, the first per-item error aborts the
// whole operation and is returned. With Ignore, failing items are
// omitted from the result. With Collect, failing items are omitted and
// their errors are returned alongside the result.
func Map[T, R any](ctx context.Context, input []T, fn func(context.Context, T) (R, error), opts ...CombinatorOption) ([]R, []CollectedError, error) {
	cfg := newCombinatorConfig(opts)
	size := deriveChunkSize(cfg.chunkSize, len(input), cfg.workers)
	bounds := chunkBounds(len(input), size)

	results := make([]R, len(input))
	present := make([]bool, len(input))
	col := &collector{}

	err := runChunks(ctx, cfg, bounds, func(ctx context.Context, _, start, end int) error {
		for i := start; i < end; i++ {
			v, err := fn(ctx, input[i])
			if err != nil {
				switch cfg.strategy {
				case Raise:
					return wrapErr(TaskFailed, "map", err)
				case Ignore:
					continue
				case Collect:
					col.add(i, err)
					continue
				}
			}
			results[i] = v
			present[i] = true
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	out := make([]R, 0, len(input))
	for i, ok := range present {
		if ok {
			out = append(out, results[i])
		}
	}
	return out, col.drain(), nil
}
