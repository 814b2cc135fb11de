package pyferris

import "context"

// Filter returns the subsequence of input for which pred is truthy,
// preserving input order exactly. The predicate is called at most once
// per element. Each chunk returns the subset of its items that passed,
// preserving within-chunk order; concatenation across chunks preserves
// overall order.
func Filter[T any](ctx context.Context, input []T, pred func(context.Context, T) (bool, error), opts ...CombinatorOption) ([]T, []CollectedError, error) {
	cfg := newCombinatorConfig(opts)
	size := deriveChunkSize(cfg.chunkSize, len(input), cfg.workers)
	bounds := chunkBounds(len(input), size)

	keep := make([]bool, len(input))
	col := &collector{}

	err := runChunks(ctx, cfg, bounds, func(ctx context.Context, _, start, end int) error {
		for i := start; i < end; i++ {
			ok, err := pred(ctx, input[i])
			if err != nil {
				switch cfg.strategy {
				case Raise:
					return wrapErr(TaskFailed, "filter", err)
				case Ignore, Collect:
					if cfg.strategy == Collect {
						col.add(i, err)
					}
					continue
				}
			}
			keep[i] = ok
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	out := make([]T, 0, len(input))
	for i, ok := range keep {
		if ok {
			out = append(out, input[i])
		}
	}
	return out, col.drain(), nil
}
