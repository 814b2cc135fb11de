package pyferris

import "context"

// Reduce performs a two-stage tree reduction: within each chunk, fold
// left (the first chunk is seeded by initializer if given; every other
// chunk, and the first when there is no initializer, by its own first
// element); then fold the per-chunk results left into one value on a
// single goroutine. This matches fold_left exactly when f is
// associative; see ReduceSequential for a guaranteed strict left fold
// over non-associative combiners.
//
// Reduce over an empty input with no initializer returns a ReduceEmpty
// error.
func Reduce[T any](ctx context.Context, input []T, f func(context.Context, T, T) (T, error), initializer *T, opts ...CombinatorOption) (T, error) {
	var zero T
	if len(input) == 0 {
		if initializer != nil {
			return *initializer, nil
		}
		return zero, &Error{Kind: ReduceEmpty, Err: errReduceEmpty}
	}

	cfg := newCombinatorConfig(opts)
	size := deriveChunkSize(cfg.chunkSize, len(input), cfg.workers)
	bounds := chunkBounds(len(input), size)

	partials := make([]T, len(bounds))
	err := runChunks(ctx, cfg, bounds, func(ctx context.Context, chunkIdx, start, end int) error {
		var acc T
		i := start
		if chunkIdx == 0 && initializer != nil {
			acc = *initializer
		} else {
			acc = input[i]
			i++
		}
		for ; i < end; i++ {
			var err error
			acc, err = f(ctx, acc, input[i])
			if err != nil {
				return wrapErr(TaskFailed, "reduce", err)
			}
		}
		partials[chunkIdx] = acc
		return nil
	})
	if err != nil {
		return zero, err
	}

	result := partials[0]
	for i := 1; i < len(partials); i++ {
		var err error
		result, err = f(ctx, result, partials[i])
		if err != nil {
			return zero, wrapErr(TaskFailed, "reduce", err)
		}
	}
	return result, nil
}

// ReduceSequential performs a strict single-pass left fold, for callers
// whose combiner is not associative and therefore cannot tolerate
// Reduce's chunk-then-combine reassociation.
func ReduceSequential[T any](ctx context.Context, input []T, f func(context.Context, T, T) (T, error), initializer *T) (T, error) {
	var zero T
	if len(input) == 0 {
		if initializer != nil {
			return *initializer, nil
		}
		return zero, &Error{Kind: ReduceEmpty, Err: errReduceEmpty}
	}

	i := 0
	var acc T
	if initializer != nil {
		acc = *initializer
	} else {
		acc = input[0]
		i = 1
	}
	for ; i < len(input); i++ {
		var err error
		acc, err = f(ctx, acc, input[i])
		if err != nil {
			return zero, wrapErr(TaskFailed, "reduce_sequential", err)
		}
	}
	return acc, nil
}

var errReduceEmpty = &simpleErr{"reduce over empty sequence with no initializer"}
