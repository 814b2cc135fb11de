package pyferris

import "context"

// StarMap is Map for a callable that takes an argument tuple per
// element instead of a single value. Each input element is expected to
// already be a []any argument tuple; an element that isn't one is
// wrapped in a single-element tuple before the call, so callers may mix
// packed and unpacked inputs freely.
func StarMap[R any](ctx context.Context, input []any, fn func(context.Context, []any) (R, error), opts ...CombinatorOption) ([]R, []CollectedError, error) {
	return Map(ctx, input, func(ctx context.Context, item any) (R, error) {
		args, ok := item.([]any)
		if !ok {
			args = []any{item}
		}
		return fn(ctx, args)
	}, opts...)
}
