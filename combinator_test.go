package pyferris

import (
	"context"
	"errors"
	"testing"
)

func TestDeriveChunkSize(t *testing.T) {
	cases := []struct {
		explicit, length, workers, want int
	}{
		{0, 100, 4, 25},
		{0, 1, 4, 1},
		{0, 0, 4, 1},
		{0, 5000, 4, 1000},
		{50, 5000, 4, 50},
	}
	for _, c := range cases {
		got := deriveChunkSize(c.explicit, c.length, c.workers)
		if got != c.want {
			t.Errorf("deriveChunkSize(%d,%d,%d) = %d, want %d", c.explicit, c.length, c.workers, got, c.want)
		}
	}
}

func TestChunkBounds(t *testing.T) {
	bounds := chunkBounds(10, 3)
	want := [][2]int{{0, 3}, {3, 6}, {6, 9}, {9, 10}}
	if len(bounds) != len(want) {
		t.Fatalf("expected %d chunks, got %d", len(want), len(bounds))
	}
	for i := range want {
		if bounds[i] != want[i] {
			t.Errorf("chunk %d: got %v, want %v", i, bounds[i], want[i])
		}
	}
}

func TestMapPreservesOrder(t *testing.T) {
	input := make([]int, 500)
	for i := range input {
		input[i] = i
	}

	out, collected, err := Map(context.Background(), input, func(_ context.Context, n int) (int, error) {
		return n * n, nil
	}, WithCombinatorWorkers(8))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(collected) != 0 {
		t.Errorf("expected no collected errors, got %d", len(collected))
	}
	for i, v := range out {
		if v != i*i {
			t.Errorf("index %d: expected %d, got %d", i, i*i, v)
		}
	}
}

func TestMapRaiseAbortsOnFirstError(t *testing.T) {
	input := []int{1, 2, 3, 4, 5}
	boom := errors.New("bad item")

	_, _, err := Map(context.Background(), input, func(_ context.Context, n int) (int, error) {
		if n == 3 {
			return 0, boom
		}
		return n, nil
	})
	if err == nil {
		t.Fatal("expected an error with Raise strategy")
	}
}

func TestMapIgnoreDropsFailures(t *testing.T) {
	input := []int{1, 2, 3, 4, 5}

	out, _, err := Map(context.Background(), input, func(_ context.Context, n int) (int, error) {
		if n%2 == 0 {
			return 0, errors.New("even")
		}
		return n, nil
	}, WithErrorStrategy(Ignore))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 3 {
		t.Errorf("expected 3 surviving odd items, got %d: %v", len(out), out)
	}
}

func TestMapCollectRecordsErrors(t *testing.T) {
	input := []int{1, 2, 3, 4}

	_, collected, err := Map(context.Background(), input, func(_ context.Context, n int) (int, error) {
		if n == 2 || n == 4 {
			return 0, errors.New("even")
		}
		return n, nil
	}, WithErrorStrategy(Collect), WithCombinatorChunkSize(1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(collected) != 2 {
		t.Fatalf("expected 2 collected errors, got %d", len(collected))
	}
}

func TestFilterPreservesOrder(t *testing.T) {
	input := make([]int, 200)
	for i := range input {
		input[i] = i
	}

	out, _, err := Filter(context.Background(), input, func(_ context.Context, n int) (bool, error) {
		return n%3 == 0, nil
	}, WithCombinatorChunkSize(7))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, v := range out {
		if v%3 != 0 {
			t.Errorf("unexpected non-multiple-of-3 %d at index %d", v, i)
		}
		if i > 0 && out[i-1] >= v {
			t.Errorf("expected strictly increasing order, got %d then %d", out[i-1], v)
		}
	}
}

func TestReduceSum(t *testing.T) {
	input := make([]int, 997)
	for i := range input {
		input[i] = 1
	}
	sum, err := Reduce(context.Background(), input, func(_ context.Context, a, b int) (int, error) {
		return a + b, nil
	}, nil, WithCombinatorWorkers(6))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sum != 997 {
		t.Errorf("expected 997, got %d", sum)
	}
}

func TestReduceWithInitializer(t *testing.T) {
	initial := 100
	sum, err := Reduce(context.Background(), []int{1, 2, 3}, func(_ context.Context, a, b int) (int, error) {
		return a + b, nil
	}, &initial)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sum != 106 {
		t.Errorf("expected 106, got %d", sum)
	}
}

func TestReduceEmptyNoInitializerErrors(t *testing.T) {
	_, err := Reduce(context.Background(), []int{}, func(_ context.Context, a, b int) (int, error) {
		return a + b, nil
	}, nil)
	if err == nil {
		t.Fatal("expected ReduceEmpty error")
	}
	var ferr *Error
	if errors.As(err, &ferr) && ferr.Kind != ReduceEmpty {
		t.Errorf("expected ReduceEmpty, got %s", ferr.Kind)
	}
}

func TestReduceEmptyWithInitializerReturnsIt(t *testing.T) {
	initial := 7
	got, err := Reduce(context.Background(), []int{}, func(_ context.Context, a, b int) (int, error) {
		return a + b, nil
	}, &initial)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 7 {
		t.Errorf("expected 7, got %d", got)
	}
}

func TestReduceSequentialNonAssociative(t *testing.T) {
	// Subtraction is not associative; ReduceSequential must fold strictly
	// left-to-right: ((10-1)-2)-3 = 4.
	got, err := ReduceSequential(context.Background(), []int{10, 1, 2, 3}, func(_ context.Context, a, b int) (int, error) {
		return a - b, nil
	}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 4 {
		t.Errorf("expected 4, got %d", got)
	}
}

func TestStarMapUnpacksTuples(t *testing.T) {
	input := []any{
		[]any{1, 2},
		[]any{3, 4},
	}
	out, _, err := StarMap(context.Background(), input, func(_ context.Context, args []any) (int, error) {
		return args[0].(int) + args[1].(int), nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 2 || out[0] != 3 || out[1] != 7 {
		t.Errorf("unexpected output: %v", out)
	}
}

func TestStarMapWrapsNonTupleInput(t *testing.T) {
	input := []any{5, 6}
	out, _, err := StarMap(context.Background(), input, func(_ context.Context, args []any) (int, error) {
		if len(args) != 1 {
			t.Errorf("expected single-element tuple, got %v", args)
		}
		return args[0].(int) * 2, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out[0] != 10 || out[1] != 12 {
		t.Errorf("unexpected output: %v", out)
	}
}
