// Package pyferris is a parallel-execution toolkit: a work-stealing
// virtual-thread scheduler, a chunked parallel combinator kernel
// (Map/Filter/Reduce/StarMap), a fault-tolerance layer (retry executor,
// circuit breaker, checkpoint manager), a set of concurrent containers,
// and a cluster extension for distributing work across remote nodes.
//
// # Core Concepts
//
// Every unit of work implements Callable:
//
//	type Callable interface {
//	    Call(ctx context.Context, args []any) (any, error)
//	}
//
// The scheduler multiplexes an unbounded number of Tasks across a fixed
// pool of carrier goroutines, each with its own work-stealing deque:
//
//	sched := pyferris.NewScheduler(pyferris.WithWorkers(4))
//	id := sched.Submit(context.Background(), pyferris.CallableFunc(work), nil, false)
//	result, err := sched.Join(context.Background(), id)
//	sched.Shutdown()
//
// A Callable that itself calls Submit using the ctx it was handed gets
// its child task routed to the calling carrier's own local deque rather
// than the shared injector, so fork-join-style workloads keep their
// children close to the parent while still letting idle carriers steal
// them.
//
// The combinator kernel chunks its input and bounds concurrency with an
// errgroup rather than going through the scheduler, so Map/Filter/Reduce
// stay generic over element types:
//
//	squares, errs, err := pyferris.Map(ctx, []int{1, 2, 3}, func(_ context.Context, n int) (int, error) {
//	    return n * n, nil
//	})
//
// The fault-tolerance layer wraps any Callable:
//
//	retrier := pyferris.NewRetryExecutor("fetch", flaky, 3, pyferris.NewExponentialBackoff(100*time.Millisecond, 2*time.Second, 2))
//	breaker := pyferris.NewCircuitBreaker("downstream", flaky, 5, 30*time.Second)
//
// # Observability
//
// The scheduler, circuit breaker, checkpoint manager, cluster manager and
// distributed executor emit structured signals via
// github.com/zoobzio/capitan. The scheduler and the retry executor
// expose counters/gauges via github.com/zoobzio/metricz; the retry
// executor also opens a span per call via github.com/zoobzio/tracez and
// fires typed hooks via github.com/zoobzio/hookz. Backoff delays,
// circuit recovery, checkpoint timestamps and auto-checkpoint intervals
// flow through a github.com/zoobzio/clockz.Clock, defaulting to the real
// clock but swappable for deterministic tests.
package pyferris
