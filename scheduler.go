package pyferris

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/clockz"
	"github.com/zoobzio/metricz"
	"golang.org/x/sync/semaphore"
)

// Metric keys for Scheduler observability.
const (
	SchedulerTasksSubmitted = metricz.Key("scheduler.tasks.submitted.total")
	SchedulerTasksCompleted = metricz.Key("scheduler.tasks.completed.total")
	SchedulerTasksStolen    = metricz.Key("scheduler.tasks.stolen.total")
	SchedulerActiveGauge    = metricz.Key("scheduler.tasks.active")

	// DefaultJoinTimeout is the bound join() waits for a thread to
	// terminate before returning a Timeout error.
	DefaultJoinTimeout = 30 * time.Second
	// parkTimeout is how long a carrier waits on the shared condvar
	// before re-checking the injector and peer deques.
	parkTimeout = 10 * time.Millisecond
)

// injectorQueue is the scheduler's global MPMC FIFO submission queue.
type injectorQueue struct {
	mu    sync.Mutex
	items []*Task
}

func (q *injectorQueue) push(t *Task) {
	q.mu.Lock()
	q.items = append(q.items, t)
	q.mu.Unlock()
}

func (q *injectorQueue) pop() (*Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, false
	}
	t := q.items[0]
	q.items = q.items[1:]
	return t, true
}

func (q *injectorQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Option configures a Scheduler at construction time.
type Option func(*Scheduler)

// WithWorkers sets the number of carrier goroutines. Defaults to
// GetWorkerCount() (runtime.NumCPU() unless overridden).
func WithWorkers(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.numWorkers = n
		}
	}
}

// WithBlockingCapacity bounds how many blocking tasks may run
// concurrently in the dedicated blocking pool. Defaults to 4x the
// worker count.
func WithBlockingCapacity(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.blockingCap = int64(n)
		}
	}
}

// WithClock injects a clock, used for the carrier park timeout and the
// join deadline, so tests can control time deterministically.
func WithClock(c clockz.Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// Scheduler is a work-stealing virtual-thread scheduler: a fixed pool of
// carrier goroutines, each owning a local deque, pulling from a shared
// injector and from each other when idle.
type Scheduler struct {
	numWorkers  int
	blockingCap int64
	clock       clockz.Clock

	injector *injectorQueue
	deques   []*localDeque

	parkMu   sync.Mutex
	parkCond *sync.Cond

	running      atomic.Bool
	nextID       atomic.Uint64
	activeCount  AtomicCounter
	totalCreated AtomicCounter
	completed    AtomicCounter

	registry    *vthreadRegistry
	blockingSem *semaphore.Weighted

	wg           sync.WaitGroup
	shutdownOnce sync.Once

	metrics *metricz.Registry
}

// NewScheduler creates and starts a Scheduler. Carriers begin running
// immediately; call Shutdown exactly once when finished.
func NewScheduler(opts ...Option) *Scheduler {
	s := &Scheduler{
		numWorkers: GetWorkerCount(),
		clock:      clockz.RealClock,
		injector:   &injectorQueue{},
		registry:   newVThreadRegistry(),
		metrics:    metricz.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.numWorkers < 1 {
		s.numWorkers = 1
	}
	if s.blockingCap == 0 {
		s.blockingCap = int64(s.numWorkers * 4)
	}
	s.parkCond = sync.NewCond(&s.parkMu)
	s.blockingSem = semaphore.NewWeighted(s.blockingCap)
	s.deques = make([]*localDeque, s.numWorkers)
	for i := range s.deques {
		s.deques[i] = &localDeque{}
	}

	s.metrics.Counter(SchedulerTasksSubmitted)
	s.metrics.Counter(SchedulerTasksCompleted)
	s.metrics.Counter(SchedulerTasksStolen)
	s.metrics.Gauge(SchedulerActiveGauge)

	s.running.Store(true)
	capitan.Info(context.Background(), SignalSchedulerStarted,
		FieldName.Field("scheduler"),
	)

	for i := 0; i < s.numWorkers; i++ {
		s.wg.Add(1)
		go s.carrierLoop(i)
	}
	return s
}

// carrierContextKey tags the context a carrier passes to the Callable it
// runs, so a Callable that itself calls Submit from inside that call can
// be routed to the calling carrier's own local deque instead of the
// injector. This is what gives the local deques and peer-stealing any
// work to do: a Task fanning out subtasks gets locality for its own
// children, and an idle peer still steals them if this carrier falls
// behind.
type carrierContextKey struct{}

// Submit pushes a new task and returns a fresh, monotonically increasing
// virtual-thread ID. If ctx was handed to this call by a carrier
// currently running a Callable (i.e. this is a nested submission from
// within another task), the new task is pushed onto that carrier's own
// local deque for locality; otherwise it goes to the shared injector.
// Submit never fails while the scheduler is running. After Shutdown the
// task is not queued: its virtual thread terminates at once with an
// InvalidState error, which Join returns. A task that is still queued
// when Shutdown runs is dropped without running.
func (s *Scheduler) Submit(ctx context.Context, c Callable, args []any, blocking bool) uint64 {
	id := s.nextID.Add(1)
	t := &Task{Callable: c, Args: args, Blocking: blocking, id: id}
	vt := newVirtualThread(id, t)
	s.registry.insert(vt)
	if !s.running.Load() {
		vt.complete(nil, &Error{Kind: InvalidState, Err: errSchedulerStopped})
		return id
	}
	s.totalCreated.Add(1)

	if idx, ok := ctx.Value(carrierContextKey{}).(int); ok {
		s.deques[idx].pushBack(t)
	} else {
		s.injector.push(t)
	}
	s.metrics.Counter(SchedulerTasksSubmitted).Inc()
	capitan.Info(context.Background(), SignalTaskSubmitted,
		FieldTaskID.Field(int(id)),
	)
	s.wakeParked()
	return id
}

func (s *Scheduler) wakeParked() {
	s.parkMu.Lock()
	s.parkCond.Broadcast()
	s.parkMu.Unlock()
}

func (s *Scheduler) carrierLoop(idx int) {
	defer s.wg.Done()
	for {
		if !s.running.Load() {
			return
		}

		task, ok := s.injector.pop()
		if !ok {
			task, ok = s.deques[idx].popBack()
		}
		if !ok {
			for j := 1; j < s.numWorkers; j++ {
				peer := (idx + j) % s.numWorkers
				if task, ok = s.deques[peer].stealFront(); ok {
					s.metrics.Counter(SchedulerTasksStolen).Inc()
					capitan.Info(context.Background(), SignalCarrierStole,
						FieldWorkerID.Field(idx),
					)
					break
				}
			}
		}

		if !ok {
			s.park()
			continue
		}

		if !s.running.Load() {
			// Shutdown requested while this task sat in a queue: drop
			// any injected-but-unstarted work, per the scheduler's sole
			// teardown path.
			continue
		}

		s.execute(idx, task)
	}
}

func (s *Scheduler) park() {
	s.parkMu.Lock()
	if !s.running.Load() {
		s.parkMu.Unlock()
		return
	}
	timer := time.AfterFunc(parkTimeout, s.parkCond.Broadcast)
	s.parkCond.Wait()
	timer.Stop()
	s.parkMu.Unlock()
}

func (s *Scheduler) execute(idx int, t *Task) {
	vt, ok := s.registry.get(t.id)
	if !ok {
		return
	}
	vt.markRunning()
	s.activeCount.Add(1)
	s.metrics.Gauge(SchedulerActiveGauge).Set(float64(s.activeCount.Get()))

	ctx := context.WithValue(context.Background(), carrierContextKey{}, idx)

	if t.Blocking {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			value, ferr := s.runBlocking(ctx, t)
			s.finishTask(vt, t, value, ferr)
		}()
		return
	}
	value, ferr := s.runInline(ctx, t)
	s.finishTask(vt, t, value, ferr)
}

// finishTask records a task's completion in the counters and stores its
// result in the virtual thread.
func (s *Scheduler) finishTask(vt *VirtualThread, t *Task, value any, ferr *Error) {
	s.activeCount.Sub(1)
	s.completed.Add(1)
	s.metrics.Gauge(SchedulerActiveGauge).Set(float64(s.activeCount.Get()))
	s.metrics.Counter(SchedulerTasksCompleted).Inc()

	vt.complete(value, ferr)
	capitan.Info(context.Background(), SignalTaskCompleted,
		FieldTaskID.Field(int(t.id)),
	)
}

// runInline executes a non-blocking task on the carrier goroutine
// itself, recovering any panic into a TaskFailed error.
func (s *Scheduler) runInline(ctx context.Context, t *Task) (value any, ferr *Error) {
	defer recoverFromPanic(&value, &ferr, "scheduler")
	v, err := t.Callable.Call(ctx, t.Args)
	if err != nil {
		return nil, wrapErr(TaskFailed, "scheduler", err)
	}
	return v, nil
}

// runBlocking runs a blocking task on its own goroutine (started by
// execute) under a bounded pool, so the carrier is not pinned for the
// task's duration. The weighted
// semaphore is the idiomatic Go stand-in for the "owned async runtime"
// described in the scheduling algorithm: Go's runtime already
// multiplexes goroutines onto OS threads, so bounding concurrency is
// sufficient without reimplementing a second executor.
func (s *Scheduler) runBlocking(ctx context.Context, t *Task) (any, *Error) {
	if err := s.blockingSem.Acquire(ctx, 1); err != nil {
		return nil, &Error{Kind: Poisoned, Err: err}
	}
	defer s.blockingSem.Release(1)

	var value any
	var ferr *Error
	func() {
		defer recoverFromPanic(&value, &ferr, "scheduler")
		v, err := t.Callable.Call(ctx, t.Args)
		if err != nil {
			ferr = wrapErr(TaskFailed, "scheduler", err)
			return
		}
		value = v
	}()
	return value, ferr
}

// Join blocks until the virtual thread with id reaches Terminated, then
// returns its stored result. It fails with Timeout after
// DefaultJoinTimeout, NotFound if id was never issued, or the task's
// own error.
func (s *Scheduler) Join(ctx context.Context, id uint64) (any, error) {
	vt, ok := s.registry.get(id)
	if !ok {
		return nil, &Error{Kind: NotFound, Err: errUnknownThread}
	}

	deadline := s.clock.Now().Add(DefaultJoinTimeout)
	if d, has := ctx.Deadline(); has && d.Before(deadline) {
		deadline = d
	}

	done := make(chan bool, 1)
	go func() { done <- vt.waitTerminated(deadline) }()

	select {
	case terminated := <-done:
		if !terminated {
			return nil, &Error{Kind: Timeout, Err: errJoinTimeout, Timeout: true}
		}
	case <-ctx.Done():
		return nil, &Error{Kind: Timeout, Err: ctx.Err(), Canceled: true}
	}

	value, ferr, _ := vt.snapshotResult()
	if ferr != nil {
		return nil, ferr
	}
	return value, nil
}

// JoinAll joins every id in order, returning results in the same order.
// On the first error it still joins the remaining IDs (so their results
// stay retrievable in the registry) but returns only the first error.
func (s *Scheduler) JoinAll(ctx context.Context, ids []uint64) ([]any, error) {
	results := make([]any, len(ids))
	var firstErr error
	for i, id := range ids {
		v, err := s.Join(ctx, id)
		results[i] = v
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return results, firstErr
}

// Stats reports the scheduler's live counters.
type Stats struct {
	TotalCreated int64
	Active       int64
	Completed    int64
}

// Stats returns a snapshot of scheduler-wide counters.
func (s *Scheduler) Stats() Stats {
	return Stats{
		TotalCreated: s.totalCreated.Get(),
		Active:       s.activeCount.Get(),
		Completed:    s.completed.Get(),
	}
}

// Shutdown stops the scheduler: it flips the running flag, wakes every
// parked carrier, and waits for all carriers and running blocking tasks
// to exit. Calling it more than once is safe; calls after the first are
// no-ops.
func (s *Scheduler) Shutdown() {
	s.shutdownOnce.Do(func() {
		s.running.Store(false)
		s.parkMu.Lock()
		s.parkCond.Broadcast()
		s.parkMu.Unlock()
		s.wg.Wait()
		capitan.Info(context.Background(), SignalSchedulerShutdown,
			FieldName.Field("scheduler"),
		)
	})
}

var errUnknownThread = &simpleErr{"unknown virtual thread id"}
var errJoinTimeout = &simpleErr{"join exceeded its bound"}
var errSchedulerStopped = &simpleErr{"scheduler has been shut down"}
