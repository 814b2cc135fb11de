package pyferris

import (
	"sync"
	"time"
)

// vthreadState is the per-virtual-thread state machine. It is monotonic:
// Created -> Runnable -> Running -> Terminated. Terminated is absorbing.
type vthreadState int32

const (
	stateCreated vthreadState = iota
	stateRunnable
	stateRunning
	stateTerminated
)

func (s vthreadState) String() string {
	switch s {
	case stateCreated:
		return "created"
	case stateRunnable:
		return "runnable"
	case stateRunning:
		return "running"
	case stateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// vthreadResult holds the None/Some(Ok|Err) result slot. A virtual
// thread's result transitions from unset to set exactly once, strictly
// before its state becomes Terminated.
type vthreadResult struct {
	set   bool
	value any
	err   *Error
}

// VirtualThread is a lightweight, user-space unit of scheduled work: an
// identity, a state, a result slot, and timing. It is never backed by
// its own OS thread.
type VirtualThread struct {
	mu        sync.Mutex
	cond      *sync.Cond
	id        uint64
	task      *Task
	state     vthreadState
	result    vthreadResult
	startedAt time.Time
	endedAt   time.Time
}

func newVirtualThread(id uint64, t *Task) *VirtualThread {
	vt := &VirtualThread{id: id, task: t, state: stateRunnable}
	vt.cond = sync.NewCond(&vt.mu)
	return vt
}

// ID returns the virtual thread's monotonically assigned identifier.
func (vt *VirtualThread) ID() uint64 { return vt.id }

// State returns the current state under lock.
func (vt *VirtualThread) State() string {
	vt.mu.Lock()
	defer vt.mu.Unlock()
	return vt.state.String()
}

// markRunning transitions Runnable -> Running and records the start
// time. It is a no-op if called out of order (defensive; the scheduler
// never calls it out of order in practice).
func (vt *VirtualThread) markRunning() {
	vt.mu.Lock()
	defer vt.mu.Unlock()
	if vt.state != stateRunnable {
		return
	}
	vt.state = stateRunning
	vt.startedAt = time.Now()
}

// complete stores the result and transitions to Terminated, waking any
// goroutines blocked in join. The result slot is set before the state
// flips, preserving the invariant that Terminated implies result != None.
func (vt *VirtualThread) complete(value any, err *Error) {
	vt.mu.Lock()
	defer vt.mu.Unlock()
	vt.result = vthreadResult{set: true, value: value, err: err}
	vt.state = stateTerminated
	vt.endedAt = time.Now()
	vt.cond.Broadcast()
}

// waitTerminated blocks until the thread reaches Terminated or deadline
// elapses, returning false on timeout.
func (vt *VirtualThread) waitTerminated(deadline time.Time) bool {
	vt.mu.Lock()
	defer vt.mu.Unlock()
	for vt.state != stateTerminated {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false
		}
		timer := time.AfterFunc(remaining, vt.cond.Broadcast)
		vt.cond.Wait()
		timer.Stop()
	}
	return true
}

func (vt *VirtualThread) snapshotResult() (any, *Error, bool) {
	vt.mu.Lock()
	defer vt.mu.Unlock()
	return vt.result.value, vt.result.err, vt.result.set
}

// duration returns how long the thread ran, valid only once Terminated.
func (vt *VirtualThread) duration() time.Duration {
	vt.mu.Lock()
	defer vt.mu.Unlock()
	if vt.startedAt.IsZero() || vt.endedAt.IsZero() {
		return 0
	}
	return vt.endedAt.Sub(vt.startedAt)
}

// vthreadRegistry maps virtual-thread IDs to records. It is the single
// piece of shared state touched by both the submission path and every
// carrier, kept as a ConcurrentMap for low-contention lookups under
// high submission volume.
type vthreadRegistry struct {
	threads *ConcurrentMap[uint64, *VirtualThread]
}

func newVThreadRegistry() *vthreadRegistry {
	return &vthreadRegistry{
		threads: NewConcurrentMap[uint64, *VirtualThread](func(id uint64) uint64 { return id }),
	}
}

func (r *vthreadRegistry) insert(vt *VirtualThread) {
	r.threads.Set(vt.id, vt)
}

func (r *vthreadRegistry) get(id uint64) (*VirtualThread, bool) {
	return r.threads.Get(id)
}
