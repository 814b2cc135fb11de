package pyferris

import "sync"

// localDeque is the per-carrier double-ended queue: the owning carrier
// pushes and pops from the back, while peer carriers steal from the
// front. A mutex guards all operations; contention is acceptable
// because steals are infrequent relative to local pops.
type localDeque struct {
	mu    sync.Mutex
	items []*Task
}

// pushBack adds a task to the owner end of the deque.
func (d *localDeque) pushBack(t *Task) {
	d.mu.Lock()
	d.items = append(d.items, t)
	d.mu.Unlock()
}

// popBack removes and returns a task from the owner end.
func (d *localDeque) popBack() (*Task, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := len(d.items) - 1
	if n < 0 {
		return nil, false
	}
	t := d.items[n]
	d.items = d.items[:n]
	return t, true
}

// stealFront removes and returns a task from the thief end. This is the
// linearization point for cross-worker steals: at most one thief wins a
// given task because it happens under the deque's own mutex.
func (d *localDeque) stealFront() (*Task, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.items) == 0 {
		return nil, false
	}
	t := d.items[0]
	d.items = d.items[1:]
	return t, true
}

// len returns the current deque size.
func (d *localDeque) len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.items)
}
