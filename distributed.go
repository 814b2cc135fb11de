package pyferris

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zoobzio/capitan"
)

// TaskStatus is a distributed task's lifecycle state.
type TaskStatus string

// Task statuses.
const (
	TaskPending   TaskStatus = "pending"
	TaskAssigned  TaskStatus = "assigned"
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskFailedSt  TaskStatus = "failed"
	TaskCancelled TaskStatus = "cancelled"
)

// DistributedTask is a unit of work routed to a cluster node.
type DistributedTask struct {
	ID           string
	Payload      any
	Requirements Requirements
	Status       TaskStatus
	AssignedNode string
	SubmittedAt  time.Time
}

// TaskResult is the outcome of a completed or failed DistributedTask.
type TaskResult struct {
	TaskID   string
	Value    any
	Err      error
	Duration time.Duration
}

// DistributedExecutor assigns DistributedTasks to cluster nodes via a
// LoadBalancer and collects their results. It does not itself transport
// tasks over the network — CompleteTask is the integration point a
// transport layer (RPC server, message consumer, whatever moves bytes
// between nodes) calls back into once a remote node reports a result.
// This resolves the ambiguity of how a waiting GetResult call is woken:
// explicit push, not polling.
type DistributedExecutor struct {
	mu       sync.Mutex
	manager  *ClusterManager
	balancer *LoadBalancer
	tasks    *ConcurrentMap[string, *DistributedTask]
	waiters  *ConcurrentMap[string, chan TaskResult]
}

// NewDistributedExecutor creates an executor over manager using
// balancer for node selection.
func NewDistributedExecutor(manager *ClusterManager, balancer *LoadBalancer) *DistributedExecutor {
	return &DistributedExecutor{
		manager:  manager,
		balancer: balancer,
		tasks:    NewConcurrentMap[string, *DistributedTask](fnv1aString),
		waiters:  NewConcurrentMap[string, chan TaskResult](fnv1aString),
	}
}

// SubmitTask assigns payload to a node chosen by the balancer and
// registers it as Assigned. It does not block for completion; call
// GetResult to wait.
func (de *DistributedExecutor) SubmitTask(ctx context.Context, payload any, req Requirements) (*DistributedTask, error) {
	node, ok := de.balancer.SelectNode(de.manager.ActiveNodes(), req)
	if !ok {
		return nil, &Error{Kind: NotFound, Err: errNoEligibleNode}
	}

	task := &DistributedTask{
		ID:           uuid.New().String(),
		Payload:      payload,
		Requirements: req,
		Status:       TaskAssigned,
		AssignedNode: node.ID,
		SubmittedAt:  time.Now(),
	}
	de.tasks.Set(task.ID, task)
	de.waiters.Set(task.ID, make(chan TaskResult, 1))

	capitan.Info(ctx, SignalTaskAssigned, FieldDistTaskID.Field(task.ID), FieldNodeID.Field(node.ID))
	return task, nil
}

// SubmitBatch submits each payload independently, stopping at the first
// assignment failure (e.g. no eligible node). Tasks already submitted
// are not rolled back.
func (de *DistributedExecutor) SubmitBatch(ctx context.Context, payloads []any, req Requirements) ([]*DistributedTask, error) {
	out := make([]*DistributedTask, 0, len(payloads))
	for _, p := range payloads {
		t, err := de.SubmitTask(ctx, p, req)
		if err != nil {
			return out, err
		}
		out = append(out, t)
	}
	return out, nil
}

// GetTaskStatus returns the task's current status.
func (de *DistributedExecutor) GetTaskStatus(taskID string) (TaskStatus, error) {
	t, ok := de.tasks.Get(taskID)
	if !ok {
		return "", &Error{Kind: NotFound, Err: errTaskNotFound}
	}
	return t.Status, nil
}

// GetResult blocks until CompleteTask delivers a result for taskID, ctx
// is done, or the task is not found.
func (de *DistributedExecutor) GetResult(ctx context.Context, taskID string) (TaskResult, error) {
	ch, ok := de.waiters.Get(taskID)
	if !ok {
		return TaskResult{}, &Error{Kind: NotFound, Err: errTaskNotFound}
	}
	select {
	case res := <-ch:
		return res, nil
	case <-ctx.Done():
		return TaskResult{}, &Error{Kind: Timeout, Err: ctx.Err()}
	}
}

// CompleteTask is the integration point a transport layer calls once a
// remote node reports outcome. It marks the task Completed or Failed
// and wakes any GetResult waiter. Calling it twice for the same taskID
// is a no-op on the second call (the channel is buffered for exactly
// one send).
func (de *DistributedExecutor) CompleteTask(ctx context.Context, taskID string, value any, err error, duration time.Duration) {
	t, ok := de.tasks.Get(taskID)
	if !ok {
		return
	}

	de.mu.Lock()
	if t.Status == TaskCompleted || t.Status == TaskFailedSt || t.Status == TaskCancelled {
		de.mu.Unlock()
		return
	}
	if err != nil {
		t.Status = TaskFailedSt
	} else {
		t.Status = TaskCompleted
	}
	de.mu.Unlock()

	capitan.Info(ctx, SignalTaskCompletedD, FieldDistTaskID.Field(taskID), FieldNodeID.Field(t.AssignedNode))

	if ch, ok := de.waiters.Get(taskID); ok {
		select {
		case ch <- TaskResult{TaskID: taskID, Value: value, Err: err, Duration: duration}:
		default:
		}
	}
}

// CancelTask marks a Pending or Assigned task Cancelled. Running tasks
// cannot be cancelled once a node has picked them up — there is no
// preemption channel back to the remote node — so CancelTask on a
// Running task returns InvalidState.
func (de *DistributedExecutor) CancelTask(ctx context.Context, taskID string) error {
	t, ok := de.tasks.Get(taskID)
	if !ok {
		return &Error{Kind: NotFound, Err: errTaskNotFound}
	}

	de.mu.Lock()
	defer de.mu.Unlock()
	switch t.Status {
	case TaskPending, TaskAssigned:
		t.Status = TaskCancelled
		capitan.Info(ctx, SignalTaskCancelled, FieldDistTaskID.Field(taskID), FieldNodeID.Field(t.AssignedNode))
		if ch, ok := de.waiters.Get(taskID); ok {
			select {
			case ch <- TaskResult{TaskID: taskID, Err: errTaskCancelled}:
			default:
			}
		}
		return nil
	default:
		return &Error{Kind: InvalidState, Err: errCannotCancelRunning}
	}
}

// WaitForAll blocks until every task in taskIDs has a delivered result,
// ctx is done, or one GetResult call errors. Results are returned in
// the same order as taskIDs.
func (de *DistributedExecutor) WaitForAll(ctx context.Context, taskIDs []string) ([]TaskResult, error) {
	out := make([]TaskResult, len(taskIDs))
	for i, id := range taskIDs {
		res, err := de.GetResult(ctx, id)
		if err != nil {
			return out, err
		}
		out[i] = res
	}
	return out, nil
}

// DistributedStats summarizes the executor's task registry.
type DistributedStats struct {
	Total     int
	Pending   int
	Assigned  int
	Running   int
	Completed int
	Failed    int
	Cancelled int
}

// Stats computes a snapshot summary across all tracked tasks.
func (de *DistributedExecutor) Stats() DistributedStats {
	var s DistributedStats
	for _, t := range de.tasks.Snapshot() {
		s.Total++
		switch t.Status {
		case TaskPending:
			s.Pending++
		case TaskAssigned:
			s.Assigned++
		case TaskRunning:
			s.Running++
		case TaskCompleted:
			s.Completed++
		case TaskFailedSt:
			s.Failed++
		case TaskCancelled:
			s.Cancelled++
		}
	}
	return s
}

var (
	errNoEligibleNode      = &simpleErr{"no eligible cluster node for task requirements"}
	errTaskNotFound        = &simpleErr{"distributed task not found"}
	errTaskCancelled       = &simpleErr{"distributed task was cancelled"}
	errCannotCancelRunning = &simpleErr{"cannot cancel a task already running on a node"}
)
