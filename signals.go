package pyferris

import "github.com/zoobzio/capitan"

// Signal constants for pyferris component events.
// Signals follow the pattern: <component>.<event>.
const (
	// Scheduler signals.
	SignalSchedulerStarted   capitan.Signal = "scheduler.started"
	SignalSchedulerShutdown  capitan.Signal = "scheduler.shutdown"
	SignalCarrierParked      capitan.Signal = "scheduler.carrier-parked"
	SignalCarrierStole       capitan.Signal = "scheduler.carrier-stole"
	SignalTaskSubmitted      capitan.Signal = "scheduler.task-submitted"
	SignalTaskCompleted      capitan.Signal = "scheduler.task-completed"
	SignalTaskPanicked       capitan.Signal = "scheduler.task-panicked"
	SignalBlockingSaturated  capitan.Signal = "scheduler.blocking-saturated"

	// CircuitBreaker signals.
	SignalCircuitBreakerOpened   capitan.Signal = "circuitbreaker.opened"
	SignalCircuitBreakerClosed   capitan.Signal = "circuitbreaker.closed"
	SignalCircuitBreakerHalfOpen capitan.Signal = "circuitbreaker.half-open"
	SignalCircuitBreakerRejected capitan.Signal = "circuitbreaker.rejected"

	// Retry signals.
	SignalRetryAttemptStart capitan.Signal = "retry.attempt-start"
	SignalRetryAttemptFail  capitan.Signal = "retry.attempt-fail"
	SignalRetryExhausted    capitan.Signal = "retry.exhausted"
	SignalRetryNonRetryable capitan.Signal = "retry.non-retryable"

	// Checkpoint signals.
	SignalCheckpointSaved    capitan.Signal = "checkpoint.saved"
	SignalCheckpointTrimmed  capitan.Signal = "checkpoint.trimmed"
	SignalCheckpointRestored capitan.Signal = "checkpoint.restored"

	// Cluster signals.
	SignalNodeJoined     capitan.Signal = "cluster.node-joined"
	SignalNodeRemoved    capitan.Signal = "cluster.node-removed"
	SignalNodeStatusSet  capitan.Signal = "cluster.node-status"
	SignalTaskAssigned   capitan.Signal = "distributed.task-assigned"
	SignalTaskCancelled  capitan.Signal = "distributed.task-cancelled"
	SignalTaskCompletedD capitan.Signal = "distributed.task-completed"
)

// Common field keys using capitan primitive types.
var (
	FieldName      = capitan.NewStringKey("name")
	FieldError     = capitan.NewStringKey("error")
	FieldTimestamp = capitan.NewFloat64Key("timestamp")

	// Scheduler fields.
	FieldWorkerID      = capitan.NewIntKey("worker_id")
	FieldTaskID        = capitan.NewIntKey("task_id")
	FieldActiveWorkers = capitan.NewIntKey("active_workers")
	FieldQueueDepth    = capitan.NewIntKey("queue_depth")

	// CircuitBreaker fields.
	FieldState            = capitan.NewStringKey("state")
	FieldFailures         = capitan.NewIntKey("failures")
	FieldSuccesses        = capitan.NewIntKey("successes")
	FieldFailureThreshold = capitan.NewIntKey("failure_threshold")
	FieldSuccessThreshold = capitan.NewIntKey("success_threshold")
	FieldResetTimeout     = capitan.NewFloat64Key("reset_timeout")
	FieldGeneration       = capitan.NewIntKey("generation")

	// Retry fields.
	FieldAttempt     = capitan.NewIntKey("attempt")
	FieldMaxAttempts = capitan.NewIntKey("max_attempts")

	// Checkpoint fields.
	FieldCheckpointID = capitan.NewStringKey("checkpoint_id")
	FieldOperationID  = capitan.NewStringKey("operation_id")
	FieldRetained     = capitan.NewIntKey("retained")

	// Cluster fields.
	FieldNodeID = capitan.NewStringKey("node_id")
	FieldLoad   = capitan.NewFloat64Key("load")

	// Distributed task fields (task IDs here are uuid strings, distinct
	// from the scheduler's numeric FieldTaskID).
	FieldDistTaskID = capitan.NewStringKey("dist_task_id")
)
