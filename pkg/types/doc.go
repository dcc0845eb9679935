/*
Package types defines the core data structures shared by the orchestrator
and task worker processes.

This package contains the task orchestration domain model: scheduled tasks,
the schedule that holds them, execution records, and the enumerations that
describe real-time scheduling and task lifecycle. These types are used by
pkg/schedule (loading), pkg/rpc (wire messages), pkg/worker (lifecycle),
pkg/orchestrator (the scheduling engine), and pkg/execrecord (history).

# Core Types

Schedule:
  - ScheduledTask: one entry of a loaded schedule, immutable once loaded.
  - TaskSchedule: the horizon, tick duration, and ordered task list.
  - TaskMode: SEQUENTIAL or TIMED release discipline.

Real-time configuration:
  - RTPolicy: NONE, FIFO, RR, DEADLINE.
  - RTConfig: policy, priority, CPU affinity, and memory-lock flags applied
    to the thread that runs a task invocation.

Execution:
  - ExecutionRecord: the orchestrator's mutable, per-invocation bookkeeping
    entry.
  - TaskState: IDLE, STARTING, RUNNING, COMPLETED, FAILED, CANCELLED,
    STOPPED.
  - TaskResult: UNKNOWN, SUCCESS, FAILURE, CANCELLED.

# Design patterns

Enumerations use typed string constants, following the rest of this code
base:

	type TaskState string
	const (
	    TaskStateIdle    TaskState = "idle"
	    TaskStateRunning TaskState = "running"
	)

ScheduledTask is treated as immutable once a schedule is loaded; callers
that need to mutate task-scoped state do so through an ExecutionRecord
instead of the ScheduledTask itself.
*/
package types
