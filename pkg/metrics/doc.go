/*
Package metrics provides Prometheus metrics collection and exposition for the
orchestrator and task worker processes.

# Metrics Catalog

Scheduling Metrics:

taskorch_tasks_released_total{mode}:
  - Type: Counter
  - Description: Total tasks released by the scheduler, by mode (timed/sequential)

taskorch_tasks_completed_total{result}:
  - Type: Counter
  - Description: Total task invocations that reached a terminal state, by result

taskorch_scheduling_latency_seconds:
  - Type: Histogram
  - Description: Time to dispatch a StartTask RPC after a task is released

taskorch_context_switch_microseconds:
  - Type: Histogram
  - Description: Gap between one task's recorded end and the next task's recorded start

taskorch_task_duration_microseconds{result}:
  - Type: Histogram
  - Description: Task execution duration as reported in the end notification

taskorch_active_tasks:
  - Type: Gauge
  - Description: Number of task invocations currently between release and completion

Worker Metrics:

taskorch_worker_state_transitions_total{state}:
  - Type: Counter
  - Description: Total worker lifecycle state transitions, by target state

taskorch_rt_config_apply_failures_total:
  - Type: Counter
  - Description: Total times applying a requested real-time configuration failed

RPC Metrics:

taskorch_rpc_call_duration_seconds{method, outcome}:
  - Type: Histogram
  - Description: Client-observed duration of outbound RPC calls, by method and outcome

# Usage

	timer := metrics.NewTimer()
	// ... dispatch StartTask ...
	timer.ObserveDuration(metrics.SchedulingLatency)

	metrics.TasksCompletedTotal.WithLabelValues("success").Inc()

	http.Handle("/metrics", metrics.Handler())

# Health, Readiness, Liveness

In addition to the Prometheus registry, this package tracks the health of
this process's two subsystems independently of metric values: the RPC
server (SetRPCServer) and the scheduling engine (SetScheduler), plus
running counts of in-flight and completed task invocations
(RecordTaskReleased, RecordTaskFinished). GetHealth and GetReadiness fold
both into one status; HealthHandler, ReadyHandler, and LivenessHandler
wire them into a process's HTTP mux. A process is not ready until both
subsystems have reported in and neither is unhealthy.
*/
package metrics
