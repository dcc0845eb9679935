// Package metrics exposes Prometheus instrumentation for the orchestrator
// and task worker processes.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Orchestrator scheduling metrics

	TasksReleasedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskorch_tasks_released_total",
			Help: "Total number of tasks released by the scheduler, by mode",
		},
		[]string{"mode"},
	)

	TasksCompletedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskorch_tasks_completed_total",
			Help: "Total number of task invocations that reached a terminal state, by result",
		},
		[]string{"result"},
	)

	SchedulingLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "taskorch_scheduling_latency_seconds",
			Help:    "Time taken to dispatch a StartTask RPC after a task is released",
			Buckets: prometheus.DefBuckets,
		},
	)

	ContextSwitchMicroseconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "taskorch_context_switch_microseconds",
			Help:    "Gap between one task's recorded end and the next task's recorded start",
			Buckets: prometheus.ExponentialBuckets(100, 2, 16),
		},
	)

	TaskDurationMicroseconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "taskorch_task_duration_microseconds",
			Help:    "Task execution duration as reported in the end notification",
			Buckets: prometheus.ExponentialBuckets(1000, 2, 20),
		},
		[]string{"result"},
	)

	ActiveTasks = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "taskorch_active_tasks",
			Help: "Number of task invocations currently between release and completion",
		},
	)

	// Worker metrics

	WorkerStateTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskorch_worker_state_transitions_total",
			Help: "Total number of worker lifecycle state transitions, by target state",
		},
		[]string{"state"},
	)

	RTConfigApplyFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "taskorch_rt_config_apply_failures_total",
			Help: "Total number of times applying a requested real-time configuration failed",
		},
	)

	// RPC metrics

	RPCCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "taskorch_rpc_call_duration_seconds",
			Help:    "Client-observed duration of outbound RPC calls, by method and outcome",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		TasksReleasedTotal,
		TasksCompletedTotal,
		SchedulingLatency,
		ContextSwitchMicroseconds,
		TaskDurationMicroseconds,
		ActiveTasks,
		WorkerStateTransitionsTotal,
		RTConfigApplyFailuresTotal,
		RPCCallDuration,
	)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
