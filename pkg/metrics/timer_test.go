package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func sampleCount(t *testing.T, m prometheus.Metric) uint64 {
	t.Helper()
	var pb dto.Metric
	if err := m.Write(&pb); err != nil {
		t.Fatalf("writing metric: %v", err)
	}
	return pb.GetHistogram().GetSampleCount()
}

func TestNewTimer(t *testing.T) {
	timer := NewTimer()

	if timer == nil {
		t.Fatal("NewTimer() returned nil")
	}
	if timer.start.IsZero() {
		t.Error("NewTimer() start time is zero")
	}
}

func TestTimerDuration(t *testing.T) {
	timer := NewTimer()

	sleepDuration := 20 * time.Millisecond
	time.Sleep(sleepDuration)

	duration := timer.Duration()
	if duration < sleepDuration {
		t.Errorf("Timer.Duration() = %v, want >= %v", duration, sleepDuration)
	}
}

// TestTimerObserveDuration exercises the timer against SchedulingLatency, the
// histogram executeTask actually observes after dispatching a StartTask RPC.
func TestTimerObserveDuration(t *testing.T) {
	before := sampleCount(t, SchedulingLatency)

	timer := NewTimer()
	time.Sleep(time.Millisecond)
	timer.ObserveDuration(SchedulingLatency)

	after := sampleCount(t, SchedulingLatency)
	if after != before+1 {
		t.Errorf("SchedulingLatency sample count = %d, want %d", after, before+1)
	}
}

// TestTimerObserveDurationVec exercises the timer against RPCCallDuration,
// which executeTask labels by RPC method and outcome.
func TestTimerObserveDurationVec(t *testing.T) {
	observer := RPCCallDuration.WithLabelValues("StartTask", "success")
	metric, ok := observer.(prometheus.Metric)
	if !ok {
		t.Fatal("RPCCallDuration observer does not implement prometheus.Metric")
	}
	before := sampleCount(t, metric)

	timer := NewTimer()
	time.Sleep(time.Millisecond)
	timer.ObserveDurationVec(RPCCallDuration, "StartTask", "success")

	after := sampleCount(t, metric)
	if after != before+1 {
		t.Errorf("RPCCallDuration{StartTask,success} sample count = %d, want %d", after, before+1)
	}
}

// TestContextSwitchMicroseconds_ObservesGapBetweenTasks exercises the
// histogram engine.go's executeTask observes when a predecessor's recorded
// end time precedes the next task's actual start.
func TestContextSwitchMicroseconds_ObservesGapBetweenTasks(t *testing.T) {
	before := sampleCount(t, ContextSwitchMicroseconds)

	const contextSwitchUs = 1500
	ContextSwitchMicroseconds.Observe(float64(contextSwitchUs))

	after := sampleCount(t, ContextSwitchMicroseconds)
	if after != before+1 {
		t.Errorf("ContextSwitchMicroseconds sample count = %d, want %d", after, before+1)
	}
}

// TestTaskDurationMicroseconds_LabeledByResult exercises the histogram vec
// finalize observes once a task reaches a terminal state, keyed by result.
func TestTaskDurationMicroseconds_LabeledByResult(t *testing.T) {
	for _, result := range []string{"success", "failure", "cancelled"} {
		observer := TaskDurationMicroseconds.WithLabelValues(result)
		metric, ok := observer.(prometheus.Metric)
		if !ok {
			t.Fatalf("TaskDurationMicroseconds observer for %q does not implement prometheus.Metric", result)
		}
		before := sampleCount(t, metric)

		TaskDurationMicroseconds.WithLabelValues(result).Observe(42000)

		after := sampleCount(t, metric)
		if after != before+1 {
			t.Errorf("TaskDurationMicroseconds{%s} sample count = %d, want %d", result, after, before+1)
		}
	}
}

// TestTasksCompletedTotal_IncrementsPerResult exercises the counter vec
// finalize increments alongside metrics.RecordTaskFinished.
func TestTasksCompletedTotal_IncrementsPerResult(t *testing.T) {
	before := testutil.ToFloat64(TasksCompletedTotal.WithLabelValues("success"))

	TasksCompletedTotal.WithLabelValues("success").Inc()

	after := testutil.ToFloat64(TasksCompletedTotal.WithLabelValues("success"))
	if after != before+1 {
		t.Errorf("TasksCompletedTotal{success} = %v, want %v", after, before+1)
	}
}

// TestActiveTasks_TracksReleaseAndCompletion exercises the gauge
// executeTask/finalize increment and decrement around a task's lifetime.
func TestActiveTasks_TracksReleaseAndCompletion(t *testing.T) {
	before := testutil.ToFloat64(ActiveTasks)

	ActiveTasks.Inc()
	if got := testutil.ToFloat64(ActiveTasks); got != before+1 {
		t.Errorf("ActiveTasks after release = %v, want %v", got, before+1)
	}

	ActiveTasks.Dec()
	if got := testutil.ToFloat64(ActiveTasks); got != before {
		t.Errorf("ActiveTasks after completion = %v, want %v", got, before)
	}
}
