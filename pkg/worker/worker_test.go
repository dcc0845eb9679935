package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"

	"github.com/jacopo/taskorch/pkg/rpc"
	"github.com/jacopo/taskorch/pkg/types"
)

// fakeOrchestratorClient records NotifyTaskEnd calls without a network
// round-trip, so worker tests stay hermetic.
type fakeOrchestratorClient struct {
	mu            sync.Mutex
	notifications []*rpc.TaskEndNotification
}

func (f *fakeOrchestratorClient) NotifyTaskEnd(ctx context.Context, in *rpc.TaskEndNotification, opts ...grpc.CallOption) (*rpc.TaskEndResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notifications = append(f.notifications, in)
	return &rpc.TaskEndResponse{Acknowledged: true}, nil
}

func (f *fakeOrchestratorClient) HealthCheck(ctx context.Context, in *rpc.HealthCheckRequest, opts ...grpc.CallOption) (*rpc.HealthCheckResponse, error) {
	return &rpc.HealthCheckResponse{Healthy: true}, nil
}

func (f *fakeOrchestratorClient) last() *rpc.TaskEndNotification {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.notifications) == 0 {
		return nil
	}
	return f.notifications[len(f.notifications)-1]
}

func newTestWorker(t *testing.T) (*Worker, *fakeOrchestratorClient) {
	t.Helper()
	w := New(Config{TaskID: "A", DefaultRT: types.RTConfig{Policy: types.RTPolicyNone, CPUAffinity: -1}})
	fake := &fakeOrchestratorClient{}
	w.orchestratorClient = fake
	return w, fake
}

func waitForState(t *testing.T, w *Worker, want types.TaskState) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		w.mu.Lock()
		got := w.state
		w.mu.Unlock()
		if got == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("worker did not reach state %s", want)
}

func TestStartTaskRejectedWhenNotIdle(t *testing.T) {
	w, _ := newTestWorker(t)
	w.SetCallback(func(ctx context.Context, params string) (types.TaskResult, string, error) {
		<-ctx.Done()
		return types.ResultCancelled, "", nil
	})

	first, err := w.StartTask(context.Background(), &rpc.StartTaskRequest{TaskID: "A"})
	require.NoError(t, err)
	assert.True(t, first.Success)

	waitForState(t, w, types.TaskStateRunning)

	second, err := w.StartTask(context.Background(), &rpc.StartTaskRequest{TaskID: "A"})
	require.NoError(t, err)
	assert.False(t, second.Success)

	w.Stop()
}

func TestSuccessfulInvocationNotifiesOrchestrator(t *testing.T) {
	w, fake := newTestWorker(t)
	w.SetCallback(func(ctx context.Context, params string) (types.TaskResult, string, error) {
		return types.ResultSuccess, `{"result":42}`, nil
	})

	resp, err := w.StartTask(context.Background(), &rpc.StartTaskRequest{TaskID: "A", ParametersJSON: `{"task_id":"A"}`})
	require.NoError(t, err)
	assert.True(t, resp.Success)

	waitForState(t, w, types.TaskStateIdle)

	notif := fake.last()
	require.NotNil(t, notif)
	assert.Equal(t, string(types.ResultSuccess), notif.Result)
	assert.Equal(t, `{"result":42}`, notif.OutputDataJSON)
}

func TestCallbackPanicMapsToFailure(t *testing.T) {
	w, fake := newTestWorker(t)
	w.SetCallback(func(ctx context.Context, params string) (types.TaskResult, string, error) {
		panic("boom")
	})

	_, err := w.StartTask(context.Background(), &rpc.StartTaskRequest{TaskID: "A"})
	require.NoError(t, err)

	waitForState(t, w, types.TaskStateIdle)

	notif := fake.last()
	require.NotNil(t, notif)
	assert.Equal(t, string(types.ResultFailure), notif.Result)
	assert.Contains(t, notif.ErrorMessage, "boom")
}

func TestStopTaskCancelsCooperatively(t *testing.T) {
	w, fake := newTestWorker(t)
	w.SetCallback(func(ctx context.Context, params string) (types.TaskResult, string, error) {
		<-ctx.Done()
		return types.ResultCancelled, "", nil
	})

	_, err := w.StartTask(context.Background(), &rpc.StartTaskRequest{TaskID: "A"})
	require.NoError(t, err)
	waitForState(t, w, types.TaskStateRunning)

	_, err = w.StopTask(context.Background(), &rpc.StopTaskRequest{TaskID: "A"})
	require.NoError(t, err)

	waitForState(t, w, types.TaskStateIdle)

	notif := fake.last()
	require.NotNil(t, notif)
	assert.Equal(t, string(types.ResultCancelled), notif.Result)
}

func TestGetTaskStatusReportsCurrentState(t *testing.T) {
	w, _ := newTestWorker(t)
	status, err := w.GetTaskStatus(context.Background(), &rpc.TaskStatusRequest{TaskID: "A"})
	require.NoError(t, err)
	assert.Equal(t, string(types.TaskStateIdle), status.State)
}
