package worker

import (
	"context"
	"fmt"
	"net"
	"runtime"
	"sync"
	"time"

	"google.golang.org/grpc"

	"github.com/jacopo/taskorch/pkg/log"
	"github.com/jacopo/taskorch/pkg/metrics"
	"github.com/jacopo/taskorch/pkg/rpc"
	"github.com/jacopo/taskorch/pkg/rtconfig"
	"github.com/jacopo/taskorch/pkg/types"
)

// Callback is the user-supplied computation a Worker hosts. It receives the
// task's parameters_json (with "task_id" already injected) and returns the
// outcome and its own output_data_json. A returned error is mapped to
// types.ResultCancelled if the invocation's context was cancelled and to
// types.ResultFailure otherwise; a recovered panic maps to ResultFailure.
type Callback func(ctx context.Context, parametersJSON string) (types.TaskResult, string, error)

// Config configures a Worker instance.
type Config struct {
	TaskID           string
	OrchestratorAddr string
	DefaultRT        types.RTConfig
}

// Worker hosts one user computation and is driven remotely by the
// orchestrator over TaskService.
type Worker struct {
	cfg Config

	mu       sync.Mutex
	state    types.TaskState
	cancel   context.CancelFunc
	execDone chan struct{} // closed when the current execution goroutine returns

	callback Callback

	orchestratorConn   *grpc.ClientConn
	orchestratorClient rpc.OrchestratorServiceClient

	grpcServer *grpc.Server

	currentStart time.Time
}

// New constructs a Worker in the IDLE state. Dial to the orchestrator is
// deferred until ListenAndServe so construction never fails on a
// transient network issue.
func New(cfg Config) *Worker {
	return &Worker{
		cfg:      cfg,
		state:    types.TaskStateIdle,
		execDone: closedChan(),
	}
}

func closedChan() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

// SetCallback registers the user computation this worker hosts. Must be
// called before ListenAndServe.
func (w *Worker) SetCallback(cb Callback) {
	w.callback = cb
}

// ListenAndServe dials the orchestrator, starts the TaskService gRPC
// server on addr, and blocks until Stop is called.
func (w *Worker) ListenAndServe(addr string) error {
	conn, err := rpc.Dial(w.cfg.OrchestratorAddr)
	if err != nil {
		return fmt.Errorf("worker: dial orchestrator: %w", err)
	}
	w.orchestratorConn = conn
	w.orchestratorClient = rpc.NewOrchestratorServiceClient(conn)

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("worker: listen %s: %w", addr, err)
	}

	w.grpcServer = grpc.NewServer()
	rpc.RegisterTaskServiceServer(w.grpcServer, w)

	logger := log.WithTaskID(w.cfg.TaskID)
	logger.Info().Str("address", addr).Msg("task worker listening")

	return w.grpcServer.Serve(lis)
}

// Stop transitions the worker to STOPPED: it cancels any in-flight
// invocation and stops the gRPC server. Terminal; the worker cannot be
// restarted.
func (w *Worker) Stop() {
	w.mu.Lock()
	if w.cancel != nil {
		w.cancel()
	}
	w.state = types.TaskStateStopped
	w.mu.Unlock()

	if w.grpcServer != nil {
		w.grpcServer.GracefulStop()
	}
	if w.orchestratorConn != nil {
		_ = w.orchestratorConn.Close()
	}
}

// StartTask implements rpc.TaskServiceServer. Accepted only from IDLE.
func (w *Worker) StartTask(ctx context.Context, req *rpc.StartTaskRequest) (*rpc.StartTaskResponse, error) {
	w.mu.Lock()
	if w.state != types.TaskStateIdle {
		current := w.state
		w.mu.Unlock()
		return &rpc.StartTaskResponse{
			Success: false,
			Message: fmt.Sprintf("worker not idle: current state %s", current),
			TaskID:  req.TaskID,
		}, nil
	}

	// Join the previous execution goroutine before spawning a new one. The
	// previous goroutine publishes IDLE just before it returns and closes
	// execDone, so this waits at most for that return.
	<-w.execDone

	w.state = types.TaskStateStarting
	execCtx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	done := make(chan struct{})
	w.execDone = done
	acceptedAt := time.Now()
	w.currentStart = acceptedAt
	w.mu.Unlock()

	metrics.WorkerStateTransitionsTotal.WithLabelValues(string(types.TaskStateStarting)).Inc()

	go w.runInvocation(execCtx, done, *req)

	return &rpc.StartTaskResponse{
		Success:           true,
		Message:           "accepted",
		TaskID:            req.TaskID,
		ActualStartTimeUs: acceptedAt.UnixMicro(),
	}, nil
}

// runInvocation drives one task invocation end to end on its own goroutine:
// apply RT config, run the callback, report the outcome.
func (w *Worker) runInvocation(ctx context.Context, done chan struct{}, req rpc.StartTaskRequest) {
	defer close(done)

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	logger := log.WithTaskID(req.TaskID)

	rtCfg := w.resolveRTConfig(req)
	if err := rtconfig.Apply(rtCfg); err != nil {
		metrics.RTConfigApplyFailuresTotal.Inc()
		logger.Warn().Err(err).Msg("rt config apply failed, proceeding best-effort")
	}

	w.mu.Lock()
	if w.state != types.TaskStateStopped {
		w.state = types.TaskStateRunning
	}
	w.mu.Unlock()
	metrics.WorkerStateTransitionsTotal.WithLabelValues(string(types.TaskStateRunning)).Inc()

	start := time.Now()
	result, outputJSON, errMsg := w.invokeCallback(ctx, req.ParametersJSON)
	end := time.Now()

	var finalState types.TaskState
	switch result {
	case types.ResultSuccess:
		finalState = types.TaskStateCompleted
	case types.ResultCancelled:
		finalState = types.TaskStateCancelled
	default:
		finalState = types.TaskStateFailed
	}

	w.mu.Lock()
	if w.state != types.TaskStateStopped {
		w.state = finalState
	}
	w.mu.Unlock()
	metrics.WorkerStateTransitionsTotal.WithLabelValues(string(finalState)).Inc()

	w.notifyTaskEnd(req.TaskID, result, start, end, errMsg, outputJSON)

	w.mu.Lock()
	if w.state != types.TaskStateStopped {
		w.state = types.TaskStateIdle
	}
	w.cancel = nil
	w.mu.Unlock()
}

// resolveRTConfig applies the request's RT configuration, falling back to
// the worker's own default when the request carries no policy.
func (w *Worker) resolveRTConfig(req rpc.StartTaskRequest) types.RTConfig {
	policy := rtconfig.StringToPolicy(req.RTPolicy)
	if policy == types.RTPolicyNone {
		return w.cfg.DefaultRT
	}
	return types.RTConfig{
		Policy:      policy,
		Priority:    req.RTPriority,
		CPUAffinity: req.CPUAffinity,
	}
}

// invokeCallback runs the registered user callback, mapping a recovered
// panic to FAILURE and a returned error to CANCELLED (context cancelled) or
// FAILURE (otherwise).
func (w *Worker) invokeCallback(ctx context.Context, parametersJSON string) (result types.TaskResult, outputJSON string, errMsg string) {
	if w.callback == nil {
		return types.ResultFailure, "", "no callback registered"
	}

	defer func() {
		if r := recover(); r != nil {
			result = types.ResultFailure
			outputJSON = ""
			errMsg = fmt.Sprintf("panic: %v", r)
		}
	}()

	res, out, err := w.callback(ctx, parametersJSON)
	if err != nil {
		if ctx.Err() == context.Canceled {
			return types.ResultCancelled, out, err.Error()
		}
		return types.ResultFailure, out, err.Error()
	}
	return res, out, ""
}

// notifyTaskEnd sends exactly one TaskEndNotification for this invocation.
// Delivery failure is logged; there is no retry.
func (w *Worker) notifyTaskEnd(taskID string, result types.TaskResult, start, end time.Time, errMsg, outputJSON string) {
	logger := log.WithTaskID(taskID)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := w.orchestratorClient.NotifyTaskEnd(ctx, &rpc.TaskEndNotification{
		TaskID:              taskID,
		Result:              string(result),
		StartTimeUs:         start.UnixMicro(),
		EndTimeUs:           end.UnixMicro(),
		ExecutionDurationUs: end.Sub(start).Microseconds(),
		ErrorMessage:        errMsg,
		OutputDataJSON:      outputJSON,
	})
	if err != nil {
		logger.Error().Err(err).Msg("failed to deliver task end notification")
	}
}

// StopTask implements rpc.TaskServiceServer. Idempotent: cancels the
// current invocation cooperatively, or is a no-op if none is running.
func (w *Worker) StopTask(ctx context.Context, req *rpc.StopTaskRequest) (*rpc.StopTaskResponse, error) {
	w.mu.Lock()
	if w.cancel != nil && (w.state == types.TaskStateStarting || w.state == types.TaskStateRunning) {
		w.cancel()
	}
	w.mu.Unlock()
	return &rpc.StopTaskResponse{Success: true, Message: "stop requested"}, nil
}

// GetTaskStatus implements rpc.TaskServiceServer.
func (w *Worker) GetTaskStatus(ctx context.Context, req *rpc.TaskStatusRequest) (*rpc.TaskStatusResponse, error) {
	w.mu.Lock()
	state := w.state
	start := w.currentStart
	w.mu.Unlock()

	var elapsed int64
	var startUs int64
	if !start.IsZero() {
		startUs = start.UnixMicro()
		elapsed = time.Since(start).Microseconds()
	}

	return &rpc.TaskStatusResponse{
		TaskID:        req.TaskID,
		State:         string(state),
		StartTimeUs:   startUs,
		ElapsedTimeUs: elapsed,
	}, nil
}
