package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"google.golang.org/grpc"

	"github.com/jacopo/taskorch/pkg/execrecord"
	"github.com/jacopo/taskorch/pkg/log"
	"github.com/jacopo/taskorch/pkg/metrics"
	"github.com/jacopo/taskorch/pkg/rpc"
	"github.com/jacopo/taskorch/pkg/types"
)

const startTaskDeadline = 5 * time.Second
const registrationPollTimeout = 100 * time.Millisecond

// Engine drives a single Task Schedule to completion: timed releases and
// the sequential dependency chain run simultaneously, output propagation
// and execution history are kept under one coarse mutex (§5's "shared
// resource policy").
type Engine struct {
	schedule types.TaskSchedule
	runID    string

	scheduleStart time.Time

	mu             sync.Mutex
	cond           *sync.Cond // task registered/removed/task-completed changes
	completionCond *sync.Cond // all tasks reached a terminal state

	activeTasks   map[string]*types.ExecutionRecord
	history       execrecord.History
	taskOutputs   map[string]string
	taskCompleted map[string]bool

	lastTaskEndTimeUs int64
	hasLastEnd        bool

	pendingTasks int
	dispatched   bool
	running      bool

	stopOnce sync.Once
	stopCh   chan struct{}

	clientsMu sync.Mutex
	conns     map[string]*grpc.ClientConn
	clients   map[string]rpc.TaskServiceClient

	grpcServer *grpc.Server
}

// New constructs an Engine for one run of sched. runID tags every log line
// this engine emits.
func New(sched types.TaskSchedule, runID string) *Engine {
	e := &Engine{
		schedule:      sched,
		runID:         runID,
		activeTasks:   make(map[string]*types.ExecutionRecord),
		taskOutputs:   make(map[string]string),
		taskCompleted: make(map[string]bool),
		stopCh:        make(chan struct{}),
		conns:         make(map[string]*grpc.ClientConn),
		clients:       make(map[string]rpc.TaskServiceClient),
	}
	e.cond = sync.NewCond(&e.mu)
	e.completionCond = sync.NewCond(&e.mu)
	return e
}

// Serve starts the OrchestratorService RPC server on addr and blocks until
// Stop is called.
func (e *Engine) Serve(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("orchestrator: listen %s: %w", addr, err)
	}
	e.grpcServer = grpc.NewServer()
	rpc.RegisterOrchestratorServiceServer(e.grpcServer, &rpcAdapter{engine: e})
	return e.grpcServer.Serve(lis)
}

// Run drives the schedule to full dispatch: Phase 1 fans out a launcher
// per TIMED task, Phase 2 walks SEQUENTIAL tasks in schedule order. Run
// returns once every SEQUENTIAL task has been released and has left the
// active set; TIMED tasks may still be waiting for their release time or
// running. Call WaitForCompletion to block until the run is fully done.
func (e *Engine) Run() {
	e.mu.Lock()
	e.running = true
	e.scheduleStart = time.Now()
	e.mu.Unlock()

	log.WithRunID(e.runID).Info().
		Str("schedule", e.schedule.Name).
		Msg("orchestrator run starting")

	// Phase 1 — timed release fan-out.
	for _, t := range e.schedule.Tasks {
		if t.Mode != types.ModeTimed {
			continue
		}
		task := t
		e.mu.Lock()
		e.pendingTasks++
		e.mu.Unlock()
		go e.launchTimed(task)
	}

	// Phase 2 — sequential chain.
	for _, t := range e.schedule.Tasks {
		if t.Mode != types.ModeSequential {
			continue
		}
		if !e.waitForPredecessor(t.WaitForTaskID) {
			return // shutdown requested
		}

		task := t
		e.mu.Lock()
		e.pendingTasks++
		e.mu.Unlock()
		go e.executeTask(task)

		e.waitRegistered(task.TaskID, registrationPollTimeout)
		e.waitRemoved(task.TaskID)
	}

	e.mu.Lock()
	e.dispatched = true
	if e.pendingTasks == 0 {
		e.completionCond.Broadcast()
	}
	e.mu.Unlock()
}

// WaitForCompletion blocks until every task in the schedule has produced a
// terminal Execution Record, or Stop is called.
func (e *Engine) WaitForCompletion() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for e.running && (!e.dispatched || e.pendingTasks > 0) {
		e.completionCond.Wait()
	}
}

// Stop unblocks every wait on the engine's condition variables; detached
// executors already in flight complete normally and their notifications
// are still accepted if they arrive before the RPC server stops.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stopCh) })

	e.mu.Lock()
	e.running = false
	e.cond.Broadcast()
	e.completionCond.Broadcast()
	e.mu.Unlock()

	if e.grpcServer != nil {
		e.grpcServer.GracefulStop()
	}
	e.clientsMu.Lock()
	for _, c := range e.conns {
		_ = c.Close()
	}
	e.clientsMu.Unlock()
}

// History returns a copy of the execution history accumulated so far.
func (e *Engine) History() []types.ExecutionRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.history.Snapshot()
}

func (e *Engine) waitForPredecessor(predecessorID string) bool {
	if predecessorID == "" {
		return true
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for e.running && !e.taskCompleted[predecessorID] {
		e.cond.Wait()
	}
	return e.running
}

// waitRegistered polls (bounded) for a task to appear in activeTasks.
// Missing the window is non-fatal: the driver proceeds to the unbounded
// removal wait regardless, matching the spec's best-effort bound.
func (e *Engine) waitRegistered(taskID string, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	e.mu.Lock()
	defer e.mu.Unlock()
	for {
		if _, ok := e.activeTasks[taskID]; ok {
			return true
		}
		if !e.running || time.Now().After(deadline) {
			return false
		}
		e.mu.Unlock()
		time.Sleep(time.Millisecond)
		e.mu.Lock()
	}
}

func (e *Engine) waitRemoved(taskID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for e.running {
		if _, ok := e.activeTasks[taskID]; !ok {
			return
		}
		e.cond.Wait()
	}
}

func (e *Engine) launchTimed(t types.ScheduledTask) {
	target := e.scheduleStart.Add(time.Duration(t.ScheduledTimeUs) * time.Microsecond)
	timer := time.NewTimer(time.Until(target))
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-e.stopCh:
		return
	}
	e.executeTask(t)
}

// executeTask is invoked from a launcher (TIMED) or executor (SEQUENTIAL)
// goroutine: it stamps the start time, registers the record, dispatches
// StartTask, and either transitions the record to RUNNING or retires it as
// FAILED.
func (e *Engine) executeTask(t types.ScheduledTask) {
	actualStartUs := time.Since(e.scheduleStart).Microseconds()

	e.mu.Lock()
	var contextSwitch int64
	if e.hasLastEnd {
		contextSwitch = actualStartUs - e.lastTaskEndTimeUs
	}
	record := types.NewRecord(t, actualStartUs)
	record.ContextSwitchTimeUs = contextSwitch
	e.activeTasks[t.TaskID] = &record
	hasLastEnd := e.hasLastEnd
	e.cond.Broadcast()
	e.mu.Unlock()

	metrics.TasksReleasedTotal.WithLabelValues(string(t.Mode)).Inc()
	metrics.ActiveTasks.Inc()
	metrics.RecordTaskReleased()
	if hasLastEnd {
		metrics.ContextSwitchMicroseconds.Observe(float64(contextSwitch))
	}

	paramsJSON, err := e.buildStartParameters(t)
	if err != nil {
		e.retire(t.TaskID, types.ResultFailure, fmt.Sprintf("building start parameters: %v", err), "")
		return
	}

	client, err := e.clientFor(t.WorkerEndpoint)
	if err != nil {
		e.retire(t.TaskID, types.ResultFailure, fmt.Sprintf("dialing worker: %v", err), "")
		return
	}

	timer := metrics.NewTimer()
	ctx, cancel := context.WithTimeout(context.Background(), startTaskDeadline)
	defer cancel()

	resp, err := client.StartTask(ctx, &rpc.StartTaskRequest{
		TaskID:          t.TaskID,
		ScheduledTimeUs: t.ScheduledTimeUs,
		DeadlineUs:      t.DeadlineUs,
		ParametersJSON:  paramsJSON,
		RTPolicy:        string(t.RT.Policy),
		RTPriority:      t.RT.Priority,
		CPUAffinity:     t.RT.CPUAffinity,
	})
	timer.ObserveDuration(metrics.SchedulingLatency)

	if err != nil {
		timer.ObserveDurationVec(metrics.RPCCallDuration, "StartTask", "error")
		e.retire(t.TaskID, types.ResultFailure, fmt.Sprintf("start task rpc: %v", err), "")
		return
	}
	if !resp.Success {
		timer.ObserveDurationVec(metrics.RPCCallDuration, "StartTask", "rejected")
		e.retire(t.TaskID, types.ResultFailure, resp.Message, "")
		return
	}
	timer.ObserveDurationVec(metrics.RPCCallDuration, "StartTask", "success")

	e.mu.Lock()
	if rec, ok := e.activeTasks[t.TaskID]; ok {
		rec.State = types.TaskStateRunning
	}
	e.mu.Unlock()
}

// buildStartParameters copies the task's own parameters and, when the task
// has a predecessor, merges that predecessor's stored output under
// "dep_output" — the exact shape the user-task contract expects (§9).
func (e *Engine) buildStartParameters(t types.ScheduledTask) (string, error) {
	var params map[string]interface{}
	if err := json.Unmarshal([]byte(t.ParametersJSON), &params); err != nil {
		return "", fmt.Errorf("parameters_json: %w", err)
	}

	if t.WaitForTaskID != "" {
		e.mu.Lock()
		depOutputJSON, ok := e.taskOutputs[t.WaitForTaskID]
		e.mu.Unlock()

		var depOutput interface{}
		if ok && depOutputJSON != "" {
			if err := json.Unmarshal([]byte(depOutputJSON), &depOutput); err != nil {
				depOutput = depOutputJSON
			}
		}
		params["dep_output"] = depOutput
	}

	out, err := json.Marshal(params)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// retire stamps the end time as of now and finalizes the record, for
// failures discovered on the scheduler side (RPC transport error or
// worker rejection).
func (e *Engine) retire(taskID string, result types.TaskResult, errMsg, outputJSON string) {
	endUs := time.Since(e.scheduleStart).Microseconds()
	e.finalize(taskID, endUs, result, errMsg, outputJSON)
}

// OnTaskEnd is invoked from the RPC server goroutine when a worker's
// NotifyTaskEnd arrives. The end timestamp is stamped before the mutex is
// acquired so the measurement excludes mutex contention (§4.5 rule 1).
func (e *Engine) OnTaskEnd(n *rpc.TaskEndNotification) {
	endUs := time.Since(e.scheduleStart).Microseconds()
	e.finalize(n.TaskID, endUs, types.TaskResult(n.Result), n.ErrorMessage, n.OutputDataJSON)
}

// finalize is the single mutex-protected critical section that moves a
// task from active to history: idempotent against duplicate or unknown
// task ids (P5), which are logged and discarded.
func (e *Engine) finalize(taskID string, endUs int64, result types.TaskResult, errMsg, outputJSON string) {
	e.mu.Lock()

	rec, ok := e.activeTasks[taskID]
	if !ok {
		e.mu.Unlock()
		log.WithComponent("orchestrator").Warn().
			Str("task_id", taskID).
			Msg("task end notification for an unregistered task discarded")
		return
	}

	rec.EndTimeUs = endUs
	rec.Result = result
	rec.ErrorMessage = errMsg
	rec.OutputDataJSON = outputJSON
	switch result {
	case types.ResultSuccess:
		rec.State = types.TaskStateCompleted
	case types.ResultCancelled:
		rec.State = types.TaskStateCancelled
	default:
		rec.State = types.TaskStateFailed
	}
	durationUs := endUs - rec.ActualStartTimeUs

	e.lastTaskEndTimeUs = endUs
	e.hasLastEnd = true
	e.taskOutputs[taskID] = outputJSON
	e.history.Append(*rec)
	delete(e.activeTasks, taskID)
	e.taskCompleted[taskID] = true

	e.pendingTasks--
	done := e.dispatched && e.pendingTasks == 0

	e.cond.Broadcast()
	if done {
		e.completionCond.Broadcast()
	}
	e.mu.Unlock()

	metrics.ActiveTasks.Dec()
	metrics.TaskDurationMicroseconds.WithLabelValues(string(result)).Observe(float64(durationUs))
	metrics.TasksCompletedTotal.WithLabelValues(string(result)).Inc()
	metrics.RecordTaskFinished(string(result))
}
