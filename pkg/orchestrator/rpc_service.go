package orchestrator

import (
	"context"
	"time"

	"github.com/jacopo/taskorch/pkg/rpc"
)

// rpcAdapter is the thin OrchestratorService implementation: it forwards
// NotifyTaskEnd to the engine and always acknowledges on successful
// receipt; HealthCheck reports wall-clock time deliberately, separate from
// the engine's monotonic scheduling clock (§9 design notes).
type rpcAdapter struct {
	engine *Engine
}

func (a *rpcAdapter) NotifyTaskEnd(ctx context.Context, req *rpc.TaskEndNotification) (*rpc.TaskEndResponse, error) {
	a.engine.OnTaskEnd(req)
	return &rpc.TaskEndResponse{Acknowledged: true, Message: "ok"}, nil
}

func (a *rpcAdapter) HealthCheck(ctx context.Context, req *rpc.HealthCheckRequest) (*rpc.HealthCheckResponse, error) {
	a.engine.mu.Lock()
	running := a.engine.running
	a.engine.mu.Unlock()

	status := "stopped"
	if running {
		status = "running"
	}
	return &rpc.HealthCheckResponse{
		Healthy:     running,
		Status:      status,
		TimestampUs: time.Now().UnixMicro(),
	}, nil
}
