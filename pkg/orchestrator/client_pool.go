package orchestrator

import (
	"fmt"

	"github.com/jacopo/taskorch/pkg/rpc"
)

// clientFor returns the cached TaskService client for endpoint, dialing and
// caching a new connection on first use. Connections outlive individual
// tasks: a worker endpoint is expected to serve many releases over a run.
func (e *Engine) clientFor(endpoint string) (rpc.TaskServiceClient, error) {
	e.clientsMu.Lock()
	defer e.clientsMu.Unlock()

	if c, ok := e.clients[endpoint]; ok {
		return c, nil
	}

	conn, err := rpc.Dial(endpoint)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", endpoint, err)
	}

	client := rpc.NewTaskServiceClient(conn)
	e.conns[endpoint] = conn
	e.clients[endpoint] = client
	return client, nil
}
