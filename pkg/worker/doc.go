/*
Package worker implements the task worker process: the half of the control
plane that hosts one user-supplied computation and is driven remotely by
the orchestrator's Start/Stop/Status RPCs.

# Lifecycle

A Worker moves through:

	(boot) -> IDLE -> STARTING -> RUNNING -> COMPLETED/FAILED/CANCELLED -> IDLE
	any state -> STOPPED (terminal, on process shutdown)

StartTask is only accepted from IDLE; any other state returns a rejection
without altering worker state. The RPC server goroutine never runs the
user's computation itself — it hands off to a dedicated execution goroutine
per invocation, joined before the next one is spawned.

# Usage

	w := worker.New(worker.Config{
	    TaskID:           "task-a",
	    OrchestratorAddr: "localhost:50050",
	    DefaultRT:        types.RTConfig{Policy: types.RTPolicyNone},
	})
	w.SetCallback(myComputation)
	if err := w.ListenAndServe("localhost:50051"); err != nil {
	    log.Fatal(err)
	}
*/
package worker
