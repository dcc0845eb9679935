/*
Package orchestrator implements the hybrid timed+sequential scheduling
engine and the OrchestratorService RPC adapter.

The Engine runs one scheduler-driver goroutine (the caller of Run), one
transient launcher goroutine per TIMED task, and one transient executor
goroutine per SEQUENTIAL release. All of them publish through a single
mutex-protected set of maps (active tasks, history, outputs, the
task-completed set) and two condition variables: one signaling task
registration/removal/completion-flag changes, one signaling that every
task has reached a terminal state.

	engine := orchestrator.New(sched, runID)
	go engine.Serve("0.0.0.0:50050")
	engine.Run()
	engine.WaitForCompletion()
	fmt.Print(execrecord.RenderSummary(engine.History()))
*/
package orchestrator
