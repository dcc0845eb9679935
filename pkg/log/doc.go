/*
Package log provides structured logging for the orchestrator and task
worker using zerolog.

The log package wraps zerolog to provide JSON-structured logging with
component-specific child loggers, configurable log levels, and helper
functions for common logging patterns. All logs include timestamps and
support filtering by severity level.

# Architecture

	┌──────────────────── LOGGING SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │            Global Logger                    │          │
	│  │  - Zerolog instance                         │          │
	│  │  - Initialized via log.Init()               │          │
	│  │  - Thread-safe for concurrent use           │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Configuration                     │          │
	│  │  - Level: debug/info/warn/error             │          │
	│  │  - Format: JSON or console (human)          │          │
	│  │  - Output: stdout, file, or custom writer   │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │         Component Loggers                   │          │
	│  │  - WithComponent("orchestratord")            │          │
	│  │  - WithTaskID("task-3")                     │          │
	│  │  - WithRunID("<uuid>")                      │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Log Levels

Debug Level:
  - Purpose: Detailed diagnostic information
  - Usage: Per-task RT config resolution, RPC payload tracing
  - Behavior: Only emitted when configured

Info Level:
  - Purpose: Normal operational events
  - Usage: Task released, task started, run completed
  - Behavior: Default level

Warn Level:
  - Purpose: Recoverable issues
  - Usage: RT config apply failed (best-effort fallback), duplicate
    NotifyTaskEnd discarded
  - Behavior: Logged but does not stop the run

Error Level:
  - Purpose: Operation failures
  - Usage: RPC dial failure, worker callback panic recovered as FAILURE
  - Behavior: Logged; caller decides whether to abort

Fatal Level:
  - Purpose: Critical errors causing process termination
  - Usage: Unrecoverable startup errors only
  - Behavior: Logs message and exits process (os.Exit(1))

# Usage

Initializing the Logger:

	import "github.com/jacopo/taskorch/pkg/log"

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

Simple Logging:

	log.Info("orchestrator run starting")
	log.Debug("resolved rt config for task")
	log.Warn("rt config apply failed, proceeding best-effort")
	log.Error("dial worker endpoint failed")
	log.Fatal("cannot start without a schedule") // exits process

Structured Logging:

	log.Logger.Info().
		Str("task_id", "task-3").
		Int64("scheduled_time_us", 5_000_000).
		Msg("task released")

Component Loggers:

	schedulerLog := log.WithComponent("orchestratord")
	schedulerLog.Info().Msg("driving schedule")

	taskLog := log.WithComponent("taskworker").
		With().Str("task_id", "task-3").Logger()
	taskLog.Info().Msg("starting task")
	taskLog.Error().Err(err).Msg("task failed")

Run and Task Scoped Loggers:

	runLog := log.WithRunID(runID)
	runLog.Info().Msg("run started")

	taskLog := log.WithTaskID("task-3")
	taskLog.Info().Msg("task started")

Complete Example:

	package main

	import (
		"os"

		"github.com/jacopo/taskorch/pkg/log"
	)

	func main() {
		log.Init(log.Config{
			Level:      log.InfoLevel,
			JSONOutput: true,
			Output:     os.Stdout,
		})

		log.WithComponent("orchestratord").Info().Msg("starting")
	}
*/
package log
