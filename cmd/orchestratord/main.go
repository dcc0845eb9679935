package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jacopo/taskorch/pkg/execrecord"
	"github.com/jacopo/taskorch/pkg/log"
	"github.com/jacopo/taskorch/pkg/metrics"
	"github.com/jacopo/taskorch/pkg/orchestrator"
	"github.com/jacopo/taskorch/pkg/rtconfig"
	"github.com/jacopo/taskorch/pkg/schedule"
	"github.com/jacopo/taskorch/pkg/types"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "orchestratord",
	Short: "Drives a wall-clock-synchronized task schedule to completion",
	Long: `orchestratord loads a declarative task schedule, releases each task
to its worker at the right time or after its predecessor completes, and
records the resulting execution history with context-switch statistics.`,
	RunE: runOrchestrator,
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	cobra.OnInitialize(initLogging)

	rootCmd.Flags().String("address", "0.0.0.0:50050", "OrchestratorService listen address")
	rootCmd.Flags().String("schedule", "", "Path to the declarative schedule file; a built-in test schedule is used if omitted")
	rootCmd.Flags().Bool("fallback-to-test-schedule", false, "Fall back to the built-in test schedule if --schedule fails to parse")
	rootCmd.Flags().String("policy", "none", "Driver thread RT scheduling policy (none, fifo, rr)")
	rootCmd.Flags().Int("priority", 0, "Driver thread RT priority (1-99)")
	rootCmd.Flags().Int("cpu-affinity", -1, "Driver thread CPU core to pin to (-1 = none)")
	rootCmd.Flags().Bool("lock-memory", false, "Lock the driver process's memory")
	rootCmd.Flags().String("metrics-addr", "127.0.0.1:9090", "Prometheus metrics listen address")
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")
	log.Init(log.Config{Level: log.Level(logLevel), JSONOutput: logJSON})
}

func runOrchestrator(cmd *cobra.Command, args []string) error {
	address, _ := cmd.Flags().GetString("address")
	schedulePath, _ := cmd.Flags().GetString("schedule")
	fallback, _ := cmd.Flags().GetBool("fallback-to-test-schedule")
	policy, _ := cmd.Flags().GetString("policy")
	priority, _ := cmd.Flags().GetInt("priority")
	cpuAffinity, _ := cmd.Flags().GetInt("cpu-affinity")
	lockMemory, _ := cmd.Flags().GetBool("lock-memory")
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

	var sched types.TaskSchedule
	if schedulePath == "" {
		sched = schedule.TestSchedule()
	} else {
		var err error
		sched, err = schedule.LoadFile(schedulePath, fallback)
		if err != nil {
			return fmt.Errorf("loading schedule: %w", err)
		}
	}
	sched.SortByTime()

	driverRT := types.RTConfig{
		Policy:      rtconfig.StringToPolicy(policy),
		Priority:    priority,
		CPUAffinity: cpuAffinity,
		LockMemory:  lockMemory,
	}
	if err := rtconfig.Apply(driverRT); err != nil {
		log.WithComponent("orchestratord").Warn().Err(err).Msg("rt config apply failed, proceeding best-effort")
	}

	metrics.SetVersion(sched.Name)
	metrics.SetScheduler(false, "schedule loaded, not yet running")

	runID := uuid.New().String()
	engine := orchestrator.New(sched, runID)

	serveErrCh := make(chan error, 1)
	go func() {
		if err := engine.Serve(address); err != nil {
			metrics.SetRPCServer(false, err.Error())
			serveErrCh <- err
			return
		}
	}()
	metrics.SetRPCServer(true, "listening on "+address)

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/health", metrics.HealthHandler())
	mux.HandleFunc("/ready", metrics.ReadyHandler())
	mux.HandleFunc("/live", metrics.LivenessHandler())
	go func() {
		if err := http.ListenAndServe(metricsAddr, mux); err != nil {
			log.WithComponent("orchestratord").Warn().Err(err).Msg("metrics server stopped")
		}
	}()

	fmt.Printf("orchestratord: schedule %q, run %s\n", sched.Name, runID)
	fmt.Printf("orchestratord: listening on %s, metrics on %s\n", address, metricsAddr)

	// Signal handling must be armed before the driver starts: Run blocks on
	// the main goroutine for the full sequential chain (waitRemoved has no
	// timeout), so it is driven on its own goroutine here and a shutdown
	// signal is observable the instant it arrives rather than only after
	// the whole schedule has dispatched.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	doneCh := make(chan struct{})
	go func() {
		// The driver RT configuration binds to this goroutine's OS thread,
		// the one that runs engine.Run.
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		if err := rtconfig.Apply(driverRT); err != nil {
			log.WithComponent("orchestratord").Warn().Err(err).Msg("rt config apply failed, proceeding best-effort")
		}

		metrics.SetScheduler(true, "driving schedule")
		engine.Run()
		engine.WaitForCompletion()
		close(doneCh)
	}()

	select {
	case <-doneCh:
	case <-sigCh:
		fmt.Println("\norchestratord: shutting down on signal")
	case err := <-serveErrCh:
		engine.Stop()
		return fmt.Errorf("orchestrator rpc server: %w", err)
	}

	engine.Stop()
	if lockMemory {
		_ = rtconfig.UnlockProcessMemory()
	}
	runtime.Gosched()

	fmt.Print(execrecord.RenderSummary(engine.History()))
	return nil
}
