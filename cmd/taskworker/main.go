package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jacopo/taskorch/pkg/log"
	"github.com/jacopo/taskorch/pkg/rtconfig"
	"github.com/jacopo/taskorch/pkg/types"
	"github.com/jacopo/taskorch/pkg/worker"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "taskworker",
	Short: "Hosts one task invocation point, driven remotely by an orchestrator",
	Long: `taskworker is a generic worker binary: it registers a callback that
echoes its parameters back as output, useful for exercising a schedule's
timing and dependency wiring without a domain-specific computation. Real
deployments link worker.New and worker.SetCallback into a task-specific
binary instead of shelling out to this one.`,
	RunE: runWorker,
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	cobra.OnInitialize(initLogging)

	rootCmd.Flags().String("name", "", "task_id this worker serves (required)")
	rootCmd.Flags().String("address", "", "listen endpoint (required)")
	rootCmd.Flags().String("orchestrator", "", "orchestrator endpoint (required)")
	rootCmd.Flags().String("policy", "none", "default RT scheduling policy (none, fifo, rr), overridden per invocation")
	rootCmd.Flags().Int("priority", 0, "RT priority (1-99)")
	rootCmd.Flags().Int("cpu-affinity", -1, "CPU core to pin to (-1 = none)")
	rootCmd.Flags().Bool("lock-memory", false, "Lock this process's memory")

	rootCmd.MarkFlagRequired("name")
	rootCmd.MarkFlagRequired("address")
	rootCmd.MarkFlagRequired("orchestrator")
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")
	log.Init(log.Config{Level: log.Level(logLevel), JSONOutput: logJSON})
}

func runWorker(cmd *cobra.Command, args []string) error {
	name, _ := cmd.Flags().GetString("name")
	address, _ := cmd.Flags().GetString("address")
	orchestratorAddr, _ := cmd.Flags().GetString("orchestrator")
	policy, _ := cmd.Flags().GetString("policy")
	priority, _ := cmd.Flags().GetInt("priority")
	cpuAffinity, _ := cmd.Flags().GetInt("cpu-affinity")
	lockMemory, _ := cmd.Flags().GetBool("lock-memory")

	w := worker.New(worker.Config{
		TaskID:           name,
		OrchestratorAddr: orchestratorAddr,
		DefaultRT: types.RTConfig{
			Policy:      rtconfig.StringToPolicy(policy),
			Priority:    priority,
			CPUAffinity: cpuAffinity,
			LockMemory:  lockMemory,
		},
	})
	w.SetCallback(echoCallback)

	errCh := make(chan error, 1)
	go func() {
		if err := w.ListenAndServe(address); err != nil {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		fmt.Println("\ntaskworker: shutting down on signal")
	case err := <-errCh:
		return fmt.Errorf("taskworker: %w", err)
	}

	w.Stop()
	return nil
}

func echoCallback(ctx context.Context, parametersJSON string) (types.TaskResult, string, error) {
	return types.ResultSuccess, parametersJSON, nil
}
