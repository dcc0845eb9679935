// Package schedule loads a declarative task schedule from YAML into the
// internal records the orchestrator drives from.
package schedule

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/jacopo/taskorch/pkg/log"
	"github.com/jacopo/taskorch/pkg/types"
)

// ParseError wraps a schedule parse failure with the source it came from,
// so failures surface with their location rather than being silently
// swallowed.
type ParseError struct {
	Source string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("schedule: failed to parse %s: %v", e.Source, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// fileDefaults is the schedule-level defaults block, copied onto any task
// that omits the corresponding field.
type fileDefaults struct {
	DeadlineUs  int64  `yaml:"deadline_us"`
	RTPolicy    string `yaml:"rt_policy"`
	RTPriority  int    `yaml:"rt_priority"`
	CPUAffinity *int   `yaml:"cpu_affinity"`
}

type fileTask struct {
	ID                  string                 `yaml:"id"`
	Address             string                 `yaml:"address"`
	Mode                string                 `yaml:"mode"`
	ScheduledTimeUs     int64                  `yaml:"scheduled_time_us"`
	DependsOn           string                 `yaml:"depends_on"`
	DeadlineUs          *int64                 `yaml:"deadline_us"`
	EstimatedDurationUs int64                  `yaml:"estimated_duration_us"`
	RTPolicy            string                 `yaml:"rt_policy"`
	RTPriority          *int                   `yaml:"rt_priority"`
	CPUAffinity         *int                   `yaml:"cpu_affinity"`
	MaxRetries          int                    `yaml:"max_retries"`
	Critical            bool                   `yaml:"critical"`
	Parameters          map[string]interface{} `yaml:"parameters"`
}

type fileSchedule struct {
	Name           string       `yaml:"name"`
	Description    string       `yaml:"description"`
	StartUs        int64        `yaml:"start_us"`
	EndUs          int64        `yaml:"end_us"`
	TickDurationUs int64        `yaml:"tick_duration_us"`
	Defaults       fileDefaults `yaml:"defaults"`
	Tasks          []fileTask   `yaml:"tasks"`
}

type fileRoot struct {
	Schedule fileSchedule `yaml:"schedule"`
}

// LoadFile reads and parses a schedule document from path. A read or parse
// error is always returned unless fallbackToTestSchedule is true, in which
// case the failure is logged at Warn level and TestSchedule() is substituted.
//
// Unlike the reference implementation, a parse failure never silently
// substitutes the test schedule unless the caller opted in.
func LoadFile(path string, fallbackToTestSchedule bool) (types.TaskSchedule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if fallbackToTestSchedule {
			log.WithComponent("schedule").Warn().Err(err).Str("path", path).Msg("schedule load failed, using built-in test schedule")
			return TestSchedule(), nil
		}
		return types.TaskSchedule{}, &ParseError{Source: path, Err: err}
	}

	sched, err := Parse(data)
	if err != nil {
		if fallbackToTestSchedule {
			log.WithComponent("schedule").Warn().Err(err).Str("path", path).Msg("schedule load failed, using built-in test schedule")
			return TestSchedule(), nil
		}
		return types.TaskSchedule{}, &ParseError{Source: path, Err: err}
	}
	return sched, nil
}

// Parse decodes a schedule document already read into memory.
func Parse(data []byte) (types.TaskSchedule, error) {
	var root fileRoot
	if err := yaml.Unmarshal(data, &root); err != nil {
		return types.TaskSchedule{}, err
	}

	fs := root.Schedule
	out := types.TaskSchedule{
		Name:           fs.Name,
		Description:    fs.Description,
		StartUs:        fs.StartUs,
		EndUs:          fs.EndUs,
		TickDurationUs: fs.TickDurationUs,
	}

	seen := make(map[string]bool, len(fs.Tasks))
	for _, ft := range fs.Tasks {
		task, err := resolveTask(ft, fs.Defaults)
		if err != nil {
			return types.TaskSchedule{}, fmt.Errorf("task %q: %w", ft.ID, err)
		}
		if seen[task.TaskID] {
			return types.TaskSchedule{}, fmt.Errorf("duplicate task id %q", task.TaskID)
		}
		seen[task.TaskID] = true
		out.Tasks = append(out.Tasks, task)
	}

	for _, task := range out.Tasks {
		if task.WaitForTaskID != "" && !seen[task.WaitForTaskID] {
			return types.TaskSchedule{}, fmt.Errorf("task %q depends on unknown task %q", task.TaskID, task.WaitForTaskID)
		}
	}

	return out, nil
}

func resolveTask(ft fileTask, defaults fileDefaults) (types.ScheduledTask, error) {
	if ft.ID == "" {
		return types.ScheduledTask{}, fmt.Errorf("task id is required")
	}

	mode := types.ModeSequential
	switch ft.Mode {
	case "timed":
		mode = types.ModeTimed
	case "sequential", "":
		mode = types.ModeSequential
	default:
		return types.ScheduledTask{}, fmt.Errorf("unknown mode %q", ft.Mode)
	}

	deadline := defaults.DeadlineUs
	if ft.DeadlineUs != nil {
		deadline = *ft.DeadlineUs
	}

	rtPolicyStr := ft.RTPolicy
	if rtPolicyStr == "" {
		rtPolicyStr = defaults.RTPolicy
	}
	rtPriority := defaults.RTPriority
	if ft.RTPriority != nil {
		rtPriority = *ft.RTPriority
	}
	cpuAffinity := -1
	if defaults.CPUAffinity != nil {
		cpuAffinity = *defaults.CPUAffinity
	}
	if ft.CPUAffinity != nil {
		cpuAffinity = *ft.CPUAffinity
	}

	paramsJSON, err := buildParametersJSON(ft.ID, ft.Parameters)
	if err != nil {
		return types.ScheduledTask{}, fmt.Errorf("parameters: %w", err)
	}

	return types.ScheduledTask{
		TaskID:              ft.ID,
		WorkerEndpoint:      ft.Address,
		Mode:                mode,
		ScheduledTimeUs:     ft.ScheduledTimeUs,
		WaitForTaskID:       ft.DependsOn,
		DeadlineUs:          deadline,
		EstimatedDurationUs: ft.EstimatedDurationUs,
		RT: types.RTConfig{
			Policy:      stringToPolicy(rtPolicyStr),
			Priority:    rtPriority,
			CPUAffinity: cpuAffinity,
		},
		ParametersJSON: paramsJSON,
		MaxRetries:     ft.MaxRetries,
		Critical:       ft.Critical,
	}, nil
}

// buildParametersJSON parses the YAML-native parameters map (numbers and
// booleans already typed by the YAML decoder), injects "task_id", and
// serializes the result to JSON, preserving each value's type.
func buildParametersJSON(taskID string, params map[string]interface{}) (string, error) {
	normalized := make(map[string]interface{}, len(params)+1)
	for k, v := range params {
		normalized[k] = normalizeYAMLValue(v)
	}
	normalized["task_id"] = taskID

	b, err := json.Marshal(normalized)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// normalizeYAMLValue converts yaml.v3's decoded types (map[string]interface{}
// keys already strings via this package's typed structs, but nested maps
// decode as map[string]interface{} too) into values encoding/json accepts
// without surprises.
func normalizeYAMLValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, nested := range val {
			out[k] = normalizeYAMLValue(nested)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, nested := range val {
			out[i] = normalizeYAMLValue(nested)
		}
		return out
	default:
		return val
	}
}

func stringToPolicy(s string) types.RTPolicy {
	switch s {
	case "fifo", "FIFO":
		return types.RTPolicyFIFO
	case "rr", "RR":
		return types.RTPolicyRR
	case "deadline", "DEADLINE":
		return types.RTPolicyDeadline
	default:
		return types.RTPolicyNone
	}
}

// TestSchedule returns the built-in three-task sample schedule: A
// (sequential, no dependency), B (timed at 8s), C (sequential depending on
// A) — the same shape as the reference implementation's fallback, used when
// --schedule is omitted or, with --fallback-to-test-schedule, when the
// supplied file fails to parse.
func TestSchedule() types.TaskSchedule {
	endpoint := func(n int) string {
		if os.Getenv("DOCKER_CONTAINER") != "" {
			return fmt.Sprintf("task%d:%d", n, 50050+n)
		}
		return fmt.Sprintf("localhost:%d", 50050+n)
	}

	aParams, _ := buildParametersJSON("task-a", map[string]interface{}{"x": 1})
	bParams, _ := buildParametersJSON("task-b", map[string]interface{}{})
	cParams, _ := buildParametersJSON("task-c", map[string]interface{}{})

	return types.TaskSchedule{
		Name:           "built-in-test-schedule",
		Description:    "fallback schedule used when no --schedule file is supplied",
		StartUs:        0,
		EndUs:          60_000_000,
		TickDurationUs: 1_000_000,
		Tasks: []types.ScheduledTask{
			{
				TaskID:         "task-a",
				WorkerEndpoint: endpoint(1),
				Mode:           types.ModeSequential,
				RT:             types.RTConfig{Policy: types.RTPolicyNone, CPUAffinity: -1},
				ParametersJSON: aParams,
			},
			{
				TaskID:          "task-b",
				WorkerEndpoint:  endpoint(2),
				Mode:            types.ModeTimed,
				ScheduledTimeUs: 8_000_000,
				RT:              types.RTConfig{Policy: types.RTPolicyNone, CPUAffinity: -1},
				ParametersJSON:  bParams,
			},
			{
				TaskID:         "task-c",
				WorkerEndpoint: endpoint(3),
				Mode:           types.ModeSequential,
				WaitForTaskID:  "task-a",
				RT:             types.RTConfig{Policy: types.RTPolicyNone, CPUAffinity: -1},
				ParametersJSON: cParams,
			},
		},
	}
}
