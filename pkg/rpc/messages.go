package rpc

// Message field names are the authoritative identifiers (spec §6); struct
// field ordering below follows the listing order of the wire protocol
// section for readability and carries no wire significance under the JSON
// codec.

// StartTaskRequest asks a worker to begin one task invocation.
type StartTaskRequest struct {
	TaskID          string `json:"task_id"`
	ScheduledTimeUs int64  `json:"scheduled_time_us"`
	DeadlineUs      int64  `json:"deadline_us"`
	ParametersJSON  string `json:"parameters_json"`
	RTPolicy        string `json:"rt_policy"`
	RTPriority      int    `json:"rt_priority"`
	CPUAffinity     int    `json:"cpu_affinity"`
}

// StartTaskResponse is the worker's synchronous reply to StartTask.
type StartTaskResponse struct {
	Success           bool   `json:"success"`
	Message           string `json:"message"`
	TaskID            string `json:"task_id"`
	ActualStartTimeUs int64  `json:"actual_start_time_us"`
}

// StopTaskRequest asks a worker to cooperatively cancel its current
// invocation. Idempotent.
type StopTaskRequest struct {
	TaskID string `json:"task_id"`
}

// StopTaskResponse acknowledges a StopTask request.
type StopTaskResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// TaskStatusRequest asks a worker to report its current status.
type TaskStatusRequest struct {
	TaskID string `json:"task_id"`
}

// TaskStatusResponse is a worker's point-in-time status report.
type TaskStatusResponse struct {
	TaskID        string  `json:"task_id"`
	State         string  `json:"state"`
	StartTimeUs   int64   `json:"start_time_us"`
	ElapsedTimeUs int64   `json:"elapsed_time_us"`
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryBytes   int64   `json:"memory_bytes"`
}

// TaskEndNotification is sent by a worker to the orchestrator exactly once
// per invocation, on completion, failure, or cancellation.
type TaskEndNotification struct {
	TaskID              string `json:"task_id"`
	Result              string `json:"result"`
	StartTimeUs         int64  `json:"start_time_us"`
	EndTimeUs           int64  `json:"end_time_us"`
	ExecutionDurationUs int64  `json:"execution_duration_us"`
	ErrorMessage        string `json:"error_message"`
	OutputDataJSON      string `json:"output_data_json"`
}

// TaskEndResponse acknowledges a TaskEndNotification.
type TaskEndResponse struct {
	Acknowledged bool   `json:"acknowledged"`
	Message      string `json:"message"`
}

// HealthCheckRequest carries no fields; its presence is the request.
type HealthCheckRequest struct{}

// HealthCheckResponse reports orchestrator liveness, wall-clock timed (see
// design notes on clock separation).
type HealthCheckResponse struct {
	Healthy     bool   `json:"healthy"`
	Status      string `json:"status"`
	TimestampUs int64  `json:"timestamp_us"`
}
