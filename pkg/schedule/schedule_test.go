package schedule

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacopo/taskorch/pkg/types"
)

const sampleYAML = `
schedule:
  name: sample
  description: a sample schedule
  start_us: 0
  end_us: 60000000
  tick_duration_us: 1000000
  defaults:
    deadline_us: 5000000
    rt_policy: none
    rt_priority: 0
    cpu_affinity: -1
  tasks:
    - id: A
      address: localhost:50051
      mode: sequential
      parameters:
        x: 1
    - id: B
      address: localhost:50052
      mode: timed
      scheduled_time_us: 8000000
    - id: C
      address: localhost:50053
      mode: sequential
      depends_on: A
      rt_policy: fifo
      rt_priority: 70
      parameters:
        y: "hello"
        nested:
          z: true
`

func TestParseSampleSchedule(t *testing.T) {
	sched, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "sample", sched.Name)
	require.Len(t, sched.Tasks, 3)

	a := sched.Tasks[0]
	assert.Equal(t, types.ModeSequential, a.Mode)
	assert.Equal(t, int64(5000000), a.DeadlineUs)

	var aParams map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(a.ParametersJSON), &aParams))
	assert.Equal(t, "A", aParams["task_id"])
	assert.Equal(t, float64(1), aParams["x"])

	b := sched.Tasks[1]
	assert.Equal(t, types.ModeTimed, b.Mode)
	assert.Equal(t, int64(8000000), b.ScheduledTimeUs)

	c := sched.Tasks[2]
	assert.Equal(t, "A", c.WaitForTaskID)
	assert.Equal(t, types.RTPolicyFIFO, c.RT.Policy)
	assert.Equal(t, 70, c.RT.Priority)

	var cParams map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(c.ParametersJSON), &cParams))
	assert.Equal(t, "hello", cParams["y"])
	nested, ok := cParams["nested"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, true, nested["z"])
}

func TestParseRejectsUnknownDependency(t *testing.T) {
	const doc = `
schedule:
  tasks:
    - id: A
      address: localhost:50051
      mode: sequential
      depends_on: nonexistent
`
	_, err := Parse([]byte(doc))
	assert.Error(t, err)
}

func TestParseRejectsDuplicateTaskID(t *testing.T) {
	const doc = `
schedule:
  tasks:
    - id: A
      address: localhost:50051
      mode: sequential
    - id: A
      address: localhost:50052
      mode: sequential
`
	_, err := Parse([]byte(doc))
	assert.Error(t, err)
}

func TestLoadFileMissingFileSurfacesAsParseError(t *testing.T) {
	_, err := LoadFile("/nonexistent/path/to/schedule.yaml", false)
	require.Error(t, err)
	var parseErr *ParseError
	assert.ErrorAs(t, err, &parseErr)
}

func TestLoadFileFallsBackWhenRequested(t *testing.T) {
	sched, err := LoadFile("/nonexistent/path/to/schedule.yaml", true)
	require.NoError(t, err)
	assert.Equal(t, "built-in-test-schedule", sched.Name)
}

func TestTestScheduleShape(t *testing.T) {
	sched := TestSchedule()
	require.Len(t, sched.Tasks, 3)
	assert.Equal(t, types.ModeSequential, sched.Tasks[0].Mode)
	assert.Equal(t, types.ModeTimed, sched.Tasks[1].Mode)
	assert.Equal(t, "task-a", sched.Tasks[2].WaitForTaskID)
}
