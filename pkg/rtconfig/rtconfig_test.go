package rtconfig

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jacopo/taskorch/pkg/types"
)

func TestStringToPolicy(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want types.RTPolicy
	}{
		{"fifo lowercase", "fifo", types.RTPolicyFIFO},
		{"FIFO uppercase", "FIFO", types.RTPolicyFIFO},
		{"rr", "rr", types.RTPolicyRR},
		{"deadline", "Deadline", types.RTPolicyDeadline},
		{"empty string", "", types.RTPolicyNone},
		{"none", "none", types.RTPolicyNone},
		{"unknown falls back to none", "bogus", types.RTPolicyNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StringToPolicy(tt.in))
		})
	}
}

func TestPolicyToString(t *testing.T) {
	assert.Equal(t, "fifo", PolicyToString(types.RTPolicyFIFO))
	assert.Equal(t, "none", PolicyToString(types.RTPolicyNone))
	assert.Equal(t, "none", PolicyToString(""))
}

func TestPriorityBounds(t *testing.T) {
	tests := []struct {
		policy  types.RTPolicy
		wantMin int
		wantMax int
	}{
		{types.RTPolicyFIFO, 1, 99},
		{types.RTPolicyRR, 1, 99},
		{types.RTPolicyNone, 0, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.wantMin, MinPriority(tt.policy))
		assert.Equal(t, tt.wantMax, MaxPriority(tt.policy))
	}
}

func TestSetThreadCPUNegativeIsNoop(t *testing.T) {
	assert.NoError(t, SetThreadCPU(-1))
}

func TestApplyOnlyPerformsRequestedSteps(t *testing.T) {
	// No fields set: every step is skipped, so Apply must succeed
	// regardless of platform or privilege.
	err := Apply(types.RTConfig{Policy: types.RTPolicyNone, CPUAffinity: -1})
	assert.NoError(t, err)
}

func TestSetThreadPolicyRejectsOutOfRangePriority(t *testing.T) {
	if !HasRTCapabilities() {
		t.Skip("no real-time capability in this environment")
	}
	err := SetThreadPolicy(types.RTPolicyFIFO, 150)
	assert.Error(t, err)
}
