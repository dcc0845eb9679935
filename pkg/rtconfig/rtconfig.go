// Package rtconfig applies real-time scheduling resources — scheduling
// policy, priority, CPU affinity, and memory locking — to the calling OS
// thread.
//
// Each operation is a pure, side-effecting step; callers compose them via
// Apply. Every step reports its own error so a caller can log exactly which
// part of a configuration could not be applied without losing the others.
package rtconfig

import (
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/sys/unix"

	"github.com/jacopo/taskorch/pkg/types"
)

// ErrUnsupportedPlatform is returned on a non-Linux GOOS by every operation
// that would issue a syscall, instead of silently no-op'ing, so Apply's
// partial-success reporting stays honest about what actually happened.
// PrefaultStack and the no-op cases (policy none, core -1) never return it.
var ErrUnsupportedPlatform = errors.New("rtconfig: real-time scheduling is only supported on linux")

const defaultPrefaultSize = 8 * 1024 * 1024

// LockProcessMemory pins all of the current process's present and future
// pages resident, preventing page faults during a real-time task.
func LockProcessMemory() error {
	if runtime.GOOS != "linux" {
		return ErrUnsupportedPlatform
	}
	if err := unix.Mlockall(unix.MCL_CURRENT | unix.MCL_FUTURE); err != nil {
		return fmt.Errorf("rtconfig: lock_process_memory: %w", err)
	}
	return nil
}

// UnlockProcessMemory releases a lock previously taken by LockProcessMemory.
func UnlockProcessMemory() error {
	if runtime.GOOS != "linux" {
		return ErrUnsupportedPlatform
	}
	if err := unix.Munlockall(); err != nil {
		return fmt.Errorf("rtconfig: unlock_process_memory: %w", err)
	}
	return nil
}

// PrefaultStack writes zeros across a scratch buffer of the given size (0
// uses an 8 MiB default) to force the pages backing it to be paged in before
// the real-time work starts. The buffer is heap-allocated (its size is not a
// compile-time constant), so the goroutine's own stack pages are not touched.
func PrefaultStack(size int) {
	if size <= 0 {
		size = defaultPrefaultSize
	}
	buf := make([]byte, size)
	for i := range buf {
		buf[i] = 0
	}
	runtime.KeepAlive(buf)
}

// SetThreadPolicy installs the given real-time scheduling discipline with
// the given priority on the calling OS thread. The caller must hold
// runtime.LockOSThread for the duration the policy should remain in effect.
//
// Priority is validated against the policy's bounds (MinPriority/MaxPriority)
// before the syscall is attempted.
func SetThreadPolicy(policy types.RTPolicy, priority int) error {
	if policy == types.RTPolicyNone {
		return nil
	}
	if runtime.GOOS != "linux" {
		return ErrUnsupportedPlatform
	}
	min, max := MinPriority(policy), MaxPriority(policy)
	if priority < min || priority > max {
		return fmt.Errorf("rtconfig: priority %d out of range [%d,%d] for policy %s", priority, min, max, policy)
	}

	schedPolicy, err := schedPolicyFor(policy)
	if err != nil {
		return err
	}
	param := &unix.SchedParam{Priority: int32(priority)}
	if err := unix.SchedSetscheduler(0, schedPolicy, param); err != nil {
		return fmt.Errorf("rtconfig: set_thread_policy(%s, %d): %w", policy, priority, err)
	}
	return nil
}

func schedPolicyFor(policy types.RTPolicy) (int, error) {
	switch policy {
	case types.RTPolicyFIFO:
		return unix.SCHED_FIFO, nil
	case types.RTPolicyRR:
		return unix.SCHED_RR, nil
	case types.RTPolicyDeadline:
		// SCHED_DEADLINE requires sched_attr, not sched_setscheduler; it is
		// reported in MaxPriority/MinPriority and policy_to_string/parse for
		// completeness but rejected here rather than silently downgraded.
		return 0, fmt.Errorf("rtconfig: SCHED_DEADLINE requires sched_setattr, not supported")
	default:
		return 0, fmt.Errorf("rtconfig: unknown policy %q", policy)
	}
}

// SetThreadCPU binds the calling OS thread to one CPU core. coreID == -1 is
// a no-op that always succeeds.
func SetThreadCPU(coreID int) error {
	if coreID < 0 {
		return nil
	}
	if runtime.GOOS != "linux" {
		return ErrUnsupportedPlatform
	}
	var set unix.CPUSet
	set.Zero()
	set.Set(coreID)
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return fmt.Errorf("rtconfig: set_thread_cpu(%d): %w", coreID, err)
	}
	return nil
}

// Apply is the composite operation: lock memory (if requested), prefault
// the stack (if requested), set CPU affinity, then set the scheduling
// policy. Every requested step is attempted even if an earlier one fails;
// the combined error reports all of them. Apply returns nil only when every
// requested step succeeded. Unrequested steps are never performed.
func Apply(cfg types.RTConfig) error {
	var errs []error

	if cfg.LockMemory {
		if err := LockProcessMemory(); err != nil {
			errs = append(errs, err)
		}
	}
	if cfg.PrefaultStack {
		PrefaultStack(cfg.StackSize)
	}
	if cfg.CPUAffinity >= 0 {
		if err := SetThreadCPU(cfg.CPUAffinity); err != nil {
			errs = append(errs, err)
		}
	}
	if cfg.Policy != types.RTPolicyNone {
		if err := SetThreadPolicy(cfg.Policy, cfg.Priority); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// MaxPriority returns the maximum valid priority for a scheduling policy.
func MaxPriority(policy types.RTPolicy) int {
	switch policy {
	case types.RTPolicyFIFO, types.RTPolicyRR:
		return 99
	case types.RTPolicyDeadline:
		return 0
	default:
		return 0
	}
}

// MinPriority returns the minimum valid priority for a scheduling policy.
func MinPriority(policy types.RTPolicy) int {
	switch policy {
	case types.RTPolicyFIFO, types.RTPolicyRR:
		return 1
	case types.RTPolicyDeadline:
		return 0
	default:
		return 0
	}
}

var rtCapabilitiesProbed bool
var rtCapabilitiesResult bool

// HasRTCapabilities reports whether the current process can install a
// real-time scheduling policy, by attempting a harmless probe (setting
// SCHED_FIFO priority 1 then restoring SCHED_OTHER) once per process and
// memoizing the result.
func HasRTCapabilities() bool {
	if rtCapabilitiesProbed {
		return rtCapabilitiesResult
	}
	rtCapabilitiesProbed = true
	if runtime.GOOS != "linux" {
		rtCapabilitiesResult = false
		return false
	}

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	err := unix.SchedSetscheduler(0, unix.SCHED_FIFO, &unix.SchedParam{Priority: 1})
	if err != nil {
		rtCapabilitiesResult = false
		return false
	}
	_ = unix.SchedSetscheduler(0, unix.SCHED_OTHER, &unix.SchedParam{Priority: 0})
	rtCapabilitiesResult = true
	return true
}

// PolicyToString renders a policy the way schedule files and status
// responses spell it.
func PolicyToString(policy types.RTPolicy) string {
	if policy == "" {
		return string(types.RTPolicyNone)
	}
	return string(policy)
}

// StringToPolicy parses a policy name case-insensitively; "" and unknown
// values map to RTPolicyNone.
func StringToPolicy(s string) types.RTPolicy {
	switch lower(s) {
	case "fifo":
		return types.RTPolicyFIFO
	case "rr":
		return types.RTPolicyRR
	case "deadline":
		return types.RTPolicyDeadline
	default:
		return types.RTPolicyNone
	}
}

func lower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
