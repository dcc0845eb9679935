// Package execrecord holds the orchestrator's execution history types and
// the context-switch statistics/summary rendering derived from them.
//
// Locking is the orchestrator's responsibility (pkg/orchestrator); this
// package only defines the record shapes and pure functions over a
// snapshot of them.
package execrecord

import (
	"fmt"
	"strings"

	"github.com/jacopo/taskorch/pkg/types"
)

// History is an append-only sequence of completed Execution Records, the
// orchestrator's "completed_tasks" collection.
type History struct {
	records []types.ExecutionRecord
}

// Append adds a terminal record to the history. The Prometheus
// counters/histograms for the same event are updated by the orchestrator
// engine (executeTask/finalize), not here.
func (h *History) Append(r types.ExecutionRecord) {
	h.records = append(h.records, r)
}

// Len reports the number of records currently in the history.
func (h *History) Len() int { return len(h.records) }

// Snapshot returns a copy of the history, matching get_execution_history's
// copy semantics (§4.7) so callers never observe a mutation in progress.
func (h *History) Snapshot() []types.ExecutionRecord {
	out := make([]types.ExecutionRecord, len(h.records))
	copy(out, h.records)
	return out
}

// ContextSwitchStats is the aggregate the engine reports after completion:
// count, average, minimum, maximum, and total context-switch time across
// all recorded transitions.
type ContextSwitchStats struct {
	Count int
	AvgUs int64
	MinUs int64
	MaxUs int64
	SumUs int64
}

// ComputeContextSwitchStats aggregates ContextSwitchTimeUs across a
// history snapshot. The first task's zero context-switch time is included,
// matching the spec's "0 for the first task" rule.
func ComputeContextSwitchStats(records []types.ExecutionRecord) ContextSwitchStats {
	if len(records) == 0 {
		return ContextSwitchStats{}
	}

	stats := ContextSwitchStats{
		Count: len(records),
		MinUs: records[0].ContextSwitchTimeUs,
		MaxUs: records[0].ContextSwitchTimeUs,
	}
	for _, r := range records {
		stats.SumUs += r.ContextSwitchTimeUs
		if r.ContextSwitchTimeUs < stats.MinUs {
			stats.MinUs = r.ContextSwitchTimeUs
		}
		if r.ContextSwitchTimeUs > stats.MaxUs {
			stats.MaxUs = r.ContextSwitchTimeUs
		}
	}
	stats.AvgUs = stats.SumUs / int64(stats.Count)
	return stats
}

// RenderSummary produces the human-readable per-task and aggregate
// context-switch report the engine emits after wait_for_completion
// returns.
func RenderSummary(records []types.ExecutionRecord) string {
	var b strings.Builder
	for _, r := range records {
		fmt.Fprintf(&b, "%-20s state=%-10s result=%-10s context_switch=%dus\n",
			r.TaskID, r.State, r.Result, r.ContextSwitchTimeUs)
	}

	stats := ComputeContextSwitchStats(records)
	fmt.Fprintf(&b, "context-switch: count=%d avg=%dus min=%dus max=%dus total=%dus\n",
		stats.Count, stats.AvgUs, stats.MinUs, stats.MaxUs, stats.SumUs)

	return b.String()
}
