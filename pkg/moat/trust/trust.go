// Package trust implements the Moat trust engine (spec §4.6): a rolling
// 7-day event log per capability, producing success-rate / p95-latency
// statistics and hide/throttle signals.
//
// Grounded on original_source/services/trust-plane/app/scoring.py for the
// exact percentile-interpolation formula and threshold logic.
package trust

import (
	"sort"
	"sync"
	"time"

	"github.com/jeremylongshore/moat/pkg/moat/contracts"
)

// Window is the rolling statistics window (spec §4.6: W = 7 days).
const Window = 7 * 24 * time.Hour

// HideWindow is a reserved 24h window constant carried from the original's
// unused _HIDE_WINDOW — not wired to any behavior (see DESIGN.md).
const HideWindow = 24 * time.Hour

// Thresholds configures the hide/throttle decision points (spec §4.6
// defaults: success threshold 0.80, p95 threshold 10,000ms).
type Thresholds struct {
	MinSuccessRate7d float64
	MaxP95LatencyMS  float64
}

// DefaultThresholds returns spec's default threshold values.
func DefaultThresholds() Thresholds {
	return Thresholds{MinSuccessRate7d: 0.80, MaxP95LatencyMS: 10000}
}

type eventRecord struct {
	success    bool
	latencyMS  float64
	occurredAt time.Time
}

// Engine is an in-memory rolling-window trust engine. One mutex-protected
// slice per capability, pruned on both write and read — the Go analogue of
// the Python StatsStore's per-capability deque.
type Engine struct {
	mu         sync.Mutex
	events     map[string][]eventRecord
	thresholds Thresholds
}

// New constructs an Engine with the given thresholds.
func New(thresholds Thresholds) *Engine {
	return &Engine{
		events:     make(map[string][]eventRecord),
		thresholds: thresholds,
	}
}

// Record ingests a new outcome event, pruning events older than the
// rolling window.
func (e *Engine) Record(event *contracts.OutcomeEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events[event.CapabilityID] = append(e.events[event.CapabilityID], eventRecord{
		success:    event.Success,
		latencyMS:  event.LatencyMS,
		occurredAt: event.Timestamp,
	})
	e.prune(event.CapabilityID)
}

func (e *Engine) prune(capabilityID string) {
	cutoff := time.Now().Add(-Window)
	events := e.events[capabilityID]
	i := 0
	for i < len(events) && events[i].occurredAt.Before(cutoff) {
		i++
	}
	if i > 0 {
		e.events[capabilityID] = events[i:]
	}
}

// GetStats computes current reliability stats for capabilityID. With no
// events, returns the zero-execution "benefit of the doubt" defaults.
func (e *Engine) GetStats(capabilityID string) *contracts.CapabilityStats {
	e.mu.Lock()
	e.prune(capabilityID)
	events := append([]eventRecord(nil), e.events[capabilityID]...)
	e.mu.Unlock()

	total := len(events)
	if total == 0 {
		return &contracts.CapabilityStats{
			CapabilityID:      capabilityID,
			SuccessRate7d:     1.0,
			P95LatencyMS:      0,
			TotalExecutions7d: 0,
			LastChecked:       nil,
			Verified:          false,
			ShouldHide:        false,
			ShouldThrottle:    false,
		}
	}

	successCount := 0
	latencies := make([]float64, 0, total)
	var lastChecked time.Time
	for _, ev := range events {
		if ev.success {
			successCount++
		}
		latencies = append(latencies, ev.latencyMS)
		if ev.occurredAt.After(lastChecked) {
			lastChecked = ev.occurredAt
		}
	}
	sort.Float64s(latencies)

	successRate := float64(successCount) / float64(total)
	p95 := percentile(latencies, 95)
	verified := total >= 10 && successRate >= e.thresholds.MinSuccessRate7d

	stats := &contracts.CapabilityStats{
		CapabilityID:      capabilityID,
		SuccessRate7d:     successRate,
		P95LatencyMS:      p95,
		TotalExecutions7d: total,
		LastChecked:       &lastChecked,
		Verified:          verified,
	}
	stats.ShouldHide = e.shouldHide(stats)
	stats.ShouldThrottle = e.shouldThrottle(stats)
	return stats
}

// percentile computes the pct-th percentile of sorted (ascending) values
// using linear interpolation: k=(n-1)*pct/100, lo=floor(k), hi=lo+1,
// frac=k-lo.
func percentile(sortedValues []float64, pct float64) float64 {
	n := len(sortedValues)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sortedValues[0]
	}
	k := float64(n-1) * pct / 100
	lo := int(k)
	hi := lo + 1
	if hi >= n {
		return sortedValues[n-1]
	}
	frac := k - float64(lo)
	return sortedValues[lo] + frac*(sortedValues[hi]-sortedValues[lo])
}

// shouldHide reports whether the capability should be hidden from
// marketplace listings: success rate below threshold, with enough data
// (>=5 executions) to make the call.
func (e *Engine) shouldHide(stats *contracts.CapabilityStats) bool {
	if stats.TotalExecutions7d < 5 {
		return false
	}
	return stats.SuccessRate7d < e.thresholds.MinSuccessRate7d
}

// shouldThrottle reports whether the capability should be throttled at the
// gateway: p95 latency above threshold, with enough data (>=5 executions).
func (e *Engine) shouldThrottle(stats *contracts.CapabilityStats) bool {
	if stats.TotalExecutions7d < 5 {
		return false
	}
	return stats.P95LatencyMS > e.thresholds.MaxP95LatencyMS
}

// ListCapabilityIDs returns all capability ids with at least one recorded
// event (including pruned-to-empty ones still tracked).
func (e *Engine) ListCapabilityIDs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := make([]string, 0, len(e.events))
	for id := range e.events {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
