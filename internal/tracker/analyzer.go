package tracker

import (
	"sort"
	"time"
)

// TimelineEntry is one step in the chronological reconstruction of a chain.
type TimelineEntry struct {
	Event    *CausalEvent  `json:"event"`
	Depth    int           `json:"depth"`
	Duration time.Duration `json:"duration"`
	Children []string      `json:"children,omitempty"`
}

// PerformanceImpact summarizes a chain's timing and error profile.
type PerformanceImpact struct {
	TotalDuration        time.Duration `json:"total_duration"`
	SlowestEvent         *CausalEvent  `json:"slowest_event,omitempty"`
	ErrorCount           int           `json:"error_count"`
	AverageEventDuration time.Duration `json:"average_event_duration"`
}

// ChainExport is a pure, read-only snapshot of one chain for hand-off to
// external debugging and inspection tooling.
type ChainExport struct {
	Chain       *Chain            `json:"chain"`
	Timeline    []TimelineEntry   `json:"timeline"`
	Performance PerformanceImpact `json:"performance"`
}

// Stats is a point-in-time snapshot of store sizes and lifetime counters.
type Stats struct {
	LiveChains     int   `json:"live_chains"`
	LiveEvents     int   `json:"live_events"`
	ChainsStarted  int64 `json:"chains_started"`
	EventsRecorded int64 `json:"events_recorded"`
	ChainsEnded    int64 `json:"chains_ended"`
	ChainsExpired  int64 `json:"chains_expired"`
	ChainsEvicted  int64 `json:"chains_evicted"`
}

// ChainTimeline reconstructs what happened when: the chain's events sorted
// ascending by start time, which may differ from insertion order when
// branches interleave. Returns false when the chain is unknown.
func (t *Tracker) ChainTimeline(chainID string) ([]TimelineEntry, bool) {
	t.mu.Lock()
	ch, ok := t.chains[chainID]
	if !ok {
		t.mu.Unlock()
		return nil, false
	}
	snapshot := ch.Clone()
	t.mu.Unlock()

	return timelineOf(snapshot), true
}

func timelineOf(ch *Chain) []TimelineEntry {
	entries := make([]TimelineEntry, 0, len(ch.Events))
	for _, e := range ch.Events {
		entries = append(entries, TimelineEntry{
			Event:    e,
			Depth:    e.Metadata.Depth,
			Duration: e.Timing.Duration,
			Children: e.ChildIDs,
		})
	}
	// Stable sort keeps insertion order for identical start times.
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Event.Timing.StartTime.Before(entries[j].Event.Timing.StartTime)
	})
	return entries
}

// ChainPerformanceImpact reports the chain's total duration, its single
// slowest completed event (first encountered wins ties), the number of
// events carrying errors, and the average duration over completed events
// (0 when none have completed). Returns false when the chain is unknown.
func (t *Tracker) ChainPerformanceImpact(chainID string) (PerformanceImpact, bool) {
	t.mu.Lock()
	ch, ok := t.chains[chainID]
	if !ok {
		t.mu.Unlock()
		return PerformanceImpact{}, false
	}
	snapshot := ch.Clone()
	now := t.now()
	t.mu.Unlock()

	return performanceOf(snapshot, now), true
}

func performanceOf(ch *Chain, now time.Time) PerformanceImpact {
	impact := PerformanceImpact{
		TotalDuration: ch.Metadata.TotalDuration,
	}
	if !ch.Ended() {
		impact.TotalDuration = now.Sub(ch.Metadata.StartTime)
	}

	var completed int
	var sum time.Duration
	for _, e := range ch.Events {
		if e.HasError() {
			impact.ErrorCount++
		}
		if !e.Timing.Completed() {
			continue
		}
		completed++
		sum += e.Timing.Duration
		if impact.SlowestEvent == nil || e.Timing.Duration > impact.SlowestEvent.Timing.Duration {
			impact.SlowestEvent = e
		}
	}
	if completed > 0 {
		impact.AverageEventDuration = sum / time.Duration(completed)
	}
	return impact
}

// ExportChain assembles the raw chain, its timeline, and its performance
// report into one snapshot. Returns false rather than an error when the
// chain is unknown, since export is typically invoked from best-effort
// debug tooling.
func (t *Tracker) ExportChain(chainID string) (*ChainExport, bool) {
	t.mu.Lock()
	ch, ok := t.chains[chainID]
	if !ok {
		t.mu.Unlock()
		return nil, false
	}
	snapshot := ch.Clone()
	now := t.now()
	t.mu.Unlock()

	return &ChainExport{
		Chain:       snapshot,
		Timeline:    timelineOf(snapshot),
		Performance: performanceOf(snapshot, now),
	}, true
}

// Stats returns current store sizes and lifetime counters.
func (t *Tracker) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	return Stats{
		LiveChains:     len(t.chains),
		LiveEvents:     len(t.events),
		ChainsStarted:  t.counters.chainsStarted,
		EventsRecorded: t.counters.eventsRecorded,
		ChainsEnded:    t.counters.chainsEnded,
		ChainsExpired:  t.counters.chainsExpired,
		ChainsEvicted:  t.counters.chainsEvicted,
	}
}
