package tracker

import (
	"sort"
	"time"
)

// ChainFilter selects chains in Chains. Zero-value fields are ignored; a
// zero filter matches everything.
type ChainFilter struct {
	// RootType matches chains whose root cause has this event type.
	RootType EventType

	// Since / Until bound the chain start time (inclusive since,
	// exclusive until). Zero times are open-ended.
	Since time.Time
	Until time.Time

	// Tags matches chains carrying at least one of these tags.
	Tags []string

	// HasErrors filters on whether any event in the chain carries an
	// error. Nil means no error predicate.
	HasErrors *bool
}

func (f *ChainFilter) matches(ch *Chain) bool {
	if f == nil {
		return true
	}
	if f.RootType != "" && (ch.RootCause == nil || ch.RootCause.Type != f.RootType) {
		return false
	}
	if !f.Since.IsZero() && ch.Metadata.StartTime.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && !ch.Metadata.StartTime.Before(f.Until) {
		return false
	}
	if len(f.Tags) > 0 && !ch.hasAnyTag(f.Tags) {
		return false
	}
	if f.HasErrors != nil && ch.hasErrors() != *f.HasErrors {
		return false
	}
	return true
}

// Chains returns deep copies of all chains matching the filter, ordered by
// start time ascending. A nil filter returns every chain. Never mutates the
// store.
func (t *Tracker) Chains(filter *ChainFilter) []*Chain {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]*Chain, 0, len(t.chains))
	for _, ch := range t.chains {
		if filter.matches(ch) {
			out = append(out, ch.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Metadata.StartTime.Before(out[j].Metadata.StartTime)
	})
	return out
}

// SlowChains returns deep copies of chains whose total duration exceeds the
// threshold. Open chains are measured against the current clock.
func (t *Tracker) SlowChains(threshold time.Duration) []*Chain {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	out := make([]*Chain, 0)
	for _, ch := range t.chains {
		total := ch.Metadata.TotalDuration
		if !ch.Ended() {
			total = now.Sub(ch.Metadata.StartTime)
		}
		if total > threshold {
			out = append(out, ch.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Metadata.StartTime.Before(out[j].Metadata.StartTime)
	})
	return out
}
