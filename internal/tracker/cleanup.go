package tracker

import (
	"sort"
	"time"

	"go.uber.org/zap"
)

// sweepLoop runs the periodic cleanup until Destroy closes the stop channel.
func (t *Tracker) sweepLoop() {
	defer close(t.doneCh)

	ticker := time.NewTicker(t.config.CleanupInterval.Duration())
	defer ticker.Stop()

	for {
		select {
		case <-t.stopCh:
			t.logger.Debug("sweep stopped")
			return
		case <-ticker.C:
			t.Cleanup()
		}
	}
}

// Cleanup runs one sweep pass: age-based expiry first, then eviction of the
// oldest chains by start time until the store is at or under the memory cap.
// The sweep also runs on a timer and opportunistically from StartChain.
func (t *Tracker) Cleanup() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.cleanupLocked(t.now())
}

func (t *Tracker) cleanupLocked(now time.Time) {
	maxAge := t.config.MaxChainDuration.Duration()

	var expired int
	for _, ch := range t.chains {
		if now.Sub(ch.Metadata.StartTime) > maxAge {
			t.removeChainLocked(ch)
			expired++
		}
	}

	// FIFO by creation time, not by last activity: short fast-finishing
	// chains survive at the expense of long still-active ones when the
	// store is at capacity.
	var evicted int
	if excess := len(t.chains) - t.config.MaxChainsInMemory; excess > 0 {
		ordered := make([]*Chain, 0, len(t.chains))
		for _, ch := range t.chains {
			ordered = append(ordered, ch)
		}
		sort.Slice(ordered, func(i, j int) bool {
			return ordered[i].Metadata.StartTime.Before(ordered[j].Metadata.StartTime)
		})
		for _, ch := range ordered[:excess] {
			t.removeChainLocked(ch)
			evicted++
		}
	}

	if expired > 0 || evicted > 0 {
		t.counters.chainsExpired += int64(expired)
		t.counters.chainsEvicted += int64(evicted)
		t.metrics.chainsRemoved(expired, evicted)

		t.logger.Debug("cleanup pass",
			zap.Int("expired", expired),
			zap.Int("evicted", evicted),
			zap.Int("live_chains", len(t.chains)))
	}
}

// removeChainLocked drops a chain and every event belonging to it.
func (t *Tracker) removeChainLocked(ch *Chain) {
	for _, e := range ch.Events {
		delete(t.events, e.ID)
	}
	delete(t.chains, ch.ID)
	if t.activeChain == ch.ID {
		t.activeChain = ""
	}
}
