package tracker

import (
	"context"

	"go.uber.org/zap"
)

// CausalityContext returns a flat record derived from the active chain's
// most recent event, for merging into structured log lines. Returns an
// empty map when no chain is active.
func (t *Tracker) CausalityContext() map[string]any {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.activeChain == "" {
		return map[string]any{}
	}
	ch, ok := t.chains[t.activeChain]
	if !ok || len(ch.Events) == 0 {
		return map[string]any{}
	}

	last := ch.last()
	return map[string]any{
		"causalityChainId":       ch.ID,
		"causalityEventId":       last.ID,
		"causalityDepth":         last.Metadata.Depth,
		"causalityRootCause":     ch.RootCause.Description,
		"causalityEventCount":    ch.Metadata.EventCount,
		"causalityChainDuration": t.now().Sub(ch.Metadata.StartTime),
	}
}

// WithCausality wraps fn so each invocation records an event, runs fn, and
// completes the event with fn's error before returning it. Event options
// apply to the recorded event. Tracking failures are logged and isolated:
// they never prevent fn from running or alter its result.
func (t *Tracker) WithCausality(typ EventType, description string, fn func(context.Context) error, opts ...EventOption) func(context.Context) error {
	return func(ctx context.Context) error {
		eventID, trackErr := t.AddEvent(typ, description, opts...)
		if trackErr != nil {
			t.logger.Warn("causality tracking failed",
				zap.String("description", description),
				zap.Error(trackErr))
			return fn(ctx)
		}

		err := fn(ctx)
		t.CompleteEvent(eventID, err)
		return err
	}
}
