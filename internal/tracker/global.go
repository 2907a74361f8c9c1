package tracker

import (
	"sync"

	"go.uber.org/zap"
)

// The process-wide tracker backs the free-function API. It is created
// lazily with defaults; daemons that configure their own tracker should
// install it with SetDefault during startup.
var (
	defaultMu      sync.Mutex
	defaultTracker *Tracker
)

// Default returns the process-wide tracker, creating it on first use.
func Default() *Tracker {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultTracker == nil {
		// Defaults never fail validation.
		defaultTracker, _ = New(NewDefaultConfig(), zap.NewNop())
	}
	return defaultTracker
}

// SetDefault installs t as the process-wide tracker and returns the
// previous one (nil if none was created). The caller owns destroying the
// returned tracker.
func SetDefault(t *Tracker) *Tracker {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	prev := defaultTracker
	defaultTracker = t
	return prev
}

// DestroyDefault destroys the process-wide tracker if one exists. Intended
// as a process exit hook so the sweep timer never outlives its use.
func DestroyDefault() {
	defaultMu.Lock()
	t := defaultTracker
	defaultTracker = nil
	defaultMu.Unlock()

	if t != nil {
		t.Destroy()
	}
}

// StartCausalChain starts a chain on the process-wide tracker.
func StartCausalChain(typ EventType, description string, opts ...EventOption) (string, error) {
	return Default().StartChain(typ, description, opts...)
}

// AddCausalEvent records an event on the process-wide tracker.
func AddCausalEvent(typ EventType, description string, opts ...EventOption) (string, error) {
	return Default().AddEvent(typ, description, opts...)
}

// CompleteCausalEvent completes an event on the process-wide tracker.
func CompleteCausalEvent(eventID string, err error) {
	Default().CompleteEvent(eventID, err)
}

// EndCurrentChain ends the process-wide tracker's active chain.
func EndCurrentChain() {
	Default().EndActiveChain()
}

// CausalityContext returns the process-wide tracker's logging context.
func CausalityContext() map[string]any {
	return Default().CausalityContext()
}
