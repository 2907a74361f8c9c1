package tracker

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Tracker owns the event and chain stores and the background sweep.
// All methods are safe for concurrent use.
type Tracker struct {
	config  *Config
	logger  *zap.Logger
	metrics *trackerMetrics

	// now is the clock; replaced in tests to simulate aging.
	now func() time.Time

	mu          sync.Mutex
	chains      map[string]*Chain
	events      map[string]*CausalEvent
	activeChain string
	closed      bool
	counters    counters

	stopCh chan struct{}
	doneCh chan struct{}
}

// counters accumulate across sweeps; Destroy zeroes them.
type counters struct {
	chainsStarted  int64
	eventsRecorded int64
	chainsEnded    int64
	chainsExpired  int64
	chainsEvicted  int64
}

// New creates a tracker and starts its background sweep.
// A nil config uses defaults; a nil logger disables logging.
func New(cfg *Config, logger *zap.Logger) (*Tracker, error) {
	if cfg == nil {
		cfg = NewDefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid tracker config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	t := &Tracker{
		config:  cfg,
		logger:  logger,
		metrics: newTrackerMetrics(logger),
		now:     time.Now,
		chains:  make(map[string]*Chain),
		events:  make(map[string]*CausalEvent),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}

	go t.sweepLoop()

	t.logger.Info("tracker started",
		zap.Int("max_chains_in_memory", cfg.MaxChainsInMemory),
		zap.Duration("max_chain_duration", cfg.MaxChainDuration.Duration()),
		zap.Duration("cleanup_interval", cfg.CleanupInterval.Duration()))

	return t, nil
}

// EventOption customizes event creation.
type EventOption func(*eventOptions)

type eventOptions struct {
	context  map[string]any
	tags     []string
	severity Severity
	data     map[string]any
	chainID  string
	parentID string
}

// WithContext merges key-value pairs into the event's context map.
func WithContext(kv map[string]any) EventOption {
	return func(o *eventOptions) {
		if o.context == nil {
			o.context = make(map[string]any, len(kv))
		}
		for k, v := range kv {
			o.context[k] = v
		}
	}
}

// WithContextValue sets a single context key.
func WithContextValue(key string, value any) EventOption {
	return func(o *eventOptions) {
		if o.context == nil {
			o.context = make(map[string]any, 1)
		}
		o.context[key] = value
	}
}

// WithTags attaches tags to the event and unions them into chain metadata.
func WithTags(tags ...string) EventOption {
	return func(o *eventOptions) { o.tags = append(o.tags, tags...) }
}

// WithSeverity overrides the default low severity.
func WithSeverity(s Severity) EventOption {
	return func(o *eventOptions) { o.severity = s }
}

// WithData attaches arbitrary payload data to the event metadata.
func WithData(data map[string]any) EventOption {
	return func(o *eventOptions) { o.data = data }
}

// InChain targets an explicit chain instead of the active one. AddEvent
// returns ErrChainNotFound when the chain does not exist.
func InChain(chainID string) EventOption {
	return func(o *eventOptions) { o.chainID = chainID }
}

// WithParent links the new event under an explicit parent instead of the
// chain's most recent event. Unknown parent IDs fall back to the most
// recent event, same as completions racing with eviction.
func WithParent(eventID string) EventOption {
	return func(o *eventOptions) { o.parentID = eventID }
}

func applyOptions(opts []EventOption) eventOptions {
	var o eventOptions
	for _, fn := range opts {
		fn(&o)
	}
	if o.severity == "" {
		o.severity = SeverityLow
	}
	return o
}

// StartChain creates a new chain with a fresh root event at depth 0, marks
// it active, and returns the chain ID.
func (t *Tracker) StartChain(typ EventType, description string, opts ...EventOption) (string, error) {
	if !typ.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidEventType, typ)
	}
	o := applyOptions(opts)

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return "", ErrTrackerClosed
	}

	ch := t.startChainLocked(typ, description, o)

	// Bound worst-case growth between sweep ticks.
	if len(t.chains) > t.config.softCap() {
		t.cleanupLocked(t.now())
	}

	return ch.ID, nil
}

// AddEvent appends an event to a chain. Without InChain it targets the
// active chain, bootstrapping a fresh one when none is active. The parent
// defaults to the chain's most recently appended event.
func (t *Tracker) AddEvent(typ EventType, description string, opts ...EventOption) (string, error) {
	if !typ.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidEventType, typ)
	}
	o := applyOptions(opts)

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return "", ErrTrackerClosed
	}

	var ch *Chain
	if o.chainID != "" {
		ch = t.chains[o.chainID]
		if ch == nil {
			return "", fmt.Errorf("%w: %s", ErrChainNotFound, o.chainID)
		}
	} else if t.activeChain != "" {
		ch = t.chains[t.activeChain]
	}

	// No target chain: this call is equivalent to StartChain, so every
	// event belongs to a chain even without prior setup.
	if ch == nil {
		ch = t.startChainLocked(typ, description, o)
		return ch.RootCause.ID, nil
	}

	var parent *CausalEvent
	if o.parentID != "" {
		if p, ok := t.events[o.parentID]; ok && p.ChainID == ch.ID {
			parent = p
		}
	}
	if parent == nil {
		parent = ch.last()
	}

	evt := t.newEventLocked(typ, description, ch.ID, o)
	if parent != nil {
		evt.ParentID = parent.ID
		evt.Metadata.Depth = parent.Metadata.Depth + 1
		parent.ChildIDs = append(parent.ChildIDs, evt.ID)
	}

	ch.Events = append(ch.Events, evt)
	t.events[evt.ID] = evt
	ch.Metadata.EventCount = len(ch.Events)
	if evt.Metadata.Depth > ch.Metadata.MaxDepth {
		ch.Metadata.MaxDepth = evt.Metadata.Depth
	}
	ch.addTags(evt.Metadata.Tags)

	t.counters.eventsRecorded++
	t.metrics.eventRecorded(evt.Type)

	// Auto-termination safeguard against runaway loops.
	if len(ch.Events) >= t.config.MaxChainLength {
		t.logger.Warn("chain reached max length, ending",
			zap.String("chain_id", ch.ID),
			zap.Int("max_chain_length", t.config.MaxChainLength))
		t.endChainLocked(ch)
	}

	return evt.ID, nil
}

// CompleteEvent records the event's end time and duration. A non-nil err is
// attached to the event metadata and escalates severity to high. Unknown
// IDs are a silent no-op: completion is best-effort and must never crash a
// caller that raced with eviction.
func (t *Tracker) CompleteEvent(eventID string, opErr error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	evt, ok := t.events[eventID]
	if !ok {
		t.logger.Debug("complete on unknown event", zap.String("event_id", eventID))
		return
	}

	end := t.now()
	evt.Timing.EndTime = end
	d := end.Sub(evt.Timing.StartTime)
	if d < 0 {
		d = 0
	}
	evt.Timing.Duration = d

	if opErr != nil {
		evt.Metadata.Error = &ErrorDetail{Message: opErr.Error()}
		evt.Metadata.Severity = SeverityHigh
	}

	t.metrics.eventCompleted(evt.Type, d, opErr != nil)
}

// EndChain closes a chain, recording its total duration. If the chain was
// active, the active pointer is cleared. Unknown IDs are a no-op.
func (t *Tracker) EndChain(chainID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ch, ok := t.chains[chainID]
	if !ok {
		t.logger.Debug("end on unknown chain", zap.String("chain_id", chainID))
		return
	}
	t.endChainLocked(ch)
}

// EndActiveChain ends the currently active chain, if any.
func (t *Tracker) EndActiveChain() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.activeChain == "" {
		return
	}
	if ch, ok := t.chains[t.activeChain]; ok {
		t.endChainLocked(ch)
	} else {
		t.activeChain = ""
	}
}

// ActiveChainID returns the ID of the active chain, or "" when none.
func (t *Tracker) ActiveChainID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.activeChain
}

// Chain returns a deep copy of a chain, or false when unknown.
func (t *Tracker) Chain(chainID string) (*Chain, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ch, ok := t.chains[chainID]
	if !ok {
		return nil, false
	}
	return ch.Clone(), true
}

// Destroy stops the background sweep and clears all state. Safe to call
// multiple times.
func (t *Tracker) Destroy() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	t.mu.Unlock()

	close(t.stopCh)
	<-t.doneCh

	t.mu.Lock()
	t.metrics.storeCleared(len(t.chains))
	t.chains = make(map[string]*Chain)
	t.events = make(map[string]*CausalEvent)
	t.activeChain = ""
	t.counters = counters{}
	t.mu.Unlock()

	t.logger.Info("tracker destroyed")
}

// startChainLocked creates a chain with its root event and marks it active.
func (t *Tracker) startChainLocked(typ EventType, description string, o eventOptions) *Chain {
	root := t.newEventLocked(typ, description, "", o)

	ch := &Chain{
		ID:        "chain_" + uuid.New().String(),
		RootCause: root,
		Events:    []*CausalEvent{root},
		Metadata: ChainMetadata{
			StartTime:  root.Timing.StartTime,
			EventCount: 1,
		},
	}
	root.ChainID = ch.ID
	ch.addTags(root.Metadata.Tags)

	t.chains[ch.ID] = ch
	t.events[root.ID] = root
	t.activeChain = ch.ID

	t.counters.chainsStarted++
	t.counters.eventsRecorded++
	t.metrics.chainStarted(typ)
	t.metrics.eventRecorded(typ)

	t.logger.Debug("chain started",
		zap.String("chain_id", ch.ID),
		zap.String("root_type", string(typ)),
		zap.String("description", description))

	return ch
}

func (t *Tracker) newEventLocked(typ EventType, description, chainID string, o eventOptions) *CausalEvent {
	return &CausalEvent{
		ID:          "evt_" + uuid.New().String(),
		ChainID:     chainID,
		Type:        typ,
		Description: description,
		Timing:      Timing{StartTime: t.now()},
		Context:     o.context,
		Metadata: EventMetadata{
			Severity: o.severity,
			Tags:     o.tags,
			Data:     o.data,
		},
	}
}

func (t *Tracker) endChainLocked(ch *Chain) {
	if ch.Ended() {
		if t.activeChain == ch.ID {
			t.activeChain = ""
		}
		return
	}

	end := t.now()
	ch.Metadata.EndTime = end
	total := end.Sub(ch.Metadata.StartTime)
	if total < 0 {
		total = 0
	}
	ch.Metadata.TotalDuration = total

	if t.activeChain == ch.ID {
		t.activeChain = ""
	}

	t.counters.chainsEnded++
	t.metrics.chainEnded(total)

	t.logger.Debug("chain ended",
		zap.String("chain_id", ch.ID),
		zap.Duration("total_duration", total),
		zap.Int("event_count", ch.Metadata.EventCount))
}
