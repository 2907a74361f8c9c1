package tracker

import (
	"time"
)

// EventType classifies a recorded occurrence.
type EventType string

// Recognized event types.
const (
	EventUserAction     EventType = "user_action"
	EventAPICall        EventType = "api_call"
	EventStateChange    EventType = "state_change"
	EventRender         EventType = "render"
	EventAsyncOperation EventType = "async_operation"
	EventSystem         EventType = "system_event"
	EventError          EventType = "error"
	EventPerformance    EventType = "performance"
	EventNavigation     EventType = "navigation"
	EventWebsocket      EventType = "websocket"
	EventCustom         EventType = "custom"
)

// Valid reports whether t is one of the recognized event types.
func (t EventType) Valid() bool {
	switch t {
	case EventUserAction, EventAPICall, EventStateChange, EventRender,
		EventAsyncOperation, EventSystem, EventError, EventPerformance,
		EventNavigation, EventWebsocket, EventCustom:
		return true
	}
	return false
}

// Severity grades an event's importance.
type Severity string

// Severity levels, ordered low to high.
const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Timing holds wall-clock bounds for an event. EndTime and Duration are set
// only once the event completes; an open event has a zero EndTime.
type Timing struct {
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`
}

// Completed reports whether the event has been completed.
func (t Timing) Completed() bool {
	return !t.EndTime.IsZero()
}

// ErrorDetail captures a runtime error attached to an event. Errors are
// recorded in-band for later inspection; the tracker never rethrows them.
type ErrorDetail struct {
	Message string `json:"message"`
}

// EventMetadata holds derived and caller-supplied event attributes.
type EventMetadata struct {
	Depth    int            `json:"depth"`
	Severity Severity       `json:"severity"`
	Tags     []string       `json:"tags,omitempty"`
	Error    *ErrorDetail   `json:"error,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
}

// CausalEvent is a single recorded occurrence with timing and causal links.
// ParentID is empty for root events. ChildIDs are back-references, not
// ownership: the owning chain holds the events themselves.
type CausalEvent struct {
	ID          string         `json:"id"`
	ChainID     string         `json:"chain_id"`
	ParentID    string         `json:"parent_id,omitempty"`
	ChildIDs    []string       `json:"child_ids,omitempty"`
	Type        EventType      `json:"type"`
	Description string         `json:"description"`
	Timing      Timing         `json:"timing"`
	Context     map[string]any `json:"context,omitempty"`
	Metadata    EventMetadata  `json:"metadata"`
}

// HasError reports whether the event carries an error, either attached on
// completion or because it was recorded as an error-type event.
func (e *CausalEvent) HasError() bool {
	return e.Metadata.Error != nil || e.Type == EventError
}

// Clone returns a deep copy. Analyzer results are clones so callers can
// never mutate live store state.
func (e *CausalEvent) Clone() *CausalEvent {
	if e == nil {
		return nil
	}
	cp := *e
	if e.ChildIDs != nil {
		cp.ChildIDs = append([]string(nil), e.ChildIDs...)
	}
	if e.Metadata.Tags != nil {
		cp.Metadata.Tags = append([]string(nil), e.Metadata.Tags...)
	}
	if e.Metadata.Error != nil {
		errCopy := *e.Metadata.Error
		cp.Metadata.Error = &errCopy
	}
	cp.Metadata.Data = cloneMap(e.Metadata.Data)
	cp.Context = cloneMap(e.Context)
	return &cp
}

// cloneMap deep-copies a caller-supplied attribute map so nested maps and
// slices are never shared between the live store and analyzer snapshots.
func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cp := make(map[string]any, len(m))
	for k, v := range m {
		cp[k] = cloneValue(v)
	}
	return cp
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return cloneMap(val)
	case []any:
		cp := make([]any, len(val))
		for i, elem := range val {
			cp[i] = cloneValue(elem)
		}
		return cp
	}
	return v
}
