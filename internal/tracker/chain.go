package tracker

import "time"

// ChainMetadata holds aggregate attributes kept in lockstep with the chain's
// event list: EventCount always equals len(Events) and MaxDepth the maximum
// event depth.
type ChainMetadata struct {
	StartTime     time.Time     `json:"start_time"`
	EndTime       time.Time     `json:"end_time"`
	TotalDuration time.Duration `json:"total_duration"`
	EventCount    int           `json:"event_count"`
	MaxDepth      int           `json:"max_depth"`
	Tags          []string      `json:"tags,omitempty"`
}

// Chain is an ordered collection of causally related events sharing one root
// cause. The chain owns its events; the tracker's event index only maps ids
// back to their owning chain, so evicting a chain drops every event with it.
type Chain struct {
	ID        string         `json:"id"`
	RootCause *CausalEvent   `json:"root_cause"`
	Events    []*CausalEvent `json:"events"`
	Metadata  ChainMetadata  `json:"metadata"`
}

// Ended reports whether EndChain has been called on the chain.
func (c *Chain) Ended() bool {
	return !c.Metadata.EndTime.IsZero()
}

// last returns the most recently appended event, the natural causal
// continuation point for events added without an explicit parent.
func (c *Chain) last() *CausalEvent {
	if len(c.Events) == 0 {
		return nil
	}
	return c.Events[len(c.Events)-1]
}

// addTags unions tags into the chain metadata, preserving first-seen order.
func (c *Chain) addTags(tags []string) {
	for _, tag := range tags {
		seen := false
		for _, existing := range c.Metadata.Tags {
			if existing == tag {
				seen = true
				break
			}
		}
		if !seen {
			c.Metadata.Tags = append(c.Metadata.Tags, tag)
		}
	}
}

// hasTag reports whether the chain carries any of the given tags.
func (c *Chain) hasAnyTag(tags []string) bool {
	for _, tag := range tags {
		for _, existing := range c.Metadata.Tags {
			if existing == tag {
				return true
			}
		}
	}
	return false
}

// hasErrors reports whether any event in the chain carries an error.
func (c *Chain) hasErrors() bool {
	for _, e := range c.Events {
		if e.HasError() {
			return true
		}
	}
	return false
}

// Clone returns a deep copy with RootCause aliased to the copied first event.
func (c *Chain) Clone() *Chain {
	if c == nil {
		return nil
	}
	cp := &Chain{
		ID:       c.ID,
		Metadata: c.Metadata,
	}
	if c.Metadata.Tags != nil {
		cp.Metadata.Tags = append([]string(nil), c.Metadata.Tags...)
	}
	cp.Events = make([]*CausalEvent, len(c.Events))
	for i, e := range c.Events {
		cp.Events[i] = e.Clone()
	}
	if len(cp.Events) > 0 {
		cp.RootCause = cp.Events[0]
	}
	return cp
}
