package tracker

import "errors"

// Caller contract errors.
var (
	ErrChainNotFound    = errors.New("chain not found")
	ErrInvalidEventType = errors.New("invalid event type")
	ErrTrackerClosed    = errors.New("tracker is destroyed")
)
