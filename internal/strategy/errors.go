package strategy

import "errors"

// State machine errors
var (
	ErrUnknownLabel       = errors.New("unknown prediction class")
	ErrPredictionIndex    = errors.New("prediction index out of range")
	ErrUnsupportedClasses = errors.New("model classes must be 2 or 3")
	ErrNonMonotonicTime   = errors.New("event time earlier than previous event")
	ErrInvalidPrice       = errors.New("entry price must be positive")
	ErrEnded              = errors.New("state machine already ended")
)
