package typing

import "errors"

var (
	// ErrEmptyTarget is returned when a session is built for text without code points.
	ErrEmptyTarget = errors.New("typing: target text is empty")
	// ErrSessionCompleted is returned when an insert is applied to a finished session.
	ErrSessionCompleted = errors.New("typing: session already completed")
)
