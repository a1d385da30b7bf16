package tutor

import (
	"errors"
	"fmt"
)

var (
	ErrNotActive      = errors.New("no document loaded")
	ErrEmptyMessage   = errors.New("message is empty")
	ErrTurnInProgress = errors.New("a turn is already in progress")
	ErrSessionReset   = errors.New("session was reset while the turn was in flight")
)

// ExtractionError reports a PDF that could not be turned into text.
type ExtractionError struct {
	Filename string
	Err      error
}

func (e *ExtractionError) Error() string {
	if e.Filename == "" {
		return fmt.Sprintf("extract document: %v", e.Err)
	}
	return fmt.Sprintf("extract %s: %v", e.Filename, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// TransportError reports a failed call to the model provider.
type TransportError struct {
	Code      string
	Retryable bool
	Err       error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("model call failed (%s): %v", e.Code, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ContentError reports a reply that cannot be shown to the learner.
type ContentError struct {
	Reason string
	Err    error
}

func (e *ContentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("unusable model reply: %s: %v", e.Reason, e.Err)
	}
	return "unusable model reply: " + e.Reason
}

func (e *ContentError) Unwrap() error { return e.Err }
