package orchestrator

import (
	"context"
	"errors"

	"github.com/antoniostano/papertutor/internal/pdfdoc"
	"github.com/antoniostano/papertutor/internal/session"
	"github.com/antoniostano/papertutor/internal/tutor"
)

// Failure codes shared by the HTTP and websocket surfaces.
const (
	CodeSessionNotFound  = "session_not_found"
	CodeSessionNotActive = "session_not_active"
	CodeTurnInProgress   = "turn_in_progress"
	CodeEmptyMessage     = "empty_message"
	CodeSessionReset     = "session_reset"
	CodeExtraction       = "extraction_failed"
	CodeDocumentTooLarge = "document_too_large"
	CodeTransport        = "transport_error"
	CodeContent          = "content_error"
	CodeCanceled         = "canceled"
	CodeInternal         = "internal_error"
)

// Failure is the learner-facing classification of an error.
type Failure struct {
	Code      string `json:"code"`
	Source    string `json:"source"`
	Retryable bool   `json:"retryable"`
	Detail    string `json:"detail"`
}

func FailureOf(err error) Failure {
	if err == nil {
		return Failure{}
	}
	f := Failure{Code: CodeInternal, Source: "tutor", Detail: err.Error()}

	var (
		extractErr   *tutor.ExtractionError
		transportErr *tutor.TransportError
		contentErr   *tutor.ContentError
	)
	switch {
	case errors.Is(err, session.ErrNotFound), errors.Is(err, session.ErrNoTutor):
		f.Code, f.Source = CodeSessionNotFound, "session"
	case errors.Is(err, tutor.ErrNotActive):
		f.Code = CodeSessionNotActive
	case errors.Is(err, tutor.ErrTurnInProgress):
		f.Code, f.Retryable = CodeTurnInProgress, true
	case errors.Is(err, tutor.ErrEmptyMessage):
		f.Code = CodeEmptyMessage
	case errors.Is(err, tutor.ErrSessionReset):
		f.Code = CodeSessionReset
	case errors.As(err, &extractErr):
		f.Code, f.Source = CodeExtraction, "extractor"
		if errors.Is(err, pdfdoc.ErrTooLarge) {
			f.Code = CodeDocumentTooLarge
		}
	case errors.As(err, &transportErr):
		f.Code, f.Source, f.Retryable = CodeTransport, "model", transportErr.Retryable
		if errors.Is(err, context.Canceled) {
			f.Code = CodeCanceled
		}
	case errors.As(err, &contentErr):
		f.Code, f.Source, f.Retryable = CodeContent, "model", true
	case errors.Is(err, context.Canceled):
		f.Code = CodeCanceled
	}
	return f
}
