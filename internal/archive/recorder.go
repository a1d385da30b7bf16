package archive

import (
	"context"
	"fmt"
	"time"

	"github.com/antoniostano/papertutor/internal/policy"
)

// Exchange is one committed user turn and its assistant reply.
type Exchange struct {
	SessionID    string
	UserID       string
	DocumentName string
	User         string
	Assistant    string
}

// Recorder writes committed exchanges to a Store, masking PII when enabled.
type Recorder struct {
	store     Store
	redactPII bool
	now       func() time.Time
}

func NewRecorder(store Store, redactPII bool) *Recorder {
	return &Recorder{store: store, redactPII: redactPII, now: time.Now}
}

func (r *Recorder) Store() Store { return r.store }

// RecordExchange saves the user turn then the assistant turn. The assistant
// record is stamped one microsecond later so the pair sorts stably.
func (r *Recorder) RecordExchange(ctx context.Context, ex Exchange) error {
	if r == nil || r.store == nil {
		return nil
	}
	at := r.now().UTC()
	turns := []struct {
		role string
		text string
	}{
		{"user", ex.User},
		{"assistant", ex.Assistant},
	}
	for i, t := range turns {
		content, redacted := t.text, false
		if r.redactPII {
			content, redacted = policy.RedactPII(content)
		}
		rec := Record{
			SessionID:    ex.SessionID,
			UserID:       ex.UserID,
			DocumentName: ex.DocumentName,
			Role:         t.role,
			Content:      content,
			PIIRedacted:  redacted,
			CreatedAt:    at.Add(time.Duration(i) * time.Microsecond),
		}
		if err := r.store.SaveTurn(ctx, rec); err != nil {
			return fmt.Errorf("archive %s turn: %w", t.role, err)
		}
	}
	return nil
}

func (r *Recorder) SessionTurns(ctx context.Context, sessionID string, limit int) ([]Record, error) {
	if r == nil || r.store == nil {
		return nil, nil
	}
	return r.store.SessionTurns(ctx, sessionID, limit)
}

func (r *Recorder) Close() error {
	if r == nil || r.store == nil {
		return nil
	}
	return r.store.Close()
}
