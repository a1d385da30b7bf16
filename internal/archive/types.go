// Package archive keeps an append-only record of committed tutoring turns.
// Records are written after a turn commits and are never replayed into a
// live tutor session.
package archive

import (
	"context"
	"time"
)

// Record stores a single committed user or assistant turn.
type Record struct {
	ID           string    `json:"id"`
	SessionID    string    `json:"session_id"`
	UserID       string    `json:"user_id,omitempty"`
	DocumentName string    `json:"document_name"`
	Role         string    `json:"role"`
	Content      string    `json:"content"`
	PIIRedacted  bool      `json:"pii_redacted"`
	CreatedAt    time.Time `json:"created_at"`
}

// DefaultSessionTurnsLimit caps SessionTurns when the caller passes limit <= 0.
const DefaultSessionTurnsLimit = 200

func effectiveLimit(limit int) int {
	if limit <= 0 {
		return DefaultSessionTurnsLimit
	}
	return limit
}

// Store persists archived turns. SessionTurns returns at most limit records,
// the most recent ones, oldest first.
type Store interface {
	SaveTurn(ctx context.Context, record Record) error
	SessionTurns(ctx context.Context, sessionID string, limit int) ([]Record, error)
	Close() error
}
