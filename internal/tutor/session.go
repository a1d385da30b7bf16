// Package tutor owns the conversation with the model about one uploaded paper.
//
// A Session is either Uninitialized (no paper) or Active (system turn present).
// Submit commits the user turn and the assistant turn together, so a failed
// model call never leaves an unanswered user turn in the transcript.
package tutor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/antoniostano/papertutor/internal/llm"
	"github.com/antoniostano/papertutor/internal/pdfdoc"
	"github.com/antoniostano/papertutor/internal/reliability"
)

// Extractor converts uploaded bytes into paper text.
type Extractor interface {
	Extract(ctx context.Context, filename string, data []byte) (pdfdoc.Document, error)
}

// Options tune how a paper is embedded in the system prompt.
type Options struct {
	MaxPaperChars  int
	WarnPaperChars int
}

// DefaultOptions returns the default paper size limits.
func DefaultOptions() Options {
	return Options{
		MaxPaperChars:  DefaultMaxPaperChars,
		WarnPaperChars: DefaultWarnPaperChars,
	}
}

// Session is one learner's conversation about one paper.
type Session struct {
	id        string
	extractor Extractor
	model     llm.Adapter
	opts      Options

	mu         sync.Mutex
	transcript []Turn
	document   *DocumentInfo
	busy       bool
	generation uint64
}

func NewSession(id string, extractor Extractor, model llm.Adapter, opts Options) *Session {
	if strings.TrimSpace(id) == "" {
		id = uuid.NewString()
	}
	return &Session{
		id:        id,
		extractor: extractor,
		model:     model,
		opts:      opts,
	}
}

func (s *Session) ID() string { return s.id }

// State reports Uninitialized or Active.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Session) stateLocked() State {
	if len(s.transcript) == 0 {
		return StateUninitialized
	}
	return StateActive
}

// Len returns the number of turns in the transcript, system turn included.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.transcript)
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		State:      s.stateLocked(),
		Transcript: append([]Turn(nil), s.transcript...),
	}
	if s.document != nil {
		doc := *s.document
		snap.Document = &doc
	}
	return snap
}

// LoadDocument extracts the paper and starts a fresh transcript seeded with
// the system prompt. On failure the session keeps its previous state.
func (s *Session) LoadDocument(ctx context.Context, filename string, data []byte) (DocumentInfo, error) {
	if s.extractor == nil {
		return DocumentInfo{}, &ExtractionError{Filename: filename, Err: errors.New("no extractor configured")}
	}
	doc, err := s.extractor.Extract(ctx, filename, data)
	if err != nil {
		return DocumentInfo{}, &ExtractionError{Filename: filename, Err: err}
	}
	if strings.TrimSpace(doc.Text) == "" {
		return DocumentInfo{}, &ExtractionError{Filename: filename, Err: pdfdoc.ErrNoText}
	}

	text, truncated := clampPaper(doc.Text, s.opts.MaxPaperChars)
	chars := utf8.RuneCountInString(doc.Text)
	info := DocumentInfo{
		Name:          filename,
		Pages:         doc.Pages,
		Chars:         chars,
		Truncated:     truncated,
		LengthWarning: s.opts.WarnPaperChars > 0 && chars > s.opts.WarnPaperChars,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcript = []Turn{{Role: RoleSystem, Text: SystemPrompt(text)}}
	s.document = &info
	s.busy = false
	s.generation++
	return info, nil
}

// Submit sends text as the next user turn and returns the assistant reply.
func (s *Session) Submit(ctx context.Context, text string) (string, error) {
	return s.SubmitStream(ctx, text, nil)
}

// SubmitStream is Submit with streamed reply fragments passed to onDelta
// before the turn is committed.
func (s *Session) SubmitStream(ctx context.Context, text string, onDelta llm.DeltaHandler) (string, error) {
	return s.SubmitWithHooks(ctx, text, TurnHooks{OnDelta: onDelta})
}

// TurnHooks observe a single submit.
type TurnHooks struct {
	// OnAccepted runs once the turn holds the session, before the model is
	// called. It runs with the session locked and must not call back into it.
	OnAccepted func()
	OnDelta    llm.DeltaHandler
}

// SubmitWithHooks is SubmitStream with an acceptance callback. OnAccepted is
// not called for a submit rejected before reaching the model.
func (s *Session) SubmitWithHooks(ctx context.Context, text string, hooks TurnHooks) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyMessage
	}

	s.mu.Lock()
	if s.stateLocked() != StateActive {
		s.mu.Unlock()
		return "", ErrNotActive
	}
	if s.busy {
		s.mu.Unlock()
		return "", ErrTurnInProgress
	}
	userTurn := Turn{Role: RoleUser, Text: text}
	pending := make([]Turn, 0, len(s.transcript)+1)
	pending = append(pending, s.transcript...)
	pending = append(pending, userTurn)
	gen := s.generation
	s.busy = true
	if hooks.OnAccepted != nil {
		hooks.OnAccepted()
	}
	s.mu.Unlock()

	reply, err := s.complete(ctx, pending, hooks.OnDelta)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen {
		return "", ErrSessionReset
	}
	s.busy = false
	if err != nil {
		return "", err
	}
	s.transcript = append(s.transcript, userTurn, Turn{Role: RoleAssistant, Text: reply})
	return reply, nil
}

func (s *Session) complete(ctx context.Context, turns []Turn, onDelta llm.DeltaHandler) (string, error) {
	if s.model == nil {
		return "", &TransportError{Code: reliability.CodeProviderError, Err: errors.New("no model configured")}
	}
	messages, err := ToMessages(turns)
	if err != nil {
		return "", err
	}

	resp, err := s.model.Complete(ctx, llm.Request{
		SessionID: s.id,
		TurnID:    uuid.NewString(),
		Messages:  messages,
	}, onDelta)
	if err != nil {
		if errors.Is(err, llm.ErrEmptyResponse) {
			return "", &ContentError{Reason: "no choices", Err: err}
		}
		class := reliability.ClassifyProviderError(err)
		return "", &TransportError{Code: class.Code, Retryable: class.Retryable, Err: err}
	}

	reply := strings.TrimSpace(resp.Text)
	if reply == "" {
		return "", &ContentError{Reason: "empty reply"}
	}
	if !utf8.ValidString(reply) {
		return "", &ContentError{Reason: "reply is not valid UTF-8"}
	}
	return reply, nil
}

// ClearConversation drops every turn after the system prompt. The paper stays
// loaded and the session stays Active.
func (s *Session) ClearConversation() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stateLocked() != StateActive {
		return ErrNotActive
	}
	s.transcript = s.transcript[:1:1]
	s.busy = false
	s.generation++
	return nil
}

// Reset returns the session to Uninitialized and forgets the paper.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcript = nil
	s.document = nil
	s.busy = false
	s.generation++
}

// ToMessages serializes turns for the model API. Every role must be known.
func ToMessages(turns []Turn) ([]llm.Message, error) {
	out := make([]llm.Message, 0, len(turns))
	for i, t := range turns {
		var role llm.Role
		switch t.Role {
		case RoleSystem:
			role = llm.RoleSystem
		case RoleUser:
			role = llm.RoleUser
		case RoleAssistant:
			role = llm.RoleAssistant
		default:
			return nil, fmt.Errorf("turn %d: unknown role %s", i, t.Role)
		}
		out = append(out, llm.Message{Role: role, Content: t.Text})
	}
	return out, nil
}
