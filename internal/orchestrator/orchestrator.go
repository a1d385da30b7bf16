// Package orchestrator runs tutoring sessions on behalf of the HTTP and
// websocket surfaces. It owns the glue between the session registry, the
// tutor state machine, the model adapter, the archive and metrics.
package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/antoniostano/papertutor/internal/archive"
	"github.com/antoniostano/papertutor/internal/llm"
	"github.com/antoniostano/papertutor/internal/observability"
	"github.com/antoniostano/papertutor/internal/session"
	"github.com/antoniostano/papertutor/internal/tutor"
)

// Deps are the collaborators of an Orchestrator. Metrics must not be nil.
type Deps struct {
	Sessions     *session.Manager
	Extractor    tutor.Extractor
	Model        llm.Adapter
	Provider     string
	TutorOptions tutor.Options
	Recorder     *archive.Recorder
	Metrics      *observability.Metrics
	Logger       *slog.Logger
}

type Orchestrator struct {
	sessions  *session.Manager
	extractor tutor.Extractor
	model     llm.Adapter
	provider  string
	opts      tutor.Options
	recorder  *archive.Recorder
	metrics   *observability.Metrics
	logger    *slog.Logger
}

// TurnResult is a committed exchange.
type TurnResult struct {
	TurnID           string `json:"turn_id"`
	Reply            string `json:"reply"`
	TranscriptLength int    `json:"transcript_length"`
}

func New(d Deps) *Orchestrator {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	opts := d.TutorOptions
	if opts.MaxPaperChars <= 0 {
		opts = tutor.DefaultOptions()
	}
	provider := strings.TrimSpace(d.Provider)
	if provider == "" {
		provider = "unknown"
	}
	o := &Orchestrator{
		sessions:  d.Sessions,
		extractor: d.Extractor,
		model:     d.Model,
		provider:  provider,
		opts:      opts,
		recorder:  d.Recorder,
		metrics:   d.Metrics,
		logger:    logger.With("component", "orchestrator"),
	}
	o.sessions.SetExpireHook(o.onExpire)
	return o
}

func (o *Orchestrator) CreateSession(userID string) (*session.Session, error) {
	t := tutor.NewSession("", o.extractor, o.model, o.opts)
	s, err := o.sessions.Create(userID, t)
	if err != nil {
		return nil, err
	}
	o.metrics.ActiveSessions.Set(float64(o.sessions.ActiveCount()))
	o.metrics.SessionEvents.WithLabelValues("created").Inc()
	o.logger.Info("session created", "session_id", s.ID, "user_id", userID)
	return s, nil
}

func (o *Orchestrator) EndSession(sessionID string) (*session.Session, error) {
	s, err := o.sessions.End(sessionID)
	if err != nil {
		return nil, err
	}
	o.metrics.ActiveSessions.Set(float64(o.sessions.ActiveCount()))
	o.metrics.SessionEvents.WithLabelValues("ended").Inc()
	o.logger.Info("session ended", "session_id", s.ID, "committed_turns", s.CommittedTurns)
	return s, nil
}

func (o *Orchestrator) onExpire(s *session.Session) {
	o.metrics.ActiveSessions.Set(float64(o.sessions.ActiveCount()))
	o.metrics.SessionEvents.WithLabelValues("expired").Inc()
	o.logger.Info("session expired", "session_id", s.ID, "idle_for", o.sessions.InactivityTimeout())
}

func (o *Orchestrator) lookup(sessionID string) (*session.Session, error) {
	s, err := o.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	if s.Tutor == nil {
		return nil, session.ErrNoTutor
	}
	return s, nil
}

// LoadDocument extracts the uploaded paper into the session, replacing any
// paper and conversation it had.
func (o *Orchestrator) LoadDocument(ctx context.Context, sessionID, filename string, data []byte) (tutor.DocumentInfo, error) {
	s, err := o.lookup(sessionID)
	if err != nil {
		return tutor.DocumentInfo{}, err
	}
	_ = o.sessions.Touch(sessionID)

	started := time.Now()
	info, err := s.Tutor.LoadDocument(ctx, filename, data)
	elapsed := time.Since(started)
	if err != nil {
		o.metrics.ObserveExtract(elapsed, "extraction_failed")
		o.logger.Warn("document load failed", "session_id", sessionID, "file", filename, "bytes", len(data), "error", err)
		return tutor.DocumentInfo{}, err
	}
	o.metrics.ObserveExtract(elapsed, "ok")
	_ = o.sessions.ResetTurns(sessionID)

	attrs := []any{"session_id", sessionID, "file", info.Name, "pages", info.Pages, "chars", info.Chars, "elapsed", elapsed}
	if info.LengthWarning {
		o.metrics.ObserveIndicator("length_warning")
		o.logger.Warn("paper is long, replies may degrade", append(attrs, "truncated", info.Truncated)...)
	} else {
		o.logger.Info("document loaded", attrs...)
	}
	if info.Truncated {
		o.metrics.ObserveIndicator("truncated")
	}
	return info, nil
}

func (o *Orchestrator) Submit(ctx context.Context, sessionID, text string) (TurnResult, error) {
	return o.SubmitStream(ctx, sessionID, text, nil)
}

// SubmitStream runs one turn. onDelta sees reply fragments before the turn
// commits; they must be discarded by the caller if an error is returned.
func (o *Orchestrator) SubmitStream(ctx context.Context, sessionID, text string, onDelta llm.DeltaHandler) (TurnResult, error) {
	return o.submit(ctx, sessionID, uuid.NewString(), text, onDelta)
}

func (o *Orchestrator) submit(ctx context.Context, sessionID, turnID, text string, onDelta llm.DeltaHandler) (TurnResult, error) {
	s, err := o.lookup(sessionID)
	if err != nil {
		return TurnResult{}, err
	}
	started := time.Now()
	var firstDelta sync.Once
	handler := func(delta string) error {
		firstDelta.Do(func() { o.metrics.ObserveFirstDelta(time.Since(started)) })
		if onDelta == nil {
			return nil
		}
		return onDelta(delta)
	}

	// Only a turn the tutor accepted is registered as active.
	accepted := false
	reply, err := s.Tutor.SubmitWithHooks(ctx, text, tutor.TurnHooks{
		OnAccepted: func() {
			accepted = true
			_ = o.sessions.StartTurn(sessionID, turnID)
		},
		OnDelta: handler,
	})
	elapsed := time.Since(started)
	if accepted {
		_ = o.sessions.FinishTurn(sessionID, turnID, err == nil)
	}

	if err != nil {
		f := FailureOf(err)
		o.metrics.ObserveTurn(elapsed, f.Code)
		var transportErr *tutor.TransportError
		if errors.As(err, &transportErr) {
			o.metrics.ProviderErrors.WithLabelValues(o.provider, transportErr.Code).Inc()
		}
		o.logger.Warn("turn failed", "session_id", sessionID, "turn_id", turnID, "code", f.Code, "elapsed", elapsed, "error", err)
		return TurnResult{}, err
	}
	o.metrics.ObserveTurn(elapsed, "ok")

	snap := s.Tutor.Snapshot()
	o.archiveExchange(ctx, s, snap, text, reply)
	o.logger.Debug("turn committed", "session_id", sessionID, "turn_id", turnID, "transcript_length", len(snap.Transcript), "elapsed", elapsed)

	return TurnResult{
		TurnID:           turnID,
		Reply:            reply,
		TranscriptLength: len(snap.Transcript),
	}, nil
}

func (o *Orchestrator) archiveExchange(ctx context.Context, s *session.Session, snap tutor.Snapshot, userText, reply string) {
	if o.recorder == nil {
		return
	}
	docName := ""
	if snap.Document != nil {
		docName = snap.Document.Name
	}
	err := o.recorder.RecordExchange(context.WithoutCancel(ctx), archive.Exchange{
		SessionID:    s.ID,
		UserID:       s.UserID,
		DocumentName: docName,
		User:         strings.TrimSpace(userText),
		Assistant:    reply,
	})
	if err != nil {
		o.logger.Error("archive write failed", "session_id", s.ID, "error", err)
	}
}

// Reset forgets the paper and the conversation.
func (o *Orchestrator) Reset(sessionID string) (tutor.Snapshot, error) {
	s, err := o.lookup(sessionID)
	if err != nil {
		return tutor.Snapshot{}, err
	}
	s.Tutor.Reset()
	_ = o.sessions.ResetTurns(sessionID)
	o.metrics.SessionEvents.WithLabelValues("reset").Inc()
	o.logger.Info("session reset", "session_id", sessionID)
	return s.Tutor.Snapshot(), nil
}

// ClearConversation keeps the paper and drops every exchange.
func (o *Orchestrator) ClearConversation(sessionID string) (tutor.Snapshot, error) {
	s, err := o.lookup(sessionID)
	if err != nil {
		return tutor.Snapshot{}, err
	}
	if err := s.Tutor.ClearConversation(); err != nil {
		return tutor.Snapshot{}, err
	}
	_ = o.sessions.ResetTurns(sessionID)
	o.metrics.SessionEvents.WithLabelValues("cleared").Inc()
	o.logger.Info("conversation cleared", "session_id", sessionID)
	return s.Tutor.Snapshot(), nil
}

// Snapshot returns the registry record and the tutor state of a session.
func (o *Orchestrator) Snapshot(sessionID string) (*session.Session, tutor.Snapshot, error) {
	s, err := o.lookup(sessionID)
	if err != nil {
		return nil, tutor.Snapshot{}, err
	}
	_ = o.sessions.Touch(sessionID)
	return s, s.Tutor.Snapshot(), nil
}

// ArchivedTurns lists what the archive holds for a session, oldest first.
func (o *Orchestrator) ArchivedTurns(ctx context.Context, sessionID string, limit int) ([]archive.Record, error) {
	return o.recorder.SessionTurns(ctx, sessionID, limit)
}

func (o *Orchestrator) ArchiveEnabled() bool { return o.recorder != nil }

func (o *Orchestrator) Metrics() *observability.Metrics { return o.metrics }
