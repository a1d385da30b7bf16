package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antoniostano/papertutor/internal/archive"
	"github.com/antoniostano/papertutor/internal/llm"
	"github.com/antoniostano/papertutor/internal/observability"
	"github.com/antoniostano/papertutor/internal/pdfdoc"
	"github.com/antoniostano/papertutor/internal/protocol"
	"github.com/antoniostano/papertutor/internal/session"
	"github.com/antoniostano/papertutor/internal/tutor"
)

type fakeExtractor struct{}

func (fakeExtractor) Extract(_ context.Context, filename string, data []byte) (pdfdoc.Document, error) {
	if !strings.HasPrefix(string(data), "%PDF-") {
		return pdfdoc.Document{}, pdfdoc.ErrNotPDF
	}
	return pdfdoc.Document{Name: filename, Text: "Attention is all you need...", Pages: 15, ExtractedPages: 15}, nil
}

type failingModel struct{ err error }

func (m failingModel) Complete(context.Context, llm.Request, llm.DeltaHandler) (llm.Response, error) {
	return llm.Response{}, m.err
}

// gatedModel holds every call until release is closed.
type gatedModel struct {
	once    sync.Once
	started chan struct{}
	release chan struct{}
}

func newGatedModel() *gatedModel {
	return &gatedModel{started: make(chan struct{}), release: make(chan struct{})}
}

func (m *gatedModel) Complete(ctx context.Context, _ llm.Request, _ llm.DeltaHandler) (llm.Response, error) {
	m.once.Do(func() { close(m.started) })
	select {
	case <-m.release:
		return llm.Response{Text: "Let's start with what you know."}, nil
	case <-ctx.Done():
		return llm.Response{}, ctx.Err()
	}
}

type harness struct {
	orch     *Orchestrator
	sessions *session.Manager
	store    *archive.InMemoryStore
	metrics  *observability.Metrics
}

func newHarness(t *testing.T, model llm.Adapter) harness {
	return newHarnessWithSessions(t, model, session.NewManager(time.Minute))
}

func newHarnessWithSessions(t *testing.T, model llm.Adapter, sessions *session.Manager) harness {
	t.Helper()
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetricsWithRegistry(reg, reg, "test")
	store := archive.NewInMemoryStore()
	orch := New(Deps{
		Sessions:     sessions,
		Extractor:    fakeExtractor{},
		Model:        model,
		Provider:     "openai",
		TutorOptions: tutor.DefaultOptions(),
		Recorder:     archive.NewRecorder(store, true),
		Metrics:      metrics,
	})
	return harness{orch: orch, sessions: sessions, store: store, metrics: metrics}
}

func (h harness) scrape(t *testing.T) string {
	t.Helper()
	rec := httptest.NewRecorder()
	h.metrics.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestTutorFlowCommitsAndArchives(t *testing.T) {
	h := newHarness(t, llm.NewMockAdapter())
	ctx := context.Background()

	s, err := h.orch.CreateSession("u1")
	require.NoError(t, err)

	_, err = h.orch.Submit(ctx, s.ID, "What is attention?")
	require.ErrorIs(t, err, tutor.ErrNotActive)

	info, err := h.orch.LoadDocument(ctx, s.ID, "paper.pdf", []byte("%PDF-1.7 ..."))
	require.NoError(t, err)
	assert.Equal(t, 15, info.Pages)

	res, err := h.orch.Submit(ctx, s.ID, "What is attention? email me at ada@lovelace.org")
	require.NoError(t, err)
	assert.NotEmpty(t, res.TurnID)
	assert.Contains(t, res.Reply, "what do you already know")
	assert.Equal(t, 3, res.TranscriptLength)

	rec, _, err := h.orch.Snapshot(s.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.CommittedTurns)

	turns, err := h.orch.ArchivedTurns(ctx, s.ID, 0)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "user", turns[0].Role)
	assert.Contains(t, turns[0].Content, "[REDACTED_EMAIL]")
	assert.Equal(t, "paper.pdf", turns[0].DocumentName)
	assert.Equal(t, res.Reply, turns[1].Content)

	out := h.scrape(t)
	assert.Contains(t, out, `test_turns_total{result="ok"} 1`)
	assert.Contains(t, out, `test_turns_total{result="session_not_active"} 1`)
	assert.Contains(t, out, `test_document_loads_total{result="ok"} 1`)
}

func TestLoadDocumentFailureKeepsState(t *testing.T) {
	h := newHarness(t, llm.NewMockAdapter())
	ctx := context.Background()
	s, _ := h.orch.CreateSession("")

	_, err := h.orch.LoadDocument(ctx, s.ID, "notes.txt", []byte("hello"))
	var extractErr *tutor.ExtractionError
	require.ErrorAs(t, err, &extractErr)
	assert.Equal(t, CodeExtraction, FailureOf(err).Code)

	_, snap, err := h.orch.Snapshot(s.ID)
	require.NoError(t, err)
	assert.Equal(t, tutor.StateUninitialized, snap.State)
	assert.Contains(t, h.scrape(t), `test_document_loads_total{result="extraction_failed"} 1`)
}

func TestTransportFailureCountsProviderError(t *testing.T) {
	h := newHarness(t, failingModel{err: errors.New("API returned unexpected status code: 401: invalid api key")})
	ctx := context.Background()
	s, _ := h.orch.CreateSession("")
	_, err := h.orch.LoadDocument(ctx, s.ID, "paper.pdf", []byte("%PDF-1.4"))
	require.NoError(t, err)

	_, err = h.orch.Submit(ctx, s.ID, "hello")
	f := FailureOf(err)
	assert.Equal(t, CodeTransport, f.Code)
	assert.False(t, f.Retryable)

	_, snap, _ := h.orch.Snapshot(s.ID)
	assert.Len(t, snap.Transcript, 1)

	turns, err := h.orch.ArchivedTurns(ctx, s.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, turns)
	assert.Contains(t, h.scrape(t), `test_provider_errors_total{code="auth",provider="openai"} 1`)
}

func TestResetAndClear(t *testing.T) {
	h := newHarness(t, llm.NewMockAdapter())
	ctx := context.Background()
	s, _ := h.orch.CreateSession("")
	_, err := h.orch.LoadDocument(ctx, s.ID, "paper.pdf", []byte("%PDF-1.4"))
	require.NoError(t, err)
	_, err = h.orch.Submit(ctx, s.ID, "q1")
	require.NoError(t, err)

	snap, err := h.orch.ClearConversation(s.ID)
	require.NoError(t, err)
	assert.Equal(t, tutor.StateActive, snap.State)
	assert.Len(t, snap.Transcript, 1)

	snap, err = h.orch.Reset(s.ID)
	require.NoError(t, err)
	assert.Equal(t, tutor.StateUninitialized, snap.State)
	assert.Empty(t, snap.Transcript)

	_, err = h.orch.ClearConversation(s.ID)
	require.ErrorIs(t, err, tutor.ErrNotActive)
}

func TestUnknownSession(t *testing.T) {
	h := newHarness(t, llm.NewMockAdapter())
	_, err := h.orch.Submit(context.Background(), "missing", "hi")
	require.ErrorIs(t, err, session.ErrNotFound)
	assert.Equal(t, CodeSessionNotFound, FailureOf(err).Code)

	_, err = h.orch.EndSession("missing")
	require.ErrorIs(t, err, session.ErrNotFound)
}

func TestEndSessionDropsTutorState(t *testing.T) {
	h := newHarness(t, llm.NewMockAdapter())
	s, _ := h.orch.CreateSession("")
	_, err := h.orch.LoadDocument(context.Background(), s.ID, "paper.pdf", []byte("%PDF-1.4"))
	require.NoError(t, err)

	ended, err := h.orch.EndSession(s.ID)
	require.NoError(t, err)
	assert.Equal(t, session.StatusEnded, ended.Status)
	assert.Equal(t, tutor.StateUninitialized, ended.Tutor.State())

	_, _, err = h.orch.Snapshot(s.ID)
	require.ErrorIs(t, err, session.ErrNotFound)
}

func TestRejectedSubmitKeepsInFlightTurnAlive(t *testing.T) {
	model := newGatedModel()
	h := newHarnessWithSessions(t, model, session.NewManager(20*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s, _ := h.orch.CreateSession("")
	_, err := h.orch.LoadDocument(ctx, s.ID, "paper.pdf", []byte("%PDF-1.4"))
	require.NoError(t, err)

	first := make(chan error, 1)
	go func() {
		_, err := h.orch.Submit(ctx, s.ID, "first")
		first <- err
	}()
	<-model.started

	_, err = h.orch.Submit(ctx, s.ID, "second")
	require.ErrorIs(t, err, tutor.ErrTurnInProgress)

	rec, err := h.sessions.Get(s.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ActiveTurnID)

	h.sessions.StartJanitor(ctx, 5*time.Millisecond)
	time.Sleep(80 * time.Millisecond)
	_, err = h.sessions.Get(s.ID)
	require.NoError(t, err, "session expired while its turn was in flight")

	close(model.release)
	require.NoError(t, <-first)

	_, snap, err := h.orch.Snapshot(s.ID)
	require.NoError(t, err)
	assert.Len(t, snap.Transcript, 3)
}

func TestResetDuringTurnKeepsSessionRegistered(t *testing.T) {
	model := newGatedModel()
	h := newHarnessWithSessions(t, model, session.NewManager(20*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s, _ := h.orch.CreateSession("")
	_, err := h.orch.LoadDocument(ctx, s.ID, "paper.pdf", []byte("%PDF-1.4"))
	require.NoError(t, err)

	first := make(chan error, 1)
	go func() {
		_, err := h.orch.Submit(ctx, s.ID, "first")
		first <- err
	}()
	<-model.started

	_, err = h.orch.Reset(s.ID)
	require.NoError(t, err)
	rec, err := h.sessions.Get(s.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ActiveTurnID)

	h.sessions.StartJanitor(ctx, 5*time.Millisecond)
	time.Sleep(80 * time.Millisecond)
	_, err = h.sessions.Get(s.ID)
	require.NoError(t, err, "session expired while its turn was in flight")

	close(model.release)
	require.ErrorIs(t, <-first, tutor.ErrSessionReset)

	rec, err = h.sessions.Get(s.ID)
	if err == nil {
		assert.Empty(t, rec.ActiveTurnID)
		assert.Equal(t, 0, rec.CommittedTurns)
	}
}

func TestAnonymousSessionsDoNotReplaceEachOther(t *testing.T) {
	h := newHarness(t, llm.NewMockAdapter())
	first, err := h.orch.CreateSession("")
	require.NoError(t, err)
	second, err := h.orch.CreateSession("")
	require.NoError(t, err)

	_, _, err = h.orch.Snapshot(first.ID)
	require.NoError(t, err)
	_, _, err = h.orch.Snapshot(second.ID)
	require.NoError(t, err)

	third, err := h.orch.CreateSession("ada")
	require.NoError(t, err)
	fourth, err := h.orch.CreateSession("ada")
	require.NoError(t, err)
	_, _, err = h.orch.Snapshot(third.ID)
	require.ErrorIs(t, err, session.ErrNotFound)
	_, _, err = h.orch.Snapshot(fourth.ID)
	require.NoError(t, err)
}

func TestFailureOf(t *testing.T) {
	cases := []struct {
		err       error
		code      string
		retryable bool
	}{
		{tutor.ErrTurnInProgress, CodeTurnInProgress, true},
		{tutor.ErrEmptyMessage, CodeEmptyMessage, false},
		{tutor.ErrSessionReset, CodeSessionReset, false},
		{&tutor.ExtractionError{Err: fmt.Errorf("read: %w", pdfdoc.ErrTooLarge)}, CodeDocumentTooLarge, false},
		{&tutor.TransportError{Code: "quota", Retryable: true, Err: errors.New("429")}, CodeTransport, true},
		{&tutor.TransportError{Code: "canceled", Err: context.Canceled}, CodeCanceled, false},
		{&tutor.ContentError{Reason: "empty reply"}, CodeContent, true},
		{errors.New("boom"), CodeInternal, false},
	}
	for _, tc := range cases {
		f := FailureOf(tc.err)
		assert.Equal(t, tc.code, f.Code, "err = %v", tc.err)
		assert.Equal(t, tc.retryable, f.Retryable, "err = %v", tc.err)
	}
	assert.Equal(t, Failure{}, FailureOf(nil))
}

func TestRunConnectionStreamsTurn(t *testing.T) {
	h := newHarness(t, llm.NewMockAdapter())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s, _ := h.orch.CreateSession("")
	inbound := make(chan any, 8)
	outbound := make(chan any, 256)
	done := make(chan error, 1)
	go func() { done <- h.orch.RunConnection(ctx, s, inbound, outbound) }()

	state := next[protocol.SessionState](t, outbound)
	assert.Equal(t, string(tutor.StateUninitialized), state.State)

	inbound <- protocol.UserMessage{Type: protocol.TypeUserMessage, SessionID: s.ID, Text: "hello"}
	ev := next[protocol.ErrorEvent](t, outbound)
	assert.Equal(t, CodeSessionNotActive, ev.Code)

	_, err := h.orch.LoadDocument(ctx, s.ID, "paper.pdf", []byte("%PDF-1.4"))
	require.NoError(t, err)

	inbound <- protocol.UserMessage{Type: protocol.TypeUserMessage, SessionID: s.ID, Text: "What is attention?"}
	var streamed strings.Builder
	var final protocol.AssistantMessage
	for final.Type == "" {
		select {
		case msg := <-outbound:
			switch m := msg.(type) {
			case protocol.AssistantTextDelta:
				streamed.WriteString(m.TextDelta)
			case protocol.AssistantMessage:
				final = m
			default:
				t.Fatalf("unexpected message %T", msg)
			}
		case <-ctx.Done():
			t.Fatalf("timed out waiting for assistant_message")
		}
	}
	assert.Equal(t, final.Text, streamed.String())
	assert.Equal(t, 3, final.TranscriptLength)

	inbound <- protocol.ClientControl{Type: protocol.TypeClientControl, SessionID: s.ID, Action: protocol.ActionClear}
	state = next[protocol.SessionState](t, outbound)
	assert.Equal(t, string(tutor.StateActive), state.State)
	assert.Equal(t, 1, state.TranscriptLength)
	assert.Equal(t, "paper.pdf", state.DocumentName)

	inbound <- protocol.ClientControl{Type: protocol.TypeClientControl, SessionID: s.ID, Action: protocol.ActionReset}
	state = next[protocol.SessionState](t, outbound)
	assert.Equal(t, string(tutor.StateUninitialized), state.State)
	assert.Equal(t, 0, state.TranscriptLength)

	close(inbound)
	require.NoError(t, <-done)
}

func next[T any](t *testing.T, ch <-chan any) T {
	t.Helper()
	select {
	case msg := <-ch:
		typed, ok := msg.(T)
		require.True(t, ok, "message = %T %+v", msg, msg)
		return typed
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for message")
	}
	var zero T
	return zero
}
