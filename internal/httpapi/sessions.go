package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/antoniostano/papertutor/internal/archive"
	"github.com/antoniostano/papertutor/internal/session"
	"github.com/antoniostano/papertutor/internal/tutor"
)

type sessionResponse struct {
	SessionID        string              `json:"session_id"`
	UserID           string              `json:"user_id"`
	Status           session.Status      `json:"status"`
	State            tutor.State         `json:"state"`
	Document         *tutor.DocumentInfo `json:"document,omitempty"`
	Transcript       []tutor.Turn        `json:"transcript"`
	TranscriptLength int                 `json:"transcript_length"`
	CommittedTurns   int                 `json:"committed_turns"`
	StartedAt        time.Time           `json:"started_at"`
	LastActivityAt   time.Time           `json:"last_activity_at"`
}

func newSessionResponse(s *session.Session, snap tutor.Snapshot) sessionResponse {
	return sessionResponse{
		SessionID:        s.ID,
		UserID:           s.UserID,
		Status:           s.Status,
		State:            snap.State,
		Document:         snap.Document,
		Transcript:       snap.Conversation(),
		TranscriptLength: len(snap.Transcript),
		CommittedTurns:   s.CommittedTurns,
		StartedAt:        s.StartedAt,
		LastActivityAt:   s.LastActivityAt,
	}
}

type stateResponse struct {
	SessionID        string              `json:"session_id"`
	State            tutor.State         `json:"state"`
	Document         *tutor.DocumentInfo `json:"document,omitempty"`
	TranscriptLength int                 `json:"transcript_length"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req session.CreateRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	// An empty user ID is an anonymous visitor and never replaces another session.
	sess, err := s.tutor.CreateSession(strings.TrimSpace(req.UserID))
	if err != nil {
		respondFailure(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, session.CreateResponse{
		SessionID:       sess.ID,
		UserID:          sess.UserID,
		Status:          sess.Status,
		State:           string(tutor.StateUninitialized),
		StartedAt:       sess.StartedAt,
		LastActivityAt:  sess.LastActivityAt,
		InactivityTTLMS: s.cfg.SessionInactivityTimeout.Milliseconds(),
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, snap, err := s.tutor.Snapshot(chi.URLParam(r, "id"))
	if err != nil {
		respondFailure(w, err)
		return
	}
	respondJSON(w, http.StatusOK, newSessionResponse(sess, snap))
}

type messageRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleSubmitMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	res, err := s.tutor.Submit(r.Context(), chi.URLParam(r, "id"), req.Text)
	if err != nil {
		respondFailure(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	snap, err := s.tutor.Reset(id)
	if err != nil {
		respondFailure(w, err)
		return
	}
	respondJSON(w, http.StatusOK, stateResponse{SessionID: id, State: snap.State, TranscriptLength: len(snap.Transcript)})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	snap, err := s.tutor.ClearConversation(id)
	if err != nil {
		respondFailure(w, err)
		return
	}
	respondJSON(w, http.StatusOK, stateResponse{
		SessionID:        id,
		State:            snap.State,
		Document:         snap.Document,
		TranscriptLength: len(snap.Transcript),
	})
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.tutor.EndSession(chi.URLParam(r, "id"))
	if err != nil {
		respondFailure(w, err)
		return
	}
	respondJSON(w, http.StatusOK, sess)
}

type archiveResponse struct {
	SessionID string           `json:"session_id"`
	Mode      string           `json:"mode"`
	Turns     []archive.Record `json:"turns"`
}

func (s *Server) handleArchive(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, "invalid_limit", "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	turns, err := s.tutor.ArchivedTurns(r.Context(), id, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "archive_error", err.Error())
		return
	}
	if turns == nil {
		turns = []archive.Record{}
	}
	respondJSON(w, http.StatusOK, archiveResponse{SessionID: id, Mode: s.archiveMode, Turns: turns})
}
