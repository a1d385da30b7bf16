package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/antoniostano/papertutor/internal/archive"
	"github.com/antoniostano/papertutor/internal/config"
	"github.com/antoniostano/papertutor/internal/observability"
	"github.com/antoniostano/papertutor/internal/orchestrator"
	"github.com/antoniostano/papertutor/internal/session"
	"github.com/antoniostano/papertutor/internal/tutor"
)

// Tutor is the session surface the HTTP layer drives.
type Tutor interface {
	CreateSession(userID string) (*session.Session, error)
	EndSession(sessionID string) (*session.Session, error)
	LoadDocument(ctx context.Context, sessionID, filename string, data []byte) (tutor.DocumentInfo, error)
	Submit(ctx context.Context, sessionID, text string) (orchestrator.TurnResult, error)
	Reset(sessionID string) (tutor.Snapshot, error)
	ClearConversation(sessionID string) (tutor.Snapshot, error)
	Snapshot(sessionID string) (*session.Session, tutor.Snapshot, error)
	ArchivedTurns(ctx context.Context, sessionID string, limit int) ([]archive.Record, error)
	RunConnection(ctx context.Context, s *session.Session, inbound <-chan any, outbound chan<- any) error
}

type Server struct {
	cfg         config.Config
	tutor       Tutor
	metrics     *observability.Metrics
	logger      *slog.Logger
	archiveMode string
	upgrader    websocket.Upgrader
	static      http.Handler
}

// New builds the server. archiveMode is reported by the onboarding endpoint
// (postgres|in-memory).
func New(cfg config.Config, t Tutor, metrics *observability.Metrics, logger *slog.Logger, archiveMode string) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:         cfg,
		tutor:       t,
		metrics:     metrics,
		logger:      logger.With("component", "httpapi"),
		archiveMode: archiveMode,
		static:      newStaticHandler(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Only same-origin browsers may drive a session unless explicitly opened up.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/ui/", http.StatusTemporaryRedirect)
	})
	r.Get("/ui", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/ui/", http.StatusTemporaryRedirect)
	})
	r.Handle("/ui/*", http.StripPrefix("/ui/", s.static))

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Handle("/metrics", s.metrics.Handler())
	r.Get("/v1/onboarding/status", s.handleOnboardingStatus)
	r.Get("/v1/perf/latency", s.handlePerfLatency)
	r.Delete("/v1/perf/latency", s.handleResetPerfLatency)

	r.Route("/v1/tutor/session", func(r chi.Router) {
		r.Post("/", s.handleCreateSession)
		r.Get("/ws", s.handleSessionWS)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetSession)
			r.Post("/document", s.handleUploadDocument)
			r.Post("/messages", s.handleSubmitMessage)
			r.Post("/reset", s.handleReset)
			r.Post("/clear", s.handleClear)
			r.Post("/end", s.handleEndSession)
			r.Get("/archive", s.handleArchive)
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"llm_provider": s.cfg.LLMProvider,
		"archive_mode": s.archiveMode,
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	if s.tutor == nil {
		respondError(w, http.StatusServiceUnavailable, "unavailable", "tutor not configured")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status":       "ready",
		"llm_provider": s.cfg.LLMProvider,
		"llm_model":    s.cfg.LLMModel,
	})
}

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Retryable bool   `json:"retryable,omitempty"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}

// respondFailure maps a tutor error to its HTTP status and stable code.
func respondFailure(w http.ResponseWriter, err error) {
	f := orchestrator.FailureOf(err)
	respondJSON(w, statusForCode(f.Code), errorResponse{Error: f.Detail, Code: f.Code, Retryable: f.Retryable})
}

func statusForCode(code string) int {
	switch code {
	case orchestrator.CodeSessionNotFound:
		return http.StatusNotFound
	case orchestrator.CodeSessionNotActive, orchestrator.CodeTurnInProgress, orchestrator.CodeSessionReset:
		return http.StatusConflict
	case orchestrator.CodeEmptyMessage:
		return http.StatusBadRequest
	case orchestrator.CodeExtraction:
		return http.StatusUnprocessableEntity
	case orchestrator.CodeDocumentTooLarge:
		return http.StatusRequestEntityTooLarge
	case orchestrator.CodeTransport, orchestrator.CodeContent:
		return http.StatusBadGateway
	case orchestrator.CodeCanceled:
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}
