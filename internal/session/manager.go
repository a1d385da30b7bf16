package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/antoniostano/papertutor/internal/tutor"
)

type Status string

const (
	StatusActive Status = "active"
	StatusEnded  Status = "ended"
)

var (
	ErrNotFound = errors.New("session not found")
	ErrNoTutor  = errors.New("session has no tutor")
)

// Session is the registry record for one tutoring session. Tutor is shared by
// every copy handed out by the Manager.
type Session struct {
	ID             string         `json:"session_id"`
	UserID         string         `json:"user_id"`
	Status         Status         `json:"status"`
	ActiveTurnID   string         `json:"active_turn_id"`
	CommittedTurns int            `json:"committed_turns"`
	StartedAt      time.Time      `json:"started_at"`
	LastActivityAt time.Time      `json:"last_activity_at"`
	Tutor          *tutor.Session `json:"-"`
}

// Manager tracks live sessions. Ended and expired sessions are removed from
// the registry and their tutor state is dropped.
type Manager struct {
	mu                sync.RWMutex
	sessions          map[string]*Session
	sessionByUser     map[string]string
	inactivityTimeout time.Duration
	onExpire          func(*Session)
}

func NewManager(inactivityTimeout time.Duration) *Manager {
	if inactivityTimeout <= 0 {
		inactivityTimeout = 30 * time.Minute
	}
	return &Manager{
		sessions:          make(map[string]*Session),
		sessionByUser:     make(map[string]string),
		inactivityTimeout: inactivityTimeout,
	}
}

func (m *Manager) InactivityTimeout() time.Duration { return m.inactivityTimeout }

func (m *Manager) SetExpireHook(hook func(*Session)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onExpire = hook
}

// Create registers t under its own ID. A named user holds at most one
// session; a previous one for the same user is ended. Sessions with an empty
// userID are anonymous and independent of each other.
func (m *Manager) Create(userID string, t *tutor.Session) (*Session, error) {
	if t == nil {
		return nil, ErrNoTutor
	}
	userID = strings.TrimSpace(userID)
	now := time.Now().UTC()
	s := &Session{
		ID:             t.ID(),
		UserID:         userID,
		Status:         StatusActive,
		StartedAt:      now,
		LastActivityAt: now,
		Tutor:          t,
	}

	m.mu.Lock()
	var replaced *Session
	if userID != "" {
		if prevID, ok := m.sessionByUser[userID]; ok {
			replaced = m.removeLocked(prevID)
		}
		m.sessionByUser[userID] = s.ID
	}
	m.sessions[s.ID] = s
	out := clone(s)
	m.mu.Unlock()

	if replaced != nil && replaced.Tutor != nil {
		replaced.Tutor.Reset()
	}
	return out, nil
}

func (m *Manager) Get(sessionID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(s), nil
}

func (m *Manager) Touch(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	s.LastActivityAt = time.Now().UTC()
	return nil
}

func (m *Manager) StartTurn(sessionID, turnID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	s.ActiveTurnID = turnID
	s.LastActivityAt = time.Now().UTC()
	return nil
}

// FinishTurn ends turnID and counts it when it was committed. The active turn
// marker is only cleared if it still belongs to turnID.
func (m *Manager) FinishTurn(sessionID, turnID string, committed bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	if s.ActiveTurnID == turnID {
		s.ActiveTurnID = ""
	}
	if committed {
		s.CommittedTurns++
	}
	s.LastActivityAt = time.Now().UTC()
	return nil
}

// ResetTurns zeroes the committed counter after a reset or clear. A turn still
// in flight keeps its marker until it finishes.
func (m *Manager) ResetTurns(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	s.CommittedTurns = 0
	s.LastActivityAt = time.Now().UTC()
	return nil
}

func (m *Manager) End(sessionID string) (*Session, error) {
	m.mu.Lock()
	s := m.removeLocked(sessionID)
	m.mu.Unlock()
	if s == nil {
		return nil, ErrNotFound
	}
	if s.Tutor != nil {
		s.Tutor.Reset()
	}
	return s, nil
}

func (m *Manager) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.expireInactive()
			}
		}
	}()
}

func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *Manager) expireInactive() {
	now := time.Now().UTC()
	var expired []*Session

	m.mu.Lock()
	for id, s := range m.sessions {
		if s.ActiveTurnID != "" {
			continue
		}
		if now.Sub(s.LastActivityAt) < m.inactivityTimeout {
			continue
		}
		if ended := m.removeLocked(id); ended != nil {
			expired = append(expired, ended)
		}
	}
	hook := m.onExpire
	m.mu.Unlock()

	for _, s := range expired {
		if s.Tutor != nil {
			s.Tutor.Reset()
		}
		if hook != nil {
			hook(s)
		}
	}
}

// removeLocked deletes the session and returns an ended copy, or nil.
func (m *Manager) removeLocked(sessionID string) *Session {
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil
	}
	delete(m.sessions, sessionID)
	if s.UserID != "" && m.sessionByUser[s.UserID] == sessionID {
		delete(m.sessionByUser, s.UserID)
	}
	ended := clone(s)
	ended.Status = StatusEnded
	ended.ActiveTurnID = ""
	ended.LastActivityAt = time.Now().UTC()
	return ended
}

func clone(s *Session) *Session {
	c := *s
	return &c
}
