package exam

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pavelanni/mocktest/internal/model"
)

// Manager keeps the live exam sessions of a server process. Sessions leave
// the registry when they are submitted or abandoned. A session whose result
// failed to persist stays so that the owner can retry, until Sweep or
// Shutdown makes a last write.
type Manager struct {
	src  Source
	sink Sink
	opts Options

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates a registry. opts is the template for every session;
// its ID and OnClose fields are set per session.
func NewManager(src Source, sink Sink, opts Options) *Manager {
	return &Manager{
		src:      src,
		sink:     sink,
		opts:     opts,
		sessions: make(map[string]*Session),
	}
}

// Start opens a session for p. If p already has a live session for testID
// that one is returned instead, so a reloaded client resumes its attempt.
// Sessions that fail to load are returned with their error and are not
// registered.
func (m *Manager) Start(ctx context.Context, p model.Principal, testID, subjectID string) (*Session, error) {
	if s, ok := m.Resume(p, testID); ok {
		return s, nil
	}

	opts := m.opts
	opts.ID = uuid.NewString()
	userOnClose := m.opts.OnClose
	opts.OnClose = func(s *Session) {
		m.remove(s.ID())
		if userOnClose != nil {
			userOnClose(s)
		}
	}

	s := Open(ctx, p, m.src, m.sink, testID, subjectID, opts)
	if s.State() == StateError {
		return s, s.Err()
	}

	m.mu.Lock()
	// A concurrent Start by the same user may have won the race.
	if existing := m.findLocked(p, testID); existing != nil {
		m.mu.Unlock()
		_ = s.Quit()
		return existing, nil
	}
	// A timer shorter than the load could already have closed the session.
	if !s.State().Terminal() {
		m.sessions[s.ID()] = s
	}
	m.mu.Unlock()
	return s, nil
}

// Resume returns p's live session for testID, if any.
func (m *Manager) Resume(p model.Principal, testID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.findLocked(p, testID)
	return s, s != nil
}

func (m *Manager) findLocked(p model.Principal, testID string) *Session {
	for _, s := range m.sessions {
		if s.Principal().UserID == p.UserID && s.TestID() == testID && !s.State().Terminal() {
			return s
		}
	}
	return nil
}

// Get returns the live session id if it belongs to p.
func (m *Manager) Get(id string, p model.Principal) (*Session, error) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	if s.Principal().UserID != p.UserID {
		return nil, ErrSessionForbidden
	}
	return s, nil
}

// ListFor returns the live sessions owned by p.
func (m *Manager) ListFor(p model.Principal) []*Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Session
	for _, s := range m.sessions {
		if s.Principal().UserID == p.UserID {
			out = append(out, s)
		}
	}
	return out
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Shutdown ends every live session. Results whose write failed get one
// last attempt before the session is dropped.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	live := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		live = append(live, s)
	}
	m.mu.Unlock()

	for _, s := range live {
		m.release(s, "shutdown")
	}
}

// Sweep ends sessions nobody has touched for IdleTimeout and returns how
// many it ended. Timed sessions in progress are left to their countdown.
func (m *Manager) Sweep() int {
	if m.opts.IdleTimeout <= 0 {
		return 0
	}
	now := m.clock().Now()

	m.mu.Lock()
	var idle []*Session
	for _, s := range m.sessions {
		if now.Sub(s.IdleSince()) < m.opts.IdleTimeout {
			continue
		}
		switch s.State() {
		case StatePersistFailed:
			idle = append(idle, s)
		case StateInProgress:
			if !s.Timed() {
				idle = append(idle, s)
			}
		}
	}
	m.mu.Unlock()

	for _, s := range idle {
		m.release(s, "idle")
	}
	return len(idle)
}

// RunSweeper calls Sweep every interval until ctx ends.
func (m *Manager) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				slog.Info("swept idle exam sessions", "count", n, "live_sessions", m.Len())
			}
		}
	}
}

// release retries a failed write once, then abandons whatever is left.
func (m *Manager) release(s *Session, why string) {
	if s.State() == StatePersistFailed {
		res, err := s.RetryPersist(context.Background())
		if err == nil {
			slog.Info("saved exam result on release", "session_id", s.ID(), "attempt_id", res.ID, "why", why)
			return
		}
		slog.Error("dropping unsaved exam result",
			"session_id", s.ID(),
			"user_id", res.UserID,
			"test_id", res.TestID,
			"score", res.Score,
			"total", res.Total,
			"answers", res.Answers,
			"why", why,
			"error", err,
		)
	}
	if err := s.Quit(); err == nil {
		slog.Info("abandoned exam session", "session_id", s.ID(), "why", why)
	}
}

func (m *Manager) clock() Clock {
	if m.opts.Clock != nil {
		return m.opts.Clock
	}
	return SystemClock
}

func (m *Manager) remove(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}
