package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kdimtricp/lostfound/internal/ai"
	"github.com/kdimtricp/lostfound/internal/controller"
	"github.com/kdimtricp/lostfound/internal/database"
	"github.com/kdimtricp/lostfound/internal/store"
	"go.uber.org/zap"
)

const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"

	DefaultIdleTimeout = 2 * time.Hour
)

// Session is one browser's private lost-and-found: its own item store and
// view state.
type Session struct {
	ID         string
	Store      store.Store
	Controller *controller.Controller
	CreatedAt  time.Time

	lastSeen time.Time
	close    func() error
}

type Config struct {
	Backend     string
	IdleTimeout time.Duration
	Controller  controller.Options
	Logger      *zap.Logger
	Now         func() time.Time
}

// Manager keeps sessions keyed by cookie value and drops idle ones.
type Manager struct {
	client ai.Client
	config Config
	logger *zap.Logger

	sessions   map[string]*Session
	sessionsMu sync.RWMutex
}

func NewManager(client ai.Client, config Config) (*Manager, error) {
	switch config.Backend {
	case "":
		config.Backend = BackendMemory
	case BackendMemory, BackendSQLite:
	default:
		return nil, fmt.Errorf("unknown store backend %q", config.Backend)
	}
	if config.IdleTimeout == 0 {
		config.IdleTimeout = DefaultIdleTimeout
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	if config.Controller.Logger == nil {
		config.Controller.Logger = config.Logger
	}

	return &Manager{
		client:   client,
		config:   config,
		logger:   config.Logger,
		sessions: make(map[string]*Session),
	}, nil
}

// Get returns the session for id and marks it as seen.
func (m *Manager) Get(id string) (*Session, bool) {
	if id == "" {
		return nil, false
	}

	m.sessionsMu.Lock()
	defer m.sessionsMu.Unlock()

	s, ok := m.sessions[id]
	if ok {
		s.lastSeen = m.config.Now()
	}
	return s, ok
}

// GetOrCreate returns the session for id, creating a fresh one under a new
// id when id is unknown. created reports whether the caller must hand out
// the new id.
func (m *Manager) GetOrCreate(id string) (s *Session, created bool, err error) {
	if s, ok := m.Get(id); ok {
		return s, false, nil
	}

	m.Prune()

	s, err = m.newSession()
	if err != nil {
		return nil, false, err
	}

	m.sessionsMu.Lock()
	m.sessions[s.ID] = s
	m.sessionsMu.Unlock()

	m.logger.Info("Session started", zap.String("session_id", s.ID), zap.String("backend", m.config.Backend))
	return s, true, nil
}

func (m *Manager) newSession() (*Session, error) {
	var (
		st      store.Store
		closeFn = func() error { return nil }
	)

	switch m.config.Backend {
	case BackendSQLite:
		db, err := database.NewDB()
		if err != nil {
			return nil, fmt.Errorf("opening session database: %w", err)
		}
		st = database.NewItemRepository(db)
		closeFn = db.Close
	default:
		st = store.NewMemoryStore()
	}

	now := m.config.Now()
	return &Session{
		ID:         uuid.NewString(),
		Store:      st,
		Controller: controller.New(st, m.client, m.client, m.config.Controller),
		CreatedAt:  now,
		lastSeen:   now,
		close:      closeFn,
	}, nil
}

// Prune drops sessions idle for longer than the idle timeout. Sessions with
// a submission in flight are kept.
func (m *Manager) Prune() int {
	cutoff := m.config.Now().Add(-m.config.IdleTimeout)

	var stale []*Session
	m.sessionsMu.Lock()
	for id, s := range m.sessions {
		if s.lastSeen.Before(cutoff) && !s.Controller.Busy() {
			delete(m.sessions, id)
			stale = append(stale, s)
		}
	}
	m.sessionsMu.Unlock()

	for _, s := range stale {
		if err := s.close(); err != nil {
			m.logger.Warn("Failed to close session store", zap.String("session_id", s.ID), zap.Error(err))
		}
		m.logger.Info("Session expired", zap.String("session_id", s.ID))
	}
	return len(stale)
}

func (m *Manager) Len() int {
	m.sessionsMu.RLock()
	defer m.sessionsMu.RUnlock()
	return len(m.sessions)
}

func (m *Manager) Close() error {
	m.sessionsMu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.sessionsMu.Unlock()

	var firstErr error
	for _, s := range sessions {
		if err := s.close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
