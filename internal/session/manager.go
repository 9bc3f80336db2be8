package session

import (
	"context"
	"sort"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Manager owns every live session, keyed by connection id. A session lives exactly as long
// as its client connection.
type Manager struct {
	cfg         Config
	symbols     SymbolLookup
	newUpstream UpstreamFactory
	validate    *validator.Validate
	logger      *zap.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(cfg Config, symbols SymbolLookup, newUpstream UpstreamFactory, logger *zap.Logger) *Manager {
	return &Manager{
		cfg:         cfg,
		symbols:     symbols,
		newUpstream: newUpstream,
		validate:    validator.New(),
		logger:      logger,
		sessions:    make(map[string]*Session),
	}
}

// Open registers a session for a new connection and starts its event loop.
func (m *Manager) Open(ctx context.Context, sender Sender) *Session {
	s := newSession(uuid.NewString(), m.cfg, sender, m.symbols, m.newUpstream, m.validate, m.logger)

	m.mu.Lock()
	m.sessions[s.id] = s
	n := len(m.sessions)
	m.mu.Unlock()

	m.logger.Info("client connected", zap.String("session", s.id), zap.Int("sessions", n))
	go s.Run(ctx)
	return s
}

// Close stops and forgets the session. Closing an unknown id is a no-op.
func (m *Manager) Close(id string) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	n := len(m.sessions)
	m.mu.Unlock()

	if !ok {
		return
	}
	s.Close()
	m.logger.Info("client disconnected", zap.String("session", id), zap.Int("sessions", n))
}

func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sessions reports every live session ordered by id.
func (m *Manager) Sessions() []Info {
	m.mu.Lock()
	list := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		list = append(list, s)
	}
	m.mu.Unlock()

	infos := make([]Info, 0, len(list))
	for _, s := range list {
		infos = append(infos, s.Info())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}

// Shutdown closes every session concurrently and waits for all of them.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	list := make([]*Session, 0, len(m.sessions))
	for id, s := range m.sessions {
		list = append(list, s)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, s := range list {
		wg.Add(1)
		go func(s *Session) {
			defer wg.Done()
			s.Close()
		}(s)
	}
	wg.Wait()
	m.logger.Info("all sessions closed", zap.Int("count", len(list)))
}
