package businessflow

import (
	"context"
	"sync"
)

// PollerFactory builds the remote sync runner for a session. The scheduler
// package supplies the implementation; keeping it behind a function type
// lets sessions stay ignorant of polling machinery.
type PollerFactory func(session *Session) func(ctx context.Context)

// SessionManager owns the per-tenant sessions. Sessions are created lazily
// on first use; each one gets a drain loop goroutine and, when a poller
// factory is configured, a remote sync goroutine.
type SessionManager struct {
	deps          SessionDeps
	pollerFactory PollerFactory

	mu       sync.Mutex
	sessions map[string]*Session

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSessionManager creates a new session manager
func NewSessionManager(deps SessionDeps, pollerFactory PollerFactory) *SessionManager {
	ctx, cancel := context.WithCancel(context.Background())
	return &SessionManager{
		deps:          deps,
		pollerFactory: pollerFactory,
		sessions:      make(map[string]*Session),
		ctx:           ctx,
		cancel:        cancel,
	}
}

// Session returns the tenant's session, loading it from storage on first use
func (m *SessionManager) Session(ctx context.Context, tenantID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[tenantID]; ok {
		return s, nil
	}

	s, err := NewSession(ctx, tenantID, m.deps)
	if err != nil {
		return nil, err
	}
	m.sessions[tenantID] = s

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		s.DrainLoop(m.ctx)
	}()

	if m.pollerFactory != nil {
		run := m.pollerFactory(s)
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			run(m.ctx)
		}()
	}

	return s, nil
}

// Shutdown stops every session's background work and waits for it to finish
func (m *SessionManager) Shutdown() {
	m.cancel()

	m.mu.Lock()
	for _, s := range m.sessions {
		s.Close()
	}
	m.mu.Unlock()

	m.wg.Wait()
}
