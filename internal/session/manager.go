// Package session tracks who is signed in. It checks the backend once for an
// existing session and then follows the backend's auth event stream.
package session

import (
	"context"
	"sync"

	"github.com/ytakahashi/quicklist/internal/logging"
	"github.com/ytakahashi/quicklist/internal/models"
	"github.com/ytakahashi/quicklist/internal/notify"
	"github.com/ytakahashi/quicklist/internal/remote"
)

// Manager holds the signed-in User of one client, derived from the
// backend's session.
type Manager struct {
	auth remote.Auth
	dir  Directory
	log  logging.Logger

	mu      sync.RWMutex
	user    *models.User
	loading bool
	events  uint64 // auth events applied so far
	cancel  func()
	done    chan struct{}

	changes *notify.Signal
}

func NewManager(auth remote.Auth, dir Directory, log logging.Logger) *Manager {
	return &Manager{
		auth:    auth,
		dir:     dir,
		log:     log,
		loading: true,
		changes: notify.NewSignal(),
	}
}

// Start subscribes to auth events and performs the one-time session check.
// It returns once the check has finished; Loading is false from then on.
func (m *Manager) Start(ctx context.Context) {
	events, cancel := m.auth.SubscribeAuth()
	done := make(chan struct{})

	m.mu.Lock()
	m.cancel = cancel
	m.done = done
	seen := m.events
	m.mu.Unlock()

	go m.follow(events, done)

	s, err := m.auth.GetSession(ctx)
	if err != nil {
		m.log.Warn(ctx, "session check failed", "error", err)
	}

	// An auth event handled during the check is newer than its result.
	m.mu.Lock()
	if err == nil && s != nil && m.events == seen {
		m.user = m.dir.UserFromSession(s)
	}
	m.loading = false
	m.mu.Unlock()
	notify.Notify(m.changes)
}

func (m *Manager) follow(events <-chan remote.AuthEvent, done chan struct{}) {
	defer close(done)
	for ev := range events {
		m.mu.Lock()
		m.events++
		if ev.Type == remote.EventSignedOut || ev.Session == nil {
			m.user = nil
		} else {
			m.user = m.dir.UserFromSession(ev.Session)
		}
		m.mu.Unlock()
		m.log.Info(context.Background(), "auth state changed", "event", string(ev.Type))
		notify.Notify(m.changes)
	}
}

// User returns a copy of the signed-in user, or nil.
func (m *Manager) User() *models.User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.user == nil {
		return nil
	}
	u := *m.user
	return &u
}

// Loading reports whether the initial session check is still running.
func (m *Manager) Loading() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loading
}

// SignOut asks the backend to end the session. The user is cleared when the
// resulting auth event arrives, not by this call.
func (m *Manager) SignOut(ctx context.Context) error {
	return m.auth.SignOut(ctx)
}

// Changes notifies on every user or loading change.
func (m *Manager) Changes() (<-chan struct{}, func()) {
	return m.changes.Subscribe()
}

// Close unsubscribes from the auth stream and waits for the follower to exit.
func (m *Manager) Close() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel = nil
	m.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}
