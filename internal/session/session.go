// Package session owns the console's view of who is logged in.
//
// A Manager starts Unknown. Restore resolves it to Authenticated or
// Unauthenticated; Login, Logout and Expire are the only other transitions.
package session

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/Hexthebaldy/tc-beauty-crm-web/internal/domain"
	"github.com/Hexthebaldy/tc-beauty-crm-web/internal/metrics"
	"golang.org/x/sync/singleflight"
)

type State int

const (
	Unknown State = iota
	Authenticated
	Unauthenticated
)

func (s State) String() string {
	switch s {
	case Authenticated:
		return "authenticated"
	case Unauthenticated:
		return "unauthenticated"
	}
	return "unknown"
}

// restoreTimeout bounds a restore, which runs detached from the request that
// triggered it.
const restoreTimeout = 10 * time.Second

// ErrNotFound is returned by a Persister when nothing is stored for a session.
var ErrNotFound = errors.New("session not found")

// Persister keeps the identity of a session across console restarts. It never
// stores secret material.
type Persister interface {
	Load(ctx context.Context, sid string) (*domain.User, error)
	Save(ctx context.Context, sid string, user domain.User) error
	Clear(ctx context.Context, sid string) error
}

// JarStore keeps the backend cookies of a session. The cookies are the only
// credential and never leave the console.
type JarStore interface {
	LoadCookies(ctx context.Context, sid string) ([]*http.Cookie, error)
	SaveCookies(ctx context.Context, sid string, cookies []*http.Cookie) error
}

// Store is what a session backend has to provide.
type Store interface {
	Persister
	JarStore
	Health(ctx context.Context) error
}

// Verifier checks that the backend still accepts the session's credential.
type Verifier interface {
	Verify(ctx context.Context) error
}

type Manager struct {
	sid       string
	persister Persister
	logger    *slog.Logger

	mu    sync.RWMutex
	state State
	user  *domain.User

	restore  singleflight.Group
	teardown func()
}

func NewManager(sid string, persister Persister, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		sid:       sid,
		persister: persister,
		logger:    logger.With("sid", shortID(sid)),
		state:     Unknown,
	}
}

func (m *Manager) ID() string { return m.sid }

// OnTeardown registers fn to run before the persisted session is cleared on
// logout, expiry or a rejected restore. Set it before the manager is shared.
func (m *Manager) OnTeardown(fn func()) {
	m.teardown = fn
}

func (m *Manager) runTeardown() {
	if m.teardown != nil {
		m.teardown()
	}
}

func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// User returns a copy of the current identity, nil unless Authenticated.
func (m *Manager) User() *domain.User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.user == nil {
		return nil
	}
	u := *m.user
	return &u
}

// Restore resolves an Unknown session. With a persisted identity the verifier
// decides; without one it is not called. Concurrent callers share one call.
func (m *Manager) Restore(ctx context.Context, verifier Verifier) State {
	if st := m.State(); st != Unknown {
		return st
	}
	v, _, _ := m.restore.Do("restore", func() (any, error) {
		// The result is shared by every waiting request, so the first
		// caller going away must not decide it.
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), restoreTimeout)
		defer cancel()
		return m.doRestore(rctx, verifier), nil
	})
	return v.(State)
}

func (m *Manager) doRestore(ctx context.Context, verifier Verifier) State {
	if st := m.State(); st != Unknown {
		return st
	}
	user, err := m.persister.Load(ctx, m.sid)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			m.logger.Warn("load persisted session failed", "err", err)
		}
		return m.resolve(Unauthenticated, nil)
	}
	if err := verifier.Verify(ctx); err != nil {
		m.logger.Info("persisted session rejected by backend", "err", err)
		m.runTeardown()
		if clearErr := m.persister.Clear(ctx, m.sid); clearErr != nil {
			m.logger.Warn("clear rejected session failed", "err", clearErr)
		}
		metrics.SessionTransitions.WithLabelValues("restore_failed").Inc()
		return m.resolve(Unauthenticated, nil)
	}
	metrics.SessionTransitions.WithLabelValues("restored").Inc()
	return m.resolve(Authenticated, user)
}

// resolve leaves Unknown unless another transition won the race.
func (m *Manager) resolve(to State, user *domain.User) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == Unknown {
		m.state = to
		m.user = user
	}
	return m.state
}

// Login persists the identity returned by a successful credential exchange.
func (m *Manager) Login(ctx context.Context, user domain.User) error {
	if err := m.persister.Save(ctx, m.sid, user); err != nil {
		return err
	}
	m.mu.Lock()
	m.state = Authenticated
	m.user = &user
	m.mu.Unlock()
	metrics.SessionTransitions.WithLabelValues("login").Inc()
	m.logger.Info("session authenticated", "user_id", user.ID, "role", user.Role)
	return nil
}

// Logout clears the persisted identity. The state changes even when the
// store fails so the operator is never left half logged in.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	m.state = Unauthenticated
	m.user = nil
	m.mu.Unlock()
	metrics.SessionTransitions.WithLabelValues("logout").Inc()
	m.runTeardown()
	return m.persister.Clear(ctx, m.sid)
}

// Expire is the teardown triggered by an authorization failure. It reports
// true only for the call that actually moved the session out of
// Authenticated, so any number of concurrent 401s tear down once.
func (m *Manager) Expire(ctx context.Context) bool {
	m.mu.Lock()
	if m.state != Authenticated {
		m.mu.Unlock()
		return false
	}
	m.state = Unauthenticated
	m.user = nil
	m.mu.Unlock()

	metrics.SessionTransitions.WithLabelValues("expired").Inc()
	m.logger.Info("session expired by backend")
	m.runTeardown()
	if err := m.persister.Clear(ctx, m.sid); err != nil {
		m.logger.Warn("clear expired session failed", "err", err)
	}
	return true
}

func shortID(sid string) string {
	if len(sid) > 8 {
		return sid[:8]
	}
	return sid
}
