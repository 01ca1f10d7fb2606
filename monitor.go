package querycache

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// SessionManager invalidates the current session.
type SessionManager interface {
	Logout(ctx context.Context) error
}

// Navigator moves the user away from the current view.
type Navigator interface {
	RedirectTo(ctx context.Context, path string)
}

// SessionFunc adapts a function to SessionManager.
type SessionFunc func(ctx context.Context) error

func (f SessionFunc) Logout(ctx context.Context) error { return f(ctx) }

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(ctx context.Context, path string)

func (f NavigatorFunc) RedirectTo(ctx context.Context, path string) { f(ctx, path) }

// MonitorOptions configure a Monitor. Session and Navigator may be nil, in
// which case that step is skipped (the episode is still opened and logged).
type MonitorOptions struct {
	Session   SessionManager
	Navigator Navigator
	LoginPath string // "" => DefaultLoginPath
	Logger    Logger
	Hooks     Hooks
}

// Monitor runs the session-expired sequence (logout, then redirect) once per
// episode. An episode opens on the first auth failure and closes when
// SessionEstablished is called.
type Monitor struct {
	session   SessionManager
	navigator Navigator
	loginPath string
	log       Logger
	hooks     Hooks

	active   atomic.Bool
	episodes atomic.Uint64

	mu      sync.Mutex
	episode string
}

func NewMonitor(opts MonitorOptions) *Monitor {
	return &Monitor{
		session:   opts.Session,
		navigator: opts.Navigator,
		loginPath: coalesce(opts.LoginPath, DefaultLoginPath),
		log:       coalesce[Logger](opts.Logger, NopLogger{}),
		hooks:     coalesce[Hooks](opts.Hooks, NopHooks{}),
	}
}

// OnClassifiedFailure is fed every terminal failure. Only ClassAuthFailure
// matters; the first one of an episode triggers logout and redirect, the
// rest are dropped.
func (m *Monitor) OnClassifiedFailure(ctx context.Context, class Class, err error) {
	if class != ClassAuthFailure {
		return
	}
	if !m.active.CompareAndSwap(false, true) {
		m.log.Debug("auth failure inside open episode", Fields{"episode": m.Episode(), "err": err})
		return
	}

	id := uuid.NewString()
	m.mu.Lock()
	m.episode = id
	m.mu.Unlock()
	m.episodes.Add(1)

	m.log.Warn("session expired; logging out", Fields{"episode": id, "err": err, "redirect": m.loginPath})
	m.hooks.SessionExpired(id)

	if m.session != nil {
		if lerr := m.session.Logout(ctx); lerr != nil {
			m.log.Error("logout failed", Fields{"episode": id, "err": lerr})
		}
	}
	if m.navigator != nil {
		m.navigator.RedirectTo(ctx, m.loginPath)
	}
}

// SessionEstablished closes the current episode; the next auth failure opens
// a new one.
func (m *Monitor) SessionEstablished() {
	m.mu.Lock()
	prev := m.episode
	m.episode = ""
	m.mu.Unlock()
	if m.active.Swap(false) {
		m.log.Info("session established; episode closed", Fields{"episode": prev})
	}
}

// Active reports whether an episode is open.
func (m *Monitor) Active() bool { return m.active.Load() }

// Episodes returns how many episodes have been opened so far.
func (m *Monitor) Episodes() uint64 { return m.episodes.Load() }

// Episode returns the ID of the open episode, or "" when none is open.
func (m *Monitor) Episode() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.episode
}
