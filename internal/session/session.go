// Package session owns the client's authenticated state. A single Manager is
// created at startup and shared by the API client (which reads the token on
// every request) and the views (which subscribe to changes).
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	gosync "sync"

	"go.uber.org/zap"

	"github.com/nhle/bugtracker/internal/model"
)

// Persisted keys. Token and user are always written and cleared together.
const (
	KeyToken = "token"
	KeyUser  = "user"
)

// subscriberBuffer is how many undelivered events a subscriber may hold
// before further events are dropped for it.
const subscriberBuffer = 8

// ErrNotFound is returned by a Backend when a key has no value.
var ErrNotFound = errors.New("session: key not found")

// Backend is a small persistent key-value store.
type Backend interface {
	// Get returns the value for key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// Reason describes what caused a session change.
type Reason string

const (
	ReasonLoad     Reason = "load"
	ReasonLogin    Reason = "login"
	ReasonRegister Reason = "register"
	ReasonLogout   Reason = "logout"
)

// Event is published to subscribers after every change.
type Event struct {
	Session model.Session
	Reason  Reason
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger used for persistence warnings.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) {
		m.log = l
	}
}

// Manager holds the current session in memory and mirrors it to a Backend.
type Manager struct {
	backend Backend
	log     *zap.Logger

	mu      gosync.RWMutex
	current model.Session
	subs    map[int]chan Event
	nextSub int
}

// NewManager creates a Manager over backend. Call Load to pick up a session
// persisted by a previous run.
func NewManager(backend Backend, opts ...Option) *Manager {
	m := &Manager{
		backend: backend,
		log:     zap.NewNop(),
		subs:    make(map[int]chan Event),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Load reads the persisted token and user. A user record that cannot be
// decoded is discarded with a warning; the token is kept.
func (m *Manager) Load(ctx context.Context) error {
	s, err := m.read(ctx)
	if err != nil {
		return err
	}
	m.update(s, ReasonLoad)
	return nil
}

// Reload re-reads the backend and publishes a ReasonLoad event only when the
// stored session differs from the one in memory, e.g. after another process
// logged in or out.
func (m *Manager) Reload(ctx context.Context) error {
	s, err := m.read(ctx)
	if err != nil {
		return err
	}
	if sameSession(m.Current(), s) {
		return nil
	}
	m.update(s, ReasonLoad)
	return nil
}

func (m *Manager) read(ctx context.Context) (model.Session, error) {
	token, err := m.backend.Get(ctx, KeyToken)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return model.Session{}, fmt.Errorf("loading session token: %w", err)
	}

	var user *model.User
	raw, err := m.backend.Get(ctx, KeyUser)
	switch {
	case errors.Is(err, ErrNotFound):
	case err != nil:
		return model.Session{}, fmt.Errorf("loading session user: %w", err)
	default:
		var u model.User
		if jsonErr := json.Unmarshal([]byte(raw), &u); jsonErr != nil {
			m.log.Warn("discarding unreadable stored user", zap.Error(jsonErr))
		} else {
			user = &u
		}
	}

	return model.Session{Token: token, User: user}, nil
}

// Current returns a copy of the session.
func (m *Manager) Current() model.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return copySession(m.current)
}

// Token returns the current bearer token, or "" when logged out.
func (m *Manager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current.Token
}

// User returns the stored profile, if any.
func (m *Manager) User() (model.User, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current.User == nil {
		return model.User{}, false
	}
	return *m.current.User, true
}

// Authenticated reports whether a token is held.
func (m *Manager) Authenticated() bool {
	return m.Token() != ""
}

// Set persists token and user and notifies subscribers. The in-memory
// session only changes once both values are stored; if the user cannot be
// stored the previously persisted token is put back.
func (m *Manager) Set(ctx context.Context, token string, user *model.User, reason Reason) error {
	if token == "" {
		return errors.New("session: empty token")
	}

	var data []byte
	if user != nil {
		var err error
		if data, err = json.Marshal(user); err != nil {
			return fmt.Errorf("encoding session user: %w", err)
		}
	}

	prev := m.Current()
	if err := m.backend.Set(ctx, KeyToken, token); err != nil {
		return fmt.Errorf("storing session token: %w", err)
	}

	var err error
	if user != nil {
		if err = m.backend.Set(ctx, KeyUser, string(data)); err != nil {
			err = fmt.Errorf("storing session user: %w", err)
		}
	} else if err = m.backend.Delete(ctx, KeyUser); err != nil {
		err = fmt.Errorf("clearing session user: %w", err)
	}
	if err != nil {
		return errors.Join(err, m.restoreToken(ctx, prev.Token))
	}

	m.update(model.Session{Token: token, User: user}, reason)
	return nil
}

// restoreToken writes back the token held before a partial Set.
func (m *Manager) restoreToken(ctx context.Context, token string) error {
	var err error
	if token == "" {
		err = m.backend.Delete(ctx, KeyToken)
	} else {
		err = m.backend.Set(ctx, KeyToken, token)
	}
	if err != nil {
		m.log.Warn("restoring session token failed", zap.Error(err))
		return fmt.Errorf("restoring session token: %w", err)
	}
	return nil
}

// Clear removes token and user and notifies subscribers with ReasonLogout.
// The in-memory session is cleared even if the backend fails.
func (m *Manager) Clear(ctx context.Context) error {
	errToken := m.backend.Delete(ctx, KeyToken)
	errUser := m.backend.Delete(ctx, KeyUser)

	m.update(model.Session{}, ReasonLogout)

	if err := errors.Join(errToken, errUser); err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}
	return nil
}

// Subscribe registers for change events. The returned function unsubscribes
// and closes the channel; it is safe to call more than once.
func (m *Manager) Subscribe() (<-chan Event, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextSub
	m.nextSub++
	ch := make(chan Event, subscriberBuffer)
	m.subs[id] = ch

	var once gosync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			delete(m.subs, id)
			close(ch)
		})
	}
}

func (m *Manager) update(s model.Session, reason Reason) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.current = s
	ev := Event{Session: copySession(s), Reason: reason}
	for _, ch := range m.subs {
		select {
		case ch <- ev:
		default:
			m.log.Warn("session subscriber is full, dropping event", zap.String("reason", string(reason)))
		}
	}
}

func copySession(s model.Session) model.Session {
	if s.User != nil {
		u := *s.User
		s.User = &u
	}
	return s
}

func sameSession(a, b model.Session) bool {
	if a.Token != b.Token {
		return false
	}
	if a.User == nil || b.User == nil {
		return a.User == nil && b.User == nil
	}
	return *a.User == *b.User
}
