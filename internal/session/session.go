// Package session scopes a cart and an optional authenticated user to one
// session id. Both are persisted through storage.KeyValue so a session
// survives restarts of the process.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fjod/go_cart/storefront/internal/cart"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/inventory"
	"github.com/fjod/go_cart/storefront/internal/storage"
	"github.com/fjod/go_cart/storefront/pkg/logger"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
)

const (
	DefaultMaxSessions = 10000
	DefaultIdleTTL     = 30 * time.Minute
)

var ErrInvalidID = errors.New("session id is required")

type Session struct {
	ID   string
	Cart *cart.Store

	mu   sync.RWMutex
	user *domain.User
}

// User returns the authenticated user, or nil for a guest session.
func (s *Session) User() *domain.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

func (s *Session) setUser(u *domain.User) {
	s.mu.Lock()
	s.user = u
	s.mu.Unlock()
}

type Option func(*Manager)

// WithMaxSessions caps how many sessions stay live; the least recently used
// one is dropped first.
func WithMaxSessions(n int) Option {
	return func(m *Manager) { m.maxSessions = n }
}

// WithIdleTTL drops a session that has not been opened for d.
func WithIdleTTL(d time.Duration) Option {
	return func(m *Manager) { m.idleTTL = d }
}

// Manager keeps recently used sessions live. A dropped session loses nothing:
// its cart and user are in storage and the next Open rehydrates them.
type Manager struct {
	mu       sync.Mutex
	sessions *expirable.LRU[string, *Session]
	kv       storage.KeyValue
	lookup   inventory.Lookup
	logger   *zap.Logger

	maxSessions int
	idleTTL     time.Duration
}

func NewManager(kv storage.KeyValue, lookup inventory.Lookup, log *zap.Logger, opts ...Option) *Manager {
	m := &Manager{
		kv:          kv,
		lookup:      lookup,
		logger:      log.Named("session"),
		maxSessions: DefaultMaxSessions,
		idleTTL:     DefaultIdleTTL,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.sessions = expirable.NewLRU[string, *Session](m.maxSessions, func(id string, _ *Session) {
		m.logger.Debug("session evicted", zap.String("session_id", id))
	}, m.idleTTL)
	return m
}

// Open returns the live session for id, rehydrating cart and user from
// storage the first time id is seen. Each call restarts the idle timer.
func (m *Manager) Open(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, ErrInvalidID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions.Get(id)
	if !ok {
		s = m.rehydrate(ctx, id)
	}
	m.sessions.Add(id, s)
	return s, nil
}

// Peek returns the live session for id, or a session read from storage that
// is not kept. It is meant for requests that only read.
func (m *Manager) Peek(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, ErrInvalidID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions.Get(id); ok {
		return s, nil
	}
	return m.rehydrate(ctx, id), nil
}

// Len reports how many sessions are live.
func (m *Manager) Len() int {
	return m.sessions.Len()
}

func (m *Manager) rehydrate(ctx context.Context, id string) *Session {
	return &Session{
		ID:   id,
		Cart: cart.NewStore(ctx, storage.CartKey(id), m.kv, m.lookup, m.logger),
		user: m.loadUser(ctx, id),
	}
}

// Login attaches user to the session and re-reads the session's cart from
// storage.
func (m *Manager) Login(ctx context.Context, id string, user *domain.User) (*Session, error) {
	const op = "session.login"
	if user == nil {
		return nil, domain.NewError(domain.KindInvalidArgument, op, "user is required", nil)
	}

	s, err := m.Open(ctx, id)
	if err != nil {
		return nil, domain.NewError(domain.KindInvalidArgument, op, "session id is required", err)
	}

	raw, err := json.Marshal(user)
	if err != nil {
		return nil, fmt.Errorf("marshal user: %w", err)
	}
	if err := m.kv.Set(ctx, storage.SessionKey(id), string(raw)); err != nil {
		logger.WithTrace(ctx, m.logger).Error("failed to persist session user",
			zap.String("session_id", id), zap.Error(err))
		return nil, domain.NewError(domain.KindPersistence, op, "session could not be saved", err)
	}

	u := *user
	s.setUser(&u)
	s.Cart.Reload(ctx)

	logger.WithTrace(ctx, m.logger).Info("user logged in",
		zap.String("session_id", id), zap.String("user_id", user.ID))
	return s, nil
}

// Logout empties the cart, removes the persisted cart and user and forgets
// the session. Storage errors are logged; the session is dropped regardless.
func (m *Manager) Logout(ctx context.Context, id string) error {
	if id == "" {
		return ErrInvalidID
	}
	log := logger.WithTrace(ctx, m.logger).With(zap.String("session_id", id))

	m.mu.Lock()
	s, ok := m.sessions.Peek(id)
	m.sessions.Remove(id)
	m.mu.Unlock()

	var errs []error
	if ok {
		if err := s.Cart.Clear(ctx); err != nil {
			errs = append(errs, err)
		}
		s.setUser(nil)
	}
	for _, key := range []string{storage.CartKey(id), storage.SessionKey(id)} {
		if err := m.kv.Delete(ctx, key); err != nil && !errors.Is(err, storage.ErrNotFound) {
			errs = append(errs, fmt.Errorf("delete %s: %w", key, err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		log.Error("logout left data behind", zap.Error(err))
		return domain.NewError(domain.KindPersistence, "session.logout", "session could not be cleared", err)
	}
	log.Info("session closed")
	return nil
}

func (m *Manager) loadUser(ctx context.Context, id string) *domain.User {
	raw, err := m.kv.Get(ctx, storage.SessionKey(id))
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			logger.WithTrace(ctx, m.logger).Warn("failed to read session user",
				zap.String("session_id", id), zap.Error(err))
		}
		return nil
	}
	var u domain.User
	if err := json.Unmarshal([]byte(raw), &u); err != nil || u.ID == "" {
		logger.WithTrace(ctx, m.logger).Warn("discarding unreadable session user", zap.String("session_id", id))
		return nil
	}
	return &u
}
