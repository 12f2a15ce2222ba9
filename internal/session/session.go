package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/jackc/pgx/v5"

	"github.com/renovo/backend/internal/models"
	"github.com/renovo/backend/internal/realtime"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrUnknownUser     = errors.New("user profile not found")
)

// Session is the authenticated caller of one request. Handlers read it from
// the request context instead of any process-wide user state.
type Session struct {
	UID     uuid.UUID
	Role    string
	Profile *models.User
}

func (s *Session) Actor() models.Actor { return models.Actor{UID: s.UID, Role: s.Role} }

type contextKey string

const sessionKey contextKey = "session"

func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(sessionKey).(*Session)
	return s, ok && s != nil
}

type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (uuid.UUID, string, error)
}

type ProfileLoader interface {
	GetByID(ctx context.Context, uid uuid.UUID) (*models.User, error)
}

// Subscriber is the part of the realtime hub the manager needs.
type Subscriber interface {
	Subscribe(topic string, fn realtime.Handler) *realtime.Subscription
}

type entry struct {
	profile *models.User
	sub     *realtime.Subscription
}

// Manager turns bearer tokens into sessions. Profiles are cached and dropped
// as soon as anything is published on the user's topic, so balance and
// verification changes are visible on the next request.
type Manager struct {
	tokens   TokenValidator
	profiles ProfileLoader
	hub      Subscriber
	cache    *expirable.LRU[uuid.UUID, *entry]
	mu       sync.Mutex
	log      *slog.Logger
}

func NewManager(tokens TokenValidator, profiles ProfileLoader, hub Subscriber, size int, ttl time.Duration, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	if size <= 0 {
		size = 1024
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	m := &Manager{tokens: tokens, profiles: profiles, hub: hub, log: log}
	m.cache = expirable.NewLRU[uuid.UUID, *entry](size, func(_ uuid.UUID, e *entry) {
		if e.sub != nil {
			e.sub.Cancel()
		}
	}, ttl)
	return m
}

// Resolve validates token and loads the caller's profile. The stored role
// wins over the role claim so an admin promotion takes effect without a new
// token.
func (m *Manager) Resolve(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, ErrUnauthenticated
	}
	uid, _, err := m.tokens.ValidateToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}
	profile, err := m.Profile(ctx, uid)
	if err != nil {
		return nil, err
	}
	return &Session{UID: uid, Role: profile.Role, Profile: profile}, nil
}

// Profile returns the cached profile for uid, loading it on a miss. The
// user topic is watched before the load so a change committed while the row
// is being read keeps the result out of the cache.
func (m *Manager) Profile(ctx context.Context, uid uuid.UUID) (*models.User, error) {
	if e, ok := m.cache.Get(uid); ok {
		return e.profile, nil
	}

	var changed atomic.Bool
	var sub *realtime.Subscription
	if m.hub != nil {
		sub = m.hub.Subscribe(realtime.UserTopic(uid), func(realtime.Event) {
			changed.Store(true)
			m.Invalidate(uid)
		})
	}
	cancel := func() {
		if sub != nil {
			sub.Cancel()
		}
	}

	u, err := m.profiles.GetByID(ctx, uid)
	if errors.Is(err, pgx.ErrNoRows) {
		cancel()
		return nil, fmt.Errorf("%w: %w", ErrUnauthenticated, ErrUnknownUser)
	}
	if err != nil {
		cancel()
		return nil, fmt.Errorf("load profile: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.cache.Get(uid); ok {
		cancel()
		return e.profile, nil
	}
	if changed.Load() {
		cancel()
		return u, nil
	}
	m.cache.Add(uid, &entry{profile: u, sub: sub})
	// An event between the check above and Add found nothing to remove.
	if changed.Load() {
		m.cache.Remove(uid)
	}
	return u, nil
}

// Invalidate drops the cached profile and its subscription.
func (m *Manager) Invalidate(uid uuid.UUID) {
	if m.cache.Remove(uid) {
		m.log.Debug("session profile invalidated", "uid", uid)
	}
}

func (m *Manager) Cached() int { return m.cache.Len() }

// Close releases every cached profile subscription.
func (m *Manager) Close() { m.cache.Purge() }
