package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"trazio/internal/notifications"
	"trazio/internal/observability"
	"trazio/internal/querycache"

	"github.com/google/uuid"
)

// Registry maps session cookies to sessions.
type Registry struct {
	deps     Deps
	idle     time.Duration
	notifier *notifications.Notifier
	now      func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry creates a registry. idle <= 0 keeps sessions forever.
func NewRegistry(deps Deps, idle time.Duration, notifier *notifications.Notifier) *Registry {
	return &Registry{
		deps:     deps,
		idle:     idle,
		notifier: notifier,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Get returns the session for id if it is held in memory.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if ok {
		s.touch(r.now())
	}
	return s, ok
}

// Resolve returns the session for a cookie value. Unknown but well-formed ids
// are recreated so the stored token survives restarts; anything else gets a
// new id. created reports whether the caller must set the cookie.
func (r *Registry) Resolve(cookie string) (s *Session, created bool) {
	if cookie != "" {
		if s, ok := r.Get(cookie); ok {
			return s, false
		}
		if _, err := uuid.Parse(cookie); err == nil {
			return r.add(cookie), false
		}
	}
	return r.add(uuid.NewString()), true
}

func (r *Registry) add(id string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		return s
	}
	s := New(id, r.deps)
	s.touch(r.now())
	r.sessions[id] = s
	observability.ActiveSessions.Set(float64(len(r.sessions)))
	return s
}

// Fresh builds an unregistered session under a new id. Sign-ins run on a
// fresh session and Replace makes it current, so an id that existed before
// sign-in never becomes authenticated.
func (r *Registry) Fresh() *Session {
	return New(uuid.NewString(), r.deps)
}

// Replace registers next in place of prev. prev is dropped together with its
// stored token and cached queries.
func (r *Registry) Replace(ctx context.Context, prev, next *Session) {
	next.touch(r.now())
	r.mu.Lock()
	if prev != nil {
		delete(r.sessions, prev.ID)
	}
	r.sessions[next.ID] = next
	observability.ActiveSessions.Set(float64(len(r.sessions)))
	r.mu.Unlock()

	if prev != nil && prev != next {
		prev.Logout(ctx)
	}
}

// Len reports how many sessions are held.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep drops sessions idle for longer than the idle timeout. Their tokens
// stay in storage.
func (r *Registry) Sweep() int {
	if r.idle <= 0 {
		return 0
	}
	now := r.now()
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, s := range r.sessions {
		if s.idleSince(now) > r.idle {
			s.Cache.Clear()
			delete(r.sessions, id)
			n++
		}
	}
	observability.ActiveSessions.Set(float64(len(r.sessions)))
	return n
}

// Run sweeps idle sessions every interval and applies remote invalidations
// until ctx is cancelled. The sweeper runs even when the subscription fails;
// the returned error only means invalidations stay local.
func (r *Registry) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := r.Sweep(); n > 0 {
					observability.Logger.Info("expired idle sessions", slog.Int("count", n))
				}
			}
		}
	}()
	return r.notifier.Subscribe(ctx, r.apply)
}

// Invalidate marks key stale in every local session of userID (every session
// when userID is empty) and tells the other instances to do the same.
func (r *Registry) Invalidate(ctx context.Context, userID string, key querycache.Key) {
	r.invalidateLocal(ctx, userID, key)
	if err := r.notifier.Publish(ctx, userID, key); err != nil {
		observability.Logger.WarnContext(ctx, "failed to publish invalidation", slog.String("error", err.Error()))
	}
}

func (r *Registry) apply(inv notifications.Invalidation) {
	r.invalidateLocal(context.Background(), inv.UserID, querycache.Key(inv.Key))
}

func (r *Registry) invalidateLocal(ctx context.Context, userID string, key querycache.Key) {
	r.mu.Lock()
	targets := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		if userID == "" {
			targets = append(targets, s)
			continue
		}
		if u := s.User(); u != nil && u.ID == userID {
			targets = append(targets, s)
		}
	}
	r.mu.Unlock()

	for _, s := range targets {
		s.Cache.InvalidateQueries(ctx, key)
	}
}
