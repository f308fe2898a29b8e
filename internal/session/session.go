// Package session holds the per-browser session context: the stored token,
// the bootstrapped user, the query cache and everything bound to them.
package session

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"trazio/internal/apiclient"
	"trazio/internal/models"
	"trazio/internal/observability"
	"trazio/internal/onboarding"
	"trazio/internal/optimistic"
	"trazio/internal/querycache"
	"trazio/internal/router"
	"trazio/internal/service"
	"trazio/internal/storage"

	"github.com/golang-jwt/jwt/v5"
)

// Deps are the shared dependencies every session is built from.
type Deps struct {
	Storage    storage.LocalStorage
	APIBaseURL string
	HTTPClient *http.Client
	StaleTime  time.Duration
	Store      querycache.Store
	Uploads    service.UploadValidator
	Catalog    *onboarding.Catalog
}

// Session is the injected context of one browser. Nothing about it is global.
type Session struct {
	ID       string
	Cache    *querycache.Cache
	Toggler  *optimistic.Toggler
	Services *service.Services

	tokens  *storage.TokenStore
	catalog *onboarding.Catalog
	once    sync.Once

	mu          sync.RWMutex
	user        *models.User
	initialized bool
	redirect    string
	wizard      *onboarding.Wizard
	lastSeen    time.Time
}

// New builds a session whose token lives in deps.Storage under namespace id.
func New(id string, deps Deps) *Session {
	s := &Session{
		ID:       id,
		tokens:   storage.NewTokenStore(deps.Storage, id),
		catalog:  deps.Catalog,
		lastSeen: time.Now(),
	}
	s.Cache = querycache.New(querycache.Options{StaleTime: deps.StaleTime, Store: deps.Store})
	s.Toggler = optimistic.NewToggler(s.Cache)
	api := apiclient.New(apiclient.Config{
		BaseURL:        deps.APIBaseURL,
		HTTPClient:     deps.HTTPClient,
		Tokens:         s.tokens,
		OnUnauthorized: s.HandleUnauthorized,
	})
	s.Services = service.New(api, deps.Uploads)
	return s
}

// Context decorates ctx with the session and user ids for logging.
func (s *Session) Context(ctx context.Context) context.Context {
	uid := ""
	if u := s.User(); u != nil {
		uid = u.ID
	}
	return observability.WithSession(ctx, s.ID, uid)
}

// Bootstrap runs once per session: a stored token that is not obviously
// expired is exchanged for the current user; any failure clears the token.
// Concurrent callers wait for the first run. The session always ends up
// initialized.
func (s *Session) Bootstrap(ctx context.Context) {
	s.once.Do(func() {
		ctx := context.WithoutCancel(ctx)
		defer func() {
			s.mu.Lock()
			s.initialized = true
			s.mu.Unlock()
		}()

		token, err := s.tokens.Token(ctx)
		if err != nil {
			observability.Logger.ErrorContext(ctx, "failed to read stored token", slog.String("error", err.Error()))
			return
		}
		if token == "" {
			return
		}
		if Expired(token, time.Now()) {
			s.clearToken(ctx)
			return
		}

		u, err := s.Services.Auth.Me(ctx)
		if err != nil {
			observability.Logger.InfoContext(ctx, "stored token rejected, starting anonymous", slog.String("error", err.Error()))
			s.clearToken(ctx)
			return
		}
		s.setUser(u)
	})
}

// Expired reports whether token is a JWT whose exp claim has passed. Tokens
// that are not JWTs, or carry no exp, are left for the backend to judge.
func Expired(token string, now time.Time) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return !exp.After(now)
}

// Login authenticates, stores the token and starts a fresh cache for the user.
func (s *Session) Login(ctx context.Context, in service.LoginInput) (*models.User, error) {
	res, err := s.Services.Auth.Login(ctx, in)
	if err != nil {
		return nil, err
	}
	return s.start(ctx, res)
}

// Register creates the account and signs it in.
func (s *Session) Register(ctx context.Context, in service.RegisterInput) (*models.User, error) {
	res, err := s.Services.Auth.Register(ctx, in)
	if err != nil {
		return nil, err
	}
	return s.start(ctx, res)
}

func (s *Session) start(ctx context.Context, res *models.AuthResponse) (*models.User, error) {
	if err := s.tokens.SetToken(ctx, res.Token); err != nil {
		return nil, models.NewInternalError(err)
	}
	s.Cache.Clear()
	s.once.Do(func() {})
	s.mu.Lock()
	s.wizard = nil
	s.redirect = ""
	s.initialized = true
	s.mu.Unlock()
	u := res.User
	s.setUser(&u)
	observability.Logger.InfoContext(s.Context(ctx), "user signed in")
	return s.User(), nil
}

// Logout removes the token and forgets the user and every cached query.
func (s *Session) Logout(ctx context.Context) {
	s.clearToken(ctx)
	s.mu.Lock()
	s.user = nil
	s.wizard = nil
	s.mu.Unlock()
	s.Cache.Clear()
}

// HandleUnauthorized is called once per 401 answered to an authenticated
// request. It evicts the token and, when a user was signed in, logs them
// out and queues one redirect to the login page.
func (s *Session) HandleUnauthorized(ctx context.Context) {
	s.clearToken(ctx)
	s.mu.Lock()
	wasAuthenticated := s.user != nil
	s.user = nil
	s.wizard = nil
	if wasAuthenticated {
		s.redirect = router.LoginPath
	}
	s.mu.Unlock()
	s.Cache.Clear()
	if wasAuthenticated {
		observability.ForcedLogouts.Inc()
		observability.Logger.WarnContext(ctx, "session logged out after 401")
	}
}

// TakeRedirect returns the pending forced redirect, if any, and clears it.
func (s *Session) TakeRedirect() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	to := s.redirect
	s.redirect = ""
	return to, to != ""
}

// User returns a copy of the signed-in user, or nil.
func (s *Session) User() *models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// SetUser replaces the signed-in user, e.g. after a profile update.
func (s *Session) SetUser(u *models.User) {
	s.setUser(u)
}

func (s *Session) setUser(u *models.User) {
	s.mu.Lock()
	s.user = u
	s.mu.Unlock()
	s.Cache.SetNamespace(u.ID)
}

// State is what the route guard decides on.
func (s *Session) State() router.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := router.State{Initialized: s.initialized}
	if s.user != nil {
		st.Authenticated = true
		st.ProfileCompleted = s.user.ProfileCompleted
		st.Role = s.user.Role
	}
	return st
}

// Wizard returns the onboarding wizard, creating it on first use.
func (s *Session) Wizard() *onboarding.Wizard {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.wizard == nil {
		s.wizard = onboarding.NewWizard(s.catalog)
	}
	return s.wizard
}

// CompleteOnboarding submits the wizard and marks the profile complete.
func (s *Session) CompleteOnboarding(ctx context.Context) (*models.User, error) {
	u, err := s.Wizard().Submit(ctx, s.Services.Onboarding.Complete)
	if err != nil {
		return nil, err
	}
	u.ProfileCompleted = true
	s.setUser(u)
	s.mu.Lock()
	s.wizard = nil
	s.mu.Unlock()
	return s.User(), nil
}

func (s *Session) clearToken(ctx context.Context) {
	if err := s.tokens.Clear(ctx); err != nil {
		observability.Logger.ErrorContext(ctx, "failed to clear stored token", slog.String("error", err.Error()))
	}
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince(now time.Time) time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return now.Sub(s.lastSeen)
}
