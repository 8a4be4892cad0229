package session

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/bookx/internal/shared"
	"github.com/desertthunder/bookx/internal/vault"
)

const (
	ensureKey = "ensure"
	loginKey  = "login"
)

// Store persists the current session. Implemented by [vault.Vault].
type Store interface {
	Load() (*vault.Session, bool)
	Save(s vault.Session) error
	Clear() error
	SavedAt() time.Time
	IsValid(ctx context.Context, s vault.Session) bool
}

// Authenticator runs an interactive login. Implemented by [browser.Manager].
type Authenticator interface {
	Login(ctx context.Context, headless bool) (vault.Session, error)
	HasProfile() bool
}

// HeadlessPolicy decides whether a login window is shown.
type HeadlessPolicy string

const (
	HeadlessAuto   HeadlessPolicy = "auto"   // headless once a browser profile exists
	HeadlessAlways HeadlessPolicy = "always" // never show a window
	HeadlessNever  HeadlessPolicy = "never"  // always show a window
)

// ParseHeadlessPolicy validates a configured policy. Empty means [HeadlessAuto].
func ParseHeadlessPolicy(s string) (HeadlessPolicy, error) {
	switch p := HeadlessPolicy(s); p {
	case "":
		return HeadlessAuto, nil
	case HeadlessAuto, HeadlessAlways, HeadlessNever:
		return p, nil
	default:
		return "", fmt.Errorf("%w: browser.headless must be auto, always or never, got %q", shared.ErrInvalidConfig, s)
	}
}

// Status describes the stored session without starting a login.
type Status struct {
	Authenticated bool      `json:"authenticated"`
	Cookies       int       `json:"cookies"`
	SavedAt       time.Time `json:"saved_at,omitzero"`
	HasProfile    bool      `json:"has_profile"`
}

// Ensurer hands out a usable session, logging in only when the stored one is missing or rejected.
type Ensurer struct {
	store  Store
	auth   Authenticator
	tokens *TokenCache
	policy HeadlessPolicy
	logger *log.Logger

	checks shared.Flight[vault.Session]
	logins shared.Flight[vault.Session]
}

// NewEnsurer creates an Ensurer. tokens may be nil; when set it is invalidated every time the session changes.
func NewEnsurer(store Store, auth Authenticator, tokens *TokenCache, policy HeadlessPolicy, logger *log.Logger) *Ensurer {
	if policy == "" {
		policy = HeadlessAuto
	}
	return &Ensurer{
		store:  store,
		auth:   auth,
		tokens: tokens,
		policy: policy,
		logger: shared.WithLogger(logger, "component", "session"),
	}
}

// Ensure returns the stored session when the live probe accepts it, and a fresh login otherwise.
//
// Concurrent callers share one probe and at most one login.
func (e *Ensurer) Ensure(ctx context.Context) (vault.Session, error) {
	s, _, err := e.checks.Do(ctx, ensureKey, func(ctx context.Context) (vault.Session, error) {
		if stored, ok := e.store.Load(); ok {
			if e.store.IsValid(ctx, *stored) {
				// the probe may have narrowed the stored cookies
				if current, ok := e.store.Load(); ok {
					return *current, nil
				}
				return *stored, nil
			}
			e.logger.Info("stored session rejected")
		} else {
			e.logger.Info("no stored session")
		}
		return e.login(ctx)
	})
	return s, err
}

// Refresh logs in again without consulting the store and replaces the stored session.
func (e *Ensurer) Refresh(ctx context.Context) (vault.Session, error) {
	return e.login(ctx)
}

func (e *Ensurer) login(ctx context.Context) (vault.Session, error) {
	s, _, err := e.logins.Do(ctx, loginKey, func(ctx context.Context) (vault.Session, error) {
		headless := e.headless()
		e.logger.Info("starting login", "headless", headless)

		s, err := e.auth.Login(ctx, headless)
		if err != nil {
			return vault.Session{}, err
		}
		if err := e.store.Save(s); err != nil {
			return vault.Session{}, fmt.Errorf("failed to save session: %w", err)
		}
		e.invalidateTokens()
		return s, nil
	})
	return s, err
}

func (e *Ensurer) headless() bool {
	switch e.policy {
	case HeadlessAlways:
		return true
	case HeadlessNever:
		return false
	default:
		return e.auth.HasProfile()
	}
}

// Import validates an externally captured session and stores what survives the probe.
func (e *Ensurer) Import(ctx context.Context, s vault.Session) (vault.Session, error) {
	if s.Empty() {
		return vault.Session{}, fmt.Errorf("%w: no cookies to import", shared.ErrInvalidInput)
	}
	if !e.store.IsValid(ctx, s) {
		return vault.Session{}, fmt.Errorf("%w: imported cookies were rejected", shared.ErrNotAuthenticated)
	}
	e.invalidateTokens()

	if stored, ok := e.store.Load(); ok {
		return *stored, nil
	}
	return s, nil
}

// Status probes the stored session. It never logs in.
func (e *Ensurer) Status(ctx context.Context) Status {
	st := Status{HasProfile: e.auth.HasProfile()}

	stored, ok := e.store.Load()
	if !ok {
		return st
	}

	st.Authenticated = e.store.IsValid(ctx, *stored)
	if current, ok := e.store.Load(); ok {
		st.Cookies = len(current.Cookies)
	}
	st.SavedAt = e.store.SavedAt()
	return st
}

// Logout forgets the stored session and any cached token.
func (e *Ensurer) Logout() error {
	e.invalidateTokens()
	if err := e.store.Clear(); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	e.logger.Info("logged out")
	return nil
}

func (e *Ensurer) invalidateTokens() {
	if e.tokens != nil {
		e.tokens.Invalidate()
	}
}
