package session

import (
	"context"
	"errors"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/bookx/internal/shared"
	"golang.org/x/oauth2"
)

// Kind classifies the outcome of an upstream call.
type Kind int

const (
	KindOK           Kind = iota
	KindTokenExpired      // access token rejected; the session is still good
	KindAuthExpired       // session cookie rejected
	KindOther
)

func (k Kind) String() string {
	switch k {
	case KindOK:
		return "ok"
	case KindTokenExpired:
		return "token_expired"
	case KindAuthExpired:
		return "auth_expired"
	default:
		return "other"
	}
}

// Classify maps an upstream error onto a [Kind] using the shared sentinels.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindOK
	case errors.Is(err, shared.ErrSessionExpired):
		return KindAuthExpired
	case errors.Is(err, shared.ErrTokenExpired):
		return KindTokenExpired
	default:
		return KindOther
	}
}

// Credentials are what an authenticated upstream call needs.
type Credentials struct {
	Cookie string
	Token  *oauth2.Token
}

// Retrier supplies credentials to upstream calls and recovers from one expiry per call.
type Retrier struct {
	ensurer *Ensurer
	tokens  *TokenCache
	logger  *log.Logger
}

func NewRetrier(ensurer *Ensurer, tokens *TokenCache, logger *log.Logger) *Retrier {
	return &Retrier{ensurer: ensurer, tokens: tokens, logger: shared.WithLogger(logger, "component", "retry")}
}

// Credentials ensures a session and a token minted for it.
//
// A token endpoint that rejects the session triggers one forced login.
func (r *Retrier) Credentials(ctx context.Context) (Credentials, error) {
	s, err := r.ensurer.Ensure(ctx)
	if err != nil {
		return Credentials{}, err
	}

	cookie := s.CookieHeader()
	t, err := r.tokens.Get(ctx, cookie)
	if Classify(err) != KindAuthExpired {
		return Credentials{Cookie: cookie, Token: t}, err
	}

	r.logger.Info("token endpoint rejected session, logging in again")
	if s, err = r.ensurer.Refresh(ctx); err != nil {
		return Credentials{}, err
	}
	cookie = s.CookieHeader()
	if t, err = r.tokens.Get(ctx, cookie); err != nil {
		return Credentials{}, err
	}
	return Credentials{Cookie: cookie, Token: t}, nil
}

// Do runs op with fresh credentials. An expired token or session is refreshed and op is retried once;
// the second outcome is returned as is.
func Do[T any](ctx context.Context, r *Retrier, op func(context.Context, Credentials) (T, error)) (T, error) {
	var zero T

	creds, err := r.Credentials(ctx)
	if err != nil {
		return zero, err
	}

	v, err := op(ctx, creds)
	switch Classify(err) {
	case KindOK:
		return v, nil
	case KindTokenExpired:
		r.logger.Info("access token rejected, retrying", "error", err)
		r.tokens.Invalidate()
	case KindAuthExpired:
		r.logger.Info("session rejected, retrying", "error", err)
		if _, err := r.ensurer.Refresh(ctx); err != nil {
			return zero, err
		}
	default:
		return v, err
	}

	if creds, err = r.Credentials(ctx); err != nil {
		return zero, err
	}
	return op(ctx, creds)
}
