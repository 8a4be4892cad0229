package session

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/bookx/internal/shared"
	"golang.org/x/oauth2"
)

const tokenKey = "token"

// TokenSource mints an access token for a session cookie header.
type TokenSource interface {
	FetchToken(ctx context.Context, cookie string) (*oauth2.Token, error)
}

// TokenCache holds one access token, bound to the cookie it was minted for.
type TokenCache struct {
	src    TokenSource
	ttl    time.Duration
	logger *log.Logger
	flight shared.Flight[*oauth2.Token]

	mu     sync.Mutex
	token  *oauth2.Token
	cookie string
	gen    uint64 // bumped by Invalidate
}

// NewTokenCache creates a TokenCache. ttl is applied to tokens returned without an expiry.
func NewTokenCache(src TokenSource, ttl time.Duration, logger *log.Logger) *TokenCache {
	return &TokenCache{
		src:    src,
		ttl:    ttl,
		logger: shared.WithLogger(logger, "component", "token"),
	}
}

// Get returns the cached token for cookie or fetches a new one.
//
// Concurrent misses share one fetch.
func (c *TokenCache) Get(ctx context.Context, cookie string) (*oauth2.Token, error) {
	if t := c.cached(cookie); t != nil {
		return t, nil
	}

	t, _, err := c.flight.Do(ctx, tokenKey, func(ctx context.Context) (*oauth2.Token, error) {
		// another fetch may have completed while this one was queued
		if t := c.cached(cookie); t != nil {
			return t, nil
		}

		c.mu.Lock()
		gen := c.gen
		c.mu.Unlock()

		fetched, err := c.src.FetchToken(ctx, cookie)
		if err != nil {
			return nil, err
		}

		t := *fetched
		if t.Expiry.IsZero() && c.ttl > 0 {
			t.Expiry = time.Now().Add(c.ttl)
		}

		c.mu.Lock()
		stale := c.gen != gen
		if !stale {
			c.token, c.cookie = &t, cookie
		}
		c.mu.Unlock()

		if stale {
			c.logger.Debug("discarding token fetched before invalidate")
		} else {
			c.logger.Debug("fetched access token", "expiry", t.Expiry)
		}
		return &t, nil
	})
	return t, err
}

func (c *TokenCache) cached(cookie string) *oauth2.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == nil || c.cookie != cookie || !c.token.Valid() {
		return nil
	}
	return c.token
}

// Invalidate drops the cached token. A fetch already running is detached so later calls start over,
// and its result is returned to its callers without being cached.
func (c *TokenCache) Invalidate() {
	c.mu.Lock()
	c.token, c.cookie = nil, ""
	c.gen++
	c.mu.Unlock()
	c.flight.Forget(tokenKey)
}
