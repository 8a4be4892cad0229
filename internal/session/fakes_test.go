package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/bookx/internal/shared"
	"github.com/desertthunder/bookx/internal/vault"
	"golang.org/x/oauth2"
)

func testLogger() *log.Logger {
	return shared.NewLogger(io.Discard)
}

func cookieSession(name, value string) vault.Session {
	return vault.Session{Cookies: []vault.Cookie{{Name: name, Value: value, Domain: ".calil.jp", Path: "/"}}}
}

// memStore keeps the session in memory and accepts sessions whose header is in valid.
type memStore struct {
	mu      sync.Mutex
	session *vault.Session
	savedAt time.Time
	valid   map[string]bool
	saves   atomic.Int32
	probes  atomic.Int32
}

func newMemStore(valid ...string) *memStore {
	m := &memStore{valid: map[string]bool{}}
	for _, v := range valid {
		m.valid[v] = true
	}
	return m
}

func (m *memStore) Load() (*vault.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil, false
	}
	s := *m.session
	return &s, true
}

func (m *memStore) Save(s vault.Session) error {
	m.saves.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = &s
	m.savedAt = time.Now()
	return nil
}

func (m *memStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = nil
	return nil
}

func (m *memStore) SavedAt() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.savedAt
}

func (m *memStore) IsValid(_ context.Context, s vault.Session) bool {
	m.probes.Add(1)
	m.mu.Lock()
	ok := m.valid[s.CookieHeader()]
	m.mu.Unlock()
	if ok {
		_ = m.Save(s)
	}
	return ok
}

func (m *memStore) accept(header string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.valid[header] = true
}

func (m *memStore) reject(header string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.valid, header)
}

// fakeAuth hands out sid=fresh-N sessions and registers them with the store.
type fakeAuth struct {
	store   *memStore
	logins  atomic.Int32
	delay   time.Duration
	err     error
	profile bool

	mu       sync.Mutex
	headless []bool
}

func (a *fakeAuth) Login(ctx context.Context, headless bool) (vault.Session, error) {
	n := a.logins.Add(1)
	a.mu.Lock()
	a.headless = append(a.headless, headless)
	a.mu.Unlock()

	if a.delay > 0 {
		select {
		case <-time.After(a.delay):
		case <-ctx.Done():
			return vault.Session{}, ctx.Err()
		}
	}
	if a.err != nil {
		return vault.Session{}, a.err
	}

	s := cookieSession("sid", fmt.Sprintf("fresh-%d", n))
	if a.store != nil {
		a.store.accept(s.CookieHeader())
	}
	return s, nil
}

func (a *fakeAuth) HasProfile() bool { return a.profile }

func (a *fakeAuth) lastHeadless() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.headless[len(a.headless)-1]
}

// fakeTokens mints tok-N tokens; cookies listed in rejected get ErrSessionExpired.
type fakeTokens struct {
	fetches atomic.Int32
	delay   time.Duration
	expiry  time.Time
	err     error
	gate    chan struct{} // when set, the first fetch waits for it to close

	mu       sync.Mutex
	rejected map[string]bool
	cookies  []string
}

func (f *fakeTokens) FetchToken(ctx context.Context, cookie string) (*oauth2.Token, error) {
	n := f.fetches.Add(1)
	if n == 1 && f.gate != nil {
		<-f.gate
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	f.cookies = append(f.cookies, cookie)
	rejected := f.rejected[cookie]
	f.mu.Unlock()

	if rejected {
		return nil, fmt.Errorf("%w: token endpoint returned 401", shared.ErrSessionExpired)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &oauth2.Token{AccessToken: fmt.Sprintf("tok-%d", n), TokenType: "Bearer", Expiry: f.expiry}, nil
}

func (f *fakeTokens) reject(cookie string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rejected == nil {
		f.rejected = map[string]bool{}
	}
	f.rejected[cookie] = true
}

var errBoom = errors.New("boom")
