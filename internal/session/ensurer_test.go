package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/bookx/internal/shared"
	"github.com/desertthunder/bookx/internal/vault"
)

func TestEnsurer(t *testing.T) {
	t.Run("returns a valid stored session without logging in", func(t *testing.T) {
		store := newMemStore("sid=stored")
		_ = store.Save(cookieSession("sid", "stored"))
		auth := &fakeAuth{store: store}
		e := NewEnsurer(store, auth, nil, HeadlessAuto, testLogger())

		s, err := e.Ensure(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if s.CookieHeader() != "sid=stored" {
			t.Errorf("expected stored session, got %q", s.CookieHeader())
		}
		if auth.logins.Load() != 0 {
			t.Errorf("expected no login, got %d", auth.logins.Load())
		}
	})

	t.Run("logs in when the stored cookie expired", func(t *testing.T) {
		store := newMemStore()
		_ = store.Save(cookieSession("sid", "stale"))
		store.saves.Store(0)
		auth := &fakeAuth{store: store}
		e := NewEnsurer(store, auth, nil, HeadlessAuto, testLogger())

		s, err := e.Ensure(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if s.CookieHeader() == "sid=stale" {
			t.Fatal("stale cookie was reused")
		}
		if s.CookieHeader() != "sid=fresh-1" {
			t.Errorf("expected fresh session, got %q", s.CookieHeader())
		}
		if auth.logins.Load() != 1 {
			t.Errorf("expected 1 login, got %d", auth.logins.Load())
		}
		if store.saves.Load() != 1 {
			t.Errorf("expected 1 save, got %d", store.saves.Load())
		}
	})

	t.Run("concurrent callers share one login", func(t *testing.T) {
		store := newMemStore()
		auth := &fakeAuth{store: store, delay: 100 * time.Millisecond}
		e := NewEnsurer(store, auth, nil, HeadlessAuto, testLogger())

		const callers = 10
		var wg sync.WaitGroup
		sessions := make([]vault.Session, callers)
		errs := make([]error, callers)
		for i := range callers {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				sessions[i], errs[i] = e.Ensure(context.Background())
			}(i)
		}
		wg.Wait()

		for i := range callers {
			if errs[i] != nil {
				t.Fatalf("caller %d: unexpected error: %v", i, errs[i])
			}
			if sessions[i].CookieHeader() != sessions[0].CookieHeader() {
				t.Errorf("caller %d got %q, want %q", i, sessions[i].CookieHeader(), sessions[0].CookieHeader())
			}
		}
		if auth.logins.Load() != 1 {
			t.Errorf("expected 1 login, got %d", auth.logins.Load())
		}

		stored, ok := store.Load()
		if !ok || stored.CookieHeader() != sessions[0].CookieHeader() {
			t.Errorf("expected stored session %q, got %+v", sessions[0].CookieHeader(), stored)
		}
	})

	t.Run("login failure persists nothing", func(t *testing.T) {
		store := newMemStore()
		auth := &fakeAuth{store: store, err: shared.ErrLoginTimeout}
		e := NewEnsurer(store, auth, nil, HeadlessAuto, testLogger())

		_, err := e.Ensure(context.Background())
		if !errors.Is(err, shared.ErrLoginTimeout) {
			t.Fatalf("expected ErrLoginTimeout, got %v", err)
		}
		if _, ok := store.Load(); ok {
			t.Error("expected no stored session")
		}
	})

	t.Run("refresh ignores a valid stored session", func(t *testing.T) {
		store := newMemStore("sid=stored")
		_ = store.Save(cookieSession("sid", "stored"))
		auth := &fakeAuth{store: store}
		e := NewEnsurer(store, auth, nil, HeadlessAuto, testLogger())

		s, err := e.Refresh(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if s.CookieHeader() != "sid=fresh-1" {
			t.Errorf("expected fresh session, got %q", s.CookieHeader())
		}
		if store.probes.Load() != 0 {
			t.Errorf("refresh should not probe, got %d probes", store.probes.Load())
		}
	})

	t.Run("refresh invalidates the token cache", func(t *testing.T) {
		store := newMemStore()
		src := &fakeTokens{}
		tokens := NewTokenCache(src, time.Minute, testLogger())
		auth := &fakeAuth{store: store}
		e := NewEnsurer(store, auth, tokens, HeadlessAuto, testLogger())

		if _, err := tokens.Get(context.Background(), "sid=old"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := e.Refresh(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := tokens.Get(context.Background(), "sid=old"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if src.fetches.Load() != 2 {
			t.Errorf("expected token refetch after refresh, got %d fetches", src.fetches.Load())
		}
	})
}

func TestEnsurerHeadlessPolicy(t *testing.T) {
	tests := []struct {
		name    string
		policy  HeadlessPolicy
		profile bool
		want    bool
	}{
		{"auto first login shows a window", HeadlessAuto, false, false},
		{"auto with profile", HeadlessAuto, true, true},
		{"always", HeadlessAlways, false, true},
		{"never", HeadlessNever, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			auth := &fakeAuth{store: store, profile: tt.profile}
			e := NewEnsurer(store, auth, nil, tt.policy, testLogger())

			if _, err := e.Ensure(context.Background()); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := auth.lastHeadless(); got != tt.want {
				t.Errorf("headless = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseHeadlessPolicy(t *testing.T) {
	for _, in := range []string{"", "auto", "always", "never"} {
		if _, err := ParseHeadlessPolicy(in); err != nil {
			t.Errorf("ParseHeadlessPolicy(%q): unexpected error %v", in, err)
		}
	}
	if p, _ := ParseHeadlessPolicy(""); p != HeadlessAuto {
		t.Errorf("expected auto for empty, got %q", p)
	}
	if _, err := ParseHeadlessPolicy("sometimes"); !errors.Is(err, shared.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestEnsurerStatusAndLogout(t *testing.T) {
	t.Run("status without a session", func(t *testing.T) {
		store := newMemStore()
		auth := &fakeAuth{store: store, profile: true}
		e := NewEnsurer(store, auth, nil, HeadlessAuto, testLogger())

		st := e.Status(context.Background())
		if st.Authenticated || st.Cookies != 0 || !st.HasProfile {
			t.Errorf("unexpected status: %+v", st)
		}
		if auth.logins.Load() != 0 {
			t.Error("status must not log in")
		}
	})

	t.Run("status with a valid session", func(t *testing.T) {
		store := newMemStore("sid=stored")
		_ = store.Save(cookieSession("sid", "stored"))
		e := NewEnsurer(store, &fakeAuth{store: store}, nil, HeadlessAuto, testLogger())

		st := e.Status(context.Background())
		if !st.Authenticated || st.Cookies != 1 || st.SavedAt.IsZero() {
			t.Errorf("unexpected status: %+v", st)
		}
	})

	t.Run("status with a rejected session", func(t *testing.T) {
		store := newMemStore()
		_ = store.Save(cookieSession("sid", "stale"))
		auth := &fakeAuth{store: store}
		e := NewEnsurer(store, auth, nil, HeadlessAuto, testLogger())

		if st := e.Status(context.Background()); st.Authenticated {
			t.Errorf("unexpected status: %+v", st)
		}
		if auth.logins.Load() != 0 {
			t.Error("status must not log in")
		}
	})

	t.Run("logout clears session and token", func(t *testing.T) {
		store := newMemStore("sid=stored")
		_ = store.Save(cookieSession("sid", "stored"))
		src := &fakeTokens{}
		tokens := NewTokenCache(src, time.Minute, testLogger())
		e := NewEnsurer(store, &fakeAuth{store: store}, tokens, HeadlessAuto, testLogger())

		if _, err := tokens.Get(context.Background(), "sid=stored"); err != nil {
			t.Fatal(err)
		}
		if err := e.Logout(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, ok := store.Load(); ok {
			t.Error("expected the session to be cleared")
		}
		if _, err := tokens.Get(context.Background(), "sid=stored"); err != nil {
			t.Fatal(err)
		}
		if src.fetches.Load() != 2 {
			t.Errorf("expected a token refetch after logout, got %d fetches", src.fetches.Load())
		}
	})
}

func TestEnsurerImport(t *testing.T) {
	t.Run("stores an accepted session", func(t *testing.T) {
		store := newMemStore("sid=pasted")
		e := NewEnsurer(store, &fakeAuth{store: store}, nil, HeadlessAuto, testLogger())

		s, err := e.Import(context.Background(), cookieSession("sid", "pasted"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if s.CookieHeader() != "sid=pasted" {
			t.Errorf("unexpected session %q", s.CookieHeader())
		}
		if _, ok := store.Load(); !ok {
			t.Error("expected the session to be stored")
		}
	})

	t.Run("rejects cookies the probe refuses", func(t *testing.T) {
		store := newMemStore()
		e := NewEnsurer(store, &fakeAuth{store: store}, nil, HeadlessAuto, testLogger())

		if _, err := e.Import(context.Background(), cookieSession("sid", "bad")); !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
	})

	t.Run("rejects an empty session", func(t *testing.T) {
		store := newMemStore()
		e := NewEnsurer(store, &fakeAuth{store: store}, nil, HeadlessAuto, testLogger())

		if _, err := e.Import(context.Background(), vault.Session{}); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})
}

// TestEnsurerWithVault runs the ensurer over the on-disk vault and a probe server.
func TestEnsurerWithVault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Cookie") == "sid=fresh-1" {
			w.WriteHeader(http.StatusOK)
			return
		}
		http.Redirect(w, r, "/login", http.StatusFound)
	}))
	defer srv.Close()

	v := vault.NewVault(filepath.Join(t.TempDir(), "session.json"), srv.URL+"/", srv.Client(), testLogger())
	if err := v.Save(cookieSession("sid", "stale")); err != nil {
		t.Fatal(err)
	}

	auth := &fakeAuth{}
	e := NewEnsurer(v, auth, nil, HeadlessAuto, testLogger())

	s, err := e.Ensure(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.CookieHeader() != "sid=fresh-1" {
		t.Fatalf("expected fresh session, got %q", s.CookieHeader())
	}

	loaded, ok := v.Load()
	if !ok || loaded.CookieHeader() != "sid=fresh-1" {
		t.Errorf("expected vault to hold the fresh session, got %+v", loaded)
	}

	again, err := e.Ensure(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if again.CookieHeader() != "sid=fresh-1" || auth.logins.Load() != 1 {
		t.Errorf("expected the saved session to be reused, logins=%d", auth.logins.Load())
	}
}
