package vault

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/bookx/internal/shared"
)

// Vault is the on-disk credential store for the upstream session.
type Vault struct {
	path       string
	probeURL   string
	httpClient *http.Client
	logger     *log.Logger
	now        func() time.Time
}

// NewVault creates a Vault storing the session at path and probing probeURL.
//
// A nil client gets a default one. The client never follows redirects:
// an expired session is usually answered with a redirect to the login page.
func NewVault(path, probeURL string, client *http.Client, logger *log.Logger) *Vault {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	noRedirect := *client
	noRedirect.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	return &Vault{
		path:       path,
		probeURL:   probeURL,
		httpClient: &noRedirect,
		logger:     shared.WithLogger(logger, "component", "vault"),
		now:        time.Now,
	}
}

// Path returns the session file location.
func (v *Vault) Path() string {
	return v.path
}

// Save replaces the stored session with s.
func (v *Vault) Save(s Session) error {
	if err := os.MkdirAll(filepath.Dir(v.path), 0700); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	data, err := json.MarshalIndent(record{Cookies: s.Cookies, SavedAt: v.now().UnixMilli()}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(v.path), ".session-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp session file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write session: %w", err)
	}
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to chmod session file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close session file: %w", err)
	}

	if err := os.Rename(tmp.Name(), v.path); err != nil {
		return fmt.Errorf("failed to replace session file: %w", err)
	}

	v.logger.Debug("session saved", "cookies", len(s.Cookies))
	return nil
}

// Load returns the stored session. ok is false when no usable session is stored.
func (v *Vault) Load() (s *Session, ok bool) {
	data, err := os.ReadFile(v.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			v.logger.Warn("session file unreadable, treating as absent", "error", err)
		}
		return nil, false
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		v.logger.Warn("session file corrupt, treating as absent", "error", err)
		return nil, false
	}
	if len(rec.Cookies) == 0 {
		return nil, false
	}

	return &Session{Cookies: rec.Cookies}, true
}

// SavedAt returns when the stored session was written, zero when none is stored.
func (v *Vault) SavedAt() time.Time {
	data, err := os.ReadFile(v.path)
	if err != nil {
		return time.Time{}
	}
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil || rec.SavedAt == 0 {
		return time.Time{}
	}
	return time.UnixMilli(rec.SavedAt)
}

// Clear deletes the stored session. Clearing an absent session is not an error.
func (v *Vault) Clear() error {
	if err := os.Remove(v.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove session file: %w", err)
	}
	v.logger.Debug("session cleared")
	return nil
}

// IsValid probes the site root with each of the session's cookies, newest expiry first.
//
// The first cookie answered with 200 is saved as the new single-cookie session.
// Returns false when every candidate fails; network errors count as failures.
func (v *Vault) IsValid(ctx context.Context, s Session) bool {
	for _, c := range s.ByExpiryDesc() {
		ok, err := v.probe(ctx, c.Header())
		if err != nil {
			v.logger.Debug("probe failed", "cookie", c.Name, "error", err)
			if ctx.Err() != nil {
				return false
			}
			continue
		}
		if !ok {
			continue
		}

		if err := v.Save(Session{Cookies: []Cookie{c}}); err != nil {
			v.logger.Warn("failed to persist minimal session", "error", err)
		}
		v.logger.Debug("session valid", "cookie", c.Name)
		return true
	}

	return false
}

func (v *Vault) probe(ctx context.Context, cookieHeader string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.probeURL, nil)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Cookie", cookieHeader)

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK, nil
}
