package main

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/desertthunder/bookx/internal/shared"
	"github.com/desertthunder/bookx/internal/ui"
	"github.com/desertthunder/bookx/internal/vault"
	"github.com/urfave/cli/v3"
)

// AuthLogin forces a browser login and stores the resulting session.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	if policy := cmd.String("headless"); policy != "" {
		config := *r.config
		config.Browser.Headless = policy
		if err := r.Configure(&config); err != nil {
			return err
		}
	}

	var s vault.Session
	login := func(ctx context.Context) error {
		var err error
		s, err = r.ensurer.Refresh(ctx)
		return err
	}

	r.logger.Info("starting Calil login", "policy", r.config.Browser.Headless)
	if cmd.Bool("plain") {
		if err := login(ctx); err != nil {
			return err
		}
	} else if err := ui.RunLogin(ctx, "Signing in to Calil...", login); err != nil {
		return err
	}

	r.logger.Info("login complete", "cookies", len(s.Cookies))
	return r.writePlain("✓ Logged in (%d cookies saved to %s)\n", len(s.Cookies), r.vault.Path())
}

// AuthStatus probes the stored session without logging in.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	r.logger.Info("checking auth status")
	st := r.ensurer.Status(ctx)

	if cmd.Bool("json") {
		return r.writeJSON(st, false)
	}

	r.writePlainHeader("Calil session")
	if st.Authenticated {
		r.writePlain("Authentication: ✓ Authenticated\n")
	} else {
		r.writePlain("Authentication: ✗ Not authenticated\n")
	}
	r.writePlain("Cookies: %d\n", st.Cookies)
	if !st.SavedAt.IsZero() {
		r.writePlain("Saved: %s\n", st.SavedAt.Local().Format(time.DateTime))
	}
	if st.HasProfile {
		r.writePlain("Browser profile: present (logins run headless)\n")
	} else {
		r.writePlain("Browser profile: none (first login opens a window)\n")
	}
	return nil
}

// AuthLogout removes the stored session.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	if err := r.ensurer.Logout(); err != nil {
		return err
	}
	return r.writePlain("✓ Logged out\n")
}

// AuthImport stores cookies captured outside the automated browser, once Calil accepts them.
//
// Accepts a cURL command, a file containing one, or a raw Cookie header.
func (r *Runner) AuthImport(ctx context.Context, cmd *cli.Command) error {
	curlCmd := cmd.String("curl")
	curlFile := cmd.String("curl-file")
	cookie := cmd.String("cookie")

	given := 0
	for _, v := range []string{curlCmd, curlFile, cookie} {
		if v != "" {
			given++
		}
	}
	if given == 0 {
		return fmt.Errorf("%w: one of --curl, --curl-file or --cookie must be provided", shared.ErrMissingArgument)
	}
	if given > 1 {
		return fmt.Errorf("%w: --curl, --curl-file and --cookie are mutually exclusive", shared.ErrInvalidArgument)
	}

	var pairs []shared.CookiePair
	switch {
	case cookie != "":
		pairs = shared.ParseCookieHeader(cookie)
	case curlFile != "":
		headers, err := shared.ParseCurlFile(curlFile)
		if err != nil {
			return fmt.Errorf("failed to parse cURL file: %w", err)
		}
		r.logger.Info("parsed cURL from file", "file", curlFile)
		pairs = headers.CookiePairs()
	default:
		headers, err := shared.ParseCurlCommand(curlCmd)
		if err != nil {
			return fmt.Errorf("failed to parse cURL command: %w", err)
		}
		r.logger.Info("parsed cURL command")
		pairs = headers.CookiePairs()
	}

	s, err := r.importedSession(pairs)
	if err != nil {
		return err
	}

	stored, err := r.ensurer.Import(ctx, s)
	if err != nil {
		return err
	}

	r.logger.Info("session imported", "cookies", len(stored.Cookies))
	return r.writePlain("✓ Session imported (%d cookies saved to %s)\n", len(stored.Cookies), r.vault.Path())
}

// importedSession scopes bare cookie pairs to the Calil host.
func (r *Runner) importedSession(pairs []shared.CookiePair) (vault.Session, error) {
	u, err := url.Parse(r.config.Calil.BaseURL)
	if err != nil || u.Hostname() == "" {
		return vault.Session{}, fmt.Errorf("%w: calil.base_url %q", shared.ErrInvalidConfig, r.config.Calil.BaseURL)
	}

	s := vault.Session{Cookies: make([]vault.Cookie, 0, len(pairs))}
	for _, p := range pairs {
		s.Cookies = append(s.Cookies, vault.Cookie{
			Name:   p.Name,
			Value:  p.Value,
			Domain: u.Hostname(),
			Path:   "/",
			Secure: u.Scheme == "https",
		})
	}
	return s, nil
}
