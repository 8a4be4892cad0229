package shared

import (
	"fmt"
	"net/url"
	"os/exec"
	"runtime"
)

var getRuntime = func() string { return runtime.GOOS }

// openers maps GOOS to the command that hands a URL to the desktop browser.
var openers = map[string][]string{
	"darwin":  {"open"},
	"linux":   {"xdg-open"},
	"freebsd": {"xdg-open"},
	"windows": {"rundll32", "url.dll,FileProtocolHandler"},
}

// OpenURL opens an http(s) URL in the user's default browser.
//
// This is the desktop browser, not the automated login browser.
func OpenURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%w: refusing to open %q", ErrInvalidInput, raw)
	}

	rt := getRuntime()
	argv, ok := openers[rt]
	if !ok {
		return fmt.Errorf("%w: cannot open browser on %s", ErrNotImplemented, rt)
	}

	cmd := exec.Command(argv[0], append(argv[1:], u.String())...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}
	go cmd.Wait()
	return nil
}
