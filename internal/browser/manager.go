package browser

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/bookx/internal/shared"
	"github.com/desertthunder/bookx/internal/vault"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
)

const launchKey = "launch"

// hideWebdriver runs before any page script so the login page cannot see navigator.webdriver.
const hideWebdriver = `Object.defineProperty(navigator, 'webdriver', { get: () => undefined });`

// State is the lifecycle state of the shared browser handle.
type State int

const (
	StateAbsent State = iota
	StateLaunching
	StateReady
	StateDisconnected
	StateExiting
)

func (s State) String() string {
	switch s {
	case StateAbsent:
		return "absent"
	case StateLaunching:
		return "launching"
	case StateReady:
		return "ready"
	case StateDisconnected:
		return "disconnected"
	case StateExiting:
		return "exiting"
	default:
		return ""
	}
}

// Options configures the [Manager].
type Options struct {
	Executable   string // explicit browser path, tried before system and managed browsers
	ProfileDir   string // persistent user-data directory
	EndpointFile string // where the control URL is saved for reconnects
	UserAgent    string
	LoginURL     string // login entry point
	ApexHost     string // e.g. calil.jp
	AuthHost     string // e.g. accounts.calil.jp
	LoginPath    string
	LoginTimeout time.Duration
	PollInterval time.Duration
}

// OptionsFromConfig derives manager options from the application config.
func OptionsFromConfig(c *shared.Config) (Options, error) {
	base := strings.TrimRight(c.Calil.BaseURL, "/")
	apex, err := hostOf(base)
	if err != nil {
		return Options{}, fmt.Errorf("%w: calil.base_url: %v", shared.ErrInvalidConfig, err)
	}

	return Options{
		Executable:   c.Browser.Executable,
		ProfileDir:   c.Browser.ProfileDir,
		EndpointFile: c.Browser.EndpointFile,
		UserAgent:    c.Browser.UserAgent,
		LoginURL:     base + c.Calil.LoginPath,
		ApexHost:     apex,
		AuthHost:     strings.ToLower(c.Calil.AuthHost),
		LoginPath:    c.Calil.LoginPath,
		LoginTimeout: c.Browser.LoginTimeout.Duration,
	}, nil
}

// Manager owns the process-wide automated browser and runs login flows on it.
type Manager struct {
	opts     Options
	logger   *log.Logger
	launches shared.Flight[*rod.Browser]

	mu      sync.Mutex
	browser *rod.Browser
	state   State

	// process seams, replaced in tests
	executables []candidate[string]
	start       func(ctx context.Context, bin string, headless bool) (controlURL string, kill func(), err error)
	connect     func(ctx context.Context, controlURL string) (*rod.Browser, error)
	alive       func(b *rod.Browser) bool
	closeFn     func(b *rod.Browser) error
	openPage    func(b *rod.Browser) (loginPage, error)
}

// NewManager creates a Manager. Nothing is launched until a browser is first requested.
func NewManager(opts Options, logger *log.Logger) *Manager {
	if opts.LoginTimeout <= 0 {
		opts.LoginTimeout = 5 * time.Minute
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 500 * time.Millisecond
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	m := &Manager{
		opts:   opts,
		logger: shared.WithLogger(logger, "component", "browser"),
		state:  StateAbsent,
	}
	m.executables = []candidate[string]{
		configuredExecutable(opts.Executable),
		systemExecutable(),
		managedExecutable(),
	}
	m.start = m.startProcess
	m.connect = connectControlURL
	m.alive = isAlive
	m.closeFn = func(b *rod.Browser) error { return b.Close() }
	m.openPage = m.newRodPage
	return m
}

// State returns the current handle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// HasProfile reports whether a persistent profile from an earlier login exists.
func (m *Manager) HasProfile() bool {
	entries, err := os.ReadDir(m.opts.ProfileDir)
	return err == nil && len(entries) > 0
}

// Browser returns the shared browser, reusing a live handle or joining the in-flight launch.
//
// headless only applies when a new process has to be started.
func (m *Manager) Browser(ctx context.Context, headless bool) (*rod.Browser, error) {
	if b, ok, err := m.current(); err != nil {
		return nil, err
	} else if ok {
		return b, nil
	}

	b, _, err := m.launches.Do(ctx, launchKey, func(ctx context.Context) (*rod.Browser, error) {
		return m.launch(ctx, headless)
	})
	return b, err
}

// current returns the handle when it is still alive, marking it Disconnected otherwise.
func (m *Manager) current() (*rod.Browser, bool, error) {
	m.mu.Lock()
	if m.state == StateExiting {
		m.mu.Unlock()
		return nil, false, shared.ErrBrowserClosed
	}
	b := m.browser
	m.mu.Unlock()

	if b == nil {
		return nil, false, nil
	}
	if m.alive(b) {
		return b, true, nil
	}

	m.mu.Lock()
	if m.browser == b {
		m.browser = nil
		m.state = StateDisconnected
	}
	m.mu.Unlock()
	m.logger.Warn("browser connection lost")
	return nil, false, nil
}

func (m *Manager) launch(ctx context.Context, headless bool) (*rod.Browser, error) {
	// A launch that finished while we were queueing already published a handle.
	if b, ok, err := m.current(); err != nil {
		return nil, err
	} else if ok {
		return b, nil
	}

	m.setState(StateLaunching)
	m.logger.Info("acquiring browser", "headless", headless)

	b, err := firstOf(ctx, m.logger, []candidate[*rod.Browser]{
		{name: "reconnect", try: m.reconnect},
		{name: "launch", try: func(ctx context.Context) (*rod.Browser, error) {
			return m.startNew(ctx, headless)
		}},
	})
	if err != nil {
		m.setState(StateAbsent)
		return nil, fmt.Errorf("%w: %v", shared.ErrLaunchFailed, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateExiting {
		_ = m.closeFn(b)
		return nil, shared.ErrBrowserClosed
	}
	m.browser = b
	m.state = StateReady
	return b, nil
}

// reconnect attaches to a browser left running by an earlier process.
func (m *Manager) reconnect(ctx context.Context) (*rod.Browser, error) {
	controlURL, err := m.readEndpoint()
	if err != nil {
		return nil, err
	}

	b, err := m.connect(ctx, controlURL)
	if err != nil {
		m.removeEndpoint()
		return nil, err
	}
	if !m.alive(b) {
		m.removeEndpoint()
		return nil, errors.New("saved browser is not responding")
	}

	m.logger.Info("reconnected to running browser", "endpoint", controlURL)
	return b, nil
}

func (m *Manager) startNew(ctx context.Context, headless bool) (*rod.Browser, error) {
	bin, err := firstOf(ctx, m.logger, m.executables)
	if err != nil {
		return nil, fmt.Errorf("no usable browser executable: %w", err)
	}

	controlURL, kill, err := m.start(ctx, bin, headless)
	if err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", bin, err)
	}

	b, err := m.connect(ctx, controlURL)
	if err != nil {
		kill()
		return nil, err
	}

	if err := m.writeEndpoint(controlURL); err != nil {
		m.logger.Warn("failed to save browser endpoint", "error", err)
	}

	m.logger.Info("launched browser", "bin", bin, "headless", headless)
	return b, nil
}

func (m *Manager) startProcess(ctx context.Context, bin string, headless bool) (string, func(), error) {
	if err := os.MkdirAll(m.opts.ProfileDir, 0700); err != nil {
		return "", nil, fmt.Errorf("failed to create profile directory: %w", err)
	}

	l := launcher.New().
		Context(ctx).
		Bin(bin).
		Headless(headless).
		UserDataDir(m.opts.ProfileDir).
		Leakless(false).
		Set(flags.Flag("disable-blink-features"), "AutomationControlled").
		Set(flags.Flag("no-first-run")).
		Set(flags.Flag("no-default-browser-check")).
		Delete(flags.Flag("enable-automation"))

	controlURL, err := l.Launch()
	if err != nil {
		return "", nil, err
	}
	return controlURL, l.Kill, nil
}

func connectControlURL(ctx context.Context, controlURL string) (*rod.Browser, error) {
	b := rod.New().ControlURL(controlURL).Context(ctx)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", controlURL, err)
	}
	return b, nil
}

func isAlive(b *rod.Browser) bool {
	_, err := b.Timeout(5 * time.Second).Version()
	return err == nil
}

// Login opens a fresh page on the shared browser, waits for the user (or the saved profile) to finish
// the login flow, and returns the resulting session.
//
// Only the page is closed afterwards. The browser stays Ready for the next login.
func (m *Manager) Login(ctx context.Context, headless bool) (vault.Session, error) {
	b, err := m.Browser(ctx, headless)
	if err != nil {
		return vault.Session{}, err
	}

	page, err := m.openPage(b)
	if err != nil {
		return vault.Session{}, err
	}
	defer func() {
		if err := page.Close(); err != nil {
			m.logger.Debug("failed to close login page", "error", err)
		}
	}()

	loginCtx, cancel := context.WithTimeout(ctx, m.opts.LoginTimeout)
	defer cancel()

	m.logger.Info("waiting for login", "url", m.opts.LoginURL, "timeout", m.opts.LoginTimeout)
	if err := page.Navigate(loginCtx, m.opts.LoginURL); err != nil {
		return vault.Session{}, m.loginError(ctx, loginCtx, fmt.Errorf("failed to open login page: %w", err))
	}
	if err := m.waitForLanding(loginCtx, page.Location); err != nil {
		return vault.Session{}, m.loginError(ctx, loginCtx, err)
	}

	cookies, err := page.Cookies()
	if err != nil {
		return vault.Session{}, fmt.Errorf("failed to read cookies: %w", err)
	}

	s := FilterCookies(cookies, m.opts.ApexHost, m.opts.AuthHost)
	if s.Empty() {
		return vault.Session{}, fmt.Errorf("%w: login finished without %s cookies", shared.ErrNotAuthenticated, m.opts.ApexHost)
	}

	m.logger.Info("login complete", "cookies", len(s.Cookies))
	return s, nil
}

// waitForLanding polls location until it reports the landing page or ctx ends.
func (m *Manager) waitForLanding(ctx context.Context, location func(context.Context) (string, error)) error {
	ticker := time.NewTicker(m.opts.PollInterval)
	defer ticker.Stop()

	for {
		current, err := location(ctx)
		if err == nil && IsLanding(current, m.opts.ApexHost, m.opts.LoginPath) {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// loginError reports ErrLoginTimeout only when the login deadline expired while parent was still live.
func (m *Manager) loginError(parent, login context.Context, err error) error {
	if parent.Err() == nil && errors.Is(login.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s", shared.ErrLoginTimeout, m.opts.LoginTimeout)
	}
	return err
}

// Close shuts the browser process down and refuses further launches.
func (m *Manager) Close() error {
	m.mu.Lock()
	b := m.browser
	m.browser = nil
	m.state = StateExiting
	m.mu.Unlock()

	// without a handle the endpoint file may belong to a browser this process never touched
	if b == nil {
		return nil
	}
	m.removeEndpoint()

	m.logger.Info("closing browser")
	if err := m.closeFn(b); err != nil {
		return fmt.Errorf("failed to close browser: %w", err)
	}
	return nil
}

// Release drops the handle without stopping the process so a later run can reconnect to it.
func (m *Manager) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateExiting {
		return
	}
	m.browser = nil
	m.state = StateAbsent
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateExiting {
		m.state = s
	}
}

func (m *Manager) readEndpoint() (string, error) {
	data, err := os.ReadFile(m.opts.EndpointFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", errors.New("no saved endpoint")
		}
		return "", err
	}
	controlURL := strings.TrimSpace(string(data))
	if controlURL == "" {
		return "", errors.New("no saved endpoint")
	}
	return controlURL, nil
}

func (m *Manager) writeEndpoint(controlURL string) error {
	if m.opts.EndpointFile == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(m.opts.EndpointFile), 0700); err != nil {
		return err
	}
	return os.WriteFile(m.opts.EndpointFile, []byte(controlURL+"\n"), 0600)
}

func (m *Manager) removeEndpoint() {
	if m.opts.EndpointFile == "" {
		return
	}
	if err := os.Remove(m.opts.EndpointFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		m.logger.Debug("failed to remove browser endpoint", "error", err)
	}
}

func hostOf(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	if host == "" {
		return "", fmt.Errorf("missing host in %q", raw)
	}
	return host, nil
}
