package ui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// LoginModel shows a spinner while fn runs. fn is usually an interactive browser login.
type LoginModel struct {
	ctx     context.Context
	cancel  context.CancelFunc
	spinner spinner.Model
	message string
	fn      func(ctx context.Context) error
	started time.Time
	err     error
	done    bool
}

// NewLoginModel creates a LoginModel. Cancelling with ctrl+c cancels the context passed to fn.
func NewLoginModel(ctx context.Context, message string, fn func(ctx context.Context) error) *LoginModel {
	ctx, cancel := context.WithCancel(ctx)
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.title.UnsetMarginBottom()
	return &LoginModel{
		ctx:     ctx,
		cancel:  cancel,
		spinner: s,
		message: message,
		fn:      fn,
		started: time.Now(),
	}
}

// Init starts the spinner and the login.
func (m *LoginModel) Init() tea.Cmd {
	ctx, fn := m.ctx, m.fn
	return tea.Batch(m.spinner.Tick, func() tea.Msg {
		return loginDoneMsg(fn(ctx))
	})
}

// Update handles spinner ticks, completion and ctrl+c.
func (m *LoginModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			m.cancel()
			m.err = context.Canceled
			m.done = true
			return m, tea.Quit
		}
		return m, nil

	case Msg:
		if msg.kind == MsgLoginDone {
			m.err, _ = msg.data.(error)
			m.done = true
			m.cancel()
			return m, tea.Quit
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View renders the spinner, or the outcome once done.
func (m *LoginModel) View() string {
	if m.done {
		if m.err != nil {
			return styles.err.Render(fmt.Sprintf("✗ %v", m.err)) + "\n"
		}
		return styles.ok.Render("✓ Logged in") + "\n"
	}
	elapsed := time.Since(m.started).Round(time.Second)
	return fmt.Sprintf("%s %s %s\n%s\n", m.spinner.View(), m.message, styles.help.Render(elapsed.String()),
		styles.help.Render("Finish signing in in the browser window. q to cancel."))
}

// Err returns the login result once the program has exited.
func (m *LoginModel) Err() error {
	return m.err
}

// RunLogin runs fn behind a spinner on the terminal and returns its error.
func RunLogin(ctx context.Context, message string, fn func(ctx context.Context) error, opts ...tea.ProgramOption) error {
	m := NewLoginModel(ctx, message, fn)
	opts = append([]tea.ProgramOption{tea.WithContext(ctx)}, opts...)
	if _, err := tea.NewProgram(m, opts...).Run(); err != nil {
		m.cancel()
		return fmt.Errorf("login UI: %w", err)
	}
	return m.Err()
}

// Run starts the book browser and blocks until the user quits.
func Run(m *Model, opts ...tea.ProgramOption) error {
	opts = append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(m.ctx)}, opts...)
	if _, err := tea.NewProgram(m, opts...).Run(); err != nil {
		return fmt.Errorf("TUI: %w", err)
	}
	return nil
}
