package ui

import "github.com/charmbracelet/lipgloss"

const (
	colorAccent = "#C2410C" // book-cover orange
	colorOK     = "#15803D"
	colorError  = "#DC2626"
	colorWarn   = "#CA8A04"
	colorMuted  = "#78716C"
)

var styles = NewPalette(colorAccent, colorOK, colorError, colorWarn, colorMuted)

// Palette holds the named styles every view renders with.
type Palette struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	help  lipgloss.Style
	label lipgloss.Style // fixed-width field names in the detail view
}

// NewPalette builds a Palette from foreground colors: accent, success, error, warning and muted.
func NewPalette(accent, success, failure, warning, muted string) *Palette {
	fg := func(c string) lipgloss.Style {
		return lipgloss.NewStyle().Foreground(lipgloss.Color(c))
	}
	return &Palette{
		title: fg(accent).Bold(true).MarginBottom(1),
		ok:    fg(success).Bold(true),
		err:   fg(failure).Bold(true),
		warn:  fg(warning),
		help:  fg(muted).Italic(true),
		label: fg(muted).Bold(true).Width(12),
	}
}
