package tui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/couchcryptid/hazard-predict/internal/domain"
)

var (
	colorDanger  = lipgloss.Color("#e5484d")
	colorSafe    = lipgloss.Color("#30a46c")
	colorNeutral = lipgloss.Color("#8b8d98")
	colorAccent  = lipgloss.Color("#3e63dd")
	colorWarning = lipgloss.Color("#f5a524")
)

// Styles holds the lipgloss styles for the prediction form.
type Styles struct {
	Title          lipgloss.Style
	Tab            lipgloss.Style
	ActiveTab      lipgloss.Style
	Hint           lipgloss.Style
	Button         lipgloss.Style
	DisabledButton lipgloss.Style
	Notice         lipgloss.Style
	Help           lipgloss.Style

	frames map[domain.DisplayState]lipgloss.Style
	status map[domain.DisplayState]lipgloss.Style
}

// NewStyles builds the form styles. The frame and status colors follow the
// display state of the current result.
func NewStyles() Styles {
	frame := func(c lipgloss.Color) lipgloss.Style {
		return lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(c).
			Padding(1, 2)
	}
	status := func(c lipgloss.Color) lipgloss.Style {
		return lipgloss.NewStyle().Foreground(c).Bold(true)
	}

	return Styles{
		Title: lipgloss.NewStyle().
			Foreground(colorAccent).
			Bold(true).
			MarginBottom(1),
		Tab: lipgloss.NewStyle().
			Foreground(colorNeutral).
			Padding(0, 1),
		ActiveTab: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ffffff")).
			Background(colorAccent).
			Padding(0, 1).
			Bold(true),
		Hint: lipgloss.NewStyle().
			Foreground(colorNeutral).
			Italic(true),
		Button: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ffffff")).
			Background(colorAccent).
			Padding(0, 2),
		DisabledButton: lipgloss.NewStyle().
			Foreground(colorNeutral).
			Padding(0, 2),
		Notice: lipgloss.NewStyle().
			Foreground(colorWarning),
		Help: lipgloss.NewStyle().
			Foreground(colorNeutral).
			MarginTop(1),

		frames: map[domain.DisplayState]lipgloss.Style{
			domain.DisplayNeutral: frame(colorNeutral),
			domain.DisplayDanger:  frame(colorDanger),
			domain.DisplaySafe:    frame(colorSafe),
		},
		status: map[domain.DisplayState]lipgloss.Style{
			domain.DisplayNeutral: lipgloss.NewStyle(),
			domain.DisplayDanger:  status(colorDanger),
			domain.DisplaySafe:    status(colorSafe),
		},
	}
}

// Frame returns the outer frame style for a display state.
func (s Styles) Frame(d domain.DisplayState) lipgloss.Style {
	return s.frames[d]
}

// Status returns the status line style for a display state.
func (s Styles) Status(d domain.DisplayState) lipgloss.Style {
	return s.status[d]
}
