// Package tui renders the interactive prediction form.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/couchcryptid/hazard-predict/internal/controller"
	"github.com/couchcryptid/hazard-predict/internal/domain"
)

// resolvedMsg is delivered once a background attempt has been applied or
// discarded by the controller.
type resolvedMsg struct {
	attemptID string
	applied   bool
}

// Model is the bubbletea model for the prediction form.
type Model struct {
	ctx    context.Context
	ctrl   *controller.Controller
	input  textarea.Model
	styles Styles
	width  int
}

// New creates a form bound to the controller. ctx bounds every request.
func New(ctx context.Context, ctrl *controller.Controller) Model {
	ta := textarea.New()
	ta.CharLimit = 0
	ta.ShowLineNumbers = false
	ta.SetWidth(72)
	ta.SetHeight(6)
	ta.Focus()

	m := Model{
		ctx:    ctx,
		ctrl:   ctrl,
		input:  ta,
		styles: NewStyles(),
	}
	m.input.Placeholder = ctrl.View().Spec.Example
	if v := ctrl.View().Input; v != "" {
		m.input.SetValue(v)
	}
	return m
}

func (m Model) Init() tea.Cmd {
	return textarea.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		if msg.Width > 10 {
			m.input.SetWidth(min(msg.Width-8, 120))
		}
		return m, nil

	case resolvedMsg:
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyTab:
			return m.cycleHazard(1), nil
		case tea.KeyShiftTab:
			return m.cycleHazard(-1), nil
		case tea.KeyCtrlS:
			return m.submit()
		}
		if m.ctrl.View().Loading {
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.ctrl.SetInput(m.input.Value())
	return m, cmd
}

func (m Model) cycleHazard(step int) Model {
	specs := m.ctrl.Hazards()
	current := m.ctrl.View().Hazard

	idx := 0
	for i, s := range specs {
		if s.Type == current {
			idx = i
			break
		}
	}
	next := specs[(idx+step+len(specs))%len(specs)]
	if err := m.ctrl.SelectHazard(next.Type); err != nil {
		return m
	}
	m.input.Reset()
	m.input.Placeholder = next.Example
	return m
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	m.ctrl.SetInput(m.input.Value())
	a, err := m.ctrl.Begin()
	if err != nil {
		// Busy is ignored; rejections surface as the controller notice.
		return m, nil
	}

	ctx, ctrl := m.ctx, m.ctrl
	return m, func() tea.Msg {
		_, applied := ctrl.Complete(ctx, a)
		return resolvedMsg{attemptID: a.ID, applied: applied}
	}
}

func (m Model) View() string {
	v := m.ctrl.View()

	var b strings.Builder
	b.WriteString(m.styles.Title.Render("Hazard Prediction"))
	b.WriteString("\n")
	b.WriteString(m.renderTabs(v.Hazard))
	b.WriteString("\n\n")
	b.WriteString(m.styles.Hint.Render(fmt.Sprintf(
		"Enter a JSON matrix with exactly %d columns and 1 or %d rows.",
		v.Spec.Columns, v.Spec.WindowRows,
	)))
	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n\n")

	if v.CanSubmit() {
		b.WriteString(m.styles.Button.Render("Predict"))
	} else {
		b.WriteString(m.styles.DisabledButton.Render("Predicting..."))
	}

	if line := v.StatusLine(); line != "" {
		b.WriteString("\n\n")
		if v.Notice != "" {
			b.WriteString(m.styles.Notice.Render(line))
		} else {
			b.WriteString(m.styles.Status(v.Display).Render(line))
		}
	}

	b.WriteString("\n")
	b.WriteString(m.styles.Help.Render("tab: switch hazard • ctrl+s: predict • esc: quit"))

	frame := m.styles.Frame(v.Display)
	if m.width > 0 {
		frame = frame.Width(m.width - 2)
	}
	return frame.Render(b.String())
}

func (m Model) renderTabs(selected domain.HazardType) string {
	specs := m.ctrl.Hazards()
	tabs := make([]string, 0, len(specs))
	for _, s := range specs {
		if s.Type == selected {
			tabs = append(tabs, m.styles.ActiveTab.Render(s.Label))
		} else {
			tabs = append(tabs, m.styles.Tab.Render(s.Label))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

// Run starts the form in the terminal and blocks until the user quits.
func Run(ctx context.Context, ctrl *controller.Controller, opts ...tea.ProgramOption) error {
	opts = append([]tea.ProgramOption{tea.WithContext(ctx)}, opts...)
	_, err := tea.NewProgram(New(ctx, ctrl), opts...).Run()
	return err
}
