// Package tui is the terminal rendition of the quiz widget.
package tui

import (
	"context"
	"errors"

	"confetti-quiz/internal/app"
	"confetti-quiz/internal/domain"
	"confetti-quiz/internal/feedback"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Options configures the terminal widget.
type Options struct {
	NoColor bool
}

// Model renders one quiz controller using Bubble Tea.
type Model struct {
	ctrl    *app.Controller
	views   <-chan domain.View
	engine  *feedback.Engine
	surface *Surface

	input   textinput.Model
	view    domain.View
	frame   []feedback.Particle
	width   int
	status  string
	noColor bool
}

// ViewMsg carries a controller view published outside a key press, e.g. an external result.
type ViewMsg struct {
	View domain.View
}

// NewModel builds the widget. views, engine and surface may be nil.
func NewModel(ctrl *app.Controller, views <-chan domain.View, engine *feedback.Engine, surface *Surface, opts Options) Model {
	input := textinput.New()
	input.Placeholder = "Type your answer"
	input.CharLimit = 256
	input.Focus()

	m := Model{
		ctrl:    ctrl,
		views:   views,
		engine:  engine,
		surface: surface,
		input:   input,
		width:   80,
		noColor: opts.NoColor,
	}
	return m.apply(ctrl.View(), true)
}

// Init starts the cursor blink and waits for controller views.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, waitForView(m.views))
}

// Update handles key presses, controller views and confetti frames.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = typed.Width
		if m.surface != nil {
			m.surface.SetSize(typed.Width, confettiRows)
		}
		return m, resizeEngine(m.engine)
	case ViewMsg:
		m = m.apply(typed.View, false)
		return m, waitForView(m.views)
	case FrameMsg:
		m.frame = typed.Particles
		return m, nil
	case tea.KeyMsg:
		switch typed.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "enter":
			if m.view.Phase == domain.PhaseSummary {
				return m, nil
			}
			view, err := m.ctrl.Check(m.input.Value())
			return m.after(view, err), nil
		case "ctrl+n", "pgdown":
			view, err := m.ctrl.Next()
			return m.after(view, err), nil
		case "ctrl+p", "pgup":
			view, err := m.ctrl.Previous()
			return m.after(view, err), nil
		case "ctrl+r":
			return m.after(m.ctrl.Restart(), nil), nil
		}
	}

	if m.view.InputLocked || m.view.Phase == domain.PhaseSummary {
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the widget.
func (m Model) View() string {
	var body string
	if m.view.Phase == domain.PhaseSummary {
		body = renderSummary(m.view.Summary, m.noColor)
	} else {
		body = lipgloss.JoinVertical(lipgloss.Left,
			renderHeader(m.view, m.noColor),
			renderProgress(m.view.Progress),
			"",
			m.view.Question,
			m.input.View(),
			renderFeedback(m.view.Feedback, m.noColor),
			"",
			renderControls(m.view, m.noColor),
		)
	}
	if m.status != "" {
		body = lipgloss.JoinVertical(lipgloss.Left, body, stylize(m.status, m.noColor, lipgloss.Color("214")))
	}
	if confetti := renderConfetti(m.frame, m.width, confettiRows, m.noColor); confetti != "" {
		body = lipgloss.JoinVertical(lipgloss.Left, body, confetti)
	}
	return body
}

func (m Model) after(view domain.View, err error) Model {
	m = m.apply(view, true)
	m.status = statusFor(err)
	return m
}

// apply adopts a controller view. The input text is replaced only on structural changes
// so subscription echoes do not clobber typing.
func (m Model) apply(view domain.View, force bool) Model {
	changed := force ||
		view.Index != m.view.Index ||
		view.Phase != m.view.Phase ||
		view.ReadOnly != m.view.ReadOnly ||
		view.Total != m.view.Total
	m.view = view
	if changed {
		m.input.SetValue(view.Input)
		m.input.CursorEnd()
	}
	if view.InputLocked || view.Phase == domain.PhaseSummary {
		m.input.Blur()
	} else {
		m.input.Focus()
	}
	return m
}

func statusFor(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, domain.ErrNotAnswered):
		return "Answer this question before moving on."
	case errors.Is(err, domain.ErrNoPrevious):
		return "This is the first question."
	case errors.Is(err, domain.ErrInputLocked):
		return "Already answered correctly."
	case errors.Is(err, domain.ErrReadOnly):
		return "Results were recorded elsewhere; press ctrl+r to start over."
	}
	return err.Error()
}

func waitForView(views <-chan domain.View) tea.Cmd {
	return func() tea.Msg {
		if views == nil {
			return nil
		}
		view, ok := <-views
		if !ok {
			return nil
		}
		return ViewMsg{View: view}
	}
}

// resizeEngine restarts the frame loop from a command goroutine. Resize waits for the
// running loop, which may itself be blocked delivering a FrameMsg to the update loop.
func resizeEngine(engine *feedback.Engine) tea.Cmd {
	if engine == nil {
		return nil
	}
	return func() tea.Msg {
		engine.Resize()
		return nil
	}
}

// Run drives ctrl in the terminal until the user quits or ctx ends.
func Run(ctx context.Context, ctrl *app.Controller, engine *feedback.Engine, opts Options) error {
	views, cancel := ctrl.Subscribe()
	defer cancel()

	surface := NewSurface()
	model := NewModel(ctrl, views, engine, surface, opts)
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	surface.Bind(program.Send)
	if engine != nil {
		engine.Attach(surface)
		defer engine.Detach()
	}

	_, err := program.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
