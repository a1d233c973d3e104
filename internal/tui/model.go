// Package tui is a terminal rendition of the metrics form: six inputs, a
// Predict action and the same result and toast the web form shows.
package tui

import (
	"context"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"impractical.co/reach"
	"impractical.co/reach/internal/prediction"
)

// Predictor turns metrics into a predicted impression. *prediction.Client is
// a Predictor.
type Predictor interface {
	Predict(ctx context.Context, metrics prediction.Metrics) (prediction.Prediction, error)
}

// predictedMsg carries the outcome of a submission back into Update.
type predictedMsg struct {
	impression float64
	err        error
}

// Model is the bubbletea model of the form.
type Model struct {
	predictor Predictor
	timeout   time.Duration
	animated  bool
	logger    *slog.Logger

	fields  []prediction.Field
	inputs  []textinput.Model
	focus   int
	spinner spinner.Model

	state      reach.State
	submitting bool
	quitting   bool
}

// New returns a form that submits to predictor, giving up on each request
// after timeout. animated adds the emoji the animated web revision shows.
// Failed predictions are logged to the logger carried by ctx; the form itself
// only shows the error toast.
func New(ctx context.Context, predictor Predictor, timeout time.Duration, animated bool) Model {
	fields := prediction.Fields()
	inputs := make([]textinput.Model, len(fields))
	for i := range fields {
		input := textinput.New()
		input.Placeholder = "0"
		input.CharLimit = 16
		input.Width = 20
		input.Prompt = ""
		if i == 0 {
			input.Focus()
		}
		inputs[i] = input
	}

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(primaryColor)

	return Model{
		predictor: predictor,
		timeout:   timeout,
		animated:  animated,
		logger:    reach.Logger(ctx),
		fields:    fields,
		inputs:    inputs,
		spinner:   s,
	}
}

// Init starts the cursor blinking.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles key presses and finished predictions.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.quitting = true
			return m, tea.Quit
		case tea.KeyTab, tea.KeyDown:
			return m, m.moveFocus(1)
		case tea.KeyShiftTab, tea.KeyUp:
			return m, m.moveFocus(-1)
		case tea.KeyEnter:
			if m.submitting {
				return m, nil
			}
			if m.focus < len(m.inputs)-1 {
				return m, m.moveFocus(1)
			}
			return m.submit()
		}

	case predictedMsg:
		m.submitting = false
		if msg.err != nil {
			m.state = m.state.Failed()
		} else {
			m.state = m.state.Succeeded(msg.impression)
		}
		return m, nil

	case spinner.TickMsg:
		if !m.submitting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

func (m *Model) moveFocus(delta int) tea.Cmd {
	m.inputs[m.focus].Blur()
	m.focus = (m.focus + delta + len(m.inputs)) % len(m.inputs)
	return m.inputs[m.focus].Focus()
}

// values returns what's typed into the inputs as form values.
func (m Model) values() url.Values {
	values := url.Values{}
	for i, field := range m.fields {
		values.Set(field.Name, m.inputs[i].Value())
	}
	return values
}

// submit validates the inputs and, when they're all fine, starts the
// prediction request.
func (m Model) submit() (tea.Model, tea.Cmd) {
	values := m.values()
	m.state.Values = values
	metrics, errs := prediction.ParseForm(values)
	if len(errs) > 0 {
		m.state = m.state.Rejected(errs)
		for i, field := range m.fields {
			if _, bad := errs[field.Name]; bad {
				m.inputs[m.focus].Blur()
				m.focus = i
				return m, m.inputs[i].Focus()
			}
		}
		return m, nil
	}
	m.state.Errors = nil
	m.submitting = true
	return m, tea.Batch(m.spinner.Tick, m.predict(metrics))
}

func (m Model) predict(metrics prediction.Metrics) tea.Cmd {
	predictor, timeout, logger := m.predictor, m.timeout, m.logger
	return func() tea.Msg {
		ctx := context.Background()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		resp, err := predictor.Predict(ctx, metrics)
		if err != nil {
			logger.DebugContext(ctx, "prediction failed", "error", err)
			return predictedMsg{err: err}
		}
		return predictedMsg{impression: resp.Impression}
	}
}

// State is the form's state after the last submission.
func (m Model) State() reach.State {
	return m.state
}

// View renders the form, the toast and the result.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render("Predict Impressions"))
	b.WriteString("\n")

	for i, field := range m.fields {
		label := labelStyle.Render(field.Label)
		if i == m.focus {
			label = focusedLabelStyle.Render(field.Label)
		}
		b.WriteString(label)
		b.WriteString(m.inputs[i].View())
		b.WriteString("\n")
		if msg, ok := m.state.Errors[field.Name]; ok {
			b.WriteString(fieldErrorStyle.Render(msg))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	if m.submitting {
		b.WriteString(m.spinner.View() + " Predicting...")
	} else {
		b.WriteString(mutedStyle.Render("enter: next / predict • tab: move • esc: quit"))
	}
	b.WriteString("\n")

	if line := toastLine(reach.Toast{Kind: m.state.Toast, Animated: m.animated}); line != "" {
		b.WriteString("\n" + line + "\n")
	}
	result := reach.Result{Impression: m.state.Impression, Animated: m.animated}
	if result.Visible() {
		b.WriteString(resultStyle.Render(result.Title()))
		b.WriteString("\n")
	}
	return b.String()
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
