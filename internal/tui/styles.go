package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"impractical.co/reach"
	"impractical.co/reach/internal/prediction"
)

var (
	primaryColor = lipgloss.Color("#3b82f6")
	successColor = lipgloss.Color("#10b981")
	errorColor   = lipgloss.Color("#ef4444")
	mutedColor   = lipgloss.Color("#94a3b8")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			MarginBottom(1)

	labelStyle = lipgloss.NewStyle().
			Width(16)

	focusedLabelStyle = labelStyle.
				Foreground(primaryColor).
				Bold(true)

	fieldErrorStyle = lipgloss.NewStyle().
			Foreground(errorColor).
			PaddingLeft(16)

	successStyle = lipgloss.NewStyle().
			Foreground(successColor).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(errorColor).
			Bold(true)

	mutedStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	resultStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor).
			Padding(0, 2).
			MarginTop(1)
)

// toastLine renders the notice shown after a submission, or "" if there is
// none.
func toastLine(toast reach.Toast) string {
	switch toast.Kind {
	case reach.ToastSuccess:
		return successStyle.Render(toast.Message())
	case reach.ToastError:
		return errorStyle.Render(toast.Message())
	}
	return ""
}

// RenderPrediction renders a finished prediction for the terminal: the
// metrics it was made from and the boxed result title.
func RenderPrediction(metrics prediction.Metrics, impression float64, animated bool) string {
	var b strings.Builder
	for _, field := range prediction.Fields() {
		b.WriteString(labelStyle.Render(field.Label))
		b.WriteString(mutedStyle.Render(formatValue(field.Value(metrics))))
		b.WriteString("\n")
	}
	result := reach.Result{Impression: &impression, Animated: animated}
	b.WriteString(resultStyle.Render(result.Title()))
	return b.String()
}

// RenderFailure renders a failed prediction for the terminal. Like the web
// form it only says the prediction failed, never why.
func RenderFailure(animated bool) string {
	toast := reach.Toast{Kind: reach.ToastError, Animated: animated}
	return errorStyle.Render(toast.Message())
}
