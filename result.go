package reach

import (
	"context"
)

// Result shows the predicted impression, once there is one.
type Result struct {
	Impression *float64
	Animated   bool
}

// Templates returns the result template.
func (Result) Templates(_ context.Context) []string {
	return []string{"result.html.tmpl"}
}

// Visible reports whether there's an impression to show.
func (r Result) Visible() bool {
	return r.Impression != nil
}

// Title is the heading the impression is shown in.
func (r Result) Title() string {
	if r.Impression == nil {
		return ""
	}
	value := FormatImpression(*r.Impression)
	if r.Animated {
		return "🚀 Predicted Impressions: " + value + " 🎉"
	}
	return "Predicted Impression: " + value
}
