package reach

import (
	"context"
	"strings"
	"time"

	"impractical.co/reach/internal/prediction"
)

// RecentPrediction is a past successful prediction.
type RecentPrediction struct {
	Metrics    prediction.Metrics
	Impression float64
	At         time.Time
}

// Summary lists the metrics the prediction was made from.
func (r RecentPrediction) Summary() string {
	fields := prediction.Fields()
	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, formatMetric(field.Value(r.Metrics))+" "+strings.ToLower(field.Label))
	}
	return strings.Join(parts, ", ")
}

// RecentPredictions lists the latest successful predictions under the form.
// Nothing is rendered when there are none.
type RecentPredictions struct {
	Predictions []RecentPrediction
}

// Templates returns the list template.
func (RecentPredictions) Templates(_ context.Context) []string {
	return []string{"recent.html.tmpl"}
}
