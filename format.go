package reach

import (
	"math"
	"strconv"

	"github.com/dustin/go-humanize"
)

// FormatImpression renders a predicted impression the way the result title
// shows it: the value as the service returned it, with thousands separators.
func FormatImpression(impression float64) string {
	if math.IsNaN(impression) || math.IsInf(impression, 0) {
		return strconv.FormatFloat(impression, 'f', -1, 64)
	}
	if impression == 0 {
		impression = 0 // drops the sign of -0
	}
	return humanize.Commaf(impression)
}

// formatMetric renders a submitted metric without a trailing ".0".
func formatMetric(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}
