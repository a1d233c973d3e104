package prediction

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
)

// ErrInvalidMetrics is returned when Metrics can't be sent to the prediction
// service as they are.
var ErrInvalidMetrics = errors.New("invalid metrics")

// Metrics are the six engagement numbers of a post that the prediction
// service turns into a predicted impression count.
type Metrics struct {
	Likes         float64 `json:"likes"`
	Saves         float64 `json:"saves"`
	Comments      float64 `json:"comments"`
	Shares        float64 `json:"shares"`
	ProfileVisits float64 `json:"profile_visits"`
	Follows       float64 `json:"follows"`
}

// Field describes one input of the metrics form.
type Field struct {
	// Name is the form field name.
	Name string

	// Label is the human readable label shown next to the input.
	Label string

	get func(Metrics) float64
	set func(*Metrics, float64)
}

// RequiredMessage is shown when the field is left empty.
func (f Field) RequiredMessage() string {
	return "Please input the number of " + strings.ToLower(f.Label) + "!"
}

// Value returns the field's value in m.
func (f Field) Value(m Metrics) float64 {
	return f.get(m)
}

var fields = []Field{
	{
		Name:  "likes",
		Label: "Likes",
		get:   func(m Metrics) float64 { return m.Likes },
		set:   func(m *Metrics, v float64) { m.Likes = v },
	},
	{
		Name:  "saves",
		Label: "Saves",
		get:   func(m Metrics) float64 { return m.Saves },
		set:   func(m *Metrics, v float64) { m.Saves = v },
	},
	{
		Name:  "comments",
		Label: "Comments",
		get:   func(m Metrics) float64 { return m.Comments },
		set:   func(m *Metrics, v float64) { m.Comments = v },
	},
	{
		Name:  "shares",
		Label: "Shares",
		get:   func(m Metrics) float64 { return m.Shares },
		set:   func(m *Metrics, v float64) { m.Shares = v },
	},
	{
		Name:  "profileVisits",
		Label: "Profile Visits",
		get:   func(m Metrics) float64 { return m.ProfileVisits },
		set:   func(m *Metrics, v float64) { m.ProfileVisits = v },
	},
	{
		Name:  "follows",
		Label: "Follows",
		get:   func(m Metrics) float64 { return m.Follows },
		set:   func(m *Metrics, v float64) { m.Follows = v },
	},
}

// Fields returns the inputs of the metrics form, in the order they're shown.
func Fields() []Field {
	out := make([]Field, len(fields))
	copy(out, fields)
	return out
}

// FieldErrors maps form field names to the message explaining why the value
// submitted for them was rejected.
type FieldErrors map[string]string

// ParseForm reads the six metrics out of submitted form values. Every field
// is required and must be a non-negative number. When any field is rejected,
// the returned FieldErrors is non-empty and the Metrics must not be used.
func ParseForm(values url.Values) (Metrics, FieldErrors) {
	var m Metrics
	errs := FieldErrors{}
	for _, field := range fields {
		raw := strings.TrimSpace(values.Get(field.Name))
		if raw == "" {
			errs[field.Name] = field.RequiredMessage()
			continue
		}
		val, err := parseNumber(raw)
		if err != nil {
			errs[field.Name] = field.Label + " must be a number"
			continue
		}
		if val < 0 {
			errs[field.Name] = field.Label + " cannot be negative"
			continue
		}
		field.set(&m, val)
	}
	return m, errs
}

// parseNumber accepts what a number input does: decimal digits with an
// optional sign, fraction and exponent. Separators, hex and words like NaN
// are rejected.
func parseNumber(raw string) (float64, error) {
	if strings.IndexFunc(raw, notNumeric) >= 0 {
		return 0, strconv.ErrSyntax
	}
	val, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, err
	}
	if math.IsInf(val, 0) {
		return 0, strconv.ErrRange
	}
	return val, nil
}

func notNumeric(r rune) bool {
	switch {
	case r >= '0' && r <= '9':
		return false
	case r == '.', r == '+', r == '-', r == 'e', r == 'E':
		return false
	}
	return true
}

// Validate checks the same rules ParseForm enforces, for Metrics that were
// built some other way.
func (m Metrics) Validate() error {
	for _, field := range fields {
		val := field.get(m)
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return fmt.Errorf("%w: %s must be a number", ErrInvalidMetrics, strings.ToLower(field.Label))
		}
		if val < 0 {
			return fmt.Errorf("%w: %s cannot be negative", ErrInvalidMetrics, strings.ToLower(field.Label))
		}
	}
	return nil
}

// FormValues renders m as form values, the inverse of ParseForm.
func (m Metrics) FormValues() url.Values {
	values := url.Values{}
	for _, field := range fields {
		values.Set(field.Name, strconv.FormatFloat(field.get(m), 'f', -1, 64))
	}
	return values
}
