package reach

import (
	"context"
	"net/url"

	"impractical.co/reach/internal/prediction"
)

// MetricsForm is the form the six engagement metrics are entered in. Every
// input is a required number no lower than zero; submitted values are echoed
// back so a rejected or failed submission can be corrected and resent.
type MetricsForm struct {
	Values   url.Values
	Errors   prediction.FieldErrors
	Animated bool
}

// FormInput is a single input of the MetricsForm, ready to be rendered.
type FormInput struct {
	Name            string
	Label           string
	Value           string
	Error           string
	RequiredMessage string
}

// Templates returns the form template.
func (MetricsForm) Templates(_ context.Context) []string {
	return []string{"form.html.tmpl"}
}

// EmbedCSS returns the form styles.
func (MetricsForm) EmbedCSS(_ context.Context) []CSSInline {
	return []CSSInline{
		{TemplatePath: "form.css.tmpl", CSSInlineRelationCalculator: afterBaseCSS},
	}
}

// EmbedJS returns the script that checks required inputs before submitting
// and puts the submit button in its loading state while the prediction is
// requested.
func (MetricsForm) EmbedJS(_ context.Context) []JSInline {
	return []JSInline{
		{TemplatePath: "form.js.tmpl", PlaceInFooter: true},
	}
}

// Action is where the form is submitted.
func (MetricsForm) Action() string {
	return "/predict"
}

// Inputs returns the inputs of the form, in order.
func (f MetricsForm) Inputs() []FormInput {
	fields := prediction.Fields()
	inputs := make([]FormInput, 0, len(fields))
	for _, field := range fields {
		inputs = append(inputs, FormInput{
			Name:            field.Name,
			Label:           field.Label,
			Value:           f.Values.Get(field.Name),
			Error:           f.Errors[field.Name],
			RequiredMessage: field.RequiredMessage(),
		})
	}
	return inputs
}

// ButtonClass is the class attribute of the submit button.
func (f MetricsForm) ButtonClass() string {
	if f.Animated {
		return "predict-button pulse"
	}
	return "predict-button"
}
