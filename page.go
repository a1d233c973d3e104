package reach

import (
	"context"

	"impractical.co/reach/internal/photos"
)

var (
	_ Page          = PredictPage{}
	_ ComponentUser = PredictPage{}
	_ Page          = ErrorPage{}
)

// PredictPage is the single page of the form: the metrics inputs, the
// result of the last submission, and, depending on the Revision, the theme
// toggle and background photo.
type PredictPage struct {
	Revision Revision
	Theme    Theme
	State    State

	// Photo is the background photo. It's only shown by themed
	// revisions, and may be nil.
	Photo *photos.Photo

	Recent []RecentPrediction
}

// Templates returns the page body.
func (PredictPage) Templates(_ context.Context) []string {
	return []string{"predict.html.tmpl"}
}

// Key includes the Revision, as the set of templates parsed depends on it.
func (p PredictPage) Key(_ context.Context) string {
	return "predict:" + p.Revision.String()
}

// ExecutedTemplate is the layout, which pulls the body in.
func (p PredictPage) ExecutedTemplate(_ context.Context) string {
	return p.Layout().BaseTemplate()
}

// UseComponents returns the components the page's revision shows.
func (p PredictPage) UseComponents(_ context.Context) []Component {
	components := []Component{
		p.Layout(),
		p.Toast(),
		p.Form(),
		p.Result(),
		p.RecentPredictions(),
	}
	if p.Revision.Themed() {
		components = append(components, p.ThemeToggle(), p.Background())
	}
	return components
}

// Layout returns the page's Layout.
func (p PredictPage) Layout() Layout {
	return Layout{Revision: p.Revision, Theme: p.Theme}
}

// Form returns the metrics form, filled with the submitted values.
func (p PredictPage) Form() MetricsForm {
	return MetricsForm{
		Values:   p.State.Values,
		Errors:   p.State.Errors,
		Animated: p.Revision.Animated(),
	}
}

// Result returns the result heading.
func (p PredictPage) Result() Result {
	return Result{Impression: p.State.Impression, Animated: p.Revision.Animated()}
}

// Toast returns the toast for the last submission.
func (p PredictPage) Toast() Toast {
	return Toast{Kind: p.State.Toast, Animated: p.Revision.Animated()}
}

// ThemeToggle returns the theme switch.
func (p PredictPage) ThemeToggle() ThemeToggle {
	return ThemeToggle{Theme: p.Theme}
}

// Background returns the background photo, if any.
func (p PredictPage) Background() Background {
	return Background{Photo: p.Photo}
}

// RecentPredictions returns the list of recent predictions.
func (p PredictPage) RecentPredictions() RecentPredictions {
	return RecentPredictions{Predictions: p.Recent}
}

// ErrorPage is rendered when another page can't be. It doesn't rely on any
// other Component, so a broken layout can't break it too.
type ErrorPage struct{}

// Templates returns the error page template.
func (ErrorPage) Templates(_ context.Context) []string {
	return []string{"error.html.tmpl"}
}

// Key is the same for every error page.
func (ErrorPage) Key(_ context.Context) string {
	return "error.html.tmpl"
}

// ExecutedTemplate is the error page itself; it has no layout.
func (ErrorPage) ExecutedTemplate(_ context.Context) string {
	return "error.html.tmpl"
}
