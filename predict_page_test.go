package reach_test

import (
	"bytes"
	"context"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"impractical.co/reach"
	"impractical.co/reach/internal/photos"
	"impractical.co/reach/internal/prediction"
)

func renderPredictPage(t *testing.T, page reach.PredictPage) string {
	t.Helper()
	site := reach.NewFormSite(reach.BuiltinTemplates(), "Predict Impressions", page.Revision, reach.ThemeLight)
	var out bytes.Buffer
	reach.Render(context.Background(), &out, site, page)
	html := out.String()
	require.NotContains(t, html, "Server error", "page failed to render")
	return html
}

func submitted() url.Values {
	return prediction.Metrics{Likes: 162, Saves: 98, Comments: 9, Shares: 5, ProfileVisits: 65, Follows: 12}.FormValues()
}

func TestPredictPageClassic(t *testing.T) {
	t.Parallel()

	html := renderPredictPage(t, reach.PredictPage{Revision: reach.RevisionClassic})

	assert.Contains(t, html, "<title>Predict Impressions</title>")
	assert.Contains(t, html, `<body class="revision-classic">`)
	for _, field := range prediction.Fields() {
		assert.Contains(t, html, `name="`+field.Name+`"`)
		assert.Contains(t, html, `data-required-message="`+field.RequiredMessage()+`"`)
	}
	assert.Contains(t, html, `<label for="profileVisits">Profile Visits</label>`)
	assert.Contains(t, html, `<span class="label">Predict</span>`)
	assert.NotContains(t, html, `class="result"`)
	assert.NotContains(t, html, `class="toast`)
	assert.NotContains(t, html, `<form class="theme-toggle"`)
	assert.NotContains(t, html, `class="background"`)
	assert.NotContains(t, html, "@keyframes fade-in-up")
}

func TestPredictPageOutcomes(t *testing.T) {
	t.Parallel()

	t.Run("success", func(t *testing.T) {
		t.Parallel()
		state := reach.State{Values: submitted()}.Succeeded(3920.5)
		html := renderPredictPage(t, reach.PredictPage{Revision: reach.RevisionClassic, State: state})

		assert.Contains(t, html, `<h2 class="result">Predicted Impression: 3,920.5</h2>`)
		assert.Contains(t, html, `<div class="toast toast-success" role="status" aria-live="polite">Prediction successful!</div>`)
		assert.Contains(t, html, `value="162"`)
	})

	t.Run("failure clears the impression", func(t *testing.T) {
		t.Parallel()
		state := reach.State{Values: submitted()}.Succeeded(3920.5).Failed()
		html := renderPredictPage(t, reach.PredictPage{Revision: reach.RevisionClassic, State: state})

		assert.NotContains(t, html, `class="result"`)
		assert.Contains(t, html, `<div class="toast toast-error" role="status" aria-live="polite">Error predicting impression</div>`)
	})

	t.Run("rejected values are echoed with their errors", func(t *testing.T) {
		t.Parallel()
		values := submitted()
		values.Set("likes", "")
		values.Set("shares", "-3")
		_, errs := prediction.ParseForm(values)
		state := reach.State{Values: values}.Rejected(errs)
		html := renderPredictPage(t, reach.PredictPage{Revision: reach.RevisionClassic, State: state})

		assert.Contains(t, html, `<p class="field-error" id="likes-error">Please input the number of likes!</p>`)
		assert.Contains(t, html, `<p class="field-error" id="shares-error">Shares cannot be negative</p>`)
		assert.Contains(t, html, `value="-3"`)
		assert.Contains(t, html, `<div class="field field-invalid">`)
		assert.NotContains(t, html, `class="toast`)
	})
}

func TestPredictPageThemed(t *testing.T) {
	t.Parallel()

	photo := &photos.Photo{
		URL:          "https://images.example.com/beach.jpg",
		Photographer: "Joe Example",
		PageURL:      "https://unsplash.com/photos/beach",
	}
	html := renderPredictPage(t, reach.PredictPage{
		Revision: reach.RevisionThemed,
		Theme:    reach.ThemeDark,
		Photo:    photo,
	})

	assert.Contains(t, html, `<body class="revision-themed theme-dark">`)
	assert.Contains(t, html, `<form class="theme-toggle" method="post" action="/theme">`)
	assert.Contains(t, html, `<input type="hidden" name="theme" value="light">`)
	assert.Contains(t, html, `<img class="background-photo" src="https://images.example.com/beach.jpg" alt="">`)
	assert.Contains(t, html, `Photo by <a href="https://unsplash.com/photos/beach">Joe Example</a>`)
	assert.Contains(t, html, "body.theme-dark")
	assert.NotContains(t, html, "@keyframes fade-in-up")

	t.Run("without a photo", func(t *testing.T) {
		t.Parallel()
		html := renderPredictPage(t, reach.PredictPage{Revision: reach.RevisionThemed, Theme: reach.ThemeLight})
		assert.Contains(t, html, `<div class="background" aria-hidden="true">`)
		assert.NotContains(t, html, "background-photo\" src")
		assert.NotContains(t, html, "Photo by")
		assert.Contains(t, html, `<input type="hidden" name="theme" value="dark">`)
	})
}

func TestPredictPageAnimated(t *testing.T) {
	t.Parallel()

	state := reach.State{Values: submitted()}.Succeeded(3920.5)
	html := renderPredictPage(t, reach.PredictPage{Revision: reach.RevisionAnimated, Theme: reach.ThemeLight, State: state})

	assert.Contains(t, html, `<body class="revision-animated theme-light">`)
	assert.Contains(t, html, `<h2 class="result">🚀 Predicted Impressions: 3,920.5 🎉</h2>`)
	assert.Contains(t, html, `<div class="toast toast-success toast-animated" role="status" aria-live="polite">✅ Prediction successful!</div>`)
	assert.Contains(t, html, `class="predict-button pulse"`)
	assert.Contains(t, html, `<form class="theme-toggle"`)

	base := strings.Index(html, "box-sizing: border-box")
	animations := strings.Index(html, "@keyframes fade-in-up")
	require.NotEqual(t, -1, base)
	require.NotEqual(t, -1, animations)
	assert.Less(t, base, animations, "animations should override the base stylesheet")

	failed := renderPredictPage(t, reach.PredictPage{Revision: reach.RevisionAnimated, State: state.Failed()})
	assert.Contains(t, failed, "❌ Error predicting impression")
}

func TestPredictPageScripts(t *testing.T) {
	t.Parallel()

	html := renderPredictPage(t, reach.PredictPage{Revision: reach.RevisionThemed})
	body := html[strings.Index(html, "<body"):]
	assert.Contains(t, body, `document.querySelectorAll("form.metrics-form")`)
	assert.Contains(t, body, `document.querySelectorAll("form.theme-toggle")`)
	assert.Contains(t, body, `document.querySelectorAll(".toast")`)
}

func TestPredictPageRecent(t *testing.T) {
	t.Parallel()

	html := renderPredictPage(t, reach.PredictPage{
		Revision: reach.RevisionClassic,
		Recent: []reach.RecentPrediction{
			{
				Metrics:    prediction.Metrics{Likes: 162, Saves: 98, Comments: 9, Shares: 5, ProfileVisits: 65, Follows: 12},
				Impression: 3920.5,
				At:         time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC),
			},
		},
	})
	assert.Contains(t, html, "<h3>Recent predictions</h3>")
	assert.Contains(t, html, `<li><strong>3,920.5</strong> <span class="summary">162 likes, 98 saves, 9 comments, 5 shares, 65 profile visits, 12 follows</span></li>`)
}

func TestPredictPageKeyPerRevision(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	keys := map[string]struct{}{}
	for _, rev := range []reach.Revision{reach.RevisionClassic, reach.RevisionThemed, reach.RevisionAnimated} {
		keys[reach.PredictPage{Revision: rev}.Key(ctx)] = struct{}{}
	}
	assert.Len(t, keys, 3)
}

func TestRenderHTTPFallsBackToErrorPage(t *testing.T) {
	t.Parallel()

	// only the error page is available, so the predict page can't parse
	contents, err := fs.ReadFile(reach.BuiltinTemplates(), "error.html.tmpl")
	require.NoError(t, err)
	site := reach.NewFormSite(fstest.MapFS{
		"error.html.tmpl": &fstest.MapFile{Data: contents},
	}, "Predict Impressions", reach.RevisionClassic, reach.ThemeLight)

	rec := httptest.NewRecorder()
	reach.RenderHTTP(context.Background(), rec, http.StatusOK, site, reach.PredictPage{Revision: reach.RevisionClassic})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "<title>Server error · Predict Impressions</title>")
}

func TestRenderHTTPStatus(t *testing.T) {
	t.Parallel()

	site := reach.NewFormSite(reach.BuiltinTemplates(), "Predict Impressions", reach.RevisionClassic, reach.ThemeLight)
	rec := httptest.NewRecorder()
	reach.RenderHTTP(context.Background(), rec, http.StatusUnprocessableEntity, site, reach.PredictPage{Revision: reach.RevisionClassic})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), `<form class="metrics-form"`)
}

func TestResultTitleKeepsFraction(t *testing.T) {
	tests := map[float64]string{
		3920.5432: "Predicted Impression: 3,920.5432",
		0.4:       "Predicted Impression: 0.4",
		12.75:     "Predicted Impression: 12.75",
	}
	for impression, want := range tests {
		assert.Equal(t, want, reach.Result{Impression: &impression}.Title())
	}
}
