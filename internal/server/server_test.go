package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"impractical.co/reach"
	"impractical.co/reach/internal/history"
	"impractical.co/reach/internal/photos"
	"impractical.co/reach/internal/prediction"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakePredictor struct {
	mu         sync.Mutex
	got        []prediction.Metrics
	impression float64
	err        error
}

func (f *fakePredictor) Predict(_ context.Context, metrics prediction.Metrics) (prediction.Prediction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = append(f.got, metrics)
	if f.err != nil {
		return prediction.Prediction{}, f.err
	}
	return prediction.Prediction{Impression: f.impression}, nil
}

func (f *fakePredictor) calls() []prediction.Metrics {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]prediction.Metrics(nil), f.got...)
}

type fakeBackground struct {
	photo photos.Photo
	err   error
}

func (f fakeBackground) Current(_ context.Context) (photos.Photo, error) {
	return f.photo, f.err
}

type fakeHistory struct {
	mu   sync.Mutex
	subs []history.Submission
}

func (f *fakeHistory) Record(_ context.Context, sub history.Submission) (history.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs = append(f.subs, sub)
	return sub, nil
}

func (f *fakeHistory) Recent(_ context.Context, limit int) ([]history.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []history.Submission
	for i := len(f.subs) - 1; i >= 0 && len(out) < limit; i-- {
		if f.subs[i].Succeeded() {
			out = append(out, f.subs[i])
		}
	}
	return out, nil
}

func (f *fakeHistory) recorded() []history.Submission {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]history.Submission(nil), f.subs...)
}

func newTestServer(t *testing.T, revision reach.Revision, opts Options) http.Handler {
	t.Helper()
	opts.Site = reach.NewFormSite(reach.BuiltinTemplates(), "Predict Impressions", revision, reach.ThemeLight)
	if opts.Predictor == nil {
		opts.Predictor = &fakePredictor{impression: 3920.5}
	}
	return New(opts).Routes()
}

func validForm() url.Values {
	return prediction.Metrics{Likes: 162, Saves: 98, Comments: 9, Shares: 5, ProfileVisits: 65, Follows: 12}.FormValues()
}

func postForm(handler http.Handler, path string, values url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func postJSON(handler http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func get(handler http.Handler, path string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHealthz(t *testing.T) {
	handler := newTestServer(t, reach.RevisionClassic, Options{})
	rec := get(handler, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeJSON(t, rec)["status"])
}

func TestIndex(t *testing.T) {
	handler := newTestServer(t, reach.RevisionClassic, Options{})
	rec := get(handler, "/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `<form class="metrics-form" method="post" action="/predict" novalidate>`)
	assert.NotContains(t, rec.Body.String(), `class="result"`)
}

func TestPredictForm(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		predictor := &fakePredictor{impression: 3920.5}
		hist := &fakeHistory{}
		handler := newTestServer(t, reach.RevisionClassic, Options{Predictor: predictor, History: hist, RecentLimit: 5})

		rec := postForm(handler, "/predict", validForm())
		assert.Equal(t, http.StatusOK, rec.Code)
		body := rec.Body.String()
		assert.Contains(t, body, `<h2 class="result">Predicted Impression: 3,920.5</h2>`)
		assert.Contains(t, body, "Prediction successful!")
		assert.Contains(t, body, `<strong>3,920.5</strong>`, "the new prediction is listed as recent")

		require.Len(t, predictor.calls(), 1)
		assert.Equal(t, 65.0, predictor.calls()[0].ProfileVisits)

		recorded := hist.recorded()
		require.Len(t, recorded, 1)
		require.NotNil(t, recorded[0].Impression)
		assert.Equal(t, 3920.5, *recorded[0].Impression)
		assert.Equal(t, "classic", recorded[0].Revision)
	})

	t.Run("validation errors never reach the service", func(t *testing.T) {
		predictor := &fakePredictor{}
		hist := &fakeHistory{}
		handler := newTestServer(t, reach.RevisionClassic, Options{Predictor: predictor, History: hist})

		values := validForm()
		values.Del("follows")
		rec := postForm(handler, "/predict", values)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Contains(t, rec.Body.String(), "Please input the number of follows!")
		assert.Contains(t, rec.Body.String(), `value="162"`)
		assert.Empty(t, predictor.calls())
		assert.Empty(t, hist.recorded())
	})

	t.Run("failure shows the error toast", func(t *testing.T) {
		hist := &fakeHistory{}
		predictor := &fakePredictor{err: &prediction.ServiceError{StatusCode: 500, Message: "Model not loaded"}}
		handler := newTestServer(t, reach.RevisionAnimated, Options{Predictor: predictor, History: hist})

		rec := postForm(handler, "/predict", validForm())
		assert.Equal(t, http.StatusBadGateway, rec.Code)
		body := rec.Body.String()
		assert.Contains(t, body, "❌ Error predicting impression")
		assert.NotContains(t, body, "Model not loaded")
		assert.NotContains(t, body, `class="result"`)

		recorded := hist.recorded()
		require.Len(t, recorded, 1)
		assert.Nil(t, recorded[0].Impression)
		assert.Equal(t, "prediction service returned 500: Model not loaded", recorded[0].Failure)
	})
}

func TestPredictFormWithStore(t *testing.T) {
	store, err := history.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	defer store.Close()

	handler := newTestServer(t, reach.RevisionClassic, Options{History: store, RecentLimit: 5})
	require.Equal(t, http.StatusOK, postForm(handler, "/predict", validForm()).Code)

	rec := get(handler, "/")
	assert.Contains(t, rec.Body.String(), "<h3>Recent predictions</h3>")
	assert.Contains(t, rec.Body.String(), "162 likes, 98 saves, 9 comments, 5 shares, 65 profile visits, 12 follows")

	rec = get(handler, "/api/history")
	assert.Equal(t, http.StatusOK, rec.Code)
	predictions, ok := decodeJSON(t, rec)["predictions"].([]any)
	require.True(t, ok)
	require.Len(t, predictions, 1)
	assert.Equal(t, 3920.5, predictions[0].(map[string]any)["impression"])
}

func TestTheme(t *testing.T) {
	handler := newTestServer(t, reach.RevisionThemed, Options{})

	t.Run("form post redirects home", func(t *testing.T) {
		rec := postForm(handler, "/theme", url.Values{"theme": {"dark"}})
		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/", rec.Header().Get("Location"))
		cookies := rec.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Equal(t, "theme", cookies[0].Name)
		assert.Equal(t, "dark", cookies[0].Value)
		assert.Equal(t, http.SameSiteLaxMode, cookies[0].SameSite)
	})

	t.Run("fetch gets json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/theme", strings.NewReader("theme=light"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Accept", "application/json")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "light", decodeJSON(t, rec)["theme"])
	})

	t.Run("invalid theme", func(t *testing.T) {
		rec := postForm(handler, "/theme", url.Values{"theme": {"sepia"}})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Empty(t, rec.Result().Cookies())
	})

	t.Run("cookie picks the theme", func(t *testing.T) {
		rec := get(handler, "/", &http.Cookie{Name: "theme", Value: "dark"})
		assert.Contains(t, rec.Body.String(), `<body class="revision-themed theme-dark">`)

		rec = get(handler, "/", &http.Cookie{Name: "theme", Value: "sepia"})
		assert.Contains(t, rec.Body.String(), `<body class="revision-themed theme-light">`)
	})
}

func TestBackground(t *testing.T) {
	photo := photos.Photo{URL: "https://images.example.com/beach.jpg", Photographer: "Joe Example"}

	t.Run("themed", func(t *testing.T) {
		handler := newTestServer(t, reach.RevisionThemed, Options{Background: fakeBackground{photo: photo}})

		rec := get(handler, "/")
		assert.Contains(t, rec.Body.String(), `src="https://images.example.com/beach.jpg"`)

		rec = get(handler, "/api/background")
		assert.Equal(t, http.StatusOK, rec.Code)
		body := decodeJSON(t, rec)
		assert.Equal(t, photo.URL, body["url"])
		assert.Equal(t, "Joe Example", body["photographer"])
	})

	t.Run("no photo", func(t *testing.T) {
		handler := newTestServer(t, reach.RevisionThemed, Options{Background: fakeBackground{err: photos.ErrNoPhoto}})
		rec := get(handler, "/")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.NotContains(t, rec.Body.String(), `<img class="background-photo"`)
		assert.Equal(t, http.StatusNotFound, get(handler, "/api/background").Code)
	})

	t.Run("classic never shows one", func(t *testing.T) {
		handler := newTestServer(t, reach.RevisionClassic, Options{Background: fakeBackground{photo: photo}})
		assert.NotContains(t, get(handler, "/").Body.String(), "beach.jpg")
		assert.Equal(t, http.StatusNotFound, get(handler, "/api/background").Code)
	})
}

func TestAPIPredict(t *testing.T) {
	const body = `{"likes":162,"saves":98,"comments":9,"shares":5,"profile_visits":65,"follows":12}`

	t.Run("success", func(t *testing.T) {
		predictor := &fakePredictor{impression: 3920.5}
		handler := newTestServer(t, reach.RevisionClassic, Options{Predictor: predictor})
		rec := postJSON(handler, "/api/predict", body)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 3920.5, decodeJSON(t, rec)["impression"])
		require.Len(t, predictor.calls(), 1)
		assert.Equal(t, 12.0, predictor.calls()[0].Follows)
	})

	t.Run("upstream failure", func(t *testing.T) {
		handler := newTestServer(t, reach.RevisionClassic, Options{Predictor: &fakePredictor{err: errors.New("connection refused")}})
		rec := postJSON(handler, "/api/predict", body)
		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.Equal(t, "Error predicting impression", decodeJSON(t, rec)["error"])
	})

	tests := map[string]struct {
		body string
		want string
	}{
		"missing metric":  {body: `{"likes":1,"saves":1,"comments":1,"shares":1,"profile_visits":1}`, want: "invalid metrics: follows is required"},
		"negative metric": {body: `{"likes":-1,"saves":1,"comments":1,"shares":1,"profile_visits":1,"follows":1}`, want: "invalid metrics: likes cannot be negative"},
		"unknown field":   {body: `{"likes":1,"views":1}`, want: "request body must be a JSON object of metrics"},
		"not json":        {body: `likes=1`, want: "request body must be a JSON object of metrics"},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			predictor := &fakePredictor{}
			handler := newTestServer(t, reach.RevisionClassic, Options{Predictor: predictor})
			rec := postJSON(handler, "/api/predict", tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tc.want, decodeJSON(t, rec)["error"])
			assert.Empty(t, predictor.calls())
		})
	}
}

func TestAPIHistory(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		handler := newTestServer(t, reach.RevisionClassic, Options{})
		assert.Equal(t, http.StatusNotFound, get(handler, "/api/history").Code)
	})

	t.Run("limit", func(t *testing.T) {
		hist := &fakeHistory{}
		handler := newTestServer(t, reach.RevisionClassic, Options{History: hist, RecentLimit: 5})
		for range 3 {
			require.Equal(t, http.StatusOK, postForm(handler, "/predict", validForm()).Code)
		}

		rec := get(handler, "/api/history?limit=2")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, decodeJSON(t, rec)["predictions"], 2)

		assert.Equal(t, http.StatusBadRequest, get(handler, "/api/history?limit=zero").Code)
		assert.Equal(t, http.StatusBadRequest, get(handler, "/api/history?limit=0").Code)
	})

	t.Run("empty", func(t *testing.T) {
		handler := newTestServer(t, reach.RevisionClassic, Options{History: &fakeHistory{}})
		rec := get(handler, "/api/history")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "{\"predictions\":[]}\n", rec.Body.String())
	})
}

func TestRateLimitedRoutes(t *testing.T) {
	handler := newTestServer(t, reach.RevisionClassic, Options{Limiter: NewRateLimiter(1, 1)})

	rec := postJSON(handler, "/api/predict", `{"likes":1,"saves":1,"comments":1,"shares":1,"profile_visits":1,"follows":1}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	rec = postJSON(handler, "/api/predict", `{}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, "rate limit exceeded", decodeJSON(t, rec)["error"])

	rec = postForm(handler, "/predict", validForm())
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "Error predicting impression")
	assert.Contains(t, rec.Body.String(), `value="162"`)

	// the page itself isn't limited
	assert.Equal(t, http.StatusOK, get(handler, "/").Code)
}
