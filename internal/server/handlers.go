package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"impractical.co/reach"
	"impractical.co/reach/internal/history"
	"impractical.co/reach/internal/photos"
	"impractical.co/reach/internal/prediction"
)

const (
	maxFormBytes = 64 << 10

	// predictFailedMessage is all a client is told about a failed
	// prediction; the cause is only logged.
	predictFailedMessage = "Error predicting impression"

	defaultHistoryLimit = 10
	maxHistoryLimit     = 100
)

func (s *Server) indexHandler(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, reach.State{})
}

func (s *Server) predictHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		reach.Logger(r.Context()).InfoContext(r.Context(), "error parsing predict form", "error", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	state := reach.State{Values: r.PostForm}

	metrics, errs := prediction.ParseForm(r.PostForm)
	if len(errs) > 0 {
		s.render(w, r, http.StatusUnprocessableEntity, state.Rejected(errs))
		return
	}

	result, err := s.predict(r.Context(), metrics)
	if err != nil {
		s.render(w, r, http.StatusBadGateway, state.Failed())
		return
	}
	s.render(w, r, http.StatusOK, state.Succeeded(result.Impression))
}

// predictLimitedHandler answers form submissions over the rate limit. To the
// visitor it's just another failed prediction.
func (s *Server) predictLimitedHandler(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	s.render(w, r, http.StatusTooManyRequests, reach.State{Values: r.PostForm}.Failed())
}

func (s *Server) themeHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	theme, ok := reach.ParseTheme(r.PostForm.Get("theme"))
	if !ok {
		http.Error(w, "invalid theme", http.StatusBadRequest)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     themeCookie,
		Value:    string(theme),
		Path:     "/",
		MaxAge:   365 * 24 * 60 * 60,
		SameSite: http.SameSiteLaxMode,
		HttpOnly: true,
	})
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		writeJSON(w, http.StatusOK, map[string]string{"theme": string(theme)})
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// predictRequest is the body of POST /api/predict. Fields are pointers so a
// missing metric can be told apart from a zero.
type predictRequest struct {
	Likes         *float64 `json:"likes"`
	Saves         *float64 `json:"saves"`
	Comments      *float64 `json:"comments"`
	Shares        *float64 `json:"shares"`
	ProfileVisits *float64 `json:"profile_visits"`
	Follows       *float64 `json:"follows"`
}

func (req predictRequest) metrics() (prediction.Metrics, error) {
	fields := []struct {
		name string
		val  *float64
	}{
		{"likes", req.Likes},
		{"saves", req.Saves},
		{"comments", req.Comments},
		{"shares", req.Shares},
		{"profile_visits", req.ProfileVisits},
		{"follows", req.Follows},
	}
	for _, field := range fields {
		if field.val == nil {
			return prediction.Metrics{}, fmt.Errorf("%w: %s is required", prediction.ErrInvalidMetrics, field.name)
		}
	}
	metrics := prediction.Metrics{
		Likes:         *req.Likes,
		Saves:         *req.Saves,
		Comments:      *req.Comments,
		Shares:        *req.Shares,
		ProfileVisits: *req.ProfileVisits,
		Follows:       *req.Follows,
	}
	return metrics, metrics.Validate()
}

func (s *Server) apiPredictHandler(w http.ResponseWriter, r *http.Request) {
	var req predictRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxFormBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "request body must be a JSON object of metrics"})
		return
	}
	metrics, err := req.metrics()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	result, err := s.predict(r.Context(), metrics)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": predictFailedMessage})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func apiLimitedHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": ErrRateLimited.Error()})
}

func (s *Server) apiBackgroundHandler(w http.ResponseWriter, r *http.Request) {
	if !s.site.Revision.Themed() || s.background == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": photos.ErrNoPhoto.Error()})
		return
	}
	photo, err := s.background.Current(r.Context())
	if err != nil {
		if !errors.Is(err, photos.ErrNoPhoto) {
			reach.Logger(r.Context()).WarnContext(r.Context(), "error getting background photo", "error", err)
		}
		writeJSON(w, http.StatusNotFound, map[string]string{"error": photos.ErrNoPhoto.Error()})
		return
	}
	writeJSON(w, http.StatusOK, photo)
}

func (s *Server) apiHistoryHandler(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "history is disabled"})
		return
	}
	limit := s.recentLimit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive number"})
			return
		}
		limit = min(parsed, maxHistoryLimit)
	}
	subs, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		reach.Logger(r.Context()).ErrorContext(r.Context(), "error listing history", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "error listing history"})
		return
	}
	if subs == nil {
		subs = []history.Submission{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"predictions": subs})
}
