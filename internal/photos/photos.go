// Package photos fetches the random background photos shown behind the
// themed revisions of the form.
package photos

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	// ErrNoPhoto is returned when there is no photo to show, either
	// because fetching one failed or because photos are disabled.
	ErrNoPhoto = errors.New("no background photo available")

	// ErrMalformedPhoto is returned when the photo API answers without a
	// usable image URL.
	ErrMalformedPhoto = errors.New("photo response has no image url")
)

var tracer = otel.Tracer("impractical.co/reach/internal/photos")

const maxResponseBytes = 1 << 20

// Photo is a background image and the credit that goes with it.
type Photo struct {
	URL          string `json:"url"`
	Description  string `json:"description,omitempty"`
	Color        string `json:"color,omitempty"`
	Photographer string `json:"photographer,omitempty"`
	PageURL      string `json:"page_url,omitempty"`
}

// Client fetches random photos from an Unsplash-compatible API.
type Client struct {
	baseURL   string
	accessKey string
	query     string
	client    *http.Client
}

// NewClient returns a Client for the API at baseURL, searching for query.
func NewClient(baseURL, accessKey, query string, timeout time.Duration) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		accessKey: accessKey,
		query:     query,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Random fetches one random landscape photo matching the client's query.
func (c *Client) Random(ctx context.Context) (Photo, error) {
	ctx, span := tracer.Start(ctx, "photos.Random", trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("photos.query", c.query)))
	defer span.End()

	photo, err := c.random(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "random photo failed")
	}
	return photo, err
}

func (c *Client) random(ctx context.Context) (Photo, error) {
	params := url.Values{}
	params.Set("orientation", "landscape")
	if c.query != "" {
		params.Set("query", c.query)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/photos/random?"+params.Encode(), nil)
	if err != nil {
		return Photo{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Version", "v1")
	if c.accessKey != "" {
		req.Header.Set("Authorization", "Client-ID "+c.accessKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return Photo{}, fmt.Errorf("GET /photos/random: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Photo{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := gjson.GetBytes(body, "errors.0").String()
		if msg == "" {
			msg = strings.TrimSpace(string(body))
		}
		return Photo{}, fmt.Errorf("photo API returned %d: %s", resp.StatusCode, msg)
	}
	return parsePhoto(body)
}

// parsePhoto reads a photo out of a /photos/random response. The endpoint
// returns an array when a count is requested, so the first element is used in
// that case.
func parsePhoto(body []byte) (Photo, error) {
	if !gjson.ValidBytes(body) {
		return Photo{}, fmt.Errorf("decode response: %w", ErrMalformedPhoto)
	}
	result := gjson.ParseBytes(body)
	if result.IsArray() {
		result = result.Get("0")
	}
	photo := Photo{
		URL:          result.Get("urls.regular").String(),
		Description:  result.Get("alt_description").String(),
		Color:        result.Get("color").String(),
		Photographer: result.Get("user.name").String(),
		PageURL:      result.Get("links.html").String(),
	}
	if photo.Description == "" {
		photo.Description = result.Get("description").String()
	}
	if photo.URL == "" {
		return Photo{}, ErrMalformedPhoto
	}
	return photo, nil
}
