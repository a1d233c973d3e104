package prediction

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrMissingImpression is returned when the prediction service answers
// successfully but the body has no impression in it.
var ErrMissingImpression = errors.New("response has no impression")

var tracer = otel.Tracer("impractical.co/reach/internal/prediction")

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 1 << 20

// Prediction is what the prediction service returned for a set of Metrics.
type Prediction struct {
	Impression float64 `json:"impression"`
}

// ServiceError is returned when the prediction service answers with a
// non-2xx status.
type ServiceError struct {
	StatusCode int

	// Message is the "error" field of the response body, or the raw body
	// if it wasn't JSON.
	Message string
}

// Error includes the status code and the service's message.
func (e *ServiceError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("prediction service returned %d", e.StatusCode)
	}
	return fmt.Sprintf("prediction service returned %d: %s", e.StatusCode, e.Message)
}

// Client talks to the prediction service.
type Client struct {
	endpoint string
	client   *http.Client
}

// NewClient returns a Client for the prediction service rooted at endpoint,
// e.g. "http://localhost:5000". Each request gives up after timeout.
func NewClient(endpoint string, timeout time.Duration) *Client {
	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

type serviceResponse struct {
	Impression *float64 `json:"impression"`
	Message    string   `json:"message"`
	Error      string   `json:"error"`
}

// Predict sends metrics to the service and returns the predicted impression.
func (c *Client) Predict(ctx context.Context, metrics Metrics) (Prediction, error) {
	ctx, span := tracer.Start(ctx, "prediction.Predict", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	if err := metrics.Validate(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid metrics")
		return Prediction{}, err
	}

	body, err := json.Marshal(metrics)
	if err != nil {
		return Prediction{}, fmt.Errorf("marshal metrics: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/predict", bytes.NewReader(body))
	if err != nil {
		return Prediction{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "predict failed")
		return Prediction{}, err
	}
	if resp.Impression == nil {
		span.RecordError(ErrMissingImpression)
		span.SetStatus(codes.Error, "predict failed")
		return Prediction{}, ErrMissingImpression
	}
	span.SetAttributes(attribute.Float64("prediction.impression", *resp.Impression))
	return Prediction{Impression: *resp.Impression}, nil
}

// LoadModel asks the service to load its trained model. Services that keep
// their model loaded answer it as a no-op.
func (c *Client) LoadModel(ctx context.Context) (string, error) {
	ctx, span := tracer.Start(ctx, "prediction.LoadModel", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/load_model", nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load model failed")
		return "", err
	}
	return resp.Message, nil
}

func (c *Client) do(req *http.Request) (serviceResponse, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return serviceResponse{}, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return serviceResponse{}, fmt.Errorf("read response: %w", err)
	}

	var decoded serviceResponse
	decodeErr := json.Unmarshal(raw, &decoded)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := decoded.Error
		if decodeErr != nil {
			msg = strings.TrimSpace(string(raw))
		}
		return serviceResponse{}, &ServiceError{StatusCode: resp.StatusCode, Message: msg}
	}
	if decodeErr != nil {
		return serviceResponse{}, fmt.Errorf("decode response: %w", decodeErr)
	}
	return decoded, nil
}
