package predictapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/couchcryptid/hazard-predict/internal/domain"
	"github.com/couchcryptid/hazard-predict/internal/observability"
)

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 1 << 20

// Client implements domain.Predictor against the remote prediction endpoint.
type Client struct {
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a prediction client. A zero timeout leaves requests
// bounded only by the caller's context.
func NewClient(baseURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		metrics: metrics,
		logger:  logger,
	}
}

// Predict posts the matrix to the hazard's endpoint. It never returns an
// error: every failure resolves to a TransportError or ServerError result.
func (c *Client) Predict(ctx context.Context, spec domain.HazardSpec, m domain.Matrix) domain.PredictionResult {
	payload, err := json.Marshal(map[string]domain.Matrix{spec.SampleField: m})
	if err != nil {
		return domain.TransportError(0, fmt.Sprintf("encode request: %v", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+spec.Path, bytes.NewReader(payload))
	if err != nil {
		return domain.TransportError(0, fmt.Sprintf("create request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.RequestDuration.WithLabelValues(string(spec.Type)).Observe(time.Since(start).Seconds())
	if err != nil {
		c.logger.Warn("prediction request failed", "hazard", spec.Type, "error", err)
		return domain.TransportError(0, fmt.Sprintf("%s prediction request: %v", spec.Type, err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return domain.TransportError(resp.StatusCode, fmt.Sprintf("read response: %v", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("prediction endpoint error",
			"hazard", spec.Type,
			"status", resp.StatusCode,
			"body", truncate(body, 256),
		)
		return domain.TransportError(resp.StatusCode, domain.TransportMessage(resp.StatusCode))
	}

	result := parseResponse(resp.StatusCode, body)
	c.logger.Debug("prediction response", "hazard", spec.Type, "outcome", result.Outcome())
	return result
}

// Prediction endpoint response type. Fields stay raw so a present but
// non-numeric probability is distinguishable from a missing one.
type response struct {
	Probability json.RawMessage `json:"probability"`
	Error       json.RawMessage `json:"error"`
}

func parseResponse(status int, body []byte) domain.PredictionResult {
	var r response
	if err := json.Unmarshal(body, &r); err != nil {
		return domain.TransportError(status, fmt.Sprintf("decode response: %v", err))
	}

	if p, ok := numeric(r.Probability); ok {
		if p < 0 || p > 1 {
			return domain.ServerError(fmt.Sprintf("probability out of range: %g", p))
		}
		return domain.Success(p)
	}

	if msg := errorMessage(r.Error); msg != "" {
		return domain.ServerError(msg)
	}

	return domain.UnrecognizedResponse()
}

func numeric(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var p *float64
	if err := json.Unmarshal(raw, &p); err != nil || p == nil {
		return 0, false
	}
	return *p, true
}

func errorMessage(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
