package prediction

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ospi/api/logger"
)

// DefaultTimeout bounds a single call to the prediction service.
const DefaultTimeout = 10 * time.Second

// maxResponseBytes caps the predictor response; it carries a base64 chart.
const maxResponseBytes = 8 << 20

// Result is the predictor's answer. Only Prediction, Confidence and Label
// are guaranteed; the rest are diagnostics.
type Result struct {
	Prediction        int       `json:"prediction"`
	Confidence        float64   `json:"confidence"`
	Label             string    `json:"result"`
	ModelName         string    `json:"model_name,omitempty"`
	Accuracy          *float64  `json:"accuracy,omitempty"`
	ROCCurveBase64    string    `json:"roc_curve_base64,omitempty"`
	FeatureImportance []float64 `json:"feature_importance,omitempty"`
}

// ModelMetrics is one entry of the predictor's /metrics report.
type ModelMetrics struct {
	Accuracy float64 `json:"accuracy"`
	ROCAUC   float64 `json:"roc_auc"`
}

// Client calls the external prediction service. It never retries; callers
// may call again.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        logger.Logger
}

// NewClient returns a Client for the service at baseURL. A non-positive
// timeout uses DefaultTimeout.
func NewClient(baseURL string, timeout time.Duration, log logger.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}
}

// Predict sends req to /predict. Any failure is reported as
// ErrPredictionUnavailable.
func (c *Client) Predict(ctx context.Context, req Request) (*Result, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("%w: encode request: %v", ErrPredictionUnavailable, err)
	}

	var wire struct {
		Result
		Prediction *int     `json:"prediction"`
		Confidence *float64 `json:"confidence"`
	}
	if err := c.do(ctx, http.MethodPost, "/predict", body, &wire); err != nil {
		c.log.Warn("Prediction request failed",
			logger.String("model", req.ModelName),
			logger.Error(err),
		)
		return nil, err
	}

	switch {
	case wire.Prediction == nil || wire.Confidence == nil:
		return nil, fmt.Errorf("%w: response lacks prediction or confidence", ErrPredictionUnavailable)
	case *wire.Prediction != 0 && *wire.Prediction != 1:
		return nil, fmt.Errorf("%w: prediction %d is not binary", ErrPredictionUnavailable, *wire.Prediction)
	case *wire.Confidence < 0 || *wire.Confidence > 1:
		return nil, fmt.Errorf("%w: confidence %v out of range", ErrPredictionUnavailable, *wire.Confidence)
	}

	result := wire.Result
	result.Prediction = *wire.Prediction
	result.Confidence = *wire.Confidence
	return &result, nil
}

// ModelMetrics fetches accuracy and ROC AUC per model from /metrics.
func (c *Client) ModelMetrics(ctx context.Context) (map[string]ModelMetrics, error) {
	var out map[string]ModelMetrics
	if err := c.do(ctx, http.MethodGet, "/metrics", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Health reports whether the service answers its /health endpoint.
func (c *Client) Health(ctx context.Context) error {
	var out map[string]any
	return c.do(ctx, http.MethodGet, "/health", nil, &out)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%w: build request: %v", ErrPredictionUnavailable, err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPredictionUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %s %s returned %d: %s",
			ErrPredictionUnavailable, method, path, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s response: %v", ErrPredictionUnavailable, path, err)
	}
	return nil
}
