// Package gateway provides a client for the generative model gateway,
// which answers either synchronously or with a pollable prediction.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Sentinel errors surfaced to callers
var (
	// ErrInsufficientCredits is returned when the gateway rejects the
	// request with 402; the server message is attached via wrapping
	ErrInsufficientCredits = errors.New("insufficient credits")

	// ErrTimeout is returned when every poll attempt is exhausted
	ErrTimeout = errors.New("generation timed out")

	// ErrCompletedWithoutResult is returned when the gateway reports a
	// completed prediction that carries no output URL
	ErrCompletedWithoutResult = errors.New("generation completed without a result")
)

// RequestError is returned for any other non-2xx gateway response
type RequestError struct {
	StatusCode int
	Message    string
}

func (e *RequestError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("gateway request failed with status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("gateway request failed with status %d", e.StatusCode)
}

const (
	defaultPollInterval    = 2500 * time.Millisecond
	defaultMaxPollAttempts = 240 // ~10 minutes at the default interval
)

// ClientConfig contains configuration for the gateway client
type ClientConfig struct {
	BaseURL string
	APIKey  string

	// HTTPClient overrides the default HTTP client
	HTTPClient *http.Client

	// PollInterval between status checks (default 2500ms)
	PollInterval time.Duration

	// MaxPollAttempts before giving up (default 240)
	MaxPollAttempts int
}

// Client submits generation requests and waits for their results
type Client struct {
	httpClient      *http.Client
	baseURL         string
	apiKey          string
	pollInterval    time.Duration
	maxPollAttempts int
}

// NewClient creates a gateway client
func NewClient(config ClientConfig) *Client {
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	interval := config.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	attempts := config.MaxPollAttempts
	if attempts <= 0 {
		attempts = defaultMaxPollAttempts
	}
	return &Client{
		httpClient:      httpClient,
		baseURL:         config.BaseURL,
		apiKey:          config.APIKey,
		pollInterval:    interval,
		maxPollAttempts: attempts,
	}
}

// GenerateRequest describes one model invocation
type GenerateRequest struct {
	// Model is the gateway model slug
	Model string `json:"model"`

	// Prompt for the generation
	Prompt string `json:"prompt,omitempty"`

	// ReferenceURLs point at conditioning media
	ReferenceURLs []string `json:"reference_urls,omitempty"`

	// Parameters are model-specific knobs passed through unmodified
	Parameters map[string]interface{} `json:"parameters,omitempty"`
}

// Result carries the output of a finished generation
type Result struct {
	// Image is the output URL for single-output models
	Image string `json:"image,omitempty"`

	// Images holds output URLs for multi-output models
	Images []string `json:"images,omitempty"`

	// PredictionID identifies the gateway-side prediction, when the
	// request was handled asynchronously
	PredictionID string `json:"predictionId,omitempty"`
}

// statusResponse is the wire shape of both submit and poll responses
type statusResponse struct {
	Image        string   `json:"image,omitempty"`
	Images       []string `json:"images,omitempty"`
	PredictionID string   `json:"predictionId,omitempty"`
	Status       string   `json:"status,omitempty"`
	Error        string   `json:"error,omitempty"`
	Message      string   `json:"message,omitempty"`
}

func (r *statusResponse) hasOutput() bool {
	return r.Image != "" || len(r.Images) > 0
}

func (r *statusResponse) result(predictionID string) *Result {
	return &Result{Image: r.Image, Images: r.Images, PredictionID: predictionID}
}

func (r *statusResponse) serverMessage() string {
	if r.Error != "" {
		return r.Error
	}
	return r.Message
}

// Submit sends one generation request without waiting for an
// asynchronous result. The returned response either carries output
// (synchronous completion) or a prediction ID to poll.
func (c *Client) Submit(ctx context.Context, req GenerateRequest) (*Result, bool, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, false, fmt.Errorf("failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/generate", bytes.NewReader(body))
	if err != nil {
		return nil, false, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, false, fmt.Errorf("failed to submit generation: %w", err)
	}
	defer resp.Body.Close()

	parsed, err := decodeResponse(resp)
	if err != nil {
		return nil, false, err
	}

	switch {
	case resp.StatusCode == http.StatusAccepted:
		if parsed.PredictionID == "" {
			return nil, false, fmt.Errorf("gateway accepted the request without a prediction ID")
		}
		return parsed.result(parsed.PredictionID), false, nil
	case parsed.hasOutput():
		return parsed.result(parsed.PredictionID), true, nil
	default:
		return nil, false, fmt.Errorf("gateway returned neither output nor a prediction ID")
	}
}

// Status fetches the current state of a prediction
func (c *Client) Status(ctx context.Context, predictionID string) (*statusResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/predictions/"+predictionID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch prediction status: %w", err)
	}
	defer resp.Body.Close()

	return decodeResponse(resp)
}

// GenerateAndWait submits a request and blocks until the generation
// finishes, fails, or the attempt budget runs out. The loop polls at a
// fixed cadence with no backoff and no parallel polls; onProgress runs
// before each wait when set.
func (c *Client) GenerateAndWait(ctx context.Context, req GenerateRequest, onProgress func(attempt int)) (*Result, error) {
	result, done, err := c.Submit(ctx, req)
	if err != nil {
		return nil, err
	}
	if done {
		return result, nil
	}

	predictionID := result.PredictionID
	timer := time.NewTimer(c.pollInterval)
	defer timer.Stop()

	for attempt := 1; attempt <= c.maxPollAttempts; attempt++ {
		if onProgress != nil {
			onProgress(attempt)
		}

		timer.Reset(c.pollInterval)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}

		status, err := c.Status(ctx, predictionID)
		if err != nil {
			return nil, err
		}

		switch status.Status {
		case "completed":
			if !status.hasOutput() {
				return nil, ErrCompletedWithoutResult
			}
			return status.result(predictionID), nil
		case "failed":
			msg := status.serverMessage()
			if msg == "" {
				msg = "generation failed"
			}
			return nil, fmt.Errorf("generation failed: %s", msg)
		}
		// Any other status keeps polling
	}

	return nil, ErrTimeout
}

// decodeResponse parses a gateway response body and maps error statuses
// to the client's error taxonomy
func decodeResponse(resp *http.Response) (*statusResponse, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var parsed statusResponse
	if len(body) > 0 {
		// Error bodies may not be JSON; the raw text becomes the message
		if err := json.Unmarshal(body, &parsed); err != nil {
			parsed.Message = string(body)
		}
	}

	switch {
	case resp.StatusCode == http.StatusPaymentRequired:
		msg := parsed.serverMessage()
		if msg == "" {
			msg = "payment required"
		}
		return nil, fmt.Errorf("%w: %s", ErrInsufficientCredits, msg)
	case resp.StatusCode >= 300:
		return nil, &RequestError{StatusCode: resp.StatusCode, Message: parsed.serverMessage()}
	}

	return &parsed, nil
}
