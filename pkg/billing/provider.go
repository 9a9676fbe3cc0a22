// Package billing integrates with the payment provider for checkout and
// customer portal sessions.
package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrNoSuchCustomer is returned when the provider no longer recognizes a
// stored customer ID
var ErrNoSuchCustomer = errors.New("no such customer")

// Provider is the payment provider API surface used by the service
type Provider interface {
	// CreateCustomer registers a customer and returns its provider ID
	CreateCustomer(ctx context.Context, email, accountID string) (string, error)

	// CreateCheckoutSession opens a checkout session for a price and
	// returns its URL
	CreateCheckoutSession(ctx context.Context, customerID, priceID, successURL, cancelURL string) (string, error)

	// CreatePortalSession opens a billing portal session and returns its
	// URL
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error)
}

// HTTPProviderConfig contains configuration for the HTTP payment provider
type HTTPProviderConfig struct {
	BaseURL   string
	SecretKey string

	// HTTPClient overrides the default HTTP client
	HTTPClient *http.Client
}

// HTTPProvider talks to a Stripe-style REST API with form-encoded bodies
// and a bearer secret key
type HTTPProvider struct {
	httpClient *http.Client
	baseURL    string
	secretKey  string
}

// NewHTTPProvider creates a payment provider client
func NewHTTPProvider(config HTTPProviderConfig) *HTTPProvider {
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPProvider{
		httpClient: httpClient,
		baseURL:    config.BaseURL,
		secretKey:  config.SecretKey,
	}
}

// CreateCustomer registers a customer and returns its provider ID
func (p *HTTPProvider) CreateCustomer(ctx context.Context, email, accountID string) (string, error) {
	form := url.Values{}
	form.Set("email", email)
	form.Set("metadata[account_id]", accountID)

	var out struct {
		ID string `json:"id"`
	}
	if err := p.post(ctx, "/v1/customers", form, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// CreateCheckoutSession opens a checkout session and returns its URL
func (p *HTTPProvider) CreateCheckoutSession(ctx context.Context, customerID, priceID, successURL, cancelURL string) (string, error) {
	form := url.Values{}
	form.Set("customer", customerID)
	form.Set("mode", "payment")
	form.Set("line_items[0][price]", priceID)
	form.Set("line_items[0][quantity]", "1")
	form.Set("success_url", successURL)
	form.Set("cancel_url", cancelURL)

	var out struct {
		URL string `json:"url"`
	}
	if err := p.post(ctx, "/v1/checkout/sessions", form, &out); err != nil {
		return "", err
	}
	return out.URL, nil
}

// CreatePortalSession opens a billing portal session and returns its URL
func (p *HTTPProvider) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	form := url.Values{}
	form.Set("customer", customerID)
	form.Set("return_url", returnURL)

	var out struct {
		URL string `json:"url"`
	}
	if err := p.post(ctx, "/v1/billing_portal/sessions", form, &out); err != nil {
		return "", err
	}
	return out.URL, nil
}

// providerError is the provider's error envelope
type providerError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (p *HTTPProvider) post(ctx context.Context, path string, form url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+p.secretKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("payment provider request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read provider response: %w", err)
	}

	if resp.StatusCode >= 300 {
		var perr providerError
		if json.Unmarshal(body, &perr) == nil {
			if perr.Error.Code == "resource_missing" && strings.Contains(perr.Error.Message, "customer") {
				return ErrNoSuchCustomer
			}
			if strings.Contains(strings.ToLower(perr.Error.Message), "no such customer") {
				return ErrNoSuchCustomer
			}
			if perr.Error.Message != "" {
				return fmt.Errorf("payment provider error (status %d): %s", resp.StatusCode, perr.Error.Message)
			}
		}
		return fmt.Errorf("payment provider error (status %d)", resp.StatusCode)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode provider response: %w", err)
	}
	return nil
}
