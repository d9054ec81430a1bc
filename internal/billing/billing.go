// Package billing is the read-only client for the external billing system of
// record. The trial window lives there, not here: it is fetched once at
// sequence start and never cached or mutated locally.
package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gregjones/httpcache"
)

const defaultRequestTimeout = 15 * time.Second

// TrialWindow is the unbilled period of a new subscription, as reported by
// the billing provider.
type TrialWindow struct {
	CustomerID string
	TrialStart time.Time
	TrialEnd   time.Time
}

// TrialWindowSource resolves the trial window for a billing customer.
type TrialWindowSource interface {
	TrialWindow(ctx context.Context, customerID string) (*TrialWindow, error)
}

// Client talks to the billing provider's REST API. Responses honour
// Cache-Control, so the transport is wrapped in an in-memory HTTP cache.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a billing API client.
func NewClient(baseURL, apiKey string) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("billing base URL is required")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("billing API key is required")
	}

	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Transport: httpcache.NewTransport(httpcache.NewMemoryCache()),
			Timeout:   defaultRequestTimeout,
		},
	}, nil
}

type subscriptionResponse struct {
	CustomerID string `json:"customerId"`
	Status     string `json:"status"`
	TrialStart string `json:"trialStart"` // ISO-8601
	TrialEnd   string `json:"trialEnd"`   // ISO-8601
}

// TrialWindow fetches the current subscription of a customer and returns its
// trial window.
func (c *Client) TrialWindow(ctx context.Context, customerID string) (*TrialWindow, error) {
	url := fmt.Sprintf("%s/v1/customers/%s/subscription", c.baseURL, customerID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build billing request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to query billing provider: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("billing provider returned status %d: %s", resp.StatusCode, detail)
	}

	var sub subscriptionResponse
	if err := json.NewDecoder(resp.Body).Decode(&sub); err != nil {
		return nil, fmt.Errorf("failed to decode billing response: %w", err)
	}

	start, err := time.Parse(time.RFC3339, sub.TrialStart)
	if err != nil {
		return nil, fmt.Errorf("invalid trialStart in billing response: %w", err)
	}
	end, err := time.Parse(time.RFC3339, sub.TrialEnd)
	if err != nil {
		return nil, fmt.Errorf("invalid trialEnd in billing response: %w", err)
	}

	return &TrialWindow{
		CustomerID: sub.CustomerID,
		TrialStart: start,
		TrialEnd:   end,
	}, nil
}
