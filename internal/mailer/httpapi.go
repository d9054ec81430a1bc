package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

const defaultSendTimeout = 30 * time.Second

// HTTPAPIMailer sends email through a JSON-over-HTTPS transactional email
// API (Resend-style: POST /emails with a bearer token).
type HTTPAPIMailer struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewHTTPAPIMailer creates a mailer targeting the given API endpoint.
func NewHTTPAPIMailer(baseURL, apiKey string) (*HTTPAPIMailer, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("mailer base URL is required")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("mailer API key is required")
	}

	return &HTTPAPIMailer{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: defaultSendTimeout,
		},
	}, nil
}

type sendRequest struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

type sendResponse struct {
	ID string `json:"id"`
}

// Send submits one email. Non-2xx responses are returned as errors with the
// provider status; callers own retry policy.
func (m *HTTPAPIMailer) Send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(sendRequest{
		From:    msg.From,
		To:      msg.To,
		Subject: msg.Subject,
		HTML:    msg.HTML,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/emails", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build email request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+m.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("email provider returned status %d: %s", resp.StatusCode, detail)
	}

	var sent sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&sent); err != nil {
		// Provider accepted the message; a malformed body is not a send failure.
		log.Warn().Err(err).Msg("Failed to decode email provider response")
		return nil
	}

	log.Info().
		Str("provider_id", sent.ID).
		Str("to", msg.To).
		Str("subject", msg.Subject).
		Msg("Sent email")

	return nil
}
