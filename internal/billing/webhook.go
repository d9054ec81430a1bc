package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
)

// EventCheckoutCompleted fires when a new subscription enters its trial.
const EventCheckoutCompleted = "checkout.completed"

// ErrBadSignature is returned when a webhook body does not match its
// signature header.
var ErrBadSignature = errors.New("webhook signature mismatch")

// WebhookEvent is the billing provider's webhook envelope.
type WebhookEvent struct {
	Type string      `json:"type"`
	Data WebhookData `json:"data"`
}

// WebhookData carries the subscription details of a checkout event.
// TrialStart/TrialEnd are ISO-8601; when the provider omits them the caller
// resolves the window through the billing API instead.
type WebhookData struct {
	CustomerID        string `json:"customerId"`
	OrganizationID    string `json:"organizationId"`
	OrganizationName  string `json:"organizationName"`
	OrganizationEmail string `json:"organizationEmail"`
	TrialStart        string `json:"trialStart,omitempty"`
	TrialEnd          string `json:"trialEnd,omitempty"`
}

// VerifySignature checks the hex-encoded HMAC-SHA256 signature the provider
// attaches to each delivery.
func VerifySignature(body []byte, signature string, secret []byte) error {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrBadSignature
	}
	return nil
}

// ParseWebhook verifies and decodes a webhook delivery.
func ParseWebhook(body []byte, signature string, secret []byte) (*WebhookEvent, error) {
	if err := VerifySignature(body, signature, secret); err != nil {
		return nil, err
	}

	var event WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("failed to decode webhook body: %w", err)
	}

	return &event, nil
}
