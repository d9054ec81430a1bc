package server

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/osteovet/platform/internal/billing"
	"github.com/osteovet/platform/internal/models"
	"github.com/osteovet/platform/internal/store"
	"github.com/osteovet/platform/internal/trial"
	"github.com/rs/zerolog/log"
)

// SignatureHeader carries the billing provider's HMAC of the delivery body.
const SignatureHeader = "X-Billing-Signature"

const maxWebhookBody = 1 << 20 // 1 MiB

// handleBillingWebhook receives checkout events from the billing provider
// and starts the trial email sequence for the subscribing organization.
func (s *Server) handleBillingWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	event, err := billing.ParseWebhook(body, r.Header.Get(SignatureHeader), s.cfg.WebhookSecret)
	if err != nil {
		if errors.Is(err, billing.ErrBadSignature) {
			log.Warn().Str("client_ip", clientIP(r)).Msg("Rejected webhook with bad signature")
			writeError(w, http.StatusUnauthorized, "invalid signature")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	if event.Type != billing.EventCheckoutCompleted {
		log.Debug().Str("type", event.Type).Msg("Ignoring webhook event")
		writeData(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	orgID, err := uuid.Parse(event.Data.OrganizationID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid organizationId")
		return
	}

	window, err := s.resolveTrialWindow(r, event)
	if err != nil {
		log.Error().Err(err).
			Str("org_id", orgID.String()).
			Str("customer_id", event.Data.CustomerID).
			Msg("Failed to resolve trial window")
		writeError(w, http.StatusBadGateway, "trial window unavailable")
		return
	}

	err = s.orgs.Create(r.Context(), &models.Organization{
		OrgID:             orgID,
		Name:              event.Data.OrganizationName,
		Email:             event.Data.OrganizationEmail,
		BillingCustomerID: event.Data.CustomerID,
	})
	if err != nil && !errors.Is(err, store.ErrOrganizationAlreadyExists) {
		log.Error().Err(err).Str("org_id", orgID.String()).Msg("Failed to record organization")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	result, err := s.orchestrator.Begin(r.Context(), trial.StartParams{
		OrgID:      orgID,
		OrgName:    event.Data.OrganizationName,
		OrgEmail:   event.Data.OrganizationEmail,
		TrialStart: window.TrialStart,
		TrialEnd:   window.TrialEnd,
	})
	if err != nil {
		log.Error().Err(err).Str("org_id", orgID.String()).Msg("Failed to start trial sequence")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeData(w, http.StatusAccepted, map[string]any{
		"orgId":          result.OrgID,
		"stepsScheduled": result.StepsScheduled,
	})
}

// resolveTrialWindow prefers the window embedded in the webhook payload and
// falls back to the billing API when the provider omitted it.
func (s *Server) resolveTrialWindow(r *http.Request, event *billing.WebhookEvent) (*billing.TrialWindow, error) {
	if event.Data.TrialStart != "" && event.Data.TrialEnd != "" {
		start, err := time.Parse(time.RFC3339, event.Data.TrialStart)
		if err != nil {
			return nil, err
		}
		end, err := time.Parse(time.RFC3339, event.Data.TrialEnd)
		if err != nil {
			return nil, err
		}
		return &billing.TrialWindow{
			CustomerID: event.Data.CustomerID,
			TrialStart: start,
			TrialEnd:   end,
		}, nil
	}

	if s.trialWindows == nil {
		return nil, errors.New("no billing client configured and webhook carried no trial window")
	}
	return s.trialWindows.TrialWindow(r.Context(), event.Data.CustomerID)
}
