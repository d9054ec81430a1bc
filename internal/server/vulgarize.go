package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/osteovet/platform/internal/store"
	"github.com/osteovet/platform/internal/telemetry"
	"github.com/rs/zerolog/log"
)

type vulgarizeRequest struct {
	ReportID string `json:"reportId"`
}

// handleVulgarize rewrites a finalized report in plain language for the
// pet's owner.
func (s *Server) handleVulgarize(w http.ResponseWriter, r *http.Request) {
	if s.summarizer == nil {
		writeError(w, http.StatusServiceUnavailable, "Service de vulgarisation indisponible")
		return
	}

	var req vulgarizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		telemetry.ObserveVulgarization(telemetry.OutcomeValidation)
		writeError(w, http.StatusBadRequest, msgInvalidInput)
		return
	}

	reportID, err := uuid.Parse(req.ReportID)
	if err != nil {
		telemetry.ObserveVulgarization(telemetry.OutcomeValidation)
		writeError(w, http.StatusBadRequest, msgInvalidInput)
		return
	}

	report, err := s.observations.GetReport(r.Context(), reportID)
	if err != nil {
		if errors.Is(err, store.ErrReportNotFound) {
			telemetry.ObserveVulgarization(telemetry.OutcomeValidation)
			writeError(w, http.StatusNotFound, "Compte rendu introuvable")
			return
		}
		log.Error().Err(err).Str("report_id", req.ReportID).Msg("Failed to load report")
		telemetry.ObserveVulgarization(telemetry.OutcomeError)
		writeError(w, http.StatusInternalServerError, "Erreur lors de la vulgarisation")
		return
	}

	observations, err := s.observations.ListByReport(r.Context(), reportID)
	if err != nil {
		log.Error().Err(err).Str("report_id", req.ReportID).Msg("Failed to load observations")
		telemetry.ObserveVulgarization(telemetry.OutcomeError)
		writeError(w, http.StatusInternalServerError, "Erreur lors de la vulgarisation")
		return
	}

	summary, err := s.summarizer.Summarize(r.Context(), report, observations)
	if err != nil {
		log.Error().Err(err).Str("report_id", req.ReportID).Msg("Summarization failed")
		telemetry.ObserveVulgarization(telemetry.OutcomeError)
		writeError(w, http.StatusInternalServerError, "Erreur lors de la vulgarisation")
		return
	}

	telemetry.ObserveVulgarization(telemetry.OutcomeSuccess)
	writeData(w, http.StatusOK, map[string]string{
		"reportId": reportID.String(),
		"summary":  summary,
	})
}
