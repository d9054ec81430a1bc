package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/osteovet/platform/internal/evolution"
	"github.com/osteovet/platform/internal/telemetry"
	"github.com/rs/zerolog/log"
)

const (
	msgInvalidInput  = "Données invalides"
	msgAnalysisError = "Erreur lors de l'analyse"
)

func (s *Server) handleEvolution(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	var req evolution.AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		telemetry.ObserveEvolutionAnalysis(time.Since(started), telemetry.OutcomeValidation)
		writeJSON(w, http.StatusBadRequest, envelope{
			Success: false,
			Error:   msgInvalidInput,
			Details: []evolution.FieldError{{Field: "body", Message: "JSON invalide"}},
		})
		return
	}

	entries, err := s.comparator.Analyze(r.Context(), req)
	if err != nil {
		var verr *evolution.ValidationError
		if errors.As(err, &verr) {
			telemetry.ObserveEvolutionAnalysis(time.Since(started), telemetry.OutcomeValidation)
			writeJSON(w, http.StatusBadRequest, envelope{
				Success: false,
				Error:   msgInvalidInput,
				Details: verr.Details,
			})
			return
		}

		log.Error().Err(err).
			Str("pet_id", req.PetID).
			Str("part_id", req.PartID).
			Str("client_ip", clientIP(r)).
			Msg("Evolution analysis failed")
		telemetry.ObserveEvolutionAnalysis(time.Since(started), telemetry.OutcomeError)
		writeError(w, http.StatusInternalServerError, msgAnalysisError)
		return
	}

	telemetry.ObserveEvolutionAnalysis(time.Since(started), telemetry.OutcomeSuccess)
	writeData(w, http.StatusOK, entries)
}
