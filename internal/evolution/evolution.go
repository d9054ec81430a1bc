// Package evolution answers "how has this anatomical-region problem trended
// over this patient's history?". It is a pure read path: validate, one
// query, one in-memory pass annotating consecutive records with a severity
// trend. Safe for unlimited concurrent use.
package evolution

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/osteovet/platform/internal/models"
	"github.com/osteovet/platform/internal/store"
)

// CurrentIssue describes the finding being recorded, used to scope the
// history query. Trends are computed between consecutive historical
// records only, never against this hypothetical new one.
type CurrentIssue struct {
	Type       models.ObservationType `json:"type"`
	Severity   int                    `json:"severity"`
	Laterality models.Laterality      `json:"laterality"`
	Notes      string                 `json:"notes,omitempty"`
}

// AnalyzeRequest is the evolution request payload.
type AnalyzeRequest struct {
	PetID        string       `json:"petId"`
	PartID       string       `json:"anatomicalPartId"`
	CurrentIssue CurrentIssue `json:"currentIssue"`
}

// FieldError is one field-level validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError reports malformed input. It is raised before any query
// executes, so a request that fails validation never touches the database.
type ValidationError struct {
	Details []FieldError
}

func (e *ValidationError) Error() string {
	fields := make([]string, len(e.Details))
	for i, d := range e.Details {
		fields[i] = d.Field
	}
	return fmt.Sprintf("invalid input: %s", strings.Join(fields, ", "))
}

// Entry is one historical observation annotated with its computed trend.
// Trend is nil for the oldest record in the sequence (nothing older to
// compare against).
type Entry struct {
	ObservationID uuid.UUID             `json:"id"`
	ReportID      uuid.UUID             `json:"reportId"`
	ReportTitle   string                `json:"reportTitle"`
	ReportDate    time.Time             `json:"reportDate"`
	PartID        uuid.UUID             `json:"anatomicalPartId"`
	PartName      string                `json:"anatomicalPartName"`
	Type          models.ObservationType `json:"type"`
	Severity      int                   `json:"severity"`
	Laterality    models.Laterality     `json:"laterality"`
	Notes         string                `json:"notes,omitempty"`
	Trend         *models.SeverityTrend `json:"trend,omitempty"`
}

// Comparator computes per-region severity evolution from observation
// history.
type Comparator struct {
	observations store.ObservationStore
}

// NewComparator creates a comparator over the given observation store.
func NewComparator(observations store.ObservationStore) *Comparator {
	return &Comparator{
		observations: observations,
	}
}

// Analyze validates the request, fetches the history for the patient and
// anatomical part (restricted to the current issue's type), and annotates
// each record with its trend relative to the next-older record. Zero
// history yields an empty sequence; a single record carries no trend.
func (c *Comparator) Analyze(ctx context.Context, req AnalyzeRequest) ([]Entry, error) {
	patientID, partID, verr := validate(req)
	if verr != nil {
		return nil, verr
	}

	history, err := c.observations.ListByPatientPart(ctx, patientID, partID, req.CurrentIssue.Type)
	if err != nil {
		return nil, fmt.Errorf("failed to load observation history: %w", err)
	}

	return AnnotateTrends(history), nil
}

// AnnotateTrends computes the trend for each record of a history sorted
// newest-first: record i is compared to record i+1 (the next-older one).
// The last record has no trend.
func AnnotateTrends(history []*models.AnatomicalObservation) []Entry {
	entries := make([]Entry, 0, len(history))
	for i, obs := range history {
		entry := Entry{
			ObservationID: obs.ObservationID,
			ReportID:      obs.ReportID,
			ReportTitle:   obs.ReportTitle,
			ReportDate:    obs.ReportDate,
			PartID:        obs.PartID,
			PartName:      obs.PartName,
			Type:          obs.Type,
			Severity:      obs.Severity,
			Laterality:    obs.Laterality,
			Notes:         obs.Notes,
		}
		if i < len(history)-1 {
			trend := models.CompareSeverity(obs.Severity, history[i+1].Severity)
			entry.Trend = &trend
		}
		entries = append(entries, entry)
	}
	return entries
}

func validate(req AnalyzeRequest) (patientID, partID uuid.UUID, verr *ValidationError) {
	var details []FieldError

	patientID, err := uuid.Parse(req.PetID)
	if err != nil {
		details = append(details, FieldError{Field: "petId", Message: "identifiant invalide"})
	}

	partID, err = uuid.Parse(req.PartID)
	if err != nil {
		details = append(details, FieldError{Field: "anatomicalPartId", Message: "identifiant invalide"})
	}

	if !req.CurrentIssue.Type.Valid() {
		details = append(details, FieldError{Field: "currentIssue.type", Message: "type d'observation inconnu"})
	}

	if !models.ValidSeverity(req.CurrentIssue.Severity) {
		details = append(details, FieldError{
			Field:   "currentIssue.severity",
			Message: fmt.Sprintf("la sévérité doit être comprise entre %d et %d", models.SeverityMin, models.SeverityMax),
		})
	}

	if !req.CurrentIssue.Laterality.Valid() {
		details = append(details, FieldError{Field: "currentIssue.laterality", Message: "latéralité inconnue"})
	}

	if len(details) > 0 {
		return uuid.Nil, uuid.Nil, &ValidationError{Details: details}
	}

	return patientID, partID, nil
}
