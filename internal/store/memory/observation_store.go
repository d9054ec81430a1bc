package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/osteovet/platform/internal/models"
	"github.com/osteovet/platform/internal/store"
)

// ObservationStore implements store.ObservationStore using in-memory storage.
type ObservationStore struct {
	mu sync.RWMutex

	reports      map[uuid.UUID]*models.Report             // report_id -> Report
	observations map[uuid.UUID][]*models.AnatomicalObservation // patient_id -> observations
}

// NewObservationStore creates a new in-memory observation store.
func NewObservationStore() *ObservationStore {
	return &ObservationStore{
		reports:      make(map[uuid.UUID]*models.Report),
		observations: make(map[uuid.UUID][]*models.AnatomicalObservation),
	}
}

// CreateReport creates a new report in memory.
func (s *ObservationStore) CreateReport(ctx context.Context, report *models.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *report
	s.reports[report.ReportID] = &clone

	return nil
}

// GetReport retrieves a report by ID.
func (s *ObservationStore) GetReport(ctx context.Context, reportID uuid.UUID) (*models.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	report, exists := s.reports[reportID]
	if !exists {
		return nil, store.ErrReportNotFound
	}

	clone := *report
	return &clone, nil
}

// CreateObservation records one anatomical finding against a report.
// The report title and date are denormalized onto the record at read time
// in the postgres implementation; here they are expected on the record or
// resolved from the stored report.
func (s *ObservationStore) CreateObservation(ctx context.Context, patientID uuid.UUID, obs *models.AnatomicalObservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *obs
	if report, exists := s.reports[obs.ReportID]; exists {
		clone.ReportTitle = report.Title
		clone.ReportDate = report.ReportDate
	}
	s.observations[patientID] = append(s.observations[patientID], &clone)

	return nil
}

// ListByPatientPart returns the observation history for one patient and one
// anatomical part, newest report first.
func (s *ObservationStore) ListByPatientPart(ctx context.Context, patientID, partID uuid.UUID, typeFilter models.ObservationType) ([]*models.AnatomicalObservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*models.AnatomicalObservation
	for _, obs := range s.observations[patientID] {
		if obs.PartID != partID {
			continue
		}
		if typeFilter != "" && obs.Type != typeFilter {
			continue
		}
		clone := *obs
		result = append(result, &clone)
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].ReportDate.After(result[j].ReportDate)
	})

	return result, nil
}

// ListByReport returns all observations recorded on a single report.
func (s *ObservationStore) ListByReport(ctx context.Context, reportID uuid.UUID) ([]*models.AnatomicalObservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, exists := s.reports[reportID]; !exists {
		return nil, store.ErrReportNotFound
	}

	var result []*models.AnatomicalObservation
	for _, byPatient := range s.observations {
		for _, obs := range byPatient {
			if obs.ReportID == reportID {
				clone := *obs
				result = append(result, &clone)
			}
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].PartName < result[j].PartName
	})

	return result, nil
}
