package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/osteovet/platform/internal/models"
	"github.com/osteovet/platform/internal/store"
	"github.com/rs/zerolog/log"
)

// ObservationStore implements store.ObservationStore using PostgreSQL.
// Observation reads join the owning report so every record carries its
// report title and date, the ordering key for trend analysis.
type ObservationStore struct {
	pool *pgxpool.Pool
}

// NewObservationStore creates a new PostgreSQL-backed observation store.
func NewObservationStore(pool *pgxpool.Pool) *ObservationStore {
	return &ObservationStore{
		pool: pool,
	}
}

// CreateReport creates a new report in the database.
func (s *ObservationStore) CreateReport(ctx context.Context, report *models.Report) error {
	query := `
		INSERT INTO reports (
			report_id, patient_id, title, report_date, finalized, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7
		)
	`

	_, err := s.pool.Exec(ctx, query,
		report.ReportID,
		report.PatientID,
		report.Title,
		report.ReportDate,
		report.Finalized,
		report.CreatedAt,
		report.UpdatedAt,
	)

	if err != nil {
		return mapPostgresError(fmt.Errorf("failed to create report: %w", err))
	}

	return nil
}

// GetReport retrieves a report by ID.
func (s *ObservationStore) GetReport(ctx context.Context, reportID uuid.UUID) (*models.Report, error) {
	query := `
		SELECT report_id, patient_id, title, report_date, finalized, created_at, updated_at
		FROM reports
		WHERE report_id = $1
	`

	var report models.Report
	err := s.pool.QueryRow(ctx, query, reportID).Scan(
		&report.ReportID,
		&report.PatientID,
		&report.Title,
		&report.ReportDate,
		&report.Finalized,
		&report.CreatedAt,
		&report.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrReportNotFound
		}
		return nil, mapPostgresError(err)
	}

	return &report, nil
}

// CreateObservation records one anatomical finding against a report.
func (s *ObservationStore) CreateObservation(ctx context.Context, patientID uuid.UUID, obs *models.AnatomicalObservation) error {
	query := `
		INSERT INTO anatomical_observations (
			observation_id, report_id, patient_id, part_id, part_name,
			type, severity, laterality, notes
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9
		)
	`

	_, err := s.pool.Exec(ctx, query,
		obs.ObservationID,
		obs.ReportID,
		patientID,
		obs.PartID,
		obs.PartName,
		obs.Type,
		obs.Severity,
		obs.Laterality,
		obs.Notes,
	)

	if err != nil {
		return mapPostgresError(fmt.Errorf("failed to create observation: %w", err))
	}

	log.Debug().
		Str("report_id", obs.ReportID.String()).
		Str("part_id", obs.PartID.String()).
		Int("severity", obs.Severity).
		Msg("Created observation")

	return nil
}

// ListByPatientPart returns the observation history for one patient and one
// anatomical part, newest report first.
func (s *ObservationStore) ListByPatientPart(ctx context.Context, patientID, partID uuid.UUID, typeFilter models.ObservationType) ([]*models.AnatomicalObservation, error) {
	query := `
		SELECT o.observation_id, o.report_id, r.title, r.report_date,
		       o.part_id, o.part_name, o.type, o.severity, o.laterality, o.notes
		FROM anatomical_observations o
		JOIN reports r ON r.report_id = o.report_id
		WHERE o.patient_id = $1
		  AND o.part_id = $2
	`

	args := []any{patientID, partID}
	if typeFilter != "" {
		query += " AND o.type = $3"
		args = append(args, typeFilter)
	}
	query += " ORDER BY r.report_date DESC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, mapPostgresError(err)
	}
	defer rows.Close()

	return scanObservations(rows)
}

// ListByReport returns all observations recorded on a single report.
func (s *ObservationStore) ListByReport(ctx context.Context, reportID uuid.UUID) ([]*models.AnatomicalObservation, error) {
	query := `
		SELECT o.observation_id, o.report_id, r.title, r.report_date,
		       o.part_id, o.part_name, o.type, o.severity, o.laterality, o.notes
		FROM anatomical_observations o
		JOIN reports r ON r.report_id = o.report_id
		WHERE o.report_id = $1
		ORDER BY o.part_name ASC
	`

	rows, err := s.pool.Query(ctx, query, reportID)
	if err != nil {
		return nil, mapPostgresError(err)
	}
	defer rows.Close()

	return scanObservations(rows)
}

func scanObservations(rows pgx.Rows) ([]*models.AnatomicalObservation, error) {
	var observations []*models.AnatomicalObservation
	for rows.Next() {
		var obs models.AnatomicalObservation
		err := rows.Scan(
			&obs.ObservationID,
			&obs.ReportID,
			&obs.ReportTitle,
			&obs.ReportDate,
			&obs.PartID,
			&obs.PartName,
			&obs.Type,
			&obs.Severity,
			&obs.Laterality,
			&obs.Notes,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan observation: %w", err)
		}
		observations = append(observations, &obs)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating observations: %w", err)
	}

	return observations, nil
}
