package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/osteovet/platform/internal/models"
	"github.com/osteovet/platform/internal/store"
)

// PatientStore implements store.PatientStore using PostgreSQL.
type PatientStore struct {
	pool *pgxpool.Pool
}

// NewPatientStore creates a new PostgreSQL-backed patient store.
func NewPatientStore(pool *pgxpool.Pool) *PatientStore {
	return &PatientStore{
		pool: pool,
	}
}

// CreateClient creates a new pet owner in the database.
func (s *PatientStore) CreateClient(ctx context.Context, client *models.Client) error {
	query := `
		INSERT INTO clients (
			client_id, org_id, first_name, last_name, email, phone,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8
		)
	`

	now := time.Now().UTC()
	if client.CreatedAt.IsZero() {
		client.CreatedAt = now
	}
	if client.UpdatedAt.IsZero() {
		client.UpdatedAt = now
	}

	_, err := s.pool.Exec(ctx, query,
		client.ClientID,
		client.OrgID,
		client.FirstName,
		client.LastName,
		client.Email,
		client.Phone,
		client.CreatedAt,
		client.UpdatedAt,
	)

	if err != nil {
		return mapPostgresError(fmt.Errorf("failed to create client: %w", err))
	}

	return nil
}

// Create creates a new patient in the database.
func (s *PatientStore) Create(ctx context.Context, patient *models.Patient) error {
	query := `
		INSERT INTO patients (
			patient_id, org_id, client_id, name, species, breed, birth_date,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9
		)
	`

	now := time.Now().UTC()
	if patient.CreatedAt.IsZero() {
		patient.CreatedAt = now
	}
	if patient.UpdatedAt.IsZero() {
		patient.UpdatedAt = now
	}

	_, err := s.pool.Exec(ctx, query,
		patient.PatientID,
		patient.OrgID,
		patient.ClientID,
		patient.Name,
		patient.Species,
		patient.Breed,
		patient.BirthDate,
		patient.CreatedAt,
		patient.UpdatedAt,
	)

	if err != nil {
		return mapPostgresError(fmt.Errorf("failed to create patient: %w", err))
	}

	return nil
}

// Get retrieves a patient by ID.
func (s *PatientStore) Get(ctx context.Context, patientID uuid.UUID) (*models.Patient, error) {
	query := `
		SELECT patient_id, org_id, client_id, name, species, breed, birth_date,
		       created_at, updated_at
		FROM patients
		WHERE patient_id = $1
	`

	var patient models.Patient
	err := s.pool.QueryRow(ctx, query, patientID).Scan(
		&patient.PatientID,
		&patient.OrgID,
		&patient.ClientID,
		&patient.Name,
		&patient.Species,
		&patient.Breed,
		&patient.BirthDate,
		&patient.CreatedAt,
		&patient.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrPatientNotFound
		}
		return nil, mapPostgresError(err)
	}

	return &patient, nil
}
