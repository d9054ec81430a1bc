package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/osteovet/platform/internal/models"
	"github.com/osteovet/platform/internal/store"
)

// PatientStore implements store.PatientStore using in-memory storage.
type PatientStore struct {
	mu sync.RWMutex

	clients  map[uuid.UUID]*models.Client  // client_id -> Client
	patients map[uuid.UUID]*models.Patient // patient_id -> Patient
}

// NewPatientStore creates a new in-memory patient store.
func NewPatientStore() *PatientStore {
	return &PatientStore{
		clients:  make(map[uuid.UUID]*models.Client),
		patients: make(map[uuid.UUID]*models.Patient),
	}
}

// CreateClient creates a new pet owner in memory.
func (s *PatientStore) CreateClient(ctx context.Context, client *models.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *client
	s.clients[client.ClientID] = &clone

	return nil
}

// Create creates a new patient in memory.
func (s *PatientStore) Create(ctx context.Context, patient *models.Patient) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *patient
	s.patients[patient.PatientID] = &clone

	return nil
}

// Get retrieves a patient by ID.
func (s *PatientStore) Get(ctx context.Context, patientID uuid.UUID) (*models.Patient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	patient, exists := s.patients[patientID]
	if !exists {
		return nil, store.ErrPatientNotFound
	}

	clone := *patient
	return &clone, nil
}
