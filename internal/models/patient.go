package models

import (
	"time"

	"github.com/google/uuid"
)

// Client represents a pet owner attached to an organization.
type Client struct {
	ClientID  uuid.UUID // UUIDv7
	OrgID     uuid.UUID // UUIDv7, FK to organizations
	FirstName string
	LastName  string
	Email     string
	Phone     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Patient represents an animal under care.
// Patients belong to an organization and to an owning client.
type Patient struct {
	PatientID uuid.UUID // UUIDv7
	OrgID     uuid.UUID // UUIDv7, FK to organizations
	ClientID  uuid.UUID // UUIDv7, FK to clients
	Name      string
	Species   string // "dog", "cat", "horse", ...
	Breed     string
	BirthDate *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}
