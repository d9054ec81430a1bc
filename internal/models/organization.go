package models

import (
	"time"

	"github.com/google/uuid"
)

// Organization represents a practice (tenant) in the system.
// Each organization owns its clients, patients and reports.
type Organization struct {
	OrgID             uuid.UUID // UUIDv7
	Name              string
	Email             string // contact address, target of lifecycle emails
	BillingCustomerID string // customer ID in the billing system of record
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
