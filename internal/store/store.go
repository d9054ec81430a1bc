package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/osteovet/platform/internal/models"
)

// Sentinel errors for common error conditions
var (
	ErrOrganizationNotFound      = errors.New("organization not found")
	ErrOrganizationAlreadyExists = errors.New("organization already exists")
	ErrPatientNotFound           = errors.New("patient not found")
	ErrReportNotFound            = errors.New("report not found")
	ErrTaskNotFound              = errors.New("trial task not found")
	ErrReceiptMismatch           = errors.New("receipt handle mismatch")
)

// OrganizationStore persists organizations (tenants).
type OrganizationStore interface {
	Create(ctx context.Context, org *models.Organization) error
	Get(ctx context.Context, orgID uuid.UUID) (*models.Organization, error)
	// Exists is the cheap existence probe used by the trial orchestrator
	// before every send.
	Exists(ctx context.Context, orgID uuid.UUID) (bool, error)
	Delete(ctx context.Context, orgID uuid.UUID) error
}

// PatientStore persists pet owners and their patients (animals).
type PatientStore interface {
	CreateClient(ctx context.Context, client *models.Client) error
	Create(ctx context.Context, patient *models.Patient) error
	Get(ctx context.Context, patientID uuid.UUID) (*models.Patient, error)
}

// ObservationStore persists reports and their anatomical observations.
type ObservationStore interface {
	CreateReport(ctx context.Context, report *models.Report) error
	GetReport(ctx context.Context, reportID uuid.UUID) (*models.Report, error)
	CreateObservation(ctx context.Context, patientID uuid.UUID, obs *models.AnatomicalObservation) error

	// ListByPatientPart returns the observation history for one patient and
	// one anatomical part, newest report first. A non-empty typeFilter
	// restricts the history to that observation type.
	ListByPatientPart(ctx context.Context, patientID, partID uuid.UUID, typeFilter models.ObservationType) ([]*models.AnatomicalObservation, error)

	// ListByReport returns all observations recorded on a single report.
	ListByReport(ctx context.Context, reportID uuid.UUID) ([]*models.AnatomicalObservation, error)
}

// TrialTaskStore is the durable-task backend for the trial email sequence.
// Steps are scheduled with a run-after timestamp and claimed with a
// visibility timeout; idempotency is enforced on (org_id, step).
type TrialTaskStore interface {
	// ScheduleSequence inserts one task row per offset, with
	// run_after = now + offset. Each row carries the trial window end for
	// later rendering. Steps that already exist for the organization are
	// left untouched. Returns the number of steps actually inserted.
	ScheduleSequence(ctx context.Context, orgID uuid.UUID, now, trialEnd time.Time, offsets []time.Duration) (int, error)

	// ClaimDue atomically claims up to maxTasks due tasks, moving them to
	// the running state for visibilityTimeout. Each claimed task carries a
	// fresh receipt handle which must accompany Complete/Fail/Release.
	ClaimDue(ctx context.Context, maxTasks int, visibilityTimeout time.Duration) ([]*models.TrialTask, error)

	// Complete marks a claimed task as completed.
	Complete(ctx context.Context, taskID, receipt uuid.UUID) error

	// Fail marks a claimed task as terminally failed and records the cause.
	Fail(ctx context.Context, taskID, receipt uuid.UUID, cause string) error

	// Release returns a claimed task to the scheduled state so another
	// runner can retry it after its run_after instant.
	Release(ctx context.Context, taskID, receipt uuid.UUID) error

	// CancelPending terminally fails every scheduled task for an
	// organization. Used when the organization is deleted mid-sequence.
	// Returns the number of tasks cancelled.
	CancelPending(ctx context.Context, orgID uuid.UUID, cause string) (int, error)

	// CountCompleted reports how many steps of the sequence have run for
	// an organization.
	CountCompleted(ctx context.Context, orgID uuid.UUID) (int, error)
}
