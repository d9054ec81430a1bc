package models

import (
	"time"

	"github.com/google/uuid"
)

// TrialTaskState tracks the lifecycle of one durable trial step.
const (
	TrialTaskScheduled = "scheduled" // waiting for run_after
	TrialTaskRunning   = "running"   // claimed by a runner, visibility timeout active
	TrialTaskCompleted = "completed" // email sent
	TrialTaskFailed    = "failed"    // terminal, e.g. organization deleted mid-flight
)

// TrialTask is one persisted step of an organization's trial email sequence.
// The (OrgID, Step) pair is the idempotency key: re-triggering the sequence
// for an organization never schedules a step twice. RunAfter is the wall-clock
// instant the step becomes due; VisibilityUntil and ReceiptHandle implement
// at-least-once claiming, so a runner crash just makes the step claimable
// again once the visibility timeout lapses.
type TrialTask struct {
	TaskID          uuid.UUID // UUIDv7
	OrgID           uuid.UUID // UUIDv7, FK to organizations
	Step            int       // 0..3, index into the lifecycle plan
	State           string
	TrialEnd        time.Time // end of the trial window, rendered into emails
	RunAfter        time.Time
	VisibilityUntil *time.Time
	ReceiptHandle   *uuid.UUID
	Attempts        int
	LastError       string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
