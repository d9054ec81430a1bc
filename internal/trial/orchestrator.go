// Package trial drives the onboarding email sequence for newly subscribed
// organizations. The sequence is a fixed four-step plan (welcome, follow-up,
// first reminder, final alert) at 0/5/10/14 days from subscription, persisted
// as durable tasks so multi-day waits survive process restarts. One logical
// sequence runs per organization; (org, step) is the idempotency key
// throughout.
package trial

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/osteovet/platform/internal/mailer"
	"github.com/osteovet/platform/internal/models"
	"github.com/osteovet/platform/internal/store"
	"github.com/rs/zerolog/log"
)

// StartParams is the trigger payload for a trial sequence. All fields are
// required; the caller (the billing webhook handler) resolves them from the
// billing system of record before invoking Begin.
type StartParams struct {
	OrgID      uuid.UUID
	OrgName    string
	OrgEmail   string
	TrialStart time.Time
	TrialEnd   time.Time
}

// Validate checks the trigger payload.
func (p StartParams) Validate() error {
	if p.OrgID == uuid.Nil {
		return fmt.Errorf("organization ID is required")
	}
	if p.OrgName == "" {
		return fmt.Errorf("organization name is required")
	}
	if p.OrgEmail == "" {
		return fmt.Errorf("organization email is required")
	}
	if p.TrialStart.IsZero() || p.TrialEnd.IsZero() {
		return fmt.Errorf("trial start and end are required")
	}
	if !p.TrialEnd.After(p.TrialStart) {
		return fmt.Errorf("trial end must be after trial start")
	}
	return nil
}

// Config holds the static inputs of every lifecycle email.
type Config struct {
	FromAddress string
	UpgradeURL  string
	CancelURL   string
}

// BeginResult reports what Begin scheduled.
type BeginResult struct {
	OrgID          uuid.UUID
	StepsScheduled int
}

// Orchestrator owns the trial lifecycle sequence: it verifies the
// organization, schedules the durable steps, and executes each step when the
// runner claims it.
type Orchestrator struct {
	orgs   store.OrganizationStore
	tasks  store.TrialTaskStore
	sender mailer.Mailer
	cfg    Config

	// now is swappable so tests can drive the clock.
	now func() time.Time
}

// NewOrchestrator wires the orchestrator to its collaborators.
func NewOrchestrator(orgs store.OrganizationStore, tasks store.TrialTaskStore, sender mailer.Mailer, cfg Config) *Orchestrator {
	return &Orchestrator{
		orgs:   orgs,
		tasks:  tasks,
		sender: sender,
		cfg:    cfg,
		now:    time.Now,
	}
}

// SetClock replaces the orchestrator clock. Tests use this to pin sequence
// start.
func (o *Orchestrator) SetClock(now func() time.Time) {
	o.now = now
}

// Begin verifies the organization still exists and schedules the four
// lifecycle steps. A missing organization is terminal: nothing is scheduled
// and store.ErrOrganizationNotFound is returned. Re-invocation for an
// organization with an in-flight sequence is a no-op for steps already
// scheduled.
func (o *Orchestrator) Begin(ctx context.Context, params StartParams) (*BeginResult, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid trial parameters: %w", err)
	}

	exists, err := o.orgs.Exists(ctx, params.OrgID)
	if err != nil {
		return nil, fmt.Errorf("failed to verify organization: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", store.ErrOrganizationNotFound, params.OrgID)
	}

	scheduled, err := o.tasks.ScheduleSequence(ctx, params.OrgID, o.now(), params.TrialEnd, Offsets())
	if err != nil {
		return nil, fmt.Errorf("failed to schedule trial sequence: %w", err)
	}

	log.Info().
		Str("org_id", params.OrgID.String()).
		Time("trial_start", params.TrialStart).
		Time("trial_end", params.TrialEnd).
		Int("steps_scheduled", scheduled).
		Msg("Started trial sequence")

	return &BeginResult{
		OrgID:          params.OrgID,
		StepsScheduled: scheduled,
	}, nil
}

// ExecuteStep runs one claimed step: re-verify the organization, render the
// step's email, send it. A missing organization is terminal
// (store.ErrOrganizationNotFound); no email is sent. Send failures propagate
// unhandled - resumption belongs to the runner's claim/release policy, and
// sends are idempotent at the provider per (org, step).
func (o *Orchestrator) ExecuteStep(ctx context.Context, task *models.TrialTask) error {
	plan := Plan()
	if task.Step < 0 || task.Step >= len(plan) {
		return fmt.Errorf("unknown trial step %d", task.Step)
	}
	step := plan[task.Step]

	org, err := o.orgs.Get(ctx, task.OrgID)
	if err != nil {
		// Includes store.ErrOrganizationNotFound, which the runner treats
		// as terminal for the whole sequence.
		return fmt.Errorf("failed to load organization for step %s: %w", step.Kind, err)
	}

	html, err := renderStep(step, org.Name, task.TrialEnd, o.cfg.UpgradeURL, o.cfg.CancelURL)
	if err != nil {
		return err
	}

	err = o.sender.Send(ctx, mailer.Message{
		From:    o.cfg.FromAddress,
		To:      org.Email,
		Subject: step.Subject,
		HTML:    html,
	})
	if err != nil {
		return fmt.Errorf("failed to send %s email: %w", step.Kind, err)
	}

	log.Info().
		Str("org_id", task.OrgID.String()).
		Int("step", task.Step).
		Str("kind", string(step.Kind)).
		Msg("Sent trial lifecycle email")

	return nil
}

// EmailsSent reports how many lifecycle emails have gone out for an
// organization. When the full plan has run this equals len(Plan()).
func (o *Orchestrator) EmailsSent(ctx context.Context, orgID uuid.UUID) (int, error) {
	return o.tasks.CountCompleted(ctx, orgID)
}
