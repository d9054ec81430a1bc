package trial

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/osteovet/platform/internal/models"
	"github.com/osteovet/platform/internal/store"
	"github.com/osteovet/platform/internal/telemetry"
	"github.com/rs/zerolog/log"
)

// RunnerConfig tunes the polling loop.
type RunnerConfig struct {
	// PollInterval is how often the runner looks for due steps.
	// Default: 5 seconds.
	PollInterval time.Duration

	// VisibilityTimeout is how long a claimed step stays invisible to other
	// runners. Must comfortably exceed one send. Default: 2 minutes.
	VisibilityTimeout time.Duration

	// MaxTasksPerPoll bounds how many steps one poll claims. Default: 10.
	MaxTasksPerPoll int
}

// ApplyDefaults applies default values to unset configuration fields.
func (c *RunnerConfig) ApplyDefaults() {
	if c.PollInterval == 0 {
		c.PollInterval = 5 * time.Second
	}
	if c.VisibilityTimeout == 0 {
		c.VisibilityTimeout = 2 * time.Minute
	}
	if c.MaxTasksPerPoll == 0 {
		c.MaxTasksPerPoll = 10
	}
}

// Runner polls the durable task store for due trial steps and executes them
// through the orchestrator. Multiple runners can share one store; the claim
// query guarantees each step runs on one runner at a time, and the
// visibility timeout resumes steps whose runner died mid-send.
type Runner struct {
	tasks store.TrialTaskStore
	orch  *Orchestrator
	cfg   RunnerConfig
}

// NewRunner creates a runner over the given task store and orchestrator.
func NewRunner(tasks store.TrialTaskStore, orch *Orchestrator, cfg RunnerConfig) *Runner {
	cfg.ApplyDefaults()
	return &Runner{
		tasks: tasks,
		orch:  orch,
		cfg:   cfg,
	}
}

// Run polls until the context is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	log.Info().
		Dur("poll_interval", r.cfg.PollInterval).
		Dur("visibility_timeout", r.cfg.VisibilityTimeout).
		Msg("Trial runner starting")

	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.poll(ctx)
		case <-ctx.Done():
			log.Info().Msg("Trial runner stopping")
			return nil
		}
	}
}

// Poll runs a single claim-and-execute pass. Exposed so callers (and tests)
// can drive the runner without the ticker.
func (r *Runner) Poll(ctx context.Context) {
	r.poll(ctx)
}

func (r *Runner) poll(ctx context.Context) {
	claimed, err := backoff.Retry(ctx, func() ([]*models.TrialTask, error) {
		return r.tasks.ClaimDue(ctx, r.cfg.MaxTasksPerPoll, r.cfg.VisibilityTimeout)
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(3),
	)
	if err != nil {
		log.Error().Err(err).Msg("Failed to claim due trial tasks")
		return
	}

	for _, task := range claimed {
		r.runTask(ctx, task)
	}
}

func (r *Runner) runTask(ctx context.Context, task *models.TrialTask) {
	if task.ReceiptHandle == nil {
		log.Error().Str("task_id", task.TaskID.String()).Msg("Claimed task has no receipt handle")
		return
	}
	receipt := *task.ReceiptHandle

	err := r.orch.ExecuteStep(ctx, task)
	switch {
	case err == nil:
		if err := r.tasks.Complete(ctx, task.TaskID, receipt); err != nil {
			log.Error().Err(err).Str("task_id", task.TaskID.String()).Msg("Failed to complete trial task")
			return
		}
		telemetry.ObserveTrialEmail(string(Plan()[task.Step].Kind))

	case errors.Is(err, store.ErrOrganizationNotFound):
		// Terminal for the whole sequence: the organization was deleted
		// mid-flight. No email was sent for this step and none of the
		// remaining steps should run.
		log.Warn().
			Str("org_id", task.OrgID.String()).
			Int("step", task.Step).
			Msg("Organization gone, abandoning trial sequence")

		if err := r.tasks.Fail(ctx, task.TaskID, receipt, "organization deleted"); err != nil {
			log.Error().Err(err).Str("task_id", task.TaskID.String()).Msg("Failed to fail trial task")
		}
		if _, err := r.tasks.CancelPending(ctx, task.OrgID, "organization deleted"); err != nil {
			log.Error().Err(err).Str("org_id", task.OrgID.String()).Msg("Failed to cancel pending trial tasks")
		}
		telemetry.ObserveTrialStepFailure("organization_missing")

	default:
		// Transient (render or provider failure): release the claim so the
		// step is retried on a later poll.
		log.Error().
			Err(err).
			Str("org_id", task.OrgID.String()).
			Int("step", task.Step).
			Msg("Trial step failed, releasing for retry")

		if err := r.tasks.Release(ctx, task.TaskID, receipt); err != nil {
			log.Error().Err(err).Str("task_id", task.TaskID.String()).Msg("Failed to release trial task")
		}
		telemetry.ObserveTrialStepFailure("transient")
	}
}
