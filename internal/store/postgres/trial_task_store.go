package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/osteovet/platform/internal/models"
	"github.com/osteovet/platform/internal/store"
	"github.com/rs/zerolog/log"
)

// TrialTaskStore implements store.TrialTaskStore using PostgreSQL.
// It provides the durable-task semantics the trial runner relies on:
// run-after scheduling, claim with visibility timeout, and idempotent
// sequence creation keyed on (org_id, step).
type TrialTaskStore struct {
	pool *pgxpool.Pool
}

// NewTrialTaskStore creates a new PostgreSQL-backed trial task store.
func NewTrialTaskStore(pool *pgxpool.Pool) *TrialTaskStore {
	return &TrialTaskStore{
		pool: pool,
	}
}

// ScheduleSequence inserts one task row per offset with
// run_after = now + offset. Existing (org_id, step) rows are left untouched,
// so re-triggering the sequence is a no-op for steps already scheduled.
func (s *TrialTaskStore) ScheduleSequence(ctx context.Context, orgID uuid.UUID, now, trialEnd time.Time, offsets []time.Duration) (int, error) {
	query := `
		INSERT INTO trial_tasks (
			task_id, org_id, step, state, trial_end, run_after, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $7
		)
		ON CONFLICT (org_id, step) DO NOTHING
	`

	inserted := 0
	for step, offset := range offsets {
		taskID := uuid.Must(uuid.NewV7())
		result, err := s.pool.Exec(ctx, query,
			taskID,
			orgID,
			step,
			models.TrialTaskScheduled,
			trialEnd,
			now.Add(offset),
			now,
		)
		if err != nil {
			return inserted, mapPostgresError(fmt.Errorf("failed to schedule step %d: %w", step, err))
		}
		inserted += int(result.RowsAffected())
	}

	log.Info().
		Str("org_id", orgID.String()).
		Int("steps", len(offsets)).
		Int("inserted", inserted).
		Msg("Scheduled trial sequence")

	return inserted, nil
}

// ClaimDue claims up to maxTasks due tasks using FOR UPDATE SKIP LOCKED, so
// concurrent runners never claim the same step twice. A task is due when its
// run_after has passed and it is either scheduled or stuck in a running
// claim whose visibility timeout has expired (runner crash).
func (s *TrialTaskStore) ClaimDue(ctx context.Context, maxTasks int, visibilityTimeout time.Duration) ([]*models.TrialTask, error) {
	query := `
		WITH claimable AS (
			SELECT task_id
			FROM trial_tasks
			WHERE state IN ($1, $3)
			  AND run_after <= NOW()
			  AND (visibility_until IS NULL OR visibility_until < NOW())
			ORDER BY run_after ASC
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		UPDATE trial_tasks
		SET
			state = $3,
			visibility_until = NOW() + $4 * INTERVAL '1 second',
			receipt_handle = gen_random_uuid(),
			attempts = attempts + 1,
			updated_at = NOW()
		FROM claimable
		WHERE trial_tasks.task_id = claimable.task_id
		RETURNING trial_tasks.task_id, trial_tasks.org_id, trial_tasks.step,
		          trial_tasks.state, trial_tasks.trial_end, trial_tasks.run_after,
		          trial_tasks.visibility_until, trial_tasks.receipt_handle,
		          trial_tasks.attempts, trial_tasks.created_at, trial_tasks.updated_at
	`

	rows, err := s.pool.Query(ctx, query,
		models.TrialTaskScheduled,
		maxTasks,
		models.TrialTaskRunning,
		int(visibilityTimeout.Seconds()),
	)
	if err != nil {
		return nil, mapPostgresError(err)
	}
	defer rows.Close()

	var tasks []*models.TrialTask
	for rows.Next() {
		var task models.TrialTask
		err := rows.Scan(
			&task.TaskID,
			&task.OrgID,
			&task.Step,
			&task.State,
			&task.TrialEnd,
			&task.RunAfter,
			&task.VisibilityUntil,
			&task.ReceiptHandle,
			&task.Attempts,
			&task.CreatedAt,
			&task.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trial task: %w", err)
		}
		tasks = append(tasks, &task)
	}

	if err := rows.Err(); err != nil {
		return nil, mapPostgresError(err)
	}

	if len(tasks) > 0 {
		log.Info().Int("claimed", len(tasks)).Msg("Claimed due trial tasks")
	}

	return tasks, nil
}

// Complete marks a claimed task as completed and clears its claim columns.
func (s *TrialTaskStore) Complete(ctx context.Context, taskID, receipt uuid.UUID) error {
	return s.finish(ctx, taskID, receipt, models.TrialTaskCompleted, "")
}

// Fail marks a claimed task as terminally failed and records the cause.
func (s *TrialTaskStore) Fail(ctx context.Context, taskID, receipt uuid.UUID, cause string) error {
	return s.finish(ctx, taskID, receipt, models.TrialTaskFailed, cause)
}

func (s *TrialTaskStore) finish(ctx context.Context, taskID, receipt uuid.UUID, state, cause string) error {
	query := `
		UPDATE trial_tasks
		SET
			state = $1,
			last_error = $2,
			visibility_until = NULL,
			receipt_handle = NULL,
			updated_at = NOW()
		WHERE task_id = $3
		  AND receipt_handle = $4
	`

	result, err := s.pool.Exec(ctx, query, state, cause, taskID, receipt)
	if err != nil {
		return mapPostgresError(err)
	}

	if result.RowsAffected() == 0 {
		return s.claimError(ctx, taskID)
	}

	log.Info().
		Str("task_id", taskID.String()).
		Str("state", state).
		Msg("Finished trial task")

	return nil
}

// claimError reports why an update guarded by (task_id, receipt_handle)
// touched no row: either the task does not exist, or its receipt handle was
// rotated by a later claim.
func (s *TrialTaskStore) claimError(ctx context.Context, taskID uuid.UUID) error {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM trial_tasks WHERE task_id = $1)
	`, taskID).Scan(&exists)
	if err != nil {
		return mapPostgresError(err)
	}
	if !exists {
		return fmt.Errorf("%w: task %s", store.ErrTaskNotFound, taskID)
	}
	return fmt.Errorf("%w: task %s", store.ErrReceiptMismatch, taskID)
}

// Release returns a claimed task to the scheduled state. The task becomes
// claimable again once its run_after instant has passed, which for released
// tasks is immediately.
func (s *TrialTaskStore) Release(ctx context.Context, taskID, receipt uuid.UUID) error {
	query := `
		UPDATE trial_tasks
		SET
			state = $1,
			visibility_until = NULL,
			receipt_handle = NULL,
			updated_at = NOW()
		WHERE task_id = $2
		  AND receipt_handle = $3
	`

	result, err := s.pool.Exec(ctx, query, models.TrialTaskScheduled, taskID, receipt)
	if err != nil {
		return mapPostgresError(err)
	}

	if result.RowsAffected() == 0 {
		return s.claimError(ctx, taskID)
	}

	log.Info().
		Str("task_id", taskID.String()).
		Msg("Released trial task back to queue")

	return nil
}

// CancelPending terminally fails every scheduled task for an organization.
func (s *TrialTaskStore) CancelPending(ctx context.Context, orgID uuid.UUID, cause string) (int, error) {
	query := `
		UPDATE trial_tasks
		SET
			state = $1,
			last_error = $2,
			visibility_until = NULL,
			receipt_handle = NULL,
			updated_at = NOW()
		WHERE org_id = $3
		  AND state = $4
	`

	result, err := s.pool.Exec(ctx, query,
		models.TrialTaskFailed,
		cause,
		orgID,
		models.TrialTaskScheduled,
	)
	if err != nil {
		return 0, mapPostgresError(err)
	}

	cancelled := int(result.RowsAffected())
	if cancelled > 0 {
		log.Info().
			Str("org_id", orgID.String()).
			Int("cancelled", cancelled).
			Msg("Cancelled pending trial tasks")
	}

	return cancelled, nil
}

// CountCompleted reports how many steps of the sequence have run for an
// organization.
func (s *TrialTaskStore) CountCompleted(ctx context.Context, orgID uuid.UUID) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM trial_tasks
		WHERE org_id = $1 AND state = $2
	`, orgID, models.TrialTaskCompleted).Scan(&count)
	if err != nil {
		return 0, mapPostgresError(err)
	}
	return count, nil
}
