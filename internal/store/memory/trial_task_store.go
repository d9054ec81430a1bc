package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/osteovet/platform/internal/models"
	"github.com/osteovet/platform/internal/store"
)

// TrialTaskStore implements store.TrialTaskStore using in-memory storage.
// It mirrors the postgres claim semantics (run-after, visibility timeout,
// receipt handles) closely enough for the runner and orchestrator tests.
type TrialTaskStore struct {
	mu sync.Mutex

	tasks map[uuid.UUID]*models.TrialTask // task_id -> TrialTask

	// now is swappable so tests can drive the clock.
	now func() time.Time
}

// NewTrialTaskStore creates a new in-memory trial task store.
func NewTrialTaskStore() *TrialTaskStore {
	return &TrialTaskStore{
		tasks: make(map[uuid.UUID]*models.TrialTask),
		now:   time.Now,
	}
}

// SetClock replaces the store clock. Tests use this to make scheduled steps
// due without sleeping.
func (s *TrialTaskStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// ScheduleSequence inserts one task per offset, skipping (org, step) pairs
// that already exist.
func (s *TrialTaskStore) ScheduleSequence(ctx context.Context, orgID uuid.UUID, now, trialEnd time.Time, offsets []time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inserted := 0
	for step, offset := range offsets {
		if s.findLocked(orgID, step) != nil {
			continue
		}
		task := &models.TrialTask{
			TaskID:    uuid.Must(uuid.NewV7()),
			OrgID:     orgID,
			Step:      step,
			State:     models.TrialTaskScheduled,
			TrialEnd:  trialEnd,
			RunAfter:  now.Add(offset),
			CreatedAt: now,
			UpdatedAt: now,
		}
		s.tasks[task.TaskID] = task
		inserted++
	}

	return inserted, nil
}

// ClaimDue claims up to maxTasks due tasks, oldest run_after first.
func (s *TrialTaskStore) ClaimDue(ctx context.Context, maxTasks int, visibilityTimeout time.Duration) ([]*models.TrialTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()

	var due []*models.TrialTask
	for _, task := range s.tasks {
		// Running tasks become claimable again once their visibility
		// timeout has expired (runner crash).
		if task.State != models.TrialTaskScheduled && task.State != models.TrialTaskRunning {
			continue
		}
		if task.RunAfter.After(now) {
			continue
		}
		if task.VisibilityUntil != nil && task.VisibilityUntil.After(now) {
			continue
		}
		due = append(due, task)
	}

	sort.Slice(due, func(i, j int) bool {
		return due[i].RunAfter.Before(due[j].RunAfter)
	})

	if len(due) > maxTasks {
		due = due[:maxTasks]
	}

	var claimed []*models.TrialTask
	for _, task := range due {
		receipt := uuid.Must(uuid.NewV7())
		until := now.Add(visibilityTimeout)
		task.State = models.TrialTaskRunning
		task.ReceiptHandle = &receipt
		task.VisibilityUntil = &until
		task.Attempts++
		task.UpdatedAt = now

		clone := *task
		claimed = append(claimed, &clone)
	}

	return claimed, nil
}

// Complete marks a claimed task as completed.
func (s *TrialTaskStore) Complete(ctx context.Context, taskID, receipt uuid.UUID) error {
	return s.finish(taskID, receipt, models.TrialTaskCompleted, "")
}

// Fail marks a claimed task as terminally failed.
func (s *TrialTaskStore) Fail(ctx context.Context, taskID, receipt uuid.UUID, cause string) error {
	return s.finish(taskID, receipt, models.TrialTaskFailed, cause)
}

func (s *TrialTaskStore) finish(taskID, receipt uuid.UUID, state, cause string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, err := s.claimedLocked(taskID, receipt)
	if err != nil {
		return err
	}

	task.State = state
	task.LastError = cause
	task.ReceiptHandle = nil
	task.VisibilityUntil = nil
	task.UpdatedAt = s.now()

	return nil
}

// Release returns a claimed task to the scheduled state.
func (s *TrialTaskStore) Release(ctx context.Context, taskID, receipt uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, err := s.claimedLocked(taskID, receipt)
	if err != nil {
		return err
	}

	task.State = models.TrialTaskScheduled
	task.ReceiptHandle = nil
	task.VisibilityUntil = nil
	task.UpdatedAt = s.now()

	return nil
}

// CancelPending terminally fails every scheduled task for an organization.
func (s *TrialTaskStore) CancelPending(ctx context.Context, orgID uuid.UUID, cause string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cancelled := 0
	for _, task := range s.tasks {
		if task.OrgID == orgID && task.State == models.TrialTaskScheduled {
			task.State = models.TrialTaskFailed
			task.LastError = cause
			task.ReceiptHandle = nil
			task.VisibilityUntil = nil
			task.UpdatedAt = s.now()
			cancelled++
		}
	}

	return cancelled, nil
}

// CountCompleted reports how many steps have completed for an organization.
func (s *TrialTaskStore) CountCompleted(ctx context.Context, orgID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, task := range s.tasks {
		if task.OrgID == orgID && task.State == models.TrialTaskCompleted {
			count++
		}
	}

	return count, nil
}

// Snapshot returns a copy of every task for an organization, ordered by
// step. Used by tests to assert sequence state.
func (s *TrialTaskStore) Snapshot(orgID uuid.UUID) []*models.TrialTask {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []*models.TrialTask
	for _, task := range s.tasks {
		if task.OrgID == orgID {
			clone := *task
			result = append(result, &clone)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Step < result[j].Step
	})

	return result
}

func (s *TrialTaskStore) findLocked(orgID uuid.UUID, step int) *models.TrialTask {
	for _, task := range s.tasks {
		if task.OrgID == orgID && task.Step == step {
			return task
		}
	}
	return nil
}

func (s *TrialTaskStore) claimedLocked(taskID, receipt uuid.UUID) (*models.TrialTask, error) {
	task, exists := s.tasks[taskID]
	if !exists {
		return nil, store.ErrTaskNotFound
	}
	if task.ReceiptHandle == nil || *task.ReceiptHandle != receipt {
		return nil, fmt.Errorf("%w: task %s", store.ErrReceiptMismatch, taskID)
	}
	return task, nil
}
