package trial

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/osteovet/platform/internal/mailer"
	"github.com/osteovet/platform/internal/models"
	"github.com/osteovet/platform/internal/store"
	"github.com/osteovet/platform/internal/store/memory"
	"github.com/stretchr/testify/require"
)

var testConfig = Config{
	FromAddress: "OsteoVet <bonjour@osteovet.fr>",
	UpgradeURL:  "https://app.osteovet.fr/abonnement",
	CancelURL:   "https://app.osteovet.fr/abonnement/annuler",
}

func newOrchestratorFixture(t *testing.T) (*Orchestrator, *memory.OrganizationStore, *memory.TrialTaskStore, *mailer.CaptureMailer) {
	t.Helper()

	orgs := memory.NewOrganizationStore()
	tasks := memory.NewTrialTaskStore()
	mail := mailer.NewCaptureMailer()

	return NewOrchestrator(orgs, tasks, mail, testConfig), orgs, tasks, mail
}

func seedOrg(t *testing.T, orgs *memory.OrganizationStore) *models.Organization {
	t.Helper()

	org := &models.Organization{
		OrgID:             uuid.Must(uuid.NewV7()),
		Name:              "Clinique du Parc",
		Email:             "contact@cliniqueduparc.fr",
		BillingCustomerID: "cus_123",
	}
	require.NoError(t, orgs.Create(context.Background(), org))
	return org
}

func startParams(org *models.Organization, start time.Time) StartParams {
	return StartParams{
		OrgID:      org.OrgID,
		OrgName:    org.Name,
		OrgEmail:   org.Email,
		TrialStart: start,
		TrialEnd:   start.AddDate(0, 0, 15),
	}
}

func TestStartParamsValidate(t *testing.T) {
	start := time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)
	valid := StartParams{
		OrgID:      uuid.Must(uuid.NewV7()),
		OrgName:    "Clinique du Parc",
		OrgEmail:   "contact@cliniqueduparc.fr",
		TrialStart: start,
		TrialEnd:   start.AddDate(0, 0, 15),
	}
	require.NoError(t, valid.Validate())

	t.Run("missing org", func(t *testing.T) {
		p := valid
		p.OrgID = uuid.Nil
		require.Error(t, p.Validate())
	})

	t.Run("missing email", func(t *testing.T) {
		p := valid
		p.OrgEmail = ""
		require.Error(t, p.Validate())
	})

	t.Run("inverted window", func(t *testing.T) {
		p := valid
		p.TrialEnd = p.TrialStart.AddDate(0, 0, -1)
		require.Error(t, p.Validate())
	})
}

func TestBeginSchedulesFourSteps(t *testing.T) {
	orch, orgs, tasks, _ := newOrchestratorFixture(t)
	ctx := context.Background()

	start := time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)
	orch.SetClock(func() time.Time { return start })

	org := seedOrg(t, orgs)

	result, err := orch.Begin(ctx, startParams(org, start))
	require.NoError(t, err)
	require.Equal(t, 4, result.StepsScheduled)

	snapshot := tasks.Snapshot(org.OrgID)
	require.Len(t, snapshot, 4)
	for i, task := range snapshot {
		require.Equal(t, i, task.Step)
		require.Equal(t, models.TrialTaskScheduled, task.State)
		require.Equal(t, start.Add(Offsets()[i]), task.RunAfter)
		require.Equal(t, start.AddDate(0, 0, 15), task.TrialEnd)
	}
}

func TestBeginIsIdempotent(t *testing.T) {
	orch, orgs, tasks, _ := newOrchestratorFixture(t)
	ctx := context.Background()

	start := time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)
	org := seedOrg(t, orgs)
	params := startParams(org, start)

	first, err := orch.Begin(ctx, params)
	require.NoError(t, err)
	require.Equal(t, 4, first.StepsScheduled)

	second, err := orch.Begin(ctx, params)
	require.NoError(t, err)
	require.Equal(t, 0, second.StepsScheduled)

	require.Len(t, tasks.Snapshot(org.OrgID), 4)
}

func TestBeginMissingOrganization(t *testing.T) {
	orch, _, tasks, mail := newOrchestratorFixture(t)
	ctx := context.Background()

	start := time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)
	missing := &models.Organization{
		OrgID: uuid.Must(uuid.NewV7()),
		Name:  "Clinique fantôme",
		Email: "nulle-part@example.com",
	}

	_, err := orch.Begin(ctx, startParams(missing, start))
	require.ErrorIs(t, err, store.ErrOrganizationNotFound)

	require.Empty(t, tasks.Snapshot(missing.OrgID))
	require.Empty(t, mail.Messages())
}

func TestExecuteStep(t *testing.T) {
	orch, orgs, _, mail := newOrchestratorFixture(t)
	ctx := context.Background()

	org := seedOrg(t, orgs)
	trialEnd := time.Date(2026, time.March, 16, 9, 0, 0, 0, time.UTC)

	task := &models.TrialTask{
		TaskID:   uuid.Must(uuid.NewV7()),
		OrgID:    org.OrgID,
		Step:     2,
		TrialEnd: trialEnd,
	}

	require.NoError(t, orch.ExecuteStep(ctx, task))

	messages := mail.Messages()
	require.Len(t, messages, 1)
	require.Equal(t, testConfig.FromAddress, messages[0].From)
	require.Equal(t, org.Email, messages[0].To)
	require.Equal(t, Plan()[2].Subject, messages[0].Subject)
	require.Contains(t, messages[0].HTML, org.Name)
	require.Contains(t, messages[0].HTML, testConfig.UpgradeURL)
	require.Contains(t, messages[0].HTML, "16/03/2026")
}

func TestExecuteStepMissingOrganization(t *testing.T) {
	orch, _, _, mail := newOrchestratorFixture(t)
	ctx := context.Background()

	task := &models.TrialTask{
		TaskID: uuid.Must(uuid.NewV7()),
		OrgID:  uuid.Must(uuid.NewV7()),
		Step:   0,
	}

	err := orch.ExecuteStep(ctx, task)
	require.ErrorIs(t, err, store.ErrOrganizationNotFound)
	require.Empty(t, mail.Messages())
}

func TestExecuteStepUnknownStep(t *testing.T) {
	orch, orgs, _, _ := newOrchestratorFixture(t)

	org := seedOrg(t, orgs)
	task := &models.TrialTask{
		TaskID: uuid.Must(uuid.NewV7()),
		OrgID:  org.OrgID,
		Step:   7,
	}

	require.Error(t, orch.ExecuteStep(context.Background(), task))
}
