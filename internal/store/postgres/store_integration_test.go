//go:build integration

package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/osteovet/platform/internal/models"
	"github.com/osteovet/platform/internal/store"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupPostgresPool(t *testing.T, ctx context.Context) *pgxpool.Pool {
	t.Helper()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:18-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	connString := fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port())

	pool, err := NewPool(ctx, &PoolConfig{
		ConnString:  connString,
		AutoMigrate: true,
	})
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	return pool
}

func createTestOrg(t *testing.T, ctx context.Context, orgs *OrganizationStore) *models.Organization {
	t.Helper()

	org := &models.Organization{
		OrgID:             uuid.Must(uuid.NewV7()),
		Name:              "Clinique du Parc",
		Email:             "contact@cliniqueduparc.fr",
		BillingCustomerID: "cus_" + uuid.Must(uuid.NewV7()).String()[:8],
	}
	require.NoError(t, orgs.Create(ctx, org))
	return org
}

func TestIntegration_OrganizationStore(t *testing.T) {
	ctx := context.Background()
	pool := setupPostgresPool(t, ctx)
	orgs := NewOrganizationStore(pool)

	t.Run("create and get", func(t *testing.T) {
		org := createTestOrg(t, ctx, orgs)

		got, err := orgs.Get(ctx, org.OrgID)
		require.NoError(t, err)
		require.Equal(t, org.Name, got.Name)
		require.Equal(t, org.Email, got.Email)
		require.Equal(t, org.BillingCustomerID, got.BillingCustomerID)
		require.False(t, got.CreatedAt.IsZero())
	})

	t.Run("duplicate create", func(t *testing.T) {
		org := createTestOrg(t, ctx, orgs)
		require.ErrorIs(t, orgs.Create(ctx, org), store.ErrOrganizationAlreadyExists)
	})

	t.Run("exists and delete", func(t *testing.T) {
		org := createTestOrg(t, ctx, orgs)

		exists, err := orgs.Exists(ctx, org.OrgID)
		require.NoError(t, err)
		require.True(t, exists)

		require.NoError(t, orgs.Delete(ctx, org.OrgID))

		exists, err = orgs.Exists(ctx, org.OrgID)
		require.NoError(t, err)
		require.False(t, exists)

		_, err = orgs.Get(ctx, org.OrgID)
		require.ErrorIs(t, err, store.ErrOrganizationNotFound)
	})
}

func TestIntegration_ObservationHistory(t *testing.T) {
	ctx := context.Background()
	pool := setupPostgresPool(t, ctx)

	orgs := NewOrganizationStore(pool)
	patients := NewPatientStore(pool)
	observations := NewObservationStore(pool)

	org := createTestOrg(t, ctx, orgs)

	client := &models.Client{
		ClientID:  uuid.Must(uuid.NewV7()),
		OrgID:     org.OrgID,
		FirstName: "Marie",
		LastName:  "Dupont",
		Email:     "marie@example.com",
	}
	require.NoError(t, patients.CreateClient(ctx, client))

	patient := &models.Patient{
		PatientID: uuid.Must(uuid.NewV7()),
		OrgID:     org.OrgID,
		ClientID:  client.ClientID,
		Name:      "Rex",
		Species:   "dog",
		Breed:     "berger allemand",
	}
	require.NoError(t, patients.Create(ctx, patient))

	partID := uuid.Must(uuid.NewV7())

	severities := []int{2, 4, 4}
	for i, severity := range severities {
		report := &models.Report{
			ReportID:   uuid.Must(uuid.NewV7()),
			PatientID:  patient.PatientID,
			Title:      fmt.Sprintf("Consultation %d", i+1),
			ReportDate: time.Date(2026, time.January, 1, 10, 0, 0, 0, time.UTC).AddDate(0, 0, i*30),
		}
		require.NoError(t, observations.CreateReport(ctx, report))
		require.NoError(t, observations.CreateObservation(ctx, patient.PatientID, &models.AnatomicalObservation{
			ObservationID: uuid.Must(uuid.NewV7()),
			ReportID:      report.ReportID,
			PartID:        partID,
			PartName:      "Hanche droite",
			Type:          models.ObservationTypeDysfunction,
			Severity:      severity,
			Laterality:    models.LateralityRight,
		}))
	}

	t.Run("history comes back newest first with report fields", func(t *testing.T) {
		history, err := observations.ListByPatientPart(ctx, patient.PatientID, partID, models.ObservationTypeDysfunction)
		require.NoError(t, err)
		require.Len(t, history, 3)

		require.Equal(t, "Consultation 3", history[0].ReportTitle)
		require.Equal(t, 4, history[0].Severity)
		require.Equal(t, "Consultation 1", history[2].ReportTitle)
		require.Equal(t, 2, history[2].Severity)
	})

	t.Run("type filter", func(t *testing.T) {
		history, err := observations.ListByPatientPart(ctx, patient.PatientID, partID, models.ObservationTypeAnatomicalSuspicion)
		require.NoError(t, err)
		require.Empty(t, history)
	})
}

func TestIntegration_TrialTaskLifecycle(t *testing.T) {
	ctx := context.Background()
	pool := setupPostgresPool(t, ctx)

	orgs := NewOrganizationStore(pool)
	tasks := NewTrialTaskStore(pool)

	offsets := []time.Duration{0, 5 * 24 * time.Hour, 10 * 24 * time.Hour, 14 * 24 * time.Hour}

	t.Run("schedule is idempotent per step", func(t *testing.T) {
		org := createTestOrg(t, ctx, orgs)
		now := time.Now().UTC()

		scheduled, err := tasks.ScheduleSequence(ctx, org.OrgID, now, now.AddDate(0, 0, 15), offsets)
		require.NoError(t, err)
		require.Equal(t, 4, scheduled)

		scheduled, err = tasks.ScheduleSequence(ctx, org.OrgID, now.Add(time.Hour), now.AddDate(0, 0, 20), offsets)
		require.NoError(t, err)
		require.Equal(t, 0, scheduled)

		// The claim subtests below poll globally, so drop this
		// organization's due step before moving on.
		cancelled, err := tasks.CancelPending(ctx, org.OrgID, "superseded")
		require.NoError(t, err)
		require.Equal(t, 4, cancelled)
	})

	t.Run("claim complete and count", func(t *testing.T) {
		org := createTestOrg(t, ctx, orgs)
		now := time.Now().UTC()

		// Only the first step is due immediately.
		_, err := tasks.ScheduleSequence(ctx, org.OrgID, now, now.AddDate(0, 0, 15), offsets)
		require.NoError(t, err)

		claimed, err := tasks.ClaimDue(ctx, 10, time.Minute)
		require.NoError(t, err)
		require.Len(t, claimed, 1)
		require.Equal(t, org.OrgID, claimed[0].OrgID)
		require.Equal(t, 0, claimed[0].Step)
		require.Equal(t, models.TrialTaskRunning, claimed[0].State)
		require.NotNil(t, claimed[0].ReceiptHandle)
		require.Equal(t, 1, claimed[0].Attempts)
		require.WithinDuration(t, now.AddDate(0, 0, 15), claimed[0].TrialEnd, time.Second)

		// The claim is exclusive while the visibility timeout holds.
		again, err := tasks.ClaimDue(ctx, 10, time.Minute)
		require.NoError(t, err)
		require.Empty(t, again)

		require.NoError(t, tasks.Complete(ctx, claimed[0].TaskID, *claimed[0].ReceiptHandle))

		count, err := tasks.CountCompleted(ctx, org.OrgID)
		require.NoError(t, err)
		require.Equal(t, 1, count)
	})

	t.Run("stale receipt is rejected", func(t *testing.T) {
		org := createTestOrg(t, ctx, orgs)
		now := time.Now().UTC()

		_, err := tasks.ScheduleSequence(ctx, org.OrgID, now, now.AddDate(0, 0, 15), []time.Duration{0})
		require.NoError(t, err)

		claimed, err := tasks.ClaimDue(ctx, 10, time.Minute)
		require.NoError(t, err)
		require.Len(t, claimed, 1)

		err = tasks.Complete(ctx, claimed[0].TaskID, uuid.Must(uuid.NewV7()))
		require.ErrorIs(t, err, store.ErrReceiptMismatch)

		err = tasks.Release(ctx, claimed[0].TaskID, uuid.Must(uuid.NewV7()))
		require.ErrorIs(t, err, store.ErrReceiptMismatch)

		// A task that was never scheduled is reported as missing, not as a
		// stale receipt.
		err = tasks.Complete(ctx, uuid.Must(uuid.NewV7()), uuid.Must(uuid.NewV7()))
		require.ErrorIs(t, err, store.ErrTaskNotFound)
	})

	t.Run("release makes the step claimable again", func(t *testing.T) {
		org := createTestOrg(t, ctx, orgs)
		now := time.Now().UTC()

		_, err := tasks.ScheduleSequence(ctx, org.OrgID, now, now.AddDate(0, 0, 15), []time.Duration{0})
		require.NoError(t, err)

		claimed, err := tasks.ClaimDue(ctx, 10, time.Minute)
		require.NoError(t, err)
		require.Len(t, claimed, 1)

		require.NoError(t, tasks.Release(ctx, claimed[0].TaskID, *claimed[0].ReceiptHandle))

		reclaimed, err := tasks.ClaimDue(ctx, 10, time.Minute)
		require.NoError(t, err)
		require.Len(t, reclaimed, 1)
		require.Equal(t, claimed[0].TaskID, reclaimed[0].TaskID)
		require.Equal(t, 2, reclaimed[0].Attempts)
	})

	t.Run("cancel pending fails the remaining steps", func(t *testing.T) {
		org := createTestOrg(t, ctx, orgs)
		now := time.Now().UTC()

		_, err := tasks.ScheduleSequence(ctx, org.OrgID, now, now.AddDate(0, 0, 15), offsets)
		require.NoError(t, err)

		claimed, err := tasks.ClaimDue(ctx, 10, time.Minute)
		require.NoError(t, err)
		require.Len(t, claimed, 1)
		require.NoError(t, tasks.Complete(ctx, claimed[0].TaskID, *claimed[0].ReceiptHandle))

		cancelled, err := tasks.CancelPending(ctx, org.OrgID, "organization deleted")
		require.NoError(t, err)
		require.Equal(t, 3, cancelled)

		count, err := tasks.CountCompleted(ctx, org.OrgID)
		require.NoError(t, err)
		require.Equal(t, 1, count)
	})
}
