package evolution

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/osteovet/platform/internal/models"
	"github.com/osteovet/platform/internal/store/memory"
	"github.com/stretchr/testify/require"
)

func seedHistory(t *testing.T, obs *memory.ObservationStore, patientID, partID uuid.UUID, severities []int) {
	t.Helper()
	ctx := context.Background()

	for i, severity := range severities {
		reportID := uuid.Must(uuid.NewV7())
		require.NoError(t, obs.CreateReport(ctx, &models.Report{
			ReportID:   reportID,
			PatientID:  patientID,
			Title:      fmt.Sprintf("Consultation %d", i+1),
			ReportDate: time.Date(2026, time.January, 1, 10, 0, 0, 0, time.UTC).AddDate(0, 0, i*30),
		}))
		require.NoError(t, obs.CreateObservation(ctx, patientID, &models.AnatomicalObservation{
			ObservationID: uuid.Must(uuid.NewV7()),
			ReportID:      reportID,
			PartID:        partID,
			PartName:      "Hanche droite",
			Type:          models.ObservationTypeDysfunction,
			Severity:      severity,
			Laterality:    models.LateralityRight,
		}))
	}
}

func validRequest(patientID, partID uuid.UUID) AnalyzeRequest {
	return AnalyzeRequest{
		PetID:  patientID.String(),
		PartID: partID.String(),
		CurrentIssue: CurrentIssue{
			Type:       models.ObservationTypeDysfunction,
			Severity:   3,
			Laterality: models.LateralityRight,
		},
	}
}

func trendsOf(entries []Entry) []*models.SeverityTrend {
	trends := make([]*models.SeverityTrend, len(entries))
	for i, e := range entries {
		trends[i] = e.Trend
	}
	return trends
}

func TestAnalyze(t *testing.T) {
	ctx := context.Background()

	t.Run("annotates consecutive pairs", func(t *testing.T) {
		obs := memory.NewObservationStore()
		patientID := uuid.Must(uuid.NewV7())
		partID := uuid.Must(uuid.NewV7())
		// Oldest to newest: 2, 4, 4.
		seedHistory(t, obs, patientID, partID, []int{2, 4, 4})

		entries, err := NewComparator(obs).Analyze(ctx, validRequest(patientID, partID))
		require.NoError(t, err)
		require.Len(t, entries, 3)

		// Entries come back newest first.
		require.Equal(t, "Consultation 3", entries[0].ReportTitle)
		require.Equal(t, "Consultation 1", entries[2].ReportTitle)

		trends := trendsOf(entries)
		require.Equal(t, models.TrendStable, *trends[0])
		require.Equal(t, models.TrendWorsening, *trends[1])
		require.Nil(t, trends[2])
	})

	t.Run("improving when severity drops", func(t *testing.T) {
		obs := memory.NewObservationStore()
		patientID := uuid.Must(uuid.NewV7())
		partID := uuid.Must(uuid.NewV7())
		seedHistory(t, obs, patientID, partID, []int{5, 3, 1})

		entries, err := NewComparator(obs).Analyze(ctx, validRequest(patientID, partID))
		require.NoError(t, err)

		trends := trendsOf(entries)
		require.Equal(t, models.TrendImproving, *trends[0])
		require.Equal(t, models.TrendImproving, *trends[1])
		require.Nil(t, trends[2])
	})

	t.Run("empty history", func(t *testing.T) {
		obs := memory.NewObservationStore()

		entries, err := NewComparator(obs).Analyze(ctx, validRequest(uuid.Must(uuid.NewV7()), uuid.Must(uuid.NewV7())))
		require.NoError(t, err)
		require.Empty(t, entries)
	})

	t.Run("single record has no trend", func(t *testing.T) {
		obs := memory.NewObservationStore()
		patientID := uuid.Must(uuid.NewV7())
		partID := uuid.Must(uuid.NewV7())
		seedHistory(t, obs, patientID, partID, []int{3})

		entries, err := NewComparator(obs).Analyze(ctx, validRequest(patientID, partID))
		require.NoError(t, err)
		require.Len(t, entries, 1)
		require.Nil(t, entries[0].Trend)
	})

	t.Run("filters by observation type", func(t *testing.T) {
		obs := memory.NewObservationStore()
		ctx := context.Background()
		patientID := uuid.Must(uuid.NewV7())
		partID := uuid.Must(uuid.NewV7())
		seedHistory(t, obs, patientID, partID, []int{2, 4})

		// A suspicion on the same part must not pollute the dysfunction
		// history.
		reportID := uuid.Must(uuid.NewV7())
		require.NoError(t, obs.CreateReport(ctx, &models.Report{
			ReportID:   reportID,
			PatientID:  patientID,
			Title:      "Suspicion",
			ReportDate: time.Date(2026, time.June, 1, 10, 0, 0, 0, time.UTC),
		}))
		require.NoError(t, obs.CreateObservation(ctx, patientID, &models.AnatomicalObservation{
			ObservationID: uuid.Must(uuid.NewV7()),
			ReportID:      reportID,
			PartID:        partID,
			PartName:      "Hanche droite",
			Type:          models.ObservationTypeAnatomicalSuspicion,
			Severity:      5,
			Laterality:    models.LateralityRight,
		}))

		entries, err := NewComparator(obs).Analyze(ctx, validRequest(patientID, partID))
		require.NoError(t, err)
		require.Len(t, entries, 2)
		for _, e := range entries {
			require.Equal(t, models.ObservationTypeDysfunction, e.Type)
		}
	})
}

func TestAnalyzeValidation(t *testing.T) {
	ctx := context.Background()
	obs := memory.NewObservationStore()
	comparator := NewComparator(obs)
	patientID := uuid.Must(uuid.NewV7())
	partID := uuid.Must(uuid.NewV7())

	fields := func(err error) []string {
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		out := make([]string, len(verr.Details))
		for i, d := range verr.Details {
			out[i] = d.Field
		}
		return out
	}

	t.Run("bad ids", func(t *testing.T) {
		req := validRequest(patientID, partID)
		req.PetID = "pet_1"
		req.PartID = "part_1"

		_, err := comparator.Analyze(ctx, req)
		require.Equal(t, []string{"petId", "anatomicalPartId"}, fields(err))
	})

	t.Run("severity bounds", func(t *testing.T) {
		for _, severity := range []int{0, 6, -1} {
			req := validRequest(patientID, partID)
			req.CurrentIssue.Severity = severity

			_, err := comparator.Analyze(ctx, req)
			require.Equal(t, []string{"currentIssue.severity"}, fields(err), "severity %d", severity)
		}

		for severity := models.SeverityMin; severity <= models.SeverityMax; severity++ {
			req := validRequest(patientID, partID)
			req.CurrentIssue.Severity = severity

			_, err := comparator.Analyze(ctx, req)
			require.NoError(t, err, "severity %d", severity)
		}
	})

	t.Run("unknown type and laterality", func(t *testing.T) {
		req := validRequest(patientID, partID)
		req.CurrentIssue.Type = "guess"
		req.CurrentIssue.Laterality = "up"

		_, err := comparator.Analyze(ctx, req)
		require.Equal(t, []string{"currentIssue.type", "currentIssue.laterality"}, fields(err))
	})
}

func TestAnnotateTrends(t *testing.T) {
	mk := func(severity int) *models.AnatomicalObservation {
		return &models.AnatomicalObservation{
			ObservationID: uuid.Must(uuid.NewV7()),
			Severity:      severity,
		}
	}

	t.Run("nil history", func(t *testing.T) {
		require.Empty(t, AnnotateTrends(nil))
	})

	t.Run("pairwise comparison", func(t *testing.T) {
		// Newest first: 1, 3, 3, 5.
		entries := AnnotateTrends([]*models.AnatomicalObservation{mk(1), mk(3), mk(3), mk(5)})

		trends := trendsOf(entries)
		require.Equal(t, models.TrendImproving, *trends[0])
		require.Equal(t, models.TrendStable, *trends[1])
		require.Equal(t, models.TrendImproving, *trends[2])
		require.Nil(t, trends[3])
	})
}
