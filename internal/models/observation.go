package models

import (
	"time"

	"github.com/google/uuid"
)

// ObservationType discriminates the kind of anatomical finding recorded
// on a report.
type ObservationType string

const (
	ObservationTypeDysfunction         ObservationType = "dysfunction"
	ObservationTypeAnatomicalSuspicion ObservationType = "anatomicalSuspicion"
	ObservationTypeObservation         ObservationType = "observation"
)

// Valid reports whether t is one of the known observation types.
func (t ObservationType) Valid() bool {
	switch t {
	case ObservationTypeDysfunction, ObservationTypeAnatomicalSuspicion, ObservationTypeObservation:
		return true
	}
	return false
}

// Laterality records which side of the body a finding applies to.
type Laterality string

const (
	LateralityLeft      Laterality = "left"
	LateralityRight     Laterality = "right"
	LateralityBilateral Laterality = "bilateral"
)

// Valid reports whether l is one of the known lateralities.
func (l Laterality) Valid() bool {
	switch l {
	case LateralityLeft, LateralityRight, LateralityBilateral:
		return true
	}
	return false
}

// Severity bounds for anatomical observations.
const (
	SeverityMin = 1
	SeverityMax = 5
)

// ValidSeverity reports whether s is within the clinical severity scale.
func ValidSeverity(s int) bool {
	return s >= SeverityMin && s <= SeverityMax
}

// SeverityTrend is the computed evolution of a finding relative to the
// next-older record for the same anatomical part. It is derived on read
// and never persisted.
type SeverityTrend string

const (
	TrendImproving SeverityTrend = "improving"
	TrendWorsening SeverityTrend = "worsening"
	TrendStable    SeverityTrend = "stable"
)

// CompareSeverity classifies current against previous (the next-older
// record): lower severity is an improvement.
func CompareSeverity(current, previous int) SeverityTrend {
	switch {
	case current < previous:
		return TrendImproving
	case current > previous:
		return TrendWorsening
	default:
		return TrendStable
	}
}

// Report is a finalized consultation write-up for a patient.
type Report struct {
	ReportID   uuid.UUID // UUIDv7
	PatientID  uuid.UUID // UUIDv7, FK to patients
	Title      string
	ReportDate time.Time
	Finalized  bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// AnatomicalObservation is one clinician-entered finding tied to a report.
// Observations are immutable once the report is finalized; they disappear
// only via the report deletion cascade.
type AnatomicalObservation struct {
	ObservationID uuid.UUID // UUIDv7
	ReportID      uuid.UUID // UUIDv7, FK to reports
	ReportTitle   string
	ReportDate    time.Time
	PartID        uuid.UUID // UUIDv7, FK to anatomical_parts
	PartName      string
	Type          ObservationType
	Severity      int // 1..5
	Laterality    Laterality
	Notes         string
}
