package trial

import "time"

// StepKind identifies one stage of the trial lifecycle sequence.
type StepKind string

const (
	StepWelcome       StepKind = "welcome"
	StepFollowUp      StepKind = "follow_up"
	StepFirstReminder StepKind = "first_reminder"
	StepFinalAlert    StepKind = "final_alert"
)

// Step is one entry of the fixed lifecycle plan.
type Step struct {
	Kind StepKind

	// Offset is measured from sequence start. The schedule is fixed at
	// 0/5/10/14 days and is never derived from the trial window, so a
	// trial longer or shorter than 15 days keeps the same send dates.
	Offset time.Duration

	// DaysRemaining is the annotation rendered into the email body
	// (0 for the welcome email, which carries none).
	DaysRemaining int

	// IncludeLinks controls whether upgrade and cancel links are rendered.
	IncludeLinks bool

	Subject string
}

// Plan returns the fixed four-step lifecycle sequence. Step index in the
// returned slice is the durable idempotency key component, so the order here
// is part of the persisted contract.
func Plan() []Step {
	return []Step{
		{
			Kind:    StepWelcome,
			Offset:  0,
			Subject: "Bienvenue ! Votre essai gratuit a commencé",
		},
		{
			Kind:          StepFollowUp,
			Offset:        5 * 24 * time.Hour,
			DaysRemaining: 10,
			Subject:       "Nos conseils pour bien démarrer — 10 jours restants",
		},
		{
			Kind:          StepFirstReminder,
			Offset:        10 * 24 * time.Hour,
			DaysRemaining: 5,
			IncludeLinks:  true,
			Subject:       "Votre essai se termine bientôt — 5 jours restants",
		},
		{
			Kind:          StepFinalAlert,
			Offset:        14 * 24 * time.Hour,
			DaysRemaining: 1,
			IncludeLinks:  true,
			Subject:       "Dernière alerte — 1 jour restant",
		},
	}
}

// Offsets returns just the run-after offsets of the plan, in step order.
// This is the shape the durable task store consumes.
func Offsets() []time.Duration {
	plan := Plan()
	offsets := make([]time.Duration, len(plan))
	for i, step := range plan {
		offsets[i] = step.Offset
	}
	return offsets
}
