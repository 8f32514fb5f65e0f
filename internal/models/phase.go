package models

// Phase is the coarse external-facing progress vocabulary delivered to the
// status callback sink. Steps map onto phases; the percentage attached to a
// phase transition is monotonically non-decreasing across the plan.
type Phase string

const (
	PhaseQueued     Phase = "queued"
	PhaseStarting   Phase = "starting"
	PhaseIdentity   Phase = "identifying_booking"
	PhaseReason     Phase = "selecting_reason"
	PhaseContact    Phase = "contact_details"
	PhaseSubmitting Phase = "submitting"
	PhaseConfirming Phase = "confirming"
	PhaseCompleted  Phase = "completed"
	PhaseFailed     Phase = "failed"
)

// stepProgress pairs the phase and cumulative percentage reported when a
// given step completes.
type stepProgress struct {
	Phase   Phase
	Percent int
}

var stepProgressTable = map[string]stepProgress{
	StepLaunchSession:    {PhaseStarting, 5},
	StepNavigate:         {PhaseStarting, 10},
	StepAwaitWidget:      {PhaseStarting, 15},
	StepSelectCodeEmail:  {PhaseIdentity, 25},
	StepFillBooking:      {PhaseIdentity, 35},
	StepSelectReason:     {PhaseReason, 45},
	StepConfirmDocuments: {PhaseContact, 50},
	StepFillName:         {PhaseContact, 60},
	StepContactEmail:     {PhaseContact, 70},
	StepFillPhone:        {PhaseContact, 80},
	StepSubmitComment:    {PhaseSubmitting, 85},
	StepUploadDocuments:  {PhaseSubmitting, 90},
	StepExtractReference: {PhaseConfirming, 95},
	StepDeclineAnother:   {PhaseConfirming, 100},
}

// ProgressForStep returns the phase and percentage reported when the named
// step completes. Unknown steps report the starting phase so a plan change
// can never panic the notifier.
func ProgressForStep(step string) (Phase, int) {
	if p, ok := stepProgressTable[step]; ok {
		return p.Phase, p.Percent
	}
	return PhaseStarting, 0
}
