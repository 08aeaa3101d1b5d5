package engine

import "civicrank/core"

// Step names a stage of the award pipeline.
type Step string

const (
	StepLookupUser        Step = "lookup_user"
	StepEligibility       Step = "eligibility"
	StepResolveRule       Step = "resolve_rule"
	StepRecordTransaction Step = "record_transaction"
	StepUpdateTotal       Step = "update_total"
	StepUpdateLevel       Step = "update_level"
	StepNotify            Step = "notify"
)

type StepStatus string

const (
	StepOK      StepStatus = "ok"
	StepSkipped StepStatus = "skipped"
	StepFailed  StepStatus = "failed"
)

// StepOutcome records what one pipeline stage did.
type StepOutcome struct {
	Step   Step       `json:"step"`
	Status StepStatus `json:"status"`
	Detail string     `json:"detail,omitempty"`
}

// AwardResult is returned by every award and adjustment, including no-ops.
// Points is zero when nothing was awarded.
type AwardResult struct {
	Points        int64         `json:"points"`
	TotalPoints   int64         `json:"totalPoints"`
	TransactionID string        `json:"transactionId,omitempty"`
	Level         *core.Level   `json:"level,omitempty"`
	Message       string        `json:"message,omitempty"`
	Steps         []StepOutcome `json:"steps"`
}

// Committed reports whether the step finished successfully.
func (r AwardResult) Committed(s Step) bool {
	for _, o := range r.Steps {
		if o.Step == s {
			return o.Status == StepOK
		}
	}
	return false
}

func (r *AwardResult) ok(s Step, detail string) {
	r.Steps = append(r.Steps, StepOutcome{Step: s, Status: StepOK, Detail: detail})
}

func (r *AwardResult) skip(s Step, detail string) {
	r.Steps = append(r.Steps, StepOutcome{Step: s, Status: StepSkipped, Detail: detail})
}

func (r *AwardResult) fail(s Step, err error) {
	r.Steps = append(r.Steps, StepOutcome{Step: s, Status: StepFailed, Detail: err.Error()})
}
