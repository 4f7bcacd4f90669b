package models

import "time"

// ValidatorType names one of the independent report checks.
type ValidatorType string

const (
	ValidatorTime        ValidatorType = "time"
	ValidatorLocation    ValidatorType = "location"
	ValidatorConsistency ValidatorType = "consistency"
	ValidatorPattern     ValidatorType = "pattern"
	ValidatorRoute       ValidatorType = "route"
	ValidatorRateLimit   ValidatorType = "rate_limit"
	ValidatorDuplicate   ValidatorType = "duplicate"
)

// Weight is the relative influence of the validator on the confidence score.
func (v ValidatorType) Weight() float64 {
	switch v {
	case ValidatorTime:
		return 0.25
	case ValidatorLocation, ValidatorConsistency:
		return 0.20
	case ValidatorPattern, ValidatorRoute:
		return 0.15
	case ValidatorRateLimit, ValidatorDuplicate:
		return 0.10
	}
	return 0
}

// Critical reports whether a failure of this validator rejects the report
// regardless of the aggregate score.
func (v ValidatorType) Critical() bool {
	return v == ValidatorRateLimit || v == ValidatorDuplicate
}

// Verdict is the outcome class of a single validator run.
type Verdict string

const (
	VerdictPassed  Verdict = "passed"
	VerdictWarning Verdict = "warning"
	VerdictFailed  Verdict = "failed"
)

// VerdictForScore maps a score onto the usual 0.8/0.5 verdict bands.
func VerdictForScore(score float64) Verdict {
	switch {
	case score >= 0.8:
		return VerdictPassed
	case score >= 0.5:
		return VerdictWarning
	}
	return VerdictFailed
}

// ValidationOutcome is the immutable audit record of one validator run.
type ValidationOutcome struct {
	ID            int64          `json:"id,omitempty"`
	ReportID      int64          `json:"report_id,omitempty"`
	ValidatorType ValidatorType  `json:"validator_type"`
	Verdict       Verdict        `json:"verdict"`
	Score         float64        `json:"score"`
	Weight        float64        `json:"weight"`
	Details       map[string]any `json:"details,omitempty"`
	ErrorMessage  string         `json:"error_message,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

// ValidationSummary aggregates every outcome of one report.
type ValidationSummary struct {
	Confidence   float64             `json:"confidence"`
	Status       ValidationStatus    `json:"status"`
	Critical     bool                `json:"critical"`
	CriticalType ValidatorType       `json:"critical_type,omitempty"`
	Outcomes     []ValidationOutcome `json:"outcomes"`
}

// Outcome returns the outcome produced by validator v, if any.
func (s *ValidationSummary) Outcome(v ValidatorType) *ValidationOutcome {
	for i := range s.Outcomes {
		if s.Outcomes[i].ValidatorType == v {
			return &s.Outcomes[i]
		}
	}
	return nil
}

// FailureReasons lists the validators that failed.
func (s *ValidationSummary) FailureReasons() []ValidatorType {
	var out []ValidatorType
	for _, o := range s.Outcomes {
		if o.Verdict == VerdictFailed {
			out = append(out, o.ValidatorType)
		}
	}
	return out
}
