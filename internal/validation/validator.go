// Package validation scores the trustworthiness of a single report.
//
// Each Validator is an independent check over the report and a read-only
// snapshot of what the store knew when the report arrived. The Engine runs
// every validator and folds their outcomes into one confidence score.
package validation

import (
	"context"
	"time"

	"github.com/hazemshokry/train-tracking-app/internal/models"
)

const (
	// PeerWindow bounds how old other reports may be to be compared.
	PeerWindow = 2 * time.Hour
	// PeerLimit caps the number of peers compared.
	PeerLimit = 10
	// HistoryWindow is how far back per-user abuse heuristics look.
	HistoryWindow = 7 * 24 * time.Hour
	// DuplicateWindow is how long an identical submission counts as a repeat.
	DuplicateWindow = 5 * time.Minute
)

// Input is everything a validator may look at besides the report itself.
// It is loaded once per report, inside the submission transaction.
type Input struct {
	Now         time.Time
	Station     *models.Station
	RouteEntry  *models.RouteEntry // nil when the station is not on the route
	Scheduled   *time.Time         // schedule the report is measured against
	Reliability *models.ReliabilityRecord
	Peers       []models.Report // same (train, station), last PeerWindow, not rejected, newest first
	History     []models.Report // the user's reports in the last HistoryWindow, newest first
	Counts      models.SubmissionCounts
	Duplicate   *models.Report
}

// Validator is one independent report check. Validate must not modify the
// report. A returned error is recorded as a failed outcome with score 0.
type Validator interface {
	Type() models.ValidatorType
	Validate(ctx context.Context, report *models.Report, in *Input) (*models.ValidationOutcome, error)
}

// DefaultValidators returns one instance of every validator.
func DefaultValidators() []Validator {
	return []Validator{
		TimeValidator{},
		LocationValidator{},
		ConsistencyValidator{},
		PatternValidator{},
		RouteValidator{},
		RateLimitValidator{},
		DuplicateValidator{},
	}
}

func outcome(v models.ValidatorType, score float64, verdict models.Verdict, details map[string]any) *models.ValidationOutcome {
	return &models.ValidationOutcome{
		ValidatorType: v,
		Verdict:       verdict,
		Score:         score,
		Weight:        v.Weight(),
		Details:       details,
	}
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
