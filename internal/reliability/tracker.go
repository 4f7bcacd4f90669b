// Package reliability keeps the per-user trust record that weights reports
// and selects rate limits.
package reliability

import (
	"context"
	"fmt"
	"time"

	"github.com/gbl08ma/sqalx"

	"github.com/hazemshokry/train-tracking-app/internal/logger"
	"github.com/hazemshokry/train-tracking-app/internal/models"
	"github.com/hazemshokry/train-tracking-app/internal/repository"
)

// Tracker reads and updates reliability records. Callers serialise
// updates of one user with the user lock and pass their transaction.
type Tracker struct {
	repo *repository.ReliabilityRepository
	log  *logger.Logger
	now  func() time.Time
}

// NewTracker creates a tracker. now defaults to time.Now.
func NewTracker(repo *repository.ReliabilityRepository, log *logger.Logger, now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{repo: repo, log: log.With("component", "ReliabilityTracker"), now: now}
}

// WeightFactor is the influence of a report filed by a user of tier.
func WeightFactor(tier models.UserTier) float64 {
	return tier.WeightFactor()
}

// Get returns the stored record of a user, or the default record of a
// user without history. Nothing is written.
func (t *Tracker) Get(_ context.Context, node sqalx.Node, userID int64) (*models.ReliabilityRecord, error) {
	rec, err := t.repo.Get(node, userID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		rec = models.NewReliabilityRecord(userID, t.now())
	}
	return rec, nil
}

// GetOrCreate returns the record of a user, storing the default one first
// if needed. The row stays locked until node's transaction ends.
func (t *Tracker) GetOrCreate(_ context.Context, node sqalx.Node, userID int64) (*models.ReliabilityRecord, error) {
	return t.repo.GetOrCreate(node, userID, t.now())
}

// Update records one outcome against the user and returns the new record.
func (t *Tracker) Update(ctx context.Context, node sqalx.Node, userID int64, outcome models.ReliabilityOutcome) (*models.ReliabilityRecord, error) {
	switch outcome {
	case models.OutcomeAccurate, models.OutcomeFlagged, models.OutcomeSpam:
	default:
		return nil, fmt.Errorf("unknown reliability outcome %q", outcome)
	}

	rec, err := t.GetOrCreate(ctx, node, userID)
	if err != nil {
		return nil, err
	}
	before := rec.UserTier
	rec.Apply(outcome, t.now())
	if err := t.repo.Save(node, rec); err != nil {
		return nil, err
	}
	if rec.UserTier != before {
		t.log.Info("user tier changed", "user_id", userID, "from", before, "to", rec.UserTier,
			"score", rec.ReliabilityScore)
	}
	return rec, nil
}

// PromoteToAdmin makes the user an admin with full reliability.
func (t *Tracker) PromoteToAdmin(ctx context.Context, node sqalx.Node, userID int64) (*models.ReliabilityRecord, error) {
	rec, err := t.GetOrCreate(ctx, node, userID)
	if err != nil {
		return nil, err
	}
	rec.UserTier = models.UserTierAdmin
	rec.ReliabilityScore = 1.0
	rec.UpdatedAt = t.now()
	if err := t.repo.Save(node, rec); err != nil {
		return nil, err
	}
	t.log.Info("user promoted to admin", "user_id", userID)
	return rec, nil
}

// OutcomeForStatus maps the final status of a freshly validated report to
// the outcome recorded against its author. ok is false when the status
// says nothing about the author yet.
func OutcomeForStatus(status models.ValidationStatus, patternFailed bool) (outcome models.ReliabilityOutcome, ok bool) {
	switch status {
	case models.ValidationStatusValidated:
		return models.OutcomeAccurate, true
	case models.ValidationStatusRejected:
		if patternFailed {
			return models.OutcomeSpam, true
		}
		return models.OutcomeFlagged, true
	case models.ValidationStatusFlagged:
		return models.OutcomeFlagged, true
	}
	return "", false
}
