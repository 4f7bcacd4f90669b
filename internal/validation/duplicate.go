package validation

import (
	"context"
	"time"

	"github.com/hazemshokry/train-tracking-app/internal/models"
)

// DuplicateValidator rejects a repeat of the same observation by the same user.
type DuplicateValidator struct{}

func (DuplicateValidator) Type() models.ValidatorType { return models.ValidatorDuplicate }

func (DuplicateValidator) Validate(_ context.Context, _ *models.Report, in *Input) (*models.ValidationOutcome, error) {
	if d := in.Duplicate; d != nil {
		return outcome(models.ValidatorDuplicate, 0.0, models.VerdictFailed, map[string]any{
			"reason":       "duplicate report",
			"duplicate_of": d.ID,
			"submitted_at": d.CreatedAt.UTC().Format(time.RFC3339),
		}), nil
	}
	return outcome(models.ValidatorDuplicate, 1.0, models.VerdictPassed, nil), nil
}
