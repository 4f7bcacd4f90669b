package validation

import (
	"context"

	"github.com/hazemshokry/train-tracking-app/internal/models"
)

// RouteValidator checks that the station is served by the train.
type RouteValidator struct{}

func (RouteValidator) Type() models.ValidatorType { return models.ValidatorRoute }

func (RouteValidator) Validate(_ context.Context, r *models.Report, in *Input) (*models.ValidationOutcome, error) {
	switch {
	case in.RouteEntry != nil:
		return outcome(models.ValidatorRoute, 1.0, models.VerdictPassed, map[string]any{
			"sequence_number": in.RouteEntry.SequenceNumber,
		}), nil
	case r.IsIntermediateStation:
		return outcome(models.ValidatorRoute, 0.6, models.VerdictWarning, map[string]any{
			"reason": "station is not on the official route, reported as intermediate stop",
		}), nil
	}
	return outcome(models.ValidatorRoute, 0.1, models.VerdictFailed, map[string]any{
		"reason": "station is not on the train's route",
	}), nil
}
