package validation

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/hazemshokry/train-tracking-app/internal/logger"
	"github.com/hazemshokry/train-tracking-app/internal/models"
	"github.com/hazemshokry/train-tracking-app/internal/stats"
)

// Engine runs every validator over a report and aggregates the outcomes.
type Engine struct {
	validators []Validator
	log        *logger.Logger
}

// NewEngine creates an engine over validators, or over DefaultValidators
// when none are given.
func NewEngine(log *logger.Logger, validators ...Validator) *Engine {
	if len(validators) == 0 {
		validators = DefaultValidators()
	}
	return &Engine{validators: validators, log: log.With("component", "ValidationEngine")}
}

// Validate runs all validators concurrently. A validator that errors or
// panics contributes a failed outcome with score 0 instead of aborting.
func (e *Engine) Validate(ctx context.Context, report *models.Report, in *Input) *models.ValidationSummary {
	outcomes := make([]models.ValidationOutcome, len(e.validators))

	var g errgroup.Group
	for i, v := range e.validators {
		i, v := i, v
		g.Go(func() error {
			outcomes[i] = e.run(ctx, v, report, in)
			return nil
		})
	}
	_ = g.Wait()

	return Aggregate(outcomes)
}

func (e *Engine) run(ctx context.Context, v Validator, report *models.Report, in *Input) (o models.ValidationOutcome) {
	defer func() {
		if p := recover(); p != nil {
			e.log.Error("validator panicked", "validator", v.Type(), "panic", p)
			o = failedOutcome(v.Type(), fmt.Errorf("panic: %v", p), in)
		}
	}()

	res, err := v.Validate(ctx, report, in)
	if err == nil && res == nil {
		err = fmt.Errorf("validator returned no outcome")
	}
	if err != nil {
		e.log.Warn("validator failed", "validator", v.Type(), "error", err)
		return failedOutcome(v.Type(), err, in)
	}
	res.ValidatorType = v.Type()
	res.Weight = v.Type().Weight()
	res.Score = stats.Clamp(res.Score, 0, 1)
	res.CreatedAt = in.Now
	return *res
}

func failedOutcome(v models.ValidatorType, err error, in *Input) models.ValidationOutcome {
	return models.ValidationOutcome{
		ValidatorType: v,
		Verdict:       models.VerdictFailed,
		Score:         0,
		Weight:        v.Weight(),
		ErrorMessage:  err.Error(),
		CreatedAt:     in.Now,
	}
}

// Aggregate folds outcomes into a confidence score and report status. A
// failure of a critical validator rejects the report whatever the score.
func Aggregate(outcomes []models.ValidationOutcome) *models.ValidationSummary {
	var weighted, weights float64
	summary := &models.ValidationSummary{Outcomes: outcomes}
	for _, o := range outcomes {
		weighted += o.Score * o.Weight
		weights += o.Weight
		if o.ValidatorType.Critical() && o.Verdict == models.VerdictFailed && !summary.Critical {
			summary.Critical = true
			summary.CriticalType = o.ValidatorType
		}
	}
	if weights > 0 {
		summary.Confidence = stats.Clamp(weighted/weights, 0, 1)
	}

	switch {
	case summary.Critical:
		summary.Status = models.ValidationStatusRejected
	case summary.Confidence >= 0.8:
		summary.Status = models.ValidationStatusValidated
	case summary.Confidence >= 0.5:
		summary.Status = models.ValidationStatusPending
	case summary.Confidence >= 0.3:
		summary.Status = models.ValidationStatusFlagged
	default:
		summary.Status = models.ValidationStatusRejected
	}
	return summary
}
