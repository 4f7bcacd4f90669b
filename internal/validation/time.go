package validation

import (
	"context"
	"errors"
	"time"

	"github.com/hako/durafmt"

	"github.com/hazemshokry/train-tracking-app/internal/models"
)

const (
	maxFutureSkew = 2 * time.Hour
	maxReportAge  = 48 * time.Hour
)

// TimeValidator checks that the reported time is plausible relative to now
// and to the schedule.
type TimeValidator struct{}

func (TimeValidator) Type() models.ValidatorType { return models.ValidatorTime }

func (TimeValidator) Validate(_ context.Context, r *models.Report, in *Input) (*models.ValidationOutcome, error) {
	if r.ReportedTime.IsZero() {
		return nil, errors.New("report has no reported time")
	}

	ahead := r.ReportedTime.Sub(in.Now)
	switch {
	case ahead > maxFutureSkew:
		return outcome(models.ValidatorTime, 0.0, models.VerdictFailed, map[string]any{
			"reason":    "reported time is too far in the future",
			"time_skew": humanize(ahead),
		}), nil
	case -ahead > maxReportAge:
		return outcome(models.ValidatorTime, 0.1, models.VerdictFailed, map[string]any{
			"reason": "reported time is too old",
			"age":    humanize(-ahead),
		}), nil
	}

	if in.Scheduled == nil {
		return outcome(models.ValidatorTime, 0.6, models.VerdictWarning, map[string]any{
			"reason": "no schedule available",
		}), nil
	}

	diff := absDuration(r.ReportedTime.Sub(*in.Scheduled))
	window := r.ReportType.ExpectedWindow()
	score := windowScore(diff, window)
	return outcome(models.ValidatorTime, score, models.VerdictForScore(score), map[string]any{
		"scheduled_time":     in.Scheduled.UTC().Format(time.RFC3339),
		"difference_minutes": int(diff.Minutes()),
		"difference":         humanize(diff),
		"window_minutes":     int(window.Minutes()),
	}), nil
}

// windowScore decays with the number of expected windows between report and schedule.
func windowScore(diff, window time.Duration) float64 {
	switch {
	case diff <= window:
		return 1.0
	case diff <= 2*window:
		return 0.8
	case diff <= 4*window:
		return 0.6
	case diff <= 8*window:
		return 0.4
	}
	return 0.2
}

func humanize(d time.Duration) string {
	if d < time.Minute {
		return durafmt.Parse(d.Round(time.Second)).String()
	}
	return durafmt.Parse(d.Round(time.Minute)).LimitFirstN(2).String()
}
