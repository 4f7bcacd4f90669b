package validation

import (
	"context"
	"fmt"

	"github.com/hazemshokry/train-tracking-app/internal/models"
)

// RateLimitValidator enforces the per-tier submission caps.
type RateLimitValidator struct{}

func (RateLimitValidator) Type() models.ValidatorType { return models.ValidatorRateLimit }

func (RateLimitValidator) Validate(_ context.Context, _ *models.Report, in *Input) (*models.ValidationOutcome, error) {
	rec := in.Reliability
	if rec == nil {
		return nil, fmt.Errorf("no reliability record")
	}
	if rec.Blocked() {
		return outcome(models.ValidatorRateLimit, 0.0, models.VerdictFailed, map[string]any{
			"reason":       "user is blocked for spam",
			"user_tier":    string(rec.UserTier),
			"spam_reports": rec.SpamReports,
		}), nil
	}

	limits := rec.UserTier.RateLimits()
	windows := []struct {
		name  string
		count int
		limit int
	}{
		{"minute", in.Counts.LastMinute, limits.PerMinute},
		{"hour", in.Counts.LastHour, limits.PerHour},
		{"day", in.Counts.LastDay, limits.PerDay},
	}
	for _, w := range windows {
		if w.count >= w.limit {
			return outcome(models.ValidatorRateLimit, 0.0, models.VerdictFailed, map[string]any{
				"reason":    fmt.Sprintf("rate limit exceeded: %d reports per %s", w.limit, w.name),
				"window":    w.name,
				"count":     w.count,
				"limit":     w.limit,
				"user_tier": string(rec.UserTier),
			}), nil
		}
	}
	return outcome(models.ValidatorRateLimit, 1.0, models.VerdictPassed, map[string]any{
		"user_tier":  string(rec.UserTier),
		"per_minute": in.Counts.LastMinute,
		"per_hour":   in.Counts.LastHour,
		"per_day":    in.Counts.LastDay,
	}), nil
}
