package validation

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/hazemshokry/train-tracking-app/internal/models"
	"github.com/hazemshokry/train-tracking-app/internal/stats"
)

// Pattern is a per-user abuse heuristic.
type Pattern string

const (
	PatternIdentical         Pattern = "identical_reports"
	PatternImpossibleTravel  Pattern = "impossible_travel"
	PatternExcessiveNegative Pattern = "excessive_negative"
	PatternBotTiming         Pattern = "bot_timing"
)

func (p Pattern) severity() float64 {
	switch p {
	case PatternIdentical:
		return 0.8
	case PatternImpossibleTravel:
		return 0.9
	case PatternExcessiveNegative:
		return 0.6
	case PatternBotTiming:
		return 0.7
	}
	return 0.5
}

const (
	minTravelTime       = 10 * time.Minute
	negativeRatioLimit  = 0.7
	botTimingMinReports = 5
	patternMinReports   = 2
)

// PatternValidator looks for abuse patterns across the reporter's recent
// history, including the report being validated.
type PatternValidator struct{}

func (PatternValidator) Type() models.ValidatorType { return models.ValidatorPattern }

func (PatternValidator) Validate(_ context.Context, r *models.Report, in *Input) (*models.ValidationOutcome, error) {
	reports := make([]models.Report, 0, len(in.History)+1)
	reports = append(reports, *r)
	reports = append(reports, in.History...)

	patterns := DetectPatterns(reports)
	if len(patterns) == 0 {
		return outcome(models.ValidatorPattern, 0.9, models.VerdictPassed, map[string]any{
			"reports_checked": len(reports),
		}), nil
	}

	severity := 0.0
	names := make([]string, len(patterns))
	for i, p := range patterns {
		severity += p.severity()
		names[i] = string(p)
	}
	severity = math.Min(1.0, severity)

	var score float64
	var verdict models.Verdict
	switch {
	case severity <= 0.3:
		score, verdict = 0.8, models.VerdictPassed
	case severity <= 0.6:
		score, verdict = 0.6, models.VerdictWarning
	default:
		score, verdict = 0.2, models.VerdictFailed
	}
	return outcome(models.ValidatorPattern, score, verdict, map[string]any{
		"patterns":        names,
		"severity":        severity,
		"reports_checked": len(reports),
		"reason":          fmt.Sprintf("suspicious patterns: %v", names),
	}), nil
}

// DetectPatterns runs every heuristic over reports ordered newest first.
func DetectPatterns(reports []models.Report) []Pattern {
	if len(reports) < patternMinReports {
		return nil
	}
	var out []Pattern
	if hasIdenticalReports(reports) {
		out = append(out, PatternIdentical)
	}
	if hasImpossibleTravel(reports) {
		out = append(out, PatternImpossibleTravel)
	}
	if hasExcessiveNegative(reports) {
		out = append(out, PatternExcessiveNegative)
	}
	if hasBotTiming(reports) {
		out = append(out, PatternBotTiming)
	}
	return out
}

func hasIdenticalReports(reports []models.Report) bool {
	type key struct {
		train   string
		station int64
		typ     models.ReportType
		minute  int64
	}
	seen := make(map[key]bool, len(reports))
	for _, r := range reports {
		k := key{r.TrainNumber, r.StationID, r.ReportType, r.ReportedTime.Truncate(time.Minute).Unix()}
		if seen[k] {
			return true
		}
		seen[k] = true
	}
	return false
}

// hasImpossibleTravel flags consecutive submissions from different stations
// whose reported times are too close to travel between them.
func hasImpossibleTravel(reports []models.Report) bool {
	for i := 0; i+1 < len(reports); i++ {
		a, b := reports[i], reports[i+1]
		if a.StationID == b.StationID {
			continue
		}
		if absDuration(a.ReportedTime.Sub(b.ReportedTime)) < minTravelTime {
			return true
		}
	}
	return false
}

func hasExcessiveNegative(reports []models.Report) bool {
	negative := 0
	for _, r := range reports {
		if r.ReportType.IsNegative() {
			negative++
		}
	}
	return float64(negative) > float64(len(reports))*negativeRatioLimit
}

// hasBotTiming flags histories whose submissions are spaced exactly evenly,
// to the second.
func hasBotTiming(reports []models.Report) bool {
	if len(reports) < botTimingMinReports {
		return false
	}
	intervals := make([]float64, 0, len(reports)-1)
	for i := 0; i+1 < len(reports); i++ {
		gap := reports[i].CreatedAt.Sub(reports[i+1].CreatedAt)
		intervals = append(intervals, gap.Truncate(time.Second).Seconds())
	}
	return stats.AllEqual(intervals)
}
