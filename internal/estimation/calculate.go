// Package estimation folds accepted reports into the calculated arrival
// and departure of one train operation at one station.
package estimation

import (
	"math"
	"time"

	"github.com/hazemshokry/train-tracking-app/internal/models"
	"github.com/hazemshokry/train-tracking-app/internal/stats"
)

// Apply recomputes every derived field of est from reports, which should be
// the reports of est's operation and station. Reports that are not accepted
// are ignored. An estimate under admin override is left untouched and Apply
// returns false.
func Apply(est *models.CalculatedEstimate, reports []models.Report, now time.Time) bool {
	if est.AdminOverride {
		return false
	}

	var accepted, arrivals, departures []models.Report
	for _, r := range reports {
		if !r.ValidationStatus.Accepted() {
			continue
		}
		accepted = append(accepted, r)
		switch {
		case r.ReportType.IsArrivalLike():
			arrivals = append(arrivals, r)
		case r.ReportType == models.ReportTypeDeparture:
			departures = append(departures, r)
		}
	}

	est.PreviousArrival, est.CalculatedArrival = roll(est.PreviousArrival, est.CalculatedArrival, weightedTime(arrivals))
	est.PreviousDeparture, est.CalculatedDeparture = roll(est.PreviousDeparture, est.CalculatedDeparture, weightedTime(departures))

	confidences := make([]float64, len(accepted))
	factors := make([]float64, len(accepted))
	est.WeightedReports = 0
	for i, r := range accepted {
		confidences[i] = r.ConfidenceScore
		factors[i] = r.WeightFactor
		est.WeightedReports += r.EstimateWeight()
	}
	est.NumberOfReports = len(accepted)
	est.ConfidenceLevel = ConfidenceLevel(len(accepted), stats.Mean(confidences), stats.Mean(factors))
	est.DelayMinutes = DelayMinutes(est)
	est.Status = deriveStatus(est, accepted)
	est.LastUpdated = now
	return true
}

// ConfidenceLevel blends report count, report confidence and reporter
// weight into the confidence of an estimate.
func ConfidenceLevel(n int, avgConfidence, avgWeight float64) float64 {
	if n == 0 {
		return 0
	}
	level := 0.3*math.Min(1, float64(n)/5) + 0.4*avgConfidence + 0.3*avgWeight
	return stats.Clamp(level, 0, 1)
}

// DelayMinutes is the rounded difference between calculated and scheduled
// time. The arrival pair is preferred, then the departure pair; without
// either the estimate is on schedule.
func DelayMinutes(est *models.CalculatedEstimate) int {
	switch {
	case est.CalculatedArrival != nil && est.ScheduledArrival != nil:
		return minutesBetween(*est.ScheduledArrival, *est.CalculatedArrival)
	case est.CalculatedDeparture != nil && est.ScheduledDeparture != nil:
		return minutesBetween(*est.ScheduledDeparture, *est.CalculatedDeparture)
	}
	return 0
}

func minutesBetween(scheduled, actual time.Time) int {
	return int(math.Round(actual.Sub(scheduled).Minutes()))
}

func deriveStatus(est *models.CalculatedEstimate, accepted []models.Report) models.EstimateStatus {
	breakdown := false
	for _, r := range accepted {
		switch r.ReportType {
		case models.ReportTypeCancelled, models.ReportTypeNoShow:
			return models.EstimateStatusCancelled
		case models.ReportTypeBreakdown:
			breakdown = true
		}
	}
	switch {
	case breakdown:
		return models.EstimateStatusDelayed
	case est.DelayMinutes > models.DelayedThresholdMinutes:
		return models.EstimateStatusDelayed
	case est.ConfidenceLevel >= 0.8:
		return models.EstimateStatusConfirmed
	case est.NumberOfReports > 0:
		return models.EstimateStatusEstimated
	}
	return models.EstimateStatusScheduled
}

// weightedTime is the weighted average of the reported times. It returns
// nil when there is no positive weight mass.
func weightedTime(reports []models.Report) *time.Time {
	if len(reports) == 0 {
		return nil
	}
	ref := reports[0].ReportedTime
	for _, r := range reports[1:] {
		if r.ReportedTime.Before(ref) {
			ref = r.ReportedTime
		}
	}
	offsets := make([]float64, len(reports))
	weights := make([]float64, len(reports))
	for i, r := range reports {
		offsets[i] = float64(r.ReportedTime.Sub(ref))
		weights[i] = r.EstimateWeight()
	}
	mean, ok := stats.WeightedMean(offsets, weights)
	if !ok {
		return nil
	}
	t := ref.Add(time.Duration(math.Round(mean))).Round(time.Millisecond)
	return &t
}

// roll moves current into previous when next replaces it.
func roll(previous, current, next *time.Time) (*time.Time, *time.Time) {
	if current != nil && (next == nil || !current.Equal(*next)) {
		previous = current
	}
	return previous, next
}
