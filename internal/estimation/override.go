package estimation

import (
	"time"

	"github.com/hazemshokry/train-tracking-app/internal/models"
)

// ApplyOverride pins est to an operator supplied arrival time. Without an
// explicit status one is derived from the resulting delay.
func ApplyOverride(est *models.CalculatedEstimate, in models.AdminOverrideInput, now time.Time) {
	override := in.OverrideTime
	adminID := in.AdminID

	est.PreviousArrival = est.CalculatedArrival
	est.PreviousDeparture = est.CalculatedDeparture
	est.CalculatedArrival = &override
	est.AdminOverride = true
	est.AdminOverrideTime = &override
	est.AdminNotes = in.Notes
	est.AdminUpdatedBy = &adminID
	est.AdminUpdatedAt = &now
	est.ConfidenceLevel = 1.0
	est.DelayMinutes = DelayMinutes(est)
	est.LastUpdated = now

	switch {
	case in.Status != "":
		est.Status = in.Status
	case est.DelayMinutes > models.DelayedThresholdMinutes:
		est.Status = models.EstimateStatusDelayed
	default:
		est.Status = models.EstimateStatusConfirmed
	}
}

// ClearOverride drops the override fields. The caller recomputes the
// estimate from reports afterwards.
func ClearOverride(est *models.CalculatedEstimate, now time.Time) {
	est.AdminOverride = false
	est.AdminOverrideTime = nil
	est.AdminNotes = ""
	est.AdminUpdatedBy = nil
	est.AdminUpdatedAt = nil
	est.LastUpdated = now
}

// Cancel marks est as cancelled by an upstream no-show or cancellation.
// Estimates under admin override are kept and Cancel returns false.
func Cancel(est *models.CalculatedEstimate, now time.Time) bool {
	if est.AdminOverride {
		return false
	}
	est.Status = models.EstimateStatusCancelled
	est.ConfidenceLevel = models.CascadeConfidence
	est.LastUpdated = now
	return true
}
