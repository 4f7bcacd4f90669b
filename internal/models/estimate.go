package models

import "time"

// EstimateStatus is the state of a calculated estimate.
type EstimateStatus string

const (
	EstimateStatusScheduled EstimateStatus = "scheduled"
	EstimateStatusEstimated EstimateStatus = "estimated"
	EstimateStatusConfirmed EstimateStatus = "confirmed"
	EstimateStatusPassed    EstimateStatus = "passed"
	EstimateStatusCancelled EstimateStatus = "cancelled"
	EstimateStatusDelayed   EstimateStatus = "delayed"
)

// ParseEstimateStatus validates a raw estimate status string.
func ParseEstimateStatus(s string) (EstimateStatus, bool) {
	switch st := EstimateStatus(s); st {
	case EstimateStatusScheduled, EstimateStatusEstimated, EstimateStatusConfirmed,
		EstimateStatusPassed, EstimateStatusCancelled, EstimateStatusDelayed:
		return st, true
	}
	return "", false
}

// Severity orders statuses for the summary of a whole operation.
func (s EstimateStatus) Severity() int {
	switch s {
	case EstimateStatusCancelled:
		return 5
	case EstimateStatusDelayed:
		return 4
	case EstimateStatusConfirmed:
		return 3
	case EstimateStatusEstimated:
		return 2
	case EstimateStatusPassed:
		return 1
	}
	return 0
}

// CascadeConfidence is the confidence assigned to stations cancelled by a cascade.
const CascadeConfidence = 0.9

// DelayedThresholdMinutes is the delay above which an estimate is delayed.
const DelayedThresholdMinutes = 15

// CalculatedEstimate is the current best estimate of one train operation at one station.
type CalculatedEstimate struct {
	ID                  int64          `json:"id"`
	OperationID         int64          `json:"operation_id"`
	StationID           int64          `json:"station_id"`
	ScheduledArrival    *time.Time     `json:"scheduled_arrival,omitempty"`
	ScheduledDeparture  *time.Time     `json:"scheduled_departure,omitempty"`
	CalculatedArrival   *time.Time     `json:"calculated_arrival,omitempty"`
	CalculatedDeparture *time.Time     `json:"calculated_departure,omitempty"`
	PreviousArrival     *time.Time     `json:"previous_arrival,omitempty"`
	PreviousDeparture   *time.Time     `json:"previous_departure,omitempty"`
	NumberOfReports     int            `json:"number_of_reports"`
	WeightedReports     float64        `json:"weighted_reports"`
	ConfidenceLevel     float64        `json:"confidence_level"`
	Status              EstimateStatus `json:"status"`
	DelayMinutes        int            `json:"delay_minutes"`
	AdminOverride       bool           `json:"admin_override"`
	AdminOverrideTime   *time.Time     `json:"admin_override_time,omitempty"`
	AdminNotes          string         `json:"admin_notes,omitempty"`
	AdminUpdatedBy      *int64         `json:"admin_updated_by,omitempty"`
	AdminUpdatedAt      *time.Time     `json:"admin_updated_at,omitempty"`
	LastUpdated         time.Time      `json:"last_updated"`
}

// AdminOverrideInput pins an estimate to an operator supplied time.
type AdminOverrideInput struct {
	AdminID      int64          `json:"-"`
	OperationID  int64          `json:"-"`
	StationID    int64          `json:"-"`
	OverrideTime time.Time      `json:"override_time" binding:"required"`
	Status       EstimateStatus `json:"status"`
	Notes        string         `json:"notes"`
}
