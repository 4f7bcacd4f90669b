package models

import (
	"fmt"
	"time"
)

// ReportType identifies what a user observed.
type ReportType string

const (
	ReportTypeArrival      ReportType = "arrival"
	ReportTypeDeparture    ReportType = "departure"
	ReportTypeOnboard      ReportType = "onboard"
	ReportTypeOffboard     ReportType = "offboard"
	ReportTypePassing      ReportType = "passing"
	ReportTypeDelayed      ReportType = "delayed"
	ReportTypeCancelled    ReportType = "cancelled"
	ReportTypeNoShow       ReportType = "no_show"
	ReportTypeEarlyArrival ReportType = "early_arrival"
	ReportTypeBreakdown    ReportType = "breakdown"
)

// ReportTypes lists every known report type in a stable order.
var ReportTypes = []ReportType{
	ReportTypeArrival, ReportTypeDeparture, ReportTypeOnboard, ReportTypeOffboard,
	ReportTypePassing, ReportTypeDelayed, ReportTypeCancelled, ReportTypeNoShow,
	ReportTypeEarlyArrival, ReportTypeBreakdown,
}

// ParseReportType validates a raw report type string.
func ParseReportType(s string) (ReportType, error) {
	for _, t := range ReportTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown report type %q", s)
}

// ExpectedWindow is how far from the schedule a report of this type may
// plausibly land and still count as on time.
func (t ReportType) ExpectedWindow() time.Duration {
	switch t {
	case ReportTypeArrival, ReportTypeDeparture, ReportTypeEarlyArrival:
		return 30 * time.Minute
	case ReportTypeOnboard, ReportTypeOffboard:
		return 15 * time.Minute
	case ReportTypePassing:
		return 10 * time.Minute
	case ReportTypeDelayed, ReportTypeBreakdown:
		return 60 * time.Minute
	case ReportTypeNoShow:
		return 120 * time.Minute
	case ReportTypeCancelled:
		return 240 * time.Minute
	}
	return 30 * time.Minute
}

// IsArrivalLike reports whether the type feeds the arrival estimate.
func (t ReportType) IsArrivalLike() bool {
	return t == ReportTypeArrival || t == ReportTypeEarlyArrival
}

// IsNegative reports whether the type announces a disruption.
func (t ReportType) IsNegative() bool {
	switch t {
	case ReportTypeDelayed, ReportTypeCancelled, ReportTypeNoShow, ReportTypeBreakdown:
		return true
	}
	return false
}

// Cascades reports whether an accepted report of this type cancels the
// downstream stations of the route.
func (t ReportType) Cascades() bool {
	return t == ReportTypeNoShow || t == ReportTypeCancelled
}

// ValidationStatus is the lifecycle state of a report.
type ValidationStatus string

const (
	ValidationStatusPending   ValidationStatus = "pending"
	ValidationStatusValidated ValidationStatus = "validated"
	ValidationStatusRejected  ValidationStatus = "rejected"
	ValidationStatusFlagged   ValidationStatus = "flagged"
)

// Accepted reports whether a report with this status feeds estimates.
func (s ValidationStatus) Accepted() bool {
	return s == ValidationStatusValidated || s == ValidationStatusPending
}

// AcceptedStatuses are the statuses that feed estimates.
var AcceptedStatuses = []ValidationStatus{ValidationStatusValidated, ValidationStatusPending}

// Location is an optional GPS fix attached to a report.
type Location struct {
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Accuracy  *float64 `json:"accuracy,omitempty"` // meters
}

// Report is one user-submitted observation.
type Report struct {
	ID                    int64            `json:"id"`
	UserID                int64            `json:"user_id"`
	TrainNumber           string           `json:"train_number"`
	OperationID           int64            `json:"operation_id"`
	StationID             int64            `json:"station_id"`
	ReportType            ReportType       `json:"report_type"`
	ReportedTime          time.Time        `json:"reported_time"`
	CreatedAt             time.Time        `json:"created_at"`
	Location              *Location        `json:"location,omitempty"`
	DelayMinutes          *int             `json:"delay_minutes,omitempty"`
	Notes                 string           `json:"notes,omitempty"`
	ConfidenceScore       float64          `json:"confidence_score"`
	WeightFactor          float64          `json:"weight_factor"`
	ValidationStatus      ValidationStatus `json:"validation_status"`
	IsIntermediateStation bool             `json:"is_intermediate_station"`
	VerifiedBy            *int64           `json:"verified_by,omitempty"`
	VerifiedAt            *time.Time       `json:"verified_at,omitempty"`
	VerificationNotes     string           `json:"verification_notes,omitempty"`

	Validations []ValidationOutcome `json:"validations,omitempty"`
}

// EstimateWeight is the influence of the report on a weighted-average estimate.
func (r *Report) EstimateWeight() float64 {
	return r.WeightFactor * r.ConfidenceScore
}

// ReportFilter selects reports of one train operation.
type ReportFilter struct {
	TrainNumber string `form:"train" binding:"required"`
	Date        string `form:"date"`
	StationID   int64  `form:"station"`
	Limit       int    `form:"limit"`
}

// SubmissionCounts is how many reports a user persisted in each rate-limit window.
type SubmissionCounts struct {
	LastMinute int `json:"last_minute"`
	LastHour   int `json:"last_hour"`
	LastDay    int `json:"last_day"`
}

// SubmissionResult is what a reporter gets back for every accepted submission.
type SubmissionResult struct {
	Report     *Report            `json:"report"`
	Confidence float64            `json:"confidence"`
	Summary    *ValidationSummary `json:"validation_summary"`
	Cascaded   []int64            `json:"cascaded_station_ids,omitempty"`
}

// SubmitReportInput is a raw observation as submitted by a user.
type SubmitReportInput struct {
	UserID       int64      `json:"-"`
	TrainNumber  string     `json:"train_number" binding:"required"`
	StationID    int64      `json:"station_id" binding:"required"`
	ReportType   ReportType `json:"report_type" binding:"required"`
	ReportedTime *time.Time `json:"reported_time"` // defaults to the submission time
	Location     *Location  `json:"location"`
	DelayMinutes *int       `json:"delay_minutes"`
	Notes        string     `json:"notes" binding:"max=500"`
}
