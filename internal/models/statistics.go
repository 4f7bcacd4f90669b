package models

import "time"

// UserReportStats summarises a reporter's recent activity.
type UserReportStats struct {
	UserID            int64                    `json:"user_id"`
	PeriodDays        int                      `json:"period_days"`
	TotalReports      int                      `json:"total_reports"`
	ByStatus          map[ValidationStatus]int `json:"by_status"`
	ByType            map[ReportType]int       `json:"by_type"`
	AverageConfidence float64                  `json:"average_confidence"`
	Reliability       *ReliabilityRecord       `json:"reliability"`
	RewardPoints      int                      `json:"reward_points"`
}

// TrainStatusSummary is the overall picture of one train operation.
type TrainStatusSummary struct {
	TrainNumber         string               `json:"train_number"`
	OperationalDate     string               `json:"operational_date"`
	Operation           *Operation           `json:"operation,omitempty"`
	OverallStatus       EstimateStatus       `json:"overall_status"`
	AverageDelayMinutes float64              `json:"average_delay_minutes"`
	RecentReports       int                  `json:"recent_reports"`
	LastReportedStation *int64               `json:"last_reported_station,omitempty"`
	LastReportAt        *time.Time           `json:"last_report_at,omitempty"`
	Estimates           []CalculatedEstimate `json:"estimates"`
}
