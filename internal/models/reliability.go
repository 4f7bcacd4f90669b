package models

import (
	"math"
	"time"
)

// UserTier is the coarse trust class of a reporter.
type UserTier string

const (
	UserTierAdmin    UserTier = "admin"
	UserTierVerified UserTier = "verified"
	UserTierRegular  UserTier = "regular"
	UserTierNew      UserTier = "new"
	UserTierFlagged  UserTier = "flagged"
)

// DefaultReliabilityScore is assigned to users without any outcome yet.
const DefaultReliabilityScore = 0.6

// SpamBlockThreshold is the spam count above which a flagged user is blocked.
const SpamBlockThreshold = 10

// WeightFactor is the influence a report of a user in this tier has on estimates.
func (t UserTier) WeightFactor() float64 {
	switch t {
	case UserTierAdmin:
		return 1.0
	case UserTierVerified:
		return 0.8
	case UserTierRegular:
		return 0.6
	case UserTierFlagged:
		return 0.2
	}
	return 0.4
}

// RateLimits are the submission caps for a tier.
type RateLimits struct {
	PerMinute int `json:"per_minute"`
	PerHour   int `json:"per_hour"`
	PerDay    int `json:"per_day"`
}

// RateLimits returns the submission caps of the tier.
func (t UserTier) RateLimits() RateLimits {
	switch t {
	case UserTierAdmin:
		return RateLimits{PerMinute: 100, PerHour: 1000, PerDay: 10000}
	case UserTierVerified:
		return RateLimits{PerMinute: 10, PerHour: 100, PerDay: 1000}
	case UserTierRegular:
		return RateLimits{PerMinute: 5, PerHour: 50, PerDay: 500}
	case UserTierFlagged:
		return RateLimits{PerMinute: 1, PerHour: 5, PerDay: 20}
	}
	return RateLimits{PerMinute: 2, PerHour: 20, PerDay: 100}
}

// ReliabilityOutcome is a trust event recorded against a user.
type ReliabilityOutcome string

const (
	OutcomeAccurate ReliabilityOutcome = "accurate"
	OutcomeFlagged  ReliabilityOutcome = "flagged"
	OutcomeSpam     ReliabilityOutcome = "spam"
)

// ReliabilityRecord is the cumulative trust state of one user.
type ReliabilityRecord struct {
	UserID           int64     `json:"user_id"`
	ReliabilityScore float64   `json:"reliability_score"`
	TotalReports     int       `json:"total_reports"`
	AccurateReports  int       `json:"accurate_reports"`
	FlaggedReports   int       `json:"flagged_reports"`
	SpamReports      int       `json:"spam_reports"`
	UserTier         UserTier  `json:"user_tier"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// NewReliabilityRecord returns the default record of a user with no history.
func NewReliabilityRecord(userID int64, now time.Time) *ReliabilityRecord {
	return &ReliabilityRecord{
		UserID:           userID,
		ReliabilityScore: DefaultReliabilityScore,
		UserTier:         UserTierNew,
		UpdatedAt:        now,
	}
}

// Apply records one outcome and recomputes score and tier.
func (r *ReliabilityRecord) Apply(outcome ReliabilityOutcome, now time.Time) {
	r.TotalReports++
	switch outcome {
	case OutcomeAccurate:
		r.AccurateReports++
	case OutcomeFlagged:
		r.FlaggedReports++
	case OutcomeSpam:
		r.SpamReports++
	}
	r.ReliabilityScore = r.computeScore()
	r.UserTier = r.deriveTier()
	r.UpdatedAt = now
}

// Blocked reports whether the user may not submit at all.
func (r *ReliabilityRecord) Blocked() bool {
	return r.UserTier == UserTierFlagged && r.SpamReports > SpamBlockThreshold
}

// WeightFactor is the weight snapshotted onto new reports of this user.
func (r *ReliabilityRecord) WeightFactor() float64 {
	return r.UserTier.WeightFactor()
}

func (r *ReliabilityRecord) computeScore() float64 {
	if r.TotalReports == 0 {
		return DefaultReliabilityScore
	}
	total := float64(r.TotalReports)
	score := float64(r.AccurateReports)/total -
		0.3*float64(r.FlaggedReports)/total -
		0.5*float64(r.SpamReports)/total
	return math.Max(0.1, math.Min(1.0, score))
}

func (r *ReliabilityRecord) deriveTier() UserTier {
	switch {
	case r.UserTier == UserTierAdmin:
		return UserTierAdmin
	case r.SpamReports > 5 || r.ReliabilityScore < 0.3:
		return UserTierFlagged
	case r.TotalReports >= 50 && r.ReliabilityScore >= 0.8:
		return UserTierVerified
	case r.TotalReports >= 10 && r.ReliabilityScore >= 0.6:
		return UserTierRegular
	}
	return UserTierNew
}
