package validation

import (
	"context"
	"time"

	"github.com/hazemshokry/train-tracking-app/internal/models"
)

const sameTypeTolerance = 30 * time.Minute

// ConsistencyValidator checks agreement with other recent reports for the
// same train and station.
type ConsistencyValidator struct{}

func (ConsistencyValidator) Type() models.ValidatorType { return models.ValidatorConsistency }

func (ConsistencyValidator) Validate(_ context.Context, r *models.Report, in *Input) (*models.ValidationOutcome, error) {
	peers := in.Peers
	if len(peers) > PeerLimit {
		peers = peers[:PeerLimit]
	}
	if len(peers) == 0 {
		return outcome(models.ValidatorConsistency, 0.6, models.VerdictWarning, map[string]any{
			"reason": "no other reports to compare",
		}), nil
	}

	consistent := 0
	for i := range peers {
		if consistentWith(r, &peers[i]) {
			consistent++
		}
	}
	ratio := float64(consistent) / float64(len(peers))

	var score float64
	var verdict models.Verdict
	switch {
	case ratio >= 0.8:
		score, verdict = 1.0, models.VerdictPassed
	case ratio >= 0.6:
		score, verdict = 0.8, models.VerdictPassed
	case ratio >= 0.4:
		score, verdict = 0.6, models.VerdictWarning
	default:
		score, verdict = 0.3, models.VerdictFailed
	}
	return outcome(models.ValidatorConsistency, score, verdict, map[string]any{
		"peers":            len(peers),
		"consistent_peers": consistent,
		"ratio":            ratio,
	}), nil
}

// consistentWith reports whether two observations of the same train at the
// same station can both be true.
func consistentWith(r, peer *models.Report) bool {
	switch {
	case r.ReportType == peer.ReportType:
		return absDuration(r.ReportedTime.Sub(peer.ReportedTime)) <= sameTypeTolerance
	case r.ReportType.IsArrivalLike() && peer.ReportType == models.ReportTypeDeparture:
		return !peer.ReportedTime.Before(r.ReportedTime)
	case r.ReportType == models.ReportTypeDeparture && peer.ReportType.IsArrivalLike():
		return !r.ReportedTime.Before(peer.ReportedTime)
	}
	return true
}
