package validation

import (
	"context"
	"fmt"
	"math"

	"github.com/hazemshokry/train-tracking-app/internal/models"
	"github.com/hazemshokry/train-tracking-app/internal/spatial"
)

// distanceBand maps distances up to maxKm onto score.
type distanceBand struct {
	maxKm float64
	score float64
}

var (
	// reporter should be standing at the station
	stationBands = []distanceBand{{1, 1.0}, {3, 0.8}, {10, 0.5}, {math.Inf(1), 0.2}}
	// reporter is on a moving train near the station
	trainBands = []distanceBand{{5, 1.0}, {20, 0.8}, {50, 0.6}, {math.Inf(1), 0.3}}
	otherBands = []distanceBand{{2, 1.0}, {10, 0.7}, {math.Inf(1), 0.4}}
)

// LocationValidator compares the reporter's GPS fix with the station position.
type LocationValidator struct{}

func (LocationValidator) Type() models.ValidatorType { return models.ValidatorLocation }

func (LocationValidator) Validate(_ context.Context, r *models.Report, in *Input) (*models.ValidationOutcome, error) {
	if r.Location == nil {
		return outcome(models.ValidatorLocation, 0.5, models.VerdictWarning, map[string]any{
			"reason": "no location provided",
		}), nil
	}
	if !in.Station.HasCoordinates() {
		return outcome(models.ValidatorLocation, 0.5, models.VerdictWarning, map[string]any{
			"reason": "station has no coordinates",
		}), nil
	}

	reported := spatial.Coordinate{Lat: r.Location.Latitude, Lng: r.Location.Longitude}
	if !reported.Valid() {
		return nil, fmt.Errorf("invalid coordinate %.6f,%.6f", reported.Lat, reported.Lng)
	}
	station := spatial.Coordinate{Lat: *in.Station.Latitude, Lng: *in.Station.Longitude}
	km := spatial.DistanceKm(reported, station)

	bands, category := otherBands, "other"
	switch r.ReportType {
	case models.ReportTypeArrival, models.ReportTypeDeparture, models.ReportTypeOffboard:
		bands, category = stationBands, "station"
	case models.ReportTypeOnboard, models.ReportTypePassing:
		bands, category = trainBands, "train"
	}
	score := bands[len(bands)-1].score
	for _, b := range bands {
		if km <= b.maxKm {
			score = b.score
			break
		}
	}

	details := map[string]any{
		"distance_km": math.Round(km*1000) / 1000,
		"category":    category,
	}
	if r.Location.Accuracy != nil {
		details["gps_accuracy_m"] = *r.Location.Accuracy
	}
	return outcome(models.ValidatorLocation, score, models.VerdictForScore(score), details), nil
}
