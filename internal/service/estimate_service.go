package service

import (
	"context"
	"time"

	"github.com/gbl08ma/sqalx"

	"github.com/hazemshokry/train-tracking-app/internal/apperr"
	"github.com/hazemshokry/train-tracking-app/internal/database"
	"github.com/hazemshokry/train-tracking-app/internal/events"
	"github.com/hazemshokry/train-tracking-app/internal/lock"
	"github.com/hazemshokry/train-tracking-app/internal/logger"
	"github.com/hazemshokry/train-tracking-app/internal/models"
	"github.com/hazemshokry/train-tracking-app/internal/stats"
)

// recentReportWindow is how far back the train status counts reports.
const recentReportWindow = 6 * time.Hour

// EstimateService handles business logic for calculated estimates
type EstimateService struct {
	deps Deps
	log  *logger.Logger
}

// NewEstimateService creates a new estimate service
func NewEstimateService(deps Deps) *EstimateService {
	return &EstimateService{deps: deps, log: deps.Log.With("component", "EstimateService")}
}

// GetCalculatedEstimate returns the estimate of one station of an
// operation; nil when no report created it yet.
func (s *EstimateService) GetCalculatedEstimate(ctx context.Context, operationID, stationID int64) (*models.CalculatedEstimate, error) {
	est, err := s.deps.Estimates.Get(ctx, s.deps.DB.Root, operationID, stationID)
	if err != nil {
		return nil, internal("failed to get estimate", err)
	}
	return est, nil
}

// ListEstimates returns every estimate of an operation in route order.
func (s *EstimateService) ListEstimates(ctx context.Context, operationID int64) ([]models.CalculatedEstimate, error) {
	list, err := s.deps.Estimates.List(ctx, s.deps.DB.Root, operationID)
	if err != nil {
		return nil, internal("failed to list estimates", err)
	}
	return list, nil
}

// AdminOverride pins an estimate to an admin supplied time until cleared.
func (s *EstimateService) AdminOverride(ctx context.Context, in models.AdminOverrideInput) (*models.CalculatedEstimate, error) {
	return s.locked(ctx, in.OperationID, in.StationID, func(tx sqalx.Node) (*models.CalculatedEstimate, error) {
		return s.deps.Estimates.Override(ctx, tx, in)
	})
}

// ClearAdminOverride returns an estimate to report-driven computation.
func (s *EstimateService) ClearAdminOverride(ctx context.Context, operationID, stationID int64) (*models.CalculatedEstimate, error) {
	return s.locked(ctx, operationID, stationID, func(tx sqalx.Node) (*models.CalculatedEstimate, error) {
		return s.deps.Estimates.ClearOverride(ctx, tx, operationID, stationID)
	})
}

func (s *EstimateService) locked(ctx context.Context, operationID, stationID int64, fn func(tx sqalx.Node) (*models.CalculatedEstimate, error)) (*models.CalculatedEstimate, error) {
	d := &s.deps
	release, err := d.acquire(ctx, lock.EstimateKey(operationID, stationID))
	if err != nil {
		return nil, err
	}
	defer release()

	var est *models.CalculatedEstimate
	err = database.Transaction(d.DB.Root, func(tx sqalx.Node) error {
		var err error
		est, err = fn(tx)
		return err
	})
	if err != nil {
		return nil, internal("failed to update estimate", err)
	}

	op, err := d.Lookup.Operation(d.DB.Root, operationID)
	if err == nil && op != nil {
		d.publish(events.EstimateUpdated(op.TrainNumber, est))
	}
	return est, nil
}

// GetTrainStatus summarises one run of a train. An empty date means the
// current operational day.
func (s *EstimateService) GetTrainStatus(ctx context.Context, trainNumber, date string) (*models.TrainStatusSummary, error) {
	d := &s.deps
	train, err := d.Lookup.Train(trainNumber)
	if err != nil {
		return nil, internal("failed to load train", err)
	}
	if train == nil {
		return nil, apperr.NotFound("train", trainNumber)
	}
	now := d.Now()
	if date == "" {
		date = d.Lookup.OperationalDate(train, now)
	} else if _, err := time.Parse(models.DateLayout, date); err != nil {
		return nil, apperr.Invalid("date must be YYYY-MM-DD")
	}

	summary := &models.TrainStatusSummary{
		TrainNumber:     train.Number,
		OperationalDate: date,
		OverallStatus:   models.EstimateStatusScheduled,
		Estimates:       []models.CalculatedEstimate{},
	}
	op, err := d.Lookup.FindOperation(d.DB.Root, train.Number, date)
	if err != nil {
		return nil, internal("failed to find operation", err)
	}
	if op == nil {
		return summary, nil
	}
	summary.Operation = op

	if summary.Estimates, err = d.Estimates.List(ctx, d.DB.Root, op.ID); err != nil {
		return nil, internal("failed to list estimates", err)
	}
	var delays []float64
	for _, est := range summary.Estimates {
		if est.Status.Severity() > summary.OverallStatus.Severity() {
			summary.OverallStatus = est.Status
		}
		if est.NumberOfReports > 0 {
			delays = append(delays, float64(est.DelayMinutes))
		}
	}
	summary.AverageDelayMinutes = stats.Mean(delays)

	since := now.Add(-recentReportWindow)
	recent, err := d.Reports.ListForOperation(d.DB.Root, op.ID, 0, &since, 0)
	if err != nil {
		return nil, internal("failed to list reports", err)
	}
	summary.RecentReports = len(recent)
	if len(recent) > 0 {
		station, at := recent[0].StationID, recent[0].ReportedTime
		summary.LastReportedStation = &station
		summary.LastReportAt = &at
	}
	return summary, nil
}
