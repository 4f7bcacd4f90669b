package estimation

import (
	"context"
	"sort"
	"time"

	"github.com/gbl08ma/sqalx"

	"github.com/hazemshokry/train-tracking-app/internal/apperr"
	"github.com/hazemshokry/train-tracking-app/internal/logger"
	"github.com/hazemshokry/train-tracking-app/internal/models"
	"github.com/hazemshokry/train-tracking-app/internal/reference"
	"github.com/hazemshokry/train-tracking-app/internal/repository"
)

// Service persists estimates. Every method runs inside the caller's
// transaction; callers hold the estimate lock of the rows they touch.
type Service struct {
	estimates *repository.EstimateRepository
	reports   *repository.ReportRepository
	lookup    *reference.Lookup
	log       *logger.Logger
	now       func() time.Time
}

// NewService creates an estimation service. now defaults to time.Now.
func NewService(
	estimates *repository.EstimateRepository,
	reports *repository.ReportRepository,
	lookup *reference.Lookup,
	log *logger.Logger,
	now func() time.Time,
) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		estimates: estimates,
		reports:   reports,
		lookup:    lookup,
		log:       log.With("component", "EstimationService"),
		now:       now,
	}
}

// GetOrCreate returns the estimate of op at stationID, creating it with the
// scheduled times of the route. The row stays locked until node commits.
func (s *Service) GetOrCreate(_ context.Context, node sqalx.Node, op *models.Operation, stationID int64) (*models.CalculatedEstimate, error) {
	entry, err := s.lookup.RouteEntry(op.TrainNumber, stationID)
	if err != nil {
		return nil, err
	}
	seed := &models.CalculatedEstimate{
		OperationID: op.ID,
		StationID:   stationID,
		LastUpdated: s.now(),
	}
	seed.ScheduledArrival, seed.ScheduledDeparture = s.lookup.Scheduled(op, entry)
	return s.estimates.GetOrCreate(node, seed)
}

// Recompute folds the accepted reports of (operationID, stationID) into its
// estimate and saves it.
func (s *Service) Recompute(ctx context.Context, node sqalx.Node, operationID, stationID int64) (*models.CalculatedEstimate, error) {
	op, err := s.operation(node, operationID)
	if err != nil {
		return nil, err
	}
	est, err := s.GetOrCreate(ctx, node, op, stationID)
	if err != nil {
		return nil, err
	}
	reports, err := s.reports.ListAccepted(node, operationID, stationID)
	if err != nil {
		return nil, err
	}
	if !Apply(est, reports, s.now()) {
		s.log.Debug("estimate frozen by admin override", "operation_id", operationID, "station_id", stationID)
		return est, nil
	}
	if err := s.estimates.Save(node, est); err != nil {
		return nil, err
	}
	s.log.Debug("estimate recomputed",
		"operation_id", operationID,
		"station_id", stationID,
		"reports", est.NumberOfReports,
		"status", est.Status,
		"delay_minutes", est.DelayMinutes)
	return est, nil
}

// Cascade cancels every station after entry on the route of op. It returns
// the IDs of the stations whose estimate changed.
func (s *Service) Cascade(ctx context.Context, node sqalx.Node, op *models.Operation, entry *models.RouteEntry) ([]int64, error) {
	downstream, err := s.lookup.Downstream(op.TrainNumber, entry.SequenceNumber)
	if err != nil {
		return nil, err
	}
	var affected []int64
	for _, e := range downstream {
		est, err := s.GetOrCreate(ctx, node, op, e.StationID)
		if err != nil {
			return nil, err
		}
		if !Cancel(est, s.now()) {
			continue
		}
		if err := s.estimates.Save(node, est); err != nil {
			return nil, err
		}
		affected = append(affected, e.StationID)
	}
	if len(affected) > 0 {
		s.log.Info("downstream stations cancelled",
			"operation_id", op.ID,
			"from_station", entry.StationID,
			"stations", affected)
	}
	return affected, nil
}

// Uncascade recomputes the stations after entry that a cascade cancelled
// but that no accepted no-show or cancellation upstream covers any more.
// Stations still behind an accepted cascading report stay cancelled, entry
// included. It returns the estimates it changed.
func (s *Service) Uncascade(ctx context.Context, node sqalx.Node, op *models.Operation, entry *models.RouteEntry) ([]*models.CalculatedEstimate, error) {
	origin, err := s.cascadeOrigin(node, op)
	if err != nil {
		return nil, err
	}
	if origin > 0 && entry.SequenceNumber > origin {
		// entry itself is still behind an accepted cascading report
		est, err := s.estimates.Get(node, op.ID, entry.StationID)
		if err != nil {
			return nil, err
		}
		if est == nil || est.Status == models.EstimateStatusCancelled || !Cancel(est, s.now()) {
			return nil, nil
		}
		if err := s.estimates.Save(node, est); err != nil {
			return nil, err
		}
		return []*models.CalculatedEstimate{est}, nil
	}

	downstream, err := s.lookup.Downstream(op.TrainNumber, entry.SequenceNumber)
	if err != nil {
		return nil, err
	}
	var restored []*models.CalculatedEstimate
	for _, e := range downstream {
		if origin > 0 && e.SequenceNumber >= origin {
			break
		}
		est, err := s.estimates.Get(node, op.ID, e.StationID)
		if err != nil {
			return nil, err
		}
		if est == nil || est.AdminOverride || est.Status != models.EstimateStatusCancelled {
			continue
		}
		if est, err = s.Recompute(ctx, node, op.ID, e.StationID); err != nil {
			return nil, err
		}
		restored = append(restored, est)
	}
	if len(restored) > 0 {
		s.log.Info("cascade withdrawn",
			"operation_id", op.ID,
			"from_station", entry.StationID,
			"stations", len(restored))
	}
	return restored, nil
}

// cascadeOrigin is the lowest route sequence holding an accepted cascading
// report of op; 0 when there is none.
func (s *Service) cascadeOrigin(node sqalx.Node, op *models.Operation) (int, error) {
	reports, err := s.reports.ListForOperation(node, op.ID, 0, nil, 0)
	if err != nil {
		return 0, err
	}
	origin := 0
	for _, r := range reports {
		if !r.ReportType.Cascades() || r.IsIntermediateStation {
			continue
		}
		e, err := s.lookup.RouteEntry(op.TrainNumber, r.StationID)
		if err != nil {
			return 0, err
		}
		if e != nil && (origin == 0 || e.SequenceNumber < origin) {
			origin = e.SequenceNumber
		}
	}
	return origin, nil
}

// Override pins an estimate to the admin supplied time.
func (s *Service) Override(ctx context.Context, node sqalx.Node, in models.AdminOverrideInput) (*models.CalculatedEstimate, error) {
	if in.OverrideTime.IsZero() {
		return nil, apperr.Invalid("override_time is required")
	}
	if in.Status != "" {
		if _, ok := models.ParseEstimateStatus(string(in.Status)); !ok {
			return nil, apperr.Invalid("unknown estimate status %q", in.Status)
		}
	}
	op, err := s.operation(node, in.OperationID)
	if err != nil {
		return nil, err
	}
	est, err := s.GetOrCreate(ctx, node, op, in.StationID)
	if err != nil {
		return nil, err
	}
	ApplyOverride(est, in, s.now())
	if err := s.estimates.Save(node, est); err != nil {
		return nil, err
	}
	s.log.Info("estimate overridden",
		"operation_id", in.OperationID,
		"station_id", in.StationID,
		"admin_id", in.AdminID,
		"status", est.Status)
	return est, nil
}

// ClearOverride removes an admin override and recomputes the estimate.
func (s *Service) ClearOverride(ctx context.Context, node sqalx.Node, operationID, stationID int64) (*models.CalculatedEstimate, error) {
	est, err := s.estimates.Get(node, operationID, stationID)
	if err != nil {
		return nil, err
	}
	if est == nil {
		return nil, apperr.NotFound("estimate", operationID)
	}
	if est.AdminOverride {
		ClearOverride(est, s.now())
		if err := s.estimates.Save(node, est); err != nil {
			return nil, err
		}
	}
	return s.Recompute(ctx, node, operationID, stationID)
}

// Get returns a stored estimate; nil when none was created yet.
func (s *Service) Get(_ context.Context, node sqalx.Node, operationID, stationID int64) (*models.CalculatedEstimate, error) {
	return s.estimates.Get(node, operationID, stationID)
}

// List returns the estimates of an operation ordered by route sequence.
// Stations that are not on the route come last.
func (s *Service) List(_ context.Context, node sqalx.Node, operationID int64) ([]models.CalculatedEstimate, error) {
	op, err := s.operation(node, operationID)
	if err != nil {
		return nil, err
	}
	list, err := s.estimates.ListByOperation(node, operationID)
	if err != nil {
		return nil, err
	}
	route, err := s.lookup.Route(op.TrainNumber)
	if err != nil {
		return nil, err
	}
	seq := make(map[int64]int, len(route))
	for _, e := range route {
		seq[e.StationID] = e.SequenceNumber
	}
	order := func(stationID int64) int {
		if n, ok := seq[stationID]; ok {
			return n
		}
		return int(^uint(0) >> 1)
	}
	sort.SliceStable(list, func(i, j int) bool {
		return order(list[i].StationID) < order(list[j].StationID)
	})
	return list, nil
}

func (s *Service) operation(node sqalx.Node, id int64) (*models.Operation, error) {
	op, err := s.lookup.Operation(node, id)
	if err != nil {
		return nil, err
	}
	if op == nil {
		return nil, apperr.NotFound("operation", id)
	}
	return op, nil
}
