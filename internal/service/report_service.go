package service

import (
	"context"
	"strings"
	"time"

	"github.com/gbl08ma/sqalx"

	"github.com/hazemshokry/train-tracking-app/internal/apperr"
	"github.com/hazemshokry/train-tracking-app/internal/database"
	"github.com/hazemshokry/train-tracking-app/internal/events"
	"github.com/hazemshokry/train-tracking-app/internal/lock"
	"github.com/hazemshokry/train-tracking-app/internal/logger"
	"github.com/hazemshokry/train-tracking-app/internal/models"
	"github.com/hazemshokry/train-tracking-app/internal/reliability"
	"github.com/hazemshokry/train-tracking-app/internal/stats"
	"github.com/hazemshokry/train-tracking-app/internal/validation"
)

const (
	defaultStatsDays     = 30
	defaultListLimit     = 50
	maxListLimit         = 100
	rewardPerReport      = 1
	rewardReasonOnReport = "accepted report"
)

// ReportService handles business logic for reports
type ReportService struct {
	deps Deps
	log  *logger.Logger
}

// NewReportService creates a new report service
func NewReportService(deps Deps) *ReportService {
	return &ReportService{deps: deps, log: deps.Log.With("component", "ReportService")}
}

// SubmitReport validates a report and, unless a critical validator refuses
// it, stores it with its outcomes and folds it into the station estimate.
func (s *ReportService) SubmitReport(ctx context.Context, in models.SubmitReportInput) (*models.SubmissionResult, error) {
	d := &s.deps
	now := d.Now()

	in.TrainNumber = strings.TrimSpace(in.TrainNumber)
	if in.TrainNumber == "" {
		return nil, apperr.Invalid("train_number is required")
	}
	typ, err := models.ParseReportType(string(in.ReportType))
	if err != nil {
		return nil, apperr.Invalid("%v", err)
	}

	train, err := d.Lookup.Train(in.TrainNumber)
	if err != nil {
		return nil, internal("failed to load train", err)
	}
	if train == nil {
		return nil, apperr.NotFound("train", in.TrainNumber)
	}
	station, err := d.Lookup.Station(in.StationID)
	if err != nil {
		return nil, internal("failed to load station", err)
	}
	if station == nil {
		return nil, apperr.NotFound("station", in.StationID)
	}
	entry, err := d.Lookup.RouteEntry(train.Number, station.ID)
	if err != nil {
		return nil, internal("failed to load route", err)
	}

	report := &models.Report{
		UserID:                in.UserID,
		TrainNumber:           train.Number,
		StationID:             station.ID,
		ReportType:            typ,
		ReportedTime:          now,
		CreatedAt:             now,
		Location:              in.Location,
		DelayMinutes:          in.DelayMinutes,
		Notes:                 in.Notes,
		IsIntermediateStation: entry == nil, // off the official route
	}
	if in.ReportedTime != nil {
		report.ReportedTime = *in.ReportedTime
	}

	cascades := typ.Cascades() && entry != nil
	var downstream []models.RouteEntry
	if cascades {
		if downstream, err = d.Lookup.Downstream(train.Number, entry.SequenceNumber); err != nil {
			return nil, internal("failed to load route", err)
		}
	}
	date := d.Lookup.OperationalDate(train, report.ReportedTime)
	op, release, err := s.lockRun(ctx, in.UserID, train.Number, date, station.ID, downstream)
	if err != nil {
		return nil, err
	}
	defer release()

	var summary *models.ValidationSummary
	var estimate *models.CalculatedEstimate
	var cascaded []int64
	err = database.Transaction(d.DB.Root, func(tx sqalx.Node) error {
		if op == nil {
			// first report of the run; a refusal rolls the new row back
			created, err := d.Lookup.ResolveOperation(tx, train, report.ReportedTime)
			if err != nil {
				return err
			}
			op = created
		}
		report.OperationID = op.ID

		input, err := s.loadInput(ctx, tx, report, station, op, entry)
		if err != nil {
			return err
		}
		report.WeightFactor = input.Reliability.WeightFactor()

		summary = d.Engine.Validate(ctx, report, input)
		if summary.Critical {
			return apperr.Critical(summary)
		}
		report.ConfidenceScore = summary.Confidence
		report.ValidationStatus = summary.Status

		if err := d.Reports.Create(tx, report); err != nil {
			return err
		}
		if err := d.Validations.CreateBatch(tx, report.ID, summary.Outcomes); err != nil {
			return err
		}

		patternFailed := false
		if o := summary.Outcome(models.ValidatorPattern); o != nil && o.Verdict == models.VerdictFailed {
			patternFailed = true
		}
		if outcome, ok := reliability.OutcomeForStatus(report.ValidationStatus, patternFailed); ok {
			if _, err := d.Tracker.Update(ctx, tx, report.UserID, outcome); err != nil {
				return err
			}
		}

		if !report.ValidationStatus.Accepted() {
			return nil
		}
		reportID := report.ID
		if err := d.Rewards.Create(tx, &models.Reward{
			UserID:    report.UserID,
			ReportID:  &reportID,
			Points:    rewardPerReport,
			Reason:    rewardReasonOnReport,
			CreatedAt: now,
		}); err != nil {
			return err
		}
		if estimate, err = d.Estimates.Recompute(ctx, tx, op.ID, station.ID); err != nil {
			return err
		}
		if cascades {
			if cascaded, err = d.Estimates.Cascade(ctx, tx, op, entry); err != nil {
				return err
			}
		}
		return nil
	})
	s.observe(summary)
	if err != nil {
		if summary != nil && summary.Critical {
			d.Metrics.ReportRefused(string(summary.CriticalType))
			s.log.Info("report refused",
				"user_id", in.UserID,
				"train", train.Number,
				"station_id", station.ID,
				"reason", summary.CriticalType)
		}
		return nil, internal("failed to submit report", err)
	}

	d.Metrics.ReportStored(string(report.ValidationStatus))
	if estimate != nil {
		d.Metrics.EstimateRecomputed()
		d.publish(events.EstimateUpdated(train.Number, estimate))
	}
	if len(cascaded) > 0 {
		d.Metrics.StationsCascaded(len(cascaded))
		d.publish(events.EstimateCascaded(train.Number, op.ID, station.ID, cascaded))
	}
	s.log.Info("report submitted",
		"report_id", report.ID,
		"user_id", report.UserID,
		"train", train.Number,
		"station_id", station.ID,
		"type", report.ReportType,
		"status", report.ValidationStatus,
		"confidence", report.ConfidenceScore)

	report.Validations = summary.Outcomes
	return &models.SubmissionResult{
		Report:     report,
		Confidence: summary.Confidence,
		Summary:    summary,
		Cascaded:   cascaded,
	}, nil
}

// loadInput snapshots everything the validators look at.
func (s *ReportService) loadInput(ctx context.Context, tx sqalx.Node, report *models.Report, station *models.Station, op *models.Operation, entry *models.RouteEntry) (*validation.Input, error) {
	d := &s.deps
	now := report.CreatedAt

	rec, err := d.Tracker.GetOrCreate(ctx, tx, report.UserID)
	if err != nil {
		return nil, err
	}
	counts, err := d.Reports.CountSubmissions(tx, report.UserID, now)
	if err != nil {
		return nil, err
	}
	duplicate, err := d.Reports.FindDuplicate(tx, report, now.Add(-validation.DuplicateWindow))
	if err != nil {
		return nil, err
	}
	peers, err := d.Reports.ListPeers(tx, report.TrainNumber, report.StationID, now.Add(-validation.PeerWindow), validation.PeerLimit)
	if err != nil {
		return nil, err
	}
	history, err := d.Reports.ListByUserSince(tx, report.UserID, now.Add(-validation.HistoryWindow))
	if err != nil {
		return nil, err
	}
	arrival, departure := d.Lookup.Scheduled(op, entry)

	return &validation.Input{
		Now:         now,
		Station:     station,
		RouteEntry:  entry,
		Scheduled:   scheduledFor(report.ReportType, arrival, departure),
		Reliability: rec,
		Peers:       peers,
		History:     history,
		Counts:      counts,
		Duplicate:   duplicate,
	}, nil
}

// scheduledFor picks the scheduled time a report type is measured against.
func scheduledFor(typ models.ReportType, arrival, departure *time.Time) *time.Time {
	if typ == models.ReportTypeDeparture {
		if departure != nil {
			return departure
		}
		return arrival
	}
	if arrival != nil {
		return arrival
	}
	return departure
}

func (s *ReportService) observe(summary *models.ValidationSummary) {
	if summary == nil {
		return
	}
	for _, o := range summary.Outcomes {
		s.deps.Metrics.ObserveValidator(string(o.ValidatorType), o.Score, o.ErrorMessage != "")
	}
}

// lockRun takes the submission locks of a run. While the run has no
// operation row the run key stands in for its estimate keys, and op is nil
// so the row is created inside the submission transaction.
func (s *ReportService) lockRun(ctx context.Context, userID int64, trainNumber, date string, stationID int64, downstream []models.RouteEntry) (*models.Operation, func(), error) {
	d := &s.deps
	for {
		op, err := d.Lookup.FindOperation(d.DB.Root, trainNumber, date)
		if err != nil {
			return nil, nil, internal("failed to load operation", err)
		}
		keys := []string{lock.UserKey(userID)}
		if op == nil {
			keys = append(keys, lock.OperationKey(trainNumber, date))
		} else {
			keys = append(keys, lock.EstimateKey(op.ID, stationID))
			for _, e := range downstream {
				keys = append(keys, lock.EstimateKey(op.ID, e.StationID))
			}
		}
		release, err := d.acquire(ctx, keys...)
		if err != nil {
			return nil, nil, err
		}
		if op != nil {
			return op, release, nil
		}
		// another submission may have created the row while we waited
		created, err := d.Lookup.FindOperation(d.DB.Root, trainNumber, date)
		if err != nil {
			release()
			return nil, nil, internal("failed to load operation", err)
		}
		if created == nil {
			return nil, release, nil
		}
		release()
	}
}

// FlagReport marks a report as flagged by an admin and charges its author.
func (s *ReportService) FlagReport(ctx context.Context, reportID, adminID int64, reason string) (*models.Report, error) {
	report, err := s.review(ctx, reportID, adminID, reason, models.ValidationStatusFlagged, models.OutcomeFlagged)
	if err != nil {
		return nil, err
	}
	s.deps.publish(events.ReportFlagged(report))
	s.log.Info("report flagged", "report_id", reportID, "admin_id", adminID)
	return report, nil
}

// ApproveReport validates a report with full confidence and credits its author.
func (s *ReportService) ApproveReport(ctx context.Context, reportID, adminID int64, notes string) (*models.Report, error) {
	report, err := s.review(ctx, reportID, adminID, notes, models.ValidationStatusValidated, models.OutcomeAccurate)
	if err != nil {
		return nil, err
	}
	s.log.Info("report approved", "report_id", reportID, "admin_id", adminID)
	return report, nil
}

func (s *ReportService) review(ctx context.Context, reportID, adminID int64, notes string, status models.ValidationStatus, outcome models.ReliabilityOutcome) (*models.Report, error) {
	d := &s.deps
	report, err := d.Reports.GetByID(d.DB.Root, reportID)
	if err != nil {
		return nil, internal("failed to load report", err)
	}
	if report == nil {
		return nil, apperr.NotFound("report", reportID)
	}
	scope, err := s.scopeOf(report)
	if err != nil {
		return nil, err
	}

	release, err := d.acquire(ctx, append(scope.keys, lock.UserKey(report.UserID))...)
	if err != nil {
		return nil, err
	}
	defer release()

	var changes estimateChanges
	err = database.Transaction(d.DB.Root, func(tx sqalx.Node) error {
		now := d.Now()
		report.ValidationStatus = status
		if status == models.ValidationStatusValidated {
			report.ConfidenceScore = 1.0
		}
		report.VerifiedBy = &adminID
		report.VerifiedAt = &now
		report.VerificationNotes = notes
		if err := d.Reports.UpdateReview(tx, report); err != nil {
			return err
		}
		if _, err := d.Tracker.Update(ctx, tx, report.UserID, outcome); err != nil {
			return err
		}
		var err error
		changes, err = s.settle(ctx, tx, report, scope, status.Accepted())
		return err
	})
	if err != nil {
		return nil, internal("failed to review report", err)
	}
	s.announce(report, changes)
	return report, nil
}

// cascadeScope covers what a change to report touches: its own estimate and,
// for no-shows and cancellations on the route, every station after it.
type cascadeScope struct {
	keys  []string
	op    *models.Operation
	entry *models.RouteEntry // nil unless the report moves a cascade
}

func (s *ReportService) scopeOf(report *models.Report) (cascadeScope, error) {
	d := &s.deps
	scope := cascadeScope{keys: []string{lock.EstimateKey(report.OperationID, report.StationID)}}
	if !report.ReportType.Cascades() || report.IsIntermediateStation {
		return scope, nil
	}
	op, err := d.Lookup.Operation(d.DB.Root, report.OperationID)
	if err != nil {
		return scope, internal("failed to load operation", err)
	}
	entry, err := d.Lookup.RouteEntry(report.TrainNumber, report.StationID)
	if err != nil {
		return scope, internal("failed to load route", err)
	}
	if op == nil || entry == nil {
		return scope, nil
	}
	downstream, err := d.Lookup.Downstream(report.TrainNumber, entry.SequenceNumber)
	if err != nil {
		return scope, internal("failed to load route", err)
	}
	for _, e := range downstream {
		scope.keys = append(scope.keys, lock.EstimateKey(op.ID, e.StationID))
	}
	scope.op, scope.entry = op, entry
	return scope, nil
}

// estimateChanges are the estimates rewritten after a report changed.
type estimateChanges struct {
	estimate *models.CalculatedEstimate
	cascaded []int64
	restored []*models.CalculatedEstimate
}

// settle recomputes the report's estimate and, when the report moves a
// cascade, cancels or restores the stations after it.
func (s *ReportService) settle(ctx context.Context, tx sqalx.Node, report *models.Report, scope cascadeScope, accepted bool) (estimateChanges, error) {
	d := &s.deps
	var out estimateChanges
	var err error
	if out.estimate, err = d.Estimates.Recompute(ctx, tx, report.OperationID, report.StationID); err != nil {
		return out, err
	}
	if scope.entry == nil {
		return out, nil
	}
	if accepted {
		out.cascaded, err = d.Estimates.Cascade(ctx, tx, scope.op, scope.entry)
	} else {
		out.restored, err = d.Estimates.Uncascade(ctx, tx, scope.op, scope.entry)
	}
	return out, err
}

func (s *ReportService) announce(report *models.Report, changes estimateChanges) {
	d := &s.deps
	if changes.estimate != nil {
		d.Metrics.EstimateRecomputed()
		d.publish(events.EstimateUpdated(report.TrainNumber, changes.estimate))
	}
	if len(changes.cascaded) > 0 {
		d.Metrics.StationsCascaded(len(changes.cascaded))
		d.publish(events.EstimateCascaded(report.TrainNumber, report.OperationID, report.StationID, changes.cascaded))
	}
	for _, est := range changes.restored {
		d.Metrics.EstimateRecomputed()
		d.publish(events.EstimateUpdated(report.TrainNumber, est))
	}
}

// GetReport returns a report with its validation outcomes.
func (s *ReportService) GetReport(ctx context.Context, reportID int64) (*models.Report, error) {
	d := &s.deps
	report, err := d.Reports.GetByID(d.DB.Root, reportID)
	if err != nil {
		return nil, internal("failed to get report", err)
	}
	if report == nil {
		return nil, apperr.NotFound("report", reportID)
	}
	if report.Validations, err = d.Validations.ListByReport(d.DB.Root, reportID); err != nil {
		return nil, internal("failed to get validations", err)
	}
	return report, nil
}

// DeleteReport removes a report on behalf of its author or an admin and
// recomputes the estimate it fed.
func (s *ReportService) DeleteReport(ctx context.Context, reportID, requesterID int64, isAdmin bool) error {
	d := &s.deps
	report, err := d.Reports.GetByID(d.DB.Root, reportID)
	if err != nil {
		return internal("failed to get report", err)
	}
	if report == nil {
		return apperr.NotFound("report", reportID)
	}
	if report.UserID != requesterID && !isAdmin {
		return apperr.Forbidden("only the author or an admin may delete a report")
	}

	scope, err := s.scopeOf(report)
	if err != nil {
		return err
	}
	release, err := d.acquire(ctx, scope.keys...)
	if err != nil {
		return err
	}
	defer release()

	var changes estimateChanges
	err = database.Transaction(d.DB.Root, func(tx sqalx.Node) error {
		if err := d.Reports.Delete(tx, reportID); err != nil {
			return err
		}
		var err error
		changes, err = s.settle(ctx, tx, report, scope, false)
		return err
	})
	if err != nil {
		return internal("failed to delete report", err)
	}
	s.announce(report, changes)
	s.log.Info("report deleted", "report_id", reportID, "requester_id", requesterID, "admin", isAdmin)
	return nil
}

// ListOperationReports lists the accepted reports of one train run, newest first.
func (s *ReportService) ListOperationReports(ctx context.Context, filter models.ReportFilter) ([]models.Report, error) {
	d := &s.deps
	train, err := d.Lookup.Train(filter.TrainNumber)
	if err != nil {
		return nil, internal("failed to load train", err)
	}
	if train == nil {
		return nil, apperr.NotFound("train", filter.TrainNumber)
	}
	date, err := s.operationalDate(train, filter.Date)
	if err != nil {
		return nil, err
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}

	op, err := d.Lookup.FindOperation(d.DB.Root, train.Number, date)
	if err != nil {
		return nil, internal("failed to find operation", err)
	}
	if op == nil {
		return []models.Report{}, nil
	}
	reports, err := d.Reports.ListForOperation(d.DB.Root, op.ID, filter.StationID, nil, uint64(filter.Limit))
	if err != nil {
		return nil, internal("failed to list reports", err)
	}
	return reports, nil
}

func (s *ReportService) operationalDate(train *models.Train, date string) (string, error) {
	if date == "" {
		return s.deps.Lookup.OperationalDate(train, s.deps.Now()), nil
	}
	if _, err := time.Parse(models.DateLayout, date); err != nil {
		return "", apperr.Invalid("date must be YYYY-MM-DD")
	}
	return date, nil
}

// GetUserReportStats summarises a user's reports over the last days.
func (s *ReportService) GetUserReportStats(ctx context.Context, userID int64, days int) (*models.UserReportStats, error) {
	d := &s.deps
	if days <= 0 {
		days = defaultStatsDays
	}
	since := d.Now().AddDate(0, 0, -days)
	reports, err := d.Reports.ListByUserSince(d.DB.Root, userID, since)
	if err != nil {
		return nil, internal("failed to list reports", err)
	}

	out := &models.UserReportStats{
		UserID:       userID,
		PeriodDays:   days,
		TotalReports: len(reports),
		ByStatus:     make(map[models.ValidationStatus]int),
		ByType:       make(map[models.ReportType]int),
	}
	confidences := make([]float64, 0, len(reports))
	for _, r := range reports {
		out.ByStatus[r.ValidationStatus]++
		out.ByType[r.ReportType]++
		confidences = append(confidences, r.ConfidenceScore)
	}
	out.AverageConfidence = stats.Mean(confidences)

	if out.Reliability, err = d.Tracker.Get(ctx, d.DB.Root, userID); err != nil {
		return nil, internal("failed to get reliability", err)
	}
	if out.RewardPoints, err = d.Rewards.TotalPoints(d.DB.Root, userID); err != nil {
		return nil, internal("failed to sum rewards", err)
	}
	return out, nil
}
