package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hazemshokry/train-tracking-app/internal/apperr"
	"github.com/hazemshokry/train-tracking-app/internal/database"
	"github.com/hazemshokry/train-tracking-app/internal/lock"
	"github.com/hazemshokry/train-tracking-app/internal/logger"
	"github.com/hazemshokry/train-tracking-app/internal/metrics"
	"github.com/hazemshokry/train-tracking-app/internal/models"
	"github.com/hazemshokry/train-tracking-app/internal/reference"
	"github.com/hazemshokry/train-tracking-app/internal/repository"
	"github.com/hazemshokry/train-tracking-app/internal/service"
	"github.com/hazemshokry/train-tracking-app/internal/testutil"
)

type env struct {
	db          *database.DB
	clock       *testutil.Clock
	deps        service.Deps
	reports     *service.ReportService
	estimates   *service.EstimateService
	reliability *service.ReliabilityService
}

func at(h, m int) time.Time { return time.Date(2026, 3, 14, h, m, 0, 0, time.UTC) }

// newEnv seeds train 924 over A(1) → B(2) → C(3) → D(4) and station 9 off the route.
func newEnv(t *testing.T) *env {
	t.Helper()
	db := testutil.DB(t)
	testutil.SeedTrain(t, db, models.Train{Number: "924", Name: "Cairo - Aswan", DepartureSec: testutil.Sec(8, 0)},
		testutil.Stop{StationID: 1, Name: "A", Lat: 30.05, Lng: 31.25, Seq: 1, DepartureSec: testutil.Sec(8, 0)},
		testutil.Stop{StationID: 2, Name: "B", Lat: 30.0, Lng: 31.0, Seq: 2, ArrivalSec: testutil.Sec(10, 30), DepartureSec: testutil.Sec(10, 35)},
		testutil.Stop{StationID: 3, Name: "C", Lat: 29.5, Lng: 31.1, Seq: 3, ArrivalSec: testutil.Sec(11, 0), DepartureSec: testutil.Sec(11, 5)},
		testutil.Stop{StationID: 4, Name: "D", Lat: 29.0, Lng: 31.1, Seq: 4, ArrivalSec: testutil.Sec(12, 0)},
		testutil.Stop{StationID: 9, Name: "Halt", Lat: 29.8, Lng: 31.05},
	)
	clock := testutil.NewClock(at(10, 45))
	log := logger.Nop()
	lookup := reference.NewLookup(repository.NewReferenceRepository(db), db.Root, time.Minute, time.UTC)
	deps := service.NewDeps(db, lookup, lock.NewLocalLocker(5*time.Second), log, clock.Now)
	deps.Metrics = metrics.NewCollector()
	return &env{
		db:          db,
		clock:       clock,
		deps:        deps,
		reports:     service.NewReportService(deps),
		estimates:   service.NewEstimateService(deps),
		reliability: service.NewReliabilityService(deps),
	}
}

func (e *env) submit(t *testing.T, user, station int64, typ models.ReportType) (*models.SubmissionResult, error) {
	t.Helper()
	return e.reports.SubmitReport(context.Background(), models.SubmitReportInput{
		UserID:      user,
		TrainNumber: "924",
		StationID:   station,
		ReportType:  typ,
		Location:    &models.Location{Latitude: 30.0005, Longitude: 31.0},
	})
}

func (e *env) mustSubmit(t *testing.T, user, station int64, typ models.ReportType) *models.SubmissionResult {
	t.Helper()
	res, err := e.submit(t, user, station, typ)
	if err != nil {
		t.Fatalf("SubmitReport(%d, %d, %s): %v", user, station, typ, err)
	}
	return res
}

func (e *env) storedReports(t *testing.T, user int64) []models.Report {
	t.Helper()
	list, err := e.deps.Reports.ListByUserSince(e.db.Root, user, time.Time{})
	if err != nil {
		t.Fatalf("ListByUserSince: %v", err)
	}
	return list
}

func TestSubmitReportFeedsEstimate(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	res := e.mustSubmit(t, 1, 2, models.ReportTypeArrival)
	if res.Report.ID == 0 || res.Report.OperationID == 0 {
		t.Fatalf("report not stored: %+v", res.Report)
	}
	if res.Report.ValidationStatus != models.ValidationStatusValidated || res.Confidence < 0.8 {
		t.Fatalf("got %s with %.3f, want validated", res.Report.ValidationStatus, res.Confidence)
	}
	if res.Report.WeightFactor != 0.4 {
		t.Fatalf("weight factor: got %v, want the new-tier 0.4", res.Report.WeightFactor)
	}
	if len(res.Summary.Outcomes) != 7 {
		t.Fatalf("outcomes: got %d, want 7", len(res.Summary.Outcomes))
	}

	est, err := e.estimates.GetCalculatedEstimate(ctx, res.Report.OperationID, 2)
	if err != nil || est == nil {
		t.Fatalf("GetCalculatedEstimate: %v %v", est, err)
	}
	if !est.CalculatedArrival.Equal(at(10, 45)) || est.DelayMinutes != 15 || est.NumberOfReports != 1 {
		t.Fatalf("estimate: arrival %v delay %d n %d", est.CalculatedArrival, est.DelayMinutes, est.NumberOfReports)
	}
	if est.Status != models.EstimateStatusEstimated {
		t.Fatalf("status: got %s, want estimated", est.Status)
	}

	stored, err := e.reports.GetReport(ctx, res.Report.ID)
	if err != nil {
		t.Fatalf("GetReport: %v", err)
	}
	if len(stored.Validations) != 7 {
		t.Fatalf("stored validations: got %d", len(stored.Validations))
	}

	stats, err := e.reports.GetUserReportStats(ctx, 1, 0)
	if err != nil {
		t.Fatalf("GetUserReportStats: %v", err)
	}
	if stats.TotalReports != 1 || stats.RewardPoints != 1 || stats.Reliability.AccurateReports != 1 {
		t.Fatalf("stats: %+v reliability %+v", stats, stats.Reliability)
	}
	if stats.ByType[models.ReportTypeArrival] != 1 || stats.PeriodDays != 30 {
		t.Fatalf("stats breakdown: %+v", stats)
	}
}

func TestSubmitReportUnknownReferences(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.reports.SubmitReport(ctx, models.SubmitReportInput{UserID: 1, TrainNumber: "000", StationID: 2, ReportType: models.ReportTypeArrival})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("unknown train: got %v", err)
	}
	_, err = e.reports.SubmitReport(ctx, models.SubmitReportInput{UserID: 1, TrainNumber: "924", StationID: 77, ReportType: models.ReportTypeArrival})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("unknown station: got %v", err)
	}
	_, err = e.reports.SubmitReport(ctx, models.SubmitReportInput{UserID: 1, TrainNumber: "924", StationID: 2, ReportType: "teleported"})
	if !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Fatalf("unknown type: got %v", err)
	}
	if n := len(e.storedReports(t, 1)); n != 0 {
		t.Fatalf("stored %d reports, want 0", n)
	}
}

func TestDuplicateWindow(t *testing.T) {
	e := newEnv(t)

	e.mustSubmit(t, 1, 2, models.ReportTypeArrival)
	e.clock.Advance(4*time.Minute + 59*time.Second)

	_, err := e.submit(t, 1, 2, models.ReportTypeArrival)
	if !errors.Is(err, apperr.ErrDuplicate) {
		t.Fatalf("second report within five minutes: got %v, want duplicate", err)
	}
	summary := apperr.SummaryOf(err)
	if summary == nil || summary.CriticalType != models.ValidatorDuplicate || summary.Status != models.ValidationStatusRejected {
		t.Fatalf("duplicate error should carry the summary, got %+v", summary)
	}
	if n := len(e.storedReports(t, 1)); n != 1 {
		t.Fatalf("duplicate was written: %d reports stored", n)
	}

	e.clock.Advance(2 * time.Second)
	res := e.mustSubmit(t, 1, 2, models.ReportTypeArrival)
	if !res.Report.ValidationStatus.Accepted() {
		t.Fatalf("after five minutes: got %s", res.Report.ValidationStatus)
	}
}

func TestNewUserRateLimit(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	first := e.mustSubmit(t, 5, 2, models.ReportTypeArrival)
	e.clock.Advance(10 * time.Second)
	e.mustSubmit(t, 5, 2, models.ReportTypeDeparture)
	e.clock.Advance(10 * time.Second)

	before, err := e.estimates.GetCalculatedEstimate(ctx, first.Report.OperationID, 2)
	if err != nil {
		t.Fatalf("GetCalculatedEstimate: %v", err)
	}
	_, err = e.submit(t, 5, 2, models.ReportTypeOnboard)
	if !errors.Is(err, apperr.ErrRateLimited) {
		t.Fatalf("third report in a minute: got %v, want rate limited", err)
	}
	if n := len(e.storedReports(t, 5)); n != 2 {
		t.Fatalf("stored %d reports, want 2", n)
	}
	after, err := e.estimates.GetCalculatedEstimate(ctx, first.Report.OperationID, 2)
	if err != nil {
		t.Fatalf("GetCalculatedEstimate: %v", err)
	}
	if after.NumberOfReports != before.NumberOfReports || !after.LastUpdated.Equal(before.LastUpdated) {
		t.Fatalf("refused report touched the estimate")
	}
	rec, _ := e.reliability.GetUserReliability(ctx, 5)
	if rec.TotalReports != 2 {
		t.Fatalf("refused report changed reliability: %+v", rec)
	}

	// the window slides
	e.clock.Advance(time.Minute)
	e.mustSubmit(t, 5, 2, models.ReportTypePassing)
}

func TestRefusedReportCreatesNoOperation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.mustSubmit(t, 5, 2, models.ReportTypeArrival)
	e.clock.Advance(10 * time.Second)
	e.mustSubmit(t, 5, 2, models.ReportTypeDeparture)
	e.clock.Advance(10 * time.Second)

	tomorrow := at(10, 45).AddDate(0, 0, 1)
	_, err := e.reports.SubmitReport(ctx, models.SubmitReportInput{
		UserID:       5,
		TrainNumber:  "924",
		StationID:    2,
		ReportType:   models.ReportTypeArrival,
		ReportedTime: &tomorrow,
		Location:     &models.Location{Latitude: 30.0005, Longitude: 31.0},
	})
	if !errors.Is(err, apperr.ErrRateLimited) {
		t.Fatalf("third report in a minute: got %v, want rate limited", err)
	}
	op, err := e.deps.Lookup.FindOperation(e.db.Root, "924", "2026-03-15")
	if err != nil {
		t.Fatalf("FindOperation: %v", err)
	}
	if op != nil {
		t.Fatalf("refused report left operation %d behind", op.ID)
	}

	// an accepted report for the same run creates it
	res, err := e.reports.SubmitReport(ctx, models.SubmitReportInput{
		UserID:       6,
		TrainNumber:  "924",
		StationID:    2,
		ReportType:   models.ReportTypeArrival,
		ReportedTime: &tomorrow,
		Location:     &models.Location{Latitude: 30.0005, Longitude: 31.0},
	})
	if err != nil {
		t.Fatalf("SubmitReport: %v", err)
	}
	op, err = e.deps.Lookup.FindOperation(e.db.Root, "924", "2026-03-15")
	if err != nil || op == nil || op.ID != res.Report.OperationID {
		t.Fatalf("FindOperation: got %v %v, want operation %d", op, err, res.Report.OperationID)
	}
}

func TestNoShowCascades(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	// an estimate at A that the cascade must leave alone
	e.mustSubmit(t, 2, 1, models.ReportTypeDeparture)
	e.clock.Advance(15 * time.Minute)

	res := e.mustSubmit(t, 1, 2, models.ReportTypeNoShow)
	if len(res.Cascaded) != 2 || res.Cascaded[0] != 3 || res.Cascaded[1] != 4 {
		t.Fatalf("cascaded: got %v, want [3 4]", res.Cascaded)
	}

	list, err := e.estimates.ListEstimates(ctx, res.Report.OperationID)
	if err != nil {
		t.Fatalf("ListEstimates: %v", err)
	}
	got := make(map[int64]models.EstimateStatus)
	for _, est := range list {
		got[est.StationID] = est.Status
	}
	if got[1] == models.EstimateStatusCancelled {
		t.Fatalf("upstream station A was cancelled")
	}
	for _, id := range []int64{2, 3, 4} {
		if got[id] != models.EstimateStatusCancelled {
			t.Fatalf("station %d: got %s, want cancelled", id, got[id])
		}
	}

	status, err := e.estimates.GetTrainStatus(ctx, "924", "")
	if err != nil {
		t.Fatalf("GetTrainStatus: %v", err)
	}
	if status.OverallStatus != models.EstimateStatusCancelled || status.RecentReports != 2 || *status.LastReportedStation != 2 {
		t.Fatalf("train status: %+v", status)
	}
	if status.OperationalDate != "2026-03-14" || len(status.Estimates) != 4 {
		t.Fatalf("train status: date %s estimates %d", status.OperationalDate, len(status.Estimates))
	}
}

func TestIntermediateStationNeverCascades(t *testing.T) {
	e := newEnv(t)
	res, err := e.reports.SubmitReport(context.Background(), models.SubmitReportInput{
		UserID: 1, TrainNumber: "924", StationID: 9, ReportType: models.ReportTypeCancelled,
	})
	if err != nil {
		t.Fatalf("SubmitReport: %v", err)
	}
	if len(res.Cascaded) != 0 || !res.Report.IsIntermediateStation {
		t.Fatalf("intermediate report: cascaded %v intermediate %v", res.Cascaded, res.Report.IsIntermediateStation)
	}
	if o := res.Summary.Outcome(models.ValidatorRoute); o.Score != 0.6 {
		t.Fatalf("route score: got %v, want 0.6", o.Score)
	}
}

func TestOffRouteStationIsIntermediate(t *testing.T) {
	e := newEnv(t)

	// station 9 is not on the route; the flag is derived, not requested
	off := e.mustSubmit(t, 1, 9, models.ReportTypeArrival)
	if !off.Report.IsIntermediateStation {
		t.Fatalf("off-route report: IsIntermediateStation = false")
	}
	o := off.Summary.Outcome(models.ValidatorRoute)
	if o == nil || o.Score != 0.6 || o.Verdict != models.VerdictWarning {
		t.Fatalf("route outcome: got %+v, want 0.6 warning", o)
	}

	stored, err := e.reports.GetReport(context.Background(), off.Report.ID)
	if err != nil {
		t.Fatalf("GetReport: %v", err)
	}
	if !stored.IsIntermediateStation {
		t.Fatalf("stored report lost the intermediate flag")
	}

	on := e.mustSubmit(t, 2, 2, models.ReportTypeArrival)
	if on.Report.IsIntermediateStation {
		t.Fatalf("on-route report marked intermediate")
	}
}

func TestAdminOverrideFreezesSubmissions(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	res := e.mustSubmit(t, 1, 2, models.ReportTypeArrival)
	opID := res.Report.OperationID
	pinned, err := e.estimates.AdminOverride(ctx, models.AdminOverrideInput{
		AdminID: 99, OperationID: opID, StationID: 2, OverrideTime: at(10, 50), Notes: "confirmed by station master",
	})
	if err != nil {
		t.Fatalf("AdminOverride: %v", err)
	}

	e.clock.Advance(3 * time.Minute)
	e.mustSubmit(t, 2, 2, models.ReportTypeArrival)
	est, _ := e.estimates.GetCalculatedEstimate(ctx, opID, 2)
	if !est.CalculatedArrival.Equal(*pinned.CalculatedArrival) || est.Status != pinned.Status || est.ConfidenceLevel != 1.0 {
		t.Fatalf("override not frozen: %+v", est)
	}

	cleared, err := e.estimates.ClearAdminOverride(ctx, opID, 2)
	if err != nil {
		t.Fatalf("ClearAdminOverride: %v", err)
	}
	if cleared.AdminOverride || cleared.NumberOfReports != 2 {
		t.Fatalf("after clear: override %v n %d", cleared.AdminOverride, cleared.NumberOfReports)
	}
}

func TestFlagAndApprove(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	res := e.mustSubmit(t, 1, 2, models.ReportTypeArrival)
	flagged, err := e.reports.FlagReport(ctx, res.Report.ID, 99, "wrong train")
	if err != nil {
		t.Fatalf("FlagReport: %v", err)
	}
	if flagged.ValidationStatus != models.ValidationStatusFlagged || *flagged.VerifiedBy != 99 {
		t.Fatalf("flagged report: %+v", flagged)
	}
	est, _ := e.estimates.GetCalculatedEstimate(ctx, res.Report.OperationID, 2)
	if est.NumberOfReports != 0 || est.CalculatedArrival != nil || est.Status != models.EstimateStatusScheduled {
		t.Fatalf("flag did not remove the report from the estimate: %+v", est)
	}
	rec, _ := e.reliability.GetUserReliability(ctx, 1)
	if rec.FlaggedReports != 1 {
		t.Fatalf("reliability after flag: %+v", rec)
	}

	approved, err := e.reports.ApproveReport(ctx, res.Report.ID, 99, "checked")
	if err != nil {
		t.Fatalf("ApproveReport: %v", err)
	}
	if approved.ValidationStatus != models.ValidationStatusValidated || approved.ConfidenceScore != 1.0 {
		t.Fatalf("approved report: %+v", approved)
	}
	est, _ = e.estimates.GetCalculatedEstimate(ctx, res.Report.OperationID, 2)
	if est.NumberOfReports != 1 {
		t.Fatalf("approve did not restore the report: %+v", est)
	}

	if _, err := e.reports.FlagReport(ctx, 12345, 99, ""); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("flag unknown report: got %v", err)
	}
}

// submitAt files a report from the given position at the given time.
func (e *env) submitAt(t *testing.T, user, station int64, typ models.ReportType, lat, lng float64, reported time.Time) *models.SubmissionResult {
	t.Helper()
	res, err := e.reports.SubmitReport(context.Background(), models.SubmitReportInput{
		UserID:       user,
		TrainNumber:  "924",
		StationID:    station,
		ReportType:   typ,
		ReportedTime: &reported,
		Location:     &models.Location{Latitude: lat, Longitude: lng},
	})
	if err != nil {
		t.Fatalf("SubmitReport(%d, %d, %s): %v", user, station, typ, err)
	}
	if !res.Report.ValidationStatus.Accepted() {
		t.Fatalf("SubmitReport(%d, %d, %s): got %s", user, station, typ, res.Report.ValidationStatus)
	}
	return res
}

func (e *env) statuses(t *testing.T, opID int64, stations ...int64) map[int64]*models.CalculatedEstimate {
	t.Helper()
	out := make(map[int64]*models.CalculatedEstimate, len(stations))
	for _, id := range stations {
		est, err := e.estimates.GetCalculatedEstimate(context.Background(), opID, id)
		if err != nil {
			t.Fatalf("GetCalculatedEstimate(%d): %v", id, err)
		}
		out[id] = est
	}
	return out
}

func TestFlagAndApproveMoveTheCascade(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	res := e.mustSubmit(t, 1, 2, models.ReportTypeNoShow)
	opID := res.Report.OperationID

	if _, err := e.reports.FlagReport(ctx, res.Report.ID, 99, "train seen at platform"); err != nil {
		t.Fatalf("FlagReport: %v", err)
	}
	for id, est := range e.statuses(t, opID, 2, 3, 4) {
		if est.Status != models.EstimateStatusScheduled || est.NumberOfReports != 0 || est.ConfidenceLevel != 0 {
			t.Fatalf("after flag, station %d: status %s confidence %.2f reports %d", id, est.Status, est.ConfidenceLevel, est.NumberOfReports)
		}
	}

	if _, err := e.reports.ApproveReport(ctx, res.Report.ID, 99, "confirmed"); err != nil {
		t.Fatalf("ApproveReport: %v", err)
	}
	for id, est := range e.statuses(t, opID, 2, 3, 4) {
		if est.Status != models.EstimateStatusCancelled {
			t.Fatalf("after approve, station %d: got %s, want cancelled", id, est.Status)
		}
	}
}

func TestDeletingNoShowWithdrawsCascade(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.submitAt(t, 2, 4, models.ReportTypeArrival, 29.0005, 31.1, at(11, 58))
	res := e.mustSubmit(t, 1, 2, models.ReportTypeNoShow)
	opID := res.Report.OperationID

	if err := e.reports.DeleteReport(ctx, res.Report.ID, 1, false); err != nil {
		t.Fatalf("DeleteReport: %v", err)
	}
	got := e.statuses(t, opID, 3, 4)
	if got[3].Status != models.EstimateStatusScheduled {
		t.Fatalf("station 3: got %s, want scheduled", got[3].Status)
	}
	// station 4 falls back to its own arrival report
	if got[4].Status == models.EstimateStatusCancelled || got[4].NumberOfReports != 1 {
		t.Fatalf("station 4: got %s with %d reports", got[4].Status, got[4].NumberOfReports)
	}
}

func TestUpstreamNoShowKeepsCascade(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	upstream := e.submitAt(t, 2, 1, models.ReportTypeNoShow, 30.05, 31.25, at(10, 45))
	res := e.mustSubmit(t, 1, 2, models.ReportTypeNoShow)
	opID := res.Report.OperationID

	if _, err := e.reports.FlagReport(ctx, res.Report.ID, 99, "duplicate of A"); err != nil {
		t.Fatalf("FlagReport: %v", err)
	}
	for id, est := range e.statuses(t, opID, 2, 3, 4) {
		if est.Status != models.EstimateStatusCancelled {
			t.Fatalf("station %d: got %s, want cancelled behind the no-show at A", id, est.Status)
		}
	}

	if err := e.reports.DeleteReport(ctx, upstream.Report.ID, 99, true); err != nil {
		t.Fatalf("DeleteReport: %v", err)
	}
	for id, est := range e.statuses(t, opID, 2, 3, 4) {
		if est.Status == models.EstimateStatusCancelled {
			t.Fatalf("station %d still cancelled with no accepted no-show left", id)
		}
	}
}

func TestDeleteReport(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	res := e.mustSubmit(t, 1, 2, models.ReportTypeArrival)

	if err := e.reports.DeleteReport(ctx, res.Report.ID, 2, false); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("delete by stranger: got %v", err)
	}
	if err := e.reports.DeleteReport(ctx, res.Report.ID, 1, false); err != nil {
		t.Fatalf("delete by author: %v", err)
	}
	if _, err := e.reports.GetReport(ctx, res.Report.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("deleted report still readable: %v", err)
	}
	est, _ := e.estimates.GetCalculatedEstimate(ctx, res.Report.OperationID, 2)
	if est.NumberOfReports != 0 {
		t.Fatalf("estimate still counts the deleted report")
	}
	// the reward outlives the report
	if stats, _ := e.reports.GetUserReportStats(ctx, 1, 30); stats.RewardPoints != 1 {
		t.Fatalf("reward points: got %d", stats.RewardPoints)
	}
}

func TestListOperationReports(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.mustSubmit(t, 1, 2, models.ReportTypeArrival)
	e.clock.Advance(time.Minute)
	e.mustSubmit(t, 2, 2, models.ReportTypeArrival)
	e.clock.Advance(time.Minute)
	e.mustSubmit(t, 3, 1, models.ReportTypeDeparture)

	all, err := e.reports.ListOperationReports(ctx, models.ReportFilter{TrainNumber: "924"})
	if err != nil {
		t.Fatalf("ListOperationReports: %v", err)
	}
	if len(all) != 3 || all[0].UserID != 3 {
		t.Fatalf("got %d reports, newest from user %d", len(all), all[0].UserID)
	}
	atB, _ := e.reports.ListOperationReports(ctx, models.ReportFilter{TrainNumber: "924", Date: "2026-03-14", StationID: 2, Limit: 1})
	if len(atB) != 1 || atB[0].UserID != 2 {
		t.Fatalf("filtered list: %+v", atB)
	}
	none, _ := e.reports.ListOperationReports(ctx, models.ReportFilter{TrainNumber: "924", Date: "2026-03-13"})
	if len(none) != 0 {
		t.Fatalf("other day: got %d reports", len(none))
	}
	if _, err := e.reports.ListOperationReports(ctx, models.ReportFilter{TrainNumber: "924", Date: "14/03"}); !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Fatalf("bad date: got %v", err)
	}
}

func TestConcurrentSubmissionsKeepEstimateConsistent(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	const users = 8
	var wg sync.WaitGroup
	errs := make(chan error, users)
	for u := int64(1); u <= users; u++ {
		u := u
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := e.submit(t, 100+u, 2, models.ReportTypeArrival); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent submit: %v", err)
	}

	op, err := e.deps.Lookup.FindOperation(e.db.Root, "924", "2026-03-14")
	if err != nil || op == nil {
		t.Fatalf("FindOperation: %v %v", op, err)
	}
	accepted, err := e.deps.Reports.ListAccepted(e.db.Root, op.ID, 2)
	if err != nil {
		t.Fatalf("ListAccepted: %v", err)
	}
	est, _ := e.estimates.GetCalculatedEstimate(ctx, op.ID, 2)
	if est.NumberOfReports != len(accepted) || len(accepted) != users {
		t.Fatalf("estimate counts %d reports, store has %d accepted", est.NumberOfReports, len(accepted))
	}
}

func TestPromoteToAdmin(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	rec, err := e.reliability.PromoteToAdmin(ctx, 42)
	if err != nil {
		t.Fatalf("PromoteToAdmin: %v", err)
	}
	if rec.UserTier != models.UserTierAdmin {
		t.Fatalf("tier: got %s", rec.UserTier)
	}
	res := e.mustSubmit(t, 42, 2, models.ReportTypeArrival)
	if res.Report.WeightFactor != 1.0 {
		t.Fatalf("admin weight: got %v", res.Report.WeightFactor)
	}
}
