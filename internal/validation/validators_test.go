package validation

import (
	"context"
	"testing"
	"time"

	"github.com/hazemshokry/train-tracking-app/internal/models"
)

var testNow = time.Date(2026, 3, 14, 16, 0, 0, 0, time.UTC)

func ptrFloat(f float64) *float64 { return &f }

func newReport(typ models.ReportType, reported time.Time) *models.Report {
	return &models.Report{
		UserID:       7,
		TrainNumber:  "924",
		OperationID:  1,
		StationID:    2,
		ReportType:   typ,
		ReportedTime: reported,
		CreatedAt:    testNow,
	}
}

func newInput() *Input {
	return &Input{
		Now:         testNow,
		Station:     &models.Station{ID: 2, Name: "Tanta", Latitude: ptrFloat(30.0), Longitude: ptrFloat(31.0)},
		RouteEntry:  &models.RouteEntry{TrainNumber: "924", StationID: 2, SequenceNumber: 2},
		Reliability: models.NewReliabilityRecord(7, testNow),
	}
}

func mustValidate(t *testing.T, v Validator, r *models.Report, in *Input) *models.ValidationOutcome {
	t.Helper()
	o, err := v.Validate(context.Background(), r, in)
	if err != nil {
		t.Fatalf("%s.Validate: %v", v.Type(), err)
	}
	return o
}

func expect(t *testing.T, name string, o *models.ValidationOutcome, score float64, verdict models.Verdict) {
	t.Helper()
	if o.Score != score || o.Verdict != verdict {
		t.Fatalf("%s: got %.2f/%s, want %.2f/%s (details %v)", name, o.Score, o.Verdict, score, verdict, o.Details)
	}
}

func TestTimeValidator(t *testing.T) {
	sched := testNow.Add(-6 * time.Hour)
	cases := []struct {
		name     string
		typ      models.ReportType
		reported time.Time
		sched    *time.Time
		score    float64
		verdict  models.Verdict
	}{
		{"too far in the future", models.ReportTypeArrival, testNow.Add(3 * time.Hour), &sched, 0.0, models.VerdictFailed},
		{"older than two days", models.ReportTypeArrival, testNow.Add(-72 * time.Hour), &sched, 0.1, models.VerdictFailed},
		{"no schedule", models.ReportTypeArrival, testNow, nil, 0.6, models.VerdictWarning},
		{"within window", models.ReportTypeArrival, sched.Add(12 * time.Minute), &sched, 1.0, models.VerdictPassed},
		{"within two windows", models.ReportTypeArrival, sched.Add(45 * time.Minute), &sched, 0.8, models.VerdictPassed},
		{"within four windows", models.ReportTypeArrival, sched.Add(-100 * time.Minute), &sched, 0.6, models.VerdictWarning},
		{"within eight windows", models.ReportTypeArrival, sched.Add(200 * time.Minute), &sched, 0.4, models.VerdictFailed},
		{"beyond eight windows", models.ReportTypeArrival, sched.Add(300 * time.Minute), &sched, 0.2, models.VerdictFailed},
		{"passing uses a tight window", models.ReportTypePassing, sched.Add(25 * time.Minute), &sched, 0.6, models.VerdictWarning},
		{"cancelled uses a wide window", models.ReportTypeCancelled, sched.Add(200 * time.Minute), &sched, 1.0, models.VerdictPassed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := newInput()
			in.Scheduled = tc.sched
			o := mustValidate(t, TimeValidator{}, newReport(tc.typ, tc.reported), in)
			expect(t, tc.name, o, tc.score, tc.verdict)
		})
	}

	if _, err := (TimeValidator{}).Validate(context.Background(), newReport(models.ReportTypeArrival, time.Time{}), newInput()); err == nil {
		t.Fatalf("missing reported time: expected error")
	}
}

func TestLocationValidator(t *testing.T) {
	// one degree of latitude is about 111.2 km
	at := func(km float64) *models.Location {
		return &models.Location{Latitude: 30.0 + km/111.2, Longitude: 31.0}
	}
	cases := []struct {
		name    string
		typ     models.ReportType
		loc     *models.Location
		score   float64
		verdict models.Verdict
	}{
		{"no gps", models.ReportTypeArrival, nil, 0.5, models.VerdictWarning},
		{"arrival on the platform", models.ReportTypeArrival, at(0.5), 1.0, models.VerdictPassed},
		{"departure nearby", models.ReportTypeDeparture, at(2), 0.8, models.VerdictPassed},
		{"offboard in town", models.ReportTypeOffboard, at(5), 0.5, models.VerdictWarning},
		{"arrival far away", models.ReportTypeArrival, at(15), 0.2, models.VerdictFailed},
		{"onboard nearby", models.ReportTypeOnboard, at(4), 1.0, models.VerdictPassed},
		{"passing a few stops away", models.ReportTypePassing, at(30), 0.6, models.VerdictWarning},
		{"passing far away", models.ReportTypePassing, at(80), 0.3, models.VerdictFailed},
		{"delayed moderate", models.ReportTypeDelayed, at(5), 0.7, models.VerdictWarning},
		{"delayed far", models.ReportTypeDelayed, at(20), 0.4, models.VerdictFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newReport(tc.typ, testNow)
			r.Location = tc.loc
			o := mustValidate(t, LocationValidator{}, r, newInput())
			expect(t, tc.name, o, tc.score, tc.verdict)
		})
	}

	t.Run("station without coordinates", func(t *testing.T) {
		in := newInput()
		in.Station = &models.Station{ID: 2, Name: "Halt"}
		r := newReport(models.ReportTypeArrival, testNow)
		r.Location = at(0)
		expect(t, "no station coordinates", mustValidate(t, LocationValidator{}, r, in), 0.5, models.VerdictWarning)
	})

	t.Run("invalid coordinate is an error", func(t *testing.T) {
		r := newReport(models.ReportTypeArrival, testNow)
		r.Location = &models.Location{Latitude: 123, Longitude: 31}
		if _, err := (LocationValidator{}).Validate(context.Background(), r, newInput()); err == nil {
			t.Fatalf("expected error")
		}
	})
}

func TestConsistencyValidator(t *testing.T) {
	base := testNow.Add(-30 * time.Minute)
	peer := func(typ models.ReportType, offset time.Duration) models.Report {
		return *newReport(typ, base.Add(offset))
	}
	cases := []struct {
		name    string
		report  *models.Report
		peers   []models.Report
		score   float64
		verdict models.Verdict
	}{
		{"no peers", newReport(models.ReportTypeArrival, base), nil, 0.6, models.VerdictWarning},
		{"all agree", newReport(models.ReportTypeArrival, base), []models.Report{
			peer(models.ReportTypeArrival, 5*time.Minute),
			peer(models.ReportTypeArrival, -10*time.Minute),
			peer(models.ReportTypeDeparture, 3*time.Minute),
		}, 1.0, models.VerdictPassed},
		{"four of five", newReport(models.ReportTypeArrival, base), []models.Report{
			peer(models.ReportTypeArrival, 5*time.Minute),
			peer(models.ReportTypeArrival, 10*time.Minute),
			peer(models.ReportTypeArrival, 15*time.Minute),
			peer(models.ReportTypeOnboard, 0),
			peer(models.ReportTypeArrival, 90*time.Minute),
		}, 1.0, models.VerdictPassed},
		{"two of three", newReport(models.ReportTypeArrival, base), []models.Report{
			peer(models.ReportTypeArrival, 5*time.Minute),
			peer(models.ReportTypeArrival, 10*time.Minute),
			peer(models.ReportTypeArrival, 60*time.Minute),
		}, 0.8, models.VerdictPassed},
		{"departure before arrival", newReport(models.ReportTypeArrival, base), []models.Report{
			peer(models.ReportTypeDeparture, -10*time.Minute),
			peer(models.ReportTypeArrival, 0),
		}, 0.6, models.VerdictWarning},
		{"nobody agrees", newReport(models.ReportTypeDeparture, base), []models.Report{
			peer(models.ReportTypeArrival, 20*time.Minute),
			peer(models.ReportTypeDeparture, 45*time.Minute),
		}, 0.3, models.VerdictFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := newInput()
			in.Peers = tc.peers
			expect(t, tc.name, mustValidate(t, ConsistencyValidator{}, tc.report, in), tc.score, tc.verdict)
		})
	}
}

func TestPatternValidator(t *testing.T) {
	hist := func(station int64, typ models.ReportType, reported, created time.Time) models.Report {
		r := newReport(typ, reported)
		r.StationID = station
		r.CreatedAt = created
		return *r
	}
	current := newReport(models.ReportTypeArrival, testNow.Add(-5*time.Minute))

	cases := []struct {
		name     string
		report   *models.Report
		history  []models.Report
		patterns []Pattern
		score    float64
		verdict  models.Verdict
	}{
		{"first report", current, nil, nil, 0.9, models.VerdictPassed},
		{"clean history", current, []models.Report{
			hist(2, models.ReportTypeDeparture, testNow.Add(-3*time.Hour), testNow.Add(-3*time.Hour)),
		}, nil, 0.9, models.VerdictPassed},
		{"identical report", current, []models.Report{
			hist(2, models.ReportTypeArrival, current.ReportedTime.Add(20*time.Second), testNow.Add(-10*time.Minute)),
		}, []Pattern{PatternIdentical}, 0.2, models.VerdictFailed},
		{"impossible travel", current, []models.Report{
			hist(9, models.ReportTypeArrival, testNow.Add(-9*time.Minute), testNow.Add(-8*time.Minute)),
		}, []Pattern{PatternImpossibleTravel}, 0.2, models.VerdictFailed},
		{"mostly negative", newReport(models.ReportTypeDelayed, testNow.Add(-5*time.Minute)), []models.Report{
			hist(2, models.ReportTypeCancelled, testNow.Add(-5*time.Hour), testNow.Add(-5*time.Hour)),
			hist(2, models.ReportTypeNoShow, testNow.Add(-26*time.Hour), testNow.Add(-26*time.Hour)),
		}, []Pattern{PatternExcessiveNegative}, 0.6, models.VerdictWarning},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := newInput()
			in.History = tc.history
			o := mustValidate(t, PatternValidator{}, tc.report, in)
			expect(t, tc.name, o, tc.score, tc.verdict)

			all := append([]models.Report{*tc.report}, tc.history...)
			got := DetectPatterns(all)
			if len(got) != len(tc.patterns) {
				t.Fatalf("DetectPatterns: got %v, want %v", got, tc.patterns)
			}
			for i := range got {
				if got[i] != tc.patterns[i] {
					t.Fatalf("DetectPatterns: got %v, want %v", got, tc.patterns)
				}
			}
		})
	}

	t.Run("bot timing", func(t *testing.T) {
		reports := make([]models.Report, 0, 5)
		for i := 0; i < 5; i++ {
			created := testNow.Add(-time.Duration(i) * 10 * time.Minute)
			// hours apart in reported time, same station, arrival only
			reports = append(reports, hist(2, models.ReportTypeArrival, testNow.Add(-time.Duration(i)*3*time.Hour), created))
		}
		got := DetectPatterns(reports)
		if len(got) != 1 || got[0] != PatternBotTiming {
			t.Fatalf("DetectPatterns: got %v, want [bot_timing]", got)
		}
		reports[3].CreatedAt = reports[3].CreatedAt.Add(-2 * time.Minute)
		if got := DetectPatterns(reports); len(got) != 0 {
			t.Fatalf("DetectPatterns irregular: got %v", got)
		}
	})
}

func TestRouteValidator(t *testing.T) {
	r := newReport(models.ReportTypeArrival, testNow)
	in := newInput()
	expect(t, "on route", mustValidate(t, RouteValidator{}, r, in), 1.0, models.VerdictPassed)

	in.RouteEntry = nil
	r.IsIntermediateStation = true
	expect(t, "intermediate", mustValidate(t, RouteValidator{}, r, in), 0.6, models.VerdictWarning)

	r.IsIntermediateStation = false
	expect(t, "off route", mustValidate(t, RouteValidator{}, r, in), 0.1, models.VerdictFailed)
}

func TestRateLimitValidator(t *testing.T) {
	cases := []struct {
		name    string
		tier    models.UserTier
		spam    int
		counts  models.SubmissionCounts
		score   float64
		verdict models.Verdict
	}{
		{"new user first report", models.UserTierNew, 0, models.SubmissionCounts{}, 1.0, models.VerdictPassed},
		{"new user second in a minute", models.UserTierNew, 0, models.SubmissionCounts{LastMinute: 1, LastHour: 1, LastDay: 1}, 1.0, models.VerdictPassed},
		{"new user third in a minute", models.UserTierNew, 0, models.SubmissionCounts{LastMinute: 2, LastHour: 2, LastDay: 2}, 0.0, models.VerdictFailed},
		{"new user hourly cap", models.UserTierNew, 0, models.SubmissionCounts{LastHour: 20, LastDay: 20}, 0.0, models.VerdictFailed},
		{"regular daily cap", models.UserTierRegular, 0, models.SubmissionCounts{LastDay: 500}, 0.0, models.VerdictFailed},
		{"admin burst", models.UserTierAdmin, 0, models.SubmissionCounts{LastMinute: 99, LastHour: 99, LastDay: 99}, 1.0, models.VerdictPassed},
		{"flagged spammer blocked", models.UserTierFlagged, 11, models.SubmissionCounts{}, 0.0, models.VerdictFailed},
		{"flagged within cap", models.UserTierFlagged, 10, models.SubmissionCounts{}, 1.0, models.VerdictPassed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := newInput()
			in.Reliability.UserTier = tc.tier
			in.Reliability.SpamReports = tc.spam
			in.Counts = tc.counts
			o := mustValidate(t, RateLimitValidator{}, newReport(models.ReportTypeArrival, testNow), in)
			expect(t, tc.name, o, tc.score, tc.verdict)
		})
	}
}

func TestDuplicateValidator(t *testing.T) {
	r := newReport(models.ReportTypeArrival, testNow)
	in := newInput()
	expect(t, "unique", mustValidate(t, DuplicateValidator{}, r, in), 1.0, models.VerdictPassed)

	in.Duplicate = &models.Report{ID: 41, CreatedAt: testNow.Add(-2 * time.Minute)}
	o := mustValidate(t, DuplicateValidator{}, r, in)
	expect(t, "duplicate", o, 0.0, models.VerdictFailed)
	if o.Details["duplicate_of"] != int64(41) {
		t.Fatalf("duplicate_of: got %v", o.Details["duplicate_of"])
	}
}
