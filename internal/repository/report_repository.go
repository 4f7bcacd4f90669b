package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/gbl08ma/sqalx"

	"github.com/hazemshokry/train-tracking-app/internal/database"
	"github.com/hazemshokry/train-tracking-app/internal/models"
)

var reportColumns = []string{
	"id", "user_id", "train_number", "operation_id", "station_id", "report_type",
	"reported_time", "created_at", "latitude", "longitude", "location_accuracy",
	"delay_minutes", "notes", "confidence_score", "weight_factor", "validation_status",
	"is_intermediate_station", "verified_by", "verified_at", "verification_notes",
}

type reportRow struct {
	ID                    int64    `db:"id"`
	UserID                int64    `db:"user_id"`
	TrainNumber           string   `db:"train_number"`
	OperationID           int64    `db:"operation_id"`
	StationID             int64    `db:"station_id"`
	ReportType            string   `db:"report_type"`
	ReportedTime          int64    `db:"reported_time"`
	CreatedAt             int64    `db:"created_at"`
	Latitude              *float64 `db:"latitude"`
	Longitude             *float64 `db:"longitude"`
	LocationAccuracy      *float64 `db:"location_accuracy"`
	DelayMinutes          *int     `db:"delay_minutes"`
	Notes                 string   `db:"notes"`
	ConfidenceScore       float64  `db:"confidence_score"`
	WeightFactor          float64  `db:"weight_factor"`
	ValidationStatus      string   `db:"validation_status"`
	IsIntermediateStation bool     `db:"is_intermediate_station"`
	VerifiedBy            *int64   `db:"verified_by"`
	VerifiedAt            *int64   `db:"verified_at"`
	VerificationNotes     string   `db:"verification_notes"`
}

func (row *reportRow) toModel() *models.Report {
	r := &models.Report{
		ID:                    row.ID,
		UserID:                row.UserID,
		TrainNumber:           row.TrainNumber,
		OperationID:           row.OperationID,
		StationID:             row.StationID,
		ReportType:            models.ReportType(row.ReportType),
		ReportedTime:          fromMillis(row.ReportedTime),
		CreatedAt:             fromMillis(row.CreatedAt),
		DelayMinutes:          row.DelayMinutes,
		Notes:                 row.Notes,
		ConfidenceScore:       row.ConfidenceScore,
		WeightFactor:          row.WeightFactor,
		ValidationStatus:      models.ValidationStatus(row.ValidationStatus),
		IsIntermediateStation: row.IsIntermediateStation,
		VerifiedBy:            row.VerifiedBy,
		VerifiedAt:            fromMillisPtr(row.VerifiedAt),
		VerificationNotes:     row.VerificationNotes,
	}
	if row.Latitude != nil && row.Longitude != nil {
		r.Location = &models.Location{
			Latitude:  *row.Latitude,
			Longitude: *row.Longitude,
			Accuracy:  row.LocationAccuracy,
		}
	}
	return r
}

// ReportRepository handles database operations for reports
type ReportRepository struct {
	db *database.DB
}

// NewReportRepository creates a new report repository
func NewReportRepository(db *database.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// Create inserts the report and sets its ID
func (r *ReportRepository) Create(node sqalx.Node, report *models.Report) error {
	var lat, lng, acc *float64
	if loc := report.Location; loc != nil {
		lat, lng, acc = &loc.Latitude, &loc.Longitude, loc.Accuracy
	}
	query, args, err := r.db.Builder.Insert("reports").
		Columns(reportColumns[1:]...).
		Values(report.UserID, report.TrainNumber, report.OperationID, report.StationID,
			string(report.ReportType), toMillis(report.ReportedTime), toMillis(report.CreatedAt),
			lat, lng, acc, report.DelayMinutes, report.Notes,
			report.ConfidenceScore, report.WeightFactor, string(report.ValidationStatus),
			report.IsIntermediateStation, report.VerifiedBy, toMillisPtr(report.VerifiedAt),
			report.VerificationNotes).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return err
	}
	if err := node.Get(&report.ID, query, args...); err != nil {
		return fmt.Errorf("failed to insert report: %w", err)
	}
	return nil
}

// GetByID retrieves a single report; nil when it does not exist
func (r *ReportRepository) GetByID(node sqalx.Node, id int64) (*models.Report, error) {
	reports, err := r.list(node, r.db.Builder.Select(reportColumns...).From("reports").
		Where(sq.Eq{"id": id}))
	if err != nil {
		return nil, err
	}
	if len(reports) == 0 {
		return nil, nil
	}
	return &reports[0], nil
}

// UpdateReview persists the mutable review state of a report
func (r *ReportRepository) UpdateReview(node sqalx.Node, report *models.Report) error {
	query, args, err := r.db.Builder.Update("reports").
		Set("confidence_score", report.ConfidenceScore).
		Set("validation_status", string(report.ValidationStatus)).
		Set("verified_by", report.VerifiedBy).
		Set("verified_at", toMillisPtr(report.VerifiedAt)).
		Set("verification_notes", report.VerificationNotes).
		Where(sq.Eq{"id": report.ID}).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := node.Exec(query, args...); err != nil {
		return fmt.Errorf("failed to update report %d: %w", report.ID, err)
	}
	return nil
}

// Delete removes a report; its validations go with it
func (r *ReportRepository) Delete(node sqalx.Node, id int64) error {
	query, args, err := r.db.Builder.Delete("reports").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return err
	}
	if _, err := node.Exec(query, args...); err != nil {
		return fmt.Errorf("failed to delete report %d: %w", id, err)
	}
	return nil
}

// ListAccepted returns the reports of one (operation, station) that feed its estimate
func (r *ReportRepository) ListAccepted(node sqalx.Node, operationID, stationID int64) ([]models.Report, error) {
	return r.list(node, r.db.Builder.Select(reportColumns...).From("reports").
		Where(sq.Eq{
			"operation_id":      operationID,
			"station_id":        stationID,
			"validation_status": statusStrings(models.AcceptedStatuses),
		}).
		OrderBy("reported_time", "id"))
}

// ListPeers returns recent non-rejected reports for the same (train, station), newest first
func (r *ReportRepository) ListPeers(node sqalx.Node, trainNumber string, stationID int64, since time.Time, limit uint64) ([]models.Report, error) {
	return r.list(node, r.db.Builder.Select(reportColumns...).From("reports").
		Where(sq.Eq{"train_number": trainNumber, "station_id": stationID}).
		Where(sq.GtOrEq{"created_at": toMillis(since)}).
		Where(sq.NotEq{"validation_status": string(models.ValidationStatusRejected)}).
		OrderBy("created_at DESC", "id DESC").
		Limit(limit))
}

// ListByUserSince returns a user's reports created at or after since, newest first
func (r *ReportRepository) ListByUserSince(node sqalx.Node, userID int64, since time.Time) ([]models.Report, error) {
	return r.list(node, r.db.Builder.Select(reportColumns...).From("reports").
		Where(sq.Eq{"user_id": userID}).
		Where(sq.GtOrEq{"created_at": toMillis(since)}).
		OrderBy("created_at DESC", "id DESC"))
}

// CountSubmissions counts a user's persisted reports per rate-limit window
func (r *ReportRepository) CountSubmissions(node sqalx.Node, userID int64, now time.Time) (models.SubmissionCounts, error) {
	var counts models.SubmissionCounts
	windows := []struct {
		dst *int
		d   time.Duration
	}{
		{&counts.LastMinute, time.Minute},
		{&counts.LastHour, time.Hour},
		{&counts.LastDay, 24 * time.Hour},
	}
	for _, w := range windows {
		query, args, err := r.db.Builder.Select("COUNT(*)").From("reports").
			Where(sq.Eq{"user_id": userID}).
			Where(sq.Gt{"created_at": toMillis(now.Add(-w.d))}).
			ToSql()
		if err != nil {
			return counts, err
		}
		if err := node.Get(w.dst, query, args...); err != nil {
			return counts, fmt.Errorf("failed to count submissions: %w", err)
		}
	}
	return counts, nil
}

// FindDuplicate returns the newest report with the same user, train, station
// and type created strictly after since; nil when there is none
func (r *ReportRepository) FindDuplicate(node sqalx.Node, report *models.Report, since time.Time) (*models.Report, error) {
	reports, err := r.list(node, r.db.Builder.Select(reportColumns...).From("reports").
		Where(sq.Eq{
			"user_id":      report.UserID,
			"train_number": report.TrainNumber,
			"station_id":   report.StationID,
			"report_type":  string(report.ReportType),
		}).
		Where(sq.Gt{"created_at": toMillis(since)}).
		OrderBy("created_at DESC").
		Limit(1))
	if err != nil || len(reports) == 0 {
		return nil, err
	}
	return &reports[0], nil
}

// ListForOperation returns accepted reports of one operation, newest first
func (r *ReportRepository) ListForOperation(node sqalx.Node, operationID, stationID int64, since *time.Time, limit uint64) ([]models.Report, error) {
	b := r.db.Builder.Select(reportColumns...).From("reports").
		Where(sq.Eq{
			"operation_id":      operationID,
			"validation_status": statusStrings(models.AcceptedStatuses),
		})
	if stationID > 0 {
		b = b.Where(sq.Eq{"station_id": stationID})
	}
	if since != nil {
		b = b.Where(sq.GtOrEq{"created_at": toMillis(*since)})
	}
	if limit > 0 {
		b = b.Limit(limit)
	}
	return r.list(node, b.OrderBy("created_at DESC", "id DESC"))
}

func (r *ReportRepository) list(node sqalx.Node, b sq.SelectBuilder) ([]models.Report, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	var rows []reportRow
	if err := node.Select(&rows, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query reports: %w", err)
	}
	reports := make([]models.Report, 0, len(rows))
	for i := range rows {
		reports = append(reports, *rows[i].toModel())
	}
	return reports, nil
}

func statusStrings(statuses []models.ValidationStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
