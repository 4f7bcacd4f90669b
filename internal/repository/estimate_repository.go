package repository

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/gbl08ma/sqalx"

	"github.com/hazemshokry/train-tracking-app/internal/database"
	"github.com/hazemshokry/train-tracking-app/internal/models"
)

var estimateColumns = []string{
	"id", "operation_id", "station_id",
	"scheduled_arrival", "scheduled_departure",
	"calculated_arrival", "calculated_departure",
	"previous_arrival", "previous_departure",
	"number_of_reports", "weighted_reports", "confidence_level", "status", "delay_minutes",
	"admin_override", "admin_override_time", "admin_notes", "admin_updated_by", "admin_updated_at",
	"last_updated",
}

type estimateRow struct {
	ID                  int64   `db:"id"`
	OperationID         int64   `db:"operation_id"`
	StationID           int64   `db:"station_id"`
	ScheduledArrival    *int64  `db:"scheduled_arrival"`
	ScheduledDeparture  *int64  `db:"scheduled_departure"`
	CalculatedArrival   *int64  `db:"calculated_arrival"`
	CalculatedDeparture *int64  `db:"calculated_departure"`
	PreviousArrival     *int64  `db:"previous_arrival"`
	PreviousDeparture   *int64  `db:"previous_departure"`
	NumberOfReports     int     `db:"number_of_reports"`
	WeightedReports     float64 `db:"weighted_reports"`
	ConfidenceLevel     float64 `db:"confidence_level"`
	Status              string  `db:"status"`
	DelayMinutes        int     `db:"delay_minutes"`
	AdminOverride       bool    `db:"admin_override"`
	AdminOverrideTime   *int64  `db:"admin_override_time"`
	AdminNotes          string  `db:"admin_notes"`
	AdminUpdatedBy      *int64  `db:"admin_updated_by"`
	AdminUpdatedAt      *int64  `db:"admin_updated_at"`
	LastUpdated         int64   `db:"last_updated"`
}

func (row *estimateRow) toModel() models.CalculatedEstimate {
	return models.CalculatedEstimate{
		ID:                  row.ID,
		OperationID:         row.OperationID,
		StationID:           row.StationID,
		ScheduledArrival:    fromMillisPtr(row.ScheduledArrival),
		ScheduledDeparture:  fromMillisPtr(row.ScheduledDeparture),
		CalculatedArrival:   fromMillisPtr(row.CalculatedArrival),
		CalculatedDeparture: fromMillisPtr(row.CalculatedDeparture),
		PreviousArrival:     fromMillisPtr(row.PreviousArrival),
		PreviousDeparture:   fromMillisPtr(row.PreviousDeparture),
		NumberOfReports:     row.NumberOfReports,
		WeightedReports:     row.WeightedReports,
		ConfidenceLevel:     row.ConfidenceLevel,
		Status:              models.EstimateStatus(row.Status),
		DelayMinutes:        row.DelayMinutes,
		AdminOverride:       row.AdminOverride,
		AdminOverrideTime:   fromMillisPtr(row.AdminOverrideTime),
		AdminNotes:          row.AdminNotes,
		AdminUpdatedBy:      row.AdminUpdatedBy,
		AdminUpdatedAt:      fromMillisPtr(row.AdminUpdatedAt),
		LastUpdated:         fromMillis(row.LastUpdated),
	}
}

// EstimateRepository handles database operations for calculated estimates
type EstimateRepository struct {
	db *database.DB
}

// NewEstimateRepository creates a new estimate repository
func NewEstimateRepository(db *database.DB) *EstimateRepository {
	return &EstimateRepository{db: db}
}

// Get returns the estimate of one (operation, station); nil when none exists
func (r *EstimateRepository) Get(node sqalx.Node, operationID, stationID int64) (*models.CalculatedEstimate, error) {
	list, err := r.list(node, r.selectWhere(sq.Eq{"operation_id": operationID, "station_id": stationID}))
	if err != nil || len(list) == 0 {
		return nil, err
	}
	return &list[0], nil
}

// GetOrCreate returns the estimate of one (operation, station), inserting
// seed if none exists, and locks the row for the rest of node's transaction
func (r *EstimateRepository) GetOrCreate(node sqalx.Node, seed *models.CalculatedEstimate) (*models.CalculatedEstimate, error) {
	query, args, err := r.db.Builder.Insert("calculated_estimates").
		Columns("operation_id", "station_id", "scheduled_arrival", "scheduled_departure",
			"status", "last_updated").
		Values(seed.OperationID, seed.StationID, toMillisPtr(seed.ScheduledArrival),
			toMillisPtr(seed.ScheduledDeparture), string(models.EstimateStatusScheduled),
			toMillis(seed.LastUpdated)).
		Suffix("ON CONFLICT (operation_id, station_id) DO NOTHING").
		ToSql()
	if err != nil {
		return nil, err
	}
	if _, err := node.Exec(query, args...); err != nil {
		return nil, fmt.Errorf("failed to create estimate: %w", err)
	}
	list, err := r.list(node, r.db.ForUpdate(
		r.selectWhere(sq.Eq{"operation_id": seed.OperationID, "station_id": seed.StationID})))
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("estimate %d/%d vanished after insert", seed.OperationID, seed.StationID)
	}
	return &list[0], nil
}

// Save persists every mutable field of the estimate
func (r *EstimateRepository) Save(node sqalx.Node, est *models.CalculatedEstimate) error {
	query, args, err := r.db.Builder.Update("calculated_estimates").
		Set("scheduled_arrival", toMillisPtr(est.ScheduledArrival)).
		Set("scheduled_departure", toMillisPtr(est.ScheduledDeparture)).
		Set("calculated_arrival", toMillisPtr(est.CalculatedArrival)).
		Set("calculated_departure", toMillisPtr(est.CalculatedDeparture)).
		Set("previous_arrival", toMillisPtr(est.PreviousArrival)).
		Set("previous_departure", toMillisPtr(est.PreviousDeparture)).
		Set("number_of_reports", est.NumberOfReports).
		Set("weighted_reports", est.WeightedReports).
		Set("confidence_level", est.ConfidenceLevel).
		Set("status", string(est.Status)).
		Set("delay_minutes", est.DelayMinutes).
		Set("admin_override", est.AdminOverride).
		Set("admin_override_time", toMillisPtr(est.AdminOverrideTime)).
		Set("admin_notes", est.AdminNotes).
		Set("admin_updated_by", est.AdminUpdatedBy).
		Set("admin_updated_at", toMillisPtr(est.AdminUpdatedAt)).
		Set("last_updated", toMillis(est.LastUpdated)).
		Where(sq.Eq{"id": est.ID}).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := node.Exec(query, args...); err != nil {
		return fmt.Errorf("failed to save estimate %d: %w", est.ID, err)
	}
	return nil
}

// ListByOperation returns every estimate of one operation
func (r *EstimateRepository) ListByOperation(node sqalx.Node, operationID int64) ([]models.CalculatedEstimate, error) {
	return r.list(node, r.selectWhere(sq.Eq{"operation_id": operationID}).OrderBy("station_id"))
}

func (r *EstimateRepository) selectWhere(pred sq.Eq) sq.SelectBuilder {
	return r.db.Builder.Select(estimateColumns...).From("calculated_estimates").Where(pred)
}

func (r *EstimateRepository) list(node sqalx.Node, b sq.SelectBuilder) ([]models.CalculatedEstimate, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	var rows []estimateRow
	if err := node.Select(&rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query estimates: %w", err)
	}
	out := make([]models.CalculatedEstimate, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toModel())
	}
	return out, nil
}
