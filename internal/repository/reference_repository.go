package repository

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/gbl08ma/sqalx"

	"github.com/hazemshokry/train-tracking-app/internal/database"
	"github.com/hazemshokry/train-tracking-app/internal/models"
)

// ReferenceRepository reads trains, stations, routes and operations
type ReferenceRepository struct {
	db *database.DB
}

// NewReferenceRepository creates a new reference repository
func NewReferenceRepository(db *database.DB) *ReferenceRepository {
	return &ReferenceRepository{db: db}
}

// GetTrain returns a train by number; nil when unknown
func (r *ReferenceRepository) GetTrain(node sqalx.Node, number string) (*models.Train, error) {
	var out []models.Train
	if err := r.selectInto(node, &out, r.db.Builder.Select("number", "name", "departure_sec").
		From("trains").Where(sq.Eq{"number": number})); err != nil {
		return nil, fmt.Errorf("failed to get train %s: %w", number, err)
	}
	if len(out) == 0 {
		return nil, nil
	}
	return &out[0], nil
}

// GetStation returns a station by ID; nil when unknown
func (r *ReferenceRepository) GetStation(node sqalx.Node, id int64) (*models.Station, error) {
	var out []models.Station
	if err := r.selectInto(node, &out, r.db.Builder.Select("id", "name", "latitude", "longitude").
		From("stations").Where(sq.Eq{"id": id})); err != nil {
		return nil, fmt.Errorf("failed to get station %d: %w", id, err)
	}
	if len(out) == 0 {
		return nil, nil
	}
	return &out[0], nil
}

// ListRoute returns the official route of a train ordered by sequence
func (r *ReferenceRepository) ListRoute(node sqalx.Node, trainNumber string) ([]models.RouteEntry, error) {
	var out []models.RouteEntry
	if err := r.selectInto(node, &out, r.db.Builder.
		Select("train_number", "station_id", "sequence_number", "scheduled_arrival_sec", "scheduled_departure_sec").
		From("routes").
		Where(sq.Eq{"train_number": trainNumber}).
		OrderBy("sequence_number")); err != nil {
		return nil, fmt.Errorf("failed to list route of train %s: %w", trainNumber, err)
	}
	return out, nil
}

// GetOperation returns an operation by ID; nil when unknown
func (r *ReferenceRepository) GetOperation(node sqalx.Node, id int64) (*models.Operation, error) {
	return r.getOperation(node, sq.Eq{"id": id})
}

// FindOperation returns the operation of a train on a date; nil when none
func (r *ReferenceRepository) FindOperation(node sqalx.Node, trainNumber, date string) (*models.Operation, error) {
	return r.getOperation(node, sq.Eq{"train_number": trainNumber, "operational_date": date})
}

// GetOrCreateOperation returns the operation of a train on a date, creating it
func (r *ReferenceRepository) GetOrCreateOperation(node sqalx.Node, trainNumber, date string) (*models.Operation, error) {
	query, args, err := r.db.Builder.Insert("operations").
		Columns("train_number", "operational_date", "status").
		Values(trainNumber, date, string(models.OperationStatusScheduled)).
		Suffix("ON CONFLICT (train_number, operational_date) DO NOTHING").
		ToSql()
	if err != nil {
		return nil, err
	}
	if _, err := node.Exec(query, args...); err != nil {
		return nil, fmt.Errorf("failed to create operation %s/%s: %w", trainNumber, date, err)
	}
	op, err := r.FindOperation(node, trainNumber, date)
	if err != nil {
		return nil, err
	}
	if op == nil {
		return nil, fmt.Errorf("operation %s/%s vanished after insert", trainNumber, date)
	}
	return op, nil
}

// SaveTrain inserts or replaces a train
func (r *ReferenceRepository) SaveTrain(node sqalx.Node, t *models.Train) error {
	return r.exec(node, r.db.Builder.Insert("trains").
		Columns("number", "name", "departure_sec").
		Values(t.Number, t.Name, t.DepartureSec).
		Suffix("ON CONFLICT (number) DO UPDATE SET name = EXCLUDED.name, departure_sec = EXCLUDED.departure_sec"))
}

// SaveStation inserts or replaces a station
func (r *ReferenceRepository) SaveStation(node sqalx.Node, s *models.Station) error {
	return r.exec(node, r.db.Builder.Insert("stations").
		Columns("id", "name", "latitude", "longitude").
		Values(s.ID, s.Name, s.Latitude, s.Longitude).
		Suffix("ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, latitude = EXCLUDED.latitude, longitude = EXCLUDED.longitude"))
}

// SaveRouteEntry inserts or replaces one stop of a route
func (r *ReferenceRepository) SaveRouteEntry(node sqalx.Node, e *models.RouteEntry) error {
	return r.exec(node, r.db.Builder.Insert("routes").
		Columns("train_number", "station_id", "sequence_number", "scheduled_arrival_sec", "scheduled_departure_sec").
		Values(e.TrainNumber, e.StationID, e.SequenceNumber, e.ScheduledArrivalSec, e.ScheduledDepartureSec).
		Suffix("ON CONFLICT (train_number, station_id) DO UPDATE SET sequence_number = EXCLUDED.sequence_number, " +
			"scheduled_arrival_sec = EXCLUDED.scheduled_arrival_sec, scheduled_departure_sec = EXCLUDED.scheduled_departure_sec"))
}

func (r *ReferenceRepository) getOperation(node sqalx.Node, pred sq.Eq) (*models.Operation, error) {
	var out []models.Operation
	if err := r.selectInto(node, &out, r.db.Builder.Select("id", "train_number", "operational_date", "status").
		From("operations").Where(pred)); err != nil {
		return nil, fmt.Errorf("failed to get operation: %w", err)
	}
	if len(out) == 0 {
		return nil, nil
	}
	return &out[0], nil
}

func (r *ReferenceRepository) selectInto(node sqalx.Node, dest interface{}, b sq.SelectBuilder) error {
	query, args, err := b.ToSql()
	if err != nil {
		return err
	}
	return node.Select(dest, query, args...)
}

func (r *ReferenceRepository) exec(node sqalx.Node, b sq.InsertBuilder) error {
	query, args, err := b.ToSql()
	if err != nil {
		return err
	}
	if _, err := node.Exec(query, args...); err != nil {
		return fmt.Errorf("failed to save reference data: %w", err)
	}
	return nil
}
