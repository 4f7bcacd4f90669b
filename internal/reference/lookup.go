// Package reference resolves the trains, stations, routes and operations
// that reports refer to. Static reference rows are cached.
package reference

import (
	"fmt"
	"time"

	"github.com/gbl08ma/sqalx"
	"github.com/patrickmn/go-cache"

	"github.com/hazemshokry/train-tracking-app/internal/models"
	"github.com/hazemshokry/train-tracking-app/internal/repository"
)

// DepartureGrace lets reports filed shortly before a train's first
// departure still count toward that day's operation.
const DepartureGrace = time.Hour

// Lookup is the route, station and operation collaborator of the core.
type Lookup struct {
	repo  *repository.ReferenceRepository
	root  sqalx.Node
	cache *cache.Cache
	loc   *time.Location
}

// NewLookup creates a lookup caching reference rows for ttl.
func NewLookup(repo *repository.ReferenceRepository, root sqalx.Node, ttl time.Duration, loc *time.Location) *Lookup {
	if loc == nil {
		loc = time.UTC
	}
	return &Lookup{
		repo:  repo,
		root:  root,
		cache: cache.New(ttl, 2*ttl),
		loc:   loc,
	}
}

// Location is the zone operational days are counted in.
func (l *Lookup) Location() *time.Location {
	return l.loc
}

// Train returns a train by number; nil when unknown.
func (l *Lookup) Train(number string) (*models.Train, error) {
	key := "train:" + number
	if v, ok := l.cache.Get(key); ok {
		return v.(*models.Train), nil
	}
	t, err := l.repo.GetTrain(l.root, number)
	if err != nil || t == nil {
		return nil, err
	}
	l.cache.SetDefault(key, t)
	return t, nil
}

// Station returns a station by ID; nil when unknown.
func (l *Lookup) Station(id int64) (*models.Station, error) {
	key := fmt.Sprintf("station:%d", id)
	if v, ok := l.cache.Get(key); ok {
		return v.(*models.Station), nil
	}
	s, err := l.repo.GetStation(l.root, id)
	if err != nil || s == nil {
		return nil, err
	}
	l.cache.SetDefault(key, s)
	return s, nil
}

// Route returns the official route of a train ordered by sequence.
func (l *Lookup) Route(trainNumber string) ([]models.RouteEntry, error) {
	key := "route:" + trainNumber
	if v, ok := l.cache.Get(key); ok {
		return v.([]models.RouteEntry), nil
	}
	route, err := l.repo.ListRoute(l.root, trainNumber)
	if err != nil {
		return nil, err
	}
	l.cache.SetDefault(key, route)
	return route, nil
}

// RouteEntry returns the stop of stationID on the train's route; nil when
// the station is not on it.
func (l *Lookup) RouteEntry(trainNumber string, stationID int64) (*models.RouteEntry, error) {
	route, err := l.Route(trainNumber)
	if err != nil {
		return nil, err
	}
	for i := range route {
		if route[i].StationID == stationID {
			e := route[i]
			return &e, nil
		}
	}
	return nil, nil
}

// Downstream returns the route entries after sequence seq.
func (l *Lookup) Downstream(trainNumber string, seq int) ([]models.RouteEntry, error) {
	route, err := l.Route(trainNumber)
	if err != nil {
		return nil, err
	}
	var out []models.RouteEntry
	for _, e := range route {
		if e.SequenceNumber > seq {
			out = append(out, e)
		}
	}
	return out, nil
}

// OperationalDate is the service day a report at t belongs to. Reports
// earlier in the day than the train's first departure belong to the
// previous day's run.
func (l *Lookup) OperationalDate(train *models.Train, t time.Time) string {
	local := t.In(l.loc)
	if train != nil && train.DepartureSec != nil {
		sec := local.Hour()*3600 + local.Minute()*60 + local.Second()
		if sec < *train.DepartureSec%86400-int(DepartureGrace/time.Second) {
			local = local.AddDate(0, 0, -1)
		}
	}
	return local.Format(models.DateLayout)
}

// ResolveOperation returns the operation a report at t belongs to, creating it.
func (l *Lookup) ResolveOperation(node sqalx.Node, train *models.Train, t time.Time) (*models.Operation, error) {
	return l.repo.GetOrCreateOperation(node, train.Number, l.OperationalDate(train, t))
}

// Operation returns an operation by ID; nil when unknown.
func (l *Lookup) Operation(node sqalx.Node, id int64) (*models.Operation, error) {
	return l.repo.GetOperation(node, id)
}

// FindOperation returns the operation of a train on a date; nil when none.
func (l *Lookup) FindOperation(node sqalx.Node, trainNumber, date string) (*models.Operation, error) {
	return l.repo.FindOperation(node, trainNumber, date)
}

// Scheduled converts a route entry into absolute scheduled times of op.
func (l *Lookup) Scheduled(op *models.Operation, entry *models.RouteEntry) (arrival, departure *time.Time) {
	if op == nil || entry == nil {
		return nil, nil
	}
	return op.ScheduledAt(entry.ScheduledArrivalSec, l.loc), op.ScheduledAt(entry.ScheduledDepartureSec, l.loc)
}

// Invalidate drops every cached row.
func (l *Lookup) Invalidate() {
	l.cache.Flush()
}
