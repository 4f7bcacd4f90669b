package testutil

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/hazemshokry/train-tracking-app/internal/database"
	"github.com/hazemshokry/train-tracking-app/internal/logger"
	"github.com/hazemshokry/train-tracking-app/internal/models"
	"github.com/hazemshokry/train-tracking-app/internal/repository"
)

// DB opens a migrated sqlite database in a temp dir.
func DB(tb testing.TB) *database.DB {
	tb.Helper()
	db, err := database.Open(database.Config{Driver: "sqlite", Path: filepath.Join(tb.TempDir(), "trains.db")})
	if err != nil {
		tb.Fatalf("database.Open: %v", err)
	}
	tb.Cleanup(func() { db.Close() })
	if err := database.NewMigrationManager(db, logger.Nop()).RunMigrations(); err != nil {
		tb.Fatalf("RunMigrations: %v", err)
	}
	return db
}

// Sec returns h:m as seconds past midnight.
func Sec(h, m int) *int {
	s := h*3600 + m*60
	return &s
}

// Stop describes one station of a seeded route. Seq 0 seeds the station
// without putting it on the route.
type Stop struct {
	StationID    int64
	Name         string
	Lat, Lng     float64
	Seq          int
	ArrivalSec   *int
	DepartureSec *int
}

// SeedTrain stores a train, its stations and its route.
func SeedTrain(tb testing.TB, db *database.DB, train models.Train, stops ...Stop) {
	tb.Helper()
	repo := repository.NewReferenceRepository(db)
	if err := repo.SaveTrain(db.Root, &train); err != nil {
		tb.Fatalf("SaveTrain: %v", err)
	}
	for _, s := range stops {
		lat, lng := s.Lat, s.Lng
		st := models.Station{ID: s.StationID, Name: s.Name}
		if lat != 0 || lng != 0 {
			st.Latitude, st.Longitude = &lat, &lng
		}
		if err := repo.SaveStation(db.Root, &st); err != nil {
			tb.Fatalf("SaveStation: %v", err)
		}
		if s.Seq == 0 {
			continue
		}
		entry := models.RouteEntry{
			TrainNumber:           train.Number,
			StationID:             s.StationID,
			SequenceNumber:        s.Seq,
			ScheduledArrivalSec:   s.ArrivalSec,
			ScheduledDepartureSec: s.DepartureSec,
		}
		if err := repo.SaveRouteEntry(db.Root, &entry); err != nil {
			tb.Fatalf("SaveRouteEntry: %v", err)
		}
	}
}

// Clock is a settable time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a clock stopped at t.
func NewClock(t time.Time) *Clock {
	return &Clock{now: t}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Set moves the clock to t.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}
