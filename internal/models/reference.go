package models

import "time"

// Train is a numbered service that runs once per operational day.
type Train struct {
	Number       string `json:"number" db:"number"`
	Name         string `json:"name" db:"name"`
	DepartureSec *int   `json:"departure_sec,omitempty" db:"departure_sec"`
}

// Station is a stop that reports can be filed for.
type Station struct {
	ID        int64    `json:"id" db:"id"`
	Name      string   `json:"name" db:"name"`
	Latitude  *float64 `json:"latitude,omitempty" db:"latitude"`
	Longitude *float64 `json:"longitude,omitempty" db:"longitude"`
}

// HasCoordinates reports whether the station can be located on a map.
func (s *Station) HasCoordinates() bool {
	return s != nil && s.Latitude != nil && s.Longitude != nil
}

// RouteEntry is one stop on a train's official route. Scheduled times are
// seconds past the operation's midnight and may exceed one day.
type RouteEntry struct {
	TrainNumber           string `json:"train_number" db:"train_number"`
	StationID             int64  `json:"station_id" db:"station_id"`
	SequenceNumber        int    `json:"sequence_number" db:"sequence_number"`
	ScheduledArrivalSec   *int   `json:"scheduled_arrival_sec,omitempty" db:"scheduled_arrival_sec"`
	ScheduledDepartureSec *int   `json:"scheduled_departure_sec,omitempty" db:"scheduled_departure_sec"`
}

// OperationStatus tracks the run of one operation.
type OperationStatus string

const (
	OperationStatusScheduled OperationStatus = "scheduled"
	OperationStatusCancelled OperationStatus = "cancelled"
)

// DateLayout is the layout of operational dates.
const DateLayout = "2006-01-02"

// Operation is one calendar-day run of a train.
type Operation struct {
	ID              int64           `json:"id" db:"id"`
	TrainNumber     string          `json:"train_number" db:"train_number"`
	OperationalDate string          `json:"operational_date" db:"operational_date"`
	Status          OperationStatus `json:"status" db:"status"`
}

// Midnight returns the start of the operational day in loc.
func (o *Operation) Midnight(loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(DateLayout, o.OperationalDate, loc)
}

// ScheduledAt converts route seconds into an absolute time for this operation.
func (o *Operation) ScheduledAt(sec *int, loc *time.Location) *time.Time {
	if sec == nil {
		return nil
	}
	midnight, err := o.Midnight(loc)
	if err != nil {
		return nil
	}
	t := midnight.Add(time.Duration(*sec) * time.Second)
	return &t
}

// Reward is a point grant for a contributed report.
type Reward struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	ReportID  *int64    `json:"report_id,omitempty"`
	Points    int       `json:"points"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}
