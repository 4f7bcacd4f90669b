// Package events announces estimate changes to other services over NATS.
package events

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/hazemshokry/train-tracking-app/internal/logger"
	"github.com/hazemshokry/train-tracking-app/internal/models"
)

// Event types, appended to the subject prefix.
const (
	TypeEstimateUpdated  = "estimate.updated"
	TypeEstimateCascaded = "estimate.cascaded"
	TypeReportFlagged    = "report.flagged"
)

// Event is the JSON envelope of every published message.
type Event struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	OccurredAt  time.Time `json:"occurred_at"`
	TrainNumber string    `json:"train_number,omitempty"`
	OperationID int64     `json:"operation_id,omitempty"`
	StationID   int64     `json:"station_id,omitempty"`
	Data        any       `json:"data,omitempty"`
}

// EstimateUpdated builds the event for a recomputed or overridden estimate.
func EstimateUpdated(train string, est *models.CalculatedEstimate) Event {
	return newEvent(TypeEstimateUpdated, train, est.OperationID, est.StationID, est)
}

// EstimateCascaded builds the event for stations cancelled downstream of fromStation.
func EstimateCascaded(train string, operationID, fromStation int64, stations []int64) Event {
	return newEvent(TypeEstimateCascaded, train, operationID, fromStation, map[string]any{
		"cancelled_stations": stations,
	})
}

// ReportFlagged builds the event for a report an admin flagged.
func ReportFlagged(r *models.Report) Event {
	return newEvent(TypeReportFlagged, r.TrainNumber, r.OperationID, r.StationID, map[string]any{
		"report_id": r.ID,
		"user_id":   r.UserID,
		"reason":    r.VerificationNotes,
	})
}

func newEvent(typ, train string, operationID, stationID int64, data any) Event {
	return Event{
		ID:          uuid.NewString(),
		Type:        typ,
		OccurredAt:  time.Now().UTC(),
		TrainNumber: train,
		OperationID: operationID,
		StationID:   stationID,
		Data:        data,
	}
}

// Publisher delivers events. Publishing is best effort: it happens after
// the change is committed and a failure never undoes it.
type Publisher interface {
	Publish(ev Event) error
	Close()
}

type PublisherMetrics interface {
	EventPublished()
	EventPublishFailed()
	NATSSetConnected(connected bool)
}

// New connects to url, or returns a publisher that drops every event when
// url is empty.
func New(url, prefix string, log *logger.Logger, m PublisherMetrics) (Publisher, error) {
	if url == "" {
		return Nop{}, nil
	}
	p, err := NewNATSPublisher(url, prefix, log, m)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Nop drops events.
type Nop struct{}

func (Nop) Publish(Event) error { return nil }
func (Nop) Close()              {}

type NATSPublisher struct {
	nc      *nats.Conn
	prefix  string
	log     *logger.Logger
	metrics PublisherMetrics
}

func NewNATSPublisher(url, prefix string, log *logger.Logger, m PublisherMetrics) (*NATSPublisher, error) {
	log = log.With("component", "NATSPublisher")
	nc, err := nats.Connect(url,
		nats.Name("train-tracking"),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			log.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(true)
			}
			log.Info("nats reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			log.Info("nats closed")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}
	if m != nil {
		m.NATSSetConnected(true)
	}
	return &NATSPublisher{nc: nc, prefix: prefix, log: log, metrics: m}, nil
}

func (p *NATSPublisher) Close() {
	if p.nc != nil {
		_ = p.nc.Drain()
		p.nc.Close()
	}
}

func (p *NATSPublisher) Publish(ev Event) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	subject := Subject(p.prefix, ev)
	err = p.nc.Publish(subject, b)
	if p.metrics != nil {
		if err != nil {
			p.metrics.EventPublishFailed()
		} else {
			p.metrics.EventPublished()
		}
	}
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", subject, err)
	}
	p.log.Debug("event published", "subject", subject, "event_id", ev.ID)
	return nil
}

// Subject is <prefix>.<type>.<train>, e.g. trains.estimate.updated.924.
func Subject(prefix string, ev Event) string {
	parts := make([]string, 0, 3)
	if prefix != "" {
		parts = append(parts, subjectToken(prefix))
	}
	parts = append(parts, ev.Type)
	if ev.TrainNumber != "" {
		parts = append(parts, subjectToken(ev.TrainNumber))
	}
	return strings.Join(parts, ".")
}

func subjectToken(s string) string {
	s = strings.TrimSpace(s)
	// NATS token cannot contain spaces, '>', '*', or '.'
	repl := strings.NewReplacer(" ", "_", ".", "_", ">", "_", "*", "_", "/", "_", "\t", "_")
	s = repl.Replace(s)
	if s == "" {
		s = "_"
	}
	return s
}
