package service

import (
	"context"
	"errors"
	"time"

	"github.com/hazemshokry/train-tracking-app/internal/apperr"
	"github.com/hazemshokry/train-tracking-app/internal/database"
	"github.com/hazemshokry/train-tracking-app/internal/estimation"
	"github.com/hazemshokry/train-tracking-app/internal/events"
	"github.com/hazemshokry/train-tracking-app/internal/lock"
	"github.com/hazemshokry/train-tracking-app/internal/logger"
	"github.com/hazemshokry/train-tracking-app/internal/metrics"
	"github.com/hazemshokry/train-tracking-app/internal/reference"
	"github.com/hazemshokry/train-tracking-app/internal/reliability"
	"github.com/hazemshokry/train-tracking-app/internal/repository"
	"github.com/hazemshokry/train-tracking-app/internal/validation"
)

// Deps are the collaborators shared by the services.
type Deps struct {
	DB          *database.DB
	Lookup      *reference.Lookup
	Reports     *repository.ReportRepository
	Validations *repository.ValidationRepository
	Rewards     *repository.RewardRepository
	Tracker     *reliability.Tracker
	Estimates   *estimation.Service
	Engine      *validation.Engine
	Locker      lock.Locker
	Events      events.Publisher
	Metrics     *metrics.Collector
	Log         *logger.Logger
	Now         func() time.Time
}

// NewDeps wires repositories and engines over db. Events, Metrics and Now
// may be left unset.
func NewDeps(db *database.DB, lookup *reference.Lookup, locker lock.Locker, log *logger.Logger, now func() time.Time) Deps {
	if now == nil {
		now = time.Now
	}
	reports := repository.NewReportRepository(db)
	return Deps{
		DB:          db,
		Lookup:      lookup,
		Reports:     reports,
		Validations: repository.NewValidationRepository(db),
		Rewards:     repository.NewRewardRepository(db),
		Tracker:     reliability.NewTracker(repository.NewReliabilityRepository(db), log, now),
		Estimates:   estimation.NewService(repository.NewEstimateRepository(db), reports, lookup, log, now),
		Engine:      validation.NewEngine(log),
		Locker:      locker,
		Events:      events.Nop{},
		Log:         log,
		Now:         now,
	}
}

// acquire takes the submission locks for keys and records the wait.
func (d *Deps) acquire(ctx context.Context, keys ...string) (func(), error) {
	start := time.Now()
	release, err := d.Locker.Acquire(ctx, keys...)
	d.Metrics.LockAcquired(time.Since(start), errors.Is(err, apperr.ErrConcurrencyConflict))
	if err != nil {
		d.Log.Warn("lock acquisition failed", "keys", keys, "error", err)
		return nil, err
	}
	return release, nil
}

// publish sends events after commit. Failures are logged, never returned.
func (d *Deps) publish(evs ...events.Event) {
	if d.Events == nil {
		return
	}
	for _, ev := range evs {
		if err := d.Events.Publish(ev); err != nil {
			d.Log.Warn("event publish failed", "type", ev.Type, "event_id", ev.ID, "error", err)
		}
	}
}

// internal classifies unexpected failures, leaving classified ones alone.
func internal(op string, err error) error {
	var ae *apperr.Error
	if err == nil || errors.As(err, &ae) {
		return err
	}
	return apperr.Internal(op, err)
}
