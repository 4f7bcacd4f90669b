package service

import (
	"context"

	"github.com/gbl08ma/sqalx"

	"github.com/hazemshokry/train-tracking-app/internal/database"
	"github.com/hazemshokry/train-tracking-app/internal/lock"
	"github.com/hazemshokry/train-tracking-app/internal/models"
)

// ReliabilityService exposes user reliability records
type ReliabilityService struct {
	deps Deps
}

// NewReliabilityService creates a new reliability service
func NewReliabilityService(deps Deps) *ReliabilityService {
	return &ReliabilityService{deps: deps}
}

// GetUserReliability returns the record of a user, or the default record
// of a user who never reported.
func (s *ReliabilityService) GetUserReliability(ctx context.Context, userID int64) (*models.ReliabilityRecord, error) {
	rec, err := s.deps.Tracker.Get(ctx, s.deps.DB.Root, userID)
	if err != nil {
		return nil, internal("failed to get reliability", err)
	}
	return rec, nil
}

// PromoteToAdmin grants the admin tier.
func (s *ReliabilityService) PromoteToAdmin(ctx context.Context, userID int64) (*models.ReliabilityRecord, error) {
	release, err := s.deps.acquire(ctx, lock.UserKey(userID))
	if err != nil {
		return nil, err
	}
	defer release()

	var rec *models.ReliabilityRecord
	err = database.Transaction(s.deps.DB.Root, func(tx sqalx.Node) error {
		var err error
		rec, err = s.deps.Tracker.PromoteToAdmin(ctx, tx, userID)
		return err
	})
	if err != nil {
		return nil, internal("failed to promote user", err)
	}
	return rec, nil
}
