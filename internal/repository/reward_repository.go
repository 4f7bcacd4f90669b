package repository

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/gbl08ma/sqalx"

	"github.com/hazemshokry/train-tracking-app/internal/database"
	"github.com/hazemshokry/train-tracking-app/internal/models"
)

// RewardRepository handles database operations for reward points
type RewardRepository struct {
	db *database.DB
}

// NewRewardRepository creates a new reward repository
func NewRewardRepository(db *database.DB) *RewardRepository {
	return &RewardRepository{db: db}
}

// Create inserts a reward and sets its ID
func (r *RewardRepository) Create(node sqalx.Node, reward *models.Reward) error {
	query, args, err := r.db.Builder.Insert("rewards").
		Columns("user_id", "report_id", "points", "reason", "created_at").
		Values(reward.UserID, reward.ReportID, reward.Points, reward.Reason, toMillis(reward.CreatedAt)).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return err
	}
	if err := node.Get(&reward.ID, query, args...); err != nil {
		return fmt.Errorf("failed to insert reward: %w", err)
	}
	return nil
}

// TotalPoints sums every reward of a user
func (r *RewardRepository) TotalPoints(node sqalx.Node, userID int64) (int, error) {
	query, args, err := r.db.Builder.Select("COALESCE(SUM(points), 0)").From("rewards").
		Where(sq.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return 0, err
	}
	var total int
	if err := node.Get(&total, query, args...); err != nil {
		return 0, fmt.Errorf("failed to sum rewards of user %d: %w", userID, err)
	}
	return total, nil
}
