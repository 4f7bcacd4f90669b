package repository

import (
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/gbl08ma/sqalx"

	"github.com/hazemshokry/train-tracking-app/internal/database"
	"github.com/hazemshokry/train-tracking-app/internal/models"
)

type reliabilityRow struct {
	UserID           int64   `db:"user_id"`
	ReliabilityScore float64 `db:"reliability_score"`
	TotalReports     int     `db:"total_reports"`
	AccurateReports  int     `db:"accurate_reports"`
	FlaggedReports   int     `db:"flagged_reports"`
	SpamReports      int     `db:"spam_reports"`
	UserTier         string  `db:"user_tier"`
	UpdatedAt        int64   `db:"updated_at"`
}

var reliabilityColumns = []string{
	"user_id", "reliability_score", "total_reports", "accurate_reports",
	"flagged_reports", "spam_reports", "user_tier", "updated_at",
}

// ReliabilityRepository handles database operations for user reliability
type ReliabilityRepository struct {
	db *database.DB
}

// NewReliabilityRepository creates a new reliability repository
func NewReliabilityRepository(db *database.DB) *ReliabilityRepository {
	return &ReliabilityRepository{db: db}
}

// Get returns the record of a user; nil when none exists yet
func (r *ReliabilityRepository) Get(node sqalx.Node, userID int64) (*models.ReliabilityRecord, error) {
	return r.get(node, r.db.Builder.Select(reliabilityColumns...).From("user_reliability").
		Where(sq.Eq{"user_id": userID}))
}

// GetOrCreate returns the record of a user, creating the default one if
// needed, locked for update within node's transaction
func (r *ReliabilityRepository) GetOrCreate(node sqalx.Node, userID int64, now time.Time) (*models.ReliabilityRecord, error) {
	def := models.NewReliabilityRecord(userID, now)
	query, args, err := r.db.Builder.Insert("user_reliability").
		Columns(reliabilityColumns...).
		Values(def.UserID, def.ReliabilityScore, 0, 0, 0, 0, string(def.UserTier), toMillis(now)).
		Suffix("ON CONFLICT (user_id) DO NOTHING").
		ToSql()
	if err != nil {
		return nil, err
	}
	if _, err := node.Exec(query, args...); err != nil {
		return nil, fmt.Errorf("failed to create reliability for user %d: %w", userID, err)
	}
	rec, err := r.get(node, r.db.ForUpdate(r.db.Builder.Select(reliabilityColumns...).From("user_reliability").
		Where(sq.Eq{"user_id": userID})))
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("reliability for user %d vanished after insert", userID)
	}
	return rec, nil
}

// Save persists counters, score and tier
func (r *ReliabilityRepository) Save(node sqalx.Node, rec *models.ReliabilityRecord) error {
	query, args, err := r.db.Builder.Update("user_reliability").
		Set("reliability_score", rec.ReliabilityScore).
		Set("total_reports", rec.TotalReports).
		Set("accurate_reports", rec.AccurateReports).
		Set("flagged_reports", rec.FlaggedReports).
		Set("spam_reports", rec.SpamReports).
		Set("user_tier", string(rec.UserTier)).
		Set("updated_at", toMillis(rec.UpdatedAt)).
		Where(sq.Eq{"user_id": rec.UserID}).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := node.Exec(query, args...); err != nil {
		return fmt.Errorf("failed to save reliability for user %d: %w", rec.UserID, err)
	}
	return nil
}

func (r *ReliabilityRepository) get(node sqalx.Node, b sq.SelectBuilder) (*models.ReliabilityRecord, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	var rows []reliabilityRow
	if err := node.Select(&rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query reliability: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	row := rows[0]
	return &models.ReliabilityRecord{
		UserID:           row.UserID,
		ReliabilityScore: row.ReliabilityScore,
		TotalReports:     row.TotalReports,
		AccurateReports:  row.AccurateReports,
		FlaggedReports:   row.FlaggedReports,
		SpamReports:      row.SpamReports,
		UserTier:         models.UserTier(row.UserTier),
		UpdatedAt:        fromMillis(row.UpdatedAt),
	}, nil
}
