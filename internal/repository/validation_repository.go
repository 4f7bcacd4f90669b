package repository

import (
	"encoding/json"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/gbl08ma/sqalx"

	"github.com/hazemshokry/train-tracking-app/internal/database"
	"github.com/hazemshokry/train-tracking-app/internal/models"
)

type validationRow struct {
	ID            int64   `db:"id"`
	ReportID      int64   `db:"report_id"`
	ValidatorType string  `db:"validator_type"`
	Verdict       string  `db:"verdict"`
	Score         float64 `db:"score"`
	Weight        float64 `db:"weight"`
	Details       string  `db:"details"`
	ErrorMessage  string  `db:"error_message"`
	CreatedAt     int64   `db:"created_at"`
}

// ValidationRepository stores the per-validator audit trail of reports
type ValidationRepository struct {
	db *database.DB
}

// NewValidationRepository creates a new validation repository
func NewValidationRepository(db *database.DB) *ValidationRepository {
	return &ValidationRepository{db: db}
}

// CreateBatch inserts all outcomes of one report
func (r *ValidationRepository) CreateBatch(node sqalx.Node, reportID int64, outcomes []models.ValidationOutcome) error {
	if len(outcomes) == 0 {
		return nil
	}
	b := r.db.Builder.Insert("report_validations").
		Columns("report_id", "validator_type", "verdict", "score", "weight", "details", "error_message", "created_at")
	for i := range outcomes {
		o := &outcomes[i]
		o.ReportID = reportID
		details, err := json.Marshal(o.Details)
		if err != nil {
			return fmt.Errorf("failed to encode %s details: %w", o.ValidatorType, err)
		}
		if o.Details == nil {
			details = []byte("{}")
		}
		b = b.Values(reportID, string(o.ValidatorType), string(o.Verdict), o.Score, o.Weight,
			string(details), o.ErrorMessage, toMillis(o.CreatedAt))
	}
	query, args, err := b.ToSql()
	if err != nil {
		return err
	}
	if _, err := node.Exec(query, args...); err != nil {
		return fmt.Errorf("failed to insert validations for report %d: %w", reportID, err)
	}
	return nil
}

// ListByReport returns the outcomes of one report
func (r *ValidationRepository) ListByReport(node sqalx.Node, reportID int64) ([]models.ValidationOutcome, error) {
	query, args, err := r.db.Builder.
		Select("id", "report_id", "validator_type", "verdict", "score", "weight", "details", "error_message", "created_at").
		From("report_validations").
		Where(sq.Eq{"report_id": reportID}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, err
	}
	var rows []validationRow
	if err := node.Select(&rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query validations: %w", err)
	}
	outcomes := make([]models.ValidationOutcome, 0, len(rows))
	for _, row := range rows {
		o := models.ValidationOutcome{
			ID:            row.ID,
			ReportID:      row.ReportID,
			ValidatorType: models.ValidatorType(row.ValidatorType),
			Verdict:       models.Verdict(row.Verdict),
			Score:         row.Score,
			Weight:        row.Weight,
			ErrorMessage:  row.ErrorMessage,
			CreatedAt:     fromMillis(row.CreatedAt),
		}
		if row.Details != "" {
			if err := json.Unmarshal([]byte(row.Details), &o.Details); err != nil {
				return nil, fmt.Errorf("failed to decode validation %d details: %w", row.ID, err)
			}
		}
		outcomes = append(outcomes, o)
	}
	return outcomes, nil
}
