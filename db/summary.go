package db

import (
	"context"
	"fmt"
	"time"

	"validation-recorder/models"
)

// InsertSummary appends one validation summary row
func (db *Database) InsertSummary(ctx context.Context, summary *models.ValidationSummary) error {
	columns := []string{"validation_type", "total_checks", "passed_checks", "failed_checks", "error_checks"}
	args := []any{string(summary.ValidationType), summary.Total, summary.Passed, summary.Failed, summary.ErrorOrOther}
	columns, args = db.withTimestamp(columns, args, "validation_timestamp", summary.Timestamp)

	id, err := db.insertRow(ctx, "validation_summary", columns, args)
	if err != nil {
		return fmt.Errorf("%w: failed to create %s summary: %w", models.ErrPersistence, summary.ValidationType, err)
	}

	summary.ID = id
	return nil
}

// GetSummariesSince retrieves summaries recorded at or after since, newest first
func (db *Database) GetSummariesSince(ctx context.Context, since time.Time, limit int) ([]*models.ValidationSummary, error) {
	query := `
		SELECT id, validation_type, total_checks, passed_checks, failed_checks, error_checks,
		       validation_timestamp
		FROM validation_summary
		WHERE validation_timestamp >= ?
		ORDER BY validation_timestamp DESC, id DESC
		LIMIT ?
	`

	rows, err := db.conn.QueryContext(ctx, db.dialect.rebind(query), db.dialect.timeArg(since), limit)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query summaries: %w", models.ErrPersistence, err)
	}
	defer rows.Close()

	var summaries []*models.ValidationSummary
	for rows.Next() {
		s := &models.ValidationSummary{}
		var validationType string
		err := rows.Scan(&s.ID, &validationType, &s.Total, &s.Passed, &s.Failed,
			&s.ErrorOrOther, &s.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("failed to scan summary: %w", err)
		}
		s.ValidationType = models.ValidationType(validationType)
		summaries = append(summaries, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating summaries: %w", err)
	}

	return summaries, nil
}
