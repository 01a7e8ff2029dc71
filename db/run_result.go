package db

import (
	"context"
	"fmt"
	"time"

	"validation-recorder/models"
)

// InsertRunResult appends one dbt run result
func (db *Database) InsertRunResult(ctx context.Context, result *models.RunResult) error {
	columns := []string{"run_id", "model_name", "status", "execution_time", "rows_affected"}
	args := []any{result.RunID, result.ModelName, result.Status, result.ExecutionTime, result.RowsAffected}
	columns, args = db.withTimestamp(columns, args, "run_timestamp", result.Timestamp)

	id, err := db.insertRow(ctx, "dbt_run_results", columns, args)
	if err != nil {
		return fmt.Errorf("%w: failed to create run result: %w", models.ErrPersistence, err)
	}

	result.ID = id
	return nil
}

// QueryRunResultCounts counts run results recorded at or after since. success
// counts as passed, error as failed, anything else as error_or_other.
func (db *Database) QueryRunResultCounts(ctx context.Context, since time.Time) (*models.StatusCounts, error) {
	query := `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN status = 'success' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN status = 'error' THEN 1 ELSE 0 END), 0)
		FROM dbt_run_results
		WHERE run_timestamp >= ?
	`

	counts, err := db.queryCounts(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to count run results: %w", models.ErrPersistence, err)
	}
	return counts, nil
}

// GetRunResultsSince retrieves run results recorded at or after since, oldest first
func (db *Database) GetRunResultsSince(ctx context.Context, since time.Time) ([]*models.RunResult, error) {
	query := `
		SELECT id, run_id, model_name, status, execution_time, rows_affected, run_timestamp
		FROM dbt_run_results
		WHERE run_timestamp >= ?
		ORDER BY id
	`

	rows, err := db.conn.QueryContext(ctx, db.dialect.rebind(query), db.dialect.timeArg(since))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query run results: %w", models.ErrPersistence, err)
	}
	defer rows.Close()

	var results []*models.RunResult
	for rows.Next() {
		r := &models.RunResult{}
		if err := rows.Scan(&r.ID, &r.RunID, &r.ModelName, &r.Status,
			&r.ExecutionTime, &r.RowsAffected, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan run result: %w", err)
		}
		results = append(results, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating run results: %w", err)
	}

	return results, nil
}

// queryCounts runs a COUNT/SUM/SUM query and derives error_or_other so that
// total = passed + failed + error_or_other always holds.
func (db *Database) queryCounts(ctx context.Context, query string, since time.Time) (*models.StatusCounts, error) {
	counts := &models.StatusCounts{}
	err := db.conn.QueryRowContext(ctx, db.dialect.rebind(query), db.dialect.timeArg(since)).
		Scan(&counts.Total, &counts.Passed, &counts.Failed)
	if err != nil {
		return nil, err
	}

	counts.ErrorOrOther = counts.Total - counts.Passed - counts.Failed
	return counts, nil
}
