package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"validation-recorder/models"
)

// InsertScanCheck appends one scan check. Checks recovered from plain text
// carry no diagnostics or location and are stored with NULLs there.
func (db *Database) InsertScanCheck(ctx context.Context, check *models.ScanCheck) error {
	columns := []string{
		"scan_id", "table_name", "check_name", "check_type", "check_status", "check_value",
		"diagnostics", "location_file", "location_line", "location_column",
	}
	args := []any{
		check.ScanID, check.TableName, check.CheckName, check.CheckType, check.Status, check.Value,
		nullString(check.Diagnostics), nil, nil, nil,
	}
	if check.HasLocation {
		args[7] = check.LocationFile
		args[8] = check.LocationLine
		args[9] = check.LocationColumn
	}
	columns, args = db.withTimestamp(columns, args, "scan_timestamp", check.Timestamp)

	id, err := db.insertRow(ctx, "soda_scan_results", columns, args)
	if err != nil {
		return fmt.Errorf("%w: failed to create scan check %q: %w", models.ErrPersistence, check.CheckName, err)
	}

	check.ID = id
	return nil
}

// InsertScanMetric appends one scan metric
func (db *Database) InsertScanMetric(ctx context.Context, metric *models.ScanMetric) error {
	var column sql.NullString
	if metric.ColumnName != nil {
		column = sql.NullString{String: *metric.ColumnName, Valid: true}
	}

	columns := []string{"scan_id", "metric_name", "metric_value", "table_name", "column_name"}
	args := []any{metric.ScanID, metric.MetricName, metric.Value, metric.TableName, column}
	columns, args = db.withTimestamp(columns, args, "scan_timestamp", metric.Timestamp)

	id, err := db.insertRow(ctx, "soda_scan_metrics", columns, args)
	if err != nil {
		return fmt.Errorf("%w: failed to create scan metric %q: %w", models.ErrPersistence, metric.MetricName, err)
	}

	metric.ID = id
	return nil
}

// QueryScanCheckCounts counts scan checks recorded at or after since. Status
// comparison is case-insensitive and accepts both the raw outcome (pass) and
// the normalized form (PASSED).
func (db *Database) QueryScanCheckCounts(ctx context.Context, since time.Time) (*models.StatusCounts, error) {
	query := `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN LOWER(check_status) IN ('pass', 'passed') THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN LOWER(check_status) IN ('fail', 'failed') THEN 1 ELSE 0 END), 0)
		FROM soda_scan_results
		WHERE scan_timestamp >= ?
	`

	counts, err := db.queryCounts(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to count scan checks: %w", models.ErrPersistence, err)
	}
	return counts, nil
}

// GetScanChecksByScanID retrieves every check recorded for one scan
func (db *Database) GetScanChecksByScanID(ctx context.Context, scanID string) ([]*models.ScanCheck, error) {
	query := `
		SELECT id, scan_id, table_name, check_name, check_type, check_status, check_value,
		       diagnostics, location_file, location_line, location_column, scan_timestamp
		FROM soda_scan_results
		WHERE scan_id = ?
		ORDER BY id
	`

	rows, err := db.conn.QueryContext(ctx, db.dialect.rebind(query), scanID)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query scan checks: %w", models.ErrPersistence, err)
	}
	defer rows.Close()

	var checks []*models.ScanCheck
	for rows.Next() {
		check := &models.ScanCheck{}
		var diagnostics, file sql.NullString
		var line, column sql.NullInt64
		err := rows.Scan(
			&check.ID, &check.ScanID, &check.TableName, &check.CheckName, &check.CheckType,
			&check.Status, &check.Value, &diagnostics, &file, &line, &column, &check.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan check: %w", err)
		}

		check.Diagnostics = diagnostics.String
		if line.Valid {
			check.HasLocation = true
			check.LocationFile = file.String
			check.LocationLine = int(line.Int64)
			check.LocationColumn = int(column.Int64)
		}
		checks = append(checks, check)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating scan checks: %w", err)
	}

	return checks, nil
}

// GetScanMetricsByScanID retrieves every metric recorded for one scan
func (db *Database) GetScanMetricsByScanID(ctx context.Context, scanID string) ([]*models.ScanMetric, error) {
	query := `
		SELECT id, scan_id, metric_name, metric_value, table_name, column_name, scan_timestamp
		FROM soda_scan_metrics
		WHERE scan_id = ?
		ORDER BY id
	`

	rows, err := db.conn.QueryContext(ctx, db.dialect.rebind(query), scanID)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query scan metrics: %w", models.ErrPersistence, err)
	}
	defer rows.Close()

	var metrics []*models.ScanMetric
	for rows.Next() {
		metric := &models.ScanMetric{}
		var column sql.NullString
		err := rows.Scan(&metric.ID, &metric.ScanID, &metric.MetricName, &metric.Value,
			&metric.TableName, &column, &metric.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("failed to scan metric: %w", err)
		}
		if column.Valid {
			name := column.String
			metric.ColumnName = &name
		}
		metrics = append(metrics, metric)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating scan metrics: %w", err)
	}

	return metrics, nil
}
