package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"validation-recorder/models"

	"github.com/farcloser/primordium/fault"
)

// outcomeStatus maps the scanner's raw outcomes onto stored check statuses.
// Outcomes missing from the table are kept, upper-cased.
var outcomeStatus = map[string]string{
	"pass":    models.CheckStatusPassed,
	"fail":    models.CheckStatusFailed,
	"error":   models.CheckStatusError,
	"warning": models.CheckStatusWarning,
}

// NewScanID returns the identifier used when a scan document carries none.
func NewScanID(now time.Time) string {
	return "scan_" + now.Format("20060102_150405")
}

// NormalizeOutcome maps a raw check outcome to its stored status.
func NormalizeOutcome(outcome string) string {
	if outcome == "" {
		outcome = "unknown"
	}
	if status, ok := outcomeStatus[outcome]; ok {
		return status
	}
	return strings.ToUpper(outcome)
}

// SplitMetricIdentity extracts table and column from a hyphen-delimited
// metric identity (segment-segment-table-column). Identities with fewer than
// three segments map to the unknown table.
func SplitMetricIdentity(identity string) (string, *string) {
	parts := strings.Split(identity, "-")

	table := models.UnknownTable
	if len(parts) >= 3 && parts[2] != "" {
		table = parts[2]
	}

	var column *string
	if len(parts) >= 4 && parts[3] != "" {
		name := parts[3]
		column = &name
	}

	return table, column
}

// ParseScanDocument normalizes a structured scan-results document. now is
// used for the scan id when the document does not supply one.
func ParseScanDocument(raw []byte, now time.Time) (*models.ParsedScan, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return nil, fmt.Errorf("%w: %w: empty scan results document", models.ErrParse, fault.ErrInvalidJSON)
	}

	var doc models.SodaScanResults
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w: %w", models.ErrParse, fault.ErrInvalidJSON, err)
	}

	scan := &models.ParsedScan{
		ScanID:    doc.ID(),
		Mode:      models.ScanModeStructured,
		StartedAt: models.ParseSodaTimestamp(doc.ScanStartTimestamp),
		EndedAt:   models.ParseSodaTimestamp(doc.ScanEndTimestamp),
	}
	if scan.ScanID == "" {
		scan.ScanID = NewScanID(now)
	}

	for i := range doc.Metrics {
		m := &doc.Metrics[i]
		table, column := SplitMetricIdentity(m.Identity)
		scan.Metrics = append(scan.Metrics, models.ScanMetric{
			ScanID:     scan.ScanID,
			MetricName: m.DisplayName(),
			Value:      models.RawValueString(m.Value),
			TableName:  table,
			ColumnName: column,
		})
	}

	for i := range doc.Checks {
		c := &doc.Checks[i]
		scan.Checks = append(scan.Checks, models.ScanCheck{
			ScanID:         scan.ScanID,
			TableName:      valueOr(c.Table, models.UnknownTable),
			CheckName:      valueOr(c.Name, "unknown"),
			CheckType:      valueOr(c.Type, models.DefaultCheckType),
			Status:         NormalizeOutcome(c.Outcome),
			Value:          c.ReportedValue(),
			Diagnostics:    c.DiagnosticsText(),
			LocationFile:   c.Location.FilePath,
			LocationLine:   c.Location.Line,
			LocationColumn: c.Location.Col,
			HasLocation:    true,
		})
	}

	return scan, nil
}

// findJSONDocument returns the first line of free-text output that holds a
// scan-results object, for scanners that print their results to stdout.
// JSON log lines without checks or metrics are skipped.
func findJSONDocument(output string) []byte {
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "{") {
			continue
		}
		if isScanDocument([]byte(line)) {
			return []byte(line)
		}
	}
	return nil
}

func isScanDocument(raw []byte) bool {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return false
	}
	_, hasChecks := fields["checks"]
	_, hasMetrics := fields["metrics"]
	return hasChecks || hasMetrics
}

func valueOr(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
