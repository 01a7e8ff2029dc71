package models

import "time"

// Check status values stored in soda_scan_results.check_status.
const (
	CheckStatusPassed  = "PASSED"
	CheckStatusFailed  = "FAILED"
	CheckStatusError   = "ERROR"
	CheckStatusWarning = "WARNING"
)

// DefaultCheckType is used when the scanner does not report a check type.
const DefaultCheckType = "generic"

// UnknownTable is stored when a metric identity does not name a table.
const UnknownTable = "unknown"

// ScanCheck is one data-quality assertion evaluated during a scan
type ScanCheck struct {
	ID             int64     `json:"id"`
	ScanID         string    `json:"scan_id"`
	TableName      string    `json:"table_name"`
	CheckName      string    `json:"check_name"`
	CheckType      string    `json:"check_type"`
	Status         string    `json:"check_status"`
	Value          string    `json:"check_value"`
	Diagnostics    string    `json:"diagnostics,omitempty"`
	LocationFile   string    `json:"location_file,omitempty"`
	LocationLine   int       `json:"location_line,omitempty"`
	LocationColumn int       `json:"location_column,omitempty"`
	Timestamp      time.Time `json:"scan_timestamp"`

	// HasLocation is false for checks recovered from plain text output.
	HasLocation bool `json:"-"`
}

// ScanMetric is a statistic computed during a scan, independent of check outcomes
type ScanMetric struct {
	ID         int64     `json:"id"`
	ScanID     string    `json:"scan_id"`
	MetricName string    `json:"metric_name"`
	Value      string    `json:"metric_value"`
	TableName  string    `json:"table_name"`
	ColumnName *string   `json:"column_name,omitempty"`
	Timestamp  time.Time `json:"scan_timestamp"`
}

// ScanMode records which output shape a scan was recovered from.
type ScanMode string

const (
	ScanModeStructured ScanMode = "structured"
	ScanModeText       ScanMode = "text"
)

// ParsedScan is the normalized form of one scan invocation's output
type ParsedScan struct {
	ScanID    string
	Mode      ScanMode
	StartedAt *time.Time
	EndedAt   *time.Time
	Checks    []ScanCheck
	Metrics   []ScanMetric
}
