package models

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// SodaScanResults represents the document written by `soda scan --scan-results-file`
type SodaScanResults struct {
	ScanID             string       `json:"scanId"`
	LegacyScanID       string       `json:"scan_id"`
	DefinitionName     string       `json:"definitionName"`
	DefaultDataSource  string       `json:"defaultDataSource"`
	DataTimestamp      string       `json:"dataTimestamp"`
	ScanStartTimestamp string       `json:"scanStartTimestamp"`
	ScanEndTimestamp   string       `json:"scanEndTimestamp"`
	HasErrors          bool         `json:"hasErrors"`
	HasWarnings        bool         `json:"hasWarnings"`
	HasFailures        bool         `json:"hasFailures"`
	Metrics            []SodaMetric `json:"metrics"`
	Checks             []SodaCheck  `json:"checks"`
}

type SodaMetric struct {
	Identity       string          `json:"identity"`
	MetricName     string          `json:"metricName"`
	Name           string          `json:"name"`
	Value          json.RawMessage `json:"value"`
	DataSourceName string          `json:"dataSourceName"`
}

type SodaCheck struct {
	Identity    string          `json:"identity"`
	Name        string          `json:"name"`
	Type        string          `json:"type"`
	Definition  string          `json:"definition"`
	DataSource  string          `json:"dataSource"`
	Table       string          `json:"table"`
	Column      string          `json:"column"`
	Outcome     string          `json:"outcome"`
	Location    SodaLocation    `json:"location"`
	Diagnostics json.RawMessage `json:"diagnostics"`
	Value       json.RawMessage `json:"value"`
}

type SodaLocation struct {
	FilePath string `json:"filePath"`
	Line     int    `json:"line"`
	Col      int    `json:"col"`
}

// ID returns the scan identifier, accepting the snake_case key printed by
// `soda scan --output json`.
func (r *SodaScanResults) ID() string {
	if r.ScanID != "" {
		return r.ScanID
	}
	return r.LegacyScanID
}

// DisplayName returns the reported metric name, falling back to the legacy
// "name" key.
func (m *SodaMetric) DisplayName() string {
	if m.MetricName != "" {
		return m.MetricName
	}
	return m.Name
}

// DiagnosticsValue extracts the "value" entry of a check's diagnostics
// payload as text. Missing or undecodable diagnostics yield "".
func (c *SodaCheck) DiagnosticsValue() string {
	if len(c.Diagnostics) == 0 {
		return ""
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(c.Diagnostics, &fields); err != nil {
		return ""
	}

	return RawValueString(fields["value"])
}

// ReportedValue returns the diagnostics value, or the check's top-level
// value when diagnostics carry none.
func (c *SodaCheck) ReportedValue() string {
	if v := c.DiagnosticsValue(); v != "" {
		return v
	}
	return RawValueString(c.Value)
}

// DiagnosticsText returns the diagnostics payload exactly as reported.
func (c *SodaCheck) DiagnosticsText() string {
	trimmed := bytes.TrimSpace(c.Diagnostics)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return ""
	}
	return string(trimmed)
}

// RawValueString renders a JSON scalar as plain text: strings are unquoted,
// numbers and booleans keep their literal form, null becomes "".
func RawValueString(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return ""
	}

	var s string
	if err := json.Unmarshal(trimmed, &s); err == nil {
		return s
	}

	return string(trimmed)
}

// ParseSodaTimestamp parses the scan-level timestamps Soda writes. Empty or
// unrecognized values return nil.
func ParseSodaTimestamp(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}

	layouts := []string{
		time.RFC3339Nano,
		"2006-01-02T15:04:05.999999",
		"2006-01-02 15:04:05",
	}
	for _, layout := range layouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return &ts
		}
	}

	return nil
}
