package models

import "time"

// ValidationType identifies which tool a summary row aggregates.
type ValidationType string

const (
	ValidationTypeRunTool  ValidationType = "dbt"
	ValidationTypeScanTool ValidationType = "soda"
)

// ValidationTypes lists the types aggregated on every pass, in order.
var ValidationTypes = []ValidationType{ValidationTypeRunTool, ValidationTypeScanTool}

// StatusCounts is the result of a same-day counting query
type StatusCounts struct {
	Total        int `json:"total"`
	Passed       int `json:"passed"`
	Failed       int `json:"failed"`
	ErrorOrOther int `json:"error_or_other"`
}

// ValidationSummary is one append-only daily aggregate per validation type
type ValidationSummary struct {
	ID             int64          `json:"id"`
	ValidationType ValidationType `json:"validation_type"`
	StatusCounts
	Timestamp time.Time `json:"validation_timestamp"`
}

// PassRate returns passed/total, or 0 for an empty summary.
func (s *ValidationSummary) PassRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Passed) / float64(s.Total)
}
