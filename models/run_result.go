package models

import "time"

// Run statuses reported by dbt in run_results.json.
const (
	RunStatusSuccess = "success"
	RunStatusError   = "error"
	RunStatusUnknown = "unknown"
)

// RunResult is the outcome of one model execution by the transformation tool
type RunResult struct {
	ID            int64     `json:"id"`
	RunID         string    `json:"run_id"`
	ModelName     string    `json:"model_name"`
	Status        string    `json:"status"`
	ExecutionTime float64   `json:"execution_time"`
	RowsAffected  int64     `json:"rows_affected"`
	Timestamp     time.Time `json:"run_timestamp"`
}
