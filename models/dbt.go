package models

// DbtRunResults represents target/run_results.json written by dbt
type DbtRunResults struct {
	Metadata DbtMetadata `json:"metadata"`
	Results  []DbtResult `json:"results"`
	Elapsed  float64     `json:"elapsed_time"`
}

type DbtMetadata struct {
	DbtVersion   string `json:"dbt_version"`
	GeneratedAt  string `json:"generated_at"`
	InvocationID string `json:"invocation_id"`
}

type DbtResult struct {
	UniqueID        string             `json:"unique_id"`
	Status          string             `json:"status"`
	ExecutionTime   float64            `json:"execution_time"`
	Message         string             `json:"message"`
	AdapterResponse DbtAdapterResponse `json:"adapter_response"`
}

type DbtAdapterResponse struct {
	Message      string `json:"_message"`
	Code         string `json:"code"`
	RowsAffected int64  `json:"rows_affected"`
}

// ToRunResult maps one dbt result entry to a store row, applying defaults for
// absent fields.
func (r *DbtResult) ToRunResult(runID string) *RunResult {
	result := &RunResult{
		RunID:         runID,
		ModelName:     r.UniqueID,
		Status:        r.Status,
		ExecutionTime: r.ExecutionTime,
		RowsAffected:  r.AdapterResponse.RowsAffected,
	}

	if result.RunID == "" {
		result.RunID = RunStatusUnknown
	}
	if result.ModelName == "" {
		result.ModelName = RunStatusUnknown
	}
	if result.Status == "" {
		result.Status = RunStatusUnknown
	}
	// some adapters report -1 when the count is not available
	if result.RowsAffected < 0 {
		result.RowsAffected = 0
	}
	if result.ExecutionTime < 0 {
		result.ExecutionTime = 0
	}

	return result
}
