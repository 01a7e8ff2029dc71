package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"validation-recorder/models"

	"github.com/sirupsen/logrus"
)

// RunResultStore is the part of the result store the run-result adapter writes to
type RunResultStore interface {
	InsertRunResult(ctx context.Context, result *models.RunResult) error
}

// RunResultAdapter loads dbt's run_results.json into the result store
type RunResultAdapter struct {
	store RunResultStore
	log   logrus.FieldLogger
}

// RunIngestResult reports what one adapter pass did
type RunIngestResult struct {
	RunID     string
	Processed int
	// Missing is set when the document did not exist; nothing was inserted.
	Missing bool
}

// NewRunResultAdapter creates a new run-result adapter
func NewRunResultAdapter(store RunResultStore, log logrus.FieldLogger) *RunResultAdapter {
	return &RunResultAdapter{store: store, log: log}
}

// Ingest reads the run-result document at path and inserts one row per
// result entry. An absent document is not an error: dbt may not have run yet.
// Rows inserted before a failure are kept.
func (a *RunResultAdapter) Ingest(ctx context.Context, path string) (*RunIngestResult, error) {
	log := a.log.WithField("path", path)

	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.WithError(models.ErrMissingInput).Warn("dbt run results file not found")
			return &RunIngestResult{Missing: true}, nil
		}
		return nil, fmt.Errorf("%w: failed to read %s: %w", models.ErrParse, path, err)
	}

	doc, err := ParseRunResults(raw)
	if err != nil {
		return nil, err
	}

	result := &RunIngestResult{RunID: doc.Metadata.DbtVersion}
	if result.RunID == "" {
		result.RunID = models.RunStatusUnknown
	}

	for i := range doc.Results {
		row := doc.Results[i].ToRunResult(result.RunID)
		if err := a.store.InsertRunResult(ctx, row); err != nil {
			return result, err
		}
		result.Processed++
	}

	log.WithFields(logrus.Fields{
		"run_id":    result.RunID,
		"processed": result.Processed,
	}).Infof("Saved %d dbt run results", result.Processed)

	return result, nil
}

// ParseRunResults decodes a run-result document.
func ParseRunResults(raw []byte) (*models.DbtRunResults, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return nil, fmt.Errorf("%w: empty run results document", models.ErrParse)
	}

	var doc models.DbtRunResults
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, fmt.Errorf("%w: failed to parse run results: %w", models.ErrParse, err)
	}

	return &doc, nil
}
