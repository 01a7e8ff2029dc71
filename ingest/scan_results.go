package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"validation-recorder/models"

	"github.com/sirupsen/logrus"
)

// ScanResultStore is the part of the result store the normalizer writes to
type ScanResultStore interface {
	InsertScanCheck(ctx context.Context, check *models.ScanCheck) error
	InsertScanMetric(ctx context.Context, metric *models.ScanMetric) error
}

// ScanNormalizer turns one scan invocation's output into check and metric rows
type ScanNormalizer struct {
	store      ScanResultStore
	log        logrus.FieldLogger
	dataSource string
	now        func() time.Time
}

// ScanIngestResult reports what one normalizer pass did
type ScanIngestResult struct {
	ScanID       string
	Mode         models.ScanMode
	ChecksSaved  int
	MetricsSaved int
	StartedAt    *time.Time
	EndedAt      *time.Time
	// FallbackReason explains why structured parsing was abandoned.
	FallbackReason error
}

// NewScanNormalizer creates a new scan normalizer. dataSource is the name the
// scanner prints after each table in its text output.
func NewScanNormalizer(store ScanResultStore, log logrus.FieldLogger, dataSource string) *ScanNormalizer {
	return &ScanNormalizer{
		store:      store,
		log:        log,
		dataSource: dataSource,
		now:        time.Now,
	}
}

// WithClock overrides the clock used for generated scan ids.
func (n *ScanNormalizer) WithClock(now func() time.Time) *ScanNormalizer {
	n.now = now
	return n
}

// Parse normalizes one scan. The structured document at resultsPath is tried
// first, then a JSON document printed in textOutput; if neither parses, the
// console text itself is parsed line by line.
func (n *ScanNormalizer) Parse(resultsPath, textOutput string) (*models.ParsedScan, error) {
	now := n.now()

	raw, err := readResultsFile(resultsPath)
	if err == nil {
		var scan *models.ParsedScan
		if scan, err = ParseScanDocument(raw, now); err == nil {
			return scan, nil
		}
	}

	if doc := findJSONDocument(textOutput); doc != nil {
		if scan, jsonErr := ParseScanDocument(doc, now); jsonErr == nil {
			return scan, err
		}
	}

	scanID := NewScanID(now)
	return &models.ParsedScan{
		ScanID: scanID,
		Mode:   models.ScanModeText,
		Checks: ParseScanText(textOutput, scanID, n.dataSource),
	}, err
}

// Ingest parses one scan and persists every check and metric. The results
// file is removed once its contents have been stored so the next run cannot
// read it again. A store failure aborts the pass; rows already written stay.
func (n *ScanNormalizer) Ingest(ctx context.Context, resultsPath, textOutput string) (*ScanIngestResult, error) {
	scan, parseErr := n.Parse(resultsPath, textOutput)

	result := &ScanIngestResult{
		ScanID:         scan.ScanID,
		Mode:           scan.Mode,
		StartedAt:      scan.StartedAt,
		EndedAt:        scan.EndedAt,
		FallbackReason: parseErr,
	}

	log := n.log.WithFields(logrus.Fields{"scan_id": scan.ScanID, "mode": scan.Mode})
	if parseErr != nil {
		log.WithError(parseErr).Warn("Structured scan results unavailable, using console output")
	}

	for i := range scan.Metrics {
		if err := n.store.InsertScanMetric(ctx, &scan.Metrics[i]); err != nil {
			return result, err
		}
		result.MetricsSaved++
	}

	for i := range scan.Checks {
		if err := n.store.InsertScanCheck(ctx, &scan.Checks[i]); err != nil {
			return result, err
		}
		result.ChecksSaved++
	}

	if scan.Mode == models.ScanModeStructured && parseErr == nil && resultsPath != "" {
		if err := os.Remove(resultsPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			log.WithError(err).Warn("Failed to remove scan results file")
		}
	}

	fields := logrus.Fields{
		"checks":  result.ChecksSaved,
		"metrics": result.MetricsSaved,
	}
	if result.StartedAt != nil {
		fields["started_at"] = result.StartedAt.Format(time.RFC3339)
	}
	if result.EndedAt != nil {
		fields["ended_at"] = result.EndedAt.Format(time.RFC3339)
	}
	log.WithFields(fields).Info("Saved Soda scan results")

	return result, nil
}

func readResultsFile(path string) ([]byte, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: no scan results file configured", models.ErrMissingInput)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", models.ErrMissingInput, path)
		}
		return nil, fmt.Errorf("%w: failed to read %s: %w", models.ErrParse, path, err)
	}

	return raw, nil
}
