package scanner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// ScanStatus classifies a scan-tool exit code
type ScanStatus string

const (
	ScanStatusPassed                ScanStatus = "passed"
	ScanStatusCompletedWithFailures ScanStatus = "completed_with_failures"
	ScanStatusToolFailure           ScanStatus = "tool_failure"
	ScanStatusError                 ScanStatus = "error"
)

// Success reports whether the scan completed, including with failed checks
func (s ScanStatus) Success() bool {
	return s == ScanStatusPassed || s == ScanStatusCompletedWithFailures
}

// ClassifyExitCode maps soda exit codes: 0 all checks passed, 2 scan completed
// with failed checks, 1 the tool itself failed. Everything else is an error.
func ClassifyExitCode(code int) ScanStatus {
	switch code {
	case 0:
		return ScanStatusPassed
	case 2:
		return ScanStatusCompletedWithFailures
	case 1:
		return ScanStatusToolFailure
	default:
		return ScanStatusError
	}
}

// SodaOptions selects what a scan checks
type SodaOptions struct {
	DataSource        string
	ConfigurationFile string
	CheckFiles        []string
}

// DefaultSodaOptions returns the layout of a standard soda project
func DefaultSodaOptions() *SodaOptions {
	return &SodaOptions{
		DataSource:        "postgres",
		ConfigurationFile: "configuration.yml",
		CheckFiles:        []string{"checks/checks.yml"},
	}
}

// ScanOutcome is what a scan run leaves for the normalizer
type ScanOutcome struct {
	ExitCode    int
	Status      ScanStatus
	Output      string
	ResultsPath string
}

// SodaScanner runs soda scans inside a soda project directory
type SodaScanner struct {
	sodaPath   string
	projectDir string
	tempDir    string
	options    *SodaOptions
	timeout    time.Duration
}

// NewSodaScanner creates a new soda scanner instance
func NewSodaScanner(sodaPath, projectDir, tempDir string, options *SodaOptions, timeoutSeconds int) *SodaScanner {
	if options == nil {
		options = DefaultSodaOptions()
	}
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return &SodaScanner{
		sodaPath:   sodaPath,
		projectDir: projectDir,
		tempDir:    tempDir,
		options:    options,
		timeout:    time.Duration(timeoutSeconds) * time.Second,
	}
}

// Scan runs the configured checks and asks soda to write its structured
// results to a fresh temporary file. The file may not exist afterwards when
// the tool failed early; the caller falls back to Output in that case.
func (s *SodaScanner) Scan(ctx context.Context) (*ScanOutcome, error) {
	if err := os.MkdirAll(s.tempDir, 0755); err != nil {
		return nil, &ToolInvocationError{Tool: "soda", Err: fmt.Errorf("failed to create temp directory: %w", err)}
	}

	resultsPath := filepath.Join(s.tempDir, fmt.Sprintf("soda-results-%s.json", uuid.NewString()))

	args := []string{"scan", "-d", s.options.DataSource, "-c", s.options.ConfigurationFile}
	args = append(args, s.options.CheckFiles...)
	args = append(args, "--scan-results-file", resultsPath)

	result, err := runTool(ctx, "soda", s.sodaPath, s.projectDir, s.timeout, args...)
	if err != nil {
		return nil, err
	}

	return &ScanOutcome{
		ExitCode:    result.exitCode,
		Status:      ClassifyExitCode(result.exitCode),
		Output:      result.combined(),
		ResultsPath: resultsPath,
	}, nil
}

// ValidateInstallation checks that the soda executable can be found
func (s *SodaScanner) ValidateInstallation() error {
	_, err := lookupBinary("soda", s.sodaPath)
	return err
}
