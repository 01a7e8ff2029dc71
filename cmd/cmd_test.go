package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"validation-recorder/config"
	"validation-recorder/db"
	"validation-recorder/models"
	"validation-recorder/notifier"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const runResultsJSON = `{
  "metadata": {"dbt_version": "1.7.4"},
  "results": [
    {"unique_id": "model.shop.orders", "status": "success", "execution_time": 1.5,
     "adapter_response": {"rows_affected": 120}},
    {"unique_id": "test.shop.not_null_orders_id", "status": "error", "execution_time": 0.2}
  ]
}`

const scanResultsJSON = `{
  "scanId": "scan-e2e",
  "scanStartTimestamp": "2026-10-17T09:00:00+00:00",
  "metrics": [
    {"identity": "metric-shop-orders-row_count", "metricName": "row_count", "value": 120}
  ],
  "checks": [
    {"table": "orders", "name": "row_count > 0", "type": "generic", "outcome": "pass",
     "diagnostics": {"value": 120}},
    {"table": "orders", "name": "freshness(updated_at) < 1d", "type": "freshness", "outcome": "fail",
     "diagnostics": {"value": "2 days"}}
  ]
}`

// testProject lays out a dbt project and a soda project driven by fake tools
type testProject struct {
	dir    string
	config *config.Config
}

func writeExecutable(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0755))
}

func setupTestProject(t *testing.T, sodaBody string) *testProject {
	t.Helper()
	dir := t.TempDir()

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "target"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "target", "run_results.json"), []byte(runResultsJSON), 0644))
	writeExecutable(t, filepath.Join(dir, "dbt"), "echo \"dbt $1 done\"\n")
	writeExecutable(t, filepath.Join(dir, "soda"), sodaBody)

	cfg := config.DefaultConfig()
	cfg.Database.Driver = "sqlite3"
	cfg.Database.Path = filepath.Join(dir, "validation.db")
	cfg.Dbt.Path = filepath.Join(dir, "dbt")
	cfg.Dbt.ProjectDir = dir
	cfg.Dbt.RunResultsPath = filepath.Join(dir, "target", "run_results.json")
	cfg.Soda.Path = filepath.Join(dir, "soda")
	cfg.Soda.ProjectDir = dir
	cfg.Scanner.TempDir = filepath.Join(dir, "tmp")

	return &testProject{dir: dir, config: cfg}
}

func (p *testProject) openDatabase(t *testing.T) *db.Database {
	t.Helper()
	database, err := db.NewDatabase("sqlite3", p.config.Database.Path)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, database.EnsureSchema(context.Background()))
	return database
}

type capturingNotifier struct {
	report *notifier.Report
}

func (c *capturingNotifier) Name() string { return "capture" }

func (c *capturingNotifier) Notify(_ context.Context, report *notifier.Report) error {
	c.report = report
	return nil
}

func newTestPipeline(t *testing.T, project *testProject) (*Pipeline, *capturingNotifier) {
	logger, _ := test.NewNullLogger()
	capture := &capturingNotifier{}
	pipeline := NewPipeline(project.config, project.openDatabase(t), logger)
	pipeline.Notifiers = []notifier.Notifier{capture}
	return pipeline, capture
}

const structuredSoda = `
while [ $# -gt 0 ]; do
  if [ "$1" = "--scan-results-file" ]; then
    cat > "$2" <<'JSON'
` + scanResultsJSON + `
JSON
  fi
  shift
done
echo "Oops! 1 failures. 0 warnings. 0 errors. 1 pass."
exit 2
`

func TestPipeline_Run(t *testing.T) {
	project := setupTestProject(t, structuredSoda)
	pipeline, capture := newTestPipeline(t, project)

	result, err := pipeline.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, result.FailedStages)

	require.Len(t, result.Report.RunSteps, 4)
	for _, step := range result.Report.RunSteps {
		assert.True(t, step.Success, step.Name)
	}
	require.Len(t, result.Report.ScanSteps, 1)
	assert.True(t, result.Report.ScanSteps[0].Success)

	assert.Equal(t, 2, result.RunIngest.Processed)
	assert.Equal(t, "1.7.4", result.RunIngest.RunID)

	assert.Equal(t, "scan-e2e", result.ScanIngest.ScanID)
	assert.Equal(t, models.ScanModeStructured, result.ScanIngest.Mode)
	assert.Equal(t, 2, result.ScanIngest.ChecksSaved)
	assert.Equal(t, 1, result.ScanIngest.MetricsSaved)

	require.Len(t, result.Summaries, 2)
	assert.Equal(t, models.StatusCounts{Total: 2, Passed: 1, Failed: 1}, result.Summaries[0].StatusCounts)
	assert.Equal(t, models.StatusCounts{Total: 2, Passed: 1, Failed: 1}, result.Summaries[1].StatusCounts)

	require.NotNil(t, capture.report)
	assert.Len(t, capture.report.Summaries, 2)
	assert.Contains(t, capture.report.ScanOutput, "Oops!")

	// the temporary results file is gone after a structured ingest
	entries, err := os.ReadDir(project.config.Scanner.TempDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPipeline_ScanToolFailureFallsBackToText(t *testing.T) {
	project := setupTestProject(t, `
echo "[10:14:02]     orders in postgres"
echo "[10:14:02]       row_count > 0 [PASSED]"
echo "could not reach warehouse" >&2
exit 1
`)
	pipeline, _ := newTestPipeline(t, project)
	pipeline.SkipDbt = true

	result, err := pipeline.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStagesFailed))
	assert.Equal(t, []string{stageSoda}, result.FailedStages)

	assert.Empty(t, result.Report.RunSteps)
	assert.False(t, result.Report.ScanSteps[0].Success)

	assert.Equal(t, models.ScanModeText, result.ScanIngest.Mode)
	assert.Equal(t, 1, result.ScanIngest.ChecksSaved)
	assert.Zero(t, result.ScanIngest.MetricsSaved)
}

func TestPipeline_MissingToolsAndDocuments(t *testing.T) {
	project := setupTestProject(t, "exit 0\n")
	project.config.Dbt.Path = filepath.Join(project.dir, "no-such-dbt")
	project.config.Dbt.RunResultsPath = filepath.Join(project.dir, "missing.json")
	project.config.Soda.Path = filepath.Join(project.dir, "no-such-soda")

	pipeline, capture := newTestPipeline(t, project)

	result, err := pipeline.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, []string{stageDbt, stageSoda}, result.FailedStages)

	// an absent run-result document is not a failure
	assert.True(t, result.RunIngest.Missing)
	assert.Nil(t, result.ScanIngest)
	assert.Empty(t, result.Summaries)

	require.NotNil(t, capture.report)
	assert.Contains(t, capture.report.ScanOutput, "no-such-soda")
}

// executeCommand runs the root command with args and resets flag state afterwards
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Cleanup(func() {
		cfgFile, verbose, skipDbt, skipSoda, noNotify, forceConfig = "", false, false, false, false, false
		summaryDays, summaryLimit = 0, 20
		rootCmd.SetArgs(nil)
	})

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func writeTestConfig(t *testing.T, project *testProject) string {
	t.Helper()
	project.config.Logging.Output = "file"
	project.config.Logging.File = filepath.Join(project.dir, "recorder.log")
	path := filepath.Join(project.dir, "config.yaml")
	require.NoError(t, config.SaveConfig(project.config, path))
	return path
}

func TestConfigInitCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recorder.yaml")

	output, err := executeCommand(t, "config", "init", path)
	require.NoError(t, err)
	assert.Contains(t, output, "Created default configuration")

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Database.Driver)

	_, err = executeCommand(t, "config", "init", path)
	assert.Error(t, err, "existing file is not overwritten without --force")
}

func TestMigrateCommands(t *testing.T) {
	project := setupTestProject(t, "exit 0\n")
	configPath := writeTestConfig(t, project)

	output, err := executeCommand(t, "migrate", "status", "--config", configPath)
	require.NoError(t, err)
	assert.Contains(t, output, "Pending")

	_, err = executeCommand(t, "migrate", "up", "--config", configPath)
	require.NoError(t, err)

	output, err = executeCommand(t, "migrate", "status", "--config", configPath)
	require.NoError(t, err)
	assert.Contains(t, output, "001")
	assert.NotContains(t, output, "Pending")
}

func TestRootCommand_IngestOnly(t *testing.T) {
	project := setupTestProject(t, "exit 0\n")
	configPath := writeTestConfig(t, project)

	output, err := executeCommand(t, "--config", configPath, "--skip-dbt", "--skip-soda", "--no-notify")
	require.NoError(t, err)
	assert.Contains(t, output, "Run results saved: 2")
	assert.Contains(t, output, "dbt: 1/2 passed, 1 failed")
	assert.Contains(t, output, "ALL STAGES PASSED")

	output, err = executeCommand(t, "summary", "--config", configPath)
	require.NoError(t, err)
	assert.Contains(t, output, "dbt")
	assert.Contains(t, output, "50.0%")
}

func TestGetVersionString(t *testing.T) {
	appVersion, appCommit, appDate = "", "", ""
	assert.Equal(t, "unknown (commit: unknown, date: unknown)", getVersionString())

	appVersion, appCommit, appDate = "1.2.3", "abc123", time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC).Format("2006-01-02")
	assert.Equal(t, fmt.Sprintf("1.2.3 (commit: abc123, date: %s)", appDate), getVersionString())
}
