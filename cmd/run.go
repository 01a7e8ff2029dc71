package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"validation-recorder/config"
	"validation-recorder/db"
	"validation-recorder/ingest"
	"validation-recorder/metrics"
	"validation-recorder/models"
	"validation-recorder/notifier"
	"validation-recorder/scanner"
	"validation-recorder/summary"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Stage names, as logged and exported in metrics
const (
	stageDbt         = "dbt"
	stageRunResults  = "run_results"
	stageSoda        = "soda"
	stageScanResults = "scan_results"
	stageSummary     = "summary"
)

// ErrStagesFailed is returned when at least one required stage failed
var ErrStagesFailed = errors.New("validation run failed")

// Pipeline holds everything one validation run needs
type Pipeline struct {
	Config    *config.Config
	Database  *db.Database
	Log       logrus.FieldLogger
	Metrics   *metrics.Recorder
	Notifiers []notifier.Notifier

	SkipDbt  bool
	SkipSoda bool

	now func() time.Time
}

// PipelineResult is what a run did, stage by stage
type PipelineResult struct {
	Report       *notifier.Report
	RunIngest    *ingest.RunIngestResult
	ScanIngest   *ingest.ScanIngestResult
	Summaries    []*models.ValidationSummary
	FailedStages []string
}

func runPipeline(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadRuntime()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	database, err := openDatabase(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer database.Close()

	pipeline := NewPipeline(cfg, database, log)
	pipeline.SkipDbt = skipDbt || !cfg.Dbt.Enabled
	pipeline.SkipSoda = skipSoda || !cfg.Soda.Enabled
	if noNotify {
		pipeline.Notifiers = nil
	}

	result, err := pipeline.Run(ctx)
	if result != nil {
		printFinalSummary(cmd, result)
	}
	return err
}

// NewPipeline wires the configured runners, notifiers and metrics
func NewPipeline(cfg *config.Config, database *db.Database, log logrus.FieldLogger) *Pipeline {
	return &Pipeline{
		Config:   cfg,
		Database: database,
		Log:      log,
		Metrics:  metrics.NewRecorder(),
		Notifiers: []notifier.Notifier{
			notifier.NewEmailNotifier(notifier.EmailConfig{
				SMTPServer:     cfg.Notification.Email.SMTPServer,
				SMTPPort:       cfg.Notification.Email.SMTPPort,
				SenderEmail:    cfg.Notification.Email.SenderEmail,
				SenderPassword: cfg.Notification.Email.SenderPassword,
				Recipients:     cfg.Notification.Email.Recipients,
			}),
			notifier.NewSlackNotifier(
				cfg.Notification.Slack.WebhookURL,
				cfg.Notification.Slack.Username,
				cfg.Notification.Slack.Channel,
				cfg.Notification.Slack.IconEmoji,
			),
		},
		now: time.Now,
	}
}

// Run executes every stage in order. Stages after a failed one still run;
// the returned error lists the failed stages. Notification and metrics
// delivery never fail the run.
func (p *Pipeline) Run(ctx context.Context) (*PipelineResult, error) {
	result := &PipelineResult{Report: &notifier.Report{}}
	stage := func(name string, err error) {
		ok := err == nil
		p.Metrics.RecordStage(name, ok)
		if !ok {
			p.Log.WithError(err).WithField("stage", name).Error("Stage failed")
			result.FailedStages = append(result.FailedStages, name)
		}
	}

	if !p.SkipDbt {
		stage(stageDbt, p.runDbt(ctx, result))
	}

	stage(stageRunResults, p.ingestRunResults(ctx, result))

	if !p.SkipSoda {
		outcome, err := p.runSoda(ctx, result)
		stage(stageSoda, err)
		if outcome != nil {
			stage(stageScanResults, p.ingestScanResults(ctx, result, outcome))
		}
	}

	stage(stageSummary, p.aggregate(ctx, result))

	completedAt := p.now()
	result.Report.CompletedAt = completedAt
	p.attachSummaries(ctx, result)

	notifier.Dispatch(ctx, p.Log, result.Report, p.Notifiers...)

	p.Metrics.MarkCompleted(completedAt)
	p.pushMetrics(ctx)

	if len(result.FailedStages) > 0 {
		return result, fmt.Errorf("%w: %s", ErrStagesFailed, strings.Join(result.FailedStages, ", "))
	}
	return result, nil
}

func (p *Pipeline) runDbt(ctx context.Context, result *PipelineResult) error {
	runner := scanner.NewDbtRunner(p.Config.Dbt.Path, p.Config.Dbt.ProjectDir, p.Config.Scanner.TimeoutSeconds)

	steps := runner.RunSteps(ctx, p.Config.Dbt.Steps)
	result.Report.RunSteps = steps

	var failed []string
	for _, step := range steps {
		log := p.Log.WithFields(logrus.Fields{"stage": stageDbt, "step": step.Name})
		if step.Success {
			log.Info("Step succeeded")
			continue
		}
		entry := log.WithField("exit_code", step.ExitCode)
		if step.Err != nil {
			entry = entry.WithError(step.Err)
		}
		entry.Errorf("Step failed: %s", strings.TrimSpace(step.Output))
		failed = append(failed, step.Name)
	}

	if len(failed) > 0 {
		return fmt.Errorf("dbt steps failed: %s", strings.Join(failed, ", "))
	}
	return nil
}

func (p *Pipeline) ingestRunResults(ctx context.Context, result *PipelineResult) error {
	adapter := ingest.NewRunResultAdapter(p.Database, p.Log.WithField("stage", stageRunResults))

	ingested, err := adapter.Ingest(ctx, p.Config.Dbt.RunResultsPath)
	result.RunIngest = ingested
	if ingested != nil {
		p.Metrics.RecordRunIngest(ingested.Processed)
	}
	return err
}

// runSoda returns a nil outcome when the scanner could not be invoked at all
func (p *Pipeline) runSoda(ctx context.Context, result *PipelineResult) (*scanner.ScanOutcome, error) {
	scan := scanner.NewSodaScanner(
		p.Config.Soda.Path,
		p.Config.Soda.ProjectDir,
		p.Config.Scanner.TempDir,
		&scanner.SodaOptions{
			DataSource:        p.Config.Soda.DataSource,
			ConfigurationFile: p.Config.Soda.ConfigurationFile,
			CheckFiles:        p.Config.Soda.CheckFiles,
		},
		p.Config.Scanner.TimeoutSeconds,
	)

	step := &scanner.StepResult{Name: "Soda Scan"}
	result.Report.ScanSteps = []*scanner.StepResult{step}

	outcome, err := scan.Scan(ctx)
	if err != nil {
		step.ExitCode = -1
		step.Err = err
		result.Report.ScanOutput = err.Error()
		return nil, err
	}

	step.ExitCode = outcome.ExitCode
	step.Output = outcome.Output
	step.Success = outcome.Status.Success()
	result.Report.ScanOutput = outcome.Output

	log := p.Log.WithFields(logrus.Fields{"stage": stageSoda, "exit_code": outcome.ExitCode, "status": outcome.Status})
	switch outcome.Status {
	case scanner.ScanStatusPassed:
		log.Info("Scan passed")
	case scanner.ScanStatusCompletedWithFailures:
		log.Warn("Scan completed with failed checks")
	default:
		log.Error("Scan failed")
		return outcome, fmt.Errorf("soda scan %s with exit code %d", outcome.Status, outcome.ExitCode)
	}
	return outcome, nil
}

func (p *Pipeline) ingestScanResults(ctx context.Context, result *PipelineResult, outcome *scanner.ScanOutcome) error {
	normalizer := ingest.NewScanNormalizer(p.Database, p.Log.WithField("stage", stageScanResults), p.Config.Soda.DataSource)

	ingested, err := normalizer.Ingest(ctx, outcome.ResultsPath, outcome.Output)
	result.ScanIngest = ingested
	if ingested != nil {
		p.Metrics.RecordScanIngest(ingested.ChecksSaved, ingested.MetricsSaved)
	}
	return err
}

func (p *Pipeline) aggregate(ctx context.Context, result *PipelineResult) error {
	aggregator := summary.NewAggregator(p.Database, p.Log.WithField("stage", stageSummary)).WithClock(p.now)

	summaries, err := aggregator.Aggregate(ctx)
	result.Summaries = summaries
	for _, s := range summaries {
		p.Metrics.RecordSummary(s)
	}
	return err
}

// attachSummaries puts the newest summary of each type into the report
func (p *Pipeline) attachSummaries(ctx context.Context, result *PipelineResult) {
	since := summary.StartOfDay(p.now())
	summaries, err := p.Database.GetSummariesSince(ctx, since, len(models.ValidationTypes))
	if err != nil {
		p.Log.WithError(err).Warn("Failed to load summaries for the report")
		return
	}
	result.Report.Summaries = summaries
}

func (p *Pipeline) pushMetrics(ctx context.Context) {
	url := p.Config.Metrics.PushgatewayURL
	if url == "" {
		return
	}
	if err := p.Metrics.Push(ctx, url, p.Config.Metrics.Job); err != nil {
		p.Log.WithError(err).Warn("Failed to push metrics")
		return
	}
	p.Log.WithField("pushgateway", url).Debug("Metrics pushed")
}

func printFinalSummary(cmd *cobra.Command, result *PipelineResult) {
	out := cmd.OutOrStdout()
	report := result.Report

	fmt.Fprintln(out, "FINAL SUMMARY")
	fmt.Fprintln(out, strings.Repeat("=", 50))
	fmt.Fprintf(out, "dbt Tests: %d/%d passed\n", passedSteps(report.RunSteps), len(report.RunSteps))
	fmt.Fprintf(out, "Soda Tests: %d/%d passed\n", passedSteps(report.ScanSteps), len(report.ScanSteps))
	if result.RunIngest != nil {
		fmt.Fprintf(out, "Run results saved: %d\n", result.RunIngest.Processed)
	}
	if result.ScanIngest != nil {
		fmt.Fprintf(out, "Scan checks saved: %d (%s)\n", result.ScanIngest.ChecksSaved, result.ScanIngest.Mode)
	}
	for _, s := range result.Summaries {
		fmt.Fprintln(out, notifier.SummaryLine(s))
	}

	if len(result.FailedStages) == 0 {
		fmt.Fprintln(out, "ALL STAGES PASSED")
	} else {
		fmt.Fprintf(out, "FAILED STAGES: %s\n", strings.Join(result.FailedStages, ", "))
	}
}

func passedSteps(steps []*scanner.StepResult) int {
	passed := 0
	for _, step := range steps {
		if step.Success {
			passed++
		}
	}
	return passed
}
