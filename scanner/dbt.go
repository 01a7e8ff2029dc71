package scanner

import (
	"context"
	"strings"
	"time"
)

// DefaultDbtSteps are run in order when no steps are configured
var DefaultDbtSteps = []string{"debug", "compile", "test", "run"}

// DbtRunner runs dbt subcommands inside a dbt project directory
type DbtRunner struct {
	dbtPath    string
	projectDir string
	timeout    time.Duration
}

// NewDbtRunner creates a new dbt runner instance
func NewDbtRunner(dbtPath, projectDir string, timeoutSeconds int) *DbtRunner {
	return &DbtRunner{
		dbtPath:    dbtPath,
		projectDir: projectDir,
		timeout:    time.Duration(timeoutSeconds) * time.Second,
	}
}

// StepResult is the outcome of one tool step, as shown in the report
type StepResult struct {
	Name     string
	Success  bool
	ExitCode int
	Output   string
	Err      error
}

// Run executes `dbt <subcommand>`. Exit 0 is success; anything else is a failed
// step whose stderr is kept for the report.
func (r *DbtRunner) Run(ctx context.Context, subcommand string) *StepResult {
	step := &StepResult{Name: StepName("dbt", subcommand)}

	result, err := runTool(ctx, "dbt", r.dbtPath, r.projectDir, r.timeout, subcommand)
	if err != nil {
		step.ExitCode = -1
		step.Err = err
		return step
	}

	step.ExitCode = result.exitCode
	step.Success = result.exitCode == 0
	if step.Success {
		step.Output = result.stdout
	} else {
		step.Output = result.combined()
	}
	return step
}

// RunSteps runs every step in order. A failed step does not stop the rest.
func (r *DbtRunner) RunSteps(ctx context.Context, steps []string) []*StepResult {
	if len(steps) == 0 {
		steps = DefaultDbtSteps
	}

	results := make([]*StepResult, 0, len(steps))
	for _, step := range steps {
		results = append(results, r.Run(ctx, step))
	}
	return results
}

// ValidateInstallation checks that the dbt executable can be found
func (r *DbtRunner) ValidateInstallation() error {
	_, err := lookupBinary("dbt", r.dbtPath)
	return err
}

// StepName renders a step label such as "dbt Compile"
func StepName(tool, subcommand string) string {
	if subcommand == "" {
		return tool
	}
	return tool + " " + strings.ToUpper(subcommand[:1]) + subcommand[1:]
}
