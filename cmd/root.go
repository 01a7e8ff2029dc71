package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	verbose  bool
	skipDbt  bool
	skipSoda bool
	noNotify bool

	// Version information
	appVersion string
	appCommit  string
	appDate    string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "validation-recorder",
	Short: "Run dbt and Soda, record their results and report on them",
	Long: `validation-recorder runs the dbt steps and the Soda scan of a data project,
stores both tools' results in a relational database, writes a daily
validation summary per tool and sends a report by email and Slack.

Sequence:
1. dbt debug, compile, test and run
2. Load target/run_results.json into dbt_run_results
3. soda scan with a structured results file
4. Load checks and metrics into soda_scan_results and soda_scan_metrics
5. Append today's validation_summary rows
6. Send the report and push metrics

Examples:
  # Full run with the default config search path
  validation-recorder

  # Only ingest and summarize, tools already ran
  validation-recorder --skip-dbt --skip-soda

  # Show today's summaries
  validation-recorder summary`,
	Version:       getVersionString(),
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runPipeline,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute(version, commit, date string) error {
	appVersion = version
	appCommit = commit
	appDate = date
	rootCmd.Version = getVersionString()

	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.validation-recorder.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.Flags().BoolVar(&skipDbt, "skip-dbt", false, "Skip the dbt steps")
	rootCmd.Flags().BoolVar(&skipSoda, "skip-soda", false, "Skip the Soda scan and its ingestion")
	rootCmd.Flags().BoolVar(&noNotify, "no-notify", false, "Do not send email or Slack notifications")
}

// getVersionString returns formatted version information
func getVersionString() string {
	if appVersion == "" {
		appVersion = "unknown"
	}
	if appCommit == "" {
		appCommit = "unknown"
	}
	if appDate == "" {
		appDate = "unknown"
	}

	return fmt.Sprintf("%s (commit: %s, date: %s)", appVersion, appCommit, appDate)
}
