package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"validation-recorder/summary"

	"github.com/spf13/cobra"
)

var (
	summaryDays  int
	summaryLimit int
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show recorded validation summaries",
	Long: `Print the validation summaries recorded since the start of today (UTC),
or over the last N days with --days.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadRuntime()
		if err != nil {
			return err
		}

		database, err := openDatabase(cmd.Context(), cfg, log)
		if err != nil {
			return err
		}
		defer database.Close()

		since := summary.StartOfDay(time.Now()).AddDate(0, 0, -summaryDays)
		summaries, err := database.GetSummariesSince(cmd.Context(), since, summaryLimit)
		if err != nil {
			return fmt.Errorf("failed to load summaries: %w", err)
		}

		if len(summaries) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "No summaries since %s\n", since.Format("2006-01-02"))
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "Type\tTotal\tPassed\tFailed\tOther\tPass Rate\tRecorded At")
		fmt.Fprintln(w, "----\t-----\t------\t------\t-----\t---------\t-----------")
		for _, s := range summaries {
			fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%.1f%%\t%s\n",
				s.ValidationType, s.Total, s.Passed, s.Failed, s.ErrorOrOther,
				s.PassRate()*100, s.Timestamp.Format("2006-01-02 15:04:05"))
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(summaryCmd)

	summaryCmd.Flags().IntVar(&summaryDays, "days", 0, "Also include the previous N days")
	summaryCmd.Flags().IntVar(&summaryLimit, "limit", 20, "Maximum number of summaries to show")
}
