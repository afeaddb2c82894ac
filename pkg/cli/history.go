package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/browserflow/browserflow/pkg/storage"
)

// NewHistoryCommand creates the history command
func NewHistoryCommand() *cobra.Command {
	var (
		scenarioFilter string
		limit          int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show past replay runs",
		Long: `List replay runs recorded in the history database, newest first.

Examples:
  # Last 20 runs
  browserflow history

  # Runs of one scenario
  browserflow history --scenario login-flow --limit 50`,
		RunE: func(cmd *cobra.Command, args []string) error {
			history, err := storage.NewSQLiteHistoryRepositoryWithPath(historyDBPath())
			if err != nil {
				return fmt.Errorf("failed to open replay history: %w", err)
			}
			defer history.Close()

			entries, err := history.List(scenarioFilter, limit)
			if err != nil {
				return fmt.Errorf("failed to list history: %w", err)
			}

			if len(entries) == 0 {
				fmt.Println("No replay history.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "REPLAYED\tSCENARIO\tRESULT\tSTEPS\tFAILED")
			for _, e := range entries {
				result := "ok"
				if !e.Success {
					result = "failed"
				}
				executed, failed := 0, 0
				if e.Report != nil {
					executed = e.Report.ExecutedSteps
					failed = e.Report.FailedSteps
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\n",
					e.ReplayedAt.Local().Format("2006-01-02 15:04:05"),
					e.Scenario, result, executed, failed)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&scenarioFilter, "scenario", "", "Only runs of this scenario id or name")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum entries (default 20)")

	return cmd
}
