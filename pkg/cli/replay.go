package cli

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/browserflow/browserflow/pkg/driver/rodriver"
	"github.com/browserflow/browserflow/pkg/replay"
	"github.com/browserflow/browserflow/pkg/storage"
)

// NewReplayCommand creates the replay command
func NewReplayCommand() *cobra.Command {
	var (
		fastMode    bool
		stopOnError bool
		screenshots bool
		varFlags    []string
		debuggerURL string
		headed      bool
	)

	cmd := &cobra.Command{
		Use:   "replay <scenario>",
		Short: "Replay a stored scenario",
		Long: `Replay a scenario by id or name against a fresh browser session.

Variables recorded in the scenario are substituted first; --var values
fill whatever placeholders remain.

Examples:
  # Replay with defaults (1s between steps)
  browserflow replay login-flow

  # Replay fast, aborting at the first failure
  browserflow replay login-flow --fast --stop-on-error

  # Supply variable values
  browserflow replay login-flow --var username=alice --var password=secret`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			variables := make(map[string]string, len(varFlags))
			for _, v := range varFlags {
				name, value, ok := strings.Cut(v, "=")
				if !ok {
					return fmt.Errorf("invalid --var %q: expected name=value", v)
				}
				variables[name] = value
			}

			store, err := openStore()
			if err != nil {
				return err
			}

			history, err := storage.NewSQLiteHistoryRepositoryWithPath(historyDBPath())
			if err != nil {
				return fmt.Errorf("failed to open replay history: %w", err)
			}
			defer history.Close()

			browserCfg := GlobalConfig.Browser
			if debuggerURL != "" {
				browserCfg.DebuggerURL = debuggerURL
			}
			if headed {
				browserCfg.Headless = false
			}

			manager := rodriver.NewManager(browserCfg)
			defer func() {
				if err := manager.Shutdown(); err != nil {
					log.Printf("Warning: browser shutdown: %v", err)
				}
			}()

			engine := replay.NewEngine(store, manager, history, screenshotsDir())

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			report, err := engine.Replay(ctx, args[0], replay.Options{
				FastMode:        fastMode,
				StopOnError:     stopOnError,
				TakeScreenshots: screenshots,
				SkipScreenshots: !screenshots,
				Variables:       variables,
			})
			if report != nil {
				printReport(report)
			}
			if err != nil {
				return fmt.Errorf("replay failed: %w", err)
			}
			if report != nil && !report.Success() {
				return fmt.Errorf("replay finished with %d failed step(s)", report.FailedSteps)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&fastMode, "fast", false, "Skip the delay between steps")
	cmd.Flags().BoolVar(&stopOnError, "stop-on-error", false, "Abort at the first failing step")
	cmd.Flags().BoolVar(&screenshots, "screenshots", false, "Persist screenshots captured by screenshot steps")
	cmd.Flags().StringArrayVar(&varFlags, "var", nil, "Variable value as name=value (repeatable)")
	cmd.Flags().StringVar(&debuggerURL, "debugger-url", "", "Attach to a running browser at this DevTools URL")
	cmd.Flags().BoolVar(&headed, "headed", false, "Launch the browser with a visible window")

	return cmd
}

func printReport(report *replay.Report) {
	fmt.Printf("Scenario:  %s (%s)\n", report.ScenarioName, report.ScenarioID)
	fmt.Printf("Steps:     %d/%d executed, %d failed\n",
		report.ExecutedSteps, report.TotalSteps, report.FailedSteps)
	fmt.Printf("Duration:  %.2fs\n", report.DurationSeconds)
	if report.FinalURL != "" {
		fmt.Printf("Final URL: %s\n", report.FinalURL)
	}
	if report.Aborted {
		fmt.Println("Aborted on first error.")
	}
	for _, e := range report.Errors {
		fmt.Printf("  step %d (%s): %s\n", e.Index, e.Action, e.Message)
	}
	for _, p := range report.Screenshots {
		fmt.Printf("  screenshot: %s\n", p)
	}
}
