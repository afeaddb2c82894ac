package cli

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/browserflow/browserflow/pkg/driver/rodriver"
	"github.com/browserflow/browserflow/pkg/recording"
	"github.com/browserflow/browserflow/pkg/replay"
	"github.com/browserflow/browserflow/pkg/scenario"
	"github.com/browserflow/browserflow/pkg/server"
	"github.com/browserflow/browserflow/pkg/storage"
)

// NewServeCommand creates the serve command
func NewServeCommand() *cobra.Command {
	var (
		debuggerURL string
		headed      bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the tool API over stdio",
		Long: `Start the BrowserFlow server on standard input/output.

The server speaks line-delimited JSON-RPC 2.0 and exposes the session,
recording, and replay operations as tools. It runs until stdin closes or
the process receives an interrupt.

Examples:
  # Serve with a headless browser launched on demand
  browserflow serve

  # Attach to an already-running browser
  browserflow serve --debugger-url ws://127.0.0.1:9222`,
		RunE: func(cmd *cobra.Command, args []string) error {
			browserCfg := GlobalConfig.Browser
			if debuggerURL != "" {
				browserCfg.DebuggerURL = debuggerURL
			}
			if headed {
				browserCfg.Headless = false
			}

			srv, cleanup, err := buildServer(browserCfg)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			log.Printf("browserflow server %s listening on stdio", Version)
			return srv.Run(ctx, os.Stdin, os.Stdout)
		},
	}

	cmd.Flags().StringVar(&debuggerURL, "debugger-url", "", "Attach to a running browser at this DevTools URL")
	cmd.Flags().BoolVar(&headed, "headed", false, "Launch the browser with a visible window")

	return cmd
}

// buildServer wires the full stack: filesystem scenarios, sqlite history,
// rod-backed sessions. The returned cleanup tears everything down in
// reverse order and is safe to call once.
func buildServer(browserCfg rodriver.Config) (*server.Server, func(), error) {
	repo, err := storage.NewFilesystemScenarioRepositoryWithPath(GlobalConfig.ConfigDir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open scenario storage: %w", err)
	}

	store := scenario.NewStore(repo)
	if err := store.LoadAll(); err != nil {
		return nil, nil, fmt.Errorf("failed to load scenarios: %w", err)
	}

	history, err := storage.NewSQLiteHistoryRepositoryWithPath(historyDBPath())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open replay history: %w", err)
	}

	manager := rodriver.NewManager(browserCfg)
	recorder := recording.NewController(store)
	engine := replay.NewEngine(store, manager, history, screenshotsDir())

	cleanup := func() {
		if err := manager.Shutdown(); err != nil {
			log.Printf("Warning: browser shutdown: %v", err)
		}
		if err := history.Close(); err != nil {
			log.Printf("Warning: history close: %v", err)
		}
	}

	return server.New(store, recorder, engine, manager), cleanup, nil
}
