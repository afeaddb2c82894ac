package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/browserflow/browserflow/pkg/scenario"
	"github.com/browserflow/browserflow/pkg/storage"
)

// NewScenariosCommand creates the scenarios management command
func NewScenariosCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scenarios",
		Short: "Manage stored scenarios",
		Long:  `List, inspect, and delete the scenarios stored under the configuration directory.`,
	}

	cmd.AddCommand(newScenariosListCommand())
	cmd.AddCommand(newScenariosShowCommand())
	cmd.AddCommand(newScenariosDeleteCommand())

	return cmd
}

// openStore loads the scenario store from the configured directory.
func openStore() (*scenario.Store, error) {
	repo, err := storage.NewFilesystemScenarioRepositoryWithPath(GlobalConfig.ConfigDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open scenario storage: %w", err)
	}

	store := scenario.NewStore(repo)
	if err := store.LoadAll(); err != nil {
		return nil, fmt.Errorf("failed to load scenarios: %w", err)
	}

	return store, nil
}

// newScenariosListCommand creates the scenarios list subcommand
func newScenariosListCommand() *cobra.Command {
	var (
		filter string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored scenarios",
		Long: `List scenarios, newest first.

The filter matches name and description as a case-insensitive substring.
Prefix it with "expr:" to filter with an expression instead:

  browserflow scenarios list --filter login
  browserflow scenarios list --filter 'expr:total_steps > 5'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}

			summaries, err := store.List(filter, limit)
			if err != nil {
				return err
			}

			if len(summaries) == 0 {
				fmt.Println("No scenarios found.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tSTEPS\tMODIFIED\tDESCRIPTION")
			for _, s := range summaries {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
					s.ID, s.Name, s.TotalSteps,
					s.LastModified.Format("2006-01-02 15:04"), s.Description)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&filter, "filter", "", "Substring or expr: filter")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum results (default 50)")

	return cmd
}

// newScenariosShowCommand creates the scenarios show subcommand
func newScenariosShowCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <scenario>",
		Short: "Show a scenario as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}

			s, err := store.Get(args[0])
			if err != nil {
				return err
			}

			data, err := json.MarshalIndent(s, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal scenario: %w", err)
			}

			fmt.Println(string(data))
			return nil
		},
	}

	return cmd
}

// newScenariosDeleteCommand creates the scenarios delete subcommand
func newScenariosDeleteCommand() *cobra.Command {
	var confirm bool

	cmd := &cobra.Command{
		Use:   "delete <scenario>",
		Short: "Delete a stored scenario",
		Long: `Delete a scenario by id or name. Deletion is permanent, so the
--confirm flag is required; without it the command reports what would be
deleted and makes no changes.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}

			s, err := store.Delete(args[0], confirm)
			if err != nil {
				return err
			}

			fmt.Printf("Deleted scenario %s (%s)\n", s.Name, s.ID)
			return nil
		},
	}

	cmd.Flags().BoolVar(&confirm, "confirm", false, "Actually delete the scenario")

	return cmd
}
