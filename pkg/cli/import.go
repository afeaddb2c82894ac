package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/browserflow/browserflow/pkg/scenario"
)

// NewImportCommand creates the import command
func NewImportCommand() *cobra.Command {
	var newName string

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import a scenario from an exported file",
		Long: `Import a scenario from a YAML or JSON export.

The imported scenario always gets a fresh id, so importing never
overwrites an existing scenario even when the file carries the original
id. Use --name to rename it on the way in.

Examples:
  browserflow import login-flow.yaml
  browserflow import login-flow.json --name staging-login`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}

			var s scenario.Scenario
			switch strings.ToLower(filepath.Ext(args[0])) {
			case ".json":
				err = json.Unmarshal(data, &s)
			default:
				err = yaml.Unmarshal(data, &s)
			}
			if err != nil {
				return fmt.Errorf("failed to parse scenario: %w", err)
			}

			s.ID = scenario.NewScenarioID()
			if newName != "" {
				s.Name = newName
			}
			s.Touch()

			if err := s.Validate(); err != nil {
				return fmt.Errorf("invalid scenario: %w", err)
			}

			store, err := openStore()
			if err != nil {
				return err
			}

			if err := store.Save(&s); err != nil {
				return fmt.Errorf("failed to save scenario: %w", err)
			}

			fmt.Printf("Imported scenario %s (%s)\n", s.Name, s.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&newName, "name", "", "Rename the scenario on import")

	return cmd
}
