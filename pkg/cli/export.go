package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// NewExportCommand creates the export command
func NewExportCommand() *cobra.Command {
	var (
		outputPath string
		format     string
	)

	cmd := &cobra.Command{
		Use:   "export <scenario>",
		Short: "Export a scenario for sharing",
		Long: `Export a scenario by id or name as YAML or JSON.

The exported document is the full scenario: steps, default variables, and
metadata. It can be imported on another machine with "browserflow import".

Examples:
  # Export to stdout as YAML
  browserflow export login-flow

  # Export to a file as JSON
  browserflow export login-flow --format json --output login-flow.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}

			s, err := store.Get(args[0])
			if err != nil {
				return err
			}

			var data []byte
			switch strings.ToLower(format) {
			case "yaml", "yml":
				data, err = yaml.Marshal(s)
			case "json":
				data, err = json.MarshalIndent(s, "", "  ")
			default:
				return fmt.Errorf("unknown format %q: expected yaml or json", format)
			}
			if err != nil {
				return fmt.Errorf("failed to export scenario: %w", err)
			}

			if outputPath == "" {
				fmt.Print(string(data))
				if len(data) > 0 && data[len(data)-1] != '\n' {
					fmt.Println()
				}
				return nil
			}

			if err := os.WriteFile(outputPath, data, 0644); err != nil {
				return fmt.Errorf("failed to write %s: %w", outputPath, err)
			}
			fmt.Printf("Exported scenario %s to %s\n", s.Name, outputPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file (default: stdout)")
	cmd.Flags().StringVar(&format, "format", "yaml", "Output format: yaml or json")

	return cmd
}
