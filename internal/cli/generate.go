package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/SmitUplenchwar2687/rewind/internal/config"
)

func newGenerateCmd() *cobra.Command {
	var configOut, schemaOut string

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate an example config or its JSON schema",
		Long: `Generates files that help write a configuration.

Use "generate config" to create an example config JSON file.
Use "generate schema" to print the JSON schema of the config file.`,
		// Neither subcommand needs a config, logger or store.
		PersistentPreRunE:  func(*cobra.Command, []string) error { return nil },
		PersistentPostRunE: func(*cobra.Command, []string) error { return nil },
	}

	configCmd := &cobra.Command{
		Use:     "config",
		Short:   "Generate an example config JSON file",
		Example: `  rewind generate config --output rewind.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if configOut == "" {
				configOut = "rewind.json"
			}
			if err := config.WriteExample(configOut); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Generated example config at %s\n", configOut)
			return nil
		},
	}
	configCmd.Flags().StringVar(&configOut, "output", "rewind.json", "output file path")

	schemaCmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON schema of the config file",
		Example: `  rewind generate schema > rewind.schema.json
  rewind generate schema --output rewind.schema.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := config.SchemaJSON()
			if err != nil {
				return err
			}
			if schemaOut == "" || schemaOut == "-" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(schemaOut, data, 0o644); err != nil {
				return fmt.Errorf("writing schema: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Generated config schema at %s\n", schemaOut)
			return nil
		},
	}
	schemaCmd.Flags().StringVar(&schemaOut, "output", "", "output file path (default stdout)")

	cmd.AddCommand(configCmd, schemaCmd)
	return cmd
}
