package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"cachebuster/pkg/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the configuration file",
}

var configValidateCmd = &cobra.Command{
	Use:          "validate",
	Short:        "Load and validate the configuration",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		loader := config.NewLoader()
		if _, err := loader.Load(configPath); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Configuration OK: %s\n", loader.Path())
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:          "show",
	Short:        "Print the effective configuration with secrets masked",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.NewLoader().Load(configPath)
		if err != nil {
			return err
		}
		return renderConfig(cmd.OutOrStdout(), cfg)
	},
}

func init() {
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configShowCmd)
}

// renderConfig writes cfg as YAML, defaults included and secrets masked.
func renderConfig(w io.Writer, cfg *config.Config) error {
	redacted := cfg.Redacted()

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&redacted); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return enc.Close()
}
