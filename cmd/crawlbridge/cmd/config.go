package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/crawlbridge/crawlbridge/configs"
	"github.com/crawlbridge/crawlbridge/internal/config"
)

// newConfigCmd creates the config command, which prints the effective
// configuration after file and environment overrides.
func newConfigCmd() *cobra.Command {
	var jsonOutput bool
	var initConfig bool

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration",
		Long: `Show the configuration crawlbridge would run with, after merging
defaults, .crawlbridge.yaml, .env, and environment variables.

With --init, write an annotated .crawlbridge.yaml template to the
working directory instead.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if initConfig {
				return writeConfigTemplate(cmd)
			}

			cfg, err := config.Load(".")
			if err != nil {
				return err
			}

			// Never print credentials.
			cfg.Store.DatabaseURL = redact(cfg.Store.DatabaseURL)
			cfg.Graph.Password = redact(cfg.Graph.Password)

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(cfg)
			}
			return yaml.NewEncoder(cmd.OutOrStdout()).Encode(cfg)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output configuration as JSON")
	cmd.Flags().BoolVar(&initConfig, "init", false, "Write a .crawlbridge.yaml template")

	return cmd
}

func writeConfigTemplate(cmd *cobra.Command) error {
	const path = ".crawlbridge.yaml"
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	if err := os.WriteFile(path, []byte(configs.ConfigTemplate), 0o644); err != nil {
		return err
	}
	_, err := fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	return err
}

func redact(s string) string {
	if s == "" {
		return ""
	}
	return "[redacted]"
}
