package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/MeKo-Tech/gridsplit/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and create configuration files",
}

var configInitCmd = &cobra.Command{
	Use:   "init [file]",
	Short: "Write the default configuration to a YAML file",
	Long: `Write the default configuration to a YAML file (default gridsplit.yaml in
the current directory) as a starting point for customization.`,
	Args:         cobra.MaximumNArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		file := config.ConfigFileName + ".yaml"
		if len(args) == 1 {
			file = args[0]
		}
		if err := config.WriteDefaultConfigFile(file); err != nil {
			return fmt.Errorf("failed to write config file: %w", err)
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Wrote default configuration to %s\n", file)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:          "show",
	Short:        "Print the effective configuration",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		format, _ := cmd.Flags().GetString("format")

		var (
			out []byte
			err error
		)
		switch format {
		case "yaml":
			out, err = yaml.Marshal(cfg)
		case "json":
			out, err = json.MarshalIndent(cfg, "", "  ")
		default:
			return fmt.Errorf("unsupported format: %s (must be yaml or json)", format)
		}
		if err != nil {
			return err
		}
		if used := GetConfigLoader().ConfigFileUsed(); used != "" {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Using config file: %s\n", used)
		}
		return writeOutput(cmd, "", ensureNewline(string(out)))
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd, configShowCmd)
	configShowCmd.Flags().StringP("format", "f", "yaml", "output format: yaml or json")
}
