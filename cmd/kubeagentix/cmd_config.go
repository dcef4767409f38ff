package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kubeagentix/kubeagentix-ce-sub001/internal/config"
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configListCmd, configGetCmd, configSetCmd, configUnsetCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `Read and write configuration values by dot-separated key, e.g.

  kubeagentix config set context.namespace monitoring
  kubeagentix config set store.backend file
  kubeagentix config get agent.base_url

Values are checked before they are written: store.backend must be sqlite,
file or memory, context.namespace must be a valid namespace name, and
numeric limits must be in range.`,
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all configuration values, grouped by section",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		values, err := config.ListValues(cfg, true)
		if err != nil {
			return fmt.Errorf("list config: %w", err)
		}

		section := ""
		for _, key := range config.Keys() {
			name, field, nested := strings.Cut(key, ".")
			if !nested {
				fmt.Fprintf(os.Stdout, "%s = %v\n", key, values[key])
				continue
			}
			if name != section {
				section = name
				fmt.Fprintf(os.Stdout, "[%s]\n", section)
			}
			fmt.Fprintf(os.Stdout, "  %s = %v\n", field, values[key])
		}
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a configuration value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		val, err := config.GetValue(cfgPath, args[0])
		if err != nil {
			return err
		}
		if config.IsSecretKey(args[0]) {
			val = "***"
		}
		fmt.Fprintln(os.Stdout, val)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.SetValue(cfgPath, args[0], args[1]); err != nil {
			return err
		}
		display := args[1]
		if config.IsSecretKey(args[0]) {
			display = "***"
		}
		fmt.Fprintf(os.Stdout, "Set %s = %s\n", args[0], display)
		return nil
	},
}

var configUnsetCmd = &cobra.Command{
	Use:   "unset <key>",
	Short: "Restore a configuration value to its default",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.ResetValue(cfgPath, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Reset %s\n", args[0])
		return nil
	},
}
