package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kubeagentix/kubeagentix-ce-sub001/internal/config"
	"github.com/kubeagentix/kubeagentix-ce-sub001/internal/state"
)

func init() {
	rootCmd.AddCommand(setupCmd)
}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactive setup wizard",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		scanner := bufio.NewScanner(os.Stdin)

		fmt.Println("KubeAgentix Setup Wizard")
		fmt.Println("Press Enter to accept the default value shown in brackets.")
		fmt.Println()

		cfg.Agent.BaseURL = prompt(scanner, "Agent base URL", cfg.Agent.BaseURL)
		cfg.Agent.APIKey = prompt(scanner, "Agent API key (optional)", cfg.Agent.APIKey)
		cfg.Agent.UserID = prompt(scanner, "User id", cfg.Agent.UserID)
		cfg.Context.Cluster = prompt(scanner, "Default cluster (optional)", cfg.Context.Cluster)
		cfg.Context.Namespace = prompt(scanner, "Default namespace (optional)", cfg.Context.Namespace)

		maxToolCalls := prompt(scanner, "Max tool calls per turn", strconv.Itoa(cfg.Tools.MaxToolCalls))
		if n, err := strconv.Atoi(maxToolCalls); err == nil {
			cfg.Tools.MaxToolCalls = n
		}

		for {
			backend := prompt(scanner, "Store backend (sqlite, file, memory)", cfg.Store.Backend)
			switch backend {
			case state.BackendSQLite, state.BackendFile, state.BackendMemory:
				cfg.Store.Backend = backend
			default:
				fmt.Printf("unknown backend %q\n", backend)
				continue
			}
			break
		}

		if err := config.Save(cfgPath, cfg); err != nil {
			return fmt.Errorf("save config: %w", err)
		}

		fmt.Println()
		fmt.Println("Configuration saved to", cfgPath)
		return nil
	},
}

// prompt displays a labeled prompt with a default value and reads user input.
// If the user enters nothing, the default is returned.
func prompt(scanner *bufio.Scanner, label, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", label, defaultVal)
	} else {
		fmt.Printf("%s: ", label)
	}
	if scanner.Scan() {
		input := strings.TrimSpace(scanner.Text())
		if input != "" {
			return input
		}
	}
	return defaultVal
}
