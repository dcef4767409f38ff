package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kubeagentix/kubeagentix-ce-sub001/internal/config"
	ctxengine "github.com/kubeagentix/kubeagentix-ce-sub001/internal/context"
	"github.com/kubeagentix/kubeagentix-ce-sub001/internal/state"
	"github.com/kubeagentix/kubeagentix-ce-sub001/internal/types"
	"github.com/kubeagentix/kubeagentix-ce-sub001/pkg/agent"
	"github.com/kubeagentix/kubeagentix-ce-sub001/pkg/agent/remote"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:           "kubeagentix",
	Short:         "Chat with the KubeAgentix cluster agent",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config",
		filepath.Join(os.Getenv("HOME"), ".kubeagentix", "config.json"), "config file path")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func loadConfig() *config.Config {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func setupLogging(cfg *config.Config) {
	var level slog.Level
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// openStore opens the configured backend and conversation store. The caller
// closes the returned backend.
func openStore(cfg *config.Config) (types.Backend, *state.ConversationStore, error) {
	backend, err := state.OpenBackend(cfg.Store.Backend, cfg.DataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	return backend, state.NewConversationStore(backend, cfg.Store.Name, cfg.Store.LegacyName), nil
}

func newTransport(cfg *config.Config) agent.Transport {
	return remote.New(&agent.Config{
		BaseURL:     cfg.Agent.BaseURL,
		APIKey:      cfg.Agent.APIKey,
		Timeout:     cfg.Timeout(),
		MaxAttempts: cfg.Agent.MaxAttempts,
	})
}

func newEngine(cfg *config.Config) (*ctxengine.Engine, error) {
	model := cfg.Model.Model
	if model == "" {
		model = "gpt-4"
	}
	engine, err := ctxengine.New(model, cfg.Model.MaxContextTokens)
	if err != nil {
		return nil, fmt.Errorf("create context engine: %w", err)
	}
	return engine, nil
}

func requestContext(cfg *config.Config) agent.RequestContext {
	return agent.RequestContext{
		Cluster:   cfg.Context.Cluster,
		Namespace: cfg.Context.Namespace,
		TenantID:  cfg.Agent.TenantID,
	}
}

func toolPreferences(cfg *config.Config) *agent.ToolPreferences {
	return &agent.ToolPreferences{
		MaxToolCalls:    cfg.Tools.MaxToolCalls,
		RequireApproval: cfg.Tools.RequireApproval,
	}
}

// modelPreferences returns nil when nothing is configured so the agent
// picks its own defaults.
func modelPreferences(cfg *config.Config) *agent.ModelPreferences {
	m := cfg.Model
	if m.ProviderID == "" && m.Model == "" && m.Temperature == 0 && m.MaxTokens == 0 {
		return nil
	}
	p := &agent.ModelPreferences{ProviderID: m.ProviderID, Model: m.Model, MaxTokens: m.MaxTokens}
	if m.Temperature != 0 {
		t := m.Temperature
		p.Temperature = &t
	}
	return p
}
