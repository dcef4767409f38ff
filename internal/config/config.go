package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tidwall/jsonc"
)

type Config struct {
	DataDir       string `json:"data_dir"`
	LogLevel      string `json:"log_level"`
	MaxConcurrent int    `json:"max_concurrent"`
	Agent         struct {
		BaseURL        string `json:"base_url"`
		APIKey         string `json:"api_key"`
		UserID         string `json:"user_id"`
		TenantID       string `json:"tenant_id"`
		TimeoutSeconds int    `json:"timeout_seconds"`
		MaxAttempts    int    `json:"max_attempts"`
	} `json:"agent"`
	Model struct {
		ProviderID       string  `json:"provider_id"`
		Model            string  `json:"model"`
		Temperature      float32 `json:"temperature"`
		MaxTokens        int     `json:"max_tokens"`
		MaxContextTokens int     `json:"max_context_tokens"`
	} `json:"model"`
	Tools struct {
		MaxToolCalls    int  `json:"max_tool_calls"`
		RequireApproval bool `json:"require_approval"`
	} `json:"tools"`
	Store struct {
		Backend    string `json:"backend"`
		Name       string `json:"name"`
		LegacyName string `json:"legacy_name"`
	} `json:"store"`
	Context struct {
		Cluster   string `json:"cluster"`
		Namespace string `json:"namespace"`
	} `json:"context"`
}

// Timeout returns the agent response-header timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Agent.TimeoutSeconds) * time.Second
}

// Defaults returns a Config populated with default values.
func Defaults() *Config {
	cfg := &Config{
		DataDir:       filepath.Join(os.Getenv("HOME"), ".kubeagentix"),
		LogLevel:      "info",
		MaxConcurrent: 2,
	}
	cfg.Agent.BaseURL = "http://localhost:8080"
	cfg.Agent.UserID = "local"
	cfg.Agent.TimeoutSeconds = 60
	cfg.Agent.MaxAttempts = 2
	cfg.Model.MaxContextTokens = 128000
	cfg.Tools.MaxToolCalls = 10
	cfg.Store.Backend = "sqlite"
	cfg.Store.Name = "kubeagentix-conversations-v2"
	cfg.Store.LegacyName = "kubeagentix-conversations"
	return cfg
}

// Load reads the config at path. A missing file is created with defaults.
// Comments and trailing commas are allowed. Environment variables take
// precedence over the file.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(jsonc.ToJSON(data), cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	} else if os.IsNotExist(err) {
		if err := Save(path, cfg); err != nil {
			return nil, err
		}
	}

	if apiKey := os.Getenv("KUBEAGENTIX_API_KEY"); apiKey != "" {
		cfg.Agent.APIKey = apiKey
	}
	if baseURL := os.Getenv("KUBEAGENTIX_BASE_URL"); baseURL != "" {
		cfg.Agent.BaseURL = baseURL
	}
	if userID := os.Getenv("KUBEAGENTIX_USER_ID"); userID != "" {
		cfg.Agent.UserID = userID
	}

	return cfg, nil
}

// Save writes cfg to path atomically.
func Save(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return writeFile(path, data)
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data = append(data, '\n')
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename config: %w", err)
	}
	return nil
}

// ToMap converts cfg to its generic JSON form. Numbers become float64.
func ToMap(cfg *Config) (map[string]any, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// ListValues returns cfg as a flat map of dot-separated keys, with secrets
// masked when mask is set.
func ListValues(cfg *Config, mask bool) (map[string]any, error) {
	m, err := ToMap(cfg)
	if err != nil {
		return nil, err
	}
	flat := make(map[string]any, len(keySpecs))
	flattenKeys("", m, flat)
	if mask {
		for k, v := range flat {
			if IsSecretKey(k) {
				flat[k] = maskSecret(v)
			}
		}
	}
	return flat, nil
}

func readDoc(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	doc := make(map[string]any)
	if err := json.Unmarshal(jsonc.ToJSON(data), &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return doc, nil
}

func writeDoc(path string, doc map[string]any) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return writeFile(path, data)
}

// GetValue reads one dot-separated key from the file at path. A known key
// absent from the file reports its default.
func GetValue(path, key string) (any, error) {
	if _, ok := keySpecs[key]; !ok {
		return nil, fmt.Errorf("unknown config key: %s", key)
	}
	doc, err := readDoc(path)
	if err != nil {
		return nil, err
	}
	flat := make(map[string]any)
	flattenKeys("", doc, flat)
	if v, ok := flat[key]; ok {
		return v, nil
	}
	defaults, err := ListValues(Defaults(), false)
	if err != nil {
		return nil, err
	}
	return defaults[key], nil
}

// SetValue validates value for key and writes it into the file at path.
// Comments in the file are not preserved.
func SetValue(path, key, value string) error {
	v, err := ParseValue(key, value)
	if err != nil {
		return err
	}
	doc, err := readDoc(path)
	if err != nil {
		return err
	}
	setKey(doc, key, v)
	return writeDoc(path, doc)
}

// ResetValue writes the default value of key into the file at path.
func ResetValue(path, key string) error {
	if _, ok := keySpecs[key]; !ok {
		return fmt.Errorf("unknown config key: %s", key)
	}
	defaults, err := ListValues(Defaults(), false)
	if err != nil {
		return err
	}
	doc, err := readDoc(path)
	if err != nil {
		return err
	}
	setKey(doc, key, defaults[key])
	return writeDoc(path, doc)
}
