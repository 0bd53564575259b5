// Package config loads host configuration from YAML with environment
// overrides. Dotenv files (.env.local, .env) are loaded first so local
// development can inject API keys without exporting them.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the complete host configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Agent    AgentConfig    `yaml:"agent"`
	Model    ModelConfig    `yaml:"model"`
	Provider ProviderConfig `yaml:"provider"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// Duration is a time.Duration that supports YAML parsing of forms like
// "1s", "5m" or "1h30m", as well as plain nanosecond integers.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		var ns int64
		if err := unmarshal(&ns); err != nil {
			return fmt.Errorf("duration must be a string (e.g., '1s') or integer (nanoseconds)")
		}
		*d = Duration(ns)
		return nil
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr            string   `yaml:"addr"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

// AgentConfig configures the shared agent.
type AgentConfig struct {
	Name          string `yaml:"name"`
	Instruction   string `yaml:"instruction"`
	MaxModelCalls int    `yaml:"max_model_calls"`
}

// ModelConfig selects and tunes the generation backend.
type ModelConfig struct {
	Provider    string  `yaml:"provider"` // "anthropic", "openai" or "mock"
	Name        string  `yaml:"name"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
}

// ProviderConfig describes the child-process tool provider.
type ProviderConfig struct {
	Command     string            `yaml:"command"`
	Args        []string          `yaml:"args"`
	Env         map[string]string `yaml:"env"`
	CallTimeout Duration          `yaml:"call_timeout"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "text"
}

// Default returns the configuration used when no file or overrides are
// present: an Anthropic-backed agent wired to the AWS documentation MCP
// server launched via uvx.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: Duration(10 * time.Second),
		},
		Agent: AgentConfig{
			Name:          "assistant",
			MaxModelCalls: 10,
		},
		Model: ModelConfig{
			Provider: "anthropic",
		},
		Provider: ProviderConfig{
			Command:     "uvx",
			Args:        []string{"awslabs.aws-documentation-mcp-server@latest"},
			CallTimeout: Duration(30 * time.Second),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the effective configuration: defaults, then the YAML file at
// path (optional when path is empty), then environment overrides. Dotenv
// files are loaded before the environment is consulted.
func Load(path string) (Config, error) {
	if err := loadEnvFiles(); err != nil {
		return Config{}, err
	}

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate rejects configurations the host cannot start with.
func (c Config) Validate() error {
	switch c.Model.Provider {
	case "anthropic", "openai", "mock":
	default:
		return fmt.Errorf("unknown model provider %q", c.Model.Provider)
	}

	if c.Provider.Command == "" {
		return fmt.Errorf("provider command must not be empty")
	}

	if c.Agent.MaxModelCalls <= 0 {
		return fmt.Errorf("agent max_model_calls must be positive")
	}

	return nil
}

// loadEnvFiles loads dotenv files when present. Missing files are fine.
func loadEnvFiles() error {
	for _, file := range []string{".env.local", ".env"} {
		if err := godotenv.Load(file); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load %s: %w", file, err)
		}
	}
	return nil
}

// applyEnvOverrides applies AGENTHOST_* variables on top of the file values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("AGENTHOST_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("AGENTHOST_AGENT_NAME"); v != "" {
		cfg.Agent.Name = v
	}
	if v := os.Getenv("AGENTHOST_MODEL_PROVIDER"); v != "" {
		cfg.Model.Provider = v
	}
	if v := os.Getenv("AGENTHOST_MODEL_NAME"); v != "" {
		cfg.Model.Name = v
	}
	if v := os.Getenv("AGENTHOST_MAX_MODEL_CALLS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Agent.MaxModelCalls = n
		}
	}
	if v := os.Getenv("AGENTHOST_TOOL_COMMAND"); v != "" {
		cfg.Provider.Command = v
	}
	if v := os.Getenv("AGENTHOST_TOOL_ARGS"); v != "" {
		cfg.Provider.Args = strings.Fields(v)
	}
	if v := os.Getenv("AGENTHOST_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("AGENTHOST_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
