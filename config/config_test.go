package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "anthropic", cfg.Model.Provider)
	assert.Equal(t, "uvx", cfg.Provider.Command)
	assert.Equal(t, []string{"awslabs.aws-documentation-mcp-server@latest"}, cfg.Provider.Args)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9090"
  shutdown_timeout: 5s
agent:
  name: docs-helper
  max_model_calls: 4
model:
  provider: openai
  name: gpt-4o-mini
provider:
  command: python
  args: ["-m", "my_mcp_server"]
  env:
    FASTMCP_LOG_LEVEL: ERROR
logging:
  level: debug
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 5*time.Second, cfg.Server.ShutdownTimeout.Duration())
	assert.Equal(t, "docs-helper", cfg.Agent.Name)
	assert.Equal(t, 4, cfg.Agent.MaxModelCalls)
	assert.Equal(t, "openai", cfg.Model.Provider)
	assert.Equal(t, "python", cfg.Provider.Command)
	assert.Equal(t, []string{"-m", "my_mcp_server"}, cfg.Provider.Args)
	assert.Equal(t, "ERROR", cfg.Provider.Env["FASTMCP_LOG_LEVEL"])
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Provider.Command, cfg.Provider.Command)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("AGENTHOST_ADDR", ":7070")
	t.Setenv("AGENTHOST_MODEL_PROVIDER", "mock")
	t.Setenv("AGENTHOST_TOOL_COMMAND", "npx")
	t.Setenv("AGENTHOST_TOOL_ARGS", "-y my-mcp-server")
	t.Setenv("AGENTHOST_MAX_MODEL_CALLS", "3")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Server.Addr)
	assert.Equal(t, "mock", cfg.Model.Provider)
	assert.Equal(t, "npx", cfg.Provider.Command)
	assert.Equal(t, []string{"-y", "my-mcp-server"}, cfg.Provider.Args)
	assert.Equal(t, 3, cfg.Agent.MaxModelCalls)
}

func TestDurationUnmarshal(t *testing.T) {
	var cfg ServerConfig
	require.NoError(t, yaml.Unmarshal([]byte(`{addr: ":1", shutdown_timeout: 1h30m}`), &cfg))
	assert.Equal(t, 90*time.Minute, cfg.ShutdownTimeout.Duration())

	require.Error(t, yaml.Unmarshal([]byte(`{shutdown_timeout: soon}`), &cfg))
}

func TestValidateRejectsUnknownProvider(t *testing.T) {
	cfg := Default()
	cfg.Model.Provider = "llama-at-home"
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsEmptyCommand(t *testing.T) {
	cfg := Default()
	cfg.Provider.Command = ""
	require.Error(t, cfg.Validate())
}
