package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	// Empty dir so no stray config.yaml is picked up.
	cfg, err := LoadWithPath(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "", cfg.NATS.URL)
	assert.Equal(t, "info", cfg.Logging.Level)

	assert.Equal(t, "iflow", cfg.Executors.Default)
	assert.Equal(t, 300, cfg.Executors.ApprovalTimeout)
	require.Contains(t, cfg.Executors.Profiles, "iflow")
	require.Contains(t, cfg.Executors.Profiles, "gemini")
	assert.Equal(t, "iflow", cfg.Executors.Profiles["iflow"].Kind)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	content := `
server:
  port: 9090
executors:
  default: reviewer
  profiles:
    reviewer:
      kind: iflow
      yolo: true
      model: pro
      appendPrompt: "Review carefully."
      additionalParams: ["--trace"]
      env:
        IFLOW_REGION: eu
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o644))

	cfg, err := LoadWithPath(dir)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "reviewer", cfg.Executors.Default)
	profile := cfg.Executors.Profiles["reviewer"]
	assert.True(t, profile.Yolo)
	assert.Equal(t, "pro", profile.Model)
	assert.Equal(t, "Review carefully.", profile.AppendPrompt)
	assert.Equal(t, []string{"--trace"}, profile.AdditionalParams)
	assert.Equal(t, "eu", profile.Env["IFLOW_REGION"])
}

// Viper lower-cases keys on unmarshal; env var names must survive with their
// exact case or the agent process receives the wrong variables.
func TestLoadPreservesEnvKeyCase(t *testing.T) {
	dir := t.TempDir()
	content := `
executors:
  default: iflow
  profiles:
    iflow:
      kind: iflow
      env:
        IFLOW_API_KEY: secret
        MixedCase_Var: value
    gemini:
      kind: gemini
      env:
        GEMINI_SANDBOX: "true"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o644))

	cfg, err := LoadWithPath(dir)
	require.NoError(t, err)

	iflow := cfg.Executors.Profiles["iflow"]
	assert.Equal(t, map[string]string{
		"IFLOW_API_KEY": "secret",
		"MixedCase_Var": "value",
	}, iflow.Env)
	assert.NotContains(t, iflow.Env, "iflow_api_key")

	gemini := cfg.Executors.Profiles["gemini"]
	assert.Equal(t, "true", gemini.Env["GEMINI_SANDBOX"])
}

func TestLoadValidation(t *testing.T) {
	dir := t.TempDir()
	content := `
server:
  port: -1
executors:
  default: ghost
  profiles:
    iflow:
      kind: iflow
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o644))

	_, err := LoadWithPath(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port")
	assert.Contains(t, err.Error(), "executors.default")
}
