package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleConfig = `
log_level: debug
llm:
  model: gpt-4o
  temperature: 0.7
  max_tokens: 100
  top_p: 1.0
  api_key: dummy
  http_client_proxies: http://testproxy.mem0.net:8000
  azure_kwargs:
    api_key: test
    azure_deployment: my-deployment
    azure_endpoint: https://example.openai.azure.com
    api_version: "2024-02-01"
    default_headers:
      X-Trace: abc
server:
  host: 0.0.0.0
  port: "8080"
mcp_servers:
  - type: stdio
    command: ./mock
    args: ["--flag"]
    env:
      FOO: bar
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

// TestLoad_Full verifies that Load unmarshals the llm, azure and mcp sections.
func TestLoad_Full(t *testing.T) {
	t.Setenv("CONFIG_PATH", writeConfig(t, sampleConfig))

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, "gpt-4o", cfg.LLM.Model)
	require.Equal(t, float32(0.7), cfg.LLM.Temperature)
	require.Equal(t, 100, cfg.LLM.MaxTokens)
	require.Equal(t, float32(1.0), cfg.LLM.TopP)
	require.Equal(t, "dummy", cfg.LLM.APIKey)
	require.Equal(t, "http://testproxy.mem0.net:8000", cfg.LLM.HTTPClientProxies)

	require.NotNil(t, cfg.LLM.Azure)
	require.Equal(t, "test", cfg.LLM.Azure.APIKey)
	require.Equal(t, "my-deployment", cfg.LLM.Azure.AzureDeployment)
	require.Equal(t, "https://example.openai.azure.com", cfg.LLM.Azure.AzureEndpoint)
	require.Equal(t, "2024-02-01", cfg.LLM.Azure.APIVersion)
	// viper lower-cases map keys
	require.Equal(t, map[string]string{"x-trace": "abc"}, cfg.LLM.Azure.DefaultHeaders)

	require.Len(t, cfg.MCPServers, 1)
	s := cfg.MCPServers[0]
	require.Equal(t, ClientTypeStdio, s.Type)
	require.Equal(t, "./mock", s.Command)
	require.Equal(t, []string{"--flag"}, s.Args)
	require.Equal(t, "bar", s.Env["foo"])
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CONFIG_PATH", writeConfig(t, "server:\n  port: \"9090\"\n"))

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, DefaultModel, cfg.LLM.Model)
	require.Equal(t, 2000, cfg.LLM.MaxTokens)
	require.Equal(t, float32(0.1), cfg.LLM.TopP)
	require.Nil(t, cfg.LLM.Azure)
	require.Equal(t, "9090", cfg.Server.Port)
	require.Equal(t, "history.db", cfg.History.Path)
	require.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("CONFIG_PATH", writeConfig(t, "llm:\n  model: gpt-4o\n"))
	t.Setenv("LLM_MODEL", "gpt-4o-mini")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoad_RejectsInvalid(t *testing.T) {
	t.Setenv("CONFIG_PATH", writeConfig(t, "llm:\n  max_tokens: 0\n"))

	_, err := Load()
	require.ErrorIs(t, err, ErrInvalid)
}

func TestLLMConfigValidate(t *testing.T) {
	base := LLMConfig{Model: "gpt-4o", Temperature: 0.7, MaxTokens: 100, TopP: 1}
	require.NoError(t, base.Validate())

	cases := map[string]func(c *LLMConfig){
		"negative max tokens":  func(c *LLMConfig) { c.MaxTokens = -1 },
		"top_p above one":      func(c *LLMConfig) { c.TopP = 1.5 },
		"negative top_p":       func(c *LLMConfig) { c.TopP = -0.1 },
		"temperature too hot":  func(c *LLMConfig) { c.Temperature = 3 },
		"bad proxy":            func(c *LLMConfig) { c.HTTPClientProxies = "http://bad host:80" },
		"proxy without scheme": func(c *LLMConfig) { c.HTTPClientProxies = "no-scheme" },
		"proxy without host":   func(c *LLMConfig) { c.HTTPClientProxies = "http://" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := base
			mutate(&c)
			require.ErrorIs(t, c.Validate(), ErrInvalid)
		})
	}
}
