package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// ErrInvalid is wrapped by every error returned from Validate.
var ErrInvalid = errors.New("invalid configuration")

// DefaultModel is used when no model is configured.
const DefaultModel = "gpt-4o"

// Config holds the application configuration
type Config struct {
	LLM        LLMConfig         `mapstructure:"llm"`
	Server     ServerConfig      `mapstructure:"server"`
	History    HistoryConfig     `mapstructure:"history"`
	LogLevel   string            `mapstructure:"log_level"`
	MCPServers []MCPServerConfig `mapstructure:"mcp_servers"`
}

// LLMConfig holds the chat completion settings. It mirrors the keyword
// arguments accepted by the hosted completion endpoint.
type LLMConfig struct {
	Model             string       `mapstructure:"model"`
	Temperature       float32      `mapstructure:"temperature"`
	MaxTokens         int          `mapstructure:"max_tokens"`
	TopP              float32      `mapstructure:"top_p"`
	APIKey            string       `mapstructure:"api_key"`
	HTTPClientProxies string       `mapstructure:"http_client_proxies"`
	Azure             *AzureConfig `mapstructure:"azure_kwargs"`
	SystemPrompt      string       `mapstructure:"system_prompt"`
}

// AzureConfig carries the Azure specific client overrides. Empty values are
// treated as absent.
type AzureConfig struct {
	APIKey          string            `mapstructure:"api_key"`
	AzureDeployment string            `mapstructure:"azure_deployment"`
	AzureEndpoint   string            `mapstructure:"azure_endpoint"`
	APIVersion      string            `mapstructure:"api_version"`
	DefaultHeaders  map[string]string `mapstructure:"default_headers"`
}

// ServerConfig holds the server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
}

// HistoryConfig points at the SQLite conversation log.
type HistoryConfig struct {
	Path string `mapstructure:"path"`
}

// ClientType selects the MCP transport.
type ClientType string

const (
	ClientTypeSSE            ClientType = "sse"
	ClientTypeStreamableHTTP ClientType = "streamable_http"
	ClientTypeStdio          ClientType = "stdio"
)

// MCPServerConfig describes one MCP server the agent pulls tools from.
type MCPServerConfig struct {
	Name    string            `mapstructure:"name"`
	Type    ClientType        `mapstructure:"type"`
	URL     string            `mapstructure:"url"`
	Headers map[string]string `mapstructure:"headers"`
	Command string            `mapstructure:"command"`
	Args    []string          `mapstructure:"args"`
	Env     map[string]string `mapstructure:"env"`
}

// Load reads the file named by CONFIG_PATH, or config.yaml in the working
// directory when unset.
func Load() (*Config, error) {
	return LoadFile(os.Getenv("CONFIG_PATH"))
}

// LoadFile reads the configuration from path. An empty path searches for
// config.yaml in the working directory; a missing default file is not an
// error, defaults and environment still apply.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = DefaultModel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("llm.model", DefaultModel)
	v.SetDefault("llm.temperature", 0.1)
	v.SetDefault("llm.max_tokens", 2000)
	v.SetDefault("llm.top_p", 0.1)
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.http_client_proxies", "")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8080")
	v.SetDefault("history.path", "history.db")
	v.SetDefault("log_level", "info")
}

// Validate checks the LLM settings.
func (c Config) Validate() error {
	return c.LLM.Validate()
}

// Validate checks the sampling parameters and the proxy URL.
func (c LLMConfig) Validate() error {
	if c.MaxTokens <= 0 {
		return fmt.Errorf("%w: llm.max_tokens must be positive, got %d", ErrInvalid, c.MaxTokens)
	}
	if c.TopP < 0 || c.TopP > 1 {
		return fmt.Errorf("%w: llm.top_p must be within [0,1], got %v", ErrInvalid, c.TopP)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("%w: llm.temperature must be within [0,2], got %v", ErrInvalid, c.Temperature)
	}
	if c.HTTPClientProxies != "" {
		u, err := url.Parse(c.HTTPClientProxies)
		if err != nil {
			return fmt.Errorf("%w: llm.http_client_proxies: %v", ErrInvalid, err)
		}
		if u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%w: llm.http_client_proxies %q needs a scheme and host", ErrInvalid, c.HTTPClientProxies)
		}
	}
	return nil
}
