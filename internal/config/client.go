// ABOUTME: Configuration loading for the secureagent terminal client
// ABOUTME: Loads TOML config from the XDG path with environment variable expansion

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// ClientConfig is the secureagent terminal client configuration.
type ClientConfig struct {
	Agent    AgentConfig    `toml:"agent"`
	Identity IdentityConfig `toml:"identity"`
	Client   ClientSettings `toml:"client"`
	Logging  LoggingConfig  `toml:"logging"`
}

// AgentConfig locates the agent service.
type AgentConfig struct {
	BaseURL string        `toml:"base_url"`
	Timeout time.Duration `toml:"-"`

	// Raw string value for TOML decoding
	TimeoutRaw string `toml:"timeout"`
}

// IdentityConfig says where the bearer token comes from.
type IdentityConfig struct {
	TokenEnv  string `toml:"token_env"`
	TokenFile string `toml:"token_file"`
}

// ClientSettings holds dashboard behavior.
type ClientSettings struct {
	ResetPolicy string `toml:"reset_policy"`
	LogFile     string `toml:"log_file"`
}

// Client defaults
const (
	DefaultBaseURL  = "http://localhost:8080"
	DefaultTokenEnv = "SECUREAGENT_TOKEN"
	DefaultTimeout  = 30 * time.Second
)

// DefaultClientConfig returns the configuration used when no file exists.
func DefaultClientConfig() *ClientConfig {
	cfg := &ClientConfig{}
	cfg.applyDefaults()
	return cfg
}

// LoadClient reads the client config from path. A missing file yields the
// defaults so the client works without any setup.
func LoadClient(path string) (*ClientConfig, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultClientConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return ParseClient(string(data))
}

// ParseClient decodes TOML client configuration, applies defaults and validates.
func ParseClient(data string) (*ClientConfig, error) {
	var cfg ClientConfig
	if _, err := toml.Decode(expandEnvVars(data), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.Agent.TimeoutRaw != "" {
		d, err := time.ParseDuration(cfg.Agent.TimeoutRaw)
		if err != nil {
			return nil, fmt.Errorf("parsing agent.timeout %q: %w", cfg.Agent.TimeoutRaw, err)
		}
		cfg.Agent.Timeout = d
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func (c *ClientConfig) applyDefaults() {
	if c.Agent.BaseURL == "" {
		c.Agent.BaseURL = DefaultBaseURL
	}
	if c.Agent.TimeoutRaw == "" && c.Agent.Timeout == 0 {
		c.Agent.Timeout = DefaultTimeout
	}
	if c.Identity.TokenEnv == "" {
		c.Identity.TokenEnv = DefaultTokenEnv
	}
	if c.Identity.TokenFile == "" {
		c.Identity.TokenFile = DefaultTokenPath()
	}
	if c.Client.LogFile == "" {
		c.Client.LogFile = DefaultLogPath()
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate checks that required config fields are present and valid.
func (c *ClientConfig) Validate() error {
	if err := validateHTTPURL(c.Agent.BaseURL); err != nil {
		return fmt.Errorf("agent.base_url %w", err)
	}
	if c.Agent.Timeout < 0 {
		return fmt.Errorf("agent.timeout must not be negative")
	}
	switch c.Client.ResetPolicy {
	case "", "replace_with_ack", "replace_with_draft", "clear":
	default:
		return fmt.Errorf("client.reset_policy %q is not supported", c.Client.ResetPolicy)
	}
	return nil
}

// ConfigDir returns the secureagent config directory.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "secureagent")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".secureagent")
	}
	return filepath.Join(home, ".config", "secureagent")
}

// ClientConfigPath returns the client config path, honoring SECUREAGENT_CONFIG.
func ClientConfigPath() string {
	if p := os.Getenv("SECUREAGENT_CONFIG"); p != "" {
		return p
	}
	return filepath.Join(ConfigDir(), "config.toml")
}

// ServerConfigPath returns the server config path, honoring SECUREAGENT_SERVER_CONFIG.
func ServerConfigPath() string {
	if p := os.Getenv("SECUREAGENT_SERVER_CONFIG"); p != "" {
		return p
	}
	return filepath.Join(ConfigDir(), "server.yaml")
}

// DefaultTokenPath returns where `secureagent login` stores the token.
func DefaultTokenPath() string {
	return filepath.Join(ConfigDir(), "token")
}

// DefaultLogPath returns the client log file used while the TUI owns the terminal.
func DefaultLogPath() string {
	return filepath.Join(ConfigDir(), "secureagent.log")
}
