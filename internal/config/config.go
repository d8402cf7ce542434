// ABOUTME: Configuration loading and parsing for secureagent-server
// ABOUTME: Supports YAML files with environment variable expansion and Keycloak-derived auth URLs

package config

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// MinSecretLength is the shortest accepted HS256 secret.
const MinSecretLength = 32

// DefaultAudience matches the audience Keycloak issues access tokens for.
const DefaultAudience = "account"

// Config represents the complete secureagent-server configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Auth     AuthConfig     `yaml:"auth"`
	Database DatabaseConfig `yaml:"database"`
	LLM      LLMConfig      `yaml:"llm"`
	HR       HRConfig       `yaml:"hr"`
	CORS     CORSConfig     `yaml:"cors"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// AuthConfig holds token verification configuration. Either JWTSecret
// (HS256) or a JWKS source (RS256) must be set. KeycloakURL and Realm
// derive Issuer and JWKSURL when those are left empty.
type AuthConfig struct {
	JWTSecret   string `yaml:"jwt_secret"`
	KeycloakURL string `yaml:"keycloak_url"`
	Realm       string `yaml:"realm"`
	JWKSURL     string `yaml:"jwks_url"`
	Issuer      string `yaml:"issuer"`
	Audience    string `yaml:"audience"`
	ClientID    string `yaml:"client_id"`
}

// DatabaseConfig holds database configuration. An empty path keeps history in memory.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LLMConfig selects the responder behind /query
type LLMConfig struct {
	Provider     string `yaml:"provider"`
	APIKey       string `yaml:"api_key"`
	Model        string `yaml:"model"`
	MaxTokens    int64  `yaml:"max_tokens"`
	SystemPrompt string `yaml:"system_prompt"`
}

// HRConfig holds the days-off directory served by /daysOff
type HRConfig struct {
	DaysOff map[string]int `yaml:"days_off"`
}

// CORSConfig lists browser origins allowed to call the API
type CORSConfig struct {
	Origins []string `yaml:"origins"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// LLM providers
const (
	ProviderEcho      = "echo"
	ProviderAnthropic = "anthropic"
)

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes YAML configuration bytes, applies defaults and validates.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(expandEnvVars(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

func (c *Config) applyDefaults() {
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = "127.0.0.1:8080"
	}

	if c.Auth.KeycloakURL != "" && c.Auth.Realm != "" {
		realm := strings.TrimRight(c.Auth.KeycloakURL, "/") + "/realms/" + c.Auth.Realm
		if c.Auth.Issuer == "" {
			c.Auth.Issuer = realm
		}
		if c.Auth.JWKSURL == "" {
			c.Auth.JWKSURL = realm + "/protocol/openid-connect/certs"
		}
	}
	if c.Auth.Audience == "" && c.Auth.JWKSURL != "" {
		c.Auth.Audience = DefaultAudience
	}

	if c.LLM.Provider == "" {
		c.LLM.Provider = ProviderEcho
	}
	if c.LLM.Provider == ProviderAnthropic {
		if c.LLM.Model == "" {
			c.LLM.Model = "claude-sonnet-4-5"
		}
		if c.LLM.MaxTokens == 0 {
			c.LLM.MaxTokens = 1024
		}
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}

	if c.Auth.JWTSecret == "" && c.Auth.JWKSURL == "" {
		return fmt.Errorf("auth.jwt_secret or auth.jwks_url (or auth.keycloak_url with auth.realm) is required")
	}
	if c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < MinSecretLength {
		return fmt.Errorf("auth.jwt_secret must be at least %d bytes", MinSecretLength)
	}
	if c.Auth.JWKSURL != "" {
		if err := validateHTTPURL(c.Auth.JWKSURL); err != nil {
			return fmt.Errorf("auth.jwks_url %w", err)
		}
	}

	switch c.LLM.Provider {
	case ProviderEcho:
	case ProviderAnthropic:
		if c.LLM.APIKey == "" {
			return fmt.Errorf("llm.api_key is required for provider %q", ProviderAnthropic)
		}
		if c.LLM.MaxTokens < 0 {
			return fmt.Errorf("llm.max_tokens must be positive")
		}
	default:
		return fmt.Errorf("llm.provider %q is not supported (want %s or %s)", c.LLM.Provider, ProviderEcho, ProviderAnthropic)
	}

	for name, days := range c.HR.DaysOff {
		if days < 0 {
			return fmt.Errorf("hr.days_off[%s] must not be negative", name)
		}
	}

	for _, origin := range c.CORS.Origins {
		if origin == "*" {
			continue
		}
		if err := validateHTTPURL(origin); err != nil {
			return fmt.Errorf("cors.origins entry %q %w", origin, err)
		}
	}

	return nil
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("is not a valid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("must use http or https scheme")
	}
	if u.Host == "" {
		return fmt.Errorf("must include a host")
	}
	return nil
}
