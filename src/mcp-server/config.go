// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package mcpserver

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/H0llyW00dzZ/sslmate-mcp/src/internal/ctsearch"
	"github.com/H0llyW00dzZ/sslmate-mcp/src/logger"
	"gopkg.in/yaml.v3"
)

// Environment variables consulted by loadConfig.
const (
	envConfigFile = "MCP_SSLMATE_CONFIG_FILE"
	envAPIKey     = "SSLMATE_API_KEY"
	envAPIBase    = "SSLMATE_API_BASE"
	envLogLevel   = "LOG_LEVEL"
	envLogFile    = "LOG_FILE"
)

// configFormat represents supported configuration file formats.
type configFormat int

const (
	// configFormatJSON represents JSON configuration format (.json)
	configFormatJSON configFormat = iota
	// configFormatYAML represents YAML configuration format (.yaml, .yml)
	configFormatYAML
)

// Config represents the MCP server configuration structure.
// It contains the upstream connection settings, tool defaults and logging options.
//
// The configuration can be loaded from a JSON or YAML file specified by the --config flag
// or the MCP_SSLMATE_CONFIG_FILE environment variable, with defaults applied for any missing values.
// Supported file extensions: .json, .yaml, .yml
//
// A Config is resolved once at startup and converted into an immutable [ctsearch.Options]
// value; nothing reads it after the server is built.
type Config struct {
	// Upstream: SSLMate API connection settings
	Upstream struct {
		// BaseURL: API root, overridable via SSLMATE_API_BASE
		BaseURL string `json:"baseURL" yaml:"baseURL"`
		// APIKey: optional bearer key (can also be set via SSLMATE_API_KEY env var)
		APIKey string `json:"apiKey,omitempty" yaml:"apiKey,omitempty"`
		// Timeout: per-attempt HTTP timeout in seconds
		Timeout int `json:"timeoutSeconds" yaml:"timeoutSeconds"`
		// MaxLimit: largest page size the upstream accepts
		MaxLimit int `json:"maxLimit" yaml:"maxLimit"`
		// RequestsPerSecond: client-side pacing, zero or negative disables it
		RequestsPerSecond float64 `json:"requestsPerSecond" yaml:"requestsPerSecond"`
		// Burst: token bucket size for pacing
		Burst int `json:"burst" yaml:"burst"`
	} `json:"upstream" yaml:"upstream"`

	// Defaults: Default settings for tool arguments
	Defaults struct {
		// Limit: search limit used by the search resource and the CLI search command when none is given
		Limit int `json:"limit" yaml:"limit"`
	} `json:"defaults" yaml:"defaults"`

	// Log: logging destination and verbosity
	Log struct {
		// Level: debug, info, warn, error or silent
		Level string `json:"level" yaml:"level"`
		// File: append logs here instead of stderr when set
		File string `json:"file,omitempty" yaml:"file,omitempty"`
	} `json:"log" yaml:"log"`
}

// defaultConfig returns a Config populated with built-in defaults.
func defaultConfig() *Config {
	config := &Config{}
	config.Upstream.BaseURL = ctsearch.DefaultBaseURL
	config.Upstream.Timeout = int(ctsearch.DefaultTimeout / time.Second)
	config.Upstream.MaxLimit = ctsearch.MaxLimit
	config.Upstream.RequestsPerSecond = ctsearch.DefaultRequestsPerSecond
	config.Upstream.Burst = ctsearch.DefaultBurst
	config.Defaults.Limit = ctsearch.DefaultLimit
	config.Log.Level = logger.LevelInfo.String()
	return config
}

// detectConfigFormat determines the configuration file format based on file extension.
// It supports .json, .yaml, and .yml extensions for flexible configuration management.
//
// Parameters:
//   - configPath: Path to the configuration file
//
// Returns:
//   - configFormat: The detected format (configFormatJSON or configFormatYAML)
//
// The function uses case-insensitive extension matching for cross-platform compatibility.
func detectConfigFormat(configPath string) configFormat {
	ext := strings.ToLower(filepath.Ext(configPath))
	switch ext {
	case ".yaml", ".yml":
		return configFormatYAML
	default:
		return configFormatJSON
	}
}

// unmarshalConfig unmarshals configuration data based on the specified format.
//
// Parameters:
//   - data: Raw configuration file contents
//   - config: Pointer to Config struct to populate
//   - format: The configuration format (configFormatJSON or configFormatYAML)
//
// Returns:
//   - error: Any parsing error encountered during unmarshaling
func unmarshalConfig(data []byte, config *Config, format configFormat) error {
	switch format {
	case configFormatYAML:
		if err := yaml.Unmarshal(data, config); err != nil {
			return fmt.Errorf("failed to parse YAML config file: %w", err)
		}
	default:
		if err := json.Unmarshal(data, config); err != nil {
			return fmt.Errorf("failed to parse JSON config file: %w", err)
		}
	}
	return nil
}

// loadConfig loads MCP server configuration from a JSON or YAML file or applies defaults.
//
// Parameters:
//   - configPath: Path to the configuration file (optional, can be empty)
//     Supported formats: .json, .yaml, .yml
//
// Returns:
//   - A pointer to the loaded Config struct with defaults applied
//   - An error if the configuration file cannot be read or parsed
//
// Configuration Priority:
//  1. Default values are set
//  2. MCP_SSLMATE_CONFIG_FILE environment variable is checked if configPath is empty
//  3. Config file values override defaults (if file exists and is valid)
//  4. Non-empty environment variables override config file values
//     (SSLMATE_API_KEY, SSLMATE_API_BASE, LOG_LEVEL, LOG_FILE)
//
// CLI flags are applied on top of the returned value by the caller.
func loadConfig(configPath string) (*Config, error) {
	config := defaultConfig()

	// Check environment variable for config file path if not provided
	if configPath == "" {
		configPath = os.Getenv(envConfigFile)
	}

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		format := detectConfigFormat(configPath)
		if err := unmarshalConfig(data, config, format); err != nil {
			return nil, err
		}
	}

	if v := os.Getenv(envAPIKey); v != "" {
		config.Upstream.APIKey = v
	}
	if v := os.Getenv(envAPIBase); v != "" {
		config.Upstream.BaseURL = v
	}
	if v := os.Getenv(envLogLevel); v != "" {
		config.Log.Level = v
	}
	if v := os.Getenv(envLogFile); v != "" {
		config.Log.File = v
	}

	config.sanitize()
	return config, nil
}

// sanitize replaces invalid values with their defaults.
func (c *Config) sanitize() {
	def := defaultConfig()

	c.Upstream.BaseURL = strings.TrimRight(strings.TrimSpace(c.Upstream.BaseURL), "/")
	if c.Upstream.BaseURL == "" {
		c.Upstream.BaseURL = def.Upstream.BaseURL
	}
	c.Upstream.APIKey = strings.TrimSpace(c.Upstream.APIKey)
	if c.Upstream.Timeout <= 0 {
		c.Upstream.Timeout = def.Upstream.Timeout
	}
	if c.Upstream.MaxLimit < ctsearch.MinLimit || c.Upstream.MaxLimit > ctsearch.MaxLimit {
		c.Upstream.MaxLimit = def.Upstream.MaxLimit
	}
	if c.Upstream.Burst <= 0 {
		c.Upstream.Burst = def.Upstream.Burst
	}
	if c.Defaults.Limit < ctsearch.MinLimit || c.Defaults.Limit > ctsearch.MaxLimit {
		c.Defaults.Limit = def.Defaults.Limit
	}
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		c.Log.Level = def.Log.Level
	}
}

// applyFlags overrides the API key and log level with explicitly set flag values.
// Empty strings leave the current values untouched.
func (c *Config) applyFlags(apiKey, logLevel string) error {
	if apiKey = strings.TrimSpace(apiKey); apiKey != "" {
		c.Upstream.APIKey = apiKey
	}
	if logLevel != "" {
		if _, err := logger.ParseLevel(logLevel); err != nil {
			return err
		}
		c.Log.Level = logLevel
	}
	return nil
}

// level returns the parsed log level. sanitize guarantees it parses.
func (c *Config) level() logger.Level {
	l, _ := logger.ParseLevel(c.Log.Level)
	return l
}

// ClientOptions converts the configuration into the immutable options of a search client.
//
// Parameters:
//   - version: Server version used in the User-Agent header
//   - log: Logger receiving skipped-record warnings and retry diagnostics
//
// Returns:
//   - ctsearch.Options: A value the caller passes to [ctsearch.NewClient]
func (c *Config) ClientOptions(version string, log logger.Logger) ctsearch.Options {
	return ctsearch.Options{
		BaseURL:           c.Upstream.BaseURL,
		APIKey:            c.Upstream.APIKey,
		Timeout:           time.Duration(c.Upstream.Timeout) * time.Second,
		UpstreamMaxLimit:  c.Upstream.MaxLimit,
		RequestsPerSecond: c.Upstream.RequestsPerSecond,
		Burst:             c.Upstream.Burst,
		Version:           version,
		Logger:            log,
	}
}

// openLogOutput returns the log destination: the configured file opened for
// appending, or fallback when no file is set. The returned closer is never nil.
func (c *Config) openLogOutput(fallback io.Writer) (io.Writer, func() error, error) {
	if c.Log.File == "" {
		return fallback, func() error { return nil }, nil
	}

	f, err := os.OpenFile(c.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return f, f.Close, nil
}

// newLogger builds the structured server logger from the configuration.
func (c *Config) newLogger(fallback io.Writer) (*logger.MCPLogger, func() error, error) {
	w, closer, err := c.openLogOutput(fallback)
	if err != nil {
		return nil, nil, err
	}
	return logger.NewMCPLogger(w, c.level()), closer, nil
}
