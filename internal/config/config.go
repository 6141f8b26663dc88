package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"

	"github.com/bobmcallan/metabase-mcp/internal/common"
)

// Transport selects how the MCP server speaks to its peer.
type Transport string

const (
	TransportStreamableHTTP Transport = "streamable-http"
	TransportStdio          Transport = "stdio"
)

// Config represents the application configuration.
type Config struct {
	Server   ServerConfig         `toml:"server"`
	Metabase MetabaseConfig       `toml:"metabase"`
	HTTP     HTTPConfig           `toml:"http"`
	Logging  common.LoggingConfig `toml:"logging"`
}

// ServerConfig contains MCP server settings.
type ServerConfig struct {
	Name      string    `toml:"name" validate:"required"`
	Host      string    `toml:"host"`
	Port      int       `toml:"port" validate:"gte=1,lte=65535"`
	Transport Transport `toml:"transport" validate:"oneof=streamable-http stdio"`
}

// MetabaseConfig contains the remote Metabase connection settings.
type MetabaseConfig struct {
	URL    string `toml:"url" validate:"required,url"`
	APIKey string `toml:"api_key" validate:"required"`
}

// HTTPConfig contains outbound HTTP client settings. Timeouts are in
// seconds to match the METABASE_* environment contract.
type HTTPConfig struct {
	ConnectTimeoutSeconds float64 `toml:"connect_timeout_seconds" validate:"gte=1,lte=60"`
	ReadTimeoutSeconds    float64 `toml:"read_timeout_seconds" validate:"gte=5,lte=300"`
	EnableHTTP2           bool    `toml:"enable_http2"`
}

// ConnectTimeout returns the connect timeout as a duration.
func (h HTTPConfig) ConnectTimeout() time.Duration {
	return time.Duration(h.ConnectTimeoutSeconds * float64(time.Second))
}

// ReadTimeout returns the read timeout as a duration.
func (h HTTPConfig) ReadTimeout() time.Duration {
	return time.Duration(h.ReadTimeoutSeconds * float64(time.Second))
}

// ConfigurationError indicates the process cannot start with the supplied
// configuration. It is fatal at startup and never produced per-request.
type ConfigurationError struct {
	Err error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %v", e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// LoadFromFile loads configuration with priority: defaults -> file -> env.
func LoadFromFile(path string) (*Config, error) {
	if path == "" {
		return LoadFromFiles()
	}
	return LoadFromFiles(path)
}

// LoadFromFiles loads configuration from multiple files with priority:
// defaults -> file1 -> file2 -> ... -> env.
// Later files override earlier files. A missing file is skipped so the
// default config path works without a file present.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		err = toml.Unmarshal(data, config)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config.
// Names follow the deployment contract of the upstream Metabase service.
func applyEnvOverrides(config *Config) {
	if url := os.Getenv("METABASE_URL"); url != "" {
		config.Metabase.URL = url
	}
	if key := os.Getenv("METABASE_API_KEY"); key != "" {
		config.Metabase.APIKey = key
	}
	if host := os.Getenv("HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if name := os.Getenv("MCP_SERVER_NAME"); name != "" {
		config.Server.Name = name
	}
	if transport := os.Getenv("MCP_TRANSPORT"); transport != "" {
		config.Server.Transport = Transport(transport)
	}
	if ct := os.Getenv("HTTP_CONNECT_TIMEOUT"); ct != "" {
		if v, err := strconv.ParseFloat(ct, 64); err == nil {
			config.HTTP.ConnectTimeoutSeconds = v
		}
	}
	if rt := os.Getenv("HTTP_READ_TIMEOUT"); rt != "" {
		if v, err := strconv.ParseFloat(rt, 64); err == nil {
			config.HTTP.ReadTimeoutSeconds = v
		}
	}
	if h2 := os.Getenv("HTTP_ENABLE_HTTP2"); h2 != "" {
		if v, err := strconv.ParseBool(h2); err == nil {
			config.HTTP.EnableHTTP2 = v
		}
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		config.Logging.Level = strings.ToLower(level)
	}
	if file := os.Getenv("LOG_FILE"); file != "" {
		config.Logging.FilePath = file
		if !hasOutput(config.Logging.Outputs, "file") {
			config.Logging.Outputs = append(config.Logging.Outputs, "file")
		}
	}
}

func hasOutput(outputs []string, name string) bool {
	for _, o := range outputs {
		if o == name {
			return true
		}
	}
	return false
}

// ApplyFlagOverrides applies command-line flag overrides to config.
func ApplyFlagOverrides(config *Config, stdio bool, port int) {
	if stdio {
		config.Server.Transport = TransportStdio
	}
	if port > 0 {
		config.Server.Port = port
	}
}

// Validate checks the configuration against its declared constraints and
// wraps any failure in a ConfigurationError with a field-by-field report.
func (c *Config) Validate() error {
	v := validator.New()
	err := v.Struct(c)
	if err == nil {
		return nil
	}

	var vErrs validator.ValidationErrors
	if !errors.As(err, &vErrs) {
		return &ConfigurationError{Err: err}
	}

	var sb strings.Builder
	for i, fe := range vErrs {
		if i > 0 {
			sb.WriteString("; ")
		}
		sb.WriteString(describeFieldError(fe))
	}
	return &ConfigurationError{Err: errors.New(sb.String())}
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Namespace())
	case "url":
		return fmt.Sprintf("%s must be a valid URL", fe.Namespace())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", fe.Namespace(), fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be >= %s", fe.Namespace(), fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be <= %s", fe.Namespace(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Namespace(), fe.Tag())
	}
}
