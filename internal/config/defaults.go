package config

import "github.com/bobmcallan/metabase-mcp/internal/common"

// NewDefaultConfig creates a configuration with default values.
// Metabase URL and API key have no defaults; they must come from the
// config file or the environment.
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Name:      "metabase-mcp",
			Host:      "0.0.0.0",
			Port:      8080,
			Transport: TransportStreamableHTTP,
		},
		HTTP: HTTPConfig{
			ConnectTimeoutSeconds: 10,
			ReadTimeoutSeconds:    30,
			EnableHTTP2:           false,
		},
		Logging: common.LoggingConfig{
			Level:   "info",
			Outputs: []string{"console"},
		},
	}
}
