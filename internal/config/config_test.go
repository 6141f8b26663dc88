package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	if cfg.Server.Name != "metabase-mcp" {
		t.Errorf("expected default name metabase-mcp, got %s", cfg.Server.Name)
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("expected default host 0.0.0.0, got %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Server.Transport != TransportStreamableHTTP {
		t.Errorf("expected default transport streamable-http, got %s", cfg.Server.Transport)
	}
	if cfg.HTTP.ConnectTimeoutSeconds != 10 {
		t.Errorf("expected default connect timeout 10s, got %v", cfg.HTTP.ConnectTimeoutSeconds)
	}
	if cfg.HTTP.ReadTimeoutSeconds != 30 {
		t.Errorf("expected default read timeout 30s, got %v", cfg.HTTP.ReadTimeoutSeconds)
	}
	if cfg.HTTP.EnableHTTP2 {
		t.Error("expected HTTP/2 disabled by default")
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected default log level info, got %s", cfg.Logging.Level)
	}
}

func TestLoadFromFiles_NoFiles(t *testing.T) {
	cfg, err := LoadFromFiles()
	if err != nil {
		t.Fatalf("LoadFromFiles with no files should not error: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Server.Port)
	}
}

func TestLoadFromFiles_ValidTOML(t *testing.T) {
	dir := t.TempDir()
	tomlPath := filepath.Join(dir, "test.toml")

	content := `
[server]
name = "analytics-bridge"
port = 9090
host = "127.0.0.1"
transport = "stdio"

[metabase]
url = "https://metabase.example.com"
api_key = "mb_test_key"

[http]
connect_timeout_seconds = 5.0
read_timeout_seconds = 60.0
enable_http2 = true

[logging]
level = "debug"
`
	if err := os.WriteFile(tomlPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFiles(tomlPath)
	if err != nil {
		t.Fatalf("LoadFromFiles failed: %v", err)
	}

	if cfg.Server.Name != "analytics-bridge" {
		t.Errorf("expected name analytics-bridge, got %s", cfg.Server.Name)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Server.Transport != TransportStdio {
		t.Errorf("expected transport stdio, got %s", cfg.Server.Transport)
	}
	if cfg.Metabase.URL != "https://metabase.example.com" {
		t.Errorf("expected metabase url, got %s", cfg.Metabase.URL)
	}
	if cfg.Metabase.APIKey != "mb_test_key" {
		t.Errorf("expected api key mb_test_key, got %s", cfg.Metabase.APIKey)
	}
	if cfg.HTTP.ConnectTimeoutSeconds != 5.0 {
		t.Errorf("expected connect timeout 5.0, got %v", cfg.HTTP.ConnectTimeoutSeconds)
	}
	if !cfg.HTTP.EnableHTTP2 {
		t.Error("expected HTTP/2 enabled")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected log level debug, got %s", cfg.Logging.Level)
	}
}

func TestLoadFromFiles_PartialOverride(t *testing.T) {
	dir := t.TempDir()
	tomlPath := filepath.Join(dir, "partial.toml")

	// Only override port; everything else should stay default
	content := `
[server]
port = 3000
`
	if err := os.WriteFile(tomlPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFiles(tomlPath)
	if err != nil {
		t.Fatalf("LoadFromFiles failed: %v", err)
	}

	if cfg.Server.Port != 3000 {
		t.Errorf("expected port 3000, got %d", cfg.Server.Port)
	}
	// Host should remain the default
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("expected default host 0.0.0.0, got %s", cfg.Server.Host)
	}
}

func TestLoadFromFiles_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadFromFiles("/nonexistent/path.toml")
	if err != nil {
		t.Fatalf("missing config file should fall back to defaults: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Server.Port)
	}
}

func TestLoadFromFiles_InvalidTOML(t *testing.T) {
	dir := t.TempDir()
	tomlPath := filepath.Join(dir, "invalid.toml")

	if err := os.WriteFile(tomlPath, []byte("this is not valid {{toml"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := LoadFromFiles(tomlPath)
	if err == nil {
		t.Error("expected error for invalid TOML, got nil")
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := NewDefaultConfig()

	t.Setenv("METABASE_URL", "https://env.example.com")
	t.Setenv("METABASE_API_KEY", "env_key")
	t.Setenv("HOST", "env-host")
	t.Setenv("PORT", "9999")
	t.Setenv("MCP_SERVER_NAME", "env-name")
	t.Setenv("MCP_TRANSPORT", "stdio")
	t.Setenv("HTTP_CONNECT_TIMEOUT", "15.5")
	t.Setenv("HTTP_READ_TIMEOUT", "120")
	t.Setenv("HTTP_ENABLE_HTTP2", "true")
	t.Setenv("LOG_LEVEL", "ERROR")

	applyEnvOverrides(cfg)

	if cfg.Metabase.URL != "https://env.example.com" {
		t.Errorf("expected env metabase url, got %s", cfg.Metabase.URL)
	}
	if cfg.Metabase.APIKey != "env_key" {
		t.Errorf("expected env api key, got %s", cfg.Metabase.APIKey)
	}
	if cfg.Server.Host != "env-host" {
		t.Errorf("expected env host env-host, got %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("expected env port 9999, got %d", cfg.Server.Port)
	}
	if cfg.Server.Name != "env-name" {
		t.Errorf("expected env name env-name, got %s", cfg.Server.Name)
	}
	if cfg.Server.Transport != TransportStdio {
		t.Errorf("expected env transport stdio, got %s", cfg.Server.Transport)
	}
	if cfg.HTTP.ConnectTimeoutSeconds != 15.5 {
		t.Errorf("expected env connect timeout 15.5, got %v", cfg.HTTP.ConnectTimeoutSeconds)
	}
	if cfg.HTTP.ReadTimeoutSeconds != 120 {
		t.Errorf("expected env read timeout 120, got %v", cfg.HTTP.ReadTimeoutSeconds)
	}
	if !cfg.HTTP.EnableHTTP2 {
		t.Error("expected env HTTP/2 enabled")
	}
	if cfg.Logging.Level != "error" {
		t.Errorf("expected env log level lowercased to error, got %s", cfg.Logging.Level)
	}
}

func TestApplyEnvOverrides_InvalidPort(t *testing.T) {
	cfg := NewDefaultConfig()

	t.Setenv("PORT", "not-a-number")

	applyEnvOverrides(cfg)

	if cfg.Server.Port != 8080 {
		t.Errorf("invalid PORT should keep default 8080, got %d", cfg.Server.Port)
	}
}

func TestApplyEnvOverrides_LogFileAddsFileOutput(t *testing.T) {
	cfg := NewDefaultConfig()

	t.Setenv("LOG_FILE", "/var/log/metabase-mcp.log")

	applyEnvOverrides(cfg)

	if cfg.Logging.FilePath != "/var/log/metabase-mcp.log" {
		t.Errorf("expected log file path set, got %s", cfg.Logging.FilePath)
	}
	if !hasOutput(cfg.Logging.Outputs, "file") {
		t.Errorf("expected file output enabled, got %v", cfg.Logging.Outputs)
	}
}

func TestApplyFlagOverrides(t *testing.T) {
	cfg := NewDefaultConfig()

	ApplyFlagOverrides(cfg, true, 4545)

	if cfg.Server.Transport != TransportStdio {
		t.Errorf("expected stdio transport from flag, got %s", cfg.Server.Transport)
	}
	if cfg.Server.Port != 4545 {
		t.Errorf("expected port 4545 from flag, got %d", cfg.Server.Port)
	}
}

func TestValidate_MissingURLAndKey(t *testing.T) {
	cfg := NewDefaultConfig()

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error for missing metabase url and api key")
	}

	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %T", err)
	}
	if !strings.Contains(err.Error(), "Config.Metabase.URL") {
		t.Errorf("expected error to name the URL field, got %q", err.Error())
	}
	if !strings.Contains(err.Error(), "Config.Metabase.APIKey") {
		t.Errorf("expected error to name the APIKey field, got %q", err.Error())
	}
}

func TestValidate_TimeoutOutOfRange(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Metabase.URL = "https://metabase.example.com"
	cfg.Metabase.APIKey = "key"
	cfg.HTTP.ConnectTimeoutSeconds = 0.5
	cfg.HTTP.ReadTimeoutSeconds = 600

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error for out-of-range timeouts")
	}
	if !strings.Contains(err.Error(), "ConnectTimeoutSeconds") {
		t.Errorf("expected error to name connect timeout, got %q", err.Error())
	}
	if !strings.Contains(err.Error(), "ReadTimeoutSeconds") {
		t.Errorf("expected error to name read timeout, got %q", err.Error())
	}
}

func TestValidate_BadTransport(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Metabase.URL = "https://metabase.example.com"
	cfg.Metabase.APIKey = "key"
	cfg.Server.Transport = "websocket"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error for unsupported transport")
	}
	if !strings.Contains(err.Error(), "streamable-http stdio") {
		t.Errorf("expected error to list allowed transports, got %q", err.Error())
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Metabase.URL = "https://metabase.example.com"
	cfg.Metabase.APIKey = "mb_key"

	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config to pass, got %v", err)
	}
}

func TestHTTPConfig_Durations(t *testing.T) {
	h := HTTPConfig{ConnectTimeoutSeconds: 2.5, ReadTimeoutSeconds: 45}

	if h.ConnectTimeout() != 2500*time.Millisecond {
		t.Errorf("expected 2.5s connect timeout, got %v", h.ConnectTimeout())
	}
	if h.ReadTimeout() != 45*time.Second {
		t.Errorf("expected 45s read timeout, got %v", h.ReadTimeout())
	}
}
