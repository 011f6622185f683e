package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestConfig_SetDefaults(t *testing.T) {
	t.Parallel()

	var cfg Config
	cfg.SetDefaults()

	if cfg.Server.HTTPAddr != "0.0.0.0:3001" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, "0.0.0.0:3001")
	}
	if cfg.Server.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.Server.LogLevel)
	}
	if len(cfg.Server.AllowedOrigins) != 1 || cfg.Server.AllowedOrigins[0] != "*" {
		t.Errorf("AllowedOrigins = %v, want [*]", cfg.Server.AllowedOrigins)
	}
	if cfg.Browserbase.BaseURL != "https://api.browserbase.com/v1" {
		t.Errorf("BaseURL = %q", cfg.Browserbase.BaseURL)
	}
	if cfg.Browserbase.ReleaseTimeout != "15s" {
		t.Errorf("ReleaseTimeout = %q, want 15s", cfg.Browserbase.ReleaseTimeout)
	}
	if cfg.Artifacts.Backend != BackendMemory {
		t.Errorf("Artifacts.Backend = %q, want memory", cfg.Artifacts.Backend)
	}
	if cfg.Artifacts.Redis.KeyPrefix != "sessiongate:artifacts:" {
		t.Errorf("KeyPrefix = %q", cfg.Artifacts.Redis.KeyPrefix)
	}
}

func TestConfig_SetDefaults_PreservesExistingValues(t *testing.T) {
	t.Parallel()

	cfg := Config{
		Server:    ServerConfig{HTTPAddr: ":9090", AllowedOrigins: []string{"https://app.example.com"}},
		Artifacts: ArtifactsConfig{Backend: BackendRedis, TTL: "0"},
	}
	cfg.SetDefaults()

	if cfg.Server.HTTPAddr != ":9090" {
		t.Errorf("HTTPAddr was overwritten: got %q", cfg.Server.HTTPAddr)
	}
	if cfg.Server.AllowedOrigins[0] != "https://app.example.com" {
		t.Errorf("AllowedOrigins was overwritten: got %v", cfg.Server.AllowedOrigins)
	}
	if cfg.Artifacts.Backend != BackendRedis {
		t.Errorf("Backend was overwritten: got %q", cfg.Artifacts.Backend)
	}
	if cfg.Artifacts.TTL != "0" {
		t.Errorf("TTL was overwritten: got %q", cfg.Artifacts.TTL)
	}
}

func TestConfig_SetDevDefaults(t *testing.T) {
	t.Parallel()

	cfg := Config{DevMode: true}
	cfg.SetDefaults()
	cfg.SetDevDefaults()
	if cfg.Server.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug in dev mode", cfg.Server.LogLevel)
	}

	prod := Config{}
	prod.SetDefaults()
	prod.SetDevDefaults()
	if prod.Server.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info outside dev mode", prod.Server.LogLevel)
	}
}

func TestDuration(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want time.Duration
	}{
		{in: "15s", want: 15 * time.Second},
		{in: "1h", want: time.Hour},
		{in: "0", want: 0},
		{in: "", want: 0},
		{in: "soon", want: 0},
	}
	for _, tt := range tests {
		if got := Duration(tt.in); got != tt.want {
			t.Errorf("Duration(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestApplyPortOverride(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		addr string
		port string
		want string
	}{
		{name: "no override", addr: "0.0.0.0:3001", port: "", want: "0.0.0.0:3001"},
		{name: "replaces port", addr: "0.0.0.0:3001", port: "8080", want: "0.0.0.0:8080"},
		{name: "empty host", addr: ":3001", port: "8080", want: ":8080"},
		{name: "bare host", addr: "127.0.0.1", port: "9000", want: "127.0.0.1:9000"},
		{name: "ipv6", addr: "[::1]:3001", port: "4000", want: "[::1]:4000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := applyPortOverride(tt.addr, tt.port); got != tt.want {
				t.Errorf("applyPortOverride(%q, %q) = %q, want %q", tt.addr, tt.port, got, tt.want)
			}
		})
	}
}

func TestFindConfigFileInPaths(t *testing.T) {
	t.Parallel()

	empty := t.TempDir()
	withYML := t.TempDir()
	path := filepath.Join(withYML, "sessiongate.yml")
	if err := os.WriteFile(path, []byte("dev_mode: true\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	// A binary named like the config must not match.
	if err := os.WriteFile(filepath.Join(empty, "sessiongate"), []byte{0x7f}, 0o600); err != nil {
		t.Fatal(err)
	}

	if got := findConfigFileInPaths([]string{empty, withYML}); got != path {
		t.Errorf("findConfigFileInPaths() = %q, want %q", got, path)
	}
	if got := findConfigFileInPaths([]string{empty}); got != "" {
		t.Errorf("findConfigFileInPaths() = %q, want empty", got)
	}
}

// Loader tests share the global viper instance and the process environment,
// so they do not run in parallel.

func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
}

func TestLoadConfig_FromFile(t *testing.T) {
	resetViper(t)
	t.Setenv(portEnv, "")

	path := filepath.Join(t.TempDir(), "sessiongate.yaml")
	content := `
server:
  http_addr: "127.0.0.1:4000"
  log_level: warn
  allowed_origins:
    - https://app.example.com
browserbase:
  release_timeout: 5s
artifacts:
  backend: redis
  ttl: 30m
  redis:
    addr: "localhost:6379"
    db: 2
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	InitViper(path)
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Server.HTTPAddr != "127.0.0.1:4000" {
		t.Errorf("HTTPAddr = %q", cfg.Server.HTTPAddr)
	}
	if cfg.Server.LogLevel != "warn" {
		t.Errorf("LogLevel = %q", cfg.Server.LogLevel)
	}
	if cfg.Artifacts.Backend != BackendRedis || cfg.Artifacts.Redis.DB != 2 {
		t.Errorf("Artifacts = %+v", cfg.Artifacts)
	}
	if Duration(cfg.Browserbase.ReleaseTimeout) != 5*time.Second {
		t.Errorf("ReleaseTimeout = %q", cfg.Browserbase.ReleaseTimeout)
	}
	if ConfigFileUsed() != path {
		t.Errorf("ConfigFileUsed() = %q, want %q", ConfigFileUsed(), path)
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	resetViper(t)
	t.Setenv("SESSIONGATE_SERVER_LOG_LEVEL", "error")
	t.Setenv("SESSIONGATE_ARTIFACTS_TTL", "2h")
	t.Setenv(portEnv, "8088")

	// No sessiongate.yaml next to the tests: env vars only.
	InitViper("")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Server.LogLevel != "error" {
		t.Errorf("LogLevel = %q, want error", cfg.Server.LogLevel)
	}
	if cfg.Artifacts.TTL != "2h" {
		t.Errorf("TTL = %q, want 2h", cfg.Artifacts.TTL)
	}
	if cfg.Server.HTTPAddr != "0.0.0.0:8088" {
		t.Errorf("HTTPAddr = %q, want 0.0.0.0:8088", cfg.Server.HTTPAddr)
	}
}

func TestLoadConfig_InvalidFile(t *testing.T) {
	resetViper(t)
	t.Setenv(portEnv, "")

	path := filepath.Join(t.TempDir(), "sessiongate.yaml")
	if err := os.WriteFile(path, []byte("artifacts:\n  backend: s3\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	InitViper(path)
	if _, err := LoadConfig(); err == nil {
		t.Fatal("LoadConfig() with an unknown backend should fail")
	}
}
