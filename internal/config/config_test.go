package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// clearEnv unsets every variable the config reads so the host environment
// cannot leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"STORYSCOPE_CONFIG", "STORYSCOPE_POLICY", "STORYSCOPE_SEQUENTIAL", "STORYSCOPE_BATCH_WORKERS",
		"STORYSCOPE_INSIGHTS", "STORYSCOPE_INSIGHTS_PROVIDER", "STORYSCOPE_INSIGHTS_MODEL",
		"STORYSCOPE_INSIGHTS_BASE_URL", "STORYSCOPE_INSIGHTS_TIMEOUT", "STORYSCOPE_INSIGHTS_RETRIES",
		"STORYSCOPE_INSIGHTS_TOKEN_BUDGET", "STORYSCOPE_INSIGHTS_RPM", "STORYSCOPE_INSIGHTS_BURST", "STORYSCOPE_INSIGHTS_CACHE_TTL",
		"OPENAI_API_KEY", "GEMINI_API_KEY", "STORYSCOPE_REPORT_DIR", "STORYSCOPE_ADDR",
		"STORYSCOPE_OTEL_ENDPOINT", "STORYSCOPE_SERVICE_NAME",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.validate(); err != nil {
		t.Fatalf("Default().validate() error = %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		env     map[string]string
		wantErr string
		check   func(t *testing.T, cfg *Config)
	}{
		{
			name: "overrides from file",
			body: `
engine:
  policy_file: policy.yaml
  batch_workers: 2
insights:
  provider: gemini
  timeout: 15s
output:
  report_dir: /tmp/reports
`,
			check: func(t *testing.T, cfg *Config) {
				if cfg.Engine.BatchWorkers != 2 || cfg.Engine.PolicyFile != "policy.yaml" {
					t.Errorf("engine = %+v", cfg.Engine)
				}
				if cfg.Insights.Provider != "gemini" || cfg.Insights.Timeout != 15*time.Second {
					t.Errorf("insights = %+v", cfg.Insights)
				}
				if cfg.Insights.MaxRetries != 3 {
					t.Errorf("max retries = %d, want default 3", cfg.Insights.MaxRetries)
				}
				if cfg.Output.ReportDir != "/tmp/reports" {
					t.Errorf("report dir = %q", cfg.Output.ReportDir)
				}
			},
		},
		{
			name: "environment wins over file",
			body: "engine:\n  batch_workers: 2\n",
			env: map[string]string{
				"STORYSCOPE_BATCH_WORKERS": "8",
				"STORYSCOPE_ADDR":          ":9090",
				"OPENAI_API_KEY":           "sk-test",
			},
			check: func(t *testing.T, cfg *Config) {
				if cfg.Engine.BatchWorkers != 8 {
					t.Errorf("batch workers = %d, want 8", cfg.Engine.BatchWorkers)
				}
				if cfg.Server.Addr != ":9090" {
					t.Errorf("addr = %q", cfg.Server.Addr)
				}
				if cfg.Insights.APIKey() != "sk-test" {
					t.Errorf("api key = %q", cfg.Insights.APIKey())
				}
			},
		},
		{
			name:    "zero batch workers",
			body:    "engine:\n  batch_workers: 0\n",
			wantErr: "BatchWorkers",
		},
		{
			name:    "unknown provider",
			body:    "insights:\n  provider: claude\n",
			wantErr: "Provider",
		},
		{
			name:    "unknown field",
			body:    "engine:\n  threads: 4\n",
			wantErr: "field threads not found",
		},
		{
			name:    "insights enabled without key",
			body:    "insights:\n  enabled: true\n  provider: openai\n",
			wantErr: "needs an API key",
		},
		{
			name:    "negative cache ttl",
			body:    "insights:\n  cache_ttl: -1s\n",
			wantErr: "CacheTTL",
		},
		{
			name: "cache disabled from env",
			env:  map[string]string{"STORYSCOPE_INSIGHTS_CACHE_TTL": "0s"},
			check: func(t *testing.T, cfg *Config) {
				if cfg.Insights.CacheTTL != 0 {
					t.Errorf("cache ttl = %v, want 0", cfg.Insights.CacheTTL)
				}
			},
		},
		{
			name: "mock provider needs no key",
			body: "insights:\n  enabled: true\n  provider: mock\n",
			check: func(t *testing.T, cfg *Config) {
				if !cfg.Insights.Enabled {
					t.Error("insights not enabled")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			cfg, err := LoadFile(writeConfig(t, tt.body))
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("LoadFile() error = %v, want containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("LoadFile() error = %v", err)
			}
			tt.check(t, cfg)
		})
	}
}

func TestLoadFileMissing(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if cfg.Engine.BatchWorkers != 4 || cfg.Server.Addr != "127.0.0.1:8080" {
		t.Errorf("got %+v, want defaults", cfg)
	}
}

func TestPath(t *testing.T) {
	clearEnv(t)
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	t.Setenv("XDG_CONFIG_HOME", "")
	if got, want := Path(), filepath.Join(home, ".config", "storyscope", "config.yaml"); got != want {
		t.Errorf("Path() = %q, want %q", got, want)
	}

	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	if got := Path(); got != filepath.Join("/xdg", "storyscope", "config.yaml") {
		t.Errorf("Path() with XDG = %q", got)
	}

	t.Setenv("STORYSCOPE_CONFIG", "~/custom.yaml")
	if got := Path(); got != filepath.Join(home, "custom.yaml") {
		t.Errorf("Path() with STORYSCOPE_CONFIG = %q", got)
	}
}
