package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Engine    EngineConfig    `yaml:"engine"`
	Insights  InsightsConfig  `yaml:"insights"`
	Output    OutputConfig    `yaml:"output"`
	Server    ServerConfig    `yaml:"server"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

type EngineConfig struct {
	// PolicyFile is an optional YAML scoring policy decoded over the defaults.
	PolicyFile   string `yaml:"policy_file" env:"STORYSCOPE_POLICY"`
	Sequential   bool   `yaml:"sequential" env:"STORYSCOPE_SEQUENTIAL"`
	BatchWorkers int    `yaml:"batch_workers" env:"STORYSCOPE_BATCH_WORKERS" validate:"min=1,max=64"`
}

type InsightsConfig struct {
	Enabled     bool            `yaml:"enabled" env:"STORYSCOPE_INSIGHTS"`
	Provider    string          `yaml:"provider" env:"STORYSCOPE_INSIGHTS_PROVIDER" validate:"oneof=openai gemini mock"`
	Model       string          `yaml:"model" env:"STORYSCOPE_INSIGHTS_MODEL"`
	BaseURL     string          `yaml:"base_url" env:"STORYSCOPE_INSIGHTS_BASE_URL" validate:"omitempty,url"`
	Timeout     time.Duration   `yaml:"timeout" env:"STORYSCOPE_INSIGHTS_TIMEOUT" validate:"min=1s,max=10m"`
	MaxRetries  int             `yaml:"max_retries" env:"STORYSCOPE_INSIGHTS_RETRIES" validate:"min=0,max=10"`
	TokenBudget int             `yaml:"token_budget" env:"STORYSCOPE_INSIGHTS_TOKEN_BUDGET" validate:"min=0,max=1000000"`
	RateLimit   RateLimitConfig `yaml:"rate_limit"`

	// CacheTTL keeps completions under the report directory; zero disables.
	CacheTTL time.Duration `yaml:"cache_ttl" env:"STORYSCOPE_INSIGHTS_CACHE_TTL" validate:"min=0s"`

	// Keys come from the environment only and are never written to YAML.
	OpenAIKey string `yaml:"-" env:"OPENAI_API_KEY"`
	GeminiKey string `yaml:"-" env:"GEMINI_API_KEY"`
}

// APIKey returns the key for the configured provider.
func (c InsightsConfig) APIKey() string {
	switch c.Provider {
	case "openai":
		return c.OpenAIKey
	case "gemini":
		return c.GeminiKey
	default:
		return ""
	}
}

type OutputConfig struct {
	ReportDir string `yaml:"report_dir" env:"STORYSCOPE_REPORT_DIR" validate:"required"`
}

type ServerConfig struct {
	Addr string `yaml:"addr" env:"STORYSCOPE_ADDR" validate:"required,hostname_port"`
}

type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"STORYSCOPE_OTEL_ENDPOINT" validate:"omitempty,url"`
	ServiceName  string `yaml:"service_name" env:"STORYSCOPE_SERVICE_NAME" validate:"required"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Engine: EngineConfig{
			BatchWorkers: 4,
		},
		Insights: DefaultInsights(),
		Output: OutputConfig{
			ReportDir: defaultReportDir(),
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:8080",
		},
		Telemetry: TelemetryConfig{
			ServiceName: "storyscope",
		},
	}
}

// Load reads .env, the config file at path (Path when empty, skipped if it
// does not exist) and then the environment overrides, and validates the
// result.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()
	if path == "" {
		path = Path()
	}
	return LoadFile(expandTilde(path))
}

// LoadFile is Load for an explicit path. A missing file yields the defaults
// with environment overrides applied.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	f, err := os.Open(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("reading config file: %w", err)
	default:
		defer f.Close()
		if err := decode(f, &cfg); err != nil {
			return nil, err
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

func decode(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return fmt.Errorf("parsing config file: %w", err)
	}
	return nil
}

// Path locates the config file.
func Path() string {
	// 1. Explicit config path via environment variable
	if path := os.Getenv("STORYSCOPE_CONFIG"); path != "" {
		return expandTilde(path)
	}

	// 2. XDG_CONFIG_HOME (XDG Base Directory Specification)
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "storyscope", "config.yaml")
	}

	// 3. Default to ~/.config/storyscope/config.yaml (XDG fallback)
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "storyscope", "config.yaml")
}

func defaultReportDir() string {
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, "storyscope", "reports")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "storyscope", "reports")
}

// expandTilde expands a tilde (~) at the beginning of a path to the user's home directory
func expandTilde(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

func (c *Config) validate() error {
	c.Output.ReportDir = expandTilde(c.Output.ReportDir)
	c.Engine.PolicyFile = expandTilde(c.Engine.PolicyFile)

	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	if c.Insights.Enabled && c.Insights.Provider != "mock" && c.Insights.APIKey() == "" {
		return fmt.Errorf("config validation failed: insights provider %s needs an API key", c.Insights.Provider)
	}
	return nil
}
