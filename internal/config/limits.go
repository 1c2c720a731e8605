package config

import "time"

type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" env:"STORYSCOPE_INSIGHTS_RPM" validate:"min=1,max=1000"`
	BurstSize         int `yaml:"burst_size" env:"STORYSCOPE_INSIGHTS_BURST" validate:"min=1,max=100"`
}

// DefaultInsights returns the insights settings: disabled, OpenAI, and the
// request limits the hosted APIs tolerate on a free tier.
func DefaultInsights() InsightsConfig {
	return InsightsConfig{
		Provider:    "openai",
		Timeout:     60 * time.Second,
		MaxRetries:  3,
		TokenBudget: 8000,
		CacheTTL:    24 * time.Hour,
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 30,
			BurstSize:         5,
		},
	}
}
