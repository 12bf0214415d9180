package config

import "github.com/inkforge/inkforge/internal/jobs"

// DefaultConfig returns the shipped defaults. The submission rate limit of
// 3 per hour matches the product's one-book-at-a-time posture; operators
// raise it via config.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: "8080",
		},
		Pipeline: PipelineConfig{
			BaseURL:        "http://localhost:9000",
			Secret:         "${INKFORGE_PIPELINE_SECRET}",
			TimeoutSeconds: 120,
		},
		RateLimit: RateLimitConfig{
			Limit:         3,
			WindowSeconds: 3600,
			Backend:       "memory",
			RedisURL:      "",
		},
		Store: StoreConfig{
			Backend:     "memory",
			PostgresURL: "",
		},
		Submission: jobs.DefaultLimits(),
	}
}
