package config

import (
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != "8080" {
		t.Errorf("unexpected server defaults: %+v", cfg.Server)
	}
	if cfg.RateLimit.Limit != 3 {
		t.Errorf("rate limit = %d, want 3", cfg.RateLimit.Limit)
	}
	if cfg.RateLimit.Window() != time.Hour {
		t.Errorf("window = %v, want 1h", cfg.RateLimit.Window())
	}
	if cfg.Pipeline.Timeout() != 2*time.Minute {
		t.Errorf("pipeline timeout = %v, want 2m", cfg.Pipeline.Timeout())
	}
	if cfg.Store.Backend != "memory" {
		t.Errorf("store backend = %q, want memory", cfg.Store.Backend)
	}
	if cfg.Submission.MaxChapters != 30 || cfg.Submission.DefaultTier != "standard" {
		t.Errorf("unexpected submission defaults: %+v", cfg.Submission)
	}
}

func TestResolveEnvVars(t *testing.T) {
	t.Setenv("INKFORGE_TEST_SECRET", "s3cret")

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"env reference", "${INKFORGE_TEST_SECRET}", "s3cret"},
		{"embedded reference", "token-${INKFORGE_TEST_SECRET}-suffix", "token-s3cret-suffix"},
		{"unset variable", "${INKFORGE_TEST_UNSET}", ""},
		{"plain string", "literal-value", "literal-value"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolveEnvVars(tt.input); got != tt.want {
				t.Errorf("ResolveEnvVars(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestPipelineConfigResolveSecret(t *testing.T) {
	t.Setenv("INKFORGE_PIPELINE_SECRET", "hunter2")

	p := PipelineConfig{Secret: "${INKFORGE_PIPELINE_SECRET}"}
	if got := p.ResolveSecret(); got != "hunter2" {
		t.Errorf("ResolveSecret = %q, want hunter2", got)
	}
}
