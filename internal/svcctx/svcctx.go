// Package svcctx provides service context for dependency injection via context.
// This package is separate from server to avoid import cycles with endpoints.
package svcctx

import (
	"context"
	"log/slog"

	"github.com/inkforge/inkforge/internal/config"
	"github.com/inkforge/inkforge/internal/jobs"
	"github.com/inkforge/inkforge/internal/metrics"
	"github.com/inkforge/inkforge/internal/pipeline"
	"github.com/inkforge/inkforge/internal/ratelimit"
)

// Services holds all core services that flow through context.
// Components extract what they need via the individual extractors.
type Services struct {
	Registry  *jobs.Registry
	Publisher *jobs.Publisher
	Limiter   ratelimit.Limiter
	Pipeline  *pipeline.Client
	ConfigMgr *config.Manager
	Metrics   *metrics.Collector
	Logger    *slog.Logger
}

type servicesKey struct{}

// WithServices returns a new context with services attached.
func WithServices(ctx context.Context, s *Services) context.Context {
	return context.WithValue(ctx, servicesKey{}, s)
}

// ServicesFrom extracts the full Services struct from context.
// Returns nil if not present.
func ServicesFrom(ctx context.Context) *Services {
	s, _ := ctx.Value(servicesKey{}).(*Services)
	return s
}

// RegistryFrom extracts the job registry from context.
func RegistryFrom(ctx context.Context) *jobs.Registry {
	if s := ServicesFrom(ctx); s != nil {
		return s.Registry
	}
	return nil
}

// PublisherFrom extracts the status publisher from context.
func PublisherFrom(ctx context.Context) *jobs.Publisher {
	if s := ServicesFrom(ctx); s != nil {
		return s.Publisher
	}
	return nil
}

// LimiterFrom extracts the admission rate limiter from context.
func LimiterFrom(ctx context.Context) ratelimit.Limiter {
	if s := ServicesFrom(ctx); s != nil {
		return s.Limiter
	}
	return nil
}

// PipelineFrom extracts the pipeline client from context.
func PipelineFrom(ctx context.Context) *pipeline.Client {
	if s := ServicesFrom(ctx); s != nil {
		return s.Pipeline
	}
	return nil
}

// ConfigFrom extracts the config manager from context.
func ConfigFrom(ctx context.Context) *config.Manager {
	if s := ServicesFrom(ctx); s != nil {
		return s.ConfigMgr
	}
	return nil
}

// MetricsFrom extracts the metrics collector from context.
func MetricsFrom(ctx context.Context) *metrics.Collector {
	if s := ServicesFrom(ctx); s != nil {
		return s.Metrics
	}
	return nil
}

// LoggerFrom extracts the logger from context.
func LoggerFrom(ctx context.Context) *slog.Logger {
	if s := ServicesFrom(ctx); s != nil {
		return s.Logger
	}
	return nil
}
