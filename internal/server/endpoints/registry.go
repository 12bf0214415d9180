package endpoints

import (
	"github.com/inkforge/inkforge/internal/api"
	"github.com/inkforge/inkforge/internal/metrics"
)

// Config holds dependencies needed by some endpoints.
type Config struct {
	Metrics *metrics.Collector
}

// All returns all endpoint instances.
func All(cfg Config) []api.Endpoint {
	return []api.Endpoint{
		// Health endpoints
		&HealthEndpoint{},
		&ReadyEndpoint{},
		&MetricsEndpoint{Collector: cfg.Metrics},

		// Public job endpoints
		&SubmitJobEndpoint{},
		&ListJobsEndpoint{},
		&GetJobEndpoint{},
		&CancelJobEndpoint{},
		&ArtifactEndpoint{},
		&JobEventsEndpoint{},

		// Pipeline write contract (shared-secret auth)
		&AdvanceJobEndpoint{},
		&FailJobEndpoint{},
	}
}

// JobCommands returns the endpoints exposed under the "jobs" CLI group.
func JobCommands() []api.Endpoint {
	return []api.Endpoint{
		&SubmitJobEndpoint{},
		&ListJobsEndpoint{},
		&GetJobEndpoint{},
		&CancelJobEndpoint{},
		&ArtifactEndpoint{},
	}
}
