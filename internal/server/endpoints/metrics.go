package endpoints

import (
	"net/http"

	"github.com/spf13/cobra"

	"github.com/inkforge/inkforge/internal/metrics"
)

// MetricsEndpoint handles GET /metrics in Prometheus exposition format.
type MetricsEndpoint struct {
	Collector *metrics.Collector
}

func (e *MetricsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/metrics", e.handler
}

func (e *MetricsEndpoint) RequiresInit() bool { return false }
func (e *MetricsEndpoint) Internal() bool     { return false }

func (e *MetricsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	e.Collector.Handler().ServeHTTP(w, r)
}

func (e *MetricsEndpoint) Command(_ func() string) *cobra.Command { return nil }
