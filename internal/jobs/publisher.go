package jobs

import "context"

// Publisher is the read path for job status. Every snapshot is a value copy
// of the current record, never an alias into mutable state, so readers can
// hold one across concurrent pipeline updates.
type Publisher struct {
	registry *Registry
}

// NewPublisher creates a publisher over the registry.
func NewPublisher(registry *Registry) *Publisher {
	return &Publisher{registry: registry}
}

// Snapshot returns the current point-in-time view of a job.
// The only failure mode is ErrNotFound (or a store error) propagated from
// the registry; the publisher itself has no side effects.
func (p *Publisher) Snapshot(ctx context.Context, id string) (*Record, error) {
	return p.registry.Get(ctx, id)
}
