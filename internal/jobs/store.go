package jobs

import "context"

// Store persists job records.
//
// Implementations must serialize Update calls for the same job id (the
// mutate callback runs under whatever locking the backend provides) and
// must return copies from Get so readers never alias stored state.
//
// The in-memory store is for tests and single-node development; production
// deployments use the Postgres store, which survives process restarts.
type Store interface {
	// Create inserts a new record. The record's ID must be unique.
	Create(ctx context.Context, rec *Record) error

	// Get returns a copy of the record, or ErrNotFound.
	Get(ctx context.Context, id string) (*Record, error)

	// Update loads the record, applies mutate under the store's write lock,
	// and persists the result. If mutate returns an error nothing is written
	// and the error is returned unchanged. Returns a copy of the updated
	// record, or ErrNotFound for an unknown id.
	Update(ctx context.Context, id string, mutate func(*Record) error) (*Record, error)

	// List returns copies of all records, newest first.
	List(ctx context.Context) ([]*Record, error)

	// Close releases backend resources.
	Close() error
}
