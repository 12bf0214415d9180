package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Registry is the writer-of-record for jobs. It owns the state machine:
// every mutation goes through Advance, Fail, or RequestCancel, which check
// transition legality before anything is persisted. The external generation
// pipeline is the sole writer; readers go through Get or the Publisher.
type Registry struct {
	store  Store
	limits Limits
	logger *slog.Logger
	now    func() time.Time
}

// NewRegistry creates a registry backed by the given store.
func NewRegistry(store Store, limits Limits, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		store:  store,
		limits: limits,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Create validates params, allocates a new pending record, and persists it.
// Validation happens before anything else so a bad request never consumes
// pipeline or storage resources.
func (r *Registry) Create(ctx context.Context, params Params) (*Record, error) {
	if err := r.limits.Validate(&params); err != nil {
		return nil, err
	}

	rec := NewRecord(params)
	rec.CreatedAt = r.now()
	rec.UpdatedAt = rec.CreatedAt
	if err := r.store.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	r.logger.Info("job created", "job_id", rec.ID, "topic", params.Topic, "tier", params.Tier)
	return rec.Clone(), nil
}

// Get returns a snapshot copy of the record, or ErrNotFound.
func (r *Registry) Get(ctx context.Context, id string) (*Record, error) {
	return r.store.Get(ctx, id)
}

// List returns snapshot copies of all records, newest first.
func (r *Registry) List(ctx context.Context) ([]*Record, error) {
	return r.store.List(ctx)
}

// Advance moves a job to the next stage. It rejects transitions that are
// not immediately reachable from the current stage, any transition out of a
// terminal state, and progress regressions. On StageCompleted progress is
// forced to 100.
func (r *Registry) Advance(ctx context.Context, id string, next Stage, progress int, message string, logMessage string) (*Record, error) {
	if !next.Valid() {
		return nil, &InvalidTransitionError{JobID: id, To: next, Reason: "unknown stage"}
	}
	if progress < 0 || progress > 100 {
		return nil, &InvalidTransitionError{JobID: id, To: next, Reason: fmt.Sprintf("progress %d out of range", progress)}
	}

	rec, err := r.store.Update(ctx, id, func(rec *Record) error {
		if !rec.Status.CanTransition(next) {
			return &InvalidTransitionError{JobID: id, From: rec.Status, To: next}
		}
		if progress < rec.Progress {
			return &InvalidTransitionError{
				JobID: id, From: rec.Status, To: next,
				Reason: fmt.Sprintf("progress regression %d -> %d", rec.Progress, progress),
			}
		}

		now := r.now()
		rec.Status = next
		rec.Progress = progress
		if next == StageCompleted {
			rec.Progress = 100
		}
		rec.CurrentStage = string(next)
		rec.Message = message
		rec.UpdatedAt = now
		if logMessage != "" {
			rec.AppendLog(now, logMessage)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("job advanced", "job_id", id, "stage", next, "progress", rec.Progress)
	return rec, nil
}

// Fail marks a job as failed from any non-terminal stage.
func (r *Registry) Fail(ctx context.Context, id string, errMsg string) (*Record, error) {
	rec, err := r.store.Update(ctx, id, func(rec *Record) error {
		if !rec.Status.CanTransition(StageFailed) {
			return &InvalidTransitionError{JobID: id, From: rec.Status, To: StageFailed}
		}
		now := r.now()
		rec.Status = StageFailed
		rec.CurrentStage = string(StageFailed)
		rec.Error = errMsg
		rec.Message = "generation failed"
		rec.UpdatedAt = now
		rec.AppendLog(now, "job failed: "+errMsg)
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.logger.Warn("job failed", "job_id", id, "error", errMsg)
	return rec, nil
}

// SetArtifact records the artifact location and book name reported by the
// pipeline. Only legal while the job is still non-terminal or on the
// completing update itself, so it is applied through Advance's update path.
func (r *Registry) SetArtifact(ctx context.Context, id, bookName, artifactPath string) (*Record, error) {
	rec, err := r.store.Update(ctx, id, func(rec *Record) error {
		if rec.Status.Terminal() {
			return &InvalidTransitionError{JobID: id, From: rec.Status, To: rec.Status, Reason: "record is terminal"}
		}
		rec.BookName = bookName
		rec.ArtifactPath = artifactPath
		rec.UpdatedAt = r.now()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// RequestCancel marks cancellation intent on a job. Actually stopping the
// work is the pipeline's responsibility; the registry only records that a
// cancel was asked for. Terminal jobs are left untouched.
func (r *Registry) RequestCancel(ctx context.Context, id string) (*Record, error) {
	rec, err := r.store.Update(ctx, id, func(rec *Record) error {
		if rec.Status.Terminal() {
			return nil
		}
		now := r.now()
		rec.CancelRequested = true
		rec.UpdatedAt = now
		rec.AppendLog(now, "cancellation requested")
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("job cancellation requested", "job_id", id)
	return rec, nil
}
