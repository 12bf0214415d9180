package endpoints

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/inkforge/inkforge/internal/jobs"
	"github.com/inkforge/inkforge/internal/svcctx"
)

// The endpoints in this file are the generation pipeline's write contract:
// the only way job records change after creation. They sit behind the
// shared-secret auth middleware and are not exposed as CLI commands.

// AdvanceRequest is the pipeline's stage-progress report.
type AdvanceRequest struct {
	Stage        string `json:"stage"`
	Progress     int    `json:"progress"`
	Message      string `json:"message"`
	Log          string `json:"log,omitempty"`
	BookName     string `json:"book_name,omitempty"`
	ArtifactPath string `json:"artifact_path,omitempty"`
}

// AdvanceJobEndpoint handles POST /internal/jobs/{id}/advance.
type AdvanceJobEndpoint struct{}

func (e *AdvanceJobEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/internal/jobs/{id}/advance", e.handler
}

func (e *AdvanceJobEndpoint) RequiresInit() bool { return true }
func (e *AdvanceJobEndpoint) Internal() bool     { return true }

func (e *AdvanceJobEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")
	if err := jobs.ValidateID(id); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req AdvanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	registry := svcctx.RegistryFrom(ctx)

	// Artifact location arrives with the final stages; record it before
	// the transition so a completing advance seals a complete record.
	if req.BookName != "" || req.ArtifactPath != "" {
		if _, err := registry.SetArtifact(ctx, id, req.BookName, req.ArtifactPath); err != nil {
			writeAdvanceError(w, r, err)
			return
		}
	}

	rec, err := registry.Advance(ctx, id, jobs.Stage(req.Stage), req.Progress, req.Message, req.Log)
	if err != nil {
		writeAdvanceError(w, r, err)
		return
	}

	if m := svcctx.MetricsFrom(ctx); m != nil {
		m.StageTransitions.WithLabelValues(string(rec.Status)).Inc()
	}
	writeJSON(w, http.StatusOK, rec)
}

func (e *AdvanceJobEndpoint) Command(_ func() string) *cobra.Command { return nil }

// FailRequest is the pipeline's failure report.
type FailRequest struct {
	Error string `json:"error"`
}

// FailJobEndpoint handles POST /internal/jobs/{id}/fail.
type FailJobEndpoint struct{}

func (e *FailJobEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/internal/jobs/{id}/fail", e.handler
}

func (e *FailJobEndpoint) RequiresInit() bool { return true }
func (e *FailJobEndpoint) Internal() bool     { return true }

func (e *FailJobEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")
	if err := jobs.ValidateID(id); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req FailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Error == "" {
		writeError(w, http.StatusBadRequest, "error is required")
		return
	}

	rec, err := svcctx.RegistryFrom(ctx).Fail(ctx, id, req.Error)
	if err != nil {
		writeAdvanceError(w, r, err)
		return
	}

	if m := svcctx.MetricsFrom(ctx); m != nil {
		m.StageTransitions.WithLabelValues(string(rec.Status)).Inc()
	}
	writeJSON(w, http.StatusOK, rec)
}

func (e *FailJobEndpoint) Command(_ func() string) *cobra.Command { return nil }

// writeAdvanceError maps registry errors for the pipeline-facing handlers.
// Illegal transitions are a pipeline bug: they are counted and logged as
// invariant violations, never silently swallowed.
func writeAdvanceError(w http.ResponseWriter, r *http.Request, err error) {
	var invalid *jobs.InvalidTransitionError
	switch {
	case errors.Is(err, jobs.ErrNotFound):
		writeError(w, http.StatusNotFound, "job not found")
	case errors.As(err, &invalid):
		if m := svcctx.MetricsFrom(r.Context()); m != nil {
			m.InvariantViolations.Inc()
		}
		if logger := svcctx.LoggerFrom(r.Context()); logger != nil {
			logger.Error("invariant violation: illegal transition attempted",
				"job_id", invalid.JobID, "from", invalid.From, "to", invalid.To, "reason", invalid.Reason)
		}
		writeError(w, http.StatusConflict, invalid.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
