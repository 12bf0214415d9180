package endpoints

import (
	"errors"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/inkforge/inkforge/internal/api"
	"github.com/inkforge/inkforge/internal/jobs"
	"github.com/inkforge/inkforge/internal/svcctx"
)

// CancelJobResponse acknowledges a cancellation request.
type CancelJobResponse struct {
	JobID   string `json:"job_id"`
	Message string `json:"message"`
}

// CancelJobEndpoint handles DELETE /jobs/{id}.
type CancelJobEndpoint struct{}

func (e *CancelJobEndpoint) Route() (string, string, http.HandlerFunc) {
	return "DELETE", "/jobs/{id}", e.handler
}

func (e *CancelJobEndpoint) RequiresInit() bool { return true }
func (e *CancelJobEndpoint) Internal() bool     { return false }

// handler godoc
//
//	@Summary		Cancel a job
//	@Description	Record cancellation intent and signal the pipeline to stop
//	@Tags			jobs
//	@Produce		json
//	@Param			id	path		string	true	"Job ID (UUIDv4)"
//	@Success		200	{object}	CancelJobResponse
//	@Failure		400	{object}	ErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Router			/jobs/{id} [delete]
func (e *CancelJobEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")
	if err := jobs.ValidateID(id); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Mark intent first so the record reflects the request even if the
	// pipeline call fails; actually stopping the work is the pipeline's job.
	if _, err := svcctx.RegistryFrom(ctx).RequestCancel(ctx, id); err != nil {
		if errors.Is(err, jobs.ErrNotFound) {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if err := svcctx.PipelineFrom(ctx).Cancel(ctx, id); err != nil {
		// Upstream failures pass through with their original detail.
		writePipelineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, CancelJobResponse{
		JobID:   id,
		Message: "cancellation requested",
	})
}

func (e *CancelJobEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <id>",
		Short: "Request cancellation of a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp CancelJobResponse
			if err := client.Delete(cmd.Context(), "/jobs/"+args[0], &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
