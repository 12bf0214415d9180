package endpoints

import (
	"errors"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/inkforge/inkforge/internal/api"
	"github.com/inkforge/inkforge/internal/jobs"
	"github.com/inkforge/inkforge/internal/svcctx"
)

// GetJobEndpoint handles GET /jobs/{id}.
type GetJobEndpoint struct{}

func (e *GetJobEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/jobs/{id}", e.handler
}

func (e *GetJobEndpoint) RequiresInit() bool { return true }
func (e *GetJobEndpoint) Internal() bool     { return false }

// handler godoc
//
//	@Summary		Get job status
//	@Description	Get a point-in-time status snapshot of a job
//	@Tags			jobs
//	@Produce		json
//	@Param			id	path		string	true	"Job ID (UUIDv4)"
//	@Success		200	{object}	jobs.Record
//	@Failure		400	{object}	ErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Failure		503	{object}	ErrorResponse
//	@Router			/jobs/{id} [get]
func (e *GetJobEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := jobs.ValidateID(id); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	snapshot, err := svcctx.PublisherFrom(r.Context()).Snapshot(r.Context(), id)
	if err != nil {
		if errors.Is(err, jobs.ErrNotFound) {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if m := svcctx.MetricsFrom(r.Context()); m != nil {
		m.StatusReads.Inc()
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (e *GetJobEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Get a job's status snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp jobs.Record
			if err := client.Get(cmd.Context(), "/jobs/"+args[0], &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// ListJobsResponse is the response for listing jobs.
type ListJobsResponse struct {
	Jobs  []*jobs.Record `json:"jobs"`
	Total int            `json:"total"`
}

// ListJobsEndpoint handles GET /jobs.
type ListJobsEndpoint struct{}

func (e *ListJobsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/jobs", e.handler
}

func (e *ListJobsEndpoint) RequiresInit() bool { return true }
func (e *ListJobsEndpoint) Internal() bool     { return false }

// handler godoc
//
//	@Summary		List jobs
//	@Description	List all job records, newest first
//	@Tags			jobs
//	@Produce		json
//	@Success		200	{object}	ListJobsResponse
//	@Failure		500	{object}	ErrorResponse
//	@Failure		503	{object}	ErrorResponse
//	@Router			/jobs [get]
func (e *ListJobsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	records, err := svcctx.RegistryFrom(r.Context()).List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ListJobsResponse{Jobs: records, Total: len(records)})
}

func (e *ListJobsEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp ListJobsResponse
			if err := client.Get(cmd.Context(), "/jobs", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
