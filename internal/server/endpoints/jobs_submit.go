package endpoints

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/inkforge/inkforge/internal/api"
	"github.com/inkforge/inkforge/internal/jobs"
	"github.com/inkforge/inkforge/internal/pipeline"
	"github.com/inkforge/inkforge/internal/ratelimit"
	"github.com/inkforge/inkforge/internal/svcctx"
)

// submitBucket names the rate-limited operation for job submission.
const submitBucket = "submit"

// SubmitJobResponse is the response for a successful submission.
type SubmitJobResponse struct {
	JobID   string `json:"job_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// SubmitJobEndpoint handles POST /jobs.
type SubmitJobEndpoint struct{}

func (e *SubmitJobEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/jobs", e.handler
}

func (e *SubmitJobEndpoint) RequiresInit() bool { return true }
func (e *SubmitJobEndpoint) Internal() bool     { return false }

// handler godoc
//
//	@Summary		Submit a generation job
//	@Description	Admit, validate, and dispatch a new book-generation job
//	@Tags			jobs
//	@Accept			json
//	@Produce		json
//	@Param			request	body		jobs.Params	true	"Generation parameters"
//	@Success		200		{object}	SubmitJobResponse
//	@Failure		400		{object}	ErrorResponse
//	@Failure		429		{object}	ErrorResponse
//	@Failure		503		{object}	ErrorResponse
//	@Router			/jobs [post]
func (e *SubmitJobEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// Admission first: a rate-limited caller costs nothing downstream.
	limiter := svcctx.LimiterFrom(ctx)
	decision := limiter.Check(ctx, ratelimit.Key{Bucket: submitBucket, Identity: clientIdentity(r)})
	if !decision.Allowed {
		if m := svcctx.MetricsFrom(ctx); m != nil {
			m.AdmissionDenied.Inc()
		}
		retryAfter := decision.RetryAfter(time.Now())
		w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
		writeError(w, http.StatusTooManyRequests,
			fmt.Sprintf("submission limit reached, retry in %s", retryAfter))
		return
	}

	var params jobs.Params
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	registry := svcctx.RegistryFrom(ctx)
	rec, err := registry.Create(ctx, params)
	if err != nil {
		var ve *jobs.ValidationError
		if errors.As(err, &ve) {
			writeError(w, http.StatusBadRequest, ve.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// Hand the job to the pipeline. If dispatch fails the record is failed
	// immediately so the caller never polls a job nothing is working on.
	if err := svcctx.PipelineFrom(ctx).Dispatch(ctx, rec.ID, rec.Params); err != nil {
		if logger := svcctx.LoggerFrom(ctx); logger != nil {
			logger.Error("pipeline dispatch failed", "job_id", rec.ID, "error", err)
		}
		if _, failErr := registry.Fail(ctx, rec.ID, "pipeline dispatch failed"); failErr != nil {
			if logger := svcctx.LoggerFrom(ctx); logger != nil {
				logger.Error("failed to mark job failed", "job_id", rec.ID, "error", failErr)
			}
		}
		writePipelineError(w, err)
		return
	}

	if m := svcctx.MetricsFrom(ctx); m != nil {
		m.JobsSubmitted.Inc()
	}

	writeJSON(w, http.StatusOK, SubmitJobResponse{
		JobID:   rec.ID,
		Status:  string(rec.Status),
		Message: "job accepted, generation starting",
	})
}

// clientIdentity derives the rate-limit identity. The first hop of
// X-Forwarded-For is trusted (the service sits behind a proxy); otherwise
// the peer address is used, with a fixed fallback when neither parses.
func clientIdentity(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	return "anonymous"
}

// writePipelineError maps pipeline client errors onto HTTP statuses.
func writePipelineError(w http.ResponseWriter, err error) {
	var rejected *pipeline.RejectedError
	var upstream *pipeline.UpstreamError
	switch {
	case errors.Is(err, pipeline.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &rejected):
		writeError(w, http.StatusBadRequest, rejected.Detail)
	case errors.As(err, &upstream):
		writeError(w, http.StatusBadGateway, upstream.Error())
	case errors.Is(err, pipeline.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, pipeline.ErrUnavailable.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (e *SubmitJobEndpoint) Command(getServerURL func() string) *cobra.Command {
	var params jobs.Params
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a new generation job",
		Long: `Submit a new book-generation job.

The server validates the request, admits it against the submission rate
limit, and dispatches it to the generation pipeline. Use "jobs watch" to
follow progress.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp SubmitJobResponse
			if err := client.Post(cmd.Context(), "/jobs", params, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&params.Topic, "topic", "", "Book topic (required)")
	cmd.Flags().StringVar(&params.Domain, "domain", "", "Subject domain (required)")
	cmd.Flags().StringVar(&params.Goal, "goal", "", "What the book should achieve (required)")
	cmd.Flags().StringVar(&params.Background, "background", "", "Reader background")
	cmd.Flags().StringVar(&params.Focus, "focus", "", "Areas to emphasize")
	cmd.Flags().IntVar(&params.NumChapters, "chapters", 0, "Number of chapters (default from server)")
	cmd.Flags().StringVar(&params.Tier, "tier", "", "Generation tier (default from server)")
	return cmd
}
