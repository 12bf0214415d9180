package endpoints

import (
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/inkforge/inkforge/internal/api"
	"github.com/inkforge/inkforge/internal/jobs"
	"github.com/inkforge/inkforge/internal/pipeline"
	"github.com/inkforge/inkforge/internal/svcctx"
)

// ArtifactEndpoint handles GET /jobs/{id}/artifact.
type ArtifactEndpoint struct{}

func (e *ArtifactEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/jobs/{id}/artifact", e.handler
}

func (e *ArtifactEndpoint) RequiresInit() bool { return true }
func (e *ArtifactEndpoint) Internal() bool     { return false }

// handler godoc
//
//	@Summary		Download a finished artifact
//	@Description	Stream the generated book in the requested format
//	@Tags			jobs
//	@Produce		application/pdf
//	@Produce		text/markdown
//	@Param			id		path	string	true	"Job ID (UUIDv4)"
//	@Param			format	query	string	true	"Artifact format (pdf or markdown)"
//	@Success		200		{file}	binary
//	@Failure		400		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Failure		502		{object}	ErrorResponse
//	@Failure		503		{object}	ErrorResponse
//	@Router			/jobs/{id}/artifact [get]
func (e *ArtifactEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// Both checks fail fast, before any upstream call is made.
	id := r.PathValue("id")
	if err := jobs.ValidateID(id); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	formatParam := r.URL.Query().Get("format")
	if formatParam == "" {
		formatParam = string(pipeline.FormatPDF)
	}
	format, err := pipeline.ParseFormat(formatParam)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	artifact, err := svcctx.PipelineFrom(ctx).FetchArtifact(ctx, id, format)
	if err != nil {
		e.count(r, format, "error")
		writePipelineError(w, err)
		return
	}
	defer artifact.Body.Close()

	w.Header().Set("Content-Type", artifact.ContentType)
	if artifact.Disposition != "" {
		// Forward the upstream filename verbatim.
		w.Header().Set("Content-Disposition", artifact.Disposition)
	}
	if _, err := io.Copy(w, artifact.Body); err != nil {
		// Headers are already sent; all we can do is log the broken stream.
		if logger := svcctx.LoggerFrom(ctx); logger != nil {
			logger.Warn("artifact stream interrupted", "job_id", id, "error", err)
		}
		return
	}
	e.count(r, format, "ok")
}

func (e *ArtifactEndpoint) count(r *http.Request, format pipeline.Format, outcome string) {
	if m := svcctx.MetricsFrom(r.Context()); m != nil {
		m.ArtifactRequests.WithLabelValues(string(format), outcome).Inc()
	}
}

func (e *ArtifactEndpoint) Command(getServerURL func() string) *cobra.Command {
	var format string
	var outPath string
	cmd := &cobra.Command{
		Use:   "download <id>",
		Short: "Download a finished artifact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			resp, err := client.GetStream(cmd.Context(), fmt.Sprintf("/jobs/%s/artifact?format=%s", args[0], format))
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if outPath == "" {
				outPath = args[0] + extensionFor(format)
			}
			f, err := os.Create(outPath)
			if err != nil {
				return err
			}
			defer f.Close()

			n, err := io.Copy(f, resp.Body)
			if err != nil {
				return err
			}
			fmt.Printf("Wrote %d bytes to %s\n", n, outPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "pdf", "Artifact format: pdf or markdown")
	cmd.Flags().StringVar(&outPath, "file", "", "Output file (default: <id>.<ext>)")
	return cmd
}

func extensionFor(format string) string {
	if format == string(pipeline.FormatMarkdown) {
		return ".md"
	}
	return ".pdf"
}
