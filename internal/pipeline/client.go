// Package pipeline is the HTTP client for the external content-generation
// pipeline. The pipeline does the actual multi-stage generation work; this
// subsystem only dispatches jobs to it, signals cancellation, and retrieves
// finished artifacts. Every boundary call converts transport and HTTP
// failures into the typed errors in errors.go; nothing here panics or
// leaks raw transport errors to callers.
package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/inkforge/inkforge/internal/jobs"
)

// Format selects which rendition of a finished artifact to fetch.
type Format string

const (
	FormatPDF      Format = "pdf"
	FormatMarkdown Format = "markdown"
)

// formatRoutes is the fixed format -> upstream path/content-type table.
// The mapping is declared, not inferred; an unknown format never reaches
// the pipeline.
var formatRoutes = map[Format]struct {
	path        string
	contentType string
}{
	FormatPDF:      {path: "/pipeline/jobs/%s/download", contentType: "application/pdf"},
	FormatMarkdown: {path: "/pipeline/jobs/%s/markdown", contentType: "text/markdown"},
}

// ParseFormat validates a caller-supplied format string.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatPDF, FormatMarkdown:
		return Format(s), nil
	default:
		return "", &RejectedError{Detail: fmt.Sprintf("format must be pdf or markdown, got %q", s)}
	}
}

// ContentType returns the response content type for the format.
func (f Format) ContentType() string {
	return formatRoutes[f].contentType
}

// Artifact is a finished artifact stream. The caller owns Body and must
// close it.
type Artifact struct {
	Body        io.ReadCloser
	ContentType string
	// Disposition is the upstream Content-Disposition header, forwarded
	// verbatim when present.
	Disposition string
}

// Client calls the generation pipeline. All requests carry the shared
// secret so the pipeline can tell this service apart from the open internet.
type Client struct {
	baseURL    string
	secret     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a pipeline client.
func NewClient(baseURL, secret string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    baseURL,
		secret:     secret,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// dispatchRequest is the body sent to start generation for a job.
type dispatchRequest struct {
	JobID  string      `json:"job_id"`
	Params jobs.Params `json:"params"`
}

// Dispatch asks the pipeline to start generating for the job. The pipeline
// reports progress back through the registry's internal advance endpoint.
func (c *Client) Dispatch(ctx context.Context, jobID string, params jobs.Params) error {
	body, err := json.Marshal(dispatchRequest{JobID: jobID, Params: params})
	if err != nil {
		return fmt.Errorf("failed to marshal dispatch request: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, "/pipeline/generate", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return c.toError(resp)
	}
	return nil
}

// Cancel asks the pipeline to stop work on a job. The registry records
// intent separately; this call is best-effort signalling to the worker.
func (c *Client) Cancel(ctx context.Context, jobID string) error {
	resp, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/pipeline/jobs/%s/cancel", jobID), nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return c.toError(resp)
	}
	return nil
}

// FetchArtifact retrieves the finished artifact stream in the given format.
// The caller must close Artifact.Body.
func (c *Client) FetchArtifact(ctx context.Context, jobID string, format Format) (*Artifact, error) {
	route, ok := formatRoutes[format]
	if !ok {
		return nil, &RejectedError{Detail: fmt.Sprintf("unknown format %q", format)}
	}

	resp, err := c.do(ctx, http.MethodGet, fmt.Sprintf(route.path, jobID), nil)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		return nil, c.toError(resp)
	}

	// Content type is owned by the format table, never by the upstream:
	// upstreams routinely sniff bodies into text/plain. Only the
	// Disposition passes through verbatim.
	return &Artifact{
		Body:        resp.Body,
		ContentType: route.contentType,
		Disposition: resp.Header.Get("Content-Disposition"),
	}, nil
}

// Health pings the pipeline. Used by the readiness endpoint only.
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "/pipeline/health", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return c.toError(resp)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.secret != "" {
		req.Header.Set("Authorization", "Bearer "+c.secret)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// No response at all: transport failure or timeout.
		c.logger.Warn("pipeline request failed", "method", method, "path", path, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return resp, nil
}

// toError maps a non-success pipeline response to the error taxonomy.
// The response body is consumed; callers must not read it afterwards.
func (c *Client) toError(resp *http.Response) error {
	detail := readDetail(resp.Body)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity:
		if detail == "" {
			detail = "request rejected by pipeline"
		}
		return &RejectedError{Detail: detail}
	default:
		return &UpstreamError{StatusCode: resp.StatusCode, Detail: detail}
	}
}

// readDetail extracts {"error": "..."} or falls back to the raw body,
// bounded so a misbehaving upstream cannot balloon error messages.
func readDetail(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil || len(raw) == 0 {
		return ""
	}
	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &payload) == nil && payload.Error != "" {
		return payload.Error
	}
	return string(bytes.TrimSpace(raw))
}
