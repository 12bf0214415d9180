package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means the pipeline has no artifact or job for the id:
	// either the job is unknown upstream or the artifact is not ready yet.
	ErrNotFound = errors.New("artifact not ready or job unknown")

	// ErrUnavailable means no response was received at all (network error
	// or timeout). There is no upstream detail to forward in this case.
	ErrUnavailable = errors.New("generation pipeline unavailable")
)

// RejectedError is an upstream validation failure: the pipeline responded
// and told us the request is not serviceable (e.g. the job has not
// completed yet). The upstream-supplied detail is preserved.
type RejectedError struct {
	Detail string
}

func (e *RejectedError) Error() string {
	return e.Detail
}

// UpstreamError is any other non-success pipeline response. The status code
// and whatever detail the pipeline returned are carried through.
type UpstreamError struct {
	StatusCode int
	Detail     string
}

func (e *UpstreamError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("pipeline returned %d: %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("pipeline returned %d", e.StatusCode)
}
