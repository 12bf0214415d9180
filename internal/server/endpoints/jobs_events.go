package endpoints

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/inkforge/inkforge/internal/jobs"
	"github.com/inkforge/inkforge/internal/svcctx"
)

// eventsUpgrader upgrades status-stream connections. Origin checking is
// left to the fronting proxy, same as the rest of the public surface.
var eventsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// JobEventsEndpoint handles GET /jobs/{id}/events: a WebSocket stream of
// status snapshots, pushed whenever the record changes, until the job
// reaches a terminal state or the client disconnects.
type JobEventsEndpoint struct{}

func (e *JobEventsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/jobs/{id}/events", e.handler
}

func (e *JobEventsEndpoint) RequiresInit() bool { return true }
func (e *JobEventsEndpoint) Internal() bool     { return false }

func (e *JobEventsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")
	if err := jobs.ValidateID(id); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	publisher := svcctx.PublisherFrom(ctx)
	if _, err := publisher.Snapshot(ctx, id); err != nil {
		if errors.Is(err, jobs.ErrNotFound) {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	conn, err := eventsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	logger := svcctx.LoggerFrom(ctx)

	// Push on change, checked on a short tick. The stream shares the
	// publisher's snapshot semantics: every message is a value copy.
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	var lastUpdated time.Time
	for {
		snapshot, err := publisher.Snapshot(ctx, id)
		if err != nil {
			return
		}
		if snapshot.UpdatedAt.After(lastUpdated) {
			lastUpdated = snapshot.UpdatedAt
			if err := conn.WriteJSON(snapshot); err != nil {
				return
			}
			if snapshot.Status.Terminal() {
				if logger != nil {
					logger.Debug("event stream finished", "job_id", id, "status", snapshot.Status)
				}
				return
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (e *JobEventsEndpoint) Command(_ func() string) *cobra.Command {
	return nil
}
