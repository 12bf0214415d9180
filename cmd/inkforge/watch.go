package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/inkforge/inkforge/internal/api"
	"github.com/inkforge/inkforge/internal/jobs"
	"github.com/inkforge/inkforge/internal/poll"
)

var watchCmd = &cobra.Command{
	Use:   "watch <job-id>",
	Short: "Poll a job until it reaches a terminal state",
	Long: `Watch polls the server for a job's status until the job completes or
fails. Polling backs off from 3s up to 30s between requests; after ten
consecutive failed polls the watch gives up (the job may still be
running on the server).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		jobID := args[0]
		if err := jobs.ValidateID(jobID); err != nil {
			return err
		}

		client := api.NewClient(getServerURL())

		var lastErr error
		session := poll.Start(ctx, poll.Config{
			Snapshot: func(ctx context.Context) (*jobs.Record, error) {
				var rec jobs.Record
				if err := client.Get(ctx, "/jobs/"+jobID, &rec); err != nil {
					return nil, err
				}
				return &rec, nil
			},
			OnStatus: func(rec *jobs.Record) {
				fmt.Printf("%-22s %3d%%  %s\n", rec.Status, rec.Progress, rec.Message)
			},
			OnError: func(err error) {
				lastErr = err
			},
		})

		select {
		case <-ctx.Done():
			session.Stop()
			return ctx.Err()
		case <-session.Done():
		}

		if lastErr != nil {
			return lastErr
		}
		return nil
	},
}
