package main

import (
	"github.com/spf13/cobra"

	"github.com/inkforge/inkforge/internal/server/endpoints"
)

var serverURL string

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Commands that call the running server",
	Long: `API commands call the running Inkforge server via HTTP.

These commands require a running server (inkforge serve).
Use --server to specify a custom server URL.

Examples:
  inkforge api health             # Check server health
  inkforge api jobs list          # List all jobs
  inkforge api jobs get <id>      # Get a specific job
  inkforge api jobs watch <id>    # Poll a job until it finishes`,
}

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Job management commands",
}

// getServerURL returns the server URL at runtime (after flag parsing).
func getServerURL() string {
	return serverURL
}

func init() {
	// Add --server flag to api command (persistent so all subcommands inherit it)
	apiCmd.PersistentFlags().StringVar(
		&serverURL, "server", "http://localhost:8080", "Server URL",
	)

	// Health endpoints at top level of api
	apiCmd.AddCommand((&endpoints.HealthEndpoint{}).Command(getServerURL))
	apiCmd.AddCommand((&endpoints.ReadyEndpoint{}).Command(getServerURL))

	// Jobs as subcommand group
	for _, ep := range endpoints.JobCommands() {
		if cmd := ep.Command(getServerURL); cmd != nil {
			jobsCmd.AddCommand(cmd)
		}
	}
	jobsCmd.AddCommand(watchCmd)

	apiCmd.AddCommand(jobsCmd)
	rootCmd.AddCommand(apiCmd)
}
