package main

import (
	"github.com/spf13/cobra"

	"github.com/inkforge/inkforge/internal/api"
	"github.com/inkforge/inkforge/version"
)

var (
	cfgFile      string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "inkforge",
	Short: "Job admission and lifecycle service for book generation",
	Long: `Inkforge fronts a long-running book generation pipeline. It admits
submissions, tracks each job through the generation stages, and serves
status snapshots and finished artifacts.

The service provides:
  - Rate-limited job submission
  - A stage-ordered job lifecycle with terminal completed/failed states
  - Status polling and a WebSocket event stream
  - PDF and Markdown artifact retrieval`,
	Version: version.GitRelease,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.inkforge/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)

	// Set output format before any command runs
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		api.SetOutputFormat(outputFormat)
	}

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)
}
