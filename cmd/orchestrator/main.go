package main

import (
	"os"

	"github.com/spf13/cobra"
)

// Version is set via ldflags at build time
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "orchestrator",
	Short: "Cloudinator orchestrator - workspace and service lifecycle API",
	Long: `The Cloudinator orchestrator manages workspaces, services and
sub-workspaces on the deployment substrate, exposing a REST API for the
dashboard.`,
	Example: `  # Run the API server and the transition worker in one process
  orchestrator serve

  # Run API and worker as separate processes against a shared Valkey queue
  orchestrator serve --mode server
  orchestrator serve --mode worker`,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
