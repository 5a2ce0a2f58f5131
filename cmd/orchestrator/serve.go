package main

import (
	"fmt"
	"os"

	"github.com/cloudinator/orchestrator/internal/server"
	"github.com/spf13/cobra"
)

var (
	servePort int
	serveMode string
)

// @title Cloudinator Orchestrator API
// @version 1.0
// @description Workspace and service lifecycle orchestration API
// @host localhost:8470
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the orchestrator",
	Long: `Start the orchestrator with API and/or worker components.

Examples:
  orchestrator serve                 # Run both API server and worker
  orchestrator serve --mode server   # Run API server only
  orchestrator serve --mode worker   # Run worker only
  orchestrator serve --port 8080     # Override port

Environment variables:
  CLOUDINATOR_SERVER_PORT        Server port (default: 8470)
  CLOUDINATOR_DATABASE_DRIVER    Database driver: sqlite, postgres
  CLOUDINATOR_DATABASE_DSN       Database connection string
  CLOUDINATOR_QUEUE_TYPE         Queue type: memory, valkey
  CLOUDINATOR_ADAPTER_DRIVER     Substrate adapter: fake, http
  CLOUDINATOR_AUTH_JWT_SECRET    JWT signing secret`,
	Run: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to run server on (overrides config)")
	serveCmd.Flags().StringVarP(&serveMode, "mode", "m", "both", "Run mode: server, worker, or both")
}

func runServe(cmd *cobra.Command, args []string) {
	cfg := server.Config{
		Port:    servePort,
		Mode:    serveMode,
		Version: Version,
	}

	if err := server.RunWithSignalHandling(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
