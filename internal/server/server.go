// Package server provides the main server initialization and run logic.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudinator/orchestrator/internal/adapter"
	"github.com/cloudinator/orchestrator/internal/api"
	"github.com/cloudinator/orchestrator/internal/api/handlers"
	"github.com/cloudinator/orchestrator/internal/auth"
	"github.com/cloudinator/orchestrator/internal/builds"
	"github.com/cloudinator/orchestrator/internal/config"
	"github.com/cloudinator/orchestrator/internal/db"
	"github.com/cloudinator/orchestrator/internal/identity"
	"github.com/cloudinator/orchestrator/internal/lifecycle"
	"github.com/cloudinator/orchestrator/internal/logger"
	"github.com/cloudinator/orchestrator/internal/query"
	"github.com/cloudinator/orchestrator/internal/queue"
	"github.com/cloudinator/orchestrator/internal/registry"
	"github.com/cloudinator/orchestrator/internal/worker"
)

// Config holds the server configuration options.
type Config struct {
	Port    int    // Port to run the server on (0 = use config default)
	Mode    string // Run mode: server, worker, or both
	Version string // Version string to report
}

// Run starts the orchestrator with the given configuration and blocks until
// the context is canceled.
func Run(ctx context.Context, cfg Config) error {
	if cfg.Version != "" {
		handlers.Version = cfg.Version
	}

	appCfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if cfg.Port != 0 {
		appCfg.Server.Port = cfg.Port
	}

	logger.Init(appCfg.Log.Format, appCfg.Log.Level)
	slog.Info("Starting Cloudinator orchestrator", "version", cfg.Version, "mode", appCfg.Server.Mode)

	database, err := db.New(appCfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	slog.Info("Database initialized", "driver", appCfg.Database.Driver)

	if err := db.Migrate(database); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Info("Database migrations completed")

	if err := db.CreateDefaultAdmin(database, appCfg.Auth); err != nil {
		return fmt.Errorf("failed to create default admin user: %w", err)
	}

	transitionQueue, err := createQueue(appCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize transition queue: %w", err)
	}
	defer transitionQueue.Close()
	slog.Info("Transition queue initialized", "type", appCfg.Queue.Type)

	substrate, err := createAdapter(appCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize substrate adapter: %w", err)
	}
	slog.Info("Substrate adapter initialized", "driver", appCfg.Adapter.Driver)

	reg := registry.New(database)
	controller := lifecycle.New(database, reg, substrate, transitionQueue, appCfg.Adapter.ConfirmTimeout)

	var resolver identity.Resolver
	if appCfg.Identity.BaseURL != "" {
		resolver = identity.NewHTTPResolver(appCfg.Identity.BaseURL)
		slog.Info("Using external identity service", "base_url", appCfg.Identity.BaseURL)
	} else {
		resolver = identity.NewLocalResolver(database)
	}
	views := query.New(reg, resolver)

	buildStore := builds.NewStore(database)
	if appCfg.Builds.FeedURL != "" {
		poller := builds.NewPoller(buildStore, appCfg.Builds.FeedURL, appCfg.Builds.PollInterval)
		go poller.Run(ctx)
	}

	mode := cfg.Mode
	if mode == "" {
		mode = "both"
	}
	runServer := mode == "server" || mode == "both"
	runWorker := mode == "worker" || mode == "both"
	if !runServer && !runWorker {
		return fmt.Errorf("invalid mode %q: valid modes are server, worker, both", mode)
	}

	var srv *http.Server
	var workerCancel context.CancelFunc

	if runWorker {
		w := worker.New(transitionQueue, controller, slog.Default())
		workerCtx, cancel := context.WithCancel(ctx)
		workerCancel = cancel

		go func() {
			if err := w.Start(workerCtx); err != nil && err != context.Canceled {
				slog.Error("Worker failed", "error", err)
			}
		}()
	}

	if runServer {
		authenticator := auth.New(database, appCfg.Auth.JWTSecret)
		router := api.NewRouter(appCfg, api.Deps{
			DB:         database,
			Controller: controller,
			Views:      views,
			Builds:     buildStore,
			Auth:       authenticator,
		})

		addr := fmt.Sprintf(":%d", appCfg.Server.Port)
		srv = &http.Server{
			Addr:    addr,
			Handler: router,
		}

		go func() {
			slog.Info("Server listening", "address", addr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("Server failed", "error", err)
			}
		}()
	}

	<-ctx.Done()
	slog.Info("Shutting down...")

	if workerCancel != nil {
		workerCancel()
		slog.Info("Worker stopped")
	}

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		slog.Info("Server stopped")
	}

	slog.Info("Orchestrator exited")
	return nil
}

// RunWithSignalHandling starts the server and handles OS signals for graceful shutdown.
func RunWithSignalHandling(cfg Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		errCh <- Run(ctx, cfg)
	}()

	select {
	case sig := <-quit:
		slog.Info("Received signal", "signal", sig)
		cancel()
		return <-errCh
	case err := <-errCh:
		return err
	}
}

// createQueue creates a transition queue based on configuration.
func createQueue(cfg *config.Config) (queue.Queue, error) {
	switch cfg.Queue.Type {
	case "memory":
		return queue.NewMemoryQueue(100), nil
	case "valkey":
		if cfg.Queue.ValkeyAddr == "" {
			return nil, fmt.Errorf("valkey address is required when queue type is valkey")
		}
		return queue.NewValkeyQueue(cfg.Queue.ValkeyAddr)
	default:
		return nil, fmt.Errorf("unsupported queue type: %s (supported: memory, valkey)", cfg.Queue.Type)
	}
}

// createAdapter creates a substrate adapter based on configuration.
func createAdapter(cfg *config.Config) (adapter.Adapter, error) {
	switch cfg.Adapter.Driver {
	case "fake":
		return adapter.NewFake(), nil
	case "http":
		if cfg.Adapter.BaseURL == "" {
			return nil, fmt.Errorf("adapter base URL is required when driver is http")
		}
		return adapter.NewHTTPDriver(cfg.Adapter.BaseURL, cfg.Adapter.PollInterval), nil
	default:
		return nil, fmt.Errorf("unsupported adapter driver: %s (supported: fake, http)", cfg.Adapter.Driver)
	}
}
