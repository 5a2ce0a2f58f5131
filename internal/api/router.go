// Package api wires the Gin router, middleware and handlers.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/cloudinator/orchestrator/internal/api/handlers"
	"github.com/cloudinator/orchestrator/internal/auth"
	"github.com/cloudinator/orchestrator/internal/builds"
	"github.com/cloudinator/orchestrator/internal/config"
	"github.com/cloudinator/orchestrator/internal/lifecycle"
	"github.com/cloudinator/orchestrator/internal/models"
	"github.com/cloudinator/orchestrator/internal/query"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"
)

// Deps carries the constructed collaborators the router mounts.
type Deps struct {
	DB         *gorm.DB
	Controller *lifecycle.Controller
	Views      *query.Views
	Builds     *builds.Store
	Auth       *auth.Authenticator
}

// NewRouter creates and configures the Gin router
func NewRouter(cfg *config.Config, deps Deps) *gin.Engine {
	if cfg.Server.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(loggingMiddleware())
	router.Use(corsMiddleware())

	// Public routes
	public := router.Group("/api/v1")
	{
		public.GET("/health", handlers.HealthCheck)
		public.GET("/version", handlers.GetVersion)
		public.POST("/auth/login", handlers.Login(deps.Auth, deps.DB))
	}

	workspaceHandler := handlers.NewWorkspaceHandler(deps.Controller, deps.Views, deps.Auth, deps.DB)
	serviceHandler := handlers.NewResourceHandler(models.KindService, deps.Controller, deps.Views, deps.Auth, deps.DB)
	subHandler := handlers.NewResourceHandler(models.KindSubWorkspace, deps.Controller, deps.Views, deps.Auth, deps.DB)
	buildHandler := handlers.NewBuildHandler(deps.Builds)
	infoHandler := handlers.NewInfoHandler(deps.Views)

	// Protected routes (require authentication)
	protected := router.Group("/api/v1")
	protected.Use(deps.Auth.Middleware())
	{
		// Workspace endpoints
		protected.GET("/workspaces", workspaceHandler.List)
		protected.POST("/workspaces", workspaceHandler.Create)
		protected.GET("/workspaces/:name", workspaceHandler.Get)
		protected.POST("/workspaces/:name/enable", workspaceHandler.Enable)
		protected.POST("/workspaces/:name/disable", workspaceHandler.Disable)
		protected.DELETE("/workspaces/:name", workspaceHandler.Delete)
		protected.GET("/workspaces/:name/services", serviceHandler.ListInWorkspace)
		protected.GET("/workspaces/:name/subworkspaces", subHandler.ListInWorkspace)

		// Service endpoints
		protected.POST("/services", serviceHandler.Deploy)
		protected.GET("/services/:name", serviceHandler.Get)
		protected.POST("/services/:name/start", serviceHandler.Start)
		protected.POST("/services/:name/stop", serviceHandler.Stop)
		protected.DELETE("/services/:name", serviceHandler.Delete)

		// Sub-workspace endpoints: same machine, different kind
		protected.POST("/subworkspaces", subHandler.Deploy)
		protected.GET("/subworkspaces/:name", subHandler.Get)
		protected.POST("/subworkspaces/:name/start", subHandler.Start)
		protected.POST("/subworkspaces/:name/stop", subHandler.Stop)
		protected.DELETE("/subworkspaces/:name", subHandler.Delete)

		// CI build endpoints
		protected.GET("/builds", buildHandler.List)
		protected.POST("/builds", buildHandler.Ingest)
		protected.GET("/builds/analytics", buildHandler.Analytics)

		// Platform summary
		protected.GET("/stats", infoHandler.Stats)
	}

	// Swagger documentation
	router.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	slog.Info("API router initialized", "mode", cfg.Server.Mode)
	return router
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		slog.Info("HTTP request",
			"method", method,
			"path", path,
			"status", status,
			"latency", latency.String(),
			"ip", c.ClientIP(),
		)
	}
}

// corsMiddleware adds CORS headers
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
