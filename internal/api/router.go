package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/partswatch/partswatch/internal/config"
	"github.com/partswatch/partswatch/internal/logger"
	"github.com/partswatch/partswatch/internal/sites"
)

const readHeaderTimeout = 10 * time.Second

// Deps collects everything the router needs.
type Deps struct {
	Logger   logger.Interface
	Server   config.ServerConfig
	Adapters *sites.Registry

	Controller JobController
	Stats      StatsReader
	Changes    ChangesReader
	Runs       RunsReader
	History    HistoryReader
	Purger     Purger
}

// SetupRouter creates and configures the Gin router with all routes.
func SetupRouter(deps Deps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(loggingMiddleware(deps.Logger))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	scrape := NewScrapeHandler(deps.Controller, deps.Adapters)
	results := NewResultsHandler(deps.Stats, deps.Changes, deps.Runs, deps.History)
	admin := NewAdminHandler(deps.Purger)

	apiGroup := router.Group("/api")
	{
		apiGroup.POST("/scrape/start", scrape.Start)
		apiGroup.GET("/scrape/status", scrape.Status)
		apiGroup.POST("/scrape/stop", scrape.Stop)
		apiGroup.GET("/scrape/categories", scrape.Categories)

		apiGroup.GET("/results/summary", results.Summary)
		apiGroup.GET("/results/recent", results.Recent)
		apiGroup.GET("/results/runs", results.Runs)
		apiGroup.GET("/results/history", results.History)

		protected := apiGroup.Group("/admin")
		protected.Use(adminAuth(deps.Server.AdminToken))
		protected.POST("/purge", admin.Purge)
	}

	return router
}

// NewHTTPServer builds the http.Server serving the router.
func NewHTTPServer(cfg config.ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           handler,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

// loggingMiddleware logs each HTTP request after it completes.
func loggingMiddleware(log logger.Interface) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		log.Info("HTTP request",
			"method", c.Request.Method,
			"path", path,
			"query", query,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
		)
	}
}
