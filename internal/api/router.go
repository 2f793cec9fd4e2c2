package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/ytppt/slidesweep/internal/api/handlers"
	"github.com/ytppt/slidesweep/internal/api/middleware"
	"github.com/ytppt/slidesweep/internal/config"
	"github.com/ytppt/slidesweep/internal/metrics"
	"github.com/ytppt/slidesweep/internal/storage"
	"go.uber.org/zap"
)

// NewRouter serves a finished sweep read-only
func NewRouter(store *storage.Manager, collector *metrics.Collector, cfg *config.Config, logger *zap.Logger) *gin.Engine {
	router := gin.New()

	// Middleware
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))

	// CORS
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.Server.CorsOrigins
	corsConfig.AllowMethods = []string{"GET", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
	router.Use(cors.New(corsConfig))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	router.GET("/metrics", gin.WrapH(collector.Handler()))

	api := router.Group("/api")
	{
		system := api.Group("/system")
		{
			systemHandler := handlers.NewSystemHandler(cfg, store.BasePath(), logger)
			system.GET("/info", systemHandler.Info)
			system.GET("/sets", systemHandler.Sets)
		}

		sweepHandler := handlers.NewSweepHandler(store, logger)
		api.GET("/summary", sweepHandler.Summary)

		sets := api.Group("/sets/:id")
		{
			sets.GET("", sweepHandler.GetSet)
			sets.GET("/pages", sweepHandler.ListPages)
			sets.GET("/pages/:page", sweepHandler.GetPage)
			sets.GET("/files/:name", sweepHandler.GetFile)
		}
	}

	return router
}
