// Package opsserver exposes the operational HTTP API: health, metrics,
// execution inspection, config validation, and the manual cleanup
// trigger.
package opsserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/LeviathanIsI/barkbase-sub001/pkg/action"
	"github.com/LeviathanIsI/barkbase-sub001/pkg/config"
	"github.com/LeviathanIsI/barkbase-sub001/pkg/opsserver/handlers"
	"github.com/LeviathanIsI/barkbase-sub001/pkg/opsserver/middleware"
	"github.com/LeviathanIsI/barkbase-sub001/pkg/retention"
	"github.com/LeviathanIsI/barkbase-sub001/pkg/store/postgres"
)

type Server struct {
	router  *gin.Engine
	db      *postgres.Store
	cleanup *retention.Job
	cfg     *config.Config
	logger  *zap.Logger
}

func NewServer(db *postgres.Store, cleanup *retention.Job, cfg *config.Config, logger *zap.Logger) *Server {
	s := &Server{
		db:      db,
		cleanup: cleanup,
		cfg:     cfg,
		logger:  logger,
	}
	s.setupRouter()
	return s
}

func (s *Server) setupRouter() {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.Logger(s.logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.CORS())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	var gdb *gorm.DB
	if s.db != nil {
		gdb = s.db.DB()
	}

	api := r.Group("/api/v1")
	{
		api.Use(middleware.Auth(s.cfg.Auth))

		executionHandler := handlers.NewExecutionHandler(
			postgres.NewExecutionRepository(gdb),
			postgres.NewExecutionLogRepository(gdb),
			s.logger,
		)
		api.GET("/executions", executionHandler.List)
		api.GET("/executions/:id", executionHandler.Get)

		actionHandler := handlers.NewActionHandler(action.NewDispatcher(s.logger), s.logger)
		api.POST("/actions/validate", actionHandler.Validate)

		cleanupHandler := handlers.NewCleanupHandler(s.cleanup, s.logger)
		api.POST("/cleanup", cleanupHandler.Trigger)
	}

	s.router = r
}

func (s *Server) Router() *gin.Engine {
	return s.router
}
