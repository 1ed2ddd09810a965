package handler

import (
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/college-timetable-api/internal/middleware"
	"github.com/noah-isme/college-timetable-api/internal/service"
	"github.com/noah-isme/college-timetable-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/college-timetable-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/college-timetable-api/pkg/middleware/requestid"
)

// RouterConfig wires handlers into the HTTP router.
type RouterConfig struct {
	APIPrefix      string
	AllowedOrigins []string
	Logger         *zap.Logger
	Metrics        *service.MetricsService
	Allocations    *AllocationHandler
	Exports        *ExportHandler
	Reference      *ReferenceHandler
	Observability  *MetricsHandler
}

// NewRouter builds the gin engine with middleware and every API route.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Observability == nil {
		cfg.Observability = NewMetricsHandler(cfg.Metrics, nil)
	}
	prefix := "/" + strings.Trim(cfg.APIPrefix, "/")
	if prefix == "/" {
		prefix = "/api/v1"
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(cfg.Logger))
	r.Use(corsmiddleware.New(cfg.AllowedOrigins))
	r.Use(middleware.Metrics(cfg.Metrics))

	r.GET("/health", cfg.Observability.Health)
	r.GET("/ready", cfg.Observability.Ready)
	r.GET("/metrics", cfg.Observability.Prometheus)

	api := r.Group(prefix)
	api.GET("/metrics/summary", cfg.Observability.Summary)

	if h := cfg.Allocations; h != nil {
		allocations := api.Group("/allocations")
		allocations.GET("", h.List)
		allocations.POST("", h.Create)
		allocations.POST("/persist", h.Persist)
		allocations.POST("/conflicts", h.CheckConflicts)
		allocations.POST("/conflicts/groups", h.CheckGroups)
		allocations.GET("/backups", h.ListBackups)
		allocations.POST("/backups/restore", h.Restore)
		allocations.GET("/:id", h.Get)
		allocations.PUT("/:id", h.Update)
		allocations.PATCH("/:id/slot", h.Move)
		allocations.PATCH("/:id/active", h.SetActive)
		allocations.DELETE("/:id", h.Delete)
	}
	if h := cfg.Exports; h != nil {
		api.POST("/exports/timetable", h.Create)
		api.GET("/exports/:token", h.Download)
	}
	if h := cfg.Reference; h != nil {
		api.POST("/reference/refresh", h.Refresh)
	}
	return r
}
