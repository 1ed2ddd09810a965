package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/college-timetable-api/api/swagger"
	"github.com/noah-isme/college-timetable-api/internal/app"
	"github.com/noah-isme/college-timetable-api/internal/handler"
	"github.com/noah-isme/college-timetable-api/internal/service"
	"github.com/noah-isme/college-timetable-api/pkg/config"
	"github.com/noah-isme/college-timetable-api/pkg/jobs"
	"github.com/noah-isme/college-timetable-api/pkg/logger"
)

// @title College Timetable API
// @version 1.0.0
// @description Allocation conflict detection and persistence engine
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := service.NewMetricsService()
	engine, err := app.New(ctx, cfg, logr, metrics)
	if err != nil {
		logr.Fatal("failed to build allocation engine", zap.Error(err))
	}
	defer engine.Close() //nolint:errcheck

	checks := make(map[string]handler.ReadinessCheck, len(engine.Checks))
	for name, check := range engine.Checks {
		checks[name] = check
	}

	r := handler.NewRouter(handler.RouterConfig{
		APIPrefix:      cfg.APIPrefix,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		Logger:         logr,
		Metrics:        metrics,
		Allocations:    handler.NewAllocationHandler(engine.Allocations),
		Exports:        handler.NewExportHandler(engine.Exports),
		Reference:      handler.NewReferenceHandler(engine.References),
		Observability:  handler.NewMetricsHandler(metrics, checks),
	})
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	maintenance := jobs.NewQueue("maintenance", jobs.QueueConfig{Workers: 1, RetryDelay: time.Minute, Logger: logr})
	maintenance.Register(jobExportCleanup, exportCleanupJob(engine.Exports, logr))
	maintenance.Start(ctx)
	defer maintenance.Stop()
	if err := maintenance.Enqueue(jobExportCleanup); err != nil {
		logr.Warn("export cleanup not enqueued", zap.Error(err))
	}
	if err := maintenance.Schedule(jobExportCleanup, time.Hour); err != nil {
		logr.Warn("export cleanup not scheduled", zap.Error(err))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logr.Warn("server shutdown", zap.Error(err))
		}
	}()

	logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
	logr.Info("server stopped")
}

const jobExportCleanup = "exports.cleanup"

func exportCleanupJob(exports *service.TimetableExportService, logr *zap.Logger) jobs.Handler {
	return func(context.Context, jobs.Job) error {
		removed, err := exports.Cleanup(0)
		if err != nil {
			return err
		}
		if len(removed) > 0 {
			logr.Info("expired exports removed", zap.Int("count", len(removed)))
		}
		return nil
	}
}
