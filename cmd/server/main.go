package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/timetable-lab/console-service/internal/config"
	httpHandler "github.com/timetable-lab/console-service/internal/http"
	"github.com/timetable-lab/console-service/internal/models"
	"github.com/timetable-lab/console-service/internal/scheduler"
	"github.com/timetable-lab/console-service/internal/session"
	"github.com/timetable-lab/console-service/internal/settings"
	"github.com/timetable-lab/console-service/internal/solver"
	"github.com/timetable-lab/console-service/internal/storage"
	"github.com/timetable-lab/console-service/internal/ws"

	_ "github.com/timetable-lab/console-service/docs" // Import swagger docs

	"go.uber.org/zap"
)

// @title           Timetable Console Service API
// @version         1.0
// @description     Console service API for timetable settings editing, solver-driven schedule generation with live progress, and snapshot management.
// @termsOfService  http://swagger.io/terms/

// @contact.name   API Support
// @contact.email  support@example.com

// @license.name  Apache 2.0
// @license.url   http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:8080
// @BasePath  /

func main() {
	// Initialize logger
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	cfg := config.Load()

	// Initialize MySQL store
	store, err := storage.NewMySQLStore(cfg.MySQLDSN)
	if err != nil {
		logger.Fatal("MySQL connect failed", zap.Error(err))
	}
	defer store.Close()

	if err := store.InitSchema(context.Background()); err != nil {
		logger.Fatal("MySQL init schema failed", zap.Error(err))
	}
	logger.Info("MySQL connected and schema initialized")

	// Initialize Redis cache
	cache := storage.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err := cache.Ping(context.Background()); err != nil {
		logger.Warn("Redis ping failed, continuing without cache", zap.Error(err))
	} else {
		logger.Info("Redis connected")
	}
	defer cache.Close()

	// Initialize WebSocket hub
	hub := ws.NewHub(logger)
	defer hub.Close()

	// Initialize solver client with resilience
	solverCfg := solver.DefaultClientConfig(cfg.SolverBaseURL)
	solverCfg.RequestTimeout = time.Duration(cfg.SolverRequestSec) * time.Second
	solverCfg.MaxConcurrentCalls = cfg.SolverMaxConcurrent
	solverClient := solver.NewClient(solverCfg, logger)
	if err := solverClient.Ping(context.Background()); err != nil {
		logger.Warn("Solver unreachable at startup", zap.String("url", cfg.SolverBaseURL), zap.Error(err))
	} else {
		logger.Info("Solver connected", zap.String("url", cfg.SolverBaseURL))
	}

	// Pre-cache the inventory lists
	if inv, err := solverClient.Inventory(context.Background()); err == nil {
		_ = cache.SetJSON(context.Background(), cfg.InventoryCacheKey, inv, 10*time.Minute)
		logger.Info("Cached solver inventory",
			zap.Int("teachers", len(inv.Teachers)),
			zap.Int("courses", len(inv.Courses)),
			zap.Int("rooms", len(inv.Rooms)))
	}

	// Live editing workspace and generation controller
	workspace := settings.NewWorkspace()
	if payload, err := store.GetCurrentSettings(context.Background()); err == nil {
		if rec, err := models.DecodeCanonical([]byte(payload)); err == nil {
			workspace.Mu.Lock()
			workspace.Apply(rec)
			workspace.Mu.Unlock()
			logger.Info("Working settings record restored")
		} else {
			logger.Warn("Stored settings record is malformed, starting empty", zap.Error(err))
		}
	}
	jobs := session.NewController(solverClient, hub, store, logger)

	// Initialize scheduler for background tasks
	sched := scheduler.NewScheduler(store, cache, solverClient, cfg, logger)
	sched.Start()
	logger.Info("Background scheduler started")

	// Initialize HTTP handler and router
	h := httpHandler.NewHandler(workspace, jobs, solverClient, store, cache, cfg, logger)
	routerCfg := httpHandler.RouterConfig{
		EnableSwagger:  cfg.EnableSwagger,
		RateLimitRPS:   cfg.RateLimitRPS,
		RequestTimeout: time.Duration(cfg.RequestTimeoutSec) * time.Second,
	}
	r := httpHandler.NewRouterWithConfig(h, hub, cache, logger, routerCfg)

	// Start HTTP server in goroutine
	go func() {
		logger.Info("HTTP server starting", zap.String("addr", cfg.HTTPAddr))
		if err := r.Run(cfg.HTTPAddr); err != nil {
			logger.Error("HTTP serve failed", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")

	// Stop a running generation before dropping connections
	if jobs.Active() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = jobs.Stop(ctx)
		cancel()
	}

	// Stop scheduler
	<-sched.Stop().Done()

	// Close hub
	hub.Close()

	logger.Info("Server shutdown complete")
}
