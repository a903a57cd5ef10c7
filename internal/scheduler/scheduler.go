package scheduler

import (
	"context"
	"time"

	"github.com/timetable-lab/console-service/internal/config"
	"github.com/timetable-lab/console-service/internal/solver"
	"github.com/timetable-lab/console-service/internal/storage"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler manages background jobs for the console service
type Scheduler struct {
	cron   *cron.Cron
	store  *storage.MySQLStore
	cache  *storage.RedisCache
	solver *solver.Client
	cfg    config.Config
	logger *zap.Logger
}

// NewScheduler creates a new scheduler instance
func NewScheduler(store *storage.MySQLStore, cache *storage.RedisCache, sc *solver.Client, cfg config.Config, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger, _ = zap.NewProduction()
	}
	return &Scheduler{
		cron:   cron.New(cron.WithSeconds()),
		store:  store,
		cache:  cache,
		solver: sc,
		cfg:    cfg,
		logger: logger,
	}
}

// Start begins the scheduled jobs
func (s *Scheduler) Start() {
	// Stale run cleanup every 5 minutes
	_, _ = s.cron.AddFunc("0 */5 * * * *", s.cleanupStaleRuns)

	// Solver health check every 30 seconds
	_, _ = s.cron.AddFunc("*/30 * * * * *", s.checkSolverHealth)

	// Inventory cache refresh every minute
	_, _ = s.cron.AddFunc("0 * * * * *", s.refreshInventoryCache)

	s.cron.Start()
	s.logger.Info("Scheduler started")
}

// Stop gracefully stops the scheduler
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// cleanupStaleRuns fails history rows left in a live state by a restart.
func (s *Scheduler) cleanupStaleRuns() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Runs streaming for more than 2 hours are considered abandoned
	stale, err := s.store.FindStaleRuns(ctx, 2*time.Hour)
	if err != nil {
		s.logger.Error("Failed to find stale runs", zap.Error(err))
		return
	}

	if len(stale) == 0 {
		return
	}

	s.logger.Warn("Found stale runs", zap.Int("count", len(stale)), zap.Strings("run_ids", stale))

	if err := s.store.MarkRunsFailed(ctx, stale, "abandoned after restart"); err != nil {
		s.logger.Error("Failed to mark stale runs", zap.Error(err))
		return
	}

	s.logger.Info("Cleaned up stale runs", zap.Int("count", len(stale)))
}

// checkSolverHealth verifies the solver is responsive
func (s *Scheduler) checkSolverHealth() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.solver.Ping(ctx); err != nil {
		s.logger.Warn("Solver health check failed", zap.Error(err))
		_ = s.cache.SetJSON(ctx, s.cfg.SolverHealthKey, map[string]any{
			"status":  "DOWN",
			"checked": time.Now().Unix(),
			"error":   err.Error(),
		}, 1*time.Minute)
		return
	}

	_ = s.cache.SetJSON(ctx, s.cfg.SolverHealthKey, map[string]any{
		"status":  "UP",
		"checked": time.Now().Unix(),
	}, 1*time.Minute)
}

// refreshInventoryCache refreshes the cached teacher/course/room/level lists
func (s *Scheduler) refreshInventoryCache() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	inv, err := s.solver.Inventory(ctx)
	if err != nil {
		s.logger.Warn("Failed to refresh inventory cache", zap.Error(err))
		return
	}

	if err := s.cache.SetJSON(ctx, s.cfg.InventoryCacheKey, inv, 10*time.Minute); err != nil {
		s.logger.Warn("Failed to cache inventory", zap.Error(err))
	}
}
