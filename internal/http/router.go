package http

import (
	"net/http"
	"time"

	"github.com/timetable-lab/console-service/internal/middleware"
	"github.com/timetable-lab/console-service/internal/storage"
	"github.com/timetable-lab/console-service/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

// RouterConfig holds configuration for the router
type RouterConfig struct {
	EnableSwagger  bool
	RateLimitRPS   int
	RequestTimeout time.Duration
}

// DefaultRouterConfig returns default router configuration
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		EnableSwagger:  true,
		RateLimitRPS:   100,
		RequestTimeout: 60 * time.Second,
	}
}

// NewRouter creates a new Gin router with all routes configured
func NewRouter(handler *Handler, hub *ws.Hub) *gin.Engine {
	return NewRouterWithConfig(handler, hub, handler.cache, nil, DefaultRouterConfig())
}

// NewRouterWithConfig creates a router with custom configuration
func NewRouterWithConfig(handler *Handler, hub *ws.Hub, cache *storage.RedisCache, logger *zap.Logger, cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.CORS())
	r.Use(middleware.RequestID())

	if logger != nil {
		r.Use(middleware.StructuredLogger(logger))
	} else {
		r.Use(gin.Logger())
	}

	if cache != nil && cfg.RateLimitRPS > 0 {
		r.Use(middleware.RateLimiter(cache, cfg.RateLimitRPS, time.Minute))
	}

	if cfg.EnableSwagger {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	r.GET("/health", handler.HealthCheck)

	v1 := r.Group("/api/v1")
	{
		if cfg.RequestTimeout > 0 {
			v1.Use(middleware.Timeout(cfg.RequestTimeout))
		}

		// Schedule structure builder
		builder := v1.Group("/builder")
		{
			builder.GET("/structure", handler.GetStructure)
			builder.POST("/days", handler.AddDay)
			builder.POST("/days/:day/duplicate", handler.DuplicateDay)
			builder.POST("/slots", handler.AddSlot)
			builder.POST("/rules", handler.AddRule)
			builder.PUT("/pinned", handler.SetPinnedCourse)
		}

		// Teacher constraints
		constraints := v1.Group("/constraints")
		{
			constraints.PUT("/manual-days", handler.SetManualDay)
			constraints.PUT("/special", handler.SetSpecialConstraint)
			constraints.PUT("/distribution", handler.SetDistributionRule)
			constraints.PUT("/saturday", handler.SetSaturday)
			constraints.PUT("/last-slot", handler.SetLastSlotRestriction)
			constraints.PUT("/rest-periods", handler.SetRestPeriods)
		}

		// Room assignments
		rooms := v1.Group("/rooms")
		{
			rooms.PUT("/large", handler.AssignLargeRoom)
			rooms.PUT("/small", handler.AssignSmallRoom)
		}

		// Flexible categories
		categories := v1.Group("/categories")
		{
			categories.GET("", handler.ListCategories)
			categories.POST("", handler.AddCategory)
			categories.DELETE("/:id", handler.RemoveCategory)
			categories.POST("/:id/professors", handler.AddProfessorRow)
			categories.PUT("/:id/courses", handler.SetCategoryCourses)
		}

		// Algorithm settings
		v1.GET("/algorithm", handler.GetAlgorithmSettings)
		v1.PUT("/algorithm", handler.SetAlgorithmSettings)

		// Settings record and snapshots
		v1.GET("/settings", handler.CollectSettings)
		v1.PUT("/settings", handler.ApplySettings)
		v1.POST("/settings/reset", handler.ResetWorkspace)
		v1.GET("/settings/current", handler.GetCurrentSettings)
		v1.POST("/settings/current", handler.SaveCurrentSettings)
		v1.POST("/settings/current/load", handler.LoadCurrentSettings)

		snapshots := v1.Group("/snapshots")
		{
			snapshots.GET("", handler.ListSnapshots)
			snapshots.GET("/:name", handler.GetSnapshot)
			snapshots.DELETE("/:name", handler.DeleteSnapshot)
			snapshots.POST("/:name/load", handler.LoadSnapshot)

			if cache != nil {
				snapshots.POST("", middleware.Idempotency(cache), handler.SaveSnapshot)
			} else {
				snapshots.POST("", handler.SaveSnapshot)
			}
		}

		// Generation lifecycle
		generation := v1.Group("/generation")
		{
			if cache != nil {
				generation.POST("/start", middleware.Idempotency(cache), handler.StartGeneration)
			} else {
				generation.POST("/start", handler.StartGeneration)
			}
			generation.POST("/stop", handler.StopGeneration)
			generation.GET("/session", handler.GetSession)
			generation.DELETE("/session", handler.ResetSession)
			generation.GET("/runs", handler.ListRuns)
			generation.GET("/stats", handler.GetRunStats)
		}

		// Solver data and diagnostics
		v1.GET("/inventory", handler.GetInventory)

		diagnostics := v1.Group("/diagnostics")
		{
			diagnostics.POST("/validate", handler.ValidateSchedule)
			diagnostics.POST("/check", handler.ComprehensiveCheck)
		}

		v1.POST("/export/:kind", handler.ExportSchedule)

		data := v1.Group("/data")
		{
			data.GET("/backup", handler.BackupData)
			data.POST("/restore", handler.RestoreData)
			data.POST("/reset", handler.ResetAllData)
			data.GET("/template", handler.DownloadTemplate)
			data.POST("/import", handler.ImportData)
		}
	}

	// WebSocket endpoint for generation progress updates. A missing
	// session_id subscribes to every session.
	r.GET("/ws", func(c *gin.Context) {
		upgrader := websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}

		hub.Subscribe(c.Query("session_id"), conn)
	})

	r.GET("/ws/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "clients": hub.ClientCount(ws.TopicAll)})
	})

	return r
}
