package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/timetable-lab/console-service/internal/models"
	"github.com/timetable-lab/console-service/internal/session"
	"github.com/timetable-lab/console-service/internal/solver"

	"github.com/gin-gonic/gin"
)

// StartGeneration godoc
// @Summary      Start a schedule generation
// @Description  Collects the workspace into a settings record and submits it to the solver. Rejected locally when the structure has no slots, and with 409 while another generation is running.
// @Tags         generation
// @Produce      json
// @Param        X-Request-ID  header  string  false  "Idempotency key"
// @Success      200  {object}  map[string]string  "Returns session_id"
// @Failure      400  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Failure      502  {object}  ErrorResponse
// @Router       /api/v1/generation/start [post]
func (h *Handler) StartGeneration(c *gin.Context) {
	h.ws.Mu.Lock()
	rec := h.ws.Collect()
	h.ws.Mu.Unlock()

	id, err := h.jobs.Start(c.Request.Context(), rec)
	if err != nil {
		var ve *session.ValidationError
		var se *solver.StartError
		switch {
		case errors.As(err, &ve):
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Generation rejected", Message: ve.Reason, Code: 400})
		case errors.Is(err, session.ErrJobActive):
			c.JSON(http.StatusConflict, ErrorResponse{Error: "A generation is already running", Code: 409})
		case errors.As(err, &se):
			c.JSON(http.StatusBadGateway, ErrorResponse{Error: "Solver rejected the request", Message: se.Message, Code: 502})
		default:
			c.JSON(http.StatusBadGateway, ErrorResponse{Error: "Failed to start generation", Message: err.Error(), Code: 502})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"session_id": id, "status": string(session.StatusStreaming)})
}

// StopGeneration godoc
// @Summary      Stop the running generation
// @Description  Fire-and-forget cancellation; a result already in flight still lands
// @Tags         generation
// @Produce      json
// @Success      200  {object}  SuccessResponse
// @Failure      409  {object}  ErrorResponse
// @Router       /api/v1/generation/stop [post]
func (h *Handler) StopGeneration(c *gin.Context) {
	if err := h.jobs.Stop(c.Request.Context()); err != nil {
		c.JSON(http.StatusConflict, ErrorResponse{Error: "Nothing to stop", Message: err.Error(), Code: 409})
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Success: true, Message: "Stopping"})
}

// GetSession godoc
// @Summary      Get the current generation session
// @Tags         generation
// @Produce      json
// @Success      200  {object}  session.Session
// @Failure      404  {object}  ErrorResponse
// @Router       /api/v1/generation/session [get]
func (h *Handler) GetSession(c *gin.Context) {
	snap := h.jobs.Snapshot()
	if snap == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "No session", Code: 404})
		return
	}
	c.JSON(http.StatusOK, snap)
}

// ResetSession godoc
// @Summary      Discard the finished generation session
// @Tags         generation
// @Produce      json
// @Success      200  {object}  SuccessResponse
// @Failure      409  {object}  ErrorResponse
// @Router       /api/v1/generation/session [delete]
func (h *Handler) ResetSession(c *gin.Context) {
	if err := h.jobs.Reset(); err != nil {
		c.JSON(http.StatusConflict, ErrorResponse{Error: "Generation still running", Code: 409})
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Success: true})
}

// ListRuns godoc
// @Summary      List generation run history
// @Tags         generation
// @Produce      json
// @Param        page      query  int     false  "Page number"  default(1)
// @Param        page_size query  int     false  "Items per page"  default(20)
// @Param        status    query  string  false  "Filter by status (REQUESTING, STREAMING, DONE, CANCELLED, FAILED)"
// @Success      200  {object}  map[string]any
// @Failure      500  {object}  ErrorResponse
// @Router       /api/v1/generation/runs [get]
func (h *Handler) ListRuns(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	runs, total, err := h.store.ListRuns(c.Request.Context(), c.Query("status"), page, pageSize)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to list runs", Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"runs":      runs,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
		"pages":     (total + pageSize - 1) / pageSize,
	})
}

// GetRunStats godoc
// @Summary      Aggregate run statistics
// @Tags         generation
// @Produce      json
// @Success      200  {object}  map[string]any
// @Failure      500  {object}  ErrorResponse
// @Router       /api/v1/generation/stats [get]
func (h *Handler) GetRunStats(c *gin.Context) {
	stats, err := h.store.RunStats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to compute stats", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// ---------------------------------------------------------------------------
// Solver inventory and diagnostics

// GetInventory godoc
// @Summary      Get the teacher/course/room/level lists
// @Description  Served from the Redis cache when fresh, otherwise fetched from the solver
// @Tags         inventory
// @Produce      json
// @Success      200  {object}  models.Inventory
// @Failure      502  {object}  ErrorResponse
// @Router       /api/v1/inventory [get]
func (h *Handler) GetInventory(c *gin.Context) {
	ctx := c.Request.Context()

	var inv models.Inventory
	if err := h.cache.GetJSON(ctx, h.cfg.InventoryCacheKey, &inv); err == nil {
		c.JSON(http.StatusOK, inv)
		return
	}

	inv, err := h.solver.Inventory(ctx)
	if err != nil {
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: "Solver unavailable", Message: err.Error(), Code: 502})
		return
	}
	_ = h.cache.SetJSON(ctx, h.cfg.InventoryCacheKey, inv, 10*time.Minute)
	c.JSON(http.StatusOK, inv)
}

// ValidateRequest carries a completed schedule for constraint validation.
type ValidateRequest struct {
	Schedule map[string]models.LevelGrid `json:"schedule" binding:"required"`
	Days     []string                    `json:"days" binding:"required"`
	Slots    []string                    `json:"slots" binding:"required"`
}

// ValidateSchedule godoc
// @Summary      Validate a completed schedule against the current settings
// @Tags         diagnostics
// @Accept       json
// @Produce      json
// @Param        request  body  ValidateRequest  true  "Schedule"
// @Success      200  {array}   models.ValidationFinding
// @Failure      400  {object}  ErrorResponse
// @Failure      502  {object}  ErrorResponse
// @Router       /api/v1/diagnostics/validate [post]
func (h *Handler) ValidateSchedule(c *gin.Context) {
	var req ValidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request", Message: err.Error(), Code: 400})
		return
	}

	h.ws.Mu.Lock()
	rec := h.ws.Collect()
	h.ws.Mu.Unlock()

	findings, err := h.solver.Validate(c.Request.Context(), req.Schedule, req.Days, req.Slots, rec)
	if err != nil {
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: "Validation failed", Message: err.Error(), Code: 502})
		return
	}
	c.JSON(http.StatusOK, findings)
}

// CheckRequest carries a completed schedule for the comprehensive check.
type CheckRequest struct {
	Schedule map[string]models.LevelGrid `json:"schedule" binding:"required"`
}

// ComprehensiveCheck godoc
// @Summary      Run the comprehensive consistency check on a schedule
// @Tags         diagnostics
// @Accept       json
// @Produce      json
// @Param        request  body  CheckRequest  true  "Schedule"
// @Success      200  {array}   models.CheckFinding
// @Failure      400  {object}  ErrorResponse
// @Failure      502  {object}  ErrorResponse
// @Router       /api/v1/diagnostics/check [post]
func (h *Handler) ComprehensiveCheck(c *gin.Context) {
	var req CheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request", Message: err.Error(), Code: 400})
		return
	}

	h.ws.Mu.Lock()
	rec := h.ws.Collect()
	h.ws.Mu.Unlock()

	findings, err := h.solver.ComprehensiveCheck(c.Request.Context(), req.Schedule, rec)
	if err != nil {
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: "Check failed", Message: err.Error(), Code: 502})
		return
	}
	c.JSON(http.StatusOK, findings)
}

// exportRoutes maps the public export kinds to solver paths.
var exportRoutes = map[string]string{
	"levels":     "/api/export/all-levels",
	"professors": "/api/export/all-professors",
	"free-rooms": "/api/export/free-rooms",
}

// ExportSchedule godoc
// @Summary      Download a schedule export produced by the solver
// @Description  The solver's Content-Disposition filename is passed through; UTF-8 encoded names are preferred over the legacy quoted form
// @Tags         export
// @Accept       json
// @Produce      application/octet-stream
// @Param        kind  path  string  true  "Export kind (levels, professors, free-rooms)"
// @Success      200  {file}    file
// @Failure      400  {object}  ErrorResponse
// @Failure      502  {object}  ErrorResponse
// @Router       /api/v1/export/{kind} [post]
func (h *Handler) ExportSchedule(c *gin.Context) {
	kind := c.Param("kind")
	path, ok := exportRoutes[kind]
	if !ok {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Unknown export kind", Message: kind, Code: 400})
		return
	}

	var payload map[string]any
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request", Message: err.Error(), Code: 400})
		return
	}

	name, data, err := h.solver.Export(c.Request.Context(), path, payload, "schedule-export")
	if err != nil {
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: "Export failed", Message: err.Error(), Code: 502})
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK, "application/octet-stream", data)
}

// BackupData godoc
// @Summary      Download a full backup of the solver's data
// @Tags         data
// @Produce      json
// @Success      200  {object}  map[string]any
// @Failure      502  {object}  ErrorResponse
// @Router       /api/v1/data/backup [get]
func (h *Handler) BackupData(c *gin.Context) {
	payload, err := h.solver.Backup(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: "Backup failed", Message: err.Error(), Code: 502})
		return
	}
	c.Data(http.StatusOK, "application/json", payload)
}

// RestoreData godoc
// @Summary      Restore the solver's data from a backup payload
// @Tags         data
// @Accept       json
// @Produce      json
// @Success      200  {object}  SuccessResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      502  {object}  ErrorResponse
// @Router       /api/v1/data/restore [post]
func (h *Handler) RestoreData(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil || len(raw) == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Backup payload required", Code: 400})
		return
	}
	if err := h.solver.Restore(c.Request.Context(), raw); err != nil {
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: "Restore failed", Message: err.Error(), Code: 502})
		return
	}
	_ = h.cache.Delete(c.Request.Context(), h.cfg.InventoryCacheKey)
	c.JSON(http.StatusOK, SuccessResponse{Success: true, Message: "Data restored"})
}

// ResetAllData godoc
// @Summary      Wipe all solver data
// @Tags         data
// @Produce      json
// @Success      200  {object}  SuccessResponse
// @Failure      502  {object}  ErrorResponse
// @Router       /api/v1/data/reset [post]
func (h *Handler) ResetAllData(c *gin.Context) {
	if err := h.solver.ResetAll(c.Request.Context()); err != nil {
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: "Reset failed", Message: err.Error(), Code: 502})
		return
	}
	_ = h.cache.Delete(c.Request.Context(), h.cfg.InventoryCacheKey)
	c.JSON(http.StatusOK, SuccessResponse{Success: true, Message: "All data wiped"})
}

// DownloadTemplate godoc
// @Summary      Download the bulk-import spreadsheet template
// @Tags         data
// @Produce      application/octet-stream
// @Success      200  {file}    file
// @Failure      502  {object}  ErrorResponse
// @Router       /api/v1/data/template [get]
func (h *Handler) DownloadTemplate(c *gin.Context) {
	name, data, err := h.solver.DownloadTemplate(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: "Template download failed", Message: err.Error(), Code: 502})
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK, "application/octet-stream", data)
}

// ImportData godoc
// @Summary      Bulk-import data from a filled template
// @Description  The upload is forwarded to the solver unmodified; its import report is returned as-is
// @Tags         data
// @Accept       multipart/form-data
// @Produce      json
// @Success      200  {object}  map[string]any
// @Failure      400  {object}  ErrorResponse
// @Failure      502  {object}  ErrorResponse
// @Router       /api/v1/data/import [post]
func (h *Handler) ImportData(c *gin.Context) {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Upload required", Code: 400})
		return
	}

	report, err := h.solver.ImportData(c.Request.Context(), c.ContentType(), c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: "Import failed", Message: err.Error(), Code: 502})
		return
	}
	_ = h.cache.Delete(c.Request.Context(), h.cfg.InventoryCacheKey)
	c.Data(http.StatusOK, "application/json", report)
}

// HealthCheck godoc
// @Summary      Service health
// @Description  Reports MySQL, Redis and cached solver health
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]any
// @Router       /health [get]
func (h *Handler) HealthCheck(c *gin.Context) {
	ctx := c.Request.Context()
	status := gin.H{"status": "ok"}

	if err := h.store.Ping(ctx); err != nil {
		status["mysql"] = "down"
		status["status"] = "degraded"
	} else {
		status["mysql"] = "up"
	}
	if err := h.cache.Ping(ctx); err != nil {
		status["redis"] = "down"
		status["status"] = "degraded"
	} else {
		status["redis"] = "up"
	}

	var solverHealth map[string]any
	if err := h.cache.GetJSON(ctx, h.cfg.SolverHealthKey, &solverHealth); err == nil {
		status["solver"] = solverHealth
	} else if err := h.solver.Ping(ctx); err != nil {
		status["solver"] = gin.H{"status": "DOWN"}
		status["status"] = "degraded"
	} else {
		status["solver"] = gin.H{"status": "UP"}
	}

	c.JSON(http.StatusOK, status)
}
