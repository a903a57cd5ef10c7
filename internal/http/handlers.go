package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/timetable-lab/console-service/internal/config"
	"github.com/timetable-lab/console-service/internal/models"
	"github.com/timetable-lab/console-service/internal/session"
	"github.com/timetable-lab/console-service/internal/settings"
	"github.com/timetable-lab/console-service/internal/solver"
	"github.com/timetable-lab/console-service/internal/storage"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handler struct {
	ws     *settings.Workspace
	jobs   *session.Controller
	solver *solver.Client
	store  *storage.MySQLStore
	cache  *storage.RedisCache
	cfg    config.Config
	logger *zap.Logger
}

// ErrorResponse represents an error response
// @Description Error response payload
type ErrorResponse struct {
	Error   string `json:"error" example:"Invalid request"`
	Message string `json:"message,omitempty" example:"Detailed error message"`
	Code    int    `json:"code,omitempty" example:"400"`
}

// SuccessResponse represents a generic success response
// @Description Generic success response
type SuccessResponse struct {
	Success bool   `json:"success" example:"true"`
	Message string `json:"message,omitempty" example:"Operation completed"`
}

// NewHandler creates a new HTTP handler
func NewHandler(ws *settings.Workspace, jobs *session.Controller, sc *solver.Client, store *storage.MySQLStore, cache *storage.RedisCache, cfg config.Config, logger *zap.Logger) *Handler {
	return &Handler{ws: ws, jobs: jobs, solver: sc, store: store, cache: cache, cfg: cfg, logger: logger}
}

// ---------------------------------------------------------------------------
// Schedule structure builder

// AddDayRequest names a new day column.
type AddDayRequest struct {
	Name string `json:"name" binding:"required" example:"Sunday"`
}

// AddDay godoc
// @Summary      Add a day to the schedule structure
// @Description  Appends an empty day column; duplicate names are rejected
// @Tags         builder
// @Accept       json
// @Produce      json
// @Param        request  body  AddDayRequest  true  "Day name"
// @Success      200  {object}  map[string]any
// @Failure      400  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Router       /api/v1/builder/days [post]
func (h *Handler) AddDay(c *gin.Context) {
	var req AddDayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request", Message: err.Error(), Code: 400})
		return
	}

	h.ws.Mu.Lock()
	err := h.ws.Schedule.AddDay(strings.TrimSpace(req.Name))
	days := h.ws.Schedule.Days()
	h.ws.Mu.Unlock()

	if err != nil {
		c.JSON(http.StatusConflict, ErrorResponse{Error: "Day rejected", Message: err.Error(), Code: 409})
		return
	}
	c.JSON(http.StatusOK, gin.H{"days": days})
}

// DuplicateDay godoc
// @Summary      Duplicate a day with all its slots, rules and pins
// @Description  Deep-copies the source day under a derived unique name
// @Tags         builder
// @Produce      json
// @Param        day  path  string  true  "Source day name"
// @Success      200  {object}  map[string]any  "Returns the new day name"
// @Failure      404  {object}  ErrorResponse
// @Router       /api/v1/builder/days/{day}/duplicate [post]
func (h *Handler) DuplicateDay(c *gin.Context) {
	h.ws.Mu.Lock()
	name, err := h.ws.Schedule.DuplicateDay(c.Param("day"))
	h.ws.Mu.Unlock()

	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "Day not found", Message: err.Error(), Code: 404})
		return
	}
	c.JSON(http.StatusOK, gin.H{"name": name})
}

// AddSlotRequest places a time slot on a day.
type AddSlotRequest struct {
	Day       string `json:"day" binding:"required" example:"Sunday"`
	TimeRange string `json:"time_range" binding:"required" example:"08:00-09:30"`
}

// AddSlot godoc
// @Summary      Add a time slot to a day
// @Description  Adding an existing time range resets that slot to a fresh empty spec
// @Tags         builder
// @Accept       json
// @Produce      json
// @Param        request  body  AddSlotRequest  true  "Day and time range"
// @Success      200  {object}  SuccessResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /api/v1/builder/slots [post]
func (h *Handler) AddSlot(c *gin.Context) {
	var req AddSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request", Message: err.Error(), Code: 400})
		return
	}

	h.ws.Mu.Lock()
	err := h.ws.Schedule.AddSlot(req.Day, req.TimeRange)
	h.ws.Mu.Unlock()

	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "Day not found", Message: err.Error(), Code: 404})
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Success: true})
}

// AddRuleRequest attaches a room rule to a slot.
type AddRuleRequest struct {
	Day       string   `json:"day" binding:"required"`
	TimeRange string   `json:"time_range" binding:"required"`
	RuleType  string   `json:"rule_type" binding:"required" example:"SPECIFIC_LARGE_HALL"`
	Levels    []string `json:"levels"`
	HallName  string   `json:"hall_name,omitempty"`
}

var validRuleTypes = map[models.RuleType]bool{
	models.RuleAnyHall:           true,
	models.RuleSmallHallsOnly:    true,
	models.RuleSpecificLargeHall: true,
	models.RuleNoHallsAllowed:    true,
}

// AddRule godoc
// @Summary      Attach a room rule to a time slot
// @Tags         builder
// @Accept       json
// @Produce      json
// @Param        request  body  AddRuleRequest  true  "Rule"
// @Success      200  {object}  SuccessResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /api/v1/builder/rules [post]
func (h *Handler) AddRule(c *gin.Context) {
	var req AddRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request", Message: err.Error(), Code: 400})
		return
	}
	rt := models.RuleType(req.RuleType)
	if !validRuleTypes[rt] {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Unknown rule type", Message: req.RuleType, Code: 400})
		return
	}
	if rt == models.RuleSpecificLargeHall && req.HallName == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "hall_name required for SPECIFIC_LARGE_HALL", Code: 400})
		return
	}

	rule := models.RoomRule{RuleType: rt, Levels: req.Levels}
	if rt == models.RuleSpecificLargeHall {
		rule.HallName = req.HallName
	}

	h.ws.Mu.Lock()
	err := h.ws.Schedule.AddRule(req.Day, req.TimeRange, rule)
	h.ws.Mu.Unlock()

	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "Slot not found", Message: err.Error(), Code: 404})
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Success: true})
}

// SetPinnedRequest pins or unpins a course on a slot.
type SetPinnedRequest struct {
	Day       string `json:"day" binding:"required"`
	TimeRange string `json:"time_range" binding:"required"`
	CourseID  *int   `json:"course_id"`
}

// SetPinnedCourse godoc
// @Summary      Pin a course to a time slot
// @Description  A null course_id clears the pin
// @Tags         builder
// @Accept       json
// @Produce      json
// @Param        request  body  SetPinnedRequest  true  "Pin"
// @Success      200  {object}  SuccessResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /api/v1/builder/pinned [put]
func (h *Handler) SetPinnedCourse(c *gin.Context) {
	var req SetPinnedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request", Message: err.Error(), Code: 400})
		return
	}

	h.ws.Mu.Lock()
	err := h.ws.Schedule.SetPinnedCourse(req.Day, req.TimeRange, req.CourseID)
	h.ws.Mu.Unlock()

	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "Slot not found", Message: err.Error(), Code: 404})
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Success: true})
}

// GetStructure godoc
// @Summary      Get the current schedule structure
// @Tags         builder
// @Produce      json
// @Success      200  {object}  map[string]any
// @Router       /api/v1/builder/structure [get]
func (h *Handler) GetStructure(c *gin.Context) {
	h.ws.Mu.Lock()
	structure := h.ws.Schedule.Serialize()
	days := h.ws.Schedule.Days()
	h.ws.Mu.Unlock()

	c.JSON(http.StatusOK, gin.H{"days": days, "structure": structure})
}

// ---------------------------------------------------------------------------
// Teacher constraints

// ManualDayRequest toggles one manual-day cell for a teacher.
type ManualDayRequest struct {
	Teacher string `json:"teacher" binding:"required"`
	Day     string `json:"day" binding:"required"`
	Enabled bool   `json:"enabled"`
}

// SetManualDay godoc
// @Summary      Toggle a manual working day for a teacher
// @Tags         constraints
// @Accept       json
// @Produce      json
// @Param        request  body  ManualDayRequest  true  "Toggle"
// @Success      200  {object}  SuccessResponse
// @Router       /api/v1/constraints/manual-days [put]
func (h *Handler) SetManualDay(c *gin.Context) {
	var req ManualDayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request", Message: err.Error(), Code: 400})
		return
	}

	h.ws.Mu.Lock()
	h.ws.Constraints.SetManualDay(req.Teacher, req.Day, req.Enabled)
	h.ws.Mu.Unlock()

	c.JSON(http.StatusOK, SuccessResponse{Success: true})
}

// SpecialConstraintRequest toggles one special time-constraint flag.
type SpecialConstraintRequest struct {
	Teacher string `json:"teacher" binding:"required"`
	Key     string `json:"key" binding:"required" example:"start_d1_s2"`
	Enabled bool   `json:"enabled"`
}

// SetSpecialConstraint godoc
// @Summary      Toggle a special time constraint for a teacher
// @Tags         constraints
// @Accept       json
// @Produce      json
// @Param        request  body  SpecialConstraintRequest  true  "Toggle"
// @Success      200  {object}  SuccessResponse
// @Failure      400  {object}  ErrorResponse
// @Router       /api/v1/constraints/special [put]
func (h *Handler) SetSpecialConstraint(c *gin.Context) {
	var req SpecialConstraintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request", Message: err.Error(), Code: 400})
		return
	}
	known := false
	for _, k := range settings.SpecialConstraintKeys {
		if k == req.Key {
			known = true
			break
		}
	}
	if !known {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Unknown constraint key", Message: req.Key, Code: 400})
		return
	}

	h.ws.Mu.Lock()
	h.ws.Constraints.SetSpecial(req.Teacher, req.Key, req.Enabled)
	h.ws.Mu.Unlock()

	c.JSON(http.StatusOK, SuccessResponse{Success: true})
}

// DistributionRequest selects how a teacher's load spreads over days.
type DistributionRequest struct {
	Teacher string `json:"teacher" binding:"required"`
	Rule    string `json:"rule" binding:"required" example:"two_consecutive_days"`
}

var validDistributionRules = map[string]bool{
	settings.DistributionUnset:            true,
	settings.DistributionTwoConsecutive:   true,
	settings.DistributionThreeConsecutive: true,
	settings.DistributionTwoSeparate:      true,
	settings.DistributionThreeSeparate:    true,
}

// SetDistributionRule godoc
// @Summary      Choose a day-distribution rule for a teacher
// @Tags         constraints
// @Accept       json
// @Produce      json
// @Param        request  body  DistributionRequest  true  "Selection"
// @Success      200  {object}  SuccessResponse
// @Failure      400  {object}  ErrorResponse
// @Router       /api/v1/constraints/distribution [put]
func (h *Handler) SetDistributionRule(c *gin.Context) {
	var req DistributionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request", Message: err.Error(), Code: 400})
		return
	}
	if !validDistributionRules[req.Rule] {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Unknown distribution rule", Message: req.Rule, Code: 400})
		return
	}

	h.ws.Mu.Lock()
	h.ws.Constraints.SetDistributionRule(req.Teacher, req.Rule)
	h.ws.Mu.Unlock()

	c.JSON(http.StatusOK, SuccessResponse{Success: true})
}

// SaturdayRequest marks a teacher as available on Saturday.
type SaturdayRequest struct {
	Teacher string `json:"teacher" binding:"required"`
	Enabled bool   `json:"enabled"`
}

// SetSaturday godoc
// @Summary      Toggle Saturday availability for a teacher
// @Tags         constraints
// @Accept       json
// @Produce      json
// @Param        request  body  SaturdayRequest  true  "Toggle"
// @Success      200  {object}  SuccessResponse
// @Router       /api/v1/constraints/saturday [put]
func (h *Handler) SetSaturday(c *gin.Context) {
	var req SaturdayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request", Message: err.Error(), Code: 400})
		return
	}

	h.ws.Mu.Lock()
	h.ws.Constraints.SetSaturday(req.Teacher, req.Enabled)
	h.ws.Mu.Unlock()

	c.JSON(http.StatusOK, SuccessResponse{Success: true})
}

// LastSlotRequest restricts a teacher's trailing slots.
type LastSlotRequest struct {
	Teacher     string `json:"teacher" binding:"required"`
	Restriction string `json:"restriction" binding:"required" example:"last_1"`
}

// SetLastSlotRestriction godoc
// @Summary      Restrict a teacher from the last slots of the day
// @Description  Selecting none removes the restriction entirely
// @Tags         constraints
// @Accept       json
// @Produce      json
// @Param        request  body  LastSlotRequest  true  "Selection"
// @Success      200  {object}  SuccessResponse
// @Failure      400  {object}  ErrorResponse
// @Router       /api/v1/constraints/last-slot [put]
func (h *Handler) SetLastSlotRestriction(c *gin.Context) {
	var req LastSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request", Message: err.Error(), Code: 400})
		return
	}
	switch req.Restriction {
	case settings.RestrictNone, settings.RestrictLastOne, settings.RestrictLastTwo:
	default:
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Unknown restriction", Message: req.Restriction, Code: 400})
		return
	}

	h.ws.Mu.Lock()
	h.ws.Constraints.SetLastSlotRestriction(req.Teacher, req.Restriction)
	h.ws.Mu.Unlock()

	c.JSON(http.StatusOK, SuccessResponse{Success: true})
}

// RestPeriodsRequest sets the two global evening rest flags.
type RestPeriodsRequest struct {
	TuesdayEvening  bool `json:"tuesday_evening"`
	ThursdayEvening bool `json:"thursday_evening"`
}

// SetRestPeriods godoc
// @Summary      Set the global evening rest periods
// @Tags         constraints
// @Accept       json
// @Produce      json
// @Param        request  body  RestPeriodsRequest  true  "Flags"
// @Success      200  {object}  SuccessResponse
// @Router       /api/v1/constraints/rest-periods [put]
func (h *Handler) SetRestPeriods(c *gin.Context) {
	var req RestPeriodsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request", Message: err.Error(), Code: 400})
		return
	}

	h.ws.Mu.Lock()
	h.ws.RestPeriods = models.RestPeriods{
		TuesdayEvening:  req.TuesdayEvening,
		ThursdayEvening: req.ThursdayEvening,
	}
	h.ws.Mu.Unlock()

	c.JSON(http.StatusOK, SuccessResponse{Success: true})
}

// RoomAssignmentRequest binds a level or course to a room.
type RoomAssignmentRequest struct {
	Level  string `json:"level,omitempty"`
	Course string `json:"course,omitempty"`
	Room   string `json:"room"`
}

// AssignLargeRoom godoc
// @Summary      Reserve a large room for a level
// @Description  An empty room clears the assignment
// @Tags         rooms
// @Accept       json
// @Produce      json
// @Param        request  body  RoomAssignmentRequest  true  "Assignment"
// @Success      200  {object}  SuccessResponse
// @Failure      400  {object}  ErrorResponse
// @Router       /api/v1/rooms/large [put]
func (h *Handler) AssignLargeRoom(c *gin.Context) {
	var req RoomAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Level == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request", Code: 400})
		return
	}

	h.ws.Mu.Lock()
	h.ws.AssignLevelLargeRoom(req.Level, req.Room)
	h.ws.Mu.Unlock()

	c.JSON(http.StatusOK, SuccessResponse{Success: true})
}

// AssignSmallRoom godoc
// @Summary      Pin a course to a specific small room
// @Tags         rooms
// @Accept       json
// @Produce      json
// @Param        request  body  RoomAssignmentRequest  true  "Assignment"
// @Success      200  {object}  SuccessResponse
// @Failure      400  {object}  ErrorResponse
// @Router       /api/v1/rooms/small [put]
func (h *Handler) AssignSmallRoom(c *gin.Context) {
	var req RoomAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Course == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request", Code: 400})
		return
	}

	h.ws.Mu.Lock()
	h.ws.AssignSmallRoom(req.Course, req.Room)
	h.ws.Mu.Unlock()

	c.JSON(http.StatusOK, SuccessResponse{Success: true})
}

// ---------------------------------------------------------------------------
// Flexible categories

// CategoryRequest creates a category container.
type CategoryRequest struct {
	Level string `json:"level" binding:"required" example:"L3"`
	Name  string `json:"name" binding:"required" example:"Optional modules"`
}

// AddCategory godoc
// @Summary      Create a flexible category
// @Tags         categories
// @Accept       json
// @Produce      json
// @Param        request  body  CategoryRequest  true  "Category"
// @Success      200  {object}  map[string]any  "Returns the category id"
// @Failure      400  {object}  ErrorResponse
// @Router       /api/v1/categories [post]
func (h *Handler) AddCategory(c *gin.Context) {
	var req CategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request", Message: err.Error(), Code: 400})
		return
	}

	h.ws.Mu.Lock()
	cat := h.ws.Categories.Add(req.Level, req.Name)
	h.ws.Mu.Unlock()

	c.JSON(http.StatusOK, gin.H{"id": cat.ID})
}

// RemoveCategory godoc
// @Summary      Delete a flexible category
// @Tags         categories
// @Produce      json
// @Param        id  path  string  true  "Category ID"
// @Success      200  {object}  SuccessResponse
// @Router       /api/v1/categories/{id} [delete]
func (h *Handler) RemoveCategory(c *gin.Context) {
	h.ws.Mu.Lock()
	h.ws.Categories.Remove(c.Param("id"))
	h.ws.Mu.Unlock()

	c.JSON(http.StatusOK, SuccessResponse{Success: true})
}

// ListCategories godoc
// @Summary      List flexible categories
// @Tags         categories
// @Produce      json
// @Success      200  {array}  settings.Category
// @Router       /api/v1/categories [get]
func (h *Handler) ListCategories(c *gin.Context) {
	h.ws.Mu.Lock()
	list := h.ws.Categories.List()
	h.ws.Mu.Unlock()

	c.JSON(http.StatusOK, list)
}

// ProfessorRowRequest appends one professor row to a category.
type ProfessorRowRequest struct {
	Name  string `json:"name"`
	Quota int    `json:"quota"`
}

// AddProfessorRow godoc
// @Summary      Add a professor row to a category
// @Tags         categories
// @Accept       json
// @Produce      json
// @Param        id       path  string               true  "Category ID"
// @Param        request  body  ProfessorRowRequest  true  "Row"
// @Success      200  {object}  SuccessResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /api/v1/categories/{id}/professors [post]
func (h *Handler) AddProfessorRow(c *gin.Context) {
	var req ProfessorRowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request", Message: err.Error(), Code: 400})
		return
	}

	h.ws.Mu.Lock()
	cat := h.ws.Categories.Get(c.Param("id"))
	if cat != nil {
		cat.AddProfessorRow(req.Name, req.Quota)
	}
	h.ws.Mu.Unlock()

	if cat == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "Category not found", Code: 404})
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Success: true})
}

// CoursesTextRequest replaces a category's course list from a text block.
type CoursesTextRequest struct {
	Text string `json:"text"`
}

// SetCategoryCourses godoc
// @Summary      Replace a category's courses from newline-separated text
// @Tags         categories
// @Accept       json
// @Produce      json
// @Param        id       path  string              true  "Category ID"
// @Param        request  body  CoursesTextRequest  true  "Course list"
// @Success      200  {object}  SuccessResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /api/v1/categories/{id}/courses [put]
func (h *Handler) SetCategoryCourses(c *gin.Context) {
	var req CoursesTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request", Message: err.Error(), Code: 400})
		return
	}

	h.ws.Mu.Lock()
	cat := h.ws.Categories.Get(c.Param("id"))
	if cat != nil {
		cat.SetCoursesText(req.Text)
	}
	h.ws.Mu.Unlock()

	if cat == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "Category not found", Code: 404})
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Success: true})
}

// ---------------------------------------------------------------------------
// Algorithm settings

// GetAlgorithmSettings godoc
// @Summary      Get the current algorithm settings
// @Tags         algorithm
// @Produce      json
// @Success      200  {object}  models.AlgorithmSettings
// @Router       /api/v1/algorithm [get]
func (h *Handler) GetAlgorithmSettings(c *gin.Context) {
	h.ws.Mu.Lock()
	cur := h.ws.Algorithm.Current()
	h.ws.Mu.Unlock()

	c.JSON(http.StatusOK, cur)
}

// SetAlgorithmSettings godoc
// @Summary      Replace the algorithm settings
// @Description  Omitted numeric fields fall back to their per-method defaults
// @Tags         algorithm
// @Accept       json
// @Produce      json
// @Param        request  body  models.AlgorithmSettings  true  "Settings"
// @Success      200  {object}  models.AlgorithmSettings
// @Failure      400  {object}  ErrorResponse
// @Router       /api/v1/algorithm [put]
func (h *Handler) SetAlgorithmSettings(c *gin.Context) {
	var req models.AlgorithmSettings
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request", Message: err.Error(), Code: 400})
		return
	}

	h.ws.Mu.Lock()
	h.ws.Algorithm.Set(req)
	cur := h.ws.Algorithm.Current()
	h.ws.Mu.Unlock()

	c.JSON(http.StatusOK, cur)
}

// ---------------------------------------------------------------------------
// Settings record: collect / apply / snapshots

// CollectSettings godoc
// @Summary      Collect the workspace into one canonical settings record
// @Tags         settings
// @Produce      json
// @Success      200  {object}  models.CanonicalSettings
// @Router       /api/v1/settings [get]
func (h *Handler) CollectSettings(c *gin.Context) {
	h.ws.Mu.Lock()
	rec := h.ws.Collect()
	h.ws.Mu.Unlock()

	c.JSON(http.StatusOK, rec)
}

// ApplySettings godoc
// @Summary      Replace the entire workspace from a settings record
// @Description  Accepts both the canonical nested shape and the legacy flat shape
// @Tags         settings
// @Accept       json
// @Produce      json
// @Success      200  {object}  SuccessResponse
// @Failure      400  {object}  ErrorResponse
// @Router       /api/v1/settings [put]
func (h *Handler) ApplySettings(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request", Message: err.Error(), Code: 400})
		return
	}
	rec, err := models.DecodeCanonical(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Malformed settings record", Message: err.Error(), Code: 400})
		return
	}

	h.ws.Mu.Lock()
	h.ws.Apply(rec)
	h.ws.Mu.Unlock()

	c.JSON(http.StatusOK, SuccessResponse{Success: true})
}

// ResetWorkspace godoc
// @Summary      Reset the whole workspace to its empty initial state
// @Tags         settings
// @Produce      json
// @Success      200  {object}  SuccessResponse
// @Router       /api/v1/settings/reset [post]
func (h *Handler) ResetWorkspace(c *gin.Context) {
	h.ws.Mu.Lock()
	h.ws.Reset()
	h.ws.Mu.Unlock()

	c.JSON(http.StatusOK, SuccessResponse{Success: true})
}

// SaveCurrentSettings godoc
// @Summary      Persist the working settings record
// @Description  Collects the workspace and stores it as the unnamed working record, reloaded into the workspace on startup
// @Tags         settings
// @Produce      json
// @Success      200  {object}  SuccessResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /api/v1/settings/current [post]
func (h *Handler) SaveCurrentSettings(c *gin.Context) {
	h.ws.Mu.Lock()
	rec := h.ws.Collect()
	h.ws.Mu.Unlock()

	payload, err := json.Marshal(rec)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to encode settings", Message: err.Error()})
		return
	}
	if err := h.store.SaveCurrentSettings(c.Request.Context(), string(payload)); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to save settings", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Success: true, Message: "Settings saved"})
}

// GetCurrentSettings godoc
// @Summary      Get the persisted working settings record
// @Tags         settings
// @Produce      json
// @Success      200  {object}  models.CanonicalSettings
// @Failure      404  {object}  ErrorResponse
// @Router       /api/v1/settings/current [get]
func (h *Handler) GetCurrentSettings(c *gin.Context) {
	payload, err := h.store.GetCurrentSettings(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "No saved settings", Message: err.Error(), Code: 404})
		return
	}
	c.Data(http.StatusOK, "application/json", []byte(payload))
}

// LoadCurrentSettings godoc
// @Summary      Load the persisted working record into the workspace
// @Tags         settings
// @Produce      json
// @Success      200  {object}  SuccessResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /api/v1/settings/current/load [post]
func (h *Handler) LoadCurrentSettings(c *gin.Context) {
	payload, err := h.store.GetCurrentSettings(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "No saved settings", Message: err.Error(), Code: 404})
		return
	}
	rec, err := models.DecodeCanonical([]byte(payload))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Malformed settings record", Message: err.Error(), Code: 400})
		return
	}

	h.ws.Mu.Lock()
	h.ws.Apply(rec)
	h.ws.Mu.Unlock()

	c.JSON(http.StatusOK, SuccessResponse{Success: true, Message: "Settings loaded"})
}

// SnapshotRequest names a snapshot to save.
type SnapshotRequest struct {
	Name string `json:"name" binding:"required" example:"autumn draft 3"`
}

// SaveSnapshot godoc
// @Summary      Save the current workspace as a named snapshot
// @Description  Saving under an existing name overwrites that snapshot
// @Tags         snapshots
// @Accept       json
// @Produce      json
// @Param        request  body  SnapshotRequest  true  "Snapshot name"
// @Success      200  {object}  SuccessResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /api/v1/snapshots [post]
func (h *Handler) SaveSnapshot(c *gin.Context) {
	var req SnapshotRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Snapshot name required", Code: 400})
		return
	}
	if strings.TrimSpace(req.Name) == storage.CurrentSettingsName {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Reserved snapshot name", Message: req.Name, Code: 400})
		return
	}

	h.ws.Mu.Lock()
	rec := h.ws.Collect()
	h.ws.Mu.Unlock()

	payload, err := json.Marshal(rec)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to encode settings", Message: err.Error()})
		return
	}
	if err := h.store.SaveSnapshot(c.Request.Context(), strings.TrimSpace(req.Name), string(payload)); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to save snapshot", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Success: true, Message: "Snapshot saved"})
}

// ListSnapshots godoc
// @Summary      List saved snapshots
// @Tags         snapshots
// @Produce      json
// @Success      200  {array}   models.SettingsSnapshot
// @Failure      500  {object}  ErrorResponse
// @Router       /api/v1/snapshots [get]
func (h *Handler) ListSnapshots(c *gin.Context) {
	snaps, err := h.store.ListSnapshots(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to list snapshots", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, snaps)
}

// GetSnapshot godoc
// @Summary      Get one snapshot's settings record
// @Tags         snapshots
// @Produce      json
// @Param        name  path  string  true  "Snapshot name"
// @Success      200  {object}  models.CanonicalSettings
// @Failure      404  {object}  ErrorResponse
// @Router       /api/v1/snapshots/{name} [get]
func (h *Handler) GetSnapshot(c *gin.Context) {
	snap, err := h.store.GetSnapshot(c.Request.Context(), c.Param("name"))
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "Snapshot not found", Message: err.Error(), Code: 404})
		return
	}
	c.Data(http.StatusOK, "application/json", []byte(snap.Payload))
}

// LoadSnapshot godoc
// @Summary      Load a snapshot into the workspace
// @Description  The workspace is fully replaced by the snapshot's record
// @Tags         snapshots
// @Produce      json
// @Param        name  path  string  true  "Snapshot name"
// @Success      200  {object}  SuccessResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /api/v1/snapshots/{name}/load [post]
func (h *Handler) LoadSnapshot(c *gin.Context) {
	snap, err := h.store.GetSnapshot(c.Request.Context(), c.Param("name"))
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "Snapshot not found", Message: err.Error(), Code: 404})
		return
	}
	rec, err := models.DecodeCanonical([]byte(snap.Payload))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Malformed snapshot payload", Message: err.Error(), Code: 400})
		return
	}

	h.ws.Mu.Lock()
	h.ws.Apply(rec)
	h.ws.Mu.Unlock()

	c.JSON(http.StatusOK, SuccessResponse{Success: true, Message: "Snapshot loaded"})
}

// DeleteSnapshot godoc
// @Summary      Delete a snapshot
// @Tags         snapshots
// @Produce      json
// @Param        name  path  string  true  "Snapshot name"
// @Success      200  {object}  SuccessResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /api/v1/snapshots/{name} [delete]
func (h *Handler) DeleteSnapshot(c *gin.Context) {
	if err := h.store.DeleteSnapshot(c.Request.Context(), c.Param("name")); err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "Snapshot not found", Message: err.Error(), Code: 404})
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Success: true})
}
