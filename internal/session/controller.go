package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/timetable-lab/console-service/internal/models"
	"github.com/timetable-lab/console-service/internal/solver"
)

// Status is the lifecycle state of one generation session.
type Status string

const (
	StatusIdle       Status = "IDLE"
	StatusRequesting Status = "REQUESTING"
	StatusStreaming  Status = "STREAMING"
	StatusDone       Status = "DONE"
	StatusCancelled  Status = "CANCELLED"
	StatusFailed     Status = "FAILED"
)

// Terminal reports whether the status re-enables the start control.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusCancelled || s == StatusFailed
}

// ErrJobActive is returned when a start or reset races an in-flight session.
var ErrJobActive = errors.New("session: a generation is already running")

// ValidationError is a local pre-flight rejection; no solver call was made.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// Session is the ephemeral state of one generation attempt. It is created at
// start, superseded by the next start or an explicit reset, and never merged.
// ByProfessor and FreeRooms are disjoint slots filled independently after the
// terminal DONE event.
type Session struct {
	ID          string               `json:"id"`
	Status      Status               `json:"status"`
	Progress    float64              `json:"progress"`
	Log         []string             `json:"log"`
	Error       string               `json:"error,omitempty"`
	Result      *models.SolverResult `json:"result,omitempty"`
	ByProfessor models.Grid          `json:"by_professor,omitempty"`
	FreeRooms   models.Grid          `json:"free_rooms,omitempty"`
	StartedAt   time.Time            `json:"started_at"`
	FinishedAt  *time.Time           `json:"finished_at,omitempty"`
}

// Notifier pushes session events to connected UI clients.
type Notifier interface {
	BroadcastJSON(topic string, msg any) error
}

// Recorder persists the run history. May be nil.
type Recorder interface {
	InsertRun(ctx context.Context, runID, settingsJSON string) error
	UpdateRunProgress(ctx context.Context, runID string, progress float64) error
	FinishRun(ctx context.Context, runID, status, detail string) error
}

// Controller drives the start/stream/cancel lifecycle of generation jobs
// against the solver. At most one session is active; a new start supersedes
// the previous terminal session atomically.
type Controller struct {
	solver *solver.Client
	hub    Notifier
	runs   Recorder
	logger *zap.Logger

	mu            sync.Mutex
	cur           *Session
	stream        *solver.Stream
	stopRequested bool
}

// NewController creates a job controller. hub and runs may be nil.
func NewController(sc *solver.Client, hub Notifier, runs Recorder, logger *zap.Logger) *Controller {
	if logger == nil {
		logger, _ = zap.NewProduction()
	}
	return &Controller{solver: sc, hub: hub, runs: runs, logger: logger}
}

// Active reports whether a session is in Requesting or Streaming state.
func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeLocked()
}

func (c *Controller) activeLocked() bool {
	return c.cur != nil && (c.cur.Status == StatusRequesting || c.cur.Status == StatusStreaming)
}

// Snapshot returns a copy of the current session, or nil when none exists.
func (c *Controller) Snapshot() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cur == nil {
		return nil
	}
	cp := *c.cur
	cp.Log = append([]string(nil), c.cur.Log...)
	return &cp
}

// Start validates the record locally, submits it to the solver and opens the
// event stream. An empty schedule structure is rejected before any network
// call. The new session id is returned.
func (c *Controller) Start(ctx context.Context, rec models.CanonicalSettings) (string, error) {
	structured := false
	for _, slots := range rec.ScheduleStructure {
		if len(slots) > 0 {
			structured = true
			break
		}
	}
	if !structured {
		return "", &ValidationError{Reason: "schedule structure needs at least one day with one time slot"}
	}

	c.mu.Lock()
	if c.activeLocked() {
		c.mu.Unlock()
		return "", ErrJobActive
	}
	s := &Session{
		ID:        uuid.NewString(),
		Status:    StatusRequesting,
		Log:       []string{},
		StartedAt: time.Now(),
	}
	c.cur = s
	c.stream = nil
	c.stopRequested = false
	c.mu.Unlock()

	c.notify(s.ID, map[string]any{"type": "status", "status": StatusRequesting})

	if c.runs != nil {
		payload, _ := json.Marshal(rec)
		if err := c.runs.InsertRun(ctx, s.ID, string(payload)); err != nil {
			c.logger.Warn("run history insert failed", zap.Error(err))
		}
	}

	if err := c.solver.StartGeneration(ctx, rec); err != nil {
		var se *solver.StartError
		msg := "failed to start generation"
		if errors.As(err, &se) {
			msg = se.Message
		}
		c.logger.Warn("generation start rejected", zap.String("session_id", s.ID), zap.Error(err))
		c.finish(s, StatusIdle, msg)
		return s.ID, err
	}

	// The stream outlives the start request's context.
	st, err := c.solver.StreamEvents(context.Background())
	if err != nil {
		c.logger.Error("event stream open failed", zap.String("session_id", s.ID), zap.Error(err))
		c.finish(s, StatusFailed, err.Error())
		return s.ID, err
	}

	c.mu.Lock()
	s.Status = StatusStreaming
	c.stream = st
	c.mu.Unlock()
	c.notify(s.ID, map[string]any{"type": "status", "status": StatusStreaming})

	go c.consume(s, st)
	return s.ID, nil
}

// Stop requests cancellation of the streaming session. The signal is
// fire-and-forget; a DONE already in flight still lands and wins.
func (c *Controller) Stop(ctx context.Context) error {
	c.mu.Lock()
	if c.cur == nil || c.cur.Status != StatusStreaming {
		c.mu.Unlock()
		return errors.New("session: no generation to stop")
	}
	c.stopRequested = true
	st := c.stream
	c.mu.Unlock()

	if err := c.solver.StopGeneration(ctx); err != nil {
		c.logger.Warn("stop signal failed", zap.Error(err))
	}
	if st != nil {
		st.Close()
	}
	return nil
}

// Reset discards a terminal session so the next snapshot starts clean.
func (c *Controller) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.activeLocked() {
		return ErrJobActive
	}
	c.cur = nil
	c.stream = nil
	c.stopRequested = false
	return nil
}

// consume applies stream events strictly in receipt order.
func (c *Controller) consume(s *Session, st *solver.Stream) {
	for ev := range st.C {
		switch ev.Kind {
		case solver.EventProgress:
			c.mu.Lock()
			s.Progress = ev.Progress
			c.mu.Unlock()
			c.notify(s.ID, map[string]any{
				"type":    "progress",
				"percent": ev.Progress,
				"color":   solver.ProgressColor(ev.Progress),
			})
			if c.runs != nil {
				_ = c.runs.UpdateRunProgress(context.Background(), s.ID, ev.Progress)
			}

		case solver.EventLog:
			c.mu.Lock()
			s.Log = append(s.Log, ev.Line)
			c.mu.Unlock()
			c.notify(s.ID, map[string]any{"type": "log", "line": ev.Line})

		case solver.EventDone:
			c.handleDone(s, st, ev.Payload)
			return
		}
	}

	// Channel closed without DONE: either a user stop or a transport break.
	c.mu.Lock()
	if s.Status != StatusStreaming {
		c.mu.Unlock()
		return
	}
	stopped := c.stopRequested
	c.mu.Unlock()

	if stopped {
		c.finish(s, StatusCancelled, "")
		return
	}
	msg := "event stream interrupted"
	if err := st.Err(); err != nil {
		msg = err.Error()
	}
	c.logger.Error("generation stream failed", zap.String("session_id", s.ID), zap.String("error", msg))
	c.finish(s, StatusFailed, msg)
}

func (c *Controller) handleDone(s *Session, st *solver.Stream, payload json.RawMessage) {
	// DONE is logically last; the channel is closed exactly once, here.
	st.Close()

	var res models.SolverResult
	if err := json.Unmarshal(payload, &res); err != nil {
		c.logger.Error("result payload decode failed", zap.String("session_id", s.ID), zap.Error(err))
		c.finish(s, StatusFailed, "malformed result payload: "+err.Error())
		return
	}

	c.mu.Lock()
	s.Result = &res
	c.mu.Unlock()
	c.finish(s, StatusDone, "")

	// Two independent projections into disjoint slots; their completion
	// order is unconstrained.
	go c.deriveByProfessor(s, &res)
	go c.deriveFreeRooms(s, &res)
}

func (c *Controller) deriveByProfessor(s *Session, res *models.SolverResult) {
	grid, err := c.solver.DeriveByProfessor(context.Background(), res.Schedule, res.Days, res.Slots)
	if err != nil {
		c.logger.Warn("by-professor projection failed", zap.String("session_id", s.ID), zap.Error(err))
		return
	}
	c.mu.Lock()
	s.ByProfessor = grid
	c.mu.Unlock()
	c.notify(s.ID, map[string]any{"type": "view", "view": "by_professor"})
}

func (c *Controller) deriveFreeRooms(s *Session, res *models.SolverResult) {
	grid, err := c.solver.DeriveFreeRooms(context.Background(), res.Schedule, res.Days, res.Slots)
	if err != nil {
		c.logger.Warn("free-rooms projection failed", zap.String("session_id", s.ID), zap.Error(err))
		return
	}
	c.mu.Lock()
	s.FreeRooms = grid
	c.mu.Unlock()
	c.notify(s.ID, map[string]any{"type": "view", "view": "free_rooms"})
}

// finish moves the session to a terminal (or back-to-idle) state and
// re-enables the start control.
func (c *Controller) finish(s *Session, status Status, detail string) {
	now := time.Now()
	c.mu.Lock()
	s.Status = status
	s.Error = detail
	s.FinishedAt = &now
	c.mu.Unlock()

	msg := map[string]any{"type": "status", "status": status}
	if detail != "" {
		msg["error"] = detail
	}
	c.notify(s.ID, msg)

	if c.runs != nil {
		_ = c.runs.FinishRun(context.Background(), s.ID, string(status), detail)
	}
}

func (c *Controller) notify(topic string, msg any) {
	if c.hub == nil {
		return
	}
	if err := c.hub.BroadcastJSON(topic, msg); err != nil {
		c.logger.Warn("broadcast failed", zap.Error(err))
	}
}
