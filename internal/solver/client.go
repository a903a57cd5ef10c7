package solver

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/timetable-lab/console-service/internal/models"
)

// StartError is a non-success response to a generation start request. The
// session returns to idle; Message carries the solver-reported error or a
// generic fallback.
type StartError struct {
	Message string
}

func (e *StartError) Error() string { return e.Message }

const genericStartError = "failed to start generation"

// ClientConfig holds configuration for the solver HTTP client.
type ClientConfig struct {
	BaseURL            string
	MaxRetries         int
	InitialBackoff     time.Duration
	MaxBackoff         time.Duration
	RequestTimeout     time.Duration
	MaxConcurrentCalls int
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig(baseURL string) ClientConfig {
	return ClientConfig{
		BaseURL:            strings.TrimRight(baseURL, "/"),
		MaxRetries:         3,
		InitialBackoff:     100 * time.Millisecond,
		MaxBackoff:         5 * time.Second,
		RequestTimeout:     30 * time.Second,
		MaxConcurrentCalls: 100,
	}
}

// Client talks to the remote solver service: inventory reads, generation
// start/stop, the event stream, derived projections and whole-state
// operations. Idempotent calls are retried with exponential backoff;
// generation start and stop are never retried.
type Client struct {
	cfg    ClientConfig
	http   *http.Client
	logger *zap.Logger
	sem    chan struct{}
}

// NewClient creates a solver client.
func NewClient(cfg ClientConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger, _ = zap.NewProduction()
	}
	return &Client{
		cfg: cfg,
		// The stream outlives any per-request timeout, so the underlying
		// http.Client carries none; request contexts bound regular calls.
		http:   &http.Client{},
		logger: logger,
		sem:    make(chan struct{}, cfg.MaxConcurrentCalls),
	}
}

func (c *Client) acquire(ctx context.Context) error {
	select {
	case c.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) release() { <-c.sem }

// retry executes op with exponential backoff.
func (c *Client) retry(ctx context.Context, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.InitialBackoff
	b.MaxInterval = c.cfg.MaxBackoff
	b.MaxElapsedTime = c.cfg.RequestTimeout

	return backoff.Retry(func() error {
		err := op()
		if err != nil {
			c.logger.Warn("solver call failed, retrying", zap.Error(err))
		}
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.cfg.MaxRetries)), ctx))
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	var rd io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("solver: %s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// getJSON is doJSON with retry, for idempotent reads and pure projections.
func (c *Client) getJSON(ctx context.Context, method, path string, body, out any) error {
	if err := c.acquire(ctx); err != nil {
		return err
	}
	defer c.release()
	return c.retry(ctx, func() error {
		return c.doJSON(ctx, method, path, body, out)
	})
}

// Teachers fetches the teacher inventory.
func (c *Client) Teachers(ctx context.Context) ([]models.TeacherInfo, error) {
	var out []models.TeacherInfo
	err := c.getJSON(ctx, http.MethodGet, "/teachers", nil, &out)
	return out, err
}

// Courses fetches the course inventory.
func (c *Client) Courses(ctx context.Context) ([]models.CourseInfo, error) {
	var out []models.CourseInfo
	err := c.getJSON(ctx, http.MethodGet, "/students", nil, &out)
	return out, err
}

// Rooms fetches the room inventory.
func (c *Client) Rooms(ctx context.Context) ([]models.RoomInfo, error) {
	var out []models.RoomInfo
	err := c.getJSON(ctx, http.MethodGet, "/rooms", nil, &out)
	return out, err
}

// Levels fetches the level name list.
func (c *Client) Levels(ctx context.Context) ([]string, error) {
	var out []string
	err := c.getJSON(ctx, http.MethodGet, "/api/levels", nil, &out)
	return out, err
}

// Inventory fetches all four reference lists.
func (c *Client) Inventory(ctx context.Context) (models.Inventory, error) {
	var inv models.Inventory
	var err error
	if inv.Teachers, err = c.Teachers(ctx); err != nil {
		return inv, err
	}
	if inv.Courses, err = c.Courses(ctx); err != nil {
		return inv, err
	}
	if inv.Rooms, err = c.Rooms(ctx); err != nil {
		return inv, err
	}
	if inv.Levels, err = c.Levels(ctx); err != nil {
		return inv, err
	}
	return inv, nil
}

// Ping probes solver liveness with a cheap inventory read.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return c.doJSON(ctx, http.MethodGet, "/api/levels", nil, nil)
}

type startResponse struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

// StartGeneration submits the canonical settings record. It is deliberately
// not retried: a duplicate submit would race two solver runs.
func (c *Client) StartGeneration(ctx context.Context, rec models.CanonicalSettings) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	payload, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/api/generate-schedule", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var sr startResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil || sr.Status != "ok" {
		msg := sr.Error
		if msg == "" {
			msg = genericStartError
		}
		return &StartError{Message: msg}
	}
	return nil
}

// StopGeneration sends the best-effort cancellation signal. The solver may
// still complete: a DONE racing past the stop is shown, not suppressed.
func (c *Client) StopGeneration(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()
	return c.doJSON(ctx, http.MethodPost, "/api/stop-generation", nil, nil)
}

// Stream is one open event channel. C closes when the stream ends; Err
// reports the transport error, nil on a clean close.
type Stream struct {
	C <-chan Event

	cancel context.CancelFunc
	mu     sync.Mutex
	err    error
	closed bool
}

// Err returns the transport error recorded before C closed.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close tears down the stream. Safe to call more than once.
func (s *Stream) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	s.cancel()
}

func (s *Stream) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil && !s.closed {
		s.err = err
	}
}

// maxEventSize bounds one stream line; DONE payloads carry whole result
// grids.
const maxEventSize = 64 * 1024 * 1024

// StreamEvents opens the unidirectional generation event stream. Messages
// arrive as server-sent events and are decoded into the tagged union in
// receipt order.
func (c *Client) StreamEvents(ctx context.Context) (*Stream, error) {
	ctx, cancel := context.WithCancel(ctx)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/stream-logs", nil)
	if err != nil {
		cancel()
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		cancel()
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("solver: stream-logs: status %d", resp.StatusCode)
	}

	events := make(chan Event, 64)
	s := &Stream{C: events, cancel: cancel}

	go func() {
		defer close(events)
		defer resp.Body.Close()

		sc := bufio.NewScanner(resp.Body)
		sc.Buffer(make([]byte, 64*1024), maxEventSize)

		var data []string
		flush := func() {
			if len(data) == 0 {
				return
			}
			ev := DecodeEvent(strings.Join(data, "\n"))
			data = data[:0]
			select {
			case events <- ev:
			case <-ctx.Done():
			}
		}

		for sc.Scan() {
			line := sc.Text()
			switch {
			case line == "":
				flush()
			case strings.HasPrefix(line, "data: "):
				data = append(data, line[len("data: "):])
			case strings.HasPrefix(line, "data:"):
				data = append(data, line[len("data:"):])
			default:
				// Comment or unknown SSE field, skip.
			}
		}
		flush()
		if err := sc.Err(); err != nil && ctx.Err() == nil {
			s.setErr(err)
		}
	}()

	return s, nil
}

type derivePayload struct {
	Schedule map[string]models.LevelGrid `json:"schedule"`
	Days     []string                    `json:"days"`
	Slots    []string                    `json:"slots"`
}

// DeriveByProfessor requests the by-professor projection of a completed
// schedule.
func (c *Client) DeriveByProfessor(ctx context.Context, schedule map[string]models.LevelGrid, days, slots []string) (models.Grid, error) {
	var out json.RawMessage
	err := c.getJSON(ctx, http.MethodPost, "/api/schedules/by-professor", derivePayload{schedule, days, slots}, &out)
	return models.Grid(out), err
}

// DeriveFreeRooms requests the free-rooms projection of a completed schedule.
func (c *Client) DeriveFreeRooms(ctx context.Context, schedule map[string]models.LevelGrid, days, slots []string) (models.Grid, error) {
	var out json.RawMessage
	err := c.getJSON(ctx, http.MethodPost, "/api/schedules/free-rooms", derivePayload{schedule, days, slots}, &out)
	return models.Grid(out), err
}

type validatePayload struct {
	Schedule map[string]models.LevelGrid `json:"schedule"`
	Days     []string                    `json:"days"`
	Slots    []string                    `json:"slots"`
	Settings models.CanonicalSettings    `json:"settings"`
}

// Validate submits a completed schedule for constraint validation and
// returns the solver's findings.
func (c *Client) Validate(ctx context.Context, schedule map[string]models.LevelGrid, days, slots []string, settings models.CanonicalSettings) ([]models.ValidationFinding, error) {
	var out []models.ValidationFinding
	err := c.getJSON(ctx, http.MethodPost, "/api/validate-schedule", validatePayload{schedule, days, slots, settings}, &out)
	return out, err
}

type checkPayload struct {
	Schedule map[string]models.LevelGrid `json:"schedule"`
	Settings models.CanonicalSettings    `json:"settings"`
}

// ComprehensiveCheck runs the solver's missing/duplicate consistency check.
func (c *Client) ComprehensiveCheck(ctx context.Context, schedule map[string]models.LevelGrid, settings models.CanonicalSettings) ([]models.CheckFinding, error) {
	var out []models.CheckFinding
	err := c.getJSON(ctx, http.MethodPost, "/api/comprehensive-check", checkPayload{schedule, settings}, &out)
	return out, err
}

// Backup fetches the whole-state backup payload, opaque to the console.
func (c *Client) Backup(ctx context.Context) (json.RawMessage, error) {
	var out json.RawMessage
	err := c.getJSON(ctx, http.MethodGet, "/api/backup", nil, &out)
	return out, err
}

// Restore pushes a whole-state backup payload back to the solver.
func (c *Client) Restore(ctx context.Context, payload json.RawMessage) error {
	return c.doJSON(ctx, http.MethodPost, "/api/restore", payload, nil)
}

// ResetAll wipes all solver-side state.
func (c *Client) ResetAll(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodPost, "/api/reset-all", nil, nil)
}

// DownloadTemplate fetches the spreadsheet template used for bulk imports.
func (c *Client) DownloadTemplate(ctx context.Context) (string, []byte, error) {
	return c.Export(ctx, "/api/data-template", nil, "data-template.xlsx")
}

// ImportData forwards an opaque spreadsheet upload to the solver and returns
// its report untouched.
func (c *Client) ImportData(ctx context.Context, contentType string, body io.Reader) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/api/import-data", body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("solver: import: status %d", resp.StatusCode)
	}
	return data, nil
}

// Export posts an export request and returns the binary body together with
// the download filename resolved from the response headers.
func (c *Client) Export(ctx context.Context, path string, payload any, fallbackName string) (string, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	var rd io.Reader
	method := http.MethodGet
	if payload != nil {
		body, err := json.Marshal(payload)
		if err != nil {
			return "", nil, err
		}
		rd = bytes.NewReader(body)
		method = http.MethodPost
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, rd)
	if err != nil {
		return "", nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", nil, fmt.Errorf("solver: export %s: status %d", path, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", nil, err
	}
	name := FilenameFromContentDisposition(resp.Header.Get("Content-Disposition"), fallbackName)
	return name, data, nil
}
