package session

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/timetable-lab/console-service/internal/models"
	"github.com/timetable-lab/console-service/internal/solver"
)

func structuredRecord() models.CanonicalSettings {
	return models.CanonicalSettings{
		ScheduleStructure: models.ScheduleStructure{
			"Sunday": {"08:00-09:30": models.SlotSpec{Rules: []models.RoomRule{}}},
		},
	}
}

func newController(t *testing.T, handler http.Handler) (*Controller, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := solver.DefaultClientConfig(srv.URL)
	cfg.MaxRetries = 1
	cfg.InitialBackoff = time.Millisecond
	cfg.RequestTimeout = 2 * time.Second
	client := solver.NewClient(cfg, zap.NewNop())

	return NewController(client, nil, nil, zap.NewNop()), srv
}

func TestStartRejectsEmptyStructure(t *testing.T) {
	var calls int64
	c, _ := newController(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
	}))

	_, err := c.Start(context.Background(), models.CanonicalSettings{})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)

	// A day without slots is still empty.
	_, err = c.Start(context.Background(), models.CanonicalSettings{
		ScheduleStructure: models.ScheduleStructure{"Sunday": {}},
	})
	require.ErrorAs(t, err, &ve)

	assert.EqualValues(t, 0, atomic.LoadInt64(&calls), "local validation must not reach the solver")
	assert.Nil(t, c.Snapshot())
	assert.False(t, c.Active())
}

func TestSuccessfulRun(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/generate-schedule", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"ok"}`)
	})
	mux.HandleFunc("/stream-logs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fl := w.(http.Flusher)
		fmt.Fprint(w, "data: warming up\n\n")
		fmt.Fprint(w, "data: PROGRESS:45.2\n\n")
		fl.Flush()
		fmt.Fprint(w, `data: DONE{"schedule":{},"days":["Sunday"],"slots":["08:00-09:30"],"failures":[],"unassigned_courses":[]}`+"\n\n")
		fl.Flush()
	})
	mux.HandleFunc("/api/schedules/by-professor", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"Dr. Amrani":[]}`)
	})
	mux.HandleFunc("/api/schedules/free-rooms", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[[[]]]`)
	})

	c, _ := newController(t, mux)
	id, err := c.Start(context.Background(), structuredRecord())
	require.NoError(t, err)
	require.NotEmpty(t, id)

	require.Eventually(t, func() bool {
		s := c.Snapshot()
		return s != nil && s.Status == StatusDone
	}, 2*time.Second, 10*time.Millisecond)

	snap := c.Snapshot()
	assert.Equal(t, id, snap.ID)
	assert.InDelta(t, 45.2, snap.Progress, 1e-9)
	assert.Equal(t, []string{"warming up"}, snap.Log)
	require.NotNil(t, snap.Result)
	assert.Equal(t, []string{"Sunday"}, snap.Result.Days)
	assert.Empty(t, snap.Error)

	// The two projections land independently after DONE.
	require.Eventually(t, func() bool {
		s := c.Snapshot()
		return s.ByProfessor != nil && s.FreeRooms != nil
	}, 2*time.Second, 10*time.Millisecond)

	snap = c.Snapshot()
	assert.JSONEq(t, `{"Dr. Amrani":[]}`, string(snap.ByProfessor))
	assert.JSONEq(t, `[[[]]]`, string(snap.FreeRooms))

	assert.False(t, c.Active())
	assert.NoError(t, c.Reset())
	assert.Nil(t, c.Snapshot())
}

func TestStopCancelsWithoutFailure(t *testing.T) {
	var stopCalls int64
	mux := http.NewServeMux()
	mux.HandleFunc("/api/generate-schedule", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"ok"}`)
	})
	mux.HandleFunc("/api/stop-generation", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&stopCalls, 1)
		fmt.Fprint(w, `{"status":"ok"}`)
	})
	mux.HandleFunc("/stream-logs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fl := w.(http.Flusher)
		fmt.Fprint(w, "data: PROGRESS:10\n\n")
		fl.Flush()
		<-r.Context().Done()
	})

	c, _ := newController(t, mux)
	_, err := c.Start(context.Background(), structuredRecord())
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		s := c.Snapshot()
		return s != nil && s.Progress == 10
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, c.Stop(context.Background()))

	require.Eventually(t, func() bool {
		return c.Snapshot().Status == StatusCancelled
	}, 2*time.Second, 10*time.Millisecond)

	snap := c.Snapshot()
	assert.Equal(t, StatusCancelled, snap.Status)
	assert.NotEqual(t, StatusFailed, snap.Status)
	assert.EqualValues(t, 1, atomic.LoadInt64(&stopCalls))
	assert.False(t, c.Active())

	// Stopping again has nothing to act on.
	assert.Error(t, c.Stop(context.Background()))
}

func TestTransportBreakFailsSession(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/generate-schedule", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"ok"}`)
	})
	mux.HandleFunc("/stream-logs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fl := w.(http.Flusher)
		fmt.Fprint(w, "data: PROGRESS:5\n\n")
		fl.Flush()
		// Server closes the stream without a DONE.
	})

	c, _ := newController(t, mux)
	_, err := c.Start(context.Background(), structuredRecord())
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		s := c.Snapshot()
		return s != nil && s.Status == StatusFailed
	}, 2*time.Second, 10*time.Millisecond)

	assert.NotEmpty(t, c.Snapshot().Error)
	assert.False(t, c.Active())
}

func TestStartErrorReturnsToIdle(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/generate-schedule", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"status":"error","error":"no rooms loaded"}`)
	})

	c, _ := newController(t, mux)
	_, err := c.Start(context.Background(), structuredRecord())
	var se *solver.StartError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "no rooms loaded", se.Message)

	snap := c.Snapshot()
	require.NotNil(t, snap)
	assert.Equal(t, StatusIdle, snap.Status)
	assert.Equal(t, "no rooms loaded", snap.Error)
	assert.False(t, c.Active())

	// The failed attempt does not block the next start.
	_, err = c.Start(context.Background(), structuredRecord())
	require.ErrorAs(t, err, &se)
}

func TestSecondStartWhileActiveRejected(t *testing.T) {
	started := make(chan struct{})
	mux := http.NewServeMux()
	mux.HandleFunc("/api/generate-schedule", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"ok"}`)
	})
	mux.HandleFunc("/stream-logs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.(http.Flusher).Flush()
		close(started)
		<-r.Context().Done()
	})
	mux.HandleFunc("/api/stop-generation", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"ok"}`)
	})

	c, _ := newController(t, mux)
	_, err := c.Start(context.Background(), structuredRecord())
	require.NoError(t, err)
	<-started

	_, err = c.Start(context.Background(), structuredRecord())
	assert.ErrorIs(t, err, ErrJobActive)
	assert.ErrorIs(t, c.Reset(), ErrJobActive)

	require.NoError(t, c.Stop(context.Background()))
	require.Eventually(t, func() bool {
		return !c.Active()
	}, 2*time.Second, 10*time.Millisecond)
}
