package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub(zap.NewNop())
	t.Cleanup(hub.Close)

	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Subscribe(r.URL.Query().Get("session_id"), conn)
	}))
	t.Cleanup(srv.Close)
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server, topic string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?session_id=" + topic
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readOne(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	return string(msg)
}

func TestBroadcastRouting(t *testing.T) {
	hub, srv := newTestHub(t)

	sessionA := dial(t, srv, "session-a")
	wildcard := dial(t, srv, "")

	require.Eventually(t, func() bool {
		return hub.ClientCount("session-a") == 1 && hub.ClientCount(TopicAll) == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, hub.BroadcastJSON("session-a", map[string]any{"type": "progress", "progress": 42.0}))

	got := readOne(t, sessionA)
	assert.JSONEq(t, `{"type":"progress","progress":42}`, got)

	// The wildcard subscriber sees every topic.
	assert.JSONEq(t, `{"type":"progress","progress":42}`, readOne(t, wildcard))

	// A different topic does not reach session-a's subscriber.
	hub.Broadcast("session-b", []byte(`{"type":"progress","progress":99}`))
	assert.JSONEq(t, `{"type":"progress","progress":99}`, readOne(t, wildcard))

	sessionA.SetReadDeadline(time.Now().Add(150 * time.Millisecond))
	_, _, err := sessionA.ReadMessage()
	assert.Error(t, err)
}

func TestClientCountDropsOnDisconnect(t *testing.T) {
	hub, srv := newTestHub(t)

	conn := dial(t, srv, "session-x")
	require.Eventually(t, func() bool {
		return hub.ClientCount("session-x") == 1
	}, 2*time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool {
		return hub.ClientCount("session-x") == 0
	}, 2*time.Second, 10*time.Millisecond)
}
