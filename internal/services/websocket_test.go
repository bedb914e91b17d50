package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(nil)
	go hub.Run(ctx)
	t.Cleanup(cancel)
	return hub
}

func dial(t *testing.T, hub *Hub, id string, rooms ...string) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		HandleWebSocket(hub, w, r, id, "test", rooms)
	}))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.GetConnectedClients() == n }, 2*time.Second, 10*time.Millisecond)
}

func readMessage(t *testing.T, conn *websocket.Conn) WebSocketMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg WebSocketMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestHubDeliversOnlyToRoomMembers(t *testing.T) {
	hub := startHub(t)
	driver := dial(t, hub, "d1", "drivers")
	customer := dial(t, hub, "c1", "customer:c1")
	waitForClients(t, hub, 2)
	assert.Equal(t, 1, hub.RoomSize("drivers"))

	msg, err := EncodeMessage("pickup:created", map[string]string{"id": "p1"})
	require.NoError(t, err)
	require.NoError(t, hub.Deliver(context.Background(), "drivers", msg))

	got := readMessage(t, driver)
	assert.Equal(t, "pickup:created", got.Type)
	assert.JSONEq(t, `{"id":"p1"}`, string(got.Data))

	// the customer is not in the drivers room
	msg, err = EncodeMessage("pickup:status", map[string]string{"id": "p1", "status": "CANCELLED"})
	require.NoError(t, err)
	require.NoError(t, hub.Deliver(context.Background(), "customer:c1", msg))
	got = readMessage(t, customer)
	assert.Equal(t, "pickup:status", got.Type)
}

func TestHubCleansUpOnDisconnect(t *testing.T) {
	hub := startHub(t)
	conn := dial(t, hub, "d1", "drivers", "drivers:org-a")
	waitForClients(t, hub, 1)
	assert.Equal(t, 1, hub.RoomSize("drivers:org-a"))

	require.NoError(t, conn.Close())
	waitForClients(t, hub, 0)
	assert.Equal(t, 0, hub.RoomSize("drivers"))
	assert.Equal(t, 0, hub.RoomSize("drivers:org-a"))
}

func TestHubDeliverAfterShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(nil)
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()
	cancel()
	<-done

	// fill the buffered broadcast channel, then Deliver must fail instead of blocking
	var err error
	for i := 0; i <= sendBuffer; i++ {
		if err = hub.Deliver(context.Background(), "drivers", []byte(`{}`)); err != nil {
			break
		}
	}
	assert.ErrorIs(t, err, ErrTransportUnavailable)
}
