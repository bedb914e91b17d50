package client

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/chachabrian/wastepickup-backend/internal/models"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAPI serves just enough of the pickup API for the SDK
type fakeAPI struct {
	mu       sync.Mutex
	pending  []models.PickupPayload
	reads    atomic.Int32
	conns    chan *websocket.Conn
	upgrader websocket.Upgrader
}

func newFakeAPI(t *testing.T) (*fakeAPI, *httptest.Server) {
	api := &fakeAPI{conns: make(chan *websocket.Conn, 4)}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/pickups/pending", api.authed(func(w http.ResponseWriter, r *http.Request) {
		api.reads.Add(1)
		api.mu.Lock()
		list := api.pending
		api.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"pickups": list})
	}))
	mux.HandleFunc("/api/pickups/p1/accept", api.authed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "already accepted by another driver"})
	}))
	mux.HandleFunc("/api/pickups", api.authed(func(w http.ResponseWriter, r *http.Request) {
		var req CreateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
			return
		}
		p := pending("new", t0, req.Latitude, req.Longitude)
		p.Category = req.Category
		writeJSON(w, http.StatusCreated, map[string]any{"message": "ok", "pickup": p})
	}))
	mux.HandleFunc("/api/ws", api.authed(func(w http.ResponseWriter, r *http.Request) {
		conn, err := api.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		api.conns <- conn
	}))

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return api, srv
}

func (a *fakeAPI) authed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid or expired token"})
			return
		}
		next(w, r)
	}
}

func (a *fakeAPI) setPending(list ...models.PickupPayload) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pending = list
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func TestClientCreateAndPending(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.setPending(pending("p1", t0, 0, 0))
	c := New(srv.URL+"/api/", "good")

	created, err := c.Create(context.Background(), CreateRequest{Latitude: 1.5, Longitude: 2.5, Category: models.WasteCategoryBoth})
	require.NoError(t, err)
	assert.Equal(t, "new", created.ID)
	assert.Equal(t, 1.5, created.Location.Latitude)
	assert.Equal(t, models.WasteCategoryBoth, created.Category)

	list, err := c.Pending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, ids(list))
}

func TestClientErrors(t *testing.T) {
	_, srv := newFakeAPI(t)

	_, err := New(srv.URL+"/api", "good").Accept(context.Background(), "p1")
	require.Error(t, err)
	assert.True(t, IsConflict(err))
	assert.Contains(t, err.Error(), "already accepted")

	_, err = New(srv.URL+"/api", "bad").Pending(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.False(t, IsConflict(err))

	_, err = New(srv.URL+"/api", "bad").Dial(context.Background())
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
}

func TestDriverFeedCatchesUpAndReconnects(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.setPending(pending("p1", t0, 0, 0))

	view := NewDriverView()
	view.now = func() time.Time { return t0 }
	feed := NewDriverFeed(New(srv.URL+"/api", "good"), view,
		FeedConfig{Resync: time.Hour, MinBackoff: 10 * time.Millisecond, MaxBackoff: 20 * time.Millisecond},
		slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- feed.Run(ctx) }()

	conn := <-api.conns
	require.Eventually(t, func() bool { return view.Len() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, conn.WriteJSON(event(t, EventCreated, pending("p2", t0.Add(time.Second), 0, 0))))
	require.Eventually(t, func() bool { return view.Len() == 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, conn.WriteJSON(event(t, EventAccepted, map[string]string{"id": "p1", "status": "ASSIGNED"})))
	require.Eventually(t, func() bool {
		items := view.Items()
		return len(items) == 1 && items[0].ID == "p2"
	}, time.Second, 5*time.Millisecond)

	// events missed while offline are healed by the catch-up read
	api.setPending(pending("p3", t0, 0, 0))
	require.NoError(t, conn.Close())

	select {
	case conn = <-api.conns:
	case <-time.After(2 * time.Second):
		t.Fatal("feed did not reconnect")
	}
	require.Eventually(t, func() bool {
		items := view.Items()
		return len(items) == 1 && items[0].ID == "p3"
	}, time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, api.reads.Load(), int32(2))

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("feed did not stop")
	}
	_ = conn.Close()
}
