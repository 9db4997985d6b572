package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/dorm-seat-reservation/internal/service"
)

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func startHub(t *testing.T, snapshot func(context.Context) ([]Message, error)) (*Hub, string) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	hub := NewHub(nil)
	go hub.Run(ctx)

	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Serve(r.Context(), conn, r.URL.Query().Get("admin") == "1", snapshot)
	}))
	t.Cleanup(srv.Close)
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func read(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func waitClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.Clients() == n }, 2*time.Second, 10*time.Millisecond)
}

func staticSnapshot(msgs ...Message) func(context.Context) ([]Message, error) {
	return func(context.Context) ([]Message, error) { return msgs, nil }
}

func TestHub_InitialSnapshotThenBroadcast(t *testing.T) {
	hub, url := startHub(t, staticSnapshot(
		Message{Event: service.EventInitialReservations, Data: []int{}},
		Message{Event: service.EventInitialSettings, Data: map[string]any{}},
	))
	conn := dial(t, url)

	assert.Equal(t, service.EventInitialReservations, read(t, conn).Event)
	assert.Equal(t, service.EventInitialSettings, read(t, conn).Event)

	require.NoError(t, hub.Broadcast(context.Background(), service.EventReservationsUpdated, []int{1}, false))
	f := read(t, conn)
	assert.Equal(t, service.EventReservationsUpdated, f.Event)
	assert.JSONEq(t, `[1]`, string(f.Data))
}

func TestHub_AdminOnlyMessages(t *testing.T) {
	hub, url := startHub(t, staticSnapshot())
	public := dial(t, url)
	adminConn := dial(t, url+"?admin=1")
	waitClients(t, hub, 2)

	require.NoError(t, hub.Broadcast(context.Background(), service.EventAdminAnnouncementUpdated, "secret", true))
	require.NoError(t, hub.Broadcast(context.Background(), service.EventAnnouncementUpdated, "hello", false))

	assert.Equal(t, service.EventAdminAnnouncementUpdated, read(t, adminConn).Event)
	assert.Equal(t, service.EventAnnouncementUpdated, read(t, adminConn).Event)
	// the public subscriber never sees the admin message
	assert.Equal(t, service.EventAnnouncementUpdated, read(t, public).Event)
}

func TestHub_BroadcastDuringSnapshotIsDeliveredAfter(t *testing.T) {
	release := make(chan struct{})
	hub, url := startHub(t, func(context.Context) ([]Message, error) {
		<-release
		return []Message{{Event: service.EventInitialReservations, Data: []int{}}}, nil
	})
	conn := dial(t, url)
	waitClients(t, hub, 1)

	require.NoError(t, hub.Broadcast(context.Background(), service.EventReservationsUpdated, []int{7}, false))
	close(release)

	assert.Equal(t, service.EventInitialReservations, read(t, conn).Event)
	f := read(t, conn)
	assert.Equal(t, service.EventReservationsUpdated, f.Event)
	assert.JSONEq(t, `[7]`, string(f.Data))
}

func TestHub_SnapshotFailureDisconnects(t *testing.T) {
	hub, url := startHub(t, func(context.Context) ([]Message, error) {
		return nil, errors.New("store down")
	})
	conn := dial(t, url)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
	waitClients(t, hub, 0)
}

func TestHub_ClientGoneIsUnregistered(t *testing.T) {
	hub, url := startHub(t, staticSnapshot())
	conn := dial(t, url)
	waitClients(t, hub, 1)
	conn.Close()
	waitClients(t, hub, 0)
}

func TestHub_BroadcastAfterStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(nil)
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()
	cancel()
	<-stopped
	assert.ErrorIs(t, hub.Broadcast(context.Background(), "x", nil, false), ErrClosed)
}

type countingCache struct{ n int }

func (c *countingCache) Invalidate(context.Context) error {
	c.n++
	return nil
}

func TestFanout(t *testing.T) {
	hub, url := startHub(t, staticSnapshot())
	conn := dial(t, url)
	waitClients(t, hub, 1)

	cache := &countingCache{}
	f := &Fanout{Hub: hub, Cache: cache}
	require.NoError(t, f.Broadcast(context.Background(), service.EventSettingsUpdated, map[string]bool{"ok": true}, service.AudienceAll))
	assert.Equal(t, 1, cache.n)
	assert.Equal(t, service.EventSettingsUpdated, read(t, conn).Event)

	require.NoError(t, (&Fanout{Cache: cache}).Broadcast(context.Background(), "x", nil, service.AudienceAll))
	assert.Equal(t, 2, cache.n)
}
