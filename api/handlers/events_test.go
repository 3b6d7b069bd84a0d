package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linesmerrill/civil-defense-api/models"
)

func dialHub(t *testing.T, h *Hub) (*websocket.Conn, func()) {
	srv := httptest.NewServer(http.HandlerFunc(h.OccurrencesWebSocketHandler))
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn, func() {
		conn.Close()
		srv.Close()
	}
}

func TestHubBroadcastReachesClients(t *testing.T) {
	h := NewHub()
	conn, closeAll := dialHub(t, h)
	defer closeAll()

	require.Eventually(t, func() bool { return h.Len() == 1 }, time.Second, 5*time.Millisecond)

	h.Broadcast(models.EventOccurrenceCreated, map[string]string{"raNumber": "2024-001"})

	var got struct {
		Event string            `json:"event"`
		Data  map[string]string `json:"data"`
	}
	conn.SetReadDeadline(time.Now().Add(time.Second))
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, models.EventOccurrenceCreated, got.Event)
	assert.Equal(t, "2024-001", got.Data["raNumber"])
}

func TestHubForgetsDisconnectedClients(t *testing.T) {
	h := NewHub()
	conn, closeAll := dialHub(t, h)
	defer closeAll()
	require.Eventually(t, func() bool { return h.Len() == 1 }, time.Second, 5*time.Millisecond)

	conn.Close()

	assert.Eventually(t, func() bool { return h.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestHubBroadcastWithoutClients(t *testing.T) {
	h := NewHub()
	assert.NotPanics(t, func() { h.Broadcast(models.EventOccurrenceRemoved, nil) })
}

func TestHubBroadcastDoesNotWaitOnStalledClients(t *testing.T) {
	h := NewHub()
	stalled := &wsClient{user: "lento", send: make(chan models.OccurrenceEvent, 1)}
	h.clients[stalled] = struct{}{}

	start := time.Now()
	for i := 0; i < 3; i++ {
		h.Broadcast(models.EventOccurrenceUpdated, map[string]int{"n": i})
	}

	assert.Less(t, time.Since(start), writeWait)
	assert.Equal(t, 0, h.Len())
	first, ok := <-stalled.send
	require.True(t, ok)
	assert.Equal(t, models.EventOccurrenceUpdated, first.Event)
	_, ok = <-stalled.send
	assert.False(t, ok)
}

func TestHubStalledClientDoesNotDelayOthers(t *testing.T) {
	h := NewHub()
	conn, closeAll := dialHub(t, h)
	defer closeAll()
	require.Eventually(t, func() bool { return h.Len() == 1 }, time.Second, 5*time.Millisecond)

	stalled := &wsClient{user: "lento", send: make(chan models.OccurrenceEvent)}
	h.mutex.Lock()
	h.clients[stalled] = struct{}{}
	h.mutex.Unlock()

	h.Broadcast(models.EventOccurrenceCreated, map[string]string{"raNumber": "2024-002"})

	var got models.OccurrenceEvent
	conn.SetReadDeadline(time.Now().Add(time.Second))
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, models.EventOccurrenceCreated, got.Event)
	assert.Equal(t, 1, h.Len())
}
