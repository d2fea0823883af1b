// SPDX-License-Identifier: MIT
package transport

import (
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	"deskviz/internal/analysis"
	"deskviz/internal/audio"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWebSocket(t *testing.T, opts WebSocketOptions) *WebSocketTransport {
	t.Helper()
	wst, err := NewWebSocketTransport("127.0.0.1:0", opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = wst.Close() })
	return wst
}

func dial(t *testing.T, wst *WebSocketTransport) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws://"+wst.Addr().String()+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitClients(t *testing.T, wst *WebSocketTransport, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		wst.clientsMu.Lock()
		defer wst.clientsMu.Unlock()
		return len(wst.clients) == n
	}, time.Second, time.Millisecond)
}

func TestWebSocketBroadcastsSnapshots(t *testing.T) {
	wst := newTestWebSocket(t, WebSocketOptions{})
	conn := dial(t, wst)
	waitClients(t, wst, 1)

	require.NoError(t, wst.Send(audio.Snapshot{
		Levels:    analysis.Levels{Volume: 0.5, Treble: 0.25},
		Device:    "Speakers",
		Available: true,
		Seq:       3,
	}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var got map[string]any
	require.NoError(t, conn.ReadJSON(&got))

	assert.Equal(t, "levels", got["type"])
	assert.Equal(t, 0.5, got["volume"])
	assert.Equal(t, 0.25, got["treble"])
	assert.Equal(t, "Speakers", got["device"])
	assert.Equal(t, true, got["available"])
	assert.Equal(t, float64(3), got["seq"])
}

func TestWebSocketControl(t *testing.T) {
	gate := audio.NewGate()
	wst := newTestWebSocket(t, WebSocketOptions{Control: gate})
	conn := dial(t, wst)
	waitClients(t, wst, 1)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var status statusMessage
	require.NoError(t, conn.WriteJSON(controlMessage{Action: "pause"}))
	require.NoError(t, conn.ReadJSON(&status))
	assert.Equal(t, "status", status.Type)
	assert.True(t, status.Paused)
	assert.True(t, gate.Paused())

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))

	require.NoError(t, conn.WriteJSON(controlMessage{Action: "resume"}))
	require.NoError(t, conn.ReadJSON(&status))
	assert.False(t, status.Paused)
	assert.False(t, gate.Paused())

	require.NoError(t, conn.WriteJSON(controlMessage{Action: "toggle"}))
	require.NoError(t, conn.ReadJSON(&status))
	assert.True(t, status.Paused)
}

func TestWebSocketClientDisconnect(t *testing.T) {
	wst := newTestWebSocket(t, WebSocketOptions{})
	conn := dial(t, wst)
	waitClients(t, wst, 1)

	conn.Close()
	waitClients(t, wst, 0)
}

func TestWebSocketHTTPEndpoints(t *testing.T) {
	sink := audio.NewSink()
	sink.Publish(audio.Snapshot{Levels: analysis.Levels{Bass: 0.75}, Device: "Monitor", Available: true})

	registry := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "deskviz_test_total", Help: "test"})
	registry.MustRegister(counter)
	counter.Inc()

	wst := newTestWebSocket(t, WebSocketOptions{
		Source:  sink,
		Metrics: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	})
	base := "http://" + wst.Addr().String()

	resp, err := http.Get(base + "/snapshot")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var snap map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	assert.Equal(t, 0.75, snap["bass"])
	assert.Equal(t, "Monitor", snap["device"])

	resp2, err := http.Get(base + "/metrics")
	require.NoError(t, err)
	defer resp2.Body.Close()
	body, err := io.ReadAll(resp2.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "deskviz_test_total 1")
}

func TestWebSocketSendAfterClose(t *testing.T) {
	wst, err := NewWebSocketTransport("127.0.0.1:0", WebSocketOptions{})
	require.NoError(t, err)
	require.NoError(t, wst.Close())
	assert.NoError(t, wst.Close())
	assert.Error(t, wst.Send(audio.Snapshot{}))
}
