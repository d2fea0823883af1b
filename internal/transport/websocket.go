// SPDX-License-Identifier: MIT
package transport

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"deskviz/internal/audio"
	"deskviz/internal/log"

	"github.com/gorilla/websocket"
)

const writeWait = time.Second

// WebSocketOptions configures the optional endpoints of a WebSocketTransport.
type WebSocketOptions struct {
	Control Controller   // accepts pause/resume messages when set
	Source  Source       // serves GET /snapshot when set
	Metrics http.Handler // mounted on /metrics when set
}

// Messages sent to clients.
type levelsMessage struct {
	Type string `json:"type"`
	audio.Snapshot
}

type statusMessage struct {
	Type   string `json:"type"`
	Paused bool   `json:"paused"`
}

// controlMessage is sent by clients: {"action":"pause"|"resume"|"toggle"}.
type controlMessage struct {
	Action string `json:"action"`
}

// WebSocketTransport implements the Transport interface for WebSocket connections
type WebSocketTransport struct {
	opts      WebSocketOptions
	upgrader  websocket.Upgrader
	clients   map[*websocket.Conn]bool
	clientsMu sync.Mutex
	broadcast chan any
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
	listener  net.Listener
	server    *http.Server
}

// NewWebSocketTransport listens on addr and starts serving /ws.
func NewWebSocketTransport(addr string, opts WebSocketOptions) (*WebSocketTransport, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	wst := &WebSocketTransport{
		opts: opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Local overlay clients connect from file:// pages
			},
		},
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan any, 256),
		done:      make(chan struct{}),
		listener:  ln,
	}

	wst.start()
	return wst, nil
}

// Addr returns the address the server listens on.
func (wst *WebSocketTransport) Addr() net.Addr {
	return wst.listener.Addr()
}

// start begins the WebSocket server
func (wst *WebSocketTransport) start() {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wst.handleWebSocket)
	if wst.opts.Source != nil {
		mux.HandleFunc("/snapshot", wst.handleSnapshot)
	}
	if wst.opts.Metrics != nil {
		mux.Handle("/metrics", wst.opts.Metrics)
	}

	wst.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	wst.wg.Add(2)
	go func() {
		defer wst.wg.Done()
		log.Infof("WebSocketTransport: Starting WebSocket server on %s", wst.listener.Addr())
		if err := wst.server.Serve(wst.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("WebSocketTransport: Server error: %v", err)
		}
	}()
	go func() {
		defer wst.wg.Done()
		wst.handleBroadcasts()
	}()
}

func (wst *WebSocketTransport) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(levelsMessage{Type: "levels", Snapshot: wst.opts.Source.Snapshot()})
}

// handleWebSocket upgrades HTTP connections to WebSocket
func (wst *WebSocketTransport) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := wst.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("WebSocketTransport: Upgrade error: %v", err)
		return
	}

	wst.clientsMu.Lock()
	wst.clients[conn] = true
	total := len(wst.clients)
	wst.clientsMu.Unlock()
	log.Debugf("WebSocketTransport: Client connected, total: %d", total)

	go wst.readLoop(conn)
}

// readLoop handles control messages until the client disconnects.
func (wst *WebSocketTransport) readLoop(conn *websocket.Conn) {
	defer wst.drop(conn)
	for {
		var msg controlMessage
		if err := conn.ReadJSON(&msg); err != nil {
			var syntaxErr *json.SyntaxError
			if errors.As(err, &syntaxErr) {
				continue
			}
			return
		}
		wst.handleControl(conn, msg)
	}
}

func (wst *WebSocketTransport) handleControl(conn *websocket.Conn, msg controlMessage) {
	ctl := wst.opts.Control
	if ctl == nil {
		return
	}
	switch msg.Action {
	case "pause":
		ctl.Pause()
	case "resume":
		ctl.Resume()
	case "toggle":
		ctl.Toggle()
	case "status":
	default:
		log.Debugf("WebSocketTransport: Unknown action %q", msg.Action)
		return
	}
	log.Infow("capture control", "action", msg.Action, "paused", ctl.Paused())

	wst.clientsMu.Lock()
	defer wst.clientsMu.Unlock()
	if wst.clients[conn] {
		wst.write(conn, statusMessage{Type: "status", Paused: ctl.Paused()})
	}
}

func (wst *WebSocketTransport) drop(conn *websocket.Conn) {
	wst.clientsMu.Lock()
	delete(wst.clients, conn)
	total := len(wst.clients)
	wst.clientsMu.Unlock()
	conn.Close()
	log.Debugf("WebSocketTransport: Client disconnected, total: %d", total)
}

// write sends v to conn. clientsMu must be held.
func (wst *WebSocketTransport) write(conn *websocket.Conn, v any) {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(v); err != nil {
		log.Debugf("WebSocketTransport: Error sending to client: %v", err)
		conn.Close()
		delete(wst.clients, conn)
	}
}

// handleBroadcasts sends messages to all connected clients
func (wst *WebSocketTransport) handleBroadcasts() {
	for {
		select {
		case <-wst.done:
			return
		case data := <-wst.broadcast:
			wst.clientsMu.Lock()
			for client := range wst.clients {
				wst.write(client, data)
			}
			wst.clientsMu.Unlock()
		}
	}
}

// Send broadcasts data to all connected WebSocket clients. Snapshots are
// wrapped in a levels message. A full queue drops the message.
func (wst *WebSocketTransport) Send(data any) error {
	if snap, ok := data.(audio.Snapshot); ok {
		data = levelsMessage{Type: "levels", Snapshot: snap}
	}
	select {
	case <-wst.done:
		return errors.New("websocket transport closed")
	default:
	}
	select {
	case wst.broadcast <- data:
	default:
	}
	return nil
}

// Close shuts down the WebSocket server
func (wst *WebSocketTransport) Close() error {
	var err error
	wst.closeOnce.Do(func() {
		log.Debugf("WebSocketTransport: Closing server")
		close(wst.done)
		err = wst.server.Close()

		wst.clientsMu.Lock()
		for client := range wst.clients {
			client.Close()
		}
		wst.clients = make(map[*websocket.Conn]bool)
		wst.clientsMu.Unlock()

		wst.wg.Wait()
	})
	return err
}

// Ensure WebSocketTransport satisfies the interface
var _ Transport = (*WebSocketTransport)(nil)
