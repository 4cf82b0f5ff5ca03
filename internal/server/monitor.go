package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	gosync "sync"
	"time"

	"github.com/coder/websocket"
)

// monitor streams sync activity to WebSocket clients, for watching a
// device fleet converge during development.

// frameKind tags a monitor frame.
type frameKind string

const (
	frameKindPull frameKind = "pull"
	frameKindPush frameKind = "push"
)

// frame is one monitor broadcast.
type frame struct {
	Kind      frameKind `json:"kind"`
	UserID    string    `json:"user_id"`
	Changes   int       `json:"changes"`
	Records   int       `json:"records"`
	Timestamp time.Time `json:"timestamp"`
}

type monitor struct {
	logger *log.Logger

	clientsMu gosync.RWMutex
	clients   map[*websocket.Conn]bool

	frames chan frame
}

func newMonitor(logger *log.Logger) *monitor {
	return &monitor{
		logger:  logger,
		clients: make(map[*websocket.Conn]bool),
		frames:  make(chan frame, 100),
	}
}

func (m *monitor) notePull(userID string, changes, records int) {
	m.note(frame{Kind: frameKindPull, UserID: userID, Changes: changes, Records: records})
}

func (m *monitor) notePush(userID string, changes, records int) {
	m.note(frame{Kind: frameKindPush, UserID: userID, Changes: changes, Records: records})
}

func (m *monitor) note(f frame) {
	f.Timestamp = time.Now()
	select {
	case m.frames <- f:
	default:
		m.logger.Println("monitor queue full, dropping frame")
	}
}

// run broadcasts frames until ctx is cancelled, then closes every
// client.
func (m *monitor) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			m.clientsMu.Lock()
			for conn := range m.clients {
				_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
				delete(m.clients, conn)
			}
			m.clientsMu.Unlock()
			return

		case f := <-m.frames:
			data, err := json.Marshal(f)
			if err != nil {
				m.logger.Printf("marshal frame: %v", err)
				continue
			}
			m.clientsMu.RLock()
			conns := make([]*websocket.Conn, 0, len(m.clients))
			for conn := range m.clients {
				conns = append(conns, conn)
			}
			m.clientsMu.RUnlock()

			for _, conn := range conns {
				writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
				err := conn.Write(writeCtx, websocket.MessageText, data)
				cancel()
				if err != nil {
					m.removeClient(conn)
				}
			}
		}
	}
}

func (m *monitor) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		m.logger.Printf("websocket accept: %v", err)
		return
	}

	m.clientsMu.Lock()
	m.clients[conn] = true
	total := len(m.clients)
	m.clientsMu.Unlock()
	m.logger.Printf("monitor client connected (total: %d)", total)

	// Read loop: clients only listen, but reading surfaces closes. The
	// request context dies when this handler returns, so the loop reads
	// with its own context; shutdown closes the conn, which unblocks it.
	go func() {
		for {
			if _, _, err := conn.Read(context.Background()); err != nil {
				m.removeClient(conn)
				return
			}
		}
	}()
}

func (m *monitor) removeClient(conn *websocket.Conn) {
	m.clientsMu.Lock()
	if m.clients[conn] {
		delete(m.clients, conn)
		_ = conn.Close(websocket.StatusNormalClosure, "")
	}
	m.clientsMu.Unlock()
}
