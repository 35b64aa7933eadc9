package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"netgauge/internal/meter"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The server only binds to loopback, so origin checks add nothing.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleWebSocket streams one RateSnapshot per poll tick until the
// client disconnects. A slow client drops snapshots rather than
// stalling the engine's publish path.
func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Debug("WebSocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	send := make(chan meter.RateSnapshot, 16)
	id := s.engine.Subscribe(func(snapshot meter.RateSnapshot) {
		select {
		case send <- snapshot:
		default:
		}
	})
	defer s.engine.Unsubscribe(id)

	// Reader goroutine only watches for the client going away.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case snapshot := <-send:
			if err := conn.WriteJSON(snapshot); err != nil {
				slog.Debug("WebSocket write failed", "error", err)
				return
			}
		}
	}
}
