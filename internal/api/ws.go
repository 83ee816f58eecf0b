package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

var opsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The feed is operational tooling on a trusted network; browsers
	// are not the expected client.
	CheckOrigin: func(r *http.Request) bool { return true },
}

const (
	wsWriteWait  = 10 * time.Second
	wsPingPeriod = 30 * time.Second
)

// handleOpsEvents streams the operational event bus over a WebSocket.
// Slow consumers miss events rather than backpressuring exchanges.
func (s *Server) handleOpsEvents(w http.ResponseWriter, r *http.Request) {
	if s.bus == nil {
		s.errorResponse(w, http.StatusNotFound, "event bus not configured")
		return
	}

	conn, err := opsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	events := s.bus.Subscribe(64)
	defer s.bus.Unsubscribe(events)

	s.logger.Info("ops event subscriber connected", "remote", r.RemoteAddr)

	// Reader goroutine: we never expect inbound messages, but reading
	// is required to process control frames and notice closes.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case evt, ok := <-events:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(evt); err != nil {
				s.logger.Debug("ops event write failed", "error", err)
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			s.logger.Info("ops event subscriber disconnected", "remote", r.RemoteAddr)
			return
		}
	}
}
