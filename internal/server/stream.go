package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dexbot/goswap/internal/domain"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

// handleOrderStream upgrades to a WebSocket and relays the order's live
// events until a terminal one. Subscription starts at upgrade time; no
// history is replayed.
func (s *Server) handleOrderStream(w http.ResponseWriter, r *http.Request) {
	orderID := pathParam(r, "orderID")
	if _, err := s.store.GetByID(r.Context(), orderID); err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			writeError(w, http.StatusNotFound, "order not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		serverLog.Warnf("ws upgrade failed: order=%s err=%v", orderID, err)
		return
	}

	sub := s.broadcaster.Subscribe(orderID)
	defer func() {
		s.broadcaster.Unsubscribe(orderID, sub)
		_ = conn.Close()
	}()
	serverLog.Debugf("observer attached: order=%s", orderID)

	// Reader goroutine: its only job is to notice the client going away.
	clientGone := make(chan struct{})
	go func() {
		defer close(clientGone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-clientGone:
			return
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case payload, ok := <-sub.C():
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
			var probe struct {
				Final bool `json:"final"`
			}
			if json.Unmarshal(payload, &probe) == nil && probe.Final {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "order reached a terminal state"))
				return
			}
		}
	}
}
