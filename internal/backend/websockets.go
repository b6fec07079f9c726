package backend

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeWait     = 10 * time.Second
	pongWait      = 60 * time.Second
	pingPeriod    = (pongWait * 9) / 10
	maxMsgSize    = 1 << 12 // 4 KB
	changesBuffer = 64
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true }, // TODO: restrict origins once the simulator is reachable beyond localhost
}

// wsConnect streams the current state of every device and light, then every
// change as it happens, as {"type": "device"|"light", "data": {...}} envelopes.
func (h *Handler) wsConnect(c *gin.Context) {
	changes, cancel := h.home.Subscribe(changesBuffer)
	defer cancel()

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Errorw("ws_upgrade_failed", "err", err)
		return
	}
	defer func() { _ = conn.Close() }()

	conn.SetReadLimit(maxMsgSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	go h.startReader(conn, done)

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	if err := h.sendSnapshot(conn); err != nil {
		h.log.Infow("ws_write_failed_initial", "err", err)
		return
	}

	for {
		select {
		case <-done:
			return
		case <-c.Request.Context().Done():
			return
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.log.Infow("ws_ping_failed", "err", err)
				return
			}
		case ch, ok := <-changes:
			if !ok {
				return
			}
			if err := writeChange(conn, ch); err != nil {
				h.log.Infow("ws_write_failed", "err", err)
				return
			}
		}
	}
}

// startReader drains incoming messages to handle control frames and detect closure.
func (h *Handler) startReader(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			h.log.Infow("ws_read_closed", "err", err)
			return
		}
	}
}

func (h *Handler) sendSnapshot(conn *websocket.Conn) error {
	for _, d := range h.home.Devices() {
		if err := writeChange(conn, Change{Type: "device", Data: d}); err != nil {
			return err
		}
	}
	for _, l := range h.home.Lights() {
		if err := writeChange(conn, Change{Type: "light", Data: l}); err != nil {
			return err
		}
	}
	return nil
}

func writeChange(conn *websocket.Conn, c Change) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(c)
}
