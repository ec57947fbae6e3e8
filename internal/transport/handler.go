// Package transport bridges WebSocket connections to sessions. Each
// accepted socket gets two goroutines: a read pump feeding inbound
// frames to the session, and a write pump draining the connection's
// outbound queue. Transport errors are fatal to their own connection
// and never touch anyone else's state.
package transport

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"roomhub/internal/config"
	"roomhub/internal/session"
)

// maxInboundFrameSize bounds a single client frame. Event envelopes are
// small; anything larger is a broken or hostile client.
const maxInboundFrameSize = 8192

// Handler upgrades HTTP requests and runs the per-connection pumps.
type Handler struct {
	coord    *session.Coordinator
	cfg      *config.WebSocketConfig
	upgrader websocket.Upgrader
}

// NewHandler creates a WebSocket handler bound to the session
// coordinator.
func NewHandler(coord *session.Coordinator, cfg *config.WebSocketConfig) *Handler {
	return &Handler{
		coord: coord,
		cfg:   cfg,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: cfg.HandshakeTimeout,
			CheckOrigin: func(r *http.Request) bool {
				// Origin policy belongs to the deployment's proxy layer.
				return true
			},
		},
	}
}

// HandleWebSocket upgrades the request and admits a session. A registry
// at capacity rejects the socket immediately with a try-again-later
// close frame; the connection never reaches the event loop.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade failed: %v", err)
		return
	}

	sess, err := h.coord.Accept()
	if err != nil {
		log.Printf("connection rejected: %v", err)
		msg := websocket.FormatCloseMessage(websocket.CloseTryAgainLater, ErrServerFull.Error())
		deadline := time.Now().Add(h.cfg.WriteTimeout)
		_ = ws.WriteControl(websocket.CloseMessage, msg, deadline)
		_ = ws.Close()
		return
	}

	go h.writePump(ws, sess)
	go h.readPump(ws, sess)
}

// readPump delivers inbound frames to the session until the socket
// dies or the session closes. Exiting tears the session down, which
// seals the outbound queue and in turn stops the write pump.
func (h *Handler) readPump(ws *websocket.Conn, sess *session.Lifecycle) {
	defer func() {
		sess.Close()
		_ = ws.Close()
	}()

	ws.SetReadLimit(maxInboundFrameSize)
	_ = ws.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout))
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("read failed: conn=%s err=%v", sess.Conn().ID(), err)
			}
			return
		}
		if err := sess.HandleFrame(data); err != nil {
			if !errors.Is(err, session.ErrSessionClosed) {
				log.Printf("frame handling failed: conn=%s err=%v", sess.Conn().ID(), err)
			}
			return
		}
	}
}

// writePump drains the outbound queue onto the socket and keeps the
// connection alive with pings. A closed queue means the session is
// gone: the pump sends a close frame and exits. A write error closes
// the session, since transport failures are always fatal to the
// connection.
func (h *Handler) writePump(ws *websocket.Conn, sess *session.Lifecycle) {
	ticker := time.NewTicker(h.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		_ = ws.Close()
	}()

	queue := sess.Conn().Queue()
	for {
		select {
		case frame, ok := <-queue.Frames():
			if !ok {
				msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
				_ = ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(h.cfg.WriteTimeout))
				return
			}
			_ = ws.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if err := ws.WriteJSON(frame); err != nil {
				log.Printf("write failed: conn=%s err=%v", sess.Conn().ID(), err)
				sess.Close()
				return
			}
		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				sess.Close()
				return
			}
		}
	}
}
