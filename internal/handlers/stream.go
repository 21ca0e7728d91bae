package handlers

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/codebuildervaibhav/segment-annotator/internal/render"
	"github.com/codebuildervaibhav/segment-annotator/internal/session"
)

// StreamHandler handles the WebSocket edit stream of a session. Clients send
// ops as text messages; every connection receives the render intents of all
// edits applied to the session.
type StreamHandler struct {
	sessions *session.Manager
	log      *zap.SugaredLogger
}

// NewStreamHandler creates a new stream handler
func NewStreamHandler(sessions *session.Manager, log *zap.SugaredLogger) *StreamHandler {
	return &StreamHandler{sessions: sessions, log: log}
}

// writeWait bounds a single write to a client
const writeWait = 10 * time.Second

// streamWriter serializes writes to one connection
type streamWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *streamWriter) send(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return w.conn.WriteJSON(v)
}

// Render implements render.Renderer. The session calls it from the
// connection's own delivery goroutine.
func (w *streamWriter) Render(track int, intents []render.Intent) error {
	return w.send(fiber.Map{"type": "render", "track": track, "intents": intents})
}

// Handle processes WebSocket connections
func (h *StreamHandler) Handle(c *websocket.Conn) {
	defer c.Close()

	sid := c.Params("sid")
	w := &streamWriter{conn: c}

	s, err := h.sessions.Get(sid)
	if err != nil {
		_, body := errorBody(err)
		w.send(body)
		return
	}

	detach := s.Attach(w)
	defer detach()
	h.log.Infow("websocket connection established", "session", sid)

	for {
		messageType, message, err := c.ReadMessage()
		if err != nil {
			h.log.Debugw("websocket read ended", "session", sid, "error", err)
			break
		}
		if messageType != websocket.TextMessage {
			continue
		}
		if string(message) == "END" {
			break
		}

		var op session.Op
		if err := json.Unmarshal(message, &op); err != nil {
			w.send(fiber.Map{"type": "error", "error": "Invalid op", "code": "ERR_INVALID_OP"})
			continue
		}
		out, err := s.Apply(op)
		if err != nil {
			_, body := errorBody(err)
			body["type"] = "error"
			w.send(body)
			continue
		}
		// intents already went out through Render
		out.Intents = nil
		if err := w.send(fiber.Map{"type": "outcome", "outcome": out}); err != nil {
			break
		}
	}

	h.log.Infow("websocket connection closed", "session", sid)
}
