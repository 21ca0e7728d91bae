package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/codebuildervaibhav/segment-annotator/internal/session"
)

// SessionHandler serves annotation sessions
type SessionHandler struct {
	sessions *session.Manager
	log      *zap.SugaredLogger
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(sessions *session.Manager, log *zap.SugaredLogger) *SessionHandler {
	return &SessionHandler{sessions: sessions, log: log}
}

// Open opens (or joins) the session of a task. A session whose data failed
// to load is still returned, with its state and error, so the client can show it.
func (h *SessionHandler) Open(c *fiber.Ctx) error {
	s, err := h.sessions.Open(c.UserContext(), c.Params("id"))
	if err != nil {
		return sendError(c, err)
	}
	return c.JSON(s.View())
}

// Get returns the current view of a session
func (h *SessionHandler) Get(c *fiber.Ctx) error {
	s, err := h.sessions.Get(c.Params("sid"))
	if err != nil {
		return sendError(c, err)
	}
	return c.JSON(s.View())
}

// Apply runs one edit op
func (h *SessionHandler) Apply(c *fiber.Ctx) error {
	s, err := h.sessions.Get(c.Params("sid"))
	if err != nil {
		return sendError(c, err)
	}

	var op session.Op
	if err := c.BodyParser(&op); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "ERR_INVALID_BODY", "Invalid request body")
	}
	out, err := s.Apply(op)
	if err != nil {
		return sendError(c, err)
	}
	return c.JSON(out)
}

// SaveRequest represents the request body of a save
type SaveRequest struct {
	Submit bool `json:"submit"`
}

// Save persists the session as a draft or submits it
func (h *SessionHandler) Save(c *fiber.Ctx) error {
	s, err := h.sessions.Get(c.Params("sid"))
	if err != nil {
		return sendError(c, err)
	}

	var req SaveRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return errorJSON(c, fiber.StatusBadRequest, "ERR_INVALID_BODY", "Invalid request body")
		}
	}
	if c.QueryBool("submit") {
		req.Submit = true
	}

	out, err := s.Save(c.UserContext(), req.Submit)
	if err != nil {
		status, body := errorBody(err)
		if status == fiber.StatusInternalServerError {
			// the store is unreachable; local state is intact and the client may retry
			status, body["code"] = fiber.StatusBadGateway, "ERR_SAVE_FAILED"
		}
		return c.Status(status).JSON(body)
	}
	return c.JSON(out)
}

// Close saves a dirty session as a draft and closes it
func (h *SessionHandler) Close(c *fiber.Ctx) error {
	if err := h.sessions.Close(c.UserContext(), c.Params("sid")); err != nil {
		return sendError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
