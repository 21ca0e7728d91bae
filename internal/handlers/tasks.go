package handlers

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/codebuildervaibhav/segment-annotator/internal/labelconfig"
	"github.com/codebuildervaibhav/segment-annotator/internal/media"
	"github.com/codebuildervaibhav/segment-annotator/internal/storage"
	"github.com/codebuildervaibhav/segment-annotator/internal/types"
)

// TaskHandler serves task records and their stored results
type TaskHandler struct {
	db *storage.MetadataDB
}

// NewTaskHandler creates a new task handler
func NewTaskHandler(db *storage.MetadataDB) *TaskHandler {
	return &TaskHandler{db: db}
}

// CreateTaskRequest represents the request body
type CreateTaskRequest struct {
	ID            string               `json:"id"`
	Name          string               `json:"name"`
	ToolMode      string               `json:"toolMode"`
	Template      labelconfig.Document `json:"template"`
	Audios        []types.Track        `json:"audios"`
	KeyAttribute  string               `json:"keyAttribute"`
	ReviewEnabled bool                 `json:"reviewEnabled"`
}

// Create stores a new task
func (h *TaskHandler) Create(c *fiber.Ctx) error {
	var req CreateTaskRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "ERR_INVALID_BODY", "Invalid request body")
	}
	if req.Name == "" {
		return errorJSON(c, fiber.StatusBadRequest, "ERR_NO_NAME", "Name is required")
	}

	switch req.ToolMode {
	case "":
		req.ToolMode = types.ToolModeLabel
	case types.ToolModeLabel, types.ToolModeReview, types.ToolModeAudit:
	default:
		return errorJSON(c, fiber.StatusBadRequest, "ERR_INVALID_TOOL_MODE",
			fmt.Sprintf("Unknown tool mode %q", req.ToolMode))
	}

	for _, a := range req.Audios {
		if !media.ValidateMediaFormat(a.URL) {
			return errorJSON(c, fiber.StatusBadRequest, "ERR_INVALID_FORMAT",
				fmt.Sprintf("Unsupported media format: %s", a.URL))
		}
	}

	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	task := &storage.Task{
		ID:            req.ID,
		Name:          req.Name,
		ToolMode:      req.ToolMode,
		Template:      req.Template,
		Audios:        req.Audios,
		KeyAttribute:  req.KeyAttribute,
		ReviewEnabled: req.ReviewEnabled,
	}
	if err := h.db.CreateTask(c.UserContext(), task); err != nil {
		return errorJSON(c, fiber.StatusConflict, "ERR_TASK_EXISTS", err.Error())
	}

	// report template problems up front instead of at first open
	cfg := labelconfig.Parse(task.Template)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"task":    task,
		"notices": cfg.Notices,
	})
}

// List returns the most recent tasks
func (h *TaskHandler) List(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)
	tasks, err := h.db.ListTasks(c.UserContext(), limit)
	if err != nil {
		return errorJSON(c, fiber.StatusInternalServerError, "ERR_DB", err.Error())
	}
	return c.JSON(tasks)
}

// Get returns one task
func (h *TaskHandler) Get(c *fiber.Ctx) error {
	task, err := h.db.GetTask(c.UserContext(), c.Params("id"))
	if err != nil {
		return sendError(c, err)
	}
	return c.JSON(task)
}

// Result returns the latest stored result of a task
func (h *TaskHandler) Result(c *fiber.Ctx) error {
	result, info, err := h.db.LoadResult(c.UserContext(), c.Params("id"))
	if errors.Is(err, storage.ErrNotFound) {
		return errorJSON(c, fiber.StatusNotFound, "ERR_NO_RESULT", "No result saved yet")
	}
	if err != nil {
		return sendError(c, err)
	}
	return c.JSON(fiber.Map{"result": result, "info": info})
}

// Statistics returns the statistics saved with the latest result
func (h *TaskHandler) Statistics(c *fiber.Ctx) error {
	st, err := h.db.GetStatistics(c.UserContext(), c.Params("id"))
	if errors.Is(err, storage.ErrNotFound) {
		return errorJSON(c, fiber.StatusNotFound, "ERR_NO_STATISTICS", "No statistics saved yet")
	}
	if err != nil {
		return sendError(c, err)
	}
	return c.JSON(st)
}
