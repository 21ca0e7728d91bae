package handlers

import (
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/codebuildervaibhav/segment-annotator/internal/logging"
	"github.com/codebuildervaibhav/segment-annotator/internal/qa"
	"github.com/codebuildervaibhav/segment-annotator/internal/queue"
	"github.com/codebuildervaibhav/segment-annotator/internal/segment"
	"github.com/codebuildervaibhav/segment-annotator/internal/session"
	"github.com/codebuildervaibhav/segment-annotator/internal/storage"
)

// Version is reported by the health endpoint
const Version = "1.0.0"

// ExportLookup reports the state of queued exports
type ExportLookup interface {
	Job(id string) (queue.ExportJob, bool)
}

// Deps are the collaborators of the HTTP layer
type Deps struct {
	DB          *storage.MetadataDB
	Sessions    *session.Manager
	Exports     ExportLookup
	Prober      session.Prober
	MediaDir    string
	MaxUploadMB int
	Logs        *logging.LogBuffer
	Log         *zap.SugaredLogger
}

// Setup registers every route on app
func Setup(app *fiber.App, d Deps) {
	if d.Log == nil {
		d.Log = zap.NewNop().Sugar()
	}

	tasks := NewTaskHandler(d.DB)
	sessions := NewSessionHandler(d.Sessions, d.Log)
	media := NewMediaHandler(d.DB, d.Prober, d.MediaDir, d.MaxUploadMB, d.Log)
	gdrive := NewGDriveHandler(media)
	imports := NewImportHandler(d.Sessions, d.MaxUploadMB, d.Log)
	prefs := NewPreferenceHandler(d.DB)
	stream := NewStreamHandler(d.Sessions, d.Log)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":   "healthy",
			"version":  Version,
			"sessions": d.Sessions.Len(),
		})
	})

	app.Get("/logs", func(c *fiber.Ctx) error {
		var logs []string
		if d.Logs != nil {
			logs = d.Logs.GetLogs()
		}
		return c.JSON(fiber.Map{"logs": logs})
	})

	api := app.Group("/api")

	api.Post("/tasks", tasks.Create)
	api.Get("/tasks", tasks.List)
	api.Get("/tasks/:id", tasks.Get)
	api.Get("/tasks/:id/result", tasks.Result)
	api.Get("/tasks/:id/statistics", tasks.Statistics)
	api.Post("/tasks/:id/media", media.Upload)
	api.Post("/tasks/:id/media/gdrive", gdrive.Handle)
	api.Post("/tasks/:id/session", sessions.Open)

	api.Get("/sessions/:sid", sessions.Get)
	api.Post("/sessions/:sid/ops", sessions.Apply)
	api.Post("/sessions/:sid/save", sessions.Save)
	api.Delete("/sessions/:sid", sessions.Close)
	api.Post("/sessions/:sid/tracks/:track/import", imports.Handle)

	api.Get("/exports/:id", func(c *fiber.Ctx) error {
		if d.Exports == nil {
			return errorJSON(c, fiber.StatusNotFound, "ERR_EXPORT_NOT_FOUND", "Exports are disabled")
		}
		job, ok := d.Exports.Job(c.Params("id"))
		if !ok {
			return errorJSON(c, fiber.StatusNotFound, "ERR_EXPORT_NOT_FOUND", "Export not found")
		}
		return c.JSON(job)
	})

	api.Get("/users/:uid/preferences", prefs.Get)
	api.Put("/users/:uid/preferences", prefs.Put)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/sessions/:sid", websocket.New(stream.Handle))
}

func errorJSON(c *fiber.Ctx, status int, code, msg string) error {
	return c.Status(status).JSON(fiber.Map{
		"error": msg,
		"code":  code,
	})
}

// errorBody maps domain errors onto a status and an error body
func errorBody(err error) (int, fiber.Map) {
	var verr *qa.ValidationError
	var syntax *json.SyntaxError
	var typeErr *json.UnmarshalTypeError

	status, code := fiber.StatusInternalServerError, "ERR_INTERNAL"
	switch {
	case errors.As(err, &verr):
		return fiber.StatusUnprocessableEntity, fiber.Map{
			"error":    err.Error(),
			"code":     "ERR_VALIDATION",
			"problems": verr.Problems,
		}
	case errors.Is(err, session.ErrNotFound):
		status, code = fiber.StatusNotFound, "ERR_SESSION_NOT_FOUND"
	case errors.Is(err, storage.ErrNotFound):
		status, code = fiber.StatusNotFound, "ERR_TASK_NOT_FOUND"
	case errors.Is(err, session.ErrSessionFailed):
		status, code = fiber.StatusConflict, "ERR_SESSION_FAILED"
	case errors.Is(err, session.ErrSessionClosed):
		status, code = fiber.StatusGone, "ERR_SESSION_CLOSED"
	case errors.Is(err, session.ErrReviewDisabled):
		status, code = fiber.StatusForbidden, "ERR_REVIEW_DISABLED"
	case errors.Is(err, qa.ErrUnfinished), errors.Is(err, qa.ErrReasonRequired):
		status, code = fiber.StatusUnprocessableEntity, "ERR_REVIEW_REFUSED"
	case errors.Is(err, segment.ErrSegmentNotFound):
		status, code = fiber.StatusNotFound, "ERR_SEGMENT_NOT_FOUND"
	case errors.Is(err, segment.ErrInvalidTime), errors.Is(err, segment.ErrInvalidDuration),
		errors.Is(err, segment.ErrUnknownKey):
		status, code = fiber.StatusUnprocessableEntity, "ERR_INVALID_DATA"
	case errors.Is(err, session.ErrUnknownOp), errors.Is(err, session.ErrBadTrack),
		errors.As(err, &syntax), errors.As(err, &typeErr):
		status, code = fiber.StatusBadRequest, "ERR_INVALID_OP"
	}
	return status, fiber.Map{"error": err.Error(), "code": code}
}

func sendError(c *fiber.Ctx, err error) error {
	status, body := errorBody(err)
	return c.Status(status).JSON(body)
}
