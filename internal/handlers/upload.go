package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/codebuildervaibhav/segment-annotator/internal/media"
	"github.com/codebuildervaibhav/segment-annotator/internal/session"
	"github.com/codebuildervaibhav/segment-annotator/internal/storage"
	"github.com/codebuildervaibhav/segment-annotator/internal/types"
)

// MediaHandler attaches media files to tasks
type MediaHandler struct {
	db        *storage.MetadataDB
	prober    session.Prober
	mediaDir  string
	maxSizeMB int
	log       *zap.SugaredLogger
}

// NewMediaHandler creates a new media handler
func NewMediaHandler(db *storage.MetadataDB, prober session.Prober, mediaDir string, maxSizeMB int, log *zap.SugaredLogger) *MediaHandler {
	return &MediaHandler{
		db:        db,
		prober:    prober,
		mediaDir:  mediaDir,
		maxSizeMB: maxSizeMB,
		log:       log,
	}
}

func (h *MediaHandler) maxBytes() int64 {
	return int64(h.maxSizeMB) * 1024 * 1024
}

// Upload stores an uploaded media file and appends it as a track of the task
func (h *MediaHandler) Upload(c *fiber.Ctx) error {
	taskID := c.Params("id")

	file, err := c.FormFile("file")
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "ERR_NO_FILE", "No file uploaded")
	}
	if file.Size > h.maxBytes() {
		return errorJSON(c, fiber.StatusBadRequest, "ERR_FILE_TOO_LARGE",
			fmt.Sprintf("File too large (max %dMB)", h.maxSizeMB))
	}
	if !media.ValidateMediaFormat(file.Filename) {
		return errorJSON(c, fiber.StatusBadRequest, "ERR_INVALID_FORMAT", "Unsupported media format")
	}

	rel, abs, err := h.reserve(taskID, filepath.Ext(file.Filename))
	if err != nil {
		h.log.Errorw("failed to create media directory", "error", err)
		return errorJSON(c, fiber.StatusInternalServerError, "ERR_SAVE_FAILED", "Failed to save file")
	}
	if err := c.SaveFile(file, abs); err != nil {
		h.log.Errorw("failed to save uploaded media", "error", err)
		return errorJSON(c, fiber.StatusInternalServerError, "ERR_SAVE_FAILED", "Failed to save file")
	}

	return h.attach(c, taskID, rel, abs)
}

// reserve returns a fresh media path for a task, relative to the media
// directory and absolute
func (h *MediaHandler) reserve(taskID, ext string) (rel, abs string, err error) {
	rel = filepath.Join(taskID, uuid.NewString()+ext)
	abs = filepath.Join(h.mediaDir, rel)
	return rel, abs, os.MkdirAll(filepath.Dir(abs), 0755)
}

// attach probes a stored media file and appends it to the task's tracks
func (h *MediaHandler) attach(c *fiber.Ctx, taskID, rel, abs string) error {
	ctx := c.UserContext()
	task, err := h.db.GetTask(ctx, taskID)
	if err != nil {
		os.Remove(abs)
		return sendError(c, err)
	}

	duration, err := h.probe(ctx, abs)
	if err != nil {
		os.Remove(abs)
		h.log.Warnw("media probe failed", "task", taskID, "error", err)
		return errorJSON(c, fiber.StatusUnprocessableEntity, "ERR_PROBE_FAILED", err.Error())
	}

	track := types.Track{URL: filepath.ToSlash(rel), Duration: duration}
	audios := append(task.Audios, track)
	if err := h.db.UpdateAudios(ctx, taskID, audios); err != nil {
		os.Remove(abs)
		return sendError(c, err)
	}

	h.log.Infow("media attached", "task", taskID, "url", track.URL, "duration", duration)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"track": track,
		"index": len(audios) - 1,
	})
}

func (h *MediaHandler) probe(ctx context.Context, path string) (float64, error) {
	if h.prober == nil {
		return 0, fmt.Errorf("no media prober configured")
	}
	return h.prober.Duration(ctx, path)
}

// ImportHandler loads speech recognizer output into a session track
type ImportHandler struct {
	sessions  *session.Manager
	maxSizeMB int
	log       *zap.SugaredLogger
}

// NewImportHandler creates a new import handler
func NewImportHandler(sessions *session.Manager, maxSizeMB int, log *zap.SugaredLogger) *ImportHandler {
	return &ImportHandler{sessions: sessions, maxSizeMB: maxSizeMB, log: log}
}

// Handle replaces a track's segments with a Whisper transcript. An optional
// diarization file assigns roles by speaker overlap.
func (h *ImportHandler) Handle(c *fiber.Ctx) error {
	s, err := h.sessions.Get(c.Params("sid"))
	if err != nil {
		return sendError(c, err)
	}
	trackIdx, err := c.ParamsInt("track")
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "ERR_INVALID_TRACK", "Track must be a number")
	}

	file, err := c.FormFile("transcript")
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "ERR_NO_FILE", "No transcript uploaded")
	}
	data, err := h.read(file)
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "ERR_FILE_TOO_LARGE", err.Error())
	}
	transcript, err := media.ParseWhisper(data)
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "ERR_INVALID_TRANSCRIPT", err.Error())
	}

	opts := media.ImportOptions{
		Role:              c.FormValue("role"),
		LanguageAttribute: c.FormValue("languageAttribute"),
	}
	if raw := c.FormValue("speakers"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &opts.Speakers); err != nil {
			return errorJSON(c, fiber.StatusBadRequest, "ERR_INVALID_SPEAKERS", "speakers must be a JSON object")
		}
	}
	segs := media.ImportWhisper(transcript, opts)

	assigned := 0
	if df, err := c.FormFile("diarization"); err == nil {
		data, err := h.read(df)
		if err != nil {
			return errorJSON(c, fiber.StatusBadRequest, "ERR_FILE_TOO_LARGE", err.Error())
		}
		d, err := media.ParseDiarization(data)
		if err != nil {
			return errorJSON(c, fiber.StatusBadRequest, "ERR_INVALID_DIARIZATION", err.Error())
		}
		assigned = media.AssignSpeakers(segs, d, opts.Speakers)
	}

	report, err := s.Import(trackIdx, segs)
	if err != nil {
		return sendError(c, err)
	}
	h.log.Infow("transcript imported", "session", s.ID(), "track", trackIdx,
		"segments", len(segs), "speakersAssigned", assigned)
	return c.JSON(fiber.Map{
		"report":           report,
		"segments":         len(segs),
		"speakersAssigned": assigned,
	})
}

func (h *ImportHandler) read(fh *multipart.FileHeader) ([]byte, error) {
	max := int64(h.maxSizeMB) * 1024 * 1024
	if fh.Size > max {
		return nil, fmt.Errorf("file too large (max %dMB)", h.maxSizeMB)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, max))
}
