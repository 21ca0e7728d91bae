package handlers

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/codebuildervaibhav/segment-annotator/internal/media"
)

// GDriveHandler attaches media shared as a Google Drive link
type GDriveHandler struct {
	media       *MediaHandler
	client      *http.Client
	downloadURL string // format string taking the file id
}

// NewGDriveHandler creates a new Google Drive handler
func NewGDriveHandler(mh *MediaHandler) *GDriveHandler {
	return &GDriveHandler{
		media:       mh,
		client:      &http.Client{Timeout: 10 * time.Minute},
		downloadURL: "https://drive.google.com/uc?export=download&id=%s",
	}
}

// GDriveRequest represents the request body
type GDriveRequest struct {
	URL string `json:"url"`
	// Ext is the media extension, since Drive links do not carry one
	Ext string `json:"ext"`
}

// Handle downloads the linked file and appends it as a track of the task
func (h *GDriveHandler) Handle(c *fiber.Ctx) error {
	var req GDriveRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "ERR_INVALID_BODY", "Invalid request body")
	}
	if req.URL == "" {
		return errorJSON(c, fiber.StatusBadRequest, "ERR_NO_URL", "URL is required")
	}

	fileID := extractGDriveFileID(req.URL)
	if fileID == "" {
		return errorJSON(c, fiber.StatusBadRequest, "ERR_INVALID_URL", "Invalid Google Drive URL")
	}
	if req.Ext == "" {
		req.Ext = ".mp3"
	}
	if req.Ext[0] != '.' {
		req.Ext = "." + req.Ext
	}
	if !mediaExt(req.Ext) {
		return errorJSON(c, fiber.StatusBadRequest, "ERR_INVALID_FORMAT", "Unsupported media format")
	}

	taskID := c.Params("id")
	rel, abs, err := h.media.reserve(taskID, req.Ext)
	if err != nil {
		return errorJSON(c, fiber.StatusInternalServerError, "ERR_SAVE_FAILED", "Failed to save downloaded file")
	}

	h.media.log.Infow("downloading from google drive", "file", fileID, "task", taskID)
	status, err := h.download(c, fmt.Sprintf(h.downloadURL, fileID), abs)
	if err != nil {
		os.Remove(abs)
		h.media.log.Warnw("google drive download failed", "file", fileID, "error", err)
		if status != 0 {
			return errorJSON(c, fiber.StatusBadRequest, "ERR_FILE_NOT_ACCESSIBLE",
				"File not accessible (may be private or doesn't exist)")
		}
		return errorJSON(c, fiber.StatusBadGateway, "ERR_DOWNLOAD_FAILED", "Failed to download file from Google Drive")
	}

	return h.media.attach(c, taskID, rel, abs)
}

// download copies url into path. A non-zero status means the server answered
// with something other than 200.
func (h *GDriveHandler) download(c *fiber.Ctx, url, path string) (int, error) {
	httpReq, err := http.NewRequestWithContext(c.UserContext(), http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	resp, err := h.client.Do(httpReq)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, fmt.Errorf("unexpected status %s", resp.Status)
	}

	out, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	defer out.Close()

	limit := h.media.maxBytes()
	n, err := io.Copy(out, io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return 0, err
	}
	if n > limit {
		return 0, fmt.Errorf("file too large (max %dMB)", h.media.maxSizeMB)
	}
	return 0, nil
}

func mediaExt(ext string) bool {
	return media.ValidateMediaFormat("file" + ext)
}

var (
	// https://drive.google.com/file/d/{ID}/view
	gdriveFilePattern = regexp.MustCompile(`/file/d/([a-zA-Z0-9_-]+)`)
	// https://drive.google.com/open?id={ID}
	gdriveQueryPattern = regexp.MustCompile(`[?&]id=([a-zA-Z0-9_-]+)`)
	// bare id
	gdriveIDPattern = regexp.MustCompile(`^([a-zA-Z0-9_-]{25,40})$`)
)

// extractGDriveFileID extracts the file ID from various Google Drive URL formats
func extractGDriveFileID(url string) string {
	for _, re := range []*regexp.Regexp{gdriveFilePattern, gdriveQueryPattern, gdriveIDPattern} {
		if matches := re.FindStringSubmatch(url); len(matches) > 1 {
			return matches[1]
		}
	}
	return ""
}
