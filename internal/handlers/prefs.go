package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/codebuildervaibhav/segment-annotator/internal/storage"
)

// PreferenceHandler serves per-user player preferences
type PreferenceHandler struct {
	db *storage.MetadataDB
}

// NewPreferenceHandler creates a new preference handler
func NewPreferenceHandler(db *storage.MetadataDB) *PreferenceHandler {
	return &PreferenceHandler{db: db}
}

// Get returns every stored preference of a user
func (h *PreferenceHandler) Get(c *fiber.Ctx) error {
	prefs, err := h.db.GetPreferences(c.UserContext(), c.Params("uid"))
	if err != nil {
		return errorJSON(c, fiber.StatusInternalServerError, "ERR_DB", err.Error())
	}
	return c.JSON(prefs)
}

// Put stores the given preferences; unknown keys reject the whole request
func (h *PreferenceHandler) Put(c *fiber.Ctx) error {
	var body map[string]string
	if err := c.BodyParser(&body); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "ERR_INVALID_BODY", "Invalid request body")
	}

	uid := c.Params("uid")
	for key, value := range body {
		err := h.db.SetPreference(c.UserContext(), uid, key, value)
		if errors.Is(err, storage.ErrUnknownPreference) {
			return errorJSON(c, fiber.StatusBadRequest, "ERR_UNKNOWN_PREFERENCE", err.Error())
		}
		if err != nil {
			return errorJSON(c, fiber.StatusInternalServerError, "ERR_DB", err.Error())
		}
	}
	return h.Get(c)
}
