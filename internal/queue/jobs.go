package queue

import (
	"time"

	"github.com/google/uuid"

	"github.com/codebuildervaibhav/segment-annotator/internal/types"
)

// Job status values
const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// ExportJob represents the export of one submitted result
type ExportJob struct {
	ID          string               `json:"id"`
	TaskID      string               `json:"taskId"`
	RequestName string               `json:"requestName"`
	Payload     *types.ResultPayload `json:"-"`
	Status      string               `json:"status"`
	Error       string               `json:"error,omitempty"`
	LocalPath   string               `json:"localPath,omitempty"`
	GDriveURL   string               `json:"gdriveUrl,omitempty"`
	CreatedAt   time.Time            `json:"createdAt"`
}

// NewExportJob creates a job with default values
func NewExportJob(taskID, requestName string, payload *types.ResultPayload) *ExportJob {
	if requestName == "" {
		requestName = "untitled"
	}
	return &ExportJob{
		ID:          uuid.NewString(),
		TaskID:      taskID,
		RequestName: requestName,
		Payload:     payload,
		Status:      StatusQueued,
		CreatedAt:   time.Now(),
	}
}
