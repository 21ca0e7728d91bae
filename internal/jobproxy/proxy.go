package jobproxy

import (
	"context"
	"errors"
	"fmt"

	"github.com/codebuildervaibhav/segment-annotator/internal/storage"
	"github.com/codebuildervaibhav/segment-annotator/internal/types"
)

// ErrNoResult is returned by LoadResult when nothing has been saved yet
var ErrNoResult = errors.New("no saved result")

// SaveAck acknowledges a saved result
type SaveAck struct {
	Version int    `json:"version"`
	Link    string `json:"link"`
}

// JobProxy is the persistence collaborator of an annotation session
type JobProxy interface {
	Task(ctx context.Context) (*storage.Task, error)
	LoadResult(ctx context.Context) (*types.LoadedResult, error)
	SaveResult(ctx context.Context, payload *types.ResultPayload, submit bool) (SaveAck, error)
	LoadReviews(ctx context.Context) (types.Reviews, error)
	SaveReviews(ctx context.Context, reviews types.Reviews, submit bool) error
	SaveResultStat(ctx context.Context, stats *types.Statistics) error
	ValidateContent(ctx context.Context, results [][]types.Segment) ([]types.ScriptValidationResult, error)
}

// StoreProxy serves one task out of the sqlite store
type StoreProxy struct {
	db     *storage.MetadataDB
	taskID string
}

// NewStoreProxy returns the proxy of one task
func NewStoreProxy(db *storage.MetadataDB, taskID string) *StoreProxy {
	return &StoreProxy{db: db, taskID: taskID}
}

func (p *StoreProxy) Task(ctx context.Context) (*storage.Task, error) {
	return p.db.GetTask(ctx, p.taskID)
}

func (p *StoreProxy) LoadResult(ctx context.Context) (*types.LoadedResult, error) {
	loaded, _, err := p.db.LoadResult(ctx, p.taskID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNoResult
	}
	return loaded, err
}

func (p *StoreProxy) SaveResult(ctx context.Context, payload *types.ResultPayload, submit bool) (SaveAck, error) {
	version, err := p.db.SaveResult(ctx, p.taskID, payload, submit)
	if err != nil {
		return SaveAck{}, err
	}
	return SaveAck{Version: version, Link: fmt.Sprintf("/api/tasks/%s/result?version=%d", p.taskID, version)}, nil
}

func (p *StoreProxy) LoadReviews(ctx context.Context) (types.Reviews, error) {
	return p.db.LoadReviews(ctx, p.taskID)
}

func (p *StoreProxy) SaveReviews(ctx context.Context, reviews types.Reviews, _ bool) error {
	return p.db.SaveReviews(ctx, p.taskID, reviews)
}

func (p *StoreProxy) SaveResultStat(ctx context.Context, stats *types.Statistics) error {
	return p.db.SaveStatistics(ctx, p.taskID, stats)
}

func (p *StoreProxy) ValidateContent(_ context.Context, results [][]types.Segment) ([]types.ScriptValidationResult, error) {
	return ValidateContent(results), nil
}
