package jobproxy

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codebuildervaibhav/segment-annotator/internal/storage"
	"github.com/codebuildervaibhav/segment-annotator/internal/types"
)

func TestValidateContent(t *testing.T) {
	results := [][]types.Segment{{
		{ID: "a", Content: []types.Line{
			{Role: "A", Text: "fine"},
			{Role: "B"},
			{Role: types.RoleNone, Text: "orphan"},
			{Role: "C", Text: "bell\a"},
		}},
	}}

	findings := ValidateContent(results)
	require.Len(t, findings, 3)
	assert.Equal(t, 1, findings[0].Line)
	assert.Equal(t, types.LevelError, findings[0].Level)
	assert.Equal(t, types.LevelWarning, findings[1].Level)
	assert.Equal(t, 3, findings[2].Line)
	assert.True(t, HasErrors(findings))

	assert.False(t, HasErrors(ValidateContent([][]types.Segment{{{ID: "b", Content: []types.Line{{Role: "A", Text: "ok"}}}}})))
}

func TestStoreProxy(t *testing.T) {
	ctx := context.Background()
	db, err := storage.NewMetadataDB(filepath.Join(t.TempDir(), "proxy.db"))
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.CreateTask(ctx, &storage.Task{ID: "t1", Name: "ep", ToolMode: types.ToolModeLabel}))
	var p JobProxy = NewStoreProxy(db, "t1")

	task, err := p.Task(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ep", task.Name)

	_, err = p.LoadResult(ctx)
	assert.ErrorIs(t, err, ErrNoResult)

	ack, err := p.SaveResult(ctx, &types.ResultPayload{AuditID: "x"}, false)
	require.NoError(t, err)
	assert.Equal(t, 1, ack.Version)
	assert.Contains(t, ack.Link, "version=1")

	loaded, err := p.LoadResult(ctx)
	require.NoError(t, err)
	assert.Equal(t, "x", loaded.AuditID)

	require.NoError(t, p.SaveResultStat(ctx, &types.Statistics{TotalWords: 7}))
	require.NoError(t, p.SaveReviews(ctx, types.Reviews{{}}, true))
	reviews, err := p.LoadReviews(ctx)
	require.NoError(t, err)
	assert.Len(t, reviews, 1)
}
