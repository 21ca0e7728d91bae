package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codebuildervaibhav/segment-annotator/internal/labelconfig"
	"github.com/codebuildervaibhav/segment-annotator/internal/types"
)

func newTestDB(t *testing.T) *MetadataDB {
	t.Helper()
	db, err := NewMetadataDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func testTask(id string) *Task {
	return &Task{
		ID:            id,
		Name:          "episode " + id,
		ToolMode:      types.ToolModeLabel,
		Template:      labelconfig.Document{GlobalConfig: "e30="},
		Audios:        []types.Track{{URL: "media/" + id + ".wav", Duration: 10}},
		KeyAttribute:  "topic",
		ReviewEnabled: true,
	}
}

func TestTaskRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	require.NoError(t, db.CreateTask(ctx, testTask("t1")))
	require.NoError(t, db.CreateTask(ctx, testTask("t2")))
	assert.Error(t, db.CreateTask(ctx, testTask("t1")))

	got, err := db.GetTask(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "episode t1", got.Name)
	assert.Equal(t, "e30=", got.Template.GlobalConfig)
	assert.True(t, got.ReviewEnabled)
	require.Len(t, got.Audios, 1)
	assert.Equal(t, 10.0, got.Audios[0].Duration)

	_, err = db.GetTask(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	tasks, err := db.ListTasks(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, tasks, 2)

	require.NoError(t, db.UpdateAudios(ctx, "t1", []types.Track{{URL: "x.wav", Duration: 42}}))
	got, err = db.GetTask(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 42.0, got.Audios[0].Duration)
	assert.ErrorIs(t, db.UpdateAudios(ctx, "missing", nil), ErrNotFound)
}

func TestResultVersions(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	_, _, err := db.LoadResult(ctx, "t1")
	assert.ErrorIs(t, err, ErrNotFound)

	payload := &types.ResultPayload{
		Results: [][]types.Segment{{{ID: "a", Start: 0, End: 10, Content: []types.Line{{Role: "A", Text: "hi"}}}}},
		Audios:  []types.Track{{URL: "a.wav", Duration: 10}},
		AuditID: "audit-1",
	}
	v, err := db.SaveResult(ctx, "t1", payload, false)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	v, err = db.SaveResult(ctx, "t1", payload, true)
	require.NoError(t, err)
	assert.Equal(t, 2, v)

	loaded, info, err := db.LoadResult(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 2, info.Version)
	assert.True(t, info.Submitted)
	assert.Equal(t, "audit-1", loaded.AuditID)
	require.Len(t, loaded.Results, 1)
	assert.Equal(t, 10.0, loaded.Results[0][0].End)
	assert.Equal(t, "hi", loaded.Results[0][0].Content[0].Text)
}

func TestReviewsStatsAndPreferences(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	reviews, err := db.LoadReviews(ctx, "t1")
	require.NoError(t, err)
	assert.Empty(t, reviews)

	yes := true
	require.NoError(t, db.SaveReviews(ctx, "t1", types.Reviews{{"a": {QAChecked: &yes}}}))
	reviews, err = db.LoadReviews(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, reviews, 1)
	assert.True(t, *reviews[0]["a"].QAChecked)

	require.NoError(t, db.SaveStatistics(ctx, "t1", &types.Statistics{TotalSegments: 3}))
	stats, err := db.GetStatistics(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalSegments)

	require.NoError(t, db.SetPreference(ctx, "u1", PrefPlaybackSpeed, "1.5"))
	require.NoError(t, db.SetPreference(ctx, "u1", PrefPlaybackSpeed, "2"))
	assert.ErrorIs(t, db.SetPreference(ctx, "u1", "theme", "dark"), ErrUnknownPreference)
	prefs, err := db.GetPreferences(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{PrefPlaybackSpeed: "2"}, prefs)
}

func TestExportsAndLocalStorage(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	dir := t.TempDir()

	ls := NewLocalStorage(dir)
	ls.now = func() time.Time { return time.Date(2025, 1, 23, 14, 30, 22, 0, time.UTC) }

	payload := &types.ResultPayload{Results: [][]types.Segment{{
		{ID: "a", Start: 0, End: 61.5, Content: []types.Line{{Role: "A", Text: "hello"}, {Role: types.RoleNone}}},
	}}}
	path, err := ls.SaveExport("show: ep/1", payload)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "2025", "01", "23", "20250123_143022_show_ ep_1.json"), path)

	txt, err := os.ReadFile(strings.TrimSuffix(path, ".json") + ".txt")
	require.NoError(t, err)
	assert.Equal(t, "[00:00:00.000 - 00:01:01.500] A: hello\n", string(txt))

	require.NoError(t, db.SaveExport(ctx, "t1", path, ""))
	exports, err := db.ListExports(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, exports, 1)
	assert.Equal(t, path, exports[0].LocalPath)

	require.NoError(t, ls.RemoveExport(path))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
	require.NoError(t, db.DeleteExport(ctx, exports[0].ID))
	exports, err = db.ListExports(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, exports)
}
