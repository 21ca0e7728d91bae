package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codebuildervaibhav/segment-annotator/internal/types"
)

type fakeExporter struct {
	panics bool
	err    error
}

func (f *fakeExporter) SaveExport(name string, _ *types.ResultPayload) (string, error) {
	if f.panics {
		panic("disk on fire")
	}
	if f.err != nil {
		return "", f.err
	}
	return "/exports/" + name + ".json", nil
}

type flakyUploader struct {
	mu       sync.Mutex
	failures int
	calls    int
}

func (f *flakyUploader) Upload(name string, _ *types.ResultPayload) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failures {
		return "", errors.New("503")
	}
	return "https://drive.example/" + name, nil
}

type recorder struct {
	mu      sync.Mutex
	entries []string
}

func (r *recorder) SaveExport(_ context.Context, taskID, localPath, url string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, taskID+"|"+localPath+"|"+url)
	return nil
}

func (r *recorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.entries...)
}

func newPool(exp Exporter, up Uploader, db ExportRecorder) *WorkerPool {
	wp := NewWorkerPool(2, exp, up, db, nil)
	wp.backoff = func(int) time.Duration { return 0 }
	wp.Start()
	return wp
}

func waitStatus(t *testing.T, wp *WorkerPool, id string) ExportJob {
	t.Helper()
	var job ExportJob
	require.Eventually(t, func() bool {
		var ok bool
		job, ok = wp.Job(id)
		return ok && (job.Status == StatusCompleted || job.Status == StatusFailed)
	}, 2*time.Second, 5*time.Millisecond)
	return job
}

func TestExportRetriesUpload(t *testing.T) {
	up := &flakyUploader{failures: 2}
	db := &recorder{}
	wp := newPool(&fakeExporter{}, up, db)
	defer wp.Stop()

	job := NewExportJob("t1", "ep1", &types.ResultPayload{})
	require.NoError(t, wp.Enqueue(job))

	got := waitStatus(t, wp, job.ID)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.Equal(t, "https://drive.example/ep1", got.GDriveURL)
	assert.Equal(t, 3, up.calls)
	assert.Equal(t, []string{"t1|/exports/ep1.json|https://drive.example/ep1"}, db.all())
}

func TestExportKeepsLocalWhenUploadGivesUp(t *testing.T) {
	up := &flakyUploader{failures: 5}
	db := &recorder{}
	wp := newPool(&fakeExporter{}, up, db)
	defer wp.Stop()

	job := NewExportJob("t1", "", &types.ResultPayload{})
	require.NoError(t, wp.Enqueue(job))

	got := waitStatus(t, wp, job.ID)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.Empty(t, got.GDriveURL)
	assert.Equal(t, uploadAttempts, up.calls)
	assert.Equal(t, []string{"t1|/exports/untitled.json|"}, db.all())
}

func TestExportFailures(t *testing.T) {
	wp := newPool(&fakeExporter{err: errors.New("read-only")}, nil, nil)
	job := NewExportJob("t1", "a", nil)
	require.NoError(t, wp.Enqueue(job))
	got := waitStatus(t, wp, job.ID)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Contains(t, got.Error, "read-only")
	wp.Stop()

	wp = newPool(&fakeExporter{panics: true}, nil, nil)
	job = NewExportJob("t1", "b", nil)
	require.NoError(t, wp.Enqueue(job))
	got = waitStatus(t, wp, job.ID)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Contains(t, got.Error, "worker panic")
	wp.Stop()

	assert.ErrorIs(t, wp.Enqueue(NewExportJob("t1", "c", nil)), ErrStopped)
	_, ok := wp.Job("missing")
	assert.False(t, ok)
}
