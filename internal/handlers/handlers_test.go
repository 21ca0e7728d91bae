package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codebuildervaibhav/segment-annotator/internal/jobproxy"
	"github.com/codebuildervaibhav/segment-annotator/internal/labelconfig"
	"github.com/codebuildervaibhav/segment-annotator/internal/logging"
	"github.com/codebuildervaibhav/segment-annotator/internal/queue"
	"github.com/codebuildervaibhav/segment-annotator/internal/session"
	"github.com/codebuildervaibhav/segment-annotator/internal/storage"
)

type stubProber struct{ duration float64 }

func (p stubProber) Duration(context.Context, string) (float64, error) {
	return p.duration, nil
}

type stubExports map[string]queue.ExportJob

func (s stubExports) Job(id string) (queue.ExportJob, bool) {
	job, ok := s[id]
	return job, ok
}

type testServer struct {
	app      *fiber.App
	db       *storage.MetadataDB
	sessions *session.Manager
	logs     *logging.LogBuffer
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	dir := t.TempDir()
	db, err := storage.NewMetadataDB(filepath.Join(dir, "test.db"))
	require.NoError(t, err)

	sessions := session.NewManager(func(taskID string) jobproxy.JobProxy {
		return jobproxy.NewStoreProxy(db, taskID)
	}, session.Options{}, 0)
	logs := logging.NewLogBuffer(10)

	app := fiber.New()
	Setup(app, Deps{
		DB:          db,
		Sessions:    sessions,
		Exports:     stubExports{"job-1": {ID: "job-1", Status: queue.StatusCompleted}},
		Prober:      stubProber{duration: 7},
		MediaDir:    filepath.Join(dir, "media"),
		MaxUploadMB: 1,
		Logs:        logs,
	})

	t.Cleanup(func() {
		sessions.CloseAll(context.Background())
		db.Close()
	})
	return &testServer{app: app, db: db, sessions: sessions, logs: logs}
}

func (s *testServer) do(t *testing.T, method, path string, body any) (int, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return s.send(t, req)
}

func (s *testServer) send(t *testing.T, req *http.Request) (int, map[string]any) {
	t.Helper()
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	if len(data) > 0 && data[0] == '{' {
		require.NoError(t, json.Unmarshal(data, &out))
	}
	return resp.StatusCode, out
}

func (s *testServer) createTask(t *testing.T, body map[string]any) {
	t.Helper()
	status, out := s.do(t, http.MethodPost, "/api/tasks", body)
	require.Equal(t, fiber.StatusCreated, status, out)
}

func multipartRequest(t *testing.T, path string, files map[string][]byte, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for name, data := range files {
		part, err := w.CreateFormFile(name, name+".json")
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestHealthAndLogs(t *testing.T) {
	s := newTestServer(t)
	s.logs.Write([]byte("started\n"))

	status, out := s.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "healthy", out["status"])
	assert.Equal(t, Version, out["version"])
	assert.Equal(t, 0.0, out["sessions"])

	status, out = s.do(t, http.MethodGet, "/logs", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, []any{"started"}, out["logs"])
}

func TestTasks(t *testing.T) {
	s := newTestServer(t)

	s.createTask(t, map[string]any{
		"id":     "t1",
		"name":   "episode",
		"audios": []map[string]any{{"url": "a.wav", "duration": 10}},
	})

	status, out := s.do(t, http.MethodPost, "/api/tasks", map[string]any{"id": "t1", "name": "again"})
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, "ERR_TASK_EXISTS", out["code"])

	status, out = s.do(t, http.MethodPost, "/api/tasks", map[string]any{
		"name":   "bad",
		"audios": []map[string]any{{"url": "a.txt"}},
	})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "ERR_INVALID_FORMAT", out["code"])

	status, out = s.do(t, http.MethodPost, "/api/tasks", map[string]any{"name": "x", "toolMode": "paint"})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "ERR_INVALID_TOOL_MODE", out["code"])

	status, out = s.do(t, http.MethodGet, "/api/tasks/t1", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "episode", out["name"])

	status, out = s.do(t, http.MethodGet, "/api/tasks/nope", nil)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "ERR_TASK_NOT_FOUND", out["code"])

	status, out = s.do(t, http.MethodGet, "/api/tasks/t1/result", nil)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "ERR_NO_RESULT", out["code"])

	resp, err := s.app.Test(httptest.NewRequest(http.MethodGet, "/api/tasks", nil), -1)
	require.NoError(t, err)
	var list []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	assert.Len(t, list, 1)
}

func TestSessionFlow(t *testing.T) {
	s := newTestServer(t)
	global, err := labelconfig.Encode(map[string]any{"requireRole": true})
	require.NoError(t, err)
	s.createTask(t, map[string]any{
		"id":       "t1",
		"name":     "episode",
		"audios":   []map[string]any{{"url": "a.wav", "duration": 10}},
		"template": map[string]any{"global_config": global},
	})

	status, view := s.do(t, http.MethodPost, "/api/tasks/t1/session", nil)
	require.Equal(t, fiber.StatusOK, status, view)
	assert.Equal(t, "ready", view["state"])
	sid := view["id"].(string)

	status, out := s.do(t, http.MethodPost, "/api/sessions/"+sid+"/ops", map[string]any{
		"op":   "split",
		"args": map[string]any{"at": 4},
	})
	require.Equal(t, fiber.StatusOK, status, out)
	assert.Equal(t, true, out["applied"])

	status, out = s.do(t, http.MethodPost, "/api/sessions/"+sid+"/ops", map[string]any{"op": "paint"})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "ERR_INVALID_OP", out["code"])

	status, out = s.do(t, http.MethodPost, "/api/sessions/"+sid+"/save", map[string]any{"submit": true})
	assert.Equal(t, fiber.StatusUnprocessableEntity, status)
	assert.Equal(t, "ERR_VALIDATION", out["code"])
	assert.Len(t, out["problems"], 2)

	status, out = s.do(t, http.MethodPost, "/api/sessions/"+sid+"/save", nil)
	require.Equal(t, fiber.StatusOK, status, out)
	ack := out["ack"].(map[string]any)
	assert.Equal(t, 1.0, ack["version"])

	status, out = s.do(t, http.MethodGet, "/api/tasks/t1/result", nil)
	require.Equal(t, fiber.StatusOK, status)
	result := out["result"].(map[string]any)
	assert.Len(t, result["results"].([]any)[0], 2)

	status, _ = s.do(t, http.MethodGet, "/api/tasks/t1/statistics", nil)
	assert.Equal(t, fiber.StatusOK, status)

	status, _ = s.do(t, http.MethodDelete, "/api/sessions/"+sid, nil)
	assert.Equal(t, fiber.StatusNoContent, status)
	status, out = s.do(t, http.MethodGet, "/api/sessions/"+sid, nil)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "ERR_SESSION_NOT_FOUND", out["code"])
}

func TestImportTranscript(t *testing.T) {
	s := newTestServer(t)
	s.createTask(t, map[string]any{
		"id":     "t1",
		"name":   "episode",
		"audios": []map[string]any{{"url": "a.wav", "duration": 10}},
	})
	_, view := s.do(t, http.MethodPost, "/api/tasks/t1/session", nil)
	sid := view["id"].(string)

	transcript := []byte(`{"language":"en","segments":[
		{"id":0,"start":0,"end":4,"text":" hello"},
		{"id":1,"start":4,"end":12,"text":" world"}]}`)
	req := multipartRequest(t, "/api/sessions/"+sid+"/tracks/0/import",
		map[string][]byte{"transcript": transcript}, nil)
	status, out := s.send(t, req)
	require.Equal(t, fiber.StatusOK, status, out)
	assert.Equal(t, 2.0, out["segments"])

	req = multipartRequest(t, "/api/sessions/"+sid+"/tracks/0/import",
		map[string][]byte{"transcript": []byte("not json")}, nil)
	status, out = s.send(t, req)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "ERR_INVALID_TRANSCRIPT", out["code"])
}

func TestMediaUpload(t *testing.T) {
	s := newTestServer(t)
	s.createTask(t, map[string]any{"id": "t1", "name": "episode"})

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", "clip.wav")
	require.NoError(t, err)
	_, err = part.Write([]byte("RIFF"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/tasks/t1/media", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	status, out := s.send(t, req)
	require.Equal(t, fiber.StatusCreated, status, out)
	assert.Equal(t, 0.0, out["index"])
	assert.Equal(t, 7.0, out["track"].(map[string]any)["duration"])

	task, err := s.db.GetTask(context.Background(), "t1")
	require.NoError(t, err)
	require.Len(t, task.Audios, 1)
}

func TestPreferences(t *testing.T) {
	s := newTestServer(t)

	status, out := s.do(t, http.MethodPut, "/api/users/u1/preferences",
		map[string]string{storage.PrefPlaybackSpeed: "1.5"})
	require.Equal(t, fiber.StatusOK, status, out)
	assert.Equal(t, "1.5", out[storage.PrefPlaybackSpeed])

	status, out = s.do(t, http.MethodPut, "/api/users/u1/preferences", map[string]string{"theme": "dark"})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "ERR_UNKNOWN_PREFERENCE", out["code"])
}

func TestExports(t *testing.T) {
	s := newTestServer(t)

	status, out := s.do(t, http.MethodGet, "/api/exports/job-1", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, queue.StatusCompleted, out["status"])

	status, out = s.do(t, http.MethodGet, "/api/exports/job-2", nil)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "ERR_EXPORT_NOT_FOUND", out["code"])
}

func TestExtractGDriveFileID(t *testing.T) {
	cases := map[string]string{
		"https://drive.google.com/file/d/abc123_-X/view?usp=sharing": "abc123_-X",
		"https://drive.google.com/open?id=xyz789":                    "xyz789",
		"https://drive.google.com/uc?id=q1w2&export=download":        "q1w2",
		"https://example.com/file.mp3":                               "",
	}
	for url, want := range cases {
		assert.Equal(t, want, extractGDriveFileID(url), url)
	}
}
