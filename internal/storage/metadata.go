package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/codebuildervaibhav/segment-annotator/internal/labelconfig"
	"github.com/codebuildervaibhav/segment-annotator/internal/types"
)

var (
	// ErrNotFound is returned when a task or record does not exist
	ErrNotFound = errors.New("not found")
	// ErrUnknownPreference is returned for preference keys the tool does not use
	ErrUnknownPreference = errors.New("unknown preference key")
)

// Preference keys persisted per user
const (
	PrefPlaybackSpeed = "playbackSpeed"
	PrefPlaybackMode  = "playbackMode"
	PrefRulerSize     = "rulerSize"
)

var preferenceKeys = map[string]bool{
	PrefPlaybackSpeed: true,
	PrefPlaybackMode:  true,
	PrefRulerSize:     true,
}

// Task is one annotation job: the media to annotate and its template
type Task struct {
	ID            string               `json:"id"`
	Name          string               `json:"name"`
	ToolMode      string               `json:"toolMode"`
	Template      labelconfig.Document `json:"template"`
	Audios        []types.Track        `json:"audios"`
	KeyAttribute  string               `json:"keyAttribute,omitempty"`
	ReviewEnabled bool                 `json:"reviewEnabled"`
	CreatedAt     time.Time            `json:"createdAt"`
}

// ResultInfo describes the stored result of a task
type ResultInfo struct {
	TaskID    string    `json:"taskId"`
	Version   int       `json:"version"`
	Submitted bool      `json:"submitted"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Export records one exported result
type Export struct {
	ID        int64     `json:"id"`
	TaskID    string    `json:"taskId"`
	LocalPath string    `json:"localPath"`
	GDriveURL string    `json:"gdriveUrl,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// MetadataDB handles SQLite database operations
type MetadataDB struct {
	db *sql.DB
}

// NewMetadataDB creates a new metadata database
func NewMetadataDB(dbPath string) (*MetadataDB, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// sqlite allows a single writer
	db.SetMaxOpenConns(1)

	createTableSQL := `
	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		tool_mode TEXT NOT NULL,
		template TEXT NOT NULL,
		audios TEXT NOT NULL,
		key_attribute TEXT,
		review_enabled INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS results (
		task_id TEXT PRIMARY KEY,
		payload TEXT NOT NULL,
		version INTEGER NOT NULL,
		submitted INTEGER NOT NULL DEFAULT 0,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS result_stats (
		task_id TEXT PRIMARY KEY,
		stats TEXT NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS reviews (
		task_id TEXT PRIMARY KEY,
		payload TEXT NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS preferences (
		user_id TEXT NOT NULL,
		key TEXT NOT NULL,
		value TEXT NOT NULL,
		PRIMARY KEY (user_id, key)
	);

	CREATE TABLE IF NOT EXISTS exports (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		task_id TEXT NOT NULL,
		local_path TEXT NOT NULL,
		gdrive_url TEXT,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_created_at ON tasks(created_at);
	CREATE INDEX IF NOT EXISTS idx_exports_created_at ON exports(created_at);
	`

	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return &MetadataDB{db: db}, nil
}

// CreateTask stores a new task
func (mdb *MetadataDB) CreateTask(ctx context.Context, t *Task) error {
	template, err := json.Marshal(t.Template)
	if err != nil {
		return err
	}
	audios, err := json.Marshal(t.Audios)
	if err != nil {
		return err
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}

	query := `
	INSERT INTO tasks (id, name, tool_mode, template, audios, key_attribute, review_enabled, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = mdb.db.ExecContext(ctx, query, t.ID, t.Name, t.ToolMode, string(template), string(audios),
		t.KeyAttribute, t.ReviewEnabled, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save task: %w", err)
	}
	return nil
}

const taskColumns = `id, name, tool_mode, template, audios, key_attribute, review_enabled, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(row scanner) (*Task, error) {
	var (
		t                Task
		template, audios string
		keyAttr          sql.NullString
	)
	if err := row.Scan(&t.ID, &t.Name, &t.ToolMode, &template, &audios, &keyAttr, &t.ReviewEnabled, &t.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(template), &t.Template); err != nil {
		return nil, fmt.Errorf("task %s template: %w", t.ID, err)
	}
	if err := json.Unmarshal([]byte(audios), &t.Audios); err != nil {
		return nil, fmt.Errorf("task %s audios: %w", t.ID, err)
	}
	t.KeyAttribute = keyAttr.String
	return &t, nil
}

// GetTask retrieves a task by id
func (mdb *MetadataDB) GetTask(ctx context.Context, id string) (*Task, error) {
	row := mdb.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return t, nil
}

// ListTasks returns the newest tasks first
func (mdb *MetadataDB) ListTasks(ctx context.Context, limit int) ([]*Task, error) {
	rows, err := mdb.db.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			continue
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// UpdateAudios stores probed durations back onto a task
func (mdb *MetadataDB) UpdateAudios(ctx context.Context, id string, audios []types.Track) error {
	raw, err := json.Marshal(audios)
	if err != nil {
		return err
	}
	res, err := mdb.db.ExecContext(ctx, `UPDATE tasks SET audios = ? WHERE id = ?`, string(raw), id)
	if err != nil {
		return fmt.Errorf("failed to update audios: %w", err)
	}
	return expectOne(res, id)
}

func expectOne(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	return nil
}

// SaveResult stores the result payload and returns its new version
func (mdb *MetadataDB) SaveResult(ctx context.Context, taskID string, payload *types.ResultPayload, submitted bool) (int, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return 0, err
	}

	tx, err := mdb.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var version int
	err = tx.QueryRowContext(ctx, `SELECT version FROM results WHERE task_id = ?`, taskID).Scan(&version)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("failed to read result version: %w", err)
	}
	version++

	query := `
	INSERT INTO results (task_id, payload, version, submitted, updated_at) VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(task_id) DO UPDATE SET payload = excluded.payload, version = excluded.version,
		submitted = excluded.submitted, updated_at = excluded.updated_at
	`
	if _, err := tx.ExecContext(ctx, query, taskID, string(raw), version, submitted, time.Now().UTC()); err != nil {
		return 0, fmt.Errorf("failed to save result: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return version, nil
}

// LoadResult returns the stored result in raw form, ready for normalization
func (mdb *MetadataDB) LoadResult(ctx context.Context, taskID string) (*types.LoadedResult, *ResultInfo, error) {
	var (
		raw  string
		info = ResultInfo{TaskID: taskID}
	)
	err := mdb.db.QueryRowContext(ctx,
		`SELECT payload, version, submitted, updated_at FROM results WHERE task_id = ?`, taskID).
		Scan(&raw, &info.Version, &info.Submitted, &info.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, fmt.Errorf("result %s: %w", taskID, ErrNotFound)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load result: %w", err)
	}

	var loaded types.LoadedResult
	if err := json.Unmarshal([]byte(raw), &loaded); err != nil {
		return nil, nil, fmt.Errorf("result %s payload: %w", taskID, err)
	}
	return &loaded, &info, nil
}

// SaveStatistics stores the statistics of the latest result
func (mdb *MetadataDB) SaveStatistics(ctx context.Context, taskID string, stats *types.Statistics) error {
	raw, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	query := `
	INSERT INTO result_stats (task_id, stats, updated_at) VALUES (?, ?, ?)
	ON CONFLICT(task_id) DO UPDATE SET stats = excluded.stats, updated_at = excluded.updated_at
	`
	if _, err := mdb.db.ExecContext(ctx, query, taskID, string(raw), time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to save statistics: %w", err)
	}
	return nil
}

// GetStatistics returns the stored statistics of a task
func (mdb *MetadataDB) GetStatistics(ctx context.Context, taskID string) (*types.Statistics, error) {
	var raw string
	err := mdb.db.QueryRowContext(ctx, `SELECT stats FROM result_stats WHERE task_id = ?`, taskID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("statistics %s: %w", taskID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get statistics: %w", err)
	}
	var stats types.Statistics
	if err := json.Unmarshal([]byte(raw), &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// SaveReviews replaces the review collection of a task
func (mdb *MetadataDB) SaveReviews(ctx context.Context, taskID string, reviews types.Reviews) error {
	raw, err := json.Marshal(reviews)
	if err != nil {
		return err
	}
	query := `
	INSERT INTO reviews (task_id, payload, updated_at) VALUES (?, ?, ?)
	ON CONFLICT(task_id) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at
	`
	if _, err := mdb.db.ExecContext(ctx, query, taskID, string(raw), time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to save reviews: %w", err)
	}
	return nil
}

// LoadReviews returns the review collection of a task; none stored is an empty collection
func (mdb *MetadataDB) LoadReviews(ctx context.Context, taskID string) (types.Reviews, error) {
	var raw string
	err := mdb.db.QueryRowContext(ctx, `SELECT payload FROM reviews WHERE task_id = ?`, taskID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Reviews{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load reviews: %w", err)
	}
	var reviews types.Reviews
	if err := json.Unmarshal([]byte(raw), &reviews); err != nil {
		return nil, err
	}
	return reviews, nil
}

// GetPreferences returns all stored preferences of a user
func (mdb *MetadataDB) GetPreferences(ctx context.Context, userID string) (map[string]string, error) {
	rows, err := mdb.db.QueryContext(ctx, `SELECT key, value FROM preferences WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get preferences: %w", err)
	}
	defer rows.Close()

	prefs := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		prefs[k] = v
	}
	return prefs, rows.Err()
}

// SetPreference stores one preference of a user
func (mdb *MetadataDB) SetPreference(ctx context.Context, userID, key, value string) error {
	if !preferenceKeys[key] {
		return fmt.Errorf("%q: %w", key, ErrUnknownPreference)
	}
	query := `
	INSERT INTO preferences (user_id, key, value) VALUES (?, ?, ?)
	ON CONFLICT(user_id, key) DO UPDATE SET value = excluded.value
	`
	if _, err := mdb.db.ExecContext(ctx, query, userID, key, value); err != nil {
		return fmt.Errorf("failed to save preference: %w", err)
	}
	return nil
}

// SaveExport records an exported result
func (mdb *MetadataDB) SaveExport(ctx context.Context, taskID, localPath, gdriveURL string) error {
	query := `INSERT INTO exports (task_id, local_path, gdrive_url, created_at) VALUES (?, ?, ?, ?)`
	if _, err := mdb.db.ExecContext(ctx, query, taskID, localPath, gdriveURL, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to save export metadata: %w", err)
	}
	return nil
}

// ListExports returns exports created before the cutoff, oldest first
func (mdb *MetadataDB) ListExports(ctx context.Context, before time.Time) ([]Export, error) {
	rows, err := mdb.db.QueryContext(ctx,
		`SELECT id, task_id, local_path, gdrive_url, created_at FROM exports WHERE created_at < ? ORDER BY created_at`, before.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to list exports: %w", err)
	}
	defer rows.Close()

	var out []Export
	for rows.Next() {
		var (
			e      Export
			gdrive sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.TaskID, &e.LocalPath, &gdrive, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.GDriveURL = gdrive.String
		out = append(out, e)
	}
	return out, rows.Err()
}

// DeleteExport removes an export record
func (mdb *MetadataDB) DeleteExport(ctx context.Context, id int64) error {
	_, err := mdb.db.ExecContext(ctx, `DELETE FROM exports WHERE id = ?`, id)
	return err
}

// Close closes the database connection
func (mdb *MetadataDB) Close() error {
	return mdb.db.Close()
}
