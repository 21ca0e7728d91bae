package cleanup

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/codebuildervaibhav/segment-annotator/internal/storage"
)

// SessionEvictor closes sessions nobody used for a while
type SessionEvictor interface {
	EvictIdle(ctx context.Context, maxIdle time.Duration) []string
}

// ExportIndex lists and forgets export records
type ExportIndex interface {
	ListExports(ctx context.Context, before time.Time) ([]storage.Export, error)
	DeleteExport(ctx context.Context, id int64) error
}

// ExportFiles removes exported files
type ExportFiles interface {
	RemoveExport(jsonPath string) error
}

// Options configure a Scheduler. Zero ages disable the matching pass.
type Options struct {
	TempDir      string
	Interval     time.Duration
	TempMaxAge   time.Duration
	SessionIdle  time.Duration
	ExportMaxAge time.Duration

	Sessions SessionEvictor
	Index    ExportIndex
	Files    ExportFiles
	Log      *zap.SugaredLogger
}

// Summary is what one cleanup run did
type Summary struct {
	TempFiles int
	TempBytes int64
	Sessions  []string
	Exports   int
}

// Scheduler handles periodic cleanup of idle sessions, old exports and temp files
type Scheduler struct {
	opts     Options
	log      *zap.SugaredLogger
	now      func() time.Time
	stopChan chan struct{}
}

// NewScheduler creates a new cleanup scheduler
func NewScheduler(opts Options) *Scheduler {
	if opts.Interval <= 0 {
		opts.Interval = 30 * time.Minute
	}
	log := opts.Log
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Scheduler{
		opts:     opts,
		log:      log,
		now:      time.Now,
		stopChan: make(chan struct{}),
	}
}

// Start begins the cleanup scheduler
func (s *Scheduler) Start() {
	// Run initial cleanup on startup
	s.log.Infow("running initial cleanup")
	s.RunOnce(context.Background())

	ticker := time.NewTicker(s.opts.Interval)

	go func() {
		for {
			select {
			case <-ticker.C:
				s.RunOnce(context.Background())
			case <-s.stopChan:
				ticker.Stop()
				return
			}
		}
	}()

	s.log.Infow("cleanup scheduler started",
		"interval", s.opts.Interval,
		"sessionIdle", s.opts.SessionIdle,
		"exportMaxAge", s.opts.ExportMaxAge)
}

// Stop stops the cleanup scheduler
func (s *Scheduler) Stop() {
	close(s.stopChan)
	s.log.Infow("cleanup scheduler stopped")
}

// RunOnce performs every enabled cleanup pass
func (s *Scheduler) RunOnce(ctx context.Context) Summary {
	var sum Summary
	if s.opts.Sessions != nil && s.opts.SessionIdle > 0 {
		sum.Sessions = s.opts.Sessions.EvictIdle(ctx, s.opts.SessionIdle)
		if len(sum.Sessions) > 0 {
			s.log.Infow("evicted idle sessions", "count", len(sum.Sessions))
		}
	}
	if s.opts.Index != nil && s.opts.ExportMaxAge > 0 {
		sum.Exports = s.pruneExports(ctx)
	}
	if s.opts.TempDir != "" && s.opts.TempMaxAge > 0 {
		sum.TempFiles, sum.TempBytes = s.cleanOldFiles()
	}
	return sum
}

// pruneExports removes exports older than ExportMaxAge. A record whose file
// cannot be removed is kept for the next run.
func (s *Scheduler) pruneExports(ctx context.Context) int {
	cutoff := s.now().Add(-s.opts.ExportMaxAge)
	exports, err := s.opts.Index.ListExports(ctx, cutoff)
	if err != nil {
		s.log.Errorw("failed to list exports", "error", err)
		return 0
	}

	pruned := 0
	for _, e := range exports {
		if s.opts.Files != nil {
			if err := s.opts.Files.RemoveExport(e.LocalPath); err != nil {
				s.log.Warnw("failed to delete export", "path", e.LocalPath, "error", err)
				continue
			}
		}
		if err := s.opts.Index.DeleteExport(ctx, e.ID); err != nil {
			s.log.Warnw("failed to forget export", "id", e.ID, "error", err)
			continue
		}
		pruned++
	}
	if pruned > 0 {
		s.log.Infow("pruned old exports", "count", pruned, "cutoff", cutoff)
	}
	return pruned
}

// cleanOldFiles removes files older than TempMaxAge from the temp directory
func (s *Scheduler) cleanOldFiles() (int, int64) {
	now := s.now()

	var deletedCount int
	var deletedSize int64

	err := filepath.Walk(s.opts.TempDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip files we can't access
		}
		if info.IsDir() {
			return nil
		}

		age := now.Sub(info.ModTime())
		if age > s.opts.TempMaxAge {
			size := info.Size()
			if err := os.Remove(path); err != nil {
				s.log.Warnw("failed to delete old file", "path", path, "error", err)
			} else {
				deletedCount++
				deletedSize += size
			}
		}
		return nil
	})
	if err != nil {
		s.log.Errorw("error during temp cleanup", "error", err)
	}

	if deletedCount > 0 {
		s.log.Infow("temp cleanup complete",
			"files", deletedCount, "freedMB", float64(deletedSize)/(1024*1024))
	}
	return deletedCount, deletedSize
}

// EnsureTempDirExists creates the temp directory if it doesn't exist
func EnsureTempDirExists(tempDir string) error {
	return os.MkdirAll(tempDir, 0755)
}
