package queue

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/codebuildervaibhav/segment-annotator/internal/types"
)

const (
	uploadAttempts = 3
	queueSize      = 100
)

var (
	// ErrQueueFull is returned when the job buffer has no room left
	ErrQueueFull = errors.New("export queue is full")
	// ErrStopped is returned by Enqueue after Stop
	ErrStopped = errors.New("export queue is stopped")
)

// Exporter writes an export to local storage and returns its path
type Exporter interface {
	SaveExport(requestName string, payload *types.ResultPayload) (string, error)
}

// Uploader pushes an export to remote storage and returns a link
type Uploader interface {
	Upload(requestName string, payload *types.ResultPayload) (string, error)
}

// ExportRecorder keeps the export index
type ExportRecorder interface {
	SaveExport(ctx context.Context, taskID, localPath, gdriveURL string) error
}

// WorkerPool manages a pool of workers exporting submitted results
type WorkerPool struct {
	jobQueue    chan *ExportJob
	workerCount int
	local       Exporter
	drive       Uploader
	db          ExportRecorder
	log         *zap.SugaredLogger

	// backoff returns the wait after a failed upload attempt
	backoff func(attempt int) time.Duration

	mu      sync.Mutex
	jobs    map[string]*ExportJob
	stopped bool
	wg      sync.WaitGroup
}

// NewWorkerPool creates a new worker pool. drive and db may be nil.
func NewWorkerPool(workerCount int, local Exporter, drive Uploader, db ExportRecorder, log *zap.SugaredLogger) *WorkerPool {
	if workerCount <= 0 {
		workerCount = 1
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &WorkerPool{
		jobQueue:    make(chan *ExportJob, queueSize),
		workerCount: workerCount,
		local:       local,
		drive:       drive,
		db:          db,
		log:         log,
		backoff: func(attempt int) time.Duration {
			return time.Duration(attempt*attempt) * time.Second
		},
		jobs: make(map[string]*ExportJob),
	}
}

// Start initializes all workers
func (wp *WorkerPool) Start() {
	wp.log.Infow("starting export worker pool", "workers", wp.workerCount)
	for i := 0; i < wp.workerCount; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Stop closes the queue and waits for queued jobs to finish
func (wp *WorkerPool) Stop() {
	wp.mu.Lock()
	if wp.stopped {
		wp.mu.Unlock()
		return
	}
	wp.stopped = true
	close(wp.jobQueue)
	wp.mu.Unlock()

	wp.wg.Wait()
	wp.log.Infow("export worker pool stopped")
}

// Enqueue adds a job to the queue without blocking
func (wp *WorkerPool) Enqueue(job *ExportJob) error {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	if wp.stopped {
		return ErrStopped
	}

	job.Status = StatusQueued
	job.CreatedAt = time.Now()
	select {
	case wp.jobQueue <- job:
	default:
		return ErrQueueFull
	}
	wp.jobs[job.ID] = job
	wp.log.Infow("export enqueued", "job", job.ID, "task", job.TaskID, "name", job.RequestName)
	return nil
}

// Job returns a snapshot of a known job
func (wp *WorkerPool) Job(id string) (ExportJob, bool) {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	job, ok := wp.jobs[id]
	if !ok {
		return ExportJob{}, false
	}
	return *job, true
}

func (wp *WorkerPool) update(job *ExportJob, fn func(j *ExportJob)) {
	wp.mu.Lock()
	fn(job)
	wp.mu.Unlock()
}

func (wp *WorkerPool) fail(job *ExportJob, err error) {
	wp.update(job, func(j *ExportJob) {
		j.Status = StatusFailed
		j.Error = err.Error()
	})
}

// worker processes jobs from the queue
func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	for job := range wp.jobQueue {
		func() {
			defer func() {
				if r := recover(); r != nil {
					wp.log.Errorw("panic processing export",
						"worker", id, "job", job.ID, "panic", r, "stack", string(debug.Stack()))
					wp.fail(job, fmt.Errorf("worker panic: %v", r))
				}
			}()

			wp.processJob(id, job)
		}()
	}
}

// processJob saves locally, uploads with retry and records the export
func (wp *WorkerPool) processJob(workerID int, job *ExportJob) {
	log := wp.log.With("worker", workerID, "job", job.ID)
	wp.update(job, func(j *ExportJob) { j.Status = StatusProcessing })

	localPath, err := wp.local.SaveExport(job.RequestName, job.Payload)
	if err != nil {
		log.Errorw("local export failed", "error", err)
		wp.fail(job, fmt.Errorf("local save failed: %w", err))
		return
	}
	wp.update(job, func(j *ExportJob) { j.LocalPath = localPath })

	var driveURL string
	if wp.drive != nil {
		for attempt := 1; attempt <= uploadAttempts; attempt++ {
			driveURL, err = wp.drive.Upload(job.RequestName, job.Payload)
			if err == nil {
				break
			}
			log.Warnw("drive upload failed", "attempt", attempt, "of", uploadAttempts, "error", err)
			if attempt < uploadAttempts {
				time.Sleep(wp.backoff(attempt))
			}
		}
		if err != nil {
			log.Warnw("drive upload gave up, export kept locally only")
			driveURL = ""
		}
	}
	wp.update(job, func(j *ExportJob) { j.GDriveURL = driveURL })

	if wp.db != nil {
		if err := wp.db.SaveExport(context.Background(), job.TaskID, localPath, driveURL); err != nil {
			log.Errorw("export index save failed", "error", err)
		}
	}

	wp.update(job, func(j *ExportJob) { j.Status = StatusCompleted })
	log.Infow("export completed", "local", localPath, "gdrive", driveURL)
}
