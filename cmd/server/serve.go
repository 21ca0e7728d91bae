package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/codebuildervaibhav/segment-annotator/internal/cleanup"
	"github.com/codebuildervaibhav/segment-annotator/internal/config"
	"github.com/codebuildervaibhav/segment-annotator/internal/handlers"
	"github.com/codebuildervaibhav/segment-annotator/internal/jobproxy"
	"github.com/codebuildervaibhav/segment-annotator/internal/logging"
	"github.com/codebuildervaibhav/segment-annotator/internal/media"
	"github.com/codebuildervaibhav/segment-annotator/internal/queue"
	"github.com/codebuildervaibhav/segment-annotator/internal/session"
	"github.com/codebuildervaibhav/segment-annotator/internal/storage"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the annotation server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath, ".env")
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			return serve(cfg)
		},
	}
}

func serve(cfg *config.Config) error {
	logBuffer := logging.NewLogBuffer(logging.DefaultBufferLines)
	zl, err := logging.New(logging.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Buffer: logBuffer,
	})
	if err != nil {
		return err
	}
	defer zl.Sync()
	log := zl.Sugar()

	// Ensure directories exist
	if err := cleanup.EnsureTempDirExists(cfg.Storage.TempDir); err != nil {
		return fmt.Errorf("failed to create temp directory: %w", err)
	}
	for _, dir := range []string{cfg.Storage.OutputDir, cfg.Storage.MediaDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	log.Infow("initializing components")

	localStorage := storage.NewLocalStorage(cfg.Storage.OutputDir)

	// Google Drive is optional; exports stay local without it
	var uploader queue.Uploader
	if _, err := os.Stat(cfg.GoogleDrive.CredentialsFile); err == nil {
		driveClient, err := storage.NewDriveClient(context.Background(),
			cfg.GoogleDrive.CredentialsFile,
			cfg.GoogleDrive.TokenFile,
			cfg.GoogleDrive.FolderName,
		)
		if err != nil {
			log.Warnw("Google Drive not available, exports will only be saved locally", "error", err)
		} else {
			uploader = driveClient
			log.Infow("Google Drive integration enabled", "folder", cfg.GoogleDrive.FolderName)
		}
	} else {
		log.Infow("Google Drive credentials not found, saving locally only")
	}

	db, err := storage.NewMetadataDB(cfg.Storage.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	workerPool := queue.NewWorkerPool(cfg.Workers.Count, localStorage, uploader, db, log.Named("exports"))
	workerPool.Start()

	prober := media.NewProber(cfg.Storage.TempDir)
	sessions := session.NewManager(func(taskID string) jobproxy.JobProxy {
		return jobproxy.NewStoreProxy(db, taskID)
	}, session.Options{
		Prober:       prober,
		MediaRoot:    cfg.Storage.MediaDir,
		HistoryLimit: cfg.Session.HistoryLimit,
		Exports:      workerPool,
		Log:          log.Named("session"),
	}, cfg.AutosaveInterval())

	cleanupScheduler := cleanup.NewScheduler(cleanup.Options{
		TempDir:      cfg.Storage.TempDir,
		Interval:     time.Duration(cfg.Cleanup.IntervalMinutes) * time.Minute,
		TempMaxAge:   time.Duration(cfg.Cleanup.TempMaxAgeHours) * time.Hour,
		SessionIdle:  cfg.IdleTimeout(),
		ExportMaxAge: time.Duration(cfg.Cleanup.ExportMaxAgeHours) * time.Hour,
		Sessions:     sessions,
		Index:        db,
		Files:        localStorage,
		Log:          log.Named("cleanup"),
	})
	cleanupScheduler.Start()

	app := fiber.New(fiber.Config{
		BodyLimit: cfg.Limits.MaxFileSizeMB * 1024 * 1024,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Output: io.MultiWriter(os.Stdout, logBuffer),
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept",
	}))

	handlers.Setup(app, handlers.Deps{
		DB:          db,
		Sessions:    sessions,
		Exports:     workerPool,
		Prober:      prober,
		MediaDir:    cfg.Storage.MediaDir,
		MaxUploadMB: cfg.Limits.MaxFileSizeMB,
		Logs:        logBuffer,
		Log:         log.Named("http"),
	})

	// Graceful shutdown
	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		log.Infow("shutting down gracefully")
		app.Shutdown()
	}()

	log.Infow("server starting", "addr", cfg.Addr(), "version", handlers.Version)
	err = app.Listen(cfg.Addr())

	cleanupScheduler.Stop()
	drain(sessions, log)
	workerPool.Stop()

	if err != nil {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// drain saves every dirty session before the process exits
func drain(sessions *session.Manager, log *zap.SugaredLogger) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	n := sessions.Len()
	sessions.CloseAll(ctx)
	log.Infow("sessions closed", "count", n)
}
