// Package main implements the entry point for the shelfsync server,
// which keeps reading positions and annotations consistent across a
// user's e-reader devices and runs background library maintenance.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/phrazzld/shelfsync/internal/config"
	"github.com/phrazzld/shelfsync/internal/extract"
	"github.com/phrazzld/shelfsync/internal/platform/logger"
	"github.com/phrazzld/shelfsync/internal/platform/postgres"
	"github.com/phrazzld/shelfsync/internal/storage"
	"github.com/phrazzld/shelfsync/internal/store"
	"github.com/phrazzld/shelfsync/internal/syncer"
	"github.com/phrazzld/shelfsync/internal/task"
)

// application holds the initialized dependencies shared by the HTTP
// server and the task scheduler.
type application struct {
	config      *config.Config
	logger      *slog.Logger
	db          *sql.DB
	coordinator *syncer.Coordinator
	taskStore   *postgres.TaskStore
	scheduler   *task.Scheduler
}

func main() {
	app, err := initializeApp()
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}
	defer app.cleanup()

	if err := app.run(); err != nil {
		app.logger.Error("Server exited with error", "error", err)
		os.Exit(1)
	}
}

// initializeApp loads configuration, sets up logging, connects to the
// database, runs migrations, and wires all application components.
func initializeApp() (*application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger, err := logger.Setup(cfg.Server)
	if err != nil {
		return nil, fmt.Errorf("failed to set up logger: %w", err)
	}

	appLogger.Info("Server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"poll_interval", cfg.Scheduler.PollInterval,
		"max_concurrent_tasks", cfg.Scheduler.MaxConcurrentTasks)

	db, err := openDatabase(cfg.Database.URL)
	if err != nil {
		return nil, err
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	fileStorage, err := storage.NewLocalStorage(cfg.Storage.BasePath, cfg.Storage.CoversPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize file storage: %w", err)
	}

	readingStates := postgres.NewReadingStateStore(db)
	annotations := postgres.NewAnnotationStore(db)
	devices := postgres.NewDeviceStore(db)
	books := postgres.NewBookStore(db)
	covers := postgres.NewCoverStore(db)
	tasks := postgres.NewTaskStore(db)

	coordinator := syncer.NewCoordinator(store.NewTxRunner(db), readingStates, annotations, devices)

	taskCtx := &task.Context{
		Books:      books,
		Covers:     covers,
		Storage:    fileStorage,
		CoverStore: fileStorage,
		Extractors: extract.DefaultRegistry(),
		Logger:     appLogger,
	}

	scheduler := task.NewScheduler(tasks, taskCtx, task.SchedulerConfig{
		PollInterval:       cfg.Scheduler.PollInterval,
		MaxConcurrentTasks: cfg.Scheduler.MaxConcurrentTasks,
		TaskTimeout:        cfg.Scheduler.TaskTimeout,
		BatchSize:          cfg.Scheduler.BatchSize,
	}, appLogger)

	handlers := []task.Handler{
		task.NewReindexBookHandler(),
		task.NewGenerateCoversHandler(),
		task.NewCleanupOrphansHandler(),
	}
	for _, h := range handlers {
		if err := scheduler.RegisterHandler(h); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to register task handler: %w", err)
		}
	}

	return &application{
		config:      cfg,
		logger:      appLogger,
		db:          db,
		coordinator: coordinator,
		taskStore:   tasks,
		scheduler:   scheduler,
	}, nil
}

// openDatabase connects to PostgreSQL through the pgx stdlib driver and
// verifies the connection.
func openDatabase(url string) (*sql.DB, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// runMigrations applies any pending goose migrations from the migrations
// directory.
func runMigrations(db *sql.DB) error {
	goose.SetBaseFS(nil)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// run starts the task scheduler and the HTTP server, then blocks until a
// shutdown signal arrives.
func (app *application) run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	schedulerDone := make(chan struct{})
	go func() {
		defer close(schedulerDone)
		_ = app.scheduler.Run(ctx)
	}()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", app.config.Server.Port),
		Handler:      app.setupRouter(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		app.logger.Info("Starting server", "port", app.config.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		stop()
		<-schedulerDone
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
		app.logger.Info("Shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		app.logger.Error("Server shutdown failed", "error", err)
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	// Scheduler stops polling on context cancellation and waits for
	// in-flight tasks before returning.
	<-schedulerDone

	app.logger.Info("Server shutdown completed")
	return nil
}

// cleanup releases resources held by the application.
func (app *application) cleanup() {
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("Failed to close database connection", "error", err)
		}
	}
}
