/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the CasaViva expense backend. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env via godotenv, then environment)
  2. Build the zap logger and Sentry hub
  3. Initialize SQLite store
  4. Create API handler, F24 generator and reminder scheduler
  5. Start server with graceful shutdown

CONFIGURATION (environment):
  PORT                HTTP server port (default: 8080)
  DB_PATH             SQLite database path (default: ./casa.db)
                      Use ":memory:" for an in-memory database
  STATIC_DIR          Root of generated artifacts (default: ./static)
  SCHEDULER_ENABLED   Run the reminder scheduler (default: true)
  SCHEDULER_INTERVAL  Scheduler tick interval (default: 24h)
  SENTRY_DSN          Error reporting DSN (empty disables Sentry)
  SENTRY_ENVIRONMENT  Sentry environment tag (default: development)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the scheduler and wait for the running tick
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Flush Sentry, close database connection
  5. Exit

SEE ALSO:
  - api/server.go: Router configuration
  - api/scheduler.go: Background jobs
  - config/config.go: Environment parsing
*/
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/casaviva/expense-engine/api"
	"github.com/casaviva/expense-engine/config"
	"github.com/casaviva/expense-engine/f24"
	"github.com/casaviva/expense-engine/imu"
	"github.com/casaviva/expense-engine/notify"
	"github.com/casaviva/expense-engine/sentryx"
	"github.com/casaviva/expense-engine/store/sqlite"
)

func main() {
	cfg := config.Load()

	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}

	sentryx.Init(cfg.SentryDSN, cfg.SentryEnvironment)
	defer sentryx.Flush()

	// Initialize store
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		log.Fatal("failed to initialize database", zap.Error(err))
	}
	defer store.Close()

	// Domain collaborators
	calc := imu.NewCalculator(nil)
	rates := imu.NewStaticRateProvider(calc.Rates())
	gen := f24.NewGenerator(filepath.Join(cfg.StaticDir, "f24"), log)

	handler := api.NewHandler(store, calc, gen, rates, log)
	router := api.NewRouter(handler, cfg.StaticDir)

	// Reminder scheduler
	scheduler := api.NewReminderScheduler(store, calc, notify.NewLogNotifier(log), log)
	scheduler.CheckInterval = cfg.SchedulerInterval
	scheduler.Enabled = cfg.SchedulerEnabled
	scheduler.Start()

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info("server starting",
			zap.String("addr", server.Addr),
			zap.String("db", cfg.DBPath),
			zap.Bool("scheduler", cfg.SchedulerEnabled))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}
