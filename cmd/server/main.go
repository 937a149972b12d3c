/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the ministry engine server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (defaults, optional .env, environment)
  2. Initialize SQLite store
  3. Seed the accrual policy point types
  4. Construct services in dependency order (no lazy wiring)
  5. Start server with graceful shutdown

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete
  3. Close database connection
  4. Exit

ENVIRONMENT:
  MINISTRY_ADDR       Listen address (default :8080)
  MINISTRY_DB_PATH    SQLite database path (default ./data/ministry.db)
  A .env file in the working directory is loaded when present.

SEE ALSO:
  - config/config.go: Configuration loading
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/khedma/ministry-engine/activity"
	"github.com/khedma/ministry-engine/api"
	"github.com/khedma/ministry-engine/config"
	"github.com/khedma/ministry-engine/points"
	"github.com/khedma/ministry-engine/roster"
	"github.com/khedma/ministry-engine/store/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// A missing policy type is a deployment defect; fail before serving.
	policy, err := points.EnsurePolicyTypes(context.Background(), store, cfg.Policy)
	if err != nil {
		log.Fatalf("Failed to seed accrual policy: %v", err)
	}

	// Services, bottom of the dependency graph first.
	pointsSvc := points.NewService(store, policy)
	resolver := roster.NewResolver(store)
	batchSvc := roster.NewBatchService(store)
	activitySvc := activity.NewService(store, resolver, resolver, pointsSvc)
	studentSvc := roster.NewStudentService(store, resolver, activitySvc, pointsSvc, pointsSvc)

	handler := api.NewHandler(store, batchSvc, studentSvc, activitySvc, pointsSvc, store)
	router := api.NewRouter(handler, cfg.AllowedOrigins)

	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
