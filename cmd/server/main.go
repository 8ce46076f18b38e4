package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rpattn/batchctl/internal/config"
	"github.com/rpattn/batchctl/internal/db"
	"github.com/rpattn/batchctl/internal/history"
	"github.com/rpattn/batchctl/internal/middleware"
	"github.com/rpattn/batchctl/internal/notify"
	"github.com/rpattn/batchctl/internal/pipeline"
	"github.com/rpattn/batchctl/internal/quarantine"
	"github.com/rpattn/batchctl/internal/repository"
	"github.com/rpattn/batchctl/internal/runcontrol"
	"github.com/rpattn/batchctl/internal/staging"

	"github.com/rs/cors"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load(".")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Run migrations before opening the pool.
	if err := db.RunMigrations(cfg.Database); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	conn, err := db.NewConnection(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer conn.Close()

	// Create repositories
	runRepo := repository.NewPackageRunRepository(conn.Pool)
	stagingRepo := repository.NewStagingRepository(conn)
	quarantineRepo := repository.NewQuarantineRepository(conn.Pool)
	logRepo := repository.NewRunLogRepository(conn.Pool)

	// Create services
	controller := runcontrol.NewController(runRepo, logRepo)
	validator := staging.NewValidator(stagingRepo, logRepo)
	loader := staging.NewLoader(stagingRepo, logRepo)
	quarantineSvc := quarantine.NewService(quarantineRepo)
	runner := pipeline.NewRunner(controller, validator, nil, nil, notify.LogNotifier{})

	// Provision configured packages up front so triggers never race creation.
	for _, name := range provisionList(cfg) {
		if _, err := controller.Provision(ctx, name); err != nil {
			log.Fatalf("Failed to provision package %s: %v", name, err)
		}
	}

	// Register cron schedules
	scheduler := pipeline.NewScheduler(runner)
	for name, spec := range cfg.Schedules {
		if err := scheduler.Register(name, spec); err != nil {
			log.Fatalf("Failed to register schedule for %s: %v", name, err)
		}
	}

	// HTTP routes
	runHandler := runcontrol.NewHTTPHandler(controller)
	quarantineHandler := quarantine.NewHTTPHandler(quarantineSvc)
	historyHandler := history.NewHTTPHandler(logRepo)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /runs/start", runHandler.Start)
	mux.HandleFunc("POST /runs/end", runHandler.End)
	mux.HandleFunc("POST /runs/provision", runHandler.Provision)
	mux.HandleFunc("GET /runs", runHandler.Status)
	mux.HandleFunc("GET /runs/{name}", runHandler.Status)
	mux.Handle("POST /runs/trigger", pipeline.NewTriggerHandler(runner))
	mux.Handle("POST /staging/batches", staging.NewIntakeHandler(loader))
	mux.Handle("POST /staging/validate", staging.NewValidateHandler(validator))
	mux.HandleFunc("GET /quarantine", quarantineHandler.List)
	mux.HandleFunc("POST /quarantine/{id}/resolve", quarantineHandler.Resolve)
	mux.HandleFunc("GET /history", historyHandler.List)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
	})

	server := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      corsHandler.Handler(middleware.LoggingMiddleware(middleware.ActorMiddleware(mux))),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	scheduler.Start()

	go func() {
		log.Printf("Starting batch control server on %s", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	scheduler.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}

// provisionList merges explicitly configured packages with scheduled ones.
func provisionList(cfg config.Config) []string {
	seen := make(map[string]bool)
	names := []string{}
	for _, name := range cfg.Packages {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	for name := range cfg.Schedules {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}
