package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"pollboard/internal/audit"
	"pollboard/internal/bulkops"
	"pollboard/internal/config"
	"pollboard/internal/database"
	"pollboard/internal/discord"
	"pollboard/internal/polls"
	"pollboard/internal/scheduler"
	"pollboard/internal/server"
)

func main() {
	log.Println("pollboard starting up...")

	cfg := config.Load()

	// Initialize database
	db, err := database.Init()
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// Discord sync is optional; without a token the service still manages the
	// database side of polls.
	var discordClient *discord.Client
	if cfg.DiscordToken != "" {
		discordClient = discord.NewClient(cfg.DiscordBaseURL, cfg.DiscordToken)
		log.Println("Discord client initialized")
	} else {
		log.Println("WARNING: DISCORD_BOT_TOKEN not set, Discord sync disabled")
	}

	// Initialize services
	pollService := polls.NewService(db, discordClient)
	log.Println("Poll administration service initialized")

	auditService := audit.NewService(db)
	log.Println("Audit service initialized")

	bulkService := bulkops.NewService(pollService, auditService, bulkops.Config{
		MaxConcurrent: cfg.MaxConcurrentOps,
		Throttle:      cfg.ThrottleInterval,
	})
	log.Println("Bulk operation orchestrator initialized")

	schedulerService := scheduler.NewService(bulkService, pollService, scheduler.Config{
		SweepSchedule:       cfg.SweepSchedule,
		MaintenanceSchedule: cfg.MaintenanceSchedule,
		Retention:           cfg.RetentionWindow,
	})
	if err := schedulerService.Start(); err != nil {
		log.Printf("WARNING: Failed to start scheduler: %v", err)
	}

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: server.NewRouter(bulkService, auditService, db),
	}

	go func() {
		log.Printf("HTTP server listening on %s", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	// Wait for termination signal
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Println("pollboard shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("WARNING: HTTP server shutdown: %v", err)
	}

	// Drain in-flight bulk operations before tearing anything else down.
	bulkService.Shutdown(ctx)

	schedulerService.Stop()

	if err := database.Close(); err != nil {
		log.Printf("Error closing database: %v", err)
	}

	log.Println("Shutdown complete")
}
