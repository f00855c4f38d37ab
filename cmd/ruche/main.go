package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"

	"github.com/antoine-zurcher/dashboard-ruche-connectee-mollens/internal/config"
	"github.com/antoine-zurcher/dashboard-ruche-connectee-mollens/pkg/api"
	"github.com/antoine-zurcher/dashboard-ruche-connectee-mollens/pkg/fetch"
	"github.com/antoine-zurcher/dashboard-ruche-connectee-mollens/pkg/publish"
	"github.com/antoine-zurcher/dashboard-ruche-connectee-mollens/pkg/refresh"
	"github.com/antoine-zurcher/dashboard-ruche-connectee-mollens/pkg/storage"
)

const (
	version = "1.0.0"
)

func main() {
	fmt.Printf("Ruche connectée Mollens v%s\n", version)
	fmt.Println()

	// Load configuration
	cfg := config.DefaultConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	log.Printf("Configuration loaded:")
	log.Printf("  Listen Address: %s", cfg.Server.ListenAddr)
	log.Printf("  Sensor URL: %s", cfg.Sensor.URL)
	log.Printf("  Poll Interval: %s", cfg.Sensor.PollInterval)
	log.Printf("  Storage: %s at %s", cfg.Storage.Backend, cfg.Storage.Path)

	// Initialize storage
	backend, err := storage.Open(cfg.ToStorageConfig())
	if err != nil {
		log.Fatalf("Failed to open storage: %v", err)
	}
	defer backend.Close()

	// Build the refresh controller and rehydrate the series
	fetcher := fetch.New(cfg.ToFetchConfig())
	controller := refresh.New(refresh.DefaultConfig(), fetcher, backend)

	ctx := context.Background()
	if err := controller.Restore(ctx); err != nil {
		log.Fatalf("Failed to restore series: %v", err)
	}

	// Optional sample journal
	if cfg.Storage.SampleJournal && cfg.Storage.Backend != "memory" {
		sampleLog, err := storage.NewSampleLog(cfg.Storage.Path)
		if err != nil {
			log.Fatalf("Failed to open sample journal: %v", err)
		}
		defer sampleLog.Close()
		controller.SetSampleLog(sampleLog)
	}

	// Optional MQTT fan-out
	if cfg.MQTT.Broker != "" {
		publisher, err := publish.Connect(cfg.MQTT.Broker, cfg.MQTT.ClientID, cfg.MQTT.Topic)
		if err != nil {
			log.Fatalf("Failed to connect MQTT publisher: %v", err)
		}
		defer publisher.Close()
		controller.SetPublisher(publisher)
	}

	// Periodic poll: fetch, append, persist, re-project
	pollCtx, cancelPoll := context.WithCancel(ctx)
	defer cancelPoll()
	go pollLoop(pollCtx, controller, cfg.Sensor.PollInterval)

	// API server with access logging
	server := api.NewServer(cfg.Server.ListenAddr, controller)
	logged := handlers.LoggingHandler(os.Stdout, server.Router())

	go func() {
		log.Printf("API server listening on %s", cfg.Server.ListenAddr)
		if err := server.Start(logged); err != nil && err != http.ErrServerClosed {
			log.Printf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutdown signal received, stopping server...")
	cancelPoll()

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := server.Stop(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped successfully")
}

// pollLoop drives the periodic timer trigger.
func pollLoop(ctx context.Context, controller *refresh.Controller, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := controller.Handle(ctx, refresh.Trigger{Kind: refresh.TriggerTimer}); err != nil {
				log.Printf("periodic refresh failed: %v", err)
			}
		}
	}
}
