// Package main is the entry point for the phone-side record library service.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sebasr/bpmetrics/internal/auth"
	"github.com/sebasr/bpmetrics/internal/config"
	"github.com/sebasr/bpmetrics/internal/database"
	"github.com/sebasr/bpmetrics/internal/ingest"
	"github.com/sebasr/bpmetrics/internal/library"
	"github.com/sebasr/bpmetrics/internal/metrics"
	"github.com/sebasr/bpmetrics/internal/repository"
	"github.com/sebasr/bpmetrics/internal/server"
	"github.com/sebasr/bpmetrics/internal/transport"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Printf("Phone service stopped: %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	logger := log.Default()

	// Initialize database connection
	db, err := database.New(&cfg.Database)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("Error closing database: %v", err)
		}
	}()
	log.Printf("Successfully connected to %s database", db.Dialect)

	if err := database.Migrate(db, database.LatestVersion, logger); err != nil {
		return err
	}

	collector := metrics.NewCollector("bpmetrics_phone")
	go reportPoolStats(ctx, db, collector)

	// Create repositories
	libraryRepo := repository.NewSQLLibraryRepository(db)
	deviceRepo := repository.NewSQLDeviceRepository(db)

	lib := library.NewService(libraryRepo, library.Options{
		Dedup:   cfg.Ingest.Dedup,
		Logger:  logger,
		Metrics: collector,
	})
	defer lib.Close()
	if err := lib.Load(ctx); err != nil {
		return err
	}

	ingestor := ingest.New(lib, ingest.Options{
		Path:    cfg.Transport.Path,
		Devices: deviceRepo,
		Logger:  logger,
		Metrics: collector,
	})
	receiver := transport.NewConsecutiveDeduper(ingestor, logger)

	// MQTT deliveries share the deduper with the HTTP ingress
	if cfg.Transport.Kind == config.TransportMQTT {
		mqttReceiver := transport.NewMQTTReceiver(transport.MQTTConfig{
			Broker:      cfg.Transport.MQTTBroker,
			ClientID:    clientID(cfg.Transport.MQTTClientID, "bpmetrics-phone"),
			Username:    cfg.Transport.MQTTUsername,
			Password:    cfg.Transport.MQTTPassword,
			TopicPrefix: cfg.Transport.MQTTTopicPrefix,
			QoS:         byte(cfg.Transport.MQTTQoS),
		}, receiver, logger)
		if err := mqttReceiver.Start(); err != nil {
			return err
		}
		defer mqttReceiver.Close()
		log.Printf("Subscribed to MQTT broker %s", cfg.Transport.MQTTBroker)
	}

	router := server.New(&server.Dependencies{
		Library:     lib,
		Transport:   receiver,
		DeviceRepo:  deviceRepo,
		Pairing:     auth.NewPairingService(cfg.Pairing.Secret, cfg.Pairing.TokenTTL),
		Metrics:     collector,
		HealthCheck: db.HealthCheck,
		Logger:      logger,
	})

	return server.Serve(ctx, ":"+cfg.Server.Port, router, logger)
}

func reportPoolStats(ctx context.Context, db *database.DB, collector *metrics.Collector) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		collector.UpdateDBConnectionPool(db.Stats())
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func clientID(configured, fallback string) string {
	if configured != "" {
		return configured
	}
	return fallback
}
