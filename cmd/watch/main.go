// Package main is the entry point for the watch agent: an emulated heart-rate
// sensor, the recording session and the transmitter to the phone.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sebasr/bpmetrics/internal/config"
	"github.com/sebasr/bpmetrics/internal/metrics"
	"github.com/sebasr/bpmetrics/internal/sensor"
	"github.com/sebasr/bpmetrics/internal/server"
	"github.com/sebasr/bpmetrics/internal/session"
	"github.com/sebasr/bpmetrics/internal/transmit"
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
		log.Printf("Watch agent stopped: %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	logger := log.Default()
	collector := metrics.NewCollector("bpmetrics_watch")

	sender, closeSender, err := newSender(cfg, logger)
	if err != nil {
		return err
	}
	defer closeSender()

	transmitter := transmit.New(sender, transmit.Options{
		Path:    cfg.Transport.Path,
		Timeout: cfg.Transport.Timeout,
		Logger:  logger,
		Metrics: collector,
	})
	// in-flight transmissions finish before exit
	defer transmitter.Close()

	clock := sensor.NewSystemClock()
	emulatorCfg := sensor.DefaultEmulatorConfig()
	emulatorCfg.Interval = cfg.Sensor.Interval
	emulatorCfg.Warmup = cfg.Sensor.Warmup
	emulatorCfg.BaseBPM = cfg.Sensor.BaseBPM
	emulatorCfg.Seed = uint64(cfg.Sensor.Seed)
	emulator := sensor.NewEmulator(emulatorCfg, clock, logger)

	machine := session.NewMachine(session.Options{
		Controller: emulator,
		Clock:      clock,
		Sink:       transmitter,
		Logger:     logger,
		Metrics:    collector,
	})

	machineCtx, stopMachine := context.WithCancel(context.Background())
	machineDone := make(chan struct{})
	go func() {
		defer close(machineDone)
		_ = machine.Run(machineCtx)
	}()
	defer func() {
		stopMachine()
		<-machineDone
	}()

	// A sensor that cannot be registered leaves the session Inactive
	if err := emulator.Register(machine); err != nil {
		log.Printf("Sensor: registration failed: %v", err)
	} else {
		defer func() {
			if err := emulator.Unregister(); err != nil {
				log.Printf("Sensor: unregister failed: %v", err)
			}
		}()
	}

	router := server.NewWatch(&server.WatchDependencies{
		Session: machine,
		Metrics: collector,
		Logger:  logger,
	})

	log.Printf("Watch %s sending records over %s", cfg.Watch.DeviceID, cfg.Transport.Kind)
	return server.Serve(ctx, ":"+cfg.Watch.Port, router, logger)
}

// newSender builds the configured transport sender. A nil sender makes the
// transmitter drop every record.
func newSender(cfg *config.Config, logger *log.Logger) (transport.Sender, func(), error) {
	switch cfg.Transport.Kind {
	case config.TransportHTTP:
		return transport.NewHTTPSender(cfg.Transport.PhoneURL, cfg.Pairing.Token, cfg.Transport.Timeout), func() {}, nil
	case config.TransportMQTT:
		clientID := cfg.Transport.MQTTClientID
		if clientID == "" {
			clientID = "bpmetrics-" + cfg.Watch.DeviceID
		}
		sender, err := transport.NewMQTTSender(transport.MQTTConfig{
			Broker:      cfg.Transport.MQTTBroker,
			ClientID:    clientID,
			Username:    cfg.Transport.MQTTUsername,
			Password:    cfg.Transport.MQTTPassword,
			TopicPrefix: cfg.Transport.MQTTTopicPrefix,
			QoS:         byte(cfg.Transport.MQTTQoS),
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		return sender, sender.Close, nil
	default:
		logger.Println("Transport: disabled, finalized records will be dropped")
		return nil, func() {}, nil
	}
}
