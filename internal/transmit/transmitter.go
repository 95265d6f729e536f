// Package transmit ships finalized watch records to the phone.
package transmit

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/sebasr/bpmetrics/internal/metrics"
	"github.com/sebasr/bpmetrics/internal/models"
	"github.com/sebasr/bpmetrics/internal/transport"
	"github.com/sebasr/bpmetrics/internal/wire"
)

// ErrNoTransport is returned when no sender is configured
var ErrNoTransport = errors.New("no transport configured")

// Options configures a Transmitter
type Options struct {
	Path    string
	Timeout time.Duration
	Logger  *log.Logger
	Metrics *metrics.Collector
}

// Transmitter serializes records and sends each one once. Failures are
// logged and counted; nothing is retried.
type Transmitter struct {
	sender  transport.Sender
	path    string
	timeout time.Duration
	logger  *log.Logger
	metrics *metrics.Collector

	wg sync.WaitGroup
}

// New creates a transmitter over sender. A nil sender drops every record.
func New(sender transport.Sender, opts Options) *Transmitter {
	if opts.Path == "" {
		opts.Path = transport.DefaultPath
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Transmitter{
		sender:  sender,
		path:    opts.Path,
		timeout: opts.Timeout,
		logger:  opts.Logger,
		metrics: opts.Metrics,
	}
}

// Submit transmits rec in the background. It never blocks on the network.
func (t *Transmitter) Submit(rec *models.WatchRecord) {
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		_ = t.Transmit(context.Background(), rec)
	}()
}

// Transmit encodes rec and sends it once
func (t *Transmitter) Transmit(ctx context.Context, rec *models.WatchRecord) error {
	err := t.transmit(ctx, rec)
	t.metrics.RecordTransmit(err)
	if err != nil {
		t.logger.Printf("Transmit: record %s (%d points) not delivered: %v", rec.ID, len(rec.DataPoints), err)
		return err
	}
	t.logger.Printf("Transmit: record %s (%d points) sent on %s", rec.ID, len(rec.DataPoints), t.path)
	return nil
}

func (t *Transmitter) transmit(ctx context.Context, rec *models.WatchRecord) error {
	if t.sender == nil {
		return ErrNoTransport
	}

	payload, err := wire.Encode(rec)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	if err := t.sender.Send(ctx, t.path, payload); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	return nil
}

// Close waits for in-flight transmissions to finish. They are not cancelled.
func (t *Transmitter) Close() {
	t.wg.Wait()
}
