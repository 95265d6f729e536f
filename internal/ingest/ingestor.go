// Package ingest turns payloads received from the watch into library records.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/sebasr/bpmetrics/internal/metrics"
	"github.com/sebasr/bpmetrics/internal/models"
	"github.com/sebasr/bpmetrics/internal/repository"
	"github.com/sebasr/bpmetrics/internal/transport"
	"github.com/sebasr/bpmetrics/internal/wire"
)

// ErrUnknownPath is returned for payloads received on a path other than the record path
var ErrUnknownPath = errors.New("unknown transport path")

// Saver stores a decoded watch record
type Saver interface {
	Save(ctx context.Context, rec *models.WatchRecord) (*models.LibraryRecord, error)
}

// Result describes the outcome of a successful ingest
type Result struct {
	Record    *models.LibraryRecord // nil for a duplicate
	Duplicate bool
}

// Options configures an Ingestor
type Options struct {
	Path    string                      // record path, transport.DefaultPath if empty
	Devices repository.DeviceRepository // optional paired-device bookkeeping
	Logger  *log.Logger
	Metrics *metrics.Collector
	Now     func() time.Time
}

// Ingestor decodes, deduplicates and stores received records
type Ingestor struct {
	saver   Saver
	path    string
	devices repository.DeviceRepository
	logger  *log.Logger
	metrics *metrics.Collector
	now     func() time.Time
}

// New creates an ingestor storing records through saver
func New(saver Saver, opts Options) *Ingestor {
	if opts.Path == "" {
		opts.Path = transport.DefaultPath
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Ingestor{
		saver:   saver,
		path:    opts.Path,
		devices: opts.Devices,
		logger:  opts.Logger,
		metrics: opts.Metrics,
		now:     opts.Now,
	}
}

// Ingest stores the record carried by payload. A repeated delivery of an
// already stored record is not an error; it is reported as a duplicate.
// Malformed payloads return an error wrapping wire.ErrMalformedPayload or
// wire.ErrUnsupportedVersion.
func (i *Ingestor) Ingest(ctx context.Context, path string, payload []byte) (Result, error) {
	start := time.Now()

	if path != i.path {
		i.metrics.RecordIngest(metrics.IngestMalformed, time.Since(start))
		i.logger.Printf("Ingest: dropped payload on unknown path %q", path)
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownPath, path)
	}

	rec, err := wire.Decode(payload)
	if err != nil {
		i.metrics.RecordIngest(metrics.IngestMalformed, time.Since(start))
		i.logger.Printf("Ingest: dropped malformed payload (%d bytes): %v", len(payload), err)
		return Result{}, err
	}

	lr, err := i.saver.Save(ctx, rec)
	switch {
	case errors.Is(err, repository.ErrRecordExists):
		i.metrics.RecordIngest(metrics.IngestDuplicate, time.Since(start))
		i.logger.Printf("Ingest: ignored duplicate record %s", rec.ID)
		i.touch(ctx, false)
		return Result{Duplicate: true}, nil
	case err != nil:
		i.metrics.RecordIngest(metrics.IngestError, time.Since(start))
		i.logger.Printf("Ingest: failed to store record %s (%d points): %v", rec.ID, len(rec.DataPoints), err)
		return Result{}, err
	}

	i.metrics.RecordIngest(metrics.IngestStored, time.Since(start))
	i.touch(ctx, true)
	return Result{Record: lr}, nil
}

// HandleMessage implements transport.Handler and reports every failure
func (i *Ingestor) HandleMessage(ctx context.Context, path string, payload []byte) error {
	_, err := i.Ingest(ctx, path, payload)
	return err
}

// Handler adapts the ingestor for asynchronous transports: failures are
// logged by Ingest and never returned to the transport.
func (i *Ingestor) Handler() transport.Handler {
	return transport.HandlerFunc(func(ctx context.Context, path string, payload []byte) error {
		_, _ = i.Ingest(ctx, path, payload)
		return nil
	})
}

func (i *Ingestor) touch(ctx context.Context, stored bool) {
	if i.devices == nil {
		return
	}
	deviceID, ok := DeviceIDFrom(ctx)
	if !ok {
		return
	}
	if err := i.devices.Touch(ctx, deviceID, i.now(), stored); err != nil {
		i.logger.Printf("Ingest: failed to update device %s: %v", deviceID, err)
	}
}

type deviceIDKey struct{}

// WithDeviceID tags ctx with the id of the device a payload came from
func WithDeviceID(ctx context.Context, deviceID string) context.Context {
	return context.WithValue(ctx, deviceIDKey{}, deviceID)
}

// DeviceIDFrom returns the device id stored by WithDeviceID
func DeviceIDFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(deviceIDKey{}).(string)
	return id, ok && id != ""
}
