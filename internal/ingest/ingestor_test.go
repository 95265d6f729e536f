package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sebasr/bpmetrics/internal/metrics"
	"github.com/sebasr/bpmetrics/internal/models"
	"github.com/sebasr/bpmetrics/internal/repository"
	"github.com/sebasr/bpmetrics/internal/transport"
	"github.com/sebasr/bpmetrics/internal/wire"
)

type mockSaver struct {
	SaveFunc func(ctx context.Context, rec *models.WatchRecord) (*models.LibraryRecord, error)
	calls    int
}

func (m *mockSaver) Save(ctx context.Context, rec *models.WatchRecord) (*models.LibraryRecord, error) {
	m.calls++
	return m.SaveFunc(ctx, rec)
}

func storingSaver() *mockSaver {
	return &mockSaver{SaveFunc: func(_ context.Context, rec *models.WatchRecord) (*models.LibraryRecord, error) {
		lr := models.NewLibraryRecord(rec, "stored")
		lr.ID = 1
		return lr, nil
	}}
}

func encodedRecord(t *testing.T) ([]byte, *models.WatchRecord) {
	t.Helper()

	rec, err := models.NewWatchRecord(uuid.New(), models.Date{Year: 2024, Month: time.June, Day: 3},
		[]models.DataPoint{{Timestamp: 1000, BPM: 80}, {Timestamp: 2000, BPM: 90}}, 1000, 5000)
	require.NoError(t, err)
	payload, err := wire.Encode(rec)
	require.NoError(t, err)
	return payload, rec
}

func TestIngestor_Ingest(t *testing.T) {
	payload, rec := encodedRecord(t)
	saver := storingSaver()
	collector := metrics.NewCollector("test")
	ing := New(saver, Options{Metrics: collector})

	result, err := ing.Ingest(context.Background(), transport.DefaultPath, payload)
	require.NoError(t, err)
	assert.False(t, result.Duplicate)
	require.NotNil(t, result.Record)
	assert.Equal(t, rec.ID, *result.Record.SourceID)
	assert.Equal(t, 1, saver.calls)
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.IngestTotal.WithLabelValues(metrics.IngestStored)))
}

func TestIngestor_Ingest_Rejections(t *testing.T) {
	payload, _ := encodedRecord(t)

	tests := []struct {
		name    string
		path    string
		payload []byte
		wantErr error
	}{
		{"unknown path", "/other", payload, ErrUnknownPath},
		{"not json", transport.DefaultPath, []byte("not json"), wire.ErrMalformedPayload},
		{"unknown version", transport.DefaultPath, []byte(`{"version":7}`), wire.ErrUnsupportedVersion},
		{"empty record", transport.DefaultPath, []byte(`{"version":1,"recordId":"` + uuid.NewString() +
			`","record":{"date":"2024-06-03","dataPoints":[],"startTime":0,"endTime":10}}`), wire.ErrMalformedPayload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			saver := storingSaver()
			collector := metrics.NewCollector("test")
			ing := New(saver, Options{Metrics: collector})

			_, err := ing.Ingest(context.Background(), tt.path, tt.payload)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Zero(t, saver.calls)
			assert.Equal(t, 1.0, testutil.ToFloat64(collector.IngestTotal.WithLabelValues(metrics.IngestMalformed)))
		})
	}
}

func TestIngestor_Ingest_Duplicate(t *testing.T) {
	payload, _ := encodedRecord(t)
	saver := &mockSaver{SaveFunc: func(_ context.Context, _ *models.WatchRecord) (*models.LibraryRecord, error) {
		return nil, repository.ErrRecordExists
	}}
	devices := repository.NewMockDeviceRepository()
	touched := 0
	var gotStored bool
	devices.TouchFunc = func(_ context.Context, _ string, _ time.Time, stored bool) error {
		touched++
		gotStored = stored
		return nil
	}
	collector := metrics.NewCollector("test")
	ing := New(saver, Options{Devices: devices, Metrics: collector})

	result, err := ing.Ingest(WithDeviceID(context.Background(), "watch-1"), transport.DefaultPath, payload)
	require.NoError(t, err)
	assert.True(t, result.Duplicate)
	assert.Nil(t, result.Record)
	assert.Equal(t, 1, touched)
	assert.False(t, gotStored)
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.IngestTotal.WithLabelValues(metrics.IngestDuplicate)))
}

func TestIngestor_Ingest_StoreFailure(t *testing.T) {
	payload, _ := encodedRecord(t)
	saver := &mockSaver{SaveFunc: func(_ context.Context, _ *models.WatchRecord) (*models.LibraryRecord, error) {
		return nil, errors.New("database is locked")
	}}
	ing := New(saver, Options{})

	_, err := ing.Ingest(context.Background(), transport.DefaultPath, payload)
	assert.ErrorContains(t, err, "database is locked")

	// The asynchronous handler swallows the same failure
	assert.NoError(t, ing.Handler().HandleMessage(context.Background(), transport.DefaultPath, payload))
}

func TestIngestor_TouchesDevice(t *testing.T) {
	payload, _ := encodedRecord(t)
	now := time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)

	devices := repository.NewMockDeviceRepository()
	var gotID string
	var gotAt time.Time
	var gotStored bool
	devices.TouchFunc = func(_ context.Context, deviceID string, at time.Time, stored bool) error {
		gotID, gotAt, gotStored = deviceID, at, stored
		return nil
	}
	ing := New(storingSaver(), Options{Devices: devices, Now: func() time.Time { return now }})

	_, err := ing.Ingest(WithDeviceID(context.Background(), "watch-7"), transport.DefaultPath, payload)
	require.NoError(t, err)
	assert.Equal(t, "watch-7", gotID)
	assert.Equal(t, now, gotAt)
	assert.True(t, gotStored)
}

func TestIngestor_DeviceTouchFailureIsNotFatal(t *testing.T) {
	payload, _ := encodedRecord(t)
	devices := repository.NewMockDeviceRepository()
	devices.TouchFunc = func(_ context.Context, _ string, _ time.Time, _ bool) error {
		return errors.New("boom")
	}
	ing := New(storingSaver(), Options{Devices: devices})

	result, err := ing.Ingest(WithDeviceID(context.Background(), "watch-1"), transport.DefaultPath, payload)
	require.NoError(t, err)
	assert.NotNil(t, result.Record)
}

func TestIngestor_LoopbackWithDeduper(t *testing.T) {
	payload, _ := encodedRecord(t)
	saver := storingSaver()
	ing := New(saver, Options{})
	sender := transport.NewLoopback(transport.NewConsecutiveDeduper(ing, nil))

	require.NoError(t, sender.Send(context.Background(), transport.DefaultPath, payload))
	require.NoError(t, sender.Send(context.Background(), transport.DefaultPath, payload))
	assert.Equal(t, 1, saver.calls)
}

func TestDeviceIDFrom(t *testing.T) {
	_, ok := DeviceIDFrom(context.Background())
	assert.False(t, ok)

	_, ok = DeviceIDFrom(WithDeviceID(context.Background(), ""))
	assert.False(t, ok)

	id, ok := DeviceIDFrom(WithDeviceID(context.Background(), "watch-1"))
	assert.True(t, ok)
	assert.Equal(t, "watch-1", id)
}
