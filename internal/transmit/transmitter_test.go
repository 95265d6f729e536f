package transmit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sebasr/bpmetrics/internal/metrics"
	"github.com/sebasr/bpmetrics/internal/models"
	"github.com/sebasr/bpmetrics/internal/transport"
	"github.com/sebasr/bpmetrics/internal/wire"
)

// mockSender implements transport.Sender with a Func field
type mockSender struct {
	mu       sync.Mutex
	calls    int
	SendFunc func(ctx context.Context, path string, payload []byte) error
}

func (s *mockSender) Send(ctx context.Context, path string, payload []byte) error {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.SendFunc != nil {
		return s.SendFunc(ctx, path, payload)
	}
	return nil
}

func (s *mockSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func testRecord(t *testing.T) *models.WatchRecord {
	t.Helper()
	rec, err := models.NewWatchRecord(uuid.New(), models.Date{Year: 2024, Month: time.July, Day: 4},
		[]models.DataPoint{{Timestamp: 1000, BPM: 70}}, 1000, 5000)
	require.NoError(t, err)
	return rec
}

func TestTransmitter_Transmit(t *testing.T) {
	rec := testRecord(t)

	var gotPath string
	var decoded *models.WatchRecord
	sender := &mockSender{SendFunc: func(ctx context.Context, path string, payload []byte) error {
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline)
		gotPath = path
		var err error
		decoded, err = wire.Decode(payload)
		return err
	}}
	m := metrics.NewCollector("test")

	tr := New(sender, Options{Metrics: m})
	require.NoError(t, tr.Transmit(context.Background(), rec))

	assert.Equal(t, transport.DefaultPath, gotPath)
	require.NotNil(t, decoded)
	assert.Equal(t, rec.ID, decoded.ID)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TransmitTotal.WithLabelValues("sent")))
}

func TestTransmitter_FailureIsNotRetried(t *testing.T) {
	sender := &mockSender{SendFunc: func(context.Context, string, []byte) error {
		return errors.New("peer unreachable")
	}}
	m := metrics.NewCollector("test")

	tr := New(sender, Options{Path: "/custom", Metrics: m})
	tr.Submit(testRecord(t))
	tr.Close()

	assert.Equal(t, 1, sender.count())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TransmitTotal.WithLabelValues("failed")))
}

func TestTransmitter_SubmitDoesNotBlock(t *testing.T) {
	release := make(chan struct{})
	sender := &mockSender{SendFunc: func(context.Context, string, []byte) error {
		<-release
		return nil
	}}

	tr := New(sender, Options{})
	done := make(chan struct{})
	go func() {
		tr.Submit(testRecord(t))
		tr.Submit(testRecord(t))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Submit blocked on the sender")
	}

	close(release)
	tr.Close()
	assert.Equal(t, 2, sender.count())
}

func TestTransmitter_NoTransport(t *testing.T) {
	tr := New(nil, Options{})
	assert.ErrorIs(t, tr.Transmit(context.Background(), testRecord(t)), ErrNoTransport)
}

func TestTransmitter_Loopback(t *testing.T) {
	var got []byte
	lb := transport.NewLoopback(transport.HandlerFunc(func(_ context.Context, _ string, payload []byte) error {
		got = payload
		return nil
	}))

	rec := testRecord(t)
	require.NoError(t, New(lb, Options{}).Transmit(context.Background(), rec))

	decoded, err := wire.Decode(got)
	require.NoError(t, err)
	assert.Equal(t, rec.DataPoints, decoded.DataPoints)
}
