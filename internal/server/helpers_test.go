package server

import (
	"bytes"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/sebasr/bpmetrics/internal/auth"
	"github.com/sebasr/bpmetrics/internal/config"
	"github.com/sebasr/bpmetrics/internal/database"
	"github.com/sebasr/bpmetrics/internal/ingest"
	"github.com/sebasr/bpmetrics/internal/library"
	"github.com/sebasr/bpmetrics/internal/metrics"
	"github.com/sebasr/bpmetrics/internal/models"
	"github.com/sebasr/bpmetrics/internal/repository"
	"github.com/sebasr/bpmetrics/internal/transport"
	"github.com/sebasr/bpmetrics/internal/wire"
)

type testPhone struct {
	router  *gin.Engine
	token   string
	library *library.Service
	devices repository.DeviceRepository
	deduper *transport.ConsecutiveDeduper
	metrics *metrics.Collector
}

// newTestPhone wires a phone server over a migrated SQLite database
func newTestPhone(t *testing.T) *testPhone {
	t.Helper()

	db, err := database.New(&config.DatabaseConfig{
		Driver: config.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "phone.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.Migrate(db, database.LatestVersion, nil))

	logger := log.New(io.Discard, "", 0)
	collector := metrics.NewCollector("test")
	devices := repository.NewSQLDeviceRepository(db)

	lib := library.NewService(repository.NewSQLLibraryRepository(db), library.Options{
		Dedup:    true,
		Location: time.UTC,
		Logger:   logger,
		Metrics:  collector,
	})
	t.Cleanup(lib.Close)

	ingestor := ingest.New(lib, ingest.Options{Devices: devices, Logger: logger, Metrics: collector})
	deduper := transport.NewConsecutiveDeduper(ingestor, logger)

	pairing := auth.NewPairingService("test-secret", time.Hour)
	token, _, err := pairing.Issue("watch-1")
	require.NoError(t, err)

	router := New(&Dependencies{
		Library:     lib,
		Transport:   deduper,
		DeviceRepo:  devices,
		Pairing:     pairing,
		Metrics:     collector,
		HealthCheck: db.HealthCheck,
		Logger:      logger,
	})
	gin.SetMode(gin.TestMode)

	return &testPhone{
		router:  router,
		token:   token,
		library: lib,
		devices: devices,
		deduper: deduper,
		metrics: collector,
	}
}

func (p *testPhone) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	p.router.ServeHTTP(w, req)
	return w
}

func (p *testPhone) postRecord(t *testing.T, payload []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, transport.IngressPrefix+transport.DefaultPath, bytes.NewReader(payload))
	req.Header.Set("Authorization", "Bearer "+p.token)
	return p.do(req)
}

func encodedRecord(t *testing.T, id uuid.UUID, bpms ...float64) []byte {
	t.Helper()

	points := make([]models.DataPoint, len(bpms))
	for i, bpm := range bpms {
		points[i] = models.DataPoint{Timestamp: int64(i+1) * 1000, BPM: bpm}
	}
	start := time.Date(2024, 6, 3, 14, 5, 9, 0, time.UTC).UnixMilli()
	rec, err := models.NewWatchRecord(id, models.Date{Year: 2024, Month: 6, Day: 3},
		points, start, start+int64(len(bpms)+1)*1000)
	require.NoError(t, err)

	payload, err := wire.Encode(rec)
	require.NoError(t, err)
	return payload
}
