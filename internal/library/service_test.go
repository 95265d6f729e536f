package library

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sebasr/bpmetrics/internal/config"
	"github.com/sebasr/bpmetrics/internal/database"
	"github.com/sebasr/bpmetrics/internal/metrics"
	"github.com/sebasr/bpmetrics/internal/models"
	"github.com/sebasr/bpmetrics/internal/repository"
)

func setupService(t *testing.T, opts Options) *Service {
	t.Helper()

	db, err := database.New(&config.DatabaseConfig{
		Driver: config.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "library.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.Migrate(db, database.LatestVersion, nil))

	if opts.Location == nil {
		opts.Location = time.UTC
	}
	svc := NewService(repository.NewSQLLibraryRepository(db), opts)
	t.Cleanup(svc.Close)
	return svc
}

func watchRecord(t *testing.T) *models.WatchRecord {
	t.Helper()

	start := time.Date(2024, 6, 3, 14, 5, 9, 0, time.UTC)
	rec, err := models.NewWatchRecord(uuid.New(), models.DateOf(start), []models.DataPoint{
		{Timestamp: 3000, BPM: 65},
		{Timestamp: 1000, BPM: 80},
		{Timestamp: 2000, BPM: 90},
	}, start.UnixMilli(), start.UnixMilli()+4000)
	require.NoError(t, err)
	return rec
}

func TestService_Save(t *testing.T) {
	svc := setupService(t, Options{Dedup: true})
	ctx := context.Background()

	lr, err := svc.Save(ctx, watchRecord(t))
	require.NoError(t, err)

	assert.Equal(t, "2024-06-03 02:05:09 PM", lr.Title)
	assert.Equal(t, int64(4000), lr.Duration)
	require.NotNil(t, lr.SourceID)
	require.True(t, lr.HasStats())
	assert.InDelta(t, 78.333, *lr.Avg, 0.001)

	maxPoint, _ := lr.Max()
	minPoint, _ := lr.Min()
	assert.Equal(t, 90.0, maxPoint.BPM)
	assert.Equal(t, 65.0, minPoint.BPM)
}

func TestService_Save_Dedup(t *testing.T) {
	t.Run("enabled rejects repeated delivery", func(t *testing.T) {
		svc := setupService(t, Options{Dedup: true})
		rec := watchRecord(t)

		_, err := svc.Save(context.Background(), rec)
		require.NoError(t, err)
		_, err = svc.Save(context.Background(), rec)
		assert.ErrorIs(t, err, repository.ErrRecordExists)
		assert.Len(t, svc.Current(), 1)
	})

	t.Run("disabled stores every delivery", func(t *testing.T) {
		svc := setupService(t, Options{Dedup: false})
		rec := watchRecord(t)

		for i := 0; i < 2; i++ {
			lr, err := svc.Save(context.Background(), rec)
			require.NoError(t, err)
			assert.Nil(t, lr.SourceID)
		}
		assert.Len(t, svc.Current(), 2)
	})
}

func TestService_Watch(t *testing.T) {
	svc := setupService(t, Options{Dedup: true})
	ctx := context.Background()
	require.NoError(t, svc.Load(ctx))

	updates, cancel := svc.Watch()
	defer cancel()

	initial := <-updates
	assert.Empty(t, initial)

	_, err := svc.Save(ctx, watchRecord(t))
	require.NoError(t, err)

	select {
	case list := <-updates:
		require.Len(t, list, 1)
		assert.Equal(t, "2024-06-03 02:05:09 PM", list[0].Title)
	case <-time.After(time.Second):
		t.Fatal("no update after save")
	}
}

func TestService_Rename(t *testing.T) {
	svc := setupService(t, Options{})
	ctx := context.Background()

	lr, err := svc.Save(ctx, watchRecord(t))
	require.NoError(t, err)

	renamed, err := svc.Rename(ctx, lr.ID, "  Evening ride ")
	require.NoError(t, err)
	assert.Equal(t, "Evening ride", renamed.Title)
	assert.Equal(t, "Evening ride", svc.Current()[0].Title)

	_, err = svc.Rename(ctx, lr.ID, "   ")
	assert.ErrorIs(t, err, ErrInvalidTitle)

	_, err = svc.Rename(ctx, lr.ID+1, "Missing")
	assert.ErrorIs(t, err, repository.ErrRecordNotFound)
}

func TestService_SeedSamplesAndDeleteAll(t *testing.T) {
	collector := metrics.NewCollector("test")
	svc := setupService(t, Options{Metrics: collector})
	ctx := context.Background()

	saved, err := svc.SeedSamples(ctx)
	require.NoError(t, err)
	require.Len(t, saved, 4)

	for i, base := range []float64{60, 70, 65, 85} {
		lr := saved[i]
		require.Len(t, lr.Points, 5)
		assert.InDelta(t, base, *lr.Avg, 1e-9)
		maxPoint, _ := lr.Max()
		minPoint, _ := lr.Min()
		assert.Equal(t, models.DataPoint{Timestamp: 5000, BPM: base + 10}, maxPoint.Point())
		assert.Equal(t, models.DataPoint{Timestamp: 4000, BPM: base - 10}, minPoint.Point())
	}
	assert.Len(t, svc.Current(), 4)

	deleted, err := svc.DeleteAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), deleted)
	assert.Empty(t, svc.Current())
}

func TestService_SaveFailureLeavesListUntouched(t *testing.T) {
	repo := repository.NewMockLibraryRepository()
	repo.CreateFunc = func(_ context.Context, _ *models.LibraryRecord, _ models.Stats) error {
		return errors.New("disk full")
	}
	listed := 0
	repo.ListFunc = func(_ context.Context) ([]*models.LibraryRecord, error) {
		listed++
		return []*models.LibraryRecord{}, nil
	}

	svc := NewService(repo, Options{Location: time.UTC})
	_, err := svc.Save(context.Background(), watchRecord(t))
	assert.ErrorContains(t, err, "disk full")
	assert.Zero(t, listed)
}

func TestService_SaveComputesStatsBeforeCreate(t *testing.T) {
	repo := repository.NewMockLibraryRepository()
	var gotStats models.Stats
	var gotRecord *models.LibraryRecord
	repo.CreateFunc = func(_ context.Context, rec *models.LibraryRecord, stats models.Stats) error {
		gotRecord, gotStats = rec, stats
		return nil
	}

	svc := NewService(repo, Options{Location: time.UTC, Dedup: true})
	rec := watchRecord(t)
	_, err := svc.Save(context.Background(), rec)
	require.NoError(t, err)

	require.NotNil(t, gotRecord)
	assert.Equal(t, rec.ID, *gotRecord.SourceID)
	assert.Equal(t, 1, gotStats.MaxIndex)
	assert.Equal(t, 2, gotStats.MinIndex)
	assert.InDelta(t, 78.333, gotStats.Avg, 0.001)
}

func TestSampleRecords(t *testing.T) {
	date := models.Date{Year: 2024, Month: time.June, Day: 3}
	records, err := SampleRecords(date)
	require.NoError(t, err)
	require.Len(t, records, 4)

	for _, rec := range records {
		assert.Equal(t, date, rec.Date)
		assert.Equal(t, int64(6000), rec.Duration())
		assert.True(t, models.IsSorted(rec.DataPoints))
		assert.Equal(t, uuid.Nil, rec.ID)
	}
}
