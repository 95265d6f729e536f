package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sebasr/bpmetrics/internal/database"
	"github.com/sebasr/bpmetrics/internal/models"
)

const recordColumns = `
	record_id, source_id, title, record_date, start_time, end_time, duration_ms,
	avg, max_point_id, min_point_id, created_at`

// SQLLibraryRepository implements LibraryRepository on SQLite or PostgreSQL
type SQLLibraryRepository struct {
	db *database.DB
}

// NewSQLLibraryRepository creates a new library repository
func NewSQLLibraryRepository(db *database.DB) *SQLLibraryRepository {
	return &SQLLibraryRepository{db: db}
}

// Create inserts the record shell, then its points, then fills in the
// statistics, all within a single transaction
func (r *SQLLibraryRepository) Create(ctx context.Context, rec *models.LibraryRecord, stats models.Stats) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() // Rollback is safe to call even after Commit
	}()

	var sourceID any
	if rec.SourceID != nil {
		sourceID = rec.SourceID.String()
	}
	createdAt := time.Now().UTC()

	// ids are only copied into rec once the transaction commits
	var recordID int64
	err = tx.QueryRowContext(ctx, r.db.Rebind(`
		INSERT INTO bpm_records (
			source_id, title, record_date, start_time, end_time, duration_ms, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING record_id
	`),
		sourceID, rec.Title, rec.Date.String(), rec.StartTime, rec.EndTime, rec.Duration, createdAt,
	).Scan(&recordID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrRecordExists
		}
		return fmt.Errorf("failed to insert record: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, r.db.Rebind(`
		INSERT INTO bpm_data_points (record_owner_id, timestamp_ms, bpm)
		VALUES (?, ?, ?)
		RETURNING data_point_id
	`))
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	pointIDs := make([]int64, len(rec.Points))
	for i, p := range rec.Points {
		if err := stmt.QueryRowContext(ctx, recordID, p.Timestamp, p.BPM).Scan(&pointIDs[i]); err != nil {
			return fmt.Errorf("failed to insert data point %d: %w", i, err)
		}
	}

	hasStats := stats.MaxIndex >= 0 && stats.MinIndex >= 0 && len(rec.Points) > 0
	var avg float64
	var maxID, minID int64
	if hasStats {
		avg = stats.Avg
		maxID = pointIDs[stats.MaxIndex]
		minID = pointIDs[stats.MinIndex]

		_, err = tx.ExecContext(ctx, r.db.Rebind(`
			UPDATE bpm_records
			SET avg = ?, max_point_id = ?, min_point_id = ?
			WHERE record_id = ?
		`), avg, maxID, minID, recordID)
		if err != nil {
			return fmt.Errorf("failed to update record statistics: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	rec.ID = recordID
	for i := range rec.Points {
		rec.Points[i].ID = pointIDs[i]
		rec.Points[i].RecordID = recordID
	}
	if hasStats {
		rec.Avg, rec.MaxPointID, rec.MinPointID = &avg, &maxID, &minID
	}
	rec.CreatedAt = createdAt

	return nil
}

// List retrieves every record with its points
func (r *SQLLibraryRepository) List(ctx context.Context) ([]*models.LibraryRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+recordColumns+`
		FROM bpm_records
		ORDER BY record_date DESC, start_time DESC, record_id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	records, err := scanRecordRows(rows)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return records, nil
	}

	pointRows, err := r.db.QueryContext(ctx, `
		SELECT data_point_id, record_owner_id, timestamp_ms, bpm
		FROM bpm_data_points
		ORDER BY record_owner_id, timestamp_ms, data_point_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query data points: %w", err)
	}
	points, err := scanPointRows(pointRows)
	if err != nil {
		return nil, err
	}

	byRecord := make(map[int64][]models.StoredPoint, len(records))
	for _, p := range points {
		byRecord[p.RecordID] = append(byRecord[p.RecordID], p)
	}
	for _, rec := range records {
		rec.Points = byRecord[rec.ID]
		if rec.Points == nil {
			rec.Points = []models.StoredPoint{}
		}
	}

	return records, nil
}

// GetByID retrieves a record with its points
func (r *SQLLibraryRepository) GetByID(ctx context.Context, id int64) (*models.LibraryRecord, error) {
	rows, err := r.db.QueryContext(ctx, r.db.Rebind(`
		SELECT `+recordColumns+`
		FROM bpm_records
		WHERE record_id = ?
	`), id)
	if err != nil {
		return nil, fmt.Errorf("failed to query record: %w", err)
	}
	records, err := scanRecordRows(rows)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrRecordNotFound
	}
	rec := records[0]

	pointRows, err := r.db.QueryContext(ctx, r.db.Rebind(`
		SELECT data_point_id, record_owner_id, timestamp_ms, bpm
		FROM bpm_data_points
		WHERE record_owner_id = ?
		ORDER BY timestamp_ms, data_point_id
	`), id)
	if err != nil {
		return nil, fmt.Errorf("failed to query data points: %w", err)
	}
	if rec.Points, err = scanPointRows(pointRows); err != nil {
		return nil, err
	}

	return rec, nil
}

// UpdateTitle renames a record
func (r *SQLLibraryRepository) UpdateTitle(ctx context.Context, id int64, title string) error {
	result, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE bpm_records SET title = ? WHERE record_id = ?
	`), title, id)
	if err != nil {
		return fmt.Errorf("failed to update title: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrRecordNotFound
	}

	return nil
}

// DeleteAll removes every record and point
func (r *SQLLibraryRepository) DeleteAll(ctx context.Context) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM bpm_data_points`); err != nil {
		return 0, fmt.Errorf("failed to delete data points: %w", err)
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM bpm_records`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete records: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return deleted, nil
}

// Count returns the number of stored records
func (r *SQLLibraryRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bpm_records`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return n, nil
}

// scanRecordRows scans and closes rows of recordColumns
func scanRecordRows(rows *sql.Rows) ([]*models.LibraryRecord, error) {
	defer rows.Close()

	records := []*models.LibraryRecord{}
	for rows.Next() {
		var (
			rec      models.LibraryRecord
			sourceID uuid.NullUUID
			date     string
			avg      sql.NullFloat64
			maxID    sql.NullInt64
			minID    sql.NullInt64
		)
		err := rows.Scan(
			&rec.ID, &sourceID, &rec.Title, &date,
			&rec.StartTime, &rec.EndTime, &rec.Duration,
			&avg, &maxID, &minID, &rec.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record row: %w", err)
		}

		if rec.Date, err = models.ParseDate(date); err != nil {
			return nil, fmt.Errorf("record %d: %w", rec.ID, err)
		}
		if sourceID.Valid {
			rec.SourceID = &sourceID.UUID
		}
		if avg.Valid {
			rec.Avg = &avg.Float64
		}
		if maxID.Valid {
			rec.MaxPointID = &maxID.Int64
		}
		if minID.Valid {
			rec.MinPointID = &minID.Int64
		}

		records = append(records, &rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating record rows: %w", err)
	}
	return records, nil
}

// scanPointRows scans and closes data point rows
func scanPointRows(rows *sql.Rows) ([]models.StoredPoint, error) {
	defer rows.Close()

	points := []models.StoredPoint{}
	for rows.Next() {
		var p models.StoredPoint
		if err := rows.Scan(&p.ID, &p.RecordID, &p.Timestamp, &p.BPM); err != nil {
			return nil, fmt.Errorf("failed to scan data point row: %w", err)
		}
		points = append(points, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating data point rows: %w", err)
	}
	return points, nil
}

var _ LibraryRepository = (*SQLLibraryRepository)(nil)
