package capture

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/openbooth/booth-core/internal/infrastructure/database"
)

// Record is one row of the capture log.
type Record struct {
	ID            string    `json:"id"`
	Kind          string    `json:"kind"`
	FileName      string    `json:"file_name"`
	Path          string    `json:"path"`
	ThumbnailPath string    `json:"thumbnail_path,omitempty"`
	Width         int       `json:"width,omitempty"`
	Height        int       `json:"height,omitempty"`
	SizeB         int64     `json:"size_bytes,omitempty"`
	Format        string    `json:"format,omitempty"`
	Settings      Settings  `json:"settings"`
	CapturedAt    time.Time `json:"captured_at"`
	CreatedAt     time.Time `json:"created_at"`
}

// ErrRecordNotFound is returned when a capture ID has no row.
var ErrRecordNotFound = errors.New("capture: record not found")

// Repository persists the capture log to SQLite.
type Repository struct {
	db *database.DB
}

// NewRepository creates a repository over an open database.
func NewRepository(db *database.DB) *Repository {
	return &Repository{db: db}
}

// Record inserts one completed capture. Implements Recorder.
func (r *Repository) Record(ctx context.Context, result *Result, kind string) error {
	settingsJSON, err := json.Marshal(result.Metadata.Settings)
	if err != nil {
		return fmt.Errorf("marshalling settings: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO captures (
			id, kind, file_name, path, thumbnail_path,
			width, height, size_bytes, format, settings_json, captured_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		result.ID,
		kind,
		result.FileName,
		result.Path,
		nullString(result.ThumbnailPath),
		result.Metadata.Width,
		result.Metadata.Height,
		result.Metadata.SizeB,
		result.Metadata.Format,
		string(settingsJSON),
		result.CapturedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting capture %s: %w", result.ID, err)
	}
	return nil
}

// GetByID returns one capture record.
func (r *Repository) GetByID(ctx context.Context, id string) (*Record, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, kind, file_name, path, thumbnail_path,
		       width, height, size_bytes, format, settings_json,
		       captured_at, created_at
		FROM captures WHERE id = ?`, id)

	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("querying capture %s: %w", id, err)
	}
	return record, nil
}

// List returns capture records newest-first. kind filters to "photo"
// or "video" when non-empty.
func (r *Repository) List(ctx context.Context, kind string, limit, offset int) ([]*Record, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, kind, file_name, path, thumbnail_path,
		       width, height, size_bytes, format, settings_json,
		       captured_at, created_at
		FROM captures`
	args := []any{}
	if kind != "" {
		query += " WHERE kind = ?"
		args = append(args, kind)
	}
	query += " ORDER BY captured_at DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing captures: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Read-only rows

	var records []*Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning capture row: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating capture rows: %w", err)
	}
	return records, nil
}

// Count returns the number of logged captures, optionally filtered by kind.
func (r *Repository) Count(ctx context.Context, kind string) (int, error) {
	query := "SELECT COUNT(*) FROM captures"
	args := []any{}
	if kind != "" {
		query += " WHERE kind = ?"
		args = append(args, kind)
	}

	var count int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting captures: %w", err)
	}
	return count, nil
}

// Delete removes one capture record. The file on disk is untouched.
func (r *Repository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM captures WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting capture %s: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	return nil
}

// scanner abstracts sql.Row and sql.Rows for scanRecord.
type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*Record, error) {
	var (
		record       Record
		thumbnail    sql.NullString
		settingsJSON sql.NullString
	)

	err := s.Scan(
		&record.ID,
		&record.Kind,
		&record.FileName,
		&record.Path,
		&thumbnail,
		&record.Width,
		&record.Height,
		&record.SizeB,
		&record.Format,
		&settingsJSON,
		&record.CapturedAt,
		&record.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	record.ThumbnailPath = thumbnail.String
	if settingsJSON.Valid && settingsJSON.String != "" {
		if err := json.Unmarshal([]byte(settingsJSON.String), &record.Settings); err != nil {
			return nil, fmt.Errorf("unmarshalling settings: %w", err)
		}
	}

	return &record, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
