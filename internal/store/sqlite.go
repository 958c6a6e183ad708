package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// SQLite persists analyses in a local database file.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens the database and brings the schema up to date.
func OpenSQLite(path string, log *zap.Logger) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if err := Migrate(db, log); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Put(ctx context.Context, a *Analysis) error {
	touch(a)

	extracted, err := json.Marshal(frames(a.ExtractedFrames))
	if err != nil {
		return fmt.Errorf("failed to marshal extracted frames: %w", err)
	}
	professional, err := json.Marshal(frames(a.ProfessionalFrames))
	if err != nil {
		return fmt.Errorf("failed to marshal professional frames: %w", err)
	}

	query := `
		INSERT OR REPLACE INTO analyses (
			id, video_name, status, error, result,
			extracted_frames, professional_frames, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = s.db.ExecContext(ctx, query,
		a.ID,
		a.VideoName,
		string(a.Status),
		a.Error,
		string(a.Result),
		string(extracted),
		string(professional),
		a.CreatedAt,
		a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to store analysis: %w", err)
	}
	return nil
}

func (s *SQLite) Get(ctx context.Context, id string) (*Analysis, error) {
	query := `
		SELECT id, video_name, status, error, result,
		       extracted_frames, professional_frames, created_at, updated_at
		FROM analyses
		WHERE id = ?`

	a, err := scanAnalysis(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get analysis: %w", err)
	}
	return a, nil
}

func (s *SQLite) List(ctx context.Context) ([]*Analysis, error) {
	query := `
		SELECT id, video_name, status, error, result,
		       extracted_frames, professional_frames, created_at, updated_at
		FROM analyses
		ORDER BY created_at DESC, id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list analyses: %w", err)
	}
	defer rows.Close()

	var out []*Analysis
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan analysis: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLite) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM analyses WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete analysis: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAnalysis(row scanner) (*Analysis, error) {
	var a Analysis
	var status, result, extracted, professional string
	var createdAt, updatedAt time.Time

	if err := row.Scan(&a.ID, &a.VideoName, &status, &a.Error, &result,
		&extracted, &professional, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	a.Status = Status(status)
	if result != "" {
		a.Result = json.RawMessage(result)
	}
	if err := json.Unmarshal([]byte(extracted), &a.ExtractedFrames); err != nil {
		a.ExtractedFrames = nil
	}
	if err := json.Unmarshal([]byte(professional), &a.ProfessionalFrames); err != nil {
		a.ProfessionalFrames = nil
	}
	if len(a.ExtractedFrames) == 0 {
		a.ExtractedFrames = nil
	}
	if len(a.ProfessionalFrames) == 0 {
		a.ProfessionalFrames = nil
	}
	a.CreatedAt = createdAt.UTC()
	a.UpdatedAt = updatedAt.UTC()
	return &a, nil
}

// frames substitutes an empty map for nil so the column is always
// valid JSON.
func frames(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
