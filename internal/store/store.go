// Package store persists evaluation runs in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	pv "github.com/jamesainslie/go-pv"
)

// ErrNotFound indicates an unknown run ID.
var ErrNotFound = errors.New("store: run not found")

// Run is one persisted evaluation.
type Run struct {
	ID           string
	CreatedAt    time.Time
	ModelID      string
	Backend      string
	Threshold    float64
	FailedImages int
	Metrics      pv.Metrics
	Images       []pv.ImageResult // loaded by GetRun only
}

// Store is a SQLite run database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path and applies the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// SQLite allows one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		created_at DATETIME NOT NULL,
		model_id TEXT NOT NULL,
		backend TEXT NOT NULL,
		threshold REAL NOT NULL,
		failed_images INTEGER DEFAULT 0,
		metrics TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS run_images (
		run_id TEXT NOT NULL,
		image_id TEXT NOT NULL,
		has_pv INTEGER NOT NULL,
		area_gt REAL NOT NULL,
		has_pv_pred INTEGER NOT NULL,
		area_pred REAL NOT NULL,
		num_preds INTEGER NOT NULL,
		max_conf REAL NOT NULL,
		PRIMARY KEY (run_id, image_id),
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveRun inserts r with its images in one transaction. ID and CreatedAt
// are assigned when empty. The stored ID is returned.
func (s *Store) SaveRun(ctx context.Context, r *Run) (string, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	metrics, err := json.Marshal(r.Metrics)
	if err != nil {
		return "", fmt.Errorf("encoding metrics: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO runs (id, created_at, model_id, backend, threshold, failed_images, metrics)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.CreatedAt, r.ModelID, r.Backend, r.Threshold, r.FailedImages, string(metrics)); err != nil {
		return "", fmt.Errorf("inserting run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO run_images (run_id, image_id, has_pv, area_gt, has_pv_pred, area_pred, num_preds, max_conf)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return "", fmt.Errorf("preparing statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, img := range r.Images {
		t, p := img.Truth, img.Prediction
		if _, err := stmt.ExecContext(ctx, r.ID, t.ImageID, t.HasPV, t.Area, p.HasPV, p.Area, p.NumDetections, p.MaxConfidence); err != nil {
			return "", fmt.Errorf("inserting image %s: %w", t.ImageID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing run: %w", err)
	}
	return r.ID, nil
}

const runColumns = `id, created_at, model_id, backend, threshold, failed_images, metrics`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var (
		r       Run
		metrics string
	)
	if err := row.Scan(&r.ID, &r.CreatedAt, &r.ModelID, &r.Backend, &r.Threshold, &r.FailedImages, &metrics); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(metrics), &r.Metrics); err != nil {
		return nil, fmt.Errorf("decoding metrics of run %s: %w", r.ID, err)
	}
	return &r, nil
}

// GetRun loads a run and its images.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	r, err := scanRun(s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("querying run: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT image_id, has_pv, area_gt, has_pv_pred, area_pred, num_preds, max_conf
		FROM run_images WHERE run_id = ? ORDER BY rowid
	`, id)
	if err != nil {
		return nil, fmt.Errorf("querying run images: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var t pv.ImageGroundTruth
		var p pv.ImagePrediction
		if err := rows.Scan(&t.ImageID, &t.HasPV, &t.Area, &p.HasPV, &p.Area, &p.NumDetections, &p.MaxConfidence); err != nil {
			return nil, fmt.Errorf("scanning run image: %w", err)
		}
		p.ImageID = t.ImageID
		r.Images = append(r.Images, pv.ImageResult{Truth: t, Prediction: p})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating run images: %w", err)
	}
	return r, nil
}

// ListRuns returns up to limit runs, newest first, without images. A limit
// of zero or less returns every run.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
