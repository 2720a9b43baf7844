// Package storage provides SQLite implementation of the Storage interface.
package storage

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/kinorec/internal/models"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// OpenSQLiteReadOnly opens an existing catalog database without writing to it: no WAL
// switch, no schema creation. Writes through the returned storage fail.
func OpenSQLiteReadOnly(dbPath string) (*SQLiteStorage, error) {
	if _, err := os.Stat(dbPath); err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db, err := sql.Open("sqlite3", "file:"+dbPath+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS items (
		idx INTEGER PRIMARY KEY,
		movie_id INTEGER NOT NULL,
		title TEXT NOT NULL,
		external_id TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_items_title ON items(title);

	CREATE TABLE IF NOT EXISTS similarity (
		row_idx INTEGER PRIMARY KEY,
		scores BLOB NOT NULL
	);

	CREATE TABLE IF NOT EXISTS posters (
		external_id TEXT PRIMARY KEY,
		poster_url TEXT NOT NULL,
		fetched_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := db.Exec(schema)
	return err
}

// SaveCatalog replaces the stored catalog with items and rows in one transaction.
func (s *SQLiteStorage) SaveCatalog(ctx context.Context, items []models.Item, rows [][]float64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM items`); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM similarity`); err != nil {
		return err
	}

	itemStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO items (idx, movie_id, title, external_id) VALUES (?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer itemStmt.Close()
	for i, it := range items {
		if _, err := itemStmt.ExecContext(ctx, i, it.ID, it.Title, it.ExternalID); err != nil {
			return fmt.Errorf("insert item %d: %w", i, err)
		}
	}

	rowStmt, err := tx.PrepareContext(ctx, `INSERT INTO similarity (row_idx, scores) VALUES (?, ?)`)
	if err != nil {
		return err
	}
	defer rowStmt.Close()
	for i, row := range rows {
		if _, err := rowStmt.ExecContext(ctx, i, float64SliceToBytes(row)); err != nil {
			return fmt.Errorf("insert similarity row %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// LoadCatalog returns the stored items ordered by position and their similarity rows.
// A gap in the row sequence is returned as a nil row so that validation can report it.
func (s *SQLiteStorage) LoadCatalog(ctx context.Context) ([]models.Item, [][]float64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT idx, movie_id, title, external_id FROM items ORDER BY idx`,
	)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var items []models.Item
	for rows.Next() {
		var it models.Item
		if err := rows.Scan(&it.Index, &it.ID, &it.Title, &it.ExternalID); err != nil {
			return nil, nil, err
		}
		if it.Index != len(items) {
			return nil, nil, fmt.Errorf("items table is not contiguous at position %d", len(items))
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	simRows, err := s.db.QueryContext(ctx, `SELECT row_idx, scores FROM similarity ORDER BY row_idx`)
	if err != nil {
		return nil, nil, err
	}
	defer simRows.Close()

	matrix := make([][]float64, 0, len(items))
	for simRows.Next() {
		var idx int
		var blob []byte
		if err := simRows.Scan(&idx, &blob); err != nil {
			return nil, nil, err
		}
		if idx < len(matrix) {
			return nil, nil, fmt.Errorf("duplicate similarity row %d", idx)
		}
		for len(matrix) < idx {
			matrix = append(matrix, nil)
		}
		if len(blob)%8 != 0 {
			return nil, nil, fmt.Errorf("similarity row %d: blob length %d is not a multiple of 8", idx, len(blob))
		}
		matrix = append(matrix, bytesToFloat64Slice(blob))
	}
	return items, matrix, simRows.Err()
}

// CountItems returns the number of stored catalog items.
func (s *SQLiteStorage) CountItems(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM items`).Scan(&count)
	return count, err
}

// GetPoster returns the stored poster URL for externalID.
func (s *SQLiteStorage) GetPoster(ctx context.Context, externalID string) (string, bool, error) {
	var u string
	err := s.db.QueryRowContext(ctx,
		`SELECT poster_url FROM posters WHERE external_id = ?`, externalID,
	).Scan(&u)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return u, true, nil
}

// PutPoster stores or replaces the poster URL for externalID.
func (s *SQLiteStorage) PutPoster(ctx context.Context, externalID, posterURL string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO posters (external_id, poster_url, fetched_at) VALUES (?, ?, ?)
		 ON CONFLICT(external_id) DO UPDATE SET poster_url = excluded.poster_url, fetched_at = excluded.fetched_at`,
		externalID, posterURL, time.Now(),
	)
	return err
}

// CountPosters returns the number of cached poster URLs.
func (s *SQLiteStorage) CountPosters(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM posters`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func float64SliceToBytes(s []float64) []byte {
	const size = 8
	out := make([]byte, len(s)*size)
	for i, v := range s {
		binary.LittleEndian.PutUint64(out[i*size:(i+1)*size], math.Float64bits(v))
	}
	return out
}

func bytesToFloat64Slice(b []byte) []float64 {
	const size = 8
	out := make([]float64, len(b)/size)
	for i := range out {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[i*size : (i+1)*size]))
	}
	return out
}
