package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/julianstephens/affirm/internal/logger"
	"github.com/julianstephens/affirm/internal/migration"
	"github.com/julianstephens/affirm/internal/models"
	"github.com/julianstephens/affirm/migrations"
)

// ErrSnapshotNotFound is returned when an entry is written to a snapshot that does not exist.
var ErrSnapshotNotFound = errors.New("snapshot not found")

type SQLiteStore struct {
	path string
	db   *sql.DB
}

func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{
		path: path,
	}
}

func (s *SQLiteStore) open() error {
	db, err := sql.Open("sqlite", "file:"+s.path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	s.db = db
	return nil
}

func (s *SQLiteStore) Init() error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if s.db == nil {
		if err := s.open(); err != nil {
			return err
		}
	}

	subFS, err := fs.Sub(migrations.FS, "sqlite")
	if err != nil {
		return fmt.Errorf("failed to access sqlite migrations: %w", err)
	}
	if _, err := migration.NewRunner(s.db, subFS).Apply(func(msg string) {
		logger.Info(msg)
	}); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

func (s *SQLiteStore) Load() error {
	if s.db != nil {
		return nil
	}

	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		return fmt.Errorf("storage not initialized, run 'affirm init' first")
	}

	if err := s.open(); err != nil {
		return err
	}

	subFS, err := fs.Sub(migrations.FS, "sqlite")
	if err != nil {
		return fmt.Errorf("failed to access sqlite migrations: %w", err)
	}
	runner := migration.NewRunner(s.db, subFS)
	if err := runner.Validate(); err != nil {
		return err
	}
	// Pick up migrations added since the database was created.
	if _, err := runner.Apply(func(msg string) { logger.Info(msg) }); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		return err
	}
	return nil
}

func (s *SQLiteStore) GetConfigPath() string {
	return s.path
}

func (s *SQLiteStore) GetRecord(key string) ([]byte, bool, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM preferences WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get record %s: %w", key, err)
	}
	return []byte(value), true, nil
}

func (s *SQLiteStore) PutRecord(key string, value []byte) error {
	_, err := s.db.Exec(
		"INSERT OR REPLACE INTO preferences (key, value, updated_at) VALUES (?, ?, ?)",
		key, string(value), time.Now().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save record %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) DeleteRecord(key string) error {
	if _, err := s.db.Exec("DELETE FROM preferences WHERE key = ?", key); err != nil {
		return fmt.Errorf("failed to delete record %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) SnapshotNames(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name FROM cache_snapshots ORDER BY created_at, name")
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshots: %w", err)
	}
	return names, nil
}

func (s *SQLiteStore) PutSnapshot(ctx context.Context, name string, entries []models.CachedResponse) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM cache_entries WHERE snapshot = ?", name); err != nil {
		return fmt.Errorf("failed to clear snapshot %s: %w", name, err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT OR REPLACE INTO cache_snapshots (name, created_at) VALUES (?, ?)",
		name, time.Now().Format(time.RFC3339Nano),
	); err != nil {
		return fmt.Errorf("failed to create snapshot %s: %w", name, err)
	}
	for _, entry := range entries {
		if err := insertEntry(ctx, tx, name, entry); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) PutEntry(ctx context.Context, name string, entry models.CachedResponse) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var count int
	if err := tx.QueryRowContext(ctx, "SELECT count(*) FROM cache_snapshots WHERE name = ?", name).Scan(&count); err != nil {
		return fmt.Errorf("failed to look up snapshot %s: %w", name, err)
	}
	if count == 0 {
		return fmt.Errorf("%w: %s", ErrSnapshotNotFound, name)
	}
	if err := insertEntry(ctx, tx, name, entry); err != nil {
		return err
	}
	return tx.Commit()
}

func insertEntry(ctx context.Context, tx *sql.Tx, name string, entry models.CachedResponse) error {
	header, err := json.Marshal(entry.Header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}
	storedAt := entry.StoredAt
	if storedAt.IsZero() {
		storedAt = time.Now()
	}
	body := entry.Body
	if body == nil {
		body = []byte{}
	}
	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO cache_entries (snapshot, request_key, status, header, body, stored_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, name, entry.Key, entry.Status, string(header), body, storedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to insert cache entry %s: %w", entry.Key, err)
	}
	return nil
}

func (s *SQLiteStore) GetEntry(ctx context.Context, name, key string) (models.CachedResponse, bool, error) {
	var (
		entry       models.CachedResponse
		headerJSON  string
		storedAtStr string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT request_key, status, header, body, stored_at
		FROM cache_entries
		WHERE snapshot = ? AND request_key = ?
	`, name, key).Scan(&entry.Key, &entry.Status, &headerJSON, &entry.Body, &storedAtStr)
	if errors.Is(err, sql.ErrNoRows) {
		return models.CachedResponse{}, false, nil
	}
	if err != nil {
		return models.CachedResponse{}, false, fmt.Errorf("failed to get cache entry: %w", err)
	}

	entry.Header = http.Header{}
	if err := json.Unmarshal([]byte(headerJSON), &entry.Header); err != nil {
		return models.CachedResponse{}, false, fmt.Errorf("failed to unmarshal header: %w", err)
	}
	if t, err := time.Parse(time.RFC3339, storedAtStr); err == nil {
		entry.StoredAt = t
	}
	return entry, true, nil
}

func (s *SQLiteStore) DeleteSnapshot(ctx context.Context, name string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM cache_entries WHERE snapshot = ?", name); err != nil {
		return fmt.Errorf("failed to delete entries of %s: %w", name, err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM cache_snapshots WHERE name = ?", name); err != nil {
		return fmt.Errorf("failed to delete snapshot %s: %w", name, err)
	}
	return tx.Commit()
}

// SchemaVersion reports the applied schema version and the newest version this build ships.
func (s *SQLiteStore) SchemaVersion() (current, latest int, err error) {
	if s.db == nil {
		return 0, 0, fmt.Errorf("database not open")
	}
	subFS, err := fs.Sub(migrations.FS, "sqlite")
	if err != nil {
		return 0, 0, fmt.Errorf("failed to access sqlite migrations: %w", err)
	}
	runner := migration.NewRunner(s.db, subFS)
	if current, err = runner.CurrentVersion(); err != nil {
		return 0, 0, err
	}
	all, err := runner.Migrations()
	if err != nil {
		return 0, 0, err
	}
	if len(all) > 0 {
		latest = all[len(all)-1].Version
	}
	return current, latest, nil
}
