// Package backup keeps rotating copies of the local store next to it.
package backup

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/julianstephens/affirm/internal/constants"
	"github.com/julianstephens/affirm/internal/logger"
)

const (
	// MaxBackups is how many backups are kept after rotation.
	MaxBackups = 7
	DirName    = "backups"

	timestampFormat = "20060102-150405"
)

var ErrNotFound = errors.New("backup not found")

type Info struct {
	Path      string
	Timestamp time.Time
	Size      int64
}

// Manager creates, lists and restores backups of the store at dbPath. SQLite stores are
// copied with VACUUM INTO; any other file (the JSON store) is copied byte for byte.
type Manager struct {
	dbPath string
	dir    string
	ext    string
	now    func() time.Time
}

func NewManager(dbPath string) *Manager {
	ext := filepath.Ext(dbPath)
	if ext == "" {
		ext = ".db"
	}
	return &Manager{
		dbPath: dbPath,
		dir:    filepath.Join(filepath.Dir(dbPath), DirName),
		ext:    ext,
		now:    time.Now,
	}
}

func (m *Manager) Dir() string {
	return m.dir
}

func (m *Manager) isSQLite() bool {
	return !strings.EqualFold(m.ext, ".json")
}

func (m *Manager) prefix() string {
	return constants.AppName + "-"
}

// Create writes a new backup and rotates old ones.
func (m *Manager) Create() (string, error) {
	path, err := m.create()
	if err != nil {
		return "", err
	}
	if err := m.rotate(); err != nil {
		logger.Warn("Failed to rotate old backups", "error", err)
	}
	return path, nil
}

func (m *Manager) create() (string, error) {
	if _, err := os.Stat(m.dbPath); err != nil {
		return "", fmt.Errorf("store does not exist: %w", err)
	}
	if err := os.MkdirAll(m.dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	stamp := m.now().Format(timestampFormat)
	path := filepath.Join(m.dir, m.prefix()+stamp+m.ext)
	for n := 1; fileExists(path); n++ {
		if n > 100 {
			return "", fmt.Errorf("failed to generate unique backup filename")
		}
		path = filepath.Join(m.dir, fmt.Sprintf("%s%s-%d%s", m.prefix(), stamp, n, m.ext))
	}

	if !m.isSQLite() {
		return path, copyFile(m.dbPath, path)
	}

	db, err := sql.Open("sqlite", "file:"+m.dbPath+"?mode=ro")
	if err != nil {
		return "", fmt.Errorf("failed to open store: %w", err)
	}
	defer db.Close()
	if _, err := db.Exec("VACUUM INTO ?", path); err != nil {
		return "", fmt.Errorf("failed to back up store: %w", err)
	}
	return path, nil
}

// List returns the backups newest first.
func (m *Manager) List() ([]Info, error) {
	entries, err := os.ReadDir(m.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	var backups []Info
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, m.prefix()) || !strings.HasSuffix(name, m.ext) {
			continue
		}
		stamp := strings.TrimSuffix(strings.TrimPrefix(name, m.prefix()), m.ext)
		// Drop a -N collision counter.
		if len(stamp) > len(timestampFormat) {
			stamp = stamp[:len(timestampFormat)]
		}
		ts, err := time.ParseInLocation(timestampFormat, stamp, time.Local)
		if err != nil {
			continue
		}
		fi, err := entry.Info()
		if err != nil {
			continue
		}
		backups = append(backups, Info{Path: filepath.Join(m.dir, name), Timestamp: ts, Size: fi.Size()})
	}

	sort.SliceStable(backups, func(i, j int) bool {
		if backups[i].Timestamp.Equal(backups[j].Timestamp) {
			// A collision counter makes the name longer and the backup newer.
			a, b := backups[i].Path, backups[j].Path
			if len(a) != len(b) {
				return len(a) > len(b)
			}
			return a > b
		}
		return backups[i].Timestamp.After(backups[j].Timestamp)
	})
	return backups, nil
}

func (m *Manager) rotate() error {
	backups, err := m.List()
	if err != nil {
		return err
	}
	var errs []error
	for i := MaxBackups; i < len(backups); i++ {
		if err := os.Remove(backups[i].Path); err != nil {
			errs = append(errs, fmt.Errorf("failed to remove old backup %s: %w", backups[i].Path, err))
		}
	}
	return errors.Join(errs...)
}

// Resolve accepts a path or a bare backup file name.
func (m *Manager) Resolve(name string) (string, error) {
	if fileExists(name) {
		return name, nil
	}
	if p := filepath.Join(m.dir, filepath.Base(name)); fileExists(p) {
		return p, nil
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, name)
}

// Restore replaces the store with the backup at path. The current store is backed up first.
// The store must be closed by the caller.
func (m *Manager) Restore(path string) (string, error) {
	if m.isSQLite() {
		if err := verifySQLite(path); err != nil {
			return "", fmt.Errorf("backup file is corrupted or invalid: %w", err)
		}
	}

	var previous string
	if fileExists(m.dbPath) {
		p, err := m.create()
		if err != nil {
			return "", fmt.Errorf("failed to back up current store before restore: %w", err)
		}
		previous = p
	}

	tmp := m.dbPath + ".restore.tmp"
	if err := copyFile(path, tmp); err != nil {
		return previous, fmt.Errorf("failed to copy backup file: %w", err)
	}
	if err := os.Rename(tmp, m.dbPath); err != nil {
		os.Remove(tmp)
		return previous, fmt.Errorf("failed to restore store: %w", err)
	}
	logger.Info("Store restored", "from", path, "previous", previous)
	return previous, nil
}

func verifySQLite(path string) error {
	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return err
	}
	defer db.Close()
	var count int
	return db.QueryRow("SELECT COUNT(*) FROM sqlite_master").Scan(&count)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := out.ReadFrom(in); err != nil {
		return err
	}
	return out.Sync()
}
