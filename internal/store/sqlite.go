package store

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Entry is the metadata row for one cached asset.
type Entry struct {
	AssetID    int64
	Size       int64
	CreatedAt  time.Time
	LastAccess time.Time
}

const schema = `
CREATE TABLE IF NOT EXISTS cache_entries (
    asset_id INTEGER PRIMARY KEY,
    size INTEGER NOT NULL,
    created_at TIMESTAMP NOT NULL,
    last_access TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_cache_entries_last_access ON cache_entries(last_access);
`

// SQLiteStore persists asset cache metadata so size accounting and LRU order
// survive restarts.
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLiteStore opens (or creates) the metadata database inside dataPath.
func NewSQLiteStore(dataPath string, logger *zap.Logger) (*SQLiteStore, error) {
	dbPath := filepath.Join(dataPath, "hangar.db")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db, logger: logger}, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Put records a freshly stored asset, replacing any previous row.
func (s *SQLiteStore) Put(assetID, size int64) error {
	now := time.Now()
	query := `
		INSERT INTO cache_entries (asset_id, size, created_at, last_access)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(asset_id) DO UPDATE SET
			size = excluded.size,
			created_at = excluded.created_at,
			last_access = excluded.last_access
	`
	if _, err := s.db.Exec(query, assetID, size, now, now); err != nil {
		return fmt.Errorf("failed to record cache entry: %w", err)
	}
	return nil
}

// Touch bumps the entry's last-access time for LRU ordering.
func (s *SQLiteStore) Touch(assetID int64) error {
	query := `UPDATE cache_entries SET last_access = ? WHERE asset_id = ?`
	if _, err := s.db.Exec(query, time.Now(), assetID); err != nil {
		return fmt.Errorf("failed to touch cache entry: %w", err)
	}
	return nil
}

// Get returns the entry for an asset id, or (nil, nil) when absent.
func (s *SQLiteStore) Get(assetID int64) (*Entry, error) {
	query := `SELECT asset_id, size, created_at, last_access FROM cache_entries WHERE asset_id = ?`
	entry := &Entry{}
	err := s.db.QueryRow(query, assetID).Scan(
		&entry.AssetID,
		&entry.Size,
		&entry.CreatedAt,
		&entry.LastAccess,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cache entry: %w", err)
	}
	return entry, nil
}

// List returns all entries ordered least-recently-used first.
func (s *SQLiteStore) List() ([]*Entry, error) {
	query := `SELECT asset_id, size, created_at, last_access FROM cache_entries ORDER BY last_access ASC`
	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query cache entries: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		entry := &Entry{}
		err := rows.Scan(
			&entry.AssetID,
			&entry.Size,
			&entry.CreatedAt,
			&entry.LastAccess,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cache entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Delete removes the entry for an asset id.
func (s *SQLiteStore) Delete(assetID int64) error {
	query := `DELETE FROM cache_entries WHERE asset_id = ?`
	if _, err := s.db.Exec(query, assetID); err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}

// TotalSize returns the sum of all recorded entry sizes.
func (s *SQLiteStore) TotalSize() (int64, error) {
	query := `SELECT COALESCE(SUM(size), 0) FROM cache_entries`
	var total int64
	if err := s.db.QueryRow(query).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to sum cache sizes: %w", err)
	}
	return total, nil
}
