// Package upload walks a directory of ride log exports and sends them to a
// VeloPlan server, tracking what was already sent.
package upload

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// StateDB tracks which export files have been successfully uploaded to avoid
// re-sending. A file re-uploads when its size or content hash changes, which
// happens when a ride log export is appended to.
type StateDB struct {
	db *sql.DB
}

// OpenStateDB opens (or creates) the SQLite state database at dir/state.db.
func OpenStateDB(dir string) (*StateDB, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating state dir %s: %w", dir, err)
	}

	dbPath := filepath.Join(dir, "state.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening state db: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS uploaded_exports (
		path        TEXT PRIMARY KEY,
		size        INTEGER NOT NULL,
		hash        TEXT NOT NULL,
		activities  INTEGER NOT NULL DEFAULT 0,
		uploaded_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating state table: %w", err)
	}

	return &StateDB{db: db}, nil
}

// IsUploaded checks if a file has already been uploaded with the same size
// and hash. The second return is how many activities it contributed.
func (s *StateDB) IsUploaded(relPath string, size int64, hash string) (bool, int, error) {
	var activities int
	err := s.db.QueryRow(
		`SELECT activities FROM uploaded_exports WHERE path = ? AND size = ? AND hash = ?`,
		relPath, size, hash,
	).Scan(&activities)
	if err == sql.ErrNoRows {
		return false, 0, nil
	}
	if err != nil {
		return false, 0, err
	}
	return true, activities, nil
}

// MarkUploaded records that a file was successfully uploaded.
func (s *StateDB) MarkUploaded(relPath string, size int64, hash string, activities int) error {
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO uploaded_exports (path, size, hash, activities) VALUES (?, ?, ?, ?)`,
		relPath, size, hash, activities,
	)
	return err
}

// Close closes the state database.
func (s *StateDB) Close() error {
	return s.db.Close()
}

// HashFile computes the SHA-256 hash of a file.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
