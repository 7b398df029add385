package calib

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrInvalidKey is returned for storage keys that cannot name a record.
var ErrInvalidKey = errors.New("invalid storage key")

// ErrUnsupportedDriver is returned by OpenStore for unknown backends.
var ErrUnsupportedDriver = errors.New("unsupported store driver")

// Store persists points under caller-supplied keys.
type Store interface {
	// Load returns the stored points. found is false when nothing is stored under key.
	Load(ctx context.Context, key string) (p Points, found bool, err error)
	Save(ctx context.Context, key string, p Points) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// OpenStore opens the backend named by driver: "file", "sqlite" or "postgres".
func OpenStore(driver, dataDir, dsn string) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "file":
		return NewFileStore(filepath.Join(dataDir, "points")), nil
	case "sqlite":
		if dsn == "" {
			if err := os.MkdirAll(dataDir, 0o755); err != nil {
				return nil, err
			}
			dsn = filepath.Join(dataDir, "quadpin.sqlite")
		}
		return OpenSQLStore(DialectSQLite, dsn)
	case "postgres", "pgx":
		if dsn == "" {
			return nil, errors.New("postgres store requires STORE_DSN")
		}
		return OpenSQLStore(DialectPostgres, dsn)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}
}

// ValidateKey rejects keys that are empty or would escape the store directory.
func ValidateKey(key string) error {
	if strings.TrimSpace(key) == "" || strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

// FileStore keeps one JSON document per key inside a directory.
type FileStore struct {
	dir string
}

// NewFileStore returns a store rooted at dir. The directory is created on first save.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Dir returns the directory holding the documents.
func (s *FileStore) Dir() string {
	return s.dir
}

// Path returns the file backing key.
func (s *FileStore) Path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

// Load reads points from disk. Missing files report found=false without error.
func (s *FileStore) Load(_ context.Context, key string) (Points, bool, error) {
	if err := ValidateKey(key); err != nil {
		return Points{}, false, err
	}
	data, err := os.ReadFile(s.Path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Points{}, false, nil
		}
		return Points{}, false, err
	}
	p, err := Decode(data)
	if err != nil {
		return Points{}, false, fmt.Errorf("load %s: %w", key, err)
	}
	return p, true, nil
}

// Save writes points to disk, creating parent directories as needed.
func (s *FileStore) Save(_ context.Context, key string, p Points) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	data, err := Encode(p)
	if err != nil {
		return err
	}
	// Write-then-rename so watchers never observe a half-written document.
	tmp := s.Path(key) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.Path(key))
}

// Delete removes the document for key. Missing documents are not an error.
func (s *FileStore) Delete(_ context.Context, key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if err := os.Remove(s.Path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Close is a no-op for the file store.
func (s *FileStore) Close() error {
	return nil
}
