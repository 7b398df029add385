package calib

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Dialect selects the SQL driver and placeholder style.
type Dialect string

const (
	// DialectSQLite uses modernc.org/sqlite with ? placeholders.
	DialectSQLite Dialect = "sqlite"
	// DialectPostgres uses the pgx stdlib driver with $n placeholders.
	DialectPostgres Dialect = "pgx"
)

// SQLStore keeps points documents in a single key/value table.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
}

// OpenSQLStore opens (or creates) the database and ensures the schema.
func OpenSQLStore(dialect Dialect, dsn string) (*SQLStore, error) {
	db, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect, err)
	}
	if dialect == DialectSQLite {
		// sqlite serializes writers; one connection avoids SQLITE_BUSY under concurrent saves.
		db.SetMaxOpenConns(1)
	}
	s := &SQLStore{db: db, dialect: dialect}
	if err := s.ensureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// ensureSchema creates the points table when missing.
func (s *SQLStore) ensureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS points (
            points_key TEXT PRIMARY KEY,
            value TEXT NOT NULL,
            updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        )`)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Load returns the points stored under key.
func (s *SQLStore) Load(ctx context.Context, key string) (Points, bool, error) {
	if err := ValidateKey(key); err != nil {
		return Points{}, false, err
	}
	var value string
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT value FROM points WHERE points_key = ?`), key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return Points{}, false, nil
	}
	if err != nil {
		return Points{}, false, err
	}
	p, err := Decode([]byte(value))
	if err != nil {
		return Points{}, false, fmt.Errorf("load %s: %w", key, err)
	}
	return p, true, nil
}

// Save upserts the points under key.
func (s *SQLStore) Save(ctx context.Context, key string, p Points) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	data, err := Encode(p)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, s.rebind(`INSERT INTO points (points_key, value, updated_at)
        VALUES (?, ?, CURRENT_TIMESTAMP)
        ON CONFLICT (points_key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`),
		key, string(data))
	return err
}

// Delete removes the points stored under key.
func (s *SQLStore) Delete(ctx context.Context, key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM points WHERE points_key = ?`), key)
	return err
}

// Close closes the underlying DB.
func (s *SQLStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// rebind rewrites ? placeholders into $n for postgres.
func (s *SQLStore) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
