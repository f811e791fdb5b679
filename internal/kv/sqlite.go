// Package kv provides the ordered key-value substrate shared by all stores.
package kv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Pair is one key/value row.
type Pair struct {
	Key   string
	Value []byte
}

// ScanParams selects a key range by prefix.
type ScanParams struct {
	Prefix  string
	From    string // inclusive lower bound within the prefix, optional
	To      string // exclusive upper bound within the prefix, optional
	Limit   int    // 0 means unlimited
	Reverse bool
}

// Substrate is the storage contract the stores are written against: ordered
// keys, single-key atomic upserts and prefix range scans.
type Substrate interface {
	Put(ctx context.Context, key string, value []byte) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Scan(ctx context.Context, p ScanParams) ([]Pair, error)
	Count(ctx context.Context, prefix string) (int, error)
}

// SQLiteStore implements Substrate on a single SQLite table.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore opens or creates a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	memory := dbPath == ":memory:"
	if !memory {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if memory {
		// every pooled connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}

	s := &SQLiteStore{db: db, path: dbPath}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS kv (
		key        TEXT PRIMARY KEY,
		value      BLOB NOT NULL,
		updated_at TEXT NOT NULL
	) WITHOUT ROWID;
	`)
	return err
}

// Path returns the database location.
func (s *SQLiteStore) Path() string { return s.path }

func (s *SQLiteStore) Put(ctx context.Context, key string, value []byte) error {
	if key == "" {
		return errors.New("empty key")
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, now)
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var v []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s: %w", key, err)
	}
	return v, true, nil
}

func (s *SQLiteStore) Scan(ctx context.Context, p ScanParams) ([]Pair, error) {
	where := []string{"key >= ?"}
	lower := p.Prefix
	if p.From != "" && p.From > lower {
		lower = p.From
	}
	args := []interface{}{lower}
	end, ok := PrefixEnd(p.Prefix)
	if p.To != "" && (!ok || p.To < end) {
		end, ok = p.To, true
	}
	if ok {
		where = append(where, "key < ?")
		args = append(args, end)
	}

	order := "ASC"
	if p.Reverse {
		order = "DESC"
	}
	query := fmt.Sprintf(`SELECT key, value FROM kv WHERE %s ORDER BY key %s`, strings.Join(where, " AND "), order)
	if p.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, p.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", p.Prefix, err)
	}
	defer rows.Close()

	var pairs []Pair
	for rows.Next() {
		var kv Pair
		if err := rows.Scan(&kv.Key, &kv.Value); err != nil {
			return nil, err
		}
		pairs = append(pairs, kv)
	}
	return pairs, rows.Err()
}

func (s *SQLiteStore) Count(ctx context.Context, prefix string) (int, error) {
	query := `SELECT COUNT(*) FROM kv WHERE key >= ?`
	args := []interface{}{prefix}
	if end, ok := PrefixEnd(prefix); ok {
		query += ` AND key < ?`
		args = append(args, end)
	}
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", prefix, err)
	}
	return n, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// PrefixEnd returns the smallest key greater than every key with the given
// prefix. ok is false when no such bound exists (empty or all-0xff prefix).
func PrefixEnd(prefix string) (string, bool) {
	b := []byte(prefix)
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] < 0xff {
			b[i]++
			return string(b[:i+1]), true
		}
	}
	return "", false
}
