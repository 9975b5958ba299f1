package sqlitekv

import (
	"context"
	"database/sql"
	"time"

	interrors "github.com/jrsteele09/tramcan-session/internal/errors"
	"github.com/pkg/errors"

	_ "modernc.org/sqlite"
)

const schema = `CREATE TABLE IF NOT EXISTS kv (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at INTEGER NOT NULL
)`

// Store implements kvstore.Store on a single SQLite table. Each Set is a
// single UPSERT statement, atomic per key.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (or creates) the database at path. Use ":memory:" in tests.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "[sqlitekv.Open] open %s", path)
	}
	// :memory: databases are per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "[sqlitekv.Open] pragma wal")
	}
	if _, err := db.ExecContext(ctx, "PRAGMA synchronous=FULL"); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "[sqlitekv.Open] pragma synchronous")
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "[sqlitekv.Open] migrate")
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", interrors.ErrKeyNotFound
	}
	if err != nil {
		return "", errors.Wrap(err, "[sqlitekv.Get]")
	}
	return value, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, s.now().UnixMilli())
	if err != nil {
		return errors.Wrap(err, "[sqlitekv.Set]")
	}
	return nil
}

func (s *Store) Remove(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return errors.Wrap(err, "[sqlitekv.Remove]")
	}
	return nil
}

func (s *Store) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key FROM kv`)
	if err != nil {
		return nil, errors.Wrap(err, "[sqlitekv.Keys]")
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, errors.Wrap(err, "[sqlitekv.Keys] scan")
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}
