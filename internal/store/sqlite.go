package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS kv (
	k TEXT PRIMARY KEY,
	v BLOB NOT NULL,
	expires_at INTEGER
);
CREATE INDEX IF NOT EXISTS idx_kv_expires_at ON kv(expires_at);
`

// SQLiteStore keeps keys in a single SQLite file.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens (or creates) the database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one writer; transactions below rely on it
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

func (s *SQLiteStore) expiry(ttl time.Duration) any {
	if ttl <= 0 {
		return nil
	}
	return s.now().Add(ttl).UnixMilli()
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLiteStore) get(ctx context.Context, q queryer, key string) ([]byte, sql.NullInt64, error) {
	var (
		v   []byte
		exp sql.NullInt64
	)
	err := q.QueryRowContext(ctx,
		`SELECT v, expires_at FROM kv WHERE k = ? AND (expires_at IS NULL OR expires_at > ?)`,
		key, s.now().UnixMilli()).Scan(&v, &exp)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, exp, ErrNotFound
	}
	if err != nil {
		return nil, exp, fmt.Errorf("sqlite get %s: %w", key, err)
	}
	return v, exp, nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, error) {
	v, _, err := s.get(ctx, s.db, key)
	return v, err
}

func (s *SQLiteStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO kv (k, v, expires_at) VALUES (?, ?, ?)`,
		key, value, s.expiry(ttl))
	if err != nil {
		return fmt.Errorf("sqlite set %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE k = ?`, key); err != nil {
		return fmt.Errorf("sqlite delete %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (s *SQLiteStore) Incr(ctx context.Context, key string) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var n int64
	v, exp, err := s.get(ctx, tx, key)
	switch {
	case errors.Is(err, ErrNotFound):
		exp = sql.NullInt64{}
	case err != nil:
		return 0, err
	default:
		n, err = strconv.ParseInt(string(v), 10, 64)
		if err != nil {
			return 0, &CounterError{Key: key, Err: err}
		}
	}
	n++

	var expArg any
	if exp.Valid {
		expArg = exp.Int64
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO kv (k, v, expires_at) VALUES (?, ?, ?)`,
		key, []byte(strconv.FormatInt(n, 10)), expArg); err != nil {
		return 0, fmt.Errorf("sqlite incr %s: %w", key, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *SQLiteStore) Take(ctx context.Context, key string) ([]byte, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	v, _, err := s.get(ctx, tx, key)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM kv WHERE k = ?`, key); err != nil {
		return nil, fmt.Errorf("sqlite take %s: %w", key, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return v, nil
}

// Sweep deletes expired rows.
func (s *SQLiteStore) Sweep(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM kv WHERE expires_at IS NOT NULL AND expires_at <= ?`, s.now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("sqlite sweep: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
