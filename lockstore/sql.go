package lockstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/soroosh-tanzadeh/bgqueue/contracts"
)

const lockTableSQL = `CREATE TABLE IF NOT EXISTS queue_locks (
    name TEXT PRIMARY KEY,
    token TEXT NOT NULL,
    expires_at INTEGER NOT NULL
)`

// SQLLockStore keeps locks as rows of a queue_locks table. Acquisition is a
// single conditional upsert, so it is atomic without a transaction.
type SQLLockStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLLockStore(ctx context.Context, db *sql.DB, options ...Option) (*SQLLockStore, error) {
	if _, err := db.ExecContext(ctx, lockTableSQL); err != nil {
		return nil, fmt.Errorf("create lock table: %w", err)
	}
	return &SQLLockStore{db: db, now: newSettings(options).now}, nil
}

func (s *SQLLockStore) TryAcquire(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	now := s.now()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO queue_locks (name, token, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT (name) DO UPDATE SET token = excluded.token, expires_at = excluded.expires_at
		 WHERE queue_locks.expires_at <= ? OR queue_locks.token = excluded.token`,
		key, token, now.Add(ttl).UnixMilli(), now.UnixMilli(),
	)
	if err != nil {
		return false, fmt.Errorf("acquire lock: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("acquire lock: %w", err)
	}
	return affected == 1, nil
}

func (s *SQLLockStore) Read(ctx context.Context, key string) (string, error) {
	var token string
	err := s.db.QueryRowContext(ctx,
		"SELECT token FROM queue_locks WHERE name = ? AND expires_at > ?",
		key, s.now().UnixMilli(),
	).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read lock: %w", err)
	}
	return token, nil
}

func (s *SQLLockStore) Release(ctx context.Context, key, token string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM queue_locks WHERE name = ? AND token = ?", key, token); err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}

var _ contracts.LockStore = (*SQLLockStore)(nil)
