// Package metadata stores the client's persisted session keys in a local
// sqlite table (session_kv).
package metadata

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/dmitrijs2005/expertease/internal/dbx"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM session_kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get session_kv[%s]: %w", key, err)
	}
	return value, true, nil
}

// Put upserts all values in a single transaction. Keys are written in
// sorted order so the statement sequence is deterministic.
func (r *SQLiteRepository) Put(ctx context.Context, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}
	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		for _, key := range slices.Sorted(maps.Keys(values)) {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO session_kv (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
				ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
			`, key, values[key])
			if err != nil {
				return fmt.Errorf("failed to set session_kv[%s]: %w", key, err)
			}
		}
		return nil
	})
}

// Delete removes keys in a single transaction. Missing keys are not an error.
func (r *SQLiteRepository) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		for _, key := range keys {
			if _, err := tx.ExecContext(ctx, `DELETE FROM session_kv WHERE key = ?`, key); err != nil {
				return fmt.Errorf("failed to delete session_kv[%s]: %w", key, err)
			}
		}
		return nil
	})
}
