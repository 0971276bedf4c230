package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Put stores value under (namespace, key) for ttl, replacing any previous entry.
func (db *DB) Put(ctx context.Context, namespace, key string, value []byte, ttl time.Duration) error {
	now := db.now()
	query := `
	INSERT INTO cache_entries (namespace, key, value, cached_at, expires_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(namespace, key) DO UPDATE SET
		value = excluded.value,
		cached_at = excluded.cached_at,
		expires_at = excluded.expires_at
	`
	_, err := db.conn.ExecContext(ctx, query, namespace, key, value, now.UnixMilli(), now.Add(ttl).UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to store %s/%s: %w", namespace, key, err)
	}
	return nil
}

// Get returns the unexpired value under (namespace, key).
// A missing or expired entry is reported as ok == false with a nil error.
func (db *DB) Get(ctx context.Context, namespace, key string) (value []byte, ok bool, err error) {
	query := `SELECT value FROM cache_entries WHERE namespace = ? AND key = ? AND expires_at > ?`
	err = db.conn.QueryRowContext(ctx, query, namespace, key, db.now().UnixMilli()).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to load %s/%s: %w", namespace, key, err)
	}
	return value, true, nil
}

// Delete removes (namespace, key).
func (db *DB) Delete(ctx context.Context, namespace, key string) error {
	_, err := db.conn.ExecContext(ctx, `DELETE FROM cache_entries WHERE namespace = ? AND key = ?`, namespace, key)
	if err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", namespace, key, err)
	}
	return nil
}

// DeleteExpired removes every expired entry and returns how many were removed.
func (db *DB) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM cache_entries WHERE expires_at <= ?`, db.now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired entries: %w", err)
	}
	return res.RowsAffected()
}

// Count returns the number of stored entries in namespace, expired ones included.
func (db *DB) Count(ctx context.Context, namespace string) (int, error) {
	var n int
	err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM cache_entries WHERE namespace = ?`, namespace).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count %s entries: %w", namespace, err)
	}
	return n, nil
}

// JSONCache stores values of type T as JSON in one namespace with a fixed TTL.
type JSONCache[T any] struct {
	store     KeyValueStore
	namespace string
	ttl       time.Duration
}

// NewJSONCache creates a JSONCache over store.
func NewJSONCache[T any](store KeyValueStore, namespace string, ttl time.Duration) *JSONCache[T] {
	return &JSONCache[T]{store: store, namespace: namespace, ttl: ttl}
}

// Get loads key. ok is false on a miss or an expired entry.
func (c *JSONCache[T]) Get(ctx context.Context, key string) (v T, ok bool, err error) {
	data, ok, err := c.store.Get(ctx, c.namespace, key)
	if err != nil || !ok {
		return v, false, err
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, false, fmt.Errorf("failed to decode cached %s/%s: %w", c.namespace, key, err)
	}
	return v, true, nil
}

// Put stores v under key.
func (c *JSONCache[T]) Put(ctx context.Context, key string, v T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s/%s: %w", c.namespace, key, err)
	}
	return c.store.Put(ctx, c.namespace, key, data, c.ttl)
}
