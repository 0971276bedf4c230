package storage

import (
	"context"
	"time"
)

// KeyValueStore is the byte-level cache used by JSONCache. *DB implements it.
type KeyValueStore interface {
	Get(ctx context.Context, namespace, key string) ([]byte, bool, error)
	Put(ctx context.Context, namespace, key string, value []byte, ttl time.Duration) error
}

var _ KeyValueStore = (*DB)(nil)
