package storage

import (
	"context"
	"errors"
)

const (
	// DefaultRedisPrefix namespaces keys when several deployments share a database
	DefaultRedisPrefix = "kitsune-oauth:"
	// DefaultKVBinding is the KV namespace binding configured in wrangler.toml
	DefaultKVBinding = "kitsune_oauth_kv"
)

var (
	// ErrNotFound is returned by Get when the key has never been written or was deleted
	ErrNotFound = errors.New("storage: key not found")
	// ErrCorrupted marks persisted data that no longer decodes into a valid record
	ErrCorrupted = errors.New("storage: corrupted entry")
)

// Storage is the persistent key/value space that holds the client application
// and the current token pair. Writes are single-shot and last-write-wins.
type Storage interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// Watcher is implemented by backends that can observe writes made by other
// processes. fn is called after every change to key until ctx is done.
type Watcher interface {
	Watch(ctx context.Context, key string, fn func()) error
}
