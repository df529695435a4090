//go:build js && wasm

package storage

import (
	"context"
	"fmt"

	"github.com/syumai/workers/cloudflare/kv"
)

// CloudflareKV stores entries in a Workers KV namespace.
type CloudflareKV struct {
	kvStore *kv.Namespace
}

func NewCloudflareKV(binding string) (*CloudflareKV, error) {
	if binding == "" {
		binding = DefaultKVBinding
	}
	// In Cloudflare Workers, KV namespaces are accessed via bindings
	kvStore, err := kv.NewNamespace(binding)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize KV namespace: %w", err)
	}
	return &CloudflareKV{kvStore: kvStore}, nil
}

func (c *CloudflareKV) Get(_ context.Context, key string) ([]byte, error) {
	value, err := c.kvStore.GetString(key, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get %s from KV: %w", key, err)
	}
	if value == "" {
		return nil, ErrNotFound
	}
	return []byte(value), nil
}

func (c *CloudflareKV) Set(_ context.Context, key string, value []byte) error {
	if err := c.kvStore.PutString(key, string(value), nil); err != nil {
		return fmt.Errorf("failed to store %s in KV: %w", key, err)
	}
	return nil
}

func (c *CloudflareKV) Delete(_ context.Context, key string) error {
	if err := c.kvStore.Delete(key); err != nil {
		return fmt.Errorf("failed to delete %s from KV: %w", key, err)
	}
	return nil
}
