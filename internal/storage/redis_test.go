//go:build !js || !wasm

package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRedis struct {
	values map[string]string
	err    error
	sets   []time.Duration
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{values: make(map[string]string)}
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	if f.err != nil {
		return redis.NewStringResult("", f.err)
	}
	v, ok := f.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	if f.err != nil {
		return redis.NewStatusResult("", f.err)
	}
	f.values[key] = string(value.([]byte))
	f.sets = append(f.sets, expiration)
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}
	var n int64
	for _, k := range keys {
		if _, ok := f.values[k]; ok {
			delete(f.values, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func TestRedisStorage(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	store := NewRedis(fake, "")

	_, err := store.Get(ctx, "oauth_app")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Set(ctx, "oauth_app", []byte(`{"id":"1"}`)))
	assert.Equal(t, `{"id":"1"}`, fake.values["kitsune-oauth:oauth_app"])
	assert.Equal(t, []time.Duration{0}, fake.sets, "entries must not expire")

	got, err := store.Get(ctx, "oauth_app")
	require.NoError(t, err)
	assert.Equal(t, `{"id":"1"}`, string(got))

	require.NoError(t, store.Delete(ctx, "oauth_app"))
	require.NoError(t, store.Delete(ctx, "oauth_app"))
	_, err = store.Get(ctx, "oauth_app")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStorageBackendError(t *testing.T) {
	fake := newFakeRedis()
	fake.err = errors.New("connection refused")
	store := NewRedis(fake, "custom:")

	_, err := store.Get(context.Background(), "oauth_token")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "connection refused")
}
