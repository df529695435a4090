package credentials

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dvcrn/kitsune-oauth/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRegistrar struct {
	calls atomic.Int32
	app   *ClientApplication
	err   error
	delay time.Duration

	gotName        string
	gotRedirectURI string
}

func (s *stubRegistrar) Register(_ context.Context, name, redirectURI string) (*ClientApplication, error) {
	s.calls.Add(1)
	s.gotName = name
	s.gotRedirectURI = redirectURI
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	return s.app, s.err
}

// ctxRegistrar fails with the context error if ctx ends before it answers.
type ctxRegistrar struct {
	app   *ClientApplication
	delay time.Duration
}

func (c *ctxRegistrar) Register(ctx context.Context, _, _ string) (*ClientApplication, error) {
	select {
	case <-time.After(c.delay):
		return c.app, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func registeredApp() *ClientApplication {
	return &ClientApplication{ID: "client-1", Secret: "s3cret", RedirectURI: "http://localhost:9879/oauth-callback"}
}

func TestStoreLoadRegistersWhenEmpty(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemory()
	reg := &stubRegistrar{app: registeredApp()}
	store := NewStore(mem, reg, "", "http://localhost:9879/", nil)

	app, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, registeredApp(), app)
	assert.EqualValues(t, 1, reg.calls.Load())
	assert.Equal(t, DefaultApplicationName, reg.gotName)
	assert.Equal(t, "http://localhost:9879/oauth-callback", reg.gotRedirectURI)

	raw, err := mem.Get(ctx, StorageKey)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"client-1","secret":"s3cret","redirectUri":"http://localhost:9879/oauth-callback"}`, string(raw))

	again, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, app, again)
	assert.EqualValues(t, 1, reg.calls.Load(), "cached application must be reused")
}

func TestStoreLoadReregistersOnCorruptedCache(t *testing.T) {
	cases := map[string]string{
		"not json":          `{{{`,
		"empty secret":      `{"id":"x","secret":"","redirectUri":"http://a/oauth-callback"}`,
		"relative redirect": `{"id":"x","secret":"y","redirectUri":"/oauth-callback"}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			mem := storage.NewMemory()
			require.NoError(t, mem.Set(ctx, StorageKey, []byte(raw)))
			reg := &stubRegistrar{app: registeredApp()}

			app, err := NewStore(mem, reg, "Test", "http://localhost:9879", nil).Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, "client-1", app.ID)
			assert.EqualValues(t, 1, reg.calls.Load())
		})
	}
}

func TestStoreLoadRegistrationFailure(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemory()

	t.Run("registrar error", func(t *testing.T) {
		reg := &stubRegistrar{err: errors.New("dial tcp: refused")}
		_, err := NewStore(mem, reg, "", "http://localhost", nil).Load(ctx)

		var regErr *RegistrationError
		require.ErrorAs(t, err, &regErr)
		assert.Contains(t, err.Error(), "refused")
	})

	t.Run("no data", func(t *testing.T) {
		reg := &stubRegistrar{}
		_, err := NewStore(mem, reg, "", "http://localhost", nil).Load(ctx)

		var regErr *RegistrationError
		require.ErrorAs(t, err, &regErr)
	})

	_, err := mem.Get(ctx, StorageKey)
	assert.ErrorIs(t, err, storage.ErrNotFound, "nothing is persisted on failure")
}

func TestStoreLoadSharesConcurrentRegistration(t *testing.T) {
	reg := &stubRegistrar{app: registeredApp(), delay: 50 * time.Millisecond}
	store := NewStore(storage.NewMemory(), reg, "", "http://localhost:9879", nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app, err := store.Load(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, "client-1", app.ID)
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, reg.calls.Load())
}

func TestStoreForget(t *testing.T) {
	ctx := context.Background()
	reg := &stubRegistrar{app: registeredApp()}
	store := NewStore(storage.NewMemory(), reg, "", "http://localhost:9879", nil)

	_, err := store.Load(ctx)
	require.NoError(t, err)
	require.NoError(t, store.Forget(ctx))

	cached, err := store.Cached(ctx)
	require.NoError(t, err)
	assert.Nil(t, cached)

	_, err = store.Load(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, reg.calls.Load())
}

func TestStoreLoadRegistrationSurvivesCallerCancellation(t *testing.T) {
	mem := storage.NewMemory()
	store := NewStore(mem, &ctxRegistrar{app: registeredApp(), delay: 100 * time.Millisecond}, "", "http://localhost:9879", nil)

	first, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = store.Load(first)
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	app, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, registeredApp(), app)
	wg.Wait()

	cached, err := store.Cached(context.Background())
	require.NoError(t, err)
	assert.Equal(t, registeredApp(), cached)
}
