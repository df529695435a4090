package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSecurity mimics the subset of `security` behaviour Keychain relies on.
func fakeSecurity(items map[string]string, calls *[][]string) runner {
	return func(_ context.Context, args ...string) ([]byte, error) {
		*calls = append(*calls, args)
		account := ""
		for i := 0; i < len(args)-1; i++ {
			if args[i] == "-a" {
				account = args[i+1]
			}
		}
		switch args[0] {
		case "find-generic-password":
			v, ok := items[account]
			if !ok {
				return nil, ErrNotFound
			}
			return []byte(v + "\n"), nil
		case "add-generic-password":
			for i := 0; i < len(args)-1; i++ {
				if args[i] == "-w" {
					items[account] = args[i+1]
				}
			}
			return nil, nil
		case "delete-generic-password":
			if _, ok := items[account]; !ok {
				return nil, ErrNotFound
			}
			delete(items, account)
			return nil, nil
		}
		return nil, nil
	}
}

func TestKeychainStorage(t *testing.T) {
	ctx := context.Background()
	items := map[string]string{}
	var calls [][]string

	k := NewKeychain("")
	k.run = fakeSecurity(items, &calls)

	_, err := k.Get(ctx, "oauth_app")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, k.Set(ctx, "oauth_app", []byte(`{"id":"1"}`)))
	got, err := k.Get(ctx, "oauth_app")
	require.NoError(t, err)
	assert.Equal(t, `{"id":"1"}`, string(got))

	require.NoError(t, k.Delete(ctx, "oauth_app"))
	require.NoError(t, k.Delete(ctx, "oauth_app"))

	for _, c := range calls {
		assert.Contains(t, c, DefaultKeychainService)
	}
}
