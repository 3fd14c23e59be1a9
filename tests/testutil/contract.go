// Package testutil provides helpers shared by the acctexport test suites.
package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/acctexport/pkg/provider"
)

// StoreTestCase describes a secret store under contract test.
type StoreTestCase struct {
	Provider provider.Provider

	// Present maps keys the backend holds to their expected values.
	Present map[string]string

	// MissingKey is a well-formed key the backend does not hold.
	MissingKey string
}

// RunStoreContractTests checks the behavior every secret store shares:
// stable names, resolving known keys, NotFoundError for unknown keys, and
// Describe reporting existence without failing.
func RunStoreContractTests(t *testing.T, tc StoreTestCase) {
	t.Helper()
	require.NotNil(t, tc.Provider)
	require.NotEmpty(t, tc.Present, "contract needs at least one present key")

	ctx := context.Background()
	name := tc.Provider.Name()

	t.Run("Name", func(t *testing.T) {
		assert.NotEmpty(t, name)
		assert.Equal(t, name, tc.Provider.Name())
	})

	t.Run("Resolve", func(t *testing.T) {
		for key, want := range tc.Present {
			got, err := tc.Provider.Resolve(ctx, provider.Reference{Provider: name, Key: key})
			require.NoError(t, err, "key %s", key)
			assert.Equal(t, want, got.Value, "key %s", key)
		}
	})

	t.Run("ResolveNotFound", func(t *testing.T) {
		_, err := tc.Provider.Resolve(ctx, provider.Reference{Provider: name, Key: tc.MissingKey})
		var nf *provider.NotFoundError
		require.ErrorAs(t, err, &nf)
		assert.Equal(t, name, nf.Provider)
	})

	t.Run("Describe", func(t *testing.T) {
		for key := range tc.Present {
			meta, err := tc.Provider.Describe(ctx, provider.Reference{Provider: name, Key: key})
			require.NoError(t, err, "key %s", key)
			assert.True(t, meta.Exists, "key %s", key)
		}
		meta, err := tc.Provider.Describe(ctx, provider.Reference{Provider: name, Key: tc.MissingKey})
		require.NoError(t, err)
		assert.False(t, meta.Exists)
	})
}
