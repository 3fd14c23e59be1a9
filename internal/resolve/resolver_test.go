package resolve_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dserrors "github.com/systmms/acctexport/internal/errors"
	"github.com/systmms/acctexport/internal/resolve"
	"github.com/systmms/acctexport/pkg/provider"
	"github.com/systmms/acctexport/tests/fakes"
	"github.com/systmms/acctexport/tests/testutil"
)

func newResolver(t *testing.T, stores ...*fakes.FakeProvider) (*resolve.Resolver, *testutil.TestLogger) {
	t.Helper()
	logger := testutil.NewTestLoggerWithDebug(t, true)
	r := resolve.New(logger.Logger)
	for _, s := range stores {
		r.RegisterStore(s, time.Second)
	}
	return r, logger
}

func TestResolveSecretFromStore(t *testing.T) {
	t.Parallel()
	vault := fakes.NewFakeProvider("vault").WithSecret("acme/bob", "Xk92!pQ")
	r, logger := newResolver(t, vault)

	got, err := r.ResolveSecret(context.Background(), resolve.Secret{Name: "passcode", From: "store://vault/acme/bob?version=7"})
	require.NoError(t, err)
	assert.Equal(t, "Xk92!pQ", got.Value)
	assert.Equal(t, "vault:acme/bob@7", got.Source)
	assert.False(t, got.Missing)
	assert.Equal(t, 1, vault.GetCallCount("Resolve"))
	logger.AssertNotContains(t, "Xk92!pQ")
	logger.AssertContains(t, "Fetched secret from vault:acme/bob@7")
}

func TestResolveSecretLiteral(t *testing.T) {
	t.Parallel()
	r, _ := newResolver(t)

	got, err := r.ResolveSecret(context.Background(), resolve.Secret{Name: "pin", Literal: " 1234 ", Transform: "trim"})
	require.NoError(t, err)
	assert.Equal(t, "1234", got.Value)
	assert.Equal(t, "literal", got.Source)
	assert.True(t, got.Transformed)
}

func TestResolveSecretErrors(t *testing.T) {
	t.Parallel()
	vault := fakes.NewFakeProvider("vault").
		WithSecret("plain", "not-base64!").
		WithError("down", errors.New("connection refused"))

	tests := []struct {
		name   string
		secret resolve.Secret
		check  func(t *testing.T, err error)
	}{
		{
			name:   "not found",
			secret: resolve.Secret{Name: "s", From: "store://vault/missing"},
			check: func(t *testing.T, err error) {
				var nf *provider.NotFoundError
				require.ErrorAs(t, err, &nf)
				assert.Equal(t, "missing", nf.Key)
				var userErr dserrors.UserError
				require.ErrorAs(t, err, &userErr)
				assert.Contains(t, userErr.Message, "vault secret store error during resolve")
			},
		},
		{
			name:   "store failure",
			secret: resolve.Secret{Name: "s", From: "store://vault/down"},
			check: func(t *testing.T, err error) {
				assert.Contains(t, err.Error(), "connection refused")
			},
		},
		{
			name:   "unknown store",
			secret: resolve.Secret{Name: "s", From: "store://keychain/acme/bob"},
			check: func(t *testing.T, err error) {
				var cfgErr dserrors.ConfigError
				require.ErrorAs(t, err, &cfgErr)
				assert.Equal(t, "keychain", cfgErr.Value)
				assert.Contains(t, cfgErr.Suggestion, "configured: vault")
			},
		},
		{
			name:   "bad reference",
			secret: resolve.Secret{Name: "s", From: "vault/acme"},
			check: func(t *testing.T, err error) {
				var cfgErr dserrors.ConfigError
				require.ErrorAs(t, err, &cfgErr)
				assert.Equal(t, "from", cfgErr.Field)
			},
		},
		{
			name:   "transform failure",
			secret: resolve.Secret{Name: "token", From: "store://vault/plain", Transform: "base64_decode"},
			check: func(t *testing.T, err error) {
				var userErr dserrors.UserError
				require.ErrorAs(t, err, &userErr)
				assert.Equal(t, "Transform failed for secret 'token'", userErr.Message)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r, _ := newResolver(t, vault)
			_, err := r.ResolveSecret(context.Background(), tt.secret)
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestResolveOptionalSecret(t *testing.T) {
	t.Parallel()
	r, logger := newResolver(t, fakes.NewFakeProvider("vault"))

	got, err := r.ResolveSecret(context.Background(), resolve.Secret{Name: "totp", From: "store://vault/acme/totp", Optional: true})
	require.NoError(t, err)
	assert.True(t, got.Missing)
	assert.Empty(t, got.Value)
	logger.AssertContains(t, "Optional secret totp unavailable")
}

func TestResolveStoreTimeout(t *testing.T) {
	t.Parallel()
	slow := fakes.NewFakeProvider("slow").WithSecret("k", "v").WithDelay(time.Second)
	logger := testutil.NewTestLogger(t)
	r := resolve.New(logger.Logger)
	r.RegisterStore(slow, 20*time.Millisecond)

	_, err := r.ResolveSecret(context.Background(), resolve.Secret{Name: "k", From: "store://slow/k"})
	var userErr dserrors.UserError
	require.ErrorAs(t, err, &userErr)
	assert.Equal(t, `Secret store "slow" timed out`, userErr.Message)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestResolveCancelledContext(t *testing.T) {
	t.Parallel()
	slow := fakes.NewFakeProvider("slow").WithSecret("k", "v").WithDelay(time.Second)
	r, _ := newResolver(t, slow)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Cancellation is never swallowed, even for optional secrets.
	_, err := r.ResolveSecret(ctx, resolve.Secret{Name: "k", From: "store://slow/k", Optional: true})
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, dserrors.IsInterrupted(err))
}

func TestStoreRegistry(t *testing.T) {
	t.Parallel()
	r, _ := newResolver(t, fakes.NewFakeProvider("b"), fakes.NewFakeProvider("a"))

	assert.Equal(t, []string{"a", "b"}, r.StoreNames())
	p, ok := r.GetStore("a")
	require.True(t, ok)
	assert.Equal(t, "a", p.Name())
	_, ok = r.GetStore("c")
	assert.False(t, ok)
}

func TestValidateStore(t *testing.T) {
	t.Parallel()
	broken := fakes.NewFakeProvider("broken").WithValidateError(errors.New("pass CLI not found"))
	r, _ := newResolver(t, fakes.NewFakeProvider("ok"), broken)

	assert.NoError(t, r.ValidateStore(context.Background(), "ok"))

	err := r.ValidateStore(context.Background(), "broken")
	var userErr dserrors.UserError
	require.ErrorAs(t, err, &userErr)
	assert.Contains(t, userErr.Message, "during validate")

	var cfgErr dserrors.ConfigError
	assert.ErrorAs(t, r.ValidateStore(context.Background(), "nope"), &cfgErr)
}

func TestResolveVersionNeedsVersionedStore(t *testing.T) {
	t.Parallel()
	flat := fakes.NewFakeProvider("flat").WithoutVersioning().WithSecret("acme/bob", "Xk92!pQ")
	r, _ := newResolver(t, flat)

	tests := []struct {
		name string
		call func() error
	}{
		{
			name: "resolve",
			call: func() error {
				_, err := r.ResolveSecret(context.Background(), resolve.Secret{Name: "s", From: "store://flat/acme/bob?version=3"})
				return err
			},
		},
		{
			name: "optional resolve",
			call: func() error {
				_, err := r.ResolveSecret(context.Background(), resolve.Secret{Name: "s", From: "store://flat/acme/bob?version=3", Optional: true})
				return err
			},
		},
		{
			name: "describe",
			call: func() error {
				_, err := r.DescribeSecret(context.Background(), resolve.Secret{Name: "s", From: "store://flat/acme/bob?version=3"})
				return err
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			if tt.name == "optional resolve" {
				require.NoError(t, err)
				return
			}
			var cfgErr dserrors.ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, "from", cfgErr.Field)
			assert.Contains(t, cfgErr.Message, "does not keep versions")
		})
	}
	assert.Equal(t, 0, flat.GetCallCount("Resolve"))
	assert.Equal(t, 0, flat.GetCallCount("Describe"))

	got, err := r.ResolveSecret(context.Background(), resolve.Secret{Name: "s", From: "store://flat/acme/bob"})
	require.NoError(t, err)
	assert.Equal(t, "Xk92!pQ", got.Value)
}

func TestDescribeSecret(t *testing.T) {
	t.Parallel()
	vault := fakes.NewFakeProvider("vault").
		WithSecret("acme/bob", "Xk92!pQ").
		WithError("down", errors.New("connection refused"))
	r, logger := newResolver(t, vault)
	ctx := context.Background()

	meta, err := r.DescribeSecret(ctx, resolve.Secret{Name: "passcode", From: "store://vault/acme/bob"})
	require.NoError(t, err)
	assert.True(t, meta.Exists)
	assert.Equal(t, 7, meta.Size)
	assert.Equal(t, 1, vault.GetCallCount("Describe"))
	assert.Equal(t, 0, vault.GetCallCount("Resolve"))

	meta, err = r.DescribeSecret(ctx, resolve.Secret{Name: "passcode", From: "store://vault/acme/nobody"})
	require.NoError(t, err)
	assert.False(t, meta.Exists)

	meta, err = r.DescribeSecret(ctx, resolve.Secret{Name: "pin", Literal: "1234"})
	require.NoError(t, err)
	assert.Equal(t, provider.Metadata{Exists: true, Size: 4, Type: "literal"}, meta)

	_, err = r.DescribeSecret(ctx, resolve.Secret{Name: "s", From: "store://vault/down"})
	var userErr dserrors.UserError
	require.ErrorAs(t, err, &userErr)
	assert.Contains(t, userErr.Message, "during describe")

	logger.AssertNotContains(t, "Xk92!pQ")
}
