package providers_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dserrors "github.com/systmms/acctexport/internal/errors"
	"github.com/systmms/acctexport/internal/providers"
	"github.com/systmms/acctexport/pkg/provider"
	"github.com/systmms/acctexport/tests/fakes"
	"github.com/systmms/acctexport/tests/testutil"
)

func newAzure(t *testing.T) (*providers.AzureKeyVaultProvider, *fakes.FakeAzureKeyVaultClient) {
	t.Helper()
	client := fakes.NewFakeAzureKeyVaultClient()
	p, err := providers.NewAzureKeyVaultProvider("kv",
		map[string]interface{}{"vault_url": client.VaultURL},
		providers.WithAzureKeyVaultClient(client))
	require.NoError(t, err)
	return p, client
}

func TestAzureContract(t *testing.T) {
	t.Parallel()
	p, client := newAzure(t)
	client.AddSecret("acme-bob", "v1", "Xk92!pQ")

	testutil.RunStoreContractTests(t, testutil.StoreTestCase{
		Provider:   p,
		Present:    map[string]string{"acme-bob": "Xk92!pQ"},
		MissingKey: "acme-alice",
	})
}

func TestAzureVersionAndJSON(t *testing.T) {
	t.Parallel()
	p, client := newAzure(t)
	client.AddSecret("db", "a1b2", `{"password":"Xk92!pQ"}`)

	got, err := p.Resolve(context.Background(), provider.Reference{Key: "db#.password", Version: "a1b2"})
	require.NoError(t, err)
	assert.Equal(t, "Xk92!pQ", got.Value)
	assert.Equal(t, "a1b2", got.Version)
}

func TestAzureErrorClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		wantAuth bool
		wantNF   bool
	}{
		{name: "forbidden", err: fakes.AzureResponseError(http.StatusForbidden, "Forbidden"), wantAuth: true},
		{name: "unauthorized", err: fakes.AzureResponseError(http.StatusUnauthorized, "Unauthorized"), wantAuth: true},
		{name: "not found", err: fakes.AzureResponseError(http.StatusNotFound, "SecretNotFound"), wantNF: true},
		{name: "throttled", err: fakes.AzureResponseError(http.StatusTooManyRequests, "Throttled")},
		{name: "transport", err: errors.New("dial tcp: connection refused")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p, client := newAzure(t)
			client.Errors["s"] = tt.err

			_, err := p.Resolve(context.Background(), provider.Reference{Key: "s"})
			require.Error(t, err)
			assert.Equal(t, tt.wantAuth, providers.IsAuth(err))
			assert.Equal(t, tt.wantNF, providers.IsNotFound(err))
		})
	}
}

func TestAzureRequiresHTTPSVaultURL(t *testing.T) {
	t.Parallel()
	for _, u := range []string{"", "http://vault.example.com", "::bad"} {
		_, err := providers.NewAzureKeyVaultProvider("kv", map[string]interface{}{"vault_url": u},
			providers.WithAzureKeyVaultClient(fakes.NewFakeAzureKeyVaultClient()))
		var cfgErr dserrors.ConfigError
		require.ErrorAs(t, err, &cfgErr, "url %q", u)
		assert.Equal(t, "vault_url", cfgErr.Field)
	}
}
