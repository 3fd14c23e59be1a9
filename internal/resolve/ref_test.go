package resolve_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/acctexport/internal/resolve"
)

func TestParseStoreRef(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		uri     string
		want    resolve.StoreRef
		wantErr string
	}{
		{
			name: "simple",
			uri:  "store://keychain/acme/bob",
			want: resolve.StoreRef{Store: "keychain", Path: "acme/bob"},
		},
		{
			name: "field",
			uri:  "store://aws/prod/acme#.password",
			want: resolve.StoreRef{Store: "aws", Path: "prod/acme", Field: ".password"},
		},
		{
			name: "version",
			uri:  "store://ssm/accounts/acme?version=3",
			want: resolve.StoreRef{Store: "ssm", Path: "accounts/acme", Version: "3"},
		},
		{
			name: "field and version",
			uri:  "store://pass/web/acme#login?version=AWSPREVIOUS",
			want: resolve.StoreRef{Store: "pass", Path: "web/acme", Field: "login", Version: "AWSPREVIOUS"},
		},
		{name: "wrong scheme", uri: "svc://db/admin", wantErr: "must start with store://"},
		{name: "no store", uri: "store:///acme", wantErr: "store name is required"},
		{name: "no path", uri: "store://keychain", wantErr: "path is required"},
		{name: "empty path", uri: "store://keychain/", wantErr: "path is required"},
		{name: "unknown option", uri: "store://aws/x?region=eu-west-1", wantErr: `unknown query parameter "region"`},
		{name: "bad query", uri: "store://aws/x?version=%zz", wantErr: "invalid query parameters"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := resolve.ParseStoreRef(tt.uri)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.uri, got.String())
		})
	}
}
