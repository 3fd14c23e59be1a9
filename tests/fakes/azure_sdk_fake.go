package fakes

import (
	"context"
	"net/http"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"
)

// FakeAzureKeyVaultClient answers GetSecret from memory. Secrets are keyed
// by name and version; the empty version is the current one.
type FakeAzureKeyVaultClient struct {
	VaultURL string
	Secrets  map[string]map[string]string
	Errors   map[string]error
}

// NewFakeAzureKeyVaultClient returns an empty client.
func NewFakeAzureKeyVaultClient() *FakeAzureKeyVaultClient {
	return &FakeAzureKeyVaultClient{
		VaultURL: "https://test-vault.vault.azure.net",
		Secrets:  map[string]map[string]string{},
		Errors:   map[string]error{},
	}
}

// AddSecret stores value as version of name, and as the current version.
func (f *FakeAzureKeyVaultClient) AddSecret(name, version, value string) {
	if f.Secrets[name] == nil {
		f.Secrets[name] = map[string]string{}
	}
	f.Secrets[name][version] = value
	f.Secrets[name][""] = value
}

func (f *FakeAzureKeyVaultClient) GetSecret(ctx context.Context, name string, version string, options *azsecrets.GetSecretOptions) (azsecrets.GetSecretResponse, error) {
	if err, ok := f.Errors[name]; ok {
		return azsecrets.GetSecretResponse{}, err
	}
	value, ok := f.Secrets[name][version]
	if !ok {
		return azsecrets.GetSecretResponse{}, AzureResponseError(http.StatusNotFound, "SecretNotFound")
	}
	raw := f.VaultURL + "/secrets/" + name
	if version != "" {
		raw += "/" + version
	}
	id := azsecrets.ID(raw)
	return azsecrets.GetSecretResponse{Secret: azsecrets.Secret{
		ID:    &id,
		Value: to.Ptr(value),
	}}, nil
}

// AzureResponseError builds the error azsecrets returns for a failed call.
// RawResponse is left nil, so callers must not format it with Error().
func AzureResponseError(status int, code string) error {
	return &azcore.ResponseError{StatusCode: status, ErrorCode: code}
}
