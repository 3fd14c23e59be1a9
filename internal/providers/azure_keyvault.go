package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"

	dserrors "github.com/systmms/acctexport/internal/errors"
	"github.com/systmms/acctexport/pkg/provider"
)

// AzureKeyVaultClientAPI is the part of the azsecrets client the store
// calls.
type AzureKeyVaultClientAPI interface {
	GetSecret(ctx context.Context, name string, version string, options *azsecrets.GetSecretOptions) (azsecrets.GetSecretResponse, error)
}

// AzureKeyVaultProvider reads Azure Key Vault secrets. Keys are secret
// names with an optional "#.path" JSON selector.
type AzureKeyVaultProvider struct {
	name     string
	vaultURL string
	client   AzureKeyVaultClientAPI
}

// AzureOption configures the store at construction.
type AzureOption func(*AzureKeyVaultProvider)

// WithAzureKeyVaultClient replaces the SDK client.
func WithAzureKeyVaultClient(client AzureKeyVaultClientAPI) AzureOption {
	return func(p *AzureKeyVaultProvider) {
		p.client = client
	}
}

// NewAzureKeyVaultProvider creates the store. vault_url is required.
// Credentials come from tenant_id/client_id/client_secret when given,
// a managed identity when use_managed_identity is true, and
// DefaultAzureCredential otherwise.
func NewAzureKeyVaultProvider(name string, cfg map[string]interface{}, opts ...AzureOption) (*AzureKeyVaultProvider, error) {
	vaultURL := stringOpt(cfg, "vault_url", "")
	if u, err := url.Parse(vaultURL); vaultURL == "" || err != nil || u.Scheme != "https" {
		return nil, dserrors.ConfigError{
			Field:      "vault_url",
			Value:      vaultURL,
			Message:    "a https vault_url is required for Azure Key Vault",
			Suggestion: "Use the vault URI, e.g. https://my-vault.vault.azure.net/",
		}
	}

	p := &AzureKeyVaultProvider{name: name, vaultURL: vaultURL}
	for _, opt := range opts {
		opt(p)
	}
	if p.client != nil {
		return p, nil
	}

	cred, err := azureCredential(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure credential: %w", err)
	}
	client, err := azsecrets.NewClient(vaultURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Key Vault client: %w", err)
	}
	p.client = client
	return p, nil
}

func azureCredential(cfg map[string]interface{}) (azcore.TokenCredential, error) {
	tenant, clientID, secret := stringOpt(cfg, "tenant_id", ""), stringOpt(cfg, "client_id", ""), stringOpt(cfg, "client_secret", "")
	switch {
	case secret != "":
		return azidentity.NewClientSecretCredential(tenant, clientID, secret, nil)
	case boolOpt(cfg, "use_managed_identity", false):
		var miOpts *azidentity.ManagedIdentityCredentialOptions
		if id := stringOpt(cfg, "user_assigned_identity_id", ""); id != "" {
			miOpts = &azidentity.ManagedIdentityCredentialOptions{ID: azidentity.ClientID(id)}
		}
		return azidentity.NewManagedIdentityCredential(miOpts)
	default:
		return azidentity.NewDefaultAzureCredential(nil)
	}
}

// Name returns the store name
func (p *AzureKeyVaultProvider) Name() string {
	return p.name
}

// Resolve fetches one secret.
func (p *AzureKeyVaultProvider) Resolve(ctx context.Context, ref provider.Reference) (provider.SecretValue, error) {
	secret, jsonPath := splitJSONPath(ref.Key)
	if ref.Field != "" {
		jsonPath = "." + strings.TrimPrefix(ref.Field, ".")
	}
	resp, err := p.client.GetSecret(ctx, secret, ref.Version, nil)
	if err != nil {
		return provider.SecretValue{}, p.wrap(err, secret)
	}
	if resp.Value == nil {
		return provider.SecretValue{}, fmt.Errorf("secret %q has no value", secret)
	}

	value := *resp.Value
	if jsonPath != "" {
		if value, err = extractJSONField(value, jsonPath); err != nil {
			return provider.SecretValue{}, fmt.Errorf("secret %q: %w", secret, err)
		}
	}

	sv := provider.SecretValue{
		Value:    value,
		Metadata: map[string]string{"vault_url": p.vaultURL},
	}
	if resp.ID != nil {
		sv.Version = resp.ID.Version()
	}
	if resp.Attributes != nil && resp.Attributes.Updated != nil {
		sv.UpdatedAt = *resp.Attributes.Updated
	}
	return sv, nil
}

// Describe fetches the secret and reports everything except its value.
func (p *AzureKeyVaultProvider) Describe(ctx context.Context, ref provider.Reference) (provider.Metadata, error) {
	secret, _ := splitJSONPath(ref.Key)
	resp, err := p.client.GetSecret(ctx, secret, ref.Version, nil)
	if err != nil {
		if isAzureNotFound(err) {
			return provider.Metadata{Exists: false}, nil
		}
		return provider.Metadata{}, p.wrap(err, secret)
	}

	md := provider.Metadata{
		Exists: true,
		Type:   "azure-secret",
		Tags:   map[string]string{"vault_url": p.vaultURL},
	}
	if resp.Value != nil {
		md.Size = len(*resp.Value)
	}
	if resp.ID != nil {
		md.Version = resp.ID.Version()
	}
	if resp.Attributes != nil && resp.Attributes.Updated != nil {
		md.UpdatedAt = *resp.Attributes.Updated
	}
	for k, v := range resp.Tags {
		if v != nil {
			md.Tags[k] = *v
		}
	}
	return md, nil
}

// Capabilities returns the store capabilities
func (p *AzureKeyVaultProvider) Capabilities() provider.Capabilities {
	return provider.Capabilities{
		SupportsVersioning: true,
		SupportsMetadata:   true,
		RequiresAuth:       true,
		AuthMethods:        []string{"managed_identity", "service_principal", "azure_cli"},
	}
}

// Validate lists one page of secret properties when talking to the real
// service.
func (p *AzureKeyVaultProvider) Validate(ctx context.Context) error {
	sdk, ok := p.client.(*azsecrets.Client)
	if !ok {
		return nil
	}
	if _, err := sdk.NewListSecretPropertiesPager(nil).NextPage(ctx); err != nil {
		return p.wrap(err, path.Base(strings.TrimSuffix(p.vaultURL, "/")))
	}
	return nil
}

func (p *AzureKeyVaultProvider) wrap(err error, key string) error {
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		switch respErr.StatusCode {
		case http.StatusNotFound:
			return &provider.NotFoundError{Provider: p.name, Key: key}
		case http.StatusUnauthorized, http.StatusForbidden:
			return &provider.AuthError{Provider: p.name, Message: respErr.ErrorCode}
		}
	}
	return fmt.Errorf("Azure Key Vault error: %w", err)
}

func isAzureNotFound(err error) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound
}
