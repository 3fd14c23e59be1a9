package providers

import (
	"fmt"
	"sort"

	"github.com/systmms/acctexport/internal/config"
	"github.com/systmms/acctexport/pkg/provider"
)

// Registry maps store types to factories.
type Registry struct {
	factories map[string]ProviderFactory
}

// ProviderFactory creates a store from its settings block.
type ProviderFactory func(name string, config map[string]interface{}) (provider.Provider, error)

// NewRegistry returns a registry with every built-in store type.
func NewRegistry() *Registry {
	registry := &Registry{factories: make(map[string]ProviderFactory)}

	registry.RegisterFactory("literal", NewLiteralProviderFactory)
	registry.RegisterFactory("env", NewEnvProviderFactory)
	registry.RegisterFactory("keychain", NewKeychainProviderFactory)
	registry.RegisterFactory("pass", NewPassProviderFactory)
	registry.RegisterFactory("aws.secretsmanager", NewAWSSecretsManagerProviderFactory)
	registry.RegisterFactory("aws.ssm", NewAWSSSMProviderFactory)
	registry.RegisterFactory("gcp.secretmanager", NewGCPSecretManagerProviderFactory)
	registry.RegisterFactory("azure.keyvault", NewAzureKeyVaultProviderFactory)

	return registry
}

// RegisterFactory registers or replaces the factory for a store type.
func (r *Registry) RegisterFactory(storeType string, factory ProviderFactory) {
	r.factories[storeType] = factory
}

// CreateProvider builds the store named name from its settings.
func (r *Registry) CreateProvider(name string, cfg config.StoreConfig) (provider.Provider, error) {
	factory, ok := r.factories[cfg.Type]
	if !ok {
		return nil, fmt.Errorf("unknown secret store type %q for store %q (supported: %v)", cfg.Type, name, r.GetSupportedTypes())
	}
	if cfg.Config == nil {
		cfg.Config = map[string]interface{}{}
	}
	p, err := factory(name, cfg.Config)
	if err != nil {
		return nil, fmt.Errorf("store %q: %w", name, err)
	}
	return p, nil
}

// GetSupportedTypes returns the registered store types, sorted.
func (r *Registry) GetSupportedTypes() []string {
	types := make([]string, 0, len(r.factories))
	for t := range r.factories {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// IsSupported reports whether a store type is registered.
func (r *Registry) IsSupported(storeType string) bool {
	_, ok := r.factories[storeType]
	return ok
}

// NewLiteralProviderFactory reads the values map.
func NewLiteralProviderFactory(name string, config map[string]interface{}) (provider.Provider, error) {
	values := make(map[string]string)
	if raw, ok := config["values"].(map[string]interface{}); ok {
		for k, v := range raw {
			values[k] = fmt.Sprint(v)
		}
	}
	return NewLiteralProvider(name, values), nil
}

// NewEnvProviderFactory reads the optional prefix.
func NewEnvProviderFactory(name string, config map[string]interface{}) (provider.Provider, error) {
	return NewEnvProvider(name, stringOpt(config, "prefix", "")), nil
}

// NewKeychainProviderFactory creates a keychain store on the platform keyring.
func NewKeychainProviderFactory(name string, config map[string]interface{}) (provider.Provider, error) {
	return NewKeychainProvider(name, config), nil
}

// NewPassProviderFactory reads password_store and gpg_key.
func NewPassProviderFactory(name string, config map[string]interface{}) (provider.Provider, error) {
	return NewPassProvider(name, PassConfig{
		PasswordStore: stringOpt(config, "password_store", ""),
		GpgKey:        stringOpt(config, "gpg_key", ""),
	}), nil
}

// NewAWSSecretsManagerProviderFactory creates an AWS Secrets Manager store.
func NewAWSSecretsManagerProviderFactory(name string, config map[string]interface{}) (provider.Provider, error) {
	return NewAWSSecretsManagerProvider(name, config)
}

// NewAWSSSMProviderFactory creates an AWS SSM Parameter Store store.
func NewAWSSSMProviderFactory(name string, config map[string]interface{}) (provider.Provider, error) {
	return NewAWSSSMProvider(name, config)
}

// NewGCPSecretManagerProviderFactory creates a Google Secret Manager store.
func NewGCPSecretManagerProviderFactory(name string, config map[string]interface{}) (provider.Provider, error) {
	return NewGCPSecretManagerProvider(name, config)
}

// NewAzureKeyVaultProviderFactory creates an Azure Key Vault store.
func NewAzureKeyVaultProviderFactory(name string, config map[string]interface{}) (provider.Provider, error) {
	return NewAzureKeyVaultProvider(name, config)
}
