package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/systmms/acctexport/internal/providers/contracts"
	"github.com/systmms/acctexport/pkg/provider"
)

// KeychainProvider reads secrets from the OS keyring (macOS Keychain or the
// freedesktop Secret Service). Keys have the form service/user.
type KeychainProvider struct {
	name          string
	servicePrefix string
	client        contracts.KeychainClient
}

// NewKeychainProvider creates a keychain store backed by the platform keyring.
func NewKeychainProvider(name string, config map[string]interface{}) *KeychainProvider {
	return NewKeychainProviderWithClient(name, config, newPlatformKeychainClient())
}

// NewKeychainProviderWithClient creates a keychain store on top of client.
func NewKeychainProviderWithClient(name string, config map[string]interface{}, client contracts.KeychainClient) *KeychainProvider {
	kc := &KeychainProvider{name: name, client: client}
	if prefix, ok := config["service_prefix"].(string); ok {
		kc.servicePrefix = prefix
	}
	return kc
}

// Name returns the store name
func (kc *KeychainProvider) Name() string {
	return kc.name
}

// Resolve reads one keyring item.
func (kc *KeychainProvider) Resolve(ctx context.Context, ref provider.Reference) (provider.SecretValue, error) {
	service, user, err := kc.lookup(ref.Key)
	if err != nil {
		return provider.SecretValue{}, err
	}

	value, err := kc.get(ctx, service, user)
	if err != nil {
		if isContextErr(ctx, err) {
			return provider.SecretValue{}, err
		}
		if errors.Is(err, ErrKeychainItemNotFound) {
			return provider.SecretValue{}, &provider.NotFoundError{Provider: kc.name, Key: ref.Key}
		}
		return provider.SecretValue{}, &KeychainError{Op: "query", Service: service, Account: user, Err: err}
	}

	return provider.SecretValue{
		Value: value,
		Metadata: map[string]string{
			"service": service,
			"account": user,
		},
	}, nil
}

// Describe reports whether the item exists.
func (kc *KeychainProvider) Describe(ctx context.Context, ref provider.Reference) (provider.Metadata, error) {
	service, user, err := kc.lookup(ref.Key)
	if err != nil {
		return provider.Metadata{}, err
	}

	value, err := kc.get(ctx, service, user)
	if isContextErr(ctx, err) {
		return provider.Metadata{}, err
	}
	if errors.Is(err, ErrKeychainItemNotFound) {
		return provider.Metadata{Exists: false}, nil
	}
	if err != nil {
		return provider.Metadata{}, &KeychainError{Op: "describe", Service: service, Account: user, Err: err}
	}
	return provider.Metadata{
		Exists: true,
		Size:   len(value),
		Type:   "password",
		Tags:   map[string]string{"service": service, "account": user},
	}, nil
}

// Capabilities returns the store's supported features
func (kc *KeychainProvider) Capabilities() provider.Capabilities {
	return provider.Capabilities{
		SupportsBinary: true,
		AuthMethods:    []string{"os_keyring"},
	}
}

// Validate fails when there is no usable keyring on this host.
func (kc *KeychainProvider) Validate(ctx context.Context) error {
	if !kc.client.Available() {
		return ErrKeychainUnsupportedPlatform
	}
	if kc.client.Headless() {
		return ErrKeychainHeadless
	}
	return nil
}

type keychainResult struct {
	value string
	err   error
}

// get queries the keyring without outliving ctx. An unlock prompt can keep
// the query blocked; it is abandoned when ctx ends.
func (kc *KeychainProvider) get(ctx context.Context, service, user string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	done := make(chan keychainResult, 1)
	go func() {
		value, err := kc.client.Get(service, user)
		done <- keychainResult{value: value, err: err}
	}()
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-done:
		return r.value, r.err
	}
}

func isContextErr(ctx context.Context, err error) bool {
	return err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err())
}

func (kc *KeychainProvider) lookup(key string) (string, string, error) {
	service, user, err := ParseKeychainKey(key)
	if err != nil {
		return "", "", err
	}
	if kc.servicePrefix != "" && !strings.HasPrefix(service, kc.servicePrefix) {
		service = kc.servicePrefix + "." + service
	}
	return service, user, nil
}

// ParseKeychainKey splits service/user. The user part may itself contain
// slashes.
func ParseKeychainKey(key string) (service, user string, err error) {
	service, user, found := strings.Cut(key, "/")
	service = strings.TrimSpace(service)
	user = strings.TrimSpace(user)
	switch {
	case !found:
		return "", "", fmt.Errorf("keychain key must be service/account, got %q", key)
	case service == "":
		return "", "", fmt.Errorf("keychain key %q has an empty service", key)
	case user == "":
		return "", "", fmt.Errorf("keychain key %q has an empty account", key)
	}
	return service, user, nil
}
