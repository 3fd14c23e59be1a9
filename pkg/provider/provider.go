// Package provider defines the contract between acctexport and the secret
// stores it reads account secrets from.
//
// An account file refers to a secret with a store reference such as
// store://keychain/acme/bob. The resolver splits the reference into the
// configured store name and a store-specific Reference and hands the
// Reference to the Provider registered under that name.
//
// # Implementing a Store
//
//	type MyStore struct{ name string }
//
//	func (s *MyStore) Name() string { return s.name }
//
//	func (s *MyStore) Resolve(ctx context.Context, ref provider.Reference) (provider.SecretValue, error) {
//	    v, ok := lookup(ref.Key)
//	    if !ok {
//	        return provider.SecretValue{}, &provider.NotFoundError{Provider: s.name, Key: ref.Key}
//	    }
//	    return provider.SecretValue{Value: v}, nil
//	}
//
// Stores return NotFoundError for missing secrets and AuthError when the
// backend rejects the caller's credentials, so the CLI can print targeted
// suggestions. A store must never log the values it returns.
//
// Stores are used from a single goroutine during a run, but implementations
// are still expected to be safe for concurrent use.
package provider

import (
	"context"
	"time"
)

// Provider is a source of secret values.
type Provider interface {
	// Name returns the configured store name, used in logs and errors.
	Name() string

	// Resolve fetches the current (or the referenced) version of a secret.
	// Implementations must honor ctx cancellation.
	Resolve(ctx context.Context, ref Reference) (SecretValue, error)

	// Describe returns metadata about a secret without its value.
	Describe(ctx context.Context, ref Reference) (Metadata, error)

	// Capabilities reports optional features of the backend.
	Capabilities() Capabilities

	// Validate checks that the store is reachable and configured.
	// Resolver.ValidateStore runs it on demand.
	Validate(ctx context.Context) error
}

// Reference identifies a secret inside one store.
type Reference struct {
	// Provider is the configured store name.
	Provider string

	// Key is the store-specific address: a keychain "service/account"
	// pair, a pass entry, an AWS secret name, and so on.
	Key string

	// Version selects a specific version when the store keeps history.
	// Empty means latest.
	Version string

	// Field selects a member of a structured secret (AWS JSON secrets).
	Field string
}

// SecretValue is a resolved secret.
type SecretValue struct {
	Value     string
	Version   string
	UpdatedAt time.Time
	Metadata  map[string]string
}

// Metadata describes a secret without exposing its value.
type Metadata struct {
	Exists    bool
	Version   string
	UpdatedAt time.Time
	Size      int
	Type      string
	Tags      map[string]string
}

// Capabilities describes what a store supports.
type Capabilities struct {
	SupportsVersioning bool
	SupportsMetadata   bool
	SupportsBinary     bool
	RequiresAuth       bool

	// AuthMethods lists how the store authenticates, e.g. "iam",
	// "os_keyring", "gpg".
	AuthMethods []string
}

// NotFoundError reports a reference that does not exist in the store.
type NotFoundError struct {
	Provider string
	Key      string
}

func (e *NotFoundError) Error() string {
	return "secret not found: " + e.Key + " in " + e.Provider
}

// AuthError reports rejected or missing credentials.
type AuthError struct {
	Provider string
	Message  string
}

func (e *AuthError) Error() string {
	return "authentication failed for " + e.Provider + ": " + e.Message
}
