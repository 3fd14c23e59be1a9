package providers

import (
	"context"
	"os"

	"github.com/systmms/acctexport/pkg/provider"
)

// LiteralProvider serves values written directly in the settings file. It
// is handy for shared, low-value secrets and for trying out account files.
type LiteralProvider struct {
	name   string
	values map[string]string
}

// NewLiteralProvider creates a literal store.
func NewLiteralProvider(name string, values map[string]string) *LiteralProvider {
	if values == nil {
		values = make(map[string]string)
	}
	return &LiteralProvider{name: name, values: values}
}

// Name returns the store name
func (l *LiteralProvider) Name() string {
	return l.name
}

// Resolve returns the configured value for ref.Key.
func (l *LiteralProvider) Resolve(ctx context.Context, ref provider.Reference) (provider.SecretValue, error) {
	value, ok := l.values[ref.Key]
	if !ok {
		return provider.SecretValue{}, &provider.NotFoundError{Provider: l.name, Key: ref.Key}
	}
	return provider.SecretValue{Value: value}, nil
}

// Describe reports whether ref.Key is configured.
func (l *LiteralProvider) Describe(ctx context.Context, ref provider.Reference) (provider.Metadata, error) {
	value, ok := l.values[ref.Key]
	return provider.Metadata{Exists: ok, Size: len(value), Type: "string"}, nil
}

// Capabilities returns the store capabilities
func (l *LiteralProvider) Capabilities() provider.Capabilities {
	return provider.Capabilities{SupportsMetadata: true}
}

// Validate always succeeds.
func (l *LiteralProvider) Validate(ctx context.Context) error {
	return nil
}

// EnvProvider reads secrets from the process environment. The key is the
// variable name, after the optional configured prefix.
type EnvProvider struct {
	name   string
	prefix string
	lookup func(string) (string, bool)
}

// NewEnvProvider creates an environment store.
func NewEnvProvider(name, prefix string) *EnvProvider {
	return &EnvProvider{name: name, prefix: prefix, lookup: os.LookupEnv}
}

// Name returns the store name
func (e *EnvProvider) Name() string {
	return e.name
}

// Resolve reads the variable. An unset variable is NotFound; a variable
// set to the empty string resolves to "".
func (e *EnvProvider) Resolve(ctx context.Context, ref provider.Reference) (provider.SecretValue, error) {
	value, ok := e.lookup(e.prefix + ref.Key)
	if !ok {
		return provider.SecretValue{}, &provider.NotFoundError{Provider: e.name, Key: e.prefix + ref.Key}
	}
	return provider.SecretValue{Value: value}, nil
}

// Describe reports whether the variable is set.
func (e *EnvProvider) Describe(ctx context.Context, ref provider.Reference) (provider.Metadata, error) {
	value, ok := e.lookup(e.prefix + ref.Key)
	return provider.Metadata{Exists: ok, Size: len(value), Type: "env"}, nil
}

// Capabilities returns the store capabilities
func (e *EnvProvider) Capabilities() provider.Capabilities {
	return provider.Capabilities{}
}

// Validate always succeeds.
func (e *EnvProvider) Validate(ctx context.Context) error {
	return nil
}
