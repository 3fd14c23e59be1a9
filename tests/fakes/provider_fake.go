package fakes

import (
	"context"
	"sync"
	"time"

	"github.com/systmms/acctexport/pkg/provider"
)

// FakeProvider is an in-memory secret store.
//
//	store := fakes.NewFakeProvider("vault").
//	    WithSecret("acme/bob", "Xk92!pQ").
//	    WithError("broken", errors.New("connection refused"))
type FakeProvider struct {
	name string

	mu          sync.Mutex
	secrets     map[string]string
	failOn      map[string]error
	validateErr error
	delay       time.Duration
	unversioned bool
	calls       map[string]int
}

// NewFakeProvider returns an empty store.
func NewFakeProvider(name string) *FakeProvider {
	return &FakeProvider{
		name:    name,
		secrets: make(map[string]string),
		failOn:  make(map[string]error),
		calls:   make(map[string]int),
	}
}

// WithSecret stores a value under key.
func (f *FakeProvider) WithSecret(key, value string) *FakeProvider {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.secrets[key] = value
	return f
}

// WithError makes Resolve and Describe of key fail with err.
func (f *FakeProvider) WithError(key string, err error) *FakeProvider {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failOn[key] = err
	return f
}

// WithoutVersioning makes the store report that it keeps no history.
func (f *FakeProvider) WithoutVersioning() *FakeProvider {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unversioned = true
	return f
}

// WithDelay makes Resolve wait d, or until ctx is done.
func (f *FakeProvider) WithDelay(d time.Duration) *FakeProvider {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delay = d
	return f
}

// WithValidateError makes Validate fail.
func (f *FakeProvider) WithValidateError(err error) *FakeProvider {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.validateErr = err
	return f
}

// Name implements provider.Provider.
func (f *FakeProvider) Name() string {
	return f.name
}

// Resolve implements provider.Provider.
func (f *FakeProvider) Resolve(ctx context.Context, ref provider.Reference) (provider.SecretValue, error) {
	f.mu.Lock()
	f.calls["Resolve"]++
	delay := f.delay
	err, failing := f.failOn[ref.Key]
	value, ok := f.secrets[ref.Key]
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return provider.SecretValue{}, ctx.Err()
		}
	}
	if failing {
		return provider.SecretValue{}, err
	}
	if !ok {
		return provider.SecretValue{}, &provider.NotFoundError{Provider: f.name, Key: ref.Key}
	}
	return provider.SecretValue{Value: value, Version: ref.Version}, nil
}

// Describe implements provider.Provider.
func (f *FakeProvider) Describe(ctx context.Context, ref provider.Reference) (provider.Metadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["Describe"]++
	if err, ok := f.failOn[ref.Key]; ok {
		return provider.Metadata{}, err
	}
	value, ok := f.secrets[ref.Key]
	return provider.Metadata{Exists: ok, Size: len(value)}, nil
}

// Capabilities implements provider.Provider.
func (f *FakeProvider) Capabilities() provider.Capabilities {
	f.mu.Lock()
	defer f.mu.Unlock()
	return provider.Capabilities{SupportsMetadata: true, SupportsVersioning: !f.unversioned}
}

// Validate implements provider.Provider.
func (f *FakeProvider) Validate(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["Validate"]++
	return f.validateErr
}

// GetCallCount returns how often method was called.
func (f *FakeProvider) GetCallCount(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}
