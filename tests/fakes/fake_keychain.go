package fakes

import (
	"github.com/systmms/acctexport/internal/providers/contracts"
)

// FakeKeychainClient is an in-memory contracts.KeychainClient. Missing
// items are reported with NotFoundErr, which tests set to the sentinel the
// store expects.
type FakeKeychainClient struct {
	Items map[string]string // "service\x00user" -> secret

	IsAvailable bool
	IsHeadless  bool

	// GetErr, when set, is returned by every Get.
	GetErr error

	// NotFoundErr is returned for missing items.
	NotFoundErr error

	// Block, when non-nil, holds every Get until it is closed.
	Block chan struct{}
}

var _ contracts.KeychainClient = (*FakeKeychainClient)(nil)

// NewFakeKeychainClient returns an available, non-headless keyring.
func NewFakeKeychainClient(notFound error) *FakeKeychainClient {
	return &FakeKeychainClient{
		Items:       make(map[string]string),
		IsAvailable: true,
		NotFoundErr: notFound,
	}
}

// SetSecret stores an item.
func (f *FakeKeychainClient) SetSecret(service, user, secret string) {
	f.Items[service+"\x00"+user] = secret
}

// Get implements contracts.KeychainClient.
func (f *FakeKeychainClient) Get(service, user string) (string, error) {
	if f.Block != nil {
		<-f.Block
	}
	if f.GetErr != nil {
		return "", f.GetErr
	}
	secret, ok := f.Items[service+"\x00"+user]
	if !ok {
		return "", f.NotFoundErr
	}
	return secret, nil
}

// Available implements contracts.KeychainClient.
func (f *FakeKeychainClient) Available() bool { return f.IsAvailable }

// Headless implements contracts.KeychainClient.
func (f *FakeKeychainClient) Headless() bool { return f.IsHeadless }
