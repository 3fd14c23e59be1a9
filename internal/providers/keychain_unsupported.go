//go:build !darwin && !linux

package providers

import (
	"github.com/systmms/acctexport/internal/providers/contracts"
)

type unsupportedKeychainClient struct{}

func newPlatformKeychainClient() contracts.KeychainClient {
	return unsupportedKeychainClient{}
}

func (unsupportedKeychainClient) Get(service, user string) (string, error) {
	return "", ErrKeychainUnsupportedPlatform
}

func (unsupportedKeychainClient) Available() bool { return false }

func (unsupportedKeychainClient) Headless() bool { return false }
