//go:build darwin

package providers

import (
	"errors"
	"os"
	"strings"

	"github.com/zalando/go-keyring"

	"github.com/systmms/acctexport/internal/providers/contracts"
)

// macKeychainClient reads generic passwords from the login keychain.
type macKeychainClient struct{}

func newPlatformKeychainClient() contracts.KeychainClient {
	return macKeychainClient{}
}

func (macKeychainClient) Get(service, user string) (string, error) {
	secret, err := keyring.Get(service, user)
	switch {
	case errors.Is(err, keyring.ErrNotFound):
		return "", ErrKeychainItemNotFound
	case err != nil && (strings.Contains(err.Error(), "denied") || strings.Contains(err.Error(), "canceled")):
		return "", ErrKeychainAccessDenied
	}
	return secret, err
}

func (macKeychainClient) Available() bool {
	return true
}

func (macKeychainClient) Headless() bool {
	return os.Getenv("SSH_TTY") != "" || os.Getenv("CI") != ""
}
