//go:build linux

package providers

import (
	"errors"
	"os"

	"github.com/zalando/go-keyring"

	"github.com/systmms/acctexport/internal/providers/contracts"
)

// secretServiceClient talks to the freedesktop Secret Service over D-Bus.
type secretServiceClient struct{}

func newPlatformKeychainClient() contracts.KeychainClient {
	return secretServiceClient{}
}

func (secretServiceClient) Get(service, user string) (string, error) {
	secret, err := keyring.Get(service, user)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrKeychainItemNotFound
	}
	return secret, err
}

// Available requires a session bus, which is where Secret Service lives.
func (secretServiceClient) Available() bool {
	return os.Getenv("DBUS_SESSION_BUS_ADDRESS") != ""
}

// Headless is true over SSH without a display, where a locked collection
// cannot be unlocked interactively.
func (secretServiceClient) Headless() bool {
	if os.Getenv("DISPLAY") != "" || os.Getenv("WAYLAND_DISPLAY") != "" {
		return false
	}
	return os.Getenv("SSH_TTY") != "" || os.Getenv("CI") != ""
}
