package providers

import (
	"errors"
	"fmt"

	"github.com/systmms/acctexport/pkg/provider"
)

// KeychainError wraps OS keyring errors with the item they were about.
type KeychainError struct {
	Op      string // "query", "describe"
	Service string
	Account string
	Err     error
}

func (e *KeychainError) Error() string {
	return fmt.Sprintf("keychain %s error for %s/%s: %v", e.Op, e.Service, e.Account, e.Err)
}

func (e *KeychainError) Unwrap() error {
	return e.Err
}

// Keychain sentinel errors
var (
	ErrKeychainItemNotFound        = errors.New("keychain item not found")
	ErrKeychainAccessDenied        = errors.New("keychain access denied")
	ErrKeychainUnsupportedPlatform = errors.New("keychain not supported on this platform")
	ErrKeychainHeadless            = errors.New("keychain requires GUI environment for authentication")
)

// IsNotFound reports whether err, or anything it wraps, is a
// provider.NotFoundError.
func IsNotFound(err error) bool {
	var nf *provider.NotFoundError
	return asNotFound(err, &nf)
}

func asNotFound(err error, target **provider.NotFoundError) bool {
	return errors.As(err, target)
}

// IsAuth reports whether err is a provider.AuthError.
func IsAuth(err error) bool {
	var ae *provider.AuthError
	return errors.As(err, &ae)
}
