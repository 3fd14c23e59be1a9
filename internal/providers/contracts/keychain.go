// Package contracts holds the client interfaces secret stores are built on,
// so tests can swap the real OS or cloud client for a fake.
package contracts

// KeychainClient is the subset of the OS keyring a keychain store uses.
type KeychainClient interface {
	// Get returns the secret stored for service and user.
	Get(service, user string) (string, error)

	// Available reports whether a keyring backend exists on this host.
	Available() bool

	// Headless reports whether the session cannot show an unlock prompt.
	Headless() bool
}
