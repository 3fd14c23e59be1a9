package vault

import (
	"sort"

	"github.com/systmms/acctexport/internal/resolve"
	"github.com/systmms/acctexport/pkg/account"
)

// DefaultClass is the class of accounts that do not name one.
const DefaultClass = "Account"

// Account is one record from an account file.
type Account struct {
	name  string
	class string
	file  string

	scalars    map[string]string
	composites map[string]map[string]string
	secrets    map[string]resolve.Secret
}

var _ account.Account = (*Account)(nil)

// Name returns the account's unique name.
func (a *Account) Name() string { return a.name }

// Class returns the account class, DefaultClass when unset.
func (a *Account) Class() string { return a.class }

// Description returns the desc scalar.
func (a *Account) Description() string { return a.scalars["desc"] }

// File returns the account file the record was read from.
func (a *Account) File() string { return a.file }

// Scalar returns a scalar field. Secrets are not scalars; they are only
// reachable through templates.
func (a *Account) Scalar(field string) (string, bool) {
	v, ok := a.scalars[field]
	return v, ok
}

// Composite returns a copy of a composite field.
func (a *Account) Composite(field string) (map[string]string, bool) {
	members, ok := a.composites[field]
	if !ok {
		return nil, false
	}
	out := make(map[string]string, len(members))
	for k, v := range members {
		out[k] = v
	}
	return out, true
}

// SecretNames returns the names of the account's secrets, sorted.
func (a *Account) SecretNames() []string {
	names := make([]string, 0, len(a.secrets))
	for name := range a.secrets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
