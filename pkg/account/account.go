// Package account defines the narrow contract between acctexport and the
// system that owns account records.
//
// The exporter never sees how accounts are stored or how secrets are
// obtained. It relies on three capabilities of an Account (name lookup,
// scalar lookup, composite lookup) and on a resolver that expands a template
// against an account. Anything exposing that capability set can feed the
// exporter, including test doubles.
//
// # Templates
//
// Template values are opaque strings evaluated lazily against an account.
// The resolver decides the syntax; the bundled account store expands
// placeholders such as {username} or {urls.login}. Evaluation may fetch
// secrets from external stores and therefore may fail.
//
// # Example
//
//	for acct, err := range p.Accounts(ctx) {
//	    if err != nil {
//	        return err
//	    }
//	    spec, ok := acct.Composite("bitwarden")
//	    if !ok {
//	        continue
//	    }
//	    user, err := p.Resolve(ctx, spec["login_username"], acct)
//	    ...
//	}
package account

import (
	"context"
	"fmt"
	"iter"
)

// Account is a read-only account record owned by a Provider.
type Account interface {
	// Name returns the account's unique name.
	Name() string

	// Scalar returns the value of a scalar field.
	// The boolean is false when the field is absent or is composite.
	Scalar(field string) (string, bool)

	// Composite returns a copy of a composite field's members.
	// The boolean is false when the field is absent or is scalar.
	Composite(field string) (map[string]string, bool)
}

// ResolveFunc expands template with acct as its resolution context.
type ResolveFunc func(ctx context.Context, template string, acct Account) (string, error)

// Provider supplies accounts and resolves templates against them.
type Provider interface {
	// Accounts returns a lazy, finite sequence of every known account.
	// A non-nil error ends the sequence.
	Accounts(ctx context.Context) iter.Seq2[Account, error]

	// Resolve expands template against acct.
	Resolve(ctx context.Context, template string, acct Account) (string, error)
}

// ResolutionError reports that a template could not be expanded for an account.
type ResolutionError struct {
	Account  string
	Field    string
	Template string
	Err      error
}

func (e *ResolutionError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: cannot resolve %s (%q): %v", e.Account, e.Field, e.Template, e.Err)
	}
	return fmt.Sprintf("%s: cannot resolve %q: %v", e.Account, e.Template, e.Err)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// Static is an in-memory Account, convenient for tests and adapters.
type Static struct {
	AccountName string
	Scalars     map[string]string
	Composites  map[string]map[string]string
}

// Name returns the account name.
func (s Static) Name() string {
	return s.AccountName
}

// Scalar returns a scalar field.
func (s Static) Scalar(field string) (string, bool) {
	v, ok := s.Scalars[field]
	return v, ok
}

// Composite returns a copy of a composite field.
func (s Static) Composite(field string) (map[string]string, bool) {
	members, ok := s.Composites[field]
	if !ok {
		return nil, false
	}
	out := make(map[string]string, len(members))
	for k, v := range members {
		out[k] = v
	}
	return out, true
}

// Slice adapts a fixed list of accounts to the sequence form used by Provider.
func Slice(accounts ...Account) iter.Seq2[Account, error] {
	return func(yield func(Account, error) bool) {
		for _, a := range accounts {
			if !yield(a, nil) {
				return
			}
		}
	}
}

var _ Account = Static{}
