package fakes

import (
	"context"
	"iter"
	"sync"

	"github.com/systmms/acctexport/pkg/account"
)

// FakeAccountProvider is an account.Provider over a fixed list.
//
// Resolve returns Results[template] when present, fails with
// Errors[template] when present, and otherwise echoes the template.
type FakeAccountProvider struct {
	List    []account.Account
	Results map[string]string
	Errors  map[string]error

	// FailAfter, when set, ends the sequence with SequenceErr after that
	// many accounts.
	FailAfter   int
	SequenceErr error

	mu       sync.Mutex
	resolved []string
}

var _ account.Provider = (*FakeAccountProvider)(nil)

// NewFakeAccountProvider returns a provider serving accounts.
func NewFakeAccountProvider(accounts ...account.Account) *FakeAccountProvider {
	return &FakeAccountProvider{
		List:    accounts,
		Results: map[string]string{},
		Errors:  map[string]error{},
	}
}

// Accounts implements account.Provider.
func (f *FakeAccountProvider) Accounts(ctx context.Context) iter.Seq2[account.Account, error] {
	return func(yield func(account.Account, error) bool) {
		for i, acct := range f.List {
			if f.SequenceErr != nil && i == f.FailAfter {
				yield(nil, f.SequenceErr)
				return
			}
			if !yield(acct, nil) {
				return
			}
		}
		if f.SequenceErr != nil && f.FailAfter >= len(f.List) {
			yield(nil, f.SequenceErr)
		}
	}
}

// Resolve implements account.Provider.
func (f *FakeAccountProvider) Resolve(ctx context.Context, template string, acct account.Account) (string, error) {
	f.mu.Lock()
	f.resolved = append(f.resolved, acct.Name()+":"+template)
	f.mu.Unlock()

	if err, ok := f.Errors[template]; ok {
		return "", err
	}
	if v, ok := f.Results[template]; ok {
		return v, nil
	}
	return template, nil
}

// Resolved returns "account:template" for every Resolve call, in order.
func (f *FakeAccountProvider) Resolved() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.resolved...)
}
