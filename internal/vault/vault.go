// Package vault is the account store behind acctexport: it loads account
// files, indexes accounts by name and expands templates against them,
// fetching secrets from the configured secret stores on demand.
package vault

import (
	"context"
	"fmt"
	"iter"
	"sort"
	"sync"
	"time"

	"filippo.io/age"

	"github.com/systmms/acctexport/internal/config"
	dserrors "github.com/systmms/acctexport/internal/errors"
	"github.com/systmms/acctexport/internal/logging"
	"github.com/systmms/acctexport/internal/providers"
	"github.com/systmms/acctexport/internal/resolve"
	"github.com/systmms/acctexport/internal/secure"
	"github.com/systmms/acctexport/pkg/account"
)

// Store is an account.Provider over YAML account files.
type Store struct {
	settings *config.Settings
	logger   *logging.Logger
	resolver *resolve.Resolver

	ageIdentities []age.Identity

	accounts []*Account
	byName   map[string]*Account

	mu    sync.Mutex
	cache map[string]*secure.SecureBuffer
}

var _ account.Provider = (*Store)(nil)

// Option configures Open.
type Option func(*options)

type options struct {
	registry *providers.Registry
}

// WithRegistry builds secret stores from r instead of the built-in
// registry.
func WithRegistry(r *providers.Registry) Option {
	return func(o *options) {
		o.registry = r
	}
}

// Open creates the configured secret stores and loads every account file.
func Open(ctx context.Context, settings *config.Settings, logger *logging.Logger, opts ...Option) (*Store, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.registry == nil {
		o.registry = providers.NewRegistry()
	}

	s := &Store{
		settings: settings,
		logger:   logger,
		resolver: resolve.New(logger),
		byName:   make(map[string]*Account),
		cache:    make(map[string]*secure.SecureBuffer),
	}

	names := make([]string, 0, len(settings.SecretStores))
	for name := range settings.SecretStores {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		storeCfg, err := settings.GetSecretStore(name)
		if err != nil {
			return nil, err
		}
		p, err := o.registry.CreateProvider(name, storeCfg)
		if err != nil {
			return nil, dserrors.ConfigError{
				Field:      "secretStores." + name,
				Message:    err.Error(),
				Suggestion: fmt.Sprintf("Supported store types: %v", o.registry.GetSupportedTypes()),
			}
		}
		s.resolver.RegisterStore(p, time.Duration(storeCfg.Timeout())*time.Millisecond)
	}

	for _, path := range settings.AccountFiles() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := s.readAccountFile(path)
		if err != nil {
			return nil, err
		}
		accounts, err := parseAccounts(path, data)
		if err != nil {
			return nil, err
		}
		for _, acct := range accounts {
			if prev, dup := s.byName[acct.name]; dup {
				return nil, dserrors.ConfigError{
					File:       path,
					Field:      "name",
					Value:      acct.name,
					Message:    "duplicate account name",
					Suggestion: "The account is also defined in " + prev.file,
				}
			}
			s.byName[acct.name] = acct
			s.accounts = append(s.accounts, acct)
		}
		logger.Debug("Loaded %d accounts from %s", len(accounts), path)
	}

	return s, nil
}

// Accounts yields every account in file order, then declaration order.
func (s *Store) Accounts(ctx context.Context) iter.Seq2[account.Account, error] {
	return func(yield func(account.Account, error) bool) {
		for _, acct := range s.accounts {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			if !yield(acct, nil) {
				return
			}
		}
	}
}

// Get returns the named account.
func (s *Store) Get(name string) (*Account, bool) {
	acct, ok := s.byName[name]
	return acct, ok
}

// Resolver returns the secret resolver built from the settings.
func (s *Store) Resolver() *resolve.Resolver {
	return s.resolver
}

// Resolve expands template against acct.
//
// {field} is a scalar field, then a secret, then one of the pseudo-fields
// name and class. {field.key} and {field[key]} select a composite member.
// Secrets and class are only available on accounts loaded by this store;
// other Account implementations resolve against their own fields.
func (s *Store) Resolve(ctx context.Context, template string, acct account.Account) (string, error) {
	own, _ := acct.(*Account)
	return resolve.Expand(ctx, template, func(ctx context.Context, p resolve.Placeholder) (string, error) {
		if p.Keyed {
			return composite(acct, p)
		}
		if v, ok := acct.Scalar(p.Field); ok {
			return v, nil
		}
		if own != nil {
			if secret, ok := own.secrets[p.Field]; ok {
				return s.secret(ctx, own, p.Field, secret)
			}
		}
		if _, ok := acct.Composite(p.Field); ok {
			return "", fmt.Errorf("field %q is composite; select a member with {%s.key}", p.Field, p.Field)
		}
		switch p.Field {
		case "name":
			return acct.Name(), nil
		case "class":
			if own != nil {
				return own.class, nil
			}
		}
		return "", fmt.Errorf("unknown field %q", p.Field)
	})
}

func composite(acct account.Account, p resolve.Placeholder) (string, error) {
	members, ok := acct.Composite(p.Field)
	if !ok {
		if _, scalar := acct.Scalar(p.Field); scalar {
			return "", fmt.Errorf("field %q is not composite", p.Field)
		}
		return "", fmt.Errorf("unknown field %q", p.Field)
	}
	v, ok := members[p.Key]
	if !ok {
		return "", fmt.Errorf("field %q has no member %q", p.Field, p.Key)
	}
	return v, nil
}

// secret resolves a secret once per run and keeps it in an enclave.
func (s *Store) secret(ctx context.Context, acct *Account, name string, spec resolve.Secret) (string, error) {
	key := acct.name + "\x00" + name

	s.mu.Lock()
	buf, cached := s.cache[key]
	s.mu.Unlock()
	if cached {
		return buf.Reveal()
	}

	res, err := s.resolver.ResolveSecret(ctx, spec)
	if err != nil {
		return "", err
	}
	if res.Missing {
		s.logger.Warn("%s: optional secret %s is unavailable, using an empty value", acct.name, name)
	} else {
		s.logger.AddSecret(res.Value)
		s.logger.Debug("%s: secret %s = %s from %s", acct.name, name, logging.Secret(res.Value), res.Source)
	}

	buf, err = secure.NewSecureString(res.Value)
	if err != nil {
		return "", fmt.Errorf("failed to protect secret %s: %w", name, err)
	}
	s.mu.Lock()
	s.cache[key] = buf
	s.mu.Unlock()
	return res.Value, nil
}

// Close destroys every cached secret.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, buf := range s.cache {
		buf.Destroy()
		delete(s.cache, key)
	}
}
