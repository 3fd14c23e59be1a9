// Package resolve expands account templates and fetches secrets from the
// configured secret stores.
package resolve

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	dserrors "github.com/systmms/acctexport/internal/errors"
	"github.com/systmms/acctexport/internal/logging"
	"github.com/systmms/acctexport/pkg/provider"
)

// Resolver owns the secret stores of a run, keyed by store name.
type Resolver struct {
	logger *logging.Logger

	mu     sync.RWMutex
	stores map[string]storeEntry
}

type storeEntry struct {
	provider provider.Provider
	timeout  time.Duration
}

// New creates a resolver with no stores.
func New(logger *logging.Logger) *Resolver {
	return &Resolver{
		logger: logger,
		stores: make(map[string]storeEntry),
	}
}

// RegisterStore makes p available under p.Name(). Calls to it are bounded
// by timeout; zero means no per-call limit.
func (r *Resolver) RegisterStore(p provider.Provider, timeout time.Duration) {
	r.mu.Lock()
	r.stores[p.Name()] = storeEntry{provider: p, timeout: timeout}
	r.mu.Unlock()
	r.logger.Debug("Registered secret store: %s (timeout %s)", p.Name(), timeout)
}

// GetStore returns a registered store.
func (r *Resolver) GetStore(name string) (provider.Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.stores[name]
	return e.provider, ok
}

// StoreNames returns the registered store names, sorted.
func (r *Resolver) StoreNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.stores))
	for name := range r.stores {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidateStore checks that a store is usable, within its timeout.
func (r *Resolver) ValidateStore(ctx context.Context, name string) error {
	e, err := r.entry(name)
	if err != nil {
		return err
	}
	callCtx, cancel := withStoreTimeout(ctx, e.timeout)
	defer cancel()

	if err := e.provider.Validate(callCtx); err != nil {
		if terr := timeoutError(ctx, err, name, e.timeout); terr != err {
			return terr
		}
		return dserrors.ProviderError(name, "validate", err)
	}
	return nil
}

// Secret describes where one account secret comes from.
type Secret struct {
	// Name is used in messages only.
	Name string

	// From is a store:// reference. When empty, Literal is the value.
	From    string
	Literal string

	Transform string
	Optional  bool
}

// Resolved is the outcome of resolving a Secret.
type Resolved struct {
	Value       string
	Source      string
	Transformed bool

	// Missing is set for an optional secret that could not be fetched.
	Missing bool
}

// ResolveSecret fetches s and applies its transforms. An optional secret
// whose fetch fails resolves to the empty string, unless ctx itself was
// cancelled.
func (r *Resolver) ResolveSecret(ctx context.Context, s Secret) (Resolved, error) {
	var res Resolved
	if s.From == "" {
		res = Resolved{Value: s.Literal, Source: "literal"}
	} else {
		value, source, err := r.fetch(ctx, s.From)
		if err != nil {
			if s.Optional && ctx.Err() == nil {
				r.logger.Debug("Optional secret %s unavailable: %v", s.Name, err)
				return Resolved{Source: s.From, Missing: true}, nil
			}
			return Resolved{}, err
		}
		res = Resolved{Value: value, Source: source}
	}

	if s.Transform != "" {
		value, err := ApplyTransform(res.Value, s.Transform)
		if err != nil {
			return Resolved{}, dserrors.UserError{
				Message:    fmt.Sprintf("Transform failed for secret '%s'", s.Name),
				Details:    err.Error(),
				Suggestion: "Check the transform syntax. Available transforms: " + TransformNames,
				Err:        err,
			}
		}
		res.Value = value
		res.Transformed = true
	}
	return res, nil
}

func (r *Resolver) fetch(ctx context.Context, from string) (string, string, error) {
	ref, e, err := r.target(from)
	if err != nil {
		return "", "", err
	}

	callCtx, cancel := withStoreTimeout(ctx, e.timeout)
	defer cancel()

	secret, err := e.provider.Resolve(callCtx, ref.reference())
	if err != nil {
		return "", "", r.storeError(ctx, err, ref, e, "resolve")
	}

	source := ref.Store + ":" + ref.Path
	if secret.Version != "" {
		source += "@" + secret.Version
	}
	r.logger.Debug("Fetched secret from %s", source)
	return secret.Value, source, nil
}

// DescribeSecret reports what the store knows about s without fetching its
// value. Literal secrets always exist.
func (r *Resolver) DescribeSecret(ctx context.Context, s Secret) (provider.Metadata, error) {
	if s.From == "" {
		return provider.Metadata{Exists: true, Size: len(s.Literal), Type: "literal"}, nil
	}
	ref, e, err := r.target(s.From)
	if err != nil {
		return provider.Metadata{}, err
	}

	callCtx, cancel := withStoreTimeout(ctx, e.timeout)
	defer cancel()

	meta, err := e.provider.Describe(callCtx, ref.reference())
	if err != nil {
		return provider.Metadata{}, r.storeError(ctx, err, ref, e, "describe")
	}
	return meta, nil
}

// target parses from and finds its store. A version pin on a store that
// keeps no history is rejected.
func (r *Resolver) target(from string) (StoreRef, storeEntry, error) {
	ref, err := ParseStoreRef(from)
	if err != nil {
		return StoreRef{}, storeEntry{}, err
	}
	e, err := r.entry(ref.Store)
	if err != nil {
		return StoreRef{}, storeEntry{}, err
	}
	if ref.Version != "" && !e.provider.Capabilities().SupportsVersioning {
		return StoreRef{}, storeEntry{}, dserrors.ConfigError{
			Field:      "from",
			Value:      from,
			Message:    fmt.Sprintf("secret store %q does not keep versions", ref.Store),
			Suggestion: "Remove the ?version= parameter or use a store with version history",
		}
	}
	return ref, e, nil
}

func (r *Resolver) storeError(ctx context.Context, err error, ref StoreRef, e storeEntry, op string) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if terr := timeoutError(ctx, err, ref.Store, e.timeout); terr != err {
		return terr
	}
	return dserrors.ProviderError(ref.Store, op, err)
}

func (r *Resolver) entry(name string) (storeEntry, error) {
	r.mu.RLock()
	e, ok := r.stores[name]
	r.mu.RUnlock()
	if ok {
		return e, nil
	}

	configured := "none"
	if names := r.StoreNames(); len(names) > 0 {
		configured = strings.Join(names, ", ")
	}
	return storeEntry{}, dserrors.ConfigError{
		Field:      "secretStores",
		Value:      name,
		Message:    "secret store not configured",
		Suggestion: fmt.Sprintf("Add '%s' to the secretStores section of the settings file (configured: %s)", name, configured),
	}
}
