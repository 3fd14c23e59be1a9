package resolve

import (
	"fmt"
	"net/url"
	"strings"

	dserrors "github.com/systmms/acctexport/internal/errors"
	"github.com/systmms/acctexport/pkg/provider"
)

// RefScheme prefixes every secret store reference.
const RefScheme = "store://"

// StoreRef is a parsed secret store reference:
//
//	store://<store>/<path>[#field][?version=v]
//
// Examples:
//
//	store://keychain/acme/bob
//	store://aws/prod/acme#.password
//	store://ssm/accounts/acme?version=3
type StoreRef struct {
	Store   string
	Path    string
	Field   string
	Version string
}

// ParseStoreRef parses a store:// reference.
func ParseStoreRef(uri string) (StoreRef, error) {
	invalid := func(msg string) (StoreRef, error) {
		return StoreRef{}, dserrors.ConfigError{
			Field:      "from",
			Value:      uri,
			Message:    msg,
			Suggestion: "Use store://<store>/<path>, e.g. store://keychain/acme/bob",
		}
	}

	rest, ok := strings.CutPrefix(uri, RefScheme)
	if !ok {
		return invalid("secret reference must start with " + RefScheme)
	}

	var ref StoreRef
	rest, query, hasQuery := strings.Cut(rest, "?")
	rest, ref.Field, _ = strings.Cut(rest, "#")
	ref.Store, ref.Path, _ = strings.Cut(rest, "/")

	if ref.Store == "" {
		return invalid("secret store name is required")
	}
	if ref.Path == "" {
		return invalid("secret path is required")
	}

	if hasQuery {
		params, err := url.ParseQuery(query)
		if err != nil {
			return invalid("invalid query parameters: " + err.Error())
		}
		for key := range params {
			if key != "version" {
				return invalid(fmt.Sprintf("unknown query parameter %q", key))
			}
		}
		ref.Version = params.Get("version")
	}
	return ref, nil
}

// String reconstructs the reference.
func (r StoreRef) String() string {
	s := RefScheme + r.Store + "/" + r.Path
	if r.Field != "" {
		s += "#" + r.Field
	}
	if r.Version != "" {
		s += "?version=" + url.QueryEscape(r.Version)
	}
	return s
}

func (r StoreRef) reference() provider.Reference {
	return provider.Reference{
		Provider: r.Store,
		Key:      r.Path,
		Version:  r.Version,
		Field:    r.Field,
	}
}
