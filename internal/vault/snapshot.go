package vault

import (
	"context"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/systmms/acctexport/pkg/provider"
)

type snapshot struct {
	Created  string            `yaml:"created"`
	Accounts []snapshotAccount `yaml:"accounts"`
}

type snapshotAccount struct {
	Name    string                 `yaml:"name"`
	Class   string                 `yaml:"class"`
	Desc    string                 `yaml:"desc,omitempty"`
	File    string                 `yaml:"file"`
	Fields  map[string]interface{} `yaml:"fields,omitempty"`
	Secrets map[string]string      `yaml:"secrets,omitempty"`
}

// Snapshot renders every account as YAML with its secrets resolved. The
// result holds plaintext secrets.
func (s *Store) Snapshot(ctx context.Context, now time.Time) ([]byte, error) {
	doc := snapshot{
		Created:  now.Format(time.RFC3339),
		Accounts: make([]snapshotAccount, 0, len(s.accounts)),
	}
	for _, acct := range s.accounts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		entry := snapshotAccount{
			Name:  acct.Name(),
			Class: acct.Class(),
			Desc:  acct.Description(),
			File:  acct.File(),
		}
		for name, v := range acct.scalars {
			if name == "desc" {
				continue
			}
			entry.field(name, v)
		}
		for name, members := range acct.composites {
			entry.field(name, members)
		}
		for _, name := range acct.SecretNames() {
			v, err := s.secret(ctx, acct, name, acct.secrets[name])
			if err != nil {
				return nil, err
			}
			if entry.Secrets == nil {
				entry.Secrets = make(map[string]string)
			}
			entry.Secrets[name] = v
		}
		doc.Accounts = append(doc.Accounts, entry)
	}
	return yaml.Marshal(doc)
}

func (a *snapshotAccount) field(name string, v interface{}) {
	if a.Fields == nil {
		a.Fields = make(map[string]interface{})
	}
	a.Fields[name] = v
}

// DescribeSecrets asks the secret stores about every account secret
// without fetching values. visit is called once per secret; a store
// failure is passed to visit rather than returned.
func (s *Store) DescribeSecrets(ctx context.Context, visit func(acct *Account, name string, meta provider.Metadata, err error)) error {
	for _, acct := range s.accounts {
		for _, name := range acct.SecretNames() {
			if err := ctx.Err(); err != nil {
				return err
			}
			meta, err := s.resolver.DescribeSecret(ctx, acct.secrets[name])
			visit(acct, name, meta, err)
		}
	}
	return nil
}
