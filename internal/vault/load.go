package vault

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"filippo.io/age"
	"filippo.io/age/armor"
	"gopkg.in/yaml.v3"

	"github.com/systmms/acctexport/internal/config"
	dserrors "github.com/systmms/acctexport/internal/errors"
	"github.com/systmms/acctexport/internal/resolve"
)

type accountFile struct {
	Accounts []accountEntry `yaml:"accounts"`
}

type accountEntry struct {
	Name    string                 `yaml:"name"`
	Class   string                 `yaml:"class"`
	Desc    *string                `yaml:"desc"`
	Fields  map[string]yaml.Node   `yaml:"fields"`
	Secrets map[string]secretEntry `yaml:"secrets"`
}

type secretEntry struct {
	From      string  `yaml:"from"`
	Literal   *string `yaml:"literal"`
	Transform string  `yaml:"transform"`
	Optional  bool    `yaml:"optional"`
}

// readAccountFile returns the plaintext of path, decrypting .age files with
// the configured identity.
func (s *Store) readAccountFile(path string) ([]byte, error) {
	if loose, ok := config.LooseBits(path, s.settings.AccountFileMask); ok {
		s.logger.Warn("%s: file permissions are too loose (mode bits %03o are set, mask is %s)",
			path, uint32(loose), s.settings.AccountFileMask)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, dserrors.ConfigError{
				File:       path,
				Message:    "account file not found",
				Suggestion: "Check the accounts_files entries of the settings file",
			}
		}
		return nil, &dserrors.IOError{Op: "read", Path: path, Err: err}
	}

	if !strings.HasSuffix(path, ".age") {
		return data, nil
	}
	return s.decrypt(path, data)
}

func (s *Store) decrypt(path string, data []byte) ([]byte, error) {
	identities, err := s.identities()
	if err != nil {
		return nil, err
	}

	var src io.Reader = bytes.NewReader(data)
	if bytes.HasPrefix(bytes.TrimSpace(data), []byte(armor.Header)) {
		src = armor.NewReader(bytes.NewReader(bytes.TrimSpace(data)))
	}
	r, err := age.Decrypt(src, identities...)
	if err != nil {
		return nil, dserrors.UserError{
			Message:    fmt.Sprintf("Failed to decrypt %s", path),
			Details:    err.Error(),
			Suggestion: "Check that age_identity_file holds a key the file was encrypted to",
			Err:        err,
		}
	}
	plain, err := io.ReadAll(r)
	if err != nil {
		return nil, &dserrors.IOError{Op: "decrypt", Path: path, Err: err}
	}
	return plain, nil
}

// identities loads age_identity_file once.
func (s *Store) identities() ([]age.Identity, error) {
	if s.ageIdentities != nil {
		return s.ageIdentities, nil
	}
	if s.settings.AgeIdentityFile == "" {
		return nil, dserrors.ConfigError{
			Field:      "age_identity_file",
			Message:    "encrypted account files need an age identity",
			Suggestion: "Set age_identity_file to the key created with age-keygen",
		}
	}

	path := s.settings.ResolvePath(s.settings.AgeIdentityFile)
	f, err := os.Open(path)
	if err != nil {
		return nil, &dserrors.IOError{Op: "open", Path: path, Err: err}
	}
	defer func() { _ = f.Close() }()

	ids, err := age.ParseIdentities(f)
	if err != nil {
		return nil, dserrors.ConfigError{
			File:    path,
			Field:   "age_identity_file",
			Message: "invalid age identity file: " + err.Error(),
		}
	}
	s.ageIdentities = ids
	return ids, nil
}

// parseAccounts validates and decodes one account file.
func parseAccounts(path string, data []byte) ([]*Account, error) {
	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, dserrors.ConfigError{
			File:       path,
			Message:    "invalid YAML syntax in account file",
			Suggestion: "Check for indentation errors, missing quotes, or invalid characters. Use a YAML validator",
		}
	}
	if doc == nil {
		return nil, nil
	}
	if problems := config.ValidateSchema(accountSchema, doc); len(problems) > 0 {
		return nil, dserrors.ConfigError{
			File:       path,
			Message:    "account file does not match the expected layout:\n  - " + strings.Join(problems, "\n  - "),
			Suggestion: "Each account needs a name; fields hold scalars or one-level mappings; secrets need exactly one of from or literal",
		}
	}

	var file accountFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, dserrors.ConfigError{File: path, Message: err.Error()}
	}

	accounts := make([]*Account, 0, len(file.Accounts))
	for _, entry := range file.Accounts {
		acct, err := entry.build(path)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, acct)
	}
	return accounts, nil
}

func (e accountEntry) build(path string) (*Account, error) {
	acct := &Account{
		name:       e.Name,
		class:      e.Class,
		file:       path,
		scalars:    make(map[string]string),
		composites: make(map[string]map[string]string),
		secrets:    make(map[string]resolve.Secret),
	}
	if acct.class == "" {
		acct.class = DefaultClass
	}

	conflict := func(field, msg string) error {
		return dserrors.ConfigError{
			File:    path,
			Field:   e.Name + "." + field,
			Message: msg,
		}
	}

	for field, node := range e.Fields {
		n := deref(&node)
		if n.Kind == yaml.MappingNode {
			members := make(map[string]string, len(n.Content)/2)
			for i := 0; i+1 < len(n.Content); i += 2 {
				members[n.Content[i].Value] = scalarText(n.Content[i+1])
			}
			acct.composites[field] = members
			continue
		}
		acct.scalars[field] = scalarText(n)
	}
	if e.Desc != nil {
		if _, dup := e.Fields["desc"]; dup {
			return nil, conflict("desc", "desc is given both as a key and as a field")
		}
		acct.scalars["desc"] = *e.Desc
	}

	for name, sec := range e.Secrets {
		if _, dup := e.Fields[name]; dup {
			return nil, conflict(name, "name is used both as a field and as a secret")
		}
		secret := resolve.Secret{
			Name:      e.Name + "." + name,
			From:      sec.From,
			Transform: sec.Transform,
			Optional:  sec.Optional,
		}
		if sec.Literal != nil {
			secret.Literal = *sec.Literal
		}
		acct.secrets[name] = secret
	}
	return acct, nil
}

// scalarText returns a scalar exactly as written, so 007 stays 007 and
// 1.10 stays 1.10.
func scalarText(n *yaml.Node) string {
	n = deref(n)
	if n.ShortTag() == "!!null" {
		return ""
	}
	return n.Value
}

func deref(n *yaml.Node) *yaml.Node {
	for n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}
	return n
}
