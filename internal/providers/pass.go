package providers

import (
	"context"
	"fmt"
	"strings"

	dserrors "github.com/systmms/acctexport/internal/errors"
	pkgexec "github.com/systmms/acctexport/pkg/exec"
	"github.com/systmms/acctexport/pkg/provider"
)

// PassProvider reads entries from a pass (zx2c4) password store.
//
// The first line of an entry is the secret. A Reference.Field selects one
// of the following "key: value" lines instead, e.g. the "login" line.
type PassProvider struct {
	name     string
	config   PassConfig
	executor pkgexec.CommandExecutor
}

// PassConfig configures the pass store.
type PassConfig struct {
	PasswordStore string `yaml:"password_store,omitempty"` // PASSWORD_STORE_DIR
	GpgKey        string `yaml:"gpg_key,omitempty"`        // PASSWORD_STORE_KEY
}

// NewPassProvider creates a pass store that runs the real pass binary.
func NewPassProvider(name string, config PassConfig) *PassProvider {
	return NewPassProviderWithExecutor(name, config, pkgexec.DefaultExecutor())
}

// NewPassProviderWithExecutor creates a pass store on top of executor.
func NewPassProviderWithExecutor(name string, config PassConfig, executor pkgexec.CommandExecutor) *PassProvider {
	return &PassProvider{name: name, config: config, executor: executor}
}

// Name returns the store name.
func (p *PassProvider) Name() string {
	return p.name
}

// Capabilities returns the store capabilities.
func (p *PassProvider) Capabilities() provider.Capabilities {
	return provider.Capabilities{
		SupportsMetadata: true,
		RequiresAuth:     true,
		AuthMethods:      []string{"gpg"},
	}
}

// Validate checks that pass is installed and the store can be listed.
func (p *PassProvider) Validate(ctx context.Context) error {
	if _, err := p.executor.LookPath("pass"); err != nil {
		return dserrors.UserError{
			Message:    "pass CLI not found",
			Suggestion: "Install pass: https://www.passwordstore.org/ (brew install pass, apt install pass, etc.)",
			Err:        err,
		}
	}
	if _, stderr, err := p.run(ctx, "ls"); err != nil {
		return dserrors.UserError{
			Message:    "Failed to access pass password store",
			Details:    strings.TrimSpace(string(stderr)),
			Suggestion: "Initialize pass with 'pass init <gpg-key-id>' or check that your GPG key is available",
			Err:        err,
		}
	}
	return nil
}

// Resolve decrypts one entry.
func (p *PassProvider) Resolve(ctx context.Context, ref provider.Reference) (provider.SecretValue, error) {
	body, err := p.show(ctx, ref.Key)
	if err != nil {
		return provider.SecretValue{}, err
	}

	lines := strings.Split(strings.TrimRight(body, "\n"), "\n")
	value := lines[0]
	if ref.Field != "" {
		v, ok := passField(lines[1:], ref.Field)
		if !ok {
			return provider.SecretValue{}, &provider.NotFoundError{Provider: p.name, Key: ref.Key + "#" + ref.Field}
		}
		value = v
	}

	return provider.SecretValue{
		Value:    value,
		Metadata: map[string]string{"path": ref.Key},
	}, nil
}

// Describe reports whether an entry exists and how many lines it has.
func (p *PassProvider) Describe(ctx context.Context, ref provider.Reference) (provider.Metadata, error) {
	body, err := p.show(ctx, ref.Key)
	if err != nil {
		var nf *provider.NotFoundError
		if asNotFound(err, &nf) {
			return provider.Metadata{Exists: false}, nil
		}
		return provider.Metadata{}, err
	}

	kind := "password"
	if strings.Count(strings.TrimRight(body, "\n"), "\n") > 0 {
		kind = "password_with_metadata"
	}
	tags := map[string]string{"path": ref.Key}
	if i := strings.LastIndex(ref.Key, "/"); i > 0 {
		tags["folder"] = ref.Key[:i]
	}
	return provider.Metadata{Exists: true, Size: len(body), Type: kind, Tags: tags}, nil
}

func (p *PassProvider) show(ctx context.Context, path string) (string, error) {
	stdout, stderr, err := p.run(ctx, "show", path)
	if err == nil {
		return string(stdout), nil
	}
	if strings.Contains(string(stderr), "is not in the password store") {
		return "", &provider.NotFoundError{Provider: p.name, Key: path}
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	return "", fmt.Errorf("pass show %s: %w: %s", path, err, strings.TrimSpace(string(stderr)))
}

// run invokes pass, passing store overrides through env(1) so the executor
// never needs a shell.
func (p *PassProvider) run(ctx context.Context, args ...string) ([]byte, []byte, error) {
	var envs []string
	if p.config.PasswordStore != "" {
		envs = append(envs, "PASSWORD_STORE_DIR="+p.config.PasswordStore)
	}
	if p.config.GpgKey != "" {
		envs = append(envs, "PASSWORD_STORE_KEY="+p.config.GpgKey)
	}
	if len(envs) == 0 {
		return p.executor.Execute(ctx, "pass", args...)
	}
	return p.executor.Execute(ctx, "env", append(append(envs, "pass"), args...)...)
}

func passField(lines []string, field string) (string, bool) {
	for _, line := range lines {
		k, v, ok := strings.Cut(line, ":")
		if ok && strings.EqualFold(strings.TrimSpace(k), field) {
			return strings.TrimSpace(v), true
		}
	}
	return "", false
}
