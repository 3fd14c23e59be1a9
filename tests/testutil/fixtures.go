package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// Workspace is a temporary directory holding a settings file and account
// files, laid out the way an operator would keep them.
type Workspace struct {
	Dir string
	t   *testing.T
}

// NewWorkspace creates an empty workspace under t.TempDir().
func NewWorkspace(t *testing.T) *Workspace {
	t.Helper()
	return &Workspace{Dir: t.TempDir(), t: t}
}

// WriteFile writes name (relative to the workspace) with the given mode
// and returns its absolute path. The mode is applied after writing so the
// process umask does not interfere.
func (w *Workspace) WriteFile(name, content string, mode os.FileMode) string {
	w.t.Helper()
	path := filepath.Join(w.Dir, name)
	require.NoError(w.t, os.MkdirAll(filepath.Dir(path), 0o700))
	require.NoError(w.t, os.WriteFile(path, []byte(content), mode))
	require.NoError(w.t, os.Chmod(path, mode))
	return path
}

// WriteSettings writes config.yaml with mode 0600.
func (w *Workspace) WriteSettings(content string) string {
	w.t.Helper()
	return w.WriteFile("config.yaml", content, 0o600)
}

// WriteAccounts writes an account file with mode 0600.
func (w *Workspace) WriteAccounts(name, content string) string {
	w.t.Helper()
	return w.WriteFile(name, content, 0o600)
}

// Path returns the absolute path of name inside the workspace.
func (w *Workspace) Path(name string) string {
	return filepath.Join(w.Dir, name)
}

// SampleAccounts is an account file with one exporting account (acme), one
// without the export field (plain), and one with an unknown export key
// (legacy). The acme password comes from the "vault" literal store.
const SampleAccounts = `accounts:
  - name: acme
    class: Website
    desc: ACME customer portal
    fields:
      username: bob
      urls:
        login: https://acme.example.com/login
      bitwarden:
        name: ACME
        login_username: "{username}"
        login_password: "{passcode}"
        login_uri: "{urls.login}"
    secrets:
      passcode:
        from: store://vault/acme/bob
  - name: plain
    fields:
      username: alice
  - name: legacy
    fields:
      bitwarden:
        name: Legacy
        unknown_field: x
`

// SampleSettings goes with SampleAccounts.
const SampleSettings = `accounts_files:
  - accounts.yaml
secretStores:
  vault:
    type: literal
    values:
      acme/bob: Xk92!pQ
`
