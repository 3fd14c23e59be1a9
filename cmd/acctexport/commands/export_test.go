package commands

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"filippo.io/age"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/systmms/acctexport/internal/config"
	dserrors "github.com/systmms/acctexport/internal/errors"
	"github.com/systmms/acctexport/pkg/account"
	"github.com/systmms/acctexport/tests/testutil"
)

const (
	header  = "folder,favorite,type,name,notes,fields,login_uri,login_username,login_password,login_totp\n"
	acmeRow = ",,,ACME,,,https://acme.example.com/login,bob,Xk92!pQ,\n"
	legacy  = ",,,Legacy,,,,,,\n"
)

type run struct {
	ws     *testutil.Workspace
	out    string
	stdout bytes.Buffer
	stderr bytes.Buffer
}

func newRun(t *testing.T, settings string) *run {
	t.Helper()
	r := &run{ws: testutil.NewWorkspace(t), out: t.TempDir()}
	r.ws.WriteAccounts("accounts.yaml", testutil.SampleAccounts)
	r.ws.WriteSettings(settings)
	return r
}

func (r *run) export(ctx context.Context) error {
	return Export(ctx, Options{
		Env:    config.Env{Config: r.ws.Path("config.yaml"), NoColor: true},
		Dir:    r.out,
		Stdout: &r.stdout,
		Stderr: &r.stderr,
	})
}

func (r *run) csv(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(r.out, "bitwarden.csv"))
	require.NoError(t, err)
	return string(data)
}

func TestExportEndToEnd(t *testing.T) {
	t.Parallel()

	r := newRun(t, testutil.SampleSettings+"metrics_file: acctexport.prom\nlog_file: acctexport.log\n")
	require.NoError(t, r.export(context.Background()))

	assert.Equal(t, header+acmeRow+legacy, r.csv(t))

	info, err := os.Stat(filepath.Join(r.out, "bitwarden.csv"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	assert.Contains(t, r.stdout.String(), "Exported 2 accounts to "+filepath.Join(r.out, "bitwarden.csv"))
	assert.Contains(t, r.stdout.String(), "plaintext passwords")
	assert.Contains(t, r.stderr.String(), `⚠ legacy: unknown field "unknown_field" in bitwarden, ignored`)
	assert.NotContains(t, r.stderr.String(), "Xk92!pQ")

	prom, err := os.ReadFile(r.ws.Path("acctexport.prom"))
	require.NoError(t, err)
	assert.Contains(t, string(prom), "acctexport_accounts_scanned 3")
	assert.Contains(t, string(prom), "acctexport_rows_written 2")
	assert.Contains(t, string(prom), "acctexport_warnings 1")
	assert.Contains(t, string(prom), "acctexport_last_run_success 1")

	logText, err := os.ReadFile(r.ws.Path("acctexport.log"))
	require.NoError(t, err)
	assert.Contains(t, string(logText), "# run ")
	assert.Contains(t, string(logText), "unknown_field")
	assert.NotContains(t, string(logText), "Xk92!pQ")
}

func TestExportFailsFastOnMissingSecret(t *testing.T) {
	t.Parallel()

	settings := strings.Replace(testutil.SampleSettings, "acme/bob: Xk92!pQ", "other: value", 1) +
		"metrics_file: acctexport.prom\n"
	r := newRun(t, settings)

	err := r.export(context.Background())
	require.Error(t, err)

	var resErr *account.ResolutionError
	require.ErrorAs(t, err, &resErr)
	assert.Equal(t, "acme", resErr.Account)
	assert.Equal(t, "{passcode}", resErr.Template)
	assert.Equal(t, 1, dserrors.ExitCode(err))

	assert.Equal(t, header, r.csv(t))
	assert.Empty(t, r.stdout.String())

	prom, err := os.ReadFile(r.ws.Path("acctexport.prom"))
	require.NoError(t, err)
	assert.Contains(t, string(prom), "acctexport_last_run_success 0")
}

func TestExportInterrupted(t *testing.T) {
	t.Parallel()

	r := newRun(t, testutil.SampleSettings)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := r.export(ctx)
	assert.ErrorIs(t, err, dserrors.ErrInterrupted)
	assert.Equal(t, 130, dserrors.ExitCode(err))
	assert.Equal(t, "killed by user", err.Error())
}

func TestExportConfigErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		settings string
		contains string
	}{
		{"bad_yaml", "accounts_files: [", "invalid YAML syntax"},
		{"no_accounts", "accounts_files: []\n", "accounts_files"},
		{"missing_account_file", "accounts_files:\n  - nope.yaml\n", "account file not found"},
		{"unknown_store_type", "accounts_files:\n  - accounts.yaml\nsecretStores:\n  vault:\n    type: hashicorp\n", "secretStores.vault"},
		{"encrypted_log_without_recipients", testutil.SampleSettings + "log_file: run.log.age\n", "encryption_recipients"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := newRun(t, tt.settings)
			err := r.export(context.Background())
			require.Error(t, err)

			var cfgErr dserrors.ConfigError
			assert.ErrorAs(t, err, &cfgErr)
			assert.Contains(t, err.Error(), tt.contains)
			assert.Equal(t, 1, dserrors.ExitCode(err))
			assert.NoFileExists(t, filepath.Join(r.out, "bitwarden.csv"))
		})
	}
}

func TestExportMissingSettingsFile(t *testing.T) {
	t.Parallel()

	err := Export(context.Background(), Options{
		Env:    config.Env{Config: filepath.Join(t.TempDir(), "missing.yaml"), NoColor: true},
		Dir:    t.TempDir(),
		Stdout: &bytes.Buffer{},
		Stderr: &bytes.Buffer{},
	})

	var cfgErr dserrors.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "settings file not found", cfgErr.Message)
}

func TestExportUnwritableDirectory(t *testing.T) {
	t.Parallel()

	r := newRun(t, testutil.SampleSettings)
	r.out = filepath.Join(r.out, "missing")

	err := r.export(context.Background())

	var ioErr *dserrors.IOError
	require.ErrorAs(t, err, &ioErr)
	assert.Equal(t, "open", ioErr.Op)
	assert.Equal(t, 1, dserrors.ExitCode(err))
}

func TestExportDebugChecksStores(t *testing.T) {
	t.Parallel()

	r := newRun(t, testutil.SampleSettings)
	r.ws.WriteAccounts("accounts.yaml", testutil.SampleAccounts+`  - name: stale
    secrets:
      old: {from: store://vault/stale/carol}
`)
	err := Export(context.Background(), Options{
		Env:    config.Env{Config: r.ws.Path("config.yaml"), Debug: true, NoColor: true},
		Dir:    r.out,
		Stdout: &r.stdout,
		Stderr: &r.stderr,
	})
	require.NoError(t, err)

	assert.Contains(t, r.stderr.String(), "[DEBUG] Secret store vault is ready")
	assert.Contains(t, r.stderr.String(), "[DEBUG] stale ("+r.ws.Path("accounts.yaml")+"): secret old does not exist")
	assert.NotContains(t, r.stderr.String(), "secret passcode does not exist")
	assert.Contains(t, r.stderr.String(), "[DEBUG] Exported acme (ACME customer portal)")
	assert.NotContains(t, r.stderr.String(), "Xk92!pQ")
}

func TestExportWritesArchive(t *testing.T) {
	t.Parallel()

	identity, err := age.GenerateX25519Identity()
	require.NoError(t, err)
	r := newRun(t, testutil.SampleSettings+`encryption_recipients: [`+identity.Recipient().String()+`]
archive_file: accounts.age
previous_archive_file: accounts.prev.age
`)

	require.NoError(t, r.export(context.Background()))
	require.NoError(t, r.export(context.Background()))

	for _, name := range []string{"accounts.age", "accounts.prev.age"} {
		raw, err := os.ReadFile(r.ws.Path(name))
		require.NoError(t, err, name)
		assert.NotContains(t, string(raw), "Xk92!pQ", name)

		plain, err := age.Decrypt(bytes.NewReader(raw), identity)
		require.NoError(t, err, name)
		text, err := io.ReadAll(plain)
		require.NoError(t, err, name)
		assert.Contains(t, string(text), "name: acme", name)
		assert.Contains(t, string(text), "Xk92!pQ", name)
	}
	assert.NotContains(t, r.stderr.String(), "Xk92!pQ")
}

func TestExportArchiveNeedsRecipients(t *testing.T) {
	t.Parallel()

	r := newRun(t, testutil.SampleSettings+"archive_file: accounts.age\n")
	err := r.export(context.Background())

	var cfgErr dserrors.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "archive_file", cfgErr.Field)
	_, statErr := os.Stat(filepath.Join(r.out, "bitwarden.csv"))
	assert.ErrorIs(t, statErr, os.ErrNotExist)
}
