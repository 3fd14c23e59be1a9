package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/systmms/acctexport/internal/logging"
)

func writeSettings(t *testing.T, body string, mode os.FileMode) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), mode))
	require.NoError(t, os.Chmod(path, mode))
	return path
}

func TestConfig_Load_Defaults(t *testing.T) {
	t.Parallel()

	path := writeSettings(t, "accounts_files: [accounts.yaml, /abs/more.yaml]\n", 0o600)
	cfg := &Config{Path: path, Logger: logging.NewWithWriter(&bytes.Buffer{}, false, true)}

	require.NoError(t, cfg.Load())
	s := cfg.Settings
	assert.Equal(t, DefaultMask, s.ConfigFileMask)
	assert.Equal(t, DefaultMask, s.AccountFileMask)
	assert.Equal(t, DefaultMask, s.LogFileMask)
	assert.Equal(t, filepath.Dir(path), s.Dir)
	assert.Equal(t, []string{filepath.Join(filepath.Dir(path), "accounts.yaml"), "/abs/more.yaml"}, s.AccountFiles())
	assert.Empty(t, s.SecretStores)
}

func TestConfig_Load_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			name:    "invalid yaml",
			body:    "accounts_files: [a.yaml\n  bad: [[[",
			wantErr: "invalid YAML syntax",
		},
		{
			name:    "unknown key",
			body:    "accounts_files: [a.yaml]\ndictionary_file: words\n",
			wantErr: "dictionary_file",
		},
		{
			name:    "unsupported version",
			body:    "version: 2\naccounts_files: [a.yaml]\n",
			wantErr: "unsupported settings version",
		},
		{
			name:    "no account files",
			body:    "accounts_files: []\n",
			wantErr: "no account files configured",
		},
		{
			name:    "store without type",
			body:    "accounts_files: [a.yaml]\nsecretStores:\n  kc:\n    timeout_ms: 10\n",
			wantErr: "type",
		},
		{
			name:    "encrypted log without recipients",
			body:    "accounts_files: [a.yaml]\nlog_file: run.log.age\n",
			wantErr: "encryption_recipients",
		},
		{
			name:    "archive without recipients",
			body:    "accounts_files: [a.yaml]\narchive_file: accounts.age\n",
			wantErr: "archive file requires encryption_recipients",
		},
		{
			name:    "previous archive alone",
			body:    "accounts_files: [a.yaml]\nprevious_archive_file: old.age\n",
			wantErr: "previous_archive_file is set but archive_file is not",
		},
		{
			name:    "bad mask",
			body:    "accounts_files: [a.yaml]\naccount_file_mask: \"089\"\n",
			wantErr: "invalid file mask",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := &Config{Path: writeSettings(t, tt.body, 0o600)}
			err := cfg.Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Nil(t, cfg.Settings)
		})
	}
}

func TestConfig_Load_MissingFile(t *testing.T) {
	t.Parallel()

	cfg := &Config{Path: filepath.Join(t.TempDir(), "nope.yaml")}
	err := cfg.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "settings file not found")
}

func TestConfig_Load_SecretStores(t *testing.T) {
	t.Parallel()

	body := `accounts_files: [a.yaml]
secretStores:
  kc:
    type: keychain
  aws:
    type: aws.secretsmanager
    region: eu-west-1
    timeout_ms: 5000
`
	cfg := &Config{Path: writeSettings(t, body, 0o600)}
	require.NoError(t, cfg.Load())

	aws, err := cfg.Settings.GetSecretStore("aws")
	require.NoError(t, err)
	assert.Equal(t, "aws.secretsmanager", aws.Type)
	assert.Equal(t, 5000, aws.Timeout())
	assert.Equal(t, "eu-west-1", aws.Config["region"])

	kc, err := cfg.Settings.GetSecretStore("kc")
	require.NoError(t, err)
	assert.Equal(t, DefaultTimeoutMs, kc.Timeout())

	_, err = cfg.Settings.GetSecretStore("vault")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Available stores: aws, kc")
}

func TestConfig_Load_Masks(t *testing.T) {
	t.Parallel()

	body := "accounts_files: [a.yaml]\nconfig_file_mask: 077\naccount_file_mask: \"0o022\"\nlog_file_mask: 7\n"
	cfg := &Config{Path: writeSettings(t, body, 0o600)}
	require.NoError(t, cfg.Load())

	assert.Equal(t, FileMask(0o077), cfg.Settings.ConfigFileMask)
	assert.Equal(t, FileMask(0o022), cfg.Settings.AccountFileMask)
	assert.Equal(t, FileMask(0o007), cfg.Settings.LogFileMask)
	assert.Equal(t, "022", cfg.Settings.AccountFileMask.String())
}

func TestConfig_Load_WarnsOnLooseMode(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	path := writeSettings(t, "accounts_files: [a.yaml]\n", 0o644)
	cfg := &Config{Path: path, Logger: logging.NewWithWriter(&out, false, true)}

	require.NoError(t, cfg.Load())
	assert.Contains(t, out.String(), "⚠ "+path+": file permissions are too loose")
	assert.Contains(t, out.String(), "044")
}

func TestParseMask(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    FileMask
		wantErr bool
	}{
		{in: "077", want: 0o077},
		{in: "0o077", want: 0o077},
		{in: "0", want: 0},
		{in: "777", want: 0o777},
		{in: "1000", wantErr: true},
		{in: "9", wantErr: true},
		{in: "rw", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()

			got, err := ParseMask(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSettings_ResolvePath(t *testing.T) {
	t.Parallel()

	home, err := os.UserHomeDir()
	require.NoError(t, err)

	s := &Settings{Dir: "/etc/acctexport"}
	assert.Equal(t, "/etc/acctexport/accounts.yaml", s.ResolvePath("accounts.yaml"))
	assert.Equal(t, "/var/acct.yaml", s.ResolvePath("/var/acct.yaml"))
	assert.Equal(t, filepath.Join(home, "acct.yaml"), s.ResolvePath("~/acct.yaml"))
	assert.Equal(t, "", s.ResolvePath(""))
}

func TestEnv(t *testing.T) {
	t.Setenv("ACCTEXPORT_CONFIG", "/tmp/acct.yaml")
	t.Setenv("ACCTEXPORT_DEBUG", "true")
	t.Setenv("ACCTEXPORT_NO_COLOR", "1")

	env, err := LoadEnv()
	require.NoError(t, err)
	assert.True(t, env.Debug)
	assert.True(t, env.NoColor)
	assert.Equal(t, "/tmp/acct.yaml", env.SettingsPath())
}

func TestEnv_DefaultPath(t *testing.T) {
	t.Setenv("ACCTEXPORT_CONFIG", "")
	t.Setenv("XDG_CONFIG_HOME", "/home/bob/.config")

	env, err := LoadEnv()
	require.NoError(t, err)
	assert.False(t, env.Debug)
	assert.Equal(t, "/home/bob/.config/acctexport/config.yaml", env.SettingsPath())
}

func TestEnv_InvalidBool(t *testing.T) {
	t.Setenv("ACCTEXPORT_DEBUG", "maybe")

	_, err := LoadEnv()
	assert.Error(t, err)
}

func TestConfig_Load_Archive(t *testing.T) {
	t.Parallel()

	body := `accounts_files: [a.yaml]
encryption_recipients: [age1ql3z7hjy54pw3hyww5ayyfg7zqgvc7w3j2elw8zmrj2kg5sfn9aqmcac8p]
archive_file: archive/accounts.age
previous_archive_file: archive/accounts.prev.age
`
	cfg := &Config{Path: writeSettings(t, body, 0o600)}
	require.NoError(t, cfg.Load())

	s := cfg.Settings
	assert.Equal(t, filepath.Join(s.Dir, "archive", "accounts.age"), s.ResolvePath(s.ArchiveFile))
	assert.Equal(t, "archive/accounts.prev.age", s.PreviousArchiveFile)
}
