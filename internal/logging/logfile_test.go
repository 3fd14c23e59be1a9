package logging_test

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"filippo.io/age"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/systmms/acctexport/internal/logging"
)

var headerPattern = regexp.MustCompile(`^# run ([0-9a-f-]{36}) started \S+\n`)

func TestAttachFilePlain(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "acctexport.log")
	var console bytes.Buffer
	logger := logging.NewWithWriter(&console, false, false)

	runID, err := logger.AttachFile(path, nil, 0o077)
	require.NoError(t, err)
	logger.Info("exported %d accounts", 2)
	logger.Debug("resolved %s", "acme")
	require.NoError(t, logger.Close())
	logger.Warn("after close")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Zero(t, info.Mode().Perm()&0o077)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)

	m := headerPattern.FindStringSubmatch(text)
	require.NotNil(t, m, text)
	assert.Equal(t, runID, m[1])
	assert.Contains(t, text, "INFO  exported 2 accounts\n")
	assert.Contains(t, text, "DEBUG resolved acme\n")
	assert.NotContains(t, text, "\033[")
	assert.NotContains(t, text, "after close")

	assert.NotContains(t, console.String(), "resolved acme")
	assert.Contains(t, console.String(), "after close")
}

func TestAttachFileEncrypted(t *testing.T) {
	t.Parallel()

	identity, err := age.GenerateX25519Identity()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "acctexport.log.age")
	logger := logging.NewWithWriter(io.Discard, false, true)

	runID, err := logger.AttachFile(path, []string{identity.Recipient().String()}, 0o077)
	require.NoError(t, err)
	logger.Warn("%s: unknown field %q in %s, ignored", "legacy", "unknown_field", "bitwarden")
	require.NoError(t, logger.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "unknown_field")

	r, err := age.Decrypt(bytes.NewReader(raw), identity)
	require.NoError(t, err)
	plain, err := io.ReadAll(r)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(string(plain), "# run "+runID))
	assert.Contains(t, string(plain), `WARN  legacy: unknown field "unknown_field" in bitwarden, ignored`)
}

func TestAttachFileErrors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	logger := logging.NewWithWriter(io.Discard, false, true)

	_, err := logger.AttachFile(filepath.Join(dir, "log.age"), nil, 0o077)
	assert.ErrorContains(t, err, "no encryption_recipients")

	_, err = logger.AttachFile(filepath.Join(dir, "log.age"), []string{"not-a-key"}, 0o077)
	assert.ErrorContains(t, err, "parsing recipient key")

	_, err = logger.AttachFile(filepath.Join(dir, "missing", "log"), nil, 0o077)
	assert.ErrorContains(t, err, "opening log file")

	assert.NoError(t, logger.Close())
}

func TestAddSecretRedactsEverySink(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "acctexport.log")
	var console bytes.Buffer
	logger := logging.NewWithWriter(&console, true, true)
	_, err := logger.AttachFile(path, nil, 0o077)
	require.NoError(t, err)

	logger.Info("before %s", "Xk92!pQ")
	logger.AddSecret("Xk92!pQ")
	logger.AddSecret("12")
	logger.Warn("store echoed Xk92!pQ back")
	logger.Debug("row 12 uses Xk92!pQ")
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	for name, text := range map[string]string{"console": console.String(), "file": string(data)} {
		assert.Equal(t, 1, strings.Count(text, "Xk92!pQ"), name)
		assert.Contains(t, text, "store echoed [REDACTED] back", name)
		assert.Contains(t, text, "row 12 uses [REDACTED]", name)
	}
}

func TestParseRecipients(t *testing.T) {
	t.Parallel()

	identity, err := age.GenerateX25519Identity()
	require.NoError(t, err)

	parsed, err := logging.ParseRecipients([]string{identity.Recipient().String()})
	require.NoError(t, err)
	assert.Len(t, parsed, 1)

	_, err = logging.ParseRecipients([]string{"age1bogus"})
	assert.ErrorContains(t, err, "parsing recipient key")
}
