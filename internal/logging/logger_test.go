package logging_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/systmms/acctexport/internal/logging"
)

func TestLoggerLevels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		log    func(l *logging.Logger)
		plain  string
		colour string
	}{
		{"info", func(l *logging.Logger) { l.Info("exported %d", 2) }, "✓ exported 2\n", "\033[32m✓\033[0m exported 2\n"},
		{"warn", func(l *logging.Logger) { l.Warn("unknown field %q", "x") }, "⚠ unknown field \"x\"\n", "\033[33m⚠\033[0m unknown field \"x\"\n"},
		{"error", func(l *logging.Logger) { l.Error("failed") }, "✗ failed\n", "\033[31m✗\033[0m failed\n"},
		{"debug", func(l *logging.Logger) { l.Debug("row %s", "acme") }, "[DEBUG] row acme\n", "\033[36m[DEBUG]\033[0m row acme\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var plain, colour bytes.Buffer
			tt.log(logging.NewWithWriter(&plain, true, true))
			tt.log(logging.NewWithWriter(&colour, true, false))

			assert.Equal(t, tt.plain, plain.String())
			assert.Equal(t, tt.colour, colour.String())
		})
	}
}

func TestDebugGating(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	quiet := logging.NewWithWriter(&buf, false, true)
	quiet.Debug("This should not appear")
	assert.Empty(t, buf.String())
	assert.False(t, quiet.DebugEnabled())

	loud := logging.NewWithWriter(&buf, true, true)
	loud.Debug("This should appear")
	assert.Equal(t, "[DEBUG] This should appear\n", buf.String())
	assert.True(t, loud.DebugEnabled())
}
