package testutil

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/systmms/acctexport/internal/logging"
)

// TestLogger is a real logging.Logger whose console output goes to a
// buffer, so tests can check what an operator would have seen.
//
//	logger := testutil.NewTestLogger(t)
//	exporter.New(logger.Logger)
//	...
//	logger.AssertContains(t, "unknown_field")
type TestLogger struct {
	*logging.Logger
	buf *syncBuffer
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *syncBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Reset()
}

// NewTestLogger returns a colorless logger with debug output disabled.
func NewTestLogger(t *testing.T) *TestLogger {
	return NewTestLoggerWithDebug(t, false)
}

// NewTestLoggerWithDebug returns a colorless logger.
func NewTestLoggerWithDebug(t *testing.T, debug bool) *TestLogger {
	t.Helper()
	buf := &syncBuffer{}
	return &TestLogger{
		Logger: logging.NewWithWriter(buf, debug, true),
		buf:    buf,
	}
}

// GetOutput returns everything logged so far.
func (l *TestLogger) GetOutput() string {
	return l.buf.String()
}

// Clear drops captured output.
func (l *TestLogger) Clear() {
	l.buf.Reset()
}

// AssertContains asserts that the output contains substr.
func (l *TestLogger) AssertContains(t *testing.T, substr string) {
	t.Helper()
	assert.Contains(t, l.GetOutput(), substr)
}

// AssertNotContains asserts that the output does not contain substr.
func (l *TestLogger) AssertNotContains(t *testing.T, substr string) {
	t.Helper()
	assert.NotContains(t, l.GetOutput(), substr)
}

// AssertRedacted asserts that secretValue never reached the output and
// that a redaction marker did.
func (l *TestLogger) AssertRedacted(t *testing.T, secretValue string) {
	t.Helper()
	out := l.GetOutput()
	assert.NotContains(t, out, secretValue, "secret leaked into log output")
	assert.Contains(t, out, "[REDACTED]")
}

// AssertLogCount asserts how many lines carry the marker of level
// ("info", "warn", "error" or "debug").
func (l *TestLogger) AssertLogCount(t *testing.T, level string, count int) {
	t.Helper()

	markers := map[string]string{"info": "✓ ", "warn": "⚠ ", "error": "✗ ", "debug": "[DEBUG] "}
	marker, ok := markers[level]
	if !ok {
		t.Fatalf("unknown log level: %s", level)
	}

	n := 0
	for _, line := range strings.Split(l.GetOutput(), "\n") {
		if strings.HasPrefix(line, marker) {
			n++
		}
	}
	assert.Equal(t, count, n, "expected %d %s lines in:\n%s", count, level, l.GetOutput())
}
