package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

// Logger provides leveled console logging with redaction support.
// Messages can additionally be copied into a log file (see AttachFile).
type Logger struct {
	debug   bool
	noColor bool
	out     io.Writer

	mu      sync.Mutex
	file    *fileSink
	secrets []string
}

// New creates a logger writing to stderr. Colors are disabled when
// stderr is not a terminal.
func New(debug, noColor bool) *Logger {
	if !term.IsTerminal(int(os.Stderr.Fd())) {
		noColor = true
	}
	return NewWithWriter(os.Stderr, debug, noColor)
}

// NewWithWriter creates a logger writing to w.
func NewWithWriter(w io.Writer, debug, noColor bool) *Logger {
	return &Logger{
		debug:   debug,
		noColor: noColor,
		out:     w,
	}
}

// Info logs an informational message
func (l *Logger) Info(format string, args ...interface{}) {
	l.emit("INFO", "\033[32m✓\033[0m", "✓", format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) {
	l.emit("WARN", "\033[33m⚠\033[0m", "⚠", format, args...)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.emit("ERROR", "\033[31m✗\033[0m", "✗", format, args...)
}

// Debug logs a debug message if debug mode is enabled. Debug messages
// always reach the log file when one is attached.
func (l *Logger) Debug(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	msg := Redact(fmt.Sprintf(format, args...), l.secrets)
	l.toFile("DEBUG", msg)
	if !l.debug {
		return
	}
	if !l.noColor {
		fmt.Fprintf(l.out, "\033[36m[DEBUG]\033[0m %s\n", msg)
	} else {
		fmt.Fprintf(l.out, "[DEBUG] %s\n", msg)
	}
}

// AddSecret registers a value that is replaced by [REDACTED] in every
// later message, on the console and in the log file.
func (l *Logger) AddSecret(value string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.secrets = append(l.secrets, value)
}

// DebugEnabled reports whether debug messages reach the console.
func (l *Logger) DebugEnabled() bool {
	return l.debug
}

func (l *Logger) emit(level, colored, plain, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	msg := Redact(fmt.Sprintf(format, args...), l.secrets)
	if !l.noColor {
		fmt.Fprintf(l.out, "%s %s\n", colored, msg)
	} else {
		fmt.Fprintf(l.out, "%s %s\n", plain, msg)
	}
	l.toFile(level, msg)
}

// Secret represents a value that should be redacted in logs
type Secret string

// String implements the Stringer interface, always returning a redacted value
func (s Secret) String() string {
	return "[REDACTED]"
}

// GoString implements the GoStringer interface for %#v formatting
func (s Secret) GoString() string {
	return "[REDACTED]"
}

// Redact replaces sensitive values in a string with [REDACTED]
func Redact(s string, secrets []string) string {
	result := s
	for _, secret := range secrets {
		if secret != "" && len(secret) > 3 { // Only redact non-trivial secrets
			result = strings.ReplaceAll(result, secret, "[REDACTED]")
		}
	}
	return result
}
