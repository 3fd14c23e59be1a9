package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"filippo.io/age"
	"github.com/google/uuid"
)

// EncryptedSuffix marks log files that are age-encrypted.
const EncryptedSuffix = ".age"

type fileSink struct {
	file *os.File
	w    io.Writer
	enc  io.WriteCloser // non-nil when encrypting
	err  error
}

// ParseRecipients parses age X25519 public keys.
func ParseRecipients(keys []string) ([]age.Recipient, error) {
	parsed := make([]age.Recipient, 0, len(keys))
	for _, key := range keys {
		r, err := age.ParseX25519Recipient(key)
		if err != nil {
			return nil, fmt.Errorf("parsing recipient key %q: %w", key, err)
		}
		parsed = append(parsed, r)
	}
	return parsed, nil
}

// AttachFile copies every subsequent message into the file at path,
// truncating it first. The file is created with mode 0666 &^ mask.
// When path ends in ".age" the content is encrypted to recipients and only
// becomes readable after Close. AttachFile returns the run ID written in the
// log header.
func (l *Logger) AttachFile(path string, recipients []string, mask os.FileMode) (string, error) {
	encrypted := strings.HasSuffix(path, EncryptedSuffix)
	var parsed []age.Recipient
	if encrypted {
		if len(recipients) == 0 {
			return "", fmt.Errorf("log file %s is encrypted but no encryption_recipients are configured", path)
		}
		var err error
		if parsed, err = ParseRecipients(recipients); err != nil {
			return "", err
		}
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0666&^mask)
	if err != nil {
		return "", fmt.Errorf("opening log file: %w", err)
	}

	sink := &fileSink{file: f, w: f}
	if encrypted {
		enc, err := age.Encrypt(f, parsed...)
		if err != nil {
			_ = f.Close()
			return "", fmt.Errorf("creating age encryptor: %w", err)
		}
		sink.enc = enc
		sink.w = enc
	}

	runID := uuid.NewString()

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		_ = l.file.close()
	}
	l.file = sink
	fmt.Fprintf(sink.w, "# run %s started %s\n", runID, time.Now().Format(time.RFC3339))
	return runID, nil
}

// Close finalizes and closes the attached log file, if any.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.close()
	l.file = nil
	return err
}

// toFile must be called with l.mu held.
func (l *Logger) toFile(level, msg string) {
	if l.file == nil || l.file.err != nil {
		return
	}
	_, l.file.err = fmt.Fprintf(l.file.w, "%s %-5s %s\n", time.Now().Format(time.RFC3339), level, msg)
}

func (s *fileSink) close() error {
	var firstErr error
	if s.enc != nil {
		if err := s.enc.Close(); err != nil {
			firstErr = fmt.Errorf("finalizing log encryption: %w", err)
		}
	}
	if err := s.file.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if firstErr == nil && s.err != nil {
		firstErr = fmt.Errorf("writing log file: %w", s.err)
	}
	return firstErr
}
