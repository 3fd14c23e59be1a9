package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrInterrupted is returned when the operator cancels the run.
var ErrInterrupted = errors.New("killed by user")

// UserError represents an error that should be shown to the user with helpful context
type UserError struct {
	Message    string
	Suggestion string
	Details    string
	Err        error
}

func (e UserError) Error() string {
	var parts []string

	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}

	if e.Details != "" {
		parts = append(parts, "\n  Details: "+e.Details)
	}

	if e.Suggestion != "" {
		parts = append(parts, "\n  💡 Try: "+e.Suggestion)
	}

	return strings.Join(parts, "")
}

func (e UserError) Unwrap() error {
	return e.Err
}

// ConfigError represents a settings or account file error with helpful context
type ConfigError struct {
	File       string
	Field      string
	Value      interface{}
	Message    string
	Suggestion string
}

func (e ConfigError) Error() string {
	msg := "Configuration error"
	if e.File != "" {
		msg += fmt.Sprintf(" in %s", e.File)
	}
	if e.Field != "" {
		msg += fmt.Sprintf(" in field '%s'", e.Field)
	}
	if e.Value != nil {
		msg += fmt.Sprintf(" (value: %v)", e.Value)
	}
	msg += ": " + e.Message

	if e.Suggestion != "" {
		msg += "\n  💡 " + e.Suggestion
	}

	return msg
}

// IOError reports a failed file operation on a named path.
type IOError struct {
	Op   string // "open", "write", "close", "chmod", "read"
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// ProviderError enhances secret store errors with context
func ProviderError(store string, operation string, err error) error {
	return UserError{
		Message:    fmt.Sprintf("%s secret store error during %s", store, operation),
		Details:    err.Error(),
		Suggestion: getProviderSuggestion(store, err),
		Err:        err,
	}
}

// getProviderSuggestion returns helpful suggestions based on store type and error
func getProviderSuggestion(store string, err error) string {
	errStr := err.Error()

	switch {
	case strings.HasPrefix(store, "keychain"):
		if strings.Contains(errStr, "not found") {
			return "Add the item with 'secret-tool store' (Linux) or 'security add-generic-password' (macOS)"
		}
		if strings.Contains(errStr, "headless") || strings.Contains(errStr, "GUI") {
			return "The OS keyring needs a desktop session. Use the pass or env store on servers"
		}

	case strings.HasPrefix(store, "pass"):
		if strings.Contains(errStr, "not in the password store") || strings.Contains(errStr, "not found") {
			return "Check the entry with 'pass ls' or 'pass find <keyword>'"
		}
		if strings.Contains(errStr, "gpg") {
			return "Check that gpg-agent is running and your key is available"
		}

	case strings.HasPrefix(store, "aws"):
		if strings.Contains(errStr, "credentials") || strings.Contains(errStr, "authorization") {
			return "Configure AWS credentials: 'aws configure' or set AWS_PROFILE"
		}
		if strings.Contains(errStr, "AccessDenied") {
			return "Check IAM permissions for secretsmanager:GetSecretValue or ssm:GetParameter"
		}
		if strings.Contains(errStr, "ResourceNotFoundException") || strings.Contains(errStr, "ParameterNotFound") {
			return "Verify the secret name and region"
		}
	}

	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded") {
		return "The operation timed out. Check your network connection or raise timeout_ms for this store"
	}
	if strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "no such host") {
		return "Unable to connect. Check your network and secret store configuration"
	}

	return ""
}

// IsInterrupted reports whether err stems from an operator interrupt.
func IsInterrupted(err error) bool {
	return errors.Is(err, ErrInterrupted) || errors.Is(err, context.Canceled)
}

// ExitCode maps an error to the process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case IsInterrupted(err):
		return 130
	default:
		return 1
	}
}

// SimplifyError simplifies low-level error messages for users
func SimplifyError(err error) error {
	if err == nil {
		return nil
	}

	var userErr UserError
	if errors.As(err, &userErr) {
		return err
	}
	var cfgErr ConfigError
	if errors.As(err, &cfgErr) {
		return err
	}

	errStr := err.Error()

	if strings.Contains(errStr, "permission denied") {
		return UserError{
			Message:    "Permission denied",
			Details:    errStr,
			Suggestion: "Check file permissions or run with appropriate privileges",
			Err:        err,
		}
	}

	if strings.Contains(errStr, "no such file or directory") {
		return UserError{
			Message:    "File or directory not found",
			Details:    errStr,
			Suggestion: "Verify the path exists and is spelled correctly",
			Err:        err,
		}
	}

	return err
}
