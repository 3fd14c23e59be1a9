package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	dserrors "github.com/systmms/acctexport/internal/errors"
	"github.com/systmms/acctexport/internal/logging"
	"gopkg.in/yaml.v3"
)

// DefaultMask is applied when a *_file_mask setting is absent.
const DefaultMask FileMask = 0o077

// DefaultTimeoutMs is the per-store timeout when timeout_ms is not set.
const DefaultTimeoutMs = 30000

// Config holds the runtime configuration
type Config struct {
	Path     string
	Logger   *logging.Logger
	Settings *Settings
}

// Settings is the parsed settings file.
type Settings struct {
	Version              int                    `yaml:"version"`
	AccountsFiles        []string               `yaml:"accounts_files"`
	LogFile              string                 `yaml:"log_file,omitempty"`
	EncryptionRecipients []string               `yaml:"encryption_recipients,omitempty"`
	AgeIdentityFile      string                 `yaml:"age_identity_file,omitempty"`
	ConfigFileMask       FileMask               `yaml:"config_file_mask,omitempty"`
	AccountFileMask      FileMask               `yaml:"account_file_mask,omitempty"`
	LogFileMask          FileMask               `yaml:"log_file_mask,omitempty"`
	MetricsFile          string                 `yaml:"metrics_file,omitempty"`
	ArchiveFile          string                 `yaml:"archive_file,omitempty"`
	PreviousArchiveFile  string                 `yaml:"previous_archive_file,omitempty"`
	SecretStores         map[string]StoreConfig `yaml:"secretStores,omitempty"`

	// Dir is the directory holding the settings file. Relative paths in
	// the settings are resolved against it.
	Dir string `yaml:"-"`
}

// StoreConfig configures one named secret store.
type StoreConfig struct {
	Type      string                 `yaml:"type"`
	TimeoutMs int                    `yaml:"timeout_ms,omitempty"`
	Config    map[string]interface{} `yaml:",inline"`
}

// Timeout returns the store timeout in milliseconds.
func (s StoreConfig) Timeout() int {
	if s.TimeoutMs <= 0 {
		return DefaultTimeoutMs
	}
	return s.TimeoutMs
}

// FileMask is a set of permission bits, written in octal in the settings
// file (077, "0o077" and "077" are all accepted).
type FileMask os.FileMode

// UnmarshalYAML parses the raw scalar as octal so that YAML's own integer
// rules never reinterpret the value.
func (m *FileMask) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: file mask must be an octal number", node.Line)
	}
	v, err := ParseMask(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*m = v
	return nil
}

// ParseMask parses an octal permission mask.
func ParseMask(s string) (FileMask, error) {
	raw := strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "0o"), "0O")
	n, err := strconv.ParseUint(raw, 8, 32)
	if err != nil || n > 0o777 {
		return 0, fmt.Errorf("invalid file mask %q: want an octal value between 000 and 777", s)
	}
	return FileMask(n), nil
}

// Mode returns the mask as permission bits.
func (m FileMask) Mode() os.FileMode {
	return os.FileMode(m)
}

func (m FileMask) String() string {
	return fmt.Sprintf("%03o", uint32(m))
}

// DefaultPath returns $XDG_CONFIG_HOME/acctexport/config.yaml, falling back
// to ~/.config when XDG_CONFIG_HOME is unset.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = filepath.Join(".", ".config")
	}
	return filepath.Join(dir, "acctexport", "config.yaml")
}

// Load reads, validates and parses the settings file.
func (c *Config) Load() error {
	data, err := os.ReadFile(c.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return dserrors.ConfigError{
				File:       c.Path,
				Message:    "settings file not found",
				Suggestion: "Create it with at least 'accounts_files:', or point ACCTEXPORT_CONFIG at an existing file",
			}
		}
		return dserrors.UserError{
			Message:    "Failed to read settings file",
			Details:    err.Error(),
			Suggestion: "Check file permissions and path",
			Err:        err,
		}
	}

	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return dserrors.ConfigError{
			File:       c.Path,
			Message:    "invalid YAML syntax in settings file",
			Suggestion: "Check for indentation errors, missing quotes, or invalid characters. Use a YAML validator",
		}
	}
	if problems := ValidateSchema(settingsSchema, doc); len(problems) > 0 {
		return dserrors.ConfigError{
			File:       c.Path,
			Message:    "settings do not match the expected layout:\n  - " + strings.Join(problems, "\n  - "),
			Suggestion: "Compare the file with the documented settings keys",
		}
	}

	settings := Settings{
		ConfigFileMask:  DefaultMask,
		AccountFileMask: DefaultMask,
		LogFileMask:     DefaultMask,
	}
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return dserrors.ConfigError{
			File:    c.Path,
			Message: err.Error(),
		}
	}

	if settings.Version != 0 {
		return dserrors.ConfigError{
			File:       c.Path,
			Field:      "version",
			Value:      settings.Version,
			Message:    "unsupported settings version",
			Suggestion: "Set 'version: 0' or remove the key",
		}
	}
	if len(settings.AccountsFiles) == 0 {
		return dserrors.ConfigError{
			File:       c.Path,
			Field:      "accounts_files",
			Message:    "no account files configured",
			Suggestion: "List at least one account file under 'accounts_files:'",
		}
	}
	if strings.HasSuffix(settings.LogFile, ".age") && len(settings.EncryptionRecipients) == 0 {
		return dserrors.ConfigError{
			File:       c.Path,
			Field:      "log_file",
			Value:      settings.LogFile,
			Message:    "encrypted log file requires encryption_recipients",
			Suggestion: "Add an age recipient (age1...) under 'encryption_recipients:' or drop the .age suffix",
		}
	}

	if settings.ArchiveFile != "" && len(settings.EncryptionRecipients) == 0 {
		return dserrors.ConfigError{
			File:       c.Path,
			Field:      "archive_file",
			Value:      settings.ArchiveFile,
			Message:    "archive file requires encryption_recipients",
			Suggestion: "Add an age recipient (age1...) under 'encryption_recipients:'",
		}
	}
	if settings.PreviousArchiveFile != "" && settings.ArchiveFile == "" {
		return dserrors.ConfigError{
			File:       c.Path,
			Field:      "previous_archive_file",
			Value:      settings.PreviousArchiveFile,
			Message:    "previous_archive_file is set but archive_file is not",
			Suggestion: "Set 'archive_file:' or remove 'previous_archive_file:'",
		}
	}

	settings.Dir = filepath.Dir(c.Path)
	c.Settings = &settings

	c.checkMode(c.Path, settings.ConfigFileMask)
	return nil
}

func (c *Config) checkMode(path string, mask FileMask) {
	if c.Logger == nil {
		return
	}
	if loose, ok := LooseBits(path, mask); ok {
		c.Logger.Warn("%s: file permissions are too loose (mode bits %03o are set, mask is %s)", path, uint32(loose), mask)
	}
}

// LooseBits reports permission bits of path that overlap mask. The second
// result is false when the file cannot be inspected or nothing overlaps.
func LooseBits(path string, mask FileMask) (os.FileMode, bool) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, false
	}
	loose := info.Mode().Perm() & mask.Mode()
	return loose, loose != 0
}

// ResolvePath expands a leading ~ and makes p absolute relative to the
// settings directory.
func (s *Settings) ResolvePath(p string) string {
	if p == "" {
		return ""
	}
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			p = filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	if filepath.IsAbs(p) || s.Dir == "" {
		return p
	}
	return filepath.Join(s.Dir, p)
}

// AccountFiles returns the configured account files as resolved paths.
func (s *Settings) AccountFiles() []string {
	out := make([]string, 0, len(s.AccountsFiles))
	for _, f := range s.AccountsFiles {
		out = append(out, s.ResolvePath(f))
	}
	return out
}

// GetSecretStore returns the configuration for a named store.
func (s *Settings) GetSecretStore(name string) (StoreConfig, error) {
	if store, ok := s.SecretStores[name]; ok {
		return store, nil
	}

	available := make([]string, 0, len(s.SecretStores))
	for n := range s.SecretStores {
		available = append(available, n)
	}
	sort.Strings(available)

	suggestion := "Add the store to the 'secretStores:' section of the settings file"
	if len(available) > 0 {
		suggestion = fmt.Sprintf("Available stores: %s. %s", strings.Join(available, ", "), suggestion)
	}
	return StoreConfig{}, dserrors.ConfigError{
		Field:      "secretStores",
		Value:      name,
		Message:    "secret store not found in settings",
		Suggestion: suggestion,
	}
}
