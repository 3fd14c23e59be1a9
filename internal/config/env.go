package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "ACCTEXPORT"

// Env holds the environment overrides. The CLI has no flags; these are the
// only runtime knobs.
type Env struct {
	Config  string `envconfig:"CONFIG"`
	Debug   bool   `envconfig:"DEBUG" default:"false"`
	NoColor bool   `envconfig:"NO_COLOR" default:"false"`
}

// LoadEnv reads ACCTEXPORT_CONFIG, ACCTEXPORT_DEBUG and ACCTEXPORT_NO_COLOR.
func LoadEnv() (Env, error) {
	var env Env
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return Env{}, fmt.Errorf("failed to load settings from environment: %w", err)
	}
	return env, nil
}

// SettingsPath returns the settings file to load.
func (e Env) SettingsPath() string {
	if e.Config != "" {
		return e.Config
	}
	return DefaultPath()
}
