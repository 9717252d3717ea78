package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

const envPrefix = "SKILLBOUND_"

// parseEnv overlays SKILLBOUND_* variables onto config. Unset variables
// leave fields untouched. environ replaces the process environment when
// non-nil.
func parseEnv(config *Config, environ map[string]string) error {
	opts := env.Options{Prefix: envPrefix}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(config, opts); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
