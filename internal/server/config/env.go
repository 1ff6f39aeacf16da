package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
)

// parseEnv overlays GOPHAUTH_* environment variables. Unset variables leave
// the current values untouched.
func parseEnv(config *Config) error {
	if err := env.ParseWithOptions(config, env.Options{Prefix: envPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
