// Package config holds shared configuration helpers for the content
// repository commands.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// EnvPrefix is prepended to every environment variable the commands read.
// Struct tags name variables without it.
const EnvPrefix = "CONTENTREPO_"

// ParseEnv loads configuration from EnvPrefix-ed environment variables.
func ParseEnv(target any) error {
	if err := env.ParseWithOptions(target, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
