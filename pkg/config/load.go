package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	kyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/stackpilot/stackpilot/pkg/types"
)

const envPrefix = "STACKPILOT_"

// Load builds the Config value: built-in defaults, then the stack file
// at path (optional when empty), then STACKPILOT_ environment overrides.
// Validation failures are precondition errors.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, types.NewPreconditionError("load config", fmt.Errorf("stack file %s: %w", path, err))
		}
		if err := k.Load(file.Provider(path), kyaml.Parser()); err != nil {
			return nil, types.NewPreconditionError("load config", fmt.Errorf("parse %s: %w", path, err))
		}
	}

	// STACKPILOT_BACKUP__RETENTION_DAYS=14 -> backup.retention_days
	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(s, envPrefix)
		return strings.ReplaceAll(strings.ToLower(s), "__", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment overrides: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, types.NewPreconditionError("load config", fmt.Errorf("unmarshal: %w", err))
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, types.NewPreconditionError("load config", fmt.Errorf("invalid configuration: %w", err))
	}

	return &cfg, nil
}
