// Package config loads YAML configuration files, expanding ${VAR}
// references from the environment before decoding.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Validator is implemented by config structs that can check themselves.
type Validator interface {
	Validate() error
}

// Load reads filename, expands environment variables, decodes it into
// target and validates the result.
func Load[T any](filename string, target *T) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("read config %s: %w", filename, err)
	}
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), target); err != nil {
		return fmt.Errorf("parse config %s: %w", filename, err)
	}
	return validate(target)
}

// LoadOptional loads filename when it exists. A missing file leaves target
// as is and only runs validation, so callers can start from defaults.
func LoadOptional[T any](filename string, target *T) error {
	if filename != "" && exists(filename) {
		return Load(filename, target)
	}
	return validate(target)
}

func validate(target any) error {
	v, ok := target.(Validator)
	if !ok {
		return nil
	}
	if err := v.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

func exists(filename string) bool {
	_, err := os.Stat(filename)
	return !errors.Is(err, os.ErrNotExist)
}
