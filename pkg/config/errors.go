package config

import "fmt"

// ConfigError describes an invalid configuration value. It is raised eagerly
// at validation time, never during event handling.
type ConfigError struct {
	Field  string
	Reason string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}
