package config

import (
	"fmt"
	"strings"
)

// ConfigurationError is returned when required settings are missing or invalid.
type ConfigurationError struct {
	Missing []string
	Message string
}

func (e *ConfigurationError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("configuration error: missing %s", strings.Join(e.Missing, ", "))
	}
	return "configuration error: " + e.Message
}
