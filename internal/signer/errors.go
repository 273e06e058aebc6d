package signer

import "fmt"

// ConfigurationError reports a missing or empty credential.
type ConfigurationError struct {
	Name string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s is not set", e.Name)
}
