package presence

import "fmt"

// ConfigError means the stored presence settings cannot produce a payload.
// It is permanent until the user changes their settings.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid presence config (%s): %s", e.Field, e.Reason)
}

// ErrMissingName is returned when an enabled user has no activity name
var ErrMissingName = &ConfigError{Field: "name", Reason: "no activity name configured"}

// UpdateError is returned when the headless session update fails.
// StatusCode is 0 when no response was received.
type UpdateError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *UpdateError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("activity update failed: %v", e.Err)
	}
	return fmt.Sprintf("activity update failed (status %d): %s", e.StatusCode, e.Body)
}

func (e *UpdateError) Unwrap() error {
	return e.Err
}
