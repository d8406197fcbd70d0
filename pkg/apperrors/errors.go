package apperrors

import "fmt"

// ConfigurationError is fatal at engine build time: duplicate role id,
// missing mandatory role option, unparsable integer, role id out of range.
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s", e.Message)
}

// NewConfigurationError formats a ConfigurationError.
func NewConfigurationError(format string, args ...interface{}) *ConfigurationError {
	return &ConfigurationError{Message: fmt.Sprintf(format, args...)}
}

// InternalStateError is fatal to the current request but not to the
// engine: release of an unknown active container, double-release, a
// started container not found in the starting map, a double-live
// announcement.
type InternalStateError struct {
	Message string
}

func (e *InternalStateError) Error() string {
	return fmt.Sprintf("internal state error: %s", e.Message)
}

// NewInternalStateError formats an InternalStateError.
func NewInternalStateError(format string, args ...interface{}) *InternalStateError {
	return &InternalStateError{Message: fmt.Sprintf(format, args...)}
}

// TriggerClusterTeardownError is raised by a review pass once a role's
// cumulative failure count exceeds its configured threshold.
type TriggerClusterTeardownError struct {
	RoleName        string
	Failed          int
	StartFailed     int
	Threshold       int
	LastFailureText string
}

func (e *TriggerClusterTeardownError) Error() string {
	return fmt.Sprintf(
		"unstable cluster: role %s failed %d times (%d during startup); threshold is %d - last failure: %s",
		e.RoleName, e.Failed, e.StartFailed, e.Threshold, e.LastFailureText,
	)
}
