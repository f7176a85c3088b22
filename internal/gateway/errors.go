package gateway

import "fmt"

// The gateway's own failure kinds. Provider, codec, storage, and image
// failures carry their own types in their packages; together they form
// the caller-visible taxonomy. All are terminal: no retries, no partial
// recovery.

// UnauthenticatedError reports a request with no actor identity.
type UnauthenticatedError struct{}

func (e *UnauthenticatedError) Error() string {
	return "unauthenticated: no actor identity"
}

// PermissionDeniedError reports an actor lacking the required household
// role.
type PermissionDeniedError struct {
	Required string // "member" or "admin"
}

func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("permission denied: household %s role required", e.Required)
}

// ConfigMissingError reports a household with no vision config document.
type ConfigMissingError struct {
	HouseholdID string
}

func (e *ConfigMissingError) Error() string {
	return "vision config missing for household " + e.HouseholdID
}

// SecretMissingError reports a household with no stored secret envelope.
type SecretMissingError struct {
	HouseholdID string
}

func (e *SecretMissingError) Error() string {
	return "vision secret missing for household " + e.HouseholdID
}

// DisabledError reports a categorization attempt against a household
// whose config has Enabled=false.
type DisabledError struct{}

func (e *DisabledError) Error() string {
	return "categorization disabled for this household"
}

// InvalidArgumentError names the first config field that failed
// validation.
type InvalidArgumentError struct {
	Field  string
	Reason string
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("invalid argument %s: %s", e.Field, e.Reason)
}
