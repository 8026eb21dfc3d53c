/*
errors.go - Typed errors for configuration resolution and CRUD

ERROR CATEGORIES:
  1. ConfigurationError - resolution failures with machine-readable codes
  2. Sentinel errors - CRUD failures (not found, duplicate active row)

Resolution never silently falls back: a missing configuration or holiday
zone must surface as a typed error, since a guessed default would misdate a
real financial transaction.
*/
package config

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode is the machine-readable code carried by ConfigurationError.
type ErrorCode string

const (
	// CodeNoConfigurationFound: no active config at any attempted level.
	CodeNoConfigurationFound ErrorCode = "NO_CONFIGURATION_FOUND"

	// CodeHolidayZoneRequired: the winning config carries no holiday zone.
	CodeHolidayZoneRequired ErrorCode = "HOLIDAY_ZONE_REQUIRED"
)

// ConfigurationError is returned by the Resolver. Details carries context
// such as the levels that were checked.
type ConfigurationError struct {
	Code    ErrorCode
	Message string
	Details map[string]any
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewNoConfigurationFound builds the error for an exhausted resolution walk.
func NewNoConfigurationFound(keys Keys, checked []Level) *ConfigurationError {
	names := make([]string, len(checked))
	for i, l := range checked {
		names[i] = string(l)
	}
	return &ConfigurationError{
		Code:    CodeNoConfigurationFound,
		Message: fmt.Sprintf("no active configuration found (checked: %s)", strings.Join(names, ", ")),
		Details: map[string]any{
			"organisationId": keys.OrganisationID,
			"levelsChecked":  names,
		},
	}
}

// NewHolidayZoneRequired builds the error for a winning config without a zone.
func NewHolidayZoneRequired(level Level, configID string) *ConfigurationError {
	return &ConfigurationError{
		Code:    CodeHolidayZoneRequired,
		Message: fmt.Sprintf("configuration at level %q has no holiday zone", level),
		Details: map[string]any{
			"appliedLevel":    string(level),
			"appliedConfigId": configID,
		},
	}
}

// IsCode reports whether err is a ConfigurationError with the given code.
func IsCode(err error, code ErrorCode) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce) && ce.Code == code
}

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrConfigNotFound is returned when a referenced configuration row does
	// not exist.
	ErrConfigNotFound = errors.New("configuration not found")

	// ErrDuplicateConfig is returned when an active configuration already
	// exists for the same key. The storage layer enforces this with a unique
	// index; application code never locks.
	ErrDuplicateConfig = errors.New("an active configuration already exists for this key")

	// ErrInvalidPolicy wraps Policy.Validate failures on writes.
	ErrInvalidPolicy = errors.New("invalid policy")
)
