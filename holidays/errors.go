package holidays

import (
	"errors"
	"fmt"
)

// ErrorCode is the machine-readable code carried by HolidaysError.
type ErrorCode string

// CodeZoneNotFound: the referenced zone does not exist or is inactive.
const CodeZoneNotFound ErrorCode = "HOLIDAY_ZONE_NOT_FOUND"

// HolidaysError is the typed failure for zone lookups.
type HolidaysError struct {
	Code    ErrorCode
	Message string
	Details map[string]any
}

func (e *HolidaysError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewZoneNotFound builds the error for a missing or inactive zone.
func NewZoneNotFound(zoneID string) *HolidaysError {
	return &HolidaysError{
		Code:    CodeZoneNotFound,
		Message: fmt.Sprintf("holiday zone %q not found or inactive", zoneID),
		Details: map[string]any{"holidayZoneId": zoneID},
	}
}

// IsZoneNotFound reports whether err is a zone-not-found failure.
func IsZoneNotFound(err error) bool {
	var he *HolidaysError
	return errors.As(err, &he) && he.Code == CodeZoneNotFound
}

// ErrZoneCodeTaken is returned when creating a zone whose code already
// exists within the organisation.
var ErrZoneCodeTaken = errors.New("a holiday zone with this code already exists")
