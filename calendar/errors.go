package calendar

import (
	"errors"
	"fmt"

	"github.com/warp/debit-engine/config"
	"github.com/warp/debit-engine/holidays"
)

// ErrorCode is the machine-readable code carried by CalendarError.
type ErrorCode string

const (
	CodeBatchRequired        ErrorCode = "BATCH_REQUIRED"
	CodeFixedDayOutOfRange   ErrorCode = "FIXED_DAY_OUT_OF_RANGE"
	CodeInvalidMode          ErrorCode = "INVALID_MODE"
	CodeInvalidShiftStrategy ErrorCode = "INVALID_SHIFT_STRATEGY"
	CodeNoEligibleDateFound  ErrorCode = "NO_ELIGIBLE_DATE_FOUND"
)

// CalendarError is the typed failure of a date computation.
type CalendarError struct {
	Code    ErrorCode
	Message string
	Details map[string]any
}

func (e *CalendarError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func newCalendarError(code ErrorCode, msg string, details map[string]any) *CalendarError {
	return &CalendarError{Code: code, Message: msg, Details: details}
}

// IsCode reports whether err is a CalendarError with the given code.
func IsCode(err error, code ErrorCode) bool {
	var ce *CalendarError
	return errors.As(err, &ce) && ce.Code == code
}

// CodeOf extracts the machine-readable code from any of the engine's typed
// error families. Batch computation uses it to fill per-item error slots.
func CodeOf(err error) string {
	var calErr *CalendarError
	if errors.As(err, &calErr) {
		return string(calErr.Code)
	}
	var cfgErr *config.ConfigurationError
	if errors.As(err, &cfgErr) {
		return string(cfgErr.Code)
	}
	var holErr *holidays.HolidaysError
	if errors.As(err, &holErr) {
		return string(holErr.Code)
	}
	return "INTERNAL"
}
