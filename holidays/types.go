/*
Package holidays answers one question for the calendar engine: is this date
a valid business day in this zone?

PURPOSE:
  A holiday zone is an organisation-scoped jurisdiction tied to a country
  (and optionally a region). Each zone owns explicit one-off holidays and
  recurring month+day holidays. When neither matches a date, a cached
  per-country computed calculator acts as the fallback, so a zone works out
  of the box for countries with known rule sets.

ELIGIBILITY ORDER (first match wins, cheapest first):
  1. Weekend check - pure day-of-week, no I/O
  2. Explicit single-date holiday in the store
  3. Recurring holiday (month+day, any year)
  4. Computed calculator for the zone's country/region

SEE ALSO:
  - service.go: eligibility checks and range listings
  - calculator.go: the computed-holiday cache
*/
package holidays

import (
	"fmt"
	"time"

	"github.com/warp/debit-engine/config"
)

// HolidayType classifies a holiday record.
type HolidayType string

const (
	TypePublic   HolidayType = "public"
	TypeBank     HolidayType = "bank"
	TypeRegional HolidayType = "regional"
	TypeCompany  HolidayType = "company"
)

func (t HolidayType) Valid() bool {
	switch t {
	case TypePublic, TypeBank, TypeRegional, TypeCompany:
		return true
	}
	return false
}

// Zone is a named jurisdiction whose calendar governs eligibility.
// Soft-disabled via status, never hard-deleted while referenced.
type Zone struct {
	ID             string        `json:"id"`
	OrganisationID string        `json:"organisationId"`
	Code           string        `json:"code"`
	Name           string        `json:"name"`
	CountryCode    string        `json:"countryCode"`          // ISO-3166 alpha-2
	RegionCode     string        `json:"regionCode,omitempty"` // optional sub-national code
	Status         config.Status `json:"status"`
	CreatedAt      time.Time     `json:"createdAt"`
}

// Holiday is either a one-off date or a recurring month+day entry.
type Holiday struct {
	ID        string      `json:"id"`
	ZoneID    string      `json:"zoneId"`
	Name      string      `json:"name"`
	Type      HolidayType `json:"holidayType"`
	Date      time.Time   `json:"date,omitempty"` // one-off only
	Recurring bool        `json:"recurring"`
	Month     time.Month  `json:"month,omitempty"` // recurring only
	Day       int         `json:"day,omitempty"`   // recurring only
	CreatedAt time.Time   `json:"createdAt"`
}

// Validate enforces the record invariant: recurring entries carry month+day,
// one-off entries carry a concrete date.
func (h Holiday) Validate() error {
	if h.Name == "" {
		return fmt.Errorf("holiday name is required")
	}
	if !h.Type.Valid() {
		return fmt.Errorf("invalid holiday type %q", h.Type)
	}
	if h.Recurring {
		if h.Month < time.January || h.Month > time.December {
			return fmt.Errorf("recurring holiday requires a month 1-12, got %d", h.Month)
		}
		if h.Day < 1 || h.Day > 31 {
			return fmt.Errorf("recurring holiday requires a day 1-31, got %d", h.Day)
		}
		return nil
	}
	if h.Date.IsZero() {
		return fmt.Errorf("non-recurring holiday requires a concrete date")
	}
	return nil
}

// Matches reports whether the holiday falls on the given date.
func (h Holiday) Matches(date time.Time) bool {
	if h.Recurring {
		return h.Month == date.Month() && h.Day == date.Day()
	}
	return h.Date.Year() == date.Year() && h.Date.Month() == date.Month() && h.Date.Day() == date.Day()
}

// OccurrenceIn returns the holiday's concrete date within a year, and
// whether it occurs in that year at all.
func (h Holiday) OccurrenceIn(year int) (time.Time, bool) {
	if h.Recurring {
		return time.Date(year, h.Month, h.Day, 0, 0, 0, 0, time.UTC), true
	}
	if h.Date.Year() != year {
		return time.Time{}, false
	}
	return h.Date, true
}

// DayHoliday is one resolved holiday occurrence, used by range listings.
// Source distinguishes stored records from calculator output.
type DayHoliday struct {
	Date   time.Time   `json:"date"`
	Name   string      `json:"name"`
	Type   HolidayType `json:"holidayType"`
	Source string      `json:"source"` // "stored" or "computed"
}

// Eligibility is the full answer for one date in one zone.
type Eligibility struct {
	Date        time.Time `json:"date"`
	IsEligible  bool      `json:"isEligible"`
	IsWeekend   bool      `json:"isWeekend"`
	IsHoliday   bool      `json:"isHoliday"`
	HolidayName string    `json:"holidayName,omitempty"`
	// Reason is "weekend", "holiday:<name>", or "eligible".
	Reason string `json:"reason"`
}

// IsWeekend reports whether the date falls on Saturday or Sunday.
func IsWeekend(date time.Time) bool {
	wd := date.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}
