/*
calculator.go - Cached computed-holiday calculators per country/region

The calculator is the eligibility fallback: when no stored holiday matches
a date, the zone's country rule set (github.com/rickar/cal) decides. Rule
sets are assumed stable within a process lifetime, so calculators are built
lazily on first use and never invalidated. A racing rebuild is harmless -
the result is identical - so the mutex only guards the map itself.

Countries without a registered rule set yield "not a holiday" silently;
many jurisdictions simply have no available rules and that must not be an
error.
*/
package holidays

import (
	"strings"
	"sync"
	"time"

	"github.com/rickar/cal/v2"
	"github.com/rickar/cal/v2/de"
	"github.com/rickar/cal/v2/fr"
	"github.com/rickar/cal/v2/gb"
	"github.com/rickar/cal/v2/us"
)

// countryRules maps ISO-3166 alpha-2 codes to their holiday rule sets.
// Region-specific sets can be layered in via regionRules.
var countryRules = map[string][]*cal.Holiday{
	"DE": de.Holidays,
	"FR": fr.Holidays,
	"GB": gb.Holidays,
	"US": us.Holidays,
}

// regionRules holds sub-national additions, keyed by "CC/RR".
var regionRules = map[string][]*cal.Holiday{}

type calcKey struct {
	country string
	region  string
}

// CalculatorCache builds and caches one calendar per (country, region).
// Entries live for the process lifetime.
type CalculatorCache struct {
	mu    sync.Mutex
	calcs map[calcKey]*cal.Calendar
}

// NewCalculatorCache creates an empty cache.
func NewCalculatorCache() *CalculatorCache {
	return &CalculatorCache{calcs: make(map[calcKey]*cal.Calendar)}
}

// calendarFor returns the cached calendar for the pair, building it on
// first use. Returns nil when the country has no rule set.
func (c *CalculatorCache) calendarFor(country, region string) *cal.Calendar {
	key := calcKey{country: strings.ToUpper(country), region: strings.ToUpper(region)}

	c.mu.Lock()
	defer c.mu.Unlock()
	if calendar, ok := c.calcs[key]; ok {
		return calendar
	}

	rules, ok := countryRules[key.country]
	if !ok {
		c.calcs[key] = nil
		return nil
	}
	calendar := &cal.Calendar{Name: key.country}
	calendar.AddHoliday(rules...)
	if key.region != "" {
		if extra, ok := regionRules[key.country+"/"+key.region]; ok {
			calendar.AddHoliday(extra...)
		}
	}
	c.calcs[key] = calendar
	return calendar
}

// Holiday returns the computed holiday name for a date, if the country's
// rule set marks it. The bool is false for unknown countries.
func (c *CalculatorCache) Holiday(country, region string, date time.Time) (string, bool) {
	calendar := c.calendarFor(country, region)
	if calendar == nil {
		return "", false
	}
	actual, _, h := calendar.IsHoliday(date)
	if !actual || h == nil {
		return "", false
	}
	return h.Name, true
}

// HolidaysForYear lists the computed occurrences for one year, used by the
// range listings. Empty for unknown countries.
func (c *CalculatorCache) HolidaysForYear(country, region string, year int) []DayHoliday {
	calendar := c.calendarFor(country, region)
	if calendar == nil {
		return nil
	}

	var out []DayHoliday
	for _, h := range calendar.Holidays {
		actual, _ := h.Calc(year)
		if actual.IsZero() {
			continue
		}
		out = append(out, DayHoliday{
			Date:   time.Date(actual.Year(), actual.Month(), actual.Day(), 0, 0, 0, 0, time.UTC),
			Name:   h.Name,
			Type:   TypePublic,
			Source: "computed",
		})
	}
	return out
}
