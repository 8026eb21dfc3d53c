package holidays_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/debit-engine/holidays"
)

func TestCalculatorCache_KnownCountries(t *testing.T) {
	cache := holidays.NewCalculatorCache()

	cases := []struct {
		country string
		day     time.Time
	}{
		{"FR", time.Date(2025, time.July, 14, 0, 0, 0, 0, time.UTC)},   // Fête nationale
		{"DE", time.Date(2025, time.October, 3, 0, 0, 0, 0, time.UTC)}, // Tag der Deutschen Einheit
		{"US", time.Date(2025, time.July, 4, 0, 0, 0, 0, time.UTC)},    // Independence Day
	}
	for _, tc := range cases {
		name, ok := cache.Holiday(tc.country, "", tc.day)
		assert.True(t, ok, "%s on %s", tc.country, tc.day.Format("2006-01-02"))
		assert.NotEmpty(t, name)
	}
}

func TestCalculatorCache_CaseInsensitiveCountry(t *testing.T) {
	cache := holidays.NewCalculatorCache()

	upper, okUpper := cache.Holiday("FR", "", time.Date(2025, time.May, 1, 0, 0, 0, 0, time.UTC))
	lower, okLower := cache.Holiday("fr", "", time.Date(2025, time.May, 1, 0, 0, 0, 0, time.UTC))

	assert.True(t, okUpper)
	assert.True(t, okLower)
	assert.Equal(t, upper, lower)
}

func TestCalculatorCache_UnknownCountry_Silent(t *testing.T) {
	// Missing rule sets are not an error: the date is simply not a holiday.
	cache := holidays.NewCalculatorCache()

	_, ok := cache.Holiday("ZZ", "", time.Date(2025, time.May, 1, 0, 0, 0, 0, time.UTC))
	assert.False(t, ok)
	assert.Empty(t, cache.HolidaysForYear("ZZ", "", 2025))
}

func TestCalculatorCache_OrdinaryDay_NotHoliday(t *testing.T) {
	cache := holidays.NewCalculatorCache()

	_, ok := cache.Holiday("FR", "", time.Date(2025, time.March, 12, 0, 0, 0, 0, time.UTC))
	assert.False(t, ok)
}

func TestCalculatorCache_HolidaysForYear(t *testing.T) {
	cache := holidays.NewCalculatorCache()

	days := cache.HolidaysForYear("FR", "", 2025)
	require.NotEmpty(t, days)

	var hasMayFirst bool
	for _, d := range days {
		assert.Equal(t, 2025, d.Date.Year())
		assert.Equal(t, "computed", d.Source)
		if d.Date.Month() == time.May && d.Date.Day() == 1 {
			hasMayFirst = true
		}
	}
	assert.True(t, hasMayFirst, "May 1 must be among the computed holidays")
}
