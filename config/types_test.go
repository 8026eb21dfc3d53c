package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/debit-engine/config"
)

// =============================================================================
// BATCH RANGE TESTS
// =============================================================================

func TestBatch_RangeCompleteness_EveryDayCoveredOnce(t *testing.T) {
	// GIVEN: The four batch codes L1-L4
	// WHEN: Checking every day of the longest month
	// THEN: Each day 1-31 belongs to exactly one batch

	for day := 1; day <= 31; day++ {
		b, ok := config.BatchForDay(day)
		require.True(t, ok, "day %d must belong to a batch", day)

		r, ok := b.Range()
		require.True(t, ok)
		assert.GreaterOrEqual(t, day, r.First, "day %d outside %s", day, b)
		assert.LessOrEqual(t, day, r.Last, "day %d outside %s", day, b)
	}
}

func TestBatch_RangeBoundaries(t *testing.T) {
	cases := []struct {
		batch config.Batch
		first int
		last  int
	}{
		{config.BatchL1, 1, 7},
		{config.BatchL2, 8, 14},
		{config.BatchL3, 15, 21},
		{config.BatchL4, 22, 31},
	}
	for _, tc := range cases {
		r, ok := tc.batch.Range()
		require.True(t, ok, "batch %s must have a range", tc.batch)
		assert.Equal(t, tc.first, r.First)
		assert.Equal(t, tc.last, r.Last)
	}
}

func TestBatch_UnknownCode_NoRange(t *testing.T) {
	_, ok := config.Batch("L5").Range()
	assert.False(t, ok)

	_, ok = config.BatchForDay(0)
	assert.False(t, ok)
	_, ok = config.BatchForDay(32)
	assert.False(t, ok)
}

// =============================================================================
// POLICY VALIDATION TESTS
// =============================================================================

func TestPolicy_Validate(t *testing.T) {
	valid := config.Policy{
		Mode:          config.ModeBatch,
		Batch:         config.BatchL2,
		ShiftStrategy: config.ShiftNextBusinessDay,
	}
	assert.NoError(t, valid.Validate())

	fixed := config.Policy{
		Mode:          config.ModeFixedDay,
		FixedDay:      15,
		ShiftStrategy: config.ShiftPreviousBusinessDay,
	}
	assert.NoError(t, fixed.Validate())
}

func TestPolicy_Validate_BatchModeRequiresBatch(t *testing.T) {
	p := config.Policy{
		Mode:          config.ModeBatch,
		ShiftStrategy: config.ShiftNextBusinessDay,
	}
	assert.Error(t, p.Validate())
}

func TestPolicy_Validate_FixedDayBounds(t *testing.T) {
	// GIVEN: FIXED_DAY mode
	// THEN: Day 29+ is rejected so every month has the target date

	for _, day := range []int{0, 29, 31, 40} {
		p := config.Policy{
			Mode:          config.ModeFixedDay,
			FixedDay:      day,
			ShiftStrategy: config.ShiftNextBusinessDay,
		}
		assert.Error(t, p.Validate(), "day %d must be rejected", day)
	}

	for _, day := range []int{1, 28} {
		p := config.Policy{
			Mode:          config.ModeFixedDay,
			FixedDay:      day,
			ShiftStrategy: config.ShiftNextBusinessDay,
		}
		assert.NoError(t, p.Validate(), "day %d must be accepted", day)
	}
}

func TestPolicy_Validate_ZoneNotRequiredAtWriteTime(t *testing.T) {
	// A half-configured row (no zone) is storable; resolution surfaces the
	// gap later as HOLIDAY_ZONE_REQUIRED.
	p := config.Policy{
		Mode:          config.ModeFixedDay,
		FixedDay:      5,
		ShiftStrategy: config.ShiftNextWeekSameDay,
	}
	assert.NoError(t, p.Validate())
	assert.Empty(t, p.HolidayZoneID)
}

// =============================================================================
// POLICY PATCH TESTS
// =============================================================================

func TestPolicyPatch_Apply_OnlyProvidedFields(t *testing.T) {
	base := config.Policy{
		Mode:          config.ModeFixedDay,
		FixedDay:      5,
		ShiftStrategy: config.ShiftNextBusinessDay,
		HolidayZoneID: "zone-fr",
	}

	newDay := 10
	patch := config.PolicyPatch{FixedDay: &newDay}
	got := patch.Apply(base)

	assert.Equal(t, 10, got.FixedDay)
	assert.Equal(t, config.ModeFixedDay, got.Mode)
	assert.Equal(t, config.ShiftNextBusinessDay, got.ShiftStrategy)
	assert.Equal(t, "zone-fr", got.HolidayZoneID)
}

func TestPolicyPatch_IsEmpty(t *testing.T) {
	assert.True(t, config.PolicyPatch{}.IsEmpty())

	mode := config.ModeBatch
	assert.False(t, config.PolicyPatch{Mode: &mode}.IsEmpty())
}
