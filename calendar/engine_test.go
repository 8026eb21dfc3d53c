package calendar_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/debit-engine/calendar"
	"github.com/warp/debit-engine/config"
	"github.com/warp/debit-engine/holidays"
	"github.com/warp/debit-engine/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

const testOrg = "org-1"

// newTestEngine wires a real resolver and holidays service over the memory
// store, with an active ZZ zone (no computed holidays).
func newTestEngine(t *testing.T) (*calendar.Engine, *memory.Store) {
	t.Helper()
	store := memory.New()
	require.NoError(t, store.SaveZone(context.Background(), &holidays.Zone{
		ID:             "zone-1",
		OrganisationID: testOrg,
		Code:           "zz",
		Name:           "Test Zone",
		CountryCode:    "ZZ",
		Status:         config.StatusActive,
		CreatedAt:      time.Now().UTC(),
	}))

	resolver := config.NewResolver(store)
	holidayService := holidays.NewService(store, holidays.NewCalculatorCache())
	return calendar.NewEngine(resolver, holidayService), store
}

func seedSystemPolicy(t *testing.T, store *memory.Store, policy config.Policy) {
	t.Helper()
	now := time.Now().UTC()
	require.NoError(t, store.SaveSystemConfig(context.Background(), &config.SystemConfig{
		ID:             "sys-1",
		OrganisationID: testOrg,
		Policy:         policy,
		CreatedAt:      now,
		UpdatedAt:      now,
	}))
}

func seedContractPolicy(t *testing.T, store *memory.Store, id, contratID string, policy config.Policy) {
	t.Helper()
	now := time.Now().UTC()
	require.NoError(t, store.SaveContractConfig(context.Background(), &config.ContractConfig{
		ID:             id,
		OrganisationID: testOrg,
		ContratID:      contratID,
		Policy:         policy,
		Status:         config.StatusActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}))
}

func seedHolidayOn(t *testing.T, store *memory.Store, name string, day time.Time) {
	t.Helper()
	require.NoError(t, store.SaveHoliday(context.Background(), &holidays.Holiday{
		ID:        "h-" + name,
		ZoneID:    "zone-1",
		Name:      name,
		Type:      holidays.TypePublic,
		Date:      day,
		CreatedAt: time.Now().UTC(),
	}))
}

func fixedDayPolicy(day int, strategy config.ShiftStrategy) config.Policy {
	return config.Policy{
		Mode:          config.ModeFixedDay,
		FixedDay:      day,
		ShiftStrategy: strategy,
		HolidayZoneID: "zone-1",
	}
}

func orgInput(month time.Month, year int) calendar.Input {
	return calendar.Input{
		Keys:        config.Keys{OrganisationID: testOrg},
		TargetMonth: month,
		TargetYear:  year,
	}
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// alwaysBlockedChecker reports every date as ineligible and counts probes.
type alwaysBlockedChecker struct {
	probes int
}

func (c *alwaysBlockedChecker) CheckEligibility(_ context.Context, date time.Time, _ string) (*holidays.Eligibility, error) {
	c.probes++
	return &holidays.Eligibility{Date: date, IsHoliday: true, Reason: "holiday:blocked"}, nil
}

// staticResolver returns one fixed resolution for every call.
type staticResolver struct {
	resolved config.Resolved
}

func (r *staticResolver) Resolve(context.Context, config.Keys) (*config.Resolved, error) {
	out := r.resolved
	return &out, nil
}

// =============================================================================
// NOMINAL DATE TESTS
// =============================================================================

func TestCalculatePlannedDate_EligibleDate_NoShift(t *testing.T) {
	// GIVEN: FIXED_DAY=15, June 2025 (a Sunday-free pick: the 15th is a
	//        Sunday, so use May where the 15th is a Thursday)
	// WHEN: Computing
	// THEN: The nominal date is returned unshifted

	engine, store := newTestEngine(t)
	seedSystemPolicy(t, store, fixedDayPolicy(15, config.ShiftNextBusinessDay))

	result, err := engine.CalculatePlannedDate(context.Background(), orgInput(time.May, 2025))
	require.NoError(t, err)

	assert.Equal(t, day(2025, time.May, 15), result.PlannedDate)
	assert.Equal(t, day(2025, time.May, 15), result.OriginalTargetDate)
	assert.False(t, result.WasShifted)
	assert.Empty(t, result.ShiftReason)
}

func TestCalculatePlannedDate_BatchMode_RangeStart(t *testing.T) {
	// GIVEN: BATCH L3 (days 15-21)
	// THEN: The nominal date is the first day of the range

	engine, store := newTestEngine(t)
	seedSystemPolicy(t, store, config.Policy{
		Mode:          config.ModeBatch,
		Batch:         config.BatchL3,
		ShiftStrategy: config.ShiftNextBusinessDay,
		HolidayZoneID: "zone-1",
	})

	result, err := engine.CalculatePlannedDate(context.Background(), orgInput(time.May, 2025))
	require.NoError(t, err)
	assert.Equal(t, day(2025, time.May, 15), result.OriginalTargetDate)
}

func TestCalculatePlannedDate_BatchModeWithoutBatch_Error(t *testing.T) {
	engine, store := newTestEngine(t)
	seedSystemPolicy(t, store, config.Policy{
		Mode:          config.ModeBatch,
		ShiftStrategy: config.ShiftNextBusinessDay,
		HolidayZoneID: "zone-1",
	})

	_, err := engine.CalculatePlannedDate(context.Background(), orgInput(time.May, 2025))
	require.Error(t, err)
	assert.True(t, calendar.IsCode(err, calendar.CodeBatchRequired))
}

// =============================================================================
// SHIFT STRATEGY TESTS
// =============================================================================

func TestShift_Saturday_NextBusinessDay_Monday(t *testing.T) {
	// GIVEN: FIXED_DAY=10; 2025-05-10 is a Saturday
	// WHEN: Shifting with NEXT_BUSINESS_DAY
	// THEN: Monday 2025-05-12, reason "weekend"

	engine, store := newTestEngine(t)
	seedSystemPolicy(t, store, fixedDayPolicy(10, config.ShiftNextBusinessDay))

	result, err := engine.CalculatePlannedDate(context.Background(), orgInput(time.May, 2025))
	require.NoError(t, err)

	assert.Equal(t, day(2025, time.May, 12), result.PlannedDate)
	assert.Equal(t, day(2025, time.May, 10), result.OriginalTargetDate)
	assert.True(t, result.WasShifted)
	assert.Equal(t, "weekend", result.ShiftReason)
}

func TestShift_Holiday_PreviousBusinessDay(t *testing.T) {
	// GIVEN: FIXED_DAY=1, May 2025, with 2025-05-01 stored as a holiday
	// WHEN: Shifting with PREVIOUS_BUSINESS_DAY
	// THEN: Wednesday 2025-04-30 (the holiday named in the reason)

	engine, store := newTestEngine(t)
	seedSystemPolicy(t, store, fixedDayPolicy(1, config.ShiftPreviousBusinessDay))
	seedHolidayOn(t, store, "Labor Day", day(2025, time.May, 1))

	result, err := engine.CalculatePlannedDate(context.Background(), orgInput(time.May, 2025))
	require.NoError(t, err)

	assert.Equal(t, day(2025, time.April, 30), result.PlannedDate)
	assert.True(t, result.WasShifted)
	assert.Equal(t, "holiday:Labor Day", result.ShiftReason)
}

func TestShift_NextWeekSameDay_LandsSevenOut(t *testing.T) {
	// GIVEN: FIXED_DAY=3; 2025-05-03 is a Saturday
	// WHEN: Shifting with NEXT_WEEK_SAME_DAY
	// THEN: 2025-05-10 is also a Saturday, so the forward scan from there
	//       lands on Monday 2025-05-12

	engine, store := newTestEngine(t)
	seedSystemPolicy(t, store, fixedDayPolicy(3, config.ShiftNextWeekSameDay))

	result, err := engine.CalculatePlannedDate(context.Background(), orgInput(time.May, 2025))
	require.NoError(t, err)
	assert.Equal(t, day(2025, time.May, 12), result.PlannedDate)
}

func TestShift_NextWeekSameDay_EligibleLanding(t *testing.T) {
	// GIVEN: FIXED_DAY=1 blocked by a holiday; 2025-05-08 is a Thursday
	// THEN: The +7 landing is eligible and wins without scanning

	engine, store := newTestEngine(t)
	seedSystemPolicy(t, store, fixedDayPolicy(1, config.ShiftNextWeekSameDay))
	seedHolidayOn(t, store, "Labor Day", day(2025, time.May, 1))

	result, err := engine.CalculatePlannedDate(context.Background(), orgInput(time.May, 2025))
	require.NoError(t, err)
	assert.Equal(t, day(2025, time.May, 8), result.PlannedDate)
}

func TestShift_EverythingBlocked_BoundedAtThirtyProbes(t *testing.T) {
	// GIVEN: A checker that never yields an eligible date
	// WHEN: Shifting forward
	// THEN: NO_ELIGIBLE_DATE_FOUND after exactly 30 shift probes (plus the
	//       initial nominal-date check)

	checker := &alwaysBlockedChecker{}
	engine := calendar.NewEngine(&staticResolver{resolved: config.Resolved{
		Policy:          fixedDayPolicy(15, config.ShiftNextBusinessDay),
		AppliedLevel:    config.LevelSystem,
		AppliedConfigID: "sys-1",
	}}, checker)

	_, err := engine.CalculatePlannedDate(context.Background(), orgInput(time.May, 2025))
	require.Error(t, err)
	assert.True(t, calendar.IsCode(err, calendar.CodeNoEligibleDateFound))
	assert.Equal(t, 31, checker.probes, "1 nominal check + 30 bounded shift probes")
}

// =============================================================================
// TRACE TESTS
// =============================================================================

func TestCalculatePlannedDate_Trace_OptIn(t *testing.T) {
	engine, store := newTestEngine(t)
	seedSystemPolicy(t, store, fixedDayPolicy(10, config.ShiftNextBusinessDay))

	// Without the flag: no trace.
	plain, err := engine.CalculatePlannedDate(context.Background(), orgInput(time.May, 2025))
	require.NoError(t, err)
	assert.Empty(t, plain.Trace)

	// With the flag: the full pipeline is recorded.
	in := orgInput(time.May, 2025)
	in.IncludeTrace = true
	traced, err := engine.CalculatePlannedDate(context.Background(), in)
	require.NoError(t, err)

	steps := make([]string, len(traced.Trace))
	for i, s := range traced.Trace {
		steps[i] = s.Step
	}
	assert.Equal(t, []string{
		"resolve_configuration",
		"compute_target_date",
		"check_eligibility",
		"apply_shift",
	}, steps)

	// The trace is observational: results match the untraced run.
	assert.Equal(t, plain.PlannedDate, traced.PlannedDate)
}

// =============================================================================
// BATCH COMPUTATION TESTS
// =============================================================================

func TestCalculateBatch_ItemFailure_Isolated(t *testing.T) {
	// GIVEN: Three contracts, one carrying fixedDay=40 written straight to
	//        the store (bypassing service validation)
	// WHEN: Computing the batch
	// THEN: Two successes, one FIXED_DAY_OUT_OF_RANGE slot, order preserved

	engine, store := newTestEngine(t)
	seedContractPolicy(t, store, "ct-1", "contrat-1", fixedDayPolicy(5, config.ShiftNextBusinessDay))
	seedContractPolicy(t, store, "ct-2", "contrat-2", fixedDayPolicy(40, config.ShiftNextBusinessDay))
	seedContractPolicy(t, store, "ct-3", "contrat-3", fixedDayPolicy(6, config.ShiftNextBusinessDay))

	result := engine.CalculateBatch(context.Background(), testOrg, time.May, 2025, []calendar.BatchInput{
		{ContratID: "contrat-1", Reference: "ref-1"},
		{ContratID: "contrat-2", Reference: "ref-2"},
		{ContratID: "contrat-3", Reference: "ref-3"},
	})

	assert.Equal(t, 3, result.TotalCount)
	assert.Equal(t, 2, result.SuccessCount)
	assert.Equal(t, 1, result.ErrorCount)
	require.Len(t, result.Items, 3)

	assert.Equal(t, "ref-1", result.Items[0].Input.Reference)
	require.NotNil(t, result.Items[0].Result)
	assert.Equal(t, day(2025, time.May, 5), result.Items[0].Result.PlannedDate)

	assert.Nil(t, result.Items[1].Result)
	assert.Equal(t, "FIXED_DAY_OUT_OF_RANGE", result.Items[1].ErrorCode)

	require.NotNil(t, result.Items[2].Result)
	assert.Equal(t, day(2025, time.May, 6), result.Items[2].Result.PlannedDate)
}

func TestCalculateBatch_MissingConfig_ErrorSlot(t *testing.T) {
	engine, _ := newTestEngine(t)

	result := engine.CalculateBatch(context.Background(), testOrg, time.May, 2025, []calendar.BatchInput{
		{ContratID: "contrat-1"},
	})

	assert.Equal(t, 1, result.ErrorCount)
	assert.Equal(t, "NO_CONFIGURATION_FOUND", result.Items[0].ErrorCode)
}

func TestCalculateBatch_Empty(t *testing.T) {
	engine, _ := newTestEngine(t)

	result := engine.CalculateBatch(context.Background(), testOrg, time.May, 2025, nil)
	assert.Equal(t, 0, result.TotalCount)
	assert.Empty(t, result.Items)
}
