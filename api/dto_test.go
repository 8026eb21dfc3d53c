/*
dto_test.go - Wire enum and DTO conversion tests

Tests for:
- Integer enum tables (both directions, totality)
- Rejection of unspecified and unmapped wire values
- Policy and holiday request decoding
*/
package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/debit-engine/config"
	"github.com/warp/debit-engine/holidays"
)

// =============================================================================
// ENUM TABLE TESTS
// =============================================================================

func TestWireTables_Inverse(t *testing.T) {
	// Every encode table entry must round-trip through its decode table.
	for mode, wire := range modeToWire {
		assert.Equal(t, mode, wireToMode[wire])
	}
	for batch, wire := range batchToWire {
		assert.Equal(t, batch, wireToBatch[wire])
	}
	for shift, wire := range shiftToWire {
		assert.Equal(t, shift, wireToShift[wire])
	}
	for ht, wire := range holidayTypeToWire {
		assert.Equal(t, ht, wireToHolidayType[wire])
	}
	for src, wire := range sourceToWire {
		assert.Equal(t, src, wireToSource[wire])
	}
}

func TestWireTables_ZeroIsNeverMapped(t *testing.T) {
	// 0 is the unspecified sentinel and must stay outside every table.
	for _, wire := range modeToWire {
		assert.NotEqual(t, wireUnspecified, wire)
	}
	_, ok := wireToMode[wireUnspecified]
	assert.False(t, ok)
	_, ok = wireToBatch[wireUnspecified]
	assert.False(t, ok)
	_, ok = wireToShift[wireUnspecified]
	assert.False(t, ok)
	_, ok = wireToHolidayType[wireUnspecified]
	assert.False(t, ok)
	_, ok = wireToSource[wireUnspecified]
	assert.False(t, ok)
}

func TestDecodeMode(t *testing.T) {
	mode, err := decodeMode(1)
	require.NoError(t, err)
	assert.Equal(t, config.ModeBatch, mode)

	_, err = decodeMode(0)
	assert.EqualError(t, err, "mode is required")

	// Unmapped values are hard errors, never silent defaults.
	_, err = decodeMode(99)
	assert.EqualError(t, err, "unknown mode value 99")
}

func TestDecodeBatch_ZeroMeansAbsent(t *testing.T) {
	// Batch is optional: 0 decodes to the empty value without error.
	batch, err := decodeBatch(0)
	require.NoError(t, err)
	assert.Empty(t, batch)

	batch, err = decodeBatch(3)
	require.NoError(t, err)
	assert.Equal(t, config.BatchL3, batch)

	_, err = decodeBatch(5)
	assert.EqualError(t, err, "unknown batch value 5")
}

func TestDecodeShift(t *testing.T) {
	shift, err := decodeShift(2)
	require.NoError(t, err)
	assert.Equal(t, config.ShiftPreviousBusinessDay, shift)

	_, err = decodeShift(0)
	assert.Error(t, err)
	_, err = decodeShift(7)
	assert.Error(t, err)
}

// =============================================================================
// POLICY DTO TESTS
// =============================================================================

func TestPolicyDTO_RoundTrip(t *testing.T) {
	in := config.Policy{
		Mode:          config.ModeBatch,
		Batch:         config.BatchL4,
		ShiftStrategy: config.ShiftNextWeekSameDay,
		HolidayZoneID: "zone-1",
	}

	out, err := policyDTO(in).domain()
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestPolicyDTO_UnmappedMode_Rejected(t *testing.T) {
	dto := PolicyDTO{Mode: 42, ShiftStrategy: 1, HolidayZoneID: "zone-1"}
	_, err := dto.domain()
	assert.EqualError(t, err, "unknown mode value 42")
}

func TestPolicyPatchDTO_OnlyProvidedFields(t *testing.T) {
	day := 10
	patch, err := PolicyPatchDTO{FixedDay: &day}.domain()
	require.NoError(t, err)

	assert.Nil(t, patch.Mode)
	assert.Nil(t, patch.ShiftStrategy)
	require.NotNil(t, patch.FixedDay)
	assert.Equal(t, 10, *patch.FixedDay)
}

func TestPolicyPatchDTO_UnmappedShift_Rejected(t *testing.T) {
	bad := 9
	_, err := PolicyPatchDTO{ShiftStrategy: &bad}.domain()
	assert.EqualError(t, err, "unknown shiftStrategy value 9")
}

// =============================================================================
// HOLIDAY REQUEST TESTS
// =============================================================================

func TestCreateHolidayRequest_Domain(t *testing.T) {
	h, err := CreateHolidayRequest{
		ZoneID: "zone-1",
		Name:   "Site Closure",
		Type:   4,
		Date:   "2025-08-15",
	}.domain()
	require.NoError(t, err)

	assert.Equal(t, holidays.TypeCompany, h.Type)
	assert.Equal(t, "2025-08-15", h.Date.Format(dateLayout))
}

func TestCreateHolidayRequest_BadDate(t *testing.T) {
	_, err := CreateHolidayRequest{
		ZoneID: "zone-1",
		Name:   "Bad",
		Type:   1,
		Date:   "15/08/2025",
	}.domain()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "yyyy-MM-dd")
}

func TestCreateHolidayRequest_UnknownType(t *testing.T) {
	_, err := CreateHolidayRequest{ZoneID: "zone-1", Name: "Bad", Type: 8}.domain()
	assert.EqualError(t, err, "unknown holidayType value 8")
}
