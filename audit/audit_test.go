package audit_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/warp/debit-engine/audit"
)

func raw(s string) json.RawMessage { return json.RawMessage(s) }

// =============================================================================
// CHANGE SUMMARY TESTS
// =============================================================================

func TestChangeSummary_Create(t *testing.T) {
	got := audit.ChangeSummary(audit.ActionCreate, "company_config cc-1", nil, raw(`{"fixedDay":5}`))
	assert.Equal(t, "Created company_config cc-1", got)
}

func TestChangeSummary_Import_ReadsAsCreate(t *testing.T) {
	got := audit.ChangeSummary(audit.ActionImport, "import imp-1", nil, raw(`{}`))
	assert.Equal(t, "Created import imp-1", got)
}

func TestChangeSummary_Delete(t *testing.T) {
	got := audit.ChangeSummary(audit.ActionDelete, "holiday h-1", raw(`{"name":"x"}`), nil)
	assert.Equal(t, "Deleted holiday h-1", got)
}

func TestChangeSummary_Update_ListsChangedFields(t *testing.T) {
	// GIVEN: Two snapshots differing in fixedDay and shiftStrategy
	// THEN: Both fields appear, sorted

	before := raw(`{"fixedDay":5,"shiftStrategy":"NEXT_BUSINESS_DAY","holidayZoneId":"z-1"}`)
	after := raw(`{"fixedDay":10,"shiftStrategy":"PREVIOUS_BUSINESS_DAY","holidayZoneId":"z-1"}`)

	got := audit.ChangeSummary(audit.ActionUpdate, "contract_config ct-1", before, after)
	assert.Equal(t, "Changed fields: fixedDay, shiftStrategy", got)
}

func TestChangeSummary_Update_Identical_NoChanges(t *testing.T) {
	snap := raw(`{"fixedDay":5}`)
	got := audit.ChangeSummary(audit.ActionUpdate, "contract_config ct-1", snap, snap)
	assert.Equal(t, "No changes detected", got)
}

func TestChangeSummary_Update_IgnoresTimestampChurn(t *testing.T) {
	// createdAt and updatedAt move on every write and must not show up.
	before := raw(`{"fixedDay":5,"createdAt":"2025-01-01T00:00:00Z","updatedAt":"2025-01-01T00:00:00Z"}`)
	after := raw(`{"fixedDay":5,"createdAt":"2025-01-01T00:00:00Z","updatedAt":"2025-06-01T00:00:00Z"}`)

	got := audit.ChangeSummary(audit.ActionUpdate, "contract_config ct-1", before, after)
	assert.Equal(t, "No changes detected", got)
}

func TestChangeSummary_Update_AddedAndRemovedKeys(t *testing.T) {
	before := raw(`{"mode":"FIXED_DAY","fixedDay":5}`)
	after := raw(`{"mode":"BATCH","batch":"L2"}`)

	got := audit.ChangeSummary(audit.ActionUpdate, "contract_config ct-1", before, after)
	assert.Equal(t, "Changed fields: batch, fixedDay, mode", got)
}

func TestChangeSummary_Update_FormattingDifferencesIgnored(t *testing.T) {
	// Whitespace-only differences are not changes.
	before := raw(`{"fixedDay": 5}`)
	after := raw(`{ "fixedDay":5 }`)

	got := audit.ChangeSummary(audit.ActionUpdate, "contract_config ct-1", before, after)
	assert.Equal(t, "No changes detected", got)
}

// =============================================================================
// SNAPSHOT TESTS
// =============================================================================

func TestSnapshot_Nil(t *testing.T) {
	assert.Nil(t, audit.Snapshot(nil))
}

func TestSnapshot_Value(t *testing.T) {
	got := audit.Snapshot(map[string]int{"fixedDay": 5})
	assert.JSONEq(t, `{"fixedDay":5}`, string(got))
}

func TestSnapshot_UnmarshalableValue_DegradesToNull(t *testing.T) {
	// A channel cannot be marshaled; the snapshot degrades instead of failing.
	got := audit.Snapshot(make(chan int))
	assert.Equal(t, "null", string(got))
}

// =============================================================================
// LABEL TESTS
// =============================================================================

func TestDescribe(t *testing.T) {
	assert.Equal(t, "company_config cc-1", audit.Describe(audit.EntityCompanyConfig, "cc-1"))
	assert.Equal(t, "import", audit.Describe(audit.EntityImport, ""))
}
