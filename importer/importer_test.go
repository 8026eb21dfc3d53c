package importer_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/debit-engine/audit"
	"github.com/warp/debit-engine/config"
	"github.com/warp/debit-engine/holidays"
	"github.com/warp/debit-engine/importer"
	"github.com/warp/debit-engine/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

const testOrg = "org-1"

func newTestImporter(t *testing.T) (*importer.Importer, *memory.Store) {
	t.Helper()
	store := memory.New()

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	configService := config.NewService(store, store, log)
	holidayService := holidays.NewService(store, holidays.NewCalculatorCache())

	// One zone every fixture can reference by code.
	require.NoError(t, store.SaveZone(context.Background(), &holidays.Zone{
		ID:             "zone-fr",
		OrganisationID: testOrg,
		Code:           "fr-metro",
		Name:           "France",
		CountryCode:    "FR",
		Status:         config.StatusActive,
		CreatedAt:      time.Now().UTC(),
	}))

	return importer.New(configService, holidayService, store, log), store
}

func runImport(t *testing.T, im *importer.Importer, typ importer.Type, content string, dryRun bool) *importer.Result {
	t.Helper()
	result, err := im.Import(context.Background(), importer.Input{
		OrganisationID: testOrg,
		Type:           typ,
		Content:        content,
		DryRun:         dryRun,
		ActorID:        "ops-1",
	})
	require.NoError(t, err)
	return result
}

// =============================================================================
// CONFIG IMPORT TESTS
// =============================================================================

func TestImport_ContractConfigs_Applied(t *testing.T) {
	// GIVEN: Two valid contract rows
	// WHEN: Importing
	// THEN: Both configs resolve afterwards with the imported policies

	im, store := newTestImporter(t)

	content := "contrat_id,mode,batch,fixed_day,shift_strategy,holiday_zone_code\n" +
		"contrat-1,FIXED_DAY,,5,NEXT_BUSINESS_DAY,fr-metro\n" +
		"contrat-2,BATCH,L2,,NEXT_WEEK_SAME_DAY,fr-metro\n"

	result := runImport(t, im, importer.TypeContract, content, false)
	assert.Equal(t, 2, result.TotalRows)
	assert.Equal(t, 2, result.ValidRows)
	assert.Equal(t, 0, result.ErrorRows)
	assert.NotEmpty(t, result.ImportID)

	resolver := config.NewResolver(store)
	resolved, err := resolver.Resolve(context.Background(), config.Keys{
		OrganisationID: testOrg,
		ContratID:      "contrat-1",
	})
	require.NoError(t, err)
	assert.Equal(t, config.ModeFixedDay, resolved.Mode)
	assert.Equal(t, 5, resolved.FixedDay)
	assert.Equal(t, "zone-fr", resolved.HolidayZoneID, "zone code resolved to the zone id")

	resolved, err = resolver.Resolve(context.Background(), config.Keys{
		OrganisationID: testOrg,
		ContratID:      "contrat-2",
	})
	require.NoError(t, err)
	assert.Equal(t, config.ModeBatch, resolved.Mode)
	assert.Equal(t, config.BatchL2, resolved.Batch)
}

func TestImport_ReimportUpdatesExistingConfig(t *testing.T) {
	// Importing the same key twice updates the one active config instead of
	// stacking a duplicate.

	im, store := newTestImporter(t)
	header := "societe_id,mode,batch,fixed_day,shift_strategy,holiday_zone_code\n"

	runImport(t, im, importer.TypeCompany, header+"societe-1,FIXED_DAY,,5,NEXT_BUSINESS_DAY,fr-metro\n", false)
	runImport(t, im, importer.TypeCompany, header+"societe-1,FIXED_DAY,,20,NEXT_BUSINESS_DAY,fr-metro\n", false)

	configs, err := store.ListCompanyConfigs(context.Background(), testOrg)
	require.NoError(t, err)
	require.Len(t, configs, 1)
	assert.Equal(t, 20, configs[0].FixedDay)
}

func TestImport_ModeSwitchClearsOffModeField(t *testing.T) {
	// A row carries the whole policy: reimporting a BATCH config as
	// FIXED_DAY must drop the stale batch code from the stored row, not
	// just overlay the new day.

	im, store := newTestImporter(t)
	header := "societe_id,mode,batch,fixed_day,shift_strategy,holiday_zone_code\n"

	runImport(t, im, importer.TypeCompany, header+"societe-1,BATCH,L2,,NEXT_BUSINESS_DAY,fr-metro\n", false)
	runImport(t, im, importer.TypeCompany, header+"societe-1,FIXED_DAY,,15,NEXT_BUSINESS_DAY,fr-metro\n", false)

	configs, err := store.ListCompanyConfigs(context.Background(), testOrg)
	require.NoError(t, err)
	require.Len(t, configs, 1)
	assert.Equal(t, config.ModeFixedDay, configs[0].Mode)
	assert.Equal(t, 15, configs[0].FixedDay)
	assert.Empty(t, configs[0].Batch)

	// And back: the fixed day must not survive the switch to BATCH.
	runImport(t, im, importer.TypeCompany, header+"societe-1,BATCH,L3,,NEXT_BUSINESS_DAY,fr-metro\n", false)
	configs, err = store.ListCompanyConfigs(context.Background(), testOrg)
	require.NoError(t, err)
	require.Len(t, configs, 1)
	assert.Equal(t, config.BatchL3, configs[0].Batch)
	assert.Zero(t, configs[0].FixedDay)
}

func TestImport_BadRow_IsolatedWithRowNumber(t *testing.T) {
	// GIVEN: Three rows, the second with an invalid mode
	// THEN: Rows 1 and 3 apply, row 2 lands in Errors with its number

	im, store := newTestImporter(t)

	content := "client_id,mode,batch,fixed_day,shift_strategy,holiday_zone_code\n" +
		"client-1,FIXED_DAY,,5,NEXT_BUSINESS_DAY,fr-metro\n" +
		"client-2,MONTHLY,,5,NEXT_BUSINESS_DAY,fr-metro\n" +
		"client-3,FIXED_DAY,,6,NEXT_BUSINESS_DAY,fr-metro\n"

	result := runImport(t, im, importer.TypeClient, content, false)
	assert.Equal(t, 3, result.TotalRows)
	assert.Equal(t, 2, result.ValidRows)
	assert.Equal(t, 1, result.ErrorRows)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, 2, result.Errors[0].Row)
	assert.Equal(t, "mode", result.Errors[0].Field)

	configs, err := store.ListClientConfigs(context.Background(), testOrg)
	require.NoError(t, err)
	assert.Len(t, configs, 2)
}

func TestImport_CrossFieldRules(t *testing.T) {
	im, _ := newTestImporter(t)
	header := "contrat_id,mode,batch,fixed_day,shift_strategy,holiday_zone_code\n"

	// BATCH without a batch code.
	result := runImport(t, im, importer.TypeContract, header+"contrat-1,BATCH,,,NEXT_BUSINESS_DAY,fr-metro\n", true)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "batch", result.Errors[0].Field)

	// FIXED_DAY without a day.
	result = runImport(t, im, importer.TypeContract, header+"contrat-1,FIXED_DAY,,,NEXT_BUSINESS_DAY,fr-metro\n", true)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "fixed_day", result.Errors[0].Field)
}

func TestImport_UnknownZoneCode_RowError(t *testing.T) {
	im, _ := newTestImporter(t)

	content := "contrat_id,mode,batch,fixed_day,shift_strategy,holiday_zone_code\n" +
		"contrat-1,FIXED_DAY,,5,NEXT_BUSINESS_DAY,nope\n"

	result := runImport(t, im, importer.TypeContract, content, false)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "holiday_zone_code", result.Errors[0].Field)
	assert.Contains(t, result.Errors[0].Message, "nope")
}

func TestImport_DryRun_WritesNothing(t *testing.T) {
	// Dry-run still validates zone codes but persists nothing, audit included.

	im, store := newTestImporter(t)

	content := "contrat_id,mode,batch,fixed_day,shift_strategy,holiday_zone_code\n" +
		"contrat-1,FIXED_DAY,,5,NEXT_BUSINESS_DAY,fr-metro\n"

	result := runImport(t, im, importer.TypeContract, content, true)
	assert.Equal(t, 1, result.ValidRows)

	configs, err := store.ListContractConfigs(context.Background(), testOrg)
	require.NoError(t, err)
	assert.Empty(t, configs)

	entries, total, err := store.Query(context.Background(), audit.Filter{OrganisationID: testOrg})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, entries)
}

// =============================================================================
// HOLIDAY IMPORT TESTS
// =============================================================================

func TestImport_Holidays_OneOffAndRecurring(t *testing.T) {
	im, store := newTestImporter(t)

	content := "zone_code,name,type,date,recurring,month,day\n" +
		"fr-metro,Site Closure,company,2025-08-15,false,,\n" +
		"fr-metro,Founding Day,company,,true,3,3\n"

	result := runImport(t, im, importer.TypeHolidays, content, false)
	assert.Equal(t, 2, result.ValidRows)

	records, err := store.ListHolidays(context.Background(), "zone-fr")
	require.NoError(t, err)
	require.Len(t, records, 2)

	byName := map[string]holidays.Holiday{}
	for _, r := range records {
		byName[r.Name] = r
	}
	assert.Equal(t, time.Date(2025, time.August, 15, 0, 0, 0, 0, time.UTC), byName["Site Closure"].Date)
	assert.True(t, byName["Founding Day"].Recurring)
	assert.Equal(t, time.March, byName["Founding Day"].Month)
	assert.Equal(t, 3, byName["Founding Day"].Day)
}

func TestImport_Holidays_RecurringWithoutMonthDay_Rejected(t *testing.T) {
	im, _ := newTestImporter(t)

	content := "zone_code,name,type,date,recurring,month,day\n" +
		"fr-metro,Broken,company,,true,,\n"

	result := runImport(t, im, importer.TypeHolidays, content, false)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "month", result.Errors[0].Field)
}

// =============================================================================
// AUDIT TRAIL TESTS
// =============================================================================

func TestImport_RecordsSummaryAuditEntry(t *testing.T) {
	im, store := newTestImporter(t)

	content := "contrat_id,mode,batch,fixed_day,shift_strategy,holiday_zone_code\n" +
		"contrat-1,FIXED_DAY,,5,NEXT_BUSINESS_DAY,fr-metro\n" +
		"contrat-2,MONTHLY,,5,NEXT_BUSINESS_DAY,fr-metro\n"

	result := runImport(t, im, importer.TypeContract, content, false)

	entries, total, err := store.Query(context.Background(), audit.Filter{
		OrganisationID: testOrg,
		EntityType:     audit.EntityImport,
	})
	require.NoError(t, err)
	require.Equal(t, 1, total)

	entry := entries[0]
	assert.Equal(t, audit.ActionImport, entry.Action)
	assert.Equal(t, audit.SourceCSVImport, entry.Source)
	assert.Equal(t, result.ImportID, entry.EntityID)
	assert.Equal(t, "ops-1", entry.ActorID)
	assert.Equal(t, "Imported contract: 2 rows, 1 applied, 1 rejected", entry.ChangeSummary)
}

// failingAuditLog rejects every append, standing in for a broken audit
// store.
type failingAuditLog struct{}

func (failingAuditLog) Append(context.Context, audit.Entry) error {
	return errors.New("audit store down")
}

func (failingAuditLog) Query(context.Context, audit.Filter) ([]audit.Entry, int, error) {
	return nil, 0, nil
}

func TestImport_AuditFailureLoggedNotPropagated(t *testing.T) {
	// GIVEN: An audit log that rejects the run summary entry
	// WHEN: Importing a valid row
	// THEN: The import succeeds and the rejection shows up in the log

	store := memory.New()
	log, hook := logtest.NewNullLogger()
	configService := config.NewService(store, store, log)
	holidayService := holidays.NewService(store, holidays.NewCalculatorCache())
	require.NoError(t, store.SaveZone(context.Background(), &holidays.Zone{
		ID:             "zone-fr",
		OrganisationID: testOrg,
		Code:           "fr-metro",
		Name:           "France",
		CountryCode:    "FR",
		Status:         config.StatusActive,
		CreatedAt:      time.Now().UTC(),
	}))
	im := importer.New(configService, holidayService, failingAuditLog{}, log)

	content := "contrat_id,mode,batch,fixed_day,shift_strategy,holiday_zone_code\n" +
		"contrat-1,FIXED_DAY,,5,NEXT_BUSINESS_DAY,fr-metro\n"
	result, err := im.Import(context.Background(), importer.Input{
		OrganisationID: testOrg,
		Type:           importer.TypeContract,
		Content:        content,
		ActorID:        "ops-1",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.ValidRows)

	var logged bool
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.ErrorLevel && strings.Contains(e.Message, "audit append failed") {
			logged = true
		}
	}
	assert.True(t, logged, "rejected audit write must be logged")
}

// =============================================================================
// INPUT VALIDATION TESTS
// =============================================================================

func TestImport_UnknownType_Rejected(t *testing.T) {
	im, _ := newTestImporter(t)

	_, err := im.Import(context.Background(), importer.Input{
		OrganisationID: testOrg,
		Type:           "spreadsheet",
		Content:        "a,b\n1,2\n",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown import type")
}

func TestImport_EmptyContent_Rejected(t *testing.T) {
	im, _ := newTestImporter(t)

	_, err := im.Import(context.Background(), importer.Input{
		OrganisationID: testOrg,
		Type:           importer.TypeContract,
		Content:        "",
	})
	require.Error(t, err)
}
