/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements all persistence interfaces using SQLite. In production, the same
  patterns apply to PostgreSQL - only minor SQL dialect differences.

INTERFACES IMPLEMENTED:
  config.Store:               configuration at all four levels
  holidays.Store:             holiday zones and holiday records
  audit.Log:                  append-only audit trail
  calendar.PlannedDebitStore: planned debit records

UNIQUENESS ENFORCEMENT:
  At most one ACTIVE configuration per (organisation, key) at each override
  level. The invariant lives in partial unique indexes (WHERE status =
  'active'), not in application locks, so it holds under concurrent writers.
  Violations surface as config.ErrDuplicateConfig.

APPEND-ONLY ENFORCEMENT:
  No UPDATE or DELETE statements exist for the audit_logs table.

KEY TABLES:
  system_configs:    one row per organisation
  company_configs:   overrides keyed by societe_id
  client_configs:    overrides keyed by client_id
  contract_configs:  overrides keyed by contrat_id
  holiday_zones:     zone definitions (code unique per organisation)
  holiday_records:   one-off and recurring holidays per zone
  audit_logs:        immutable change history
  planned_debits:    computed debit dates with config snapshots

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/debit.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - config/store.go: configuration interface definitions
  - holidays/store.go: holiday interface definitions
  - store/memory/memory.go: in-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/debit-engine/audit"
	"github.com/warp/debit-engine/calendar"
	"github.com/warp/debit-engine/config"
	"github.com/warp/debit-engine/holidays"
)

// =============================================================================
// STORE
// =============================================================================

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
}

// New opens (and migrates) a store at the given path. Use ":memory:" for an
// in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS system_configs (
		id TEXT PRIMARY KEY,
		organisation_id TEXT NOT NULL UNIQUE,
		mode TEXT NOT NULL,
		batch TEXT,
		fixed_day INTEGER,
		shift_strategy TEXT NOT NULL,
		holiday_zone_id TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS company_configs (
		id TEXT PRIMARY KEY,
		organisation_id TEXT NOT NULL,
		societe_id TEXT NOT NULL,
		mode TEXT NOT NULL,
		batch TEXT,
		fixed_day INTEGER,
		shift_strategy TEXT NOT NULL,
		holiday_zone_id TEXT,
		status TEXT NOT NULL DEFAULT 'active',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- CRITICAL: at most one ACTIVE config per (organisation, societe).
	CREATE UNIQUE INDEX IF NOT EXISTS idx_company_configs_unique_active
		ON company_configs(organisation_id, societe_id)
		WHERE status = 'active';
	CREATE INDEX IF NOT EXISTS idx_company_configs_org
		ON company_configs(organisation_id);

	CREATE TABLE IF NOT EXISTS client_configs (
		id TEXT PRIMARY KEY,
		organisation_id TEXT NOT NULL,
		client_id TEXT NOT NULL,
		mode TEXT NOT NULL,
		batch TEXT,
		fixed_day INTEGER,
		shift_strategy TEXT NOT NULL,
		holiday_zone_id TEXT,
		status TEXT NOT NULL DEFAULT 'active',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_client_configs_unique_active
		ON client_configs(organisation_id, client_id)
		WHERE status = 'active';
	CREATE INDEX IF NOT EXISTS idx_client_configs_org
		ON client_configs(organisation_id);

	CREATE TABLE IF NOT EXISTS contract_configs (
		id TEXT PRIMARY KEY,
		organisation_id TEXT NOT NULL,
		contrat_id TEXT NOT NULL,
		mode TEXT NOT NULL,
		batch TEXT,
		fixed_day INTEGER,
		shift_strategy TEXT NOT NULL,
		holiday_zone_id TEXT,
		status TEXT NOT NULL DEFAULT 'active',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_contract_configs_unique_active
		ON contract_configs(organisation_id, contrat_id)
		WHERE status = 'active';
	CREATE INDEX IF NOT EXISTS idx_contract_configs_org
		ON contract_configs(organisation_id);

	CREATE TABLE IF NOT EXISTS holiday_zones (
		id TEXT PRIMARY KEY,
		organisation_id TEXT NOT NULL,
		code TEXT NOT NULL,
		name TEXT NOT NULL,
		country_code TEXT NOT NULL,
		region_code TEXT,
		status TEXT NOT NULL DEFAULT 'active',
		created_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_holiday_zones_code
		ON holiday_zones(organisation_id, code);

	CREATE TABLE IF NOT EXISTS holiday_records (
		id TEXT PRIMARY KEY,
		zone_id TEXT NOT NULL,
		name TEXT NOT NULL,
		holiday_type TEXT NOT NULL,
		date TEXT,
		recurring INTEGER NOT NULL DEFAULT 0,
		month INTEGER,
		day INTEGER,
		created_at TEXT NOT NULL
	);

	-- Hot path: point lookups by date and by month+day.
	CREATE INDEX IF NOT EXISTS idx_holiday_records_zone_date
		ON holiday_records(zone_id, date) WHERE date IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_holiday_records_zone_recurring
		ON holiday_records(zone_id, month, day) WHERE recurring = 1;

	CREATE TABLE IF NOT EXISTS audit_logs (
		id TEXT PRIMARY KEY,
		organisation_id TEXT NOT NULL,
		entity_type TEXT NOT NULL,
		entity_id TEXT NOT NULL,
		action TEXT NOT NULL,
		actor_id TEXT,
		source TEXT NOT NULL,
		before_json TEXT,
		after_json TEXT,
		change_summary TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_audit_logs_org_created
		ON audit_logs(organisation_id, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_audit_logs_entity
		ON audit_logs(entity_type, entity_id);

	CREATE TABLE IF NOT EXISTS planned_debits (
		id TEXT PRIMARY KEY,
		organisation_id TEXT NOT NULL,
		contrat_id TEXT NOT NULL,
		planned_date TEXT NOT NULL,
		original_target_date TEXT NOT NULL,
		status TEXT NOT NULL,
		batch TEXT,
		amount TEXT NOT NULL,
		config_snapshot TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_planned_debits_org_date
		ON planned_debits(organisation_id, planned_date);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Fixed-width so lexical ordering on the TEXT column matches time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
const dateLayout = "2006-01-02"

// isUniqueViolation detects SQLite unique-index failures.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func parseTime(raw string) time.Time {
	t, _ := time.Parse(timeLayout, raw)
	return t
}

// =============================================================================
// CONFIGURATION (config.Store)
// =============================================================================

func (s *Store) GetSystemConfig(ctx context.Context, organisationID string) (*config.SystemConfig, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, organisation_id, mode, batch, fixed_day, shift_strategy, holiday_zone_id, created_at, updated_at
		FROM system_configs WHERE organisation_id = ?`, organisationID)

	var cfg config.SystemConfig
	var batch, zone sql.NullString
	var fixedDay sql.NullInt64
	var created, updated string
	err := row.Scan(&cfg.ID, &cfg.OrganisationID, &cfg.Mode, &batch, &fixedDay, &cfg.ShiftStrategy, &zone, &created, &updated)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	cfg.Batch = config.Batch(batch.String)
	cfg.FixedDay = int(fixedDay.Int64)
	cfg.HolidayZoneID = zone.String
	cfg.CreatedAt = parseTime(created)
	cfg.UpdatedAt = parseTime(updated)
	return &cfg, nil
}

func (s *Store) SaveSystemConfig(ctx context.Context, cfg *config.SystemConfig) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO system_configs (id, organisation_id, mode, batch, fixed_day, shift_strategy, holiday_zone_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(organisation_id) DO UPDATE SET
			mode = excluded.mode,
			batch = excluded.batch,
			fixed_day = excluded.fixed_day,
			shift_strategy = excluded.shift_strategy,
			holiday_zone_id = excluded.holiday_zone_id,
			updated_at = excluded.updated_at`,
		cfg.ID, cfg.OrganisationID, cfg.Mode, nullStr(string(cfg.Batch)), nullInt(cfg.FixedDay),
		cfg.ShiftStrategy, nullStr(cfg.HolidayZoneID),
		cfg.CreatedAt.Format(timeLayout), cfg.UpdatedAt.Format(timeLayout))
	return err
}

// levelRow flattens one override-level record so the three levels share a
// single scan/save implementation.
type levelRow struct {
	id, org, key         string
	mode, batch, shift   string
	fixedDay             int
	zone, status         string
	createdAt, updatedAt time.Time
}

func (lr levelRow) policy() config.Policy {
	return config.Policy{
		Mode:          config.Mode(lr.mode),
		Batch:         config.Batch(lr.batch),
		FixedDay:      lr.fixedDay,
		ShiftStrategy: config.ShiftStrategy(lr.shift),
		HolidayZoneID: lr.zone,
	}
}

func (s *Store) queryLevelRow(ctx context.Context, table, keyCol, where string, args ...any) (*levelRow, error) {
	q := fmt.Sprintf(`
		SELECT id, organisation_id, %s, mode, batch, fixed_day, shift_strategy, holiday_zone_id, status, created_at, updated_at
		FROM %s WHERE %s`, keyCol, table, where)
	row := s.db.QueryRowContext(ctx, q, args...)

	var lr levelRow
	var batch, zone sql.NullString
	var fixedDay sql.NullInt64
	var created, updated string
	err := row.Scan(&lr.id, &lr.org, &lr.key, &lr.mode, &batch, &fixedDay, &lr.shift, &zone, &lr.status, &created, &updated)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	lr.batch = batch.String
	lr.fixedDay = int(fixedDay.Int64)
	lr.zone = zone.String
	lr.createdAt = parseTime(created)
	lr.updatedAt = parseTime(updated)
	return &lr, nil
}

func (s *Store) queryLevelRows(ctx context.Context, table, keyCol, organisationID string) ([]levelRow, error) {
	q := fmt.Sprintf(`
		SELECT id, organisation_id, %s, mode, batch, fixed_day, shift_strategy, holiday_zone_id, status, created_at, updated_at
		FROM %s WHERE organisation_id = ? ORDER BY created_at`, keyCol, table)
	rows, err := s.db.QueryContext(ctx, q, organisationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []levelRow
	for rows.Next() {
		var lr levelRow
		var batch, zone sql.NullString
		var fixedDay sql.NullInt64
		var created, updated string
		if err := rows.Scan(&lr.id, &lr.org, &lr.key, &lr.mode, &batch, &fixedDay, &lr.shift, &zone, &lr.status, &created, &updated); err != nil {
			return nil, err
		}
		lr.batch = batch.String
		lr.fixedDay = int(fixedDay.Int64)
		lr.zone = zone.String
		lr.createdAt = parseTime(created)
		lr.updatedAt = parseTime(updated)
		out = append(out, lr)
	}
	return out, rows.Err()
}

func (s *Store) saveLevelRow(ctx context.Context, table, keyCol string, lr levelRow) error {
	q := fmt.Sprintf(`
		INSERT INTO %s (id, organisation_id, %s, mode, batch, fixed_day, shift_strategy, holiday_zone_id, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			mode = excluded.mode,
			batch = excluded.batch,
			fixed_day = excluded.fixed_day,
			shift_strategy = excluded.shift_strategy,
			holiday_zone_id = excluded.holiday_zone_id,
			status = excluded.status,
			updated_at = excluded.updated_at`, table, keyCol)
	_, err := s.db.ExecContext(ctx, q,
		lr.id, lr.org, lr.key, lr.mode, nullStr(lr.batch), nullInt(lr.fixedDay),
		lr.shift, nullStr(lr.zone), lr.status,
		lr.createdAt.Format(timeLayout), lr.updatedAt.Format(timeLayout))
	if isUniqueViolation(err) {
		return config.ErrDuplicateConfig
	}
	return err
}

func (s *Store) GetCompanyConfig(ctx context.Context, id string) (*config.CompanyConfig, error) {
	lr, err := s.queryLevelRow(ctx, "company_configs", "societe_id", "id = ?", id)
	if lr == nil || err != nil {
		return nil, err
	}
	return companyFromRow(*lr), nil
}

func (s *Store) FindActiveCompanyConfig(ctx context.Context, organisationID, societeID string) (*config.CompanyConfig, error) {
	lr, err := s.queryLevelRow(ctx, "company_configs", "societe_id",
		"organisation_id = ? AND societe_id = ? AND status = 'active'", organisationID, societeID)
	if lr == nil || err != nil {
		return nil, err
	}
	return companyFromRow(*lr), nil
}

func (s *Store) SaveCompanyConfig(ctx context.Context, cfg *config.CompanyConfig) error {
	return s.saveLevelRow(ctx, "company_configs", "societe_id", levelRow{
		id: cfg.ID, org: cfg.OrganisationID, key: cfg.SocieteID,
		mode: string(cfg.Mode), batch: string(cfg.Batch), fixedDay: cfg.FixedDay,
		shift: string(cfg.ShiftStrategy), zone: cfg.HolidayZoneID, status: string(cfg.Status),
		createdAt: cfg.CreatedAt, updatedAt: cfg.UpdatedAt,
	})
}

func (s *Store) ListCompanyConfigs(ctx context.Context, organisationID string) ([]config.CompanyConfig, error) {
	rows, err := s.queryLevelRows(ctx, "company_configs", "societe_id", organisationID)
	if err != nil {
		return nil, err
	}
	out := make([]config.CompanyConfig, len(rows))
	for i, lr := range rows {
		out[i] = *companyFromRow(lr)
	}
	return out, nil
}

func companyFromRow(lr levelRow) *config.CompanyConfig {
	return &config.CompanyConfig{
		ID: lr.id, OrganisationID: lr.org, SocieteID: lr.key,
		Policy: lr.policy(), Status: config.Status(lr.status),
		CreatedAt: lr.createdAt, UpdatedAt: lr.updatedAt,
	}
}

func (s *Store) GetClientConfig(ctx context.Context, id string) (*config.ClientConfig, error) {
	lr, err := s.queryLevelRow(ctx, "client_configs", "client_id", "id = ?", id)
	if lr == nil || err != nil {
		return nil, err
	}
	return clientFromRow(*lr), nil
}

func (s *Store) FindActiveClientConfig(ctx context.Context, organisationID, clientID string) (*config.ClientConfig, error) {
	lr, err := s.queryLevelRow(ctx, "client_configs", "client_id",
		"organisation_id = ? AND client_id = ? AND status = 'active'", organisationID, clientID)
	if lr == nil || err != nil {
		return nil, err
	}
	return clientFromRow(*lr), nil
}

func (s *Store) SaveClientConfig(ctx context.Context, cfg *config.ClientConfig) error {
	return s.saveLevelRow(ctx, "client_configs", "client_id", levelRow{
		id: cfg.ID, org: cfg.OrganisationID, key: cfg.ClientID,
		mode: string(cfg.Mode), batch: string(cfg.Batch), fixedDay: cfg.FixedDay,
		shift: string(cfg.ShiftStrategy), zone: cfg.HolidayZoneID, status: string(cfg.Status),
		createdAt: cfg.CreatedAt, updatedAt: cfg.UpdatedAt,
	})
}

func (s *Store) ListClientConfigs(ctx context.Context, organisationID string) ([]config.ClientConfig, error) {
	rows, err := s.queryLevelRows(ctx, "client_configs", "client_id", organisationID)
	if err != nil {
		return nil, err
	}
	out := make([]config.ClientConfig, len(rows))
	for i, lr := range rows {
		out[i] = *clientFromRow(lr)
	}
	return out, nil
}

func clientFromRow(lr levelRow) *config.ClientConfig {
	return &config.ClientConfig{
		ID: lr.id, OrganisationID: lr.org, ClientID: lr.key,
		Policy: lr.policy(), Status: config.Status(lr.status),
		CreatedAt: lr.createdAt, UpdatedAt: lr.updatedAt,
	}
}

func (s *Store) GetContractConfig(ctx context.Context, id string) (*config.ContractConfig, error) {
	lr, err := s.queryLevelRow(ctx, "contract_configs", "contrat_id", "id = ?", id)
	if lr == nil || err != nil {
		return nil, err
	}
	return contractFromRow(*lr), nil
}

func (s *Store) FindActiveContractConfig(ctx context.Context, organisationID, contratID string) (*config.ContractConfig, error) {
	lr, err := s.queryLevelRow(ctx, "contract_configs", "contrat_id",
		"organisation_id = ? AND contrat_id = ? AND status = 'active'", organisationID, contratID)
	if lr == nil || err != nil {
		return nil, err
	}
	return contractFromRow(*lr), nil
}

func (s *Store) SaveContractConfig(ctx context.Context, cfg *config.ContractConfig) error {
	return s.saveLevelRow(ctx, "contract_configs", "contrat_id", levelRow{
		id: cfg.ID, org: cfg.OrganisationID, key: cfg.ContratID,
		mode: string(cfg.Mode), batch: string(cfg.Batch), fixedDay: cfg.FixedDay,
		shift: string(cfg.ShiftStrategy), zone: cfg.HolidayZoneID, status: string(cfg.Status),
		createdAt: cfg.CreatedAt, updatedAt: cfg.UpdatedAt,
	})
}

func (s *Store) ListContractConfigs(ctx context.Context, organisationID string) ([]config.ContractConfig, error) {
	rows, err := s.queryLevelRows(ctx, "contract_configs", "contrat_id", organisationID)
	if err != nil {
		return nil, err
	}
	out := make([]config.ContractConfig, len(rows))
	for i, lr := range rows {
		out[i] = *contractFromRow(lr)
	}
	return out, nil
}

func contractFromRow(lr levelRow) *config.ContractConfig {
	return &config.ContractConfig{
		ID: lr.id, OrganisationID: lr.org, ContratID: lr.key,
		Policy: lr.policy(), Status: config.Status(lr.status),
		CreatedAt: lr.createdAt, UpdatedAt: lr.updatedAt,
	}
}

// =============================================================================
// HOLIDAYS (holidays.Store)
// =============================================================================

func (s *Store) GetZone(ctx context.Context, id string) (*holidays.Zone, error) {
	return scanZone(s.db.QueryRowContext(ctx, `
		SELECT id, organisation_id, code, name, country_code, region_code, status, created_at
		FROM holiday_zones WHERE id = ?`, id))
}

func (s *Store) GetZoneByCode(ctx context.Context, organisationID, code string) (*holidays.Zone, error) {
	return scanZone(s.db.QueryRowContext(ctx, `
		SELECT id, organisation_id, code, name, country_code, region_code, status, created_at
		FROM holiday_zones WHERE organisation_id = ? AND code = ?`, organisationID, code))
}

func scanZone(row *sql.Row) (*holidays.Zone, error) {
	var z holidays.Zone
	var region sql.NullString
	var created string
	err := row.Scan(&z.ID, &z.OrganisationID, &z.Code, &z.Name, &z.CountryCode, &region, &z.Status, &created)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	z.RegionCode = region.String
	z.CreatedAt = parseTime(created)
	return &z, nil
}

func (s *Store) SaveZone(ctx context.Context, zone *holidays.Zone) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO holiday_zones (id, organisation_id, code, name, country_code, region_code, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			country_code = excluded.country_code,
			region_code = excluded.region_code,
			status = excluded.status`,
		zone.ID, zone.OrganisationID, zone.Code, zone.Name, zone.CountryCode,
		nullStr(zone.RegionCode), zone.Status, zone.CreatedAt.Format(timeLayout))
	if isUniqueViolation(err) {
		return holidays.ErrZoneCodeTaken
	}
	return err
}

func (s *Store) ListZones(ctx context.Context, organisationID string) ([]holidays.Zone, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, organisation_id, code, name, country_code, region_code, status, created_at
		FROM holiday_zones WHERE organisation_id = ? ORDER BY code`, organisationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []holidays.Zone
	for rows.Next() {
		var z holidays.Zone
		var region sql.NullString
		var created string
		if err := rows.Scan(&z.ID, &z.OrganisationID, &z.Code, &z.Name, &z.CountryCode, &region, &z.Status, &created); err != nil {
			return nil, err
		}
		z.RegionCode = region.String
		z.CreatedAt = parseTime(created)
		out = append(out, z)
	}
	return out, rows.Err()
}

func (s *Store) SaveHoliday(ctx context.Context, h *holidays.Holiday) error {
	var date any
	if !h.Date.IsZero() {
		date = h.Date.Format(dateLayout)
	}
	var month, day any
	if h.Recurring {
		month, day = int(h.Month), h.Day
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO holiday_records (id, zone_id, name, holiday_type, date, recurring, month, day, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		h.ID, h.ZoneID, h.Name, h.Type, date, boolInt(h.Recurring), month, day,
		h.CreatedAt.Format(timeLayout))
	return err
}

func (s *Store) ListHolidays(ctx context.Context, zoneID string) ([]holidays.Holiday, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, zone_id, name, holiday_type, date, recurring, month, day, created_at
		FROM holiday_records WHERE zone_id = ? ORDER BY date, month, day`, zoneID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []holidays.Holiday
	for rows.Next() {
		h, err := scanHoliday(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *h)
	}
	return out, rows.Err()
}

func (s *Store) FindHolidayOnDate(ctx context.Context, zoneID string, date time.Time) (*holidays.Holiday, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, zone_id, name, holiday_type, date, recurring, month, day, created_at
		FROM holiday_records WHERE zone_id = ? AND date = ? AND recurring = 0 LIMIT 1`,
		zoneID, date.Format(dateLayout))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, rows.Err()
	}
	return scanHoliday(rows)
}

func (s *Store) FindRecurringHoliday(ctx context.Context, zoneID string, month time.Month, day int) (*holidays.Holiday, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, zone_id, name, holiday_type, date, recurring, month, day, created_at
		FROM holiday_records WHERE zone_id = ? AND recurring = 1 AND month = ? AND day = ? LIMIT 1`,
		zoneID, int(month), day)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, rows.Err()
	}
	return scanHoliday(rows)
}

func scanHoliday(rows *sql.Rows) (*holidays.Holiday, error) {
	var h holidays.Holiday
	var date sql.NullString
	var recurring int
	var month, day sql.NullInt64
	var created string
	if err := rows.Scan(&h.ID, &h.ZoneID, &h.Name, &h.Type, &date, &recurring, &month, &day, &created); err != nil {
		return nil, err
	}
	if date.Valid {
		h.Date, _ = time.Parse(dateLayout, date.String)
	}
	h.Recurring = recurring == 1
	h.Month = time.Month(month.Int64)
	h.Day = int(day.Int64)
	h.CreatedAt = parseTime(created)
	return &h, nil
}

// =============================================================================
// AUDIT (audit.Log)
// =============================================================================

func (s *Store) Append(ctx context.Context, entry audit.Entry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, organisation_id, entity_type, entity_id, action, actor_id, source, before_json, after_json, change_summary, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.OrganisationID, entry.EntityType, entry.EntityID, entry.Action,
		nullStr(entry.ActorID), entry.Source, nullRaw(entry.Before), nullRaw(entry.After),
		entry.ChangeSummary, entry.CreatedAt.Format(timeLayout))
	return err
}

func (s *Store) Query(ctx context.Context, filter audit.Filter) ([]audit.Entry, int, error) {
	where := []string{"1=1"}
	var args []any
	add := func(clause string, v any) {
		where = append(where, clause)
		args = append(args, v)
	}
	if filter.OrganisationID != "" {
		add("organisation_id = ?", filter.OrganisationID)
	}
	if filter.EntityType != "" {
		add("entity_type = ?", filter.EntityType)
	}
	if filter.EntityID != "" {
		add("entity_id = ?", filter.EntityID)
	}
	if filter.ActorID != "" {
		add("actor_id = ?", filter.ActorID)
	}
	if filter.Source != "" {
		add("source = ?", string(filter.Source))
	}
	if filter.From != nil {
		add("created_at >= ?", filter.From.Format(timeLayout))
	}
	if filter.To != nil {
		add("created_at <= ?", filter.To.Format(timeLayout))
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_logs WHERE "+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := `SELECT id, organisation_id, entity_type, entity_id, action, actor_id, source, before_json, after_json, change_summary, created_at
		FROM audit_logs WHERE ` + cond + " ORDER BY created_at DESC, id"
	if filter.Limit > 0 {
		q += fmt.Sprintf(" LIMIT %d OFFSET %d", filter.Limit, filter.Offset)
	} else if filter.Offset > 0 {
		q += fmt.Sprintf(" LIMIT -1 OFFSET %d", filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []audit.Entry
	for rows.Next() {
		var e audit.Entry
		var actor, before, after sql.NullString
		var created string
		if err := rows.Scan(&e.ID, &e.OrganisationID, &e.EntityType, &e.EntityID, &e.Action, &actor, &e.Source, &before, &after, &e.ChangeSummary, &created); err != nil {
			return nil, 0, err
		}
		e.ActorID = actor.String
		if before.Valid {
			e.Before = json.RawMessage(before.String)
		}
		if after.Valid {
			e.After = json.RawMessage(after.String)
		}
		e.CreatedAt = parseTime(created)
		out = append(out, e)
	}
	return out, total, rows.Err()
}

// =============================================================================
// PLANNED DEBITS (calendar.PlannedDebitStore)
// =============================================================================

func (s *Store) SavePlannedDebit(ctx context.Context, pd *calendar.PlannedDebit) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO planned_debits (id, organisation_id, contrat_id, planned_date, original_target_date, status, batch, amount, config_snapshot, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		pd.ID, pd.OrganisationID, pd.ContratID,
		pd.PlannedDate.Format(dateLayout), pd.OriginalTargetDate.Format(dateLayout),
		pd.Status, nullStr(string(pd.Batch)), pd.Amount.String(), string(pd.ConfigSnapshot),
		pd.CreatedAt.Format(timeLayout))
	return err
}

func (s *Store) ListPlannedDebits(ctx context.Context, organisationID string, year int, month time.Month) ([]calendar.PlannedDebit, error) {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, organisation_id, contrat_id, planned_date, original_target_date, status, batch, amount, config_snapshot, created_at
		FROM planned_debits
		WHERE organisation_id = ? AND planned_date >= ? AND planned_date <= ?
		ORDER BY planned_date`,
		organisationID, first.Format(dateLayout), last.Format(dateLayout))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPlannedDebits(rows)
}

func scanPlannedDebits(rows *sql.Rows) ([]calendar.PlannedDebit, error) {
	var out []calendar.PlannedDebit
	for rows.Next() {
		var pd calendar.PlannedDebit
		var planned, original, amount, snapshot, created string
		var batch sql.NullString
		if err := rows.Scan(&pd.ID, &pd.OrganisationID, &pd.ContratID, &planned, &original, &pd.Status, &batch, &amount, &snapshot, &created); err != nil {
			return nil, err
		}
		pd.PlannedDate, _ = time.Parse(dateLayout, planned)
		pd.OriginalTargetDate, _ = time.Parse(dateLayout, original)
		pd.Batch = config.Batch(batch.String)
		pd.Amount, _ = decimal.NewFromString(amount)
		pd.ConfigSnapshot = json.RawMessage(snapshot)
		pd.CreatedAt = parseTime(created)
		out = append(out, pd)
	}
	return out, rows.Err()
}

// ListPlannedDebitsForTarget filters on the original target date instead of
// the planned date. A shift can move the planned date into the previous or
// next month, so this is the query that answers "is this contract already
// covered for month X".
func (s *Store) ListPlannedDebitsForTarget(ctx context.Context, organisationID string, year int, month time.Month) ([]calendar.PlannedDebit, error) {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, organisation_id, contrat_id, planned_date, original_target_date, status, batch, amount, config_snapshot, created_at
		FROM planned_debits
		WHERE organisation_id = ? AND original_target_date >= ? AND original_target_date <= ?
		ORDER BY original_target_date`,
		organisationID, first.Format(dateLayout), last.Format(dateLayout))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPlannedDebits(rows)
}

// ListContractOrganisations returns every organisation holding at least one
// active contract configuration. The generation scheduler iterates these.
func (s *Store) ListContractOrganisations(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT organisation_id FROM contract_configs
		WHERE status = 'active'
		ORDER BY organisation_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var org string
		if err := rows.Scan(&org); err != nil {
			return nil, err
		}
		out = append(out, org)
	}
	return out, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullInt(n int) any {
	if n == 0 {
		return nil
	}
	return n
}

func nullRaw(r json.RawMessage) any {
	if len(r) == 0 {
		return nil
	}
	return string(r)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
