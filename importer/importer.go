/*
Package importer bulk-applies configuration rows from CSV content.

PURPOSE:
  Operators migrate configurations in bulk: company/client/contract policy
  rows and holiday records. Every row is validated independently; a valid
  row (outside dry-run) is routed through the configuration service exactly
  as an API-driven write would be, inheriting its audit behavior. One bad
  row never aborts the batch - it lands in the per-row error list.

CSV FORMATS (header row required):
  company:  societe_id,mode,batch,fixed_day,shift_strategy,holiday_zone_code
  client:   client_id,mode,batch,fixed_day,shift_strategy,holiday_zone_code
  contract: contrat_id,mode,batch,fixed_day,shift_strategy,holiday_zone_code
  holidays: zone_code,name,type,date,recurring,month,day

DRY RUN:
  Full validation, including zone-code resolution, with zero persistence.
*/
package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/warp/debit-engine/audit"
	"github.com/warp/debit-engine/config"
	"github.com/warp/debit-engine/holidays"
)

// Type selects what the CSV rows describe.
type Type string

const (
	TypeCompany  Type = "company"
	TypeClient   Type = "client"
	TypeContract Type = "contract"
	TypeHolidays Type = "holidays"
)

func (t Type) Valid() bool {
	switch t {
	case TypeCompany, TypeClient, TypeContract, TypeHolidays:
		return true
	}
	return false
}

// Input is one import request.
type Input struct {
	OrganisationID string
	Type           Type
	Content        string
	DryRun         bool
	ActorID        string
}

// RowError pins a validation failure to its row (1-based, excluding the
// header).
type RowError struct {
	Row     int    `json:"row"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// Result summarizes an import run.
type Result struct {
	ImportID  string     `json:"importId"`
	TotalRows int        `json:"totalRows"`
	ValidRows int        `json:"validRows"`
	ErrorRows int        `json:"errorRows"`
	Errors    []RowError `json:"errors,omitempty"`
}

// Importer validates and routes CSV rows.
type Importer struct {
	configs  *config.Service
	holidays *holidays.Service
	auditLog audit.Log
	log      *logrus.Logger
	validate *validator.Validate
}

// New creates an importer. The audit log receives one summary entry per
// completed (non-dry-run) import.
func New(configs *config.Service, holidayService *holidays.Service, auditLog audit.Log, log *logrus.Logger) *Importer {
	if log == nil {
		log = logrus.New()
	}
	return &Importer{
		configs:  configs,
		holidays: holidayService,
		auditLog: auditLog,
		log:      log,
		validate: validator.New(),
	}
}

// configRow is a parsed policy row, validated by tags plus the cross-field
// mode checks in toPolicy.
type configRow struct {
	Key             string `validate:"required"`
	Mode            string `validate:"required,oneof=BATCH FIXED_DAY"`
	Batch           string `validate:"omitempty,oneof=L1 L2 L3 L4"`
	FixedDay        int    `validate:"omitempty,min=1,max=28"`
	ShiftStrategy   string `validate:"required,oneof=NEXT_BUSINESS_DAY PREVIOUS_BUSINESS_DAY NEXT_WEEK_SAME_DAY"`
	HolidayZoneCode string `validate:"required"`
}

// holidayRow is a parsed holiday record row.
type holidayRow struct {
	ZoneCode  string `validate:"required"`
	Name      string `validate:"required,min=2,max=100"`
	Type      string `validate:"required,oneof=public bank regional company"`
	Date      string `validate:"omitempty,datetime=2006-01-02"`
	Recurring bool
	Month     int `validate:"omitempty,min=1,max=12"`
	Day       int `validate:"omitempty,min=1,max=31"`
}

// Import runs one CSV batch.
func (im *Importer) Import(ctx context.Context, in Input) (*Result, error) {
	if !in.Type.Valid() {
		return nil, fmt.Errorf("unknown import type %q", in.Type)
	}

	reader := csv.NewReader(strings.NewReader(in.Content))
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("malformed CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("empty CSV content")
	}
	rows := records[1:] // skip header

	result := &Result{
		ImportID:  uuid.NewString(),
		TotalRows: len(rows),
	}

	for i, record := range rows {
		rowNum := i + 1
		var rowErr *RowError
		switch in.Type {
		case TypeHolidays:
			rowErr = im.applyHolidayRow(ctx, in, record)
		default:
			rowErr = im.applyConfigRow(ctx, in, record)
		}
		if rowErr != nil {
			rowErr.Row = rowNum
			result.ErrorRows++
			result.Errors = append(result.Errors, *rowErr)
		} else {
			result.ValidRows++
		}
	}

	if !in.DryRun {
		im.recordRun(ctx, in, result)
	}
	return result, nil
}

// applyConfigRow validates and (outside dry-run) upserts one policy row.
func (im *Importer) applyConfigRow(ctx context.Context, in Input, record []string) *RowError {
	if len(record) != 6 {
		return &RowError{Message: fmt.Sprintf("expected 6 columns, got %d", len(record))}
	}

	row := configRow{
		Key:             strings.TrimSpace(record[0]),
		Mode:            strings.TrimSpace(record[1]),
		Batch:           strings.TrimSpace(record[2]),
		ShiftStrategy:   strings.TrimSpace(record[4]),
		HolidayZoneCode: strings.TrimSpace(record[5]),
	}
	if raw := strings.TrimSpace(record[3]); raw != "" {
		day, err := strconv.Atoi(raw)
		if err != nil {
			return &RowError{Field: "fixed_day", Message: "fixed_day must be an integer"}
		}
		row.FixedDay = day
	}

	if err := im.validate.Struct(row); err != nil {
		return validationRowError(err)
	}
	if row.Mode == string(config.ModeBatch) && row.Batch == "" {
		return &RowError{Field: "batch", Message: "mode BATCH requires a batch code"}
	}
	if row.Mode == string(config.ModeFixedDay) && row.FixedDay == 0 {
		return &RowError{Field: "fixed_day", Message: "mode FIXED_DAY requires fixed_day"}
	}

	zone, err := im.holidays.GetZoneByCode(ctx, in.OrganisationID, row.HolidayZoneCode)
	if err != nil {
		return &RowError{Message: err.Error()}
	}
	if zone == nil {
		return &RowError{Field: "holiday_zone_code", Message: fmt.Sprintf("unknown holiday zone code %q", row.HolidayZoneCode)}
	}

	if in.DryRun {
		return nil
	}

	policy := config.Policy{
		Mode:          config.Mode(row.Mode),
		Batch:         config.Batch(row.Batch),
		FixedDay:      row.FixedDay,
		ShiftStrategy: config.ShiftStrategy(row.ShiftStrategy),
		HolidayZoneID: zone.ID,
	}
	level := map[Type]config.Level{
		TypeCompany:  config.LevelCompany,
		TypeClient:   config.LevelClient,
		TypeContract: config.LevelContract,
	}[in.Type]

	meta := config.Meta{ActorID: in.ActorID, Source: audit.SourceCSVImport}
	if err := im.configs.UpsertForImport(ctx, level, in.OrganisationID, row.Key, policy, meta); err != nil {
		return &RowError{Message: err.Error()}
	}
	return nil
}

// applyHolidayRow validates and (outside dry-run) creates one holiday record.
func (im *Importer) applyHolidayRow(ctx context.Context, in Input, record []string) *RowError {
	if len(record) != 7 {
		return &RowError{Message: fmt.Sprintf("expected 7 columns, got %d", len(record))}
	}

	row := holidayRow{
		ZoneCode: strings.TrimSpace(record[0]),
		Name:     strings.TrimSpace(record[1]),
		Type:     strings.TrimSpace(record[2]),
		Date:     strings.TrimSpace(record[3]),
	}
	row.Recurring = strings.EqualFold(strings.TrimSpace(record[4]), "true")
	for i, dst := range []*int{&row.Month, &row.Day} {
		raw := strings.TrimSpace(record[5+i])
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return &RowError{Field: []string{"month", "day"}[i], Message: "must be an integer"}
		}
		*dst = n
	}

	if err := im.validate.Struct(row); err != nil {
		return validationRowError(err)
	}
	if row.Recurring && (row.Month == 0 || row.Day == 0) {
		return &RowError{Field: "month", Message: "recurring holidays require month and day"}
	}
	if !row.Recurring && row.Date == "" {
		return &RowError{Field: "date", Message: "non-recurring holidays require a date"}
	}

	zone, err := im.holidays.GetZoneByCode(ctx, in.OrganisationID, row.ZoneCode)
	if err != nil {
		return &RowError{Message: err.Error()}
	}
	if zone == nil {
		return &RowError{Field: "zone_code", Message: fmt.Sprintf("unknown holiday zone code %q", row.ZoneCode)}
	}

	if in.DryRun {
		return nil
	}

	holiday := holidays.Holiday{
		ZoneID:    zone.ID,
		Name:      row.Name,
		Type:      holidays.HolidayType(row.Type),
		Recurring: row.Recurring,
		Month:     time.Month(row.Month),
		Day:       row.Day,
	}
	if row.Date != "" {
		holiday.Date, _ = time.Parse("2006-01-02", row.Date)
	}
	if _, err := im.holidays.CreateHoliday(ctx, holiday); err != nil {
		return &RowError{Message: err.Error()}
	}
	return nil
}

// recordRun appends the per-import summary audit entry. Best-effort, like
// every other audit write: a failure is logged, never propagated.
func (im *Importer) recordRun(ctx context.Context, in Input, result *Result) {
	if im.auditLog == nil {
		return
	}
	after := audit.Snapshot(result)
	err := im.auditLog.Append(ctx, audit.Entry{
		ID:             uuid.NewString(),
		OrganisationID: in.OrganisationID,
		EntityType:     audit.EntityImport,
		EntityID:       result.ImportID,
		Action:         audit.ActionImport,
		ActorID:        in.ActorID,
		Source:         audit.SourceCSVImport,
		After:          after,
		ChangeSummary:  fmt.Sprintf("Imported %s: %d rows, %d applied, %d rejected", in.Type, result.TotalRows, result.ValidRows, result.ErrorRows),
		CreatedAt:      time.Now().UTC(),
	})
	if err != nil {
		im.log.WithError(err).WithFields(logrus.Fields{
			"importId":   result.ImportID,
			"importType": in.Type,
		}).Error("audit append failed; continuing")
	}
}

// validationRowError flattens the first validator failure into a RowError.
func validationRowError(err error) *RowError {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &RowError{
			Field:   strings.ToLower(fe.Field()),
			Message: fmt.Sprintf("failed %q validation", fe.Tag()),
		}
	}
	return &RowError{Message: err.Error()}
}
