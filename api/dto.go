/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

WIRE ENUMS:
  Mode, batch, shift strategy, holiday type and audit source cross the wire
  as integers with 0 reserved as the "unspecified" sentinel. Both directions
  are total mapping tables. An integer outside a table is a hard validation
  error, never a silent default: defaulting would mask a client/server
  version mismatch.

DATES:
  All dates cross the boundary as "yyyy-MM-dd" strings in UTC.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

SEE ALSO:
  - handlers.go: Uses these types
  - config/types.go: Domain enums these tables map to
*/
package api

import (
	"fmt"
	"time"

	"github.com/warp/debit-engine/audit"
	"github.com/warp/debit-engine/calendar"
	"github.com/warp/debit-engine/config"
	"github.com/warp/debit-engine/holidays"
	"github.com/warp/debit-engine/importer"
)

const dateLayout = "2006-01-02"

// =============================================================================
// WIRE ENUM TABLES
// =============================================================================

// wireUnspecified is the reserved zero value on the wire. It is never a
// valid input for a required enum field.
const wireUnspecified = 0

var modeToWire = map[config.Mode]int{
	config.ModeBatch:    1,
	config.ModeFixedDay: 2,
}

var wireToMode = map[int]config.Mode{
	1: config.ModeBatch,
	2: config.ModeFixedDay,
}

var batchToWire = map[config.Batch]int{
	config.BatchL1: 1,
	config.BatchL2: 2,
	config.BatchL3: 3,
	config.BatchL4: 4,
}

var wireToBatch = map[int]config.Batch{
	1: config.BatchL1,
	2: config.BatchL2,
	3: config.BatchL3,
	4: config.BatchL4,
}

var shiftToWire = map[config.ShiftStrategy]int{
	config.ShiftNextBusinessDay:     1,
	config.ShiftPreviousBusinessDay: 2,
	config.ShiftNextWeekSameDay:     3,
}

var wireToShift = map[int]config.ShiftStrategy{
	1: config.ShiftNextBusinessDay,
	2: config.ShiftPreviousBusinessDay,
	3: config.ShiftNextWeekSameDay,
}

var holidayTypeToWire = map[holidays.HolidayType]int{
	holidays.TypePublic:   1,
	holidays.TypeBank:     2,
	holidays.TypeRegional: 3,
	holidays.TypeCompany:  4,
}

var wireToHolidayType = map[int]holidays.HolidayType{
	1: holidays.TypePublic,
	2: holidays.TypeBank,
	3: holidays.TypeRegional,
	4: holidays.TypeCompany,
}

var sourceToWire = map[audit.Source]int{
	audit.SourceAPI:       1,
	audit.SourceCSVImport: 2,
	audit.SourceSystem:    3,
}

var wireToSource = map[int]audit.Source{
	1: audit.SourceAPI,
	2: audit.SourceCSVImport,
	3: audit.SourceSystem,
}

func decodeMode(wire int) (config.Mode, error) {
	if wire == wireUnspecified {
		return "", fmt.Errorf("mode is required")
	}
	m, ok := wireToMode[wire]
	if !ok {
		return "", fmt.Errorf("unknown mode value %d", wire)
	}
	return m, nil
}

func decodeBatch(wire int) (config.Batch, error) {
	if wire == wireUnspecified {
		return "", nil
	}
	b, ok := wireToBatch[wire]
	if !ok {
		return "", fmt.Errorf("unknown batch value %d", wire)
	}
	return b, nil
}

func decodeShift(wire int) (config.ShiftStrategy, error) {
	if wire == wireUnspecified {
		return "", fmt.Errorf("shiftStrategy is required")
	}
	s, ok := wireToShift[wire]
	if !ok {
		return "", fmt.Errorf("unknown shiftStrategy value %d", wire)
	}
	return s, nil
}

func decodeHolidayType(wire int) (holidays.HolidayType, error) {
	if wire == wireUnspecified {
		return "", fmt.Errorf("holidayType is required")
	}
	t, ok := wireToHolidayType[wire]
	if !ok {
		return "", fmt.Errorf("unknown holidayType value %d", wire)
	}
	return t, nil
}

// =============================================================================
// POLICY
// =============================================================================

// PolicyDTO carries a debit date policy with enums in wire form.
type PolicyDTO struct {
	Mode          int    `json:"mode"`
	Batch         int    `json:"batch,omitempty"`
	FixedDay      int    `json:"fixedDay,omitempty"`
	ShiftStrategy int    `json:"shiftStrategy"`
	HolidayZoneID string `json:"holidayZoneId,omitempty"`
}

func policyDTO(p config.Policy) PolicyDTO {
	return PolicyDTO{
		Mode:          modeToWire[p.Mode],
		Batch:         batchToWire[p.Batch],
		FixedDay:      p.FixedDay,
		ShiftStrategy: shiftToWire[p.ShiftStrategy],
		HolidayZoneID: p.HolidayZoneID,
	}
}

func (d PolicyDTO) domain() (config.Policy, error) {
	mode, err := decodeMode(d.Mode)
	if err != nil {
		return config.Policy{}, err
	}
	batch, err := decodeBatch(d.Batch)
	if err != nil {
		return config.Policy{}, err
	}
	shift, err := decodeShift(d.ShiftStrategy)
	if err != nil {
		return config.Policy{}, err
	}
	return config.Policy{
		Mode:          mode,
		Batch:         batch,
		FixedDay:      d.FixedDay,
		ShiftStrategy: shift,
		HolidayZoneID: d.HolidayZoneID,
	}, nil
}

// PolicyPatchDTO carries a partial update: only provided fields are applied.
type PolicyPatchDTO struct {
	Mode          *int    `json:"mode,omitempty"`
	Batch         *int    `json:"batch,omitempty"`
	FixedDay      *int    `json:"fixedDay,omitempty"`
	ShiftStrategy *int    `json:"shiftStrategy,omitempty"`
	HolidayZoneID *string `json:"holidayZoneId,omitempty"`
}

func (d PolicyPatchDTO) domain() (config.PolicyPatch, error) {
	var patch config.PolicyPatch
	if d.Mode != nil {
		mode, err := decodeMode(*d.Mode)
		if err != nil {
			return patch, err
		}
		patch.Mode = &mode
	}
	if d.Batch != nil {
		batch, err := decodeBatch(*d.Batch)
		if err != nil {
			return patch, err
		}
		patch.Batch = &batch
	}
	if d.FixedDay != nil {
		patch.FixedDay = d.FixedDay
	}
	if d.ShiftStrategy != nil {
		shift, err := decodeShift(*d.ShiftStrategy)
		if err != nil {
			return patch, err
		}
		patch.ShiftStrategy = &shift
	}
	if d.HolidayZoneID != nil {
		patch.HolidayZoneID = d.HolidayZoneID
	}
	return patch, nil
}

// =============================================================================
// CONFIGURATION
// =============================================================================

// ConfigDTO is one configuration record at any level. Key carries the
// level-specific identifier (societe, client or contract id); it is empty
// for the system level.
type ConfigDTO struct {
	ID             string    `json:"id"`
	OrganisationID string    `json:"organisationId"`
	Level          string    `json:"level"`
	Key            string    `json:"key,omitempty"`
	Policy         PolicyDTO `json:"policy"`
	Status         string    `json:"status,omitempty"`
	CreatedAt      string    `json:"createdAt"`
	UpdatedAt      string    `json:"updatedAt"`
}

func systemConfigDTO(c *config.SystemConfig) ConfigDTO {
	return ConfigDTO{
		ID:             c.ID,
		OrganisationID: c.OrganisationID,
		Level:          string(config.LevelSystem),
		Policy:         policyDTO(c.Policy),
		CreatedAt:      c.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      c.UpdatedAt.Format(time.RFC3339),
	}
}

func companyConfigDTO(c *config.CompanyConfig) ConfigDTO {
	return ConfigDTO{
		ID:             c.ID,
		OrganisationID: c.OrganisationID,
		Level:          string(config.LevelCompany),
		Key:            c.SocieteID,
		Policy:         policyDTO(c.Policy),
		Status:         string(c.Status),
		CreatedAt:      c.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      c.UpdatedAt.Format(time.RFC3339),
	}
}

func clientConfigDTO(c *config.ClientConfig) ConfigDTO {
	return ConfigDTO{
		ID:             c.ID,
		OrganisationID: c.OrganisationID,
		Level:          string(config.LevelClient),
		Key:            c.ClientID,
		Policy:         policyDTO(c.Policy),
		Status:         string(c.Status),
		CreatedAt:      c.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      c.UpdatedAt.Format(time.RFC3339),
	}
}

func contractConfigDTO(c *config.ContractConfig) ConfigDTO {
	return ConfigDTO{
		ID:             c.ID,
		OrganisationID: c.OrganisationID,
		Level:          string(config.LevelContract),
		Key:            c.ContratID,
		Policy:         policyDTO(c.Policy),
		Status:         string(c.Status),
		CreatedAt:      c.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      c.UpdatedAt.Format(time.RFC3339),
	}
}

// CreateConfigRequest creates one override (or sets the system defaults,
// in which case Key is ignored).
type CreateConfigRequest struct {
	OrganisationID string    `json:"organisationId"`
	Key            string    `json:"key,omitempty"`
	Policy         PolicyDTO `json:"policy"`
	ActorID        string    `json:"actorId,omitempty"`
}

// UpdateConfigRequest patches one override.
type UpdateConfigRequest struct {
	Policy  PolicyPatchDTO `json:"policy"`
	ActorID string         `json:"actorId,omitempty"`
}

// ResolvedDTO is the winning configuration for a set of keys.
type ResolvedDTO struct {
	Policy          PolicyDTO `json:"policy"`
	AppliedLevel    string    `json:"appliedLevel"`
	AppliedConfigID string    `json:"appliedConfigId"`
}

func resolvedDTO(r *config.Resolved) ResolvedDTO {
	return ResolvedDTO{
		Policy:          policyDTO(r.Policy),
		AppliedLevel:    string(r.AppliedLevel),
		AppliedConfigID: r.AppliedConfigID,
	}
}

// TraceEntryDTO reports one level's state in a resolution trace.
type TraceEntryDTO struct {
	Level    string     `json:"level"`
	Checked  bool       `json:"checked"`
	Found    bool       `json:"found"`
	ConfigID string     `json:"configId,omitempty"`
	Policy   *PolicyDTO `json:"policy,omitempty"`
	Applied  bool       `json:"applied"`
}

// TraceDTO is the full diagnostic picture across all levels.
type TraceDTO struct {
	Entries    []TraceEntryDTO `json:"entries"`
	Resolution *ResolvedDTO    `json:"resolution,omitempty"`
	Error      string          `json:"error,omitempty"`
}

func traceDTO(t *config.ResolutionTrace) TraceDTO {
	out := TraceDTO{Error: string(t.Error)}
	for _, e := range t.Entries {
		entry := TraceEntryDTO{
			Level:    string(e.Level),
			Checked:  e.Checked,
			Found:    e.Found,
			ConfigID: e.ConfigID,
			Applied:  e.Applied,
		}
		if e.Policy != nil {
			p := policyDTO(*e.Policy)
			entry.Policy = &p
		}
		out.Entries = append(out.Entries, entry)
	}
	if t.Resolution != nil {
		r := resolvedDTO(t.Resolution)
		out.Resolution = &r
	}
	return out
}

// =============================================================================
// CALENDAR
// =============================================================================

// PlannedDateRequest asks for one computed debit date.
type PlannedDateRequest struct {
	OrganisationID string `json:"organisationId"`
	ContratID      string `json:"contratId,omitempty"`
	ClientID       string `json:"clientId,omitempty"`
	SocieteID      string `json:"societeId,omitempty"`
	Month          int    `json:"month"`
	Year           int    `json:"year"`
	IncludeTrace   bool   `json:"includeTrace,omitempty"`
}

// PlannedDateDTO is one computed debit date.
type PlannedDateDTO struct {
	PlannedDate        string               `json:"plannedDate"`
	OriginalTargetDate string               `json:"originalTargetDate"`
	WasShifted         bool                 `json:"wasShifted"`
	ShiftReason        string               `json:"shiftReason,omitempty"`
	Resolved           ResolvedDTO          `json:"resolved"`
	Trace              []calendar.TraceStep `json:"trace,omitempty"`
}

func plannedDateDTO(r *calendar.Result) PlannedDateDTO {
	return PlannedDateDTO{
		PlannedDate:        r.PlannedDate.Format(dateLayout),
		OriginalTargetDate: r.OriginalTargetDate.Format(dateLayout),
		WasShifted:         r.WasShifted,
		ShiftReason:        r.ShiftReason,
		Resolved:           resolvedDTO(r.Resolved),
		Trace:              r.Trace,
	}
}

// BatchRequest computes planned dates for many contexts in one call.
type BatchRequest struct {
	OrganisationID string                `json:"organisationId"`
	Month          int                   `json:"month"`
	Year           int                   `json:"year"`
	Items          []calendar.BatchInput `json:"items"`
}

// BatchItemDTO is one slot of a batch response: result or error, never both.
type BatchItemDTO struct {
	Index        int             `json:"index"`
	Reference    string          `json:"reference,omitempty"`
	Result       *PlannedDateDTO `json:"result,omitempty"`
	ErrorCode    string          `json:"errorCode,omitempty"`
	ErrorMessage string          `json:"errorMessage,omitempty"`
}

// BatchResponseDTO aggregates a batch run. Item order matches request order.
type BatchResponseDTO struct {
	Items        []BatchItemDTO `json:"items"`
	TotalCount   int            `json:"totalCount"`
	SuccessCount int            `json:"successCount"`
	ErrorCount   int            `json:"errorCount"`
}

func batchResponseDTO(r *calendar.BatchResult) BatchResponseDTO {
	out := BatchResponseDTO{
		Items:        make([]BatchItemDTO, len(r.Items)),
		TotalCount:   r.TotalCount,
		SuccessCount: r.SuccessCount,
		ErrorCount:   r.ErrorCount,
	}
	for i, item := range r.Items {
		dto := BatchItemDTO{
			Index:        item.Index,
			Reference:    item.Input.Reference,
			ErrorCode:    item.ErrorCode,
			ErrorMessage: item.ErrorMessage,
		}
		if item.Result != nil {
			res := plannedDateDTO(item.Result)
			dto.Result = &res
		}
		out.Items[i] = dto
	}
	return out
}

// EligibilityDTO answers whether one date is a valid debit date.
type EligibilityDTO struct {
	Date        string `json:"date"`
	IsEligible  bool   `json:"isEligible"`
	IsWeekend   bool   `json:"isWeekend"`
	IsHoliday   bool   `json:"isHoliday"`
	HolidayName string `json:"holidayName,omitempty"`
	Reason      string `json:"reason"`
}

func eligibilityDTO(e *holidays.Eligibility) EligibilityDTO {
	return EligibilityDTO{
		Date:        e.Date.Format(dateLayout),
		IsEligible:  e.IsEligible,
		IsWeekend:   e.IsWeekend,
		IsHoliday:   e.IsHoliday,
		HolidayName: e.HolidayName,
		Reason:      e.Reason,
	}
}

// =============================================================================
// HOLIDAYS
// =============================================================================

// ZoneDTO is one holiday zone.
type ZoneDTO struct {
	ID             string `json:"id"`
	OrganisationID string `json:"organisationId"`
	Code           string `json:"code"`
	Name           string `json:"name"`
	CountryCode    string `json:"countryCode"`
	RegionCode     string `json:"regionCode,omitempty"`
	Status         string `json:"status"`
	CreatedAt      string `json:"createdAt"`
}

func zoneDTO(z *holidays.Zone) ZoneDTO {
	return ZoneDTO{
		ID:             z.ID,
		OrganisationID: z.OrganisationID,
		Code:           z.Code,
		Name:           z.Name,
		CountryCode:    z.CountryCode,
		RegionCode:     z.RegionCode,
		Status:         string(z.Status),
		CreatedAt:      z.CreatedAt.Format(time.RFC3339),
	}
}

// CreateZoneRequest registers a holiday zone.
type CreateZoneRequest struct {
	OrganisationID string `json:"organisationId"`
	Code           string `json:"code"`
	Name           string `json:"name"`
	CountryCode    string `json:"countryCode"`
	RegionCode     string `json:"regionCode,omitempty"`
}

// HolidayDTO is one stored holiday record.
type HolidayDTO struct {
	ID        string `json:"id"`
	ZoneID    string `json:"zoneId"`
	Name      string `json:"name"`
	Type      int    `json:"holidayType"`
	Date      string `json:"date,omitempty"`
	Recurring bool   `json:"recurring"`
	Month     int    `json:"month,omitempty"`
	Day       int    `json:"day,omitempty"`
	CreatedAt string `json:"createdAt"`
}

func holidayDTO(h *holidays.Holiday) HolidayDTO {
	dto := HolidayDTO{
		ID:        h.ID,
		ZoneID:    h.ZoneID,
		Name:      h.Name,
		Type:      holidayTypeToWire[h.Type],
		Recurring: h.Recurring,
		Month:     int(h.Month),
		Day:       h.Day,
		CreatedAt: h.CreatedAt.Format(time.RFC3339),
	}
	if !h.Date.IsZero() {
		dto.Date = h.Date.Format(dateLayout)
	}
	return dto
}

// CreateHolidayRequest adds a one-off or recurring holiday to a zone.
type CreateHolidayRequest struct {
	ZoneID    string `json:"zoneId"`
	Name      string `json:"name"`
	Type      int    `json:"holidayType"`
	Date      string `json:"date,omitempty"`
	Recurring bool   `json:"recurring"`
	Month     int    `json:"month,omitempty"`
	Day       int    `json:"day,omitempty"`
}

func (r CreateHolidayRequest) domain() (holidays.Holiday, error) {
	typ, err := decodeHolidayType(r.Type)
	if err != nil {
		return holidays.Holiday{}, err
	}
	h := holidays.Holiday{
		ZoneID:    r.ZoneID,
		Name:      r.Name,
		Type:      typ,
		Recurring: r.Recurring,
		Month:     time.Month(r.Month),
		Day:       r.Day,
	}
	if r.Date != "" {
		d, err := time.Parse(dateLayout, r.Date)
		if err != nil {
			return holidays.Holiday{}, fmt.Errorf("invalid date %q: expected yyyy-MM-dd", r.Date)
		}
		h.Date = d
	}
	return h, nil
}

// DayHolidayDTO is one holiday occurrence in a range listing.
type DayHolidayDTO struct {
	Date   string `json:"date"`
	Name   string `json:"name"`
	Type   int    `json:"holidayType"`
	Source string `json:"source"`
}

func dayHolidayDTO(d holidays.DayHoliday) DayHolidayDTO {
	return DayHolidayDTO{
		Date:   d.Date.Format(dateLayout),
		Name:   d.Name,
		Type:   holidayTypeToWire[d.Type],
		Source: d.Source,
	}
}

// =============================================================================
// IMPORT, AUDIT, PLANNED DEBITS
// =============================================================================

// ImportRequest submits a CSV payload.
type ImportRequest struct {
	OrganisationID string `json:"organisationId"`
	Type           string `json:"type"`
	Content        string `json:"content"`
	DryRun         bool   `json:"dryRun,omitempty"`
	ActorID        string `json:"actorId,omitempty"`
}

func (r ImportRequest) domain() (importer.Input, error) {
	t := importer.Type(r.Type)
	if !t.Valid() {
		return importer.Input{}, fmt.Errorf("unknown import type %q", r.Type)
	}
	return importer.Input{
		OrganisationID: r.OrganisationID,
		Type:           t,
		Content:        r.Content,
		DryRun:         r.DryRun,
		ActorID:        r.ActorID,
	}, nil
}

// AuditEntryDTO is one audit row. Source crosses as a wire integer.
type AuditEntryDTO struct {
	ID             string `json:"id"`
	OrganisationID string `json:"organisationId"`
	EntityType     string `json:"entityType"`
	EntityID       string `json:"entityId"`
	Action         string `json:"action"`
	ActorID        string `json:"actorId,omitempty"`
	Source         int    `json:"source"`
	Before         any    `json:"before,omitempty"`
	After          any    `json:"after,omitempty"`
	ChangeSummary  string `json:"changeSummary"`
	CreatedAt      string `json:"createdAt"`
}

func auditEntryDTO(e audit.Entry) AuditEntryDTO {
	dto := AuditEntryDTO{
		ID:             e.ID,
		OrganisationID: e.OrganisationID,
		EntityType:     e.EntityType,
		EntityID:       e.EntityID,
		Action:         string(e.Action),
		ActorID:        e.ActorID,
		Source:         sourceToWire[e.Source],
		ChangeSummary:  e.ChangeSummary,
		CreatedAt:      e.CreatedAt.Format(time.RFC3339),
	}
	if len(e.Before) > 0 {
		dto.Before = e.Before
	}
	if len(e.After) > 0 {
		dto.After = e.After
	}
	return dto
}

// AuditPageDTO is one page of the audit log plus the total match count.
type AuditPageDTO struct {
	Entries []AuditEntryDTO `json:"entries"`
	Total   int             `json:"total"`
	Limit   int             `json:"limit,omitempty"`
	Offset  int             `json:"offset,omitempty"`
}

// PlannedDebitDTO is one persisted planned debit.
type PlannedDebitDTO struct {
	ID                 string      `json:"id"`
	OrganisationID     string      `json:"organisationId"`
	ContratID          string      `json:"contratId"`
	PlannedDate        string      `json:"plannedDate"`
	OriginalTargetDate string      `json:"originalTargetDate"`
	Status             string      `json:"status"`
	Batch              int         `json:"batch,omitempty"`
	Amount             string      `json:"amount"`
	ConfigSnapshot     any         `json:"configSnapshot"`
	CreatedAt          string      `json:"createdAt"`
}

func plannedDebitDTO(pd calendar.PlannedDebit) PlannedDebitDTO {
	return PlannedDebitDTO{
		ID:                 pd.ID,
		OrganisationID:     pd.OrganisationID,
		ContratID:          pd.ContratID,
		PlannedDate:        pd.PlannedDate.Format(dateLayout),
		OriginalTargetDate: pd.OriginalTargetDate.Format(dateLayout),
		Status:             string(pd.Status),
		Batch:              batchToWire[pd.Batch],
		Amount:             pd.Amount.String(),
		ConfigSnapshot:     pd.ConfigSnapshot,
		CreatedAt:          pd.CreatedAt.Format(time.RFC3339),
	}
}

// CreatePlannedDebitRequest computes and persists one planned debit.
type CreatePlannedDebitRequest struct {
	OrganisationID string `json:"organisationId"`
	ContratID      string `json:"contratId"`
	ClientID       string `json:"clientId,omitempty"`
	SocieteID      string `json:"societeId,omitempty"`
	Month          int    `json:"month"`
	Year           int    `json:"year"`
	Amount         string `json:"amount"`
}

// SchedulerStatusDTO reports the generation scheduler's state.
type SchedulerStatusDTO struct {
	Enabled       bool   `json:"enabled"`
	CheckInterval string `json:"checkInterval"`
	NextRunAt     string `json:"nextRunAt"`
}

// ErrorDTO is the uniform error envelope.
type ErrorDTO struct {
	Error   string         `json:"error"`
	Code    string         `json:"code,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}
