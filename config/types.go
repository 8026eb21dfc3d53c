/*
Package config holds the debit-date configuration model and the four-level
override hierarchy (contract > client > company > system).

PURPOSE:
  A planned debit date is governed by a DebitDatePolicy: either a batch
  window (L1..L4) or a fixed day of month, plus a shift strategy for
  ineligible dates and the holiday zone whose calendar decides eligibility.
  Policies can be defined at four levels of granularity; the Resolver walks
  them in strict priority order and returns the single applicable policy.

KEY CONCEPTS IN THIS FILE (types.go):
  - Mode/Batch/ShiftStrategy: the policy enums (domain string values)
  - Policy: the resolved value object shared by all four levels
  - SystemConfig/CompanyConfig/ClientConfig/ContractConfig: the entities
  - Resolved: resolver output with the winning level and row id

DESIGN PRINCIPLES:
  1. No merging: a level either supplies the whole policy or is skipped
  2. Soft delete only: rows flip to StatusInactive, never disappear
  3. Status is a first-class type, not a bool, to leave room for future
     states without a schema change

SEE ALSO:
  - resolver.go: Priority walk over the four levels
  - service.go: Audited CRUD on the entities
  - store.go: Persistence interface
*/
package config

import (
	"fmt"
	"time"
)

// =============================================================================
// POLICY ENUMS
// =============================================================================

// Mode selects how the nominal debit day is chosen within a month.
type Mode string

const (
	ModeBatch    Mode = "BATCH"
	ModeFixedDay Mode = "FIXED_DAY"
)

func (m Mode) Valid() bool { return m == ModeBatch || m == ModeFixedDay }

// Batch is a named bucket of calendar days within a month.
type Batch string

const (
	BatchL1 Batch = "L1" // days 1-7
	BatchL2 Batch = "L2" // days 8-14
	BatchL3 Batch = "L3" // days 15-21
	BatchL4 Batch = "L4" // days 22-31
)

// BatchRange is the inclusive day-of-month window covered by a batch.
type BatchRange struct {
	First int
	Last  int
}

var batchRanges = map[Batch]BatchRange{
	BatchL1: {First: 1, Last: 7},
	BatchL2: {First: 8, Last: 14},
	BatchL3: {First: 15, Last: 21},
	BatchL4: {First: 22, Last: 31},
}

// Range returns the day window for the batch, or false for an unknown code.
func (b Batch) Range() (BatchRange, bool) {
	r, ok := batchRanges[b]
	return r, ok
}

func (b Batch) Valid() bool {
	_, ok := batchRanges[b]
	return ok
}

// BatchForDay returns the batch whose range covers the given day of month.
// Every day 1-31 belongs to exactly one batch.
func BatchForDay(day int) (Batch, bool) {
	for _, b := range []Batch{BatchL1, BatchL2, BatchL3, BatchL4} {
		r := batchRanges[b]
		if day >= r.First && day <= r.Last {
			return b, true
		}
	}
	return "", false
}

// ShiftStrategy relocates an ineligible nominal date to a nearby eligible one.
type ShiftStrategy string

const (
	ShiftNextBusinessDay     ShiftStrategy = "NEXT_BUSINESS_DAY"
	ShiftPreviousBusinessDay ShiftStrategy = "PREVIOUS_BUSINESS_DAY"
	ShiftNextWeekSameDay     ShiftStrategy = "NEXT_WEEK_SAME_DAY"
)

func (s ShiftStrategy) Valid() bool {
	switch s {
	case ShiftNextBusinessDay, ShiftPreviousBusinessDay, ShiftNextWeekSameDay:
		return true
	}
	return false
}

// =============================================================================
// STATUS - soft-delete state for configuration rows
// =============================================================================

// Status is deliberately not a bool: future states (e.g. pending approval)
// must not require a schema change.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// =============================================================================
// RESOLUTION LEVELS
// =============================================================================

// Level is the granularity at which a policy override is defined.
type Level string

const (
	LevelSystem   Level = "system"
	LevelCompany  Level = "company"
	LevelClient   Level = "client"
	LevelContract Level = "contract"
)

// =============================================================================
// POLICY - the value resolved, shared by all four levels
// =============================================================================

// MaxFixedDay caps fixed-day policies to avoid invalid month-end dates.
const MaxFixedDay = 28

// Policy is the debit-date policy carried by every configuration level.
type Policy struct {
	Mode          Mode          `json:"mode"`
	Batch         Batch         `json:"batch,omitempty"`
	FixedDay      int           `json:"fixedDay,omitempty"`
	ShiftStrategy ShiftStrategy `json:"shiftStrategy"`
	HolidayZoneID string        `json:"holidayZoneId"`
}

// Validate checks the policy's internal consistency. The holiday zone is
// deliberately NOT required here: its absence is surfaced at resolution time
// as HOLIDAY_ZONE_REQUIRED so a half-configured row is visible, not fatal,
// until something actually depends on it.
func (p Policy) Validate() error {
	if !p.Mode.Valid() {
		return fmt.Errorf("invalid mode %q", p.Mode)
	}
	if p.Mode == ModeBatch && !p.Batch.Valid() {
		return fmt.Errorf("mode BATCH requires a batch code, got %q", p.Batch)
	}
	if p.Mode == ModeFixedDay && (p.FixedDay < 1 || p.FixedDay > MaxFixedDay) {
		return fmt.Errorf("fixed day must be 1-%d, got %d", MaxFixedDay, p.FixedDay)
	}
	if !p.ShiftStrategy.Valid() {
		return fmt.Errorf("invalid shift strategy %q", p.ShiftStrategy)
	}
	return nil
}

// =============================================================================
// CONFIGURATION ENTITIES
// =============================================================================

// SystemConfig is the ultimate fallback, one per organisation.
type SystemConfig struct {
	ID             string    `json:"id"`
	OrganisationID string    `json:"organisationId"`
	Policy
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CompanyConfig overrides the system policy for one societe.
type CompanyConfig struct {
	ID             string    `json:"id"`
	OrganisationID string    `json:"organisationId"`
	SocieteID      string    `json:"societeId"`
	Policy
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ClientConfig overrides company and system policies for one client.
type ClientConfig struct {
	ID             string    `json:"id"`
	OrganisationID string    `json:"organisationId"`
	ClientID       string    `json:"clientId"`
	Policy
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ContractConfig is the most specific override, per contrat.
type ContractConfig struct {
	ID             string    `json:"id"`
	OrganisationID string    `json:"organisationId"`
	ContratID      string    `json:"contratId"`
	Policy
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// =============================================================================
// RESOLUTION TYPES
// =============================================================================

// Keys identifies the context a policy is resolved for. Empty strings mean
// the key was not supplied; the matching level is then skipped.
type Keys struct {
	OrganisationID string `json:"organisationId"`
	ContratID      string `json:"contratId,omitempty"`
	ClientID       string `json:"clientId,omitempty"`
	SocieteID      string `json:"societeId,omitempty"`
}

// Resolved is the resolver's output: the winning policy plus where it came
// from. The applied level and row id are what make a planned debit auditable
// after the configuration has changed.
type Resolved struct {
	Policy
	AppliedLevel    Level  `json:"appliedLevel"`
	AppliedConfigID string `json:"appliedConfigId"`
}

// PolicyPatch carries partial updates: only non-nil fields are applied.
type PolicyPatch struct {
	Mode          *Mode          `json:"mode,omitempty"`
	Batch         *Batch         `json:"batch,omitempty"`
	FixedDay      *int           `json:"fixedDay,omitempty"`
	ShiftStrategy *ShiftStrategy `json:"shiftStrategy,omitempty"`
	HolidayZoneID *string        `json:"holidayZoneId,omitempty"`
}

// Apply overlays the patch on a policy and returns the result.
func (p PolicyPatch) Apply(base Policy) Policy {
	out := base
	if p.Mode != nil {
		out.Mode = *p.Mode
	}
	if p.Batch != nil {
		out.Batch = *p.Batch
	}
	if p.FixedDay != nil {
		out.FixedDay = *p.FixedDay
	}
	if p.ShiftStrategy != nil {
		out.ShiftStrategy = *p.ShiftStrategy
	}
	if p.HolidayZoneID != nil {
		out.HolidayZoneID = *p.HolidayZoneID
	}
	return out
}

// IsEmpty reports whether the patch carries no changes at all.
func (p PolicyPatch) IsEmpty() bool {
	return p.Mode == nil && p.Batch == nil && p.FixedDay == nil &&
		p.ShiftStrategy == nil && p.HolidayZoneID == nil
}
