/*
service.go - Zone registry management and eligibility queries

CheckEligibility is the hot path: it runs the checks cheapest-first and
stops at the first match. HolidaysForRange/HolidaysForYear union stored and
computed holidays for reporting endpoints; the calendar engine never calls
them.
*/
package holidays

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/warp/debit-engine/config"
)

// Service combines the zone store with the computed-holiday cache.
type Service struct {
	store Store
	calc  *CalculatorCache
}

// NewService creates a holidays service. A nil cache disables the computed
// fallback entirely.
func NewService(store Store, calc *CalculatorCache) *Service {
	return &Service{store: store, calc: calc}
}

// activeZone loads a zone and rejects missing or inactive ones.
func (s *Service) activeZone(ctx context.Context, zoneID string) (*Zone, error) {
	zone, err := s.store.GetZone(ctx, zoneID)
	if err != nil {
		return nil, err
	}
	if zone == nil || zone.Status != config.StatusActive {
		return nil, NewZoneNotFound(zoneID)
	}
	return zone, nil
}

// CheckEligibility decides whether a date is a valid business day in a zone.
func (s *Service) CheckEligibility(ctx context.Context, date time.Time, zoneID string) (*Eligibility, error) {
	zone, err := s.activeZone(ctx, zoneID)
	if err != nil {
		return nil, err
	}

	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	elig := &Eligibility{Date: day}

	// 1. Weekend: no I/O.
	if IsWeekend(day) {
		elig.IsWeekend = true
		elig.Reason = "weekend"
		return elig, nil
	}

	// 2. Explicit one-off holiday.
	if h, err := s.store.FindHolidayOnDate(ctx, zoneID, day); err != nil {
		return nil, err
	} else if h != nil {
		elig.IsHoliday = true
		elig.HolidayName = h.Name
		elig.Reason = "holiday:" + h.Name
		return elig, nil
	}

	// 3. Recurring holiday, year-independent.
	if h, err := s.store.FindRecurringHoliday(ctx, zoneID, day.Month(), day.Day()); err != nil {
		return nil, err
	} else if h != nil {
		elig.IsHoliday = true
		elig.HolidayName = h.Name
		elig.Reason = "holiday:" + h.Name
		return elig, nil
	}

	// 4. Computed fallback for the zone's country.
	if s.calc != nil {
		if name, ok := s.calc.Holiday(zone.CountryCode, zone.RegionCode, day); ok {
			elig.IsHoliday = true
			elig.HolidayName = name
			elig.Reason = "holiday:" + name
			return elig, nil
		}
	}

	elig.IsEligible = true
	elig.Reason = "eligible"
	return elig, nil
}

// =============================================================================
// RANGE LISTINGS
// =============================================================================

// HolidaysForRange unions stored and computed holidays over [from, to],
// de-duplicated by date (stored records win) and sorted ascending.
func (s *Service) HolidaysForRange(ctx context.Context, zoneID string, from, to time.Time) ([]DayHoliday, error) {
	zone, err := s.activeZone(ctx, zoneID)
	if err != nil {
		return nil, err
	}
	if to.Before(from) {
		return nil, fmt.Errorf("invalid range: %s is before %s", to.Format("2006-01-02"), from.Format("2006-01-02"))
	}

	stored, err := s.store.ListHolidays(ctx, zoneID)
	if err != nil {
		return nil, err
	}

	byDate := make(map[string]DayHoliday)
	keep := func(dh DayHoliday, overwrite bool) {
		key := dh.Date.Format("2006-01-02")
		if _, exists := byDate[key]; exists && !overwrite {
			return
		}
		byDate[key] = dh
	}

	inRange := func(d time.Time) bool { return !d.Before(from) && !d.After(to) }

	// Computed first so stored records overwrite them on collision.
	if s.calc != nil {
		for year := from.Year(); year <= to.Year(); year++ {
			for _, dh := range s.calc.HolidaysForYear(zone.CountryCode, zone.RegionCode, year) {
				if inRange(dh.Date) {
					keep(dh, false)
				}
			}
		}
	}
	for _, h := range stored {
		for year := from.Year(); year <= to.Year(); year++ {
			occ, ok := h.OccurrenceIn(year)
			if !ok || !inRange(occ) {
				continue
			}
			keep(DayHoliday{Date: occ, Name: h.Name, Type: h.Type, Source: "stored"}, true)
		}
	}

	out := make([]DayHoliday, 0, len(byDate))
	for _, dh := range byDate {
		out = append(out, dh)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// HolidaysForYear is HolidaysForRange over a whole calendar year.
func (s *Service) HolidaysForYear(ctx context.Context, zoneID string, year int) ([]DayHoliday, error) {
	from := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)
	return s.HolidaysForRange(ctx, zoneID, from, to)
}

// =============================================================================
// REGISTRY MANAGEMENT
// =============================================================================

// CreateZoneInput describes a new holiday zone.
type CreateZoneInput struct {
	OrganisationID string `validate:"required"`
	Code           string `validate:"required,min=2,max=32"`
	Name           string `validate:"required,min=2,max=100"`
	CountryCode    string `validate:"required,len=2"`
	RegionCode     string `validate:"omitempty,max=8"`
}

// CreateZone registers a new zone. Codes are unique per organisation.
func (s *Service) CreateZone(ctx context.Context, in CreateZoneInput) (*Zone, error) {
	existing, err := s.store.GetZoneByCode(ctx, in.OrganisationID, in.Code)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrZoneCodeTaken
	}

	zone := &Zone{
		ID:             uuid.NewString(),
		OrganisationID: in.OrganisationID,
		Code:           in.Code,
		Name:           in.Name,
		CountryCode:    in.CountryCode,
		RegionCode:     in.RegionCode,
		Status:         config.StatusActive,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.store.SaveZone(ctx, zone); err != nil {
		return nil, err
	}
	return zone, nil
}

// ListZones returns the organisation's zones.
func (s *Service) ListZones(ctx context.Context, organisationID string) ([]Zone, error) {
	return s.store.ListZones(ctx, organisationID)
}

// GetZoneByCode resolves a zone code within an organisation (nil if absent).
func (s *Service) GetZoneByCode(ctx context.Context, organisationID, code string) (*Zone, error) {
	return s.store.GetZoneByCode(ctx, organisationID, code)
}

// CreateHoliday adds a one-off or recurring record to a zone.
func (s *Service) CreateHoliday(ctx context.Context, h Holiday) (*Holiday, error) {
	if _, err := s.activeZone(ctx, h.ZoneID); err != nil {
		return nil, err
	}
	if err := h.Validate(); err != nil {
		return nil, err
	}
	h.ID = uuid.NewString()
	h.CreatedAt = time.Now().UTC()
	if !h.Date.IsZero() {
		h.Date = time.Date(h.Date.Year(), h.Date.Month(), h.Date.Day(), 0, 0, 0, 0, time.UTC)
	}
	if err := s.store.SaveHoliday(ctx, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// ListHolidays returns a zone's stored records (not computed ones).
func (s *Service) ListHolidays(ctx context.Context, zoneID string) ([]Holiday, error) {
	if _, err := s.activeZone(ctx, zoneID); err != nil {
		return nil, err
	}
	return s.store.ListHolidays(ctx, zoneID)
}
