// Package memory provides an in-memory implementation of every store
// interface, for tests and development. Mirrors the behavior of the sqlite
// store including the one-active-row-per-key uniqueness rule.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/warp/debit-engine/audit"
	"github.com/warp/debit-engine/calendar"
	"github.com/warp/debit-engine/config"
	"github.com/warp/debit-engine/holidays"
)

// Store holds everything behind one mutex; contention is irrelevant at
// test scale.
type Store struct {
	mu sync.RWMutex

	systemConfigs   map[string]config.SystemConfig // organisationID -> row
	companyConfigs  map[string]config.CompanyConfig
	clientConfigs   map[string]config.ClientConfig
	contractConfigs map[string]config.ContractConfig

	zones        map[string]holidays.Zone
	holidayRows  map[string]holidays.Holiday
	auditEntries []audit.Entry
	planned      map[string]calendar.PlannedDebit
}

// New creates an empty store.
func New() *Store {
	return &Store{
		systemConfigs:   make(map[string]config.SystemConfig),
		companyConfigs:  make(map[string]config.CompanyConfig),
		clientConfigs:   make(map[string]config.ClientConfig),
		contractConfigs: make(map[string]config.ContractConfig),
		zones:           make(map[string]holidays.Zone),
		holidayRows:     make(map[string]holidays.Holiday),
		planned:         make(map[string]calendar.PlannedDebit),
	}
}

// =============================================================================
// config.Store
// =============================================================================

func (s *Store) GetSystemConfig(_ context.Context, organisationID string) (*config.SystemConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if cfg, ok := s.systemConfigs[organisationID]; ok {
		out := cfg
		return &out, nil
	}
	return nil, nil
}

func (s *Store) SaveSystemConfig(_ context.Context, cfg *config.SystemConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.systemConfigs[cfg.OrganisationID] = *cfg
	return nil
}

func (s *Store) GetCompanyConfig(_ context.Context, id string) (*config.CompanyConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if cfg, ok := s.companyConfigs[id]; ok {
		out := cfg
		return &out, nil
	}
	return nil, nil
}

func (s *Store) FindActiveCompanyConfig(_ context.Context, organisationID, societeID string) (*config.CompanyConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, cfg := range s.companyConfigs {
		if cfg.OrganisationID == organisationID && cfg.SocieteID == societeID && cfg.Status == config.StatusActive {
			out := cfg
			return &out, nil
		}
	}
	return nil, nil
}

func (s *Store) SaveCompanyConfig(_ context.Context, cfg *config.CompanyConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cfg.Status == config.StatusActive {
		for _, other := range s.companyConfigs {
			if other.ID != cfg.ID && other.OrganisationID == cfg.OrganisationID &&
				other.SocieteID == cfg.SocieteID && other.Status == config.StatusActive {
				return config.ErrDuplicateConfig
			}
		}
	}
	s.companyConfigs[cfg.ID] = *cfg
	return nil
}

func (s *Store) ListCompanyConfigs(_ context.Context, organisationID string) ([]config.CompanyConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []config.CompanyConfig
	for _, cfg := range s.companyConfigs {
		if cfg.OrganisationID == organisationID {
			out = append(out, cfg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) GetClientConfig(_ context.Context, id string) (*config.ClientConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if cfg, ok := s.clientConfigs[id]; ok {
		out := cfg
		return &out, nil
	}
	return nil, nil
}

func (s *Store) FindActiveClientConfig(_ context.Context, organisationID, clientID string) (*config.ClientConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, cfg := range s.clientConfigs {
		if cfg.OrganisationID == organisationID && cfg.ClientID == clientID && cfg.Status == config.StatusActive {
			out := cfg
			return &out, nil
		}
	}
	return nil, nil
}

func (s *Store) SaveClientConfig(_ context.Context, cfg *config.ClientConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cfg.Status == config.StatusActive {
		for _, other := range s.clientConfigs {
			if other.ID != cfg.ID && other.OrganisationID == cfg.OrganisationID &&
				other.ClientID == cfg.ClientID && other.Status == config.StatusActive {
				return config.ErrDuplicateConfig
			}
		}
	}
	s.clientConfigs[cfg.ID] = *cfg
	return nil
}

func (s *Store) ListClientConfigs(_ context.Context, organisationID string) ([]config.ClientConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []config.ClientConfig
	for _, cfg := range s.clientConfigs {
		if cfg.OrganisationID == organisationID {
			out = append(out, cfg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) GetContractConfig(_ context.Context, id string) (*config.ContractConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if cfg, ok := s.contractConfigs[id]; ok {
		out := cfg
		return &out, nil
	}
	return nil, nil
}

func (s *Store) FindActiveContractConfig(_ context.Context, organisationID, contratID string) (*config.ContractConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, cfg := range s.contractConfigs {
		if cfg.OrganisationID == organisationID && cfg.ContratID == contratID && cfg.Status == config.StatusActive {
			out := cfg
			return &out, nil
		}
	}
	return nil, nil
}

func (s *Store) SaveContractConfig(_ context.Context, cfg *config.ContractConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cfg.Status == config.StatusActive {
		for _, other := range s.contractConfigs {
			if other.ID != cfg.ID && other.OrganisationID == cfg.OrganisationID &&
				other.ContratID == cfg.ContratID && other.Status == config.StatusActive {
				return config.ErrDuplicateConfig
			}
		}
	}
	s.contractConfigs[cfg.ID] = *cfg
	return nil
}

func (s *Store) ListContractConfigs(_ context.Context, organisationID string) ([]config.ContractConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []config.ContractConfig
	for _, cfg := range s.contractConfigs {
		if cfg.OrganisationID == organisationID {
			out = append(out, cfg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// =============================================================================
// holidays.Store
// =============================================================================

func (s *Store) GetZone(_ context.Context, id string) (*holidays.Zone, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if z, ok := s.zones[id]; ok {
		out := z
		return &out, nil
	}
	return nil, nil
}

func (s *Store) GetZoneByCode(_ context.Context, organisationID, code string) (*holidays.Zone, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, z := range s.zones {
		if z.OrganisationID == organisationID && z.Code == code {
			out := z
			return &out, nil
		}
	}
	return nil, nil
}

func (s *Store) SaveZone(_ context.Context, zone *holidays.Zone) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.zones[zone.ID] = *zone
	return nil
}

func (s *Store) ListZones(_ context.Context, organisationID string) ([]holidays.Zone, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []holidays.Zone
	for _, z := range s.zones {
		if z.OrganisationID == organisationID {
			out = append(out, z)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (s *Store) SaveHoliday(_ context.Context, holiday *holidays.Holiday) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.holidayRows[holiday.ID] = *holiday
	return nil
}

func (s *Store) ListHolidays(_ context.Context, zoneID string) ([]holidays.Holiday, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []holidays.Holiday
	for _, h := range s.holidayRows {
		if h.ZoneID == zoneID {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) FindHolidayOnDate(_ context.Context, zoneID string, date time.Time) (*holidays.Holiday, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, h := range s.holidayRows {
		if h.ZoneID == zoneID && !h.Recurring && h.Matches(date) {
			out := h
			return &out, nil
		}
	}
	return nil, nil
}

func (s *Store) FindRecurringHoliday(_ context.Context, zoneID string, month time.Month, day int) (*holidays.Holiday, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, h := range s.holidayRows {
		if h.ZoneID == zoneID && h.Recurring && h.Month == month && h.Day == day {
			out := h
			return &out, nil
		}
	}
	return nil, nil
}

// =============================================================================
// audit.Log
// =============================================================================

func (s *Store) Append(_ context.Context, entry audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auditEntries = append(s.auditEntries, entry)
	return nil
}

func (s *Store) Query(_ context.Context, filter audit.Filter) ([]audit.Entry, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []audit.Entry
	for _, e := range s.auditEntries {
		if filter.OrganisationID != "" && e.OrganisationID != filter.OrganisationID {
			continue
		}
		if filter.EntityType != "" && e.EntityType != filter.EntityType {
			continue
		}
		if filter.EntityID != "" && e.EntityID != filter.EntityID {
			continue
		}
		if filter.ActorID != "" && e.ActorID != filter.ActorID {
			continue
		}
		if filter.Source != "" && e.Source != filter.Source {
			continue
		}
		if filter.From != nil && e.CreatedAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && e.CreatedAt.After(*filter.To) {
			continue
		}
		matched = append(matched, e)
	}

	// Newest first, like the sqlite store. Ties keep reverse insertion
	// order so entries written in the same instant stay deterministic.
	for i, j := 0, len(matched)-1; i < j; i, j = i+1, j-1 {
		matched[i], matched[j] = matched[j], matched[i]
	}
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	total := len(matched)
	if filter.Offset > 0 {
		if filter.Offset >= total {
			return nil, total, nil
		}
		matched = matched[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(matched) {
		matched = matched[:filter.Limit]
	}
	return matched, total, nil
}

// =============================================================================
// calendar.PlannedDebitStore
// =============================================================================

func (s *Store) SavePlannedDebit(_ context.Context, pd *calendar.PlannedDebit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.planned[pd.ID] = *pd
	return nil
}

func (s *Store) ListPlannedDebits(_ context.Context, organisationID string, year int, month time.Month) ([]calendar.PlannedDebit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []calendar.PlannedDebit
	for _, pd := range s.planned {
		if pd.OrganisationID == organisationID && pd.PlannedDate.Year() == year && pd.PlannedDate.Month() == month {
			out = append(out, pd)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PlannedDate.Before(out[j].PlannedDate) })
	return out, nil
}

// ListPlannedDebitsForTarget keys on the original target date, which stays
// inside the requested month even when shifting moved the planned date out
// of it.
func (s *Store) ListPlannedDebitsForTarget(_ context.Context, organisationID string, year int, month time.Month) ([]calendar.PlannedDebit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []calendar.PlannedDebit
	for _, pd := range s.planned {
		if pd.OrganisationID == organisationID && pd.OriginalTargetDate.Year() == year && pd.OriginalTargetDate.Month() == month {
			out = append(out, pd)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OriginalTargetDate.Before(out[j].OriginalTargetDate) })
	return out, nil
}
