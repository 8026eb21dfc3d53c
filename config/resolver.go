/*
resolver.go - Four-level priority resolution of the debit-date policy

ALGORITHM:
  The resolver owns an ordered list of level strategies
  (contract > client > company > system). Each strategy is a pure lookup:
  it either does not apply (its key was not supplied), finds nothing, or
  yields a candidate. Resolve stops at the first hit; there is no merging
  across levels. A hit without a holiday zone fails fast with
  HOLIDAY_ZONE_REQUIRED rather than silently defaulting, since a wrong zone
  would corrupt every downstream eligibility check.

  Trace runs the same strategies WITHOUT short-circuiting and reports what
  every level holds, tagging the one that would win. It exists for
  diagnostics and operator UIs; it never mutates anything.
*/
package config

import "context"

// Resolver walks the override hierarchy and returns the applicable policy.
// Read-only: no mutation, no audit entries.
type Resolver struct {
	store      Store
	strategies []levelStrategy
}

// levelStrategy is one resolution level: a pure (keys) -> optional candidate
// lookup. Keeping the levels as data isolates the priority policy from
// storage access and makes each level testable on its own.
type levelStrategy struct {
	level   Level
	applies func(Keys) bool
	lookup  func(context.Context, Store, Keys) (*candidate, error)
}

// candidate is what a level strategy found: the row id, its policy, and
// whether the row is active.
type candidate struct {
	configID string
	policy   Policy
	active   bool
}

// NewResolver creates a resolver over the given store.
func NewResolver(store Store) *Resolver {
	return &Resolver{
		store: store,
		strategies: []levelStrategy{
			{
				level:   LevelContract,
				applies: func(k Keys) bool { return k.ContratID != "" },
				lookup: func(ctx context.Context, s Store, k Keys) (*candidate, error) {
					cfg, err := s.FindActiveContractConfig(ctx, k.OrganisationID, k.ContratID)
					if err != nil || cfg == nil {
						return nil, err
					}
					return &candidate{configID: cfg.ID, policy: cfg.Policy, active: cfg.Status == StatusActive}, nil
				},
			},
			{
				level:   LevelClient,
				applies: func(k Keys) bool { return k.ClientID != "" },
				lookup: func(ctx context.Context, s Store, k Keys) (*candidate, error) {
					cfg, err := s.FindActiveClientConfig(ctx, k.OrganisationID, k.ClientID)
					if err != nil || cfg == nil {
						return nil, err
					}
					return &candidate{configID: cfg.ID, policy: cfg.Policy, active: cfg.Status == StatusActive}, nil
				},
			},
			{
				level:   LevelCompany,
				applies: func(k Keys) bool { return k.SocieteID != "" },
				lookup: func(ctx context.Context, s Store, k Keys) (*candidate, error) {
					cfg, err := s.FindActiveCompanyConfig(ctx, k.OrganisationID, k.SocieteID)
					if err != nil || cfg == nil {
						return nil, err
					}
					return &candidate{configID: cfg.ID, policy: cfg.Policy, active: cfg.Status == StatusActive}, nil
				},
			},
			{
				level:   LevelSystem,
				applies: func(Keys) bool { return true },
				lookup: func(ctx context.Context, s Store, k Keys) (*candidate, error) {
					cfg, err := s.GetSystemConfig(ctx, k.OrganisationID)
					if err != nil || cfg == nil {
						return nil, err
					}
					return &candidate{configID: cfg.ID, policy: cfg.Policy, active: true}, nil
				},
			},
		},
	}
}

// Resolve walks the levels in priority order and returns the first active
// match. Errors are *ConfigurationError for domain failures; store errors
// pass through unchanged.
func (r *Resolver) Resolve(ctx context.Context, keys Keys) (*Resolved, error) {
	var checked []Level
	for _, s := range r.strategies {
		if !s.applies(keys) {
			continue
		}
		checked = append(checked, s.level)

		cand, err := s.lookup(ctx, r.store, keys)
		if err != nil {
			return nil, err
		}
		if cand == nil || !cand.active {
			continue
		}

		if cand.policy.HolidayZoneID == "" {
			return nil, NewHolidayZoneRequired(s.level, cand.configID)
		}
		return &Resolved{
			Policy:          cand.policy,
			AppliedLevel:    s.level,
			AppliedConfigID: cand.configID,
		}, nil
	}
	return nil, NewNoConfigurationFound(keys, checked)
}

// =============================================================================
// RESOLUTION TRACE
// =============================================================================

// TraceEntry describes what one level holds for the given keys.
type TraceEntry struct {
	Level    Level   `json:"level"`
	Checked  bool    `json:"checked"` // a key was supplied for this level
	Found    bool    `json:"found"`
	ConfigID string  `json:"configId,omitempty"`
	Policy   *Policy `json:"policy,omitempty"`
	Applied  bool    `json:"applied"` // this level would win a Resolve call
}

// ResolutionTrace is the full diagnostic picture across all four levels.
type ResolutionTrace struct {
	Keys       Keys         `json:"keys"`
	Entries    []TraceEntry `json:"entries"`
	Resolution *Resolved    `json:"resolution,omitempty"`
	// Error carries the code Resolve would fail with, if any.
	Error ErrorCode `json:"error,omitempty"`
}

// Trace performs the same lookups as Resolve but does not short-circuit:
// every applicable level is reported, with the would-be winner tagged.
func (r *Resolver) Trace(ctx context.Context, keys Keys) (*ResolutionTrace, error) {
	trace := &ResolutionTrace{Keys: keys}
	winnerSeen := false

	for _, s := range r.strategies {
		entry := TraceEntry{Level: s.level, Checked: s.applies(keys)}
		if entry.Checked {
			cand, err := s.lookup(ctx, r.store, keys)
			if err != nil {
				return nil, err
			}
			if cand != nil && cand.active {
				pol := cand.policy
				entry.Found = true
				entry.ConfigID = cand.configID
				entry.Policy = &pol

				if !winnerSeen {
					winnerSeen = true
					entry.Applied = true
					if pol.HolidayZoneID == "" {
						trace.Error = CodeHolidayZoneRequired
					} else {
						trace.Resolution = &Resolved{
							Policy:          pol,
							AppliedLevel:    s.level,
							AppliedConfigID: cand.configID,
						}
					}
				}
			}
		}
		trace.Entries = append(trace.Entries, entry)
	}

	if !winnerSeen {
		trace.Error = CodeNoConfigurationFound
	}
	return trace, nil
}
