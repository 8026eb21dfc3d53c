/*
service.go - Audited CRUD over the four configuration levels

Every write follows the same shape:
  1. Load the current row (update/delete) for the before-snapshot
  2. Apply the requested changes (partial patch - only provided fields)
  3. Persist
  4. Synchronously emit an audit entry with before/after snapshots and an
     auto-generated change summary

"Delete" flips the row to StatusInactive; rows are never hard-deleted, so
audit history and old planned-debit snapshots keep pointing at real data.

AUDIT FAILURE POLICY:
  An audit write failure is logged and swallowed. Audit is best-effort by
  decision: it must never become the reason billing configuration cannot
  be saved.
*/
package config

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/warp/debit-engine/audit"
)

// Service wraps the store with validation and audit emission.
type Service struct {
	store Store
	audit audit.Log
	log   *logrus.Logger
}

// NewService creates a configuration service. The logger is used only for
// audit-failure reporting; pass logrus.StandardLogger() if in doubt.
func NewService(store Store, auditLog audit.Log, log *logrus.Logger) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{store: store, audit: auditLog, log: log}
}

// Meta identifies who performed a mutation and through which channel.
type Meta struct {
	ActorID string
	Source  audit.Source
}

func (m Meta) source() audit.Source {
	if m.Source == "" {
		return audit.SourceAPI
	}
	return m.Source
}

// emit appends an audit entry, logging (never propagating) failures.
func (s *Service) emit(ctx context.Context, entry audit.Entry) {
	if s.audit == nil {
		return
	}
	entry.ID = uuid.NewString()
	entry.CreatedAt = time.Now().UTC()
	if err := s.audit.Append(ctx, entry); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"entityType": entry.EntityType,
			"entityId":   entry.EntityID,
			"action":     entry.Action,
		}).Error("audit append failed; continuing")
	}
}

// =============================================================================
// SYSTEM LEVEL - one row per organisation, create-or-update semantics
// =============================================================================

// GetSystemConfig returns the organisation's system config.
func (s *Service) GetSystemConfig(ctx context.Context, organisationID string) (*SystemConfig, error) {
	cfg, err := s.store.GetSystemConfig(ctx, organisationID)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, ErrConfigNotFound
	}
	return cfg, nil
}

// SetSystemConfig creates or replaces the organisation's system config.
func (s *Service) SetSystemConfig(ctx context.Context, organisationID string, policy Policy, meta Meta) (*SystemConfig, error) {
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPolicy, err)
	}

	existing, err := s.store.GetSystemConfig(ctx, organisationID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	cfg := &SystemConfig{
		OrganisationID: organisationID,
		Policy:         policy,
		UpdatedAt:      now,
	}
	action := audit.ActionCreate
	var before SystemConfig
	if existing != nil {
		action = audit.ActionUpdate
		before = *existing
		cfg.ID = existing.ID
		cfg.CreatedAt = existing.CreatedAt
	} else {
		cfg.ID = uuid.NewString()
		cfg.CreatedAt = now
	}

	if err := s.store.SaveSystemConfig(ctx, cfg); err != nil {
		return nil, err
	}

	entry := audit.Entry{
		OrganisationID: organisationID,
		EntityType:     audit.EntitySystemConfig,
		EntityID:       cfg.ID,
		Action:         action,
		ActorID:        meta.ActorID,
		Source:         meta.source(),
		After:          audit.Snapshot(cfg),
	}
	if existing != nil {
		entry.Before = audit.Snapshot(before)
	}
	entry.ChangeSummary = audit.ChangeSummary(action, audit.Describe(audit.EntitySystemConfig, cfg.ID), entry.Before, entry.After)
	s.emit(ctx, entry)

	return cfg, nil
}

// =============================================================================
// COMPANY LEVEL
// =============================================================================

// CreateCompanyConfigInput creates an active company-level override.
type CreateCompanyConfigInput struct {
	OrganisationID string
	SocieteID      string
	Policy         Policy
}

func (s *Service) CreateCompanyConfig(ctx context.Context, in CreateCompanyConfigInput, meta Meta) (*CompanyConfig, error) {
	if err := in.Policy.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPolicy, err)
	}
	if existing, err := s.store.FindActiveCompanyConfig(ctx, in.OrganisationID, in.SocieteID); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, ErrDuplicateConfig
	}

	now := time.Now().UTC()
	cfg := &CompanyConfig{
		ID:             uuid.NewString(),
		OrganisationID: in.OrganisationID,
		SocieteID:      in.SocieteID,
		Policy:         in.Policy,
		Status:         StatusActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.SaveCompanyConfig(ctx, cfg); err != nil {
		return nil, err
	}

	after := audit.Snapshot(cfg)
	s.emit(ctx, audit.Entry{
		OrganisationID: in.OrganisationID,
		EntityType:     audit.EntityCompanyConfig,
		EntityID:       cfg.ID,
		Action:         audit.ActionCreate,
		ActorID:        meta.ActorID,
		Source:         meta.source(),
		After:          after,
		ChangeSummary:  audit.ChangeSummary(audit.ActionCreate, audit.Describe(audit.EntityCompanyConfig, cfg.ID), nil, after),
	})
	return cfg, nil
}

func (s *Service) GetCompanyConfig(ctx context.Context, id string) (*CompanyConfig, error) {
	cfg, err := s.store.GetCompanyConfig(ctx, id)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, ErrConfigNotFound
	}
	return cfg, nil
}

func (s *Service) ListCompanyConfigs(ctx context.Context, organisationID string) ([]CompanyConfig, error) {
	return s.store.ListCompanyConfigs(ctx, organisationID)
}

// UpdateCompanyConfig applies a partial patch to the row's policy fields.
func (s *Service) UpdateCompanyConfig(ctx context.Context, id string, patch PolicyPatch, meta Meta) (*CompanyConfig, error) {
	cfg, err := s.store.GetCompanyConfig(ctx, id)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, ErrConfigNotFound
	}

	before := *cfg
	cfg.Policy = patch.Apply(cfg.Policy)
	if err := cfg.Policy.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPolicy, err)
	}
	cfg.UpdatedAt = time.Now().UTC()

	if err := s.store.SaveCompanyConfig(ctx, cfg); err != nil {
		return nil, err
	}

	beforeJSON, afterJSON := audit.Snapshot(before), audit.Snapshot(cfg)
	s.emit(ctx, audit.Entry{
		OrganisationID: cfg.OrganisationID,
		EntityType:     audit.EntityCompanyConfig,
		EntityID:       cfg.ID,
		Action:         audit.ActionUpdate,
		ActorID:        meta.ActorID,
		Source:         meta.source(),
		Before:         beforeJSON,
		After:          afterJSON,
		ChangeSummary:  audit.ChangeSummary(audit.ActionUpdate, audit.Describe(audit.EntityCompanyConfig, cfg.ID), beforeJSON, afterJSON),
	})
	return cfg, nil
}

// DeleteCompanyConfig soft-deletes: the row flips to inactive.
func (s *Service) DeleteCompanyConfig(ctx context.Context, id string, meta Meta) error {
	cfg, err := s.store.GetCompanyConfig(ctx, id)
	if err != nil {
		return err
	}
	if cfg == nil {
		return ErrConfigNotFound
	}

	before := *cfg
	cfg.Status = StatusInactive
	cfg.UpdatedAt = time.Now().UTC()
	if err := s.store.SaveCompanyConfig(ctx, cfg); err != nil {
		return err
	}

	s.emit(ctx, audit.Entry{
		OrganisationID: cfg.OrganisationID,
		EntityType:     audit.EntityCompanyConfig,
		EntityID:       cfg.ID,
		Action:         audit.ActionDelete,
		ActorID:        meta.ActorID,
		Source:         meta.source(),
		Before:         audit.Snapshot(before),
		After:          audit.Snapshot(cfg),
		ChangeSummary:  audit.ChangeSummary(audit.ActionDelete, audit.Describe(audit.EntityCompanyConfig, cfg.ID), nil, nil),
	})
	return nil
}

// =============================================================================
// CLIENT LEVEL
// =============================================================================

type CreateClientConfigInput struct {
	OrganisationID string
	ClientID       string
	Policy         Policy
}

func (s *Service) CreateClientConfig(ctx context.Context, in CreateClientConfigInput, meta Meta) (*ClientConfig, error) {
	if err := in.Policy.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPolicy, err)
	}
	if existing, err := s.store.FindActiveClientConfig(ctx, in.OrganisationID, in.ClientID); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, ErrDuplicateConfig
	}

	now := time.Now().UTC()
	cfg := &ClientConfig{
		ID:             uuid.NewString(),
		OrganisationID: in.OrganisationID,
		ClientID:       in.ClientID,
		Policy:         in.Policy,
		Status:         StatusActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.SaveClientConfig(ctx, cfg); err != nil {
		return nil, err
	}

	after := audit.Snapshot(cfg)
	s.emit(ctx, audit.Entry{
		OrganisationID: in.OrganisationID,
		EntityType:     audit.EntityClientConfig,
		EntityID:       cfg.ID,
		Action:         audit.ActionCreate,
		ActorID:        meta.ActorID,
		Source:         meta.source(),
		After:          after,
		ChangeSummary:  audit.ChangeSummary(audit.ActionCreate, audit.Describe(audit.EntityClientConfig, cfg.ID), nil, after),
	})
	return cfg, nil
}

func (s *Service) GetClientConfig(ctx context.Context, id string) (*ClientConfig, error) {
	cfg, err := s.store.GetClientConfig(ctx, id)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, ErrConfigNotFound
	}
	return cfg, nil
}

func (s *Service) ListClientConfigs(ctx context.Context, organisationID string) ([]ClientConfig, error) {
	return s.store.ListClientConfigs(ctx, organisationID)
}

func (s *Service) UpdateClientConfig(ctx context.Context, id string, patch PolicyPatch, meta Meta) (*ClientConfig, error) {
	cfg, err := s.store.GetClientConfig(ctx, id)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, ErrConfigNotFound
	}

	before := *cfg
	cfg.Policy = patch.Apply(cfg.Policy)
	if err := cfg.Policy.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPolicy, err)
	}
	cfg.UpdatedAt = time.Now().UTC()

	if err := s.store.SaveClientConfig(ctx, cfg); err != nil {
		return nil, err
	}

	beforeJSON, afterJSON := audit.Snapshot(before), audit.Snapshot(cfg)
	s.emit(ctx, audit.Entry{
		OrganisationID: cfg.OrganisationID,
		EntityType:     audit.EntityClientConfig,
		EntityID:       cfg.ID,
		Action:         audit.ActionUpdate,
		ActorID:        meta.ActorID,
		Source:         meta.source(),
		Before:         beforeJSON,
		After:          afterJSON,
		ChangeSummary:  audit.ChangeSummary(audit.ActionUpdate, audit.Describe(audit.EntityClientConfig, cfg.ID), beforeJSON, afterJSON),
	})
	return cfg, nil
}

func (s *Service) DeleteClientConfig(ctx context.Context, id string, meta Meta) error {
	cfg, err := s.store.GetClientConfig(ctx, id)
	if err != nil {
		return err
	}
	if cfg == nil {
		return ErrConfigNotFound
	}

	before := *cfg
	cfg.Status = StatusInactive
	cfg.UpdatedAt = time.Now().UTC()
	if err := s.store.SaveClientConfig(ctx, cfg); err != nil {
		return err
	}

	s.emit(ctx, audit.Entry{
		OrganisationID: cfg.OrganisationID,
		EntityType:     audit.EntityClientConfig,
		EntityID:       cfg.ID,
		Action:         audit.ActionDelete,
		ActorID:        meta.ActorID,
		Source:         meta.source(),
		Before:         audit.Snapshot(before),
		After:          audit.Snapshot(cfg),
		ChangeSummary:  audit.ChangeSummary(audit.ActionDelete, audit.Describe(audit.EntityClientConfig, cfg.ID), nil, nil),
	})
	return nil
}

// =============================================================================
// CONTRACT LEVEL
// =============================================================================

type CreateContractConfigInput struct {
	OrganisationID string
	ContratID      string
	Policy         Policy
}

func (s *Service) CreateContractConfig(ctx context.Context, in CreateContractConfigInput, meta Meta) (*ContractConfig, error) {
	if err := in.Policy.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPolicy, err)
	}
	if existing, err := s.store.FindActiveContractConfig(ctx, in.OrganisationID, in.ContratID); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, ErrDuplicateConfig
	}

	now := time.Now().UTC()
	cfg := &ContractConfig{
		ID:             uuid.NewString(),
		OrganisationID: in.OrganisationID,
		ContratID:      in.ContratID,
		Policy:         in.Policy,
		Status:         StatusActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.SaveContractConfig(ctx, cfg); err != nil {
		return nil, err
	}

	after := audit.Snapshot(cfg)
	s.emit(ctx, audit.Entry{
		OrganisationID: in.OrganisationID,
		EntityType:     audit.EntityContractConfig,
		EntityID:       cfg.ID,
		Action:         audit.ActionCreate,
		ActorID:        meta.ActorID,
		Source:         meta.source(),
		After:          after,
		ChangeSummary:  audit.ChangeSummary(audit.ActionCreate, audit.Describe(audit.EntityContractConfig, cfg.ID), nil, after),
	})
	return cfg, nil
}

func (s *Service) GetContractConfig(ctx context.Context, id string) (*ContractConfig, error) {
	cfg, err := s.store.GetContractConfig(ctx, id)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, ErrConfigNotFound
	}
	return cfg, nil
}

func (s *Service) ListContractConfigs(ctx context.Context, organisationID string) ([]ContractConfig, error) {
	return s.store.ListContractConfigs(ctx, organisationID)
}

func (s *Service) UpdateContractConfig(ctx context.Context, id string, patch PolicyPatch, meta Meta) (*ContractConfig, error) {
	cfg, err := s.store.GetContractConfig(ctx, id)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, ErrConfigNotFound
	}

	before := *cfg
	cfg.Policy = patch.Apply(cfg.Policy)
	if err := cfg.Policy.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPolicy, err)
	}
	cfg.UpdatedAt = time.Now().UTC()

	if err := s.store.SaveContractConfig(ctx, cfg); err != nil {
		return nil, err
	}

	beforeJSON, afterJSON := audit.Snapshot(before), audit.Snapshot(cfg)
	s.emit(ctx, audit.Entry{
		OrganisationID: cfg.OrganisationID,
		EntityType:     audit.EntityContractConfig,
		EntityID:       cfg.ID,
		Action:         audit.ActionUpdate,
		ActorID:        meta.ActorID,
		Source:         meta.source(),
		Before:         beforeJSON,
		After:          afterJSON,
		ChangeSummary:  audit.ChangeSummary(audit.ActionUpdate, audit.Describe(audit.EntityContractConfig, cfg.ID), beforeJSON, afterJSON),
	})
	return cfg, nil
}

func (s *Service) DeleteContractConfig(ctx context.Context, id string, meta Meta) error {
	cfg, err := s.store.GetContractConfig(ctx, id)
	if err != nil {
		return err
	}
	if cfg == nil {
		return ErrConfigNotFound
	}

	before := *cfg
	cfg.Status = StatusInactive
	cfg.UpdatedAt = time.Now().UTC()
	if err := s.store.SaveContractConfig(ctx, cfg); err != nil {
		return err
	}

	s.emit(ctx, audit.Entry{
		OrganisationID: cfg.OrganisationID,
		EntityType:     audit.EntityContractConfig,
		EntityID:       cfg.ID,
		Action:         audit.ActionDelete,
		ActorID:        meta.ActorID,
		Source:         meta.source(),
		Before:         audit.Snapshot(before),
		After:          audit.Snapshot(cfg),
		ChangeSummary:  audit.ChangeSummary(audit.ActionDelete, audit.Describe(audit.EntityContractConfig, cfg.ID), nil, nil),
	})
	return nil
}

// UpsertForImport routes an import row to the right create/update call.
// An existing active row for the key is patched; otherwise a new row is
// created. Used by the CSV importer so imported rows inherit the exact
// audit behavior of API-driven writes.
//
// An import row carries the whole policy, so every field is patched. A row
// switching an existing config from BATCH to FIXED_DAY (or back) must also
// clear the off-mode field, or the stored row and its audit snapshot would
// keep a stale value.
func (s *Service) UpsertForImport(ctx context.Context, level Level, organisationID, key string, policy Policy, meta Meta) error {
	patch := PolicyPatch{
		Mode:          &policy.Mode,
		Batch:         &policy.Batch,
		FixedDay:      &policy.FixedDay,
		ShiftStrategy: &policy.ShiftStrategy,
		HolidayZoneID: &policy.HolidayZoneID,
	}

	switch level {
	case LevelCompany:
		existing, err := s.store.FindActiveCompanyConfig(ctx, organisationID, key)
		if err != nil {
			return err
		}
		if existing != nil {
			_, err = s.UpdateCompanyConfig(ctx, existing.ID, patch, meta)
			return err
		}
		_, err = s.CreateCompanyConfig(ctx, CreateCompanyConfigInput{OrganisationID: organisationID, SocieteID: key, Policy: policy}, meta)
		return err
	case LevelClient:
		existing, err := s.store.FindActiveClientConfig(ctx, organisationID, key)
		if err != nil {
			return err
		}
		if existing != nil {
			_, err = s.UpdateClientConfig(ctx, existing.ID, patch, meta)
			return err
		}
		_, err = s.CreateClientConfig(ctx, CreateClientConfigInput{OrganisationID: organisationID, ClientID: key, Policy: policy}, meta)
		return err
	case LevelContract:
		existing, err := s.store.FindActiveContractConfig(ctx, organisationID, key)
		if err != nil {
			return err
		}
		if existing != nil {
			_, err = s.UpdateContractConfig(ctx, existing.ID, patch, meta)
			return err
		}
		_, err = s.CreateContractConfig(ctx, CreateContractConfigInput{OrganisationID: organisationID, ContratID: key, Policy: policy}, meta)
		return err
	}
	return ErrConfigNotFound
}
