/*
store.go - Persistence interface for configuration rows

Find* methods return the single ACTIVE row for a lookup key (nil when there
is none); Get* methods fetch by row id regardless of status, so soft-deleted
rows stay reachable for audit and traceability. Save* methods upsert by id.

Uniqueness (one active row per key, one system row per organisation) is the
storage layer's job - a unique index, not an application lock - so the
invariant holds under concurrent writers.

IMPLEMENTATIONS:
  - store/sqlite: production store
  - store/memory: tests and development
*/
package config

import "context"

// Store is the persistence boundary for the four configuration levels.
// All methods return (nil, nil) when a lookup finds nothing; ErrConfigNotFound
// is reserved for the Service layer.
type Store interface {
	// System level: one row per organisation, no status column.
	GetSystemConfig(ctx context.Context, organisationID string) (*SystemConfig, error)
	SaveSystemConfig(ctx context.Context, cfg *SystemConfig) error

	// Company level.
	GetCompanyConfig(ctx context.Context, id string) (*CompanyConfig, error)
	FindActiveCompanyConfig(ctx context.Context, organisationID, societeID string) (*CompanyConfig, error)
	SaveCompanyConfig(ctx context.Context, cfg *CompanyConfig) error
	ListCompanyConfigs(ctx context.Context, organisationID string) ([]CompanyConfig, error)

	// Client level.
	GetClientConfig(ctx context.Context, id string) (*ClientConfig, error)
	FindActiveClientConfig(ctx context.Context, organisationID, clientID string) (*ClientConfig, error)
	SaveClientConfig(ctx context.Context, cfg *ClientConfig) error
	ListClientConfigs(ctx context.Context, organisationID string) ([]ClientConfig, error)

	// Contract level.
	GetContractConfig(ctx context.Context, id string) (*ContractConfig, error)
	FindActiveContractConfig(ctx context.Context, organisationID, contratID string) (*ContractConfig, error)
	SaveContractConfig(ctx context.Context, cfg *ContractConfig) error
	ListContractConfigs(ctx context.Context, organisationID string) ([]ContractConfig, error)
}
