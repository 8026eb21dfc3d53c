/*
planned.go - PlannedDebit: the downstream record a caller persists

The engine computes dates; callers turn them into planned debits. The
record keeps the original target date AND a JSON snapshot of the resolved
configuration, so an auditor can reconstruct why a date was chosen even
after the configuration has changed. The core never mutates these rows.
*/
package calendar

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/debit-engine/config"
)

// PlannedDebitStatus tracks the record's downstream lifecycle.
type PlannedDebitStatus string

const (
	PlannedDebitPlanned   PlannedDebitStatus = "planned"
	PlannedDebitExecuted  PlannedDebitStatus = "executed"
	PlannedDebitCancelled PlannedDebitStatus = "cancelled"
)

// PlannedDebit is one scheduled debit with its decision context frozen in.
type PlannedDebit struct {
	ID                 string             `json:"id"`
	OrganisationID     string             `json:"organisationId"`
	ContratID          string             `json:"contratId"`
	PlannedDate        time.Time          `json:"plannedDate"`
	OriginalTargetDate time.Time          `json:"originalTargetDate"`
	Status             PlannedDebitStatus `json:"status"`
	Batch              config.Batch       `json:"batch,omitempty"`
	Amount             decimal.Decimal    `json:"amount"`
	ConfigSnapshot     json.RawMessage    `json:"configSnapshot"`
	CreatedAt          time.Time          `json:"createdAt"`
}

// NewPlannedDebit freezes an engine result into a persistable record.
func NewPlannedDebit(organisationID, contratID string, amount decimal.Decimal, result *Result) (*PlannedDebit, error) {
	snapshot, err := json.Marshal(result.Resolved)
	if err != nil {
		return nil, err
	}
	return &PlannedDebit{
		ID:                 uuid.NewString(),
		OrganisationID:     organisationID,
		ContratID:          contratID,
		PlannedDate:        result.PlannedDate,
		OriginalTargetDate: result.OriginalTargetDate,
		Status:             PlannedDebitPlanned,
		Batch:              result.Resolved.Batch,
		Amount:             amount,
		ConfigSnapshot:     snapshot,
		CreatedAt:          time.Now().UTC(),
	}, nil
}

// PlannedDebitStore persists records produced by callers of the engine.
type PlannedDebitStore interface {
	SavePlannedDebit(ctx context.Context, pd *PlannedDebit) error
	// ListPlannedDebits returns the organisation's records whose planned
	// date falls within the given month.
	ListPlannedDebits(ctx context.Context, organisationID string, year int, month time.Month) ([]PlannedDebit, error)
	// ListPlannedDebitsForTarget returns the records whose ORIGINAL target
	// date falls within the given month. Shifting can move the planned date
	// across a month boundary, so coverage checks must key on the target
	// month, not the final date.
	ListPlannedDebitsForTarget(ctx context.Context, organisationID string, year int, month time.Month) ([]PlannedDebit, error)
}
