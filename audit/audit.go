/*
Package audit records configuration mutations as immutable entries.

PURPOSE:
  Every configuration write (create, update, soft delete, import) emits an
  entry carrying before/after JSON snapshots and an auto-generated,
  human-readable change summary. The log is append-only: entries are never
  updated or deleted, which is what lets an operator reconstruct why a
  debit date was computed the way it was.

CHANGE SUMMARIES:
  Summaries diff the top-level keys of the two snapshots by their compacted
  JSON encodings. A create is "Created <label>", a delete "Deleted <label>",
  an update "Changed fields: a, b" - or "No changes detected" when the
  snapshots are identical.

SEE ALSO:
  - config/service.go: the only producer of entries
  - store/sqlite: persistent Log implementation
*/
package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// =============================================================================
// ENTRY MODEL
// =============================================================================

// Action is what happened to the entity.
type Action string

const (
	ActionCreate Action = "CREATE"
	ActionUpdate Action = "UPDATE"
	ActionDelete Action = "DELETE"
	ActionImport Action = "IMPORT"
)

// Source is where the mutation came from.
type Source string

const (
	SourceAPI       Source = "api"
	SourceCSVImport Source = "csv_import"
	SourceSystem    Source = "system"
)

// Entity types referenced by entries.
const (
	EntitySystemConfig   = "system_config"
	EntityCompanyConfig  = "company_config"
	EntityClientConfig   = "client_config"
	EntityContractConfig = "contract_config"
	EntityHolidayZone    = "holiday_zone"
	EntityHoliday        = "holiday"
	EntityImport         = "import"
)

// Entry is one immutable audit row.
type Entry struct {
	ID             string          `json:"id"`
	OrganisationID string          `json:"organisationId"`
	EntityType     string          `json:"entityType"`
	EntityID       string          `json:"entityId"`
	Action         Action          `json:"action"`
	ActorID        string          `json:"actorId"`
	Source         Source          `json:"source"`
	Before         json.RawMessage `json:"before,omitempty"`
	After          json.RawMessage `json:"after,omitempty"`
	ChangeSummary  string          `json:"changeSummary"`
	CreatedAt      time.Time       `json:"createdAt"`
}

// Filter narrows a Query. Zero values mean "no constraint".
type Filter struct {
	OrganisationID string
	EntityType     string
	EntityID       string
	ActorID        string
	Source         Source
	From           *time.Time
	To             *time.Time
	Limit          int
	Offset         int
}

// Log stores audit entries. Append-only: no update, no delete.
// Query returns the page plus the total match count for pagination.
type Log interface {
	Append(ctx context.Context, entry Entry) error
	Query(ctx context.Context, filter Filter) ([]Entry, int, error)
}

// =============================================================================
// SNAPSHOTS AND DIFFING
// =============================================================================

// Snapshot serializes an entity for a before/after capture. Marshal failures
// degrade to null rather than blocking the parent write.
func Snapshot(v any) json.RawMessage {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("null")
	}
	return b
}

// ChangeSummary builds the human-readable summary for an entry.
func ChangeSummary(action Action, entityLabel string, before, after json.RawMessage) string {
	switch action {
	case ActionCreate, ActionImport:
		return "Created " + entityLabel
	case ActionDelete:
		return "Deleted " + entityLabel
	}

	changed := changedKeys(before, after)
	if len(changed) == 0 {
		return "No changes detected"
	}
	return "Changed fields: " + strings.Join(changed, ", ")
}

// volatileKeys are bookkeeping fields excluded from diffs: they change on
// every write and would drown out the meaningful fields.
var volatileKeys = map[string]bool{
	"createdAt": true,
	"updatedAt": true,
}

// changedKeys lists the top-level keys whose compacted JSON encodings differ
// between the two snapshots, sorted for stable output.
func changedKeys(before, after json.RawMessage) []string {
	var b, a map[string]json.RawMessage
	if err := json.Unmarshal(before, &b); err != nil {
		return nil
	}
	if err := json.Unmarshal(after, &a); err != nil {
		return nil
	}

	seen := make(map[string]bool)
	var changed []string
	note := func(key string) {
		if !seen[key] {
			seen[key] = true
			changed = append(changed, key)
		}
	}

	for key, bv := range b {
		if volatileKeys[key] {
			continue
		}
		av, ok := a[key]
		if !ok || !jsonEqual(bv, av) {
			note(key)
		}
	}
	for key := range a {
		if volatileKeys[key] {
			continue
		}
		if _, ok := b[key]; !ok {
			note(key)
		}
	}

	sort.Strings(changed)
	return changed
}

func jsonEqual(a, b json.RawMessage) bool {
	var ca, cb bytes.Buffer
	if err := json.Compact(&ca, a); err != nil {
		return false
	}
	if err := json.Compact(&cb, b); err != nil {
		return false
	}
	return bytes.Equal(ca.Bytes(), cb.Bytes())
}

// Describe renders a short label like "company_config ab12" for summaries.
func Describe(entityType, entityID string) string {
	if entityID == "" {
		return entityType
	}
	return fmt.Sprintf("%s %s", entityType, entityID)
}
