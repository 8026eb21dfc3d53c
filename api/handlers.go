/*
handlers.go - HTTP API handlers for the debit date engine

PURPOSE:
  Exposes the planned debit date engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Calendar:
    POST   /api/calendar/planned-date        Compute one planned debit date
    POST   /api/calendar/planned-dates/batch Compute many in one call
    GET    /api/calendar/eligibility         Check one date in one zone

  Configuration:
    GET    /api/config/resolve               Resolve (or trace) for a set of keys
    GET/PUT /api/config/system               System-level defaults
    CRUD   /api/config/companies             Company-level overrides
    CRUD   /api/config/clients               Client-level overrides
    CRUD   /api/config/contracts             Contract-level overrides

  Holidays:
    GET/POST /api/holiday-zones              Zone registry
    GET/POST /api/holidays                   Stored records, range listings

  Operations:
    POST   /api/import                       CSV import (dry-run supported)
    GET    /api/audit-logs                   Paginated audit query
    GET/POST /api/planned-debits             Persist/list engine output

REQUEST FLOW:
  1. Parse HTTP request
  2. Decode wire enums (unmapped values are a 400, never a default)
  3. Call domain logic
  4. Serialize response
  5. Map domain errors to HTTP status

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input, unmapped enum values
  - 404: Missing configuration, missing holiday zone
  - 409: Duplicate active configuration, duplicate zone code
  - 422: Computation failures (HOLIDAY_ZONE_REQUIRED, NO_ELIGIBLE_DATE_FOUND, ...)
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures and wire enum tables
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/warp/debit-engine/audit"
	"github.com/warp/debit-engine/calendar"
	"github.com/warp/debit-engine/config"
	"github.com/warp/debit-engine/holidays"
	"github.com/warp/debit-engine/importer"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Configs       *config.Service
	Resolver      *config.Resolver
	Engine        *calendar.Engine
	Holidays      *holidays.Service
	Importer      *importer.Importer
	Audit         audit.Log
	PlannedDebits calendar.PlannedDebitStore
	Scheduler     *GenerationScheduler
	Log           *logrus.Logger

	validate *validator.Validate
}

// Deps bundles the handler's collaborators. Scheduler is optional: without
// one the scheduler endpoints answer 503.
type Deps struct {
	Configs       *config.Service
	Resolver      *config.Resolver
	Engine        *calendar.Engine
	Holidays      *holidays.Service
	Importer      *importer.Importer
	Audit         audit.Log
	PlannedDebits calendar.PlannedDebitStore
	Scheduler     *GenerationScheduler
	Log           *logrus.Logger
}

// NewHandler creates a handler with the given dependencies.
func NewHandler(d Deps) *Handler {
	log := d.Log
	if log == nil {
		log = logrus.New()
	}
	return &Handler{
		Configs:       d.Configs,
		Resolver:      d.Resolver,
		Engine:        d.Engine,
		Holidays:      d.Holidays,
		Importer:      d.Importer,
		Audit:         d.Audit,
		PlannedDebits: d.PlannedDebits,
		Scheduler:     d.Scheduler,
		Log:           log,
		validate:      validator.New(),
	}
}

// =============================================================================
// CALENDAR ENDPOINTS
// =============================================================================

// CalculatePlannedDate computes one planned debit date.
// POST /api/calendar/planned-date
func (h *Handler) CalculatePlannedDate(w http.ResponseWriter, r *http.Request) {
	var req PlannedDateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.OrganisationID == "" {
		writeError(w, http.StatusBadRequest, "organisationId is required", nil)
		return
	}
	if req.Month < 1 || req.Month > 12 || req.Year < 1 {
		writeError(w, http.StatusBadRequest, "month must be 1-12 and year positive", nil)
		return
	}

	result, err := h.Engine.CalculatePlannedDate(r.Context(), calendar.Input{
		Keys: config.Keys{
			OrganisationID: req.OrganisationID,
			ContratID:      req.ContratID,
			ClientID:       req.ClientID,
			SocieteID:      req.SocieteID,
		},
		TargetMonth:  time.Month(req.Month),
		TargetYear:   req.Year,
		IncludeTrace: req.IncludeTrace,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, plannedDateDTO(result))
}

// CalculateBatch computes planned dates for many contexts. A failing item
// never aborts the batch; its slot carries the error instead.
// POST /api/calendar/planned-dates/batch
func (h *Handler) CalculateBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.OrganisationID == "" {
		writeError(w, http.StatusBadRequest, "organisationId is required", nil)
		return
	}
	if req.Month < 1 || req.Month > 12 || req.Year < 1 {
		writeError(w, http.StatusBadRequest, "month must be 1-12 and year positive", nil)
		return
	}

	result := h.Engine.CalculateBatch(r.Context(), req.OrganisationID, time.Month(req.Month), req.Year, req.Items)
	writeJSON(w, http.StatusOK, batchResponseDTO(result))
}

// CheckEligibility answers whether one date is a valid debit date in a zone.
// GET /api/calendar/eligibility?date=2025-05-01&zoneId=...
func (h *Handler) CheckEligibility(w http.ResponseWriter, r *http.Request) {
	rawDate := r.URL.Query().Get("date")
	zoneID := r.URL.Query().Get("zoneId")
	if rawDate == "" || zoneID == "" {
		writeError(w, http.StatusBadRequest, "date and zoneId are required", nil)
		return
	}
	date, err := time.Parse(dateLayout, rawDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be yyyy-MM-dd", err)
		return
	}

	elig, err := h.Holidays.CheckEligibility(r.Context(), date, zoneID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, eligibilityDTO(elig))
}

// =============================================================================
// CONFIGURATION RESOLUTION
// =============================================================================

// ResolveConfiguration resolves (or traces) the configuration for a set of
// keys.
// GET /api/config/resolve?organisationId=...&contratId=...&trace=true
func (h *Handler) ResolveConfiguration(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	keys := config.Keys{
		OrganisationID: q.Get("organisationId"),
		ContratID:      q.Get("contratId"),
		ClientID:       q.Get("clientId"),
		SocieteID:      q.Get("societeId"),
	}
	if keys.OrganisationID == "" {
		writeError(w, http.StatusBadRequest, "organisationId is required", nil)
		return
	}

	if q.Get("trace") == "true" {
		trace, err := h.Resolver.Trace(r.Context(), keys)
		if err != nil {
			h.writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, traceDTO(trace))
		return
	}

	resolved, err := h.Resolver.Resolve(r.Context(), keys)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resolvedDTO(resolved))
}

// =============================================================================
// CONFIGURATION CRUD
// =============================================================================

// GetSystemConfig returns the organisation's system-level defaults.
// GET /api/config/system?organisationId=...
func (h *Handler) GetSystemConfig(w http.ResponseWriter, r *http.Request) {
	orgID := r.URL.Query().Get("organisationId")
	if orgID == "" {
		writeError(w, http.StatusBadRequest, "organisationId is required", nil)
		return
	}
	cfg, err := h.Configs.GetSystemConfig(r.Context(), orgID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, systemConfigDTO(cfg))
}

// SetSystemConfig creates or replaces the system-level defaults.
// PUT /api/config/system
func (h *Handler) SetSystemConfig(w http.ResponseWriter, r *http.Request) {
	var req CreateConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.OrganisationID == "" {
		writeError(w, http.StatusBadRequest, "organisationId is required", nil)
		return
	}
	policy, err := req.Policy.domain()
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid policy", err)
		return
	}

	cfg, err := h.Configs.SetSystemConfig(r.Context(), req.OrganisationID, policy, config.Meta{ActorID: req.ActorID})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, systemConfigDTO(cfg))
}

// CreateCompanyConfig creates a company-level override.
// POST /api/config/companies
func (h *Handler) CreateCompanyConfig(w http.ResponseWriter, r *http.Request) {
	req, policy, ok := h.decodeCreateConfig(w, r)
	if !ok {
		return
	}
	cfg, err := h.Configs.CreateCompanyConfig(r.Context(), config.CreateCompanyConfigInput{
		OrganisationID: req.OrganisationID,
		SocieteID:      req.Key,
		Policy:         policy,
	}, config.Meta{ActorID: req.ActorID})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, companyConfigDTO(cfg))
}

// GetCompanyConfig returns one company override by id.
// GET /api/config/companies/{id}
func (h *Handler) GetCompanyConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.Configs.GetCompanyConfig(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, companyConfigDTO(cfg))
}

// ListCompanyConfigs lists the organisation's company overrides.
// GET /api/config/companies?organisationId=...
func (h *Handler) ListCompanyConfigs(w http.ResponseWriter, r *http.Request) {
	orgID := r.URL.Query().Get("organisationId")
	if orgID == "" {
		writeError(w, http.StatusBadRequest, "organisationId is required", nil)
		return
	}
	configs, err := h.Configs.ListCompanyConfigs(r.Context(), orgID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	out := make([]ConfigDTO, len(configs))
	for i := range configs {
		out[i] = companyConfigDTO(&configs[i])
	}
	writeJSON(w, http.StatusOK, out)
}

// UpdateCompanyConfig applies a partial policy patch.
// PUT /api/config/companies/{id}
func (h *Handler) UpdateCompanyConfig(w http.ResponseWriter, r *http.Request) {
	patch, actorID, ok := h.decodeUpdateConfig(w, r)
	if !ok {
		return
	}
	cfg, err := h.Configs.UpdateCompanyConfig(r.Context(), chi.URLParam(r, "id"), patch, config.Meta{ActorID: actorID})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, companyConfigDTO(cfg))
}

// DeleteCompanyConfig deactivates an override. The row survives for audit.
// DELETE /api/config/companies/{id}
func (h *Handler) DeleteCompanyConfig(w http.ResponseWriter, r *http.Request) {
	err := h.Configs.DeleteCompanyConfig(r.Context(), chi.URLParam(r, "id"), config.Meta{ActorID: r.URL.Query().Get("actorId")})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// CreateClientConfig creates a client-level override.
// POST /api/config/clients
func (h *Handler) CreateClientConfig(w http.ResponseWriter, r *http.Request) {
	req, policy, ok := h.decodeCreateConfig(w, r)
	if !ok {
		return
	}
	cfg, err := h.Configs.CreateClientConfig(r.Context(), config.CreateClientConfigInput{
		OrganisationID: req.OrganisationID,
		ClientID:       req.Key,
		Policy:         policy,
	}, config.Meta{ActorID: req.ActorID})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, clientConfigDTO(cfg))
}

// GetClientConfig returns one client override by id.
// GET /api/config/clients/{id}
func (h *Handler) GetClientConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.Configs.GetClientConfig(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, clientConfigDTO(cfg))
}

// ListClientConfigs lists the organisation's client overrides.
// GET /api/config/clients?organisationId=...
func (h *Handler) ListClientConfigs(w http.ResponseWriter, r *http.Request) {
	orgID := r.URL.Query().Get("organisationId")
	if orgID == "" {
		writeError(w, http.StatusBadRequest, "organisationId is required", nil)
		return
	}
	configs, err := h.Configs.ListClientConfigs(r.Context(), orgID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	out := make([]ConfigDTO, len(configs))
	for i := range configs {
		out[i] = clientConfigDTO(&configs[i])
	}
	writeJSON(w, http.StatusOK, out)
}

// UpdateClientConfig applies a partial policy patch.
// PUT /api/config/clients/{id}
func (h *Handler) UpdateClientConfig(w http.ResponseWriter, r *http.Request) {
	patch, actorID, ok := h.decodeUpdateConfig(w, r)
	if !ok {
		return
	}
	cfg, err := h.Configs.UpdateClientConfig(r.Context(), chi.URLParam(r, "id"), patch, config.Meta{ActorID: actorID})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, clientConfigDTO(cfg))
}

// DeleteClientConfig deactivates an override.
// DELETE /api/config/clients/{id}
func (h *Handler) DeleteClientConfig(w http.ResponseWriter, r *http.Request) {
	err := h.Configs.DeleteClientConfig(r.Context(), chi.URLParam(r, "id"), config.Meta{ActorID: r.URL.Query().Get("actorId")})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// CreateContractConfig creates a contract-level override.
// POST /api/config/contracts
func (h *Handler) CreateContractConfig(w http.ResponseWriter, r *http.Request) {
	req, policy, ok := h.decodeCreateConfig(w, r)
	if !ok {
		return
	}
	cfg, err := h.Configs.CreateContractConfig(r.Context(), config.CreateContractConfigInput{
		OrganisationID: req.OrganisationID,
		ContratID:      req.Key,
		Policy:         policy,
	}, config.Meta{ActorID: req.ActorID})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, contractConfigDTO(cfg))
}

// GetContractConfig returns one contract override by id.
// GET /api/config/contracts/{id}
func (h *Handler) GetContractConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.Configs.GetContractConfig(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, contractConfigDTO(cfg))
}

// ListContractConfigs lists the organisation's contract overrides.
// GET /api/config/contracts?organisationId=...
func (h *Handler) ListContractConfigs(w http.ResponseWriter, r *http.Request) {
	orgID := r.URL.Query().Get("organisationId")
	if orgID == "" {
		writeError(w, http.StatusBadRequest, "organisationId is required", nil)
		return
	}
	configs, err := h.Configs.ListContractConfigs(r.Context(), orgID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	out := make([]ConfigDTO, len(configs))
	for i := range configs {
		out[i] = contractConfigDTO(&configs[i])
	}
	writeJSON(w, http.StatusOK, out)
}

// UpdateContractConfig applies a partial policy patch.
// PUT /api/config/contracts/{id}
func (h *Handler) UpdateContractConfig(w http.ResponseWriter, r *http.Request) {
	patch, actorID, ok := h.decodeUpdateConfig(w, r)
	if !ok {
		return
	}
	cfg, err := h.Configs.UpdateContractConfig(r.Context(), chi.URLParam(r, "id"), patch, config.Meta{ActorID: actorID})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, contractConfigDTO(cfg))
}

// DeleteContractConfig deactivates an override.
// DELETE /api/config/contracts/{id}
func (h *Handler) DeleteContractConfig(w http.ResponseWriter, r *http.Request) {
	err := h.Configs.DeleteContractConfig(r.Context(), chi.URLParam(r, "id"), config.Meta{ActorID: r.URL.Query().Get("actorId")})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *Handler) decodeCreateConfig(w http.ResponseWriter, r *http.Request) (CreateConfigRequest, config.Policy, bool) {
	var req CreateConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return req, config.Policy{}, false
	}
	if req.OrganisationID == "" || req.Key == "" {
		writeError(w, http.StatusBadRequest, "organisationId and key are required", nil)
		return req, config.Policy{}, false
	}
	policy, err := req.Policy.domain()
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid policy", err)
		return req, config.Policy{}, false
	}
	return req, policy, true
}

func (h *Handler) decodeUpdateConfig(w http.ResponseWriter, r *http.Request) (config.PolicyPatch, string, bool) {
	var req UpdateConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return config.PolicyPatch{}, "", false
	}
	patch, err := req.Policy.domain()
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid policy patch", err)
		return config.PolicyPatch{}, "", false
	}
	return patch, req.ActorID, true
}

// =============================================================================
// HOLIDAY ENDPOINTS
// =============================================================================

// ListZones lists the organisation's holiday zones.
// GET /api/holiday-zones?organisationId=...
func (h *Handler) ListZones(w http.ResponseWriter, r *http.Request) {
	orgID := r.URL.Query().Get("organisationId")
	if orgID == "" {
		writeError(w, http.StatusBadRequest, "organisationId is required", nil)
		return
	}
	zones, err := h.Holidays.ListZones(r.Context(), orgID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	out := make([]ZoneDTO, len(zones))
	for i := range zones {
		out[i] = zoneDTO(&zones[i])
	}
	writeJSON(w, http.StatusOK, out)
}

// CreateZone registers a holiday zone. Codes are unique per organisation.
// POST /api/holiday-zones
func (h *Handler) CreateZone(w http.ResponseWriter, r *http.Request) {
	var req CreateZoneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	in := holidays.CreateZoneInput{
		OrganisationID: req.OrganisationID,
		Code:           req.Code,
		Name:           req.Name,
		CountryCode:    req.CountryCode,
		RegionCode:     req.RegionCode,
	}
	if err := h.validate.Struct(in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid zone", err)
		return
	}
	zone, err := h.Holidays.CreateZone(r.Context(), in)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, zoneDTO(zone))
}

// ListHolidays lists a zone's stored records, or its occurrences in a date
// range (stored plus computed) when from/to are given.
// GET /api/holidays?zoneId=...[&from=...&to=...]
func (h *Handler) ListHolidays(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	zoneID := q.Get("zoneId")
	if zoneID == "" {
		writeError(w, http.StatusBadRequest, "zoneId is required", nil)
		return
	}

	if q.Get("from") != "" || q.Get("to") != "" {
		from, err := time.Parse(dateLayout, q.Get("from"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "from must be yyyy-MM-dd", err)
			return
		}
		to, err := time.Parse(dateLayout, q.Get("to"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "to must be yyyy-MM-dd", err)
			return
		}
		days, err := h.Holidays.HolidaysForRange(r.Context(), zoneID, from, to)
		if err != nil {
			h.writeDomainError(w, err)
			return
		}
		out := make([]DayHolidayDTO, len(days))
		for i, d := range days {
			out[i] = dayHolidayDTO(d)
		}
		writeJSON(w, http.StatusOK, out)
		return
	}

	records, err := h.Holidays.ListHolidays(r.Context(), zoneID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	out := make([]HolidayDTO, len(records))
	for i := range records {
		out[i] = holidayDTO(&records[i])
	}
	writeJSON(w, http.StatusOK, out)
}

// CreateHoliday adds a one-off or recurring record to a zone.
// POST /api/holidays
func (h *Handler) CreateHoliday(w http.ResponseWriter, r *http.Request) {
	var req CreateHolidayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	record, err := req.domain()
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid holiday", err)
		return
	}
	created, err := h.Holidays.CreateHoliday(r.Context(), record)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, holidayDTO(created))
}

// =============================================================================
// IMPORT ENDPOINT
// =============================================================================

// Import validates and applies a CSV payload. Per-row errors never abort
// the batch; dry-run reports them without persisting anything.
// POST /api/import
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	var req ImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.OrganisationID == "" {
		writeError(w, http.StatusBadRequest, "organisationId is required", nil)
		return
	}
	in, err := req.domain()
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid import request", err)
		return
	}
	result, err := h.Importer.Import(r.Context(), in)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// =============================================================================
// AUDIT ENDPOINT
// =============================================================================

// QueryAuditLogs returns a filtered, paginated page of the audit trail.
// GET /api/audit-logs?organisationId=...&entityType=...&limit=50&offset=0
func (h *Handler) QueryAuditLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := audit.Filter{
		OrganisationID: q.Get("organisationId"),
		EntityType:     q.Get("entityType"),
		EntityID:       q.Get("entityId"),
		ActorID:        q.Get("actorId"),
	}
	if raw := q.Get("source"); raw != "" {
		wire, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "source must be an integer", err)
			return
		}
		src, ok := wireToSource[wire]
		if !ok {
			writeError(w, http.StatusBadRequest, "unknown source value", nil)
			return
		}
		filter.Source = src
	}
	if raw := q.Get("from"); raw != "" {
		t, err := time.Parse(dateLayout, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "from must be yyyy-MM-dd", err)
			return
		}
		filter.From = &t
	}
	if raw := q.Get("to"); raw != "" {
		t, err := time.Parse(dateLayout, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "to must be yyyy-MM-dd", err)
			return
		}
		// Inclusive upper bound: extend to the end of the day.
		end := t.Add(24*time.Hour - time.Nanosecond)
		filter.To = &end
	}
	filter.Limit = intQuery(q.Get("limit"), 50)
	filter.Offset = intQuery(q.Get("offset"), 0)

	entries, total, err := h.Audit.Query(r.Context(), filter)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	page := AuditPageDTO{
		Entries: make([]AuditEntryDTO, len(entries)),
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	}
	for i, e := range entries {
		page.Entries[i] = auditEntryDTO(e)
	}
	writeJSON(w, http.StatusOK, page)
}

// =============================================================================
// PLANNED DEBIT ENDPOINTS
// =============================================================================

// CreatePlannedDebit computes a planned date and persists it with the
// resolved configuration frozen in as a JSON snapshot.
// POST /api/planned-debits
func (h *Handler) CreatePlannedDebit(w http.ResponseWriter, r *http.Request) {
	var req CreatePlannedDebitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.OrganisationID == "" || req.ContratID == "" {
		writeError(w, http.StatusBadRequest, "organisationId and contratId are required", nil)
		return
	}
	if req.Month < 1 || req.Month > 12 || req.Year < 1 {
		writeError(w, http.StatusBadRequest, "month must be 1-12 and year positive", nil)
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "amount must be a decimal string", err)
		return
	}

	result, err := h.Engine.CalculatePlannedDate(r.Context(), calendar.Input{
		Keys: config.Keys{
			OrganisationID: req.OrganisationID,
			ContratID:      req.ContratID,
			ClientID:       req.ClientID,
			SocieteID:      req.SocieteID,
		},
		TargetMonth: time.Month(req.Month),
		TargetYear:  req.Year,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	pd, err := calendar.NewPlannedDebit(req.OrganisationID, req.ContratID, amount, result)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to build planned debit", err)
		return
	}
	if err := h.PlannedDebits.SavePlannedDebit(r.Context(), pd); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save planned debit", err)
		return
	}
	writeJSON(w, http.StatusCreated, plannedDebitDTO(*pd))
}

// ListPlannedDebits lists an organisation's planned debits for one month.
// GET /api/planned-debits?organisationId=...&year=2025&month=5
func (h *Handler) ListPlannedDebits(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	orgID := q.Get("organisationId")
	year := intQuery(q.Get("year"), 0)
	month := intQuery(q.Get("month"), 0)
	if orgID == "" || year < 1 || month < 1 || month > 12 {
		writeError(w, http.StatusBadRequest, "organisationId, year and month are required", nil)
		return
	}

	debits, err := h.PlannedDebits.ListPlannedDebits(r.Context(), orgID, year, time.Month(month))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	out := make([]PlannedDebitDTO, len(debits))
	for i, pd := range debits {
		out[i] = plannedDebitDTO(pd)
	}
	writeJSON(w, http.StatusOK, out)
}

// =============================================================================
// SCHEDULER ENDPOINTS
// =============================================================================

// TriggerGeneration runs an immediate generation pass for the upcoming
// month, without waiting for the next tick.
// POST /api/scheduler/run
func (h *Handler) TriggerGeneration(w http.ResponseWriter, r *http.Request) {
	if h.Scheduler == nil {
		writeError(w, http.StatusServiceUnavailable, "Generation scheduler is not configured", nil)
		return
	}
	h.Scheduler.RunNow()
	writeJSON(w, http.StatusOK, schedulerStatusDTO(h.Scheduler))
}

// SchedulerStatus reports whether the scheduler runs and when next.
// GET /api/scheduler/status
func (h *Handler) SchedulerStatus(w http.ResponseWriter, r *http.Request) {
	if h.Scheduler == nil {
		writeError(w, http.StatusServiceUnavailable, "Generation scheduler is not configured", nil)
		return
	}
	writeJSON(w, http.StatusOK, schedulerStatusDTO(h.Scheduler))
}

func schedulerStatusDTO(gs *GenerationScheduler) SchedulerStatusDTO {
	return SchedulerStatusDTO{
		Enabled:       gs.Enabled,
		CheckInterval: gs.CheckInterval.String(),
		NextRunAt:     gs.GetNextRunTime().UTC().Format(time.RFC3339),
	}
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorDTO{Error: message}
	if err != nil {
		resp.Details = map[string]any{"reason": err.Error()}
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps typed domain errors to HTTP status codes. Unknown
// errors become 500 and are logged with their cause.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	var cfgErr *config.ConfigurationError
	if errors.As(err, &cfgErr) {
		status := http.StatusUnprocessableEntity
		if cfgErr.Code == config.CodeNoConfigurationFound {
			status = http.StatusNotFound
		}
		writeJSON(w, status, ErrorDTO{Error: cfgErr.Message, Code: string(cfgErr.Code), Details: cfgErr.Details})
		return
	}
	var holErr *holidays.HolidaysError
	if errors.As(err, &holErr) {
		writeJSON(w, http.StatusNotFound, ErrorDTO{Error: holErr.Message, Code: string(holErr.Code), Details: holErr.Details})
		return
	}
	var calErr *calendar.CalendarError
	if errors.As(err, &calErr) {
		writeJSON(w, http.StatusUnprocessableEntity, ErrorDTO{Error: calErr.Message, Code: string(calErr.Code), Details: calErr.Details})
		return
	}
	switch {
	case errors.Is(err, config.ErrInvalidPolicy):
		writeError(w, http.StatusBadRequest, "Invalid policy", err)
	case errors.Is(err, config.ErrConfigNotFound):
		writeError(w, http.StatusNotFound, "Configuration not found", nil)
	case errors.Is(err, config.ErrDuplicateConfig):
		writeError(w, http.StatusConflict, "An active configuration already exists for this key", nil)
	case errors.Is(err, holidays.ErrZoneCodeTaken):
		writeError(w, http.StatusConflict, "A holiday zone with this code already exists", nil)
	default:
		h.Log.WithError(err).Error("unhandled error in HTTP handler")
		writeError(w, http.StatusInternalServerError, "Internal error", nil)
	}
}

func intQuery(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
