/*
handlers.go - HTTP API handlers for the action-item tracker

PURPOSE:
  Exposes action items, dashboards, studies and SLA rules via REST. Handles
  HTTP request/response and JSON serialization, and delegates to the
  actionitem service, the dashboard aggregations and the SQLite store.

ENDPOINTS:
  Action items:
    GET    /api/action-items               List (filters + pagination)
    POST   /api/action-items               Create                     [coordinator]
    GET    /api/action-items/stats         Population statistics
    GET    /api/action-items/{id}          Detail with audit trail
    PUT    /api/action-items/{id}          Edit fields (+ status)     [coordinator]
    PATCH  /api/action-items/{id}/status   Lifecycle transition
    DELETE /api/action-items/{id}          Delete while new           [coordinator]

  Dashboard:
    GET    /api/dashboard/kpis             Headline numbers
    GET    /api/dashboard/burndown         Daily open/closed series (?days=7..90)
    GET    /api/dashboard/pareto           Open items by category (?top_n=3..10)

  Studies:
    GET    /api/studies                    List (?status=&sponsor=&search= + pagination)
    POST   /api/studies                    Create                     [manager]
    GET    /api/studies/{id}               Detail
    PUT    /api/studies/{id}               Partial update             [coordinator]
    DELETE /api/studies/{id}               Close (no open items)      [manager]

  SLA rules / calendar / admin:
    GET    /api/sla-rules                  List (?active_only=)
    POST   /api/sla-rules                  Create or replace by id    [manager]
    GET    /api/calendar/holidays          Holidays of a year (?year=)
    GET    /api/admin/escalations          Scheduler status           [manager]
    POST   /api/admin/escalations/refresh  Recompute escalation now   [manager]

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid transitions, malformed input
  - 401: Missing or invalid identity (auth.go)
  - 403: Role not allowed (auth.go)
  - 404: Resource not found
  - 409: Concurrent modification, duplicate, state precondition
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - auth.go: Identity middleware and role gating
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/warp/action-tracker/actionitem"
	"github.com/warp/action-tracker/calendar"
	"github.com/warp/action-tracker/dashboard"
	"github.com/warp/action-tracker/factory"
	"github.com/warp/action-tracker/sla"
	"github.com/warp/action-tracker/store/sqlite"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
	maxBodyBytes    = 1 << 20
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Items    *actionitem.Service
	Store    *sqlite.Store
	Rules    *factory.RuleFactory
	Calendar *calendar.National

	// Scheduler is optional; when set, manual refreshes notify through it.
	Scheduler *EscalationScheduler

	// Track currently loaded demo scenario
	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a new handler over the given service and store.
func NewHandler(items *actionitem.Service, store *sqlite.Store, cal *calendar.National) *Handler {
	return &Handler{
		Items:    items,
		Store:    store,
		Rules:    factory.NewRuleFactory(),
		Calendar: cal,
	}
}

func (h *Handler) now() time.Time {
	return h.Items.Engine().Clock.Now()
}

// =============================================================================
// ACTION ITEM HANDLERS
// =============================================================================

// ListActionItems returns a filtered page of items, newest first.
// GET /api/action-items
func (h *Handler) ListActionItems(w http.ResponseWriter, r *http.Request) {
	filter, err := parseItemFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid filter", err)
		return
	}
	page, pageSize, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid pagination", err)
		return
	}
	filter.Limit = pageSize
	filter.Offset = (page - 1) * pageSize

	items, total, err := h.Items.List(r.Context(), filter)
	if err != nil {
		writeDomainError(w, "Failed to list action items", err)
		return
	}

	dtos := make([]ActionItemDTO, len(items))
	for i := range items {
		dtos[i] = toActionItemDTO(&items[i], h.Items)
	}
	writeJSON(w, http.StatusOK, ActionItemListResponse{
		Items:    dtos,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	})
}

// CreateActionItem creates an item in status new.
// POST /api/action-items
func (h *Handler) CreateActionItem(w http.ResponseWriter, r *http.Request) {
	var req CreateActionItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	in, err := req.toNewItem()
	if err != nil {
		writeDomainError(w, "Invalid action item", err)
		return
	}

	actor, _ := IdentityFrom(r.Context())
	item, err := h.Items.CreateItem(r.Context(), in, actor)
	if err != nil {
		writeDomainError(w, "Failed to create action item", err)
		return
	}

	writeJSON(w, http.StatusCreated, toActionItemDTO(item, h.Items))
}

// GetActionItem returns an item with its audit trail.
// GET /api/action-items/{id}
func (h *Handler) GetActionItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	item, err := h.Items.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get action item", err)
		return
	}
	trail, err := h.Items.AuditTrail(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get audit trail", err)
		return
	}

	dto := toActionItemDTO(item, h.Items)
	dto.Updates = toAuditEntryDTOs(trail)
	writeJSON(w, http.StatusOK, dto)
}

// UpdateActionItem applies field edits and an optional status change
// atomically.
// PUT /api/action-items/{id}
func (h *Handler) UpdateActionItem(w http.ResponseWriter, r *http.Request) {
	var req UpdateActionItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	changes, err := req.toFieldChanges()
	if err != nil {
		writeDomainError(w, "Invalid update", err)
		return
	}
	var status *actionitem.Status
	if req.Status != nil {
		s := actionitem.Status(*req.Status)
		status = &s
	}

	actor, _ := IdentityFrom(r.Context())
	item, err := h.Items.Update(r.Context(), chi.URLParam(r, "id"), changes, status, actor, req.Comment)
	if err != nil {
		writeDomainError(w, "Failed to update action item", err)
		return
	}

	writeJSON(w, http.StatusOK, toActionItemDTO(item, h.Items))
}

// ChangeStatus moves an item through the lifecycle.
// PATCH /api/action-items/{id}/status
func (h *Handler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	var req StatusChangeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	actor, _ := IdentityFrom(r.Context())
	item, err := h.Items.TransitionStatus(r.Context(), chi.URLParam(r, "id"), actionitem.Status(req.Status), actor, req.Comment)
	if err != nil {
		writeDomainError(w, "Failed to change status", err)
		return
	}

	writeJSON(w, http.StatusOK, toActionItemDTO(item, h.Items))
}

// DeleteActionItem removes an item that has not been started.
// DELETE /api/action-items/{id}
func (h *Handler) DeleteActionItem(w http.ResponseWriter, r *http.Request) {
	if err := h.Items.DeleteItem(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, "Failed to delete action item", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetStats summarizes all items, optionally for one study.
// GET /api/action-items/stats
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	items, ok := h.population(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toStatsDTO(dashboard.ComputeStats(items, h.now())))
}

// =============================================================================
// DASHBOARD HANDLERS
// =============================================================================

// GetKPIs returns the dashboard headline numbers.
// GET /api/dashboard/kpis
func (h *Handler) GetKPIs(w http.ResponseWriter, r *http.Request) {
	items, ok := h.population(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toKPIsDTO(dashboard.ComputeKPIs(items, h.now())))
}

// GetBurndown returns one point per day over the trailing window.
// GET /api/dashboard/burndown
func (h *Handler) GetBurndown(w http.ResponseWriter, r *http.Request) {
	days, err := queryInt(r, "days", dashboard.DefaultBurndownDays)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid days", err)
		return
	}
	items, ok := h.population(w, r)
	if !ok {
		return
	}

	points, err := dashboard.ComputeBurndown(items, days, h.now())
	if err != nil {
		writeDomainError(w, "Invalid burndown window", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"days": days, "points": toBurndownDTOs(points)})
}

// GetPareto ranks open-item categories.
// GET /api/dashboard/pareto
func (h *Handler) GetPareto(w http.ResponseWriter, r *http.Request) {
	topN, err := queryInt(r, "top_n", dashboard.DefaultParetoTopN)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid top_n", err)
		return
	}
	items, ok := h.population(w, r)
	if !ok {
		return
	}

	shares, err := dashboard.ComputePareto(items, topN)
	if err != nil {
		writeDomainError(w, "Invalid pareto size", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": toParetoDTOs(shares)})
}

// population loads every item of the optional study_id filter.
func (h *Handler) population(w http.ResponseWriter, r *http.Request) ([]actionitem.ActionItem, bool) {
	items, _, err := h.Items.List(r.Context(), actionitem.Filter{StudyID: r.URL.Query().Get("study_id")})
	if err != nil {
		writeDomainError(w, "Failed to load action items", err)
		return nil, false
	}
	return items, true
}

// =============================================================================
// STUDY HANDLERS
// =============================================================================

// ListStudies returns a page of studies, optionally filtered by status,
// sponsor and a protocol number / short name search.
// GET /api/studies
func (h *Handler) ListStudies(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := sqlite.StudyFilter{
		Status:  sqlite.StudyStatus(q.Get("status")),
		Sponsor: strings.TrimSpace(q.Get("sponsor")),
		Search:  strings.TrimSpace(q.Get("search")),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		writeError(w, http.StatusBadRequest, "Invalid status", fmt.Errorf("unknown study status %q", filter.Status))
		return
	}
	page, pageSize, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid pagination", err)
		return
	}
	filter.Limit = pageSize
	filter.Offset = (page - 1) * pageSize

	studies, total, err := h.Store.ListStudies(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list studies", err)
		return
	}

	dtos := make([]StudyDTO, len(studies))
	for i := range studies {
		dtos[i] = toStudyDTO(&studies[i])
	}
	writeJSON(w, http.StatusOK, StudyListResponse{
		Studies:  dtos,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	})
}

// CreateStudy registers a study.
// POST /api/studies
func (h *Handler) CreateStudy(w http.ResponseWriter, r *http.Request) {
	var req CreateStudyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	required := []struct{ field, value string }{
		{"protocol_number", req.ProtocolNumber},
		{"short_name", req.ShortName},
		{"full_title", req.FullTitle},
		{"sponsor", req.Sponsor},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			writeError(w, http.StatusBadRequest, "Invalid study", &actionitem.ValidationError{Field: f.field, Message: "is required"})
			return
		}
	}
	status := sqlite.StudyStatus(req.Status)
	if status != "" && !status.Valid() {
		writeError(w, http.StatusBadRequest, "Invalid study", &actionitem.ValidationError{Field: "status", Message: "unknown study status"})
		return
	}

	st, err := h.Store.CreateStudy(r.Context(), sqlite.Study{
		ProtocolNumber: strings.TrimSpace(req.ProtocolNumber),
		ShortName:      req.ShortName,
		FullTitle:      req.FullTitle,
		Sponsor:        req.Sponsor,
		Phase:          req.Phase,
		Status:         status,
	})
	if err != nil {
		writeDomainError(w, "Failed to create study", err)
		return
	}

	writeJSON(w, http.StatusCreated, toStudyDTO(st))
}

// GetStudy returns one study.
// GET /api/studies/{id}
func (h *Handler) GetStudy(w http.ResponseWriter, r *http.Request) {
	st, err := h.Store.GetStudy(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get study", err)
		return
	}
	if st == nil {
		writeError(w, http.StatusNotFound, "Study not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toStudyDTO(st))
}

// UpdateStudy applies a partial update. Closing goes through CloseStudy so
// the open-item check cannot be skipped.
// PUT /api/studies/{id}
func (h *Handler) UpdateStudy(w http.ResponseWriter, r *http.Request) {
	var req UpdateStudyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	changes, err := req.toStudyChanges()
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid study", err)
		return
	}

	st, err := h.Store.UpdateStudy(r.Context(), chi.URLParam(r, "id"), changes)
	if err != nil {
		writeDomainError(w, "Failed to update study", err)
		return
	}
	writeJSON(w, http.StatusOK, toStudyDTO(st))
}

// CloseStudy marks a study closed. Studies are never hard-deleted.
// DELETE /api/studies/{id}
func (h *Handler) CloseStudy(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Store.CloseStudy(r.Context(), id); err != nil {
		writeDomainError(w, "Failed to close study", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "status": sqlite.StudyClosed})
}

// =============================================================================
// SLA RULE HANDLERS
// =============================================================================

// ListSLARules returns the stored policy rules.
// GET /api/sla-rules
func (h *Handler) ListSLARules(w http.ResponseWriter, r *http.Request) {
	activeOnly, err := queryBool(r, "active_only")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid active_only", err)
		return
	}

	rules, err := h.Store.ListRules(r.Context(), activeOnly)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list SLA rules", err)
		return
	}

	dtos := make([]factory.RuleJSON, len(rules))
	for i, rule := range rules {
		dtos[i] = h.Rules.ToJSON(rule)
	}
	writeJSON(w, http.StatusOK, map[string]any{"rules": dtos})
}

// CreateSLARule creates a rule, or replaces the rule with the same id.
// POST /api/sla-rules
func (h *Handler) CreateSLARule(w http.ResponseWriter, r *http.Request) {
	var req factory.RuleJSON
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	rule, err := h.Rules.FromJSON(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid SLA rule", err)
		return
	}
	if err := h.Store.SaveRule(r.Context(), *rule); err != nil {
		writeDomainError(w, "Failed to save SLA rule", err)
		return
	}

	log.Printf("[Rules] Saved %s (severity=%s resolution=%dh escalation=%dh)",
		rule.ID, rule.Severity, rule.ResolutionHours, rule.EscalationHours)
	writeJSON(w, http.StatusCreated, h.Rules.ToJSON(*rule))
}

// =============================================================================
// CALENDAR / ADMIN HANDLERS
// =============================================================================

// ListHolidays returns the national holidays of a year.
// GET /api/calendar/holidays
func (h *Handler) ListHolidays(w http.ResponseWriter, r *http.Request) {
	year, err := queryInt(r, "year", h.now().Year())
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid year", err)
		return
	}
	if year < 1900 || year > 2199 {
		writeError(w, http.StatusBadRequest, "Invalid year", fmt.Errorf("year must be between 1900 and 2199, got %d", year))
		return
	}

	holidays := h.Calendar.Holidays(year).Sorted()
	dtos := make([]HolidayDTO, len(holidays))
	for i, hol := range holidays {
		dtos[i] = HolidayDTO{
			Date:    hol.Date.String(),
			Name:    hol.Name,
			Weekday: hol.Date.Weekday().String(),
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"year": year, "holidays": dtos})
}

// RefreshEscalations recomputes escalation levels immediately.
// POST /api/admin/escalations/refresh
func (h *Handler) RefreshEscalations(w http.ResponseWriter, r *http.Request) {
	var changed []actionitem.Escalation
	var err error
	if h.Scheduler != nil {
		changed, err = h.Scheduler.RunNow(r.Context())
	} else {
		changed, err = h.Items.RefreshEscalation(r.Context())
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to refresh escalations", err)
		return
	}

	type EscalationDTO struct {
		ItemID     string `json:"item_id"`
		Title      string `json:"title"`
		From       int    `json:"from"`
		To         int    `json:"to"`
		EscalateTo string `json:"escalate_to,omitempty"`
	}
	dtos := make([]EscalationDTO, 0, len(changed))
	for _, e := range changed {
		dtos = append(dtos, EscalationDTO{ItemID: e.ItemID, Title: e.Title, From: e.From, To: e.To, EscalateTo: e.EscalateTo})
	}
	writeJSON(w, http.StatusOK, map[string]any{"changed": dtos})
}

// GetEscalationSchedule reports the background refresh schedule.
// GET /api/admin/escalations
func (h *Handler) GetEscalationSchedule(w http.ResponseWriter, r *http.Request) {
	if h.Scheduler == nil {
		writeError(w, http.StatusServiceUnavailable, "Escalation scheduler not configured", nil)
		return
	}
	writeJSON(w, http.StatusOK, toSchedulerStatusDTO(h.Scheduler.Status()))
}

// Health reports database reachability.
// GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "Database unavailable", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// REQUEST PARSING
// =============================================================================

func (req CreateActionItemRequest) toNewItem() (actionitem.NewItem, error) {
	in := actionitem.NewItem{
		StudyID:          req.StudyID,
		SourceDocumentID: req.SourceDocumentID,
		Title:            req.Title,
		Description:      req.Description,
		Category:         sla.CategoryOther,
		Severity:         sla.SeverityMinor,
		AssignedTo:       req.AssignedTo,
	}
	if req.Category != "" {
		c, err := sla.ParseCategory(req.Category)
		if err != nil {
			return in, &actionitem.ValidationError{Field: "category", Message: err.Error()}
		}
		in.Category = c
	}
	if req.Severity != "" {
		s, err := sla.ParseSeverity(req.Severity)
		if err != nil {
			return in, &actionitem.ValidationError{Field: "severity", Message: err.Error()}
		}
		in.Severity = s
	}
	if req.DueDate != nil && *req.DueDate != "" {
		due, err := parseDueDate(*req.DueDate)
		if err != nil {
			return in, err
		}
		in.DueDate = &due
	}
	return in, nil
}

func (req UpdateActionItemRequest) toFieldChanges() (actionitem.FieldChanges, error) {
	c := actionitem.FieldChanges{
		Title:       req.Title,
		Description: req.Description,
		AssignedTo:  req.AssignedTo,
	}
	if req.Category != nil {
		cat, err := sla.ParseCategory(*req.Category)
		if err != nil {
			return c, &actionitem.ValidationError{Field: "category", Message: err.Error()}
		}
		c.Category = &cat
	}
	if req.Severity != nil {
		sev, err := sla.ParseSeverity(*req.Severity)
		if err != nil {
			return c, &actionitem.ValidationError{Field: "severity", Message: err.Error()}
		}
		c.Severity = &sev
	}
	if req.DueDate != nil {
		if *req.DueDate == "" {
			c.ClearDueDate = true
		} else {
			due, err := parseDueDate(*req.DueDate)
			if err != nil {
				return c, err
			}
			c.DueDate = &due
		}
	}
	return c, nil
}

func (req UpdateStudyRequest) toStudyChanges() (sqlite.StudyChanges, error) {
	c := sqlite.StudyChanges{
		ProtocolNumber: trimmed(req.ProtocolNumber),
		ShortName:      req.ShortName,
		FullTitle:      req.FullTitle,
		Sponsor:        req.Sponsor,
		Phase:          req.Phase,
	}
	required := []struct {
		field string
		value *string
	}{
		{"protocol_number", c.ProtocolNumber},
		{"short_name", c.ShortName},
		{"full_title", c.FullTitle},
		{"sponsor", c.Sponsor},
	}
	for _, f := range required {
		if f.value != nil && strings.TrimSpace(*f.value) == "" {
			return c, &actionitem.ValidationError{Field: f.field, Message: "must not be empty"}
		}
	}
	if req.Status != nil {
		status := sqlite.StudyStatus(*req.Status)
		switch {
		case !status.Valid():
			return c, &actionitem.ValidationError{Field: "status", Message: "unknown study status"}
		case status == sqlite.StudyClosed:
			return c, &actionitem.ValidationError{Field: "status", Message: "use DELETE to close a study"}
		}
		c.Status = &status
	}
	return c, nil
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}

// parseDueDate accepts RFC 3339 or a bare YYYY-MM-DD (midnight UTC).
func parseDueDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	d, err := calendar.ParseDate(s)
	if err != nil {
		return time.Time{}, &actionitem.ValidationError{Field: "due_date", Message: "must be RFC 3339 or YYYY-MM-DD"}
	}
	return d.In(time.UTC), nil
}

func parseItemFilter(r *http.Request) (actionitem.Filter, error) {
	q := r.URL.Query()
	f := actionitem.Filter{
		StudyID:    q.Get("study_id"),
		AssignedTo: q.Get("assigned_to"),
	}
	if v := q.Get("status"); v != "" {
		s := actionitem.Status(v)
		if !s.Valid() {
			return f, fmt.Errorf("unknown status %q", v)
		}
		f.Status = &s
	}
	if v := q.Get("category"); v != "" {
		c, err := sla.ParseCategory(v)
		if err != nil {
			return f, err
		}
		f.Category = &c
	}
	if v := q.Get("severity"); v != "" {
		s, err := sla.ParseSeverity(v)
		if err != nil {
			return f, err
		}
		f.Severity = &s
	}
	var err error
	if f.OpenOnly, err = queryBool(r, "open_only"); err != nil {
		return f, err
	}
	if f.OverdueOnly, err = queryBool(r, "overdue"); err != nil {
		return f, err
	}
	return f, nil
}

func parsePagination(r *http.Request) (page, pageSize int, err error) {
	if page, err = queryInt(r, "page", 1); err != nil {
		return 0, 0, err
	}
	if page < 1 {
		return 0, 0, fmt.Errorf("page must be >= 1, got %d", page)
	}
	if pageSize, err = queryInt(r, "page_size", DefaultPageSize); err != nil {
		return 0, 0, err
	}
	if pageSize < 1 || pageSize > MaxPageSize {
		return 0, 0, fmt.Errorf("page_size must be between 1 and %d, got %d", MaxPageSize, pageSize)
	}
	return page, pageSize, nil
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func queryBool(r *http.Request, key string) (bool, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean, got %q", key, v)
	}
	return b, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps domain and store errors to a status code.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	status := http.StatusInternalServerError
	switch {
	case actionitem.IsClientError(err):
		status = http.StatusBadRequest
	case actionitem.IsNotFound(err), errors.Is(err, sqlite.ErrStudyNotFound):
		status = http.StatusNotFound
	case actionitem.IsConflict(err),
		errors.Is(err, sqlite.ErrStudyExists),
		errors.Is(err, sqlite.ErrStudyHasOpenItems),
		errors.Is(err, sqlite.ErrRuleConflict):
		status = http.StatusConflict
	default:
		log.Printf("[API] %s: %v", message, err)
	}
	writeError(w, status, message, err)
}
