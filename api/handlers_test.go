/*
handlers_test.go - HTTP tests for the API handlers

Tests run the full router (auth, role gating, handlers) against an
in-memory SQLite store and a fixed clock.
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/action-tracker/actionitem"
	"github.com/warp/action-tracker/calendar"
	"github.com/warp/action-tracker/factory"
	"github.com/warp/action-tracker/sla"
	"github.com/warp/action-tracker/store/sqlite"
)

// Monday 2026-10-19 10:00 UTC. The next holiday is Finados (Nov 2).
var monday = time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)

type testServer struct {
	store   *sqlite.Store
	clock   *sla.FixedClock
	items   *actionitem.Service
	handler *Handler
	router  *chi.Mux
	studyID string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	clock := sla.NewFixedClock(monday)
	cal := calendar.NewBrazil()
	engine := sla.NewEngine(cal, clock)
	items := actionitem.NewService(store, engine, store)

	study, err := store.CreateStudy(context.Background(), sqlite.Study{
		ProtocolNumber: "ONC-2026-001",
		ShortName:      "ONC-1",
		FullTitle:      "Phase II oncology study",
		Sponsor:        "Acme Pharma",
	})
	require.NoError(t, err)

	h := NewHandler(items, store, cal)
	return &testServer{
		store:   store,
		clock:   clock,
		items:   items,
		handler: h,
		router:  NewRouter(h, RouterOptions{CORSOrigins: []string{"http://localhost:5173"}, Scenarios: true}),
		studyID: study.ID,
	}
}

// do sends a request as "<role>-user" with the given role. An empty role
// sends no identity.
func (ts *testServer) do(t *testing.T, method, path string, body any, role Role) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		req.Header.Set(HeaderUserID, string(role)+"-user")
		req.Header.Set(HeaderUserRole, string(role))
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (ts *testServer) createItem(t *testing.T, req CreateActionItemRequest) ActionItemDTO {
	t.Helper()
	if req.StudyID == "" {
		req.StudyID = ts.studyID
	}
	rec := ts.do(t, http.MethodPost, "/api/action-items", req, RoleStudyCoordinator)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[ActionItemDTO](t, rec)
}

// =============================================================================
// ACTION ITEMS
// =============================================================================

func TestCreateActionItem_DefaultsAndComputedFields(t *testing.T) {
	ts := newTestServer(t)

	// WHEN: creating an item with only a title
	item := ts.createItem(t, CreateActionItemRequest{Title: "File IRB amendment"})

	// THEN: defaults apply and derived fields are present
	assert.Equal(t, sla.CategoryOther, item.Category)
	assert.Equal(t, sla.SeverityMinor, item.Severity)
	assert.Equal(t, actionitem.StatusNew, item.Status)
	assert.Equal(t, "study_coordinator-user", item.CreatedBy)
	assert.True(t, item.IsOpen)
	assert.False(t, item.IsOverdue)
	require.NotNil(t, item.SLADeadline)
	require.NotNil(t, item.DaysUntilDeadline)
	assert.Zero(t, item.EscalationLevel)
}

func TestCreateActionItem_CriticalDeadline(t *testing.T) {
	ts := newTestServer(t)

	// WHEN: a critical item is created Monday 10:00 (48 business hours)
	item := ts.createItem(t, CreateActionItemRequest{
		Title:    "Report SAE to sponsor",
		Category: "safety_reporting",
		Severity: "critical",
		DueDate:  strPtr("2026-10-30"),
	})

	// THEN: six business days later, same time of day
	require.NotNil(t, item.SLADeadline)
	assert.Equal(t, "2026-10-27T10:00:00Z", *item.SLADeadline)
	assert.Equal(t, 8.0, *item.DaysUntilDeadline)
	require.NotNil(t, item.DueDate)
	assert.Equal(t, "2026-10-30T00:00:00Z", *item.DueDate)
}

func TestCreateActionItem_Errors(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name   string
		body   any
		role   Role
		status int
	}{
		{"empty title", CreateActionItemRequest{StudyID: ts.studyID, Title: "  "}, RoleStudyCoordinator, http.StatusBadRequest},
		{"title too long", CreateActionItemRequest{StudyID: ts.studyID, Title: strings.Repeat("x", 501)}, RoleStudyCoordinator, http.StatusBadRequest},
		{"unknown severity", CreateActionItemRequest{StudyID: ts.studyID, Title: "t", Severity: "urgent"}, RoleStudyCoordinator, http.StatusBadRequest},
		{"unknown category", CreateActionItemRequest{StudyID: ts.studyID, Title: "t", Category: "misc"}, RoleStudyCoordinator, http.StatusBadRequest},
		{"bad due date", CreateActionItemRequest{StudyID: ts.studyID, Title: "t", DueDate: strPtr("next week")}, RoleStudyCoordinator, http.StatusBadRequest},
		{"unknown field", `{"study_id":"x","title":"t","priority":1}`, RoleStudyCoordinator, http.StatusBadRequest},
		{"malformed json", `{"title":`, RoleStudyCoordinator, http.StatusBadRequest},
		{"unknown study", CreateActionItemRequest{StudyID: "missing", Title: "t"}, RoleStudyCoordinator, http.StatusNotFound},
		{"read-only role", CreateActionItemRequest{StudyID: ts.studyID, Title: "t"}, RoleReadonly, http.StatusForbidden},
		{"quality role", CreateActionItemRequest{StudyID: ts.studyID, Title: "t"}, RoleQuality, http.StatusForbidden},
		{"no identity", CreateActionItemRequest{StudyID: ts.studyID, Title: "t"}, "", http.StatusUnauthorized},
		{"unknown role", CreateActionItemRequest{StudyID: ts.studyID, Title: "t"}, Role("intern"), http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodPost, "/api/action-items", tt.body, tt.role)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.NotEmpty(t, decode[ErrorResponse](t, rec).Error)
		})
	}
}

func TestChangeStatus_Workflow(t *testing.T) {
	ts := newTestServer(t)
	item := ts.createItem(t, CreateActionItemRequest{Title: "Query resolution", Severity: "major"})
	path := "/api/action-items/" + item.ID + "/status"

	// new -> done is not allowed
	rec := ts.do(t, http.MethodPatch, path, StatusChangeRequest{Status: "done"}, RoleDataManager)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// any authenticated role may move status
	for _, to := range []string{"in_progress", "done"} {
		rec = ts.do(t, http.MethodPatch, path, StatusChangeRequest{Status: to, Comment: strPtr("moving to " + to)}, RoleDataManager)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}
	done := decode[ActionItemDTO](t, rec)
	assert.False(t, done.IsOpen)
	assert.NotNil(t, done.ResolvedAt)
	assert.Nil(t, done.DaysUntilDeadline)

	rec = ts.do(t, http.MethodPatch, path, StatusChangeRequest{Status: "verified"}, RoleQuality)
	require.Equal(t, http.StatusOK, rec.Code)
	verified := decode[ActionItemDTO](t, rec)
	require.NotNil(t, verified.VerifiedBy)
	assert.Equal(t, "quality-user", *verified.VerifiedBy)

	// verified is terminal
	rec = ts.do(t, http.MethodPatch, path, StatusChangeRequest{Status: "in_progress"}, RoleAdmin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// unknown status
	rec = ts.do(t, http.MethodPatch, path, StatusChangeRequest{Status: "archived"}, RoleAdmin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// THEN: the detail view carries the creation entry plus three transitions
	rec = ts.do(t, http.MethodGet, "/api/action-items/"+item.ID, nil, RoleReadonly)
	require.Equal(t, http.StatusOK, rec.Code)
	detail := decode[ActionItemDTO](t, rec)
	require.Len(t, detail.Updates, 4)
	assert.Equal(t, actionitem.CreatedComment, *detail.Updates[0].Comment)
	assert.Equal(t, "status", *detail.Updates[1].FieldChanged)
	assert.Equal(t, "new", *detail.Updates[1].OldValue)
	assert.Equal(t, "in_progress", *detail.Updates[1].NewValue)
}

func TestChangeStatus_NotFound(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPatch, "/api/action-items/missing/status", StatusChangeRequest{Status: "in_progress"}, RoleAdmin)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/action-items/missing", nil, RoleAdmin)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateActionItem(t *testing.T) {
	ts := newTestServer(t)
	item := ts.createItem(t, CreateActionItemRequest{Title: "Collect samples", Category: "samples", DueDate: strPtr("2026-11-10")})
	path := "/api/action-items/" + item.ID

	// WHEN: editing fields and moving status in one call
	rec := ts.do(t, http.MethodPut, path, UpdateActionItemRequest{
		Severity:   strPtr("critical"),
		AssignedTo: strPtr("carol"),
		DueDate:    strPtr(""),
		Status:     strPtr("in_progress"),
		Comment:    strPtr("courier booked"),
	}, RoleSCLead)

	// THEN: every change is applied; the deadline is not recomputed
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[ActionItemDTO](t, rec)
	assert.Equal(t, sla.SeverityCritical, updated.Severity)
	assert.Equal(t, "carol", *updated.AssignedTo)
	assert.Nil(t, updated.DueDate)
	assert.Equal(t, actionitem.StatusInProgress, updated.Status)
	assert.Equal(t, *item.SLADeadline, *updated.SLADeadline)

	// AND: one audit entry per changed field plus the transition
	trail, err := ts.items.AuditTrail(context.Background(), item.ID)
	require.NoError(t, err)
	assert.Len(t, trail, 5)

	// WHEN: the status change is invalid, nothing is applied
	rec = ts.do(t, http.MethodPut, path, UpdateActionItemRequest{Title: strPtr("renamed"), Status: strPtr("new")}, RoleSCLead)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	stored, err := ts.items.Get(context.Background(), item.ID)
	require.NoError(t, err)
	assert.Equal(t, "Collect samples", stored.Title)

	// AND: only coordinators may edit
	rec = ts.do(t, http.MethodPut, path, UpdateActionItemRequest{Title: strPtr("x")}, RoleFinance)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestDeleteActionItem(t *testing.T) {
	ts := newTestServer(t)
	fresh := ts.createItem(t, CreateActionItemRequest{Title: "Duplicate entry"})
	started := ts.createItem(t, CreateActionItemRequest{Title: "Started work"})
	rec := ts.do(t, http.MethodPatch, "/api/action-items/"+started.ID+"/status", StatusChangeRequest{Status: "in_progress"}, RoleAdmin)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodDelete, "/api/action-items/"+fresh.ID, nil, RoleStudyCoordinator)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = ts.do(t, http.MethodGet, "/api/action-items/"+fresh.ID, nil, RoleStudyCoordinator)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodDelete, "/api/action-items/"+started.ID, nil, RoleStudyCoordinator)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodDelete, "/api/action-items/"+started.ID, nil, RoleDataManager)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestListActionItems_PaginationAndFilters(t *testing.T) {
	ts := newTestServer(t)
	for _, sev := range []string{"critical", "minor", "minor"} {
		ts.createItem(t, CreateActionItemRequest{Title: sev + " item", Severity: sev})
		ts.clock.Advance(time.Minute)
	}

	rec := ts.do(t, http.MethodGet, "/api/action-items?page_size=2", nil, RoleReadonly)
	require.Equal(t, http.StatusOK, rec.Code)
	page1 := decode[ActionItemListResponse](t, rec)
	assert.Equal(t, 3, page1.Total)
	assert.Equal(t, 1, page1.Page)
	require.Len(t, page1.Items, 2)
	assert.Equal(t, "critical item", page1.Items[0].Title, "most severe first")

	rec = ts.do(t, http.MethodGet, "/api/action-items?page_size=2&page=2", nil, RoleReadonly)
	page2 := decode[ActionItemListResponse](t, rec)
	require.Len(t, page2.Items, 1)
	assert.Equal(t, "minor item", page2.Items[0].Title)

	rec = ts.do(t, http.MethodGet, "/api/action-items?severity=minor&study_id="+ts.studyID, nil, RoleReadonly)
	assert.Equal(t, 2, decode[ActionItemListResponse](t, rec).Total)

	for _, q := range []string{"page_size=0", "page_size=101", "page=0", "page=x", "status=closed", "severity=high", "open_only=maybe"} {
		rec = ts.do(t, http.MethodGet, "/api/action-items?"+q, nil, RoleReadonly)
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestListActionItems_Overdue(t *testing.T) {
	ts := newTestServer(t)
	critical := ts.createItem(t, CreateActionItemRequest{Title: "Late SAE", Severity: "critical"})
	ts.createItem(t, CreateActionItemRequest{Title: "Routine", Severity: "info"})

	// GIVEN: the critical deadline (Tue Oct 27 10:00) has passed
	ts.clock.Set(time.Date(2026, 10, 28, 10, 0, 0, 0, time.UTC))

	rec := ts.do(t, http.MethodGet, "/api/action-items?overdue=true", nil, RoleReadonly)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[ActionItemListResponse](t, rec)
	require.Len(t, list.Items, 1)
	assert.Equal(t, critical.ID, list.Items[0].ID)
	assert.True(t, list.Items[0].IsOverdue)
	assert.Equal(t, -1.0, *list.Items[0].DaysUntilDeadline)
}

// =============================================================================
// STATS / DASHBOARD
// =============================================================================

func TestStatsAndDashboard(t *testing.T) {
	ts := newTestServer(t)
	a := ts.createItem(t, CreateActionItemRequest{Title: "a", Category: "regulatory", Severity: "critical"})
	ts.createItem(t, CreateActionItemRequest{Title: "b", Category: "regulatory"})
	ts.createItem(t, CreateActionItemRequest{Title: "c", Category: "imaging"})

	ts.clock.Advance(2 * time.Hour)
	for _, to := range []string{"in_progress", "done"} {
		rec := ts.do(t, http.MethodPatch, "/api/action-items/"+a.ID+"/status", StatusChangeRequest{Status: to}, RoleAdmin)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := ts.do(t, http.MethodGet, "/api/action-items/stats?study_id="+ts.studyID, nil, RoleReadonly)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[StatsDTO](t, rec)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.Open)
	assert.Equal(t, 2, stats.ByCategory["regulatory"])
	assert.Equal(t, 1, stats.ByStatus["done"])
	assert.Equal(t, 100.0, stats.SLACompliance)
	require.NotNil(t, stats.AverageResolutionHours)
	assert.Equal(t, 2.0, *stats.AverageResolutionHours)

	rec = ts.do(t, http.MethodGet, "/api/dashboard/kpis", nil, RoleFinance)
	require.Equal(t, http.StatusOK, rec.Code)
	kpis := decode[KPIsDTO](t, rec)
	assert.Equal(t, 2, kpis.TotalOpen)
	assert.Equal(t, 3, kpis.CreatedLast7Days)
	assert.Equal(t, 1, kpis.ResolvedLast7Days)
	assert.Equal(t, 2, kpis.OpenBySeverity["minor"])

	rec = ts.do(t, http.MethodGet, "/api/dashboard/burndown", nil, RoleReadonly)
	require.Equal(t, http.StatusOK, rec.Code)
	burndown := decode[struct {
		Days   int                `json:"days"`
		Points []BurndownPointDTO `json:"points"`
	}](t, rec)
	assert.Equal(t, 30, burndown.Days)
	require.Len(t, burndown.Points, 31)
	last := burndown.Points[30]
	assert.Equal(t, "2026-10-19", last.Date)
	assert.Equal(t, 2, last.OpenItems)
	assert.Equal(t, 1, last.ClosedItems)

	rec = ts.do(t, http.MethodGet, "/api/dashboard/pareto?top_n=3", nil, RoleReadonly)
	require.Equal(t, http.StatusOK, rec.Code)
	pareto := decode[struct {
		Categories []ParetoEntryDTO `json:"categories"`
	}](t, rec)
	require.Len(t, pareto.Categories, 2)
	assert.Equal(t, sla.CategoryRegulatory, pareto.Categories[0].Category)
	assert.Equal(t, 50.0, pareto.Categories[0].Percentage)
	assert.Equal(t, 100.0, pareto.Categories[1].CumulativePercentage)

	for _, path := range []string{
		"/api/dashboard/burndown?days=6",
		"/api/dashboard/burndown?days=91",
		"/api/dashboard/burndown?days=week",
		"/api/dashboard/pareto?top_n=2",
		"/api/dashboard/pareto?top_n=11",
	} {
		rec = ts.do(t, http.MethodGet, path, nil, RoleReadonly)
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
	}
}

// =============================================================================
// STUDIES
// =============================================================================

func TestStudies(t *testing.T) {
	ts := newTestServer(t)
	body := CreateStudyRequest{
		ProtocolNumber: "CARD-2026-7",
		ShortName:      "CARD-7",
		FullTitle:      "Cardiology registry",
		Sponsor:        "Heart Inc",
		Phase:          "IV",
	}

	rec := ts.do(t, http.MethodPost, "/api/studies", body, RoleOpsManager)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	study := decode[StudyDTO](t, rec)
	assert.Equal(t, "active", study.Status)

	rec = ts.do(t, http.MethodPost, "/api/studies", body, RoleOpsManager)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/studies", body, RoleSCLead)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/studies", CreateStudyRequest{ProtocolNumber: "X"}, RoleAdmin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/studies", nil, RoleReadonly)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[struct {
		Studies []StudyDTO `json:"studies"`
	}](t, rec)
	assert.Len(t, list.Studies, 2)

	rec = ts.do(t, http.MethodGet, "/api/studies/"+study.ID, nil, RoleReadonly)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = ts.do(t, http.MethodGet, "/api/studies/missing", nil, RoleReadonly)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListStudies_FiltersAndPagination(t *testing.T) {
	ts := newTestServer(t)
	for _, req := range []CreateStudyRequest{
		{ProtocolNumber: "ONC-2026-002", ShortName: "Breast-2", FullTitle: "Adjuvant breast study", Sponsor: "Acme Pharma"},
		{ProtocolNumber: "CARD-2025-014", ShortName: "CARD-14", FullTitle: "Heart-failure registry", Sponsor: "Heart Inc"},
	} {
		rec := ts.do(t, http.MethodPost, "/api/studies", req, RoleAdmin)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	list := func(query string) StudyListResponse {
		t.Helper()
		rec := ts.do(t, http.MethodGet, "/api/studies?"+query, nil, RoleReadonly)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		return decode[StudyListResponse](t, rec)
	}

	// GIVEN: three studies, two sponsored by Acme
	acme := list("sponsor=acme")
	assert.Equal(t, 2, acme.Total)
	require.Len(t, acme.Studies, 2)
	assert.Equal(t, "ONC-2026-001", acme.Studies[0].ProtocolNumber)

	found := list("search=breast")
	require.Len(t, found.Studies, 1)
	assert.Equal(t, "ONC-2026-002", found.Studies[0].ProtocolNumber)

	paged := list("page=2&page_size=2")
	assert.Equal(t, 3, paged.Total)
	assert.Equal(t, 2, paged.Page)
	assert.Equal(t, 2, paged.PageSize)
	require.Len(t, paged.Studies, 1)
	assert.Equal(t, "ONC-2026-002", paged.Studies[0].ProtocolNumber)

	for _, q := range []string{"page_size=0", "page_size=101", "page=0", "status=archived"} {
		rec := ts.do(t, http.MethodGet, "/api/studies?"+q, nil, RoleReadonly)
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestUpdateStudy(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodPost, "/api/studies", CreateStudyRequest{
		ProtocolNumber: "CARD-2025-014", ShortName: "CARD-14", FullTitle: "Heart-failure registry", Sponsor: "Heart Inc",
	}, RoleAdmin)
	require.Equal(t, http.StatusCreated, rec.Code)
	other := decode[StudyDTO](t, rec)
	path := "/api/studies/" + ts.studyID

	// WHEN: a coordinator renames the study and moves it to a new phase
	rec = ts.do(t, http.MethodPut, path, `{"short_name":"ONC-1b","phase":"III"}`, RoleStudyCoordinator)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[StudyDTO](t, rec)

	// THEN: only those fields change
	assert.Equal(t, "ONC-1b", updated.ShortName)
	assert.Equal(t, "III", updated.Phase)
	assert.Equal(t, "ONC-2026-001", updated.ProtocolNumber)
	assert.Equal(t, "Acme Pharma", updated.Sponsor)

	tests := []struct {
		name string
		path string
		body any
		role Role
		want int
	}{
		{"duplicate protocol number", path, UpdateStudyRequest{ProtocolNumber: strPtr(other.ProtocolNumber)}, RoleSCLead, http.StatusConflict},
		{"blank sponsor", path, UpdateStudyRequest{Sponsor: strPtr("  ")}, RoleSCLead, http.StatusBadRequest},
		{"unknown status", path, UpdateStudyRequest{Status: strPtr("archived")}, RoleSCLead, http.StatusBadRequest},
		{"closing goes through DELETE", path, UpdateStudyRequest{Status: strPtr("closed")}, RoleSCLead, http.StatusBadRequest},
		{"unknown field", path, `{"budget":1}`, RoleSCLead, http.StatusBadRequest},
		{"missing study", "/api/studies/missing", UpdateStudyRequest{ShortName: strPtr("x")}, RoleSCLead, http.StatusNotFound},
		{"read-only role", path, UpdateStudyRequest{ShortName: strPtr("x")}, RoleReadonly, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodPut, tt.path, tt.body, tt.role)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}

	// AND: suspending is allowed and visible in the listing filter
	rec = ts.do(t, http.MethodPut, path, UpdateStudyRequest{Status: strPtr("suspended")}, RoleStudyCoordinator)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = ts.do(t, http.MethodGet, "/api/studies?status=suspended", nil, RoleReadonly)
	assert.Equal(t, 1, decode[StudyListResponse](t, rec).Total)
}

func TestCloseStudy_RequiresNoOpenItems(t *testing.T) {
	ts := newTestServer(t)
	item := ts.createItem(t, CreateActionItemRequest{Title: "Archive TMF"})
	path := "/api/studies/" + ts.studyID

	rec := ts.do(t, http.MethodDelete, path, nil, RoleAdmin)
	assert.Equal(t, http.StatusConflict, rec.Code)

	for _, to := range []string{"in_progress", "done"} {
		rec = ts.do(t, http.MethodPatch, "/api/action-items/"+item.ID+"/status", StatusChangeRequest{Status: to}, RoleAdmin)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec = ts.do(t, http.MethodDelete, path, nil, RoleAdmin)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/studies?status=closed", nil, RoleReadonly)
	list := decode[struct {
		Studies []StudyDTO `json:"studies"`
	}](t, rec)
	require.Len(t, list.Studies, 1)
	assert.Equal(t, ts.studyID, list.Studies[0].ID)

	rec = ts.do(t, http.MethodDelete, "/api/studies/missing", nil, RoleAdmin)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// SLA RULES / CALENDAR / ADMIN
// =============================================================================

func TestSLARules_OverrideDeadline(t *testing.T) {
	ts := newTestServer(t)

	// GIVEN: an expedited rule for critical safety reporting
	rec := ts.do(t, http.MethodPost, "/api/sla-rules", factory.ExpeditedSafetyRuleJSON(), RoleOpsManager)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// WHEN: a matching item is created
	item := ts.createItem(t, CreateActionItemRequest{Title: "SUSAR", Category: "safety_reporting", Severity: "critical"})

	// THEN: the deadline is one business day out
	assert.Equal(t, "2026-10-20T10:00:00Z", *item.SLADeadline)

	// AND: a second active rule for the same key conflicts
	rec = ts.do(t, http.MethodPost, "/api/sla-rules",
		`{"id":"another","category":"safety_reporting","severity":"critical","resolution_hours":16,"escalation_hours":8}`, RoleAdmin)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/sla-rules", `{"severity":"blocker"}`, RoleAdmin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/sla-rules", factory.ExpeditedSafetyRuleJSON(), RoleSCLead)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/sla-rules?active_only=true", nil, RoleReadonly)
	require.Equal(t, http.StatusOK, rec.Code)
	rules := decode[struct {
		Rules []factory.RuleJSON `json:"rules"`
	}](t, rec)
	require.Len(t, rules.Rules, 1)
	assert.Equal(t, "safety-critical", rules.Rules[0].ID)
	assert.Equal(t, 8, rules.Rules[0].ResolutionHours)
}

func TestListHolidays(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/calendar/holidays?year=2026", nil, RoleReadonly)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[struct {
		Year     int          `json:"year"`
		Holidays []HolidayDTO `json:"holidays"`
	}](t, rec)
	assert.Equal(t, 2026, resp.Year)
	require.Len(t, resp.Holidays, 13)
	assert.Equal(t, HolidayDTO{Date: "2026-01-01", Name: "Confraternização Universal", Weekday: "Thursday"}, resp.Holidays[0])
	assert.Contains(t, resp.Holidays, HolidayDTO{Date: "2026-04-03", Name: "Sexta-feira Santa", Weekday: "Friday"})

	// default year comes from the clock
	rec = ts.do(t, http.MethodGet, "/api/calendar/holidays", nil, RoleReadonly)
	assert.Equal(t, 2026, decode[struct {
		Year int `json:"year"`
	}](t, rec).Year)

	for _, q := range []string{"year=abc", "year=1500"} {
		rec = ts.do(t, http.MethodGet, "/api/calendar/holidays?"+q, nil, RoleReadonly)
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestRefreshEscalations(t *testing.T) {
	ts := newTestServer(t)
	item := ts.createItem(t, CreateActionItemRequest{Title: "Consent re-sign", Category: "consent_icf", Severity: "critical"})

	// GIVEN: 25 hours have passed (critical escalation is 24h)
	ts.clock.Advance(25 * time.Hour)

	rec := ts.do(t, http.MethodPost, "/api/admin/escalations/refresh", nil, RoleSCLead)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/admin/escalations/refresh", nil, RoleOpsManager)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[struct {
		Changed []struct {
			ItemID string `json:"item_id"`
			From   int    `json:"from"`
			To     int    `json:"to"`
		} `json:"changed"`
	}](t, rec)
	require.Len(t, resp.Changed, 1)
	assert.Equal(t, item.ID, resp.Changed[0].ItemID)
	assert.Equal(t, 0, resp.Changed[0].From)
	assert.Equal(t, 1, resp.Changed[0].To)

	rec = ts.do(t, http.MethodGet, "/api/action-items/"+item.ID, nil, RoleReadonly)
	assert.Equal(t, 1, decode[ActionItemDTO](t, rec).EscalationLevel)
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func strPtr(s string) *string { return &s }
