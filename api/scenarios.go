/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:
	Provides pre-built scenarios that populate the database with realistic
	data for demos and dashboard development. Each scenario creates SLA
	rules, studies and action items whose history spans the last weeks, so
	burndown, aging and escalation have something to show.

AVAILABLE SCENARIOS:
	fresh-study:           Standard rules and one empty study
	inspection-readiness:  Two studies, mixed categories, some overdue
	safety-escalation:     Expedited safety rule, escalating critical items

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Load SLA rules via factory
 3. Create studies
 4. Replay item creation and transitions on a scenario clock that starts
    in the past, so timestamps and audit trails are consistent
 5. Refresh escalation levels against the real clock

USAGE VIA API:
	POST /api/scenarios/load
	{"scenario_id": "inspection-readiness"}

NOTE:
	Scenarios reset the database. The routes are only mounted outside
	production.

SEE ALSO:
  - factory/policy.go: preset rule sets
  - actionitem/service.go: the operations replayed here
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/warp/action-tracker/actionitem"
	"github.com/warp/action-tracker/factory"
	"github.com/warp/action-tracker/sla"
	"github.com/warp/action-tracker/store/sqlite"
)

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "fresh-study",
		Name:        "Fresh Study",
		Description: "Standard SLA rules and one study without action items",
	},
	{
		ID:          "inspection-readiness",
		Name:        "Inspection Readiness",
		Description: "Three weeks of activity across two studies, with overdue and verified items",
	},
	{
		ID:          "safety-escalation",
		Name:        "Safety Escalation",
		Description: "Expedited safety-reporting rule with critical items at every escalation level",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario resets the database and loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ScenarioID string `json:"scenario_id"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var load func(ctx context.Context) error
	switch req.ScenarioID {
	case "fresh-study":
		load = h.loadFreshStudyScenario
	case "inspection-readiness":
		load = h.loadInspectionReadinessScenario
	case "safety-escalation":
		load = h.loadSafetyEscalationScenario
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario", fmt.Errorf("scenario %q", req.ScenarioID))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	ctx := r.Context()
	h.currentScenario = ""
	if err := h.Store.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	if err := load(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}
	if _, err := h.Items.RefreshEscalation(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to refresh escalations", err)
		return
	}
	h.currentScenario = req.ScenarioID

	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadFreshStudyScenario(ctx context.Context) error {
	d := h.newDemo(ctx, h.now())
	d.standardRules()
	d.study("ONC-2026-001", "ONC-1", "Phase II study of an oral kinase inhibitor in NSCLC", "Acme Pharma", "II")
	return d.err
}

func (h *Handler) loadInspectionReadinessScenario(ctx context.Context) error {
	d := h.newDemo(ctx, startOfDay(h.now().AddDate(0, 0, -21)))
	d.standardRules()

	onc := d.study("ONC-2026-001", "ONC-1", "Phase II study of an oral kinase inhibitor in NSCLC", "Acme Pharma", "II")
	card := d.study("CARD-2025-014", "CARD-14", "Registry of heart-failure outcomes", "Heart Inc", "IV")

	irb := d.item(onc, "Renew IRB approval letter", sla.CategoryRegulatory, sla.SeverityCritical, "ana.sc")
	icf := d.item(onc, "Re-consent subjects on ICF v3", sla.CategoryConsentICF, sla.SeverityMajor, "ana.sc")
	crf := d.item(onc, "Enter visit 4 CRFs", sla.CategoryDataEntry, sla.SeverityMinor, "bruno.dm")
	d.item(onc, "Answer sponsor data queries", sla.CategoryQueries, sla.SeverityMinor, "bruno.dm")
	d.item(card, "Ship frozen PK samples", sla.CategorySamples, sla.SeverityInfo, "")

	d.advance(2 * 24 * time.Hour)
	d.move(irb, actionitem.StatusInProgress, actionitem.StatusDone)

	d.advance(3 * 24 * time.Hour)
	d.item(card, "Complete GCP refresher training", sla.CategoryTraining, sla.SeverityMinor, "carla.sc")
	mri := d.item(card, "Upload MRI scans to central reader", sla.CategoryImaging, sla.SeverityMajor, "carla.sc")

	d.advance(3 * 24 * time.Hour)
	d.move(icf, actionitem.StatusInProgress, actionitem.StatusWaitingExternal)
	d.move(irb, actionitem.StatusVerified)

	d.advance(2 * 24 * time.Hour)
	d.move(crf, actionitem.StatusInProgress, actionitem.StatusDone, actionitem.StatusVerified)
	d.move(mri, actionitem.StatusInProgress)

	d.advance(4 * 24 * time.Hour)
	d.item(onc, "Reconcile IP temperature excursion", sla.CategoryPharmacyIP, sla.SeverityCritical, "ana.sc")
	d.item(card, "Countersign amended CTA budget", sla.CategoryContractsBudget, sla.SeverityMajor, "")

	d.advance(3 * 24 * time.Hour)
	d.move(mri, actionitem.StatusDone)

	return d.err
}

func (h *Handler) loadSafetyEscalationScenario(ctx context.Context) error {
	d := h.newDemo(ctx, startOfDay(h.now().AddDate(0, 0, -10)))
	d.standardRules()
	d.rule(factory.ExpeditedSafetyRuleJSON())

	onc := d.study("ONC-2026-001", "ONC-1", "Phase II study of an oral kinase inhibitor in NSCLC", "Acme Pharma", "II")

	d.item(onc, "Report SAE 0042 to sponsor", sla.CategorySafetyReporting, sla.SeverityCritical, "ana.sc")
	d.advance(4 * 24 * time.Hour)
	reported := d.item(onc, "Submit SUSAR follow-up", sla.CategorySafetyReporting, sla.SeverityCritical, "ana.sc")
	d.advance(2 * time.Hour)
	d.move(reported, actionitem.StatusInProgress, actionitem.StatusDone)
	d.advance(5 * 24 * time.Hour)
	d.item(onc, "Notify ethics committee of SAE 0051", sla.CategorySafetyReporting, sla.SeverityCritical, "ana.sc")
	d.item(onc, "Update safety log", sla.CategorySafetyReporting, sla.SeverityMinor, "bruno.dm")

	return d.err
}

// =============================================================================
// SCENARIO BUILDER
// =============================================================================

// demo replays operations on a scenario clock. The first error sticks and
// turns later calls into no-ops.
type demo struct {
	ctx   context.Context
	h     *Handler
	clock *sla.FixedClock
	items *actionitem.Service
	actor actionitem.Identity
	err   error
}

func (h *Handler) newDemo(ctx context.Context, start time.Time) *demo {
	live := h.Items.Engine()
	clock := sla.NewFixedClock(start)
	engine := &sla.Engine{Calendar: live.Calendar, Clock: clock, HoursPerDay: live.HoursPerDay}
	return &demo{
		ctx:   ctx,
		h:     h,
		clock: clock,
		items: actionitem.NewService(h.Store, engine, h.Store),
		actor: actionitem.Identity{UserID: "demo.coordinator", Role: string(RoleStudyCoordinator)},
	}
}

func (d *demo) advance(by time.Duration) { d.clock.Advance(by) }

func (d *demo) standardRules() {
	if d.err != nil {
		return
	}
	rules, err := d.h.Rules.ParseRuleSet(factory.StandardRulesJSON())
	if err != nil {
		d.err = fmt.Errorf("parse standard rules: %w", err)
		return
	}
	d.err = d.h.Store.ReplaceRules(d.ctx, rules)
}

func (d *demo) rule(jsonStr string) {
	if d.err != nil {
		return
	}
	r, err := d.h.Rules.ParseRule(jsonStr)
	if err != nil {
		d.err = fmt.Errorf("parse rule: %w", err)
		return
	}
	d.err = d.h.Store.SaveRule(d.ctx, *r)
}

func (d *demo) study(protocol, shortName, title, sponsor, phase string) string {
	if d.err != nil {
		return ""
	}
	st, err := d.h.Store.CreateStudy(d.ctx, sqlite.Study{
		ProtocolNumber: protocol,
		ShortName:      shortName,
		FullTitle:      title,
		Sponsor:        sponsor,
		Phase:          phase,
	})
	if err != nil {
		d.err = fmt.Errorf("create study %s: %w", protocol, err)
		return ""
	}
	return st.ID
}

func (d *demo) item(studyID, title string, category sla.Category, severity sla.Severity, assignee string) string {
	if d.err != nil {
		return ""
	}
	in := actionitem.NewItem{StudyID: studyID, Title: title, Category: category, Severity: severity}
	if assignee != "" {
		in.AssignedTo = &assignee
	}
	item, err := d.items.CreateItem(d.ctx, in, d.actor)
	if err != nil {
		d.err = fmt.Errorf("create item %q: %w", title, err)
		return ""
	}
	return item.ID
}

// move walks an item through statuses, one hour apart.
func (d *demo) move(id string, path ...actionitem.Status) {
	for _, to := range path {
		if d.err != nil {
			return
		}
		d.clock.Advance(time.Hour)
		if _, err := d.items.TransitionStatus(d.ctx, id, to, d.actor, nil); err != nil {
			d.err = fmt.Errorf("move %s to %s: %w", id, to, err)
		}
	}
}

func startOfDay(t time.Time) time.Time {
	y, m, day := t.UTC().Date()
	return time.Date(y, m, day, 9, 0, 0, 0, time.UTC)
}
