/*
Package factory provides JSON to Go SLA policy rule conversion.

PURPOSE:
  Converts JSON rule definitions into sla.PolicyRule values. Operations
  staff can tune resolution and escalation targets without code changes:
  the server loads a rule file at startup and the API accepts the same
  shape.

JSON SCHEMA:
  {
    "id": "safety-critical",         // optional, generated when empty
    "category": "safety_reporting",  // optional, omitted = any category
    "severity": "critical",
    "resolution_hours": 24,
    "escalation_hours": 8,
    "escalate_to": "ops_manager",
    "active": true                   // optional, default true
  }

  A rule file is either a JSON array of rules or {"rules": [...]}.

VALIDATION:
  - severity is required and must be known
  - category, when present, must be known
  - hours must be >= 0 (0 means "use the severity default")
  - at most one active rule per (category, severity)

USAGE:
  f := factory.NewRuleFactory()
  rules, err := f.ParseRuleSet(factory.StandardRulesJSON())
  svc := actionitem.NewService(store, engine, sla.RuleSet(rules))

SEE ALSO:
  - sla/rules.go: PolicyRule and lookup precedence
  - store/sqlite: persisted rules
*/
package factory

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/warp/action-tracker/sla"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// RuleJSON is the JSON representation of an SLA policy rule.
type RuleJSON struct {
	ID              string  `json:"id,omitempty"`
	Category        *string `json:"category,omitempty"`
	Severity        string  `json:"severity"`
	ResolutionHours int     `json:"resolution_hours"`
	EscalationHours int     `json:"escalation_hours"`
	EscalateTo      string  `json:"escalate_to,omitempty"`
	Active          *bool   `json:"active,omitempty"`
}

// RuleSetJSON is the object form of a rule file.
type RuleSetJSON struct {
	Rules []RuleJSON `json:"rules"`
}

// =============================================================================
// RULE FACTORY
// =============================================================================

// RuleFactory converts JSON rules to sla.PolicyRule.
type RuleFactory struct {
	now   func() time.Time
	newID func() string
}

func NewRuleFactory() *RuleFactory {
	return &RuleFactory{
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
}

// ParseRule parses a single JSON rule.
func (f *RuleFactory) ParseRule(jsonStr string) (*sla.PolicyRule, error) {
	var rj RuleJSON
	if err := json.Unmarshal([]byte(jsonStr), &rj); err != nil {
		return nil, fmt.Errorf("failed to parse rule JSON: %w", err)
	}
	return f.FromJSON(rj)
}

// ParseRuleSet parses a rule file in either array or object form.
func (f *RuleFactory) ParseRuleSet(data []byte) ([]sla.PolicyRule, error) {
	var rjs []RuleJSON
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &rjs); err != nil {
			return nil, fmt.Errorf("failed to parse rule set JSON: %w", err)
		}
	} else {
		var set RuleSetJSON
		if err := json.Unmarshal(trimmed, &set); err != nil {
			return nil, fmt.Errorf("failed to parse rule set JSON: %w", err)
		}
		rjs = set.Rules
	}

	rules := make([]sla.PolicyRule, 0, len(rjs))
	for i, rj := range rjs {
		r, err := f.FromJSON(rj)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		rules = append(rules, *r)
	}
	if err := checkDuplicates(rules); err != nil {
		return nil, err
	}
	return rules, nil
}

// FromJSON validates rj and converts it.
func (f *RuleFactory) FromJSON(rj RuleJSON) (*sla.PolicyRule, error) {
	sev, err := sla.ParseSeverity(rj.Severity)
	if err != nil {
		return nil, err
	}
	if rj.ResolutionHours < 0 || rj.EscalationHours < 0 {
		return nil, fmt.Errorf("hours must not be negative")
	}

	now := f.now()
	rule := &sla.PolicyRule{
		ID:              rj.ID,
		Severity:        sev,
		ResolutionHours: rj.ResolutionHours,
		EscalationHours: rj.EscalationHours,
		EscalateTo:      rj.EscalateTo,
		Active:          rj.Active == nil || *rj.Active,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if rule.ID == "" {
		rule.ID = f.newID()
	}
	if rj.Category != nil {
		c, err := sla.ParseCategory(*rj.Category)
		if err != nil {
			return nil, err
		}
		rule.Category = &c
	}
	return rule, nil
}

// ToJSON converts a rule back to its JSON shape.
func (f *RuleFactory) ToJSON(r sla.PolicyRule) RuleJSON {
	active := r.Active
	rj := RuleJSON{
		ID:              r.ID,
		Severity:        r.Severity.String(),
		ResolutionHours: r.ResolutionHours,
		EscalationHours: r.EscalationHours,
		EscalateTo:      r.EscalateTo,
		Active:          &active,
	}
	if r.Category != nil {
		c := r.Category.String()
		rj.Category = &c
	}
	return rj
}

func checkDuplicates(rules []sla.PolicyRule) error {
	type key struct {
		category string
		severity sla.Severity
	}
	seen := make(map[key]string)
	for _, r := range rules {
		if !r.Active {
			continue
		}
		k := key{category: "*", severity: r.Severity}
		if r.Category != nil {
			k.category = r.Category.String()
		}
		if prev, ok := seen[k]; ok {
			return fmt.Errorf("rules %s and %s both target %s/%s", prev, r.ID, k.category, r.Severity)
		}
		seen[k] = r.ID
	}
	return nil
}

// =============================================================================
// PRESET RULE SETS
// =============================================================================

// StandardRulesJSON mirrors the built-in severity targets and names the
// role to notify for each.
func StandardRulesJSON() []byte {
	return []byte(`[
  {"id": "default-critical", "severity": "critical", "resolution_hours": 48,  "escalation_hours": 24, "escalate_to": "ops_manager"},
  {"id": "default-major",    "severity": "major",    "resolution_hours": 40,  "escalation_hours": 20, "escalate_to": "sc_lead"},
  {"id": "default-minor",    "severity": "minor",    "resolution_hours": 80,  "escalation_hours": 40, "escalate_to": "sc_lead"},
  {"id": "default-info",     "severity": "info",     "resolution_hours": 120, "escalation_hours": 80, "escalate_to": "study_coordinator"}
]`)
}

// ExpeditedSafetyRuleJSON tightens critical safety-reporting items to one
// business day to align with expedited reporting timelines.
func ExpeditedSafetyRuleJSON() string {
	return `{
  "id": "safety-critical",
  "category": "safety_reporting",
  "severity": "critical",
  "resolution_hours": 8,
  "escalation_hours": 4,
  "escalate_to": "ops_manager"
}`
}
