/*
rules.go - SLA policy rules and lookup precedence

PURPOSE:
  Operators can override the built-in targets per (category, severity).
  A rule without a category is a wildcard for its severity.

PRECEDENCE (first match wins):
  1. Active rule with the item's category AND severity
  2. Active rule with no category and the item's severity
  3. Built-in defaults for the severity (types.go)

EXAMPLE:
  rules := sla.RuleSet{
      {Severity: sla.SeverityCritical, ResolutionHours: 24, EscalationHours: 8, Active: true},
  }
  rule, _ := rules.FindRule(ctx, sla.CategoryImaging, sla.SeverityCritical)
  targets := sla.TargetsFor(rule, sla.SeverityCritical) // 24h / 8h
*/
package sla

import (
	"context"
	"time"
)

// =============================================================================
// POLICY RULE
// =============================================================================

// PolicyRule overrides the SLA targets for a severity, optionally scoped to
// one category.
type PolicyRule struct {
	ID              string
	Category        *Category // nil = any category
	Severity        Severity
	ResolutionHours int
	EscalationHours int
	EscalateTo      string // role to notify on escalation
	Active          bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Matches reports whether the rule applies to (category, severity),
// ignoring the active flag.
func (r PolicyRule) Matches(category Category, severity Severity) bool {
	if r.Severity != severity {
		return false
	}
	return r.Category == nil || *r.Category == category
}

// RuleSource looks up the best active rule for (category, severity).
// It returns (nil, nil) when no rule applies.
type RuleSource interface {
	FindRule(ctx context.Context, category Category, severity Severity) (*PolicyRule, error)
}

// SelectRule applies the lookup precedence to a list of rules.
func SelectRule(rules []PolicyRule, category Category, severity Severity) *PolicyRule {
	var wildcard *PolicyRule
	for i := range rules {
		r := &rules[i]
		if !r.Active || !r.Matches(category, severity) {
			continue
		}
		if r.Category != nil {
			return r
		}
		if wildcard == nil {
			wildcard = r
		}
	}
	return wildcard
}

// RuleSet is an in-memory RuleSource.
type RuleSet []PolicyRule

func (rs RuleSet) FindRule(_ context.Context, category Category, severity Severity) (*PolicyRule, error) {
	r := SelectRule(rs, category, severity)
	if r == nil {
		return nil, nil
	}
	out := *r
	return &out, nil
}

// =============================================================================
// TARGETS - Effective hours for one item
// =============================================================================

// Targets are the effective SLA hours after applying precedence.
type Targets struct {
	ResolutionHours int
	EscalationHours int
	EscalateTo      string
	RuleID          string // empty when defaults apply
}

// TargetsFor resolves the effective targets. A nil rule or a non-positive
// hour value falls back to the severity default.
func TargetsFor(rule *PolicyRule, severity Severity) Targets {
	def := DefaultHours(severity)
	t := Targets{ResolutionHours: def.Resolution, EscalationHours: def.Escalation}
	if rule == nil {
		return t
	}
	if rule.ResolutionHours > 0 {
		t.ResolutionHours = rule.ResolutionHours
	}
	if rule.EscalationHours > 0 {
		t.EscalationHours = rule.EscalationHours
	}
	t.EscalateTo = rule.EscalateTo
	t.RuleID = rule.ID
	return t
}
