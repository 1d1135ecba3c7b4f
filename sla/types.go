/*
Package sla computes resolution deadlines and escalation levels.

PURPOSE:
  Every action item gets a resolution target measured in business hours.
  The target comes from the best-matching SLA rule for the item's category
  and severity, or from the built-in per-severity defaults. Once the item is
  open long enough it escalates; once it passes its deadline it keeps
  escalating, one level per escalation period.

KEY CONCEPTS IN THIS FILE (types.go):
  - Severity: closed enum, critical > major > minor > info
  - Category: closed enum of action-item categories
  - Defaults: per-severity resolution/escalation hours

DEFAULTS:
  ┌──────────┬────────────┬────────────┐
  │ severity │ resolution │ escalation │
  ├──────────┼────────────┼────────────┤
  │ critical │    48h     │    24h     │
  │ major    │    40h     │    20h     │
  │ minor    │    80h     │    40h     │
  │ info     │   120h     │    80h     │
  └──────────┴────────────┴────────────┘

SEE ALSO:
  - engine.go: deadline + escalation computations
  - rules.go: rule lookup precedence
*/
package sla

import "fmt"

// =============================================================================
// SEVERITY
// =============================================================================

// Severity is the urgency of an action item. Lower values are more severe.
type Severity uint8

const (
	SeverityCritical Severity = iota
	SeverityMajor
	SeverityMinor
	SeverityInfo

	numSeverities
)

var severityNames = [numSeverities]string{
	SeverityCritical: "critical",
	SeverityMajor:    "major",
	SeverityMinor:    "minor",
	SeverityInfo:     "info",
}

// Severities lists every severity from most to least severe.
func Severities() []Severity {
	out := make([]Severity, numSeverities)
	for i := range out {
		out[i] = Severity(i)
	}
	return out
}

func (s Severity) Valid() bool { return s < numSeverities }

func (s Severity) String() string {
	if !s.Valid() {
		return fmt.Sprintf("severity(%d)", uint8(s))
	}
	return severityNames[s]
}

// MoreSevereThan orders critical > major > minor > info.
func (s Severity) MoreSevereThan(other Severity) bool { return s < other }

// ParseSeverity parses the lowercase name of a severity.
func ParseSeverity(name string) (Severity, error) {
	for i, n := range severityNames {
		if n == name {
			return Severity(i), nil
		}
	}
	return 0, fmt.Errorf("unknown severity %q", name)
}

func (s Severity) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid severity %d", uint8(s))
	}
	return []byte(s.String()), nil
}

func (s *Severity) UnmarshalText(b []byte) error {
	parsed, err := ParseSeverity(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// =============================================================================
// CATEGORY
// =============================================================================

// Category classifies what an action item is about.
type Category uint8

const (
	CategoryRegulatory Category = iota
	CategoryConsentICF
	CategoryDataEntry
	CategoryQueries
	CategorySafetyReporting
	CategorySamples
	CategoryImaging
	CategoryPharmacyIP
	CategoryTraining
	CategoryContractsBudget
	CategoryOther

	numCategories
)

var categoryNames = [numCategories]string{
	CategoryRegulatory:      "regulatory",
	CategoryConsentICF:      "consent_icf",
	CategoryDataEntry:       "data_entry",
	CategoryQueries:         "queries",
	CategorySafetyReporting: "safety_reporting",
	CategorySamples:         "samples",
	CategoryImaging:         "imaging",
	CategoryPharmacyIP:      "pharmacy_ip",
	CategoryTraining:        "training",
	CategoryContractsBudget: "contracts_budget",
	CategoryOther:           "other",
}

// Categories lists every category in declaration order.
func Categories() []Category {
	out := make([]Category, numCategories)
	for i := range out {
		out[i] = Category(i)
	}
	return out
}

func (c Category) Valid() bool { return c < numCategories }

func (c Category) String() string {
	if !c.Valid() {
		return fmt.Sprintf("category(%d)", uint8(c))
	}
	return categoryNames[c]
}

// ParseCategory parses the lowercase name of a category.
func ParseCategory(name string) (Category, error) {
	for i, n := range categoryNames {
		if n == name {
			return Category(i), nil
		}
	}
	return 0, fmt.Errorf("unknown category %q", name)
}

func (c Category) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("invalid category %d", uint8(c))
	}
	return []byte(c.String()), nil
}

func (c *Category) UnmarshalText(b []byte) error {
	parsed, err := ParseCategory(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Hours is a resolution/escalation pair in business hours.
type Hours struct {
	Resolution int
	Escalation int
}

var defaultHours = [numSeverities]Hours{
	SeverityCritical: {Resolution: 48, Escalation: 24},
	SeverityMajor:    {Resolution: 40, Escalation: 20},
	SeverityMinor:    {Resolution: 80, Escalation: 40},
	SeverityInfo:     {Resolution: 120, Escalation: 80},
}

// fallbackHours covers values outside the enum (e.g. a corrupted row).
var fallbackHours = Hours{Resolution: 80, Escalation: 40}

// DefaultHours returns the built-in targets for a severity.
func DefaultHours(s Severity) Hours {
	if !s.Valid() {
		return fallbackHours
	}
	return defaultHours[s]
}
