/*
lifecycle.go - Status state machine and field-edit rules

TRANSITIONS:
  ┌──────────────────┬───────────────────────────────┐
  │ from             │ to                            │
  ├──────────────────┼───────────────────────────────┤
  │ new              │ in_progress                   │
  │ in_progress      │ waiting_external, done        │
  │ waiting_external │ in_progress, done             │
  │ done             │ verified, in_progress         │
  │ verified         │ (terminal)                    │
  └──────────────────┴───────────────────────────────┘

SIDE EFFECTS:
  - entering done sets resolved_at, only the first time
  - entering verified sets verified_at and verified_by
  - reopening (done -> in_progress) keeps resolved_at

Both Transition and ApplyEdits mutate the item in place and return the
audit entries describing what changed. They never touch storage and they
leave escalation_level alone; the service recomputes it afterwards.
*/
package actionitem

import (
	"strings"
	"time"
	"unicode/utf8"
)

var transitions = map[Status][]Status{
	StatusNew:             {StatusInProgress},
	StatusInProgress:      {StatusWaitingExternal, StatusDone},
	StatusWaitingExternal: {StatusInProgress, StatusDone},
	StatusDone:            {StatusVerified, StatusInProgress},
	StatusVerified:        {},
}

// AllowedTransitions returns the statuses reachable from s in one step.
func AllowedTransitions(s Status) []Status {
	next := transitions[s]
	out := make([]Status, len(next))
	copy(out, next)
	return out
}

func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Transition moves item to status `to`. On failure the item is unchanged.
func Transition(item *ActionItem, to Status, actor Identity, comment *string, now time.Time) (AuditEntry, error) {
	if !to.Valid() {
		return AuditEntry{}, invalid("status", "unknown status %q", to)
	}
	if err := validateComment(comment); err != nil {
		return AuditEntry{}, err
	}
	from := item.Status
	if !CanTransition(from, to) {
		return AuditEntry{}, &InvalidTransitionError{From: from, To: to}
	}

	item.Status = to
	switch to {
	case StatusDone:
		if item.ResolvedAt == nil {
			item.ResolvedAt = timePtr(now)
		}
	case StatusVerified:
		item.VerifiedAt = timePtr(now)
		item.VerifiedBy = strPtr(actor.UserID)
	}
	item.UpdatedAt = now

	return fieldEntry(item.ID, actor, "status", strPtr(string(from)), strPtr(string(to)), comment, now), nil
}

// ApplyEdits applies free-form field edits. Status is not editable here and
// sla_deadline is never recomputed. One audit entry is returned per field
// that actually changed; a comment with no changes yields a comment-only
// entry.
func ApplyEdits(item *ActionItem, c FieldChanges, actor Identity, comment *string, now time.Time) ([]AuditEntry, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}
	if err := validateComment(comment); err != nil {
		return nil, err
	}

	var entries []AuditEntry
	record := func(field string, old, new *string) {
		entries = append(entries, fieldEntry(item.ID, actor, field, old, new, comment, now))
	}

	if c.Title != nil && *c.Title != item.Title {
		record("title", strPtr(item.Title), strPtr(*c.Title))
		item.Title = *c.Title
	}
	if c.Description != nil {
		next := optional(*c.Description)
		if !equalStr(item.Description, next) {
			record("description", item.Description, next)
			item.Description = next
		}
	}
	if c.Category != nil && *c.Category != item.Category {
		record("category", strPtr(item.Category.String()), strPtr(c.Category.String()))
		item.Category = *c.Category
	}
	if c.Severity != nil && *c.Severity != item.Severity {
		record("severity", strPtr(item.Severity.String()), strPtr(c.Severity.String()))
		item.Severity = *c.Severity
	}
	if c.AssignedTo != nil {
		next := optional(*c.AssignedTo)
		if !equalStr(item.AssignedTo, next) {
			record("assigned_to", item.AssignedTo, next)
			item.AssignedTo = next
		}
	}
	switch {
	case c.ClearDueDate:
		if item.DueDate != nil {
			record("due_date", formatTime(item.DueDate), nil)
			item.DueDate = nil
		}
	case c.DueDate != nil:
		if item.DueDate == nil || !item.DueDate.Equal(*c.DueDate) {
			record("due_date", formatTime(item.DueDate), formatTime(c.DueDate))
			item.DueDate = timePtr(*c.DueDate)
		}
	}

	if len(entries) == 0 && comment != nil && *comment != "" {
		entries = append(entries, fieldEntry(item.ID, actor, "", nil, nil, comment, now))
	}
	if len(entries) > 0 {
		item.UpdatedAt = now
	}
	return entries, nil
}

// =============================================================================
// VALIDATION
// =============================================================================

func validateTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return invalid("title", "must not be empty")
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return invalid("title", "must be at most %d characters", MaxTitleLength)
	}
	return nil
}

func validateComment(comment *string) error {
	if comment != nil && utf8.RuneCountInString(*comment) > MaxCommentLength {
		return invalid("comment", "must be at most %d characters", MaxCommentLength)
	}
	return nil
}

func (c FieldChanges) validate() error {
	if c.Title != nil {
		if err := validateTitle(*c.Title); err != nil {
			return err
		}
	}
	if c.Category != nil && !c.Category.Valid() {
		return invalid("category", "unknown category")
	}
	if c.Severity != nil && !c.Severity.Valid() {
		return invalid("severity", "unknown severity")
	}
	return nil
}

// Validate checks caller-supplied fields before creation.
func (n NewItem) Validate() error {
	if n.StudyID == "" {
		return invalid("study_id", "is required")
	}
	if err := validateTitle(n.Title); err != nil {
		return err
	}
	if !n.Category.Valid() {
		return invalid("category", "unknown category")
	}
	if !n.Severity.Valid() {
		return invalid("severity", "unknown severity")
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func fieldEntry(itemID string, actor Identity, field string, old, new, comment *string, now time.Time) AuditEntry {
	e := AuditEntry{
		ActionItemID: itemID,
		UserID:       actor.UserID,
		OldValue:     old,
		NewValue:     new,
		CreatedAt:    now,
	}
	if field != "" {
		e.FieldChanged = strPtr(field)
	}
	if comment != nil && *comment != "" {
		e.Comment = strPtr(*comment)
	}
	return e
}

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }

// optional maps "" to nil.
func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func equalStr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	return strPtr(t.UTC().Format(time.RFC3339))
}
