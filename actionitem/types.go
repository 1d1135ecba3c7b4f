/*
Package actionitem owns the action-item lifecycle.

PURPOSE:
  An action item is a remediation task raised against a clinical-trial
  site. This package holds the item model, the status state machine, the
  audit trail and the service that ties them to storage and to the SLA
  engine.

KEY CONCEPTS IN THIS FILE (types.go):
  - ActionItem: the unit of work
  - Status: workflow state (see lifecycle.go for transitions)
  - AuditEntry: immutable record of one change
  - Identity: the acting user, supplied by the caller

FIELD OWNERSHIP:
  Set by callers:     title, description, category, severity, assignee,
                      due date, source document
  Set by creation:    id, created_at, created_by, sla_deadline
  Set by transitions: status, resolved_at, verified_at, verified_by
  Set by the engine:  escalation_level (never by callers)

SEE ALSO:
  - lifecycle.go: transition table and edit rules
  - service.go: persistence orchestration
*/
package actionitem

import (
	"time"

	"github.com/warp/action-tracker/sla"
)

// =============================================================================
// STATUS
// =============================================================================

type Status string

const (
	StatusNew             Status = "new"
	StatusInProgress      Status = "in_progress"
	StatusWaitingExternal Status = "waiting_external"
	StatusDone            Status = "done"
	StatusVerified        Status = "verified"
)

// Statuses lists every status in workflow order.
func Statuses() []Status {
	return []Status{StatusNew, StatusInProgress, StatusWaitingExternal, StatusDone, StatusVerified}
}

func (s Status) Valid() bool {
	switch s {
	case StatusNew, StatusInProgress, StatusWaitingExternal, StatusDone, StatusVerified:
		return true
	}
	return false
}

// IsOpen reports whether work is still outstanding.
func (s Status) IsOpen() bool { return s != StatusDone && s != StatusVerified }

// =============================================================================
// ACTION ITEM
// =============================================================================

// MaxTitleLength is the longest title accepted, in characters.
const MaxTitleLength = 500

// MaxCommentLength is the longest audit comment accepted, in characters.
const MaxCommentLength = 2000

type ActionItem struct {
	ID               string
	StudyID          string
	SourceDocumentID *string

	Title       string
	Description *string
	Category    sla.Category
	Severity    sla.Severity
	Status      Status

	AssignedTo *string
	CreatedBy  string

	DueDate         *time.Time
	SLADeadline     *time.Time
	EscalationLevel int

	ResolvedAt *time.Time
	VerifiedAt *time.Time
	VerifiedBy *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (a *ActionItem) IsOpen() bool { return a.Status.IsOpen() }

// SLA returns the engine's view of the item.
func (a *ActionItem) SLA() sla.Item {
	return sla.Item{
		CreatedAt: a.CreatedAt,
		Deadline:  a.SLADeadline,
		Severity:  a.Severity,
		Open:      a.IsOpen(),
	}
}

// =============================================================================
// AUDIT TRAIL
// =============================================================================

// AuditEntry is an append-only record of one change to an item.
// FieldChanged is nil for entries that only carry a comment.
type AuditEntry struct {
	ID           string
	ActionItemID string
	UserID       string
	FieldChanged *string
	OldValue     *string
	NewValue     *string
	Comment      *string
	CreatedAt    time.Time
}

// =============================================================================
// IDENTITY
// =============================================================================

// Identity is the authenticated caller. Role checks happen before the
// service is called; the role is carried for audit and notification only.
type Identity struct {
	UserID string
	Role   string
}

// =============================================================================
// INPUTS
// =============================================================================

// NewItem holds the caller-supplied fields for CreateItem.
type NewItem struct {
	StudyID          string
	SourceDocumentID *string
	Title            string
	Description      *string
	Category         sla.Category
	Severity         sla.Severity
	AssignedTo       *string
	DueDate          *time.Time
}

// FieldChanges lists free-form edits. Nil fields are left untouched.
// An empty AssignedTo clears the assignee; ClearDueDate clears the due date.
type FieldChanges struct {
	Title        *string
	Description  *string
	Category     *sla.Category
	Severity     *sla.Severity
	AssignedTo   *string
	DueDate      *time.Time
	ClearDueDate bool
}

// Filter selects items for listing. Zero values mean "no filter".
type Filter struct {
	StudyID     string
	Status      *Status
	Category    *sla.Category
	Severity    *sla.Severity
	AssignedTo  string
	OpenOnly    bool
	OverdueOnly bool
	// OverdueAt is the instant OverdueOnly is evaluated at.
	OverdueAt time.Time
	Limit     int
	Offset    int
}
