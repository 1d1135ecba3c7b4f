/*
store.go - Persistence interface for action items and their audit trail

CONTRACT:
  - CreateItem/UpdateItem write the item and its new audit entries
    atomically: either both land or neither does.
  - UpdateItem is optimistic. It fails with ErrConcurrentModification when
    the stored updated_at no longer equals expectedUpdatedAt, which is how
    concurrent edits of the same item are serialized.
  - Audit entries are append-only and are removed only by DeleteItem.
  - GetItem returns ErrNotFound for unknown ids.

IMPLEMENTATIONS:
  - actionitem/store/memory.go: in-memory for tests and dev
  - store/sqlite/sqlite.go: SQLite
*/
package actionitem

import (
	"context"
	"fmt"
	"time"
)

// ErrConcurrentModification is returned when an optimistic update lost a race.
var ErrConcurrentModification = fmt.Errorf("%w: concurrent modification detected", ErrConflict)

type Store interface {
	CreateItem(ctx context.Context, item ActionItem, entries []AuditEntry) error
	UpdateItem(ctx context.Context, item ActionItem, expectedUpdatedAt time.Time, entries []AuditEntry) error

	// UpdateEscalationLevels sets escalation_level only, leaving updated_at
	// untouched so it never races with user edits.
	UpdateEscalationLevels(ctx context.Context, levels map[string]int) error

	GetItem(ctx context.Context, id string) (*ActionItem, error)

	// ListItems returns one page matching f in ListsBefore order, plus the
	// total number of matches ignoring Limit/Offset.
	ListItems(ctx context.Context, f Filter) ([]ActionItem, int, error)

	DeleteItem(ctx context.Context, id string) error

	// AuditTrail returns the item's entries, oldest first.
	AuditTrail(ctx context.Context, id string) ([]AuditEntry, error)

	StudyExists(ctx context.Context, id string) (bool, error)
}

// Matches reports whether a satisfies every set criterion of f.
// Limit and Offset are ignored.
func (f Filter) Matches(a *ActionItem) bool {
	switch {
	case f.StudyID != "" && a.StudyID != f.StudyID:
		return false
	case f.Status != nil && a.Status != *f.Status:
		return false
	case f.Category != nil && a.Category != *f.Category:
		return false
	case f.Severity != nil && a.Severity != *f.Severity:
		return false
	case f.AssignedTo != "" && (a.AssignedTo == nil || *a.AssignedTo != f.AssignedTo):
		return false
	case f.OpenOnly && !a.IsOpen():
		return false
	case f.OverdueOnly && !(a.IsOpen() && a.SLADeadline != nil && a.SLADeadline.Before(f.OverdueAt)):
		return false
	}
	return true
}

// ListsBefore is the listing order: most severe first, then earliest
// sla_deadline with missing deadlines last, then newest first. The id
// breaks remaining ties so pages are stable.
func ListsBefore(a, b *ActionItem) bool {
	if a.Severity != b.Severity {
		return a.Severity.MoreSevereThan(b.Severity)
	}
	switch {
	case a.SLADeadline == nil && b.SLADeadline != nil:
		return false
	case a.SLADeadline != nil && b.SLADeadline == nil:
		return true
	case a.SLADeadline != nil && !a.SLADeadline.Equal(*b.SLADeadline):
		return a.SLADeadline.Before(*b.SLADeadline)
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID < b.ID
}
