/*
service.go - Action-item operations over a Store

PURPOSE:
  The Service is the only writer of action items. Every mutation follows
  the same path:

    load -> copy -> apply (lifecycle.go) -> recompute escalation -> persist

  Persisting passes the loaded updated_at so the store can reject a write
  that raced with another one (see store.go).

SLA TARGETS:
  Targets come from the best active policy rule for the item's category and
  severity (sla.RuleSource), falling back to built-in defaults. The
  deadline is computed once at creation. Escalation is recomputed on every
  mutation with the current rule, so a severity change affects escalation
  but not the deadline.

SEE ALSO:
  - lifecycle.go: transition table
  - sla/engine.go: deadline and escalation math
*/
package actionitem

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/warp/action-tracker/sla"
)

// CreatedComment is the comment on the audit entry written at creation.
const CreatedComment = "Action item created"

type Service struct {
	store  Store
	engine *sla.Engine
	rules  sla.RuleSource
	newID  func() string
}

// NewService wires a service. rules may be nil, in which case built-in
// defaults always apply.
func NewService(store Store, engine *sla.Engine, rules sla.RuleSource) *Service {
	if rules == nil {
		rules = sla.RuleSet(nil)
	}
	return &Service{store: store, engine: engine, rules: rules, newID: uuid.NewString}
}

// Engine exposes the SLA engine for read-side computations.
func (s *Service) Engine() *sla.Engine { return s.engine }

// =============================================================================
// CREATE
// =============================================================================

func (s *Service) CreateItem(ctx context.Context, in NewItem, actor Identity) (*ActionItem, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if actor.UserID == "" {
		return nil, invalid("created_by", "is required")
	}
	ok, err := s.store.StudyExists(ctx, in.StudyID)
	if err != nil {
		return nil, fmt.Errorf("check study: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrStudyNotFound, in.StudyID)
	}

	targets, err := s.targets(ctx, in.Category, in.Severity)
	if err != nil {
		return nil, err
	}

	now := s.engine.Clock.Now()
	deadline := s.engine.CalculateDeadline(now, in.Severity, &targets.ResolutionHours)

	item := ActionItem{
		ID:               s.newID(),
		StudyID:          in.StudyID,
		SourceDocumentID: in.SourceDocumentID,
		Title:            in.Title,
		Description:      in.Description,
		Category:         in.Category,
		Severity:         in.Severity,
		Status:           StatusNew,
		AssignedTo:       in.AssignedTo,
		CreatedBy:        actor.UserID,
		DueDate:          in.DueDate,
		SLADeadline:      &deadline,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	item.EscalationLevel = s.engine.EscalationLevel(item.SLA(), &targets.EscalationHours)

	created := fieldEntry(item.ID, actor, "", nil, nil, strPtr(CreatedComment), now)
	created.ID = s.newID()

	if err := s.store.CreateItem(ctx, item, []AuditEntry{created}); err != nil {
		return nil, fmt.Errorf("create action item: %w", err)
	}
	return &item, nil
}

// =============================================================================
// MUTATIONS
// =============================================================================

// TransitionStatus moves an item through the state machine.
func (s *Service) TransitionStatus(ctx context.Context, id string, to Status, actor Identity, comment *string) (*ActionItem, error) {
	return s.mutate(ctx, id, func(item *ActionItem) ([]AuditEntry, error) {
		e, err := Transition(item, to, actor, comment, s.engine.Clock.Now())
		if err != nil {
			return nil, err
		}
		return []AuditEntry{e}, nil
	})
}

// ApplyFieldEdits applies free-form edits, one audit entry per changed field.
func (s *Service) ApplyFieldEdits(ctx context.Context, id string, changes FieldChanges, actor Identity, comment *string) (*ActionItem, error) {
	return s.mutate(ctx, id, func(item *ActionItem) ([]AuditEntry, error) {
		return ApplyEdits(item, changes, actor, comment, s.engine.Clock.Now())
	})
}

// Update applies field edits and, when status is set and differs from the
// current one, a transition. Both land in one write or not at all.
func (s *Service) Update(ctx context.Context, id string, changes FieldChanges, status *Status, actor Identity, comment *string) (*ActionItem, error) {
	return s.mutate(ctx, id, func(item *ActionItem) ([]AuditEntry, error) {
		now := s.engine.Clock.Now()
		entries, err := ApplyEdits(item, changes, actor, comment, now)
		if err != nil {
			return nil, err
		}
		if status == nil || *status == item.Status {
			return entries, nil
		}
		e, err := Transition(item, *status, actor, comment, now)
		if err != nil {
			return nil, err
		}
		// the transition entry carries the comment
		if len(entries) == 1 && entries[0].FieldChanged == nil {
			entries = nil
		}
		return append(entries, e), nil
	})
}

// DeleteItem removes an item and its audit trail. Only new items can go.
func (s *Service) DeleteItem(ctx context.Context, id string) error {
	item, err := s.store.GetItem(ctx, id)
	if err != nil {
		return err
	}
	if item.Status != StatusNew {
		return invalid("status", "only new action items can be deleted (status is %s)", item.Status)
	}
	return s.store.DeleteItem(ctx, id)
}

func (s *Service) mutate(ctx context.Context, id string, apply func(*ActionItem) ([]AuditEntry, error)) (*ActionItem, error) {
	current, err := s.store.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}

	item := *current
	entries, err := apply(&item)
	if err != nil {
		return nil, err
	}

	targets, err := s.targets(ctx, item.Category, item.Severity)
	if err != nil {
		return nil, err
	}
	item.EscalationLevel = s.engine.EscalationLevel(item.SLA(), &targets.EscalationHours)

	for i := range entries {
		entries[i].ID = s.newID()
	}
	if err := s.store.UpdateItem(ctx, item, current.UpdatedAt, entries); err != nil {
		return nil, fmt.Errorf("update action item %s: %w", id, err)
	}
	return &item, nil
}

// =============================================================================
// ESCALATION REFRESH
// =============================================================================

// Escalation describes one item whose level changed during a refresh.
type Escalation struct {
	ItemID     string
	Title      string
	From, To   int
	EscalateTo string
}

// RefreshEscalation re-evaluates every open item against the current clock
// and persists the levels that changed.
func (s *Service) RefreshEscalation(ctx context.Context) ([]Escalation, error) {
	items, _, err := s.store.ListItems(ctx, Filter{OpenOnly: true})
	if err != nil {
		return nil, fmt.Errorf("list open items: %w", err)
	}

	var changed []Escalation
	levels := make(map[string]int)
	for i := range items {
		item := &items[i]
		targets, err := s.targets(ctx, item.Category, item.Severity)
		if err != nil {
			return nil, err
		}
		level := s.engine.EscalationLevel(item.SLA(), &targets.EscalationHours)
		if level == item.EscalationLevel {
			continue
		}
		levels[item.ID] = level
		changed = append(changed, Escalation{
			ItemID:     item.ID,
			Title:      item.Title,
			From:       item.EscalationLevel,
			To:         level,
			EscalateTo: targets.EscalateTo,
		})
	}

	if len(levels) == 0 {
		return nil, nil
	}
	if err := s.store.UpdateEscalationLevels(ctx, levels); err != nil {
		return nil, fmt.Errorf("update escalation levels: %w", err)
	}
	return changed, nil
}

// =============================================================================
// READS
// =============================================================================

func (s *Service) Get(ctx context.Context, id string) (*ActionItem, error) {
	return s.store.GetItem(ctx, id)
}

// List returns a page of items. Overdue filtering uses the engine clock.
func (s *Service) List(ctx context.Context, f Filter) ([]ActionItem, int, error) {
	if f.OverdueOnly {
		f.OverdueAt = s.engine.Clock.Now()
	}
	return s.store.ListItems(ctx, f)
}

// AuditTrail returns the item's audit entries, oldest first.
func (s *Service) AuditTrail(ctx context.Context, id string) ([]AuditEntry, error) {
	if _, err := s.store.GetItem(ctx, id); err != nil {
		return nil, err
	}
	return s.store.AuditTrail(ctx, id)
}

func (s *Service) IsOverdue(item *ActionItem) bool {
	return s.engine.IsOverdue(item.SLA())
}

func (s *Service) DaysUntilDeadline(item *ActionItem) *float64 {
	return s.engine.DaysUntilDeadline(item.SLA())
}

func (s *Service) targets(ctx context.Context, category sla.Category, severity sla.Severity) (sla.Targets, error) {
	rule, err := s.rules.FindRule(ctx, category, severity)
	if err != nil {
		return sla.Targets{}, fmt.Errorf("find sla rule: %w", err)
	}
	return sla.TargetsFor(rule, severity), nil
}
