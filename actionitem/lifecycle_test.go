package actionitem_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/action-tracker/actionitem"
	"github.com/warp/action-tracker/sla"
)

var (
	t0    = time.Date(2026, time.October, 19, 9, 0, 0, 0, time.UTC)
	alice = actionitem.Identity{UserID: "alice", Role: "study_coordinator"}
	bob   = actionitem.Identity{UserID: "bob", Role: "quality"}
)

func strPtr(s string) *string { return &s }

func itemIn(status actionitem.Status) *actionitem.ActionItem {
	return &actionitem.ActionItem{
		ID:        "item-1",
		StudyID:   "study-1",
		Title:     "Missing signature on ICF v3",
		Category:  sla.CategoryConsentICF,
		Severity:  sla.SeverityMajor,
		Status:    status,
		CreatedBy: "alice",
		CreatedAt: t0,
		UpdatedAt: t0,
	}
}

// =============================================================================
// TRANSITION TABLE
// =============================================================================

func TestTransition_EveryPair(t *testing.T) {
	allowed := map[actionitem.Status]map[actionitem.Status]bool{
		actionitem.StatusNew:             {actionitem.StatusInProgress: true},
		actionitem.StatusInProgress:      {actionitem.StatusWaitingExternal: true, actionitem.StatusDone: true},
		actionitem.StatusWaitingExternal: {actionitem.StatusInProgress: true, actionitem.StatusDone: true},
		actionitem.StatusDone:            {actionitem.StatusVerified: true, actionitem.StatusInProgress: true},
		actionitem.StatusVerified:        {},
	}

	for _, from := range actionitem.Statuses() {
		for _, to := range actionitem.Statuses() {
			want := allowed[from][to]
			t.Run(string(from)+"->"+string(to), func(t *testing.T) {
				assert.Equal(t, want, actionitem.CanTransition(from, to))

				item := itemIn(from)
				before := *item
				entry, err := actionitem.Transition(item, to, alice, nil, t0.Add(time.Hour))

				if !want {
					var te *actionitem.InvalidTransitionError
					require.True(t, errors.As(err, &te))
					assert.Equal(t, from, te.From)
					assert.Equal(t, to, te.To)
					assert.ErrorIs(t, err, actionitem.ErrInvalidTransition)
					assert.Equal(t, before, *item, "rejected transition must not mutate")
					return
				}
				require.NoError(t, err)
				assert.Equal(t, to, item.Status)
				require.NotNil(t, entry.FieldChanged)
				assert.Equal(t, "status", *entry.FieldChanged)
				assert.Equal(t, string(from), *entry.OldValue)
				assert.Equal(t, string(to), *entry.NewValue)
			})
		}
	}
}

func TestAllowedTransitions_VerifiedIsTerminal(t *testing.T) {
	assert.Empty(t, actionitem.AllowedTransitions(actionitem.StatusVerified))
	assert.ElementsMatch(t,
		[]actionitem.Status{actionitem.StatusVerified, actionitem.StatusInProgress},
		actionitem.AllowedTransitions(actionitem.StatusDone))
}

func TestTransition_UnknownStatusIsValidationError(t *testing.T) {
	item := itemIn(actionitem.StatusNew)
	_, err := actionitem.Transition(item, actionitem.Status("archived"), alice, nil, t0)
	assert.ErrorIs(t, err, actionitem.ErrValidation)
	assert.Equal(t, actionitem.StatusNew, item.Status)
}

// =============================================================================
// SIDE EFFECTS
// =============================================================================

func TestTransition_WaitingExternalToDoneSetsResolvedAt(t *testing.T) {
	item := itemIn(actionitem.StatusWaitingExternal)
	at := t0.Add(30 * time.Hour)

	_, err := actionitem.Transition(item, actionitem.StatusDone, alice, nil, at)

	require.NoError(t, err)
	require.NotNil(t, item.ResolvedAt)
	assert.Equal(t, at, *item.ResolvedAt)
	assert.Equal(t, at, item.UpdatedAt)
}

func TestTransition_ResolvedAtSetOnlyOnce(t *testing.T) {
	// GIVEN: item resolved, reopened, resolved again
	item := itemIn(actionitem.StatusInProgress)
	first := t0.Add(2 * time.Hour)

	_, err := actionitem.Transition(item, actionitem.StatusDone, alice, nil, first)
	require.NoError(t, err)
	_, err = actionitem.Transition(item, actionitem.StatusInProgress, alice, nil, first.Add(time.Hour))
	require.NoError(t, err)

	// THEN: reopening keeps resolved_at
	require.NotNil(t, item.ResolvedAt)
	assert.Equal(t, first, *item.ResolvedAt)

	_, err = actionitem.Transition(item, actionitem.StatusDone, alice, nil, first.Add(5*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, first, *item.ResolvedAt)
}

func TestTransition_VerifiedSetsVerifier(t *testing.T) {
	item := itemIn(actionitem.StatusDone)
	at := t0.Add(48 * time.Hour)

	entry, err := actionitem.Transition(item, actionitem.StatusVerified, bob, strPtr("checked against source"), at)

	require.NoError(t, err)
	require.NotNil(t, item.VerifiedAt)
	require.NotNil(t, item.VerifiedBy)
	assert.Equal(t, at, *item.VerifiedAt)
	assert.Equal(t, "bob", *item.VerifiedBy)
	assert.Equal(t, "bob", entry.UserID)
	require.NotNil(t, entry.Comment)
	assert.Equal(t, "checked against source", *entry.Comment)
}

func TestTransition_CommentTooLong(t *testing.T) {
	item := itemIn(actionitem.StatusNew)
	long := strings.Repeat("x", actionitem.MaxCommentLength+1)

	_, err := actionitem.Transition(item, actionitem.StatusInProgress, alice, &long, t0)

	assert.ErrorIs(t, err, actionitem.ErrValidation)
	assert.Equal(t, actionitem.StatusNew, item.Status)
}

// =============================================================================
// FIELD EDITS
// =============================================================================

func TestApplyEdits_OneEntryPerChangedField(t *testing.T) {
	item := itemIn(actionitem.StatusInProgress)
	deadline := t0.Add(40 * time.Hour)
	item.SLADeadline = &deadline

	crit := sla.SeverityCritical
	same := sla.CategoryConsentICF
	due := time.Date(2026, time.November, 2, 0, 0, 0, 0, time.UTC)

	entries, err := actionitem.ApplyEdits(item, actionitem.FieldChanges{
		Title:      strPtr("Missing signature on ICF v4"),
		Category:   &same,
		Severity:   &crit,
		AssignedTo: strPtr("carol"),
		DueDate:    &due,
	}, alice, strPtr("site call"), t0.Add(time.Hour))

	require.NoError(t, err)
	fields := make([]string, 0, len(entries))
	for _, e := range entries {
		require.NotNil(t, e.FieldChanged)
		fields = append(fields, *e.FieldChanged)
		assert.Equal(t, "site call", *e.Comment)
	}
	assert.Equal(t, []string{"title", "severity", "assigned_to", "due_date"}, fields)

	assert.Equal(t, "major", *entries[1].OldValue)
	assert.Equal(t, "critical", *entries[1].NewValue)
	assert.Nil(t, entries[2].OldValue)
	assert.Equal(t, "2026-11-02T00:00:00Z", *entries[3].NewValue)

	// severity change leaves the deadline alone
	assert.Equal(t, deadline, *item.SLADeadline)
	assert.Equal(t, sla.SeverityCritical, item.Severity)
	assert.Equal(t, actionitem.StatusInProgress, item.Status)
}

func TestApplyEdits_ClearingFields(t *testing.T) {
	item := itemIn(actionitem.StatusNew)
	due := t0.AddDate(0, 0, 7)
	item.AssignedTo = strPtr("carol")
	item.DueDate = &due
	item.Description = strPtr("old")

	entries, err := actionitem.ApplyEdits(item, actionitem.FieldChanges{
		AssignedTo:   strPtr(""),
		Description:  strPtr(""),
		ClearDueDate: true,
	}, alice, nil, t0)

	require.NoError(t, err)
	assert.Len(t, entries, 3)
	assert.Nil(t, item.AssignedTo)
	assert.Nil(t, item.DueDate)
	assert.Nil(t, item.Description)
	for _, e := range entries {
		assert.NotNil(t, e.OldValue)
		assert.Nil(t, e.NewValue)
	}
}

func TestApplyEdits_NoChanges(t *testing.T) {
	item := itemIn(actionitem.StatusNew)
	title := item.Title

	entries, err := actionitem.ApplyEdits(item, actionitem.FieldChanges{Title: &title, Description: strPtr("")}, alice, nil, t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Equal(t, t0, item.UpdatedAt)

	entries, err = actionitem.ApplyEdits(item, actionitem.FieldChanges{}, alice, strPtr("called the site"), t0.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Nil(t, entries[0].FieldChanged)
	assert.Equal(t, "called the site", *entries[0].Comment)
}

func TestApplyEdits_Validation(t *testing.T) {
	cases := map[string]actionitem.FieldChanges{
		"blank title":  {Title: strPtr("   ")},
		"long title":   {Title: strPtr(strings.Repeat("é", actionitem.MaxTitleLength+1))},
		"bad severity": {Severity: func() *sla.Severity { s := sla.Severity(42); return &s }()},
		"bad category": {Category: func() *sla.Category { c := sla.Category(99); return &c }()},
	}
	for name, changes := range cases {
		t.Run(name, func(t *testing.T) {
			item := itemIn(actionitem.StatusNew)
			before := *item
			_, err := actionitem.ApplyEdits(item, changes, alice, nil, t0)
			assert.ErrorIs(t, err, actionitem.ErrValidation)
			assert.Equal(t, before, *item)
		})
	}

	item := itemIn(actionitem.StatusNew)
	_, err := actionitem.ApplyEdits(item, actionitem.FieldChanges{Title: strPtr(strings.Repeat("é", actionitem.MaxTitleLength))}, alice, nil, t0)
	assert.NoError(t, err, "limit counts characters, not bytes")
}
