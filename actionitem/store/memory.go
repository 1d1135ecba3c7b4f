// Package store provides in-process actionitem.Store implementations.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/warp/action-tracker/actionitem"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu      sync.RWMutex
	items   map[string]actionitem.ActionItem
	audit   map[string][]actionitem.AuditEntry
	studies map[string]bool
}

func NewMemory() *Memory {
	return &Memory{
		items:   make(map[string]actionitem.ActionItem),
		audit:   make(map[string][]actionitem.AuditEntry),
		studies: make(map[string]bool),
	}
}

// AddStudy registers a study id so items can reference it.
func (m *Memory) AddStudy(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.studies[id] = true
}

func (m *Memory) StudyExists(_ context.Context, id string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.studies[id], nil
}

func (m *Memory) CreateItem(_ context.Context, item actionitem.ActionItem, entries []actionitem.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.items[item.ID]; exists {
		return actionitem.ErrConflict
	}
	m.items[item.ID] = item
	m.audit[item.ID] = append([]actionitem.AuditEntry(nil), entries...)
	return nil
}

func (m *Memory) UpdateItem(_ context.Context, item actionitem.ActionItem, expectedUpdatedAt time.Time, entries []actionitem.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.items[item.ID]
	if !ok {
		return actionitem.ErrNotFound
	}
	if !stored.UpdatedAt.Equal(expectedUpdatedAt) {
		return actionitem.ErrConcurrentModification
	}
	m.items[item.ID] = item
	m.audit[item.ID] = append(m.audit[item.ID], entries...)
	return nil
}

func (m *Memory) UpdateEscalationLevels(_ context.Context, levels map[string]int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, level := range levels {
		item, ok := m.items[id]
		if !ok {
			continue
		}
		item.EscalationLevel = level
		m.items[id] = item
	}
	return nil
}

func (m *Memory) GetItem(_ context.Context, id string) (*actionitem.ActionItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	item, ok := m.items[id]
	if !ok {
		return nil, actionitem.ErrNotFound
	}
	return &item, nil
}

func (m *Memory) ListItems(_ context.Context, f actionitem.Filter) ([]actionitem.ActionItem, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []actionitem.ActionItem
	for _, item := range m.items {
		if f.Matches(&item) {
			matched = append(matched, item)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return actionitem.ListsBefore(&matched[i], &matched[j])
	})

	total := len(matched)
	if f.Offset > 0 {
		if f.Offset >= len(matched) {
			return nil, total, nil
		}
		matched = matched[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(matched) {
		matched = matched[:f.Limit]
	}
	return matched, total, nil
}

func (m *Memory) DeleteItem(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.items[id]; !ok {
		return actionitem.ErrNotFound
	}
	delete(m.items, id)
	delete(m.audit, id)
	return nil
}

func (m *Memory) AuditTrail(_ context.Context, id string) ([]actionitem.AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]actionitem.AuditEntry, len(m.audit[id]))
	copy(out, m.audit[id])
	return out, nil
}

var _ actionitem.Store = (*Memory)(nil)
