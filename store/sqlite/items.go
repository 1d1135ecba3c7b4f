package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/warp/action-tracker/actionitem"
	"github.com/warp/action-tracker/sla"
)

// =============================================================================
// ACTION ITEM STORE (actionitem.Store interface)
// =============================================================================

var _ actionitem.Store = (*Store)(nil)

const itemColumns = `id, study_id, source_document_id, title, description, category, severity, status,
	assigned_to, created_by, due_date, sla_deadline, escalation_level,
	resolved_at, verified_at, verified_by, created_at, updated_at`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) StudyExists(ctx context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM studies WHERE id = ?", id).Scan(&count)
	return count > 0, err
}

// CreateItem inserts the item and its audit entries atomically.
func (s *Store) CreateItem(ctx context.Context, item actionitem.ActionItem, entries []actionitem.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `INSERT INTO action_items (` + itemColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = tx.ExecContext(ctx, query,
		item.ID, item.StudyID, nullStringPtr(item.SourceDocumentID),
		item.Title, nullStringPtr(item.Description),
		item.Category.String(), item.Severity.String(), string(item.Status),
		nullStringPtr(item.AssignedTo), item.CreatedBy,
		nullTime(item.DueDate), nullTime(item.SLADeadline), item.EscalationLevel,
		nullTime(item.ResolvedAt), nullTime(item.VerifiedAt), nullStringPtr(item.VerifiedBy),
		formatTime(item.CreatedAt), formatTime(item.UpdatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: action item %s exists", actionitem.ErrConflict, item.ID)
		}
		if isForeignKeyError(err) {
			return fmt.Errorf("%w: %s", actionitem.ErrStudyNotFound, item.StudyID)
		}
		return fmt.Errorf("failed to insert action item: %w", err)
	}

	if err := insertAuditEntries(ctx, tx, entries); err != nil {
		return err
	}
	return tx.Commit()
}

// UpdateItem rewrites the mutable columns when updated_at still matches.
func (s *Store) UpdateItem(ctx context.Context, item actionitem.ActionItem, expectedUpdatedAt time.Time, entries []actionitem.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		UPDATE action_items SET
			title = ?, description = ?, category = ?, severity = ?, status = ?,
			assigned_to = ?, due_date = ?, escalation_level = ?,
			resolved_at = ?, verified_at = ?, verified_by = ?, updated_at = ?
		WHERE id = ? AND updated_at = ?
	`
	res, err := tx.ExecContext(ctx, query,
		item.Title, nullStringPtr(item.Description),
		item.Category.String(), item.Severity.String(), string(item.Status),
		nullStringPtr(item.AssignedTo), nullTime(item.DueDate), item.EscalationLevel,
		nullTime(item.ResolvedAt), nullTime(item.VerifiedAt), nullStringPtr(item.VerifiedBy),
		formatTime(item.UpdatedAt),
		item.ID, formatTime(expectedUpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to update action item: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var exists int
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM action_items WHERE id = ?", item.ID).Scan(&exists); err != nil {
			return err
		}
		if exists == 0 {
			return actionitem.ErrNotFound
		}
		return actionitem.ErrConcurrentModification
	}

	if err := insertAuditEntries(ctx, tx, entries); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) UpdateEscalationLevels(ctx context.Context, levels map[string]int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, "UPDATE action_items SET escalation_level = ? WHERE id = ?")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for id, level := range levels {
		if _, err := stmt.ExecContext(ctx, level, id); err != nil {
			return fmt.Errorf("failed to update escalation level of %s: %w", id, err)
		}
	}
	return tx.Commit()
}

func (s *Store) GetItem(ctx context.Context, id string) (*actionitem.ActionItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, "SELECT "+itemColumns+" FROM action_items WHERE id = ?", id)
	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, actionitem.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load action item: %w", err)
	}
	return &item, nil
}

// itemOrder mirrors actionitem.ListsBefore. Severity is stored as text, so
// it is ranked explicitly.
const itemOrder = `
	CASE severity
		WHEN 'critical' THEN 0
		WHEN 'major' THEN 1
		WHEN 'minor' THEN 2
		ELSE 3
	END ASC,
	sla_deadline IS NULL ASC,
	sla_deadline ASC,
	created_at DESC,
	id ASC`

func (s *Store) ListItems(ctx context.Context, f actionitem.Filter) ([]actionitem.ActionItem, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	where, args := filterClause(f)

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM action_items"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count action items: %w", err)
	}

	query := "SELECT " + itemColumns + " FROM action_items" + where + " ORDER BY " + itemOrder
	if f.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, f.Limit, f.Offset)
	} else if f.Offset > 0 {
		query += " LIMIT -1 OFFSET ?"
		args = append(args, f.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query action items: %w", err)
	}
	defer rows.Close()

	var items []actionitem.ActionItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, item)
	}
	return items, total, rows.Err()
}

// DeleteItem removes the item; its audit entries go with it (ON DELETE CASCADE).
func (s *Store) DeleteItem(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM action_items WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete action item: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return actionitem.ErrNotFound
	}
	return nil
}

func (s *Store) AuditTrail(ctx context.Context, id string) ([]actionitem.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, action_item_id, user_id, field_changed, old_value, new_value, comment, created_at
		FROM action_item_updates
		WHERE action_item_id = ?
		ORDER BY created_at ASC, rowid ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit trail: %w", err)
	}
	defer rows.Close()

	var entries []actionitem.AuditEntry
	for rows.Next() {
		var e actionitem.AuditEntry
		var field, oldValue, newValue, comment sql.NullString
		var createdAt string
		if err := rows.Scan(&e.ID, &e.ActionItemID, &e.UserID, &field, &oldValue, &newValue, &comment, &createdAt); err != nil {
			return nil, err
		}
		e.FieldChanged = stringPtr(field)
		e.OldValue = stringPtr(oldValue)
		e.NewValue = stringPtr(newValue)
		e.Comment = stringPtr(comment)
		e.CreatedAt = parseTime(createdAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

func insertAuditEntries(ctx context.Context, db execer, entries []actionitem.AuditEntry) error {
	query := `
		INSERT INTO action_item_updates
		(id, action_item_id, user_id, field_changed, old_value, new_value, comment, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	for _, e := range entries {
		_, err := db.ExecContext(ctx, query,
			e.ID, e.ActionItemID, e.UserID,
			nullStringPtr(e.FieldChanged), nullStringPtr(e.OldValue), nullStringPtr(e.NewValue),
			nullStringPtr(e.Comment), formatTime(e.CreatedAt),
		)
		if err != nil {
			return fmt.Errorf("failed to append audit entry: %w", err)
		}
	}
	return nil
}

func filterClause(f actionitem.Filter) (string, []any) {
	var conds []string
	var args []any

	if f.StudyID != "" {
		conds = append(conds, "study_id = ?")
		args = append(args, f.StudyID)
	}
	if f.Status != nil {
		conds = append(conds, "status = ?")
		args = append(args, string(*f.Status))
	}
	if f.Category != nil {
		conds = append(conds, "category = ?")
		args = append(args, f.Category.String())
	}
	if f.Severity != nil {
		conds = append(conds, "severity = ?")
		args = append(args, f.Severity.String())
	}
	if f.AssignedTo != "" {
		conds = append(conds, "assigned_to = ?")
		args = append(args, f.AssignedTo)
	}
	if f.OpenOnly || f.OverdueOnly {
		conds = append(conds, "status NOT IN ('done', 'verified')")
	}
	if f.OverdueOnly {
		conds = append(conds, "sla_deadline IS NOT NULL AND sla_deadline < ?")
		args = append(args, formatTime(f.OverdueAt))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func scanItem(row scanner) (actionitem.ActionItem, error) {
	var item actionitem.ActionItem
	var sourceDoc, description, assignedTo, verifiedBy sql.NullString
	var dueDate, deadline, resolvedAt, verifiedAt sql.NullString
	var category, severity, status, createdAt, updatedAt string

	err := row.Scan(
		&item.ID, &item.StudyID, &sourceDoc, &item.Title, &description,
		&category, &severity, &status,
		&assignedTo, &item.CreatedBy, &dueDate, &deadline, &item.EscalationLevel,
		&resolvedAt, &verifiedAt, &verifiedBy, &createdAt, &updatedAt,
	)
	if err != nil {
		return item, err
	}

	if item.Category, err = sla.ParseCategory(category); err != nil {
		return item, fmt.Errorf("action item %s: %w", item.ID, err)
	}
	if item.Severity, err = sla.ParseSeverity(severity); err != nil {
		return item, fmt.Errorf("action item %s: %w", item.ID, err)
	}
	item.Status = actionitem.Status(status)
	item.SourceDocumentID = stringPtr(sourceDoc)
	item.Description = stringPtr(description)
	item.AssignedTo = stringPtr(assignedTo)
	item.VerifiedBy = stringPtr(verifiedBy)
	item.DueDate = timePtr(dueDate)
	item.SLADeadline = timePtr(deadline)
	item.ResolvedAt = timePtr(resolvedAt)
	item.VerifiedAt = timePtr(verifiedAt)
	item.CreatedAt = parseTime(createdAt)
	item.UpdatedAt = parseTime(updatedAt)
	return item, nil
}

func isForeignKeyError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}
