package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/warp/action-tracker/sla"
)

// =============================================================================
// SLA RULE STORE (sla.RuleSource interface)
// =============================================================================

var _ sla.RuleSource = (*Store)(nil)

// ErrRuleConflict is returned when a second active rule targets the same
// (category, severity).
var ErrRuleConflict = errors.New("an active rule already exists for this category and severity")

const ruleColumns = `id, category, severity, resolution_hours, escalation_hours, escalate_to, active, created_at, updated_at`

// FindRule returns the best active rule: an exact category match before a
// wildcard (NULL category). It returns nil, nil when none applies.
func (s *Store) FindRule(ctx context.Context, category sla.Category, severity sla.Severity) (*sla.PolicyRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT ` + ruleColumns + `
		FROM sla_rules
		WHERE active AND severity = ? AND (category = ? OR category IS NULL)
		ORDER BY category IS NULL ASC
		LIMIT 1
	`
	row := s.db.QueryRowContext(ctx, query, severity.String(), category.String())
	r, err := scanRule(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find sla rule: %w", err)
	}
	return &r, nil
}

// SaveRule inserts or replaces a rule by id.
func (s *Store) SaveRule(ctx context.Context, r sla.PolicyRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return saveRule(ctx, s.db, r)
}

// ReplaceRules swaps the whole rule set atomically. Used when loading a
// rule file at startup.
func (s *Store) ReplaceRules(ctx context.Context, rules []sla.PolicyRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM sla_rules"); err != nil {
		return err
	}
	for _, r := range rules {
		if err := saveRule(ctx, tx, r); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ListRules returns rules in creation order.
func (s *Store) ListRules(ctx context.Context, activeOnly bool) ([]sla.PolicyRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT " + ruleColumns + " FROM sla_rules"
	if activeOnly {
		query += " WHERE active"
	}
	query += " ORDER BY created_at ASC, id ASC"

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query sla rules: %w", err)
	}
	defer rows.Close()

	var rules []sla.PolicyRule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

func saveRule(ctx context.Context, db execer, r sla.PolicyRule) error {
	var category sql.NullString
	if r.Category != nil {
		category = nullString(r.Category.String())
	}
	now := time.Now().UTC()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}

	query := `
		INSERT INTO sla_rules (` + ruleColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			category = excluded.category,
			severity = excluded.severity,
			resolution_hours = excluded.resolution_hours,
			escalation_hours = excluded.escalation_hours,
			escalate_to = excluded.escalate_to,
			active = excluded.active,
			updated_at = excluded.updated_at
	`
	_, err := db.ExecContext(ctx, query,
		r.ID, category, r.Severity.String(), r.ResolutionHours, r.EscalationHours,
		r.EscalateTo, r.Active, formatTime(r.CreatedAt), formatTime(now),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: rule %s", ErrRuleConflict, r.ID)
		}
		return fmt.Errorf("failed to save sla rule: %w", err)
	}
	return nil
}

func scanRule(row scanner) (sla.PolicyRule, error) {
	var r sla.PolicyRule
	var category sql.NullString
	var severity, createdAt, updatedAt string

	if err := row.Scan(&r.ID, &category, &severity, &r.ResolutionHours, &r.EscalationHours,
		&r.EscalateTo, &r.Active, &createdAt, &updatedAt); err != nil {
		return r, err
	}

	var err error
	if r.Severity, err = sla.ParseSeverity(severity); err != nil {
		return r, err
	}
	if category.Valid {
		c, err := sla.ParseCategory(category.String)
		if err != nil {
			return r, err
		}
		r.Category = &c
	}
	r.CreatedAt = parseTime(createdAt)
	r.UpdatedAt = parseTime(updatedAt)
	return r, nil
}
