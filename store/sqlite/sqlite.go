/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Persists studies, action items, their audit trail and SLA policy rules.
  The action-item service and the escalation scheduler talk to it through
  actionitem.Store and sla.RuleSource; the API uses the study and rule
  methods directly.

INTERFACES IMPLEMENTED:
  actionitem.Store: items + audit trail (items.go)
  sla.RuleSource:   policy rule lookup (rules.go)

KEY TABLES:
  studies:             trials; protocol_number is unique
  action_items:        the unit of work
  action_item_updates: append-only audit trail, ON DELETE CASCADE
  sla_rules:           policy overrides, one active rule per (category, severity)

TIMESTAMPS:
  Stored as UTC text with fixed-width nanoseconds so that string order is
  time order. Range filters (overdue, listing order) compare the text.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. Item writes and their audit entries
  share one SQL transaction. Updates are optimistic on updated_at.

MIGRATION:
  Versioned migrations are embedded (migrations/*.sql) and applied with
  golang-migrate on New().

USAGE:
  store, err := sqlite.New("./data/tracker.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := actionitem.NewService(store, engine, store)

SEE ALSO:
  - actionitem/store.go: interface contract
  - actionitem/store/memory.go: in-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// timeLayout sorts lexically in time order for UTC values.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrStudyExists is returned when a protocol number is already registered.
var ErrStudyExists = errors.New("study with this protocol number already exists")

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one connection: an in-memory database exists per connection, and
	// SQLite serializes writers anyway
	db.SetMaxOpenConns(1)

	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// =============================================================================
// STUDY STORE
// =============================================================================

type StudyStatus string

const (
	StudyActive    StudyStatus = "active"
	StudyClosed    StudyStatus = "closed"
	StudySuspended StudyStatus = "suspended"
	StudyInStartup StudyStatus = "in_startup"
)

func (s StudyStatus) Valid() bool {
	switch s {
	case StudyActive, StudyClosed, StudySuspended, StudyInStartup:
		return true
	}
	return false
}

// Study represents a clinical trial.
type Study struct {
	ID             string
	ProtocolNumber string
	ShortName      string
	FullTitle      string
	Sponsor        string
	Phase          string
	Status         StudyStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// CreateStudy inserts a study, assigning an id when empty.
func (s *Store) CreateStudy(ctx context.Context, st Study) (*Study, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st.ID == "" {
		st.ID = uuid.NewString()
	}
	if st.Status == "" {
		st.Status = StudyActive
	}
	now := time.Now().UTC()
	st.CreatedAt, st.UpdatedAt = now, now

	query := `
		INSERT INTO studies (id, protocol_number, short_name, full_title, sponsor, phase, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		st.ID, st.ProtocolNumber, st.ShortName, st.FullTitle, st.Sponsor,
		nullString(st.Phase), st.Status, formatTime(now), formatTime(now),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return nil, fmt.Errorf("%w: %s", ErrStudyExists, st.ProtocolNumber)
		}
		return nil, fmt.Errorf("failed to create study: %w", err)
	}
	return &st, nil
}

const studyColumns = `id, protocol_number, short_name, full_title, sponsor, phase, status, created_at, updated_at`

// GetStudy returns nil, nil when the study does not exist.
func (s *Store) GetStudy(ctx context.Context, id string) (*Study, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, "SELECT "+studyColumns+" FROM studies WHERE id = ?", id)
	st, err := scanStudy(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// StudyFilter selects studies for listing. Zero values mean "no filter".
// Sponsor and Search are case-insensitive substring matches; Search looks
// at the protocol number and the short name.
type StudyFilter struct {
	Status  StudyStatus
	Sponsor string
	Search  string
	Limit   int
	Offset  int
}

// ListStudies returns one page of studies ordered by protocol number, plus
// the total number of matches ignoring Limit/Offset.
func (s *Store) ListStudies(ctx context.Context, f StudyFilter) ([]Study, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var conds []string
	var args []any
	if f.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, f.Status)
	}
	if f.Sponsor != "" {
		conds = append(conds, `sponsor LIKE ? ESCAPE '\'`)
		args = append(args, containsPattern(f.Sponsor))
	}
	if f.Search != "" {
		conds = append(conds, `(protocol_number LIKE ? ESCAPE '\' OR short_name LIKE ? ESCAPE '\')`)
		p := containsPattern(f.Search)
		args = append(args, p, p)
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM studies"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count studies: %w", err)
	}

	query := "SELECT " + studyColumns + " FROM studies" + where + " ORDER BY protocol_number"
	if f.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, f.Limit, f.Offset)
	} else if f.Offset > 0 {
		query += " LIMIT -1 OFFSET ?"
		args = append(args, f.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query studies: %w", err)
	}
	defer rows.Close()

	var studies []Study
	for rows.Next() {
		st, err := scanStudy(rows)
		if err != nil {
			return nil, 0, err
		}
		studies = append(studies, st)
	}
	return studies, total, rows.Err()
}

// StudyChanges is a partial update. Nil fields are left untouched; an empty
// Phase clears it.
type StudyChanges struct {
	ProtocolNumber *string
	ShortName      *string
	FullTitle      *string
	Sponsor        *string
	Phase          *string
	Status         *StudyStatus
}

// UpdateStudy applies c to the study. A protocol number already used by
// another study fails with ErrStudyExists.
func (s *Store) UpdateStudy(ctx context.Context, id string, c StudyChanges) (*Study, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := scanStudy(s.db.QueryRowContext(ctx, "SELECT "+studyColumns+" FROM studies WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, ErrStudyNotFound
	}
	if err != nil {
		return nil, err
	}

	set := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	set(&st.ProtocolNumber, c.ProtocolNumber)
	set(&st.ShortName, c.ShortName)
	set(&st.FullTitle, c.FullTitle)
	set(&st.Sponsor, c.Sponsor)
	set(&st.Phase, c.Phase)
	if c.Status != nil {
		st.Status = *c.Status
	}
	st.UpdatedAt = time.Now().UTC()

	_, err = s.db.ExecContext(ctx, `
		UPDATE studies
		SET protocol_number = ?, short_name = ?, full_title = ?, sponsor = ?, phase = ?, status = ?, updated_at = ?
		WHERE id = ?`,
		st.ProtocolNumber, st.ShortName, st.FullTitle, st.Sponsor, nullString(st.Phase), st.Status,
		formatTime(st.UpdatedAt), id,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return nil, fmt.Errorf("%w: %s", ErrStudyExists, st.ProtocolNumber)
		}
		return nil, fmt.Errorf("failed to update study: %w", err)
	}
	return &st, nil
}

// CloseStudy marks a study closed. It fails with ErrStudyHasOpenItems while
// the study still has open action items.
func (s *Store) CloseStudy(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var open int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM action_items
		WHERE study_id = ? AND status NOT IN ('done', 'verified')`, id).Scan(&open)
	if err != nil {
		return err
	}
	if open > 0 {
		return &OpenItemsError{StudyID: id, Open: open}
	}

	res, err := s.db.ExecContext(ctx,
		"UPDATE studies SET status = ?, updated_at = ? WHERE id = ?",
		StudyClosed, formatTime(time.Now()), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrStudyNotFound
	}
	return nil
}

// ErrStudyNotFound is returned by study mutations for unknown ids.
var ErrStudyNotFound = errors.New("study not found")

// ErrStudyHasOpenItems is the sentinel behind OpenItemsError.
var ErrStudyHasOpenItems = errors.New("study has open action items")

type OpenItemsError struct {
	StudyID string
	Open    int
}

func (e *OpenItemsError) Error() string {
	return fmt.Sprintf("cannot close study %s with %d open action items", e.StudyID, e.Open)
}

func (e *OpenItemsError) Unwrap() error { return ErrStudyHasOpenItems }

type scanner interface {
	Scan(dest ...any) error
}

func scanStudy(row scanner) (Study, error) {
	var st Study
	var phase sql.NullString
	var createdAt, updatedAt string
	if err := row.Scan(&st.ID, &st.ProtocolNumber, &st.ShortName, &st.FullTitle, &st.Sponsor,
		&phase, &st.Status, &createdAt, &updatedAt); err != nil {
		return Study{}, err
	}
	st.Phase = phase.String
	st.CreatedAt = parseTime(createdAt)
	st.UpdatedAt = parseTime(updatedAt)
	return st, nil
}

// =============================================================================
// MAINTENANCE
// =============================================================================

// Reset clears all data (for testing/demo purposes).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"action_item_updates", "action_items", "sla_rules", "studies"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to reset %s: %w", table, err)
		}
	}
	return nil
}

// Helper functions

// containsPattern builds a LIKE pattern matching s anywhere, with LIKE
// wildcards in s taken literally.
func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullStringPtr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func timePtr(ns sql.NullString) *time.Time {
	if !ns.Valid {
		return nil
	}
	t := parseTime(ns.String)
	return &t
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}
