/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the domain model from the wire contract: enums travel as their names,
  times as RFC 3339 strings, and every derived float is rounded to one
  decimal here and nowhere else.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Wrappers (pagination, errors)

TYPES:
  Action items:
    ActionItemDTO, AuditEntryDTO, CreateActionItemRequest,
    UpdateActionItemRequest, StatusChangeRequest, ActionItemListResponse

  Dashboard:
    StatsDTO, KPIsDTO, BurndownPointDTO, ParetoEntryDTO

  Studies:
    StudyDTO, CreateStudyRequest

VALIDATION:
  Validation is done in handlers and the domain, not in DTOs. DTOs are pure
  data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/policy.go: RuleJSON, the SLA rule wire type
*/
package api

import (
	"time"

	"github.com/warp/action-tracker/actionitem"
	"github.com/warp/action-tracker/dashboard"
	"github.com/warp/action-tracker/sla"
	"github.com/warp/action-tracker/store/sqlite"
)

// =============================================================================
// ACTION ITEMS
// =============================================================================

// ActionItemDTO represents an action item in API responses.
type ActionItemDTO struct {
	ID               string            `json:"id"`
	StudyID          string            `json:"study_id"`
	SourceDocumentID *string           `json:"source_document_id"`
	Title            string            `json:"title"`
	Description      *string           `json:"description"`
	Category         sla.Category      `json:"category"`
	Severity         sla.Severity      `json:"severity"`
	Status           actionitem.Status `json:"status"`
	AssignedTo       *string           `json:"assigned_to"`
	CreatedBy        string            `json:"created_by"`
	DueDate          *string           `json:"due_date"`
	SLADeadline      *string           `json:"sla_deadline"`
	EscalationLevel  int               `json:"escalation_level"`
	ResolvedAt       *string           `json:"resolved_at"`
	VerifiedAt       *string           `json:"verified_at"`
	VerifiedBy       *string           `json:"verified_by"`
	CreatedAt        string            `json:"created_at"`
	UpdatedAt        string            `json:"updated_at"`

	IsOpen            bool     `json:"is_open"`
	IsOverdue         bool     `json:"is_overdue"`
	DaysUntilDeadline *float64 `json:"days_until_deadline"`

	Updates []AuditEntryDTO `json:"updates,omitempty"`
}

// AuditEntryDTO is one line of an item's history.
type AuditEntryDTO struct {
	ID           string  `json:"id"`
	UserID       string  `json:"user_id"`
	FieldChanged *string `json:"field_changed"`
	OldValue     *string `json:"old_value"`
	NewValue     *string `json:"new_value"`
	Comment      *string `json:"comment"`
	CreatedAt    string  `json:"created_at"`
}

// CreateActionItemRequest is the request to create an action item.
// Category defaults to "other" and severity to "minor".
type CreateActionItemRequest struct {
	StudyID          string  `json:"study_id"`
	SourceDocumentID *string `json:"source_document_id"`
	Title            string  `json:"title"`
	Description      *string `json:"description"`
	Category         string  `json:"category"`
	Severity         string  `json:"severity"`
	AssignedTo       *string `json:"assigned_to"`
	DueDate          *string `json:"due_date"`
}

// UpdateActionItemRequest edits fields and optionally moves status in one
// call. Absent fields are left untouched; an empty assigned_to or due_date
// clears it.
type UpdateActionItemRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Category    *string `json:"category"`
	Severity    *string `json:"severity"`
	AssignedTo  *string `json:"assigned_to"`
	DueDate     *string `json:"due_date"`
	Status      *string `json:"status"`
	Comment     *string `json:"comment"`
}

// StatusChangeRequest moves an item through the lifecycle.
type StatusChangeRequest struct {
	Status  string  `json:"status"`
	Comment *string `json:"comment"`
}

// ActionItemListResponse is one page of items.
type ActionItemListResponse struct {
	Items    []ActionItemDTO `json:"items"`
	Total    int             `json:"total"`
	Page     int             `json:"page"`
	PageSize int             `json:"page_size"`
}

// =============================================================================
// DASHBOARD
// =============================================================================

type StatsDTO struct {
	Total                  int            `json:"total"`
	Open                   int            `json:"open"`
	Overdue                int            `json:"overdue"`
	ByStatus               map[string]int `json:"by_status"`
	ByCategory             map[string]int `json:"by_category"`
	BySeverity             map[string]int `json:"by_severity"`
	SLACompliance          float64        `json:"sla_compliance"`
	AverageResolutionHours *float64       `json:"avg_resolution_hours"`
}

type KPIsDTO struct {
	OverdueCount      int            `json:"overdue_count"`
	AgingP90Days      *float64       `json:"aging_p90_days"`
	TotalOpen         int            `json:"total_open"`
	SLACompliance     float64        `json:"sla_compliance"`
	OpenBySeverity    map[string]int `json:"open_by_severity"`
	CreatedLast7Days  int            `json:"created_last_7_days"`
	ResolvedLast7Days int            `json:"resolved_last_7_days"`
}

type BurndownPointDTO struct {
	Date             string `json:"date"`
	OpenItems        int    `json:"open_items"`
	ClosedItems      int    `json:"closed_items"`
	CumulativeClosed int    `json:"cumulative_closed"`
}

type ParetoEntryDTO struct {
	Category             sla.Category `json:"category"`
	Count                int          `json:"count"`
	Percentage           float64      `json:"percentage"`
	CumulativePercentage float64      `json:"cumulative_percentage"`
}

// =============================================================================
// STUDIES / CALENDAR
// =============================================================================

type StudyDTO struct {
	ID             string `json:"id"`
	ProtocolNumber string `json:"protocol_number"`
	ShortName      string `json:"short_name"`
	FullTitle      string `json:"full_title"`
	Sponsor        string `json:"sponsor"`
	Phase          string `json:"phase,omitempty"`
	Status         string `json:"status"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}

type CreateStudyRequest struct {
	ProtocolNumber string `json:"protocol_number"`
	ShortName      string `json:"short_name"`
	FullTitle      string `json:"full_title"`
	Sponsor        string `json:"sponsor"`
	Phase          string `json:"phase"`
	Status         string `json:"status"`
}

// SchedulerStatusDTO describes the escalation scheduler.
type SchedulerStatusDTO struct {
	Enabled       bool    `json:"enabled"`
	Running       bool    `json:"running"`
	CheckInterval string  `json:"check_interval"`
	LastRun       *string `json:"last_run"`
	NextRun       *string `json:"next_run"`
}

// UpdateStudyRequest is a partial study update; absent fields are kept.
type UpdateStudyRequest struct {
	ProtocolNumber *string `json:"protocol_number"`
	ShortName      *string `json:"short_name"`
	FullTitle      *string `json:"full_title"`
	Sponsor        *string `json:"sponsor"`
	Phase          *string `json:"phase"`
	Status         *string `json:"status"`
}

// StudyListResponse is one page of studies.
type StudyListResponse struct {
	Studies  []StudyDTO `json:"studies"`
	Total    int        `json:"total"`
	Page     int        `json:"page"`
	PageSize int        `json:"page_size"`
}

type HolidayDTO struct {
	Date    string `json:"date"`
	Name    string `json:"name"`
	Weekday string `json:"weekday"`
}

// ErrorResponse is the error body for every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERTERS
// =============================================================================

func toActionItemDTO(item *actionitem.ActionItem, svc *actionitem.Service) ActionItemDTO {
	return ActionItemDTO{
		ID:                item.ID,
		StudyID:           item.StudyID,
		SourceDocumentID:  item.SourceDocumentID,
		Title:             item.Title,
		Description:       item.Description,
		Category:          item.Category,
		Severity:          item.Severity,
		Status:            item.Status,
		AssignedTo:        item.AssignedTo,
		CreatedBy:         item.CreatedBy,
		DueDate:           formatTimePtr(item.DueDate),
		SLADeadline:       formatTimePtr(item.SLADeadline),
		EscalationLevel:   item.EscalationLevel,
		ResolvedAt:        formatTimePtr(item.ResolvedAt),
		VerifiedAt:        formatTimePtr(item.VerifiedAt),
		VerifiedBy:        item.VerifiedBy,
		CreatedAt:         formatTime(item.CreatedAt),
		UpdatedAt:         formatTime(item.UpdatedAt),
		IsOpen:            item.IsOpen(),
		IsOverdue:         svc.IsOverdue(item),
		DaysUntilDeadline: dashboard.Round1Ptr(svc.DaysUntilDeadline(item)),
	}
}

func toAuditEntryDTOs(entries []actionitem.AuditEntry) []AuditEntryDTO {
	dtos := make([]AuditEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = AuditEntryDTO{
			ID:           e.ID,
			UserID:       e.UserID,
			FieldChanged: e.FieldChanged,
			OldValue:     e.OldValue,
			NewValue:     e.NewValue,
			Comment:      e.Comment,
			CreatedAt:    formatTime(e.CreatedAt),
		}
	}
	return dtos
}

func toStatsDTO(s dashboard.Stats) StatsDTO {
	dto := StatsDTO{
		Total:                  s.Total,
		Open:                   s.Open,
		Overdue:                s.Overdue,
		ByStatus:               make(map[string]int, len(s.ByStatus)),
		ByCategory:             make(map[string]int, len(s.ByCategory)),
		BySeverity:             make(map[string]int, len(s.BySeverity)),
		SLACompliance:          dashboard.Round1(s.SLACompliance),
		AverageResolutionHours: dashboard.Round1Ptr(s.AverageResolutionHours),
	}
	for k, v := range s.ByStatus {
		dto.ByStatus[string(k)] = v
	}
	for k, v := range s.ByCategory {
		dto.ByCategory[k.String()] = v
	}
	for k, v := range s.BySeverity {
		dto.BySeverity[k.String()] = v
	}
	return dto
}

func toKPIsDTO(k dashboard.KPIs) KPIsDTO {
	dto := KPIsDTO{
		OverdueCount:      k.OverdueCount,
		AgingP90Days:      dashboard.Round1Ptr(k.AgingP90Days),
		TotalOpen:         k.TotalOpen,
		SLACompliance:     dashboard.Round1(k.SLACompliance),
		OpenBySeverity:    make(map[string]int, len(k.OpenBySeverity)),
		CreatedLast7Days:  k.CreatedLast7Days,
		ResolvedLast7Days: k.ResolvedLast7Days,
	}
	for sev, n := range k.OpenBySeverity {
		dto.OpenBySeverity[sev.String()] = n
	}
	return dto
}

func toBurndownDTOs(points []dashboard.DailyPoint) []BurndownPointDTO {
	dtos := make([]BurndownPointDTO, len(points))
	for i, p := range points {
		dtos[i] = BurndownPointDTO{
			Date:             p.Date.String(),
			OpenItems:        p.OpenItems,
			ClosedItems:      p.ClosedItems,
			CumulativeClosed: p.CumulativeClosed,
		}
	}
	return dtos
}

func toParetoDTOs(shares []dashboard.CategoryShare) []ParetoEntryDTO {
	dtos := make([]ParetoEntryDTO, len(shares))
	for i, s := range shares {
		dtos[i] = ParetoEntryDTO{
			Category:             s.Category,
			Count:                s.Count,
			Percentage:           dashboard.Round1(s.Percentage),
			CumulativePercentage: dashboard.Round1(s.CumulativePercentage),
		}
	}
	return dtos
}

func toStudyDTO(st *sqlite.Study) StudyDTO {
	return StudyDTO{
		ID:             st.ID,
		ProtocolNumber: st.ProtocolNumber,
		ShortName:      st.ShortName,
		FullTitle:      st.FullTitle,
		Sponsor:        st.Sponsor,
		Phase:          st.Phase,
		Status:         string(st.Status),
		CreatedAt:      formatTime(st.CreatedAt),
		UpdatedAt:      formatTime(st.UpdatedAt),
	}
}

func toSchedulerStatusDTO(st SchedulerStatus) SchedulerStatusDTO {
	dto := SchedulerStatusDTO{
		Enabled:       st.Enabled,
		Running:       st.Running,
		CheckInterval: st.CheckInterval.String(),
	}
	if !st.LastRun.IsZero() {
		dto.LastRun = formatTimePtr(&st.LastRun)
	}
	if !st.NextRun.IsZero() {
		dto.NextRun = formatTimePtr(&st.NextRun)
	}
	return dto
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}
