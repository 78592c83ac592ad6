/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication, decoupling the
  engine's decimal/record types from the external contract. All monetary
  and hour values are serialized as fixed 2-decimal strings; clients never
  see binary floating point.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

SEE ALSO:
  - handlers.go: Uses these types
  - settlement/engine.go: Result, the source of SettleResponseDTO
*/
package api

import (
	"time"

	"github.com/warp/settlement-engine/settlement"
)

// =============================================================================
// SETTLEMENT
// =============================================================================

// SettleResponseDTO is the outcome of one settlement run.
type SettleResponseDTO struct {
	RecordID         string        `json:"record_id"`
	Start            string        `json:"start,omitempty"`
	End              string        `json:"end,omitempty"`
	DurationHours    string        `json:"duration_hours"`
	ParticipantCount int           `json:"participant_count"`
	TotalHours       string        `json:"total_hours"`
	TotalLaborCost   string        `json:"total_labor_cost"`
	BillingRate      string        `json:"billing_rate"`
	LineTotal        string        `json:"line_total"`
	Report           *ReportRefDTO `json:"report,omitempty"`
	Warnings         []WarningDTO  `json:"warnings,omitempty"`
}

// ReportRefDTO identifies the report edge a run touched.
type ReportRefDTO struct {
	ID        string `json:"id"`
	Created   bool   `json:"created"`
	LineIndex int    `json:"line_index"`
	Updated   bool   `json:"updated"`
	LineTotal string `json:"line_total"`
}

type WarningDTO struct {
	Stage   string `json:"stage"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func toSettleResponse(res *settlement.Result) SettleResponseDTO {
	dto := SettleResponseDTO{
		RecordID:         res.Record.ID,
		DurationHours:    res.Interval.Hours.StringFixed(2),
		ParticipantCount: res.ParticipantCount,
		TotalHours:       res.TotalHours.StringFixed(2),
		TotalLaborCost:   res.TotalLaborCost.StringFixed(2),
		BillingRate:      res.BillingRate.StringFixed(2),
		LineTotal:        res.LineTotal.StringFixed(2),
	}
	if !res.Interval.Start.IsZero() {
		dto.Start = res.Interval.Start.Format(time.RFC3339)
	}
	if !res.Interval.End.IsZero() {
		dto.End = res.Interval.End.Format(time.RFC3339)
	}
	if res.Report != nil {
		dto.Report = &ReportRefDTO{
			ID:        res.Report.Report.ID,
			Created:   res.Report.Created,
			LineIndex: res.Report.Index,
			Updated:   res.Report.Updated,
			LineTotal: res.Report.LineTotal.StringFixed(2),
		}
	}
	for _, w := range res.Warnings {
		dto.Warnings = append(dto.Warnings, WarningDTO{
			Stage:   string(w.Stage),
			Kind:    string(w.Kind),
			Message: w.Message,
		})
	}
	return dto
}

// =============================================================================
// RECORD VIEWS
// =============================================================================

// WorkRecordDTO is a read view of one work record's settlement fields.
type WorkRecordDTO struct {
	ID               string               `json:"id"`
	Date             string               `json:"date,omitempty"`
	Start            string               `json:"start,omitempty"`
	End              string               `json:"end,omitempty"`
	Description      string               `json:"description,omitempty"`
	DurationHours    string               `json:"duration_hours,omitempty"`
	ParticipantCount int                  `json:"participant_count"`
	TotalHours       string               `json:"total_hours,omitempty"`
	TotalLaborCost   string               `json:"total_labor_cost,omitempty"`
	LineTotal        string               `json:"line_total,omitempty"`
	Summary          string               `json:"summary,omitempty"`
	Participants     []ParticipantEdgeDTO `json:"participants,omitempty"`
}

// ParticipantEdgeDTO exposes the relation attributes stamped per participant.
type ParticipantEdgeDTO struct {
	ID          string `json:"id"`
	HoursWorked string `json:"hours_worked,omitempty"`
	HourlyRate  string `json:"hourly_rate,omitempty"`
	LaborCost   string `json:"labor_cost,omitempty"`
}

// ReportDTO is a read view of one job report and its line items.
type ReportDTO struct {
	ID        string        `json:"id"`
	Date      string        `json:"date,omitempty"`
	Type      string        `json:"type,omitempty"`
	JobID     string        `json:"job_id,omitempty"`
	LineItems []LineItemDTO `json:"line_items"`
}

type LineItemDTO struct {
	WorkRecordID string `json:"work_record_id"`
	Description  string `json:"description,omitempty"`
	Quantity     string `json:"quantity,omitempty"`
	UnitRate     string `json:"unit_rate,omitempty"`
	LineTotal    string `json:"line_total,omitempty"`
}

// =============================================================================
// SCENARIOS / ERRORS
// =============================================================================

// ScenarioDTO lists the records the demo scenario created.
type ScenarioDTO struct {
	WorkRecordID   string   `json:"work_record_id"`
	JobID          string   `json:"job_id"`
	ParticipantIDs []string `json:"participant_ids"`
	BillingRateID  string   `json:"billing_rate_id"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
