/*
handlers.go - HTTP API handlers for the settlement service

PURPOSE:
  Exposes the settlement engine via REST. Handles HTTP request/response,
  JSON serialization, and delegates everything else to the engine and the
  record store.

ENDPOINTS:
  Work records:
    POST   /api/workrecords/{id}/settle  Run a full settlement pass
    GET    /api/workrecords/{id}         Read settlement fields + edges

  Reports:
    GET    /api/reports/{id}             Read a report and its line items

  Scenarios:
    POST   /api/scenarios/load           Seed the demo data set

  Operational:
    GET    /metrics                      Prometheus metrics

ERROR HANDLING:
  - 404: record not found
  - 409: structural inconsistency (broken report; do not blind-retry)
  - 500: store failures
  A degraded run (warnings, zero defaults) is still a 200; the warnings
  ride along in the response body.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario seeding
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/warp/settlement-engine/record"
	"github.com/warp/settlement-engine/settlement"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store  record.Store
	Engine *settlement.Engine
}

// NewHandler creates a new handler around a store and an engine.
func NewHandler(store record.Store, engine *settlement.Engine) *Handler {
	return &Handler{Store: store, Engine: engine}
}

func (h *Handler) schema() settlement.Schema { return h.Engine.Schema }

// =============================================================================
// WORK RECORD HANDLERS
// =============================================================================

// SettleWorkRecord runs one full settlement pass over a work record.
func (h *Handler) SettleWorkRecord(w http.ResponseWriter, r *http.Request) {
	rec := record.Ref{Library: LibWorkRecords, ID: chi.URLParam(r, "id")}

	res, err := h.Engine.Settle(r.Context(), rec)
	if err != nil {
		settlementFailures.Inc()
		switch {
		case errors.Is(err, record.ErrRecordNotFound):
			writeError(w, http.StatusNotFound, "Work record not found", err)
		case errors.Is(err, settlement.ErrStructuralInconsistency):
			writeError(w, http.StatusConflict, "Job report is structurally inconsistent", err)
		default:
			writeError(w, http.StatusInternalServerError, "Settlement failed", err)
		}
		return
	}

	settlementRuns.Inc()
	settlementWarnings.Add(float64(len(res.Warnings)))
	if res.Report != nil && res.Report.Created {
		reportsCreated.Inc()
	}
	writeJSON(w, http.StatusOK, toSettleResponse(res))
}

// GetWorkRecord returns the settlement view of a work record.
func (h *Handler) GetWorkRecord(w http.ResponseWriter, r *http.Request) {
	rec := record.Ref{Library: LibWorkRecords, ID: chi.URLParam(r, "id")}
	ctx := r.Context()
	schema := h.schema()

	dto := WorkRecordDTO{ID: rec.ID}

	var readErr error
	get := func(field string) any {
		if readErr != nil {
			return nil
		}
		v, err := h.Store.Get(ctx, rec, field)
		if err != nil {
			readErr = err
		}
		return v
	}

	if t, ok := record.AsTime(get(schema.FieldDate)); ok {
		dto.Date = t.Format("2006-01-02")
	}
	if t, ok := record.AsTime(get(schema.FieldStart)); ok {
		dto.Start = t.Format(time.RFC3339)
	}
	if t, ok := record.AsTime(get(schema.FieldEnd)); ok {
		dto.End = t.Format(time.RFC3339)
	}
	dto.Description, _ = record.AsString(get(schema.FieldDescription))
	if d, ok := record.AsDecimal(get(schema.FieldDurationHours)); ok {
		dto.DurationHours = d.StringFixed(2)
	}
	dto.ParticipantCount, _ = record.AsInt(get(schema.FieldParticipantCount))
	if d, ok := record.AsDecimal(get(schema.FieldTotalHours)); ok {
		dto.TotalHours = d.StringFixed(2)
	}
	if d, ok := record.AsDecimal(get(schema.FieldTotalLaborCost)); ok {
		dto.TotalLaborCost = d.StringFixed(2)
	}
	if d, ok := record.AsDecimal(get(schema.FieldLineTotal)); ok {
		dto.LineTotal = d.StringFixed(2)
	}
	dto.Summary, _ = record.AsString(get(schema.FieldSummary))

	if readErr != nil {
		h.writeStoreError(w, readErr)
		return
	}

	participants, err := h.Store.Linked(ctx, rec, schema.RelParticipants)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	for i, p := range participants {
		edge := ParticipantEdgeDTO{ID: p.ID}
		for _, a := range []struct {
			attr string
			dst  *string
		}{
			{schema.AttrHoursWorked, &edge.HoursWorked},
			{schema.AttrHourlyRate, &edge.HourlyRate},
			{schema.AttrLaborCost, &edge.LaborCost},
		} {
			v, err := h.Store.EdgeAttribute(ctx, rec, schema.RelParticipants, i, a.attr)
			if err != nil {
				h.writeStoreError(w, err)
				return
			}
			if d, ok := record.AsDecimal(v); ok {
				*a.dst = d.StringFixed(2)
			}
		}
		dto.Participants = append(dto.Participants, edge)
	}

	writeJSON(w, http.StatusOK, dto)
}

// =============================================================================
// REPORT HANDLERS
// =============================================================================

// GetReport returns a job report with its line items and edge attributes.
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	rep := record.Ref{Library: h.schema().JobReportLibrary, ID: chi.URLParam(r, "id")}
	ctx := r.Context()
	schema := h.schema()

	dto := ReportDTO{ID: rep.ID, LineItems: []LineItemDTO{}}

	if v, err := h.Store.Get(ctx, rep, schema.JobReportDateField); err != nil {
		h.writeStoreError(w, err)
		return
	} else if t, ok := record.AsTime(v); ok {
		dto.Date = t.Format("2006-01-02")
	}
	if v, err := h.Store.Get(ctx, rep, schema.JobReportTypeField); err != nil {
		h.writeStoreError(w, err)
		return
	} else if s, ok := record.AsString(v); ok {
		dto.Type = s
	}

	jobs, err := h.Store.Linked(ctx, rep, schema.JobReportJobRel)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	if len(jobs) > 0 {
		dto.JobID = jobs[0].ID
	}

	items, err := h.Store.Linked(ctx, rep, schema.RelLineItems)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	for i, it := range items {
		line := LineItemDTO{WorkRecordID: it.ID}
		for _, a := range []struct {
			attr string
			dst  *string
			dec  bool
		}{
			{schema.AttrLineDescription, &line.Description, false},
			{schema.AttrLineQuantity, &line.Quantity, true},
			{schema.AttrLineUnitRate, &line.UnitRate, true},
			{schema.AttrLineTotal, &line.LineTotal, true},
		} {
			v, err := h.Store.EdgeAttribute(ctx, rep, schema.RelLineItems, i, a.attr)
			if err != nil {
				h.writeStoreError(w, err)
				return
			}
			if a.dec {
				if d, ok := record.AsDecimal(v); ok {
					*a.dst = d.StringFixed(2)
				}
			} else if s, ok := record.AsString(v); ok {
				*a.dst = s
			}
		}
		dto.LineItems = append(dto.LineItems, line)
	}

	writeJSON(w, http.StatusOK, dto)
}

// =============================================================================
// SCENARIO HANDLERS
// =============================================================================

// LoadScenario seeds the demo data set and returns the created records.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	scenario, err := SeedScenario(r.Context(), h.Store, h.schema())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to seed scenario", err)
		return
	}

	dto := ScenarioDTO{
		WorkRecordID:  scenario.WorkRecord.ID,
		JobID:         scenario.Job.ID,
		BillingRateID: scenario.BillingRate.ID,
	}
	for _, p := range scenario.Participants {
		dto.ParticipantIDs = append(dto.ParticipantIDs, p.ID)
	}
	writeJSON(w, http.StatusCreated, dto)
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, record.ErrRecordNotFound) {
		writeError(w, http.StatusNotFound, "Record not found", err)
		return
	}
	writeError(w, http.StatusInternalServerError, "Store error", err)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
