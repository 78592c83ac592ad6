/*
report.go - Idempotent job report cross-reference

PURPOSE:
  Every settled work record with a job propagates one line item into that
  job's report. The report is a shared convergence point: many work records
  write into the same report record, so the linker must be safe to re-run.

CONTRACT:
  1. No job on the work record: skip silently. Valid terminal state.
  2. Find the report referencing this job; create it (date, type, job back
     reference) when absent. At most one report exists per job.
  3. The line-item relation is keyed by source identity, never by position:
     an existing edge for this work record is updated in place, otherwise
     a new edge is appended at the end.
  4. Edge attributes: description, quantity (= totalHours), unitRate
     (= resolved billing rate), lineTotal (= quantity x unitRate, 2dp).

IDEMPOTENCE:
  Running the engine twice on unchanged inputs leaves exactly one edge for
  the record, with identical attribute values both times.

FATAL PATH:
  An existing report whose line-item relation cannot be read is a
  structural inconsistency. Proceeding anyway (or treating it as "no
  report") risks creating a duplicate report, so the run fails instead.
*/
package settlement

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/settlement-engine/record"
)

// LineItem is the computed content of one report edge.
type LineItem struct {
	Description string
	Quantity    decimal.Decimal
	UnitRate    decimal.Decimal
}

// ReportOutcome describes what the linker did.
type ReportOutcome struct {
	Report    record.Ref
	Created   bool // the report itself was created this run
	Index     int  // position of the record's edge in the line items
	Updated   bool // an existing edge was updated in place
	LineTotal decimal.Decimal
}

// ReportLinker finds or creates the per-job report and upserts one edge.
type ReportLinker struct {
	Store  record.Store
	Schema Schema
	Now    func() time.Time // report creation date; defaults to time.Now
}

// Link upserts the line item for rec into job's report. job must be non-zero;
// the engine handles the skip case before calling.
func (l *ReportLinker) Link(ctx context.Context, rec, job record.Ref, item LineItem) (*ReportOutcome, error) {
	report, created, err := l.findOrCreate(ctx, job)
	if err != nil {
		return nil, err
	}
	outcome := &ReportOutcome{Report: report, Created: created}

	items, err := l.Store.Linked(ctx, report, l.Schema.RelLineItems)
	if err != nil {
		if created {
			// A report this run just created cannot be inconsistent yet.
			return nil, err
		}
		return nil, &StructuralInconsistencyError{Report: report, Err: err}
	}

	// Match by identity, not position.
	index := -1
	for i, it := range items {
		if it == rec {
			index = i
			break
		}
	}
	if index < 0 {
		items = append(items, rec)
		if err := l.Store.SetLinked(ctx, report, l.Schema.RelLineItems, items); err != nil {
			return nil, err
		}
		index = len(items) - 1
	} else {
		outcome.Updated = true
	}
	outcome.Index = index

	outcome.LineTotal = round2(item.Quantity.Mul(item.UnitRate))
	attrs := []struct {
		name  string
		value any
	}{
		{l.Schema.AttrLineDescription, item.Description},
		{l.Schema.AttrLineQuantity, item.Quantity},
		{l.Schema.AttrLineUnitRate, item.UnitRate},
		{l.Schema.AttrLineTotal, outcome.LineTotal},
	}
	for _, a := range attrs {
		if err := l.Store.SetEdgeAttribute(ctx, report, l.Schema.RelLineItems, index, a.name, a.value); err != nil {
			return nil, err
		}
	}

	return outcome, nil
}

func (l *ReportLinker) findOrCreate(ctx context.Context, job record.Ref) (record.Ref, bool, error) {
	existing, err := l.Store.LinkedFrom(ctx, job, l.Schema.JobReportLibrary, l.Schema.JobReportJobRel)
	if err != nil {
		return record.Ref{}, false, err
	}
	if len(existing) > 0 {
		// At most one report per job; the first is the report.
		return existing[0], false, nil
	}

	now := time.Now
	if l.Now != nil {
		now = l.Now
	}
	report, err := l.Store.Create(ctx, l.Schema.JobReportLibrary, map[string]any{
		l.Schema.JobReportDateField: now().UTC(),
		l.Schema.JobReportTypeField: DefaultReportType,
	})
	if err != nil {
		return record.Ref{}, false, err
	}
	if err := l.Store.SetLinked(ctx, report, l.Schema.JobReportJobRel, []record.Ref{job}); err != nil {
		return record.Ref{}, false, err
	}
	return report, true, nil
}
