/*
engine.go - Settlement run orchestration

PURPOSE:
  Wires the stages together in their fixed order and owns the run-level
  contract: stages execute sequentially, later stages observe only values
  written by earlier stages in the same run, and every warning is both
  collected on the Result and appended to the record's own log.

CONTROL FLOW:
  normalize -> attribute (rates per participant) -> aggregate -> billing
  -> report -> summary

FAILURE MODEL:
  Data problems degrade (warning + default) so the record always ends up
  with some settlement values. Store failures are fatal and surface as a
  *StageError; writes already committed by earlier stages stay committed.
  There is no compensating-transaction logic.

CONCURRENCY:
  One run per record at a time. The engine has no internal parallelism and
  no cross-run locking; concurrent runs against the same work record or
  report are the caller's hazard. The idempotent report upsert is the only
  duplicate defense and is correct only under non-concurrent execution.
*/
package settlement

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/settlement-engine/record"
)

// =============================================================================
// ENGINE
// =============================================================================

// Engine runs full settlement passes over single work records.
type Engine struct {
	Store  record.Store
	Log    record.Logger
	Schema Schema
	Now    func() time.Time // defaults to time.Now; injected in tests
}

// New builds an Engine with the default schema. Pass a nil logger to discard
// the per-record log (tests that only assert on values).
func New(store record.Store, log record.Logger) *Engine {
	if log == nil {
		log = record.NopLogger{}
	}
	return &Engine{Store: store, Log: log, Schema: DefaultSchema()}
}

// Result is what one settlement run computed.
type Result struct {
	Record           record.Ref
	Interval         Interval
	ParticipantCount int
	TotalHours       decimal.Decimal
	TotalLaborCost   decimal.Decimal
	BillingRate      decimal.Decimal
	LineTotal        decimal.Decimal
	Report           *ReportOutcome // nil when the record has no job
	Warnings         []Warning
}

// =============================================================================
// SETTLE - One full run
// =============================================================================

// Settle runs every stage against rec and returns the computed totals.
// The returned error is nil even when the run degraded; inspect
// Result.Warnings for what was defaulted.
func (e *Engine) Settle(ctx context.Context, rec record.Ref) (*Result, error) {
	res := &Result{Record: rec}
	e.Log.Debug(ctx, rec, "settlement run started")

	// Stage 1: time normalization.
	iv, err := e.normalize(ctx, rec, res)
	if err != nil {
		return nil, e.fatal(ctx, rec, StageNormalize, err)
	}
	res.Interval = iv

	// Target date for rate resolution.
	date, err := e.targetDate(ctx, rec, res)
	if err != nil {
		return nil, e.fatal(ctx, rec, StageAttribute, err)
	}

	// Stages 2+3: attribution and aggregation.
	attr := Attributor{Store: e.Store, Schema: e.Schema, Rates: &RateResolver{Store: e.Store, Schema: e.Schema}}
	attribution, warns, err := attr.Attribute(ctx, rec, iv.Hours, date)
	e.collect(ctx, rec, res, warns)
	if err != nil {
		return nil, e.fatal(ctx, rec, StageAttribute, err)
	}
	if err := e.aggregate(ctx, rec, res, attribution); err != nil {
		return nil, e.fatal(ctx, rec, StageAggregate, err)
	}

	// Stage 4: billing rate resolution.
	billing := BillingResolver{Store: e.Store, Schema: e.Schema}
	line, warns, err := billing.Resolve(ctx, rec, res.TotalHours)
	e.collect(ctx, rec, res, warns)
	if err != nil {
		return nil, e.fatal(ctx, rec, StageBilling, err)
	}
	res.BillingRate = line.Rate
	res.LineTotal = line.LineTotal

	// Stage 5: report linking. No job is a clean early skip.
	job, err := e.jobRef(ctx, rec)
	if err != nil {
		return nil, e.fatal(ctx, rec, StageReport, err)
	}
	if !job.IsZero() {
		desc, _ := record.AsString(e.mustGet(ctx, rec, e.Schema.FieldDescription, &err))
		if err != nil {
			return nil, e.fatal(ctx, rec, StageReport, err)
		}
		linker := ReportLinker{Store: e.Store, Schema: e.Schema, Now: e.Now}
		outcome, err := linker.Link(ctx, rec, job, LineItem{
			Description: desc,
			Quantity:    res.TotalHours,
			UnitRate:    res.BillingRate,
		})
		if err != nil {
			return nil, e.fatal(ctx, rec, StageReport, err)
		}
		res.Report = outcome
	} else {
		e.Log.Debug(ctx, rec, "no job linked; report stage skipped")
	}

	// Run summary onto the record itself.
	if err := e.writeSummary(ctx, rec, res); err != nil {
		return nil, e.fatal(ctx, rec, StageAggregate, err)
	}

	e.Log.Debug(ctx, rec, "settlement run finished")
	return res, nil
}

// =============================================================================
// STAGES
// =============================================================================

func (e *Engine) normalize(ctx context.Context, rec record.Ref, res *Result) (Interval, error) {
	var err error
	start, _ := record.AsTime(e.mustGet(ctx, rec, e.Schema.FieldStart, &err))
	end, _ := record.AsTime(e.mustGet(ctx, rec, e.Schema.FieldEnd, &err))
	if err != nil {
		return Interval{}, err
	}

	iv, warns := NormalizeInterval(start, end)
	e.collect(ctx, rec, res, warns)

	// Rounded endpoints are written back, but only when they exist.
	if !iv.Start.IsZero() {
		if err := e.Store.Set(ctx, rec, e.Schema.FieldStart, iv.Start); err != nil {
			return iv, err
		}
	}
	if !iv.End.IsZero() {
		if err := e.Store.Set(ctx, rec, e.Schema.FieldEnd, iv.End); err != nil {
			return iv, err
		}
	}
	if err := e.Store.Set(ctx, rec, e.Schema.FieldDurationHours, iv.Hours); err != nil {
		return iv, err
	}
	return iv, nil
}

func (e *Engine) aggregate(ctx context.Context, rec record.Ref, res *Result, a Attribution) error {
	res.ParticipantCount = a.ParticipantCount
	res.TotalHours = round2(a.TotalHours)
	res.TotalLaborCost = round2(a.TotalLaborCost)

	if err := e.Store.Set(ctx, rec, e.Schema.FieldParticipantCount, a.ParticipantCount); err != nil {
		return err
	}
	if err := e.Store.Set(ctx, rec, e.Schema.FieldTotalHours, res.TotalHours); err != nil {
		return err
	}
	return e.Store.Set(ctx, rec, e.Schema.FieldTotalLaborCost, res.TotalLaborCost)
}

// targetDate reads the record date used for rate resolution. Absence is a
// warning; the resolver then resolves every rate to 0. A store failure is
// fatal like any other read in the run.
func (e *Engine) targetDate(ctx context.Context, rec record.Ref, res *Result) (time.Time, error) {
	raw, err := e.Store.Get(ctx, rec, e.Schema.FieldDate)
	if err != nil {
		return time.Time{}, err
	}
	date, ok := record.AsTime(raw)
	if !ok {
		e.collect(ctx, rec, res, []Warning{{
			Stage:   StageAttribute,
			Kind:    WarnMissingInput,
			Message: "record date missing; participant rates resolve to 0",
		}})
		return time.Time{}, nil
	}
	return date, nil
}

func (e *Engine) jobRef(ctx context.Context, rec record.Ref) (record.Ref, error) {
	jobs, err := e.Store.Linked(ctx, rec, e.Schema.RelJob)
	if err != nil {
		return record.Ref{}, err
	}
	if len(jobs) == 0 {
		return record.Ref{}, nil
	}
	return jobs[0], nil
}

// =============================================================================
// HELPERS
// =============================================================================

// mustGet reads a field, folding any store error into *errp so call sites
// stay flat. A nil value (absent field) is returned as-is.
func (e *Engine) mustGet(ctx context.Context, rec record.Ref, field string, errp *error) any {
	if *errp != nil {
		return nil
	}
	v, err := e.Store.Get(ctx, rec, field)
	if err != nil {
		*errp = err
		return nil
	}
	return v
}

func (e *Engine) collect(ctx context.Context, rec record.Ref, res *Result, warns []Warning) {
	for _, w := range warns {
		res.Warnings = append(res.Warnings, w)
		e.Log.Warning(ctx, rec, w.String())
	}
}

func (e *Engine) fatal(ctx context.Context, rec record.Ref, stage Stage, err error) error {
	e.Log.Error(ctx, rec, err.Error(), string(stage))
	return &StageError{Stage: stage, Record: rec, Err: err}
}

func (e *Engine) writeSummary(ctx context.Context, rec record.Ref, res *Result) error {
	now := time.Now
	if e.Now != nil {
		now = e.Now
	}

	var b strings.Builder
	b.WriteString("SETTLEMENT SUMMARY\n")
	if !res.Interval.Start.IsZero() && !res.Interval.End.IsZero() {
		fmt.Fprintf(&b, "Interval: %s - %s\n",
			res.Interval.Start.Format("2006-01-02 15:04"),
			res.Interval.End.Format("15:04"))
	}
	fmt.Fprintf(&b, "Duration: %s h\n", res.Interval.Hours.StringFixed(2))
	fmt.Fprintf(&b, "Participants: %d\n", res.ParticipantCount)
	fmt.Fprintf(&b, "Total hours: %s\n", res.TotalHours.StringFixed(2))
	fmt.Fprintf(&b, "Total labor cost: %s\n", res.TotalLaborCost.StringFixed(2))
	if !res.BillingRate.IsZero() || res.Report != nil {
		fmt.Fprintf(&b, "Billing rate: %s\n", res.BillingRate.StringFixed(2))
		fmt.Fprintf(&b, "Billing line total: %s\n", res.LineTotal.StringFixed(2))
	}
	switch {
	case res.Report == nil:
		b.WriteString("Report: skipped (no job)\n")
	case res.Report.Created:
		fmt.Fprintf(&b, "Report: created %s, line %d\n", res.Report.Report.ID, res.Report.Index)
	default:
		fmt.Fprintf(&b, "Report: %s, line %d\n", res.Report.Report.ID, res.Report.Index)
	}
	if n := len(res.Warnings); n > 0 {
		fmt.Fprintf(&b, "Warnings: %d (see error log)\n", n)
	}
	fmt.Fprintf(&b, "Settled at: %s", now().UTC().Format("2006-01-02 15:04:05"))

	return e.Store.Set(ctx, rec, e.Schema.FieldSummary, b.String())
}
