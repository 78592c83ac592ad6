/*
rates.go - Effective-dated rate selection

PURPOSE:
  A participant's hourly rate changes over time. Rate schedule entries each
  carry an effectiveFrom date and a rate; the applicable rate for a target
  date is the entry with the LATEST effectiveFrom that is on or before the
  target. No schedule, no qualifying entry, or no usable target date all
  resolve to rate 0 with a warning - never an error.

TIE-BREAK POLICY:
  Schedules are expected to be chronologically distinct. When two entries
  share an effectiveFrom, the later one in relation traversal order wins
  (last write wins). This is deliberate and documented rather than an
  accident of collection order.

EDGE CASES:
  - Malformed or absent effectiveFrom: the entry never qualifies.
  - All entries in the future: rate 0.
*/
package settlement

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/settlement-engine/record"
)

// RateResolver selects the applicable rate for a participant as of a date.
type RateResolver struct {
	Store  record.Store
	Schema Schema
}

// Resolve returns the participant's rate as of target. The returned error is
// non-nil only for store failures; every data problem degrades to zero with
// a warning.
func (r *RateResolver) Resolve(ctx context.Context, participant record.Ref, target time.Time) (decimal.Decimal, []Warning, error) {
	if target.IsZero() {
		return decimal.Zero, []Warning{{
			Stage:   StageAttribute,
			Kind:    WarnAmbiguousRate,
			Message: fmt.Sprintf("no target date for %s; rate resolves to 0", participant),
		}}, nil
	}

	entries, err := r.Store.LinkedFrom(ctx, participant, r.Schema.RateScheduleLibrary, r.Schema.RateScheduleOwnerRel)
	if err != nil {
		return decimal.Zero, nil, err
	}
	if len(entries) == 0 {
		return decimal.Zero, []Warning{{
			Stage:   StageAttribute,
			Kind:    WarnAmbiguousRate,
			Message: fmt.Sprintf("no rate schedule for %s; rate resolves to 0", participant),
		}}, nil
	}

	var (
		best      decimal.Decimal
		bestFrom  time.Time
		qualified bool
	)
	for _, entry := range entries {
		fromRaw, err := r.Store.Get(ctx, entry, r.Schema.RateScheduleFromField)
		if err != nil {
			return decimal.Zero, nil, err
		}
		rateRaw, err := r.Store.Get(ctx, entry, r.Schema.RateScheduleRateField)
		if err != nil {
			return decimal.Zero, nil, err
		}

		from, ok := record.AsTime(fromRaw)
		if !ok || from.After(target) {
			// Invalid dates are non-qualifying, same as future entries.
			continue
		}
		rate, ok := record.AsDecimal(rateRaw)
		if !ok {
			continue
		}

		// >= on purpose: equal effectiveFrom means the later entry in
		// traversal order replaces the earlier one.
		if !qualified || !from.Before(bestFrom) {
			best = rate
			bestFrom = from
			qualified = true
		}
	}

	if !qualified {
		return decimal.Zero, []Warning{{
			Stage:   StageAttribute,
			Kind:    WarnAmbiguousRate,
			Message: fmt.Sprintf("no rate effective on or before %s for %s; rate resolves to 0", target.Format("2006-01-02"), participant),
		}}, nil
	}
	return best, nil, nil
}
