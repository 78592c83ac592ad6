/*
attribution.go - Per-participant labor attribution

PURPOSE:
  For every participant linked to the work record, resolve the applicable
  rate, compute labor cost, and stamp the result onto the work-record ->
  participant edge. Running totals accumulate across participants with
  full, unrounded precision; rounding happens once, when the aggregator
  writes record-level totals.

ATTRIBUTION MODEL:
  Each participant is attributed the FULL record duration. Duration is not
  divided by headcount: a 9h record with two participants yields 18 total
  hours. This is the confirmed intent of the attribution model (it tracks
  person-hours), and a classic off-by-factor-N trap when changed casually.

INVARIANT:
  hoursWorked, hourlyRate, and laborCost are always written together, in
  the same run, for every participant currently linked. A participant with
  no resolvable rate still gets all three (rate and cost 0).
*/
package settlement

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/settlement-engine/record"
)

// Attribution carries the fan-in of per-participant results.
// Totals are unrounded sums; the aggregator rounds on write.
type Attribution struct {
	ParticipantCount int
	TotalHours       decimal.Decimal
	TotalLaborCost   decimal.Decimal
}

// Attributor stamps per-participant edge attributes and accumulates totals.
type Attributor struct {
	Store  record.Store
	Schema Schema
	Rates  *RateResolver
}

// Attribute processes every participant linked to rec. hours is the record's
// normalized duration; target is the record date used for rate resolution.
// An empty participant set is a valid terminal state, not an error.
func (a *Attributor) Attribute(ctx context.Context, rec record.Ref, hours decimal.Decimal, target time.Time) (Attribution, []Warning, error) {
	var (
		result   Attribution
		warnings []Warning
	)

	participants, err := a.Store.Linked(ctx, rec, a.Schema.RelParticipants)
	if err != nil {
		return result, nil, err
	}
	result.ParticipantCount = len(participants)

	for i, p := range participants {
		rate, warns, err := a.Rates.Resolve(ctx, p, target)
		if err != nil {
			return result, warnings, err
		}
		warnings = append(warnings, warns...)

		cost := rate.Mul(hours)

		if err := a.Store.SetEdgeAttribute(ctx, rec, a.Schema.RelParticipants, i, a.Schema.AttrHoursWorked, hours); err != nil {
			return result, warnings, err
		}
		if err := a.Store.SetEdgeAttribute(ctx, rec, a.Schema.RelParticipants, i, a.Schema.AttrHourlyRate, rate); err != nil {
			return result, warnings, err
		}
		if err := a.Store.SetEdgeAttribute(ctx, rec, a.Schema.RelParticipants, i, a.Schema.AttrLaborCost, round2(cost)); err != nil {
			return result, warnings, err
		}

		result.TotalHours = result.TotalHours.Add(hours)
		result.TotalLaborCost = result.TotalLaborCost.Add(cost)
	}

	return result, warnings, nil
}
