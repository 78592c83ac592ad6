/*
scenarios.go - Demo data seeding

PURPOSE:
  Seeds a complete, settle-able data set so the dev server (and the API
  tests) have something real to run against: a job, two participants with
  dated rate schedules, a billing rate with a price catalog, and one
  unsettled work record.

THE SEEDED SCENARIO:
  Work record 09:07-17:52 (normalizes to 09:00-17:45, 8.75h) with two
  participants whose current rates are 10 and 15, and a billing rate whose
  newest catalog price is 20. Settling it yields totalHours 17.50, labor
  cost 218.75, and a 350.00 report line.

SEE ALSO:
  - handlers.go: POST /api/scenarios/load
  - settlement/engine_test.go exercises the same shape in-process
*/
package api

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/settlement-engine/record"
	"github.com/warp/settlement-engine/settlement"
)

// Library names for the entities the engine references but does not name in
// its schema (it only ever receives Refs into these).
const (
	LibWorkRecords  = "workRecords"
	LibJobs         = "jobs"
	LibParticipants = "participants"
	LibBillingRates = "billingRates"
)

// Scenario is the set of records SeedScenario created.
type Scenario struct {
	WorkRecord   record.Ref
	Job          record.Ref
	Participants []record.Ref
	BillingRate  record.Ref
}

// SeedScenario populates the store with the demo data set.
func SeedScenario(ctx context.Context, store record.Store, schema settlement.Schema) (*Scenario, error) {
	job, err := store.Create(ctx, LibJobs, map[string]any{
		"name": "Workshop renovation",
	})
	if err != nil {
		return nil, err
	}

	participants := make([]record.Ref, 0, 2)
	for _, p := range []struct {
		name string
		rate decimal.Decimal
	}{
		{"Alice", decimal.NewFromInt(10)},
		{"Bruno", decimal.NewFromInt(15)},
	} {
		ref, err := store.Create(ctx, LibParticipants, map[string]any{"name": p.name})
		if err != nil {
			return nil, err
		}
		participants = append(participants, ref)

		// Two schedule entries each: an old rate and the current one, so
		// effective-dated selection actually has something to select.
		for _, entry := range []struct {
			from time.Time
			rate decimal.Decimal
		}{
			{time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC), p.rate.Sub(decimal.NewFromInt(2))},
			{time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC), p.rate},
		} {
			sched, err := store.Create(ctx, schema.RateScheduleLibrary, map[string]any{
				schema.RateScheduleFromField: entry.from,
				schema.RateScheduleRateField: entry.rate,
			})
			if err != nil {
				return nil, err
			}
			if err := store.SetLinked(ctx, sched, schema.RateScheduleOwnerRel, []record.Ref{ref}); err != nil {
				return nil, err
			}
		}
	}

	billingRate, err := store.Create(ctx, LibBillingRates, map[string]any{
		"name":                           "Standard hourly billing",
		schema.BillingRateFlatPriceField: decimal.NewFromInt(18),
	})
	if err != nil {
		return nil, err
	}
	// Catalog history: 17 then 20; the last entry is the current price.
	for _, price := range []int64{17, 20} {
		entry, err := store.Create(ctx, schema.PriceCatalogLibrary, map[string]any{
			schema.PriceCatalogPriceField: decimal.NewFromInt(price),
		})
		if err != nil {
			return nil, err
		}
		if err := store.SetLinked(ctx, entry, schema.PriceCatalogOwnerRel, []record.Ref{billingRate}); err != nil {
			return nil, err
		}
	}

	wr, err := store.Create(ctx, LibWorkRecords, map[string]any{
		schema.FieldDate:        time.Date(2024, time.June, 3, 0, 0, 0, 0, time.UTC),
		schema.FieldStart:       time.Date(2024, time.June, 3, 9, 7, 0, 0, time.UTC),
		schema.FieldEnd:         time.Date(2024, time.June, 3, 17, 52, 0, 0, time.UTC),
		schema.FieldDescription: "Demolition and surface preparation",
	})
	if err != nil {
		return nil, err
	}
	if err := store.SetLinked(ctx, wr, schema.RelParticipants, participants); err != nil {
		return nil, err
	}
	if err := store.SetLinked(ctx, wr, schema.RelJob, []record.Ref{job}); err != nil {
		return nil, err
	}
	if err := store.SetLinked(ctx, wr, schema.RelBillingRate, []record.Ref{billingRate}); err != nil {
		return nil, err
	}

	return &Scenario{
		WorkRecord:   wr,
		Job:          job,
		Participants: participants,
		BillingRate:  billingRate,
	}, nil
}
