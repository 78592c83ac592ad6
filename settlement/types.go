/*
Package settlement computes settlement values for time-based work records.

PURPOSE:
  Given a work record in a host record store, the engine normalizes its
  recorded interval, attributes labor cost across every linked participant,
  resolves effective-dated rates, aggregates totals, resolves a record-level
  billing rate, and propagates the result into the per-job report via an
  idempotent, attribute-bearing cross reference.

PIPELINE (strict order, one run per record):
  1. Time Normalizer        - quarter-hour rounding, duration derivation
  2. Participant Attributor - per-participant edge attributes + totals
                              (uses the Rate Resolver per participant)
  3. Settlement Aggregator  - record-level totals, rounded once
  4. Billing-Rate Resolver  - catalog traversal with flat-price fallback
  5. Report Linker          - find-or-create report, upsert one line item

KEY CONCEPTS IN THIS FILE (types.go):
  - Schema: names of the fields, relations, edge attributes, and libraries
    the engine touches. The engine's logic never hard-codes a field name.
  - Stage/Warning: the degrade-and-continue side channel. Stages never fail
    on missing data; they default, warn, and keep going. Only store
    failures end a run.

DESIGN PRINCIPLES:
  1. Precision: all quantity math uses decimal.Decimal; monetary values are
     rounded to 2 places half-up exactly once, when written.
  2. Full attribution: every participant is attributed the full record
     duration. Three people on a 9h record log 27 total hours. This models
     "N people worked M hours each", not "M hours split N ways".
  3. Idempotence: re-running settlement with unchanged inputs rewrites the
     same values and never duplicates a report line item.

SEE ALSO:
  - engine.go: orchestration and the Result type
  - rates.go: effective-dated rate selection
  - report.go: the idempotent report cross-reference
*/
package settlement

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// SCHEMA - Field, relation, and library names the engine operates on
// =============================================================================

// Schema decouples the engine from the host store's naming. DefaultSchema
// covers the standard deployment; hosts with different field names override
// individual entries.
type Schema struct {
	// Work record fields
	FieldDate             string
	FieldStart            string
	FieldEnd              string
	FieldDurationHours    string
	FieldParticipantCount string
	FieldTotalHours       string
	FieldTotalLaborCost   string
	FieldLineTotal        string
	FieldDescription      string
	FieldSummary          string

	// Work record relations
	RelParticipants string
	RelJob          string
	RelBillingRate  string

	// Work record -> participant edge attributes.
	// Invariant: written together, all three, for every linked participant.
	AttrHoursWorked string
	AttrHourlyRate  string
	AttrLaborCost   string

	// Work record -> billing rate edge attribute (audit trail)
	AttrResolvedRate string

	// Rate schedules: entries link to their participant, so resolution is a
	// reverse lookup from the participant.
	RateScheduleLibrary   string
	RateScheduleOwnerRel  string
	RateScheduleFromField string
	RateScheduleRateField string

	// Price catalog: entries link to their billing rate record.
	PriceCatalogLibrary       string
	PriceCatalogOwnerRel      string
	PriceCatalogPriceField    string
	BillingRateFlatPriceField string

	// Job reports
	JobReportLibrary    string
	JobReportJobRel     string
	JobReportDateField  string
	JobReportTypeField  string
	RelLineItems        string
	AttrLineDescription string
	AttrLineQuantity    string
	AttrLineUnitRate    string
	AttrLineTotal       string

	// Defaults record used to auto-link a billing rate when the work record
	// has none. Leave DefaultsLibrary empty to disable auto-linking.
	DefaultsLibrary        string
	DefaultsKeyField       string
	DefaultsKeyValue       string
	DefaultsBillingRateRel string
}

// DefaultReportType is stamped on reports the engine creates itself.
const DefaultReportType = "work-performed"

func DefaultSchema() Schema {
	return Schema{
		FieldDate:             "date",
		FieldStart:            "start",
		FieldEnd:              "end",
		FieldDurationHours:    "durationHours",
		FieldParticipantCount: "participantCount",
		FieldTotalHours:       "totalHours",
		FieldTotalLaborCost:   "totalLaborCost",
		FieldLineTotal:        "billingRateLineTotal",
		FieldDescription:      "description",
		FieldSummary:          "summary",

		RelParticipants: "participants",
		RelJob:          "job",
		RelBillingRate:  "billingRate",

		AttrHoursWorked: "hoursWorked",
		AttrHourlyRate:  "hourlyRate",
		AttrLaborCost:   "laborCost",

		AttrResolvedRate: "resolvedRate",

		RateScheduleLibrary:   "rateSchedules",
		RateScheduleOwnerRel:  "participant",
		RateScheduleFromField: "effectiveFrom",
		RateScheduleRateField: "rate",

		PriceCatalogLibrary:       "priceCatalog",
		PriceCatalogOwnerRel:      "billingRate",
		PriceCatalogPriceField:    "price",
		BillingRateFlatPriceField: "price",

		JobReportLibrary:    "jobReports",
		JobReportJobRel:     "job",
		JobReportDateField:  "date",
		JobReportTypeField:  "type",
		RelLineItems:        "lineItems",
		AttrLineDescription: "description",
		AttrLineQuantity:    "quantity",
		AttrLineUnitRate:    "unitRate",
		AttrLineTotal:       "lineTotal",

		DefaultsLibrary:        "defaults",
		DefaultsKeyField:       "key",
		DefaultsKeyValue:       "global",
		DefaultsBillingRateRel: "defaultBillingRate",
	}
}

// =============================================================================
// STAGES AND WARNINGS
// =============================================================================

type Stage string

const (
	StageNormalize Stage = "normalize"
	StageAttribute Stage = "attribute"
	StageAggregate Stage = "aggregate"
	StageBilling   Stage = "billing"
	StageReport    Stage = "report"
)

// WarningKind classifies the non-fatal conditions a run can hit.
type WarningKind string

const (
	// WarnMissingInput: a required field or relation is absent. Resolved by
	// defaulting to zero and continuing.
	WarnMissingInput WarningKind = "missing_input"

	// WarnAmbiguousRate: a rate schedule has no qualifying entry (or an
	// unusable target date). Resolved by the documented zero fallback.
	WarnAmbiguousRate WarningKind = "ambiguous_rate"

	// WarnDataQuality: inputs are present but suspect, e.g. the interval
	// ends before it starts after rounding.
	WarnDataQuality WarningKind = "data_quality"
)

type Warning struct {
	Stage   Stage
	Kind    WarningKind
	Message string
}

func (w Warning) String() string {
	return string(w.Stage) + ": " + w.Message
}

// =============================================================================
// ROUNDING
// =============================================================================

// round2 rounds a monetary or hour total to 2 decimal places, half up.
// Intermediate sums stay unrounded; only written totals go through here.
func round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
