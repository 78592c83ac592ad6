/*
billing.go - Record-level billing rate resolution

PURPOSE:
  Distinct from per-participant labor rates, a work record can carry one
  billing rate reference used to price the record toward the customer.
  Resolution traverses the rate's price catalog: the LAST catalog entry in
  relation order (read as "most recently added, i.e. most current price")
  supplies the price, with a fallback to the flat price field on the
  billing rate record itself.

SIDE EFFECTS:
  - The chosen catalog price is written back onto the catalog entry, as a
    normalization step. Writing the same value again is safe.
  - The resolved rate is stamped on the work-record -> billing-rate edge
    for auditability.
  - billingRateLineTotal = totalHours x resolvedRate, rounded to 2 places.

DEFAULT AUTO-LINK:
  When the record has no billing rate linked and the schema names a
  defaults library, the engine links the default billing rate from the
  defaults record and resolves against it. With no billing rate at all the
  stage is a no-op: nothing is written and the line total is 0.
*/
package settlement

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/warp/settlement-engine/record"
)

// BillingLine is the outcome of billing-rate resolution for one record.
type BillingLine struct {
	BillingRate record.Ref      // zero when the record has none
	Rate        decimal.Decimal // resolved unit rate
	LineTotal   decimal.Decimal // totalHours x Rate, rounded
}

// BillingResolver resolves the record-level billing rate and line total.
type BillingResolver struct {
	Store  record.Store
	Schema Schema
}

// Resolve prices rec against its billing rate reference. totalHours is the
// aggregated record total, already rounded. A record without a billing rate
// (and no default to link) yields a zero BillingLine and no writes.
func (b *BillingResolver) Resolve(ctx context.Context, rec record.Ref, totalHours decimal.Decimal) (BillingLine, []Warning, error) {
	var warnings []Warning

	linked, err := b.Store.Linked(ctx, rec, b.Schema.RelBillingRate)
	if err != nil {
		return BillingLine{}, nil, err
	}

	if len(linked) == 0 {
		linked, err = b.autoLinkDefault(ctx, rec)
		if err != nil {
			return BillingLine{}, nil, err
		}
		if len(linked) == 0 {
			return BillingLine{}, nil, nil
		}
	}

	rateRef := linked[0]
	line := BillingLine{BillingRate: rateRef}

	rate, warns, err := b.resolvePrice(ctx, rateRef)
	if err != nil {
		return line, warnings, err
	}
	warnings = append(warnings, warns...)
	line.Rate = rate
	line.LineTotal = round2(totalHours.Mul(rate))

	// Audit trail: stamp the resolved rate on the edge itself.
	if err := b.Store.SetEdgeAttribute(ctx, rec, b.Schema.RelBillingRate, 0, b.Schema.AttrResolvedRate, rate); err != nil {
		return line, warnings, err
	}
	if err := b.Store.Set(ctx, rec, b.Schema.FieldLineTotal, line.LineTotal); err != nil {
		return line, warnings, err
	}

	return line, warnings, nil
}

// resolvePrice walks the price catalog; the last entry wins. Falls back to
// the billing rate's own flat price field when the catalog is empty.
func (b *BillingResolver) resolvePrice(ctx context.Context, rateRef record.Ref) (decimal.Decimal, []Warning, error) {
	catalog, err := b.Store.LinkedFrom(ctx, rateRef, b.Schema.PriceCatalogLibrary, b.Schema.PriceCatalogOwnerRel)
	if err != nil {
		return decimal.Zero, nil, err
	}

	if len(catalog) > 0 {
		last := catalog[len(catalog)-1]
		raw, err := b.Store.Get(ctx, last, b.Schema.PriceCatalogPriceField)
		if err != nil {
			return decimal.Zero, nil, err
		}
		price, ok := record.AsDecimal(raw)
		if !ok {
			return decimal.Zero, []Warning{{
				Stage:   StageBilling,
				Kind:    WarnMissingInput,
				Message: "current catalog entry has no price; billing rate resolves to 0",
			}}, nil
		}
		// Normalization write-back; idempotent by construction.
		if err := b.Store.Set(ctx, last, b.Schema.PriceCatalogPriceField, price); err != nil {
			return decimal.Zero, nil, err
		}
		return price, nil, nil
	}

	raw, err := b.Store.Get(ctx, rateRef, b.Schema.BillingRateFlatPriceField)
	if err != nil {
		return decimal.Zero, nil, err
	}
	price, ok := record.AsDecimal(raw)
	if !ok {
		return decimal.Zero, []Warning{{
			Stage:   StageBilling,
			Kind:    WarnMissingInput,
			Message: "billing rate has neither catalog entries nor a flat price; resolves to 0",
		}}, nil
	}
	return price, nil, nil
}

// autoLinkDefault links the default billing rate from the defaults record,
// if the schema enables it and one exists. Returns the new link list.
func (b *BillingResolver) autoLinkDefault(ctx context.Context, rec record.Ref) ([]record.Ref, error) {
	if b.Schema.DefaultsLibrary == "" {
		return nil, nil
	}

	defaults, found, err := b.Store.FindOne(ctx, b.Schema.DefaultsLibrary, b.Schema.DefaultsKeyField, b.Schema.DefaultsKeyValue)
	if err != nil || !found {
		return nil, err
	}

	candidates, err := b.Store.Linked(ctx, defaults, b.Schema.DefaultsBillingRateRel)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	links := []record.Ref{candidates[0]}
	if err := b.Store.SetLinked(ctx, rec, b.Schema.RelBillingRate, links); err != nil {
		return nil, err
	}
	return links, nil
}
