/*
Package factory provides JSON to Go schema conversion and engine assembly.

PURPOSE:
  Field, relation, and library names differ between record-store
  deployments. The factory converts a JSON schema override into a
  settlement.Schema - administrators remap names without code changes -
  and assembles a ready-to-run Engine on top of a Store.

JSON SCHEMA:
  Every key is optional; omitted keys keep the default schema value.
  {
    "fields":    {"start": "Od", "end": "Do", "totalHours": "Odpracované"},
    "relations": {"participants": "Zamestnanci", "job": "Zákazka"},
    "libraries": {"rateSchedules": "sadzby zamestnancov"}
  }

USAGE:
  schema, err := factory.ParseSchema(jsonBytes)
  engine := factory.NewEngine(store, schema)
  result, err := engine.Settle(ctx, rec)

SEE ALSO:
  - settlement/types.go: Schema definition and defaults
  - config/config.go: where the schema file path comes from
*/
package factory

import (
	"encoding/json"
	"fmt"

	"github.com/warp/settlement-engine/record"
	"github.com/warp/settlement-engine/settlement"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// SchemaJSON is the JSON representation of a schema override.
type SchemaJSON struct {
	Fields    map[string]string `json:"fields,omitempty"`
	Relations map[string]string `json:"relations,omitempty"`
	Libraries map[string]string `json:"libraries,omitempty"`
	Attrs     map[string]string `json:"attributes,omitempty"`
}

// ParseSchema merges a JSON override onto the default schema.
// Nil or empty input returns the default schema unchanged.
func ParseSchema(data []byte) (settlement.Schema, error) {
	schema := settlement.DefaultSchema()
	if len(data) == 0 {
		return schema, nil
	}

	var sj SchemaJSON
	if err := json.Unmarshal(data, &sj); err != nil {
		return schema, fmt.Errorf("invalid schema override: %w", err)
	}

	apply := func(m map[string]string, keys map[string]*string) error {
		for k, v := range m {
			dst, ok := keys[k]
			if !ok {
				return fmt.Errorf("unknown schema key %q", k)
			}
			if v == "" {
				return fmt.Errorf("schema key %q maps to empty name", k)
			}
			*dst = v
		}
		return nil
	}

	if err := apply(sj.Fields, map[string]*string{
		"date":             &schema.FieldDate,
		"start":            &schema.FieldStart,
		"end":              &schema.FieldEnd,
		"durationHours":    &schema.FieldDurationHours,
		"participantCount": &schema.FieldParticipantCount,
		"totalHours":       &schema.FieldTotalHours,
		"totalLaborCost":   &schema.FieldTotalLaborCost,
		"lineTotal":        &schema.FieldLineTotal,
		"description":      &schema.FieldDescription,
		"summary":          &schema.FieldSummary,
		"effectiveFrom":    &schema.RateScheduleFromField,
		"rate":             &schema.RateScheduleRateField,
		"price":            &schema.PriceCatalogPriceField,
		"flatPrice":        &schema.BillingRateFlatPriceField,
		"reportDate":       &schema.JobReportDateField,
		"reportType":       &schema.JobReportTypeField,
		"defaultsKey":      &schema.DefaultsKeyField,
	}); err != nil {
		return schema, err
	}

	if err := apply(sj.Relations, map[string]*string{
		"participants":       &schema.RelParticipants,
		"job":                &schema.RelJob,
		"billingRate":        &schema.RelBillingRate,
		"scheduleOwner":      &schema.RateScheduleOwnerRel,
		"catalogOwner":       &schema.PriceCatalogOwnerRel,
		"reportJob":          &schema.JobReportJobRel,
		"lineItems":          &schema.RelLineItems,
		"defaultBillingRate": &schema.DefaultsBillingRateRel,
	}); err != nil {
		return schema, err
	}

	if err := apply(sj.Libraries, map[string]*string{
		"rateSchedules": &schema.RateScheduleLibrary,
		"priceCatalog":  &schema.PriceCatalogLibrary,
		"jobReports":    &schema.JobReportLibrary,
		"defaults":      &schema.DefaultsLibrary,
	}); err != nil {
		return schema, err
	}

	if err := apply(sj.Attrs, map[string]*string{
		"hoursWorked":     &schema.AttrHoursWorked,
		"hourlyRate":      &schema.AttrHourlyRate,
		"laborCost":       &schema.AttrLaborCost,
		"resolvedRate":    &schema.AttrResolvedRate,
		"lineDescription": &schema.AttrLineDescription,
		"lineQuantity":    &schema.AttrLineQuantity,
		"lineUnitRate":    &schema.AttrLineUnitRate,
		"lineTotal":       &schema.AttrLineTotal,
	}); err != nil {
		return schema, err
	}

	return schema, nil
}

// =============================================================================
// ENGINE ASSEMBLY
// =============================================================================

// NewEngine wires a settlement engine with a field-backed record logger.
func NewEngine(store record.Store, schema settlement.Schema) *settlement.Engine {
	engine := settlement.New(store, record.NewFieldLogger(store))
	engine.Schema = schema
	return engine
}
