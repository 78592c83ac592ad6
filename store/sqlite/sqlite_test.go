package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/settlement-engine/record"
	"github.com/warp/settlement-engine/settlement"
	"github.com/warp/settlement-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// =============================================================================
// FIELD ROUND TRIPS
// =============================================================================

func TestSQLite_FieldTypesSurviveStorage(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec, err := store.Create(ctx, "workRecords", nil)
	require.NoError(t, err)

	// Decimals come back as decimals, not floats.
	require.NoError(t, store.Set(ctx, rec, "rate", decimal.RequireFromString("12.50")))
	v, err := store.Get(ctx, rec, "rate")
	require.NoError(t, err)
	d, ok := v.(decimal.Decimal)
	require.True(t, ok, "got %T", v)
	assert.True(t, d.Equal(decimal.RequireFromString("12.50")))

	// Times come back as times, normalized to UTC.
	start := time.Date(2024, time.June, 3, 9, 0, 0, 0, time.UTC)
	require.NoError(t, store.Set(ctx, rec, "start", start))
	v, err = store.Get(ctx, rec, "start")
	require.NoError(t, err)
	ts, ok := v.(time.Time)
	require.True(t, ok, "got %T", v)
	assert.True(t, ts.Equal(start))

	require.NoError(t, store.Set(ctx, rec, "description", "Demolition"))
	v, err = store.Get(ctx, rec, "description")
	require.NoError(t, err)
	assert.Equal(t, "Demolition", v)
}

func TestSQLite_Get_AbsentFieldIsNil(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec, err := store.Create(ctx, "workRecords", nil)
	require.NoError(t, err)

	v, err := store.Get(ctx, rec, "missing")
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestSQLite_Get_UnknownRecord(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Get(context.Background(), record.Ref{Library: "jobs", ID: "nope"}, "name")
	assert.ErrorIs(t, err, record.ErrRecordNotFound)
}

func TestSQLite_Set_Overwrites(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec, err := store.Create(ctx, "workRecords", map[string]any{"n": int64(1)})
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, rec, "n", int64(2)))

	v, err := store.Get(ctx, rec, "n")
	require.NoError(t, err)
	assert.Equal(t, int64(2), v)
}

// =============================================================================
// RELATIONS
// =============================================================================

func TestSQLite_SetLinked_PreservesAttrsForSurvivingTargets(t *testing.T) {
	// GIVEN: a relation with attributed edges
	store := newTestStore(t)
	ctx := context.Background()

	report, err := store.Create(ctx, "jobReports", nil)
	require.NoError(t, err)
	a, err := store.Create(ctx, "workRecords", nil)
	require.NoError(t, err)
	b, err := store.Create(ctx, "workRecords", nil)
	require.NoError(t, err)

	require.NoError(t, store.SetLinked(ctx, report, "lineItems", []record.Ref{a, b}))
	require.NoError(t, store.SetEdgeAttribute(ctx, report, "lineItems", 0, "lineTotal", decimal.NewFromInt(100)))
	require.NoError(t, store.SetEdgeAttribute(ctx, report, "lineItems", 1, "lineTotal", decimal.NewFromInt(200)))

	// WHEN: relinking with only b
	require.NoError(t, store.SetLinked(ctx, report, "lineItems", []record.Ref{b}))

	// THEN: b's attribute followed it to position 0
	targets, err := store.Linked(ctx, report, "lineItems")
	require.NoError(t, err)
	require.Equal(t, []record.Ref{b}, targets)

	v, err := store.EdgeAttribute(ctx, report, "lineItems", 0, "lineTotal")
	require.NoError(t, err)
	d, ok := record.AsDecimal(v)
	require.True(t, ok)
	assert.True(t, d.Equal(decimal.NewFromInt(200)))
}

func TestSQLite_EdgeAttribute_OutOfRange(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	report, err := store.Create(ctx, "jobReports", nil)
	require.NoError(t, err)

	_, err = store.EdgeAttribute(ctx, report, "lineItems", 0, "lineTotal")
	assert.ErrorIs(t, err, record.ErrEdgeOutOfRange)
}

func TestSQLite_LinkedFrom_CreationOrder(t *testing.T) {
	// GIVEN: schedule entries created in order, all pointing at one participant
	store := newTestStore(t)
	ctx := context.Background()

	alice, err := store.Create(ctx, "participants", nil)
	require.NoError(t, err)

	var created []record.Ref
	for i := 0; i < 3; i++ {
		entry, err := store.Create(ctx, "rateSchedules", map[string]any{"n": int64(i)})
		require.NoError(t, err)
		require.NoError(t, store.SetLinked(ctx, entry, "participant", []record.Ref{alice}))
		created = append(created, entry)
	}

	// WHEN
	got, err := store.LinkedFrom(ctx, alice, "rateSchedules", "participant")

	// THEN: same order as creation
	require.NoError(t, err)
	assert.Equal(t, created, got)
}

func TestSQLite_FindOne(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	want, err := store.Create(ctx, "defaults", map[string]any{"key": "global"})
	require.NoError(t, err)
	_, err = store.Create(ctx, "defaults", map[string]any{"key": "other"})
	require.NoError(t, err)

	got, found, err := store.FindOne(ctx, "defaults", "key", "global")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, want, got)

	_, found, err = store.FindOne(ctx, "defaults", "key", "absent")
	require.NoError(t, err)
	assert.False(t, found)
}

// =============================================================================
// ENGINE AGAINST SQLITE
// =============================================================================

// The engine's own tests run on the memory store; this one proves the same
// settlement semantics hold on the persistent store.
func TestSQLite_FullSettlementRun(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	schema := settlement.DefaultSchema()

	alice, err := store.Create(ctx, "participants", map[string]any{"name": "Alice"})
	require.NoError(t, err)
	sched, err := store.Create(ctx, schema.RateScheduleLibrary, map[string]any{
		schema.RateScheduleFromField: time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
		schema.RateScheduleRateField: decimal.NewFromInt(10),
	})
	require.NoError(t, err)
	require.NoError(t, store.SetLinked(ctx, sched, schema.RateScheduleOwnerRel, []record.Ref{alice}))

	job, err := store.Create(ctx, "jobs", map[string]any{"name": "Renovation"})
	require.NoError(t, err)

	wr, err := store.Create(ctx, "workRecords", map[string]any{
		schema.FieldDate:        time.Date(2024, time.June, 3, 0, 0, 0, 0, time.UTC),
		schema.FieldStart:       time.Date(2024, time.June, 3, 8, 0, 0, 0, time.UTC),
		schema.FieldEnd:         time.Date(2024, time.June, 3, 12, 0, 0, 0, time.UTC),
		schema.FieldDescription: "Demolition",
	})
	require.NoError(t, err)
	require.NoError(t, store.SetLinked(ctx, wr, schema.RelParticipants, []record.Ref{alice}))
	require.NoError(t, store.SetLinked(ctx, wr, schema.RelJob, []record.Ref{job}))

	engine := settlement.New(store, nil)
	res, err := engine.Settle(ctx, wr)
	require.NoError(t, err)

	assert.True(t, res.TotalHours.Equal(decimal.NewFromInt(4)))
	assert.True(t, res.TotalLaborCost.Equal(decimal.NewFromInt(40)))
	require.NotNil(t, res.Report)
	assert.True(t, res.Report.Created)

	// Re-run stays idempotent on the persistent store too.
	again, err := engine.Settle(ctx, wr)
	require.NoError(t, err)
	assert.Equal(t, res.Report.Report, again.Report.Report)
	items, err := store.Linked(ctx, again.Report.Report, schema.RelLineItems)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}
