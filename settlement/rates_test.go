package settlement_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/settlement-engine/record"
	memstore "github.com/warp/settlement-engine/record/store"
	"github.com/warp/settlement-engine/settlement"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newRateFixture(t *testing.T) (*memstore.Memory, *settlement.RateResolver, record.Ref) {
	t.Helper()
	store := memstore.NewMemory()
	participant := record.Ref{Library: "participants", ID: "alice"}
	store.Put(participant, map[string]any{"name": "Alice"})
	resolver := &settlement.RateResolver{Store: store, Schema: settlement.DefaultSchema()}
	return store, resolver, participant
}

// addSchedule creates a rate schedule entry owned by participant.
func addSchedule(t *testing.T, store *memstore.Memory, participant record.Ref, id string, from time.Time, rate decimal.Decimal) {
	t.Helper()
	schema := settlement.DefaultSchema()
	entry := record.Ref{Library: schema.RateScheduleLibrary, ID: id}
	store.Put(entry, map[string]any{
		schema.RateScheduleFromField: from,
		schema.RateScheduleRateField: rate,
	})
	require.NoError(t, store.SetLinked(context.Background(), entry, schema.RateScheduleOwnerRel, []record.Ref{participant}))
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// =============================================================================
// EFFECTIVE-DATED SELECTION
// =============================================================================

func TestRateResolver_PicksLatestQualifyingEntry(t *testing.T) {
	// GIVEN: two schedule entries, 10 from 2024-01-01 and 12 from 2024-06-15
	store, resolver, alice := newRateFixture(t)
	addSchedule(t, store, alice, "s1", date(2024, time.January, 1), decimal.NewFromInt(10))
	addSchedule(t, store, alice, "s2", date(2024, time.June, 15), decimal.NewFromInt(12))

	cases := []struct {
		name   string
		target time.Time
		want   int64
	}{
		{"between entries uses the earlier", date(2024, time.March, 1), 10},
		{"after both uses the later", date(2024, time.July, 1), 12},
		{"on the effective date qualifies", date(2024, time.June, 15), 12},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rate, warns, err := resolver.Resolve(context.Background(), alice, tc.target)
			require.NoError(t, err)
			assert.Empty(t, warns)
			assert.True(t, rate.Equal(decimal.NewFromInt(tc.want)), "rate = %s", rate)
		})
	}
}

func TestRateResolver_BeforeAllEntries_ZeroWithWarning(t *testing.T) {
	// GIVEN: the earliest schedule entry starts 2024-01-01
	store, resolver, alice := newRateFixture(t)
	addSchedule(t, store, alice, "s1", date(2024, time.January, 1), decimal.NewFromInt(10))

	// WHEN: resolving for 2023-01-01
	rate, warns, err := resolver.Resolve(context.Background(), alice, date(2023, time.January, 1))

	// THEN: rate 0, ambiguous-rate warning, no error
	require.NoError(t, err)
	require.Len(t, warns, 1)
	assert.Equal(t, settlement.WarnAmbiguousRate, warns[0].Kind)
	assert.True(t, rate.IsZero())
}

func TestRateResolver_NoSchedule_ZeroWithWarning(t *testing.T) {
	_, resolver, alice := newRateFixture(t)

	rate, warns, err := resolver.Resolve(context.Background(), alice, date(2024, time.June, 3))

	require.NoError(t, err)
	require.Len(t, warns, 1)
	assert.Equal(t, settlement.WarnAmbiguousRate, warns[0].Kind)
	assert.True(t, rate.IsZero())
}

func TestRateResolver_ZeroTargetDate_ZeroWithWarning(t *testing.T) {
	store, resolver, alice := newRateFixture(t)
	addSchedule(t, store, alice, "s1", date(2024, time.January, 1), decimal.NewFromInt(10))

	rate, warns, err := resolver.Resolve(context.Background(), alice, time.Time{})

	require.NoError(t, err)
	require.Len(t, warns, 1)
	assert.True(t, rate.IsZero())
}

func TestRateResolver_EqualEffectiveFrom_LaterEntryWins(t *testing.T) {
	// GIVEN: two entries sharing an effectiveFrom; the second created wins
	store, resolver, alice := newRateFixture(t)
	addSchedule(t, store, alice, "s1", date(2024, time.January, 1), decimal.NewFromInt(10))
	addSchedule(t, store, alice, "s2", date(2024, time.January, 1), decimal.NewFromInt(11))

	rate, warns, err := resolver.Resolve(context.Background(), alice, date(2024, time.June, 3))

	require.NoError(t, err)
	assert.Empty(t, warns)
	assert.True(t, rate.Equal(decimal.NewFromInt(11)), "rate = %s", rate)
}

func TestRateResolver_MalformedEffectiveFrom_Skipped(t *testing.T) {
	// GIVEN: one entry with an unparseable date and one valid entry
	store, resolver, alice := newRateFixture(t)
	schema := settlement.DefaultSchema()
	bad := record.Ref{Library: schema.RateScheduleLibrary, ID: "bad"}
	store.Put(bad, map[string]any{
		schema.RateScheduleFromField: "not a date",
		schema.RateScheduleRateField: decimal.NewFromInt(99),
	})
	require.NoError(t, store.SetLinked(context.Background(), bad, schema.RateScheduleOwnerRel, []record.Ref{alice}))
	addSchedule(t, store, alice, "good", date(2024, time.January, 1), decimal.NewFromInt(10))

	rate, warns, err := resolver.Resolve(context.Background(), alice, date(2024, time.June, 3))

	require.NoError(t, err)
	assert.Empty(t, warns)
	assert.True(t, rate.Equal(decimal.NewFromInt(10)), "rate = %s", rate)
}
