/*
Package record defines the collaborator interface between the settlement
engine and the host record store.

PURPOSE:
  The engine never owns storage. Every field it reads, every relation it
  traverses, and every value it writes goes through the Store interface
  defined here. Different implementations can back it with SQLite, an
  in-memory map, or an external document database.

KEY CONCEPTS IN THIS FILE (record.go):
  - Ref: A typed handle to a record (library + identifier)
  - Value conversion helpers: AsDecimal, AsTime, AsString, AsInt

DESIGN PRINCIPLES:
  1. Capability interface: the engine depends on Store, never on a concrete
     database, so its logic stays decoupled from any reflection API.
  2. Ordered relations: relations are ordered lists of edges, and each edge
     can carry its own attributes (values on the link, not on either record).
  3. Absent is not an error: reading a field that was never set yields nil.
     Callers decide whether that is a warning or a default.

USAGE:
  rec := record.Ref{Library: "workRecords", ID: "wr-1"}
  v, err := store.Get(ctx, rec, "totalHours")
  hours, ok := record.AsDecimal(v)

SEE ALSO:
  - store.go: Store and Logger interfaces
  - store/memory.go: In-memory implementation for tests and dev
  - ../store/sqlite/sqlite.go: SQLite-backed implementation
*/
package record

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// REF - Typed record handle
// =============================================================================

// Ref identifies one record in the host store. The zero Ref means "no record"
// and is how optional references (job, billing rate) are represented.
type Ref struct {
	Library string
	ID      string
}

func (r Ref) IsZero() bool { return r.Library == "" && r.ID == "" }

func (r Ref) String() string {
	if r.IsZero() {
		return "<none>"
	}
	return fmt.Sprintf("%s/%s", r.Library, r.ID)
}

// =============================================================================
// VALUE CONVERSION
// =============================================================================
// Field values are dynamically typed at the store boundary. These helpers
// convert what the store hands back into the types the engine computes with.
// The bool result is false when the value is absent or not convertible.

func AsDecimal(v any) (decimal.Decimal, bool) {
	switch x := v.(type) {
	case decimal.Decimal:
		return x, true
	case float64:
		return decimal.NewFromFloat(x), true
	case float32:
		return decimal.NewFromFloat32(x), true
	case int:
		return decimal.NewFromInt(int64(x)), true
	case int64:
		return decimal.NewFromInt(x), true
	case string:
		d, err := decimal.NewFromString(x)
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	default:
		return decimal.Zero, false
	}
}

func AsTime(v any) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return x, true
	case string:
		// Stores that serialize values hand timestamps back as RFC 3339.
		if t, err := time.Parse(time.RFC3339Nano, x); err == nil {
			return t, true
		}
		if t, err := time.Parse("2006-01-02", x); err == nil {
			return t, true
		}
		return time.Time{}, false
	default:
		return time.Time{}, false
	}
}

func AsString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func AsInt(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case int64:
		return int(x), true
	case float64:
		return int(x), true
	case decimal.Decimal:
		return int(x.IntPart()), true
	default:
		return 0, false
	}
}
