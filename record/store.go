/*
store.go - Persistence interface for records, relations, and edge attributes

PURPOSE:
  Defines the interface between the settlement engine and the host record
  store. The engine performs all reads and writes through this interface;
  it never sees a database handle.

KEY INTERFACES:
  Store:   Field access, ordered relations with edge attributes, reverse
           relation lookup, find-or-create.
  Logger:  Per-record observable log. Side channel only - log failures
           never change the outcome of a settlement run.

RELATION CONTRACT:
  - Linked() returns edges in stable relation order. Traversal order is
    meaningful: rate resolution and price catalogs document last-wins
    tie-breaks in terms of this order.
  - SetLinked() replaces the target list but PRESERVES edge attributes for
    targets that remain linked. Re-linking the same record must not wipe
    the attributes a previous settlement run stamped on that edge.
  - Edge attributes are addressed by (record, relation, index, name).

ERRORS:
  - Reading a field that was never set returns (nil, nil). Absence is data,
    not an error; the engine degrades with a warning.
  - Reading from or writing to an unknown record returns ErrRecordNotFound.
  - An edge index past the end of a relation returns ErrEdgeOutOfRange.
  - Any other error is a store failure and is fatal for the current run.

SEE ALSO:
  - record.go: Ref and value conversion
  - store/memory.go: In-memory implementation
  - ../store/sqlite/sqlite.go: SQLite implementation
*/
package record

import (
	"context"
	"errors"
)

// =============================================================================
// SENTINEL ERRORS
// =============================================================================

var (
	// ErrRecordNotFound is returned when an operation addresses a record
	// that does not exist in the store.
	ErrRecordNotFound = errors.New("record not found")

	// ErrEdgeOutOfRange is returned when an edge-attribute operation uses
	// an index past the end of the relation.
	ErrEdgeOutOfRange = errors.New("edge index out of range")
)

// =============================================================================
// STORE - Record store capability interface
// =============================================================================

// Store is the full capability the engine needs from the host record store.
type Store interface {
	// Get returns the value of a field, or (nil, nil) if the field was
	// never set on this record.
	Get(ctx context.Context, rec Ref, field string) (any, error)

	// Set writes a field value. Writing the same value again is safe.
	Set(ctx context.Context, rec Ref, field string, value any) error

	// Linked returns the targets of a relation in stable order.
	// A relation that was never set is an empty list, not an error.
	Linked(ctx context.Context, rec Ref, relation string) ([]Ref, error)

	// SetLinked replaces the relation's target list. Edge attributes are
	// preserved for targets that remain linked; new targets start with no
	// attributes.
	SetLinked(ctx context.Context, rec Ref, relation string, targets []Ref) error

	// EdgeAttribute reads a value stored on the edge at the given index.
	// Returns (nil, nil) when the attribute was never set.
	EdgeAttribute(ctx context.Context, rec Ref, relation string, index int, attr string) (any, error)

	// SetEdgeAttribute writes a value on the edge at the given index.
	SetEdgeAttribute(ctx context.Context, rec Ref, relation string, index int, attr string, value any) error

	// LinkedFrom is the reverse relation lookup: it returns every record in
	// sourceLibrary whose sourceRelation contains target, in stable order.
	LinkedFrom(ctx context.Context, target Ref, sourceLibrary, sourceRelation string) ([]Ref, error)

	// FindOne returns the first record in library whose field equals value.
	// The second result reports whether a record was found.
	FindOne(ctx context.Context, library, field string, value any) (Ref, bool, error)

	// Create makes a new record with the given initial fields and returns
	// its Ref. The store assigns the identifier.
	Create(ctx context.Context, library string, fields map[string]any) (Ref, error)
}

// =============================================================================
// LOGGER - Per-record observable log
// =============================================================================

// Logger appends messages to a record's own log so a human reviewing the
// record sees what happened during its last settlement run. Logging is a
// side channel: implementations swallow their own failures and must never
// affect control flow.
type Logger interface {
	Debug(ctx context.Context, rec Ref, msg string)
	Warning(ctx context.Context, rec Ref, msg string)
	Error(ctx context.Context, rec Ref, msg string, errCtx string)
}

// NopLogger discards everything. Useful for tests that only assert on
// computed values.
type NopLogger struct{}

func (NopLogger) Debug(context.Context, Ref, string)         {}
func (NopLogger) Warning(context.Context, Ref, string)       {}
func (NopLogger) Error(context.Context, Ref, string, string) {}

var _ Logger = NopLogger{}
