/*
errors.go - Error taxonomy for the settlement engine

PURPOSE:
  Only two things end a run: the record store rejecting a read/write, and a
  structurally broken report. Everything else degrades to a default value
  and a Warning (see types.go). This file defines the fatal side.

FAILURE MODEL:
  Best-effort forward progress. Stages commit their writes as they go; a
  fatal error does NOT roll back what earlier stages already wrote. The
  caller decides whether to retry the whole run.

USAGE:
  if errors.Is(err, settlement.ErrStructuralInconsistency) {
      // do not retry blindly: a broken report risks duplicate creation
  }
  var se *settlement.StageError
  if errors.As(err, &se) {
      log.Printf("stage %s failed for %s", se.Stage, se.Record)
  }
*/
package settlement

import (
	"errors"
	"fmt"

	"github.com/warp/settlement-engine/record"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrStructuralInconsistency is returned when a job report exists but
	// its line-item relation cannot be read. Treated as fatal: silently
	// skipping it risks creating a duplicate report on the next run.
	ErrStructuralInconsistency = errors.New("job report line items unreadable")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// StageError wraps a store failure with the stage and record it happened in.
// The underlying store error is reachable through Unwrap.
type StageError struct {
	Stage  Stage
	Record record.Ref
	Err    error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("settlement stage %s failed for %s: %v", e.Stage, e.Record, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// StructuralInconsistencyError reports which report was broken and why.
type StructuralInconsistencyError struct {
	Report record.Ref
	Err    error
}

func (e *StructuralInconsistencyError) Error() string {
	return fmt.Sprintf("job report %s: line items unreadable: %v", e.Report, e.Err)
}

func (e *StructuralInconsistencyError) Unwrap() error { return ErrStructuralInconsistency }
