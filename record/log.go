package record

import (
	"context"
	"fmt"
	"time"
)

// =============================================================================
// FIELD LOGGER - Appends log lines to the record's own log fields
// =============================================================================

// FieldLogger writes debug lines to one field and warnings/errors to another,
// mirroring how the records themselves carry their settlement history. Every
// line is timestamped and appended; the fields are never truncated here.
type FieldLogger struct {
	Store      Store
	DebugField string
	ErrorField string
	Now        func() time.Time // defaults to time.Now
}

func NewFieldLogger(store Store) *FieldLogger {
	return &FieldLogger{
		Store:      store,
		DebugField: "debugLog",
		ErrorField: "errorLog",
	}
}

func (l *FieldLogger) Debug(ctx context.Context, rec Ref, msg string) {
	l.append(ctx, rec, l.DebugField, msg)
}

func (l *FieldLogger) Warning(ctx context.Context, rec Ref, msg string) {
	l.append(ctx, rec, l.ErrorField, "WARN "+msg)
}

func (l *FieldLogger) Error(ctx context.Context, rec Ref, msg string, errCtx string) {
	if errCtx != "" {
		msg = msg + " [" + errCtx + "]"
	}
	l.append(ctx, rec, l.ErrorField, "ERROR "+msg)
}

// append swallows store errors: the log is observability only and must not
// turn a successful settlement into a failure.
func (l *FieldLogger) append(ctx context.Context, rec Ref, field, msg string) {
	now := time.Now
	if l.Now != nil {
		now = l.Now
	}
	line := fmt.Sprintf("[%s] %s", now().UTC().Format("2006-01-02 15:04:05"), msg)

	prev, err := l.Store.Get(ctx, rec, field)
	if err != nil {
		return
	}
	if s, ok := AsString(prev); ok && s != "" {
		line = s + "\n" + line
	}
	_ = l.Store.Set(ctx, rec, field, line)
}

var _ Logger = (*FieldLogger)(nil)
