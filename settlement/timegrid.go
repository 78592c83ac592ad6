/*
timegrid.go - Quarter-hour time normalization

PURPOSE:
  Recorded start/end timestamps arrive at whatever precision the capture
  device produced. Settlement computes on a 15-minute grid: both endpoints
  are rounded to the nearest quarter hour (half up) and the duration is the
  difference in hours, floored at zero.

PROPERTIES:
  - Idempotent: RoundToQuarter(RoundToQuarter(t)) == RoundToQuarter(t)
  - Non-negative: a normalized interval never has negative hours. An end
    before the start is a data-quality warning, not an error.
  - Exact: durations on the grid are exact multiples of 0.25h, so the 2dp
    rounding of Hours never loses information.
*/
package settlement

import (
	"time"

	"github.com/shopspring/decimal"
)

// QuarterHour is the settlement grid granularity.
const QuarterHour = 15 * time.Minute

// RoundToQuarter rounds t to the nearest quarter hour, half up.
// The zero time is passed through untouched.
func RoundToQuarter(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.Add(QuarterHour / 2).Truncate(QuarterHour)
}

// Interval is a normalized work interval.
type Interval struct {
	Start time.Time
	End   time.Time
	Hours decimal.Decimal // rounded to 2 places, never negative
}

// NormalizeInterval rounds both endpoints and derives the duration. Missing
// endpoints and inverted intervals degrade to zero hours with a warning.
func NormalizeInterval(start, end time.Time) (Interval, []Warning) {
	var warnings []Warning

	if start.IsZero() || end.IsZero() {
		warnings = append(warnings, Warning{
			Stage:   StageNormalize,
			Kind:    WarnMissingInput,
			Message: "start or end timestamp missing; duration defaults to 0",
		})
		return Interval{Start: RoundToQuarter(start), End: RoundToQuarter(end), Hours: decimal.Zero}, warnings
	}

	iv := Interval{Start: RoundToQuarter(start), End: RoundToQuarter(end)}

	minutes := int64(iv.End.Sub(iv.Start) / time.Minute)
	if minutes < 0 {
		warnings = append(warnings, Warning{
			Stage:   StageNormalize,
			Kind:    WarnDataQuality,
			Message: "end precedes start after rounding; duration clamped to 0",
		})
		minutes = 0
	}

	iv.Hours = round2(decimal.NewFromInt(minutes).Div(decimal.NewFromInt(60)))
	return iv, warnings
}
