// Package calendar derives time features from the raw occurrence date and
// time columns. Derivation is a pure function of the two strings: the same
// pair always yields the same timestamp, hour, ISO weekday and month.
package calendar

import (
	"fmt"
	"time"

	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/kpritch24/nypd-shooting-incident/internal/config"
	"github.com/kpritch24/nypd-shooting-incident/internal/errs"
	"github.com/kpritch24/nypd-shooting-incident/internal/frame"
)

// Source layouts of the published dataset.
const (
	dateLayout = "01/02/2006"
	timeLayout = "15:04:05"
)

// Derived holds the calendar features of one observation.
type Derived struct {
	Timestamp time.Time
	Hour      int // 0..23
	Weekday   int // ISO: Monday=1 .. Sunday=7
	Month     int // 1..12
}

// Derive parses a (date, time) pair and computes its calendar features.
// Malformed input yields a ParseError.
func Derive(date, timeOfDay string) (Derived, error) {
	const op = "calendar.Derive"

	d, err := time.Parse(dateLayout, date)
	if err != nil {
		return Derived{}, errs.NewParse(op, fmt.Sprintf("malformed date %q", date), err)
	}
	t, err := time.Parse(timeLayout, timeOfDay)
	if err != nil {
		return Derived{}, errs.NewParse(op, fmt.Sprintf("malformed time %q", timeOfDay), err)
	}

	ts := time.Date(d.Year(), d.Month(), d.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC)

	return Derived{
		Timestamp: ts,
		Hour:      ts.Hour(),
		Weekday:   isoWeekday(ts.Weekday()),
		Month:     int(ts.Month()),
	}, nil
}

// isoWeekday maps Go's Sunday=0 convention to ISO Monday=1..Sunday=7.
func isoWeekday(w time.Weekday) int {
	if w == time.Sunday {
		return 7
	}
	return int(w)
}

// AppendColumns derives hour, weekday and month columns for every row and
// returns a new frame with the derived columns appended under the names in
// the calendar spec. Rows with a missing date or time derive null cells; a
// present but malformed cell aborts with a ParseError.
func AppendColumns(f *frame.Frame, spec config.CalendarSpec, mem memory.Allocator) (*frame.Frame, error) {
	const op = "calendar.AppendColumns"

	dateCol, ok := f.Column(spec.DateColumn)
	if !ok {
		return nil, errs.NewSchema(op, spec.DateColumn, "date column not found")
	}
	timeCol, ok := f.Column(spec.TimeColumn)
	if !ok {
		return nil, errs.NewSchema(op, spec.TimeColumn, "time column not found")
	}

	n := f.Len()
	hours := make([]int64, n)
	weekdays := make([]int64, n)
	months := make([]int64, n)
	valid := make([]bool, n)

	for i := 0; i < n; i++ {
		if dateCol.IsNull(i) || timeCol.IsNull(i) {
			continue
		}
		derived, err := Derive(dateCol.StringAt(i), timeCol.StringAt(i))
		if err != nil {
			return nil, err
		}
		hours[i] = int64(derived.Hour)
		weekdays[i] = int64(derived.Weekday)
		months[i] = int64(derived.Month)
		valid[i] = true
	}

	out := f.
		WithColumn(frame.NewInt64(spec.HourColumn, hours, valid, mem)).
		WithColumn(frame.NewInt64(spec.WeekdayColumn, weekdays, valid, mem)).
		WithColumn(frame.NewInt64(spec.MonthColumn, months, valid, mem))
	return out, nil
}
