package datacube

import (
	"fmt"
	"strings"
	"time"
)

// Window is a half-open time range [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

func (w Window) String() string {
	return fmt.Sprintf("[%s, %s)", w.Start.Format(time.RFC3339), w.End.Format(time.RFC3339))
}

type boundLayout struct {
	layout string
	// step advances a parsed value to the end of the period it names.
	step func(time.Time) time.Time
}

var boundLayouts = []boundLayout{
	{"2006", func(t time.Time) time.Time { return t.AddDate(1, 0, 0) }},
	{"2006-01", func(t time.Time) time.Time { return t.AddDate(0, 1, 0) }},
	{"2006-01-02", func(t time.Time) time.Time { return t.AddDate(0, 0, 1) }},
	{time.RFC3339Nano, func(t time.Time) time.Time { return t.Add(time.Nanosecond) }},
	{"2006-01-02T15:04:05", func(t time.Time) time.Time { return t.Add(time.Nanosecond) }},
	{"2006-01-02 15:04:05", func(t time.Time) time.Time { return t.Add(time.Nanosecond) }},
}

// ParseBound parses a year, month, date or timestamp. A start bound is the
// first instant of the named period; an end bound is the first instant
// after it, so ("1986", "1990") covers the whole of 1986 through 1990.
func ParseBound(s string, end bool) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, bl := range boundLayouts {
		t, err := time.ParseInLocation(bl.layout, s, time.UTC)
		if err != nil {
			continue
		}
		t = t.UTC()
		if end {
			t = bl.step(t)
		}
		return t, nil
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}

func ParseWindow(start, end string) (Window, error) {
	s, err := ParseBound(start, false)
	if err != nil {
		return Window{}, err
	}
	e, err := ParseBound(end, true)
	if err != nil {
		return Window{}, err
	}
	if !s.Before(e) {
		return Window{}, fmt.Errorf("window start %s is not before end %s", start, end)
	}
	return Window{Start: s, End: e}, nil
}
