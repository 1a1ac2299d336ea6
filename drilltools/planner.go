package drilltools

import (
	"fmt"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"wb-drill/config"
	"wb-drill/datacube"
	"wb-drill/drillio"
	"wb-drill/polytools"
)

const (
	FirstYear   = 1986
	WindowYears = 5
)

// Planner picks the time windows a polygon is queried over.
type Planner struct {
	Span          config.TimeSpan
	StartDate     string
	EndDate       string
	AppendMaxDays int
	Now           func() time.Time
}

func NewPlanner(run *config.Run) Planner {
	return Planner{
		Span:          run.TimeSpan,
		StartDate:     run.StartDate,
		EndDate:       run.EndDate,
		AppendMaxDays: run.AppendMaxDays,
		Now:           time.Now,
	}
}

func (p Planner) now() time.Time {
	if p.Now == nil {
		return time.Now().UTC()
	}
	return p.Now().UTC()
}

// Windows returns the query windows for poly in chronological order.
// csvPath is only read in APPEND mode.
func (p Planner) Windows(poly polytools.Polygon, csvPath string) ([]datacube.Window, error) {
	year := p.now().Year()
	switch p.Span {
	case config.SpanAll:
		// Huge polygons are split into 5 year windows to bound the size of
		// each loaded stack.
		if poly.EnvelopeArea > polytools.SmallAreaLimit {
			var windows []datacube.Window
			for y := FirstYear; y <= year; y += WindowYears {
				w, err := datacube.ParseWindow(strconv.Itoa(y), strconv.Itoa(y+WindowYears-1))
				if err != nil {
					return nil, err
				}
				windows = append(windows, w)
			}
			return windows, nil
		}
		w, err := datacube.ParseWindow(strconv.Itoa(FirstYear), strconv.Itoa(year))
		if err != nil {
			return nil, err
		}
		return []datacube.Window{w}, nil

	case config.SpanAppend:
		start, err := p.appendStart(csvPath)
		if err != nil {
			return nil, err
		}
		end, err := datacube.ParseBound(strconv.Itoa(year), true)
		if err != nil {
			return nil, err
		}
		if !start.Before(end) {
			return nil, fmt.Errorf("%w: next start %s is past %d", ErrNoNewData, start.Format("2006-01-02"), year)
		}
		return []datacube.Window{{Start: start, End: end}}, nil

	case config.SpanCustom:
		end := p.EndDate
		if end == "" {
			end = strconv.Itoa(year)
		}
		w, err := datacube.ParseWindow(p.StartDate, end)
		if err != nil {
			return nil, err
		}
		return []datacube.Window{w}, nil
	}
	return nil, fmt.Errorf("%w: unknown TIME_SPAN %q", config.ErrConfig, p.Span)
}

// appendStart is the day after the last row of the CSV, clamped to
// AppendMaxDays before now when set.
func (p Planner) appendStart(csvPath string) (time.Time, error) {
	last, err := drillio.LastObservation(csvPath)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrNoExistingCSV, err)
	}
	next := last.AddDate(0, 0, 1)
	if p.AppendMaxDays > 0 {
		earliest := p.now().AddDate(0, 0, -p.AppendMaxDays)
		if next.Before(earliest) {
			logrus.Debugf("Clamping append start %s to %d days ago", next.Format(time.RFC3339), p.AppendMaxDays)
			next = earliest
		}
	}
	return time.Date(next.Year(), next.Month(), next.Day(), 0, 0, 0, 0, time.UTC), nil
}
