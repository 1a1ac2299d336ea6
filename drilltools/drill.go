package drilltools

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"wb-drill/config"
	"wb-drill/datacube"
	"wb-drill/drillio"
	"wb-drill/polytools"
)

type Status string

const (
	StatusWritten         Status = "written"
	StatusNoNewData       Status = "no_new_data"
	StatusOutsideCoverage Status = "outside_coverage"
	StatusSkipped         Status = "skipped"
	StatusFailed          Status = "failed"
)

// Result is what happened to one polygon.
type Result struct {
	Polygon  polytools.Polygon
	Status   Status
	Attempts int
	Rows     int
	WetPcts  []float64
	Elapsed  time.Duration
	Err      error
}

// Driller runs the planner, engine and serializer for single polygons.
type Driller struct {
	Engine     *Engine
	Planner    Planner
	OutputDir  string
	RetryDelay time.Duration
}

func (d *Driller) appending() bool {
	return d.Planner.Span == config.SpanAppend
}

// DrillPolygon drills poly with retries. It never returns an error; the
// outcome is recorded in the Result.
func (d *Driller) DrillPolygon(ctx context.Context, gp datacube.GeoPolygon, poly polytools.Polygon) Result {
	start := time.Now()
	log := logrus.WithField("pid", poly.PID6)

	var rows []drillio.Row
	attempts, err := Retry(ctx, d.RetryDelay, poly.PID6, func(int) error {
		var err error
		rows, err = d.drillOnce(ctx, gp, poly)
		return err
	})

	res := Result{Polygon: poly, Attempts: attempts, Elapsed: time.Since(start)}
	switch {
	case err == nil:
		res.Status = StatusWritten
		res.Rows = len(rows)
		for _, r := range rows {
			res.WetPcts = append(res.WetPcts, r.WetPct)
		}
		log.Infof("Wrote %d observations to %s", len(rows), poly.OutputPath(d.OutputDir))
	case errors.Is(err, ErrNoNewData):
		res.Status = StatusNoNewData
		log.Infof("There is no new data for %s", poly.PID6)
	case errors.Is(err, ErrPolygonOutsideCoverage):
		res.Status = StatusOutsideCoverage
		log.Warnf("Polygon %s is outside datacube coverage", poly.PID6)
	case errors.Is(err, ErrNoExistingCSV):
		res.Status = StatusSkipped
		log.Warnf("There is no csv for %s: %v", poly.PID6, err)
	default:
		res.Status = StatusFailed
		res.Err = err
		log.Errorf("Polygon %s failed after %d attempts: %v", poly.PID6, attempts, err)
	}
	return res
}

func (d *Driller) drillOnce(ctx context.Context, gp datacube.GeoPolygon, poly polytools.Polygon) ([]drillio.Row, error) {
	path := poly.OutputPath(d.OutputDir)
	windows, err := d.Planner.Windows(poly, path)
	if err != nil {
		return nil, err
	}

	obs, err := d.Engine.Drill(ctx, gp, windows)
	if errors.Is(err, errNoData) {
		if d.appending() {
			return nil, ErrNoNewData
		}
		return nil, ErrPolygonOutsideCoverage
	}
	if err != nil {
		return nil, err
	}

	valid := FilterValid(obs)
	rows := make([]drillio.Row, 0, len(valid))
	for _, o := range valid {
		rows = append(rows, drillio.Row{Time: o.Time, WetPct: o.WetPct, WetCount: o.WetCount, LSAWetPct: o.LSAWetPct})
	}
	logrus.WithField("pid", poly.PID6).Debugf("%d of %d observations pass the validity filter", len(valid), len(obs))

	if d.appending() {
		if len(rows) == 0 {
			return nil, fmt.Errorf("%w: no valid observations since last row", ErrNoNewData)
		}
		return rows, drillio.AppendToCSV(path, rows)
	}
	return rows, drillio.WriteToCSV(path, rows, headerCount(obs, valid))
}

// headerCount is the masked pixel count reported in the CSV header: that
// of the last retained observation, or of the last raw one when nothing
// was retained.
func headerCount(obs, valid []Observation) int {
	if n := len(valid); n > 0 {
		return valid[n-1].TotalMasked
	}
	if n := len(obs); n > 0 {
		return obs[n-1].TotalMasked
	}
	return 0
}
