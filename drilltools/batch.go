package drilltools

import (
	"context"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"wb-drill/drillio"
	"wb-drill/polytools"
)

// Batch drills a chunk of polygons one after another.
type Batch struct {
	Driller *Driller
	Source  *polytools.Source
	Metrics *drillio.Metrics
}

type Summary struct {
	Counts  map[Status]int
	Results []Result
}

func (b *Batch) Run(ctx context.Context, polys []polytools.Polygon) Summary {
	summary := Summary{Counts: map[Status]int{}}
	if b.Metrics != nil {
		b.Metrics.SetChunkSize(len(polys))
	}
	for i, poly := range polys {
		if err := ctx.Err(); err != nil {
			logrus.Warnf("Stopping after %d of %d polygons: %v", i, len(polys), err)
			break
		}
		logrus.Infof("processing polygon %s", poly.PID6)
		res := b.Driller.DrillPolygon(ctx, b.Source.GeoPolygon(poly), poly)
		summary.Counts[res.Status]++
		summary.Results = append(summary.Results, res)
		if b.Metrics != nil {
			b.Metrics.Observe(string(res.Status), res.Elapsed)
		}
	}
	logrus.Warnf("Processed %d polygons: %d written, %d no new data, %d outside coverage, %d skipped, %d failed",
		len(summary.Results),
		summary.Counts[StatusWritten],
		summary.Counts[StatusNoNewData],
		summary.Counts[StatusOutsideCoverage],
		summary.Counts[StatusSkipped],
		summary.Counts[StatusFailed])
	return summary
}

func (s Summary) ReportRows() []drillio.ReportRow {
	rows := make([]drillio.ReportRow, 0, len(s.Results))
	for _, res := range s.Results {
		row := drillio.ReportRow{
			PID:             res.Polygon.PID6,
			ID:              res.Polygon.ID,
			Status:          string(res.Status),
			Attempts:        int32(res.Attempts),
			Rows:            int64(res.Rows),
			AreaM2:          res.Polygon.AreaM2,
			DurationSeconds: res.Elapsed.Seconds(),
		}
		if res.Polygon.Cell.IsValid() {
			row.S2Cell = res.Polygon.Cell.ToToken()
		}
		if len(res.WetPcts) > 0 {
			row.MeanWetPct = stat.Mean(res.WetPcts, nil)
			row.MaxWetPct = floats.Max(res.WetPcts)
		}
		if res.Err != nil {
			row.Error = res.Err.Error()
		}
		rows = append(rows, row)
	}
	return rows
}
