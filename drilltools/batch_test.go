package drilltools

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wb-drill/config"
	"wb-drill/drillio"
	"wb-drill/polytools"
)

func TestBatchRun(t *testing.T) {
	dir := t.TempDir()
	cube := &fakeCube{width: 1, height: 1, crs: albersWKT(t), layers: []layer{
		{day(2020, 1, 1), []uint8{Wet}},
		{day(2020, 2, 1), []uint8{Dry}},
	}}
	_, p1 := rect(t, 1, 0, 0, 25, 25)
	_, p2 := rect(t, 20001, 0, 0, 25, 25)
	src := &polytools.Source{CRS: albersSR(t), Polygons: []polytools.Polygon{p1, p2}}
	metrics := drillio.NewMetrics(1)

	b := &Batch{Driller: newDriller(cube, config.SpanAll, dir), Source: src, Metrics: metrics}
	summary := b.Run(context.Background(), src.Polygons)
	assert.Equal(t, 2, summary.Counts[StatusWritten])
	require.Len(t, summary.Results, 2)
	assert.FileExists(t, polytools.OutputPath(dir, "000001"))
	assert.FileExists(t, polytools.OutputPath(dir, "020001"))

	rows := summary.ReportRows()
	require.Len(t, rows, 2)
	assert.Equal(t, "020001", rows[1].PID)
	assert.Equal(t, "written", rows[0].Status)
	assert.Equal(t, int64(2), rows[0].Rows)
	assert.Equal(t, 50.0, rows[0].MeanWetPct)
	assert.Equal(t, 100.0, rows[0].MaxWetPct)
	assert.Empty(t, rows[0].Error)

	series, err := testutil.GatherAndCount(metrics.Registry(), "wbdrill_polygons_total")
	require.NoError(t, err)
	assert.Equal(t, 1, series)
}
