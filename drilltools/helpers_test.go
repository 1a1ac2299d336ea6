package drilltools

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/airbusgeo/godal"
	"github.com/stretchr/testify/require"

	"wb-drill/config"
	"wb-drill/datacube"
	"wb-drill/polytools"
)

const (
	originX   = 1000000.0
	originY   = -2000000.0
	pixelSize = 25.0
)

func albersSR(t testing.TB) *godal.SpatialRef {
	t.Helper()
	godal.RegisterAll()
	sr, err := godal.NewSpatialRefFromEPSG(3577)
	require.NoError(t, err)
	t.Cleanup(sr.Close)
	return sr
}

func albersWKT(t testing.TB) string {
	t.Helper()
	wkt, err := albersSR(t).WKT()
	require.NoError(t, err)
	return wkt
}

// rect builds an axis aligned Albers polygon offset from the grid origin.
func rect(t testing.TB, id int64, x0, y0, x1, y1 float64) (datacube.GeoPolygon, polytools.Polygon) {
	t.Helper()
	sr := albersSR(t)
	wkt := fmt.Sprintf("POLYGON((%[1]f %[2]f,%[3]f %[2]f,%[3]f %[4]f,%[1]f %[4]f,%[1]f %[2]f))",
		originX+x0, originY-y1, originX+x1, originY-y0)
	g, err := godal.NewGeometryFromWKT(wkt, sr)
	require.NoError(t, err)
	t.Cleanup(g.Close)
	poly := polytools.Polygon{
		ID:           id,
		PID6:         polytools.PadID(id),
		Geometry:     g,
		EnvelopeArea: (x1 - x0) * (y1 - y0),
	}
	return datacube.GeoPolygon{Geometry: g, CRS: sr}, poly
}

type layer struct {
	time   time.Time
	values []uint8
}

// fakeCube serves layers of a fixed grid. Windows include their end
// instant so that neighbouring windows overlap by one observation.
type fakeCube struct {
	width, height int
	crs           string
	layers        []layer
	failures      int
	calls         int
}

func (f *fakeCube) Load(_ context.Context, q datacube.Query) (*datacube.Stack, error) {
	f.calls++
	if f.failures > 0 {
		f.failures--
		return nil, errors.New("datacube timeout")
	}
	stack := &datacube.Stack{
		Width:        f.width,
		Height:       f.height,
		GeoTransform: [6]float64{originX, pixelSize, 0, originY, 0, -pixelSize},
		CRS:          f.crs,
	}
	for _, l := range f.layers {
		if l.time.Before(q.Window.Start) || l.time.After(q.Window.End) {
			continue
		}
		stack.Times = append(stack.Times, l.time)
		stack.Data = append(stack.Data, l.values)
	}
	if stack.Empty() {
		return nil, nil
	}
	return stack, nil
}

func fixedNow() time.Time {
	return time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)
}

func newDriller(cube datacube.Datacube, span config.TimeSpan, dir string) *Driller {
	return &Driller{
		Engine:    &Engine{Cube: cube, Product: "wofs_albers"},
		Planner:   Planner{Span: span, StartDate: "1986", Now: fixedNow},
		OutputDir: dir,
	}
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
