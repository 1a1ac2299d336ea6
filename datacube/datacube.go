// Package datacube is the query surface the drill consumes: load a
// time-stacked WOFS raster for a polygon and a time window. Cube
// implements it over GeoTIFFs registered in a sqlite Index.
package datacube

import (
	"context"
	"fmt"
	"time"

	"github.com/airbusgeo/godal"
)

const GroupBySolarDay = "solar_day"

// GeoPolygon is a geometry together with the CRS its coordinates are in.
type GeoPolygon struct {
	Geometry *godal.Geometry
	CRS      *godal.SpatialRef
}

// To returns a copy of the polygon reprojected to sr. The caller owns
// the returned geometry.
func (p GeoPolygon) To(sr *godal.SpatialRef) (*godal.Geometry, error) {
	wkt, err := p.Geometry.WKT()
	if err != nil {
		return nil, fmt.Errorf("geometry wkt: %w", err)
	}
	g, err := godal.NewGeometryFromWKT(wkt, p.CRS)
	if err != nil {
		return nil, fmt.Errorf("clone geometry: %w", err)
	}
	if p.CRS.IsSame(sr) {
		return g, nil
	}
	if err := g.Reproject(sr); err != nil {
		g.Close()
		return nil, fmt.Errorf("reproject geometry: %w", err)
	}
	return g, nil
}

type Query struct {
	Product    string
	GeoPolygon GeoPolygon
	Window     Window
	GroupBy    string
}

// Stack is a (time, y, x) raster of 8-bit WOFS observations.
// Data[t] holds one timestep in row-major order, Height rows of Width.
type Stack struct {
	Times        []time.Time
	Data         [][]uint8
	Width        int
	Height       int
	GeoTransform [6]float64
	CRS          string
}

// Empty reports whether the stack carries no observations, which is how
// a window without data is represented.
func (s *Stack) Empty() bool {
	return s == nil || len(s.Times) == 0
}

func (s *Stack) Validate() error {
	if len(s.Times) != len(s.Data) {
		return fmt.Errorf("stack has %d times but %d layers", len(s.Times), len(s.Data))
	}
	for i, layer := range s.Data {
		if len(layer) != s.Width*s.Height {
			return fmt.Errorf("layer %d has %d pixels, want %dx%d", i, len(layer), s.Width, s.Height)
		}
	}
	return nil
}

type Datacube interface {
	// Load returns nil or an empty Stack when the window holds no data.
	Load(ctx context.Context, q Query) (*Stack, error)
}
