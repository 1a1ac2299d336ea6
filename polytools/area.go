package polytools

import (
	"fmt"

	"github.com/airbusgeo/godal"
	"github.com/goccy/go-json"
	"github.com/golang/geo/s2"

	"wb-drill/datacube"
)

const (
	EarthRadius = 6371000
	// CellLevel is the s2 level used to key polygons in the run report.
	CellLevel = 11
)

type geoJSONGeometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// geodesicArea measures the polygon on the sphere and returns the s2
// cell holding the centre of its bounding box.
func geodesicArea(poly datacube.GeoPolygon, wgs84 *godal.SpatialRef) (float64, s2.CellID, error) {
	geom, err := poly.To(wgs84)
	if err != nil {
		return 0, 0, err
	}
	defer geom.Close()

	bounds, err := geom.Bounds()
	if err != nil {
		return 0, 0, err
	}
	centre := s2.LatLngFromDegrees((bounds[1]+bounds[3])/2, (bounds[0]+bounds[2])/2)
	cell := s2.CellIDFromLatLng(centre).Parent(CellLevel)

	gj, err := geom.GeoJSON()
	if err != nil {
		return 0, cell, err
	}
	rings, err := polygonRings([]byte(gj))
	if err != nil {
		return 0, cell, err
	}
	var steradians float64
	for _, polygon := range rings {
		for i, ring := range polygon {
			a := ringArea(ring)
			if i == 0 {
				steradians += a
			} else {
				steradians -= a
			}
		}
	}
	return steradians * EarthRadius * EarthRadius, cell, nil
}

// polygonRings flattens Polygon and MultiPolygon GeoJSON into a list of
// polygons, each a list of rings of [lon, lat(, z)] positions.
func polygonRings(data []byte) ([][][][]float64, error) {
	var g geoJSONGeometry
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, err
	}
	switch g.Type {
	case "Polygon":
		var p [][][]float64
		if err := json.Unmarshal(g.Coordinates, &p); err != nil {
			return nil, err
		}
		return [][][][]float64{p}, nil
	case "MultiPolygon":
		var mp [][][][]float64
		if err := json.Unmarshal(g.Coordinates, &mp); err != nil {
			return nil, err
		}
		return mp, nil
	default:
		return nil, fmt.Errorf("unsupported geometry type %s", g.Type)
	}
}

func ringArea(ring [][]float64) float64 {
	// GeoJSON rings repeat their first position at the end.
	if n := len(ring); n > 1 && ring[0][0] == ring[n-1][0] && ring[0][1] == ring[n-1][1] {
		ring = ring[:n-1]
	}
	if len(ring) < 3 {
		return 0
	}
	points := make([]s2.Point, 0, len(ring))
	for _, pos := range ring {
		points = append(points, s2.PointFromLatLng(s2.LatLngFromDegrees(pos[1], pos[0])))
	}
	loop := s2.LoopFromPoints(points)
	loop.Normalize()
	return loop.Area()
}
