// Package polytools reads the waterbody polygons and decides which of
// them this process drills.
package polytools

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/airbusgeo/godal"
	"github.com/golang/geo/s2"
	"github.com/sirupsen/logrus"

	"wb-drill/datacube"
)

// ErrInvalidSource is returned when the vector file cannot be read or
// carries neither an FID nor an ID attribute.
var ErrInvalidSource = errors.New("invalid polygon source")

var idFields = []string{"FID", "ID"}

type Polygon struct {
	ID       int64
	PID6     string
	Geometry *godal.Geometry
	// EnvelopeArea is the bounding box area in source CRS units.
	EnvelopeArea float64
	AreaM2       float64
	Cell         s2.CellID
}

// OutputPath shards CSVs by the first four digits of the padded id.
func (p Polygon) OutputPath(dir string) string {
	return OutputPath(dir, p.PID6)
}

func OutputPath(dir, pid6 string) string {
	return filepath.Join(dir, pid6[0:4], pid6+".csv")
}

func PadID(id int64) string {
	return fmt.Sprintf("%06d", id)
}

// Source holds every polygon of a vector file in file order.
type Source struct {
	Path     string
	IDField  string
	CRS      *godal.SpatialRef
	Polygons []Polygon
}

func (s *Source) GeoPolygon(p Polygon) datacube.GeoPolygon {
	return datacube.GeoPolygon{Geometry: p.Geometry, CRS: s.CRS}
}

func (s *Source) Close() {
	for _, p := range s.Polygons {
		p.Geometry.Close()
	}
	if s.CRS != nil {
		s.CRS.Close()
	}
}

// Open reads the first layer of path into memory.
func Open(path string) (src *Source, err error) {
	ds, err := godal.Open(path, godal.VectorOnly())
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidSource, path, err)
	}
	defer func() {
		err = errors.Join(err, ds.Close())
	}()

	layers := ds.Layers()
	if len(layers) == 0 {
		return nil, fmt.Errorf("%w: %s has no layers", ErrInvalidSource, path)
	}
	layer := layers[0]
	sr := layer.SpatialRef()
	if sr == nil {
		return nil, fmt.Errorf("%w: %s has no spatial reference", ErrInvalidSource, path)
	}
	wkt, err := sr.WKT()
	if err != nil {
		return nil, fmt.Errorf("%w: %s crs: %v", ErrInvalidSource, path, err)
	}
	crs, err := godal.NewSpatialRefFromWKT(wkt)
	if err != nil {
		return nil, fmt.Errorf("%w: %s crs: %v", ErrInvalidSource, path, err)
	}
	src = &Source{Path: path, CRS: crs}

	wgs84, err := godal.NewSpatialRefFromEPSG(4326)
	if err != nil {
		src.Close()
		return nil, err
	}
	defer wgs84.Close()

	seen := map[int64]struct{}{}
	for feat := layer.NextFeature(); feat != nil; feat = layer.NextFeature() {
		poly, err := src.readFeature(feat, wgs84)
		feat.Close()
		if err != nil {
			src.Close()
			return nil, err
		}
		if poly == nil {
			continue
		}
		// Polygons sharing an id would share a CSV.
		if _, ok := seen[poly.ID]; ok {
			poly.Geometry.Close()
			src.Close()
			return nil, fmt.Errorf("%w: %s %d appears more than once", ErrInvalidSource, src.IDField, poly.ID)
		}
		seen[poly.ID] = struct{}{}
		src.Polygons = append(src.Polygons, *poly)
	}
	logrus.Infof("Read %d polygons from %s using id field %s", len(src.Polygons), path, src.IDField)
	return src, nil
}

func (s *Source) readFeature(feat *godal.Feature, wgs84 *godal.SpatialRef) (*Polygon, error) {
	fields := feat.Fields()
	if s.IDField == "" {
		for _, name := range idFields {
			if _, ok := fields[name]; ok {
				s.IDField = name
				break
			}
		}
		if s.IDField == "" {
			return nil, fmt.Errorf("%w: %s has neither FID nor ID attribute", ErrInvalidSource, s.Path)
		}
	}
	fld, ok := fields[s.IDField]
	if !ok {
		return nil, fmt.Errorf("%w: feature without %s attribute", ErrInvalidSource, s.IDField)
	}
	id, err := parseID(fld.String())
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidSource, s.IDField, err)
	}

	wkt, err := feat.Geometry().WKT()
	if err != nil || wkt == "" || strings.HasSuffix(wkt, "EMPTY") {
		logrus.Warnf("Polygon %d has no geometry, skipping", id)
		return nil, nil
	}
	geom, err := godal.NewGeometryFromWKT(wkt, s.CRS)
	if err != nil {
		return nil, fmt.Errorf("%w: polygon %d geometry: %v", ErrInvalidSource, id, err)
	}
	bounds, err := geom.Bounds()
	if err != nil {
		geom.Close()
		return nil, fmt.Errorf("%w: polygon %d bounds: %v", ErrInvalidSource, id, err)
	}

	poly := &Polygon{
		ID:           id,
		PID6:         PadID(id),
		Geometry:     geom,
		EnvelopeArea: (bounds[2] - bounds[0]) * (bounds[3] - bounds[1]),
	}
	area, cell, err := geodesicArea(s.GeoPolygon(*poly), wgs84)
	if err != nil {
		// Area is informational, the drill does not depend on it.
		logrus.Warnf("Polygon %s area: %v", poly.PID6, err)
	}
	poly.AreaM2 = area
	poly.Cell = cell
	return poly, nil
}

func parseID(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if id, err := strconv.ParseInt(s, 10, 64); err == nil {
		return id, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) {
		return 0, fmt.Errorf("%q is not an integer", s)
	}
	return int64(f), nil
}
