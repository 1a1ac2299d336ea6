package drilltools

import (
	"errors"
	"fmt"
	"math"

	"github.com/airbusgeo/godal"

	"wb-drill/datacube"
)

// subPixelMargin is added to the pixel size when deciding whether a
// polygon is small enough to be read as a single pixel.
const subPixelMargin = 0.1

// BuildMask rasterizes the polygon onto the stack grid, pixel centres
// only. It returns a nil mask for polygons no wider or no taller than one
// pixel, which are counted against the whole stack instead.
func BuildMask(poly datacube.GeoPolygon, stack *datacube.Stack) (mask []bool, err error) {
	sr, err := godal.NewSpatialRefFromWKT(stack.CRS)
	if err != nil {
		return nil, fmt.Errorf("stack crs: %w", err)
	}
	defer sr.Close()

	geom, err := poly.To(sr)
	if err != nil {
		return nil, err
	}
	defer geom.Close()

	bounds, err := geom.Bounds()
	if err != nil {
		return nil, fmt.Errorf("polygon bounds: %w", err)
	}
	limit := math.Abs(stack.GeoTransform[1]) + subPixelMargin
	if bounds[2]-bounds[0] <= limit || bounds[3]-bounds[1] <= limit {
		return nil, nil
	}

	ds, err := godal.Create(godal.Memory, "", 1, godal.Byte, stack.Width, stack.Height)
	if err != nil {
		return nil, fmt.Errorf("create mask raster: %w", err)
	}
	defer func() {
		err = errors.Join(err, ds.Close())
	}()
	if err := ds.SetGeoTransform(stack.GeoTransform); err != nil {
		return nil, err
	}
	if err := ds.SetSpatialRef(sr); err != nil {
		return nil, err
	}
	if err := ds.RasterizeGeometry(geom, godal.Values(1)); err != nil {
		return nil, fmt.Errorf("rasterize polygon: %w", err)
	}

	buf := make([]uint8, stack.Width*stack.Height)
	if err := ds.Bands()[0].Read(0, 0, buf, stack.Width, stack.Height); err != nil {
		return nil, err
	}
	mask = make([]bool, len(buf))
	inside := 0
	for i, v := range buf {
		if v != 0 {
			mask[i] = true
			inside++
		}
	}
	if inside == 0 {
		return nil, ErrDegenerateMask
	}
	return mask, nil
}
