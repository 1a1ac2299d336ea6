package datacube

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/airbusgeo/godal"
	"github.com/sirupsen/logrus"
)

// TIFFTAG_DATETIME layout, as written by GDAL.
const tiffDateTime = "2006:01:02 15:04:05"

// Cube loads stacks from the GeoTIFFs registered in an Index.
type Cube struct {
	index *Index
}

func NewCube(index *Index) *Cube {
	return &Cube{index: index}
}

// grid is the pixel-aligned target area a query is warped onto.
type grid struct {
	minX, maxY float64
	res        float64
	width      int
	height     int
}

func (g grid) bounds() [4]float64 {
	return [4]float64{g.minX, g.maxY - float64(g.height)*g.res, g.minX + float64(g.width)*g.res, g.maxY}
}

func (g grid) geoTransform() [6]float64 {
	return [6]float64{g.minX, g.res, 0, g.maxY, 0, -g.res}
}

// snapGrid expands bbox outwards to whole pixels of the product grid.
func snapGrid(bbox [4]float64, res float64) grid {
	minX := math.Floor(bbox[0]/res) * res
	minY := math.Floor(bbox[1]/res) * res
	maxX := math.Ceil(bbox[2]/res) * res
	maxY := math.Ceil(bbox[3]/res) * res
	g := grid{
		minX:   minX,
		maxY:   maxY,
		res:    res,
		width:  int(math.Round((maxX - minX) / res)),
		height: int(math.Round((maxY - minY) / res)),
	}
	if g.width < 1 {
		g.width = 1
	}
	if g.height < 1 {
		g.height = 1
	}
	return g
}

func (c *Cube) Load(ctx context.Context, q Query) (*Stack, error) {
	product, err := c.index.Product(ctx, q.Product)
	if err != nil {
		return nil, err
	}
	productSR, err := godal.NewSpatialRefFromWKT(product.CRS)
	if err != nil {
		return nil, fmt.Errorf("product %s crs: %w", product.Name, err)
	}
	defer productSR.Close()

	geom, err := q.GeoPolygon.To(productSR)
	if err != nil {
		return nil, err
	}
	defer geom.Close()
	bbox, err := geom.Bounds()
	if err != nil {
		return nil, fmt.Errorf("polygon bounds: %w", err)
	}
	g := snapGrid(bbox, product.Resolution)

	datasets, err := c.index.Datasets(ctx, product.Name, q.Window, g.bounds())
	if err != nil {
		return nil, err
	}
	if len(datasets) == 0 {
		return nil, nil
	}

	groups := [][]Dataset{}
	if q.GroupBy == GroupBySolarDay {
		lon, err := centreLongitude(bbox, productSR)
		if err != nil {
			return nil, err
		}
		groups = groupBySolarDay(datasets, lon)
	} else {
		for _, d := range datasets {
			groups = append(groups, []Dataset{d})
		}
	}

	stack := &Stack{
		Width:        g.width,
		Height:       g.height,
		GeoTransform: g.geoTransform(),
		CRS:          product.CRS,
	}
	for _, group := range groups {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		layer, err := fuseGroup(group, g, product)
		if err != nil {
			return nil, err
		}
		stack.Times = append(stack.Times, group[0].Time)
		stack.Data = append(stack.Data, layer)
	}
	logrus.Debugf("Loaded %d timesteps of %dx%d for %s", len(stack.Times), g.width, g.height, q.Window)
	return stack, nil
}

// fuseGroup warps every dataset of one solar day onto g. The first
// dataset with a valid value for a pixel wins.
func fuseGroup(group []Dataset, g grid, product Product) ([]uint8, error) {
	layer := make([]uint8, g.width*g.height)
	for i := range layer {
		layer[i] = product.NoData
	}
	buf := make([]uint8, len(layer))
	for _, d := range group {
		if err := warpDataset(d.Path, g, product, buf); err != nil {
			return nil, err
		}
		for i, v := range buf {
			if layer[i] == product.NoData && v != product.NoData {
				layer[i] = v
			}
		}
	}
	return layer, nil
}

func warpDataset(path string, g grid, product Product, buf []uint8) (err error) {
	src, err := godal.Open(path, godal.RasterOnly())
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer func() {
		err = errors.Join(err, src.Close())
	}()

	b := g.bounds()
	nodata := strconv.Itoa(int(product.NoData))
	switches := []string{
		"-of", "MEM",
		"-t_srs", product.CRS,
		"-te", ftoa(b[0]), ftoa(b[1]), ftoa(b[2]), ftoa(b[3]),
		"-ts", strconv.Itoa(g.width), strconv.Itoa(g.height),
		"-r", "near",
		"-srcnodata", nodata,
		"-dstnodata", nodata,
	}
	warped, err := src.Warp("", switches)
	if err != nil {
		return fmt.Errorf("warp %s: %w", path, err)
	}
	defer func() {
		err = errors.Join(err, warped.Close())
	}()

	if err := warped.Bands()[0].Read(0, 0, buf, g.width, g.height); err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	return nil
}

func ftoa(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func centreLongitude(bbox [4]float64, sr *godal.SpatialRef) (float64, error) {
	wgs84, err := godal.NewSpatialRefFromEPSG(4326)
	if err != nil {
		return 0, err
	}
	defer wgs84.Close()
	trn, err := godal.NewTransform(sr, wgs84)
	if err != nil {
		return 0, fmt.Errorf("transform to wgs84: %w", err)
	}
	defer trn.Close()

	xs := []float64{(bbox[0] + bbox[2]) / 2}
	ys := []float64{(bbox[1] + bbox[3]) / 2}
	if err := trn.TransformEx(xs, ys, nil, nil); err != nil {
		return 0, fmt.Errorf("transform centre: %w", err)
	}
	return xs[0], nil
}

// solarDay is the local calendar date at longitude lon, approximated as
// UTC shifted by lon/15 hours.
func solarDay(t time.Time, lon float64) string {
	offset := time.Duration(lon / 15 * float64(time.Hour))
	return t.UTC().Add(offset).Format("2006-01-02")
}

// groupBySolarDay expects datasets sorted by time and keeps that order
// within and across groups.
func groupBySolarDay(datasets []Dataset, lon float64) [][]Dataset {
	byDay := map[string][]Dataset{}
	var days []string
	for _, d := range datasets {
		day := solarDay(d.Time, lon)
		if _, ok := byDay[day]; !ok {
			days = append(days, day)
		}
		byDay[day] = append(byDay[day], d)
	}
	sort.Strings(days)
	groups := make([][]Dataset, 0, len(days))
	for _, day := range days {
		groups = append(groups, byDay[day])
	}
	return groups
}

// DescribeGeoTIFF reads the grid, CRS and acquisition time of a single
// band WOFS raster so it can be indexed.
func DescribeGeoTIFF(path, productName string) (p Product, d Dataset, err error) {
	ds, err := godal.Open(path, godal.RasterOnly())
	if err != nil {
		return Product{}, Dataset{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() {
		err = errors.Join(err, ds.Close())
	}()

	gt, err := ds.GeoTransform()
	if err != nil {
		return Product{}, Dataset{}, fmt.Errorf("%s geotransform: %w", path, err)
	}
	if gt[2] != 0 || gt[4] != 0 {
		return Product{}, Dataset{}, fmt.Errorf("%s: rotated rasters are not supported", path)
	}
	if math.Abs(gt[1]) != math.Abs(gt[5]) {
		return Product{}, Dataset{}, fmt.Errorf("%s: non-square pixels %v x %v", path, gt[1], gt[5])
	}
	sr := ds.SpatialRef()
	if sr == nil {
		return Product{}, Dataset{}, fmt.Errorf("%s: no spatial reference", path)
	}
	defer sr.Close()
	wkt, err := sr.WKT()
	if err != nil {
		return Product{}, Dataset{}, fmt.Errorf("%s crs: %w", path, err)
	}

	nodata := 1.0
	if v, ok := ds.Bands()[0].NoData(); ok {
		nodata = v
	} else {
		logrus.Warnf("%s: NoData not set, assuming %v", path, nodata)
	}

	stamp := ds.Metadata("TIFFTAG_DATETIME")
	if stamp == "" {
		return Product{}, Dataset{}, fmt.Errorf("%s: TIFFTAG_DATETIME not set", path)
	}
	t, err := time.ParseInLocation(tiffDateTime, stamp, time.UTC)
	if err != nil {
		return Product{}, Dataset{}, fmt.Errorf("%s: TIFFTAG_DATETIME: %w", path, err)
	}

	st := ds.Structure()
	x0, x1 := gt[0], gt[0]+float64(st.SizeX)*gt[1]
	y0, y1 := gt[3], gt[3]+float64(st.SizeY)*gt[5]
	minX, maxX := math.Min(x0, x1), math.Max(x0, x1)
	minY, maxY := math.Min(y0, y1), math.Max(y0, y1)

	p = Product{Name: productName, CRS: wkt, Resolution: math.Abs(gt[1]), NoData: uint8(nodata)}
	d = Dataset{Product: productName, Path: path, Time: t, Bounds: [4]float64{minX, minY, maxX, maxY}}
	return p, d, nil
}
