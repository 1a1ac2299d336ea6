package datacube

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/airbusgeo/godal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const albers = 3577

// writeWofl creates a 2x2 25 m GeoTIFF in Australian Albers with its
// top-left corner at (1000000, -2000000).
func writeWofl(t testing.TB, dir, name string, stamp time.Time, values []byte) string {
	t.Helper()
	godal.RegisterAll()

	path := filepath.Join(dir, name)
	ds, err := godal.Create(godal.GTiff, path, 1, godal.Byte, 2, 2)
	require.NoError(t, err)

	sr, err := godal.NewSpatialRefFromEPSG(albers)
	require.NoError(t, err)
	defer sr.Close()
	require.NoError(t, ds.SetSpatialRef(sr))
	require.NoError(t, ds.SetGeoTransform([6]float64{1000000, 25, 0, -2000000, 0, -25}))
	require.NoError(t, ds.SetMetadata("TIFFTAG_DATETIME", stamp.UTC().Format(tiffDateTime)))

	band := ds.Bands()[0]
	require.NoError(t, band.SetNoData(1))
	require.NoError(t, band.Write(0, 0, values, 2, 2))
	require.NoError(t, ds.Close())
	return path
}

func albersSquare(t testing.TB) GeoPolygon {
	t.Helper()
	sr, err := godal.NewSpatialRefFromEPSG(albers)
	require.NoError(t, err)
	g, err := godal.NewGeometryFromWKT(
		"POLYGON((1000000 -2000050,1000050 -2000050,1000050 -2000000,1000000 -2000000,1000000 -2000050))", sr)
	require.NoError(t, err)
	t.Cleanup(func() {
		g.Close()
		sr.Close()
	})
	return GeoPolygon{Geometry: g, CRS: sr}
}

func setUpCube(t testing.TB) *Cube {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()
	ix, err := OpenIndex(ctx, filepath.Join(dir, "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = ix.Close() })

	day1 := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	files := []struct {
		name   string
		stamp  time.Time
		values []byte
	}{
		{"a.tif", day1, []byte{128, 1, 1, 0}},
		{"b.tif", day1.Add(30 * time.Second), []byte{0, 136, 1, 8}},
		{"c.tif", day1.AddDate(0, 0, 4), []byte{8, 8, 8, 8}},
	}
	for _, f := range files {
		path := writeWofl(t, dir, f.name, f.stamp, f.values)
		p, d, err := DescribeGeoTIFF(path, "wofs_albers")
		require.NoError(t, err)
		require.NoError(t, ix.AddProduct(ctx, p))
		require.NoError(t, ix.AddDataset(ctx, d))
	}
	return NewCube(ix)
}

func TestDescribeGeoTIFF(t *testing.T) {
	dir := t.TempDir()
	stamp := time.Date(2019, 3, 4, 1, 2, 3, 0, time.UTC)
	path := writeWofl(t, dir, "x.tif", stamp, []byte{0, 0, 0, 0})

	p, d, err := DescribeGeoTIFF(path, "wofs_albers")
	require.NoError(t, err)
	assert.Equal(t, 25.0, p.Resolution)
	assert.Equal(t, uint8(1), p.NoData)
	assert.True(t, stamp.Equal(d.Time))
	assert.Equal(t, [4]float64{1000000, -2000050, 1000050, -2000000}, d.Bounds)
}

func TestCubeLoadFusesSolarDays(t *testing.T) {
	cube := setUpCube(t)
	w, err := ParseWindow("2020", "2020")
	require.NoError(t, err)

	stack, err := cube.Load(context.Background(), Query{
		Product:    "wofs_albers",
		GeoPolygon: albersSquare(t),
		Window:     w,
		GroupBy:    GroupBySolarDay,
	})
	require.NoError(t, err)
	require.NoError(t, stack.Validate())
	require.Len(t, stack.Times, 2)
	assert.Equal(t, 2, stack.Width)
	assert.Equal(t, 2, stack.Height)
	assert.True(t, stack.Times[0].Equal(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, []uint8{128, 136, 1, 0}, stack.Data[0])
	assert.Equal(t, []uint8{8, 8, 8, 8}, stack.Data[1])
}

func TestCubeLoadEmptyWindow(t *testing.T) {
	cube := setUpCube(t)
	w, err := ParseWindow("2021", "2022")
	require.NoError(t, err)

	stack, err := cube.Load(context.Background(), Query{
		Product:    "wofs_albers",
		GeoPolygon: albersSquare(t),
		Window:     w,
		GroupBy:    GroupBySolarDay,
	})
	require.NoError(t, err)
	assert.True(t, stack.Empty())
}

func TestCubeLoadUnknownProduct(t *testing.T) {
	cube := setUpCube(t)
	w, err := ParseWindow("2020", "2020")
	require.NoError(t, err)
	_, err = cube.Load(context.Background(), Query{Product: "nope", GeoPolygon: albersSquare(t), Window: w})
	assert.ErrorIs(t, err, ErrUnknownProduct)
}

func TestSnapGrid(t *testing.T) {
	g := snapGrid([4]float64{1000010, -2000040, 1000030, -2000010}, 25)
	assert.Equal(t, [4]float64{1000000, -2000050, 1000050, -2000000}, g.bounds())
	assert.Equal(t, 2, g.width)
	assert.Equal(t, 2, g.height)

	g = snapGrid([4]float64{1000005, -2000010, 1000005, -2000010}, 25)
	assert.Equal(t, 1, g.width)
	assert.Equal(t, 1, g.height)
}

func TestGroupBySolarDay(t *testing.T) {
	base := time.Date(2020, 1, 1, 20, 0, 0, 0, time.UTC)
	datasets := []Dataset{
		{Path: "a", Time: base},
		{Path: "b", Time: base.Add(5 * time.Hour)},
		{Path: "c", Time: base.Add(30 * time.Hour)},
	}
	// At 150E, 20:00 UTC is already the next local day, as is 01:00 UTC.
	groups := groupBySolarDay(datasets, 150)
	require.Len(t, groups, 2)
	assert.Len(t, groups[0], 2)
	assert.Equal(t, "c", groups[1][0].Path)

	groups = groupBySolarDay(datasets, 0)
	assert.Len(t, groups, 3)
}
