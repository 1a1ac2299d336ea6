package datacube

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexDatasets(t *testing.T) {
	ctx := context.Background()
	ix, err := OpenIndex(ctx, filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	defer func() { require.NoError(t, ix.Close()) }()

	p := Product{Name: "wofs_albers", CRS: "EPSG:3577", Resolution: 25, NoData: 1}
	require.NoError(t, ix.AddProduct(ctx, p))
	require.NoError(t, ix.AddProduct(ctx, p))
	assert.Error(t, ix.AddProduct(ctx, Product{Name: "wofs_albers", CRS: "EPSG:3577", Resolution: 30, NoData: 1}))

	got, err := ix.Product(ctx, "wofs_albers")
	require.NoError(t, err)
	assert.Equal(t, p, got)

	t0 := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, bounds := range [][4]float64{
		{0, 0, 100, 100},
		{200, 200, 300, 300},
		{0, 0, 100, 100},
	} {
		require.NoError(t, ix.AddDataset(ctx, Dataset{
			Product: "wofs_albers",
			Path:    filepath.Join("tiles", string(rune('a'+i))+".tif"),
			Time:    t0.AddDate(0, 0, 2-i),
			Bounds:  bounds,
		}))
	}

	w := Window{Start: t0, End: t0.AddDate(1, 0, 0)}
	found, err := ix.Datasets(ctx, "wofs_albers", w, [4]float64{50, 50, 60, 60})
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.True(t, found[0].Time.Before(found[1].Time))
	assert.Equal(t, filepath.Join("tiles", "c.tif"), found[0].Path)

	found, err = ix.Datasets(ctx, "wofs_albers", Window{Start: t0.AddDate(0, 0, 1), End: w.End}, [4]float64{50, 50, 60, 60})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, filepath.Join("tiles", "a.tif"), found[0].Path)

	_, err = ix.Product(ctx, "missing")
	assert.ErrorIs(t, err, ErrUnknownProduct)
}
