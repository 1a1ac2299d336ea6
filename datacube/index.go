package datacube

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

var ErrUnknownProduct = errors.New("unknown product")

const schema = `
CREATE TABLE IF NOT EXISTS product (
	name       TEXT PRIMARY KEY,
	crs_wkt    TEXT NOT NULL,
	resolution REAL NOT NULL,
	nodata     INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS dataset (
	product TEXT NOT NULL REFERENCES product(name),
	path    TEXT NOT NULL,
	time    INTEGER NOT NULL,
	minx    REAL NOT NULL,
	miny    REAL NOT NULL,
	maxx    REAL NOT NULL,
	maxy    REAL NOT NULL,
	PRIMARY KEY (product, path)
);
CREATE INDEX IF NOT EXISTS dataset_time ON dataset (product, time);
`

type Product struct {
	Name       string
	CRS        string
	Resolution float64
	NoData     uint8
}

// Dataset is one registered raster. Bounds are minx, miny, maxx, maxy in
// the product CRS.
type Dataset struct {
	Product string
	Path    string
	Time    time.Time
	Bounds  [4]float64
}

// Index records which rasters make up each product.
type Index struct {
	db *sql.DB
}

func OpenIndex(ctx context.Context, path string) (*Index, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open index %s: %w", path, err)
	}
	// A single connection keeps sqlite writers from tripping over each other.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, errors.Join(fmt.Errorf("create index schema: %w", err), db.Close())
	}
	return &Index{db: db}, nil
}

func (ix *Index) Close() error {
	return ix.db.Close()
}

// AddProduct registers p, or checks that an existing product with the
// same name shares its grid.
func (ix *Index) AddProduct(ctx context.Context, p Product) error {
	existing, err := ix.Product(ctx, p.Name)
	switch {
	case errors.Is(err, ErrUnknownProduct):
		_, err = ix.db.ExecContext(ctx,
			`INSERT INTO product (name, crs_wkt, resolution, nodata) VALUES (?, ?, ?, ?)`,
			p.Name, p.CRS, p.Resolution, int(p.NoData))
		if err != nil {
			return fmt.Errorf("insert product %s: %w", p.Name, err)
		}
		logrus.Infof("Registered product %s at %v resolution", p.Name, p.Resolution)
		return nil
	case err != nil:
		return err
	}
	if existing.Resolution != p.Resolution || existing.NoData != p.NoData {
		return fmt.Errorf("product %s already registered with resolution %v nodata %d, got %v nodata %d",
			p.Name, existing.Resolution, existing.NoData, p.Resolution, p.NoData)
	}
	return nil
}

func (ix *Index) Product(ctx context.Context, name string) (Product, error) {
	p := Product{Name: name}
	var nodata int
	err := ix.db.QueryRowContext(ctx,
		`SELECT crs_wkt, resolution, nodata FROM product WHERE name = ?`, name,
	).Scan(&p.CRS, &p.Resolution, &nodata)
	if errors.Is(err, sql.ErrNoRows) {
		return Product{}, fmt.Errorf("%w: %s", ErrUnknownProduct, name)
	}
	if err != nil {
		return Product{}, fmt.Errorf("query product %s: %w", name, err)
	}
	p.NoData = uint8(nodata)
	return p, nil
}

func (ix *Index) AddDataset(ctx context.Context, d Dataset) error {
	_, err := ix.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO dataset (product, path, time, minx, miny, maxx, maxy)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		d.Product, d.Path, d.Time.UnixNano(), d.Bounds[0], d.Bounds[1], d.Bounds[2], d.Bounds[3])
	if err != nil {
		return fmt.Errorf("insert dataset %s: %w", d.Path, err)
	}
	return nil
}

// Datasets returns the product's rasters observed within w whose bounds
// intersect bbox, oldest first.
func (ix *Index) Datasets(ctx context.Context, product string, w Window, bbox [4]float64) ([]Dataset, error) {
	rows, err := ix.db.QueryContext(ctx,
		`SELECT path, time, minx, miny, maxx, maxy FROM dataset
		 WHERE product = ? AND time >= ? AND time < ?
		   AND minx < ? AND maxx > ? AND miny < ? AND maxy > ?
		 ORDER BY time, path`,
		product, w.Start.UnixNano(), w.End.UnixNano(),
		bbox[2], bbox[0], bbox[3], bbox[1])
	if err != nil {
		return nil, fmt.Errorf("query datasets: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logrus.Error(err)
		}
	}()

	var out []Dataset
	for rows.Next() {
		d := Dataset{Product: product}
		var ns int64
		if err := rows.Scan(&d.Path, &ns, &d.Bounds[0], &d.Bounds[1], &d.Bounds[2], &d.Bounds[3]); err != nil {
			return nil, fmt.Errorf("scan dataset: %w", err)
		}
		d.Time = time.Unix(0, ns).UTC()
		out = append(out, d)
	}
	return out, rows.Err()
}
