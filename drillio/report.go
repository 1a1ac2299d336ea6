package drillio

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"
	"github.com/sirupsen/logrus"
)

// ReportRow is the outcome of drilling one polygon.
type ReportRow struct {
	PID             string  `parquet:"pid"`
	ID              int64   `parquet:"id"`
	Status          string  `parquet:"status"`
	Attempts        int32   `parquet:"attempts"`
	Rows            int64   `parquet:"rows"`
	AreaM2          float64 `parquet:"area_m2"`
	S2Cell          string  `parquet:"s2_cell"`
	MeanWetPct      float64 `parquet:"mean_wet_pct"`
	MaxWetPct       float64 `parquet:"max_wet_pct"`
	DurationSeconds float64 `parquet:"duration_seconds"`
	Error           string  `parquet:"error,optional"`
}

// WriteReportParquet writes one chunk's outcomes to a snappy compressed
// parquet file.
func WriteReportParquet(path string, rows []ReportRow) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	output, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, output.Close())
	}()

	writer := parquet.NewGenericWriter[ReportRow](output, parquet.Compression(&parquet.Snappy))
	if _, err := writer.Write(rows); err != nil {
		return errors.Join(err, writer.Close())
	}
	if err := writer.Close(); err != nil {
		return err
	}
	logrus.Infof("Wrote report for %d polygons to %s", len(rows), path)
	return nil
}

func ReadReportParquet(path string) ([]ReportRow, error) {
	return parquet.ReadFile[ReportRow](path)
}
