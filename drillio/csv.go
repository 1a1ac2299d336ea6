// Package drillio owns every file the drill writes: the per-polygon CSVs,
// the run report and the metrics textfile.
package drillio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// TimeLayout is second precision UTC with a literal Z.
const TimeLayout = "2006-01-02T15:04:05Z"

// Row is one retained observation as written to a polygon CSV.
type Row struct {
	Time      time.Time
	WetPct    float64
	WetCount  int
	LSAWetPct float64
}

func (r Row) record() []string {
	return []string{
		r.Time.UTC().Format(TimeLayout),
		FormatFloat(r.WetPct),
		strconv.Itoa(r.WetCount),
		FormatFloat(r.LSAWetPct),
	}
}

// Header names the columns. totalMasked is the pixel count behind the
// percentages of the final row.
func Header(totalMasked int) []string {
	return []string{
		"Observation Date",
		"Wet pixel percentage",
		fmt.Sprintf("Wet pixel count (n = %d)", totalMasked),
		"LSA Wet Pixel Pct",
	}
}

// FormatFloat writes the shortest representation that round-trips,
// always with a decimal point: 100.0, 0.0, 33.333333333333336, 1e-05.
func FormatFloat(v float64) string {
	switch {
	case math.IsNaN(v):
		return "nan"
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}
	if abs := math.Abs(v); abs != 0 && (abs < 1e-4 || abs >= 1e16) {
		return strconv.FormatFloat(v, 'e', -1, 64)
	}
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// WriteToCSV replaces path with a header and rows, creating the shard
// directory when needed.
func WriteToCSV(path string, rows []Row, totalMasked int) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	return writeRows(f, Header(totalMasked), rows)
}

// AppendToCSV adds rows to the end of an existing CSV. With no rows the
// file is left untouched.
func AppendToCSV(path string, rows []Row) error {
	if len(rows) == 0 {
		return nil
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0)
	if err != nil {
		return err
	}
	return writeRows(f, nil, rows)
}

// writeRows flushes after every record so an interrupted write leaves
// whole lines behind.
func writeRows(f *os.File, header []string, rows []Row) (err error) {
	defer func() {
		err = errors.Join(err, f.Close())
	}()
	w := csv.NewWriter(f)
	write := func(record []string) error {
		if err := w.Write(record); err != nil {
			return err
		}
		w.Flush()
		return w.Error()
	}

	if header != nil {
		if err := write(header); err != nil {
			return err
		}
	}
	for _, row := range rows {
		if err := write(row.record()); err != nil {
			return err
		}
	}
	logrus.Debugf("Wrote %d rows to %s", len(rows), f.Name())
	return f.Sync()
}
