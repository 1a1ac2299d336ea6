package drillio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

var (
	ErrEmptyCSV       = errors.New("csv has no rows")
	ErrUnparseableRow = errors.New("csv row has no observation date")
)

const tailChunk = 4096

var observationLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// LastLine returns the final non-empty line of path, reading backwards
// from the end of the file.
func LastLine(path string) (line string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() {
		err = errors.Join(err, f.Close())
	}()
	info, err := f.Stat()
	if err != nil {
		return "", err
	}

	var tail []byte
	for end := info.Size(); end > 0; {
		start := max(end-tailChunk, 0)
		chunk := make([]byte, end-start)
		if _, err := f.ReadAt(chunk, start); err != nil && !errors.Is(err, io.EOF) {
			return "", err
		}
		tail = append(chunk, tail...)
		trimmed := bytes.TrimRight(tail, "\r\n")
		if i := bytes.LastIndexByte(trimmed, '\n'); i >= 0 {
			return string(bytes.TrimRight(trimmed[i+1:], "\r")), nil
		}
		if start == 0 && len(trimmed) > 0 {
			return string(trimmed), nil
		}
		end = start
	}
	return "", fmt.Errorf("%w: %s", ErrEmptyCSV, path)
}

// LastObservation parses the date in the first column of the last row.
func LastObservation(path string) (time.Time, error) {
	line, err := LastLine(path)
	if err != nil {
		return time.Time{}, err
	}
	field, _, _ := strings.Cut(line, ",")
	field = strings.Trim(strings.TrimSpace(field), `"`)
	for _, layout := range observationLayouts {
		if t, err := time.ParseInLocation(layout, field, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %s: %q", ErrUnparseableRow, path, field)
}
