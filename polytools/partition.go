package polytools

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"wb-drill/config"
)

// SmallAreaLimit splits SMALL from HUGE polygons by envelope area in m².
const SmallAreaLimit = 2000000

// Filter applies SIZE, then MISSING_ONLY, then PROCESSED_FILE.
func Filter(polys []Polygon, run *config.Run) ([]Polygon, error) {
	out := polys
	switch run.Size {
	case config.SizeSmall:
		out = keep(out, func(p Polygon) bool { return p.EnvelopeArea <= SmallAreaLimit })
		logrus.Infof("%d small polygons", len(out))
	case config.SizeHuge:
		out = keep(out, func(p Polygon) bool { return p.EnvelopeArea > SmallAreaLimit })
		logrus.Infof("%d huge polygons", len(out))
	}

	if run.MissingOnly {
		out = keep(out, func(p Polygon) bool {
			_, err := os.Stat(p.OutputPath(run.OutputDir))
			return errors.Is(err, fs.ErrNotExist)
		})
		logrus.Infof("%d missing polygons", len(out))
	}

	if run.ProcessedFile != "" {
		processed, err := readProcessed(run.ProcessedFile)
		if err != nil {
			return nil, err
		}
		out = keep(out, func(p Polygon) bool {
			_, done := processed[p.OutputPath(run.OutputDir)]
			return !done
		})
		logrus.Infof("%d polygons missing from %s", len(out), run.ProcessedFile)
	}
	return out, nil
}

func keep(polys []Polygon, pred func(Polygon) bool) []Polygon {
	out := make([]Polygon, 0, len(polys))
	for _, p := range polys {
		if pred(p) {
			out = append(out, p)
		}
	}
	return out
}

// readProcessed loads a newline separated list of CSV paths.
func readProcessed(path string) (map[string]struct{}, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: processed file: %v", config.ErrConfig, err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			logrus.Error(err)
		}
	}()

	done := map[string]struct{}{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line != "" {
			done[line] = struct{}{}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: processed file: %v", config.ErrConfig, err)
	}
	return done, nil
}

// ChunkSize is ceil(n/numChunks)+1. With the extra slot the last chunks
// can come up short or empty.
func ChunkSize(n, numChunks int) int {
	return (n+numChunks-1)/numChunks + 1
}

// Chunk returns the part'th (1-based) of numChunks contiguous slices.
func Chunk[T any](items []T, part, numChunks int) []T {
	size := ChunkSize(len(items), numChunks)
	lo := min((part-1)*size, len(items))
	hi := min(part*size, len(items))
	logrus.Infof("The index we will use is (%d, %d)", (part-1)*size, part*size)
	return items[lo:hi]
}

// Stagger blocks for step×part, the admission delay of chunk part.
func Stagger(ctx context.Context, step time.Duration, part int) error {
	wait := step * time.Duration(part)
	if wait <= 0 {
		return nil
	}
	logrus.Infof("Staggering start by %v", wait)
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
