package drilltools

import (
	"context"
	"errors"

	"wb-drill/datacube"
	"wb-drill/polytools"
)

var (
	// ErrPolygonOutsideCoverage means no window returned any data.
	ErrPolygonOutsideCoverage = errors.New("polygon outside datacube coverage")
	// ErrNoNewData means an append run found nothing after the last row.
	ErrNoNewData = errors.New("no new data")
	// ErrNoExistingCSV means an append run has no CSV to extend.
	ErrNoExistingCSV = errors.New("no existing csv to append to")
	// ErrDegenerateMask means the rasterized polygon selected no pixels.
	ErrDegenerateMask = errors.New("polygon mask selects no pixels")
)

var permanentErrors = []error{
	polytools.ErrInvalidSource,
	datacube.ErrUnknownProduct,
	ErrPolygonOutsideCoverage,
	ErrNoNewData,
	ErrNoExistingCSV,
	context.Canceled,
	context.DeadlineExceeded,
}

// IsTransient reports whether err is worth another attempt.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	for _, perm := range permanentErrors {
		if errors.Is(err, perm) {
			return false
		}
	}
	return true
}
