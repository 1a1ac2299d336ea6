package drilltools

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"wb-drill/datacube"
)

// errNoData means every window came back empty. Callers translate it
// into ErrPolygonOutsideCoverage or ErrNoNewData depending on the mode.
var errNoData = errors.New("no data in any window")

type Engine struct {
	Cube    datacube.Datacube
	Product string
}

// Drill loads each window in turn and returns the raw observations of all
// of them, strictly ascending in time.
func (e *Engine) Drill(ctx context.Context, poly datacube.GeoPolygon, windows []datacube.Window) ([]Observation, error) {
	var all []Observation
	loaded := 0
	for _, w := range windows {
		stack, err := e.Cube.Load(ctx, datacube.Query{
			Product:    e.Product,
			GeoPolygon: poly,
			Window:     w,
			GroupBy:    datacube.GroupBySolarDay,
		})
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", w, err)
		}
		if stack.Empty() {
			logrus.Debugf("No data for window %s", w)
			continue
		}
		if err := stack.Validate(); err != nil {
			return nil, err
		}
		loaded++

		mask, err := BuildMask(poly, stack)
		if err != nil {
			return nil, err
		}
		obs := Classify(stack, mask)
		sort.SliceStable(obs, func(i, j int) bool { return obs[i].Time.Before(obs[j].Time) })
		for _, o := range obs {
			if !w.Contains(o.Time) {
				logrus.Debugf("Dropping observation at %s outside %s", o.Time, w)
				continue
			}
			if n := len(all); n > 0 && !o.Time.After(all[n-1].Time) {
				logrus.Debugf("Dropping repeated observation at %s", o.Time)
				continue
			}
			all = append(all, o)
		}
	}
	if loaded == 0 {
		return nil, errNoData
	}
	return all, nil
}
