// Package drilltools extracts per-observation water extent for a polygon
// from a WOFS stack and drives a chunk of polygons through it.
package drilltools

import (
	"time"

	"wb-drill/datacube"
)

// WOFS bit patterns, compared by exact equality rather than as flag masks.
const (
	Dry           uint8 = 0
	NoData        uint8 = 1
	DryShadow     uint8 = 8
	Wet           uint8 = 128
	SeaWet        uint8 = 132
	TerrainWet    uint8 = 136
	SeaTerrainWet uint8 = 140
)

// MaxInvalidPct is the exclusive upper bound on invalid pixels for an
// observation to be kept.
const MaxInvalidPct = 10.0

func IsWet(v uint8) bool {
	switch v {
	case Wet, SeaWet, TerrainWet, SeaTerrainWet:
		return true
	}
	return false
}

func IsDry(v uint8) bool {
	return v == Dry || v == DryShadow
}

// IsLSAWet marks low solar angle (terrain shadowed) wet pixels.
func IsLSAWet(v uint8) bool {
	return v == TerrainWet
}

// Observation summarises one timestep over the polygon mask. Percentages
// are against TotalMasked.
type Observation struct {
	Time        time.Time
	WetCount    int
	DryCount    int
	LSAWetCount int
	TotalMasked int
	WetPct      float64
	DryPct      float64
	LSAWetPct   float64
	InvalidPct  float64
}

// Valid reports whether fewer than 10% of the masked pixels are invalid.
func (o Observation) Valid() bool {
	return o.InvalidPct < MaxInvalidPct
}

// observe counts one layer. A nil mask selects every pixel.
func observe(t time.Time, layer []uint8, mask []bool, total int) Observation {
	o := Observation{Time: t, TotalMasked: total}
	for i, v := range layer {
		if mask != nil && !mask[i] {
			continue
		}
		switch {
		case IsWet(v):
			o.WetCount++
			if IsLSAWet(v) {
				o.LSAWetCount++
			}
		case IsDry(v):
			o.DryCount++
		}
	}
	if total == 0 {
		o.InvalidPct = 100
		return o
	}
	n := float64(total)
	o.WetPct = 100 * float64(o.WetCount) / n
	o.DryPct = 100 * float64(o.DryCount) / n
	o.LSAWetPct = 100 * float64(o.LSAWetCount) / n
	o.InvalidPct = 100 * float64(total-o.WetCount-o.DryCount) / n
	return o
}

// Classify produces one Observation per timestep of stack.
func Classify(stack *datacube.Stack, mask []bool) []Observation {
	total := stack.Width * stack.Height
	if mask != nil {
		total = 0
		for _, in := range mask {
			if in {
				total++
			}
		}
	}
	obs := make([]Observation, 0, len(stack.Times))
	for i, t := range stack.Times {
		obs = append(obs, observe(t, stack.Data[i], mask, total))
	}
	return obs
}

// FilterValid keeps observations with less than 10% invalid pixels.
func FilterValid(obs []Observation) []Observation {
	out := make([]Observation, 0, len(obs))
	for _, o := range obs {
		if o.Valid() {
			out = append(out, o)
		}
	}
	return out
}
