package drilltools

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wb-drill/datacube"
)

func TestWetAndDryAreDisjoint(t *testing.T) {
	wet, dry := 0, 0
	for v := 0; v < 256; v++ {
		b := uint8(v)
		assert.False(t, IsWet(b) && IsDry(b), "value %d is both wet and dry", v)
		if IsLSAWet(b) {
			assert.True(t, IsWet(b), "LSA value %d is not wet", v)
		}
		if IsWet(b) {
			wet++
		}
		if IsDry(b) {
			dry++
		}
	}
	assert.Equal(t, 4, wet)
	assert.Equal(t, 2, dry)
}

func TestPercentagesClose(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	palette := []uint8{0, 1, 8, 128, 132, 136, 140, 2, 64, 200}
	for i := 0; i < 200; i++ {
		n := 1 + rng.Intn(50)
		values := make([]uint8, n)
		mask := make([]bool, n)
		total := 0
		for j := range values {
			values[j] = palette[rng.Intn(len(palette))]
			mask[j] = rng.Intn(4) > 0
			if mask[j] {
				total++
			}
		}
		o := observe(time.Time{}, values, mask, total)
		if total == 0 {
			assert.Equal(t, 100.0, o.InvalidPct)
			continue
		}
		assert.Less(t, math.Abs(o.WetPct+o.DryPct+o.InvalidPct-100), 1e-6)
		assert.GreaterOrEqual(t, o.InvalidPct, -1e-9)
		assert.LessOrEqual(t, o.LSAWetPct, o.WetPct)
	}
}

func TestClassifyWithMask(t *testing.T) {
	stack := &datacube.Stack{
		Times:  []time.Time{day(2020, 1, 1)},
		Data:   [][]uint8{{128, 136, 0, 1, 140, 8}},
		Width:  3,
		Height: 2,
	}
	obs := Classify(stack, []bool{true, true, true, true, false, false})
	require.Len(t, obs, 1)
	o := obs[0]
	assert.Equal(t, 4, o.TotalMasked)
	assert.Equal(t, 2, o.WetCount)
	assert.Equal(t, 1, o.DryCount)
	assert.Equal(t, 1, o.LSAWetCount)
	assert.Equal(t, 50.0, o.WetPct)
	assert.Equal(t, 25.0, o.DryPct)
	assert.Equal(t, 25.0, o.InvalidPct)
	assert.False(t, o.Valid())

	unmasked := Classify(stack, nil)[0]
	assert.Equal(t, 6, unmasked.TotalMasked)
	assert.Equal(t, 3, unmasked.WetCount)
}

func TestTenPercentInvalidIsRejected(t *testing.T) {
	for _, total := range []int{10, 30, 60, 70, 90, 110} {
		invalid := total / 10
		wet := total / 3
		values := make([]uint8, 0, total)
		for i := 0; i < total; i++ {
			switch {
			case i < invalid:
				values = append(values, NoData)
			case i < invalid+wet:
				values = append(values, Wet)
			default:
				values = append(values, Dry)
			}
		}
		o := observe(day(2020, 1, 1), values, nil, total)
		assert.Equal(t, 10.0, o.InvalidPct, "total %d", total)
		assert.False(t, o.Valid(), "total %d", total)
	}

	o := observe(day(2020, 1, 1), append(append(make([]uint8, 19), 1, 1, 1), 128, 128, 128, 128, 128, 128, 128, 128), nil, 30)
	assert.Equal(t, 8, o.WetCount)
	assert.Equal(t, 19, o.DryCount)
	assert.False(t, o.Valid())
}

func TestObserveEmptyMask(t *testing.T) {
	o := observe(day(2020, 1, 1), []uint8{128}, []bool{false}, 0)
	assert.Equal(t, 100.0, o.InvalidPct)
	assert.Equal(t, 0.0, o.WetPct)
	assert.False(t, o.Valid())
	assert.False(t, math.IsNaN(o.WetPct))
}

func TestFilterValid(t *testing.T) {
	obs := []Observation{{InvalidPct: 0}, {InvalidPct: 9.999}, {InvalidPct: 10}, {InvalidPct: 50}}
	assert.Len(t, FilterValid(obs), 2)
}
