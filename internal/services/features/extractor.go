package features

import (
	"math"
	"sort"

	"MarketPulse/internal/domain/models"
)

// BarFeatures are the raw per-bar quantities the scorer normalizes.
type BarFeatures struct {
	Base      float64
	RangePct  float64
	ChangeAbs float64
	ChangePct float64
	Volume    float64
	Turnover  float64
}

// Extract derives features from a bar. Missing numbers count as 0.
// The reference price is open when positive, else close when positive, else 0;
// with a zero reference both ratios are 0.
func Extract(b models.DailyBar) BarFeatures {
	open := models.Float(b.Open)
	high := models.Float(b.High)
	low := models.Float(b.Low)
	closePx := models.Float(b.Close)
	change := models.Float(b.Change)

	base := 0.0
	switch {
	case open > 0:
		base = open
	case closePx > 0:
		base = closePx
	}

	f := BarFeatures{
		Base:      base,
		ChangeAbs: math.Abs(change),
		Volume:    float64(models.IntOrZero(b.Volume)),
		Turnover:  float64(models.IntOrZero(b.Turnover)),
	}
	if base > 0 {
		f.RangePct = (high - low) / base
		f.ChangePct = change / base
	}
	return f
}

// Range is an observed [Min, Max] interval.
type Range struct {
	Min float64
	Max float64
}

func (r Range) extend(v float64) Range {
	if v < r.Min {
		r.Min = v
	}
	if v > r.Max {
		r.Max = v
	}
	return r
}

// Norm maps v into [0,1] relative to the range.
func (r Range) Norm(v float64) float64 {
	return Normalize(v, r.Min, r.Max)
}

// Bounds holds the cross-sectional min/max of every normalized feature for a day.
// It is computed once and is read-only afterwards.
type Bounds struct {
	Volume    Range
	Turnover  Range
	RangePct  Range
	ChangeAbs Range
	ChangePct Range
}

// ComputeBounds scans the features once. Empty input yields zero ranges.
func ComputeBounds(fs []BarFeatures) Bounds {
	if len(fs) == 0 {
		return Bounds{}
	}
	first := fs[0]
	b := Bounds{
		Volume:    Range{first.Volume, first.Volume},
		Turnover:  Range{first.Turnover, first.Turnover},
		RangePct:  Range{first.RangePct, first.RangePct},
		ChangeAbs: Range{first.ChangeAbs, first.ChangeAbs},
		ChangePct: Range{first.ChangePct, first.ChangePct},
	}
	for _, f := range fs[1:] {
		b.Volume = b.Volume.extend(f.Volume)
		b.Turnover = b.Turnover.extend(f.Turnover)
		b.RangePct = b.RangePct.extend(f.RangePct)
		b.ChangeAbs = b.ChangeAbs.extend(f.ChangeAbs)
		b.ChangePct = b.ChangePct.extend(f.ChangePct)
	}
	return b
}

// Normalize returns (v-min)/(max-min) clamped to [0,1], or 0 when max <= min.
func Normalize(v, min, max float64) float64 {
	if max <= min {
		return 0
	}
	return Clamp((v-min)/(max-min), 0, 1)
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// ClampInt bounds v to [lo, hi].
func ClampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// RoundInt rounds half away from zero to an int.
func RoundInt(v float64) int {
	return int(math.Round(v))
}

// RoundTo rounds half away from zero to the given number of decimals.
func RoundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// Percentile returns the p-th percentile (0..100) by linear interpolation
// between closest ranks. The input need not be sorted; it is not modified.
// Empty input yields 0.
func Percentile(values []float64, p float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)
	return PercentileSorted(sorted, p)
}

// PercentileSorted is Percentile for already ascending input.
func PercentileSorted(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	pos := Clamp(p, 0, 100) / 100 * float64(n-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	w := pos - float64(lo)
	return sorted[lo]*(1-w) + sorted[hi]*w
}
