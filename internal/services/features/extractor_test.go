package features

import (
	"math"
	"testing"

	"MarketPulse/internal/domain/models"

	"github.com/shopspring/decimal"
)

func nd(v float64) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.NewFromFloat(v))
}

func i64(v int64) *int64 { return &v }

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestExtractUsesOpenAsBase(t *testing.T) {
	f := Extract(models.DailyBar{
		Open: nd(100), High: nd(102), Low: nd(98), Close: nd(101), Change: nd(1),
		Volume: i64(1000), Turnover: i64(101000),
	})
	if f.Base != 100 || !near(f.RangePct, 0.04) || !near(f.ChangePct, 0.01) || f.ChangeAbs != 1 {
		t.Fatalf("unexpected features %+v", f)
	}
	if f.Volume != 1000 || f.Turnover != 101000 {
		t.Fatalf("unexpected volume/turnover %+v", f)
	}
}

func TestExtractFallsBackToClose(t *testing.T) {
	f := Extract(models.DailyBar{High: nd(12), Low: nd(10), Close: nd(20), Change: nd(-2)})
	if f.Base != 20 || !near(f.RangePct, 0.1) || !near(f.ChangePct, -0.1) || f.ChangeAbs != 2 {
		t.Fatalf("unexpected features %+v", f)
	}
}

func TestExtractZeroBase(t *testing.T) {
	f := Extract(models.DailyBar{Change: nd(3)})
	if f.Base != 0 || f.RangePct != 0 || f.ChangePct != 0 {
		t.Fatalf("ratios must be 0 with zero base: %+v", f)
	}
	if f.ChangeAbs != 3 {
		t.Fatalf("change_abs does not depend on base: %+v", f)
	}
}

func TestComputeBounds(t *testing.T) {
	b := ComputeBounds([]BarFeatures{
		{Volume: 5, Turnover: 50, RangePct: 0.02, ChangeAbs: 1, ChangePct: -0.01},
		{Volume: 1, Turnover: 70, RangePct: 0.05, ChangeAbs: 0, ChangePct: 0.03},
	})
	if b.Volume != (Range{1, 5}) || b.Turnover != (Range{50, 70}) {
		t.Fatalf("unexpected bounds %+v", b)
	}
	if b.ChangePct != (Range{-0.01, 0.03}) {
		t.Fatalf("unexpected change pct bounds %+v", b.ChangePct)
	}
	if (ComputeBounds(nil) != Bounds{}) {
		t.Fatalf("empty input must give zero bounds")
	}
}

func TestNormalize(t *testing.T) {
	cases := []struct {
		v, min, max, want float64
	}{
		{5, 0, 10, 0.5},
		{7, 7, 7, 0},
		{3, 5, 1, 0},
		{10, 0, 10, 1},
		{12, 0, 10, 1},
	}
	for _, c := range cases {
		if got := Normalize(c.v, c.min, c.max); !near(got, c.want) {
			t.Fatalf("Normalize(%v,%v,%v)=%v want %v", c.v, c.min, c.max, got, c.want)
		}
	}
}

func TestPercentile(t *testing.T) {
	values := []float64{5, 1, 4, 2, 3}
	cases := map[float64]float64{50: 3, 10: 1.4, 90: 4.6, 0: 1, 100: 5}
	for p, want := range cases {
		if got := Percentile(values, p); !near(got, want) {
			t.Fatalf("p%v=%v want %v", p, got, want)
		}
	}
	if values[0] != 5 {
		t.Fatalf("input must not be reordered")
	}
	if Percentile(nil, 50) != 0 {
		t.Fatalf("empty percentile must be 0")
	}
	if Percentile([]float64{7}, 90) != 7 {
		t.Fatalf("single value percentile")
	}
}

func TestRounding(t *testing.T) {
	if RoundInt(2.5) != 3 || RoundInt(-2.5) != -3 || RoundInt(2.49) != 2 {
		t.Fatalf("RoundInt must round half away from zero")
	}
	if RoundTo(1.23456789, 6) != 1.234568 {
		t.Fatalf("RoundTo 6 places: %v", RoundTo(1.23456789, 6))
	}
	if RoundTo(66.66666, 1) != 66.7 {
		t.Fatalf("RoundTo 1 place: %v", RoundTo(66.66666, 1))
	}
	if ClampInt(130, 0, 100) != 100 || ClampInt(-4, 0, 100) != 0 {
		t.Fatalf("ClampInt")
	}
}
