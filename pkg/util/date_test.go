package util

import (
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	got, err := ParseDate("2026-02-10")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if FormatDate(got) != "2026-02-10" {
		t.Fatalf("unexpected date %v", got)
	}
	if got.Location() != time.UTC {
		t.Fatalf("expected UTC, got %v", got.Location())
	}
}

func TestParseDateInvalid(t *testing.T) {
	if _, err := ParseDate("10/02/2026"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestParseDateDefault(t *testing.T) {
	def := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	if got := ParseDateDefault("", def); !got.Equal(def) {
		t.Fatalf("expected default")
	}
}

func TestNormalizeTradingDate(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"2026-02-10", "2026-02-10", true},
		{"1150210", "2026-02-10", true},
		{"115/02/10", "2026-02-10", true},
		{" 115/02/10 ", "2026-02-10", true},
		{"99/12/31", "2010-12-31", true},
		{"1150230", "", false},
		{"abc", "", false},
		{"", "", false},
	}
	for _, c := range cases {
		got, ok := NormalizeTradingDate(c.in)
		if ok != c.ok {
			t.Fatalf("%q: ok=%v want %v", c.in, ok, c.ok)
		}
		if ok && FormatDate(got) != c.want {
			t.Fatalf("%q: got %s want %s", c.in, FormatDate(got), c.want)
		}
	}
}

func TestTruncateDay(t *testing.T) {
	in := time.Date(2026, 2, 10, 13, 30, 5, 0, time.UTC)
	if got := TruncateDay(in); FormatDate(got) != "2026-02-10" || got.Hour() != 0 {
		t.Fatalf("unexpected %v", got)
	}
}
