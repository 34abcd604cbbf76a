package main

import (
	"testing"
	"time"
)

func TestDateArg(t *testing.T) {
	got, err := dateArg([]string{"2026-02-10"}, time.UTC)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Fatalf("got %s, want %s", got, want)
	}

	if _, err := dateArg([]string{"2026/02/10"}, time.UTC); err == nil {
		t.Fatal("expected error for slashed date")
	}

	today, err := dateArg(nil, time.UTC)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if today.Hour() != 0 || today.Location() != time.UTC {
		t.Fatalf("today not truncated: %s", today)
	}
}
