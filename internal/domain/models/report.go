package models

import (
	"fmt"
	"strings"
	"time"
)

// DailyReport is the per-date summary row. Snapshot columns are optional and
// only present once a snapshot has been persisted for the date.
type DailyReport struct {
	Date          time.Time       `json:"date"`
	MarketSummary string          `json:"market_summary"`
	Warnings      []string        `json:"warnings"`
	Top20         []TopEntry      `json:"top20"`
	Comment       string          `json:"ai_comment,omitempty"`
	Snapshot      *MarketSnapshot `json:"market_snapshot,omitempty"`
	MarketScore   *int            `json:"market_score,omitempty"`
	MarketState   *MarketState    `json:"market_state,omitempty"`
	CapitalAdvice *int            `json:"capital_advice,omitempty"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Snapshot sink field names accepted in configuration.
const (
	FieldMarketSnapshot = "market_snapshot"
	FieldMarketScore    = "market_score"
	FieldMarketState    = "market_state"
	FieldCapitalAdvice  = "capital_advice"
)

// SnapshotFields selects which optional snapshot fields the report sink writes.
type SnapshotFields struct {
	Snapshot      bool
	MarketScore   bool
	MarketState   bool
	CapitalAdvice bool
}

// AllSnapshotFields enables every optional field.
func AllSnapshotFields() SnapshotFields {
	return SnapshotFields{Snapshot: true, MarketScore: true, MarketState: true, CapitalAdvice: true}
}

// ParseSnapshotFields builds SnapshotFields from configured names.
func ParseSnapshotFields(names []string) (SnapshotFields, error) {
	var f SnapshotFields
	for _, n := range names {
		switch strings.TrimSpace(n) {
		case FieldMarketSnapshot:
			f.Snapshot = true
		case FieldMarketScore:
			f.MarketScore = true
		case FieldMarketState:
			f.MarketState = true
		case FieldCapitalAdvice:
			f.CapitalAdvice = true
		default:
			return SnapshotFields{}, fmt.Errorf("unknown snapshot field %q", n)
		}
	}
	return f, nil
}

// Any reports whether at least one field is enabled.
func (f SnapshotFields) Any() bool {
	return f.Snapshot || f.MarketScore || f.MarketState || f.CapitalAdvice
}

// Apply copies the enabled snapshot fields onto the report.
func (f SnapshotFields) Apply(r *DailyReport, snap MarketSnapshot) {
	if f.Snapshot {
		s := snap
		r.Snapshot = &s
	}
	if f.MarketScore {
		v := snap.MarketScore
		r.MarketScore = &v
	}
	if f.MarketState {
		v := snap.MarketState
		r.MarketState = &v
	}
	if f.CapitalAdvice {
		v := snap.CapitalAdvice
		r.CapitalAdvice = &v
	}
}

// ReportEvent is published after a daily run completes.
type ReportEvent struct {
	Date          string      `json:"date"`
	Scored        int         `json:"scored"`
	TopCount      int         `json:"top_count"`
	MarketScore   int         `json:"market_score"`
	MarketState   MarketState `json:"market_state"`
	CapitalAdvice int         `json:"capital_advice"`
	GeneratedAt   time.Time   `json:"generated_at"`
}

// RunRequest asks the pipeline to run for a date. Empty date means today.
type RunRequest struct {
	Date string `json:"date" validate:"omitempty,datetime=2006-01-02"`
}
