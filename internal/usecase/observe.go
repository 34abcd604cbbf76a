package usecase

import (
	"time"

	domrepo "MarketPulse/internal/domain/repository"
)

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// observeStage records a stage duration; m may be nil.
func observeStage(m domrepo.Metrics, stage string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.RecordStage(stage, outcome(err), time.Since(start).Seconds())
	if err != nil {
		m.RecordError(stage)
	}
}
