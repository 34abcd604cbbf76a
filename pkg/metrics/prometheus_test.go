package metrics

import (
	"testing"

	"MarketPulse/internal/domain/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorder(t *testing.T) {
	r := New(prometheus.NewRegistry())

	r.RecordStage("score", "ok", 0.4)
	r.RecordStage("score", "error", 0.1)
	r.RecordMalformed(3)
	r.RecordMalformed(0)
	r.RecordSnapshot(models.MarketSnapshot{MarketScore: 62, MarketState: models.StateBullish, CapitalAdvice: 60})

	assert.Equal(t, 1.0, testutil.ToFloat64(r.stageTotal.WithLabelValues("score", "ok")))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.malformed))
	assert.Equal(t, 62.0, testutil.ToFloat64(r.marketScore))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.marketState.WithLabelValues("bullish")))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.marketState.WithLabelValues("neutral")))
}
