package metrics

import (
	"MarketPulse/internal/domain/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	stageDuration *prometheus.HistogramVec
	stageTotal    *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
	barsFetched   prometheus.Gauge
	malformed     prometheus.Counter
	marketScore   prometheus.Gauge
	capitalAdvice prometheus.Gauge
	advRatio      prometheus.Gauge
	marketState   *prometheus.GaugeVec
}

// New creates a recorder registered on reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		stageDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "marketpulse_stage_duration_seconds",
				Help:    "Duration of daily pipeline stages in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"stage"},
		),
		stageTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketpulse_stage_runs_total",
				Help: "Daily pipeline stage executions by outcome",
			},
			[]string{"stage", "outcome"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketpulse_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		barsFetched: f.NewGauge(prometheus.GaugeOpts{
			Name: "marketpulse_bars_fetched",
			Help: "Bars returned by the last fetch",
		}),
		malformed: f.NewCounter(prometheus.CounterOpts{
			Name: "marketpulse_malformed_fields_total",
			Help: "Source fields that failed numeric parsing and were stored as absent",
		}),
		marketScore: f.NewGauge(prometheus.GaugeOpts{
			Name: "marketpulse_market_score",
			Help: "Market score of the last snapshot",
		}),
		capitalAdvice: f.NewGauge(prometheus.GaugeOpts{
			Name: "marketpulse_capital_advice_percent",
			Help: "Capital advice of the last snapshot",
		}),
		advRatio: f.NewGauge(prometheus.GaugeOpts{
			Name: "marketpulse_breadth_adv_ratio",
			Help: "Advancer ratio of the last snapshot",
		}),
		marketState: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "marketpulse_market_state",
			Help: "1 for the state of the last snapshot, 0 otherwise",
		}, []string{"state"}),
	}
}

// RecordStage records one stage execution.
func (r *Recorder) RecordStage(stage, outcome string, seconds float64) {
	r.stageDuration.WithLabelValues(stage).Observe(seconds)
	r.stageTotal.WithLabelValues(stage, outcome).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

func (r *Recorder) RecordBars(count int) {
	r.barsFetched.Set(float64(count))
}

func (r *Recorder) RecordMalformed(fields int) {
	if fields > 0 {
		r.malformed.Add(float64(fields))
	}
}

// RecordSnapshot exports the headline numbers of a snapshot.
func (r *Recorder) RecordSnapshot(snap models.MarketSnapshot) {
	r.marketScore.Set(float64(snap.MarketScore))
	r.capitalAdvice.Set(float64(snap.CapitalAdvice))
	r.advRatio.Set(snap.Breadth.AdvRatio)
	for _, s := range []models.MarketState{models.StateRiskOn, models.StateBullish, models.StateNeutral, models.StateBearish, models.StateRiskOff} {
		v := 0.0
		if s == snap.MarketState {
			v = 1
		}
		r.marketState.WithLabelValues(string(s)).Set(v)
	}
}
