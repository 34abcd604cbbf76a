package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"MarketPulse/internal/domain/models"
	pkgkafka "MarketPulse/pkg/kafka"
	applogger "MarketPulse/pkg/logger"
	"MarketPulse/pkg/util"
)

// resolveRunDate turns a request date into a trading date; empty means today in loc.
func resolveRunDate(raw string, loc *time.Location, now time.Time) (time.Time, error) {
	if raw == "" {
		if loc == nil {
			loc = time.UTC
		}
		return util.TruncateDay(now.In(loc)), nil
	}
	return util.ParseDate(raw)
}

// runOnce runs the pipeline and treats a concurrent run for the same date as done.
func runOnce(ctx context.Context, r Runner, l *applogger.Logger, date time.Time, source string) error {
	res, err := r.Run(ctx, date)
	switch {
	case errors.Is(err, models.ErrRunInProgress):
		if l != nil {
			l.Info("run already in progress", applogger.String("source", source), applogger.Date("date", date))
		}
		return nil
	case err != nil:
		return err
	}
	if l != nil {
		l.Info("run finished",
			applogger.String("source", source),
			applogger.Date("requested", date),
			applogger.Date("date", res.Date),
			applogger.Int("scored", res.Scored),
		)
	}
	return nil
}

// KafkaRunHandler consumes run requests and runs the daily pipeline.
type KafkaRunHandler struct {
	topic  string
	runner Runner
	loc    *time.Location
	l      *applogger.Logger
	now    func() time.Time
}

func NewKafkaRunHandler(topic string, runner Runner, loc *time.Location) *KafkaRunHandler {
	return &KafkaRunHandler{topic: topic, runner: runner, loc: loc, now: time.Now}
}

// SetLogger injects a structured logger.
func (h *KafkaRunHandler) SetLogger(l *applogger.Logger) { h.l = l }

func (h *KafkaRunHandler) Topic() string { return h.topic }

// incoming message schema: {"date": "YYYY-MM-DD"}; an empty date means today
func (h *KafkaRunHandler) Handle(ctx context.Context, b []byte) error {
	var req models.RunRequest
	if err := json.Unmarshal(b, &req); err != nil {
		return fmt.Errorf("%w: decode run request: %v", pkgkafka.ErrPermanent, err)
	}
	date, err := resolveRunDate(req.Date, h.loc, h.now())
	if err != nil {
		return fmt.Errorf("%w: %v", pkgkafka.ErrPermanent, err)
	}
	err = runOnce(ctx, h.runner, h.l, date, "kafka")
	if errors.Is(err, models.ErrNoDataForDate) {
		return fmt.Errorf("%w: %v", pkgkafka.ErrPermanent, err)
	}
	return err
}

var _ pkgkafka.MessageHandler = (*KafkaRunHandler)(nil)
