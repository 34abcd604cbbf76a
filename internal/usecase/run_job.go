package usecase

import (
	"context"
	"encoding/json"
	"time"

	"MarketPulse/internal/domain/models"
	applogger "MarketPulse/pkg/logger"
	"MarketPulse/pkg/queue"
)

// RunJobType is the queue message type for daily runs.
const RunJobType = "daily_run"

// RunJob runs the daily pipeline for queued run requests.
type RunJob struct {
	runner Runner
	loc    *time.Location
	l      *applogger.Logger
	now    func() time.Time
}

func NewRunJob(runner Runner, loc *time.Location) *RunJob {
	return &RunJob{runner: runner, loc: loc, now: time.Now}
}

// SetLogger injects a structured logger.
func (j *RunJob) SetLogger(l *applogger.Logger) { j.l = l }

func (j *RunJob) Name() string { return "daily-run" }

func (j *RunJob) Type() string { return RunJobType }

func (j *RunJob) Handle(ctx context.Context, payload json.RawMessage) error {
	req, err := queue.ParsePayload[models.RunRequest](payload)
	if err != nil {
		return err
	}
	date, err := resolveRunDate(req.Date, j.loc, j.now())
	if err != nil {
		return err
	}
	return runOnce(ctx, j.runner, j.l, date, "queue")
}

var _ queue.Job = (*RunJob)(nil)
