package usecase

import (
	"context"
	"time"

	domrepo "MarketPulse/internal/domain/repository"
	domsvc "MarketPulse/internal/domain/service"
	applogger "MarketPulse/pkg/logger"
)

// CommentUseCase renders commentary for a stored report's Top-N and saves it.
type CommentUseCase struct {
	reports domrepo.ReportStore
	gen     domsvc.CommentGenerator
	l       *applogger.Logger
	m       domrepo.Metrics
}

func NewCommentUseCase(reports domrepo.ReportStore, gen domsvc.CommentGenerator, m domrepo.Metrics) *CommentUseCase {
	return &CommentUseCase{reports: reports, gen: gen, m: m}
}

// SetLogger injects a structured logger.
func (uc *CommentUseCase) SetLogger(l *applogger.Logger) { uc.l = l }

// Comment returns models.ErrMissingReport when the date has no report and
// models.ErrEmptyTopList when its Top-N is empty.
func (uc *CommentUseCase) Comment(ctx context.Context, date time.Time) (text string, err error) {
	start := time.Now()
	defer func() { observeStage(uc.m, "comment", start, err) }()

	r, err := uc.reports.GetReport(ctx, date)
	if err != nil {
		return "", err
	}
	text, err = uc.gen.Generate(date, r.Top20)
	if err != nil {
		return "", err
	}
	if err := uc.reports.SaveComment(ctx, date, text); err != nil {
		return "", err
	}
	if uc.l != nil {
		uc.l.Info("comment stored", applogger.Date("date", date), applogger.Int("top", len(r.Top20)))
	}
	return text, nil
}
