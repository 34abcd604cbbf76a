// Package twse fetches the Taiwan Stock Exchange daily snapshot of all listed
// instruments (OpenAPI STOCK_DAY_ALL).
package twse

import (
	"context"
	"fmt"
	"strings"
	"time"

	"MarketPulse/internal/domain/models"
	domrepo "MarketPulse/internal/domain/repository"
	domsvc "MarketPulse/internal/domain/service"
	"MarketPulse/pkg/config"
	xhttp "MarketPulse/pkg/http"
	applogger "MarketPulse/pkg/logger"
)

// Client implements service.BarSource over the TWSE OpenAPI.
type Client struct {
	url    string
	market string
	http   *xhttp.Client
	l      *applogger.Logger
	m      domrepo.Metrics
}

var _ domsvc.BarSource = (*Client)(nil)

// NewClient builds a client from the twse config section.
func NewClient(cfg *config.Config) *Client {
	return &Client{
		url:    strings.TrimRight(cfg.TWSE.BaseURL, "/") + cfg.TWSE.Endpoint,
		market: cfg.TWSE.Market,
		http: xhttp.NewClient(
			xhttp.WithTimeout(cfg.TWSE.Timeout),
			xhttp.WithRetry(cfg.TWSE.Retries, cfg.TWSE.Backoff),
			xhttp.WithUserAgent(cfg.TWSE.UserAgent),
		),
	}
}

// SetLogger injects a structured logger.
func (c *Client) SetLogger(l *applogger.Logger) { c.l = l }

// SetMetrics injects a metrics recorder.
func (c *Client) SetMetrics(m domrepo.Metrics) { c.m = m }

// FetchBars downloads the latest snapshot. The feed always returns the most
// recent trading day; fallbackDate is used only for rows without a date.
func (c *Client) FetchBars(ctx context.Context, fallbackDate time.Time) ([]models.DailyBar, error) {
	start := time.Now()

	var body []byte
	err := c.http.SendAndParseWithRetry(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    c.url,
	}, &body)
	if err != nil {
		c.recordError("twse_request")
		return nil, fmt.Errorf("twse stock_day_all: %w", err)
	}

	rows, err := DecodeRows(body)
	if err != nil {
		c.recordError("twse_malformed_response")
		return nil, fmt.Errorf("twse stock_day_all: %w", err)
	}

	bars, stats := ToBars(rows, c.market, fallbackDate)
	if c.m != nil {
		c.m.RecordMalformed(stats.Malformed)
		c.m.RecordBars(len(bars))
		c.m.RecordStage("fetch", "ok", time.Since(start).Seconds())
	}
	if c.l != nil {
		c.l.Info("twse stock_day_all ok",
			applogger.Int("rows", stats.Rows),
			applogger.Int("bars", len(bars)),
			applogger.Int("skipped", stats.Skipped),
			applogger.Int("malformed_fields", stats.Malformed),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return bars, nil
}

func (c *Client) recordError(kind string) {
	if c.m != nil {
		c.m.RecordError(kind)
	}
}
