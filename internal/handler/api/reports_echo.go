package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	models "MarketPulse/internal/domain/models"
	"MarketPulse/internal/service/metrics"
	"MarketPulse/internal/service/ratelimit"
	"MarketPulse/internal/usecase"
	xhttp "MarketPulse/pkg/http"
	xlogger "MarketPulse/pkg/logger"
	"MarketPulse/pkg/util"

	"github.com/labstack/echo/v4"
)

// ReportReader is the read side served over HTTP.
type ReportReader interface {
	LatestDate(ctx context.Context) (time.Time, error)
	Report(ctx context.Context, date time.Time) (*models.DailyReport, error)
	Scores(ctx context.Context, date time.Time, bucket models.Bucket, limit int) ([]models.DailyScore, error)
	Snapshot(ctx context.Context, date time.Time) (*models.MarketSnapshot, error)
}

// RunAccepted is returned when a run request has been queued.
type RunAccepted struct {
	Date   string `json:"date"`
	Status string `json:"status"`
}

// ReportsEchoHandler serves reports, scores and snapshots and accepts run requests.
type ReportsEchoHandler struct {
	logger   *xlogger.Logger
	reader   ReportReader
	dispatch usecase.RunDispatcher
	rl       *ratelimit.Limiter
	loc      *time.Location
	health   func(ctx context.Context) error
	now      func() time.Time
}

func NewReportsEchoHandler(logger *xlogger.Logger, reader ReportReader, dispatch usecase.RunDispatcher, rl *ratelimit.Limiter, loc *time.Location) *ReportsEchoHandler {
	metrics.Register()
	if logger == nil {
		logger = xlogger.Nop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &ReportsEchoHandler{logger: logger, reader: reader, dispatch: dispatch, rl: rl, loc: loc, now: time.Now}
}

// SetHealthCheck sets the dependency probe behind /healthz.
func (h *ReportsEchoHandler) SetHealthCheck(f func(ctx context.Context) error) { h.health = f }

func (h *ReportsEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)

	g := e.Group("/api")
	g.GET("/reports/latest", h.Latest)
	g.GET("/reports/:date", h.Report)
	g.GET("/scores/:date", h.Scores)
	g.GET("/snapshots/:date", h.Snapshot)
	g.POST("/runs", h.Run)
}

func (h *ReportsEchoHandler) Health(c echo.Context) error {
	if h.health != nil {
		if err := h.health(c.Request().Context()); err != nil {
			h.logger.Warn("health check failed", xlogger.Error(err))
			return xhttp.DataResponse(c, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		}
	}
	return xhttp.SuccessResponse(c, map[string]string{"status": "ok"})
}

// Latest redirects to the newest report so clients can cache by date.
func (h *ReportsEchoHandler) Latest(c echo.Context) error {
	defer observe("latest", time.Now())

	d, err := h.reader.LatestDate(c.Request().Context())
	if err != nil {
		return h.fail(c, "latest", err)
	}
	return c.Redirect(http.StatusFound, "/api/reports/"+util.FormatDate(d))
}

func (h *ReportsEchoHandler) Report(c echo.Context) error {
	defer observe("report", time.Now())
	req := &models.DateRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	date, _ := util.ParseDate(req.Date)

	res, err := h.reader.Report(c.Request().Context(), date)
	if err != nil {
		return h.fail(c, "report", err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "public, max-age=60")
	return xhttp.SuccessResponse(c, res)
}

func (h *ReportsEchoHandler) Scores(c echo.Context) error {
	defer observe("scores", time.Now())
	req := &models.ScoresRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	date, _ := util.ParseDate(req.Date)

	rows, err := h.reader.Scores(c.Request().Context(), date, models.Bucket(req.Bucket), req.Limit)
	if err != nil {
		return h.fail(c, "scores", err)
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *ReportsEchoHandler) Snapshot(c echo.Context) error {
	defer observe("snapshot", time.Now())
	req := &models.DateRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	date, _ := util.ParseDate(req.Date)

	snap, err := h.reader.Snapshot(c.Request().Context(), date)
	if err != nil {
		return h.fail(c, "snapshot", err)
	}
	return xhttp.SuccessResponse(c, snap)
}

// Run queues a pipeline run. An empty date means today in the exchange timezone.
func (h *ReportsEchoHandler) Run(c echo.Context) error {
	defer observe("run", time.Now())
	if h.rl != nil && !h.rl.Allow(c.RealIP()+":run") {
		h.logger.Warn("runs rate_limited", xlogger.String("remote", c.RealIP()))
		return h.fail(c, "run", xhttp.TooManyRequestsError("too many run requests"))
	}
	req := &models.RunRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	date := util.TruncateDay(h.now().In(h.loc))
	if req.Date != "" {
		date, _ = util.ParseDate(req.Date)
	}
	if err := h.dispatch.Dispatch(c.Request().Context(), date); err != nil {
		return h.fail(c, "run", err)
	}
	h.logger.Info("run queued", xlogger.Date("date", date))
	return xhttp.AcceptedResponse(c, RunAccepted{Date: util.FormatDate(date), Status: "queued"})
}

func (h *ReportsEchoHandler) fail(c echo.Context, endpoint string, err error) error {
	metrics.ReportErrors.WithLabelValues(endpoint).Inc()
	appErr := toAppError(err)
	if appErr.Status >= 500 {
		h.logger.Error(endpoint+" usecase error", xlogger.Error(err))
	}
	return xhttp.AppErrorResponse(c, appErr)
}

func toAppError(err error) *xhttp.AppError {
	var appErr *xhttp.AppError
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, models.ErrNoDataForDate):
		return xhttp.NotFoundErrorf("no data for date").WithError(err)
	case errors.Is(err, models.ErrMissingReport):
		return xhttp.NotFoundErrorf("report not found").WithError(err)
	case errors.Is(err, models.ErrRunInProgress):
		return xhttp.ConflictErrorf("run already in progress").WithError(err)
	default:
		return xhttp.InternalErrorf("internal error").WithError(err)
	}
}

func observe(endpoint string, start time.Time) {
	metrics.ReportLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}

var _ xhttp.Handler = (*ReportsEchoHandler)(nil)
