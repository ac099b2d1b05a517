package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	models "MarkovCast/internal/domain/models"
	icache "MarkovCast/internal/service/cache"
	"MarkovCast/internal/service/metrics"
	"MarkovCast/internal/service/ratelimit"
	"MarkovCast/internal/services/markov"
	"MarkovCast/internal/usecase"
	xhttp "MarkovCast/pkg/http"
	applogger "MarkovCast/pkg/logger"

	"github.com/labstack/echo/v4"
)

// CacheTTL holds per-endpoint response cache lifetimes.
type CacheTTL struct {
	Forecast time.Duration
	States   time.Duration
	Backtest time.Duration
	History  time.Duration
}

// ForecastHandler serves the forecasting API over Echo.
type ForecastHandler struct {
	l    *applogger.Logger
	fc   *usecase.ForecastUseCase
	bt   *usecase.BacktestUseCase
	hist *usecase.HistoryUseCase

	cache icache.BytesCache
	rl    *ratelimit.Limiter
	ttl   CacheTTL
}

func NewForecastHandler(
	l *applogger.Logger,
	fc *usecase.ForecastUseCase,
	bt *usecase.BacktestUseCase,
	hist *usecase.HistoryUseCase,
	cache icache.BytesCache,
	ttl CacheTTL,
) *ForecastHandler {
	metrics.Register()
	return &ForecastHandler{l: l, fc: fc, bt: bt, hist: hist, cache: cache, rl: ratelimit.New(), ttl: ttl}
}

func (h *ForecastHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)
	g := e.Group("/api")
	g.GET("/forecast", h.Forecast)
	g.GET("/states", h.States)
	g.POST("/backtest", h.Backtest)
	g.POST("/backtest/async", h.BacktestAsync)
	g.GET("/backtest/:id", h.BacktestStatus)
	g.POST("/weights", h.Weights)
	g.GET("/history", h.History)
}

func (h *ForecastHandler) Health(c echo.Context) error {
	return xhttp.SuccessResponse(c, map[string]string{"status": "ok"})
}

func (h *ForecastHandler) Forecast(c echo.Context) error {
	const endpoint = "forecast"
	start := time.Now()
	defer func() { metrics.ForecastLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	req := &models.ForecastRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.rl.Allow(c.RealIP()+":forecast", 5, 2) {
		return h.rateLimited(c, endpoint)
	}

	key := fmt.Sprintf("forecast:%s:%d:%d:%d:%s:%d:%d",
		req.Symbol, req.Horizon, req.Paths, req.States, req.Method, req.Lookback, req.Seed)
	if b, ok := h.cached(endpoint, key); ok {
		return c.JSONBlob(http.StatusOK, b)
	}

	res, err := h.fc.Forecast(c.Request().Context(), req)
	if err != nil {
		return h.fail(c, endpoint, err)
	}
	return h.respond(c, endpoint, key, h.ttl.Forecast, res)
}

func (h *ForecastHandler) States(c echo.Context) error {
	const endpoint = "states"
	start := time.Now()
	defer func() { metrics.ForecastLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	req := &models.StatesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.rl.Allow(c.RealIP()+":states", 5, 2) {
		return h.rateLimited(c, endpoint)
	}

	key := fmt.Sprintf("states:%s:%d:%s:%d", req.Symbol, req.States, req.Method, req.Lookback)
	if b, ok := h.cached(endpoint, key); ok {
		return c.JSONBlob(http.StatusOK, b)
	}

	res, err := h.fc.States(c.Request().Context(), req)
	if err != nil {
		return h.fail(c, endpoint, err)
	}
	return h.respond(c, endpoint, key, h.ttl.States, res)
}

func (h *ForecastHandler) Backtest(c echo.Context) error {
	const endpoint = "backtest"
	start := time.Now()
	defer func() { metrics.ForecastLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	req := &models.BacktestRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	// walk-forward runs are expensive, keep the bucket small
	if !h.rl.Allow(c.RealIP()+":backtest", 2, 0.5) {
		return h.rateLimited(c, endpoint)
	}

	key := fmt.Sprintf("backtest:%s:%d:%s:%d:%d:%d", req.Symbol, req.States, req.Method, req.Lookback, req.MinLookback, req.RetrainEvery)
	if b, ok := h.cached(endpoint, key); ok {
		return c.JSONBlob(http.StatusOK, b)
	}

	res, err := h.bt.Run(c.Request().Context(), req)
	if err != nil {
		return h.fail(c, endpoint, err)
	}
	return h.respond(c, endpoint, key, h.ttl.Backtest, res)
}

func (h *ForecastHandler) BacktestAsync(c echo.Context) error {
	const endpoint = "backtest_async"
	start := time.Now()
	defer func() { metrics.ForecastLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	req := &models.BacktestRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.rl.Allow(c.RealIP()+":backtest", 2, 0.5) {
		return h.rateLimited(c, endpoint)
	}

	st, err := h.bt.Enqueue(c.Request().Context(), req)
	if err != nil {
		return h.fail(c, endpoint, err)
	}
	return xhttp.CreatedResponse(c, st)
}

func (h *ForecastHandler) BacktestStatus(c echo.Context) error {
	const endpoint = "backtest_status"
	start := time.Now()
	defer func() { metrics.ForecastLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	req := &models.BacktestStatusRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	report, status, err := h.bt.Get(c.Request().Context(), req.ID)
	if err != nil {
		return h.fail(c, endpoint, err)
	}
	if report != nil {
		return xhttp.SuccessResponse(c, report)
	}
	if status != nil {
		return xhttp.SuccessResponse(c, status)
	}
	return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("backtest job %s not found", req.ID))
}

func (h *ForecastHandler) Weights(c echo.Context) error {
	const endpoint = "weights"
	start := time.Now()
	defer func() { metrics.ForecastLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	req := &models.WeightsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.rl.Allow(c.RealIP()+":weights", 2, 0.5) {
		return h.rateLimited(c, endpoint)
	}

	res, err := h.fc.OptimizeWeights(c.Request().Context(), req)
	if err != nil {
		return h.fail(c, endpoint, err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *ForecastHandler) History(c echo.Context) error {
	const endpoint = "history"
	start := time.Now()
	defer func() { metrics.ForecastLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	req := &models.HistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.rl.Allow(c.RealIP()+":history", 10, 5) {
		return h.rateLimited(c, endpoint)
	}

	key := fmt.Sprintf("history:%s:%s:%s:%d", req.Symbol, req.From, req.To, req.Limit)
	if b, ok := h.cached(endpoint, key); ok {
		return c.JSONBlob(http.StatusOK, b)
	}

	res, err := h.hist.GetDailyBars(c.Request().Context(), req)
	if err != nil {
		return h.fail(c, endpoint, err)
	}
	return h.respond(c, endpoint, key, h.ttl.History, res)
}

// cached looks a key up in the response cache, returning the stored envelope.
func (h *ForecastHandler) cached(endpoint, key string) ([]byte, bool) {
	if h.cache == nil {
		return nil, false
	}
	b, ok, err := h.cache.GetBytes(key)
	if err != nil {
		h.l.Warn(endpoint+" cache_get_error", applogger.Error(err))
		return nil, false
	}
	if ok {
		h.l.Debug(endpoint+" cache_hit", applogger.String("key", key))
	}
	return b, ok
}

// respond writes the standard envelope and stores it in the response cache.
func (h *ForecastHandler) respond(c echo.Context, endpoint, key string, ttl time.Duration, data interface{}) error {
	body := xhttp.APIResponse{
		Status:  http.StatusOK,
		Message: http.StatusText(http.StatusOK),
		Data:    data,
	}
	b, err := json.Marshal(body)
	if err != nil {
		return h.fail(c, endpoint, err)
	}
	if h.cache != nil && ttl > 0 {
		if err := h.cache.SetBytes(key, b, ttl); err != nil {
			h.l.Warn(endpoint+" cache_set_error", applogger.Error(err))
		}
	}
	return c.JSONBlob(http.StatusOK, b)
}

func (h *ForecastHandler) rateLimited(c echo.Context, endpoint string) error {
	h.l.Warn(endpoint+" rate_limited", applogger.String("remote", c.RealIP()))
	return xhttp.AppErrorResponse(c,
		xhttp.NewAppError("ERR_RATE_LIMITED", "", "too many requests", http.StatusTooManyRequests))
}

// fail records the error and maps engine sentinels onto HTTP statuses.
func (h *ForecastHandler) fail(c echo.Context, endpoint string, err error) error {
	metrics.ForecastErrors.WithLabelValues(endpoint).Inc()
	h.l.Error(endpoint+" failed", applogger.Error(err))
	switch {
	case errors.Is(err, markov.ErrInsufficientData):
		return xhttp.AppErrorResponse(c,
			xhttp.NewAppError("ERR_INSUFFICIENT_DATA", "", err.Error(), http.StatusBadRequest).WithError(err))
	case errors.Is(err, markov.ErrUnsupportedConfiguration):
		return xhttp.AppErrorResponse(c,
			xhttp.NewAppError("ERR_UNSUPPORTED_CONFIG", "", err.Error(), http.StatusBadRequest).WithError(err))
	case errors.Is(err, markov.ErrDegenerateDistribution):
		return xhttp.AppErrorResponse(c,
			xhttp.NewAppError("ERR_DEGENERATE_INPUT", "", err.Error(), http.StatusUnprocessableEntity).WithError(err))
	case errors.Is(err, markov.ErrNumericOverflow):
		return xhttp.AppErrorResponse(c, xhttp.InternalError(err.Error()).WithError(err))
	}
	return xhttp.AppErrorResponse(c, err)
}

var _ xhttp.Handler = (*ForecastHandler)(nil)
