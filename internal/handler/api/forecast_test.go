package api

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	icache "MarkovCast/internal/service/cache"
	"MarkovCast/internal/services/markov"
	applogger "MarkovCast/pkg/logger"
)

func testHandler(t *testing.T, cache icache.BytesCache) *ForecastHandler {
	t.Helper()
	l, err := applogger.New(&applogger.Config{Level: "error", Format: "console", Output: "stdout"})
	require.NoError(t, err)
	return NewForecastHandler(l, nil, nil, nil, cache, CacheTTL{
		Forecast: time.Minute, States: time.Minute, Backtest: time.Minute, History: time.Minute,
	})
}

func newTestContext(e *echo.Echo) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestHealthRoute(t *testing.T) {
	h := testHandler(t, nil)
	e := echo.New()
	h.RegisterRoutes(e)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestEngineErrorMapping(t *testing.T) {
	h := testHandler(t, nil)
	e := echo.New()

	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"insufficient data", fmt.Errorf("train: %w", markov.ErrInsufficientData), http.StatusBadRequest, "ERR_INSUFFICIENT_DATA"},
		{"unsupported config", fmt.Errorf("cfg: %w", markov.ErrUnsupportedConfiguration), http.StatusBadRequest, "ERR_UNSUPPORTED_CONFIG"},
		{"degenerate input", fmt.Errorf("fit: %w", markov.ErrDegenerateDistribution), http.StatusUnprocessableEntity, "ERR_DEGENERATE_INPUT"},
		{"numeric overflow", fmt.Errorf("sim: %w", markov.ErrNumericOverflow), http.StatusInternalServerError, "ERR_INTERNAL"},
		{"unknown error", fmt.Errorf("boom"), http.StatusInternalServerError, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, rec := newTestContext(e)
			require.NoError(t, h.fail(c, "forecast", tc.err))
			assert.Contains(t, rec.Body.String(), fmt.Sprintf(`"status":%d`, tc.status))
			if tc.code != "" {
				assert.Contains(t, rec.Body.String(), tc.code)
			}
		})
	}
}

func TestRateLimitedResponse(t *testing.T) {
	h := testHandler(t, nil)
	e := echo.New()

	c, rec := newTestContext(e)
	require.NoError(t, h.rateLimited(c, "forecast"))
	assert.Contains(t, rec.Body.String(), `"status":429`)
	assert.Contains(t, rec.Body.String(), "ERR_RATE_LIMITED")
}

func TestResponseCaching(t *testing.T) {
	h := testHandler(t, icache.NewTTLCache())
	e := echo.New()

	c, rec := newTestContext(e)
	require.NoError(t, h.respond(c, "forecast", "forecast:test", time.Minute, map[string]string{"hello": "world"}))
	assert.Contains(t, rec.Body.String(), "world")

	b, ok := h.cached("forecast", "forecast:test")
	require.True(t, ok)
	assert.Contains(t, string(b), "world")

	_, ok = h.cached("forecast", "forecast:other")
	assert.False(t, ok)
}
