package twse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"MarketPulse/pkg/config"
	"MarketPulse/pkg/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const stockDayAll = `[
  {"Date":"1150210","Code":"2330","Name":"台積電","TradeVolume":"31,234,567","TradeValue":"33,456,789,012","OpeningPrice":"1,070.00","HighestPrice":"1,080.00","LowestPrice":"1,065.00","ClosingPrice":"1,075.00","Change":"+5.0000","Transaction":"40,123"},
  {"Date":"1150210","Code":" 0050 ","Name":"","TradeVolume":"12,000","TradeValue":"2,000,000","OpeningPrice":"--","HighestPrice":"--","LowestPrice":"--","ClosingPrice":"166.50","Change":"-0.3500"},
  {"Date":"1150210","Code":"9999","Name":"Bad","TradeVolume":"n/a","TradeValue":"","OpeningPrice":"X0.00","HighestPrice":"10","LowestPrice":"9","ClosingPrice":"9.5","Change":"0.0000"},
  {"Date":"1150210","Code":"","Name":"no symbol"}
]`

func testConfig(url string) *config.Config {
	var cfg config.Config
	cfg.TWSE.BaseURL = url
	cfg.TWSE.Endpoint = "/exchangeReport/STOCK_DAY_ALL"
	cfg.TWSE.Market = "TWSE"
	cfg.TWSE.Timeout = 2 * time.Second
	cfg.TWSE.Retries = 2
	cfg.TWSE.Backoff = time.Millisecond
	return &cfg
}

func TestFetchBars(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/exchangeReport/STOCK_DAY_ALL", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(stockDayAll))
	}))
	defer srv.Close()

	fallback := time.Date(2026, 2, 11, 0, 0, 0, 0, time.UTC)
	bars, err := NewClient(testConfig(srv.URL)).FetchBars(context.Background(), fallback)
	require.NoError(t, err)
	require.Len(t, bars, 3)

	tsmc := bars[0]
	assert.Equal(t, "2330", tsmc.Symbol)
	assert.Equal(t, "台積電", tsmc.Name)
	assert.Equal(t, "TWSE", tsmc.Market)
	assert.Equal(t, "2026-02-10", util.FormatDate(tsmc.Date))
	assert.Equal(t, "1070", tsmc.Open.Decimal.String())
	assert.Equal(t, "5", tsmc.Change.Decimal.String())
	require.NotNil(t, tsmc.Volume)
	assert.Equal(t, int64(31234567), *tsmc.Volume)
	assert.Equal(t, int64(33456789012), *tsmc.Turnover)

	etf := bars[1]
	assert.Equal(t, "0050", etf.Symbol)
	assert.Equal(t, "0050", etf.Name, "missing name falls back to symbol")
	assert.False(t, etf.Open.Valid)
	assert.True(t, etf.Close.Valid)
	assert.Equal(t, "-0.35", etf.Change.Decimal.String())

	bad := bars[2]
	assert.False(t, bad.Open.Valid)
	assert.Nil(t, bad.Volume)
	assert.Nil(t, bad.Turnover)
	assert.Equal(t, "9.5", bad.Close.Decimal.String())
}

func TestFetchBarsRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"data":[{"Code":"1101","ClosingPrice":"40"}]}`))
	}))
	defer srv.Close()

	fallback := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	bars, err := NewClient(testConfig(srv.URL)).FetchBars(context.Background(), fallback)
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.True(t, bars[0].Date.Equal(fallback), "rows without a date take the fallback")
}

func TestFetchBarsDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewClient(testConfig(srv.URL)).FetchBars(context.Background(), time.Now())
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestParseDecimal(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		present bool
		bad     bool
	}{
		{"1,234", "1234", true, false},
		{"+1.5", "1.5", true, false},
		{"-0.25", "-0.25", true, false},
		{"--", "", false, false},
		{"---", "", false, false},
		{"", "", false, false},
		{"abc", "", true, true},
	}
	for _, c := range cases {
		d, present, err := ParseDecimal(c.in)
		assert.Equal(t, c.present, present, c.in)
		assert.Equal(t, c.bad, err != nil, c.in)
		if c.want != "" {
			assert.Equal(t, c.want, d.Decimal.String(), c.in)
		} else {
			assert.False(t, d.Valid, c.in)
		}
	}
}

func TestToBarsCountsMalformed(t *testing.T) {
	rows, err := DecodeRows([]byte(stockDayAll))
	require.NoError(t, err)
	_, stats := ToBars(rows, "TWSE", time.Now())
	assert.Equal(t, 4, stats.Rows)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 2, stats.Malformed)
}

func TestDecodeRowsRejectsUnknownShape(t *testing.T) {
	_, err := DecodeRows([]byte(`{"stat":"OK"}`))
	assert.Error(t, err)
}
