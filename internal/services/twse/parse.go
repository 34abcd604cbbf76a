package twse

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"MarketPulse/internal/domain/models"
	"MarketPulse/pkg/util"

	"github.com/shopspring/decimal"
)

// Field aliases seen across TWSE payload versions (English and Chinese keys).
var (
	keySymbol   = []string{"Code", "證券代號", "StockCode", "stock_code"}
	keyName     = []string{"Name", "證券名稱", "StockName", "stock_name"}
	keyDate     = []string{"Date", "日期", "date"}
	keyVolume   = []string{"TradeVolume", "成交股數", "Volume", "trade_volume"}
	keyTurnover = []string{"TradeValue", "成交金額", "Turnover", "trade_value"}
	keyOpen     = []string{"OpeningPrice", "開盤價", "Open", "open"}
	keyHigh     = []string{"HighestPrice", "最高價", "High", "high"}
	keyLow      = []string{"LowestPrice", "最低價", "Low", "low"}
	keyClose    = []string{"ClosingPrice", "收盤價", "Close", "close"}
	keyChange   = []string{"Change", "漲跌價差", "change"}
)

// Row is one raw record keyed by the feed's column names.
type Row map[string]interface{}

// ParseStats counts what happened while converting rows.
type ParseStats struct {
	Rows      int
	Skipped   int
	Malformed int
}

// DecodeRows accepts a root JSON array or an object wrapping it in "data".
func DecodeRows(body []byte) ([]Row, error) {
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "[") {
		var rows []Row
		if err := json.Unmarshal(body, &rows); err != nil {
			return nil, fmt.Errorf("decode rows: %w", err)
		}
		return rows, nil
	}
	var wrapped struct {
		Data []Row `json:"data"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, fmt.Errorf("decode rows: %w", err)
	}
	if wrapped.Data == nil {
		return nil, fmt.Errorf("decode rows: response has no data array")
	}
	return wrapped.Data, nil
}

// ToBars converts raw rows to bars. Rows without a symbol are skipped; values
// that cannot be read as numbers become null and are counted as malformed.
func ToBars(rows []Row, market string, fallback time.Time) ([]models.DailyBar, ParseStats) {
	stats := ParseStats{Rows: len(rows)}
	out := make([]models.DailyBar, 0, len(rows))

	for _, r := range rows {
		symbol := strings.ToUpper(strings.TrimSpace(r.pick(keySymbol)))
		if symbol == "" {
			stats.Skipped++
			continue
		}
		name := util.FirstNonEmpty(r.pick(keyName), symbol)

		date, ok := util.NormalizeTradingDate(r.pick(keyDate))
		if !ok {
			date = fallback
		}

		b := models.DailyBar{Symbol: symbol, Name: name, Market: market, Date: date}
		var bad int
		b.Open, bad = decimalField(r.pick(keyOpen), bad)
		b.High, bad = decimalField(r.pick(keyHigh), bad)
		b.Low, bad = decimalField(r.pick(keyLow), bad)
		b.Close, bad = decimalField(r.pick(keyClose), bad)
		b.Change, bad = decimalField(r.pick(keyChange), bad)
		b.Volume, bad = intField(r.pick(keyVolume), bad)
		b.Turnover, bad = intField(r.pick(keyTurnover), bad)
		stats.Malformed += bad

		out = append(out, b)
	}
	return out, stats
}

func (r Row) pick(keys []string) string {
	for _, k := range keys {
		v, ok := r[k]
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case string:
			return t
		case float64:
			return strconv.FormatFloat(t, 'f', -1, 64)
		default:
			return fmt.Sprint(t)
		}
	}
	return ""
}

// CleanNumber strips thousands separators and a leading plus sign. It reports
// false for placeholders ("", "--", "---") that mean "no value".
func CleanNumber(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	switch s {
	case "", "--", "---":
		return "", false
	}
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimPrefix(s, "+")
	return s, true
}

// ParseDecimal reads a feed value. present is false for placeholders; err is
// set when a non-placeholder value is not numeric.
func ParseDecimal(raw string) (d decimal.NullDecimal, present bool, err error) {
	s, ok := CleanNumber(raw)
	if !ok {
		return decimal.NullDecimal{}, false, nil
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}, true, err
	}
	return decimal.NewNullDecimal(v), true, nil
}

func decimalField(raw string, bad int) (decimal.NullDecimal, int) {
	d, _, err := ParseDecimal(raw)
	if err != nil {
		return decimal.NullDecimal{}, bad + 1
	}
	return d, bad
}

func intField(raw string, bad int) (*int64, int) {
	d, present, err := ParseDecimal(raw)
	if err != nil {
		return nil, bad + 1
	}
	if !present {
		return nil, bad
	}
	v := d.Decimal.IntPart()
	return &v, bad
}
