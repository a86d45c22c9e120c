// Package loader reads gzip-compressed JSON trade dumps: an object carrying
// header.format (ordered column names) and response (rows of values), the
// layout produced by the upstream tick archive.
package loader

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"ohlcvc-builder/market"
)

type dump struct {
	Header struct {
		Format []string `json:"format"`
	} `json:"header"`
	Response [][]json.RawMessage `json:"response"`
}

// Result carries the parsed trades plus the count of rows dropped because an
// essential field would not parse.
type Result struct {
	Trades  []market.TradeRecord
	Dropped int64
}

// LoadTrades reads one trade dump. defaultSymbol is used for dumps without a
// symbol column (the archive stores one symbol per file).
func LoadTrades(path, defaultSymbol string) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("open trades: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return Result{}, fmt.Errorf("gzip %s: %w", path, err)
		}
		defer gz.Close()
		r = gz
	}
	res, err := ReadTrades(r, defaultSymbol)
	if err != nil {
		return Result{}, fmt.Errorf("parse trades %s: %w", path, err)
	}
	return res, nil
}

// ReadTrades parses a trade dump from JSON data.
func ReadTrades(r io.Reader, defaultSymbol string) (Result, error) {
	var d dump
	if err := json.NewDecoder(r).Decode(&d); err != nil {
		return Result{}, err
	}
	if len(d.Header.Format) == 0 {
		return Result{}, fmt.Errorf("missing header.format")
	}

	cols := make(map[string]int, len(d.Header.Format))
	for i, name := range d.Header.Format {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	if _, ok := cols["price"]; !ok {
		return Result{}, fmt.Errorf("missing essential column %q", "price")
	}
	if _, ok := cols["size"]; !ok {
		return Result{}, fmt.Errorf("missing essential column %q", "size")
	}

	var res Result
	for i, row := range d.Response {
		tr, ok := parseRow(row, cols, defaultSymbol, int64(i+1))
		if !ok {
			res.Dropped++
			continue
		}
		res.Trades = append(res.Trades, tr)
	}
	return res, nil
}

func parseRow(row []json.RawMessage, cols map[string]int, defaultSymbol string, rowSeq int64) (market.TradeRecord, bool) {
	tr := market.TradeRecord{Symbol: defaultSymbol, Sequence: rowSeq}

	if s, ok := stringAt(row, cols, "symbol"); ok && s != "" {
		tr.Symbol = s
	}

	price, ok := stringAt(row, cols, "price")
	if !ok {
		return tr, false
	}
	px, err := decimal.NewFromString(price)
	if err != nil {
		return tr, false
	}
	tr.Price = px

	size, ok := intAt(row, cols, "size")
	if !ok {
		return tr, false
	}
	tr.Size = size

	ts, ok := parseTimestamp(row, cols)
	if !ok {
		return tr, false
	}
	tr.Timestamp = ts

	if s, ok := stringAt(row, cols, "exchange"); ok {
		tr.ExchangeCode = s
	} else if s, ok := stringAt(row, cols, "exchange_code"); ok {
		tr.ExchangeCode = s
	}

	if s, ok := stringAt(row, cols, "conditions"); ok {
		tr.ConditionCodes = splitCodes(s)
	} else if s, ok := stringAt(row, cols, "condition"); ok {
		tr.ConditionCodes = splitCodes(s)
	}

	if seq, ok := intAt(row, cols, "sequence"); ok {
		tr.Sequence = seq
	}

	return tr, true
}

// parseTimestamp accepts either date (yyyymmdd) + ms_of_day, or a single
// timestamp column holding nanoseconds since epoch or an RFC3339 string.
func parseTimestamp(row []json.RawMessage, cols map[string]int) (time.Time, bool) {
	if date, ok := intAt(row, cols, "date"); ok {
		ms, ok := intAt(row, cols, "ms_of_day")
		if !ok {
			return time.Time{}, false
		}
		year := int(date / 10000)
		month := int(date / 100 % 100)
		day := int(date % 100)
		if month < 1 || month > 12 || day < 1 || day > 31 {
			return time.Time{}, false
		}
		midnight := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
		return midnight.Add(time.Duration(ms) * time.Millisecond), true
	}
	if ns, ok := intAt(row, cols, "timestamp"); ok {
		return time.Unix(0, ns).UTC(), true
	}
	if s, ok := stringAt(row, cols, "timestamp"); ok {
		ts, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return time.Time{}, false
		}
		return ts.UTC(), true
	}
	return time.Time{}, false
}

func splitCodes(s string) []string {
	if s = strings.TrimSpace(s); s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	codes := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			codes = append(codes, p)
		}
	}
	return codes
}

// stringAt returns the cell as a string: JSON strings verbatim, numbers in
// their literal form.
func stringAt(row []json.RawMessage, cols map[string]int, name string) (string, bool) {
	raw, ok := cellAt(row, cols, name)
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), true
	}
	return "", false
}

func intAt(row []json.RawMessage, cols map[string]int, name string) (int64, bool) {
	raw, ok := cellAt(row, cols, name)
	if !ok {
		return 0, false
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, false
	}
	v, err := n.Int64()
	if err != nil {
		return 0, false
	}
	return v, true
}

func cellAt(row []json.RawMessage, cols map[string]int, name string) (json.RawMessage, bool) {
	i, ok := cols[name]
	if !ok || i >= len(row) {
		return nil, false
	}
	raw := row[i]
	if len(raw) == 0 || string(raw) == "null" {
		return nil, false
	}
	return raw, true
}
