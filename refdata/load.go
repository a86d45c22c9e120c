package refdata

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
)

// LoadConditionTable reads the condition reference CSV.
//
// Header names are case-insensitive. Expected columns: exchange, code, open,
// high, low, last, volume. The boolean columns are include flags; a missing
// column defaults to true for every row. An empty exchange cell makes the
// rule apply to all exchanges.
func LoadConditionTable(path string) ([]ConditionRule, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open condition table: %w", err)
	}
	defer f.Close()
	rules, err := ReadConditionTable(f)
	if err != nil {
		return nil, fmt.Errorf("parse condition table %s: %w", path, err)
	}
	return rules, nil
}

// ReadConditionTable parses condition rules from CSV data.
func ReadConditionTable(r io.Reader) ([]ConditionRule, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := headerIndex(header)
	codeIdx, ok := cols["code"]
	if !ok {
		return nil, fmt.Errorf("missing required column %q", "code")
	}

	var rules []ConditionRule
	line := 1
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		line++
		rule := ConditionRule{
			Exchange: field(record, cols, "exchange"),
			Code:     record[codeIdx],
			Open:     true,
			HighLow:  true,
			Close:    true,
			Volume:   true,
		}
		if rule.Code == "" {
			return nil, fmt.Errorf("line %d: empty condition code", line)
		}
		var parseErr error
		rule.Open = boolField(record, cols, "open", true, &parseErr)
		high := boolField(record, cols, "high", true, &parseErr)
		low := boolField(record, cols, "low", true, &parseErr)
		rule.HighLow = high && low
		rule.Close = boolField(record, cols, "last", true, &parseErr)
		rule.Volume = boolField(record, cols, "volume", true, &parseErr)
		if parseErr != nil {
			return nil, fmt.Errorf("line %d: %w", line, parseErr)
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// LoadExchangeTable reads the exchange code reference CSV.
// Expected columns (case-insensitive): code, exchange.
func LoadExchangeTable(path string) (*ExchangeTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open exchange table: %w", err)
	}
	defer f.Close()
	table, err := ReadExchangeTable(f)
	if err != nil {
		return nil, fmt.Errorf("parse exchange table %s: %w", path, err)
	}
	return table, nil
}

// ReadExchangeTable parses the exchange mapping from CSV data.
func ReadExchangeTable(r io.Reader) (*ExchangeTable, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := headerIndex(header)
	codeIdx, ok := cols["code"]
	if !ok {
		return nil, fmt.Errorf("missing required column %q", "code")
	}
	nameIdx, ok := cols["exchange"]
	if !ok {
		return nil, fmt.Errorf("missing required column %q", "exchange")
	}

	mapping := make(map[string]string)
	line := 1
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		line++
		code, name := record[codeIdx], record[nameIdx]
		if code == "" || name == "" {
			return nil, fmt.Errorf("line %d: empty code or exchange", line)
		}
		mapping[code] = name
	}
	return NewExchangeTable(mapping), nil
}

func headerIndex(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	return cols
}

func field(record []string, cols map[string]int, name string) string {
	i, ok := cols[name]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func boolField(record []string, cols map[string]int, name string, def bool, parseErr *error) bool {
	raw := field(record, cols, name)
	if raw == "" {
		return def
	}
	switch strings.ToLower(raw) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		if *parseErr == nil {
			*parseErr = fmt.Errorf("column %q: bad boolean %q", name, raw)
		}
		return def
	}
}
