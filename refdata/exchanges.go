package refdata

import (
	"errors"
	"fmt"
)

// ErrUnknownExchange is returned by Resolve for codes absent from the table.
// Exchange identity selects which condition rules apply, so it is never
// silently defaulted.
var ErrUnknownExchange = errors.New("unknown exchange code")

// ExchangeTable maps raw feed exchange codes to canonical identifiers.
type ExchangeTable struct {
	byCode map[string]string
}

// NewExchangeTable builds an immutable table from raw→canonical pairs.
func NewExchangeTable(mapping map[string]string) *ExchangeTable {
	m := make(map[string]string, len(mapping))
	for raw, canonical := range mapping {
		m[raw] = canonical
	}
	return &ExchangeTable{byCode: m}
}

// Resolve returns the canonical identifier for a raw code.
func (t *ExchangeTable) Resolve(raw string) (string, error) {
	canonical, ok := t.byCode[raw]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownExchange, raw)
	}
	return canonical, nil
}

// Len returns the number of mapped codes.
func (t *ExchangeTable) Len() int { return len(t.byCode) }
