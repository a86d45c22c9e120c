package saver

import (
	"encoding/json"
	"os"

	"ohlcvc-builder/market"
)

// JSONSaver writes bars as an indented JSON array. Unset price fields are
// omitted via the Bar json tags.
type JSONSaver struct{}

func (JSONSaver) Extension() string { return "json" }

func (JSONSaver) Save(bars []market.Bar, path string) error {
	data, err := json.MarshalIndent(bars, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
