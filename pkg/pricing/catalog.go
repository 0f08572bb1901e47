package pricing

import "github.com/shopspring/decimal"

// rawRates is one catalog row before decimal conversion. Prices are USD
// per one million tokens: input, output, cache write, cache read.
type rawRates struct {
	input, output, cacheWrite, cacheRead string
}

// bundledCatalog holds the shipped rates, keyed by canonical model
// family id (no date suffixes). Cache write is 1.25x input, cache read
// 0.1x input, per published pricing.
//
// Keys must stay mutually distinct under Normalize; fuzzy matching
// relies on that uniqueness rather than engine-level disambiguation.
var bundledCatalog = map[string]rawRates{
	"claude-opus-4-5":   {"5.00", "25.00", "6.25", "0.50"},
	"claude-opus-4-1":   {"15.00", "75.00", "18.75", "1.50"},
	"claude-opus-4":     {"15.00", "75.00", "18.75", "1.50"},
	"claude-3-opus":     {"15.00", "75.00", "18.75", "1.50"},
	"claude-sonnet-4-5": {"3.00", "15.00", "3.75", "0.30"},
	"claude-sonnet-4":   {"3.00", "15.00", "3.75", "0.30"},
	"claude-3-7-sonnet": {"3.00", "15.00", "3.75", "0.30"},
	"claude-3-5-sonnet": {"3.00", "15.00", "3.75", "0.30"},
	"claude-haiku-4-5":  {"1.00", "5.00", "1.25", "0.10"},
	"claude-3-5-haiku":  {"0.80", "4.00", "1.00", "0.08"},
	"claude-3-haiku":    {"0.25", "1.25", "0.30", "0.03"},
}

// bundledRates converts the shipped catalog into decimal rates.
func bundledRates() (map[string]Rates, error) {
	rates := make(map[string]Rates, len(bundledCatalog))

	for model, raw := range bundledCatalog {
		input, err := decimal.NewFromString(raw.input)
		if err != nil {
			return nil, err
		}
		output, err := decimal.NewFromString(raw.output)
		if err != nil {
			return nil, err
		}
		cacheWrite, err := decimal.NewFromString(raw.cacheWrite)
		if err != nil {
			return nil, err
		}
		cacheRead, err := decimal.NewFromString(raw.cacheRead)
		if err != nil {
			return nil, err
		}

		rates[model] = Rates{
			Input:      input,
			Output:     output,
			CacheWrite: cacheWrite,
			CacheRead:  cacheRead,
		}
	}

	return rates, nil
}
