// Package pricing maps model identifiers and token counts to USD costs.
//
// The bundled catalog is loaded once per run and shared read-only with
// all workers. Lookup tries an exact match on the canonical model id
// first, then fuzzy matching (date-suffix stripping and model-family
// heuristics). An unresolved model yields a zero cost outcome rather
// than failing the run.
//
// All arithmetic uses exact decimals so cost totals do not drift across
// millions of additions.
package pricing

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/0xmhha/usagemeter/pkg/event"
)

// Mode selects how a cost is resolved for each event.
type Mode string

// Cost modes.
const (
	// ModeAuto uses the precomputed cost when present, otherwise
	// computes from token counts and rates. This is the default.
	ModeAuto Mode = "auto"

	// ModeCalculate always computes from token counts and rates,
	// ignoring any precomputed cost.
	ModeCalculate Mode = "calculate"

	// ModeDisplay only uses precomputed costs; events without one get a
	// zero cost and a recorded warning, never a silent computation.
	ModeDisplay Mode = "display"
)

// ParseMode validates a mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(s)) {
	case ModeAuto:
		return ModeAuto, nil
	case ModeCalculate:
		return ModeCalculate, nil
	case ModeDisplay:
		return ModeDisplay, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
}

// Rates holds USD prices per one million tokens for each token category.
// Immutable after catalog load.
type Rates struct {
	Input      decimal.Decimal
	Output     decimal.Decimal
	CacheWrite decimal.Decimal
	CacheRead  decimal.Decimal
}

var million = decimal.NewFromInt(1_000_000)

// Cost computes the exact-decimal USD cost of the given token counts.
func (r Rates) Cost(t event.TokenCounts) decimal.Decimal {
	cost := decimal.NewFromInt(t.Input).Mul(r.Input)
	cost = cost.Add(decimal.NewFromInt(t.Output).Mul(r.Output))
	cost = cost.Add(decimal.NewFromInt(t.CacheWrite).Mul(r.CacheWrite))
	cost = cost.Add(decimal.NewFromInt(t.CacheRead).Mul(r.CacheRead))
	return cost.Div(million)
}

// Match describes how a model id was resolved against the catalog.
type Match int

// Match kinds.
const (
	// MatchExact means the id was found in the catalog as-is.
	MatchExact Match = iota

	// MatchFuzzy means the id resolved through normalization or
	// family-heuristic matching.
	MatchFuzzy

	// MatchNone means no rates were found; the cost is zero.
	MatchNone
)

// Catalog is an immutable model-id to rates table.
type Catalog struct {
	rates map[string]Rates
}

// NewCatalog returns the bundled catalog.
func NewCatalog() (*Catalog, error) {
	rates, err := bundledRates()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCatalogLoad, err)
	}
	return &Catalog{rates: rates}, nil
}

// Models lists all canonical model ids in the catalog, sorted.
func (c *Catalog) Models() []string {
	models := make([]string, 0, len(c.rates))
	for m := range c.rates {
		models = append(models, m)
	}
	sort.Strings(models)
	return models
}

// Rates returns the rates for a canonical model id, if present.
func (c *Catalog) Rates(model string) (Rates, bool) {
	r, ok := c.rates[model]
	return r, ok
}

// dateSuffix matches trailing -YYYYMMDD version suffixes.
var dateSuffix = regexp.MustCompile(`-20\d{6}$`)

// Normalize canonicalizes a model identifier for fuzzy matching:
// lowercase, separators collapsed to dashes, provider prefix and
// date/latest suffixes stripped.
func Normalize(id string) string {
	s := strings.ToLower(strings.TrimSpace(id))

	if i := strings.LastIndex(s, "/"); i >= 0 {
		s = s[i+1:]
	}

	s = strings.ReplaceAll(s, "_", "-")
	s = strings.ReplaceAll(s, ".", "-")
	for strings.Contains(s, "--") {
		s = strings.ReplaceAll(s, "--", "-")
	}

	s = strings.TrimSuffix(s, "-latest")
	s = dateSuffix.ReplaceAllString(s, "")

	return s
}

// Lookup resolves a model id to rates.
//
// Resolution order: exact catalog key, normalized id, then model-family
// heuristics. Returns the canonical id that matched so callers can log
// what an unknown variant resolved to.
func (c *Catalog) Lookup(model string) (Rates, string, Match) {
	if r, ok := c.rates[model]; ok {
		return r, model, MatchExact
	}

	normalized := Normalize(model)
	if r, ok := c.rates[normalized]; ok {
		return r, normalized, MatchFuzzy
	}

	if family := matchFamily(normalized); family != "" {
		if r, ok := c.rates[family]; ok {
			return r, family, MatchFuzzy
		}
	}

	return Rates{}, "", MatchNone
}

// matchFamily maps a normalized but unrecognized id onto a known model
// family. Handles variants like "claude-sonnet-4-5-preview" or
// "claude-4-sonnet".
func matchFamily(id string) string {
	switch {
	case strings.Contains(id, "opus"):
		switch {
		case strings.Contains(id, "4-5"):
			return "claude-opus-4-5"
		case strings.Contains(id, "4-1"):
			return "claude-opus-4-1"
		case strings.Contains(id, "4"):
			return "claude-opus-4"
		case strings.Contains(id, "3"):
			return "claude-3-opus"
		}
	case strings.Contains(id, "sonnet"):
		switch {
		case strings.Contains(id, "4-5"):
			return "claude-sonnet-4-5"
		case strings.Contains(id, "4"):
			return "claude-sonnet-4"
		case strings.Contains(id, "3-7"):
			return "claude-3-7-sonnet"
		case strings.Contains(id, "3-5"):
			return "claude-3-5-sonnet"
		}
	case strings.Contains(id, "haiku"):
		switch {
		case strings.Contains(id, "4-5"):
			return "claude-haiku-4-5"
		case strings.Contains(id, "3-5"):
			return "claude-3-5-haiku"
		case strings.Contains(id, "3"):
			return "claude-3-haiku"
		}
	}
	return ""
}

// Outcome records how the cost of one event was determined.
type Outcome int

// Resolution outcomes.
const (
	// OutcomePrecomputed means the event's own cost field was used.
	OutcomePrecomputed Outcome = iota

	// OutcomeComputed means the cost was computed from rates.
	OutcomeComputed

	// OutcomeUnresolvedModel means no rates were found and the cost is
	// zero; callers record a warning.
	OutcomeUnresolvedModel

	// OutcomeMissingCost means display mode found no precomputed cost;
	// the cost is zero and callers record a warning.
	OutcomeMissingCost
)

// Resolver prices usage events under a selected cost mode.
//
// Thread-safety: Resolver is immutable after construction and safe for
// concurrent use by all workers.
type Resolver struct {
	catalog *Catalog
	mode    Mode
}

// NewResolver creates a resolver over the catalog.
func NewResolver(catalog *Catalog, mode Mode) *Resolver {
	return &Resolver{catalog: catalog, mode: mode}
}

// Mode returns the resolver's cost mode.
func (r *Resolver) Mode() Mode {
	return r.mode
}

// Resolve determines the USD cost of one event.
func (r *Resolver) Resolve(ev *event.UsageEvent) (decimal.Decimal, Outcome) {
	switch r.mode {
	case ModeDisplay:
		if ev.CostUSD != nil {
			return decimal.NewFromFloat(*ev.CostUSD), OutcomePrecomputed
		}
		return decimal.Zero, OutcomeMissingCost

	case ModeCalculate:
		return r.compute(ev)

	default: // ModeAuto
		if ev.CostUSD != nil {
			return decimal.NewFromFloat(*ev.CostUSD), OutcomePrecomputed
		}
		return r.compute(ev)
	}
}

func (r *Resolver) compute(ev *event.UsageEvent) (decimal.Decimal, Outcome) {
	rates, _, match := r.catalog.Lookup(ev.Model)
	if match == MatchNone {
		return decimal.Zero, OutcomeUnresolvedModel
	}
	return rates.Cost(ev.Tokens), OutcomeComputed
}
