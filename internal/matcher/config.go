// Package matcher implements the payment-to-invoice matching engine.
//
// The engine evaluates an ordered list of tolerance and tax rules against
// candidate pairings, then runs a three-pass greedy search over the input
// sets:
//  1. Single payment vs single invoice
//  2. Combinations of payments vs a single invoice
//  3. A single payment vs combinations of invoices
//
// Each pass commits its best-scoring pairing immediately and marks the
// participants used, so later passes only see the leftovers. There is no
// backtracking.
//
// Example usage:
//
//	cfg := matcher.DefaultConfig()
//	result, err := matcher.Reconcile(cfg, payments, invoices)
package matcher

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Config holds the tunable parameters of the matching engine.
//
// Rule order is derived from the slices: one exact-with-tax rule per tax
// rate, one tolerance band per entry in ToleranceBands (evaluated smallest
// first), and a single fixed-offset rule for installation-fee style
// round-sum differences.
type Config struct {
	// TaxRates lists tax rates checked by the tax-aware rules, as fractions
	// (0.0202 means 2.02%). The first rate is also used for the withholding
	// gross-up on reported payment amounts.
	TaxRates []decimal.Decimal `json:"tax_rates"`

	// ToleranceBands lists absolute difference thresholds, in currency
	// units, checked in ascending order.
	ToleranceBands []decimal.Decimal `json:"tolerance_bands"`

	// FixedOffset is the exact round-sum difference accepted by the
	// fixed-offset rules.
	FixedOffset decimal.Decimal `json:"fixed_offset"`

	// MaxCombinationSize bounds the number of payments or invoices that may
	// be grouped into one match during the combination passes.
	MaxCombinationSize int `json:"max_combination_size"`
}

// DefaultConfig returns the production rule set
func DefaultConfig() *Config {
	return &Config{
		TaxRates:           []decimal.Decimal{decimal.NewFromFloat(0.0202)},
		ToleranceBands:     []decimal.Decimal{decimal.NewFromInt(2000), decimal.NewFromInt(5000)},
		FixedOffset:        decimal.NewFromInt(10000),
		MaxCombinationSize: 3,
	}
}

// Validate checks if the matching configuration is valid
func (c *Config) Validate() error {
	if len(c.TaxRates) == 0 {
		return fmt.Errorf("at least one tax rate is required")
	}

	for i, rate := range c.TaxRates {
		if rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
			return fmt.Errorf("tax rate %d must be in [0, 1): %s", i, rate)
		}
	}

	if len(c.ToleranceBands) == 0 {
		return fmt.Errorf("at least one tolerance band is required")
	}

	prev := decimal.Zero
	for i, band := range c.ToleranceBands {
		if !band.IsPositive() {
			return fmt.Errorf("tolerance band %d must be positive: %s", i, band)
		}
		if band.LessThanOrEqual(prev) && i > 0 {
			return fmt.Errorf("tolerance bands must be strictly ascending: %s after %s", band, prev)
		}
		prev = band
	}

	if !c.FixedOffset.IsPositive() {
		return fmt.Errorf("fixed offset must be positive: %s", c.FixedOffset)
	}

	if c.MaxCombinationSize < 2 {
		return fmt.Errorf("max combination size must be at least 2: %d", c.MaxCombinationSize)
	}

	return nil
}

// Clone returns a deep copy of the configuration
func (c *Config) Clone() *Config {
	clone := &Config{
		TaxRates:           make([]decimal.Decimal, len(c.TaxRates)),
		ToleranceBands:     make([]decimal.Decimal, len(c.ToleranceBands)),
		FixedOffset:        c.FixedOffset,
		MaxCombinationSize: c.MaxCombinationSize,
	}
	copy(clone.TaxRates, c.TaxRates)
	copy(clone.ToleranceBands, c.ToleranceBands)
	return clone
}
