package matcher

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Outcome is the verdict of a single rule evaluation: a human-readable
// status, the monetary difference the winning rule actually used, and a
// ranking score. Scores rank candidates within one search pass only.
type Outcome struct {
	Status     string
	Difference decimal.Decimal
	Score      float64
}

// rule inspects a payment total and an invoice total and returns an outcome
// or nil to pass control to the next rule in the list.
type rule func(paymentTotal, invoiceTotal decimal.Decimal) *Outcome

// Evaluator applies the tiered matching policy as an ordered rule list.
// The first rule to produce an outcome wins; there is no score search
// across rules.
type Evaluator struct {
	cfg   *Config
	rules []rule
}

// NewEvaluator builds the rule list for the given configuration:
// exact equality, one exact-with-tax rule per tax rate, the fixed-offset
// rule, then one composite rule per tolerance band in ascending order.
func NewEvaluator(cfg *Config) *Evaluator {
	e := &Evaluator{cfg: cfg}

	e.rules = append(e.rules, exactRule())
	for _, rate := range cfg.TaxRates {
		e.rules = append(e.rules, taxExactRule(rate))
	}
	e.rules = append(e.rules, fixedOffsetRule(cfg.FixedOffset))
	for _, band := range cfg.ToleranceBands {
		e.rules = append(e.rules, bandRule(band, cfg.TaxRates, cfg.FixedOffset))
	}

	return e
}

// Evaluate decides whether a single payment total settles a single invoice
// total. Returns nil when no rule is satisfied.
func (e *Evaluator) Evaluate(paymentTotal, invoiceTotal decimal.Decimal) *Outcome {
	for _, r := range e.rules {
		if out := r(paymentTotal, invoiceTotal); out != nil {
			return out
		}
	}
	return nil
}

// EvaluateCombined decides whether a combined total on one side settles the
// total on the other. Only the exact, exact-with-tax and plain-tolerance
// rules apply to combinations, each scoring 50 points below its
// single-record equivalent. prefix is "multi payment" or "multi invoice"
// and feeds the status text.
func (e *Evaluator) EvaluateCombined(paymentTotal, invoiceTotal decimal.Decimal, prefix string) *Outcome {
	if paymentTotal.Equal(invoiceTotal) {
		return &Outcome{
			Status:     prefix + " exact match",
			Difference: decimal.Zero,
			Score:      950,
		}
	}

	for _, rate := range e.cfg.TaxRates {
		grossed := applyTax(paymentTotal, rate)
		if grossed.Equal(invoiceTotal) {
			return &Outcome{
				Status:     fmt.Sprintf("%s match with tax (%s%%)", prefix, formatRate(rate)),
				Difference: decimal.Zero,
				Score:      850,
			}
		}
	}

	for _, band := range e.cfg.ToleranceBands {
		diff := paymentTotal.Sub(invoiceTotal).Abs()
		if diff.LessThanOrEqual(band) {
			return &Outcome{
				Status:     fmt.Sprintf("%s match with difference: %s within tolerance %s", prefix, diff, band),
				Difference: diff,
				Score:      650 - diff.InexactFloat64(),
			}
		}
	}

	return nil
}

func exactRule() rule {
	return func(paymentTotal, invoiceTotal decimal.Decimal) *Outcome {
		if !paymentTotal.Equal(invoiceTotal) {
			return nil
		}
		return &Outcome{
			Status:     "exactly match",
			Difference: decimal.Zero,
			Score:      1000,
		}
	}
}

func taxExactRule(rate decimal.Decimal) rule {
	return func(paymentTotal, invoiceTotal decimal.Decimal) *Outcome {
		if !applyTax(paymentTotal, rate).Equal(invoiceTotal) {
			return nil
		}
		return &Outcome{
			Status:     fmt.Sprintf("exactly match with tax (%s%%)", formatRate(rate)),
			Difference: decimal.Zero,
			Score:      900,
		}
	}
}

// fixedOffsetRule accepts an invoice that exceeds the payment by exactly the
// configured offset. The score formula goes deeply negative with the default
// offset of 10000; this matches long-standing production behavior and must
// not be corrected here.
func fixedOffsetRule(offset decimal.Decimal) rule {
	return func(paymentTotal, invoiceTotal decimal.Decimal) *Outcome {
		if !invoiceTotal.Equal(paymentTotal.Add(offset)) {
			return nil
		}
		return &Outcome{
			Status:     "match with add 10K",
			Difference: offset,
			Score:      800 - offset.InexactFloat64(),
		}
	}
}

// bandRule checks the band's sub-rules in fixed order: plain difference,
// then per tax rate the tax-adjusted difference and the tax-plus-offset
// difference, then the offset-only difference. The first sub-rule whose
// difference fits the band wins.
func bandRule(band decimal.Decimal, rates []decimal.Decimal, offset decimal.Decimal) rule {
	return func(paymentTotal, invoiceTotal decimal.Decimal) *Outcome {
		diff := paymentTotal.Sub(invoiceTotal).Abs()
		if diff.LessThanOrEqual(band) {
			return &Outcome{
				Status:     fmt.Sprintf("match with difference: %s within tolerance %s", diff, band),
				Difference: diff,
				Score:      700 - diff.InexactFloat64(),
			}
		}

		for _, rate := range rates {
			grossed := applyTax(paymentTotal, rate)

			taxDiff := grossed.Sub(invoiceTotal).Abs()
			if taxDiff.LessThanOrEqual(band) {
				return &Outcome{
					Status:     fmt.Sprintf("match with tax (%s%%) within tolerance %s", formatRate(rate), band),
					Difference: taxDiff,
					Score:      600 - taxDiff.InexactFloat64(),
				}
			}

			taxOffsetDiff := grossed.Add(offset).Sub(invoiceTotal).Abs()
			if taxOffsetDiff.LessThanOrEqual(band) {
				return &Outcome{
					Status:     fmt.Sprintf("match with tax (%s%%) and add 10K within tolerance %s", formatRate(rate), band),
					Difference: taxOffsetDiff,
					Score:      500 - taxOffsetDiff.InexactFloat64(),
				}
			}
		}

		offsetDiff := paymentTotal.Add(offset).Sub(invoiceTotal).Abs()
		if offsetDiff.LessThanOrEqual(band) {
			return &Outcome{
				Status:     fmt.Sprintf("match with add 10K within tolerance %s", band),
				Difference: offsetDiff,
				Score:      600 - offsetDiff.InexactFloat64(),
			}
		}

		return nil
	}
}

// applyTax grosses an amount up by the given rate
func applyTax(amount, rate decimal.Decimal) decimal.Decimal {
	return amount.Mul(decimal.NewFromInt(1).Add(rate))
}

// formatRate renders a fractional tax rate as a percentage with two
// decimal places, e.g. 0.0202 becomes "2.02".
func formatRate(rate decimal.Decimal) string {
	return rate.Mul(decimal.NewFromInt(100)).StringFixed(2)
}
