package matcher

import (
	"math"

	"payment-reconciliation-service/internal/models"

	"github.com/shopspring/decimal"
)

// Match type tags carried on every committed match.
const (
	MatchTypeSingle       = "single_match"
	MatchTypeMultiPayment = "multi_payment"
	MatchTypeMultiInvoice = "multi_invoice"
)

// Match is one committed pairing. Exactly one side may hold more than one
// record, never both.
type Match struct {
	Payments PaymentParty
	Invoices InvoiceParty
	Outcome  Outcome
	Type     string
}

// Session holds the mutable state of one matching run: which records have
// been consumed and the matches committed so far. A session must not be
// reused across runs; build a fresh one per input batch.
type Session struct {
	cfg  *Config
	eval *Evaluator

	usedPayments map[string]struct{}
	usedInvoices map[string]struct{}
	matches      []*Match
}

// NewSession creates a session for one matching run
func NewSession(cfg *Config) *Session {
	return &Session{
		cfg:          cfg,
		eval:         NewEvaluator(cfg),
		usedPayments: make(map[string]struct{}),
		usedInvoices: make(map[string]struct{}),
	}
}

// Matches returns the matches committed so far, in commit order
func (s *Session) Matches() []*Match {
	return s.matches
}

// PaymentUsed reports whether the payment has been consumed by a match
func (s *Session) PaymentUsed(externalID string) bool {
	_, ok := s.usedPayments[externalID]
	return ok
}

// InvoiceUsed reports whether the invoice has been consumed by a match
func (s *Session) InvoiceUsed(invoiceID string) bool {
	_, ok := s.usedInvoices[invoiceID]
	return ok
}

// FindMatches runs the three passes in order: single-to-single, combined
// payments against one invoice, then one payment against combined invoices.
// Each pass commits greedily; records consumed by an earlier pass are
// invisible to later ones.
func (s *Session) FindMatches(payments []*models.Payment, invoices []*models.Invoice) {
	sortedPayments := models.SortPaymentsByDate(payments)
	sortedInvoices := models.SortInvoicesByDate(invoices)

	s.singlePass(sortedPayments, sortedInvoices)
	s.multiPaymentPass(sortedPayments, sortedInvoices)
	s.multiInvoicePass(sortedPayments, sortedInvoices)
}

// singlePass pairs each payment with its best-scoring single invoice.
// A payment can only settle an invoice issued on or before the payment date.
func (s *Session) singlePass(payments []*models.Payment, invoices []*models.Invoice) {
	for _, p := range payments {
		if s.PaymentUsed(p.ExternalID) {
			continue
		}

		var best *Match
		bestScore := math.Inf(-1)

		for _, inv := range invoices {
			if s.InvoiceUsed(inv.InvoiceID) || p.Date.Before(inv.Date) {
				continue
			}

			out := s.eval.Evaluate(p.Amount, inv.Amount)
			if out != nil && out.Score > bestScore {
				best = &Match{
					Payments: SinglePayment(p),
					Invoices: SingleInvoice(inv),
					Outcome:  *out,
					Type:     MatchTypeSingle,
				}
				bestScore = out.Score
			}
		}

		if best != nil {
			s.commit(best)
		}
	}
}

// multiPaymentPass combines leftover payments against each leftover invoice,
// trying all combination sizes from 2 up to the configured maximum and
// keeping the best-scoring combination per invoice.
func (s *Session) multiPaymentPass(payments []*models.Payment, invoices []*models.Invoice) {
	for _, inv := range invoices {
		if s.InvoiceUsed(inv.InvoiceID) {
			continue
		}

		var pool []*models.Payment
		for _, p := range payments {
			if !s.PaymentUsed(p.ExternalID) && !p.Date.Before(inv.Date) {
				pool = append(pool, p)
			}
		}

		var best *Match
		bestScore := math.Inf(-1)

		for n := 2; n <= s.cfg.MaxCombinationSize && n <= len(pool); n++ {
			forEachCombination(pool, n, func(combo []*models.Payment) {
				total := decimal.Zero
				for _, p := range combo {
					total = total.Add(p.Amount)
				}

				out := s.eval.EvaluateCombined(total, inv.Amount, "multi payment")
				if out != nil && out.Score > bestScore {
					selected := make([]*models.Payment, len(combo))
					copy(selected, combo)
					best = &Match{
						Payments: CombinedPayments(selected),
						Invoices: SingleInvoice(inv),
						Outcome:  *out,
						Type:     MatchTypeMultiPayment,
					}
					bestScore = out.Score
				}
			})
		}

		if best != nil {
			s.commit(best)
		}
	}
}

// multiInvoicePass is the mirror of multiPaymentPass: it combines leftover
// invoices against each leftover payment.
func (s *Session) multiInvoicePass(payments []*models.Payment, invoices []*models.Invoice) {
	for _, p := range payments {
		if s.PaymentUsed(p.ExternalID) {
			continue
		}

		var pool []*models.Invoice
		for _, inv := range invoices {
			if !s.InvoiceUsed(inv.InvoiceID) && !p.Date.Before(inv.Date) {
				pool = append(pool, inv)
			}
		}

		var best *Match
		bestScore := math.Inf(-1)

		for n := 2; n <= s.cfg.MaxCombinationSize && n <= len(pool); n++ {
			forEachCombination(pool, n, func(combo []*models.Invoice) {
				total := decimal.Zero
				for _, inv := range combo {
					total = total.Add(inv.Amount)
				}

				out := s.eval.EvaluateCombined(p.Amount, total, "multi invoice")
				if out != nil && out.Score > bestScore {
					selected := make([]*models.Invoice, len(combo))
					copy(selected, combo)
					best = &Match{
						Payments: SinglePayment(p),
						Invoices: CombinedInvoices(selected),
						Outcome:  *out,
						Type:     MatchTypeMultiInvoice,
					}
					bestScore = out.Score
				}
			})
		}

		if best != nil {
			s.commit(best)
		}
	}
}

// commit records a match and marks every participant as used
func (s *Session) commit(m *Match) {
	s.matches = append(s.matches, m)
	for _, id := range m.Payments.IDs() {
		s.usedPayments[id] = struct{}{}
	}
	for _, id := range m.Invoices.IDs() {
		s.usedInvoices[id] = struct{}{}
	}
}

// forEachCombination invokes fn for every k-element subset of items, in
// lexicographic index order. The slice passed to fn is reused between
// invocations; callers must copy it if they keep it.
func forEachCombination[T any](items []T, k int, fn func([]T)) {
	if k <= 0 || k > len(items) {
		return
	}

	combo := make([]T, k)
	var walk func(start, depth int)
	walk = func(start, depth int) {
		if depth == k {
			fn(combo)
			return
		}
		for i := start; i <= len(items)-(k-depth); i++ {
			combo[depth] = items[i]
			walk(i+1, depth+1)
		}
	}
	walk(0, 0)
}
