package matcher

import (
	"time"

	"payment-reconciliation-service/internal/models"

	"github.com/shopspring/decimal"
)

// PaymentParty is the payment side of a match: either a single payment or
// an ordered combination. Accessors dispatch on the variant so callers never
// inspect the underlying slice directly.
type PaymentParty struct {
	payments []*models.Payment
}

// SinglePayment wraps one payment as a match participant
func SinglePayment(p *models.Payment) PaymentParty {
	return PaymentParty{payments: []*models.Payment{p}}
}

// CombinedPayments wraps a payment combination as a match participant
func CombinedPayments(ps []*models.Payment) PaymentParty {
	return PaymentParty{payments: ps}
}

// Multiple reports whether the party holds more than one payment
func (pp PaymentParty) Multiple() bool {
	return len(pp.payments) > 1
}

// First returns the first payment in the party
func (pp PaymentParty) First() *models.Payment {
	return pp.payments[0]
}

// All returns the payments in the party, in combination order
func (pp PaymentParty) All() []*models.Payment {
	return pp.payments
}

// IDs returns the external ids of all payments in the party
func (pp PaymentParty) IDs() []string {
	ids := make([]string, len(pp.payments))
	for i, p := range pp.payments {
		ids[i] = p.ExternalID
	}
	return ids
}

// TotalAmount sums the payment amounts
func (pp PaymentParty) TotalAmount() decimal.Decimal {
	total := decimal.Zero
	for _, p := range pp.payments {
		total = total.Add(p.Amount)
	}
	return total
}

// LatestDate returns the most recent payment date in the party
func (pp PaymentParty) LatestDate() time.Time {
	latest := pp.payments[0].Date
	for _, p := range pp.payments[1:] {
		if p.Date.After(latest) {
			latest = p.Date
		}
	}
	return latest
}

// InvoiceParty is the invoice side of a match: either a single invoice or
// an ordered combination.
type InvoiceParty struct {
	invoices []*models.Invoice
}

// SingleInvoice wraps one invoice as a match participant
func SingleInvoice(inv *models.Invoice) InvoiceParty {
	return InvoiceParty{invoices: []*models.Invoice{inv}}
}

// CombinedInvoices wraps an invoice combination as a match participant
func CombinedInvoices(invs []*models.Invoice) InvoiceParty {
	return InvoiceParty{invoices: invs}
}

// Multiple reports whether the party holds more than one invoice
func (ip InvoiceParty) Multiple() bool {
	return len(ip.invoices) > 1
}

// First returns the first invoice in the party
func (ip InvoiceParty) First() *models.Invoice {
	return ip.invoices[0]
}

// All returns the invoices in the party, in combination order
func (ip InvoiceParty) All() []*models.Invoice {
	return ip.invoices
}

// IDs returns the invoice ids of all invoices in the party
func (ip InvoiceParty) IDs() []string {
	ids := make([]string, len(ip.invoices))
	for i, inv := range ip.invoices {
		ids[i] = inv.InvoiceID
	}
	return ids
}

// TotalAmount sums the invoice amounts
func (ip InvoiceParty) TotalAmount() decimal.Decimal {
	total := decimal.Zero
	for _, inv := range ip.invoices {
		total = total.Add(inv.Amount)
	}
	return total
}

// LatestDueDate returns the most recent due date in the party
func (ip InvoiceParty) LatestDueDate() time.Time {
	latest := ip.invoices[0].DueDate
	for _, inv := range ip.invoices[1:] {
		if inv.DueDate.After(latest) {
			latest = inv.DueDate
		}
	}
	return latest
}

// MaxTop returns the largest known terms-of-payment value across the party,
// or nil when none of the invoices carries one.
func (ip InvoiceParty) MaxTop() *int {
	var max *int
	for _, inv := range ip.invoices {
		if inv.Top == nil {
			continue
		}
		if max == nil || *inv.Top > *max {
			v := *inv.Top
			max = &v
		}
	}
	return max
}
