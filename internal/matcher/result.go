package matcher

import (
	"encoding/json"

	"payment-reconciliation-service/internal/models"

	"github.com/shopspring/decimal"
)

// RecordTimestampLayout is the timestamp format used in output records
const RecordTimestampLayout = "2006-01-02T15:04:05"

// ValueOrList marshals as null when empty, as a bare string when it holds
// one value, and as an array otherwise. Output records use it for fields
// whose shape depends on the match type.
type ValueOrList []string

// MarshalJSON implements json.Marshaler
func (v ValueOrList) MarshalJSON() ([]byte, error) {
	switch len(v) {
	case 0:
		return []byte("null"), nil
	case 1:
		return json.Marshal(v[0])
	default:
		return json.Marshal([]string(v))
	}
}

// UnmarshalJSON implements json.Unmarshaler, accepting null, a bare string
// or an array.
func (v *ValueOrList) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == "null" {
		*v = nil
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var single string
		if err := json.Unmarshal(data, &single); err != nil {
			return err
		}
		*v = ValueOrList{single}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	*v = ValueOrList(list)
	return nil
}

// MatchRecord is the reportable form of one committed match
type MatchRecord struct {
	CompanyID        string      `json:"company_id"`
	BuyerName        string      `json:"buyer_name"`
	Top              *int        `json:"top"`
	Ontime           int         `json:"ontime"`
	PaymentDate      string      `json:"payment_date"`
	InvoiceDate      ValueOrList `json:"invoice_date"`
	InvoiceStatus    string      `json:"invoice_status"`
	ExternalID       ValueOrList `json:"external_id"`
	InvoiceNumber    ValueOrList `json:"invoice_number"`
	PaymentAmount    float64     `json:"payment_amount"`
	PaymentAmountWHT float64     `json:"payment_amount_wht"`
	InvoiceAmount    float64     `json:"invoice_amount"`
	Status           string      `json:"status"`
	Difference       float64     `json:"difference"`
	Score            float64     `json:"score"`
	Type             string      `json:"type"`
}

// UnmatchedPayment is the minimal report form of a payment no rule consumed
type UnmatchedPayment struct {
	ExternalID string  `json:"external_id"`
	Amount     float64 `json:"amount"`
}

// UnmatchedInvoice is the minimal report form of an invoice no rule consumed
type UnmatchedInvoice struct {
	InvoiceID string  `json:"invoice_id"`
	Amount    float64 `json:"amount"`
}

// Result is the complete outcome of one matching run
type Result struct {
	Matches           []MatchRecord      `json:"matches"`
	UnmatchedPayments []UnmatchedPayment `json:"unmatched_payments"`
	UnmatchedInvoices []UnmatchedInvoice `json:"unmatched_invoices"`
}

// Reconcile runs a full matching session over the given batches and
// assembles the reportable result. Each call uses a fresh session, so
// identical inputs always produce identical output.
func Reconcile(cfg *Config, payments []*models.Payment, invoices []*models.Invoice) (*Result, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	session := NewSession(cfg)
	session.FindMatches(payments, invoices)

	result := &Result{
		Matches:           make([]MatchRecord, 0, len(session.Matches())),
		UnmatchedPayments: []UnmatchedPayment{},
		UnmatchedInvoices: []UnmatchedInvoice{},
	}

	for _, m := range session.Matches() {
		result.Matches = append(result.Matches, buildRecord(cfg, m))
	}

	for _, p := range payments {
		if !session.PaymentUsed(p.ExternalID) {
			result.UnmatchedPayments = append(result.UnmatchedPayments, UnmatchedPayment{
				ExternalID: p.ExternalID,
				Amount:     p.Amount.InexactFloat64(),
			})
		}
	}

	for _, inv := range invoices {
		if !session.InvoiceUsed(inv.InvoiceID) {
			result.UnmatchedInvoices = append(result.UnmatchedInvoices, UnmatchedInvoice{
				InvoiceID: inv.InvoiceID,
				Amount:    inv.Amount.InexactFloat64(),
			})
		}
	}

	return result, nil
}

// buildRecord assembles the output record for one match. The relevant
// payment date is the latest in the party, the relevant due date the latest
// across invoices, and the withholding gross-up is always reported whether
// or not the winning rule was tax-aware.
func buildRecord(cfg *Config, m *Match) MatchRecord {
	paymentDate := m.Payments.LatestDate()
	dueDate := m.Invoices.LatestDueDate()

	ontime := 0
	if !paymentDate.After(dueDate) {
		ontime = 1
	}

	invoiceDates := make(ValueOrList, 0, len(m.Invoices.All()))
	for _, inv := range m.Invoices.All() {
		invoiceDates = append(invoiceDates, inv.Date.Format(RecordTimestampLayout))
	}

	whtRate := cfg.TaxRates[0]
	wht := decimal.Zero
	for _, p := range m.Payments.All() {
		wht = wht.Add(applyTax(p.Amount, whtRate))
	}

	return MatchRecord{
		CompanyID:        m.Payments.First().CompanyID,
		BuyerName:        m.Payments.First().BuyerName,
		Top:              m.Invoices.MaxTop(),
		Ontime:           ontime,
		PaymentDate:      paymentDate.Format(RecordTimestampLayout),
		InvoiceDate:      invoiceDates,
		InvoiceStatus:    m.Invoices.First().InvoiceStatus,
		ExternalID:       ValueOrList(m.Payments.IDs()),
		InvoiceNumber:    ValueOrList(m.Invoices.IDs()),
		PaymentAmount:    m.Payments.TotalAmount().InexactFloat64(),
		PaymentAmountWHT: wht.InexactFloat64(),
		InvoiceAmount:    m.Invoices.TotalAmount().InexactFloat64(),
		Status:           m.Outcome.Status,
		Difference:       m.Outcome.Difference.InexactFloat64(),
		Score:            m.Outcome.Score,
		Type:             m.Type,
	}
}