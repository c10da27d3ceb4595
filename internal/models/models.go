// Package models defines the payment and invoice entities the matching
// engine operates on, together with the raw upstream record shapes and the
// normalization routines that convert between them.
//
// Raw records arrive with heterogeneous field names and date formats:
// payments carry ISO-8601 timestamps (with or without an offset), invoices
// carry plain YYYY-MM-DD calendar dates. Normalization produces immutable
// entities with UTC-normalized, offset-free timestamps so the engine can
// compare dates directly.
package models

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"payment-reconciliation-service/pkg/errors"

	"github.com/shopspring/decimal"
)

// InvoiceDateLayout is the calendar-date format used by invoice records.
const InvoiceDateLayout = "2006-01-02"

// FlexNumber accepts a JSON number or a numeric string and preserves its
// textual form; upstream stores are inconsistent about which one they emit.
type FlexNumber string

// UnmarshalJSON implements json.Unmarshaler
func (n *FlexNumber) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	s = strings.Trim(s, `"`)
	if s == "null" {
		s = ""
	}
	*n = FlexNumber(s)
	return nil
}

// String returns the textual form of the number
func (n FlexNumber) String() string {
	return string(n)
}

// IsEmpty reports whether no value was supplied
func (n FlexNumber) IsEmpty() bool {
	return strings.TrimSpace(string(n)) == ""
}

// Decimal parses the value as a decimal monetary amount
func (n FlexNumber) Decimal() (decimal.Decimal, error) {
	s := strings.TrimSpace(string(n))
	if s == "" {
		return decimal.Zero, fmt.Errorf("amount string cannot be empty")
	}
	return decimal.NewFromString(s)
}

// Int parses the value as an integer, tolerating a trailing decimal part
func (n FlexNumber) Int() (int, error) {
	s := strings.TrimSpace(string(n))
	if s == "" {
		return 0, fmt.Errorf("integer string cannot be empty")
	}
	if idx := strings.Index(s, "."); idx >= 0 {
		s = s[:idx]
	}
	return strconv.Atoi(s)
}

// RawPayment is the upstream payment record shape as stored in the payment
// document store.
type RawPayment struct {
	ExternalID string     `json:"external_id"`
	GrandTotal FlexNumber `json:"amount.grand_total"`
	CreatedAt  string     `json:"created_at"`
	CompanyID  string     `json:"company_id"`
	BuyerName  string     `json:"buyer_name"`
}

// RawInvoice is the upstream invoice record shape as returned by the invoice
// store query.
type RawInvoice struct {
	InvoiceNumber         string     `json:"invoice_number"`
	GrandTotalUnformatted FlexNumber `json:"grandTotalUnformatted"`
	InvoiceDate           string     `json:"invoice_date"`
	DueDate               string     `json:"due_date"`
	CompanyID             string     `json:"company_id"`
	Name                  string     `json:"name"`
	Top                   FlexNumber `json:"top"`
	InvoiceStatus         string     `json:"invoice_status"`
}

// Payment is a normalized payment entity. Instances are immutable once
// constructed; match results reference them rather than copying.
type Payment struct {
	ExternalID string
	Amount     decimal.Decimal
	Date       time.Time
	CompanyID  string
	BuyerName  string
}

// String returns a string representation of the Payment
func (p *Payment) String() string {
	return fmt.Sprintf("Payment{ID: %s, Amount: %s, Date: %s}",
		p.ExternalID, p.Amount.String(), p.Date.Format(time.RFC3339))
}

// Invoice is a normalized invoice entity. Top is nil when the terms of
// payment could not be supplied or derived.
type Invoice struct {
	InvoiceID     string
	Amount        decimal.Decimal
	Date          time.Time
	DueDate       time.Time
	CompanyID     string
	BuyerName     string
	Top           *int
	InvoiceStatus string
}

// String returns a string representation of the Invoice
func (i *Invoice) String() string {
	return fmt.Sprintf("Invoice{ID: %s, Amount: %s, Date: %s, Due: %s}",
		i.InvoiceID, i.Amount.String(), i.Date.Format(InvoiceDateLayout), i.DueDate.Format(InvoiceDateLayout))
}

// paymentTimestampLayouts are tried in order when the offset-aware parse
// fails and the offset marker has been stripped.
var paymentTimestampLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParsePaymentTimestamp parses an ISO-8601 payment timestamp. Offset-aware
// values are converted to UTC and returned offset-free; when offset parsing
// fails the prefix before the offset marker is parsed instead.
func ParsePaymentTimestamp(value string) (time.Time, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return time.Time{}, errors.ParseError(errors.CodeInvalidDate, "created_at", value, nil)
	}

	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, v); err == nil {
			u := t.UTC()
			// Rebuild without location so comparisons ignore the offset entirely.
			return time.Date(u.Year(), u.Month(), u.Day(), u.Hour(), u.Minute(), u.Second(), u.Nanosecond(), time.UTC), nil
		}
	}

	// Retry on the prefix before any offset marker.
	trimmed := strings.TrimSuffix(v, "Z")
	if idx := strings.Index(trimmed, "+"); idx > 0 {
		trimmed = trimmed[:idx]
	} else if tpos := strings.Index(trimmed, "T"); tpos > 0 {
		if idx := strings.LastIndex(trimmed, "-"); idx > tpos {
			trimmed = trimmed[:idx]
		}
	}

	for _, layout := range paymentTimestampLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return t, nil
		}
	}

	return time.Time{}, errors.ParseError(errors.CodeInvalidDate, "created_at", value, nil)
}

// NormalizePayment converts a raw payment record into a Payment entity.
// Unparseable amounts and dates are fatal for the batch.
func NormalizePayment(raw RawPayment) (*Payment, error) {
	if strings.TrimSpace(raw.ExternalID) == "" {
		return nil, errors.ValidationError(errors.CodeMissingField, "external_id", raw.ExternalID, nil)
	}

	amount, err := raw.GrandTotal.Decimal()
	if err != nil {
		return nil, errors.ParseError(errors.CodeInvalidAmount, "amount.grand_total", raw.GrandTotal.String(), err).
			WithContext("external_id", raw.ExternalID)
	}

	date, err := ParsePaymentTimestamp(raw.CreatedAt)
	if err != nil {
		return nil, errors.WrapIfNeeded(err, errors.CategoryParse, errors.CodeInvalidDate, "failed to parse payment timestamp").
			WithContext("external_id", raw.ExternalID)
	}

	return &Payment{
		ExternalID: raw.ExternalID,
		Amount:     amount,
		Date:       date,
		CompanyID:  raw.CompanyID,
		BuyerName:  raw.BuyerName,
	}, nil
}

// NormalizeInvoice converts a raw invoice record into an Invoice entity.
// The terms of payment come from the raw record when present; otherwise they
// are derived as whole days between issue and due date. Derivation failures
// leave Top nil and never abort the batch.
func NormalizeInvoice(raw RawInvoice) (*Invoice, error) {
	if strings.TrimSpace(raw.InvoiceNumber) == "" {
		return nil, errors.ValidationError(errors.CodeMissingField, "invoice_number", raw.InvoiceNumber, nil)
	}

	amount, err := raw.GrandTotalUnformatted.Decimal()
	if err != nil {
		return nil, errors.ParseError(errors.CodeInvalidAmount, "grandTotalUnformatted", raw.GrandTotalUnformatted.String(), err).
			WithContext("invoice_number", raw.InvoiceNumber)
	}

	date, err := time.Parse(InvoiceDateLayout, strings.TrimSpace(raw.InvoiceDate))
	if err != nil {
		return nil, errors.ParseError(errors.CodeInvalidDate, "invoice_date", raw.InvoiceDate, err).
			WithContext("invoice_number", raw.InvoiceNumber)
	}

	dueDate, err := time.Parse(InvoiceDateLayout, strings.TrimSpace(raw.DueDate))
	if err != nil {
		return nil, errors.ParseError(errors.CodeInvalidDate, "due_date", raw.DueDate, err).
			WithContext("invoice_number", raw.InvoiceNumber)
	}

	return &Invoice{
		InvoiceID:     raw.InvoiceNumber,
		Amount:        amount,
		Date:          date,
		DueDate:       dueDate,
		CompanyID:     raw.CompanyID,
		BuyerName:     raw.Name,
		Top:           deriveTop(raw.Top, date, dueDate),
		InvoiceStatus: raw.InvoiceStatus,
	}, nil
}

// deriveTop resolves the terms of payment, preferring the supplied value
func deriveTop(supplied FlexNumber, date, dueDate time.Time) *int {
	if !supplied.IsEmpty() {
		if top, err := supplied.Int(); err == nil {
			return &top
		}
	}

	if date.IsZero() || dueDate.IsZero() {
		return nil
	}

	days := int(dueDate.Sub(date).Hours() / 24)
	return &days
}

// NormalizePayments converts a batch of raw payments, aborting on the first
// structurally invalid record.
func NormalizePayments(raws []RawPayment) ([]*Payment, error) {
	payments := make([]*Payment, 0, len(raws))
	for _, raw := range raws {
		p, err := NormalizePayment(raw)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, nil
}

// NormalizeInvoices converts a batch of raw invoices, aborting on the first
// structurally invalid record.
func NormalizeInvoices(raws []RawInvoice) ([]*Invoice, error) {
	invoices := make([]*Invoice, 0, len(raws))
	for _, raw := range raws {
		inv, err := NormalizeInvoice(raw)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, inv)
	}
	return invoices, nil
}

// SortPaymentsByDate returns a copy of payments sorted ascending by date.
// The sort is stable so records with equal dates keep their input order.
func SortPaymentsByDate(payments []*Payment) []*Payment {
	sorted := make([]*Payment, len(payments))
	copy(sorted, payments)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})
	return sorted
}

// SortInvoicesByDate returns a copy of invoices sorted ascending by date.
// The sort is stable so records with equal dates keep their input order.
func SortInvoicesByDate(invoices []*Invoice) []*Invoice {
	sorted := make([]*Invoice, len(invoices))
	copy(sorted, invoices)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})
	return sorted
}
