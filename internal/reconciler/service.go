// Package reconciler orchestrates a reconciliation search: cache lookup,
// store fetches, the matching engine, and assembly of the combined result
// list including "not found" records for identifiers nothing matched.
package reconciler

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"payment-reconciliation-service/internal/matcher"
	"payment-reconciliation-service/internal/models"
	"payment-reconciliation-service/pkg/errors"
	"payment-reconciliation-service/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceStore fetches raw invoice records
type InvoiceStore interface {
	FindByNumbers(ctx context.Context, numbers []string) ([]models.RawInvoice, error)
	FindByCompanyAndBuyers(ctx context.Context, companyID string, buyers []string, start, end time.Time) ([]models.RawInvoice, error)
}

// PaymentStore fetches raw payment documents
type PaymentStore interface {
	FindByExternalIDs(ctx context.Context, externalIDs []string) ([]models.RawPayment, error)
	FindByCompanySince(ctx context.Context, companyID string, since time.Time) ([]models.RawPayment, error)
}

// ResultCache serves and stores previously assembled match records.
// Implementations must tolerate being nil-backed (every lookup a miss).
type ResultCache interface {
	LookupInvoices(ctx context.Context, numbers []string) ([]json.RawMessage, []string, error)
	LookupPayments(ctx context.Context, externalIDs []string) ([]json.RawMessage, []string, error)
	StoreRecord(ctx context.Context, record json.RawMessage, invoiceNumbers, externalIDs []string)
}

// NotFoundStatus is the status reported for identifiers nothing matched
const NotFoundStatus = "not found"

// Record is the search-level record shape: a superset of the match record
// where every field an unmatched identifier cannot supply marshals as null.
type Record struct {
	CompanyID        string   `json:"company_id"`
	BuyerName        string   `json:"buyer_name"`
	Top              *int     `json:"top"`
	Ontime           *int     `json:"ontime"`
	PaymentDate      *string  `json:"payment_date"`
	InvoiceDate      *string  `json:"invoice_date"`
	ExternalID       *string  `json:"external_id"`
	InvoiceNumber    *string  `json:"invoice_number"`
	PaymentAmount    *float64 `json:"payment_amount"`
	PaymentAmountWHT *float64 `json:"payment_amount_wht"`
	InvoiceAmount    *float64 `json:"invoice_amount"`
	Status           string   `json:"status"`
}

const (
	// lookbackDays widens the invoice window before the earliest payment
	// when searching by external id.
	lookbackDays = 60

	// lookaheadDays widens the invoice window past the latest payment
	lookaheadDays = 1
)

// Service runs reconciliation searches against the configured stores
type Service struct {
	invoices InvoiceStore
	payments PaymentStore
	cache    ResultCache
	cfg      *matcher.Config
	log      logger.Logger
}

// noopCache misses every lookup and drops every store
type noopCache struct{}

func (noopCache) LookupInvoices(_ context.Context, numbers []string) ([]json.RawMessage, []string, error) {
	return nil, numbers, nil
}

func (noopCache) LookupPayments(_ context.Context, externalIDs []string) ([]json.RawMessage, []string, error) {
	return nil, externalIDs, nil
}

func (noopCache) StoreRecord(context.Context, json.RawMessage, []string, []string) {}

// NewService constructs a reconciliation service. cache may be nil.
func NewService(invoices InvoiceStore, payments PaymentStore, cache ResultCache, cfg *matcher.Config) *Service {
	if cfg == nil {
		cfg = matcher.DefaultConfig()
	}
	if cache == nil {
		cache = noopCache{}
	}
	return &Service{
		invoices: invoices,
		payments: payments,
		cache:    cache,
		cfg:      cfg,
		log:      logger.GetGlobalLogger().WithComponent("reconciler"),
	}
}

// Search reconciles the given invoice numbers and payment external ids.
// Cached records are returned as-is; the remaining identifiers go through
// the full store-fetch and matching flow, and their match records are
// cached for subsequent searches.
func (s *Service) Search(ctx context.Context, invoiceNumbers, externalIDs []string) ([]json.RawMessage, error) {
	if len(invoiceNumbers) == 0 && len(externalIDs) == 0 {
		return nil, errors.ValidationError(errors.CodeEmptyInput, "identifiers", "", nil).
			WithSuggestion("provide at least one invoice number or external id")
	}

	log := s.log.WithField("run_id", uuid.NewString())

	invoiceHits, missingInvoices, err := s.cache.LookupInvoices(ctx, invoiceNumbers)
	if err != nil {
		log.WithError(err).Warn("Invoice cache lookup failed, treating all as misses")
		missingInvoices = invoiceNumbers
	}

	paymentHits, missingExternalIDs, err := s.cache.LookupPayments(ctx, externalIDs)
	if err != nil {
		log.WithError(err).Warn("Payment cache lookup failed, treating all as misses")
		missingExternalIDs = externalIDs
	}

	results := make([]json.RawMessage, 0, len(invoiceHits)+len(paymentHits))
	results = append(results, invoiceHits...)
	results = append(results, paymentHits...)

	log.WithFields(logger.Fields{
		"invoice_numbers":  len(invoiceNumbers),
		"external_ids":     len(externalIDs),
		"cached":           len(results),
		"missing_invoices": len(missingInvoices),
		"missing_payments": len(missingExternalIDs),
	}).Info("Starting reconciliation search")

	if len(missingInvoices) > 0 {
		records, err := s.searchByInvoiceNumbers(ctx, log, missingInvoices)
		if err != nil {
			return nil, err
		}
		results = append(results, records...)
	}

	if len(missingExternalIDs) > 0 {
		records, err := s.searchByExternalIDs(ctx, log, missingExternalIDs)
		if err != nil {
			return nil, err
		}
		results = append(results, records...)
	}

	return results, nil
}

// searchByInvoiceNumbers fetches the named invoices, pulls each company's
// payments from the earliest invoice date onward, and reconciles per
// company. Invoices that end up in no match are reported as not found.
func (s *Service) searchByInvoiceNumbers(ctx context.Context, log logger.Logger, numbers []string) ([]json.RawMessage, error) {
	raws, err := s.invoices.FindByNumbers(ctx, numbers)
	if err != nil {
		return nil, err
	}

	invoices, err := models.NormalizeInvoices(raws)
	if err != nil {
		return nil, err
	}

	byCompany := groupInvoicesByCompany(invoices)

	var results []json.RawMessage
	matchedNumbers := make(map[string]struct{})

	for companyID, companyInvoices := range byCompany {
		start := earliestInvoiceDate(companyInvoices)

		rawPayments, err := s.payments.FindByCompanySince(ctx, companyID, start)
		if err != nil {
			return nil, err
		}

		payments, err := models.NormalizePayments(rawPayments)
		if err != nil {
			return nil, err
		}

		log.WithFields(logger.Fields{
			"company_id": companyID,
			"payments":   len(payments),
			"invoices":   len(companyInvoices),
		}).Debug("Reconciling company batch")

		result, err := matcher.Reconcile(s.cfg, payments, companyInvoices)
		if err != nil {
			return nil, err
		}

		records, err := s.collectMatches(ctx, result)
		if err != nil {
			return nil, err
		}
		results = append(results, records...)

		for _, m := range result.Matches {
			for _, number := range m.InvoiceNumber {
				matchedNumbers[number] = struct{}{}
			}
		}
	}

	for _, inv := range invoices {
		if _, ok := matchedNumbers[inv.InvoiceID]; ok {
			continue
		}
		record, err := json.Marshal(notFoundInvoiceRecord(inv))
		if err != nil {
			return nil, errors.InternalError(errors.CodeUnexpectedError, "marshal_not_found_invoice", err)
		}
		results = append(results, record)
	}

	return results, nil
}

// searchByExternalIDs fetches the named payments, widens buyer names with
// and without the "PT " legal-entity prefix, pulls candidate invoices in a
// window around the payment dates, and reconciles per company. Payments
// that end up in no match are reported as not found.
func (s *Service) searchByExternalIDs(ctx context.Context, log logger.Logger, externalIDs []string) ([]json.RawMessage, error) {
	raws, err := s.payments.FindByExternalIDs(ctx, externalIDs)
	if err != nil {
		return nil, err
	}

	payments, err := models.NormalizePayments(raws)
	if err != nil {
		return nil, err
	}

	if len(payments) == 0 {
		return nil, nil
	}

	start, end := paymentDateWindow(payments)
	byCompany := groupPaymentsByCompany(payments)

	var results []json.RawMessage

	for companyID, companyPayments := range byCompany {
		buyers := widenBuyerNames(companyPayments)

		rawInvoices, err := s.invoices.FindByCompanyAndBuyers(ctx, companyID, buyers, start, end)
		if err != nil {
			return nil, err
		}

		invoices, err := models.NormalizeInvoices(rawInvoices)
		if err != nil {
			return nil, err
		}

		log.WithFields(logger.Fields{
			"company_id": companyID,
			"payments":   len(companyPayments),
			"invoices":   len(invoices),
		}).Debug("Reconciling company batch")

		result, err := matcher.Reconcile(s.cfg, companyPayments, invoices)
		if err != nil {
			return nil, err
		}

		records, err := s.collectMatches(ctx, result)
		if err != nil {
			return nil, err
		}
		results = append(results, records...)

		byID := make(map[string]*models.Payment, len(companyPayments))
		for _, p := range companyPayments {
			byID[p.ExternalID] = p
		}
		for _, unmatched := range result.UnmatchedPayments {
			p, ok := byID[unmatched.ExternalID]
			if !ok {
				continue
			}
			record, err := json.Marshal(notFoundPaymentRecord(p, s.cfg.TaxRates[0]))
			if err != nil {
				return nil, errors.InternalError(errors.CodeUnexpectedError, "marshal_not_found_payment", err)
			}
			results = append(results, record)
		}
	}

	return results, nil
}

// collectMatches marshals committed match records and feeds them to the cache
func (s *Service) collectMatches(ctx context.Context, result *matcher.Result) ([]json.RawMessage, error) {
	records := make([]json.RawMessage, 0, len(result.Matches))
	for _, m := range result.Matches {
		record, err := json.Marshal(m)
		if err != nil {
			return nil, errors.InternalError(errors.CodeUnexpectedError, "marshal_match", err)
		}
		s.cache.StoreRecord(ctx, record, m.InvoiceNumber, m.ExternalID)
		records = append(records, record)
	}
	return records, nil
}

func notFoundInvoiceRecord(inv *models.Invoice) Record {
	date := inv.Date.Format(matcher.RecordTimestampLayout)
	number := inv.InvoiceID
	amount := inv.Amount.InexactFloat64()
	return Record{
		CompanyID:     inv.CompanyID,
		BuyerName:     inv.BuyerName,
		Top:           inv.Top,
		InvoiceDate:   &date,
		InvoiceNumber: &number,
		InvoiceAmount: &amount,
		Status:        NotFoundStatus,
	}
}

func notFoundPaymentRecord(p *models.Payment, whtRate decimal.Decimal) Record {
	date := p.Date.Format(matcher.RecordTimestampLayout)
	id := p.ExternalID
	amount := p.Amount.InexactFloat64()
	wht := p.Amount.Mul(decimal.NewFromInt(1).Add(whtRate)).InexactFloat64()
	return Record{
		CompanyID:        p.CompanyID,
		BuyerName:        p.BuyerName,
		PaymentDate:      &date,
		ExternalID:       &id,
		PaymentAmount:    &amount,
		PaymentAmountWHT: &wht,
		Status:           NotFoundStatus,
	}
}

func groupInvoicesByCompany(invoices []*models.Invoice) map[string][]*models.Invoice {
	grouped := make(map[string][]*models.Invoice)
	for _, inv := range invoices {
		grouped[inv.CompanyID] = append(grouped[inv.CompanyID], inv)
	}
	return grouped
}

func groupPaymentsByCompany(payments []*models.Payment) map[string][]*models.Payment {
	grouped := make(map[string][]*models.Payment)
	for _, p := range payments {
		grouped[p.CompanyID] = append(grouped[p.CompanyID], p)
	}
	return grouped
}

func earliestInvoiceDate(invoices []*models.Invoice) time.Time {
	earliest := invoices[0].Date
	for _, inv := range invoices[1:] {
		if inv.Date.Before(earliest) {
			earliest = inv.Date
		}
	}
	return earliest
}

// paymentDateWindow computes the invoice search window across the whole
// payment set: lookbackDays before the earliest payment through
// lookaheadDays after the latest.
func paymentDateWindow(payments []*models.Payment) (time.Time, time.Time) {
	min := payments[0].Date
	max := payments[0].Date
	for _, p := range payments[1:] {
		if p.Date.Before(min) {
			min = p.Date
		}
		if p.Date.After(max) {
			max = p.Date
		}
	}
	return min.AddDate(0, 0, -lookbackDays), max.AddDate(0, 0, lookaheadDays)
}

// widenBuyerNames returns the distinct buyer names of the payments plus a
// variant per name with the "PT " prefix added or removed, so invoices
// registered under the other legal form still qualify.
func widenBuyerNames(payments []*models.Payment) []string {
	seen := make(map[string]struct{})
	var names []string

	add := func(name string) {
		if name == "" {
			return
		}
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}

	for _, p := range payments {
		add(p.BuyerName)
	}

	for _, p := range payments {
		name := p.BuyerName
		if name == "" {
			continue
		}
		if strings.HasPrefix(name, "PT") {
			add(strings.TrimSpace(strings.ReplaceAll(name, "PT ", "")))
		} else {
			add(strings.TrimSpace("PT " + name))
		}
	}

	return names
}
