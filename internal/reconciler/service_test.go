package reconciler

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"payment-reconciliation-service/internal/models"

	"github.com/stretchr/testify/require"
)

type buyerQuery struct {
	companyID string
	buyers    []string
	start     time.Time
	end       time.Time
}

type fakeInvoiceStore struct {
	byNumbers   []models.RawInvoice
	byBuyers    []models.RawInvoice
	buyerQuery  *buyerQuery
	numberCalls int
}

func (f *fakeInvoiceStore) FindByNumbers(_ context.Context, numbers []string) ([]models.RawInvoice, error) {
	f.numberCalls++
	return f.byNumbers, nil
}

func (f *fakeInvoiceStore) FindByCompanyAndBuyers(_ context.Context, companyID string, buyers []string, start, end time.Time) ([]models.RawInvoice, error) {
	f.buyerQuery = &buyerQuery{companyID: companyID, buyers: buyers, start: start, end: end}
	return f.byBuyers, nil
}

type fakePaymentStore struct {
	byIDs      []models.RawPayment
	byCompany  []models.RawPayment
	sinceQuery *time.Time
	idCalls    int
}

func (f *fakePaymentStore) FindByExternalIDs(_ context.Context, externalIDs []string) ([]models.RawPayment, error) {
	f.idCalls++
	return f.byIDs, nil
}

func (f *fakePaymentStore) FindByCompanySince(_ context.Context, companyID string, since time.Time) ([]models.RawPayment, error) {
	f.sinceQuery = &since
	return f.byCompany, nil
}

type fakeCache struct {
	invoiceHits []json.RawMessage
	paymentHits []json.RawMessage
	stored      []json.RawMessage
}

func (f *fakeCache) LookupInvoices(_ context.Context, numbers []string) ([]json.RawMessage, []string, error) {
	if f.invoiceHits != nil {
		return f.invoiceHits, nil, nil
	}
	return nil, numbers, nil
}

func (f *fakeCache) LookupPayments(_ context.Context, externalIDs []string) ([]json.RawMessage, []string, error) {
	if f.paymentHits != nil {
		return f.paymentHits, nil, nil
	}
	return nil, externalIDs, nil
}

func (f *fakeCache) StoreRecord(_ context.Context, record json.RawMessage, _, _ []string) {
	f.stored = append(f.stored, record)
}

func rawInvoice(number string, amount string) models.RawInvoice {
	return models.RawInvoice{
		InvoiceNumber:         number,
		GrandTotalUnformatted: models.FlexNumber(amount),
		InvoiceDate:           "2024-01-05",
		DueDate:               "2024-02-04",
		CompanyID:             "company-1",
		Name:                  "PT Maju Jaya",
		InvoiceStatus:         "0",
	}
}

func rawPayment(id string, amount string, buyer string) models.RawPayment {
	return models.RawPayment{
		ExternalID: id,
		GrandTotal: models.FlexNumber(amount),
		CreatedAt:  "2024-01-10T00:00:00Z",
		CompanyID:  "company-1",
		BuyerName:  buyer,
	}
}

func decodeRecord(t *testing.T, raw json.RawMessage) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &m))
	return m
}

func TestSearchRejectsEmptyInput(t *testing.T) {
	svc := NewService(&fakeInvoiceStore{}, &fakePaymentStore{}, nil, nil)

	_, err := svc.Search(context.Background(), nil, nil)
	require.Error(t, err)
}

func TestSearchByInvoiceNumberMatches(t *testing.T) {
	invoices := &fakeInvoiceStore{byNumbers: []models.RawInvoice{rawInvoice("INV-1", "100000")}}
	payments := &fakePaymentStore{byCompany: []models.RawPayment{rawPayment("PAY-1", "100000", "PT Maju Jaya")}}
	cache := &fakeCache{}

	svc := NewService(invoices, payments, cache, nil)

	results, err := svc.Search(context.Background(), []string{"INV-1"}, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)

	rec := decodeRecord(t, results[0])
	require.Equal(t, "exactly match", rec["status"])
	require.Equal(t, "INV-1", rec["invoice_number"])
	require.Equal(t, "PAY-1", rec["external_id"])
	require.Equal(t, float64(100000), rec["payment_amount"])

	// Payments are fetched from the earliest invoice date onward
	require.NotNil(t, payments.sinceQuery)
	require.Equal(t, time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), *payments.sinceQuery)

	// The match record is cached for later searches
	require.Len(t, cache.stored, 1)
}

func TestSearchByInvoiceNumberNotFound(t *testing.T) {
	invoices := &fakeInvoiceStore{byNumbers: []models.RawInvoice{rawInvoice("INV-1", "100000")}}
	payments := &fakePaymentStore{}

	svc := NewService(invoices, payments, nil, nil)

	results, err := svc.Search(context.Background(), []string{"INV-1"}, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)

	rec := decodeRecord(t, results[0])
	require.Equal(t, NotFoundStatus, rec["status"])
	require.Equal(t, "INV-1", rec["invoice_number"])
	require.Equal(t, float64(100000), rec["invoice_amount"])
	require.Nil(t, rec["payment_date"])
	require.Nil(t, rec["external_id"])
	require.Nil(t, rec["payment_amount"])
}

func TestSearchByExternalIDMatches(t *testing.T) {
	invoices := &fakeInvoiceStore{byBuyers: []models.RawInvoice{rawInvoice("INV-1", "100000")}}
	payments := &fakePaymentStore{byIDs: []models.RawPayment{rawPayment("PAY-1", "100000", "Maju Jaya")}}

	svc := NewService(invoices, payments, nil, nil)

	results, err := svc.Search(context.Background(), nil, []string{"PAY-1"})
	require.NoError(t, err)
	require.Len(t, results, 1)

	rec := decodeRecord(t, results[0])
	require.Equal(t, "exactly match", rec["status"])

	// Buyer names are widened with the PT prefix variant
	require.NotNil(t, invoices.buyerQuery)
	require.Equal(t, "company-1", invoices.buyerQuery.companyID)
	require.Equal(t, []string{"Maju Jaya", "PT Maju Jaya"}, invoices.buyerQuery.buyers)

	// The invoice window spans 60 days back to 1 day forward
	require.Equal(t, time.Date(2023, 11, 11, 0, 0, 0, 0, time.UTC), invoices.buyerQuery.start)
	require.Equal(t, time.Date(2024, 1, 11, 0, 0, 0, 0, time.UTC), invoices.buyerQuery.end)
}

func TestSearchByExternalIDNotFound(t *testing.T) {
	invoices := &fakeInvoiceStore{}
	payments := &fakePaymentStore{byIDs: []models.RawPayment{rawPayment("PAY-1", "123456", "PT Maju Jaya")}}

	svc := NewService(invoices, payments, nil, nil)

	results, err := svc.Search(context.Background(), nil, []string{"PAY-1"})
	require.NoError(t, err)
	require.Len(t, results, 1)

	rec := decodeRecord(t, results[0])
	require.Equal(t, NotFoundStatus, rec["status"])
	require.Equal(t, "PAY-1", rec["external_id"])
	require.Equal(t, float64(123456), rec["payment_amount"])
	require.InDelta(t, 123456*1.0202, rec["payment_amount_wht"].(float64), 0.01)
	require.Nil(t, rec["invoice_number"])
	require.Nil(t, rec["invoice_amount"])

	// The PT prefix variant without the prefix is included too
	require.Equal(t, []string{"PT Maju Jaya", "Maju Jaya"}, invoices.buyerQuery.buyers)
}

func TestSearchServesCachedRecords(t *testing.T) {
	cached := json.RawMessage(`{"invoice_number":"INV-1","status":"exactly match"}`)
	cache := &fakeCache{invoiceHits: []json.RawMessage{cached}}
	invoices := &fakeInvoiceStore{}
	payments := &fakePaymentStore{}

	svc := NewService(invoices, payments, cache, nil)

	results, err := svc.Search(context.Background(), []string{"INV-1"}, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.JSONEq(t, string(cached), string(results[0]))

	// A full cache hit never touches the stores
	require.Zero(t, invoices.numberCalls)
	require.Zero(t, payments.idCalls)
}
